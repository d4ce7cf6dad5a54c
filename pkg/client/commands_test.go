package client

import (
	"testing"

	"github.com/backkem/cmdchat/pkg/envelope"
)

func TestParseInputLinePlainTextIsChat(t *testing.T) {
	act, err := parseInputLine("hello there")
	if err != nil {
		t.Fatalf("parseInputLine() error: %v", err)
	}
	if act.Envelope == nil || act.Envelope.Type != envelope.KindChat {
		t.Fatalf("action = %+v, want chat envelope", act)
	}
}

func TestParseInputLineNick(t *testing.T) {
	act, err := parseInputLine("/nick bob")
	if err != nil {
		t.Fatalf("parseInputLine() error: %v", err)
	}
	cmd, err := envelope.ParseCmdNick(act.Envelope)
	if err != nil {
		t.Fatalf("ParseCmdNick() error: %v", err)
	}
	if cmd.Name != "bob" {
		t.Fatalf("Name = %q, want bob", cmd.Name)
	}
}

func TestParseInputLineNickRequiresArgument(t *testing.T) {
	if _, err := parseInputLine("/nick"); err == nil {
		t.Fatalf("expected error for /nick with no argument")
	}
}

func TestParseInputLineJoin(t *testing.T) {
	act, err := parseInputLine("/join general")
	if err != nil {
		t.Fatalf("parseInputLine() error: %v", err)
	}
	cmd, err := envelope.ParseCmdJoin(act.Envelope)
	if err != nil {
		t.Fatalf("ParseCmdJoin() error: %v", err)
	}
	if cmd.Room != "general" {
		t.Fatalf("Room = %q, want general", cmd.Room)
	}
}

func TestParseInputLineSend(t *testing.T) {
	act, err := parseInputLine("/send ./photo.png")
	if err != nil {
		t.Fatalf("parseInputLine() error: %v", err)
	}
	if act.SendFile != "./photo.png" {
		t.Fatalf("SendFile = %q", act.SendFile)
	}
}

func TestParseInputLineClearAndHelp(t *testing.T) {
	act, err := parseInputLine("/clear")
	if err != nil || !act.Clear {
		t.Fatalf("parseInputLine(/clear) = %+v, %v", act, err)
	}
	act, err = parseInputLine("/help")
	if err != nil || act.Help == "" {
		t.Fatalf("parseInputLine(/help) = %+v, %v", act, err)
	}
}

func TestParseInputLineQuit(t *testing.T) {
	act, err := parseInputLine("/quit")
	if err != nil {
		t.Fatalf("parseInputLine() error: %v", err)
	}
	if act.Envelope == nil || act.Envelope.Type != envelope.KindCmdQuit {
		t.Fatalf("action = %+v, want cmd-quit envelope", act)
	}
}

func TestParseInputLineUnknownCommand(t *testing.T) {
	if _, err := parseInputLine("/bogus"); err == nil {
		t.Fatalf("expected error for unknown command")
	}
}
