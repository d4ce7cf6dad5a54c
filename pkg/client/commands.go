package client

import (
	"fmt"
	"strings"

	"github.com/backkem/cmdchat/pkg/envelope"
)

const helpText = `commands:
  /nick NAME     change display name
  /join ROOM     switch rooms
  /send PATH     send a file to the current room
  /clear         clear the screen
  /help          show this text
  /quit          disconnect`

// action is what one line of user input resolves to: either a single
// Envelope to send, or a request the client handles locally without
// touching the wire.
type action struct {
	Envelope *envelope.Envelope
	SendFile string // non-empty for /send
	Clear    bool
	Help     string // non-empty: text to print locally
}

// parseInputLine turns one line of user input into an action (spec
// §4.1, §6). Lines beginning with "/" are commands; anything else is a
// chat message. Unknown commands and malformed arguments are returned as
// an error, which the caller prints locally.
func parseInputLine(line string) (action, error) {
	if !strings.HasPrefix(line, "/") {
		return action{Envelope: envelope.Chat{Text: line}.ToEnvelope()}, nil
	}

	fields := strings.SplitN(line, " ", 2)
	cmd := fields[0]
	var arg string
	if len(fields) == 2 {
		arg = strings.TrimSpace(fields[1])
	}

	switch cmd {
	case "/nick":
		if arg == "" {
			return action{}, fmt.Errorf("usage: /nick <name>")
		}
		return action{Envelope: envelope.CmdNick{Name: arg}.ToEnvelope()}, nil

	case "/join":
		if arg == "" {
			return action{}, fmt.Errorf("usage: /join <room>")
		}
		return action{Envelope: envelope.CmdJoin{Room: arg}.ToEnvelope()}, nil

	case "/send":
		if arg == "" {
			return action{}, fmt.Errorf("usage: /send <path>")
		}
		return action{SendFile: arg}, nil

	case "/clear":
		return action{Clear: true}, nil

	case "/help":
		return action{Help: helpText}, nil

	case "/quit":
		return action{Envelope: envelope.CmdQuit{}.ToEnvelope()}, nil

	default:
		return action{}, fmt.Errorf("unknown command %q (try /help)", cmd)
	}
}
