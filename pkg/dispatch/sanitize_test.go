package dispatch

import (
	"strings"
	"testing"
)

func TestSanitizeName(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Alice", "alice"},
		{"", "anonymous"},
		{"a!!l@i#c$e", "alice"},
		{"  spaced  name  ", "  spaced  name  "},
		{strings.Repeat("x", 40), strings.Repeat("x", 32)},
	}
	for _, c := range cases {
		if got := SanitizeName(c.in); got != c.want {
			t.Errorf("SanitizeName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSanitizeRoom(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Lobby", "lobby"},
		{"", "lobby"},
		{"my room", "myroom"},
		{"Den-42_x", "den-42_x"},
	}
	for _, c := range cases {
		if got := SanitizeRoom(c.in); got != c.want {
			t.Errorf("SanitizeRoom(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSanitizeChatTextStripsControlCharsKeepsNewlineTab(t *testing.T) {
	in := "hello\x00world\nwith\ttabs\x01"
	want := "helloworld\nwith\ttabs"
	if got := SanitizeChatText(in); got != want {
		t.Errorf("SanitizeChatText(%q) = %q, want %q", in, got, want)
	}
}

func TestSanitizeChatTextTruncatesToMaxLen(t *testing.T) {
	in := strings.Repeat("a", maxChatLen+100)
	got := SanitizeChatText(in)
	if len(got) != maxChatLen {
		t.Errorf("len(SanitizeChatText()) = %d, want %d", len(got), maxChatLen)
	}
}
