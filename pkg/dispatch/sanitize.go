// Package dispatch implements the server-side message dispatch state
// machine: handshake, reader/writer/heartbeat tasks, and broadcast
// (spec §4.3, §4.7).
package dispatch

import (
	"strings"
	"unicode"
)

const (
	maxNameLen = 32
	maxRoomLen = 32
	maxChatLen = 4096
)

// SanitizeName implements spec §4.4: strip control chars, keep
// [A-Za-z0-9 _-], lowercase, trim to 32 chars, empty becomes "anonymous".
func SanitizeName(raw string) string {
	return sanitize(raw, true, "anonymous", maxNameLen)
}

// SanitizeRoom implements spec §4.4: same as SanitizeName but disallows
// spaces, empty becomes "lobby".
func SanitizeRoom(raw string) string {
	return sanitize(raw, false, "lobby", maxRoomLen)
}

func sanitize(raw string, allowSpace bool, fallback string, maxLen int) string {
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsControl(r) {
			continue
		}
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(unicode.ToLower(r))
		case r == ' ' && allowSpace:
			b.WriteRune(r)
		}
	}
	out := b.String()
	if len(out) > maxLen {
		out = out[:maxLen]
	}
	if out == "" {
		return fallback
	}
	return out
}

// SanitizeChatText implements spec §4.4: control chars other than
// newline and tab are stripped, invalid UTF-8 bytes are replaced with
// U+FFFD, and the result is cut to at most 4096 bytes without splitting
// a character, so it is always valid UTF-8.
func SanitizeChatText(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r != '\n' && r != '\t' && unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	out := b.String()
	if len(out) > maxChatLen {
		out = strings.ToValidUTF8(out[:maxChatLen], "")
	}
	return out
}
