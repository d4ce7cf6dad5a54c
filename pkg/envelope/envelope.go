// Package envelope implements the structured message envelope exchanged
// between cmdchat clients and the server once placed inside a frame
// (see pkg/frame).
//
// Envelopes are serialized as a self-describing, newline-delimited
// key=value text record terminated by a blank line:
//
//	type=chat
//	room=lobby
//	sender=alice
//	seq=0
//	text=hello world
//	ts=1706000000000
//
// The type line comes first; the other keys follow in sorted order.
//
// Values that contain '\r', '\n', or '%' are percent-escaped so the
// record stays line-oriented; binary payloads (file chunk data) are
// base64-encoded before being placed in a value. This is the one
// self-describing text encoding pinned for this protocol, per spec §6
// and §9 Open Question (b).
package envelope

import (
	"sort"
	"strconv"
	"strings"
)

// Envelope is an untyped key/value record tagged with a Kind.
type Envelope struct {
	Type   Kind
	Fields map[string]string
}

// New creates an empty Envelope of the given kind.
func New(kind Kind) *Envelope {
	return &Envelope{Type: kind, Fields: make(map[string]string)}
}

// SetString sets a string field.
func (e *Envelope) SetString(key, value string) *Envelope {
	e.Fields[key] = value
	return e
}

// SetUint sets an unsigned integer field.
func (e *Envelope) SetUint(key string, value uint64) *Envelope {
	e.Fields[key] = strconv.FormatUint(value, 10)
	return e
}

// SetInt sets a signed integer field.
func (e *Envelope) SetInt(key string, value int64) *Envelope {
	e.Fields[key] = strconv.FormatInt(value, 10)
	return e
}

// SetBool sets a boolean field.
func (e *Envelope) SetBool(key string, value bool) *Envelope {
	e.Fields[key] = strconv.FormatBool(value)
	return e
}

// String returns a field's raw value and whether it was present.
func (e *Envelope) String(key string) (string, bool) {
	v, ok := e.Fields[key]
	return v, ok
}

// RequireString returns a field's value, or ErrMissingField if absent.
func (e *Envelope) RequireString(key string) (string, error) {
	v, ok := e.Fields[key]
	if !ok {
		return "", ErrMissingField
	}
	return v, nil
}

// RequireUint parses a field as an unsigned integer.
func (e *Envelope) RequireUint(key string) (uint64, error) {
	v, ok := e.Fields[key]
	if !ok {
		return 0, ErrMissingField
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, ErrInvalidField
	}
	return n, nil
}

// RequireInt parses a field as a signed integer.
func (e *Envelope) RequireInt(key string) (int64, error) {
	v, ok := e.Fields[key]
	if !ok {
		return 0, ErrMissingField
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, ErrInvalidField
	}
	return n, nil
}

// OptString returns a field's value, or def if absent.
func (e *Envelope) OptString(key, def string) string {
	if v, ok := e.Fields[key]; ok {
		return v
	}
	return def
}

// Encode serializes the envelope to its wire text form.
func (e *Envelope) Encode() []byte {
	var b strings.Builder
	b.WriteString("type=")
	b.WriteString(escape(string(e.Type)))
	b.WriteByte('\n')

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(escape(e.Fields[k]))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')

	return []byte(b.String())
}

// Decode parses a wire text record into an Envelope.
func Decode(data []byte) (*Envelope, error) {
	text := string(data)
	if !strings.HasSuffix(text, "\n\n") {
		return nil, ErrUnterminated
	}
	text = strings.TrimSuffix(text, "\n\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil, ErrMissingType
	}

	lines := strings.Split(text, "\n")
	e := &Envelope{Fields: make(map[string]string)}

	for _, line := range lines {
		if line == "" {
			continue
		}
		idx := strings.IndexByte(line, '=')
		if idx < 0 {
			return nil, ErrMalformedRecord
		}
		key := line[:idx]
		value := unescape(line[idx+1:])

		if key == "type" {
			e.Type = Kind(value)
			continue
		}
		e.Fields[key] = value
	}

	if e.Type == "" {
		return nil, ErrMissingType
	}

	return e, nil
}

// escape percent-encodes '%', '\r', and '\n' so a value never breaks the
// line-oriented record framing.
func escape(s string) string {
	if !strings.ContainsAny(s, "%\r\n") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%':
			b.WriteString("%25")
		case '\r':
			b.WriteString("%0D")
		case '\n':
			b.WriteString("%0A")
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// unescape reverses escape. Malformed escape sequences are passed through
// verbatim rather than rejected, matching the spec's tolerant-receiver
// stance on unknown content.
func unescape(s string) string {
	if !strings.ContainsRune(s, '%') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			switch s[i : i+3] {
			case "%25":
				b.WriteByte('%')
				i += 2
				continue
			case "%0D":
				b.WriteByte('\r')
				i += 2
				continue
			case "%0A":
				b.WriteByte('\n')
				i += 2
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
