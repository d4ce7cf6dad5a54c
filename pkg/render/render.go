// Package render implements the client's abstract envelope sink (spec
// §4.9, §9): "Protocol-based renderer ... abstraction -> interface with
// a small, enumerated capability set: render(envelope)."
package render

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/backkem/cmdchat/pkg/envelope"
)

// Renderer consumes a decoded, decrypted Envelope and presents it to the
// user. Implementations must not block indefinitely: the client's
// receive loop calls Render synchronously for every inbound envelope.
type Renderer interface {
	Render(env *envelope.Envelope) error
}

// Mode names a concrete Renderer, matching the client's --renderer flag.
type Mode string

const (
	ModeRich     Mode = "rich"
	ModeMinimal  Mode = "minimal"
	ModeJSONLine Mode = "json"
)

// New constructs the Renderer for mode, writing to w.
func New(mode Mode, w io.Writer) Renderer {
	bw := bufio.NewWriter(w)
	switch mode {
	case ModeMinimal:
		return &minimalRenderer{w: bw}
	case ModeJSONLine:
		return &structuredRenderer{w: bw}
	default:
		return &richRenderer{w: bw}
	}
}

func flushAfter(bw *bufio.Writer, err error) error {
	if err != nil {
		return err
	}
	return bw.Flush()
}

// richRenderer is a human-friendly, multi-line presentation with
// timestamps and colorless prefixes.
type richRenderer struct {
	w *bufio.Writer
}

func (r *richRenderer) Render(env *envelope.Envelope) error {
	switch env.Type {
	case envelope.KindChat:
		c, err := envelope.ParseChat(env)
		if err != nil {
			return err
		}
		ts := time.UnixMilli(c.Ts).Format("15:04:05")
		_, err = fmt.Fprintf(r.w, "[%s] #%s %s: %s\n", ts, c.Room, c.Sender, c.Text)
		return flushAfter(r.w, err)

	case envelope.KindSystem:
		s, err := envelope.ParseSystem(env)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(r.w, "* %s\n", s.Text)
		return flushAfter(r.w, err)

	case envelope.KindError:
		e, err := envelope.ParseError(env)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(r.w, "! error: %s %s\n", e.Code, e.Message)
		return flushAfter(r.w, err)

	case envelope.KindFileStart:
		f, err := envelope.ParseFileStart(env)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(r.w, "* %s is sending %s (%d bytes)\n", f.Sender, f.Filename, f.Size)
		return flushAfter(r.w, err)

	case envelope.KindFileEnd:
		f, err := envelope.ParseFileEnd(env)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(r.w, "* transfer %s complete\n", f.TransferID)
		return flushAfter(r.w, err)

	default:
		return nil
	}
}

// minimalRenderer prints only chat text, no decoration, for piping.
type minimalRenderer struct {
	w *bufio.Writer
}

func (r *minimalRenderer) Render(env *envelope.Envelope) error {
	switch env.Type {
	case envelope.KindChat:
		c, err := envelope.ParseChat(env)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(r.w, "%s: %s\n", c.Sender, c.Text)
		return flushAfter(r.w, err)
	case envelope.KindSystem:
		s, err := envelope.ParseSystem(env)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(r.w, "%s\n", s.Text)
		return flushAfter(r.w, err)
	default:
		return nil
	}
}

// structuredRenderer emits one JSON object per line, regardless of kind.
type structuredRenderer struct {
	w *bufio.Writer
}

func (r *structuredRenderer) Render(env *envelope.Envelope) error {
	_, err := fmt.Fprintf(r.w, "{\"type\":%q", string(env.Type))
	if err != nil {
		return err
	}
	for k, v := range env.Fields {
		if _, err := fmt.Fprintf(r.w, ",%q:%q", k, v); err != nil {
			return err
		}
	}
	if _, err := r.w.WriteString("}\n"); err != nil {
		return err
	}
	return r.w.Flush()
}
