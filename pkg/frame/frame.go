// Package frame implements the length-prefixed wire framing used between
// cmdchat clients and the server: a 4-byte big-endian unsigned length
// followed by that many opaque payload bytes.
package frame

import (
	"encoding/binary"
	"io"
)

const (
	// LengthPrefixSize is the size in bytes of the frame length prefix.
	LengthPrefixSize = 4

	// MaxPayloadSize is the maximum allowed frame payload size.
	MaxPayloadSize = 65536
)

// Reader reads length-prefixed frames from a byte stream.
type Reader struct {
	r io.Reader
}

// NewReader creates a frame Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// ReadFrame reads one frame's payload from the stream.
//
// A clean close (io.EOF) is only legal between frames, i.e. when no bytes
// of the length prefix have yet been read. An EOF encountered mid-length
// or mid-payload is reported as ErrStreamReadFailed, per spec §4.1.
func (r *Reader) ReadFrame() ([]byte, error) {
	var lenBuf [LengthPrefixSize]byte
	if _, err := io.ReadFull(r.r, lenBuf[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, ErrStreamReadFailed
	}

	length := binary.BigEndian.Uint32(lenBuf[:])
	if length > MaxPayloadSize {
		return nil, ErrMessageTooLong
	}
	if length == 0 {
		return []byte{}, nil
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		return nil, ErrStreamReadFailed
	}

	return payload, nil
}

// Writer writes length-prefixed frames to a byte stream.
type Writer struct {
	w io.Writer
}

// NewWriter creates a frame Writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteFrame writes payload as a single length-prefixed frame.
func (w *Writer) WriteFrame(payload []byte) error {
	if len(payload) > MaxPayloadSize {
		return ErrMessageTooLong
	}

	var lenBuf [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))

	if _, err := w.w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.w.Write(payload)
	return err
}

// Encode returns payload encoded with its length prefix, without writing
// it anywhere, for callers that need the raw bytes. The client's history
// file does not use it; it writes its records through Writer.WriteFrame.
func Encode(payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, ErrMessageTooLong
	}
	buf := make([]byte, LengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(buf[:LengthPrefixSize], uint32(len(payload)))
	copy(buf[LengthPrefixSize:], payload)
	return buf, nil
}
