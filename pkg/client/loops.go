package client

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/backkem/cmdchat/pkg/envelope"
	"github.com/backkem/cmdchat/pkg/frame"
	"github.com/backkem/cmdchat/pkg/transfer"
	"github.com/google/uuid"
)

// receiveLoop reads, decrypts, and renders every envelope the server
// sends, and answers pings (spec §4.7's client-side mirror of the
// server's heartbeat).
func (c *Client) receiveLoop(ctx context.Context, conn net.Conn, sess *clientSession, terminate func(error, bool)) {
	fr := frame.NewReader(conn)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		payload, err := fr.ReadFrame()
		if err != nil {
			terminate(err, false)
			return
		}

		plaintext, err := sess.codec.Decrypt(payload)
		if err != nil {
			terminate(fmt.Errorf("decrypt: %w", err), false)
			return
		}

		env, err := envelope.Decode(plaintext)
		if err != nil {
			terminate(fmt.Errorf("decode: %w", err), false)
			return
		}

		switch env.Type {
		case envelope.KindPing:
			ping, perr := envelope.ParsePing(env)
			if perr == nil {
				pong := envelope.Pong{Nonce: ping.Nonce}.ToEnvelope()
				if !enqueue(ctx, sess, pong) {
					return
				}
			}
			continue
		case envelope.KindSessionInit:
			continue
		case envelope.KindFileStart:
			if err := c.handleFileStart(env); err != nil && c.log != nil {
				c.log.Warnf("file-start: %v", err)
			}
		case envelope.KindFileChunk:
			if err := c.handleFileChunk(env); err != nil && c.log != nil {
				c.log.Warnf("file-chunk: %v", err)
			}
		}

		if c.history != nil && env.Type == envelope.KindChat {
			_ = c.history.Append(plaintext)
		}
		if err := c.renderer.Render(env); err != nil && c.log != nil {
			c.log.Warnf("render error: %v", err)
		}
	}
}

// inputLoop reads lines from the terminal and turns them into outbound
// traffic: chat/command envelopes over the wire, or local actions like
// /clear and /help (spec §4.1).
func (c *Client) inputLoop(ctx context.Context, conn net.Conn, sess *clientSession, terminate func(error, bool)) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		for c.in.Scan() {
			lines <- c.in.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				terminate(io.EOF, true)
				return
			}
			if line == "" {
				continue
			}

			act, err := parseInputLine(line)
			if err != nil {
				fmt.Fprintf(c.out, "! %v\n", err)
				continue
			}

			switch {
			case act.Clear:
				fmt.Fprint(c.out, "\033[H\033[2J")
			case act.Help != "":
				fmt.Fprintln(c.out, act.Help)
			case act.SendFile != "":
				if err := c.sendFile(ctx, sess, act.SendFile); err != nil {
					fmt.Fprintf(c.out, "! send failed: %v\n", err)
				}
			case act.Envelope != nil:
				if !enqueue(ctx, sess, act.Envelope) {
					return
				}
				if act.Envelope.Type == envelope.KindCmdQuit {
					terminate(nil, true)
					return
				}
			}
		}
	}
}

// sendFile chunks path into transfer.ChunkSize pieces and emits
// file-start, the chunk sequence, and relies on the server to emit
// file-end to the other room members once it observes the final chunk
// (spec §4.6 S6).
func (c *Client) sendFile(ctx context.Context, sess *clientSession, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	size := uint64(info.Size())
	if size > transfer.MaxSize {
		return fmt.Errorf("file exceeds %d bytes", transfer.MaxSize)
	}

	totalChunks := (size + transfer.ChunkSize - 1) / transfer.ChunkSize
	if totalChunks == 0 {
		totalChunks = 1
	}
	transferID := uuid.NewString()

	start := envelope.FileStart{
		TransferID:  transferID,
		Filename:    filepath.Base(path),
		Size:        size,
		TotalChunks: totalChunks,
	}.ToEnvelope()
	if !enqueue(ctx, sess, start) {
		return ctx.Err()
	}

	buf := make([]byte, transfer.ChunkSize)
	for index := uint64(0); index < totalChunks; index++ {
		n, rerr := io.ReadFull(f, buf)
		if rerr != nil && rerr != io.ErrUnexpectedEOF && rerr != io.EOF {
			return rerr
		}
		chunk := buf[:n]

		env := envelope.FileChunk{TransferID: transferID, Index: index, Data: chunk}.ToEnvelope()
		if !enqueue(ctx, sess, env) {
			return ctx.Err()
		}
		// Pace sends to stay under the server's rate limit (spec §4.5):
		// 12 events/5s allows one send every ~417ms; 450ms keeps margin.
		time.Sleep(450 * time.Millisecond)
	}

	return nil
}

// enqueue hands env to sess's outbound writer, blocking while the queue
// is full to apply backpressure (--buffer-size). It returns false if ctx
// is canceled first.
func enqueue(ctx context.Context, sess *clientSession, env *envelope.Envelope) bool {
	select {
	case sess.outbox <- env:
		return true
	case <-ctx.Done():
		return false
	}
}

// writeLoop drains sess.outbox and writes each envelope to the wire,
// mirroring the server's per-session writer task (spec §4.7).
func (c *Client) writeLoop(ctx context.Context, conn net.Conn, sess *clientSession, terminate func(error, bool)) {
	fw := frame.NewWriter(conn)
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-sess.outbox:
			ciphertext, err := sess.codec.Encrypt(env.Encode())
			if err != nil {
				terminate(err, false)
				return
			}
			if err := fw.WriteFrame(ciphertext); err != nil {
				terminate(err, false)
				return
			}
		}
	}
}
