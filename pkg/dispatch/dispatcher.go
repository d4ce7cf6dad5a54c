package dispatch

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/backkem/cmdchat/pkg/envelope"
	"github.com/backkem/cmdchat/pkg/frame"
	"github.com/backkem/cmdchat/pkg/session"
	"github.com/backkem/cmdchat/pkg/transfer"
	"github.com/pion/logging"
)

// Default timing constants for the dispatcher (spec §4.7, §5).
const (
	HeartbeatInterval = 15 * time.Second
	HeartbeatTimeout  = 45 * time.Second
	DrainTimeout      = 2 * time.Second
)

// errQuit signals a clean session end requested by a cmd-quit envelope.
var errQuit = errors.New("dispatch: client requested quit")

// Config configures a Dispatcher.
type Config struct {
	Tokens            map[string]struct{}
	Registry          *session.Registry
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	DrainTimeout      time.Duration
	Log               logging.LeveledLogger

	// OnSessionStart/OnSessionEnd, if set, are called for metrics (spec
	// §4.15); they must not block.
	OnSessionStart func(*session.Session)
	OnSessionEnd   func(*session.Session)

	// OnBytesRelayed, if set, is called with the ciphertext frame size
	// after every successful write (spec §4.15's bytes-relayed counter).
	OnBytesRelayed func(n int64)
}

// Dispatcher drives the full per-connection lifecycle: handshake,
// reader/writer/heartbeat tasks, and termination (spec §4.7).
type Dispatcher struct {
	cfg Config
}

// New creates a Dispatcher, applying defaults for zero-valued timing fields.
func New(cfg Config) *Dispatcher {
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = HeartbeatInterval
	}
	if cfg.HeartbeatTimeout == 0 {
		cfg.HeartbeatTimeout = HeartbeatTimeout
	}
	if cfg.DrainTimeout == 0 {
		cfg.DrainTimeout = DrainTimeout
	}
	return &Dispatcher{cfg: cfg}
}

// Serve owns conn for its entire lifetime: handshake, operational
// message dispatch, and termination cleanup. It returns once the
// session has fully ended. Intended as a transport.ConnHandler.
func (d *Dispatcher) Serve(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	sess, err := Handshake(conn, HandshakeConfig{
		Tokens:   d.cfg.Tokens,
		Registry: d.cfg.Registry,
		Log:      d.cfg.Log,
	})
	if err != nil {
		if d.cfg.Log != nil {
			d.cfg.Log.Warnf("handshake failed: %v", err)
		}
		return
	}

	if d.cfg.OnSessionStart != nil {
		d.cfg.OnSessionStart(sess)
	}

	runCtx, cancel := context.WithCancel(ctx)
	var once sync.Once
	var termErr error
	terminate := func(err error) {
		once.Do(func() {
			termErr = err
			cancel()
		})
	}
	sess.SetTerminate(terminate)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); d.readLoop(runCtx, conn, sess, terminate) }()
	go func() { defer wg.Done(); d.writeLoop(runCtx, conn, sess, terminate) }()
	go func() { defer wg.Done(); d.heartbeatLoop(runCtx, sess, terminate) }()

	<-runCtx.Done()

	drained := make(chan struct{})
	go func() {
		wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(d.cfg.DrainTimeout):
		conn.Close()
		<-drained
	}

	d.cfg.Registry.Remove(sess.ClientID)
	sess.Close()

	if d.cfg.Log != nil {
		switch {
		case termErr == nil || errors.Is(termErr, errQuit):
			d.cfg.Log.Infof("session %d (%s) left", sess.ClientID, sess.Name())
		default:
			d.cfg.Log.Warnf("session %d (%s) terminated: %v", sess.ClientID, sess.Name(), termErr)
		}
	}

	BroadcastAll(d.cfg.Registry, sess.Room(), envelope.System{Text: sess.Name() + " left"}.ToEnvelope())

	if d.cfg.OnSessionEnd != nil {
		d.cfg.OnSessionEnd(sess)
	}
}

func (d *Dispatcher) readLoop(ctx context.Context, conn net.Conn, sess *session.Session, terminate func(error)) {
	fr := frame.NewReader(conn)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		payload, err := fr.ReadFrame()
		if err != nil {
			if err == io.EOF {
				terminate(nil)
			} else {
				terminate(NewError(KindIO, err))
			}
			return
		}

		plaintext, err := sess.Codec.Decrypt(payload)
		if err != nil {
			terminate(NewError(KindDecrypt, err))
			return
		}

		env, err := envelope.Decode(plaintext)
		if err != nil {
			terminate(NewError(KindProtocol, err))
			return
		}

		if err := d.handleEnvelope(sess, env); err != nil {
			terminate(err)
			return
		}
	}
}

func (d *Dispatcher) handleEnvelope(sess *session.Session, env *envelope.Envelope) error {
	reg := d.cfg.Registry

	switch env.Type {
	case envelope.KindChat:
		chat, err := envelope.ParseChat(env)
		if err != nil {
			return NewError(KindProtocol, err)
		}
		if !sess.RateWindow.Allow(time.Now()) {
			sess.Enqueue(envelope.Error{Code: "rate"}.ToEnvelope())
			return nil
		}
		text := SanitizeChatText(chat.Text)
		room := sess.Room()
		out := envelope.Chat{
			Sender: sess.Name(),
			Room:   room,
			Text:   text,
			Ts:     time.Now().UTC().UnixMilli(),
			Seq:    reg.NextRoomSeq(room),
		}
		BroadcastAll(reg, room, out.ToEnvelope())
		return nil

	case envelope.KindCmdNick:
		cmd, err := envelope.ParseCmdNick(env)
		if err != nil {
			return NewError(KindProtocol, err)
		}
		old := sess.Name()
		newName := SanitizeName(cmd.Name)
		sess.SetName(newName)
		BroadcastAll(reg, sess.Room(), envelope.System{Text: old + " is now " + newName}.ToEnvelope())
		return nil

	case envelope.KindCmdJoin:
		cmd, err := envelope.ParseCmdJoin(env)
		if err != nil {
			return NewError(KindProtocol, err)
		}
		newRoom := SanitizeRoom(cmd.Room)
		oldRoom := sess.Room()
		if newRoom == oldRoom {
			return nil
		}
		BroadcastExcept(reg, oldRoom, envelope.System{Text: sess.Name() + " left"}.ToEnvelope(), sess.ClientID)
		if err := reg.RenameRoom(sess.ClientID, newRoom); err != nil {
			return NewError(KindProtocol, err)
		}
		BroadcastExcept(reg, newRoom, envelope.System{Text: sess.Name() + " joined"}.ToEnvelope(), sess.ClientID)
		return nil

	case envelope.KindCmdQuit:
		return errQuit

	case envelope.KindFileStart:
		fs, err := envelope.ParseFileStart(env)
		if err != nil {
			return NewError(KindProtocol, err)
		}
		tr, err := transfer.New(fs.TransferID, sess.ClientID, fs.Filename, fs.Size, fs.TotalChunks)
		if err != nil {
			return NewError(KindTransfer, err)
		}
		if err := sess.Transfers.Start(tr); err != nil {
			return NewError(KindTransfer, err)
		}
		out := fs
		out.Sender = sess.Name()
		BroadcastExcept(reg, sess.Room(), out.ToEnvelope(), sess.ClientID)
		return nil

	case envelope.KindFileChunk:
		fc, err := envelope.ParseFileChunk(env)
		if err != nil {
			return NewError(KindProtocol, err)
		}
		if !sess.RateWindow.Allow(time.Now()) {
			sess.Enqueue(envelope.Error{Code: "rate"}.ToEnvelope())
			return nil
		}
		tr, err := sess.Transfers.Get(fc.TransferID)
		if err != nil {
			return NewError(KindTransfer, err)
		}
		done, err := tr.Accept(fc.Index, len(fc.Data))
		if err != nil {
			return NewError(KindTransfer, err)
		}
		BroadcastExcept(reg, sess.Room(), fc.ToEnvelope(), sess.ClientID)
		if done {
			sess.Transfers.Remove(fc.TransferID)
			BroadcastExcept(reg, sess.Room(), envelope.FileEnd{TransferID: fc.TransferID}.ToEnvelope(), sess.ClientID)
		}
		return nil

	case envelope.KindPong:
		pong, err := envelope.ParsePong(env)
		if err != nil {
			return NewError(KindProtocol, err)
		}
		_ = pong
		sess.SetLastPong(time.Now())
		return nil

	case envelope.KindPing:
		ping, err := envelope.ParsePing(env)
		if err != nil {
			return NewError(KindProtocol, err)
		}
		sess.Enqueue(envelope.Pong{Nonce: ping.Nonce}.ToEnvelope())
		return nil

	case envelope.KindFileEnd, envelope.KindError:
		if d.cfg.Log != nil {
			d.cfg.Log.Debugf("session %d: ignoring client-sent %s envelope", sess.ClientID, env.Type)
		}
		return nil

	default:
		if d.cfg.Log != nil {
			d.cfg.Log.Debugf("session %d: ignoring envelope of unexpected kind %q", sess.ClientID, env.Type)
		}
		return nil
	}
}

func (d *Dispatcher) writeLoop(ctx context.Context, conn net.Conn, sess *session.Session, terminate func(error)) {
	fw := frame.NewWriter(conn)
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-sess.SendQueue:
			data := env.Encode()
			ciphertext, err := sess.Codec.Encrypt(data)
			if err != nil {
				terminate(NewError(KindIO, err))
				return
			}
			if err := fw.WriteFrame(ciphertext); err != nil {
				terminate(NewError(KindIO, err))
				return
			}
			if d.cfg.OnBytesRelayed != nil {
				d.cfg.OnBytesRelayed(int64(len(ciphertext)))
			}
		}
	}
}

func (d *Dispatcher) heartbeatLoop(ctx context.Context, sess *session.Session, terminate func(error)) {
	ticker := time.NewTicker(d.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if time.Since(sess.LastPong()) > d.cfg.HeartbeatTimeout {
				terminate(NewError(KindTimeout, errHeartbeatTimeout))
				return
			}
			sess.Enqueue(envelope.Ping{Nonce: randomNonce()}.ToEnvelope())
		}
	}
}
