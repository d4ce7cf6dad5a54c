// Package client implements the cmdchat client: handshake, the
// input/receive tasks, reconnect-with-backoff, and optional encrypted
// history (spec §4.1, §4.3, §4.7, §6.1).
package client

import (
	"bufio"
	"context"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/backkem/cmdchat/pkg/config"
	"github.com/backkem/cmdchat/pkg/crypto"
	"github.com/backkem/cmdchat/pkg/dispatch"
	"github.com/backkem/cmdchat/pkg/envelope"
	"github.com/backkem/cmdchat/pkg/frame"
	"github.com/backkem/cmdchat/pkg/render"
	"github.com/backkem/cmdchat/pkg/transport"
	"github.com/cenkalti/backoff"
	"github.com/pion/logging"
)

// Client drives one logical chat session for the process lifetime,
// including any number of reconnects after a dropped connection.
type Client struct {
	cfg      config.ClientConfig
	priv     *rsa.PrivateKey
	renderer render.Renderer
	history  *history
	log      logging.LeveledLogger
	in       *bufio.Scanner
	out      io.Writer

	// transfers tracks in-progress inbound file reassembly, owned
	// exclusively by receiveLoop (single-writer, per spec §5's
	// session-local state discipline).
	transfers map[string]*inboundTransfer
}

// New constructs a Client. in/out default to os.Stdin/os.Stdout when nil,
// letting tests substitute pipes.
func New(cfg config.ClientConfig, log logging.LeveledLogger, in io.Reader, out io.Writer) (*Client, error) {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}

	priv, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("generate client keypair: %w", err)
	}

	var h *history
	if cfg.HistoryFile != "" {
		h, err = openHistory(cfg.HistoryFile, cfg.HistoryPassphrase)
		if err != nil {
			return nil, err
		}
	}

	return &Client{
		cfg:      cfg,
		priv:     priv,
		renderer: render.New(render.Mode(cfg.RenderMode), out),
		history:  h,
		log:      log,
		in:       bufio.NewScanner(in),
		out:      out,
	}, nil
}

// Close releases the client's resources (currently: the history file).
func (c *Client) Close() error {
	if c.history != nil {
		return c.history.Close()
	}
	return nil
}

// Run connects to the server and services the session until ctx is
// canceled, the user issues /quit, or reconnection after a dropped
// connection gives up (spec's reconnect-with-backoff requirement). It
// returns nil on a clean /quit or ctx cancellation.
func (c *Client) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = c.cfg.ReconnectMaxElapsed

	for {
		if ctx.Err() != nil {
			return nil
		}

		quit, connected, runErr := c.runOnce(ctx)
		if quit || ctx.Err() != nil {
			return nil
		}

		var cfgErr *dispatch.ChatError
		if errors.As(runErr, &cfgErr) && cfgErr.Kind == dispatch.KindConfig {
			return runErr
		}

		if connected {
			// A session that got far enough to handshake and later
			// dropped is treated as a fresh failure, not a continuation
			// of whatever backoff a prior dial failure had grown to.
			b.Reset()
		}
		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return fmt.Errorf("giving up reconnecting: %w", runErr)
		}
		if !c.cfg.Quiet {
			fmt.Fprintf(c.out, "* disconnected (%v), reconnecting in %s\n", runErr, wait.Round(time.Second))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// runOnce dials once, handshakes, and services the connection until it
// ends. quit is true on a clean user-initiated /quit; connected reports
// whether the handshake completed before the connection ended; err is
// the cause of any other disconnect (the caller decides whether to
// reconnect).
func (c *Client) runOnce(ctx context.Context) (quit, connected bool, err error) {
	tlsConfig, tlsErr := c.buildTLSConfig()
	if tlsErr != nil {
		return false, false, tlsErr
	}

	var conn net.Conn
	var dialErr error
	if tlsConfig != nil {
		conn, dialErr = transport.DialTLS(c.cfg.ServerAddr, tlsConfig)
	} else {
		conn, dialErr = transport.Dial(c.cfg.ServerAddr)
	}
	if dialErr != nil {
		return false, false, dialErr
	}
	defer conn.Close()

	sess, hsErr := c.handshake(conn)
	if hsErr != nil {
		return false, false, hsErr
	}
	if !c.cfg.Quiet {
		fmt.Fprintf(c.out, "* connected as %s to %s (session %d)\n", c.cfg.Name, c.cfg.Room, sess.clientID)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var once sync.Once
	var endErr error
	var userQuit bool
	terminate := func(e error, isQuit bool) {
		once.Do(func() {
			endErr = e
			userQuit = isQuit
			cancel()
		})
	}

	sess.outbox = make(chan *envelope.Envelope, c.cfg.BufferSize)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); c.receiveLoop(runCtx, conn, sess, terminate) }()
	go func() { defer wg.Done(); c.inputLoop(runCtx, conn, sess, terminate) }()
	go func() { defer wg.Done(); c.writeLoop(runCtx, conn, sess, terminate) }()

	<-runCtx.Done()
	wg.Wait()
	crypto.Zeroize(sess.sessKey)

	if ctx.Err() != nil {
		return false, true, nil
	}
	return userQuit, true, endErr
}

// clientSession is a connection's post-handshake cryptographic and
// identity state.
type clientSession struct {
	clientID uint64
	codec    *crypto.Codec
	sessKey  []byte

	// outbox is the bounded outbound envelope queue drained by
	// writeLoop (spec §6's --buffer-size), mirroring the server's
	// per-session send queue/writer task pattern.
	outbox chan *envelope.Envelope
}

// buildTLSConfig turns the client's --tls/--tls-insecure/--ca-file
// flags into a *tls.Config, or nil if TLS is disabled (spec §6, §4.9).
func (c *Client) buildTLSConfig() (*tls.Config, error) {
	if !c.cfg.TLS {
		return nil, nil
	}
	tc := &tls.Config{InsecureSkipVerify: c.cfg.TLSInsecure}
	if c.cfg.CAFile != "" {
		pem, err := os.ReadFile(c.cfg.CAFile)
		if err != nil {
			return nil, dispatch.NewError(dispatch.KindConfig, fmt.Errorf("read ca-file: %w", err))
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, dispatch.NewError(dispatch.KindConfig, fmt.Errorf("ca-file %s: no certificates found", c.cfg.CAFile))
		}
		tc.RootCAs = pool
	}
	return tc, nil
}

// handshake drives the client side of the wire protocol's handshake
// (spec §4.3): send hello, receive session-init, unwrap the session key.
func (c *Client) handshake(conn net.Conn) (*clientSession, error) {
	pub := crypto.EncodePublicKey(&c.priv.PublicKey)
	hello := envelope.Hello{
		PeerPublicKey: pub,
		Name:          c.cfg.Name,
		Room:          c.cfg.Room,
		Token:         c.cfg.Token,
	}.ToEnvelope()

	fw := frame.NewWriter(conn)
	if err := fw.WriteFrame(hello.Encode()); err != nil {
		return nil, fmt.Errorf("send hello: %w", err)
	}

	fr := frame.NewReader(conn)
	payload, err := fr.ReadFrame()
	if err != nil {
		return nil, fmt.Errorf("read session-init: %w", err)
	}
	env, err := envelope.Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("decode session-init: %w", err)
	}
	if env.Type == envelope.KindError {
		ee, _ := envelope.ParseError(env)
		return nil, fmt.Errorf("server rejected handshake: %s %s", ee.Code, ee.Message)
	}
	if env.Type != envelope.KindSessionInit {
		return nil, fmt.Errorf("unexpected envelope %q during handshake", env.Type)
	}

	si, err := envelope.ParseSessionInit(env)
	if err != nil {
		return nil, fmt.Errorf("parse session-init: %w", err)
	}

	sessKey, err := crypto.UnwrapSessionKey(c.priv, si.WrappedKey)
	if err != nil {
		return nil, fmt.Errorf("unwrap session key: %w", err)
	}

	codec, err := crypto.NewCodec(sessKey)
	if err != nil {
		return nil, err
	}

	return &clientSession{clientID: si.ClientID, codec: codec, sessKey: sessKey}, nil
}
