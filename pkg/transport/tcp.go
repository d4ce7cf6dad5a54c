// Package transport provides the TCP listener cmdchat runs its framed
// protocol over (spec §4.1, §6). Unlike a datagram-multiplexing
// transport, each accepted connection is handed to the ConnHandler
// exactly once and owned exclusively by it for the connection's
// lifetime — one net.Conn is one session, never shared or re-dialed by
// address.
package transport

import (
	"crypto/tls"
	"net"
	"sync"

	"github.com/pion/logging"
)

// ConnHandler is invoked once per accepted connection, in its own
// goroutine. The handler owns conn until it returns; returning closes
// nothing on the caller's behalf beyond what Listener.Stop does at
// shutdown.
type ConnHandler func(conn net.Conn)

// Listener accepts TCP connections and dispatches each to a ConnHandler.
type Listener struct {
	listener net.Listener
	handler  ConnHandler
	closeCh  chan struct{}
	wg       sync.WaitGroup
	log      logging.LeveledLogger

	mu      sync.Mutex
	started bool
	closed  bool
}

// Config configures a Listener.
type Config struct {
	// Listener is an optional pre-existing net.Listener to use (e.g. one
	// bound to an ephemeral port for tests). If nil, ListenAddr is used.
	Listener net.Listener

	// ListenAddr is the address to listen on, e.g. ":7340". Ignored if
	// Listener is set.
	ListenAddr string

	// TLSConfig, if non-nil, wraps the bound listener with
	// tls.NewListener so every accepted conn is already a TLS conn
	// (spec §6: --certfile/--keyfile).
	TLSConfig *tls.Config

	// ConnHandler is called for each accepted connection. Required.
	ConnHandler ConnHandler

	// LoggerFactory creates the listener's logger. Nil disables logging.
	LoggerFactory logging.LoggerFactory
}

// NewListener creates a Listener from Config, binding a new net.Listener
// if one was not supplied.
func NewListener(cfg Config) (*Listener, error) {
	if cfg.ConnHandler == nil {
		return nil, ErrNoHandler
	}

	l := &Listener{
		listener: cfg.Listener,
		handler:  cfg.ConnHandler,
		closeCh:  make(chan struct{}),
	}
	if cfg.LoggerFactory != nil {
		l.log = cfg.LoggerFactory.NewLogger("transport-tcp")
	}

	if l.listener == nil {
		addr := cfg.ListenAddr
		if addr == "" {
			addr = ":0"
		}
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, err
		}
		l.listener = ln
	}

	if cfg.TLSConfig != nil {
		l.listener = tls.NewListener(l.listener, cfg.TLSConfig)
	}

	return l, nil
}

// Start begins accepting connections in a background goroutine.
func (l *Listener) Start() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	if l.started {
		l.mu.Unlock()
		return ErrAlreadyStarted
	}
	l.started = true
	l.mu.Unlock()

	if l.log != nil {
		l.log.Infof("listening on %s", l.listener.Addr())
	}

	l.wg.Add(1)
	go l.acceptLoop()
	return nil
}

// Stop closes the underlying listener and waits for the accept loop to
// exit. It does not close connections already handed to ConnHandler;
// each handler is responsible for its own connection's lifetime.
func (l *Listener) Stop() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.closed = true
	l.mu.Unlock()

	if l.log != nil {
		l.log.Info("stopping listener")
	}

	close(l.closeCh)
	l.listener.Close()
	l.wg.Wait()
	return nil
}

// Addr returns the address the listener is bound to.
func (l *Listener) Addr() net.Addr {
	return l.listener.Addr()
}

func (l *Listener) acceptLoop() {
	defer l.wg.Done()

	for {
		conn, err := l.listener.Accept()
		if err != nil {
			select {
			case <-l.closeCh:
				return
			default:
				if l.log != nil {
					l.log.Warnf("accept error: %v", err)
				}
				continue
			}
		}

		go l.handler(conn)
	}
}

// Dial opens an outbound TCP connection, used by the client to connect
// to a cmdchat server (spec §4.1).
func Dial(addr string) (net.Conn, error) {
	return net.Dial("tcp", addr)
}

// DialTLS opens an outbound TLS connection, used by the client when
// --tls is set (spec §6, §4.9: "connect (optionally via TLS)").
func DialTLS(addr string, cfg *tls.Config) (net.Conn, error) {
	return tls.Dial("tcp", addr, cfg)
}
