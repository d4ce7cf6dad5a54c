// Package chatsvc composes the frame/envelope/crypto/session/dispatch
// packages into the running server (spec §4.7, §4.16). The error
// taxonomy shared across the session lifecycle (spec §7) lives in
// pkg/dispatch as Kind/ChatError, since dispatch is both the taxonomy's
// primary producer and a dependency of this package.
package chatsvc

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/backkem/cmdchat/pkg/config"
	"github.com/backkem/cmdchat/pkg/dispatch"
	"github.com/backkem/cmdchat/pkg/session"
	"github.com/backkem/cmdchat/pkg/transport"
	"github.com/pion/logging"
)

// Server is the composition root: it wires the session registry, the
// dispatcher, the TCP transport, and (optionally) metrics into a single
// runnable chat relay (spec §4.7, §4.16).
type Server struct {
	cfg     config.ServerConfig
	tokens  map[string]struct{}
	lf      logging.LoggerFactory
	log     logging.LeveledLogger
	metrics *Metrics

	registry   *session.Registry
	dispatcher *dispatch.Dispatcher
	listener   *transport.Listener
}

// New builds a Server. tokens is the set of valid bearer tokens for the
// hello handshake; an empty set disables auth. loggerFactory scopes
// loggers the way the rest of the codebase does (nil uses pion/logging's
// default factory). metrics may be nil.
func New(cfg config.ServerConfig, tokens map[string]struct{}, loggerFactory logging.LoggerFactory, metrics *Metrics) *Server {
	if loggerFactory == nil {
		loggerFactory = logging.NewDefaultLoggerFactory()
	}
	reg := session.NewRegistry()
	log := loggerFactory.NewLogger("chatsvc")

	s := &Server{
		cfg:      cfg,
		tokens:   tokens,
		lf:       loggerFactory,
		log:      log,
		metrics:  metrics,
		registry: reg,
	}

	s.dispatcher = dispatch.New(dispatch.Config{
		Tokens:            tokens,
		Registry:          reg,
		HeartbeatInterval: cfg.HeartbeatInterval,
		HeartbeatTimeout:  cfg.HeartbeatTimeout,
		Log:               loggerFactory.NewLogger("dispatch"),
		OnSessionStart: func(*session.Session) {
			if metrics != nil {
				metrics.SessionStarted(context.Background())
			}
		},
		OnSessionEnd: func(*session.Session) {
			if metrics != nil {
				metrics.SessionEnded(context.Background())
			}
		},
		OnBytesRelayed: func(n int64) {
			if metrics != nil {
				metrics.BytesRelayed(context.Background(), n)
			}
		},
	})

	return s
}

// Start binds the listener and begins accepting connections. It returns
// once the listener is bound; connections are served on background
// goroutines owned by the transport.Listener.
func (s *Server) Start() error {
	var tlsConfig *tls.Config
	if s.cfg.TLSCertFile != "" {
		cert, err := tls.LoadX509KeyPair(s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
		if err != nil {
			return dispatch.NewError(dispatch.KindConfig, err)
		}
		tlsConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
	}

	l, err := transport.NewListener(transport.Config{
		ListenAddr: s.cfg.ListenAddr,
		TLSConfig:  tlsConfig,
		ConnHandler: func(conn net.Conn) {
			s.dispatcher.Serve(context.Background(), conn)
		},
		LoggerFactory: s.lf,
	})
	if err != nil {
		return dispatch.NewError(dispatch.KindConfig, err)
	}
	s.listener = l

	if err := l.Start(); err != nil {
		return dispatch.NewError(dispatch.KindIO, err)
	}

	if s.cfg.MetricsInterval > 0 {
		go s.reportLoop(s.cfg.MetricsInterval)
	}

	s.log.Infof("listening on %s", l.Addr())
	return nil
}

// Stop closes the listener. In-flight sessions are left to their own
// dispatcher-driven drain/termination; Stop does not wait for them.
func (s *Server) Stop() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Stop()
}

// Addr returns the listener's bound address. Only valid after Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// reportLoop periodically logs registry occupancy (spec §4.16's
// --metrics-interval). It runs until the process exits: Stop does not
// end it, and there is no cancellation channel.
func (s *Server) reportLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		s.log.Infof("sessions=%d rooms=%d", s.registry.Count(), s.registry.RoomCount())
	}
}
