package dispatch

import (
	"net"
	"time"

	"github.com/backkem/cmdchat/pkg/crypto"
	"github.com/backkem/cmdchat/pkg/envelope"
	"github.com/backkem/cmdchat/pkg/frame"
	"github.com/backkem/cmdchat/pkg/session"
	"github.com/pion/logging"
)

// HandshakeTimeout bounds how long the server waits for the client's
// first frame (spec §4.3 step 1).
const HandshakeTimeout = 10 * time.Second

// HandshakeConfig configures Handshake. The server has no RSA keypair of
// its own: per spec §3/§4.2, the client generates the asymmetric
// keypair and the server only ever wraps the freshly generated session
// key with the client's public key.
type HandshakeConfig struct {
	Tokens   map[string]struct{} // empty/nil disables auth
	Registry *session.Registry
	Log      logging.LeveledLogger
}

// Handshake drives the server side of the AWAIT_HELLO state (spec
// §4.3): reads the plaintext hello, validates it, generates and wraps a
// session key, replies with session-init, and inserts the new Session
// into the registry and its room. On success the returned Session is
// already OPERATIONAL and Handshake has broadcast the join notice: the
// caller's only remaining job is to start the reader/writer/heartbeat
// tasks.
func Handshake(conn net.Conn, cfg HandshakeConfig) (*session.Session, error) {
	if err := conn.SetReadDeadline(time.Now().Add(HandshakeTimeout)); err != nil {
		return nil, NewError(KindIO, err)
	}

	fr := frame.NewReader(conn)
	payload, err := fr.ReadFrame()
	if err != nil {
		return nil, NewError(KindTimeout, err)
	}

	env, err := envelope.Decode(payload)
	if err != nil {
		return nil, NewError(KindProtocol, err)
	}
	if env.Type != envelope.KindHello {
		return nil, NewError(KindProtocol, envelope.ErrMissingType)
	}

	hello, err := envelope.ParseHello(env)
	if err != nil {
		return nil, NewError(KindProtocol, err)
	}

	if len(cfg.Tokens) > 0 {
		if _, ok := cfg.Tokens[hello.Token]; !ok {
			sendPlaintextError(conn, "auth", "")
			return nil, NewError(KindAuth, ErrBadToken)
		}
	}

	name := SanitizeName(hello.Name)
	room := SanitizeRoom(hello.Room)

	peerPub, err := crypto.ParsePublicKey(hello.PeerPublicKey)
	if err != nil {
		sendPlaintextError(conn, "handshake", "")
		return nil, NewError(KindProtocol, err)
	}

	sessionKey, err := crypto.GenerateSessionKey()
	if err != nil {
		return nil, NewError(KindIO, err)
	}
	defer crypto.Zeroize(sessionKey)

	wrapped, err := crypto.WrapSessionKey(peerPub, sessionKey)
	if err != nil {
		return nil, NewError(KindProtocol, err)
	}

	clientID := cfg.Registry.NextClientID()

	initEnv := envelope.SessionInit{
		WrappedKey: wrapped,
		ClientID:   clientID,
		ServerTime: time.Now().UTC().UnixMilli(),
	}.ToEnvelope()

	fw := frame.NewWriter(conn)
	if err := fw.WriteFrame(initEnv.Encode()); err != nil {
		return nil, NewError(KindIO, err)
	}

	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		return nil, NewError(KindIO, err)
	}

	s, err := session.New(session.Config{
		ClientID:      clientID,
		Name:          name,
		Room:          room,
		PeerPublicKey: hello.PeerPublicKey,
		SessionKey:    sessionKey,
	})
	if err != nil {
		return nil, NewError(KindProtocol, err)
	}

	if err := cfg.Registry.Insert(s); err != nil {
		return nil, NewError(KindProtocol, err)
	}

	BroadcastExcept(cfg.Registry, room, envelope.System{Text: name + " joined"}.ToEnvelope(), clientID)

	if cfg.Log != nil {
		cfg.Log.Infof("session %d (%s) joined %s", clientID, name, room)
	}

	return s, nil
}

// sendPlaintextError best-efforts a handshake-time error envelope before
// the caller closes the connection. Failures to write are ignored: the
// connection is being abandoned either way.
func sendPlaintextError(conn net.Conn, code, message string) {
	env := envelope.Error{Code: code, Message: message}.ToEnvelope()
	_ = frame.NewWriter(conn).WriteFrame(env.Encode())
}
