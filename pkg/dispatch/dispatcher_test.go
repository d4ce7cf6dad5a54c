package dispatch

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/backkem/cmdchat/pkg/crypto"
	"github.com/backkem/cmdchat/pkg/envelope"
	"github.com/backkem/cmdchat/pkg/frame"
	"github.com/backkem/cmdchat/pkg/session"
	"github.com/backkem/cmdchat/pkg/transport"
)

// testClient drives the wire protocol directly (no pkg/client dependency)
// so dispatcher behavior can be exercised in isolation.
type testClient struct {
	conn     net.Conn
	fr       *frame.Reader
	fw       *frame.Writer
	codec    *crypto.Codec
	clientID uint64
}

func connectTestClient(t *testing.T, addr, name, room, token string) *testClient {
	t.Helper()

	conn, err := transport.Dial(addr)
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}

	priv, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error: %v", err)
	}
	pub := crypto.EncodePublicKey(&priv.PublicKey)

	fw := frame.NewWriter(conn)
	fr := frame.NewReader(conn)

	hello := envelope.Hello{PeerPublicKey: pub, Name: name, Room: room, Token: token}.ToEnvelope()
	if err := fw.WriteFrame(hello.Encode()); err != nil {
		t.Fatalf("WriteFrame(hello) error: %v", err)
	}

	payload, err := fr.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame(session-init) error: %v", err)
	}
	env, err := envelope.Decode(payload)
	if err != nil {
		t.Fatalf("Decode(session-init) error: %v", err)
	}
	if env.Type == envelope.KindError {
		ee, _ := envelope.ParseError(env)
		t.Fatalf("handshake rejected: %s", ee.Code)
	}
	si, err := envelope.ParseSessionInit(env)
	if err != nil {
		t.Fatalf("ParseSessionInit() error: %v", err)
	}
	sessionKey, err := crypto.UnwrapSessionKey(priv, si.WrappedKey)
	if err != nil {
		t.Fatalf("UnwrapSessionKey() error: %v", err)
	}
	codec, err := crypto.NewCodec(sessionKey)
	if err != nil {
		t.Fatalf("NewCodec() error: %v", err)
	}

	return &testClient{conn: conn, fr: fr, fw: fw, codec: codec, clientID: si.ClientID}
}

func (tc *testClient) send(t *testing.T, env *envelope.Envelope) {
	t.Helper()
	ciphertext, err := tc.codec.Encrypt(env.Encode())
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	if err := tc.fw.WriteFrame(ciphertext); err != nil {
		t.Fatalf("WriteFrame() error: %v", err)
	}
}

func (tc *testClient) recv(t *testing.T) *envelope.Envelope {
	t.Helper()
	payload, err := tc.fr.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() error: %v", err)
	}
	plaintext, err := tc.codec.Decrypt(payload)
	if err != nil {
		t.Fatalf("Decrypt() error: %v", err)
	}
	env, err := envelope.Decode(plaintext)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	return env
}

// recvWithTimeout returns nil if nothing arrives within d.
func (tc *testClient) recvWithTimeout(t *testing.T, d time.Duration) *envelope.Envelope {
	t.Helper()
	tc.conn.SetReadDeadline(time.Now().Add(d))
	defer tc.conn.SetReadDeadline(time.Time{})
	payload, err := tc.fr.ReadFrame()
	if err != nil {
		return nil
	}
	plaintext, err := tc.codec.Decrypt(payload)
	if err != nil {
		t.Fatalf("Decrypt() error: %v", err)
	}
	env, err := envelope.Decode(plaintext)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	return env
}

type testServer struct {
	l    *transport.Listener
	reg  *session.Registry
	addr string
}

func startTestServer(t *testing.T, cfg Config) *testServer {
	t.Helper()
	if cfg.Registry == nil {
		cfg.Registry = session.NewRegistry()
	}
	d := New(cfg)

	l, err := transport.NewListener(transport.Config{
		ListenAddr: "127.0.0.1:0",
		ConnHandler: func(conn net.Conn) {
			d.Serve(context.Background(), conn)
		},
	})
	if err != nil {
		t.Fatalf("NewListener() error: %v", err)
	}
	if err := l.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	t.Cleanup(func() { l.Stop() })

	return &testServer{l: l, reg: cfg.Registry, addr: l.Addr().String()}
}

func TestTwoPeerChatBroadcast(t *testing.T) {
	srv := startTestServer(t, Config{})

	a := connectTestClient(t, srv.addr, "alice", "lobby", "")
	b := connectTestClient(t, srv.addr, "bob", "lobby", "")

	a.send(t, envelope.Chat{Text: "hello"}.ToEnvelope())

	var gotB, gotA *envelope.Envelope
	for i := 0; i < 3 && gotB == nil; i++ {
		env := b.recvWithTimeout(t, time.Second)
		if env != nil && env.Type == envelope.KindChat {
			gotB = env
		}
	}
	for i := 0; i < 3 && gotA == nil; i++ {
		env := a.recvWithTimeout(t, time.Second)
		if env != nil && env.Type == envelope.KindChat {
			gotA = env
		}
	}

	if gotB == nil || gotA == nil {
		t.Fatalf("expected both peers to observe the chat broadcast")
	}
	chatB, err := envelope.ParseChat(gotB)
	if err != nil {
		t.Fatalf("ParseChat() error: %v", err)
	}
	if chatB.Sender != "alice" || chatB.Room != "lobby" || chatB.Text != "hello" {
		t.Fatalf("chat at B = %+v", chatB)
	}
}

func TestRoomIsolation(t *testing.T) {
	srv := startTestServer(t, Config{})

	a := connectTestClient(t, srv.addr, "alice", "lobby", "")
	b := connectTestClient(t, srv.addr, "bob", "other", "")

	a.send(t, envelope.Chat{Text: "isolated"}.ToEnvelope())

	env := b.recvWithTimeout(t, 500*time.Millisecond)
	if env != nil {
		t.Fatalf("expected no delivery across rooms, got %v", env.Type)
	}
}

func TestRateLimitDropsExcess(t *testing.T) {
	srv := startTestServer(t, Config{})
	a := connectTestClient(t, srv.addr, "alice", "lobby", "")

	rateErrors := 0
	for i := 0; i < 15; i++ {
		a.send(t, envelope.Chat{Text: "x"}.ToEnvelope())
	}
	for i := 0; i < 15; i++ {
		env := a.recvWithTimeout(t, time.Second)
		if env == nil {
			break
		}
		if env.Type == envelope.KindError {
			rateErrors++
		}
	}
	if rateErrors != 3 {
		t.Fatalf("rate errors = %d, want 3", rateErrors)
	}
}

func TestAuthGateRejectsMissingToken(t *testing.T) {
	srv := startTestServer(t, Config{Tokens: map[string]struct{}{"t1": {}}})

	conn, err := transport.Dial(srv.addr)
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	defer conn.Close()

	priv, _ := crypto.GenerateKeyPair()
	pub := crypto.EncodePublicKey(&priv.PublicKey)
	fw := frame.NewWriter(conn)
	fr := frame.NewReader(conn)

	hello := envelope.Hello{PeerPublicKey: pub, Name: "eve", Room: "lobby"}.ToEnvelope()
	if err := fw.WriteFrame(hello.Encode()); err != nil {
		t.Fatalf("WriteFrame() error: %v", err)
	}
	payload, err := fr.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() error: %v", err)
	}
	env, err := envelope.Decode(payload)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if env.Type != envelope.KindError {
		t.Fatalf("env.Type = %v, want error", env.Type)
	}
	ee, _ := envelope.ParseError(env)
	if ee.Code != "auth" {
		t.Fatalf("error code = %q, want auth", ee.Code)
	}
}

func TestAuthGateAcceptsValidToken(t *testing.T) {
	srv := startTestServer(t, Config{Tokens: map[string]struct{}{"t1": {}}})
	// A successful Handshake inside connectTestClient is the assertion:
	// it fails the test if the server rejects the token.
	connectTestClient(t, srv.addr, "alice", "lobby", "t1")
}

func TestCmdNickBroadcastsRename(t *testing.T) {
	srv := startTestServer(t, Config{})
	a := connectTestClient(t, srv.addr, "alice", "lobby", "")
	b := connectTestClient(t, srv.addr, "bob", "lobby", "")
	_ = b

	a.send(t, envelope.CmdNick{Name: "newalice"}.ToEnvelope())

	var got *envelope.Envelope
	for i := 0; i < 3 && got == nil; i++ {
		env := a.recvWithTimeout(t, time.Second)
		if env != nil && env.Type == envelope.KindSystem {
			sys, _ := envelope.ParseSystem(env)
			if sys.Text == "alice is now newalice" {
				got = env
			}
		}
	}
	if got == nil {
		t.Fatalf("expected rename system notice")
	}
}
