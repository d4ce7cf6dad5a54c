// Package session implements per-client session state and the
// concurrent session registry / room index (spec §3, §4.6).
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/backkem/cmdchat/pkg/crypto"
	"github.com/backkem/cmdchat/pkg/envelope"
	"github.com/backkem/cmdchat/pkg/ratelimit"
	"github.com/backkem/cmdchat/pkg/transfer"
)

// SendQueueSize is the bound on a session's outbound envelope queue
// (spec §4.7 writer task).
const SendQueueSize = 256

// Session is one connected client's server-side state, from handshake
// completion (spec §4.3 step 6) to termination (spec §4.7).
//
// Per spec §5, Name, Room, Transfers, and RateWindow are mutated only by
// the session's own reader task; the writer task treats the Session as
// read-only except for SendQueue.
type Session struct {
	ClientID uint64

	// PeerPublicKey is retained only for diagnostics; it is used exactly
	// once, to wrap SessionKey during the handshake, and never again.
	PeerPublicKey []byte

	Codec *crypto.Codec

	RateWindow *ratelimit.Limiter
	Transfers  *transfer.Table

	SendQueue chan *envelope.Envelope

	nameMu sync.RWMutex
	name   string

	roomMu sync.RWMutex
	room   string

	lastPongMu sync.RWMutex
	lastPong   time.Time

	seqOut uint64 // atomic

	sessionKey []byte // raw bytes, zeroized on Close

	terminate func(error) // installed by the dispatcher, see SetTerminate
}

// Config configures a new Session.
type Config struct {
	ClientID      uint64
	Name          string
	Room          string
	PeerPublicKey []byte
	SessionKey    []byte // 32 bytes, see pkg/crypto
}

// New creates a Session from handshake outputs.
func New(cfg Config) (*Session, error) {
	codec, err := crypto.NewCodec(cfg.SessionKey)
	if err != nil {
		return nil, err
	}

	keyCopy := make([]byte, len(cfg.SessionKey))
	copy(keyCopy, cfg.SessionKey)

	s := &Session{
		ClientID:      cfg.ClientID,
		PeerPublicKey: cfg.PeerPublicKey,
		Codec:         codec,
		RateWindow:    ratelimit.New(),
		Transfers:     transfer.NewTable(),
		SendQueue:     make(chan *envelope.Envelope, SendQueueSize),
		name:          cfg.Name,
		room:          cfg.Room,
		sessionKey:    keyCopy,
	}
	s.SetLastPong(time.Now())
	return s, nil
}

// Name returns the session's current display name.
func (s *Session) Name() string {
	s.nameMu.RLock()
	defer s.nameMu.RUnlock()
	return s.name
}

// SetName updates the display name, e.g. on /nick (spec §4.7).
func (s *Session) SetName(name string) {
	s.nameMu.Lock()
	defer s.nameMu.Unlock()
	s.name = name
}

// Room returns the session's current room id.
func (s *Session) Room() string {
	s.roomMu.RLock()
	defer s.roomMu.RUnlock()
	return s.room
}

// SetRoom updates the session's current room id. Callers are responsible
// for also updating the Registry's room index (see Registry.RenameRoom).
func (s *Session) SetRoom(room string) {
	s.roomMu.Lock()
	defer s.roomMu.Unlock()
	s.room = room
}

// LastPong returns the timestamp of the last pong (or handshake completion).
func (s *Session) LastPong() time.Time {
	s.lastPongMu.RLock()
	defer s.lastPongMu.RUnlock()
	return s.lastPong
}

// SetLastPong records liveness, called on pong receipt (spec §4.7).
func (s *Session) SetLastPong(t time.Time) {
	s.lastPongMu.Lock()
	defer s.lastPongMu.Unlock()
	s.lastPong = t
}

// NextSeq returns the next outbound sequence number for this session.
func (s *Session) NextSeq() uint64 {
	return atomic.AddUint64(&s.seqOut, 1) - 1
}

// TryEnqueue attempts a non-blocking send of env to this session's queue.
// Returns ErrSendQueueFull if the queue has no capacity.
func (s *Session) TryEnqueue(env *envelope.Envelope) error {
	select {
	case s.SendQueue <- env:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// SetTerminate installs the callback Enqueue uses to force-terminate this
// session when backpressure cannot be relieved. The dispatcher sets this
// once, at session creation, to a function that cancels the session's
// task context with the given error.
func (s *Session) SetTerminate(f func(error)) {
	s.terminate = f
}

// Enqueue delivers env to the session's send queue, applying spec §4.7's
// backpressure policy: if the queue is full, the oldest non-system
// envelope is dropped to make room for a "backpressure" system notice
// (env itself is the cost of shedding load and is not retried); if no
// non-system envelope can be found to drop, the session is terminated
// via the callback installed by SetTerminate.
func (s *Session) Enqueue(env *envelope.Envelope) {
	if s.TryEnqueue(env) == nil {
		return
	}

	dropped := false
drain:
	for i := 0; i < SendQueueSize; i++ {
		select {
		case old := <-s.SendQueue:
			if old.Type == envelope.KindSystem {
				if s.TryEnqueue(old) != nil {
					dropped = true
					break drain
				}
				continue
			}
			dropped = true
			break drain
		default:
			break drain
		}
	}

	if !dropped {
		if s.terminate != nil {
			s.terminate(ErrSendQueueFull)
		}
		return
	}

	_ = s.TryEnqueue(envelope.New(envelope.KindSystem).SetString("text", "backpressure"))
}

// Close zeroizes the session key. Call exactly once, during termination
// (spec §4.7).
func (s *Session) Close() {
	crypto.Zeroize(s.sessionKey)
}
