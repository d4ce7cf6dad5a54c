package session

import (
	"testing"
	"time"

	"github.com/backkem/cmdchat/pkg/crypto"
	"github.com/backkem/cmdchat/pkg/envelope"
)

func newTestSession(t *testing.T, clientID uint64, name, room string) *Session {
	t.Helper()
	key, err := crypto.GenerateSessionKey()
	if err != nil {
		t.Fatalf("GenerateSessionKey() error: %v", err)
	}
	s, err := New(Config{
		ClientID:   clientID,
		Name:       name,
		Room:       room,
		SessionKey: key,
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return s
}

func TestSessionNameAndRoomMutators(t *testing.T) {
	s := newTestSession(t, 1, "alice", "lobby")

	if got := s.Name(); got != "alice" {
		t.Fatalf("Name() = %q, want alice", got)
	}
	s.SetName("alice2")
	if got := s.Name(); got != "alice2" {
		t.Fatalf("Name() = %q, want alice2", got)
	}

	if got := s.Room(); got != "lobby" {
		t.Fatalf("Room() = %q, want lobby", got)
	}
	s.SetRoom("other")
	if got := s.Room(); got != "other" {
		t.Fatalf("Room() = %q, want other", got)
	}
}

func TestSessionLastPong(t *testing.T) {
	s := newTestSession(t, 1, "alice", "lobby")
	before := s.LastPong()
	time.Sleep(time.Millisecond)
	now := time.Now()
	s.SetLastPong(now)
	if !s.LastPong().Equal(now) {
		t.Fatalf("LastPong() = %v, want %v", s.LastPong(), now)
	}
	if !now.After(before) {
		t.Fatalf("expected updated pong to be after initial")
	}
}

func TestSessionNextSeqIncrements(t *testing.T) {
	s := newTestSession(t, 1, "alice", "lobby")
	first := s.NextSeq()
	second := s.NextSeq()
	if second != first+1 {
		t.Fatalf("NextSeq() sequence = %d, %d, want consecutive", first, second)
	}
}

func TestSessionTryEnqueueFullQueue(t *testing.T) {
	s := newTestSession(t, 1, "alice", "lobby")
	for i := 0; i < SendQueueSize; i++ {
		if err := s.TryEnqueue(envelope.New(envelope.KindSystem)); err != nil {
			t.Fatalf("TryEnqueue() unexpected error at %d: %v", i, err)
		}
	}
	if err := s.TryEnqueue(envelope.New(envelope.KindSystem)); err != ErrSendQueueFull {
		t.Fatalf("TryEnqueue() on full queue error = %v, want ErrSendQueueFull", err)
	}
}

func TestSessionEnqueueDropsOldestAndInjectsBackpressureOnOverflow(t *testing.T) {
	s := newTestSession(t, 1, "alice", "lobby")
	for i := 0; i < SendQueueSize; i++ {
		s.Enqueue(envelope.New(envelope.KindChat).SetString("text", "x"))
	}

	var terminated error
	s.SetTerminate(func(err error) { terminated = err })

	// The queue is now full; this send triggers the drop+notice policy
	// and is itself the envelope shed to make room.
	s.Enqueue(envelope.New(envelope.KindChat).SetString("text", "dropped-on-overflow"))
	if terminated != nil {
		t.Fatalf("unexpected terminate: %v", terminated)
	}

	sawBackpressure := false
	count := 0
	for {
		select {
		case env := <-s.SendQueue:
			count++
			if env.Type == envelope.KindSystem {
				if text, _ := env.String("text"); text == "backpressure" {
					sawBackpressure = true
				}
			}
		default:
			goto done
		}
	}
done:
	if !sawBackpressure {
		t.Fatalf("expected a backpressure system notice in the queue")
	}
	if count > SendQueueSize {
		t.Fatalf("queue held %d items, want <= %d", count, SendQueueSize)
	}
}

func TestSessionEnqueueTerminatesWhenQueueIsAllSystemNotices(t *testing.T) {
	s := newTestSession(t, 1, "alice", "lobby")
	for i := 0; i < SendQueueSize; i++ {
		s.Enqueue(envelope.New(envelope.KindSystem).SetString("text", "n"))
	}

	var terminated error
	s.SetTerminate(func(err error) { terminated = err })
	s.Enqueue(envelope.New(envelope.KindChat).SetString("text", "overflow"))

	if terminated == nil {
		t.Fatalf("expected termination when no non-system envelope can be dropped")
	}
}

func TestSessionCloseZeroizesKey(t *testing.T) {
	s := newTestSession(t, 1, "alice", "lobby")
	s.Close()
	for _, b := range s.sessionKey {
		if b != 0 {
			t.Fatalf("sessionKey not zeroized after Close()")
		}
	}
}
