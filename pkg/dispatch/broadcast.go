package dispatch

import (
	"github.com/backkem/cmdchat/pkg/envelope"
	"github.com/backkem/cmdchat/pkg/session"
)

// Broadcast fans env out to every session currently in room, except
// excludeID when hasExclude is true. Client ids start at 0, so pass
// hasExclude=false to include everyone.
//
// Per spec §4.6/§4.7: the registry lock is held only long enough to take
// a snapshot of room membership; delivery to each session is a
// non-blocking enqueue performed after the lock is released, and
// sessions removed in the interim are skipped silently.
func Broadcast(reg *session.Registry, room string, env *envelope.Envelope, excludeID uint64, hasExclude bool) {
	members := reg.ByRoom(room)
	for _, s := range members {
		if hasExclude && s.ClientID == excludeID {
			continue
		}
		s.Enqueue(env) // full queues are handled per spec §4.7's backpressure policy
	}
}

// BroadcastAll fans env out to every session in room, including sender.
func BroadcastAll(reg *session.Registry, room string, env *envelope.Envelope) {
	Broadcast(reg, room, env, 0, false)
}

// BroadcastExcept fans env out to every session in room other than excludeID.
func BroadcastExcept(reg *session.Registry, room string, env *envelope.Envelope, excludeID uint64) {
	Broadcast(reg, room, env, excludeID, true)
}
