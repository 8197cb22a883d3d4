package bus

import "time"

// Event kinds published by the engine. Subscribers filter by prefix, so the
// part before the first dot is the namespace.
const (
	KindReadinessChanged = "socket.readiness_changed"
	KindSocketError      = "socket.error"
	KindDecodeError      = "socket.decode_error"
	KindFrameApplied     = "frame.applied"
	KindFrameIgnored     = "frame.ignored"
	KindHangoutSent      = "hangout.sent"
	KindHangoutQueued    = "hangout.queued"
	KindOfflineFlushed   = "hangout.offline_flushed"
	KindUnreadChanged    = "unread.changed"
	KindStateChanged     = "state.changed"
	KindNavigate         = "route.navigate"
)

// Event is a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// NewEvent stamps an event with the current time.
func NewEvent(kind string, payload any) Event {
	return Event{Kind: kind, Timestamp: time.Now(), Payload: payload}
}
