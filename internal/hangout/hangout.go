package hangout

// State is a hangout lifecycle label. Intent labels travel client -> server,
// confirmed labels come back from the server.
type State string

// Intent labels.
const (
	Offer   State = "OFFER"
	Accept  State = "ACCEPT"
	Decline State = "DECLINE"
	Block   State = "BLOCK"
	Unblock State = "UNBLOCK"
	Send    State = "MESSAGE"
)

// Peer-initiated labels.
const (
	Inviter   State = "INVITER"
	Accepter  State = "ACCEPTER"
	Decliner  State = "DECLINER"
	Blocker   State = "BLOCKER"
	Unblocker State = "UNBLOCKER"
	Messanger State = "MESSANGER"
)

// Acknowledgement labels.
const (
	Invited   State = "INVITED"
	Accepted  State = "ACCEPTED"
	Declined  State = "DECLINED"
	Blocked   State = "BLOCKED"
	Unblocked State = "UNBLOCKED"
	Messaged  State = "MESSAGED"
)

var (
	intents = map[State]bool{Offer: true, Accept: true, Decline: true, Block: true, Unblock: true, Send: true}
	peers   = map[State]bool{Inviter: true, Accepter: true, Decliner: true, Blocker: true, Unblocker: true, Messanger: true}
	acks    = map[State]bool{Invited: true, Accepted: true, Declined: true, Blocked: true, Unblocked: true, Messaged: true}
)

// IsIntent reports whether s is an outbound command label.
func (s State) IsIntent() bool { return intents[s] }

// IsPeer reports whether s is a label for a transition the remote peer initiated.
func (s State) IsPeer() bool { return peers[s] }

// IsAck reports whether s confirms a locally initiated transition.
func (s State) IsAck() bool { return acks[s] }

// IsConfirmed reports whether s may be stored as the state of a live hangout.
func (s State) IsConfirmed() bool { return peers[s] || acks[s] }

// Notable reports whether a peer transition in this state should land in the
// unread tracker when it is not being viewed.
func (s State) Notable() bool {
	return s == Accepter || s == Inviter || s == Messanger
}

// MessageTypeBlocked marks the synthetic log entry written after a block is confirmed.
const MessageTypeBlocked = "blocked"

// BlockedNotice is the text of the synthetic block entry.
const BlockedNotice = "You blocked this user"

// Message is one chat line in a hangout log.
type Message struct {
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
	Username  string `json:"username,omitempty"`
	Read      bool   `json:"read"`
	Delivered bool   `json:"delivered"`
	Type      string `json:"type,omitempty"`
}

// SameEntry reports whether m and other describe the same log entry.
func (m Message) SameEntry(other Message) bool {
	return m.Timestamp == other.Timestamp && m.Type == other.Type
}

// Hangout is the relationship record between the local user and one peer.
type Hangout struct {
	Username  string   `json:"username"`
	Email     string   `json:"email,omitempty"`
	State     State    `json:"state,omitempty"`
	Message   *Message `json:"message,omitempty"`
	Timestamp int64    `json:"timestamp"`
	Delivered bool     `json:"delivered"`
	Read      bool     `json:"read"`
}

// Merge overlays the non-zero fields of next onto h. Flags always come from next.
func (h Hangout) Merge(next Hangout) Hangout {
	out := h
	out.Username = next.Username
	if next.Email != "" {
		out.Email = next.Email
	}
	if next.State != "" {
		out.State = next.State
	}
	if next.Message != nil {
		m := *next.Message
		out.Message = &m
	}
	if next.Timestamp != 0 {
		out.Timestamp = next.Timestamp
	}
	out.Delivered = next.Delivered
	out.Read = next.Read
	return out
}

// UnreadHangout is the lightweight projection kept by the unread tracker.
type UnreadHangout struct {
	Username  string   `json:"username"`
	Email     string   `json:"email,omitempty"`
	State     State    `json:"state"`
	Message   *Message `json:"message,omitempty"`
	Timestamp int64    `json:"timestamp"`
	Read      bool     `json:"read"`
}

// Unread projects h for the unread tracker.
func (h Hangout) Unread() UnreadHangout {
	return UnreadHangout{
		Username:  h.Username,
		Email:     h.Email,
		State:     h.State,
		Message:   h.Message,
		Timestamp: h.Timestamp,
		Read:      false,
	}
}
