package hangout

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Category classifies an inbound server frame.
type Category string

const (
	Acknowledgement Category = "ACKNOWLEDGEMENT"
	PeerHangout     Category = "HANGOUT"
	UnreadHangouts  Category = "UNREAD_HANGOUTS"
	OfflineAck      Category = "OFFLINE_ACKN"
)

// ErrUnknownCategory is returned by ParseCategory for labels outside the closed set.
var ErrUnknownCategory = errors.New("unknown frame category")

// ParseCategory maps a wire label to a Category. "PEER" is accepted as an
// alias of HANGOUT.
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case Acknowledgement, PeerHangout, UnreadHangouts, OfflineAck:
		return Category(s), nil
	case "PEER":
		return PeerHangout, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
}

// Inbound is a decoded server frame.
type Inbound struct {
	Category string    `json:"category"`
	Type     State     `json:"type"`
	Hangout  *Hangout  `json:"hangout,omitempty"`
	Hangouts []Hangout `json:"hangouts,omitempty"`
}

// DecodeInbound parses one inbound frame.
func DecodeInbound(data []byte) (Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return Inbound{}, fmt.Errorf("decode frame: %w", err)
	}
	return in, nil
}

// Outbound is the frame sent for one locally initiated transition.
type Outbound struct {
	Username  string   `json:"username"`
	Email     string   `json:"email"`
	Message   *Message `json:"message,omitempty"`
	Timestamp int64    `json:"timestamp"`
	Command   State    `json:"command"`
	Offline   bool     `json:"offline,omitempty"`
}

// Frame builds the outbound frame for a pending hangout whose State is an intent.
func (h Hangout) Frame(offline bool) Outbound {
	return Outbound{
		Username:  h.Username,
		Email:     h.Email,
		Message:   h.Message,
		Timestamp: h.Timestamp,
		Command:   h.State,
		Offline:   offline,
	}
}
