package api

import "github.com/matheus3301/hangouts/internal/hangout"

// Status is the GetStatus response.
type Status struct {
	User          string `json:"user"`
	ReadyState    string `json:"ready_state"`
	UptimeMs      int64  `json:"uptime_ms"`
	Hangouts      int    `json:"hangouts"`
	Unread        int    `json:"unread"`
	Offline       int    `json:"offline"`
	Focused       string `json:"focused,omitempty"`
	Search        string `json:"search,omitempty"`
	Loading       bool   `json:"loading"`
	NotFound      bool   `json:"not_found"`
	Error         string `json:"error,omitempty"`
	DroppedEvents int64  `json:"dropped_events"`
}

type PeerRequest struct {
	Peer string `json:"peer"`
}

type SearchRequest struct {
	Query string `json:"query"`
}

type TextRequest struct {
	Text string `json:"text"`
}

type WatchRequest struct {
	Prefix string `json:"prefix,omitempty"`
}

// SubmitRequest carries a local intent.
type SubmitRequest struct {
	Command  hangout.State `json:"command"`
	Username string        `json:"username"`
	Email    string        `json:"email,omitempty"`
	Text     string        `json:"text,omitempty"`
}

type SubmitResponse struct {
	Hangout hangout.Hangout `json:"hangout"`
	Queued  bool            `json:"queued"`
}

type HangoutsResponse struct {
	Hangouts []hangout.Hangout `json:"hangouts"`
}

type MessagesResponse struct {
	Messages []hangout.Message `json:"messages"`
}

type UnreadResponse struct {
	Unread []hangout.UnreadHangout `json:"unread"`
}

type SelectResponse struct {
	Hangout  hangout.Hangout   `json:"hangout"`
	Messages []hangout.Message `json:"messages"`
}

// Event is one bus event as streamed by WatchEvents.
type Event struct {
	ID               string `json:"event_id"`
	User             string `json:"user"`
	Kind             string `json:"kind"`
	OccurredAtUnixMs int64  `json:"occurred_at_unix_ms"`
	Payload          any    `json:"payload,omitempty"`
}
