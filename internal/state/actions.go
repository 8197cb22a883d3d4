package state

import (
	"context"

	"github.com/matheus3301/hangouts/internal/hangout"
	"github.com/matheus3301/hangouts/internal/status"
)

// Socket is the live channel handle kept in state once the connection is up.
type Socket interface {
	Send(ctx context.Context, frame hangout.Outbound) error
}

// Action is a state transition request. The set is closed: only types in
// this package implement it.
type Action interface {
	action() string
}

// Name returns the label of an action, used in logs and events.
func Name(a Action) string {
	if a == nil {
		return ""
	}
	return a.action()
}

type (
	// LoadHangouts replaces the working copy with the stored collection.
	LoadHangouts struct{ Hangouts []hangout.Hangout }
	// HangoutSelected focuses one hangout.
	HangoutSelected struct{ Hangout hangout.Hangout }
	// HangoutsUpdated replaces the hangouts collection.
	HangoutsUpdated struct{ Hangouts []hangout.Hangout }
	// MessagesUpdated replaces the message log of the focused hangout.
	MessagesUpdated struct{ Messages []hangout.Message }
	// HangoutUpdated replaces one hangout in the collection and in focus.
	HangoutUpdated struct{ Hangout hangout.Hangout }
	// UnreadHangoutsUpdated replaces the unread index.
	UnreadHangoutsUpdated struct{ Unread []hangout.UnreadHangout }
	// MessageTextChanged tracks the composer text.
	MessageTextChanged struct{ Text string }
	// SearchInputChanged tracks the contact search input.
	SearchInputChanged struct{ Search string }
	// ReadyStateChanged mirrors socket readiness.
	ReadyStateChanged struct{ ReadyState status.State }
	// SocketReady stores the live channel handle.
	SocketReady struct{ Socket Socket }
	// SocketError records a transport or decode failure.
	SocketError struct{ Err error }
	// SendingHangoutStarted marks a pending outbound hangout.
	SendingHangoutStarted struct{ Hangout hangout.Hangout }
	// SendingHangoutFulfilled clears the pending outbound hangout.
	SendingHangoutFulfilled struct{}
	// FetchHangoutStarted marks a server-side contact search in flight.
	FetchHangoutStarted struct{}
	// FetchHangoutSucceeded carries the server search result.
	FetchHangoutSucceeded struct{ Hangouts []hangout.Hangout }
	// FetchHangoutFailed carries the server search error.
	FetchHangoutFailed struct{ Err error }
	// ServerMessageReceived stores the latest decoded frame.
	ServerMessageReceived struct{ Frame hangout.Inbound }
)

func (LoadHangouts) action() string            { return "LOAD_HANGOUTS" }
func (HangoutSelected) action() string         { return "HANGOUT_SELECTED" }
func (HangoutsUpdated) action() string         { return "HANGOUTS_UPDATED" }
func (MessagesUpdated) action() string         { return "MESSAGES_UPDATED" }
func (HangoutUpdated) action() string          { return "HANGOUT_UPDATED" }
func (UnreadHangoutsUpdated) action() string   { return "UNREAD_HANGOUTS_UPDATED" }
func (MessageTextChanged) action() string      { return "MESSAGE_TEXT_CHANGED" }
func (SearchInputChanged) action() string      { return "SEARCH_INPUT_CHANGED" }
func (ReadyStateChanged) action() string       { return "SOCKET_READY_STATE_CHANGED" }
func (SocketReady) action() string             { return "SOCKET_READY" }
func (SocketError) action() string             { return "SOCKET_ERROR" }
func (SendingHangoutStarted) action() string   { return "SENDING_HANGOUT_STARTED" }
func (SendingHangoutFulfilled) action() string { return "SENDING_HANGOUT_FULFILLED" }
func (FetchHangoutStarted) action() string     { return "FETCH_HANGOUT_STARTED" }
func (FetchHangoutSucceeded) action() string   { return "FETCH_HANGOUT_SUCCESS" }
func (FetchHangoutFailed) action() string      { return "FETCH_HANGOUT_FAILED" }
func (ServerMessageReceived) action() string   { return "SERVER_MESSAGE_RECEIVED" }
