package state

import (
	"slices"

	"github.com/matheus3301/hangouts/internal/hangout"
	"github.com/matheus3301/hangouts/internal/status"
)

// State is the working snapshot of the engine. Values returned by Reduce
// never share backing arrays with the previous state or the action.
type State struct {
	Hangouts       []hangout.Hangout
	Hangout        *hangout.Hangout
	Messages       []hangout.Message
	UnreadHangouts []hangout.UnreadHangout
	Text           string
	Search         string
	ReadyState     status.State
	Socket         Socket
	PendingHangout *hangout.Hangout
	LastFrame      *hangout.Inbound
	Loading        bool
	NotFound       bool
	Error          error
}

// Initial returns the state before anything is loaded.
func Initial() State {
	return State{ReadyState: status.Closed}
}

// Reduce returns the state that results from applying a to prev.
// Actions it does not know leave the state unchanged.
func Reduce(prev State, a Action) State {
	next := prev
	switch a := a.(type) {
	case LoadHangouts:
		next.Hangouts = slices.Clone(a.Hangouts)
	case HangoutsUpdated:
		next.Hangouts = slices.Clone(a.Hangouts)
		if next.Hangout != nil {
			if i := indexOf(next.Hangouts, next.Hangout.Username); i >= 0 {
				next.Hangout = ptr(next.Hangouts[i])
			}
		}
	case HangoutSelected:
		next.Hangout = ptr(a.Hangout)
		next.Text = ""
	case MessagesUpdated:
		next.Messages = slices.Clone(a.Messages)
	case HangoutUpdated:
		next.Hangouts = slices.Clone(prev.Hangouts)
		if i := indexOf(next.Hangouts, a.Hangout.Username); i >= 0 {
			next.Hangouts[i] = a.Hangout
		} else {
			next.Hangouts = append(next.Hangouts, a.Hangout)
		}
		if prev.Hangout != nil && prev.Hangout.Username == a.Hangout.Username {
			next.Hangout = ptr(a.Hangout)
		}
	case UnreadHangoutsUpdated:
		next.UnreadHangouts = slices.Clone(a.Unread)
	case MessageTextChanged:
		next.Text = a.Text
	case SearchInputChanged:
		next.Search = a.Search
		next.NotFound = false
	case ReadyStateChanged:
		next.ReadyState = a.ReadyState
		if a.ReadyState == status.Open {
			next.Error = nil
		}
	case SocketReady:
		next.Socket = a.Socket
	case SocketError:
		next.Error = a.Err
	case SendingHangoutStarted:
		next.PendingHangout = ptr(a.Hangout)
	case SendingHangoutFulfilled:
		next.PendingHangout = nil
	case FetchHangoutStarted:
		next.Loading = true
		next.NotFound = false
		next.Error = nil
	case FetchHangoutSucceeded:
		next.Loading = false
		if len(a.Hangouts) == 0 {
			next.NotFound = true
			break
		}
		next.Hangouts = slices.Clone(a.Hangouts)
	case FetchHangoutFailed:
		next.Loading = false
		next.Error = a.Err
	case ServerMessageReceived:
		next.LastFrame = ptr(a.Frame)
	}
	return next
}

func indexOf(hs []hangout.Hangout, username string) int {
	return slices.IndexFunc(hs, func(h hangout.Hangout) bool { return h.Username == username })
}

func ptr[T any](v T) *T { return &v }
