package hangout

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidIntent wraps every Validate failure.
var ErrInvalidIntent = errors.New("invalid intent")

// Intent is a transition the local user asks for.
type Intent struct {
	Command  State
	Username string
	Email    string
	Text     string
}

// Validate checks that the intent can be turned into an outbound frame.
func (i Intent) Validate() error {
	if !i.Command.IsIntent() {
		return fmt.Errorf("%w: unknown command %q", ErrInvalidIntent, i.Command)
	}
	if strings.TrimSpace(i.Username) == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidIntent)
	}
	if i.Command == Send && strings.TrimSpace(i.Text) == "" {
		return fmt.Errorf("%w: message text is required", ErrInvalidIntent)
	}
	return nil
}

// Hangout builds the pending hangout for the intent. sender is the local user,
// recorded as the author of any attached message.
func (i Intent) Hangout(sender string, now time.Time) Hangout {
	ts := now.UnixMilli()
	h := Hangout{
		Username:  i.Username,
		Email:     i.Email,
		State:     i.Command,
		Timestamp: ts,
		Delivered: false,
		Read:      true,
	}
	if i.Text != "" {
		h.Message = &Message{
			Text:      i.Text,
			Timestamp: ts,
			Username:  sender,
			Read:      true,
			Delivered: false,
		}
	}
	return h
}
