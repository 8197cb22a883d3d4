package hangout

import (
	"errors"
	"testing"
	"time"
)

func TestLabelSetsAreDisjoint(t *testing.T) {
	all := []State{
		Offer, Accept, Decline, Block, Unblock, Send,
		Inviter, Accepter, Decliner, Blocker, Unblocker, Messanger,
		Invited, Accepted, Declined, Blocked, Unblocked, Messaged,
	}
	for _, s := range all {
		if s.IsIntent() == s.IsConfirmed() {
			t.Errorf("%s: IsIntent=%v IsConfirmed=%v, want exactly one", s, s.IsIntent(), s.IsConfirmed())
		}
		if s.IsPeer() && s.IsAck() {
			t.Errorf("%s is both peer and ack label", s)
		}
	}
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in      string
		want    Category
		wantErr bool
	}{
		{"ACKNOWLEDGEMENT", Acknowledgement, false},
		{"HANGOUT", PeerHangout, false},
		{"PEER", PeerHangout, false},
		{"UNREAD_HANGOUTS", UnreadHangouts, false},
		{"OFFLINE_ACKN", OfflineAck, false},
		{"", "", true},
		{"acknowledgement", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCategory(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCategory(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrUnknownCategory) {
				t.Errorf("error = %v, want ErrUnknownCategory", err)
			}
			if got != tt.want {
				t.Errorf("ParseCategory(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDecodeInbound(t *testing.T) {
	in, err := DecodeInbound([]byte(`{"category":"ACKNOWLEDGEMENT","type":"ACCEPTED","hangout":{"username":"bob","state":"ACCEPTED","timestamp":5}}`))
	if err != nil {
		t.Fatal(err)
	}
	if in.Category != "ACKNOWLEDGEMENT" || in.Type != Accepted {
		t.Errorf("got %+v", in)
	}
	if in.Hangout == nil || in.Hangout.Username != "bob" {
		t.Errorf("hangout = %+v, want bob", in.Hangout)
	}

	if _, err := DecodeInbound([]byte(`{not json`)); err == nil {
		t.Error("DecodeInbound() expected error for malformed frame")
	}
}

func TestMergeKeepsKnownFields(t *testing.T) {
	prev := Hangout{Username: "bob", Email: "bob@x", State: Inviter, Timestamp: 1}
	got := prev.Merge(Hangout{Username: "bob", State: Accepted, Delivered: true})

	if got.Email != "bob@x" {
		t.Errorf("email = %q, want bob@x", got.Email)
	}
	if got.State != Accepted || !got.Delivered {
		t.Errorf("state=%s delivered=%v, want ACCEPTED true", got.State, got.Delivered)
	}
	if got.Timestamp != 1 {
		t.Errorf("timestamp = %d, want 1", got.Timestamp)
	}
}

func TestIntentValidate(t *testing.T) {
	tests := []struct {
		name    string
		intent  Intent
		wantErr bool
	}{
		{"offer", Intent{Command: Offer, Username: "bob"}, false},
		{"message", Intent{Command: Send, Username: "bob", Text: "hi"}, false},
		{"message without text", Intent{Command: Send, Username: "bob"}, true},
		{"confirmed label", Intent{Command: Accepted, Username: "bob"}, true},
		{"missing username", Intent{Command: Block}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.intent.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidIntent) {
				t.Errorf("Validate() error = %v, want ErrInvalidIntent", err)
			}
		})
	}
}

func TestIntentHangoutAttachesMessage(t *testing.T) {
	now := time.UnixMilli(1000)
	h := Intent{Command: Send, Username: "bob", Email: "bob@x", Text: "hello"}.Hangout("alice", now)

	if h.State != Send || h.Timestamp != 1000 || h.Delivered {
		t.Errorf("hangout = %+v", h)
	}
	if h.Message == nil || h.Message.Username != "alice" || h.Message.Timestamp != 1000 {
		t.Fatalf("message = %+v, want alice@1000", h.Message)
	}

	f := h.Frame(true)
	if f.Command != Send || !f.Offline || f.Username != "bob" {
		t.Errorf("frame = %+v", f)
	}
}
