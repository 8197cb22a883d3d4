package sync

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/matheus3301/hangouts/internal/bus"
	"github.com/matheus3301/hangouts/internal/hangout"
	"github.com/matheus3301/hangouts/internal/state"
	"github.com/matheus3301/hangouts/internal/store"
	"github.com/matheus3301/hangouts/internal/unread"
	"go.uber.org/zap"
)

type fixture struct {
	repo   *store.Repository
	state  *state.Store
	bus    *bus.Bus
	engine *Engine
	routes []hangout.State
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	f := &fixture{bus: bus.New()}
	f.repo = store.NewRepository(db, "alice")
	f.state = state.NewStore(f.bus)
	tracker := unread.NewTracker(f.repo, f.state, f.bus)
	nav := NavigatorFunc(func(route hangout.State) { f.routes = append(f.routes, route) })
	f.engine = NewEngine(f.repo, tracker, f.state, nav, f.bus, zap.NewNop())
	return f
}

func (f *fixture) apply(t *testing.T, frame hangout.Inbound) {
	t.Helper()
	if err := f.engine.Apply(frame); err != nil {
		t.Fatalf("Apply(%s/%s) error = %v", frame.Category, frame.Type, err)
	}
}

func (f *fixture) hangout(t *testing.T, peer string) hangout.Hangout {
	t.Helper()
	h, err := f.repo.Hangout(peer)
	if err != nil {
		t.Fatal(err)
	}
	if h == nil {
		t.Fatalf("hangout %q not stored", peer)
	}
	return *h
}

func ack(s hangout.State, h hangout.Hangout) hangout.Inbound {
	h.State = s
	return hangout.Inbound{Category: string(hangout.Acknowledgement), Type: s, Hangout: &h}
}

func peerFrame(s hangout.State, h hangout.Hangout) hangout.Inbound {
	h.State = s
	return hangout.Inbound{Category: string(hangout.PeerHangout), Type: s, Hangout: &h}
}

// TestAcceptedAcknowledgementConfirmsState: an INVITER hangout followed by an
// ACCEPTED acknowledgement ends ACCEPTED and delivered.
func TestAcceptedAcknowledgementConfirmsState(t *testing.T) {
	f := newFixture(t)
	if _, err := f.repo.UpsertHangout(hangout.Hangout{Username: "bob", Email: "bob@x", State: hangout.Inviter}); err != nil {
		t.Fatal(err)
	}

	f.apply(t, hangout.Inbound{
		Category: "ACKNOWLEDGEMENT",
		Type:     hangout.Accepted,
		Hangout:  &hangout.Hangout{Username: "bob", State: hangout.Accepted},
	})

	bob := f.hangout(t, "bob")
	if bob.State != hangout.Accepted || !bob.Delivered {
		t.Errorf("bob = %+v, want ACCEPTED delivered", bob)
	}
	if bob.Email != "bob@x" {
		t.Errorf("email = %q, want preserved", bob.Email)
	}
	cur := f.state.Current()
	if len(cur.Hangouts) != 1 || cur.Hangouts[0].State != hangout.Accepted {
		t.Errorf("state hangouts = %+v", cur.Hangouts)
	}
	if !reflect.DeepEqual(f.routes, []hangout.State{hangout.Accepted}) {
		t.Errorf("routes = %v, want [ACCEPTED]", f.routes)
	}
}

func TestAcknowledgementIsIdempotent(t *testing.T) {
	f := newFixture(t)
	frame := ack(hangout.Messaged, hangout.Hangout{
		Username:  "bob",
		Timestamp: 100,
		Message:   &hangout.Message{Text: "hi bob", Timestamp: 100, Username: "alice"},
	})

	f.apply(t, frame)
	hangoutsOnce, _ := f.repo.Hangouts()
	msgsOnce, _ := f.repo.Messages("bob")

	f.apply(t, frame)
	hangoutsTwice, _ := f.repo.Hangouts()
	msgsTwice, _ := f.repo.Messages("bob")

	if !reflect.DeepEqual(hangoutsOnce, hangoutsTwice) {
		t.Errorf("hangouts changed on replay:\n%+v\n%+v", hangoutsOnce, hangoutsTwice)
	}
	if !reflect.DeepEqual(msgsOnce, msgsTwice) {
		t.Errorf("messages changed on replay:\n%+v\n%+v", msgsOnce, msgsTwice)
	}
	if len(msgsTwice) != 1 || !msgsTwice[0].Delivered {
		t.Errorf("messages = %+v, want one delivered entry", msgsTwice)
	}
	if len(f.routes) != 0 {
		t.Errorf("MESSAGED must not navigate, got %v", f.routes)
	}
}

func TestAcknowledgementUpdatesPendingMessage(t *testing.T) {
	f := newFixture(t)
	if err := f.repo.UpsertMessage("bob", hangout.Message{Text: "hi", Timestamp: 7, Username: "alice"}); err != nil {
		t.Fatal(err)
	}

	f.apply(t, ack(hangout.Messaged, hangout.Hangout{Username: "bob", Timestamp: 7, Message: &hangout.Message{Text: "hi", Timestamp: 7}}))

	msgs, _ := f.repo.Messages("bob")
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if !msgs[0].Delivered || msgs[0].Username != "alice" {
		t.Errorf("message = %+v, want delivered from alice", msgs[0])
	}
}

func TestBlockedAppendsNoticeOnce(t *testing.T) {
	f := newFixture(t)
	if err := f.repo.UpsertMessage("bob", hangout.Message{Text: "earlier", Timestamp: 1, Username: "bob"}); err != nil {
		t.Fatal(err)
	}

	frame := ack(hangout.Blocked, hangout.Hangout{Username: "bob", Timestamp: 50})
	f.apply(t, frame)
	f.apply(t, frame)

	msgs, _ := f.repo.Messages("bob")
	notices := 0
	for _, m := range msgs {
		if m.Type == hangout.MessageTypeBlocked {
			notices++
		}
	}
	if notices != 1 {
		t.Errorf("got %d block notices, want 1", notices)
	}
	last := msgs[len(msgs)-1]
	if last.Text != hangout.BlockedNotice || last.Type != hangout.MessageTypeBlocked {
		t.Errorf("last message = %+v, want block notice", last)
	}
	if f.hangout(t, "bob").State != hangout.Blocked {
		t.Error("bob not BLOCKED")
	}
}

func TestOfflineAcknowledgementClearsQueue(t *testing.T) {
	f := newFixture(t)
	queued := hangout.Hangout{Username: "carol", State: hangout.Send, Timestamp: 1000, Message: &hangout.Message{Text: "yo", Timestamp: 1000, Username: "alice"}}
	if err := f.repo.AppendOfflineHangout(queued); err != nil {
		t.Fatal(err)
	}
	if err := f.repo.AppendOfflineMessage("carol", *queued.Message); err != nil {
		t.Fatal(err)
	}
	if err := f.repo.AppendOfflineHangout(hangout.Hangout{Username: "dave", State: hangout.Offer, Timestamp: 2000}); err != nil {
		t.Fatal(err)
	}

	f.apply(t, hangout.Inbound{
		Category: "OFFLINE_ACKN",
		Type:     hangout.Messaged,
		Hangout:  &hangout.Hangout{Username: "carol", Timestamp: 1000, Message: &hangout.Message{Text: "yo", Timestamp: 1000}},
	})

	offline, _ := f.repo.OfflineHangouts()
	if len(offline) != 1 || offline[0].Username != "dave" {
		t.Errorf("offline = %+v, want only dave", offline)
	}
	offMsgs, _ := f.repo.OfflineMessages("carol")
	if len(offMsgs) != 0 {
		t.Errorf("offline messages = %+v, want empty", offMsgs)
	}
	live, _ := f.repo.Messages("carol")
	if len(live) != 1 || !live[0].Delivered {
		t.Errorf("live messages = %+v, want one delivered", live)
	}
}

func TestBareOfflineAcknowledgementClearsQueuedMessage(t *testing.T) {
	f := newFixture(t)
	queued := hangout.Hangout{Username: "carol", State: hangout.Send, Timestamp: 1000, Message: &hangout.Message{Text: "yo", Timestamp: 1000, Username: "alice"}}
	if err := f.repo.AppendOfflineHangout(queued); err != nil {
		t.Fatal(err)
	}
	if err := f.repo.AppendOfflineMessage("carol", *queued.Message); err != nil {
		t.Fatal(err)
	}

	f.apply(t, hangout.Inbound{
		Category: "OFFLINE_ACKN",
		Type:     hangout.Messaged,
		Hangout:  &hangout.Hangout{Username: "carol", Timestamp: 1000},
	})

	offMsgs, _ := f.repo.OfflineMessages("carol")
	if len(offMsgs) != 0 {
		t.Errorf("offline messages = %+v, want empty", offMsgs)
	}
	offline, _ := f.repo.OfflineHangouts()
	if len(offline) != 0 {
		t.Errorf("offline = %+v, want empty", offline)
	}
	live, _ := f.repo.Messages("carol")
	if len(live) != 1 || live[0].Text != "yo" || !live[0].Delivered {
		t.Errorf("live messages = %+v, want queued text delivered", live)
	}
}

func TestPeerHangoutUnreadWhenNotFocused(t *testing.T) {
	f := newFixture(t)

	for i := range 3 {
		ts := int64(i + 1)
		f.apply(t, peerFrame(hangout.Messanger, hangout.Hangout{
			Username:  "bob",
			Timestamp: ts,
			Message:   &hangout.Message{Text: "ping", Timestamp: ts},
		}))
	}
	f.apply(t, peerFrame(hangout.Inviter, hangout.Hangout{Username: "carol", Timestamp: 9}))
	// DECLINER is not notable.
	f.apply(t, peerFrame(hangout.Decliner, hangout.Hangout{Username: "dave", Timestamp: 10}))

	list, err := f.repo.UnreadHangouts()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("unread = %+v, want bob and carol", list)
	}
	seen := map[string]bool{}
	for _, u := range list {
		if seen[u.Username] {
			t.Errorf("duplicate unread entry for %s", u.Username)
		}
		seen[u.Username] = true
		if u.Read {
			t.Errorf("%s read = true", u.Username)
		}
	}

	msgs, _ := f.repo.Messages("bob")
	if len(msgs) != 3 {
		t.Errorf("bob log = %d entries, want 3", len(msgs))
	}
	for _, m := range msgs {
		if m.Username != "bob" || m.Read {
			t.Errorf("message = %+v, want unread from bob", m)
		}
	}
	if bob := f.hangout(t, "bob"); bob.Read {
		t.Error("bob hangout read = true while not focused")
	}
}

func TestPeerHangoutReadWhenFocused(t *testing.T) {
	f := newFixture(t)
	f.state.Dispatch(state.HangoutSelected{Hangout: hangout.Hangout{Username: "bob"}})

	f.apply(t, peerFrame(hangout.Messanger, hangout.Hangout{
		Username:  "bob",
		Timestamp: 5,
		Message:   &hangout.Message{Text: "you there?", Timestamp: 5},
	}))

	list, _ := f.repo.UnreadHangouts()
	if len(list) != 0 {
		t.Errorf("unread = %+v, want empty for focused peer", list)
	}
	if !f.hangout(t, "bob").Read {
		t.Error("focused hangout not marked read")
	}
	cur := f.state.Current()
	if len(cur.Messages) != 1 || cur.Messages[0].Text != "you there?" {
		t.Errorf("state messages = %+v", cur.Messages)
	}
}

func TestUnreadBatchForcesUnread(t *testing.T) {
	f := newFixture(t)
	f.state.Dispatch(state.HangoutSelected{Hangout: hangout.Hangout{Username: "bob"}})

	f.apply(t, hangout.Inbound{
		Category: "UNREAD_HANGOUTS",
		Hangouts: []hangout.Hangout{
			{Username: "bob", State: hangout.Messanger, Timestamp: 1},
			{Username: "carol", State: hangout.Accepter, Timestamp: 2},
		},
	})

	list, _ := f.repo.UnreadHangouts()
	if len(list) != 2 {
		t.Errorf("unread = %+v, want bob and carol", list)
	}
	if f.hangout(t, "bob").Read {
		t.Error("unread batch must force read=false even for the focused peer")
	}
}

func TestUnreadBatchSkipsInvalidEntries(t *testing.T) {
	f := newFixture(t)
	err := f.engine.Apply(hangout.Inbound{
		Category: "UNREAD_HANGOUTS",
		Hangouts: []hangout.Hangout{
			{Username: "bob", State: hangout.Accepted},
			{Username: "carol", State: hangout.Inviter},
		},
	})
	if !errors.Is(err, ErrUnhandledFrame) {
		t.Errorf("Apply() error = %v, want ErrUnhandledFrame", err)
	}
	if h, err := f.repo.Hangout("carol"); err != nil || h == nil {
		t.Error("valid entry of the batch was not applied")
	}
}

func TestUnhandledFrames(t *testing.T) {
	tests := []struct {
		name  string
		frame hangout.Inbound
	}{
		{"unknown category", hangout.Inbound{Category: "PRESENCE", Type: hangout.Accepted, Hangout: &hangout.Hangout{Username: "bob"}}},
		{"peer label in acknowledgement", hangout.Inbound{Category: "ACKNOWLEDGEMENT", Type: hangout.Inviter, Hangout: &hangout.Hangout{Username: "bob"}}},
		{"ack label in peer frame", hangout.Inbound{Category: "HANGOUT", Type: hangout.Accepted, Hangout: &hangout.Hangout{Username: "bob"}}},
		{"intent label", hangout.Inbound{Category: "HANGOUT", Type: hangout.Offer, Hangout: &hangout.Hangout{Username: "bob"}}},
		{"missing hangout", hangout.Inbound{Category: "OFFLINE_ACKN", Type: hangout.Invited}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			err := f.engine.Apply(tt.frame)
			if !errors.Is(err, ErrUnhandledFrame) {
				t.Errorf("Apply() error = %v, want ErrUnhandledFrame", err)
			}
			hs, _ := f.repo.Hangouts()
			if len(hs) != 0 {
				t.Errorf("store modified by unhandled frame: %+v", hs)
			}
		})
	}
}

func TestPeerAliasCategory(t *testing.T) {
	f := newFixture(t)
	f.apply(t, hangout.Inbound{Category: "PEER", Type: hangout.Inviter, Hangout: &hangout.Hangout{Username: "eve"}})
	if f.hangout(t, "eve").State != hangout.Inviter {
		t.Error("PEER frame not applied as a peer hangout")
	}
}

// TestLatestFrameWins verifies frames for the same peer apply in arrival
// order without timestamp reordering.
func TestLatestFrameWins(t *testing.T) {
	f := newFixture(t)
	f.apply(t, peerFrame(hangout.Inviter, hangout.Hangout{Username: "bob", Timestamp: 500}))
	f.apply(t, ack(hangout.Accepted, hangout.Hangout{Username: "bob", Timestamp: 100}))

	bob := f.hangout(t, "bob")
	if bob.State != hangout.Accepted || bob.Timestamp != 100 {
		t.Errorf("bob = %+v, want ACCEPTED@100", bob)
	}
}

func TestEngineConsumesFrameQueue(t *testing.T) {
	f := newFixture(t)
	ch, unsub := f.bus.Subscribe("frame.", 10)
	defer unsub()

	frames := make(chan hangout.Inbound, 4)
	f.engine.Start(context.Background(), frames)
	defer f.engine.Stop()

	frames <- hangout.Inbound{Category: "BOGUS"}
	frames <- peerFrame(hangout.Accepter, hangout.Hangout{Username: "bob", Timestamp: 1})

	kinds := []string{}
	for len(kinds) < 2 {
		select {
		case evt := <-ch:
			kinds = append(kinds, evt.Kind)
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout, got %v", kinds)
		}
	}
	if kinds[0] != bus.KindFrameIgnored || kinds[1] != bus.KindFrameApplied {
		t.Errorf("events = %v, want [ignored applied]", kinds)
	}
	if f.hangout(t, "bob").State != hangout.Accepter {
		t.Error("frame from queue not applied")
	}
}

func TestRehydrate(t *testing.T) {
	f := newFixture(t)
	if _, err := f.repo.UpsertHangout(hangout.Hangout{Username: "bob", State: hangout.Accepted}); err != nil {
		t.Fatal(err)
	}
	if err := f.repo.UpsertUnread(hangout.UnreadHangout{Username: "bob", State: hangout.Messanger}); err != nil {
		t.Fatal(err)
	}
	if err := f.repo.UpsertMessage("bob", hangout.Message{Text: "hi", Timestamp: 1}); err != nil {
		t.Fatal(err)
	}
	f.state.Dispatch(state.HangoutSelected{Hangout: hangout.Hangout{Username: "bob"}})

	if err := NewReconciler(f.repo, f.state, nil).Rehydrate(); err != nil {
		t.Fatal(err)
	}
	cur := f.state.Current()
	if len(cur.Hangouts) != 1 || len(cur.UnreadHangouts) != 1 || len(cur.Messages) != 1 {
		t.Errorf("hangouts=%d unread=%d messages=%d, want 1 1 1", len(cur.Hangouts), len(cur.UnreadHangouts), len(cur.Messages))
	}
}
