package store

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/matheus3301/hangouts/internal/hangout"
)

// Repository exposes the typed collections of one local user. Every
// collection is a JSON array stored under a key namespaced by that user.
type Repository struct {
	db   *DB
	user string
}

// NewRepository binds the store to the local user.
func NewRepository(db *DB, user string) *Repository {
	return &Repository{db: db, user: user}
}

// User returns the local username the repository is bound to.
func (r *Repository) User() string { return r.user }

// HangoutsKey returns the key of the live hangouts collection.
func (r *Repository) HangoutsKey() string { return r.user + "-hangouts" }

// OfflineHangoutsKey returns the key of the offline queue.
func (r *Repository) OfflineHangoutsKey() string { return r.user + "-offline-hangouts" }

// UnreadKey returns the key of the unread index.
func (r *Repository) UnreadKey() string { return r.user + "-unread-hangouts" }

// MessagesKey returns the key of the message log shared with peer.
func (r *Repository) MessagesKey(peer string) string {
	return r.user + "-" + peer + "-messages"
}

// OfflineMessagesKey returns the key of messages composed for peer while offline.
func (r *Repository) OfflineMessagesKey(peer string) string {
	return r.user + "-" + peer + "-offline-messages"
}

// Hangouts returns the live hangouts collection, empty when nothing is stored yet.
func (r *Repository) Hangouts() ([]hangout.Hangout, error) {
	return load[hangout.Hangout](r.db, r.HangoutsKey())
}

// Hangout returns the stored hangout for peer, or nil.
func (r *Repository) Hangout(peer string) (*hangout.Hangout, error) {
	all, err := r.Hangouts()
	if err != nil {
		return nil, err
	}
	i := slices.IndexFunc(all, func(h hangout.Hangout) bool { return h.Username == peer })
	if i < 0 {
		return nil, nil
	}
	return &all[i], nil
}

// SaveHangouts replaces the live hangouts collection.
func (r *Repository) SaveHangouts(hs []hangout.Hangout) error {
	return modify(r.db, r.HangoutsKey(), func([]hangout.Hangout) []hangout.Hangout { return hs })
}

// UpsertHangout merges h into the stored hangout with the same username, or
// appends it. Returns the stored result.
func (r *Repository) UpsertHangout(h hangout.Hangout) (hangout.Hangout, error) {
	stored := h
	err := modify(r.db, r.HangoutsKey(), func(all []hangout.Hangout) []hangout.Hangout {
		i := slices.IndexFunc(all, func(x hangout.Hangout) bool { return x.Username == h.Username })
		if i < 0 {
			return append(all, h)
		}
		stored = all[i].Merge(h)
		all[i] = stored
		return all
	})
	return stored, err
}

// MarkHangoutRead flips the read flag of the hangout for peer.
func (r *Repository) MarkHangoutRead(peer string) error {
	return modify(r.db, r.HangoutsKey(), func(all []hangout.Hangout) []hangout.Hangout {
		for i := range all {
			if all[i].Username == peer {
				all[i].Read = true
			}
		}
		return all
	})
}

// Messages returns the message log shared with peer.
func (r *Repository) Messages(peer string) ([]hangout.Message, error) {
	return load[hangout.Message](r.db, r.MessagesKey(peer))
}

// UpsertMessage replaces the entry of the log that has the same timestamp
// and type as m, or appends m.
func (r *Repository) UpsertMessage(peer string, m hangout.Message) error {
	return modify(r.db, r.MessagesKey(peer), func(all []hangout.Message) []hangout.Message {
		return upsertMessage(all, m)
	})
}

// MarkMessagesRead flips the read flag of every message in the log shared with peer.
func (r *Repository) MarkMessagesRead(peer string) error {
	return modify(r.db, r.MessagesKey(peer), func(all []hangout.Message) []hangout.Message {
		for i := range all {
			all[i].Read = true
		}
		return all
	})
}

// OfflineHangouts returns the hangouts composed while the socket was not open.
func (r *Repository) OfflineHangouts() ([]hangout.Hangout, error) {
	return load[hangout.Hangout](r.db, r.OfflineHangoutsKey())
}

// AppendOfflineHangout queues h for the next flush.
func (r *Repository) AppendOfflineHangout(h hangout.Hangout) error {
	return modify(r.db, r.OfflineHangoutsKey(), func(all []hangout.Hangout) []hangout.Hangout {
		return append(all, h)
	})
}

// RemoveOfflineHangout drops queued hangouts with the given timestamp.
func (r *Repository) RemoveOfflineHangout(timestamp int64) error {
	return modify(r.db, r.OfflineHangoutsKey(), func(all []hangout.Hangout) []hangout.Hangout {
		return slices.DeleteFunc(all, func(h hangout.Hangout) bool { return h.Timestamp == timestamp })
	})
}

// OfflineMessages returns messages composed for peer while offline.
func (r *Repository) OfflineMessages(peer string) ([]hangout.Message, error) {
	return load[hangout.Message](r.db, r.OfflineMessagesKey(peer))
}

// AppendOfflineMessage queues m for peer.
func (r *Repository) AppendOfflineMessage(peer string, m hangout.Message) error {
	return modify(r.db, r.OfflineMessagesKey(peer), func(all []hangout.Message) []hangout.Message {
		return upsertMessage(all, m)
	})
}

// RemoveOfflineMessage drops queued messages for peer with the given timestamp.
func (r *Repository) RemoveOfflineMessage(peer string, timestamp int64) error {
	return modify(r.db, r.OfflineMessagesKey(peer), func(all []hangout.Message) []hangout.Message {
		return slices.DeleteFunc(all, func(m hangout.Message) bool { return m.Timestamp == timestamp })
	})
}

// UnreadHangouts returns the unread index.
func (r *Repository) UnreadHangouts() ([]hangout.UnreadHangout, error) {
	return load[hangout.UnreadHangout](r.db, r.UnreadKey())
}

// UpsertUnread keeps one unread entry per peer, replacing any earlier one.
func (r *Repository) UpsertUnread(u hangout.UnreadHangout) error {
	return modify(r.db, r.UnreadKey(), func(all []hangout.UnreadHangout) []hangout.UnreadHangout {
		i := slices.IndexFunc(all, func(x hangout.UnreadHangout) bool { return x.Username == u.Username })
		if i < 0 {
			return append(all, u)
		}
		all[i] = u
		return all
	})
}

// RemoveUnread drops the unread entry for peer.
func (r *Repository) RemoveUnread(peer string) error {
	return modify(r.db, r.UnreadKey(), func(all []hangout.UnreadHangout) []hangout.UnreadHangout {
		return slices.DeleteFunc(all, func(u hangout.UnreadHangout) bool { return u.Username == peer })
	})
}

func upsertMessage(all []hangout.Message, m hangout.Message) []hangout.Message {
	i := slices.IndexFunc(all, m.SameEntry)
	if i < 0 {
		return append(all, m)
	}
	all[i] = m
	return all
}

// load decodes the collection under key. A missing key is an empty collection.
func load[T any](db *DB, key string) ([]T, error) {
	raw, err := db.Get(key)
	if err != nil {
		return nil, err
	}
	return decode[T](key, raw)
}

// modify runs a read-modify-write of the collection under key in one transaction.
func modify[T any](db *DB, key string, fn func([]T) []T) error {
	return db.Update(key, func(cur []byte) ([]byte, error) {
		items, err := decode[T](key, cur)
		if err != nil {
			return nil, err
		}
		next := fn(items)
		if next == nil {
			next = []T{}
		}
		return json.Marshal(next)
	})
}

func decode[T any](key string, raw []byte) ([]T, error) {
	items := []T{}
	if len(raw) == 0 || string(raw) == "null" {
		return items, nil
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode %q: %w", key, err)
	}
	return items, nil
}
