// Package timeline holds the canonical per-conversation message store and
// the reconciliation logic shared by every delivery channel.
package timeline

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pandoo/chatsync/internal/model"
)

type entry struct {
	msg model.Message
	seq int
}

// Store is the deduplicated, ordered message collection for the active
// conversation. All mutation goes through Reconcile or Reset; historical
// entries are never updated in place. The mutex serializes the live
// channel, the poller and the send pipeline, which run on separate
// goroutines.
type Store struct {
	mu        sync.Mutex
	entries   []entry
	byID      map[string]struct{}
	watermark *time.Time
	nextSeq   int
}

// NewStore returns an empty store with no watermark.
func NewStore() *Store {
	return &Store{byID: make(map[string]struct{})}
}

// Reconcile merges candidates into the store. A candidate is accepted iff
// it validates and no existing entry shares its MsgID; accepted entries
// advance the watermark. Malformed candidates are dropped individually,
// never aborting the batch. Returns the number of insertions, so calling
// twice with the same batch returns 0 the second time.
func (s *Store) Reconcile(candidates []model.Message) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for i := range candidates {
		msg := candidates[i]
		if err := msg.Validate(); err != nil {
			continue
		}
		if _, ok := s.byID[msg.MsgID]; ok {
			continue
		}
		s.byID[msg.MsgID] = struct{}{}
		s.entries = append(s.entries, entry{msg: msg, seq: s.nextSeq})
		s.nextSeq++
		s.advanceWatermarkLocked(msg.CreatedAt)
		inserted++
	}
	return inserted
}

// Snapshot returns the messages sorted by CreatedAt, ties broken by
// insertion order. The slice is a copy; callers may keep it.
func (s *Store) Snapshot() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	sorted := make([]entry, len(s.entries))
	copy(sorted, s.entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].msg.CreatedAt.Equal(sorted[j].msg.CreatedAt) {
			return sorted[i].seq < sorted[j].seq
		}
		return sorted[i].msg.CreatedAt.Before(sorted[j].msg.CreatedAt)
	})

	out := make([]model.Message, len(sorted))
	for i, e := range sorted {
		out[i] = e.msg
	}
	return out
}

// Search returns the sorted messages matching query, case-insensitively.
// File messages also match on the envelope file name, falling back to the
// raw body when the envelope does not parse.
func (s *Store) Search(query string) []model.Message {
	query = strings.ToLower(strings.TrimSpace(query))
	all := s.Snapshot()
	if query == "" {
		return all
	}

	matched := all[:0:0]
	for _, msg := range all {
		if messageMatches(msg, query) {
			matched = append(matched, msg)
		}
	}
	return matched
}

func messageMatches(msg model.Message, query string) bool {
	if strings.Contains(strings.ToLower(msg.Body), query) {
		return true
	}
	if fc, ok := msg.Content().(model.FileContent); ok {
		return strings.Contains(strings.ToLower(fc.FileName), query)
	}
	return false
}

// Len reports how many messages the store holds.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Get returns the message with the given id, if the store holds it.
func (s *Store) Get(msgID string) (model.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[msgID]; !ok {
		return model.Message{}, false
	}
	for i := range s.entries {
		if s.entries[i].msg.MsgID == msgID {
			return s.entries[i].msg, true
		}
	}
	return model.Message{}, false
}

// Contains reports whether a message with the given id has been accepted.
func (s *Store) Contains(msgID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byID[msgID]
	return ok
}

// Watermark returns the newest known CreatedAt, or false when unset.
func (s *Store) Watermark() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watermark == nil {
		return time.Time{}, false
	}
	return *s.watermark, true
}

// AdvanceWatermark moves the watermark forward to ts if ts is newer.
// Used by the poller to record observed history without inserting it.
func (s *Store) AdvanceWatermark(ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advanceWatermarkLocked(ts)
}

func (s *Store) advanceWatermarkLocked(ts time.Time) {
	if ts.IsZero() {
		return
	}
	if s.watermark == nil || ts.After(*s.watermark) {
		t := ts
		s.watermark = &t
	}
}

// Reset discards every entry and the watermark. Called on conversation
// switch before any channel for the new conversation may write.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.byID = make(map[string]struct{})
	s.watermark = nil
	s.nextSeq = 0
}
