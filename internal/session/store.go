// Package session holds the process-wide state shared by every workflow.
package session

import (
	"slices"
	"sync"
	"time"

	"github.com/Veraticus/edc-mapper/internal/model"
)

// Default status texts.
const (
	StatusNoModel  = "No model loaded"
	StatusChecking = "Checking model status"
)

// Snapshot is an immutable copy of the store's state.
type Snapshot struct {
	Sponsor  string
	Status   string
	Error    string
	Sponsors []string
	Activity []model.ActivityEntry
	Stats    model.KnowledgeStats
	Ready    bool
	Loading  bool
}

// Listener is notified with a fresh snapshot after every mutation.
type Listener func(Snapshot)

// Store owns sponsor selection, readiness, status, error, the activity log
// and the knowledge statistics.
type Store struct {
	now       func() time.Time
	listeners map[int]Listener
	state     Snapshot
	nextID    int
	mu        sync.RWMutex
}

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the clock used to stamp activity entries.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		now:       time.Now,
		listeners: make(map[int]Listener),
		state: Snapshot{
			Status: StatusNoModel,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the store's clock reading.
func (s *Store) Now() time.Time {
	return s.now()
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked()
}

// Sponsor returns the active sponsor.
func (s *Store) Sponsor() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Sponsor
}

// Ready reports whether a model is available for the active sponsor.
func (s *Store) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Ready
}

// Subscribe registers fn and returns a function that removes it.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// SetSponsor selects the active sponsor. Switching to a different sponsor
// invalidates readiness. It reports whether the sponsor changed.
func (s *Store) SetSponsor(sponsor string) bool {
	changed := false
	s.update(func(st *Snapshot) {
		if st.Sponsor == sponsor {
			return
		}
		changed = true
		st.Sponsor = sponsor
		st.Ready = false
		st.Status = StatusChecking
	})
	return changed
}

// SetSponsors records the sponsors known to the mapping service.
func (s *Store) SetSponsors(sponsors []string) {
	s.update(func(st *Snapshot) {
		st.Sponsors = slices.Clone(sponsors)
	})
}

// SetReady records model readiness for the active sponsor.
func (s *Store) SetReady(ready bool) {
	s.update(func(st *Snapshot) {
		st.Ready = ready
	})
}

// SetStatus replaces the status message.
func (s *Store) SetStatus(status string) {
	s.update(func(st *Snapshot) {
		st.Status = status
	})
}

// SetError replaces the last error. An empty string clears it.
func (s *Store) SetError(msg string) {
	s.update(func(st *Snapshot) {
		st.Error = msg
	})
}

// SetLoading flags whether a workflow request is pending.
func (s *Store) SetLoading(loading bool) {
	s.update(func(st *Snapshot) {
		st.Loading = loading
	})
}

// AppendActivity prepends an entry stamped with the current time and
// returns it.
func (s *Store) AppendActivity(kind model.ActivityType, message string) model.ActivityEntry {
	entry := model.ActivityEntry{
		Type:      kind,
		Message:   message,
		Timestamp: s.now(),
	}
	s.update(func(st *Snapshot) {
		st.Activity = append([]model.ActivityEntry{entry}, st.Activity...)
	})
	return entry
}

// MergeActivity adds entries not already in the log, matched by type,
// message and timestamp, and keeps the log ordered newest first.
func (s *Store) MergeActivity(entries []model.ActivityEntry) {
	type key struct {
		kind    model.ActivityType
		message string
		at      int64
	}

	s.update(func(st *Snapshot) {
		seen := make(map[key]struct{}, len(st.Activity)+len(entries))
		merged := make([]model.ActivityEntry, 0, len(st.Activity)+len(entries))
		for _, entry := range slices.Concat(st.Activity, entries) {
			k := key{kind: entry.Type, message: entry.Message, at: entry.Timestamp.UnixNano()}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			merged = append(merged, entry)
		}
		slices.SortStableFunc(merged, func(a, b model.ActivityEntry) int {
			return b.Timestamp.Compare(a.Timestamp)
		})
		st.Activity = merged
	})
}

// ClearActivity empties the activity log.
func (s *Store) ClearActivity() {
	s.update(func(st *Snapshot) {
		st.Activity = nil
	})
}

// MergeStats applies a partial update to the knowledge statistics and
// returns the result.
func (s *Store) MergeStats(patch StatsPatch) model.KnowledgeStats {
	var merged model.KnowledgeStats
	s.update(func(st *Snapshot) {
		st.Stats = patch.apply(st.Stats)
		merged = st.Stats.Clone()
	})
	return merged
}

// ResetStats zeroes the knowledge statistics.
func (s *Store) ResetStats() {
	s.update(func(st *Snapshot) {
		st.Stats = model.KnowledgeStats{}
	})
}

// Restore replaces the whole state, typically from persisted storage.
func (s *Store) Restore(snap Snapshot) {
	s.update(func(st *Snapshot) {
		*st = snap
		st.Sponsors = slices.Clone(snap.Sponsors)
		st.Activity = slices.Clone(snap.Activity)
		st.Stats = snap.Stats.Clone()
		st.Loading = false
	})
}

func (s *Store) update(fn func(*Snapshot)) {
	s.mu.Lock()
	fn(&s.state)
	if len(s.listeners) == 0 {
		s.mu.Unlock()
		return
	}
	snap := s.copyLocked()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}

func (s *Store) copyLocked() Snapshot {
	snap := s.state
	snap.Sponsors = slices.Clone(s.state.Sponsors)
	snap.Activity = slices.Clone(s.state.Activity)
	snap.Stats = s.state.Stats.Clone()
	return snap
}
