// Package navigation records the top-level redirect chain of a browsing
// session and decides when it has settled.
package navigation

import (
	"sync"
	"time"
)

// Tracker is the append-only list of distinct main-frame URLs visited during
// one session, starting with the normalized scan URL. It is safe for
// concurrent use: browser events append while the settle loop reads.
type Tracker struct {
	now func() time.Time

	mu         sync.Mutex
	entries    []string
	lastChange time.Time
}

// NewTracker starts a chain at initial. now may be nil (time.Now).
func NewTracker(initial string, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		now:        now,
		entries:    []string{initial},
		lastChange: now(),
	}
}

// Record appends u when it differs from the last entry and reports whether
// it did.
func (t *Tracker) Record(u string) bool {
	if u == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.entries[len(t.entries)-1] == u {
		return false
	}
	t.entries = append(t.entries, u)
	t.lastChange = t.now()
	return true
}

// Entries returns a copy of the chain.
func (t *Tracker) Entries() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.entries...)
}

// Len is the number of recorded entries (at least 1).
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Redirects is the number of appends beyond the initial entry.
func (t *Tracker) Redirects() int {
	return t.Len() - 1
}

// FinalURL is the last recorded entry.
func (t *Tracker) FinalURL() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entries[len(t.entries)-1]
}

// LastChange is when the most recent entry was appended (or the tracker
// was created).
func (t *Tracker) LastChange() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastChange
}
