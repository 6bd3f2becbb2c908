// Package presence tracks which connected user is viewing which record and
// which field each user is actively editing. All state is transient and
// advisory: losing it degrades to "no one appears to be editing", never to a
// false deadlock, and nothing here ever blocks a write.
package presence

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL is how long a presence or field-lock entry survives without a
// refresh before the sweeper reclaims it. Recovers from ungraceful
// disconnects where no close frame ever arrives.
const DefaultTTL = 45 * time.Second

// Entry records a connection's user and viewing context.
type Entry struct {
	ConnID          string
	UserID          string
	IsOnline        bool
	CurrentRecordID string
	LastActivity    time.Time
}

// FieldLock is an advisory marker that a user is editing one field of one
// record. At most one lock exists per (record, field) key; the last writer
// wins on the lock, not the data.
type FieldLock struct {
	RecordID  string
	FieldName string
	EditingBy string
	ConnID    string
	StartedAt time.Time
}

type lockKey struct {
	recordID  string
	fieldName string
}

// Tracker is the instance-scoped registry of presence entries and field locks.
// Safe for concurrent use.
type Tracker struct {
	mu       sync.RWMutex
	presence map[string]Entry // by connection id
	locks    map[lockKey]FieldLock
	ttl      time.Duration
	nowF     func() time.Time
}

// NewTracker returns a Tracker with the given entry TTL; ttl <= 0 uses
// DefaultTTL.
func NewTracker(ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Tracker{
		presence: make(map[string]Entry),
		locks:    make(map[lockKey]FieldLock),
		ttl:      ttl,
		nowF:     func() time.Time { return time.Now().UTC() },
	}
}

// Update sets the presence entry for a connection and returns it.
func (t *Tracker) Update(connID, userID, currentRecordID string) Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := Entry{
		ConnID:          connID,
		UserID:          userID,
		IsOnline:        true,
		CurrentRecordID: currentRecordID,
		LastActivity:    t.nowF(),
	}
	t.presence[connID] = e
	return e
}

// Touch refreshes a connection's last activity. Called on every inbound signal
// so active connections never expire.
func (t *Tracker) Touch(connID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.presence[connID]; ok {
		e.LastActivity = t.nowF()
		t.presence[connID] = e
	}
}

// Disconnect removes the connection's presence entry and releases every field
// lock it held. Returns the removed entry (ok false if none) and the released
// locks so the caller can fan out field:stopped events.
func (t *Tracker) Disconnect(connID string) (Entry, bool, []FieldLock) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.presence[connID]
	delete(t.presence, connID)
	released := t.releaseLocksLocked(func(l FieldLock) bool { return l.ConnID == connID })
	return e, ok, released
}

// SetFieldEditing creates or overwrites the lock for (recordID, fieldName).
// Repeated starts by the same user refresh StartedAt.
func (t *Tracker) SetFieldEditing(recordID, fieldName, userID, connID string) FieldLock {
	t.mu.Lock()
	defer t.mu.Unlock()
	l := FieldLock{
		RecordID:  recordID,
		FieldName: fieldName,
		EditingBy: userID,
		ConnID:    connID,
		StartedAt: t.nowF(),
	}
	t.locks[lockKey{recordID, fieldName}] = l
	return l
}

// ClearFieldEditing removes the lock only if userID owns it. A stale stop from
// a different user is a no-op, so a late signal cannot clobber a lock
// legitimately taken over afterward. Returns whether the lock was removed.
func (t *Tracker) ClearFieldEditing(recordID, fieldName, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := lockKey{recordID, fieldName}
	l, ok := t.locks[key]
	if !ok || l.EditingBy != userID {
		return false
	}
	delete(t.locks, key)
	return true
}

// Editor returns the lock for (recordID, fieldName) if one exists and is not
// owned by excludeUser. excludeUser may be empty to match any owner.
func (t *Tracker) Editor(recordID, fieldName, excludeUser string) (FieldLock, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	l, ok := t.locks[lockKey{recordID, fieldName}]
	if !ok || (excludeUser != "" && l.EditingBy == excludeUser) {
		return FieldLock{}, false
	}
	return l, true
}

// ReleaseRecord removes every lock on the record. Called when the last
// connection leaves the record's room. Returns the released locks.
func (t *Tracker) ReleaseRecord(recordID string) []FieldLock {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.releaseLocksLocked(func(l FieldLock) bool { return l.RecordID == recordID })
}

// Snapshot returns a copy of all presence entries.
func (t *Tracker) Snapshot() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Entry, 0, len(t.presence))
	for _, e := range t.presence {
		out = append(out, e)
	}
	return out
}

// Sweep removes presence entries and locks whose last refresh is older than
// the TTL and returns what was reclaimed.
func (t *Tracker) Sweep() ([]Entry, []FieldLock) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.nowF().Add(-t.ttl)

	var entries []Entry
	for connID, e := range t.presence {
		if e.LastActivity.Before(cutoff) {
			entries = append(entries, e)
			delete(t.presence, connID)
		}
	}
	locks := t.releaseLocksLocked(func(l FieldLock) bool { return l.StartedAt.Before(cutoff) })
	return entries, locks
}

// StartSweeper runs Sweep every interval until ctx is done. onExpire, if not
// nil, is invoked with what each sweep reclaimed so the caller can broadcast
// the corresponding offline/stopped events.
func (t *Tracker) StartSweeper(ctx context.Context, interval time.Duration, onExpire func([]Entry, []FieldLock)) {
	if interval <= 0 {
		interval = t.ttl / 3
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				entries, locks := t.Sweep()
				if onExpire != nil && (len(entries) > 0 || len(locks) > 0) {
					onExpire(entries, locks)
				}
			}
		}
	}()
}

// releaseLocksLocked removes locks matching the predicate. Caller holds mu.
func (t *Tracker) releaseLocksLocked(match func(FieldLock) bool) []FieldLock {
	var released []FieldLock
	for key, l := range t.locks {
		if match(l) {
			released = append(released, l)
			delete(t.locks, key)
		}
	}
	return released
}
