package syncclient

import (
	"sync"
	"time"
)

// ConflictWarning tells the user someone else is already editing the field
// they are about to edit. Advisory only: the edit proceeds either way.
type ConflictWarning struct {
	RecordID  string
	FieldName string
	OtherUser string
	Since     time.Time
}

type editKey struct {
	recordID  string
	fieldName string
}

type editState struct {
	userID string
	since  time.Time
}

// Advisor mirrors the server's field locks from field:editing and
// field:stopped events and answers "is anyone else on this field" when the
// local user starts an edit. A user's own edits never warn.
type Advisor struct {
	selfID string

	mu      sync.RWMutex
	editors map[editKey]editState
	nowF    func() time.Time
}

// NewAdvisor returns an Advisor for the given local user.
func NewAdvisor(selfID string) *Advisor {
	return &Advisor{
		selfID:  selfID,
		editors: make(map[editKey]editState),
		nowF:    func() time.Time { return time.Now().UTC() },
	}
}

// ObserveEditing records that userID is editing the field. Last writer wins,
// mirroring the server's lock semantics.
func (a *Advisor) ObserveEditing(recordID, fieldName, userID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.editors[editKey{recordID, fieldName}] = editState{userID: userID, since: a.nowF()}
}

// ObserveStopped clears the edit marker if userID still holds it. A stale
// stop for a field someone else has since taken over is a no-op.
func (a *Advisor) ObserveStopped(recordID, fieldName, userID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := editKey{recordID, fieldName}
	if s, ok := a.editors[key]; ok && s.userID == userID {
		delete(a.editors, key)
	}
}

// StartEdit returns a warning when another user is editing the field, nil
// otherwise. It never blocks the edit.
func (a *Advisor) StartEdit(recordID, fieldName string) *ConflictWarning {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s, ok := a.editors[editKey{recordID, fieldName}]
	if !ok || s.userID == a.selfID {
		return nil
	}
	return &ConflictWarning{
		RecordID:  recordID,
		FieldName: fieldName,
		OtherUser: s.userID,
		Since:     s.since,
	}
}

// Editor returns who is editing the field, if anyone.
func (a *Advisor) Editor(recordID, fieldName string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s, ok := a.editors[editKey{recordID, fieldName}]
	return s.userID, ok
}
