package syncclient

import (
	"testing"
	"time"
)

func TestAdvisor_WarnsAboutOtherEditor(t *testing.T) {
	a := NewAdvisor("alice")
	a.ObserveEditing("order-1", "status", "bob")

	w := a.StartEdit("order-1", "status")
	if w == nil {
		t.Fatal("expected a conflict warning")
	}
	if w.OtherUser != "bob" || w.RecordID != "order-1" || w.FieldName != "status" {
		t.Errorf("warning = %+v, want bob on order-1 status", w)
	}
	if w.Since.IsZero() {
		t.Error("warning should carry the edit start time")
	}
}

func TestAdvisor_NoWarningWhenFieldFree(t *testing.T) {
	a := NewAdvisor("alice")
	if w := a.StartEdit("order-1", "status"); w != nil {
		t.Errorf("unexpected warning: %+v", w)
	}
	// A different field on the same record is also free.
	a.ObserveEditing("order-1", "status", "bob")
	if w := a.StartEdit("order-1", "title"); w != nil {
		t.Errorf("unexpected warning for other field: %+v", w)
	}
}

func TestAdvisor_OwnEditDoesNotWarn(t *testing.T) {
	a := NewAdvisor("alice")
	a.ObserveEditing("order-1", "status", "alice")
	if w := a.StartEdit("order-1", "status"); w != nil {
		t.Errorf("self edit warned: %+v", w)
	}
}

func TestAdvisor_StoppedClearsWarning(t *testing.T) {
	a := NewAdvisor("alice")
	a.ObserveEditing("order-1", "status", "bob")
	a.ObserveStopped("order-1", "status", "bob")

	if w := a.StartEdit("order-1", "status"); w != nil {
		t.Errorf("warning after stop: %+v", w)
	}
	if _, ok := a.Editor("order-1", "status"); ok {
		t.Error("editor should be cleared")
	}
}

func TestAdvisor_StaleStopDoesNotClearNewEditor(t *testing.T) {
	a := NewAdvisor("alice")
	a.ObserveEditing("order-1", "status", "bob")
	a.ObserveEditing("order-1", "status", "carol") // takeover
	a.ObserveStopped("order-1", "status", "bob")   // bob's late stop

	editor, ok := a.Editor("order-1", "status")
	if !ok || editor != "carol" {
		t.Errorf("editor = %q ok=%v, want carol still editing", editor, ok)
	}
	if w := a.StartEdit("order-1", "status"); w == nil || w.OtherUser != "carol" {
		t.Errorf("warning = %+v, want carol", w)
	}
}

func TestAdvisor_SinceReflectsObservationTime(t *testing.T) {
	a := NewAdvisor("alice")
	fixed := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	a.nowF = func() time.Time { return fixed }

	a.ObserveEditing("order-1", "status", "bob")
	w := a.StartEdit("order-1", "status")
	if w == nil || !w.Since.Equal(fixed) {
		t.Errorf("warning = %+v, want since %v", w, fixed)
	}
}
