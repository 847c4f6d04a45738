package domain

import (
	"strings"
	"time"
)

// AlertFilter narrows alert listings; a zero field matches everything.
type AlertFilter struct {
	Status AlertStatus
	Level  AlertLevel
}

func (f AlertFilter) Validate() error {
	if f.Status != "" && !f.Status.Valid() {
		return Failuref(KindValidation, "unknown status filter %q", f.Status)
	}
	if f.Level != "" && !f.Level.Valid() {
		return Failuref(KindValidation, "unknown level filter %q", f.Level)
	}
	return nil
}

// Matches reports whether a passes the filter.
func (f AlertFilter) Matches(a Alert) bool {
	if f.Status != "" && a.Status() != f.Status {
		return false
	}
	if f.Level != "" && a.Level() != f.Level {
		return false
	}
	return true
}

// LabelDraft is a ground-truth judgment as submitted by a caller. The authority
// assigns id, source and timestamps when it turns the draft into a label.
type LabelDraft struct {
	PatientID     string
	EventType     EventType
	Onset         time.Time
	OffsetAt      *time.Time
	ActorUserID   string
	ActorUserName string // 标注人显示名，可为空
	Note          string
}

func (d LabelDraft) Validate() error {
	switch {
	case strings.TrimSpace(d.PatientID) == "":
		return NewFailure(KindValidation, "patient_id is required")
	case strings.TrimSpace(d.ActorUserID) == "":
		return NewFailure(KindValidation, "actor_user_id is required")
	case !d.EventType.Valid():
		return Failuref(KindValidation, "unknown event type %q", d.EventType)
	case d.Onset.IsZero():
		return NewFailure(KindValidation, "onset is required")
	case d.OffsetAt != nil && d.OffsetAt.Before(d.Onset):
		return NewFailure(KindValidation, "offset_at before onset")
	}
	return nil
}
