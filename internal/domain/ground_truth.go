package domain

import (
	"encoding/json"
	"time"
)

// GroundTruthParams is the input to NewGroundTruthLabel.
type GroundTruthParams struct {
	ID                  string    `validate:"required"`
	PatientID           string    `validate:"required"`
	EventType           EventType `validate:"required"`
	Onset               time.Time `validate:"required"`
	OffsetAt            *time.Time
	AnnotatedByUserID   string `validate:"required"`
	AnnotatedByUserName string
	Source              GroundTruthSource `validate:"required"`
	Note                string
	// AlertID links a label produced by alert resolution; empty for manual entries.
	AlertID   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GroundTruthLabel 真值标注（只追加，不修改）
// A superseding judgment is a new label, never an edit of this one.
type GroundTruthLabel struct {
	p GroundTruthParams
}

func NewGroundTruthLabel(p GroundTruthParams) (GroundTruthLabel, error) {
	if err := validateStruct(p); err != nil {
		return GroundTruthLabel{}, err
	}
	if !p.EventType.Valid() {
		return GroundTruthLabel{}, Failuref(KindValidation, "ground truth %s: unknown event type %q", p.ID, p.EventType)
	}
	if !p.Source.Valid() {
		return GroundTruthLabel{}, Failuref(KindValidation, "ground truth %s: unknown source %q", p.ID, p.Source)
	}
	if p.OffsetAt != nil && p.OffsetAt.Before(p.Onset) {
		return GroundTruthLabel{}, Failuref(KindValidation, "ground truth %s: offset_at before onset", p.ID)
	}
	p.OffsetAt = cloneTime(p.OffsetAt)
	return GroundTruthLabel{p: p}, nil
}

func MustGroundTruthLabel(p GroundTruthParams) GroundTruthLabel {
	l, err := NewGroundTruthLabel(p)
	if err != nil {
		panic(err)
	}
	return l
}

func (l GroundTruthLabel) ID() string                  { return l.p.ID }
func (l GroundTruthLabel) PatientID() string           { return l.p.PatientID }
func (l GroundTruthLabel) EventType() EventType        { return l.p.EventType }
func (l GroundTruthLabel) Onset() time.Time            { return l.p.Onset }
func (l GroundTruthLabel) AnnotatedByUserID() string   { return l.p.AnnotatedByUserID }
func (l GroundTruthLabel) AnnotatedByUserName() string { return l.p.AnnotatedByUserName }
func (l GroundTruthLabel) Source() GroundTruthSource   { return l.p.Source }
func (l GroundTruthLabel) Note() string                { return l.p.Note }
func (l GroundTruthLabel) AlertID() string             { return l.p.AlertID }
func (l GroundTruthLabel) CreatedAt() time.Time        { return l.p.CreatedAt }
func (l GroundTruthLabel) UpdatedAt() time.Time        { return l.p.UpdatedAt }
func (l GroundTruthLabel) IsZero() bool                { return l.p.ID == "" }

func (l GroundTruthLabel) OffsetAt() (time.Time, bool) {
	if l.p.OffsetAt == nil {
		return time.Time{}, false
	}
	return *l.p.OffsetAt, true
}

func (l GroundTruthLabel) Params() GroundTruthParams {
	p := l.p
	p.OffsetAt = cloneTime(l.p.OffsetAt)
	return p
}

type groundTruthWire struct {
	ID                  string  `json:"id"`
	PatientID           string  `json:"patient_id"`
	EventTypeCode       string  `json:"event_type_code"`
	Onset               string  `json:"onset"`
	OffsetAt            *string `json:"offset_at,omitempty"`
	AnnotatedByUserID   string  `json:"annotated_by_user_id"`
	AnnotatedByUserName string  `json:"annotated_by_user_name,omitempty"`
	Source              string  `json:"source"`
	Note                string  `json:"note,omitempty"`
	AlertID             string  `json:"alert_id,omitempty"`
	CreatedAt           *string `json:"created_at,omitempty"`
	UpdatedAt           *string `json:"updated_at,omitempty"`
}

func (l GroundTruthLabel) MarshalJSON() ([]byte, error) {
	p := l.p
	w := groundTruthWire{
		ID:                  p.ID,
		PatientID:           p.PatientID,
		EventTypeCode:       string(p.EventType),
		Onset:               p.Onset.Format(WireTimeLayout),
		OffsetAt:            formatTimePtr(p.OffsetAt),
		AnnotatedByUserID:   p.AnnotatedByUserID,
		AnnotatedByUserName: p.AnnotatedByUserName,
		Source:              string(p.Source),
		Note:                p.Note,
		AlertID:             p.AlertID,
	}
	if !p.CreatedAt.IsZero() {
		w.CreatedAt = formatTimePtr(&p.CreatedAt)
	}
	if !p.UpdatedAt.IsZero() {
		w.UpdatedAt = formatTimePtr(&p.UpdatedAt)
	}
	return json.Marshal(w)
}
