package domain

import (
	"encoding/json"
	"time"
)

// AlertParams is the mutable input to NewAlert. Optional fields are pointers;
// nil means unset.
type AlertParams struct {
	ID          string `validate:"required"`
	OrgID       string
	PatientID   string
	PatientName string
	Type        AlertType
	Level       AlertLevel
	Status      AlertStatus
	Description string
	CreatedAt   time.Time

	AcknowledgedAt       *time.Time `validate:"required_with=AcknowledgedByUserID"`
	AcknowledgedByUserID *string    `validate:"required_with=AcknowledgedAt"`
	ResolvedAt           *time.Time `validate:"required_with=ResolvedByUserID"`
	ResolvedByUserID     *string    `validate:"required_with=ResolvedAt"`

	CreatedByModelID  *string
	SourceInferenceID *string
	Latitude          *float64 `validate:"omitempty,min=-90,max=90"`
	Longitude         *float64 `validate:"omitempty,min=-180,max=180"`

	// false-positive marker, only for retraining exclusion
	FalsePositive       bool
	FalsePositiveReason *string
	FalsePositiveAt     *time.Time
}

// Alert 报警记录（不可变快照）
// Build with NewAlert; transitions return a new value and never modify the receiver.
type Alert struct {
	p AlertParams
}

// NewAlert validates p and returns an immutable Alert.
// Enforced: id present; acknowledgedAt and acknowledgedByUserId both set or both unset;
// same for the resolution pair; resolvedAt set only in RESOLVED/CLOSED; known codes.
func NewAlert(p AlertParams) (Alert, error) {
	if err := validateStruct(p); err != nil {
		return Alert{}, err
	}
	if !p.Type.Valid() {
		return Alert{}, Failuref(KindValidation, "alert %s: unknown type %q", p.ID, p.Type)
	}
	if !p.Level.Valid() {
		return Alert{}, Failuref(KindValidation, "alert %s: unknown level %q", p.ID, p.Level)
	}
	if !p.Status.Valid() {
		return Alert{}, Failuref(KindValidation, "alert %s: unknown status %q", p.ID, p.Status)
	}
	if p.ResolvedAt != nil && p.Status != AlertStatusResolved && p.Status != AlertStatusClosed {
		return Alert{}, Failuref(KindValidation, "alert %s: resolved_at set while status is %s", p.ID, p.Status)
	}
	if p.FalsePositive && p.Status != AlertStatusResolved && p.Status != AlertStatusClosed {
		return Alert{}, Failuref(KindValidation, "alert %s: false-positive marker on unresolved alert", p.ID)
	}
	return Alert{p: p.clone()}, nil
}

// MustAlert panics if p is invalid. Intended for tests and static fixtures.
func MustAlert(p AlertParams) Alert {
	a, err := NewAlert(p)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Alert) ID() string { return a.p.ID }
func (a Alert) OrgID() string { return a.p.OrgID }
func (a Alert) PatientID() string { return a.p.PatientID }
func (a Alert) PatientName() string { return a.p.PatientName }
func (a Alert) Type() AlertType { return a.p.Type }
func (a Alert) Level() AlertLevel { return a.p.Level }
func (a Alert) Status() AlertStatus { return a.p.Status }
func (a Alert) Description() string { return a.p.Description }
func (a Alert) CreatedAt() time.Time { return a.p.CreatedAt }
func (a Alert) IsZero() bool { return a.p.ID == "" }
func (a Alert) IsFalsePositive() bool { return a.p.FalsePositive }
func (a Alert) HasCreatedAt() bool { return !a.p.CreatedAt.IsZero() }
func (a Alert) Params() AlertParams { return a.p.clone() }
func (a Alert) EventType() EventType { return a.p.Type.EventType() }
func (a Alert) IsActive() bool { return a.p.Status.IsActive() }
func (a Alert) RequiresAttention() bool { return a.p.Status.RequiresAttention() }

// IsAIOriginated is true when a model id is recorded on the alert.
func (a Alert) IsAIOriginated() bool {
	return a.p.CreatedByModelID != nil && *a.p.CreatedByModelID != ""
}

func (a Alert) Acknowledgement() (at time.Time, byUserID string, ok bool) {
	if a.p.AcknowledgedAt == nil {
		return time.Time{}, "", false
	}
	return *a.p.AcknowledgedAt, *a.p.AcknowledgedByUserID, true
}

func (a Alert) Resolution() (at time.Time, byUserID string, ok bool) {
	if a.p.ResolvedAt == nil {
		return time.Time{}, "", false
	}
	return *a.p.ResolvedAt, *a.p.ResolvedByUserID, true
}

func (a Alert) CreatedByModelID() string { return deref(a.p.CreatedByModelID) }
func (a Alert) SourceInferenceID() string { return deref(a.p.SourceInferenceID) }
func (a Alert) FalsePositiveReason() string { return deref(a.p.FalsePositiveReason) }

func (a Alert) Location() (lat, lon float64, ok bool) {
	if a.p.Latitude == nil || a.p.Longitude == nil {
		return 0, 0, false
	}
	return *a.p.Latitude, *a.p.Longitude, true
}

func (a Alert) conflict(target AlertStatus) error {
	return Failuref(KindStateConflict, "alert %s: cannot move from %s to %s", a.p.ID, a.p.Status, target)
}

// Acknowledge returns a copy moved to ACKNOWLEDGED.
func (a Alert) Acknowledge(at time.Time, byUserID string) (Alert, error) {
	if !a.p.Status.CanTransitionTo(AlertStatusAcknowledged) {
		return a, a.conflict(AlertStatusAcknowledged)
	}
	p := a.p.clone()
	p.Status = AlertStatusAcknowledged
	p.AcknowledgedAt = &at
	p.AcknowledgedByUserID = &byUserID
	return NewAlert(p)
}

// Resolve returns a copy moved to RESOLVED.
func (a Alert) Resolve(at time.Time, byUserID string) (Alert, error) {
	if !a.p.Status.CanTransitionTo(AlertStatusResolved) {
		return a, a.conflict(AlertStatusResolved)
	}
	p := a.p.clone()
	p.Status = AlertStatusResolved
	p.ResolvedAt = &at
	p.ResolvedByUserID = &byUserID
	return NewAlert(p)
}

// Close returns a copy moved to CLOSED. CLOSED is terminal.
func (a Alert) Close() (Alert, error) {
	if !a.p.Status.CanTransitionTo(AlertStatusClosed) {
		return a, a.conflict(AlertStatusClosed)
	}
	p := a.p.clone()
	p.Status = AlertStatusClosed
	return NewAlert(p)
}

// MarkFalsePositive tags a resolved alert so it is excluded from retraining.
func (a Alert) MarkFalsePositive(reason string, at time.Time) (Alert, error) {
	if a.p.Status != AlertStatusResolved && a.p.Status != AlertStatusClosed {
		return a, Failuref(KindStateConflict, "alert %s: false positive requires a resolved alert, status is %s", a.p.ID, a.p.Status)
	}
	if a.p.FalsePositive {
		return a, Failuref(KindStateConflict, "alert %s: already marked false positive", a.p.ID)
	}
	p := a.p.clone()
	p.FalsePositive = true
	p.FalsePositiveAt = &at
	if reason != "" {
		p.FalsePositiveReason = &reason
	}
	return NewAlert(p)
}

// alertWire is the JSON alert shape exchanged with the authority.
type alertWire struct {
	ID                   string   `json:"id"`
	OrgID                string   `json:"org_id,omitempty"`
	PatientID            string   `json:"patient_id"`
	PatientName          string   `json:"patient_name"`
	Type                 string   `json:"type"`
	AlertLevel           string   `json:"alert_level"`
	Status               string   `json:"status"`
	Description          string   `json:"description"`
	CreatedAt            *string  `json:"created_at"`
	AcknowledgedAt       *string  `json:"acknowledged_at,omitempty"`
	AcknowledgedByUserID *string  `json:"acknowledged_by_user_id,omitempty"`
	ResolvedAt           *string  `json:"resolved_at,omitempty"`
	ResolvedByUserID     *string  `json:"resolved_by_user_id,omitempty"`
	CreatedByModelID     *string  `json:"created_by_model_id,omitempty"`
	SourceInferenceID    *string  `json:"source_inference_id,omitempty"`
	Latitude             *float64 `json:"latitude,omitempty"`
	Longitude            *float64 `json:"longitude,omitempty"`
	FalsePositive        bool     `json:"false_positive,omitempty"`
	FalsePositiveReason  *string  `json:"false_positive_reason,omitempty"`
	FalsePositiveAt      *string  `json:"false_positive_at,omitempty"`
}

// MarshalJSON encodes the wire shape. Decoding goes through the ingest normalizer.
func (a Alert) MarshalJSON() ([]byte, error) {
	p := a.p
	w := alertWire{
		ID:                   p.ID,
		OrgID:                p.OrgID,
		PatientID:            p.PatientID,
		PatientName:          p.PatientName,
		Type:                 string(p.Type),
		AlertLevel:           string(p.Level),
		Status:               string(p.Status),
		Description:          p.Description,
		AcknowledgedAt:       formatTimePtr(p.AcknowledgedAt),
		AcknowledgedByUserID: p.AcknowledgedByUserID,
		ResolvedAt:           formatTimePtr(p.ResolvedAt),
		ResolvedByUserID:     p.ResolvedByUserID,
		CreatedByModelID:     p.CreatedByModelID,
		SourceInferenceID:    p.SourceInferenceID,
		Latitude:             p.Latitude,
		Longitude:            p.Longitude,
		FalsePositive:        p.FalsePositive,
		FalsePositiveReason:  p.FalsePositiveReason,
		FalsePositiveAt:      formatTimePtr(p.FalsePositiveAt),
	}
	if !p.CreatedAt.IsZero() {
		w.CreatedAt = formatTimePtr(&p.CreatedAt)
	}
	return json.Marshal(w)
}

func (p AlertParams) clone() AlertParams {
	c := p
	c.AcknowledgedAt = cloneTime(p.AcknowledgedAt)
	c.AcknowledgedByUserID = cloneString(p.AcknowledgedByUserID)
	c.ResolvedAt = cloneTime(p.ResolvedAt)
	c.ResolvedByUserID = cloneString(p.ResolvedByUserID)
	c.CreatedByModelID = cloneString(p.CreatedByModelID)
	c.SourceInferenceID = cloneString(p.SourceInferenceID)
	c.Latitude = cloneFloat(p.Latitude)
	c.Longitude = cloneFloat(p.Longitude)
	c.FalsePositiveReason = cloneString(p.FalsePositiveReason)
	c.FalsePositiveAt = cloneTime(p.FalsePositiveAt)
	return c
}
