package domain

import (
	"strings"
	"time"
)

// TransitionRequest is the body of acknowledge, resolve and close calls.
type TransitionRequest struct {
	ActorUserID string  `json:"actor_user_id"`
	Outcome     Outcome `json:"outcome,omitempty"`
	Notes       string  `json:"notes,omitempty"`
}

func (r TransitionRequest) Validate() error {
	if strings.TrimSpace(r.ActorUserID) == "" {
		return NewFailure(KindValidation, "actor_user_id is required")
	}
	return nil
}

// FalsePositiveRequest is the body of the false-positive validation call.
type FalsePositiveRequest struct {
	ActorUserID string `json:"actor_user_id"`
	Reason      string `json:"reason,omitempty"`
}

// LabelRequest is the wire form of a LabelDraft.
type LabelRequest struct {
	PatientID     string  `json:"patient_id"`
	EventType     string  `json:"event_type"`
	Onset         string  `json:"onset"`
	OffsetAt      *string `json:"offset_at,omitempty"`
	ActorUserID   string  `json:"actor_user_id"`
	ActorUserName string  `json:"annotated_by_user_name,omitempty"`
	Note          string  `json:"note,omitempty"`
}

func (d LabelDraft) Request() LabelRequest {
	return LabelRequest{
		PatientID:     d.PatientID,
		EventType:     string(d.EventType),
		Onset:         d.Onset.Format(WireTimeLayout),
		OffsetAt:      formatTimePtr(d.OffsetAt),
		ActorUserID:   d.ActorUserID,
		ActorUserName: d.ActorUserName,
		Note:          d.Note,
	}
}

// Draft parses and validates the request. Event type codes are strict here:
// a caller creating a judgment must name a known event.
func (r LabelRequest) Draft() (LabelDraft, error) {
	et, ok := ParseEventType(r.EventType)
	if !ok {
		return LabelDraft{}, Failuref(KindValidation, "unknown event type %q", r.EventType)
	}
	onset, err := time.Parse(time.RFC3339, strings.TrimSpace(r.Onset))
	if err != nil {
		return LabelDraft{}, Failuref(KindValidation, "onset: %v", err)
	}
	d := LabelDraft{
		PatientID:     r.PatientID,
		EventType:     et,
		Onset:         onset,
		ActorUserID:   r.ActorUserID,
		ActorUserName: strings.TrimSpace(r.ActorUserName),
		Note:          r.Note,
	}
	if r.OffsetAt != nil && strings.TrimSpace(*r.OffsetAt) != "" {
		off, err := time.Parse(time.RFC3339, strings.TrimSpace(*r.OffsetAt))
		if err != nil {
			return LabelDraft{}, Failuref(KindValidation, "offset_at: %v", err)
		}
		d.OffsetAt = &off
	}
	if err := d.Validate(); err != nil {
		return LabelDraft{}, err
	}
	return d, nil
}
