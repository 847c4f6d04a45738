// Package feedback streams new ground-truth labels to the model-training side.
package feedback

import (
	"context"
	"time"

	"heartguard-alerts/internal/domain"
)

// DefaultStream Redis stream key
const DefaultStream = "heartguard:ground-truth"

// LabelEvent 真值标注反馈消息
type LabelEvent struct {
	LabelID   string                   `json:"label_id"`
	AlertID   string                   `json:"alert_id,omitempty"`
	PatientID string                   `json:"patient_id"`
	EventType domain.EventType         `json:"event_type"`
	Source    domain.GroundTruthSource `json:"source"`
	// ModelID is the detector the label judges; empty for manual labels.
	ModelID string    `json:"model_id,omitempty"`
	Onset   time.Time `json:"onset"`
	At      time.Time `json:"at"`
}

// NewLabelEvent builds the event; alert may be zero for manual labels.
func NewLabelEvent(label domain.GroundTruthLabel, alert domain.Alert) LabelEvent {
	e := LabelEvent{
		LabelID:   label.ID(),
		AlertID:   label.AlertID(),
		PatientID: label.PatientID(),
		EventType: label.EventType(),
		Source:    label.Source(),
		Onset:     label.Onset().UTC(),
		At:        label.CreatedAt().UTC(),
	}
	if !alert.IsZero() {
		e.ModelID = alert.CreatedByModelID()
	}
	return e
}

// Publisher 发布标注反馈；失败只记录日志
type Publisher interface {
	PublishLabel(ctx context.Context, e LabelEvent) error
}

// Nop 不发布（Redis 未启用）
type Nop struct{}

func (Nop) PublishLabel(context.Context, LabelEvent) error { return nil }
