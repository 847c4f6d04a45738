// Package notify publishes alert status changes to downstream listeners
// (nurse-station displays, pagers) over MQTT.
package notify

import (
	"context"
	"fmt"
	"time"

	"heartguard-alerts/internal/domain"
)

// AlertTransition 告警状态变更事件
type AlertTransition struct {
	AlertID       string             `json:"alert_id"`
	OrgID         string             `json:"org_id"`
	PatientID     string             `json:"patient_id"`
	Type          domain.AlertType   `json:"type"`
	Level         domain.AlertLevel  `json:"level"`
	From          domain.AlertStatus `json:"from,omitempty"`
	To            domain.AlertStatus `json:"to"`
	ActorUserID   string             `json:"actor_user_id,omitempty"`
	FalsePositive bool               `json:"false_positive"`
	At            time.Time          `json:"at"`
}

// NewAlertTransition builds the event for an alert that moved from -> after.Status().
func NewAlertTransition(from domain.AlertStatus, after domain.Alert, actorUserID string, at time.Time) AlertTransition {
	return AlertTransition{
		AlertID:       after.ID(),
		OrgID:         after.OrgID(),
		PatientID:     after.PatientID(),
		Type:          after.Type(),
		Level:         after.Level(),
		From:          from,
		To:            after.Status(),
		ActorUserID:   actorUserID,
		FalsePositive: after.IsFalsePositive(),
		At:            at.UTC(),
	}
}

// Topic heartguard/alerts/{org}/{alert}/status
func (e AlertTransition) Topic() string {
	org := e.OrgID
	if org == "" {
		org = "_"
	}
	return fmt.Sprintf("heartguard/alerts/%s/%s/status", org, e.AlertID)
}

// Publisher 发布状态变更；失败只记录日志，不影响状态变更本身
type Publisher interface {
	PublishTransition(ctx context.Context, e AlertTransition) error
}

// Nop 不发布（MQTT 未启用）
type Nop struct{}

func (Nop) PublishTransition(context.Context, AlertTransition) error { return nil }
