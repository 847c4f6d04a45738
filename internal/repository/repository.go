package repository

import (
	"context"
	"time"

	"heartguard-alerts/internal/domain"
)

// AlertsRepository 告警 Repository 接口
// 状态迁移是条件更新：当前状态不满足时返回 StateConflict，记录不存在时返回 NotFound
type AlertsRepository interface {
	GetAlert(ctx context.Context, alertID string) (domain.Alert, error)

	// 列表查询（按组织或患者，支持状态/级别过滤），按 created_at 倒序
	ListAlerts(ctx context.Context, filters AlertFilters) ([]domain.Alert, error)

	// 创建告警（上游检测器或人工录入）；id 已存在时返回 StateConflict
	CreateAlert(ctx context.Context, alert domain.Alert) error

	AcknowledgeAlert(ctx context.Context, alertID, userID string, at time.Time) (domain.Alert, error)
	ResolveAlert(ctx context.Context, alertID, userID string, at time.Time) (domain.Alert, error)
	CloseAlert(ctx context.Context, alertID string) (domain.Alert, error)

	// 误报标记（仅 RESOLVED/CLOSED 且未标记过）
	MarkFalsePositive(ctx context.Context, alertID, reason string, at time.Time) (domain.Alert, error)

	// 统计窗口内（按 false_positive_at）被标记为误报的模型告警数；人工告警不计入
	CountFalsePositives(ctx context.Context, w domain.Window) (int, error)
}

// AlertFilters 告警过滤条件
type AlertFilters struct {
	OrgID     string
	PatientID string
	Status    domain.AlertStatus
	Level     domain.AlertLevel
	Limit     int // 0 = DefaultListLimit
}

const DefaultListLimit = 500

func (f AlertFilters) limit() int {
	if f.Limit <= 0 || f.Limit > DefaultListLimit {
		return DefaultListLimit
	}
	return f.Limit
}

func (f AlertFilters) matches(a domain.Alert) bool {
	if f.OrgID != "" && a.OrgID() != f.OrgID {
		return false
	}
	if f.PatientID != "" && a.PatientID() != f.PatientID {
		return false
	}
	return domain.AlertFilter{Status: f.Status, Level: f.Level}.Matches(a)
}

// GroundTruthRepository 真值标注 Repository 接口（只追加）
type GroundTruthRepository interface {
	// 创建标注；同一告警已有标注时返回 StateConflict
	CreateLabel(ctx context.Context, label domain.GroundTruthLabel) error

	ListLabelsByPatient(ctx context.Context, patientID string) ([]domain.GroundTruthLabel, error)

	GetLabelByAlert(ctx context.Context, alertID string) (domain.GroundTruthLabel, error)

	// 统计窗口内（按 created_at）由告警确认产生的 AI_MODEL 标注数
	CountTruePositives(ctx context.Context, w domain.Window) (int, error)
}

func notFound(what, id string) error {
	return domain.Failuref(domain.KindNotFound, "%s not found: %s", what, id)
}

func conflict(alert domain.Alert, target domain.AlertStatus) error {
	return domain.Failuref(domain.KindStateConflict, "alert %s: cannot move from %s to %s", alert.ID(), alert.Status(), target)
}
