package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"heartguard-alerts/internal/domain"
	"heartguard-alerts/internal/feedback"
	"heartguard-alerts/internal/notify"
	"heartguard-alerts/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AlertService 告警服务接口
type AlertService interface {
	// 写入上游检测器/人工录入的告警，逐条处理，单条失败不影响其他
	Ingest(ctx context.Context, req IngestAlertsRequest) (*IngestAlertsResponse, error)

	// 按组织或患者查询告警列表
	ListAlerts(ctx context.Context, req ListAlertsRequest) ([]domain.Alert, error)

	Acknowledge(ctx context.Context, req TransitionRequest) (domain.Alert, error)
	Resolve(ctx context.Context, req TransitionRequest) (domain.Alert, error)
	Close(ctx context.Context, req TransitionRequest) (domain.Alert, error)

	// 确认真阳性：为已解决的告警创建唯一一条真值标注
	ValidateTruePositive(ctx context.Context, req ValidateTruePositiveRequest) (domain.GroundTruthLabel, error)

	// 确认误报：标记告警，不创建标注
	ValidateFalsePositive(ctx context.Context, req ValidateFalsePositiveRequest) (domain.Alert, error)
}

// alertService 实现
type alertService struct {
	alertsRepo repository.AlertsRepository
	labelsRepo repository.GroundTruthRepository
	notifier   notify.Publisher
	feedback   feedback.Publisher
	logger     *zap.Logger
	now        func() time.Time
	judging    alertLocks
}

// NewAlertService 创建 AlertService 实例；notifier/feedback 为 nil 时不发布
func NewAlertService(
	alertsRepo repository.AlertsRepository,
	labelsRepo repository.GroundTruthRepository,
	notifier notify.Publisher,
	fb feedback.Publisher,
	logger *zap.Logger,
) AlertService {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if fb == nil {
		fb = feedback.Nop{}
	}
	return &alertService{
		alertsRepo: alertsRepo,
		labelsRepo: labelsRepo,
		notifier:   notifier,
		feedback:   fb,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// ============================================
// Request/Response DTOs
// ============================================

// IngestAlertsRequest 写入告警请求
type IngestAlertsRequest struct {
	OrgID  string // 调用方组织；非空时告警必须属于该组织（告警未带 org 时补上）
	Alerts []domain.Alert
}

// IngestAlertsResponse 写入结果
type IngestAlertsResponse struct {
	Created  []string          `json:"created"`
	Rejected []IngestRejection `json:"rejected"`
}

// IngestRejection 单条写入失败
type IngestRejection struct {
	AlertID string `json:"alert_id"`
	Reason  string `json:"reason"`
}

// ListAlertsRequest 查询告警列表请求（OrgID/PatientID 至少一个）
type ListAlertsRequest struct {
	OrgID     string
	PatientID string
	Filter    domain.AlertFilter
	Limit     int
}

// TransitionRequest 状态变更请求
type TransitionRequest struct {
	OrgID       string // 调用方组织（权限范围），空表示不限
	AlertID     string
	ActorUserID string
	Outcome     string // 仅 resolve 使用，可选
	Notes       string
}

// ValidateTruePositiveRequest 真阳性确认请求
type ValidateTruePositiveRequest struct {
	OrgID   string
	AlertID string
	Draft   domain.LabelDraft
}

// ValidateFalsePositiveRequest 误报确认请求
type ValidateFalsePositiveRequest struct {
	OrgID       string
	AlertID     string
	ActorUserID string
	Reason      string
}

// ============================================
// Service 方法实现
// ============================================

func (s *alertService) Ingest(ctx context.Context, req IngestAlertsRequest) (*IngestAlertsResponse, error) {
	resp := &IngestAlertsResponse{Created: []string{}, Rejected: []IngestRejection{}}
	for _, a := range req.Alerts {
		if req.OrgID != "" {
			switch a.OrgID() {
			case req.OrgID:
			case "":
				p := a.Params()
				p.OrgID = req.OrgID
				withOrg, err := domain.NewAlert(p)
				if err != nil {
					resp.Rejected = append(resp.Rejected, IngestRejection{AlertID: a.ID(), Reason: err.Error()})
					continue
				}
				a = withOrg
			default:
				resp.Rejected = append(resp.Rejected, IngestRejection{AlertID: a.ID(), Reason: "alert belongs to another organization"})
				continue
			}
		}
		if !a.HasCreatedAt() {
			p := a.Params()
			p.CreatedAt = s.now()
			stamped, err := domain.NewAlert(p)
			if err != nil {
				resp.Rejected = append(resp.Rejected, IngestRejection{AlertID: a.ID(), Reason: err.Error()})
				continue
			}
			a = stamped
		}
		if err := s.alertsRepo.CreateAlert(ctx, a); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !domain.IsRejected(err) {
				s.logger.Error("Failed to create alert", zap.String("alert_id", a.ID()), zap.Error(err))
			}
			resp.Rejected = append(resp.Rejected, IngestRejection{AlertID: a.ID(), Reason: err.Error()})
			continue
		}
		resp.Created = append(resp.Created, a.ID())
		s.publishTransition(ctx, "", a, "")
	}
	return resp, nil
}

func (s *alertService) ListAlerts(ctx context.Context, req ListAlertsRequest) ([]domain.Alert, error) {
	if req.OrgID == "" && req.PatientID == "" {
		return nil, domain.NewFailure(domain.KindValidation, "org_id or patient_id is required")
	}
	if err := req.Filter.Validate(); err != nil {
		return nil, err
	}
	return s.alertsRepo.ListAlerts(ctx, repository.AlertFilters{
		OrgID:     req.OrgID,
		PatientID: req.PatientID,
		Status:    req.Filter.Status,
		Level:     req.Filter.Level,
		Limit:     req.Limit,
	})
}

// load 读取告警并检查组织范围；范围外的告警按不存在处理
func (s *alertService) load(ctx context.Context, orgID, alertID string) (domain.Alert, error) {
	if strings.TrimSpace(alertID) == "" {
		return domain.Alert{}, domain.NewFailure(domain.KindValidation, "alert_id is required")
	}
	a, err := s.alertsRepo.GetAlert(ctx, alertID)
	if err != nil {
		return domain.Alert{}, err
	}
	if orgID != "" && a.OrgID() != "" && a.OrgID() != orgID {
		return domain.Alert{}, domain.Failuref(domain.KindNotFound, "alert not found: %s", alertID)
	}
	return a, nil
}

func (s *alertService) Acknowledge(ctx context.Context, req TransitionRequest) (domain.Alert, error) {
	if err := requireActor(req.ActorUserID); err != nil {
		return domain.Alert{}, err
	}
	before, err := s.load(ctx, req.OrgID, req.AlertID)
	if err != nil {
		return domain.Alert{}, err
	}
	after, err := s.alertsRepo.AcknowledgeAlert(ctx, req.AlertID, req.ActorUserID, s.now())
	if err != nil {
		return after, s.transitionFailed("acknowledge", req, err)
	}
	s.publishTransition(ctx, before.Status(), after, req.ActorUserID)
	return after, nil
}

func (s *alertService) Resolve(ctx context.Context, req TransitionRequest) (domain.Alert, error) {
	if err := requireActor(req.ActorUserID); err != nil {
		return domain.Alert{}, err
	}
	// outcome 只校验；标注/误报由随后的 validate 调用完成
	if req.Outcome != "" {
		if _, err := domain.ParseOutcome(req.Outcome); err != nil {
			return domain.Alert{}, err
		}
	}
	before, err := s.load(ctx, req.OrgID, req.AlertID)
	if err != nil {
		return domain.Alert{}, err
	}
	after, err := s.alertsRepo.ResolveAlert(ctx, req.AlertID, req.ActorUserID, s.now())
	if err != nil {
		return after, s.transitionFailed("resolve", req, err)
	}
	s.publishTransition(ctx, before.Status(), after, req.ActorUserID)
	return after, nil
}

func (s *alertService) Close(ctx context.Context, req TransitionRequest) (domain.Alert, error) {
	if err := requireActor(req.ActorUserID); err != nil {
		return domain.Alert{}, err
	}
	before, err := s.load(ctx, req.OrgID, req.AlertID)
	if err != nil {
		return domain.Alert{}, err
	}
	after, err := s.alertsRepo.CloseAlert(ctx, req.AlertID)
	if err != nil {
		return after, s.transitionFailed("close", req, err)
	}
	s.publishTransition(ctx, before.Status(), after, req.ActorUserID)
	return after, nil
}

func (s *alertService) ValidateTruePositive(ctx context.Context, req ValidateTruePositiveRequest) (domain.GroundTruthLabel, error) {
	if err := req.Draft.Validate(); err != nil {
		return domain.GroundTruthLabel{}, err
	}
	unlock := s.judging.lock(req.AlertID)
	defer unlock()
	alert, err := s.load(ctx, req.OrgID, req.AlertID)
	if err != nil {
		return domain.GroundTruthLabel{}, err
	}
	switch {
	case alert.Status() != domain.AlertStatusResolved && alert.Status() != domain.AlertStatusClosed:
		return domain.GroundTruthLabel{}, domain.Failuref(domain.KindStateConflict,
			"alert %s: true positive requires a resolved alert, status is %s", alert.ID(), alert.Status())
	case alert.IsFalsePositive():
		return domain.GroundTruthLabel{}, domain.Failuref(domain.KindStateConflict,
			"alert %s: already marked false positive", alert.ID())
	case req.Draft.PatientID != alert.PatientID():
		return domain.GroundTruthLabel{}, domain.Failuref(domain.KindValidation,
			"patient_id %s does not match alert %s", req.Draft.PatientID, alert.ID())
	}

	source := domain.SourceManual
	if alert.IsAIOriginated() {
		source = domain.SourceAIModel
	}
	now := s.now()
	label, err := domain.NewGroundTruthLabel(domain.GroundTruthParams{
		ID:                  uuid.NewString(),
		PatientID:           alert.PatientID(),
		EventType:           req.Draft.EventType,
		Onset:               req.Draft.Onset,
		OffsetAt:            req.Draft.OffsetAt,
		AnnotatedByUserID:   req.Draft.ActorUserID,
		AnnotatedByUserName: req.Draft.ActorUserName,
		Source:              source,
		Note:                req.Draft.Note,
		AlertID:             alert.ID(),
		CreatedAt:           now,
		UpdatedAt:           now,
	})
	if err != nil {
		return domain.GroundTruthLabel{}, err
	}
	// 唯一约束保证并发时也只有一条
	if err := s.labelsRepo.CreateLabel(ctx, label); err != nil {
		return domain.GroundTruthLabel{}, err
	}

	s.logger.Info("Alert validated as true positive",
		zap.String("alert_id", alert.ID()),
		zap.String("label_id", label.ID()),
		zap.String("source", string(source)),
		zap.String("actor_user_id", req.Draft.ActorUserID),
	)
	if err := s.feedback.PublishLabel(ctx, feedback.NewLabelEvent(label, alert)); err != nil {
		s.logger.Warn("Failed to publish ground truth label", zap.String("label_id", label.ID()), zap.Error(err))
	}
	return label, nil
}

func (s *alertService) ValidateFalsePositive(ctx context.Context, req ValidateFalsePositiveRequest) (domain.Alert, error) {
	if err := requireActor(req.ActorUserID); err != nil {
		return domain.Alert{}, err
	}
	unlock := s.judging.lock(req.AlertID)
	defer unlock()
	if _, err := s.load(ctx, req.OrgID, req.AlertID); err != nil {
		return domain.Alert{}, err
	}
	// 已确认真阳性的告警不能再标为误报
	_, err := s.labelsRepo.GetLabelByAlert(ctx, req.AlertID)
	switch {
	case err == nil:
		return domain.Alert{}, domain.Failuref(domain.KindStateConflict, "alert %s: already validated as true positive", req.AlertID)
	case !domain.IsNotFound(err):
		return domain.Alert{}, fmt.Errorf("failed to check ground truth label: %w", err)
	}

	after, err := s.alertsRepo.MarkFalsePositive(ctx, req.AlertID, req.Reason, s.now())
	if err != nil {
		return after, err
	}
	s.logger.Info("Alert validated as false positive",
		zap.String("alert_id", req.AlertID),
		zap.String("actor_user_id", req.ActorUserID),
	)
	s.publishTransition(ctx, after.Status(), after, req.ActorUserID)
	return after, nil
}

func requireActor(actor string) error {
	if strings.TrimSpace(actor) == "" {
		return domain.NewFailure(domain.KindValidation, "actor_user_id is required")
	}
	return nil
}

func (s *alertService) transitionFailed(action string, req TransitionRequest, err error) error {
	if domain.IsRejected(err) {
		s.logger.Info("Alert transition rejected",
			zap.String("action", action),
			zap.String("alert_id", req.AlertID),
			zap.Error(err),
		)
		return err
	}
	s.logger.Error("Failed to "+action+" alert",
		zap.String("alert_id", req.AlertID),
		zap.String("actor_user_id", req.ActorUserID),
		zap.Error(err),
	)
	return fmt.Errorf("failed to %s alert: %w", action, err)
}

// publishTransition 通知失败只记日志
func (s *alertService) publishTransition(ctx context.Context, from domain.AlertStatus, after domain.Alert, actor string) {
	e := notify.NewAlertTransition(from, after, actor, s.now())
	if err := s.notifier.PublishTransition(ctx, e); err != nil {
		s.logger.Warn("Failed to publish alert transition",
			zap.String("alert_id", after.ID()),
			zap.String("to", string(after.Status())),
			zap.Error(err),
		)
	}
}
