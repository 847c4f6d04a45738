package service

import (
	"context"
	"time"

	"heartguard-alerts/internal/domain"
	"heartguard-alerts/internal/export"
	"heartguard-alerts/internal/feedback"
	"heartguard-alerts/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GroundTruthService 真值标注服务接口
type GroundTruthService interface {
	// 人工录入标注（不关联告警，来源 MANUAL）
	CreateManual(ctx context.Context, draft domain.LabelDraft) (domain.GroundTruthLabel, error)

	ListByPatient(ctx context.Context, patientID string) ([]domain.GroundTruthLabel, error)

	// 导出患者标注为 xlsx
	Export(ctx context.Context, patientID string) ([]byte, error)
}

type groundTruthService struct {
	labelsRepo repository.GroundTruthRepository
	feedback   feedback.Publisher
	logger     *zap.Logger
	now        func() time.Time
}

func NewGroundTruthService(labelsRepo repository.GroundTruthRepository, fb feedback.Publisher, logger *zap.Logger) GroundTruthService {
	if fb == nil {
		fb = feedback.Nop{}
	}
	return &groundTruthService{
		labelsRepo: labelsRepo,
		feedback:   fb,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *groundTruthService) CreateManual(ctx context.Context, draft domain.LabelDraft) (domain.GroundTruthLabel, error) {
	if err := draft.Validate(); err != nil {
		return domain.GroundTruthLabel{}, err
	}
	now := s.now()
	label, err := domain.NewGroundTruthLabel(domain.GroundTruthParams{
		ID:                  uuid.NewString(),
		PatientID:           draft.PatientID,
		EventType:           draft.EventType,
		Onset:               draft.Onset,
		OffsetAt:            draft.OffsetAt,
		AnnotatedByUserID:   draft.ActorUserID,
		AnnotatedByUserName: draft.ActorUserName,
		Source:              domain.SourceManual,
		Note:                draft.Note,
		CreatedAt:           now,
		UpdatedAt:           now,
	})
	if err != nil {
		return domain.GroundTruthLabel{}, err
	}
	if err := s.labelsRepo.CreateLabel(ctx, label); err != nil {
		return domain.GroundTruthLabel{}, err
	}
	s.logger.Info("Manual ground truth label created",
		zap.String("label_id", label.ID()),
		zap.String("patient_id", label.PatientID()),
		zap.String("event_type", string(label.EventType())),
	)
	if err := s.feedback.PublishLabel(ctx, feedback.NewLabelEvent(label, domain.Alert{})); err != nil {
		s.logger.Warn("Failed to publish ground truth label", zap.String("label_id", label.ID()), zap.Error(err))
	}
	return label, nil
}

func (s *groundTruthService) ListByPatient(ctx context.Context, patientID string) ([]domain.GroundTruthLabel, error) {
	if patientID == "" {
		return nil, domain.NewFailure(domain.KindValidation, "patient_id is required")
	}
	return s.labelsRepo.ListLabelsByPatient(ctx, patientID)
}

func (s *groundTruthService) Export(ctx context.Context, patientID string) ([]byte, error) {
	labels, err := s.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return export.GroundTruthWorkbook(labels)
}
