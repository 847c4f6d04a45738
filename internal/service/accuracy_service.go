package service

import (
	"context"
	"fmt"

	"heartguard-alerts/internal/domain"
	"heartguard-alerts/internal/repository"

	"go.uber.org/zap"
)

// AccuracyService 检测准确率统计
type AccuracyService interface {
	// TP = 窗口内告警确认产生的 AI_MODEL 标注数；FP = 窗口内被标记误报的告警数
	Stats(ctx context.Context, w domain.Window) (domain.AccuracyStats, error)
}

type accuracyService struct {
	alertsRepo repository.AlertsRepository
	labelsRepo repository.GroundTruthRepository
	logger     *zap.Logger
}

func NewAccuracyService(alertsRepo repository.AlertsRepository, labelsRepo repository.GroundTruthRepository, logger *zap.Logger) AccuracyService {
	return &accuracyService{alertsRepo: alertsRepo, labelsRepo: labelsRepo, logger: logger}
}

func (s *accuracyService) Stats(ctx context.Context, w domain.Window) (domain.AccuracyStats, error) {
	if err := w.Validate(); err != nil {
		return domain.AccuracyStats{}, err
	}
	tp, err := s.labelsRepo.CountTruePositives(ctx, w)
	if err != nil {
		return domain.AccuracyStats{}, fmt.Errorf("failed to count true positives: %w", err)
	}
	fp, err := s.alertsRepo.CountFalsePositives(ctx, w)
	if err != nil {
		return domain.AccuracyStats{}, fmt.Errorf("failed to count false positives: %w", err)
	}
	stats := domain.AccuracyStats{Start: w.Start, End: w.End, TruePositives: tp, FalsePositives: fp}
	s.logger.Debug("Accuracy stats computed",
		zap.Int("true_positives", tp),
		zap.Int("false_positives", fp),
	)
	return stats, nil
}
