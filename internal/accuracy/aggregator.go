// Package accuracy exposes the authority's true/false-positive counts. Nothing is
// computed locally, so every client sees the same figures for the same window.
package accuracy

import (
	"context"

	"heartguard-alerts/internal/client"
	"heartguard-alerts/internal/domain"
	"heartguard-alerts/internal/lifecycle"

	"go.uber.org/zap"
)

// StatsSource is the part of the transport the aggregator reads from.
type StatsSource interface {
	FetchAccuracyStats(ctx context.Context, cred client.Credentials, w domain.Window) (domain.AccuracyStats, error)
}

// Aggregator 模型准确率统计（只读）
type Aggregator struct {
	source StatsSource
	logger *zap.Logger
}

func NewAggregator(source StatsSource, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{source: source, logger: logger}
}

// Stats returns the counts for w. A window with end before start is rejected
// without contacting the authority; an empty window yields zero counts.
func (a *Aggregator) Stats(ctx context.Context, s *lifecycle.Session, w domain.Window) (domain.AccuracyStats, error) {
	if err := w.Validate(); err != nil {
		return domain.AccuracyStats{}, err
	}
	return lifecycle.Call(s, func(cred client.Credentials) (domain.AccuracyStats, error) {
		stats, err := a.source.FetchAccuracyStats(ctx, cred, w)
		if err != nil {
			a.logger.Warn("Failed to fetch accuracy stats", zap.Error(err))
			return domain.AccuracyStats{}, err
		}
		a.logger.Debug("Accuracy stats fetched",
			zap.Int("true_positives", stats.TruePositives),
			zap.Int("false_positives", stats.FalsePositives),
		)
		return stats, nil
	})
}

// StatsAsync runs Stats on its own goroutine.
func (a *Aggregator) StatsAsync(ctx context.Context, s *lifecycle.Session, w domain.Window) <-chan lifecycle.Result[domain.AccuracyStats] {
	return lifecycle.Go(ctx, func(ctx context.Context) (domain.AccuracyStats, error) {
		return a.Stats(ctx, s, w)
	})
}
