package httpapi

import (
	"context"
	"errors"
	"testing"
	"time"

	"heartguard-alerts/internal/accuracy"
	"heartguard-alerts/internal/client"
	"heartguard-alerts/internal/domain"
	"heartguard-alerts/internal/lifecycle"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func seedAlert(t *testing.T, env *testEnv, id, patientID string, model *string, createdAt time.Time) domain.Alert {
	t.Helper()
	a := domain.MustAlert(domain.AlertParams{
		ID: id, OrgID: "org-1", PatientID: patientID, Type: domain.AlertTypeDesat,
		Level: domain.AlertLevelHigh, Status: domain.AlertStatusCreated, CreatedAt: createdAt,
		CreatedByModelID: model,
	})
	require.NoError(t, env.alerts.CreateAlert(context.Background(), a))
	return a
}

func TestLifecycleAgainstAuthority(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	createdAt := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	model := "spo2-v1"
	tp := seedAlert(t, env, "a-1", "p-1", &model, createdAt)
	fp := seedAlert(t, env, "a-2", "p-2", &model, createdAt.Add(time.Minute))

	c := client.New(env.server.URL, zap.NewNop(), client.WithRetry(0, 0, 0))
	mgr := lifecycle.NewManager(c, zap.NewNop())
	session := lifecycle.NewSession("tok-1", "org-1").WithUserName("Nurse One")

	t.Run("true positive records one AI label", func(t *testing.T) {
		acked, err := mgr.Acknowledge(ctx, session, tp, "nurse-1", "")
		require.NoError(t, err)
		assert.Equal(t, domain.AlertStatusAcknowledged, acked.Status())

		res, err := mgr.Resolve(ctx, session, acked, "nurse-1", domain.OutcomeTruePositive, "confirmed")
		require.NoError(t, err)
		assert.Equal(t, domain.AlertStatusResolved, res.Alert.Status())
		require.True(t, res.HasLabel())
		assert.Equal(t, domain.SourceAIModel, res.Label.Source())
		assert.Equal(t, "a-1", res.Label.AlertID())
		assert.True(t, res.Label.Onset().Equal(createdAt))
		assert.Equal(t, "nurse-1", res.Label.AnnotatedByUserID())
		assert.Equal(t, "Nurse One", res.Label.AnnotatedByUserName())

		labels, err := mgr.FetchPatientGroundTruth(ctx, session, "p-1")
		require.NoError(t, err)
		assert.Len(t, labels, 1)

		_, err = mgr.ApplyOutcome(ctx, session, res.Alert, "nurse-1", domain.OutcomeTruePositive, "")
		var side *lifecycle.SideEffectError
		require.True(t, errors.As(err, &side))
		assert.True(t, domain.IsStateConflict(err))
	})

	t.Run("false positive records no label", func(t *testing.T) {
		acked, err := mgr.Acknowledge(ctx, session, fp, "nurse-1", "")
		require.NoError(t, err)
		res, err := mgr.Resolve(ctx, session, acked, "nurse-1", domain.OutcomeFalsePositive, "motion artifact")
		require.NoError(t, err)
		assert.False(t, res.HasLabel())
		assert.True(t, res.Alert.IsFalsePositive())

		labels, err := mgr.FetchPatientGroundTruth(ctx, session, "p-2")
		require.NoError(t, err)
		assert.Empty(t, labels)

		closed, err := mgr.Close(ctx, session, res.Alert, "nurse-1")
		require.NoError(t, err)
		assert.Equal(t, domain.AlertStatusClosed, closed.Status())
	})

	t.Run("accuracy counts", func(t *testing.T) {
		agg := accuracy.NewAggregator(c, zap.NewNop())
		stats, err := agg.Stats(ctx, session, domain.Window{})
		require.NoError(t, err)
		assert.Equal(t, 1, stats.TruePositives)
		assert.Equal(t, 1, stats.FalsePositives)

		start := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(0, 0, 1)
		stats, err = agg.Stats(ctx, session, domain.Window{Start: &start, End: &end})
		require.NoError(t, err)
		assert.Zero(t, stats.Total())
		assert.Zero(t, stats.Precision())
	})

	t.Run("out of scope org keeps the session", func(t *testing.T) {
		_, err := mgr.FetchOrgAlerts(ctx, session, "org-2", domain.AlertFilter{})
		require.Error(t, err)
		assert.True(t, domain.IsRejected(err))
		assert.False(t, domain.IsAuthFailure(err))
		assert.False(t, session.Terminated())

		alerts, err := mgr.FetchOrgAlerts(ctx, session, "org-1", domain.AlertFilter{})
		require.NoError(t, err)
		assert.Len(t, alerts, 2)
	})

	t.Run("auth failure terminates the session", func(t *testing.T) {
		stale := lifecycle.NewSession("stale", "org-1")
		_, err := mgr.FetchOrgAlerts(ctx, stale, "org-1", domain.AlertFilter{})
		require.Error(t, err)
		assert.True(t, domain.IsAuthFailure(err))
		assert.True(t, stale.Terminated())

		_, err = mgr.FetchPatientAlerts(ctx, stale, "p-1", domain.AlertFilter{})
		assert.ErrorIs(t, err, lifecycle.ErrSessionTerminated)

		alerts, err := mgr.FetchOrgAlerts(ctx, session, "org-1", domain.AlertFilter{Status: domain.AlertStatusClosed})
		require.NoError(t, err)
		require.Len(t, alerts, 1)
		assert.Equal(t, "a-2", alerts[0].ID())
	})
}
