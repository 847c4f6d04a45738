package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"heartguard-alerts/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var createdAt = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func aiAlert(id string, status domain.AlertStatus) domain.Alert {
	return domain.MustAlert(domain.AlertParams{
		ID:               id,
		OrgID:            "org-1",
		PatientID:        "p-1",
		PatientName:      "Ana",
		Type:             domain.AlertTypeDesat,
		Level:            domain.AlertLevelHigh,
		Status:           status,
		Description:      "spo2 84",
		CreatedAt:        createdAt,
		CreatedByModelID: strPtr("spo2-v1"),
	})
}

func setup(alerts ...domain.Alert) (*Manager, *fakeAuthority, *Session) {
	auth := newFakeAuthority(alerts...)
	return NewManager(auth, zap.NewNop()), auth, NewSession("tok-1", "org-1")
}

func TestTransitionTable(t *testing.T) {
	type op func(m *Manager, s *Session, a domain.Alert) (domain.Alert, error)
	ops := map[domain.AlertStatus]op{
		domain.AlertStatusAcknowledged: func(m *Manager, s *Session, a domain.Alert) (domain.Alert, error) {
			return m.Acknowledge(context.Background(), s, a, "nurse-1", "")
		},
		domain.AlertStatusResolved: func(m *Manager, s *Session, a domain.Alert) (domain.Alert, error) {
			r, err := m.Resolve(context.Background(), s, a, "nurse-1", domain.OutcomeFalsePositive, "")
			return r.Alert, err
		},
		domain.AlertStatusClosed: func(m *Manager, s *Session, a domain.Alert) (domain.Alert, error) {
			return m.Close(context.Background(), s, a, "nurse-1")
		},
	}
	legal := map[[2]domain.AlertStatus]bool{
		{domain.AlertStatusCreated, domain.AlertStatusAcknowledged}:  true,
		{domain.AlertStatusNotified, domain.AlertStatusAcknowledged}: true,
		{domain.AlertStatusAcknowledged, domain.AlertStatusResolved}: true,
		{domain.AlertStatusResolved, domain.AlertStatusClosed}:       true,
	}

	for _, from := range domain.AlertStatuses() {
		for target, run := range ops {
			from, target, run := from, target, run
			t.Run(string(from)+"->"+string(target), func(t *testing.T) {
				snapshot := aiAlert("a-1", from)
				m, _, s := setup(snapshot)

				got, err := run(m, s, snapshot)
				if legal[[2]domain.AlertStatus{from, target}] {
					require.NoError(t, err)
					assert.Equal(t, target, got.Status())
					return
				}
				require.Error(t, err)
				assert.True(t, domain.IsStateConflict(err), "got %v", err)
				assert.False(t, domain.IsRetryable(err))
				assert.Equal(t, snapshot.Params(), got.Params())
			})
		}
	}
}

// Scenario B
func TestResolveTruePositive_CreatesOneAIModelLabel(t *testing.T) {
	alert := aiAlert("a-1", domain.AlertStatusAcknowledged)
	m, auth, s := setup(alert)

	res, err := m.Resolve(context.Background(), s, alert, "nurse-1", domain.OutcomeTruePositive, "confirmed by nurse")
	require.NoError(t, err)
	assert.Equal(t, domain.AlertStatusResolved, res.Alert.Status())
	require.True(t, res.HasLabel())

	require.Len(t, auth.labels, 1)
	l := auth.labels[0]
	assert.Equal(t, domain.SourceAIModel, l.Source())
	assert.True(t, l.Onset().Equal(alert.CreatedAt()))
	assert.Equal(t, domain.EventTypeDesat, l.EventType())
	assert.Equal(t, "p-1", l.PatientID())
	assert.Equal(t, "confirmed by nurse", l.Note())
	assert.Equal(t, "a-1", l.AlertID())
	assert.Equal(t, l.ID(), res.Label.ID())
}

// Scenario C
func TestResolveFalsePositive_CreatesNoLabel(t *testing.T) {
	alert := aiAlert("a-1", domain.AlertStatusAcknowledged)
	m, auth, s := setup(alert)

	res, err := m.Resolve(context.Background(), s, alert, "nurse-1", domain.OutcomeFalsePositive, "sensor noise")
	require.NoError(t, err)
	assert.Equal(t, domain.AlertStatusResolved, res.Alert.Status())
	assert.False(t, res.HasLabel())
	assert.Empty(t, auth.labels)
	assert.True(t, res.Alert.IsFalsePositive())
	assert.Equal(t, "sensor noise", res.Alert.FalsePositiveReason())
}

func TestResolveTwice_SecondIsStateConflict(t *testing.T) {
	alert := aiAlert("a-1", domain.AlertStatusAcknowledged)
	m, auth, s := setup(alert)

	first, err := m.Resolve(context.Background(), s, alert, "nurse-1", domain.OutcomeTruePositive, "")
	require.NoError(t, err)
	resolvedAt, _, ok := first.Alert.Resolution()
	require.True(t, ok)

	auth.now = auth.now.Add(time.Hour)
	second, err := m.Resolve(context.Background(), s, first.Alert, "nurse-2", domain.OutcomeTruePositive, "")
	assert.True(t, domain.IsStateConflict(err))
	again, by, _ := second.Alert.Resolution()
	assert.True(t, again.Equal(resolvedAt))
	assert.Equal(t, "nurse-1", by)
	assert.Len(t, auth.labels, 1)
}

func TestResolve_SideEffectFailureKeepsResolvedAlert(t *testing.T) {
	alert := aiAlert("a-1", domain.AlertStatusAcknowledged)
	m, auth, s := setup(alert)
	auth.failNext["true_positive"] = domain.NewFailure(domain.KindTransport, "timeout")

	res, err := m.Resolve(context.Background(), s, alert, "nurse-1", domain.OutcomeTruePositive, "confirmed")
	var se *SideEffectError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "a-1", se.AlertID)
	assert.True(t, domain.IsRetryable(err))
	assert.Equal(t, domain.AlertStatusResolved, res.Alert.Status())
	assert.False(t, res.HasLabel())

	// only the side effect is retried
	retry, err := m.ApplyOutcome(context.Background(), s, res.Alert, "nurse-1", domain.OutcomeTruePositive, "confirmed")
	require.NoError(t, err)
	assert.True(t, retry.HasLabel())
	assert.Equal(t, 1, auth.calls["resolve"])
	assert.Len(t, auth.labels, 1)
}

func TestResolve_UnknownOutcomeIsRejectedLocally(t *testing.T) {
	alert := aiAlert("a-1", domain.AlertStatusAcknowledged)
	m, auth, s := setup(alert)

	res, err := m.Resolve(context.Background(), s, alert, "nurse-1", domain.Outcome("MAYBE"), "")
	assert.True(t, domain.IsValidation(err))
	assert.Equal(t, alert.Params(), res.Alert.Params())
	assert.Zero(t, auth.calls["resolve"])
}

func TestAuthFailureTerminatesSession(t *testing.T) {
	alert := aiAlert("a-1", domain.AlertStatusCreated)
	m, auth, s := setup(alert)
	auth.failNext["acknowledge"] = &domain.Failure{Kind: domain.KindAuth, Code: domain.CodeTokenExpired, Status: 401, Message: "token expired"}

	got, err := m.Acknowledge(context.Background(), s, alert, "nurse-1", "")
	assert.True(t, domain.IsAuthFailure(err))
	assert.Equal(t, alert.Params(), got.Params())
	assert.True(t, s.Terminated())

	_, err = m.Acknowledge(context.Background(), s, alert, "nurse-1", "")
	assert.ErrorIs(t, err, ErrSessionTerminated)
	assert.True(t, domain.IsAuthFailure(err))
	_, err = m.FetchPatientAlerts(context.Background(), s, "p-1", domain.AlertFilter{})
	assert.ErrorIs(t, err, ErrSessionTerminated)
	assert.Equal(t, 1, auth.calls["acknowledge"])
	assert.Zero(t, auth.calls["fetch_patient"])

	// a fresh session is unaffected
	_, err = m.Acknowledge(context.Background(), NewSession("tok-2", "org-1"), alert, "nurse-1", "")
	assert.NoError(t, err)
}

func TestOtherFailuresDoNotTerminateSession(t *testing.T) {
	alert := aiAlert("a-1", domain.AlertStatusCreated)
	m, auth, s := setup(alert)
	auth.failNext["acknowledge"] = domain.NewFailure(domain.KindTransport, "reset")

	_, err := m.Acknowledge(context.Background(), s, alert, "nurse-1", "")
	assert.True(t, domain.IsRetryable(err))
	assert.False(t, s.Terminated())
	assert.Equal(t, 1, auth.calls["acknowledge"], "transitions are not retried")
}

func TestConcurrentTransitionOnSameAlertIsRejected(t *testing.T) {
	a1 := aiAlert("a-1", domain.AlertStatusCreated)
	a2 := aiAlert("a-2", domain.AlertStatusCreated)
	m, auth, s := setup(a1, a2)
	auth.block = make(chan struct{})
	auth.entered = make(chan struct{})

	pending := m.AcknowledgeAsync(context.Background(), s, a1, "nurse-1", "")
	<-auth.entered

	_, err := m.Resolve(context.Background(), s, a1, "nurse-2", domain.OutcomeTruePositive, "")
	assert.ErrorIs(t, err, ErrTransitionInFlight)

	other := m.CloseAsync(context.Background(), s, a2, "nurse-2")
	r := <-other
	assert.True(t, domain.IsStateConflict(r.Err), "different alerts are independent")

	close(auth.block)
	res := <-pending
	require.NoError(t, res.Err)
	assert.Equal(t, domain.AlertStatusAcknowledged, res.Value.Status())

	_, ok := <-pending
	assert.False(t, ok, "channel is closed after the result")

	_, err = m.Resolve(context.Background(), s, res.Value, "nurse-2", domain.OutcomeFalsePositive, "")
	assert.NoError(t, err)
}

func TestCreateManualGroundTruth(t *testing.T) {
	m, auth, s := setup()
	onset := time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC)
	offset := onset.Add(15 * time.Minute)

	l, err := m.CreateManualGroundTruth(context.Background(), s, domain.LabelDraft{
		PatientID: "p-9", EventType: domain.EventTypeFever, Onset: onset, OffsetAt: &offset,
		ActorUserID: "dr-1", Note: "38.9C",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SourceManual, l.Source())
	assert.Empty(t, l.AlertID())

	_, err = m.CreateManualGroundTruth(context.Background(), s, domain.LabelDraft{
		PatientID: "p-9", EventType: domain.EventTypeFever, Onset: onset, OffsetAt: &createdAt, ActorUserID: "dr-1",
	})
	assert.True(t, domain.IsValidation(err))
	assert.Equal(t, 1, auth.calls["manual"])

	labels, err := m.FetchPatientGroundTruth(context.Background(), s, "p-9")
	require.NoError(t, err)
	assert.Len(t, labels, 1)
}

func TestFetchOrgAlerts_AppliesFilter(t *testing.T) {
	m, _, s := setup(aiAlert("a-1", domain.AlertStatusCreated), aiAlert("a-2", domain.AlertStatusResolved))

	alerts, err := m.FetchOrgAlerts(context.Background(), s, "org-1", domain.AlertFilter{Status: domain.AlertStatusResolved})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "a-2", alerts[0].ID())
}
