// Package lifecycle drives alerts through CREATED/NOTIFIED -> ACKNOWLEDGED ->
// RESOLVED -> CLOSED against the authority and runs the ground-truth side effect
// of resolution.
//
// The manager never pre-checks a transition: the authority's state check is the
// only source of truth. A failed call returns the caller's snapshot unchanged and
// is never retried here.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"heartguard-alerts/internal/client"
	"heartguard-alerts/internal/domain"

	"go.uber.org/zap"
)

// Authority is the transport contract the manager depends on.
type Authority interface {
	FetchOrgAlerts(ctx context.Context, cred client.Credentials, orgID string, f domain.AlertFilter) ([]domain.Alert, error)
	FetchPatientAlerts(ctx context.Context, cred client.Credentials, patientID string, f domain.AlertFilter) ([]domain.Alert, error)
	Acknowledge(ctx context.Context, cred client.Credentials, alertID, actorUserID, notes string) (domain.Alert, error)
	Resolve(ctx context.Context, cred client.Credentials, alertID, actorUserID string, outcome domain.Outcome, notes string) (domain.Alert, error)
	Close(ctx context.Context, cred client.Credentials, alertID, actorUserID string) (domain.Alert, error)
	ValidateTruePositive(ctx context.Context, cred client.Credentials, orgID, alertID string, d domain.LabelDraft) (domain.GroundTruthLabel, error)
	ValidateFalsePositive(ctx context.Context, cred client.Credentials, alertID, actorUserID, reason string) (domain.Alert, error)
	CreateManualGroundTruth(ctx context.Context, cred client.Credentials, d domain.LabelDraft) (domain.GroundTruthLabel, error)
	FetchPatientGroundTruth(ctx context.Context, cred client.Credentials, patientID string) ([]domain.GroundTruthLabel, error)
	FetchAccuracyStats(ctx context.Context, cred client.Credentials, w domain.Window) (domain.AccuracyStats, error)
}

var _ Authority = (*client.Client)(nil)

// ErrTransitionInFlight is returned when a transition is requested for an alert
// that already has one outstanding on this manager. Callers serialize by alert id.
var ErrTransitionInFlight = errors.New("a transition for this alert is already in flight")

// SideEffectError reports that the alert was resolved at the authority but the
// ground-truth side effect of the outcome did not complete. ApplyOutcome retries
// only the side effect.
type SideEffectError struct {
	AlertID string
	Outcome domain.Outcome
	Err     error
}

func (e *SideEffectError) Error() string {
	return fmt.Sprintf("alert %s resolved but %s side effect failed: %v", e.AlertID, e.Outcome, e.Err)
}

func (e *SideEffectError) Unwrap() error { return e.Err }

// ResolveResult is the outcome of Resolve. Label is set only for TRUE_POSITIVE.
type ResolveResult struct {
	Alert domain.Alert
	Label domain.GroundTruthLabel
}

func (r ResolveResult) HasLabel() bool { return !r.Label.IsZero() }

// Manager 告警生命周期管理
type Manager struct {
	authority Authority
	logger    *zap.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewManager(authority Authority, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		authority: authority,
		logger:    logger,
		inFlight:  make(map[string]struct{}),
	}
}

func (m *Manager) begin(alertID string) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.inFlight[alertID]; busy {
		return nil, fmt.Errorf("alert %s: %w", alertID, ErrTransitionInFlight)
	}
	m.inFlight[alertID] = struct{}{}
	return func() {
		m.mu.Lock()
		delete(m.inFlight, alertID)
		m.mu.Unlock()
	}, nil
}

func (m *Manager) failed(op string, alert domain.Alert, err error) {
	m.logger.Warn("Alert transition failed",
		zap.String("op", op),
		zap.String("alert_id", alert.ID()),
		zap.String("status", string(alert.Status())),
		zap.String("kind", domain.KindOf(err).String()),
		zap.Bool("retryable", domain.IsRetryable(err)),
		zap.Error(err),
	)
}

// Acknowledge moves alert to ACKNOWLEDGED. On failure the given snapshot is returned.
func (m *Manager) Acknowledge(ctx context.Context, s *Session, alert domain.Alert, actorUserID, notes string) (domain.Alert, error) {
	cred, err := s.credentials()
	if err != nil {
		return alert, err
	}
	done, err := m.begin(alert.ID())
	if err != nil {
		return alert, err
	}
	defer done()

	updated, err := m.authority.Acknowledge(ctx, cred, alert.ID(), actorUserID, notes)
	if err = s.observe(err); err != nil {
		m.failed("acknowledge", alert, err)
		return alert, err
	}
	m.logger.Info("Alert acknowledged",
		zap.String("alert_id", updated.ID()),
		zap.String("actor_user_id", actorUserID),
	)
	return updated, nil
}

// Resolve moves alert to RESOLVED and then records the outcome:
// TRUE_POSITIVE creates exactly one ground-truth label, FALSE_POSITIVE creates
// none and marks the alert instead.
//
// If the resolution succeeds but the side effect does not, the resolved alert is
// returned together with a *SideEffectError.
func (m *Manager) Resolve(ctx context.Context, s *Session, alert domain.Alert, actorUserID string, outcome domain.Outcome, notes string) (ResolveResult, error) {
	if !outcome.Valid() {
		return ResolveResult{Alert: alert}, domain.Failuref(domain.KindValidation, "unknown outcome %q", outcome)
	}
	cred, err := s.credentials()
	if err != nil {
		return ResolveResult{Alert: alert}, err
	}
	done, err := m.begin(alert.ID())
	if err != nil {
		return ResolveResult{Alert: alert}, err
	}
	defer done()

	resolved, err := m.authority.Resolve(ctx, cred, alert.ID(), actorUserID, outcome, notes)
	if err = s.observe(err); err != nil {
		m.failed("resolve", alert, err)
		return ResolveResult{Alert: alert}, err
	}
	m.logger.Info("Alert resolved",
		zap.String("alert_id", resolved.ID()),
		zap.String("outcome", string(outcome)),
		zap.String("actor_user_id", actorUserID),
	)
	return m.applyOutcome(ctx, s, cred, resolved, alert, actorUserID, outcome, notes)
}

// ApplyOutcome runs only the side effect of resolving with outcome. It is the
// caller's retry path after a *SideEffectError.
func (m *Manager) ApplyOutcome(ctx context.Context, s *Session, resolved domain.Alert, actorUserID string, outcome domain.Outcome, notes string) (ResolveResult, error) {
	if !outcome.Valid() {
		return ResolveResult{Alert: resolved}, domain.Failuref(domain.KindValidation, "unknown outcome %q", outcome)
	}
	cred, err := s.credentials()
	if err != nil {
		return ResolveResult{Alert: resolved}, err
	}
	done, err := m.begin(resolved.ID())
	if err != nil {
		return ResolveResult{Alert: resolved}, err
	}
	defer done()
	return m.applyOutcome(ctx, s, cred, resolved, resolved, actorUserID, outcome, notes)
}

func (m *Manager) applyOutcome(ctx context.Context, s *Session, cred client.Credentials, resolved, original domain.Alert, actorUserID string, outcome domain.Outcome, notes string) (ResolveResult, error) {
	sideEffect := func(err error) (ResolveResult, error) {
		err = &SideEffectError{AlertID: resolved.ID(), Outcome: outcome, Err: err}
		m.failed("apply_outcome", resolved, err)
		return ResolveResult{Alert: resolved}, err
	}

	switch outcome {
	case domain.OutcomeTruePositive:
		// onset is when the detector raised the event
		onset := resolved.CreatedAt()
		if onset.IsZero() {
			onset = original.CreatedAt()
		}
		patientID := resolved.PatientID()
		if patientID == "" {
			patientID = original.PatientID()
		}
		orgID := resolved.OrgID()
		if orgID == "" {
			orgID = cred.OrgID
		}
		draft := domain.LabelDraft{
			PatientID:     patientID,
			EventType:     resolved.EventType(),
			Onset:         onset,
			ActorUserID:   actorUserID,
			ActorUserName: s.userName,
			Note:          notes,
		}
		if err := draft.Validate(); err != nil {
			return sideEffect(err)
		}
		label, err := m.authority.ValidateTruePositive(ctx, cred, orgID, resolved.ID(), draft)
		if err = s.observe(err); err != nil {
			return sideEffect(err)
		}
		m.logger.Info("Ground truth recorded for alert",
			zap.String("alert_id", resolved.ID()),
			zap.String("label_id", label.ID()),
			zap.String("source", string(label.Source())),
		)
		return ResolveResult{Alert: resolved, Label: label}, nil

	default:
		marked, err := m.authority.ValidateFalsePositive(ctx, cred, resolved.ID(), actorUserID, notes)
		if err = s.observe(err); err != nil {
			return sideEffect(err)
		}
		m.logger.Info("Alert marked false positive", zap.String("alert_id", marked.ID()))
		return ResolveResult{Alert: marked}, nil
	}
}

// Close moves a RESOLVED alert to the terminal CLOSED status.
func (m *Manager) Close(ctx context.Context, s *Session, alert domain.Alert, actorUserID string) (domain.Alert, error) {
	cred, err := s.credentials()
	if err != nil {
		return alert, err
	}
	done, err := m.begin(alert.ID())
	if err != nil {
		return alert, err
	}
	defer done()

	updated, err := m.authority.Close(ctx, cred, alert.ID(), actorUserID)
	if err = s.observe(err); err != nil {
		m.failed("close", alert, err)
		return alert, err
	}
	m.logger.Info("Alert closed",
		zap.String("alert_id", updated.ID()),
		zap.String("actor_user_id", actorUserID),
	)
	return updated, nil
}

// CreateManualGroundTruth records an event observed without AI involvement.
// The authority stores it with source MANUAL.
func (m *Manager) CreateManualGroundTruth(ctx context.Context, s *Session, d domain.LabelDraft) (domain.GroundTruthLabel, error) {
	if err := d.Validate(); err != nil {
		return domain.GroundTruthLabel{}, err
	}
	if d.ActorUserName == "" {
		d.ActorUserName = s.userName
	}
	return Call(s, func(cred client.Credentials) (domain.GroundTruthLabel, error) {
		return m.authority.CreateManualGroundTruth(ctx, cred, d)
	})
}

func (m *Manager) FetchOrgAlerts(ctx context.Context, s *Session, orgID string, f domain.AlertFilter) ([]domain.Alert, error) {
	return Call(s, func(cred client.Credentials) ([]domain.Alert, error) {
		return m.authority.FetchOrgAlerts(ctx, cred, orgID, f)
	})
}

func (m *Manager) FetchPatientAlerts(ctx context.Context, s *Session, patientID string, f domain.AlertFilter) ([]domain.Alert, error) {
	return Call(s, func(cred client.Credentials) ([]domain.Alert, error) {
		return m.authority.FetchPatientAlerts(ctx, cred, patientID, f)
	})
}

func (m *Manager) FetchPatientGroundTruth(ctx context.Context, s *Session, patientID string) ([]domain.GroundTruthLabel, error) {
	return Call(s, func(cred client.Credentials) ([]domain.GroundTruthLabel, error) {
		return m.authority.FetchPatientGroundTruth(ctx, cred, patientID)
	})
}
