package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"heartguard-alerts/internal/domain"
)

// MemoryAlertsRepo supports the service when DB is disabled.
// Transitions go through the same domain checks as the SQL conditions.
type MemoryAlertsRepo struct {
	mu     sync.RWMutex
	alerts map[string]domain.Alert
}

func NewMemoryAlertsRepo() *MemoryAlertsRepo {
	return &MemoryAlertsRepo{alerts: map[string]domain.Alert{}}
}

var _ AlertsRepository = (*MemoryAlertsRepo)(nil)

func (r *MemoryAlertsRepo) GetAlert(_ context.Context, alertID string) (domain.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.alerts[alertID]
	if !ok {
		return domain.Alert{}, notFound("alert", alertID)
	}
	return a, nil
}

func (r *MemoryAlertsRepo) ListAlerts(_ context.Context, filters AlertFilters) ([]domain.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Alert, 0, len(r.alerts))
	for _, a := range r.alerts {
		if filters.matches(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt().Equal(out[j].CreatedAt()) {
			return out[i].ID() < out[j].ID()
		}
		return out[i].CreatedAt().After(out[j].CreatedAt())
	})
	if len(out) > filters.limit() {
		out = out[:filters.limit()]
	}
	return out, nil
}

func (r *MemoryAlertsRepo) CreateAlert(_ context.Context, alert domain.Alert) error {
	if alert.IsZero() {
		return domain.NewFailure(domain.KindValidation, "alert is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.alerts[alert.ID()]; exists {
		return domain.Failuref(domain.KindStateConflict, "alert %s already exists", alert.ID())
	}
	if !alert.HasCreatedAt() {
		p := alert.Params()
		p.CreatedAt = time.Now().UTC()
		a, err := domain.NewAlert(p)
		if err != nil {
			return err
		}
		alert = a
	}
	r.alerts[alert.ID()] = alert
	return nil
}

// update applies fn to the stored alert under the write lock.
func (r *MemoryAlertsRepo) update(alertID string, fn func(domain.Alert) (domain.Alert, error)) (domain.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.alerts[alertID]
	if !ok {
		return domain.Alert{}, notFound("alert", alertID)
	}
	next, err := fn(current)
	if err != nil {
		return current, err
	}
	r.alerts[alertID] = next
	return next, nil
}

func (r *MemoryAlertsRepo) AcknowledgeAlert(_ context.Context, alertID, userID string, at time.Time) (domain.Alert, error) {
	return r.update(alertID, func(a domain.Alert) (domain.Alert, error) { return a.Acknowledge(at, userID) })
}

func (r *MemoryAlertsRepo) ResolveAlert(_ context.Context, alertID, userID string, at time.Time) (domain.Alert, error) {
	return r.update(alertID, func(a domain.Alert) (domain.Alert, error) { return a.Resolve(at, userID) })
}

func (r *MemoryAlertsRepo) CloseAlert(_ context.Context, alertID string) (domain.Alert, error) {
	return r.update(alertID, func(a domain.Alert) (domain.Alert, error) { return a.Close() })
}

func (r *MemoryAlertsRepo) MarkFalsePositive(_ context.Context, alertID, reason string, at time.Time) (domain.Alert, error) {
	return r.update(alertID, func(a domain.Alert) (domain.Alert, error) { return a.MarkFalsePositive(reason, at) })
}

func (r *MemoryAlertsRepo) CountFalsePositives(_ context.Context, w domain.Window) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, a := range r.alerts {
		if !a.IsFalsePositive() || !a.IsAIOriginated() {
			continue
		}
		if at := a.Params().FalsePositiveAt; at != nil && w.Contains(*at) {
			n++
		}
	}
	return n, nil
}

// MemoryGroundTruthRepo 内存版真值标注存储
type MemoryGroundTruthRepo struct {
	mu      sync.RWMutex
	labels  []domain.GroundTruthLabel
	byAlert map[string]int
}

func NewMemoryGroundTruthRepo() *MemoryGroundTruthRepo {
	return &MemoryGroundTruthRepo{byAlert: map[string]int{}}
}

var _ GroundTruthRepository = (*MemoryGroundTruthRepo)(nil)

func (r *MemoryGroundTruthRepo) CreateLabel(_ context.Context, label domain.GroundTruthLabel) error {
	if label.IsZero() {
		return domain.NewFailure(domain.KindValidation, "label is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.labels {
		if l.ID() == label.ID() {
			return domain.Failuref(domain.KindStateConflict, "ground truth label %s already exists", label.ID())
		}
	}
	if alertID := label.AlertID(); alertID != "" {
		if _, exists := r.byAlert[alertID]; exists {
			return domain.Failuref(domain.KindStateConflict, "alert %s already has a ground truth label", alertID)
		}
		r.byAlert[alertID] = len(r.labels)
	}
	r.labels = append(r.labels, label)
	return nil
}

func (r *MemoryGroundTruthRepo) ListLabelsByPatient(_ context.Context, patientID string) ([]domain.GroundTruthLabel, error) {
	if patientID == "" {
		return nil, domain.NewFailure(domain.KindValidation, "patient_id is required")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []domain.GroundTruthLabel{}
	for _, l := range r.labels {
		if l.PatientID() == patientID {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Onset().After(out[j].Onset()) })
	return out, nil
}

func (r *MemoryGroundTruthRepo) GetLabelByAlert(_ context.Context, alertID string) (domain.GroundTruthLabel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.byAlert[alertID]
	if !ok {
		return domain.GroundTruthLabel{}, notFound("ground truth label for alert", alertID)
	}
	return r.labels[i], nil
}

func (r *MemoryGroundTruthRepo) CountTruePositives(_ context.Context, w domain.Window) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, l := range r.labels {
		if l.Source() == domain.SourceAIModel && l.AlertID() != "" && w.Contains(l.CreatedAt()) {
			n++
		}
	}
	return n, nil
}
