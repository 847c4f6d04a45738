package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"heartguard-alerts/internal/client"
	"heartguard-alerts/internal/domain"
)

// fakeAuthority keeps alerts and labels in memory and applies the same state
// checks as the real authority.
type fakeAuthority struct {
	mu     sync.Mutex
	now    time.Time
	alerts map[string]domain.Alert
	labels []domain.GroundTruthLabel
	calls  map[string]int

	// failNext makes the next call of the named op return the error.
	failNext map[string]error
	// block, when set, holds Acknowledge until it is closed.
	block chan struct{}
	// entered is signalled when a blocked Acknowledge has started.
	entered chan struct{}
}

func newFakeAuthority(alerts ...domain.Alert) *fakeAuthority {
	f := &fakeAuthority{
		now:      time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		alerts:   map[string]domain.Alert{},
		calls:    map[string]int{},
		failNext: map[string]error{},
	}
	for _, a := range alerts {
		f.alerts[a.ID()] = a
	}
	return f
}

func (f *fakeAuthority) enter(op string) error {
	f.calls[op]++
	if err, ok := f.failNext[op]; ok {
		delete(f.failNext, op)
		return err
	}
	return nil
}

func (f *fakeAuthority) get(id string) (domain.Alert, error) {
	a, ok := f.alerts[id]
	if !ok {
		return domain.Alert{}, domain.Failuref(domain.KindNotFound, "alert %s not found", id)
	}
	return a, nil
}

func (f *fakeAuthority) store(a domain.Alert, err error) (domain.Alert, error) {
	if err != nil {
		return domain.Alert{}, err
	}
	f.alerts[a.ID()] = a
	return a, nil
}

func (f *fakeAuthority) FetchOrgAlerts(_ context.Context, _ client.Credentials, orgID string, flt domain.AlertFilter) ([]domain.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("fetch_org"); err != nil {
		return nil, err
	}
	var out []domain.Alert
	for _, a := range f.alerts {
		if a.OrgID() == orgID && flt.Matches(a) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAuthority) FetchPatientAlerts(_ context.Context, _ client.Credentials, patientID string, flt domain.AlertFilter) ([]domain.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("fetch_patient"); err != nil {
		return nil, err
	}
	var out []domain.Alert
	for _, a := range f.alerts {
		if a.PatientID() == patientID && flt.Matches(a) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAuthority) Acknowledge(_ context.Context, _ client.Credentials, alertID, actorUserID, _ string) (domain.Alert, error) {
	if f.block != nil {
		f.entered <- struct{}{}
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("acknowledge"); err != nil {
		return domain.Alert{}, err
	}
	a, err := f.get(alertID)
	if err != nil {
		return domain.Alert{}, err
	}
	return f.store(a.Acknowledge(f.now, actorUserID))
}

func (f *fakeAuthority) Resolve(_ context.Context, _ client.Credentials, alertID, actorUserID string, _ domain.Outcome, _ string) (domain.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("resolve"); err != nil {
		return domain.Alert{}, err
	}
	a, err := f.get(alertID)
	if err != nil {
		return domain.Alert{}, err
	}
	return f.store(a.Resolve(f.now, actorUserID))
}

func (f *fakeAuthority) Close(_ context.Context, _ client.Credentials, alertID, _ string) (domain.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("close"); err != nil {
		return domain.Alert{}, err
	}
	a, err := f.get(alertID)
	if err != nil {
		return domain.Alert{}, err
	}
	return f.store(a.Close())
}

func (f *fakeAuthority) label(d domain.LabelDraft, alertID string, source domain.GroundTruthSource) (domain.GroundTruthLabel, error) {
	l, err := domain.NewGroundTruthLabel(domain.GroundTruthParams{
		ID:                fmt.Sprintf("gt-%d", len(f.labels)+1),
		PatientID:         d.PatientID,
		EventType:         d.EventType,
		Onset:             d.Onset,
		OffsetAt:          d.OffsetAt,
		AnnotatedByUserID: d.ActorUserID,
		Source:            source,
		Note:              d.Note,
		AlertID:           alertID,
		CreatedAt:         f.now,
		UpdatedAt:         f.now,
	})
	if err != nil {
		return domain.GroundTruthLabel{}, err
	}
	f.labels = append(f.labels, l)
	return l, nil
}

func (f *fakeAuthority) ValidateTruePositive(_ context.Context, _ client.Credentials, _ string, alertID string, d domain.LabelDraft) (domain.GroundTruthLabel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("true_positive"); err != nil {
		return domain.GroundTruthLabel{}, err
	}
	a, err := f.get(alertID)
	if err != nil {
		return domain.GroundTruthLabel{}, err
	}
	source := domain.SourceManual
	if a.IsAIOriginated() {
		source = domain.SourceAIModel
	}
	return f.label(d, alertID, source)
}

func (f *fakeAuthority) ValidateFalsePositive(_ context.Context, _ client.Credentials, alertID, _ string, reason string) (domain.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("false_positive"); err != nil {
		return domain.Alert{}, err
	}
	a, err := f.get(alertID)
	if err != nil {
		return domain.Alert{}, err
	}
	return f.store(a.MarkFalsePositive(reason, f.now))
}

func (f *fakeAuthority) CreateManualGroundTruth(_ context.Context, _ client.Credentials, d domain.LabelDraft) (domain.GroundTruthLabel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("manual"); err != nil {
		return domain.GroundTruthLabel{}, err
	}
	return f.label(d, "", domain.SourceManual)
}

func (f *fakeAuthority) FetchPatientGroundTruth(_ context.Context, _ client.Credentials, patientID string) ([]domain.GroundTruthLabel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("fetch_labels"); err != nil {
		return nil, err
	}
	var out []domain.GroundTruthLabel
	for _, l := range f.labels {
		if l.PatientID() == patientID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeAuthority) FetchAccuracyStats(_ context.Context, _ client.Credentials, w domain.Window) (domain.AccuracyStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("accuracy"); err != nil {
		return domain.AccuracyStats{}, err
	}
	stats := domain.AccuracyStats{Start: w.Start, End: w.End}
	for _, l := range f.labels {
		if l.Source() == domain.SourceAIModel && l.AlertID() != "" && w.Contains(l.CreatedAt()) {
			stats.TruePositives++
		}
	}
	for _, a := range f.alerts {
		if a.IsFalsePositive() && w.Contains(f.now) {
			stats.FalsePositives++
		}
	}
	return stats, nil
}
