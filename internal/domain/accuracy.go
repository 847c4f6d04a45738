package domain

import "time"

// AccuracyStats aggregate detector outcomes over a window, computed by the authority.
type AccuracyStats struct {
	Start          *time.Time `json:"start,omitempty"`
	End            *time.Time `json:"end,omitempty"`
	TruePositives  int        `json:"true_positives"`
	FalsePositives int        `json:"false_positives"`
}

func (s AccuracyStats) Total() int {
	return s.TruePositives + s.FalsePositives
}

// Precision is TP/(TP+FP); 0 when nothing was judged in the window.
func (s AccuracyStats) Precision() float64 {
	if s.Total() == 0 {
		return 0
	}
	return float64(s.TruePositives) / float64(s.Total())
}

// Window is a time range; a nil bound is unbounded on that side.
type Window struct {
	Start *time.Time
	End   *time.Time
}

func (w Window) Validate() error {
	if w.Start != nil && w.End != nil && w.End.Before(*w.Start) {
		return NewFailure(KindValidation, "window end is before start")
	}
	return nil
}

// Contains reports whether t falls inside the window, bounds inclusive.
func (w Window) Contains(t time.Time) bool {
	if w.Start != nil && t.Before(*w.Start) {
		return false
	}
	if w.End != nil && t.After(*w.End) {
		return false
	}
	return true
}
