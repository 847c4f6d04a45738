package domain

// AlertStatus 报警生命周期状态
// CREATED → NOTIFIED → ACKNOWLEDGED → RESOLVED → CLOSED
type AlertStatus string

const (
	AlertStatusCreated      AlertStatus = "CREATED"
	AlertStatusNotified     AlertStatus = "NOTIFIED"
	AlertStatusAcknowledged AlertStatus = "ACKNOWLEDGED"
	AlertStatusResolved     AlertStatus = "RESOLVED"
	AlertStatusClosed       AlertStatus = "CLOSED"
)

const FallbackAlertStatus = AlertStatusCreated

// legal transitions: target -> allowed source states
var transitionSources = map[AlertStatus][]AlertStatus{
	AlertStatusAcknowledged: {AlertStatusCreated, AlertStatusNotified},
	AlertStatusResolved:     {AlertStatusAcknowledged},
	AlertStatusClosed:       {AlertStatusResolved},
}

func AlertStatuses() []AlertStatus {
	return []AlertStatus{
		AlertStatusCreated,
		AlertStatusNotified,
		AlertStatusAcknowledged,
		AlertStatusResolved,
		AlertStatusClosed,
	}
}

func ParseAlertStatus(code string) (AlertStatus, bool) {
	s := AlertStatus(normalizeCode(code))
	if s.Valid() {
		return s, true
	}
	return FallbackAlertStatus, false
}

func (s AlertStatus) Valid() bool {
	switch s {
	case AlertStatusCreated, AlertStatusNotified, AlertStatusAcknowledged, AlertStatusResolved, AlertStatusClosed:
		return true
	}
	return false
}

// IsActive is false only for RESOLVED and CLOSED.
func (s AlertStatus) IsActive() bool {
	return s != AlertStatusResolved && s != AlertStatusClosed
}

// RequiresAttention is true only for CREATED and NOTIFIED.
func (s AlertStatus) RequiresAttention() bool {
	return s == AlertStatusCreated || s == AlertStatusNotified
}

// IsTerminal reports whether no further transition is permitted.
func (s AlertStatus) IsTerminal() bool {
	return s == AlertStatusClosed
}

// CanTransitionTo reports whether s -> target is one of the legal transitions.
func (s AlertStatus) CanTransitionTo(target AlertStatus) bool {
	for _, src := range transitionSources[target] {
		if src == s {
			return true
		}
	}
	return false
}

// TransitionSources returns the states from which target may be entered.
func TransitionSources(target AlertStatus) []AlertStatus {
	src := transitionSources[target]
	out := make([]AlertStatus, len(src))
	copy(out, src)
	return out
}

func (s AlertStatus) String() string { return string(s) }
