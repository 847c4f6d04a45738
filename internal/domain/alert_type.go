package domain

import "strings"

// AlertType 报警类型（运营分类，与 EventType 一一对应）
type AlertType string

const (
	AlertTypeGeneralRisk  AlertType = "GENERAL_RISK"
	AlertTypeArrhythmia   AlertType = "ARRHYTHMIA"
	AlertTypeDesat        AlertType = "DESAT"
	AlertTypeHypertension AlertType = "HYPERTENSION"
	AlertTypeHypotension  AlertType = "HYPOTENSION"
	AlertTypeFever        AlertType = "FEVER"
	AlertTypeHypothermia  AlertType = "HYPOTHERMIA"
)

const FallbackAlertType = AlertTypeGeneralRisk

func AlertTypes() []AlertType {
	return []AlertType{
		AlertTypeGeneralRisk,
		AlertTypeArrhythmia,
		AlertTypeDesat,
		AlertTypeHypertension,
		AlertTypeHypotension,
		AlertTypeFever,
		AlertTypeHypothermia,
	}
}

func ParseAlertType(code string) (AlertType, bool) {
	t := AlertType(normalizeCode(code))
	if t.Valid() {
		return t, true
	}
	return FallbackAlertType, false
}

func (t AlertType) Valid() bool {
	for _, known := range AlertTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// EventType returns the clinical event type sharing this code.
func (t AlertType) EventType() EventType {
	return EventType(t)
}

// DefaultLevel is the severity implied by the type's event classification.
func (t AlertType) DefaultLevel() AlertLevel {
	return t.EventType().DefaultLevel()
}

func (t AlertType) String() string { return string(t) }

// wire codes are upper snake case; upstream occasionally sends lower case
func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
