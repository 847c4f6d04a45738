package domain

// AlertLevel 报警严重级别（LOW < MEDIUM < HIGH < CRITICAL）
type AlertLevel string

const (
	AlertLevelLow      AlertLevel = "LOW"
	AlertLevelMedium   AlertLevel = "MEDIUM"
	AlertLevelHigh     AlertLevel = "HIGH"
	AlertLevelCritical AlertLevel = "CRITICAL"
)

// FallbackAlertLevel is used when an upstream level code is not recognized.
const FallbackAlertLevel = AlertLevelMedium

var alertLevelPriority = map[AlertLevel]int{
	AlertLevelLow:      1,
	AlertLevelMedium:   2,
	AlertLevelHigh:     3,
	AlertLevelCritical: 4,
}

// AlertLevels returns all levels ordered by ascending priority.
func AlertLevels() []AlertLevel {
	return []AlertLevel{AlertLevelLow, AlertLevelMedium, AlertLevelHigh, AlertLevelCritical}
}

// ParseAlertLevel maps a wire code to a level.
// ok=false means the code was not recognized and FallbackAlertLevel was returned.
func ParseAlertLevel(code string) (AlertLevel, bool) {
	l := AlertLevel(normalizeCode(code))
	if _, ok := alertLevelPriority[l]; ok {
		return l, true
	}
	return FallbackAlertLevel, false
}

// Priority 1..4; 0 for an unknown level.
func (l AlertLevel) Priority() int {
	return alertLevelPriority[l]
}

func (l AlertLevel) Valid() bool {
	_, ok := alertLevelPriority[l]
	return ok
}

// HigherOrEqual reports whether l is at least as severe as other.
func (l AlertLevel) HigherOrEqual(other AlertLevel) bool {
	return l.Priority() >= other.Priority()
}

func (l AlertLevel) String() string { return string(l) }
