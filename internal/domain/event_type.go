package domain

// EventType clinical classification of a confirmed event.
type EventType string

const (
	EventTypeGeneralRisk  EventType = "GENERAL_RISK"
	EventTypeArrhythmia   EventType = "ARRHYTHMIA"
	EventTypeDesat        EventType = "DESAT"
	EventTypeHypertension EventType = "HYPERTENSION"
	EventTypeHypotension  EventType = "HYPOTENSION"
	EventTypeFever        EventType = "FEVER"
	EventTypeHypothermia  EventType = "HYPOTHERMIA"
)

const FallbackEventType = EventTypeGeneralRisk

var eventDefaultLevel = map[EventType]AlertLevel{
	EventTypeGeneralRisk:  AlertLevelMedium,
	EventTypeArrhythmia:   AlertLevelHigh,
	EventTypeDesat:        AlertLevelHigh,
	EventTypeHypertension: AlertLevelMedium,
	EventTypeHypotension:  AlertLevelHigh,
	EventTypeFever:        AlertLevelMedium,
	EventTypeHypothermia:  AlertLevelHigh,
}

func EventTypes() []EventType {
	out := make([]EventType, 0, len(eventDefaultLevel))
	for _, t := range AlertTypes() {
		out = append(out, t.EventType())
	}
	return out
}

func ParseEventType(code string) (EventType, bool) {
	e := EventType(normalizeCode(code))
	if e.Valid() {
		return e, true
	}
	return FallbackEventType, false
}

func (e EventType) Valid() bool {
	_, ok := eventDefaultLevel[e]
	return ok
}

func (e EventType) AlertType() AlertType {
	return AlertType(e)
}

func (e EventType) DefaultLevel() AlertLevel {
	if l, ok := eventDefaultLevel[e]; ok {
		return l
	}
	return FallbackAlertLevel
}

func (e EventType) String() string { return string(e) }
