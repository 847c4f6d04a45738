// Package catalog holds presentation metadata for classification codes.
// The domain core never imports it; consumers resolve a code when they render.
package catalog

import (
	"heartguard-alerts/internal/domain"
)

// Display 展示元数据（标签、说明、颜色）
type Display struct {
	Code        string `json:"code"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
}

var alertTypes = map[domain.AlertType]Display{
	domain.AlertTypeGeneralRisk:  {Label: "General risk", Description: "Composite deterioration risk"},
	domain.AlertTypeArrhythmia:   {Label: "Arrhythmia", Description: "Irregular heart rhythm"},
	domain.AlertTypeDesat:        {Label: "Desaturation", Description: "Oxygen saturation below threshold"},
	domain.AlertTypeHypertension: {Label: "Hypertension", Description: "Blood pressure above threshold"},
	domain.AlertTypeHypotension:  {Label: "Hypotension", Description: "Blood pressure below threshold"},
	domain.AlertTypeFever:        {Label: "Fever", Description: "Body temperature above threshold"},
	domain.AlertTypeHypothermia:  {Label: "Hypothermia", Description: "Body temperature below threshold"},
}

var alertLevels = map[domain.AlertLevel]Display{
	domain.AlertLevelLow:      {Label: "Low", Color: "#4CAF50"},
	domain.AlertLevelMedium:   {Label: "Medium", Color: "#FFC107"},
	domain.AlertLevelHigh:     {Label: "High", Color: "#FF5722"},
	domain.AlertLevelCritical: {Label: "Critical", Color: "#B71C1C"},
}

var alertStatuses = map[domain.AlertStatus]Display{
	domain.AlertStatusCreated:      {Label: "Created", Color: "#2196F3"},
	domain.AlertStatusNotified:     {Label: "Notified", Color: "#03A9F4"},
	domain.AlertStatusAcknowledged: {Label: "Acknowledged", Color: "#FF9800"},
	domain.AlertStatusResolved:     {Label: "Resolved", Color: "#8BC34A"},
	domain.AlertStatusClosed:       {Label: "Closed", Color: "#9E9E9E"},
}

var sources = map[domain.GroundTruthSource]Display{
	domain.SourceAIModel:       {Label: "AI model", Description: "Confirmed detection raised by a model"},
	domain.SourceManual:        {Label: "Manual", Description: "Observed by staff"},
	domain.SourceMedicalRecord: {Label: "Medical record", Description: "Taken from the clinical record"},
}

func lookup[K ~string](table map[K]Display, code K) Display {
	d, ok := table[code]
	if !ok {
		return Display{Code: string(code), Label: string(code)}
	}
	d.Code = string(code)
	return d
}

func AlertType(t domain.AlertType) Display { return lookup(alertTypes, t) }

func AlertLevel(l domain.AlertLevel) Display { return lookup(alertLevels, l) }

func AlertStatus(s domain.AlertStatus) Display { return lookup(alertStatuses, s) }

// EventType shares the alert type table; the codes are the same.
func EventType(e domain.EventType) Display { return lookup(alertTypes, e.AlertType()) }

func Source(s domain.GroundTruthSource) Display { return lookup(sources, s) }

// Tables 全部分类代码的展示元数据
type Tables struct {
	AlertTypes    []Display `json:"alert_types"`
	AlertLevels   []Display `json:"alert_levels"`
	AlertStatuses []Display `json:"alert_statuses"`
	Sources       []Display `json:"sources"`
}

// All returns every table in registry order.
func All() Tables {
	var t Tables
	for _, c := range domain.AlertTypes() {
		t.AlertTypes = append(t.AlertTypes, AlertType(c))
	}
	for _, c := range domain.AlertLevels() {
		t.AlertLevels = append(t.AlertLevels, AlertLevel(c))
	}
	for _, c := range domain.AlertStatuses() {
		t.AlertStatuses = append(t.AlertStatuses, AlertStatus(c))
	}
	for _, c := range []domain.GroundTruthSource{domain.SourceAIModel, domain.SourceManual, domain.SourceMedicalRecord} {
		t.Sources = append(t.Sources, Source(c))
	}
	return t
}
