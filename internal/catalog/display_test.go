package catalog

import (
	"testing"

	"heartguard-alerts/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestEveryCodeHasDisplay(t *testing.T) {
	for _, at := range domain.AlertTypes() {
		d := AlertType(at)
		assert.Equal(t, string(at), d.Code)
		assert.NotEqual(t, d.Code, d.Label, "missing label for %s", at)
	}
	for _, l := range domain.AlertLevels() {
		assert.NotEmpty(t, AlertLevel(l).Color)
	}
	for _, s := range domain.AlertStatuses() {
		assert.NotEqual(t, string(s), AlertStatus(s).Label)
	}
	assert.Equal(t, "Desaturation", EventType(domain.EventTypeDesat).Label)
	assert.Equal(t, "AI model", Source(domain.SourceAIModel).Label)
}

func TestUnknownCodeFallsBackToCode(t *testing.T) {
	d := AlertType(domain.AlertType("SEPSIS"))
	assert.Equal(t, "SEPSIS", d.Label)
	assert.Empty(t, d.Color)
}

func TestAll(t *testing.T) {
	all := All()
	assert.Len(t, all.AlertTypes, len(domain.AlertTypes()))
	assert.Len(t, all.AlertStatuses, len(domain.AlertStatuses()))
	assert.Len(t, all.Sources, 3)
	assert.Equal(t, "AI_MODEL", all.Sources[0].Code)
}
