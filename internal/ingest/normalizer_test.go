package ingest

import (
	"fmt"
	"testing"
	"time"

	"heartguard-alerts/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var denver = mustLoad("America/Denver")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("MST", -7*3600)
	}
	return loc
}

func newTestNormalizer() *Normalizer {
	return NewNormalizer(zap.NewNop(), WithLocation(denver))
}

func TestDecodeAlertJSON_AllFields(t *testing.T) {
	n := newTestNormalizer()
	body := `{
		"id": "a-1", "patient_id": "p-1", "patient_name": "Ana Ruiz",
		"type": "ARRHYTHMIA", "alert_level": "CRITICAL", "status": "ACKNOWLEDGED",
		"description": "AF detected", "created_at": "2024-03-01T10:00:00Z",
		"acknowledged_at": "2024-03-01T10:05:00Z", "acknowledged_by_user_id": "nurse-1",
		"created_by_model_id": "ecg-v2", "source_inference_id": "inf-9",
		"latitude": 19.43, "longitude": -99.13
	}`
	a, rep, err := n.DecodeAlertJSON([]byte(body))
	require.NoError(t, err)
	assert.True(t, rep.Clean())

	assert.Equal(t, "a-1", a.ID())
	assert.Equal(t, domain.AlertTypeArrhythmia, a.Type())
	assert.Equal(t, domain.AlertLevelCritical, a.Level())
	assert.Equal(t, domain.AlertStatusAcknowledged, a.Status())
	assert.True(t, a.IsAIOriginated())
	assert.Equal(t, "inf-9", a.SourceInferenceID())
	_, by, ok := a.Acknowledgement()
	assert.True(t, ok)
	assert.Equal(t, "nurse-1", by)
	lat, _, ok := a.Location()
	assert.True(t, ok)
	assert.InDelta(t, 19.43, lat, 1e-9)
}

func TestDecodeAlertJSON_AbsentFieldsStayUnset(t *testing.T) {
	n := newTestNormalizer()
	a, rep, err := n.DecodeAlertJSON([]byte(`{"id":"a-2","type":"FEVER","alert_level":"LOW","status":"CREATED","created_by_model_id":null}`))
	require.NoError(t, err)
	assert.True(t, rep.Clean())
	assert.False(t, a.HasCreatedAt())
	assert.False(t, a.IsAIOriginated())
	assert.Empty(t, a.PatientID())
	_, _, ok := a.Location()
	assert.False(t, ok)
}

func TestDecodeAlertJSON_BadFieldIsIsolated(t *testing.T) {
	n := newTestNormalizer()
	a, rep, err := n.DecodeAlertJSON([]byte(`{"id":"a-3","patient_id":"p-3","type":"DESAT","alert_level":"HIGH","status":"CREATED","created_at":"yesterday","latitude":"north"}`))
	require.NoError(t, err)
	assert.Equal(t, 2, rep.SkippedFields)
	assert.False(t, a.HasCreatedAt())
	assert.Equal(t, "p-3", a.PatientID())
	assert.Equal(t, domain.AlertTypeDesat, a.Type())
}

func TestDecodeAlertJSON_UnknownCodesFallBackAndAreCounted(t *testing.T) {
	n := newTestNormalizer()
	a, rep, err := n.DecodeAlertJSON([]byte(`{"id":"a-4","type":"SEPSIS","alert_level":"SEVERE","status":"ESCALATED"}`))
	require.NoError(t, err)
	assert.Equal(t, domain.AlertTypeGeneralRisk, a.Type())
	assert.Equal(t, domain.AlertLevelMedium, a.Level())
	assert.Equal(t, domain.AlertStatusCreated, a.Status())
	assert.Equal(t, map[string]int{FallbackType: 1, FallbackLevel: 1, FallbackStatus: 1}, rep.Fallbacks)
	assert.False(t, rep.Clean())

	counts := n.FallbackCounts()
	assert.Equal(t, int64(1), counts[FallbackType])
}

func TestDecodeAlertJSON_HalfPairIsDropped(t *testing.T) {
	n := newTestNormalizer()
	a, rep, err := n.DecodeAlertJSON([]byte(`{"id":"a-5","type":"FEVER","alert_level":"LOW","status":"ACKNOWLEDGED","acknowledged_at":"2024-03-01T10:05:00Z"}`))
	require.NoError(t, err)
	assert.Equal(t, 1, rep.SkippedFields)
	_, _, ok := a.Acknowledgement()
	assert.False(t, ok)
}

func TestDecodeAlertJSON_MissingIDIsMalformed(t *testing.T) {
	n := newTestNormalizer()
	_, rep, err := n.DecodeAlertJSON([]byte(`{"patient_id":"p-1"}`))
	assert.Equal(t, domain.KindMalformed, domain.KindOf(err))
	assert.Equal(t, 1, rep.SkippedRecords)

	_, _, err = n.DecodeAlertJSON([]byte(`not json`))
	assert.Equal(t, domain.KindMalformed, domain.KindOf(err))
}

func TestDecodeAlertsJSON_SkipsBadElements(t *testing.T) {
	n := newTestNormalizer()
	body := `{"alerts": [
		{"id":"a-1","type":"FEVER","alert_level":"LOW","status":"CREATED"},
		"garbage",
		{"patient_id":"no-id"},
		{"id":"a-4","type":"DESAT","alert_level":"HIGH","status":"NOTIFIED"}
	]}`
	alerts, rep, err := n.DecodeAlertsJSON([]byte(body))
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, "a-1", alerts[0].ID())
	assert.Equal(t, "a-4", alerts[1].ID())
	assert.Equal(t, 2, rep.Records)
	assert.Equal(t, 2, rep.SkippedRecords)
}

func TestDecodeAlertsJSON_Shapes(t *testing.T) {
	n := newTestNormalizer()
	alerts, _, err := n.DecodeAlertsJSON([]byte(`[]`))
	require.NoError(t, err)
	assert.Empty(t, alerts)

	alerts, _, err = n.DecodeAlertsJSON([]byte(`{"items": null}`))
	require.NoError(t, err)
	assert.Empty(t, alerts)

	_, _, err = n.DecodeAlertsJSON([]byte(`{"unexpected": 1}`))
	assert.Equal(t, domain.KindMalformed, domain.KindOf(err))
}

// Scenario A: one of three legacy records has an unparsable created_at.
func TestDecodeAlertsXML_BadTimestampKeepsRecord(t *testing.T) {
	n := newTestNormalizer()
	body := `<alerts>
	<alert><id>x-1</id><patient_id>p-1</patient_id><patient_name>Ana</patient_name><type_code>DESAT</type_code><level_code>HIGH</level_code><status_code>CREATED</status_code><description>low spo2</description><created_at>2024-03-01 10:00:00.123456</created_at></alert>
	<alert><id>x-2</id><patient_id>p-2</patient_id><patient_name/><type_code>FEVER</type_code><level_code>MEDIUM</level_code><status_code>NOTIFIED</status_code><description/><created_at>01/03/2024 10:00</created_at></alert>
	<alert><id>x-3</id><patient_id>p-3</patient_id><patient_name>Luis</patient_name><type_code>HYPOTENSION</type_code><level_code>CRITICAL</level_code><status_code>ACKNOWLEDGED</status_code><description>bp drop</description><created_at>2024-03-01 11:30:00.000000</created_at></alert>
</alerts>`
	alerts, rep, err := n.DecodeAlertsXML([]byte(body))
	require.NoError(t, err)
	require.Len(t, alerts, 3)
	assert.Equal(t, 1, rep.SkippedFields)
	assert.Equal(t, 0, rep.SkippedRecords)

	for _, a := range alerts {
		assert.NotEmpty(t, a.ID())
		assert.True(t, a.Type().Valid())
		assert.True(t, a.Level().Valid())
		assert.True(t, a.Status().Valid())
	}
	assert.True(t, alerts[0].HasCreatedAt())
	assert.False(t, alerts[1].HasCreatedAt())
	assert.True(t, alerts[2].HasCreatedAt())

	assert.Equal(t, domain.AlertTypeFever, alerts[1].Type())
	assert.Equal(t, domain.AlertStatusNotified, alerts[1].Status())
	assert.Equal(t, 123456000, alerts[0].CreatedAt().Nanosecond())
	assert.Equal(t, denver, alerts[0].CreatedAt().Location())
}

func TestDecodeAlertsXML_TruncatedDocumentKeepsEarlierRecords(t *testing.T) {
	n := newTestNormalizer()
	body := `<alerts>
	<alert><id>x-1</id><type_code>DESAT</type_code><level_code>HIGH</level_code><status_code>CREATED</status_code></alert>
	<alert><id>x-2</id><type_code>FEVER</type_code`
	alerts, rep, err := n.DecodeAlertsXML([]byte(body))
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.True(t, rep.Truncated)
	assert.Equal(t, 1, rep.SkippedRecords)
}

func TestDecodeAlertsXML_SkipsRecordWithoutID(t *testing.T) {
	n := newTestNormalizer()
	body := `<alerts><alert><type_code>DESAT</type_code></alert><alert><id>x-2</id></alert></alerts>`
	alerts, rep, err := n.DecodeAlertsXML([]byte(body))
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "x-2", alerts[0].ID())
	assert.Equal(t, 1, rep.SkippedRecords)
	assert.Equal(t, 3, len(rep.Fallbacks), "x-2 has no codes at all")
}

func TestDecodeAlertXML_NotXML(t *testing.T) {
	n := newTestNormalizer()
	_, _, err := n.DecodeAlertXML([]byte(`<<<`))
	assert.Equal(t, domain.KindMalformed, domain.KindOf(err))

	_, _, err = n.DecodeAlertXML([]byte(`<nothing/>`))
	assert.Equal(t, domain.KindMalformed, domain.KindOf(err))
}

func TestJSONAndXMLEncodingsAgree(t *testing.T) {
	n := newTestNormalizer()
	created := time.Date(2024, 3, 1, 17, 0, 0, 250000000, time.UTC)

	jsonBody := fmt.Sprintf(`{"id":"rt-1","patient_id":"p-1","patient_name":"Ana","type":"HYPERTENSION","alert_level":"HIGH","status":"NOTIFIED","description":"bp 180/110","created_at":%q}`,
		created.Format(time.RFC3339Nano))
	xmlBody := fmt.Sprintf(`<alert><id>rt-1</id><patient_id>p-1</patient_id><patient_name>Ana</patient_name><type_code>HYPERTENSION</type_code><level_code>HIGH</level_code><status_code>NOTIFIED</status_code><description>bp 180/110</description><created_at>%s</created_at></alert>`,
		n.FormatLegacyTime(created))

	fromJSON, _, err := n.DecodeAlertJSON([]byte(jsonBody))
	require.NoError(t, err)
	fromXML, _, err := n.DecodeAlertXML([]byte(xmlBody))
	require.NoError(t, err)

	assert.Equal(t, fromJSON.ID(), fromXML.ID())
	assert.Equal(t, fromJSON.PatientID(), fromXML.PatientID())
	assert.Equal(t, fromJSON.Type(), fromXML.Type())
	assert.Equal(t, fromJSON.Level(), fromXML.Level())
	assert.Equal(t, fromJSON.Status(), fromXML.Status())
	assert.Equal(t, fromJSON.Description(), fromXML.Description())
	assert.True(t, fromJSON.CreatedAt().Equal(fromXML.CreatedAt()))
}

func TestDecodeGroundTruthJSON(t *testing.T) {
	n := newTestNormalizer()
	body := `{"id":"gt-1","patient_id":"p-1","event_type_code":"DESAT","onset":"2024-03-01T10:00:00Z",
		"offset_at":"2024-03-01T10:20:00Z","annotated_by_user_id":"nurse-1","source":"AI_MODEL",
		"note":"confirmed","created_at":"2024-03-01T11:00:00Z","updated_at":"2024-03-01T11:00:00Z"}`
	l, rep, err := n.DecodeGroundTruthJSON([]byte(body))
	require.NoError(t, err)
	assert.True(t, rep.Clean())
	assert.Equal(t, domain.EventTypeDesat, l.EventType())
	assert.Equal(t, domain.SourceAIModel, l.Source())
	off, ok := l.OffsetAt()
	assert.True(t, ok)
	assert.Equal(t, 20*time.Minute, off.Sub(l.Onset()))
}

func TestDecodeGroundTruthJSON_EventTypeAliasAndBadOffset(t *testing.T) {
	n := newTestNormalizer()
	body := `{"id":"gt-2","patient_id":"p-1","event_type":"FEVER","onset":"2024-03-01T10:00:00Z",
		"offset_at":"2024-03-01T09:00:00Z","annotated_by_user_id":"nurse-1","source":"CHART"}`
	l, rep, err := n.DecodeGroundTruthJSON([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, domain.EventTypeFever, l.EventType())
	assert.Equal(t, domain.SourceManual, l.Source())
	_, ok := l.OffsetAt()
	assert.False(t, ok)
	assert.Equal(t, 1, rep.SkippedFields)
	assert.Equal(t, 1, rep.Fallbacks[FallbackSource])
}

func TestDecodeGroundTruthListJSON_SkipsLabelWithoutOnset(t *testing.T) {
	n := newTestNormalizer()
	body := `[
		{"id":"gt-1","patient_id":"p-1","event_type_code":"DESAT","onset":"2024-03-01T10:00:00Z","annotated_by_user_id":"u","source":"MANUAL"},
		{"id":"gt-2","patient_id":"p-1","event_type_code":"DESAT","onset":"soon","annotated_by_user_id":"u","source":"MANUAL"}
	]`
	labels, rep, err := n.DecodeGroundTruthListJSON([]byte(body))
	require.NoError(t, err)
	require.Len(t, labels, 1)
	assert.Equal(t, "gt-1", labels[0].ID())
	assert.Equal(t, 1, rep.SkippedRecords)
}
