package domain

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeForRoundTrip(t *testing.T) {
	cases := []struct {
		kind   FailureKind
		code   int
		status int
	}{
		{KindAuth, CodeTokenExpired, http.StatusUnauthorized},
		{KindValidation, CodeValidation, http.StatusBadRequest},
		{KindNotFound, CodeNotFound, http.StatusNotFound},
		{KindStateConflict, CodeStateConflict, http.StatusConflict},
	}
	for _, tc := range cases {
		code, status := CodeFor(tc.kind)
		assert.Equal(t, tc.code, code, tc.kind.String())
		assert.Equal(t, tc.status, status, tc.kind.String())
		assert.Equal(t, tc.kind, KindForResponse(status, code), tc.kind.String())
	}

	code, status := CodeFor(KindInternal)
	assert.Equal(t, CodeInternal, code)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, KindInternal, KindForResponse(status, code))
	assert.False(t, IsRetryable(&Failure{Kind: KindForResponse(status, code)}))
}

func TestKindForResponse(t *testing.T) {
	// a token valid for another organization is a rejection, not an expired credential
	assert.Equal(t, KindValidation, KindForResponse(http.StatusForbidden, CodeInternal))
	assert.Equal(t, KindValidation, KindForResponse(http.StatusForbidden, CodeForbidden))
	assert.Equal(t, KindAuth, KindForResponse(http.StatusUnauthorized, 0))
	assert.Equal(t, KindAuth, KindForResponse(http.StatusOK, CodeTokenExpired))
	assert.Equal(t, KindStateConflict, KindForResponse(http.StatusOK, CodeStateConflict))
	assert.Equal(t, KindInternal, KindForResponse(http.StatusOK, CodeInternal))
	assert.Equal(t, KindValidation, KindForResponse(http.StatusUnprocessableEntity, 0))
	assert.Equal(t, KindTransport, KindForResponse(http.StatusBadGateway, 0))
	assert.Equal(t, KindTransport, KindForResponse(http.StatusServiceUnavailable, 0))
}

func TestAlertFilter(t *testing.T) {
	a := MustAlert(AlertParams{
		ID: "a-1", Type: AlertTypeFever, Level: AlertLevelLow, Status: AlertStatusNotified,
	})
	assert.True(t, AlertFilter{}.Matches(a))
	assert.True(t, AlertFilter{Status: AlertStatusNotified, Level: AlertLevelLow}.Matches(a))
	assert.False(t, AlertFilter{Level: AlertLevelHigh}.Matches(a))

	assert.NoError(t, AlertFilter{}.Validate())
	assert.True(t, IsValidation(AlertFilter{Status: "OPEN"}.Validate()))
	assert.True(t, IsValidation(AlertFilter{Level: "SEVERE"}.Validate()))
}

func TestLabelRequest_Draft(t *testing.T) {
	onset := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	off := onset.Add(20 * time.Minute)
	d := LabelDraft{
		PatientID: "p-1", EventType: EventTypeDesat, Onset: onset, OffsetAt: &off,
		ActorUserID: "nurse-1", ActorUserName: "Nurse One", Note: "confirmed",
	}

	got, err := d.Request().Draft()
	require.NoError(t, err)
	assert.Equal(t, "p-1", got.PatientID)
	assert.Equal(t, EventTypeDesat, got.EventType)
	assert.Equal(t, "Nurse One", got.ActorUserName)
	assert.True(t, got.Onset.Equal(onset))
	require.NotNil(t, got.OffsetAt)
	assert.True(t, got.OffsetAt.Equal(off))

	_, err = LabelRequest{PatientID: "p-1", EventType: "SEPSIS", Onset: "2024-03-01T10:00:00Z", ActorUserID: "x"}.Draft()
	assert.True(t, IsValidation(err))

	_, err = LabelRequest{PatientID: "p-1", EventType: "DESAT", Onset: "yesterday", ActorUserID: "x"}.Draft()
	assert.True(t, IsValidation(err))

	early := "2024-03-01T09:00:00Z"
	_, err = LabelRequest{PatientID: "p-1", EventType: "DESAT", Onset: "2024-03-01T10:00:00Z", OffsetAt: &early, ActorUserID: "x"}.Draft()
	assert.True(t, IsValidation(err))

	_, err = LabelRequest{PatientID: "p-1", EventType: "DESAT", Onset: "2024-03-01T10:00:00Z"}.Draft()
	assert.True(t, IsValidation(err))
}

func TestTransitionRequest_Validate(t *testing.T) {
	assert.True(t, IsValidation(TransitionRequest{ActorUserID: "  "}.Validate()))
	assert.NoError(t, TransitionRequest{ActorUserID: "nurse-1"}.Validate())
}
