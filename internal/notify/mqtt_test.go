package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"heartguard-alerts/internal/domain"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func newFakeToken(err error, complete bool) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	if complete {
		close(t.done)
	}
	return t
}

func (t *fakeToken) Wait() bool { <-t.done; return true }
func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}
func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeBroker struct {
	sent  []published
	token *fakeToken
}

func (b *fakeBroker) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	b.sent = append(b.sent, published{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	return b.token
}

func resolvedAlert(t *testing.T) domain.Alert {
	t.Helper()
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	ack, res := created.Add(time.Minute), created.Add(time.Hour)
	by := "nurse-1"
	return domain.MustAlert(domain.AlertParams{
		ID: "a-1", OrgID: "org-1", PatientID: "p-1", Type: domain.AlertTypeDesat,
		Level: domain.AlertLevelHigh, Status: domain.AlertStatusResolved, CreatedAt: created,
		AcknowledgedAt: &ack, AcknowledgedByUserID: &by, ResolvedAt: &res, ResolvedByUserID: &by,
	})
}

func TestMQTTPublisher_PublishTransition(t *testing.T) {
	broker := &fakeBroker{token: newFakeToken(nil, true)}
	p := newMQTTPublisher(broker, 1, zap.NewNop())

	at := time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)
	e := NewAlertTransition(domain.AlertStatusAcknowledged, resolvedAlert(t), "nurse-1", at)
	require.NoError(t, p.PublishTransition(context.Background(), e))

	require.Len(t, broker.sent, 1)
	assert.Equal(t, "heartguard/alerts/org-1/a-1/status", broker.sent[0].topic)
	assert.Equal(t, byte(1), broker.sent[0].qos)
	assert.False(t, broker.sent[0].retained)

	var body map[string]any
	require.NoError(t, json.Unmarshal(broker.sent[0].payload, &body))
	assert.Equal(t, "ACKNOWLEDGED", body["from"])
	assert.Equal(t, "RESOLVED", body["to"])
	assert.Equal(t, "DESAT", body["type"])
	assert.Equal(t, "nurse-1", body["actor_user_id"])
}

func TestMQTTPublisher_BrokerError(t *testing.T) {
	broker := &fakeBroker{token: newFakeToken(errors.New("not connected"), true)}
	p := newMQTTPublisher(broker, 0, zap.NewNop())

	err := p.PublishTransition(context.Background(), AlertTransition{AlertID: "a-1", To: domain.AlertStatusClosed})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "heartguard/alerts/_/a-1/status")
}

func TestMQTTPublisher_TimesOutWithContextDeadline(t *testing.T) {
	broker := &fakeBroker{token: newFakeToken(nil, false)}
	p := newMQTTPublisher(broker, 0, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.PublishTransition(ctx, AlertTransition{AlertID: "a-1", OrgID: "org-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop{}.PublishTransition(context.Background(), AlertTransition{}))
}
