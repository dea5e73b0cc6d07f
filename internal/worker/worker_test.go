package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"stockledger/internal/dto"
	"stockledger/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── Retry policy ─────────────────────────────────────────────────────────────

func TestNextStep(t *testing.T) {
	boom := errors.New("boom")
	assert.Equal(t, stepDone, nextStep(1, 5, nil))
	assert.Equal(t, stepRetry, nextStep(1, 5, boom))
	assert.Equal(t, stepRetry, nextStep(4, 5, boom))
	assert.Equal(t, stepDead, nextStep(5, 5, boom))
	assert.Equal(t, stepDead, nextStep(1, 5, errors.Join(ErrPermanent, boom)))
}

func TestComputeRetryBackoff(t *testing.T) {
	assert.Equal(t, 2*time.Second, computeRetryBackoff(0))
	assert.Equal(t, 2*time.Second, computeRetryBackoff(1))
	assert.Equal(t, 8*time.Second, computeRetryBackoff(3))
	assert.Equal(t, maxRetryBackoff, computeRetryBackoff(9))
	assert.Equal(t, maxRetryBackoff, computeRetryBackoff(64))
}

// ── Order event worker ───────────────────────────────────────────────────────

type stubProcessor struct {
	service.OrderEventService
	report *dto.OrderReport
	err    error
	seen   []dto.OrderEvent
}

func (s *stubProcessor) Process(_ context.Context, ev dto.OrderEvent) (*dto.OrderReport, error) {
	s.seen = append(s.seen, ev)
	return s.report, s.err
}

func TestOrderEventWorker_Process(t *testing.T) {
	ctx := context.Background()
	ok := &stubProcessor{report: &dto.OrderReport{OrderRef: "O1", Lines: []dto.LineOutcome{{Outcome: dto.OutcomeApplied}}}}
	w := NewOrderEventWorker(ok)

	payload, err := json.Marshal(dto.OrderEvent{Type: dto.OrderEventShipped, Order: dto.Order{Ref: "O1"}})
	require.NoError(t, err)
	require.NoError(t, w.Process(ctx, payload))
	require.Len(t, ok.seen, 1)
	assert.Equal(t, "O1", ok.seen[0].Order.Ref)

	assert.ErrorIs(t, w.Process(ctx, json.RawMessage(`{not json`)), ErrPermanent)

	partial := &stubProcessor{report: &dto.OrderReport{OrderRef: "O2", Failed: 1, Lines: make([]dto.LineOutcome, 2)}}
	err = NewOrderEventWorker(partial).Process(ctx, payload)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPermanent)

	invalid := &stubProcessor{err: service.ErrInvalidQuantity}
	assert.ErrorIs(t, NewOrderEventWorker(invalid).Process(ctx, payload), ErrPermanent)
}

func TestOrderEventWorker_HandleSQS(t *testing.T) {
	ctx := context.Background()
	w := NewOrderEventWorker(&stubProcessor{err: errors.New("db down")})
	assert.Error(t, w.HandleSQS(ctx, `{"type":"shipped","order":{"ref":"O1"}}`))
	// Malformed bodies are acknowledged.
	assert.NoError(t, w.HandleSQS(ctx, `garbage`))
}

// ── Email ────────────────────────────────────────────────────────────────────

type recordingSender struct {
	to      []string
	subject string
	body    string
}

func (r *recordingSender) Send(to []string, subject, body string) error {
	r.to, r.subject, r.body = to, subject, body
	return nil
}

func TestEmailWorker(t *testing.T) {
	s := &recordingSender{}
	w := NewEmailWorker(s)
	payload, err := json.Marshal(EmailJobPayload{To: []string{"ops@example.com"}, Subject: "hi", Body: "there"})
	require.NoError(t, err)

	require.NoError(t, w.Process(context.Background(), payload))
	assert.Equal(t, []string{"ops@example.com"}, s.to)
	assert.Equal(t, "hi", s.subject)

	assert.ErrorIs(t, w.Process(context.Background(), json.RawMessage(`{"to":[]}`)), ErrPermanent)
}

func TestFailureBody(t *testing.T) {
	body := FailureBody(&dto.OrderReport{
		OrderRef: "O9",
		Action:   "shipped",
		Failed:   1,
		Lines: []dto.LineOutcome{
			{LineRef: "1", Code: "S1", Outcome: dto.OutcomeApplied},
			{LineRef: "2", Code: "S2", Outcome: dto.OutcomeFailed, Error: "storage operation failed"},
		},
	})
	assert.Contains(t, body, "Order O9 (shipped): 1 line(s)")
	assert.Contains(t, body, "- line 2, code S2: storage operation failed")
	assert.NotContains(t, body, "line 1,")
}

func TestNewEmailNotifier(t *testing.T) {
	assert.Nil(t, NewEmailNotifier(&Dispatcher{}, ""))
	n := NewEmailNotifier(&Dispatcher{}, "a@example.com, b@example.com")
	require.NotNil(t, n)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, n.to)
}
