//go:build integration

package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"stockledger/internal/dto"
	"stockledger/internal/infra"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
)

type flakyHandler struct {
	failures int32
	calls    atomic.Int32
}

func (h *flakyHandler) Process(context.Context, json.RawMessage) error {
	if h.calls.Add(1) <= h.failures {
		return errors.New("temporary")
	}
	return nil
}

func TestQueue_RetryThenDeadLetter(t *testing.T) {
	ctx := context.Background()
	rdC, err := tcRedis.RunContainer(ctx, testcontainers.WithImage("redis:7-alpine"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(ctx) })
	url, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)
	rdb, err := infra.NewRedis(url)
	require.NoError(t, err)

	handler := &flakyHandler{failures: 1}
	pool := NewPool(rdb, 2, map[string]JobHandler{JobOrderEvent: handler})
	d := NewDispatcher(rdb)

	require.NoError(t, d.EnqueueOrderEvent(ctx, dto.OrderEvent{Type: dto.OrderEventShipped, Order: dto.Order{Ref: "O1"}}))
	raw, err := rdb.RPop(ctx, QueueOrderEvents).Result()
	require.NoError(t, err)

	// First attempt fails and parks the job in the retry set.
	pool.process(ctx, QueueOrderEvents, raw)
	n, err := rdb.ZCard(ctx, RetrySetKey).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	moved, err := PromoteDue(ctx, rdb, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	raw, err = rdb.RPop(ctx, QueueOrderEvents).Result()
	require.NoError(t, err)
	pool.process(ctx, QueueOrderEvents, raw)
	assert.EqualValues(t, 2, handler.calls.Load())

	// A job with no handler goes straight to the dead letter queue.
	require.NoError(t, d.EnqueueEmail(ctx, EmailJobPayload{To: []string{"ops@example.com"}}))
	raw, err = rdb.RPop(ctx, QueueEmail).Result()
	require.NoError(t, err)
	pool.process(ctx, QueueEmail, raw)

	entries, err := ListDLQ(ctx, rdb, QueueEmail, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, JobEmail, entries[0].JobType)

	requeued, err := RequeueDLQ(ctx, rdb, QueueEmail, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, requeued)
	length, err := DLQLength(ctx, rdb, QueueEmail)
	require.NoError(t, err)
	assert.Zero(t, length)
}
