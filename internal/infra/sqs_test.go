package infra

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConsumer(endpoint string, backoff time.Duration) *SQSConsumer {
	client := sqs.New(sqs.Options{
		Region:           "us-east-1",
		BaseEndpoint:     aws.String(endpoint),
		Credentials:      aws.AnonymousCredentials{},
		RetryMaxAttempts: 1,
	})
	return &SQSConsumer{client: client, queueURL: endpoint + "/000000000000/orders", backoff: backoff}
}

func TestSQSConsumer_BacksOffAfterReceiveError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/x-amz-json-1.0")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"__type":"AccessDenied","message":"denied"}`))
	}))
	defer srv.Close()

	c := newTestConsumer(srv.URL, 200*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 700*time.Millisecond)
	defer cancel()

	var handled atomic.Bool
	done := make(chan struct{})
	go func() {
		c.Run(ctx, func(context.Context, string) error {
			handled.Store(true)
			return nil
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("consumer did not stop after cancellation")
	}

	n := calls.Load()
	require.GreaterOrEqual(t, n, int32(1))
	assert.LessOrEqual(t, n, int32(6), "receive errors must be followed by a pause")
	assert.False(t, handled.Load())
}

func TestSQSConsumer_CancelInterruptsBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestConsumer(srv.URL, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		c.Run(ctx, func(context.Context, string) error { return nil })
		close(done)
	}()

	time.Sleep(200 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("backoff ignored cancellation")
	}
}
