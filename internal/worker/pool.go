package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"stockledger/internal/dto"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueOrderEvents = "jobs:order_events"
	QueueEmail       = "jobs:email"

	JobOrderEvent = "order_event"
	JobEmail      = "email"
)

// ErrPermanent marks a failure that retrying cannot fix. Jobs failing with it
// go straight to the dead letter queue.
var ErrPermanent = errors.New("permanent job failure")

// Job is the generic envelope for all async tasks.
type Job struct {
	Type     string          `json:"type"`
	Queue    string          `json:"queue"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
}

// JobHandler processes one job payload.
type JobHandler interface {
	Process(ctx context.Context, payload json.RawMessage) error
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// EnqueueOrderEvent pushes an order lifecycle event for background processing.
func (d *Dispatcher) EnqueueOrderEvent(ctx context.Context, ev dto.OrderEvent) error {
	return d.enqueue(ctx, QueueOrderEvents, JobOrderEvent, ev)
}

// EnqueueEmail pushes an email job to Redis.
func (d *Dispatcher) EnqueueEmail(ctx context.Context, payload EmailJobPayload) error {
	return d.enqueue(ctx, QueueEmail, JobEmail, payload)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return push(ctx, d.rdb, Job{Type: jobType, Queue: queue, Payload: data})
}

func push(ctx context.Context, rdb *redis.Client, job Job) error {
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return rdb.LPush(ctx, job.Queue, encoded).Err()
}

// Pool consumes the job queues with a fixed number of goroutines.
type Pool struct {
	rdb         *redis.Client
	handlers    map[string]JobHandler
	maxAttempts int
}

// NewPool registers one handler per job type. Nil handlers are skipped so
// optional workers (email without SMTP) can be passed unconditionally.
func NewPool(rdb *redis.Client, maxAttempts int, handlers map[string]JobHandler) *Pool {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	p := &Pool{rdb: rdb, handlers: make(map[string]JobHandler, len(handlers)), maxAttempts: maxAttempts}
	for typ, h := range handlers {
		if h != nil {
			p.handlers[typ] = h
		}
	}
	return p
}

// Start launches numWorkers goroutines consuming both queues.
// Each goroutine blocks on BRPOP, so idle workers cost nothing.
func (p *Pool) Start(ctx context.Context, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		go p.run(ctx, i)
	}
	log.Info().Int("workers", numWorkers).Int("max_attempts", p.maxAttempts).Msg("worker pool started")
}

func (p *Pool) run(ctx context.Context, id int) {
	queues := []string{QueueOrderEvents, QueueEmail}
	for {
		select {
		case <-ctx.Done():
			log.Info().Int("worker", id).Msg("worker shutting down")
			return
		default:
			// Blocking pop waits up to 5s, then loops to check ctx.
			result, err := p.rdb.BRPop(ctx, 5*time.Second, queues...).Result()
			if err != nil {
				continue
			}
			if len(result) < 2 {
				continue
			}
			p.process(ctx, result[0], result[1])
		}
	}
}

func (p *Pool) process(ctx context.Context, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("worker: failed to unmarshal job")
		SendToDLQ(ctx, p.rdb, queue, "unknown", json.RawMessage(raw), "malformed envelope: "+err.Error(), 0)
		return
	}
	if job.Queue == "" {
		job.Queue = queue
	}

	h, ok := p.handlers[job.Type]
	var err error
	if !ok {
		err = errors.Join(ErrPermanent, errors.New("no handler for job type "+job.Type))
	} else {
		err = h.Process(ctx, job.Payload)
	}

	job.Attempts++
	switch nextStep(job.Attempts, p.maxAttempts, err) {
	case stepDone:
		log.Debug().Str("type", job.Type).Int("attempts", job.Attempts).Msg("worker: job done")
	case stepRetry:
		if rerr := ScheduleRetry(ctx, p.rdb, job, time.Now()); rerr != nil {
			log.Error().Err(rerr).Str("type", job.Type).Msg("worker: failed to schedule retry")
			SendToDLQ(ctx, p.rdb, job.Queue, job.Type, job.Payload, err.Error(), job.Attempts)
		}
	case stepDead:
		SendToDLQ(ctx, p.rdb, job.Queue, job.Type, job.Payload, err.Error(), job.Attempts)
	}
}

type step int

const (
	stepDone step = iota
	stepRetry
	stepDead
)

func nextStep(attempts, maxAttempts int, err error) step {
	switch {
	case err == nil:
		return stepDone
	case errors.Is(err, ErrPermanent), attempts >= maxAttempts:
		return stepDead
	}
	return stepRetry
}
