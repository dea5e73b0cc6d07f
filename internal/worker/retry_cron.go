package worker

// retry_cron.go
// Failed jobs wait in a Redis sorted set scored by their due time. A
// background goroutine moves due jobs back onto their queue.

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	RetrySetKey       = "jobs:retry"
	retryTickInterval = 5 * time.Second
	retryBatchSize    = 50
	maxRetryBackoff   = 5 * time.Minute
)

// ScheduleRetry parks job until now plus the backoff for its attempt count.
func ScheduleRetry(ctx context.Context, rdb *redis.Client, job Job, now time.Time) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	due := now.Add(computeRetryBackoff(job.Attempts))
	if err := rdb.ZAdd(ctx, RetrySetKey, redis.Z{Score: float64(due.Unix()), Member: data}).Err(); err != nil {
		return err
	}
	log.Warn().Str("type", job.Type).Str("queue", job.Queue).Int("attempts", job.Attempts).
		Time("next_retry_at", due).Msg("retry_cron: job scheduled for retry")
	return nil
}

// StartRetryCron launches the goroutine that re-enqueues due jobs. It
// respects the context for graceful shutdown.
func StartRetryCron(ctx context.Context, rdb *redis.Client) {
	go func() {
		ticker := time.NewTicker(retryTickInterval)
		defer ticker.Stop()

		log.Info().Msg("retry_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("retry_cron: shutting down")
				return
			case <-ticker.C:
				if n, err := PromoteDue(ctx, rdb, time.Now()); err != nil {
					log.Error().Err(err).Msg("retry_cron: failed to promote due jobs")
				} else if n > 0 {
					log.Info().Int("count", n).Msg("retry_cron: jobs re-enqueued")
				}
			}
		}
	}()
}

// PromoteDue moves jobs whose due time has passed back to their queue and
// returns how many moved. ZREM decides ownership, so several instances can
// run the cron at once without duplicating jobs.
func PromoteDue(ctx context.Context, rdb *redis.Client, now time.Time) (int, error) {
	members, err := rdb.ZRangeByScore(ctx, RetrySetKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.Unix(), 10),
		Count: retryBatchSize,
	}).Result()
	if err != nil {
		return 0, err
	}

	moved := 0
	for _, m := range members {
		removed, err := rdb.ZRem(ctx, RetrySetKey, m).Result()
		if err != nil {
			return moved, err
		}
		if removed == 0 {
			continue
		}
		var job Job
		if err := json.Unmarshal([]byte(m), &job); err != nil || job.Queue == "" {
			log.Error().Str("member", m).Msg("retry_cron: dropping malformed retry entry")
			continue
		}
		if err := rdb.LPush(ctx, job.Queue, m).Err(); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}

// computeRetryBackoff doubles from 2s per attempt, capped at five minutes.
func computeRetryBackoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	if attempts > 16 {
		return maxRetryBackoff
	}
	d := time.Duration(1<<uint(attempts)) * time.Second
	if d > maxRetryBackoff {
		return maxRetryBackoff
	}
	return d
}
