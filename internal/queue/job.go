package queue

import (
	"context"
	"errors"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

var SummaryJobQueue = "summary:jobs:queue"

// JobQueue wakes workers when summary jobs are submitted. The database stays
// the source of truth: a lost message only delays a job until the next poll.
type JobQueue interface {
	// Publish announces that the job is ready to be claimed.
	Publish(ctx context.Context, jobID uint) error
	// Wait blocks until a job id arrives or the timeout passes. The bool is
	// false on timeout.
	Wait(ctx context.Context, timeout time.Duration) (uint, bool, error)
}

var _ JobQueue = (*RedisJobQueue)(nil)

type RedisJobQueue struct {
	client redis.Cmdable
	key    string
}

func NewRedisJobQueue(client redis.Cmdable) *RedisJobQueue {
	return &RedisJobQueue{client: client, key: SummaryJobQueue}
}

func (q *RedisJobQueue) Publish(ctx context.Context, jobID uint) error {
	return q.client.RPush(ctx, q.key, strconv.FormatUint(uint64(jobID), 10)).Err()
}

func (q *RedisJobQueue) Wait(ctx context.Context, timeout time.Duration) (uint, bool, error) {
	res, err := q.client.BLPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return 0, false, ctx.Err()
		}
		return 0, false, err
	}

	// BLPOP replies with the key followed by the value
	if len(res) != 2 {
		return 0, false, nil
	}
	id, err := strconv.ParseUint(res[1], 10, 64)
	if err != nil {
		return 0, false, err
	}

	return uint(id), true, nil
}

var _ JobQueue = (*MemoryJobQueue)(nil)

// MemoryJobQueue is used when api and worker share one process.
type MemoryJobQueue struct {
	ch chan uint
}

func NewMemoryJobQueue(size int) *MemoryJobQueue {
	if size <= 0 {
		size = 64
	}
	return &MemoryJobQueue{ch: make(chan uint, size)}
}

// Publish never blocks; when the buffer is full the notification is dropped
// and the worker picks the job up on its next poll.
func (q *MemoryJobQueue) Publish(ctx context.Context, jobID uint) error {
	select {
	case q.ch <- jobID:
	default:
	}
	return nil
}

func (q *MemoryJobQueue) Wait(ctx context.Context, timeout time.Duration) (uint, bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case id := <-q.ch:
		return id, true, nil
	case <-timer.C:
		return 0, false, nil
	case <-ctx.Done():
		return 0, false, ctx.Err()
	}
}
