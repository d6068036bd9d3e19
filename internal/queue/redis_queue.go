package queue

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/redis/go-redis/v9"

	"dataflow-gateway/internal/config"
)

// ErrNotQueued is returned by Position for jobs that are not waiting in a ready list.
var ErrNotQueued = errors.New("job not in intake queue")

// RedisQueue is the producer side of the engine's job intake. The engine's
// runners pop from the ready lists; this type only pushes and inspects.
type RedisQueue struct {
	client          *redis.Client
	priorityQueues  []string
	defaultPriority string
	jobMetaPrefix   string
}

// NewRedisQueue builds a queue client from config.
func NewRedisQueue(cfg config.Config) *RedisQueue {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return NewRedisQueueWithClient(client, cfg.IntakeQueues, cfg.IntakePriority)
}

// NewRedisQueueWithClient wraps an existing client. The default priority is
// added to the known queues when missing.
func NewRedisQueueWithClient(client *redis.Client, priorities []string, defaultPriority string) *RedisQueue {
	if defaultPriority == "" {
		defaultPriority = "default"
	}
	queues := slices.Clone(priorities)
	if !slices.Contains(queues, defaultPriority) {
		queues = append(queues, defaultPriority)
	}
	return &RedisQueue{
		client:          client,
		priorityQueues:  queues,
		defaultPriority: defaultPriority,
		jobMetaPrefix:   "queue:jobmeta:",
	}
}

func (q *RedisQueue) readyKey(priority string) string {
	return fmt.Sprintf("queue:ready:%s", priority)
}

func (q *RedisQueue) metaKey(jobID string) string {
	return q.jobMetaPrefix + jobID
}

// Ping checks the Redis connection.
func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// Enqueue appends a job to the ready list for priority. Unknown priorities
// fall back to the default queue.
func (q *RedisQueue) Enqueue(ctx context.Context, jobID string, priority string) error {
	if priority == "" || !slices.Contains(q.priorityQueues, priority) {
		priority = q.defaultPriority
	}
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, q.metaKey(jobID), "priority", priority)
	pipe.RPush(ctx, q.readyKey(priority), jobID)
	_, err := pipe.Exec(ctx)
	return err
}

// ReadyDepth returns the total length of all ready queues.
func (q *RedisQueue) ReadyDepth(ctx context.Context) (int64, error) {
	pipe := q.client.Pipeline()
	cmds := make([]*redis.IntCmd, 0, len(q.priorityQueues))
	for _, p := range q.priorityQueues {
		cmds = append(cmds, pipe.LLen(ctx, q.readyKey(p)))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	var total int64
	for _, c := range cmds {
		total += c.Val()
	}
	return total, nil
}

// Position reports the zero-based index of a waiting job in its ready list.
func (q *RedisQueue) Position(ctx context.Context, jobID string) (string, int64, error) {
	priority, err := q.client.HGet(ctx, q.metaKey(jobID), "priority").Result()
	if errors.Is(err, redis.Nil) {
		return "", 0, ErrNotQueued
	}
	if err != nil {
		return "", 0, err
	}
	ids, err := q.client.LRange(ctx, q.readyKey(priority), 0, -1).Result()
	if err != nil {
		return "", 0, err
	}
	if idx := slices.Index(ids, jobID); idx >= 0 {
		return priority, int64(idx), nil
	}
	return priority, 0, ErrNotQueued
}
