package queue

import (
	"context"
	"errors"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"dataflow-gateway/internal/testutil"
)

func newTestQueue(t *testing.T) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	q := NewRedisQueueWithClient(client, []string{"high", "low"}, "default")
	t.Cleanup(func() { _ = q.Close() })
	return q, mr
}

func TestEnqueueRecordsPriority(t *testing.T) {
	ctx := context.Background()
	q, mr := newTestQueue(t)

	if err := q.Enqueue(ctx, "job-1", "high"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Enqueue(ctx, "job-2", ""); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Enqueue(ctx, "job-3", "bogus"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if got := mr.HGet("queue:jobmeta:job-1", "priority"); got != "high" {
		t.Fatalf("expected high priority meta, got %q", got)
	}
	ready, err := mr.List("queue:ready:default")
	if err != nil {
		t.Fatalf("list default: %v", err)
	}
	if len(ready) != 2 || ready[0] != "job-2" || ready[1] != "job-3" {
		t.Fatalf("unexpected default queue %v", ready)
	}

	depth, err := q.ReadyDepth(ctx)
	if err != nil {
		t.Fatalf("depth: %v", err)
	}
	if depth != 3 {
		t.Fatalf("expected depth 3, got %d", depth)
	}
}

func TestPosition(t *testing.T) {
	ctx := context.Background()
	q, mr := newTestQueue(t)

	for _, id := range []string{"a", "b", "c"} {
		if err := q.Enqueue(ctx, id, "low"); err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
	}
	priority, pos, err := q.Position(ctx, "c")
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if priority != "low" || pos != 2 {
		t.Fatalf("unexpected position %s/%d", priority, pos)
	}

	// Simulate an engine runner taking the head of the list.
	if _, err := mr.Lpop("queue:ready:low"); err != nil {
		t.Fatalf("lpop: %v", err)
	}
	if _, _, err := q.Position(ctx, "a"); !errors.Is(err, ErrNotQueued) {
		t.Fatalf("expected ErrNotQueued for consumed job, got %v", err)
	}
	if _, _, err := q.Position(ctx, "unknown"); !errors.Is(err, ErrNotQueued) {
		t.Fatalf("expected ErrNotQueued for unknown job, got %v", err)
	}
}

func TestEnqueueAgainstRedis(t *testing.T) {
	addr := testutil.StartRedis(t)
	client := redis.NewClient(&redis.Options{Addr: addr})
	q := NewRedisQueueWithClient(client, nil, "default")
	t.Cleanup(func() { _ = q.Close() })

	ctx := context.Background()
	if err := q.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if err := q.Enqueue(ctx, "job-x", ""); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	depth, err := q.ReadyDepth(ctx)
	if err != nil || depth != 1 {
		t.Fatalf("expected depth 1, got %d err=%v", depth, err)
	}
}
