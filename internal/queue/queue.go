// Package queue implements the named Redis-list work queues the scheduler
// and discovery dispatch into (§5 "default/discovery/crawl/search/
// enrichment queues").
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Names of the named queues §5 describes.
const (
	Default    = "default"
	Discovery  = "discovery"
	Crawl      = "crawl"
	Search     = "search"
	Enrichment = "enrichment"
)

const keyPrefix = "queue:"

// Job is one unit of dispatched work: an opaque, JSON-encoded payload tagged
// with a kind so a consumer can route it to the right handler.
type Job struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Queue pushes/pops Job values on a named Redis list.
type Queue struct {
	rdb *redis.Client
}

// New builds a Queue backed by rdb.
func New(rdb *redis.Client) *Queue {
	return &Queue{rdb: rdb}
}

// Push enqueues a job of the given kind onto queueName (RPUSH).
func (q *Queue) Push(ctx context.Context, queueName, kind string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling %s payload: %w", kind, err)
	}
	job := Job{Kind: kind, Payload: raw}
	encoded, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshaling job envelope: %w", err)
	}
	if err := q.rdb.RPush(ctx, keyPrefix+queueName, encoded).Err(); err != nil {
		return fmt.Errorf("pushing to queue %s: %w", queueName, err)
	}
	return nil
}

// Pop blocks up to timeout for the next job on queueName (BLPOP). A zero
// timeout blocks indefinitely. Returns (nil, nil) on timeout with no job.
func (q *Queue) Pop(ctx context.Context, queueName string, timeout time.Duration) (*Job, error) {
	result, err := q.rdb.BLPop(ctx, timeout, keyPrefix+queueName).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("popping from queue %s: %w", queueName, err)
	}
	// BLPOP returns [key, value]; result[0] is the key, result[1] the value.
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("unmarshaling job from queue %s: %w", queueName, err)
	}
	return &job, nil
}

// Len reports the current backlog depth of queueName.
func (q *Queue) Len(ctx context.Context, queueName string) (int64, error) {
	n, err := q.rdb.LLen(ctx, keyPrefix+queueName).Result()
	if err != nil {
		return 0, fmt.Errorf("measuring queue %s: %w", queueName, err)
	}
	return n, nil
}
