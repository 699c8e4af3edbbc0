package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type discoveryPayload struct {
	ScheduleSlug string `json:"schedule_slug"`
}

func encodedJob(t *testing.T, kind string, payload interface{}) string {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	job := Job{Kind: kind, Payload: raw}
	encoded, err := json.Marshal(job)
	require.NoError(t, err)
	return string(encoded)
}

func TestPush_RPushesEncodedJob(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	q := New(rdb)

	payload := discoveryPayload{ScheduleSlug: "weekly-scan"}
	want := encodedJob(t, "run_schedule", payload)
	mock.ExpectRPush(keyPrefix+Discovery, want).SetVal(1)

	err := q.Push(context.Background(), Discovery, "run_schedule", payload)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPop_ReturnsDecodedJob(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	q := New(rdb)

	payload := discoveryPayload{ScheduleSlug: "weekly-scan"}
	encoded := encodedJob(t, "run_schedule", payload)
	mock.ExpectBLPop(5*time.Second, keyPrefix+Discovery).SetVal([]string{keyPrefix + Discovery, encoded})

	job, err := q.Pop(context.Background(), Discovery, 5*time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "run_schedule", job.Kind)

	var decoded discoveryPayload
	require.NoError(t, json.Unmarshal(job.Payload, &decoded))
	assert.Equal(t, "weekly-scan", decoded.ScheduleSlug)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPop_TimeoutReturnsNilJob(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	q := New(rdb)

	mock.ExpectBLPop(time.Second, keyPrefix+Crawl).RedisNil()

	job, err := q.Pop(context.Background(), Crawl, time.Second)
	require.NoError(t, err)
	assert.Nil(t, job)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLen_ReportsBacklogDepth(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	q := New(rdb)

	mock.ExpectLLen(keyPrefix + Enrichment).SetVal(3)

	n, err := q.Len(context.Background(), Enrichment)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	require.NoError(t, mock.ExpectationsWereMet())
}
