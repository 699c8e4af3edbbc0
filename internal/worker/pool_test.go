package worker

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfmark/productpipeline/internal/queue"
)

type fakeRunner struct {
	calls []struct {
		slug  string
		jobID uuid.UUID
	}
	err error
}

func (f *fakeRunner) RunScheduledJob(ctx context.Context, scheduleSlug string, jobID uuid.UUID) error {
	f.calls = append(f.calls, struct {
		slug  string
		jobID uuid.UUID
	}{scheduleSlug, jobID})
	return f.err
}

func TestProcessJob_RunScheduleKindDispatchesToRunner(t *testing.T) {
	runner := &fakeRunner{}
	p := New(nil, runner, nil, 0)

	jobID := uuid.New()
	raw, err := json.Marshal(scheduledJobPayload{ScheduleSlug: "weekly-whiskey-discovery", JobID: jobID.String()})
	require.NoError(t, err)

	p.processJob(context.Background(), &queue.Job{Kind: scheduledJobKind, Payload: raw}, "discovery-0")

	require.Len(t, runner.calls, 1)
	assert.Equal(t, "weekly-whiskey-discovery", runner.calls[0].slug)
	assert.Equal(t, jobID, runner.calls[0].jobID)
}

func TestProcessJob_UnknownKindIsDroppedWithoutCallingRunner(t *testing.T) {
	runner := &fakeRunner{}
	p := New(nil, runner, nil, 0)

	p.processJob(context.Background(), &queue.Job{Kind: "enrich_product", Payload: json.RawMessage(`{}`)}, "default-0")

	assert.Empty(t, runner.calls)
}

func TestProcessJob_InvalidJobIDIsDroppedWithoutCallingRunner(t *testing.T) {
	runner := &fakeRunner{}
	p := New(nil, runner, nil, 0)

	raw, err := json.Marshal(scheduledJobPayload{ScheduleSlug: "weekly-whiskey-discovery", JobID: "not-a-uuid"})
	require.NoError(t, err)

	p.processJob(context.Background(), &queue.Job{Kind: scheduledJobKind, Payload: raw}, "default-0")

	assert.Empty(t, runner.calls)
}

func TestNew_DefaultsQueuesAndConcurrencyWhenUnset(t *testing.T) {
	p := New(nil, &fakeRunner{}, nil, 0)

	assert.Equal(t, DefaultQueues, p.Queues)
	assert.Equal(t, 1, p.ConcurrencyPerQueue)
}
