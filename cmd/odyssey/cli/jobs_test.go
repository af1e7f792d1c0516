package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-wms/jobs"
)

type fakeEnqueuer struct {
	names []string
}

func (f *fakeEnqueuer) Trigger(_ context.Context, name string) (*asynq.TaskInfo, error) {
	if name != jobs.TaskLowStockScan {
		return nil, errors.New("jobs: unknown task")
	}
	f.names = append(f.names, name)
	return &asynq.TaskInfo{ID: "t-1", Type: name, Queue: jobs.QueueDefault}, nil
}

type fakeInspector struct {
	info      *asynq.QueueInfo
	scheduled []*asynq.TaskInfo
}

func (f fakeInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return f.info, nil
}

func (f fakeInspector) ListScheduledTasks(string, ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	return f.scheduled, nil
}

func TestRunTrigger(t *testing.T) {
	enq := &fakeEnqueuer{}
	c := NewJobsCLI(enq, fakeInspector{})
	var out bytes.Buffer

	require.NoError(t, c.Run(context.Background(), []string{"trigger", jobs.TaskLowStockScan}, &out))
	require.Equal(t, []string{jobs.TaskLowStockScan}, enq.names)
	require.Contains(t, out.String(), "enqueued inventory:low_stock_scan id=t-1")

	require.Error(t, c.Run(context.Background(), []string{"trigger", "ledger:rebuild"}, &out))
}

func TestRunStatsAndScheduled(t *testing.T) {
	next := time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)
	c := NewJobsCLI(&fakeEnqueuer{}, fakeInspector{
		info:      &asynq.QueueInfo{Queue: jobs.QueueDefault, Pending: 3, Retry: 1, Archived: 2},
		scheduled: []*asynq.TaskInfo{{ID: "s-1", Type: jobs.TaskLowStockScan, NextProcessAt: next}},
	})

	var out bytes.Buffer
	require.NoError(t, c.Run(context.Background(), []string{"stats"}, &out))
	require.Contains(t, out.String(), "pending=3 active=0 scheduled=0 retry=1 archived=2")

	out.Reset()
	require.NoError(t, c.Run(context.Background(), []string{"scheduled", "5"}, &out))
	require.Equal(t, "s-1 inventory:low_stock_scan next=2026-03-02T06:00:00Z\n", out.String())
}

func TestRunUsage(t *testing.T) {
	c := NewJobsCLI(&fakeEnqueuer{}, fakeInspector{})
	for _, args := range [][]string{nil, {"trigger"}, {"scheduled", "zero"}, {"purge"}} {
		require.ErrorIs(t, c.Run(context.Background(), args, &bytes.Buffer{}), ErrUsage)
	}
}
