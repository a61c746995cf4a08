package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"agrimarket/internal/service"
)

type countingProcessor struct {
	calls atomic.Int32
	force atomic.Bool
	err   error
}

func (p *countingProcessor) Process(_ context.Context, _ time.Time, force bool) (*service.ProcessResult, error) {
	p.calls.Add(1)
	if force {
		p.force.Store(true)
	}
	if p.err != nil {
		return nil, p.err
	}
	return &service.ProcessResult{Processed: 1, Total: 1}, nil
}

func TestScheduleWorkerFiresAndStops(t *testing.T) {
	proc := &countingProcessor{}
	w := NewScheduleWorker(proc, "@every 1s", zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	require.Eventually(t, func() bool { return proc.calls.Load() > 0 }, 5*time.Second, 50*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
	assert.False(t, proc.force.Load())
}

func TestScheduleWorkerRejectsBadSpec(t *testing.T) {
	w := NewScheduleWorker(&countingProcessor{}, "every now and then", zap.NewNop())

	err := w.Start(context.Background())
	require.Error(t, err)
}

func TestRunOnceLogsFailure(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	w := NewScheduleWorker(&countingProcessor{err: errors.New("db down")}, "@hourly", zap.New(core))

	w.runOnce(context.Background())

	require.Equal(t, 1, logs.FilterMessage("schedule pass failed").Len())
}

func TestRunOnceSkipsAfterCancel(t *testing.T) {
	proc := &countingProcessor{}
	w := NewScheduleWorker(proc, "@hourly", zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.runOnce(ctx)

	assert.Zero(t, proc.calls.Load())
}
