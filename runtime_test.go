package uringrt

import (
	"context"
	"testing"

	"github.com/pawelgaczynski/giouring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudcutter/uringrt/internal/executor"
	"github.com/cloudcutter/uringrt/internal/wake"
)

func TestBlockOnRecordsMetrics(t *testing.T) {
	rt, ring, err := NewTestRuntime(4)
	require.NoError(t, err)
	defer rt.Close()

	ring.Complete(0, 0, 0)

	_, err = RunTest(rt, ring, func(ctx context.Context) executor.Future[Completion[struct{}]] {
		op, err := Submit(ctx, struct{}{}, func(*giouring.SubmissionQueueEntry, *struct{}) {})
		require.NoError(t, err)
		return op
	})
	require.NoError(t, err)

	snap := rt.Metrics().Snapshot()
	assert.EqualValues(t, 1, snap.SubmittedOps)
	assert.EqualValues(t, 1, snap.CompletedOps)
	assert.EqualValues(t, 0, snap.CompletionErrors)
}

// neverReady never completes and never wakes anything, so the run loop
// should observe no work and no in-flight operations once it has been
// polled exactly once.
type neverReady struct{}

func (neverReady) Poll(wake.Waker) (int, bool) { return 0, false }

func TestBlockOnDetectsDeadlock(t *testing.T) {
	rt, _, err := NewTestRuntime(4)
	require.NoError(t, err)
	defer rt.Close()

	_, err = BlockOn(rt, context.Background(), func(ctx context.Context) executor.Future[int] {
		return neverReady{}
	})

	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeInvariantViolation))
}

func TestSpawnRunsAlongsideRootTask(t *testing.T) {
	rt, ring, err := NewTestRuntime(4)
	require.NoError(t, err)
	defer rt.Close()

	ring.Complete(0, 7, 0)

	var sideResult int
	result, err := RunTest(rt, ring, func(ctx context.Context) executor.Future[Completion[struct{}]] {
		side := executor.Spawn[int](executorOf(rt), executor.FromFunc(func(wake.Waker) (int, bool) {
			sideResult = 42
			return 42, true
		}))
		_ = side

		op, err := Submit(ctx, struct{}{}, func(*giouring.SubmissionQueueEntry, *struct{}) {})
		require.NoError(t, err)
		return op
	})

	require.NoError(t, err)
	assert.EqualValues(t, 7, result.Result)
	assert.Equal(t, 42, sideResult)
}

// executorOf exposes the unexported executor field for white-box tests in
// this package.
func executorOf(rt *Runtime) *executor.Executor {
	return rt.executor
}
