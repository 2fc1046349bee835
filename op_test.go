package uringrt

import (
	"context"
	"testing"

	"github.com/pawelgaczynski/giouring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudcutter/uringrt/internal/executor"
)

func TestSubmitWithoutInstalledRuntimeFails(t *testing.T) {
	_, err := Submit(context.Background(), []byte("x"), func(*giouring.SubmissionQueueEntry, *[]byte) {})
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeNotOnDriver))
}

func TestSubmitAndCompleteRoundTrip(t *testing.T) {
	rt, ring, err := NewTestRuntime(4)
	require.NoError(t, err)
	defer rt.Close()

	ring.Complete(0, 4, 0)

	result, err := RunTest(rt, ring, func(ctx context.Context) executor.Future[Completion[[]byte]] {
		buf := make([]byte, 4)
		op, err := Submit(ctx, buf, func(sqe *giouring.SubmissionQueueEntry, data *[]byte) {
			sqe.Fd = 3
		})
		require.NoError(t, err)
		return op
	})

	require.NoError(t, err)
	assert.EqualValues(t, 4, result.Result)
	assert.Nil(t, result.Err())
	assert.Len(t, result.Data, 4)
}

func TestSubmitCompletionError(t *testing.T) {
	rt, ring, err := NewTestRuntime(4)
	require.NoError(t, err)
	defer rt.Close()

	ring.Complete(0, -9, 0) // -EBADF

	result, err := RunTest(rt, ring, func(ctx context.Context) executor.Future[Completion[[]byte]] {
		op, err := Submit(ctx, []byte{}, func(*giouring.SubmissionQueueEntry, *[]byte) {})
		require.NoError(t, err)
		return op
	})

	require.NoError(t, err)
	require.Error(t, result.Err())
	assert.True(t, IsErrno(result.Err(), 9))
}

func TestOpCancelThenLateCompletionIsDiscarded(t *testing.T) {
	rt, ring, err := NewTestRuntime(4)
	require.NoError(t, err)
	defer rt.Close()

	var op *Op[[]byte]
	installed := rt.install(context.Background())
	op, err = Submit(installed, make([]byte, 4), func(*giouring.SubmissionQueueEntry, *[]byte) {})
	require.NoError(t, err)

	op.Cancel()
	assert.Equal(t, 1, rt.driver.InFlight(), "abandoned op still occupies a slot until the kernel completes it")

	ring.Complete(0, 0, 0)
	_, err = rt.driver.Tick()
	require.NoError(t, err)
	assert.Equal(t, 0, rt.driver.InFlight())
}

func TestOpCancelTwicePanics(t *testing.T) {
	rt, _, err := NewTestRuntime(4)
	require.NoError(t, err)
	defer rt.Close()

	installed := rt.install(context.Background())
	op, err := Submit(installed, []byte{}, func(*giouring.SubmissionQueueEntry, *[]byte) {})
	require.NoError(t, err)

	op.Cancel()
	assert.Panics(t, func() { op.Cancel() })
}
