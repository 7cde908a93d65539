package testalloc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vizsched/vizsched/internal/allocator"
)

func TestCreateThenReadyImmediately(t *testing.T) {
	a := New(0, "10.0.0.5")
	ctx := context.Background()

	id, err := a.CreateJob(ctx, "tok", allocator.CreateJobPayload{Project: "p1"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	details, err := a.GetJobDetails(ctx, "tok", id)
	require.NoError(t, err)
	require.True(t, details.Ready())
	require.Equal(t, "10.0.0.5", details.Host)
}

func TestNotReadyUntilDelayElapses(t *testing.T) {
	a := New(50*time.Millisecond, "10.0.0.5")
	ctx := context.Background()

	id, err := a.CreateJob(ctx, "tok", allocator.CreateJobPayload{})
	require.NoError(t, err)

	details, err := a.GetJobDetails(ctx, "tok", id)
	require.NoError(t, err)
	require.False(t, details.Ready())

	time.Sleep(60 * time.Millisecond)

	details, err = a.GetJobDetails(ctx, "tok", id)
	require.NoError(t, err)
	require.True(t, details.Ready())
}

func TestDestroyUnknownJob(t *testing.T) {
	a := New(0, "")
	err := a.DestroyJob(context.Background(), "missing")
	require.ErrorIs(t, err, allocator.ErrInvalidJobID)
}

func TestDestroyThenGetDetailsNotFound(t *testing.T) {
	a := New(0, "")
	ctx := context.Background()
	id, err := a.CreateJob(ctx, "tok", allocator.CreateJobPayload{})
	require.NoError(t, err)
	require.NoError(t, a.DestroyJob(ctx, id))

	_, err = a.GetJobDetails(ctx, "tok", id)
	require.ErrorIs(t, err, allocator.ErrJobNotFound)
}
