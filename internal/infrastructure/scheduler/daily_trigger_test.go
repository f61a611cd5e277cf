package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewDailyTrigger_Validation(t *testing.T) {
	job := func(context.Context) error { return nil }

	_, err := NewDailyTrigger(DailyTriggerConfig{Hour: 24}, job, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewDailyTrigger(DailyTriggerConfig{Minute: -1}, job, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	d, err := NewDailyTrigger(DailyTriggerConfig{Hour: 1, Minute: 30}, job, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, d.config.CheckInterval)
}

func TestDailyTrigger_RunsOncePerDay(t *testing.T) {
	var runs atomic.Int32
	d, err := NewDailyTrigger(DailyTriggerConfig{Name: "refresh_overdue", Hour: 1, Minute: 30}, func(context.Context) error {
		runs.Add(1)
		return nil
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	now := time.Date(2026, 3, 15, 1, 29, 0, 0, time.UTC)
	d.now = func() time.Time { return now }
	ctx := context.Background()

	assert.False(t, d.checkAndRun(ctx), "before the trigger time")

	now = now.Add(time.Minute)
	assert.True(t, d.checkAndRun(ctx))
	now = now.Add(3 * time.Hour)
	assert.False(t, d.checkAndRun(ctx), "already ran today")

	now = time.Date(2026, 3, 16, 9, 0, 0, 0, time.UTC)
	assert.True(t, d.checkAndRun(ctx), "late start still runs the same day")
	assert.Equal(t, int32(2), runs.Load())
}

func TestDailyTrigger_FailedJobIsNotRetriedSameDay(t *testing.T) {
	var runs atomic.Int32
	d, err := NewDailyTrigger(DailyTriggerConfig{Hour: 0}, func(context.Context) error {
		runs.Add(1)
		return errors.New("database unavailable")
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	d.now = func() time.Time { return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC) }

	assert.True(t, d.checkAndRun(context.Background()))
	assert.False(t, d.checkAndRun(context.Background()))
	assert.Equal(t, int32(1), runs.Load())
}

func TestDailyTrigger_StartStop(t *testing.T) {
	ran := make(chan struct{}, 1)
	d, err := NewDailyTrigger(DailyTriggerConfig{Hour: 0, CheckInterval: 5 * time.Millisecond}, func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	require.NoError(t, d.Start(context.Background()))
	require.NoError(t, d.Start(context.Background()))

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))
	require.NoError(t, d.Stop(ctx))
}
