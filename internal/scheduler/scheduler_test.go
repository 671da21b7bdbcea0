// internal/scheduler/scheduler_test.go
package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"nudge-engine/internal/common/logger"
)

func TestScheduler_RunsTaskImmediatelyAndOnInterval(t *testing.T) {
	var runs int64
	s := New(logger.NewTestLogger(t), nil)
	s.Register(Task{
		Name:  "counter",
		Every: 20 * time.Millisecond,
		Run: func(ctx context.Context) error {
			atomic.AddInt64(&runs, 1)
			return nil
		},
	})

	s.Start(context.Background())
	time.Sleep(70 * time.Millisecond)
	s.Stop()

	// One immediate run plus at least two ticks.
	assert.GreaterOrEqual(t, atomic.LoadInt64(&runs), int64(3))
}

func TestScheduler_TaskErrorDoesNotStopTicking(t *testing.T) {
	var runs int64
	s := New(logger.NewTestLogger(t), nil)
	s.Register(Task{
		Name:  "flaky",
		Every: 15 * time.Millisecond,
		Run: func(ctx context.Context) error {
			atomic.AddInt64(&runs, 1)
			return errors.New("transient")
		},
	})

	s.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	assert.GreaterOrEqual(t, atomic.LoadInt64(&runs), int64(2))
}

func TestScheduler_StopWaitsForInFlightRun(t *testing.T) {
	var finished int64
	s := New(logger.NewTestLogger(t), nil)
	s.Register(Task{
		Name:  "slow",
		Every: time.Hour,
		Run: func(ctx context.Context) error {
			time.Sleep(30 * time.Millisecond)
			atomic.AddInt64(&finished, 1)
			return nil
		},
	})

	s.Start(context.Background())
	time.Sleep(5 * time.Millisecond)
	s.Stop()

	assert.Equal(t, int64(1), atomic.LoadInt64(&finished))
}

func TestScheduler_RegisterAfterStartIsIgnored(t *testing.T) {
	var late int64
	s := New(logger.NewTestLogger(t), nil)
	s.Start(context.Background())
	defer s.Stop()

	s.Register(Task{
		Name:  "late",
		Every: time.Millisecond,
		Run: func(ctx context.Context) error {
			atomic.AddInt64(&late, 1)
			return nil
		},
	})

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(0), atomic.LoadInt64(&late))
}
