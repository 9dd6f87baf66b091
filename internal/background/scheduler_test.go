package background

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func startScheduler(t *testing.T) *Scheduler {
	t.Helper()
	scheduler := NewScheduler(SchedulerConfig{WorkerCount: 2, QueueSize: 8})
	scheduler.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = scheduler.Shutdown(ctx)
	})
	return scheduler
}

func TestScheduleRequiresStart(t *testing.T) {
	scheduler := NewScheduler(SchedulerConfig{})
	err := scheduler.Schedule(Job{Name: "noop", Run: func(context.Context) error { return nil }})
	if !errors.Is(err, ErrSchedulerNotStarted) {
		t.Fatalf("expected ErrSchedulerNotStarted, got %v", err)
	}
}

func TestScheduleValidatesJob(t *testing.T) {
	scheduler := startScheduler(t)
	if err := scheduler.Schedule(Job{Run: func(context.Context) error { return nil }}); err == nil {
		t.Fatalf("expected error for unnamed job")
	}
	if err := scheduler.Schedule(Job{Name: "empty"}); err == nil {
		t.Fatalf("expected error for job without runner")
	}
}

func TestScheduleUniqueRefusesDuplicates(t *testing.T) {
	scheduler := startScheduler(t)

	release := make(chan struct{})
	done := make(chan struct{})
	job := Job{
		Name: "recompute",
		Run: func(ctx context.Context) error {
			<-release
			close(done)
			return nil
		},
	}

	if err := scheduler.ScheduleUnique(job); err != nil {
		t.Fatalf("ScheduleUnique returned error: %v", err)
	}
	if err := scheduler.ScheduleUnique(job); !errors.Is(err, ErrJobAlreadyScheduled) {
		t.Fatalf("expected ErrJobAlreadyScheduled, got %v", err)
	}

	close(release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("job did not run")
	}

	deadline := time.Now().Add(2 * time.Second)
	for scheduler.ActiveJobCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("unique job was not released")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestFailedJobIsRetried(t *testing.T) {
	scheduler := startScheduler(t)

	var calls int32
	done := make(chan struct{})
	err := scheduler.Schedule(Job{
		Name: "flaky",
		Run: func(ctx context.Context) error {
			if atomic.AddInt32(&calls, 1) < 3 {
				return errors.New("temporary failure")
			}
			close(done)
			return nil
		},
		RetryPolicy: RetryPolicy{MaxRetries: 2, Backoff: time.Millisecond},
	})
	if err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("job was not retried, calls=%d", atomic.LoadInt32(&calls))
	}
}

func TestPanickingJobDoesNotStopWorkers(t *testing.T) {
	scheduler := startScheduler(t)

	if err := scheduler.Schedule(Job{Name: "panics", Run: func(context.Context) error { panic("boom") }}); err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}

	done := make(chan struct{})
	if err := scheduler.Schedule(Job{Name: "after", Run: func(context.Context) error { close(done); return nil }}); err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("worker stopped after a panic")
	}
}

func TestScheduleEveryRunsRepeatedly(t *testing.T) {
	scheduler := startScheduler(t)

	var runs int32
	err := scheduler.ScheduleEvery(Job{
		Name: "audit",
		Run: func(ctx context.Context) error {
			atomic.AddInt32(&runs, 1)
			return nil
		},
	}, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("ScheduleEvery returned error: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&runs) < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("expected at least 3 runs, got %d", atomic.LoadInt32(&runs))
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := scheduler.ScheduleEvery(Job{Name: "bad", Run: func(context.Context) error { return nil }}, 0); err == nil {
		t.Fatalf("expected error for non-positive interval")
	}
}

func TestShutdownStopsPeriodicJobs(t *testing.T) {
	scheduler := NewScheduler(SchedulerConfig{WorkerCount: 1})
	scheduler.Start(context.Background())

	if err := scheduler.ScheduleEvery(Job{Name: "tick", Run: func(context.Context) error { return nil }}, time.Millisecond); err != nil {
		t.Fatalf("ScheduleEvery returned error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := scheduler.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}
}
