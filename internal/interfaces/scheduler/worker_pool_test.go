package scheduler

import (
	"context"
	"testing"
	"time"
)

// testJob is a minimal Job for pool tests
type testJob struct {
	execute func(ctx context.Context) error
	user    string
}

func (j *testJob) Execute(ctx context.Context) error {
	if j.execute != nil {
		return j.execute(ctx)
	}
	return nil
}

func (j *testJob) UserID() string { return j.user }

func (j *testJob) Description() string { return "test job" }

func TestWorkerPoolExecutesJobs(t *testing.T) {
	pool := NewWorkerPool(2, 0, 4)
	pool.Start()
	defer pool.ShutdownWithTimeout(time.Second)

	done := make(chan string, 2)
	for _, user := range []string{"user-1", "user-2"} {
		u := user
		job := &testJob{user: u, execute: func(ctx context.Context) error {
			done <- u
			return nil
		}}
		if err := pool.Submit(job); err != nil {
			t.Fatalf("Submit() unexpected error: %v", err)
		}
	}

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for jobs to execute")
		}
	}
}

func TestWorkerPoolSubmitAfterShutdown(t *testing.T) {
	pool := NewWorkerPool(1, 0, 1)
	pool.Start()
	pool.ShutdownWithTimeout(time.Second)

	// A request handler can still be in flight when shutdown completes;
	// its submit must fail cleanly instead of panicking on a closed queue.
	if err := pool.Submit(&testJob{user: "user-1"}); err == nil {
		t.Fatal("Submit() after shutdown expected error, got nil")
	}
}

func TestWorkerPoolQueueFull(t *testing.T) {
	// Not started: nothing drains the queue.
	pool := NewWorkerPool(1, 0, 1)

	if err := pool.Submit(&testJob{user: "user-1"}); err != nil {
		t.Fatalf("Submit() unexpected error: %v", err)
	}
	if err := pool.Submit(&testJob{user: "user-2"}); err == nil {
		t.Fatal("Submit() on a full queue expected error, got nil")
	}
}

func TestSweeperRunsJobsOnInterval(t *testing.T) {
	ran := make(chan struct{}, 1)
	sweeper := NewSweeper(SweeperConfig{
		Interval:    10 * time.Millisecond,
		WorkerCount: 1,
		QueueSize:   4,
		JobProvider: func(ctx context.Context) []Job {
			return []Job{&testJob{user: "system", execute: func(ctx context.Context) error {
				select {
				case ran <- struct{}{}:
				default:
				}
				return nil
			}}}
		},
	})

	sweeper.Start()
	defer sweeper.Shutdown(time.Second)

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("sweep job never ran")
	}
}
