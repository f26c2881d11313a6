package scheduler

import (
	"context"
	"log"
	"sync"
	"time"
)

// Sweeper runs maintenance jobs on a fixed interval through the worker
// pool: the webhook recovery sweep, session cache eviction, and the rate
// limit counter purge.
type Sweeper struct {
	workerPool  *WorkerPool
	interval    time.Duration
	jobProvider func(context.Context) []Job

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// SweeperConfig holds configuration for the sweeper.
type SweeperConfig struct {
	Interval    time.Duration
	WorkerCount int
	QueueSize   int
	JobProvider func(context.Context) []Job
}

// NewSweeper creates a sweeper with its own worker pool.
func NewSweeper(config SweeperConfig) *Sweeper {
	ctx, cancel := context.WithCancel(context.Background())

	return &Sweeper{
		workerPool:  NewWorkerPool(config.WorkerCount, 0, config.QueueSize),
		interval:    config.Interval,
		jobProvider: config.JobProvider,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Pool exposes the worker pool so request handlers can submit ad hoc jobs
// (e.g. processing a freshly ingested webhook).
func (s *Sweeper) Pool() *WorkerPool {
	return s.workerPool
}

// Start launches the worker pool and the interval loop.
func (s *Sweeper) Start() {
	log.Printf("Starting sweeper, interval %v", s.interval)

	s.workerPool.Start()

	s.wg.Add(1)
	go s.loop()
}

func (s *Sweeper) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			log.Println("Sweeper loop: Context cancelled, shutting down")
			return

		case <-ticker.C:
			s.runJobs()
		}
	}
}

func (s *Sweeper) runJobs() {
	if s.jobProvider == nil {
		return
	}
	s.workerPool.SubmitBatch(s.jobProvider(s.ctx))
}

// Shutdown gracefully stops the sweeper and its worker pool.
func (s *Sweeper) Shutdown(timeout time.Duration) {
	log.Println("Sweeper: Initiating graceful shutdown...")

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Sweeper: Loop stopped gracefully")
	case <-time.After(timeout):
		log.Println("Sweeper: Timeout waiting for loop to stop")
	}

	s.workerPool.ShutdownWithTimeout(timeout)

	log.Println("Sweeper: Shutdown complete")
}
