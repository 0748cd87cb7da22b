// Package downloader runs batches of downloads through a bounded set of
// workers.
package downloader

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"mediagrab/pkg/logger"
	"mediagrab/pkg/models"
	"mediagrab/pkg/ratelimit"
)

// DefaultWorkers is used when the pool is created with fewer than one worker
const DefaultWorkers = 3

// Dispatcher downloads a single URL. *platform.Registry satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, rawURL string) (*models.Outcome, error)
}

// Job is a single URL to download. Index keeps the submission order.
type Job struct {
	Index int
	URL   string
}

// Result is the outcome of a job
type Result struct {
	Job      Job
	Outcome  *models.Outcome
	Err      error
	Duration time.Duration
}

// Success reports whether the job produced media
func (r Result) Success() bool {
	return r.Err == nil && r.Outcome != nil
}

// WorkerPool manages concurrent download workers
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan Job
	resultQueue chan Result
	group       *errgroup.Group
	ctx         context.Context
	cancel      context.CancelFunc
	dispatcher  Dispatcher
	limiter     ratelimit.Limiter
	logger      logger.Logger

	mu      sync.Mutex
	stopped bool
}

// NewWorkerPool creates a pool bound to ctx. limiter may be nil.
func NewWorkerPool(
	ctx context.Context,
	numWorkers int,
	dispatcher Dispatcher,
	limiter ratelimit.Limiter,
	log logger.Logger,
) *WorkerPool {
	if numWorkers < 1 {
		numWorkers = DefaultWorkers
	}
	if log == nil {
		log = logger.GetLogger()
	}
	ctx, cancel := context.WithCancel(ctx)
	group, ctx := errgroup.WithContext(ctx)

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan Job, numWorkers*2),
		resultQueue: make(chan Result, numWorkers),
		group:       group,
		ctx:         ctx,
		cancel:      cancel,
		dispatcher:  dispatcher,
		limiter:     limiter,
		logger:      log.WithField("component", "downloader"),
	}
}

// Start launches the workers
func (wp *WorkerPool) Start() {
	wp.logger.InfoWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})
	for i := 0; i < wp.numWorkers; i++ {
		id := i
		wp.group.Go(func() error {
			wp.worker(id)
			return nil
		})
	}
}

// Stop closes the queue, waits for queued jobs and closes Results
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if wp.stopped {
		wp.mu.Unlock()
		return
	}
	wp.stopped = true
	close(wp.jobQueue)
	wp.mu.Unlock()

	_ = wp.group.Wait()
	close(wp.resultQueue)
	wp.cancel()
	wp.logger.Info("Worker pool stopped")
}

// Cancel aborts in-flight downloads. Jobs still queued finish with the
// context error. Stop must still be called.
func (wp *WorkerPool) Cancel() {
	wp.cancel()
}

// Submit queues a job, blocking while the queue is full
func (wp *WorkerPool) Submit(job Job) error {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.stopped {
		return fmt.Errorf("worker pool is stopped")
	}

	select {
	case wp.jobQueue <- job:
		wp.logger.DebugWithFields("Job submitted to queue", map[string]interface{}{
			"index": job.Index,
			"url":   job.URL,
		})
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down: %w", wp.ctx.Err())
	}
}

// Results returns the channel results are delivered on. It is closed by Stop.
func (wp *WorkerPool) Results() <-chan Result {
	return wp.resultQueue
}

// QueueSize returns the number of jobs waiting for a worker
func (wp *WorkerPool) QueueSize() int {
	return len(wp.jobQueue)
}

func (wp *WorkerPool) worker(id int) {
	for job := range wp.jobQueue {
		// every job yields a result, even after cancellation
		wp.resultQueue <- wp.processJob(job, id)
	}
}

func (wp *WorkerPool) processJob(job Job, workerID int) Result {
	start := time.Now()
	result := Result{Job: job}

	if err := wp.ctx.Err(); err != nil {
		result.Err = err
		return result
	}
	if wp.limiter != nil {
		if err := wp.limiter.Wait(wp.ctx); err != nil {
			result.Err = err
			return result
		}
	}

	wp.logger.DebugWithFields("Worker processing job", map[string]interface{}{
		"worker_id": workerID,
		"url":       job.URL,
	})
	result.Outcome, result.Err = wp.dispatcher.Dispatch(wp.ctx, job.URL)
	result.Duration = time.Since(start)

	if result.Err != nil {
		wp.logger.WithError(result.Err).WarnWithFields("Worker failed to download", map[string]interface{}{
			"worker_id": workerID,
			"url":       job.URL,
			"duration":  result.Duration,
		})
	}
	return result
}

// Run downloads every URL with the pool and returns the results in input
// order. onResult, when set, sees each result as it completes.
func Run(ctx context.Context, urls []string, workers int, dispatcher Dispatcher, limiter ratelimit.Limiter, log logger.Logger, onResult func(Result)) []Result {
	wp := NewWorkerPool(ctx, workers, dispatcher, limiter, log)
	wp.Start()

	results := make([]Result, 0, len(urls))
	done := make(chan struct{})
	go func() {
		defer close(done)
		for r := range wp.Results() {
			if onResult != nil {
				onResult(r)
			}
			results = append(results, r)
		}
	}()

	var unsubmitted []Result
	for i, u := range urls {
		if err := wp.Submit(Job{Index: i, URL: u}); err != nil {
			for j := i; j < len(urls); j++ {
				unsubmitted = append(unsubmitted, Result{Job: Job{Index: j, URL: urls[j]}, Err: err})
			}
			break
		}
	}
	wp.Stop()
	<-done

	results = append(results, unsubmitted...)
	sort.Slice(results, func(a, b int) bool { return results[a].Job.Index < results[b].Job.Index })
	return results
}

// Summary counts results
type Summary struct {
	Succeeded int
	Failed    int
}

// Summarize counts successes and failures
func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		if r.Success() {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	return s
}
