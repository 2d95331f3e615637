// Package transferpool runs streamed downloads of already-resolved URLs on
// a bounded set of workers. Only direct links whose URLs need no browser
// interaction go through the pool; everything navigation-dependent stays on
// the single scraper thread.
package transferpool

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"canvasfetch/pkg/logger"
)

// Job is one resolved URL to transfer to a local path.
type Job struct {
	URL         string
	LocalPath   string
	DisplayName string
}

// Result reports how a job ended. Skipped means the skip-existing check
// found a completed file and no network activity happened.
type Result struct {
	Job      Job
	Success  bool
	Skipped  bool
	Bytes    int64
	Error    error
	Duration time.Duration
}

// Fetcher streams the content behind a URL.
type Fetcher interface {
	Fetch(url string) (io.ReadCloser, int64, error)
}

// Store is the slice of the mirror manager the pool needs.
type Store interface {
	IsComplete(path string) bool
	SaveFile(path string, r io.Reader, progress func(int64)) (int64, error)
	WritePlaceholder(path string) error
}

// Pool manages concurrent transfer workers.
type Pool struct {
	numWorkers   int
	skipExisting bool
	jobQueue     chan Job
	results      chan Result
	wg           sync.WaitGroup
	ctx          context.Context
	cancel       context.CancelFunc
	fetcher      Fetcher
	store        Store
	logger       logger.Logger
}

// New creates a transfer pool. Workers are not started until Start. When
// skipExisting is false every job transfers, even over a completed file.
func New(numWorkers int, fetcher Fetcher, store Store, skipExisting bool, log logger.Logger) *Pool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		numWorkers:   numWorkers,
		skipExisting: skipExisting,
		jobQueue:     make(chan Job, numWorkers*2),
		results:      make(chan Result, numWorkers),
		ctx:          ctx,
		cancel:       cancel,
		fetcher:      fetcher,
		store:        store,
		logger:       log,
	}
}

// Start launches the workers.
func (p *Pool) Start() {
	p.logger.DebugWithFields("starting transfer pool", map[string]interface{}{
		"workers": p.numWorkers,
	})
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop closes the queue, drains the workers and closes the results channel.
func (p *Pool) Stop() {
	close(p.jobQueue)
	p.wg.Wait()
	close(p.results)
	p.cancel()
}

// Submit enqueues a job. Fails only when the pool is shutting down. The
// caller is the single scraper thread, so Submit never races with Stop.
func (p *Pool) Submit(job Job) error {
	select {
	case <-p.ctx.Done():
		return fmt.Errorf("transfer pool is shutting down")
	default:
	}

	select {
	case p.jobQueue <- job:
		return nil
	case <-p.ctx.Done():
		return fmt.Errorf("transfer pool is shutting down")
	}
}

// Results returns the channel the pool reports outcomes on.
func (p *Pool) Results() <-chan Result {
	return p.results
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for job := range p.jobQueue {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		result := p.process(job, id)

		select {
		case p.results <- result:
		case <-p.ctx.Done():
			return
		}
	}
}

// process runs the transfer chain for one job: skip-existing check, then
// streamed fetch + save, then placeholder on failure. Failures are carried
// in the result, never returned as errors.
func (p *Pool) process(job Job, workerID int) Result {
	start := time.Now()
	result := Result{Job: job}

	if p.skipExisting && p.store.IsComplete(job.LocalPath) {
		p.logger.DebugWithFields("already mirrored, skipping", map[string]interface{}{
			"worker_id": workerID,
			"name":      job.DisplayName,
		})
		result.Success = true
		result.Skipped = true
		result.Duration = time.Since(start)
		return result
	}

	body, _, err := p.fetcher.Fetch(job.URL)
	if err != nil {
		p.fail(&result, job, workerID, err)
		result.Duration = time.Since(start)
		return result
	}
	defer body.Close()

	written, err := p.store.SaveFile(job.LocalPath, body, nil)
	if err != nil {
		p.fail(&result, job, workerID, err)
		result.Duration = time.Since(start)
		return result
	}

	result.Success = true
	result.Bytes = written
	result.Duration = time.Since(start)

	p.logger.DebugWithFields("transfer completed", map[string]interface{}{
		"worker_id": workerID,
		"name":      job.DisplayName,
		"bytes":     written,
	})

	return result
}

func (p *Pool) fail(result *Result, job Job, workerID int, err error) {
	result.Error = err

	p.logger.WarnWithFields("transfer failed, writing placeholder", map[string]interface{}{
		"worker_id": workerID,
		"name":      job.DisplayName,
		"url":       job.URL,
		"error":     err.Error(),
	})

	if phErr := p.store.WritePlaceholder(job.LocalPath); phErr != nil {
		p.logger.ErrorWithFields("placeholder write failed", map[string]interface{}{
			"path":  job.LocalPath,
			"error": phErr.Error(),
		})
	}
}
