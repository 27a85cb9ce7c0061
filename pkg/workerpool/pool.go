// Package workerpool provides a fixed-size pool that runs submitted
// jobs with bounded parallelism and FIFO admission.
package workerpool

import "sync"

// Pool runs jobs on a fixed number of workers. Jobs start in
// submission order; when a worker finishes it immediately takes the
// next queued job. Jobs are never dropped: Submit blocks once the
// queue is full.
type Pool struct {
	jobs chan func()
	wg   sync.WaitGroup
}

// New starts a pool of workers with the given queue capacity.
// workers < 1 is treated as 1; queueSize < 0 as 0 (rendezvous).
func New(workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	p := &Pool{jobs: make(chan func(), queueSize)}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		job()
	}
}

// Submit queues job for execution. It must not be called after Close.
func (p *Pool) Submit(job func()) {
	p.jobs <- job
}

// Close stops intake and blocks until every queued job has run.
func (p *Pool) Close() {
	close(p.jobs)
	p.wg.Wait()
}
