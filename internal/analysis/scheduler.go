// SPDX-License-Identifier: MIT
package analysis

import (
	"context"
	"errors"
	"sync"

	"vizsync/internal/feature"
)

// ErrCancelled rejects a job that was cancelled rather than failed. Callers
// use errors.Is to suppress user-facing error reporting for their own
// cancels.
var ErrCancelled = errors.New("analysis: job cancelled")

// JobFunc is the expensive computation a job runs. It receives a context
// that is cancelled when the job is; a computation that ignores it still
// completes, but its result is discarded.
type JobFunc func(ctx context.Context) (*feature.Cache, error)

type jobState int

const (
	jobQueued jobState = iota
	jobRunning
	jobSettled
)

// Job is one scheduled analysis computation.
type Job struct {
	id    uint64
	fn    JobFunc
	sched *Scheduler

	done      chan struct{}
	state     jobState
	cancelled bool
	runCancel context.CancelFunc

	result *feature.Cache
	err    error
}

// ID returns the scheduler-assigned job id.
func (j *Job) ID() uint64 { return j.id }

// Done is closed once the job settles (success, failure or cancellation).
func (j *Job) Done() <-chan struct{} { return j.done }

// Result returns the job's output. Valid only after Done is closed.
func (j *Job) Result() *feature.Cache {
	<-j.done
	return j.result
}

// Err returns the job's terminal error, nil on success. Valid only after
// Done is closed; callers should check errors.Is(err, ErrCancelled).
func (j *Job) Err() error {
	<-j.done
	return j.err
}

// Wait blocks until the job settles or ctx expires.
func (j *Job) Wait(ctx context.Context) (*feature.Cache, error) {
	select {
	case <-j.done:
		return j.result, j.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel aborts the job. A queued job is removed from the queue and settles
// immediately with ErrCancelled. A running job is flagged so that when the
// underlying computation finishes, its result is discarded and the job
// still settles with ErrCancelled; the in-flight work itself is only
// cancelled cooperatively through the job context. Settled jobs ignore
// Cancel.
func (j *Job) Cancel() {
	j.sched.cancel(j)
}

// Scheduler serializes analysis computations: one job runs at a time, extra
// Schedule calls queue in FIFO order and start after the current job settles
// regardless of how it settled. Queueing and settlement are non-blocking;
// only the computation itself runs on a background goroutine.
type Scheduler struct {
	mu     sync.Mutex
	active *Job
	queue  []*Job
	nextID uint64
}

// NewScheduler returns an idle scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Schedule enqueues fn and returns its Job handle immediately. A nil ctx is
// treated as context.Background; cancelling the given ctx cancels the job
// exactly like Job.Cancel.
func (s *Scheduler) Schedule(ctx context.Context, fn JobFunc) *Job {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	s.nextID++
	job := &Job{
		id:    s.nextID,
		fn:    fn,
		sched: s,
		done:  make(chan struct{}),
	}
	if s.active == nil {
		s.active = job
		job.state = jobRunning
		runCtx, cancel := context.WithCancel(context.Background())
		job.runCancel = cancel
		go s.run(job, runCtx)
	} else {
		s.queue = append(s.queue, job)
	}
	s.mu.Unlock()

	// Wire the caller's abort signal to Cancel.
	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				job.Cancel()
			case <-job.done:
			}
		}()
	}

	return job
}

// QueueLen reports how many jobs are waiting behind the active one.
func (s *Scheduler) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// run executes the job's computation and settles it. Runs on its own
// goroutine, one at a time per scheduler.
func (s *Scheduler) run(job *Job, ctx context.Context) {
	result, err := job.fn(ctx)
	s.settle(job, result, err)
}

// settle records the job outcome, notifies waiters, and advances the queue.
func (s *Scheduler) settle(job *Job, result *feature.Cache, err error) {
	s.mu.Lock()
	if job.state == jobSettled {
		s.mu.Unlock()
		return
	}
	if job.cancelled {
		// Delivery is suppressed even when the computation succeeded.
		result, err = nil, ErrCancelled
	}
	job.state = jobSettled
	job.result = result
	job.err = err
	if job.runCancel != nil {
		job.runCancel()
		job.runCancel = nil
	}
	close(job.done)

	if s.active == job {
		s.active = nil
		if len(s.queue) > 0 {
			next := s.queue[0]
			s.queue = s.queue[1:]
			s.active = next
			next.state = jobRunning
			runCtx, cancel := context.WithCancel(context.Background())
			next.runCancel = cancel
			go s.run(next, runCtx)
		}
	}
	s.mu.Unlock()
}

// cancel implements Job.Cancel under the scheduler lock.
func (s *Scheduler) cancel(job *Job) {
	s.mu.Lock()
	switch job.state {
	case jobSettled:
		s.mu.Unlock()
		return
	case jobQueued:
		for i, queued := range s.queue {
			if queued == job {
				s.queue = append(s.queue[:i], s.queue[i+1:]...)
				break
			}
		}
		job.cancelled = true
		job.state = jobSettled
		job.err = ErrCancelled
		close(job.done)
		s.mu.Unlock()
		return
	case jobRunning:
		job.cancelled = true
		if job.runCancel != nil {
			job.runCancel()
		}
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
}
