package worker

import (
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"websitecrawler/packages/domain"
	"websitecrawler/packages/ledger"
	"websitecrawler/packages/metrics"
)

// Runner drives one worker's blocking loop: reserve a job from the ledger,
// run a processor on it, enqueue whatever the processor discovered, record
// completion. Runners share nothing but the ledger; each job is exclusively
// owned between Get and Complete.
type Runner struct {
	jobs    *ledger.Ledger
	log     *slog.Logger
	client  *http.Client
	timeout time.Duration

	crashOnError bool
	quitOnEmpty  bool

	state atomic.Int32

	mu      sync.Mutex
	lastErr error
}

// NewRunner creates a runner in the Created state. With quitOnEmpty the
// runner ends itself on the first empty-queue timeout instead of waiting,
// which is what the single-threaded downloader uses.
func NewRunner(jobs *ledger.Ledger, log *slog.Logger, client *http.Client, timeout time.Duration, crashOnError, quitOnEmpty bool) *Runner {
	r := &Runner{
		jobs:         jobs,
		log:          log,
		client:       client,
		timeout:      timeout,
		crashOnError: crashOnError,
		quitOnEmpty:  quitOnEmpty,
	}
	r.state.Store(int32(domain.RunnerCreated))
	return r
}

// State returns the runner's current lifecycle state.
func (r *Runner) State() domain.RunnerState {
	return domain.RunnerState(r.state.Load())
}

// Err returns the last error a processor raised on this runner.
func (r *Runner) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

func (r *Runner) setErr(err error) {
	r.mu.Lock()
	r.lastErr = err
	r.mu.Unlock()
}

// RequestStop asks the runner to finish its in-flight job and exit. Safe to
// call from any goroutine and idempotent; terminal states are left alone.
func (r *Runner) RequestStop() {
	for {
		current := r.state.Load()
		switch domain.RunnerState(current) {
		case domain.RunnerCreated, domain.RunnerWorking, domain.RunnerWaiting:
			if r.state.CompareAndSwap(current, int32(domain.RunnerEnding)) {
				return
			}
		default:
			return
		}
	}
}

// resume flips Waiting or Created back to Working without clobbering a
// concurrently requested Ending.
func (r *Runner) resume() {
	for {
		current := r.state.Load()
		switch domain.RunnerState(current) {
		case domain.RunnerCreated, domain.RunnerWaiting:
			if r.state.CompareAndSwap(current, int32(domain.RunnerWorking)) {
				return
			}
		default:
			return
		}
	}
}

func (r *Runner) wait() {
	r.state.CompareAndSwap(int32(domain.RunnerWorking), int32(domain.RunnerWaiting))
}

// Run performs the runner's loop until it is told to stop (or, with
// quitOnEmpty, until the queue runs dry). It blocks and is meant to be
// invoked on its own goroutine. The returned error is non-nil only when the
// runner crashed, which requires crashOnError.
func (r *Runner) Run() error {
	r.log.Debug("Starting runner loop")
	r.resume()

	for {
		if r.State() == domain.RunnerEnding {
			break
		}

		job, ok := r.jobs.Get(r.timeout)
		if !ok {
			if r.quitOnEmpty {
				r.RequestStop()
			} else {
				r.wait()
			}
			continue
		}
		r.resume()

		job.Logger = r.log
		if err := r.process(job); err != nil {
			r.setErr(err)
			if r.crashOnError {
				r.log.Error("Runner crashing on processor error", "job", job.String(), "error", err)
				r.state.Store(int32(domain.RunnerCrashed))
				return err
			}
			r.log.Error("Processor error, continuing", "job", job.String(), "error", err)
		}
	}

	r.state.Store(int32(domain.RunnerExited))
	r.log.Debug("Runner loop finished")
	return nil
}

// processorRun is swapped out in tests to inject processor failures.
var processorRun = (*Processor).Run

// process runs a processor on the reserved job and feeds its outcome back
// into the ledger. Completion is always recorded, even when the processor
// errors, so the reservation can never leak.
func (r *Runner) process(job *domain.Job) error {
	proc := NewProcessor(job, r.client)
	defer func() {
		r.jobs.Complete(job, job.ResponseCode)
		metrics.JobsCompleted.Inc()
		if job.ResponseCode == http.StatusOK {
			metrics.JobsSucceeded.Inc()
		}
	}()

	ok, err := processorRun(proc)

	for _, descendant := range proc.Descendants {
		r.jobs.Put(descendant)
	}
	for ref := range job.References {
		target, parseErr := url.Parse(ref)
		if parseErr != nil {
			continue
		}
		r.jobs.Put(job.Copy(target))
	}

	if !ok && err == nil {
		r.log.Debug("Job did not complete", "job", job.String(),
			"delayed", job.Delayed, "descendants", len(proc.Descendants))
	}
	return err
}
