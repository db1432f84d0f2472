// Package ledger
package ledger

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"websitecrawler/packages/domain"
)

// Result is what the ledger remembers about a completed job. The full job is
// retained only in debug mode to keep memory bounded on large crawls.
type Result struct {
	Code int         `json:"code"`
	Job  *domain.Job `json:"-"`
}

// Ledger is the process-wide coordination state of one crawl run. It holds
// pending jobs (FIFO), the dedup keys currently reserved by a runner, and
// the results of completed jobs. All operations are safe for concurrent use;
// a single mutex guards the three collections.
type Ledger struct {
	mu        sync.Mutex
	drained   *sync.Cond
	pending   []*domain.Job
	reserved  map[string]*domain.Job
	completed map[string]Result

	// reservedKeys remembers the key each job was reserved under, since a
	// processor may change the job's URL (adopted redirect) before Complete.
	reservedKeys map[*domain.Job]string

	accepted   map[int]bool
	retainJobs bool
	// wake is closed and replaced on every Put so all timed getters recheck.
	wake chan struct{}
}

// New creates an empty ledger. With retainJobs, Complete keeps the whole job
// in the completed map instead of just its status code.
func New(retainJobs bool) *Ledger {
	l := &Ledger{
		reserved:     make(map[string]*domain.Job),
		completed:    make(map[string]Result),
		reservedKeys: make(map[*domain.Job]string),
		accepted:     map[int]bool{200: true},
		retainJobs:   retainJobs,
		wake:         make(chan struct{}),
	}
	l.drained = sync.NewCond(&l.mu)
	return l
}

// Put enqueues a job unless its dedup key is already reserved or completed,
// in which case the job is silently dropped. Pending entries are not scanned
// for duplicates; a transient duplicate in pending is dropped later, at
// reservation time, so a key still reaches a processor exactly once.
func (l *Ledger) Put(job *domain.Job) {
	key := job.Key()

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.reserved[key]; ok {
		return
	}
	if _, ok := l.completed[key]; ok {
		return
	}
	l.pending = append(l.pending, job)
	close(l.wake)
	l.wake = make(chan struct{})
}

// Get removes and returns the oldest pending job, reserving its key before
// returning. It waits up to timeout for a job to become available and
// returns false on timeout. Popped jobs whose key is meanwhile reserved or
// completed are dropped here rather than handed out a second time.
func (l *Ledger) Get(timeout time.Duration) (*domain.Job, bool) {
	deadline := time.Now().Add(timeout)
	for {
		l.mu.Lock()
		for len(l.pending) > 0 {
			job := l.pending[0]
			l.pending = l.pending[1:]
			key := job.Key()
			if _, ok := l.reserved[key]; ok {
				l.signalDrainLocked()
				continue
			}
			if _, ok := l.completed[key]; ok {
				l.signalDrainLocked()
				continue
			}
			l.reserved[key] = job
			l.reservedKeys[job] = key
			l.mu.Unlock()
			return job, true
		}
		wake := l.wake
		l.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, false
		}
		timer := time.NewTimer(remaining)
		select {
		case <-wake:
			timer.Stop()
		case <-timer.C:
			return nil, false
		}
	}
}

// Complete releases the job's reservation and records its result. It must be
// called exactly once for every job returned by Get, regardless of whether
// processing succeeded. When the job's URL changed since reservation (adopted
// redirect), both the reserved and the final key are recorded as completed.
func (l *Ledger) Complete(job *domain.Job, code int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	res := Result{Code: code}
	if l.retainJobs {
		res.Job = job
	}

	key := job.Key()
	if reservedKey, ok := l.reservedKeys[job]; ok {
		delete(l.reservedKeys, job)
		delete(l.reserved, reservedKey)
		if reservedKey != key {
			l.completed[reservedKey] = res
		}
	}
	delete(l.reserved, key)
	l.completed[key] = res
	l.signalDrainLocked()
}

func (l *Ledger) signalDrainLocked() {
	if len(l.pending) == 0 && len(l.reserved) == 0 {
		l.drained.Broadcast()
	}
}

// Join blocks until the ledger is drained: no pending and no reserved jobs.
func (l *Ledger) Join() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for len(l.pending) > 0 || len(l.reserved) > 0 {
		l.drained.Wait()
	}
}

// Drained reports whether no work is pending or in flight.
func (l *Ledger) Drained() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending) == 0 && len(l.reserved) == 0
}

// PendingCount returns the number of jobs waiting to be reserved.
func (l *Ledger) PendingCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// ReservedCount returns the number of jobs currently checked out.
func (l *Ledger) ReservedCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.reserved)
}

// CompletedCount returns the number of recorded results.
func (l *Ledger) CompletedCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.completed)
}

// SucceededCount returns the number of completed jobs whose status code is
// in the accepted set (by default just 200).
func (l *Ledger) SucceededCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, res := range l.completed {
		if l.accepted[res.Code] {
			n++
		}
	}
	return n
}

// Counts returns all four counters from a single point in time.
func (l *Ledger) Counts() (pending, reserved, completed, succeeded int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, res := range l.completed {
		if l.accepted[res.Code] {
			succeeded++
		}
	}
	return len(l.pending), len(l.reserved), len(l.completed), succeeded
}

// Snapshot is a point-in-time JSON-friendly view of the ledger, exported for
// observability only. It is not sufficient to resume a crawl.
type Snapshot struct {
	Pending   []string       `json:"pending"`
	Reserved  []string       `json:"reserved"`
	Completed map[string]int `json:"completed"`
}

// Snapshot captures the current ledger contents.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := Snapshot{
		Pending:   make([]string, 0, len(l.pending)),
		Reserved:  make([]string, 0, len(l.reserved)),
		Completed: make(map[string]int, len(l.completed)),
	}
	for _, job := range l.pending {
		snap.Pending = append(snap.Pending, job.Key())
	}
	for key := range l.reserved {
		snap.Reserved = append(snap.Reserved, key)
	}
	for key, res := range l.completed {
		snap.Completed[key] = res.Code
	}
	return snap
}

// WriteSnapshot writes the snapshot as JSON.
func (l *Ledger) WriteSnapshot(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(l.Snapshot()); err != nil {
		slog.Error("Failed to export ledger snapshot", "error", err)
		return err
	}
	return nil
}
