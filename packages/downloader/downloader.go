// Package downloader orchestrates a crawl: it seeds the ledger with the
// root jobs, starts the configured number of runners, reports progress, and
// drains everything when the site is exhausted.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"websitecrawler/packages/config"
	"websitecrawler/packages/domain"
	"websitecrawler/packages/handler"
	"websitecrawler/packages/ledger"
	"websitecrawler/packages/metrics"
	"websitecrawler/packages/worker"
)

// ErrAllJobsFailed is returned when a crawl finished without a single
// accepted response. A partial mirror still counts as success.
var ErrAllJobsFailed = errors.New("no job finished with an accepted status code")

// Downloader owns the shared ledger and the runners of one crawl run.
type Downloader struct {
	cfg      config.Config
	log      *slog.Logger
	jobs     *ledger.Ledger
	client   *http.Client
	handlers []domain.Handler
	runners  []*worker.Runner

	// StatusFunc receives the periodic status line when StatusInterval is
	// set; defaults to discarding.
	StatusFunc func(string)
}

// New creates the target directory if needed, builds the ledger and seeds
// one job per website root URL. handlers may be nil for the default list.
func New(cfg config.Config, log *slog.Logger, websites []string, targetDir string, handlers []domain.Handler) (*Downloader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if handlers == nil {
		handlers = handler.Default()
	}

	info, err := os.Stat(targetDir)
	switch {
	case err == nil && !info.IsDir():
		return nil, fmt.Errorf("target directory is no directory: %s", targetDir)
	case err != nil:
		if err := os.MkdirAll(targetDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating target directory: %w", err)
		}
		log.Debug("Created missing target directory", "path", targetDir)
	}

	d := &Downloader{
		cfg:      cfg,
		log:      log,
		jobs:     ledger.New(cfg.DebugJobRetention),
		client:   worker.NewHTTPClient(cfg.FetchTimeout, cfg.RespectRedirects),
		handlers: handlers,
	}

	opts := cfg.Options()
	for _, website := range websites {
		remote, err := url.Parse(website)
		if err != nil {
			return nil, fmt.Errorf("invalid website URL %q: %w", website, err)
		}
		job, err := domain.NewJob(remote, targetDir, log, handlers, opts)
		if err != nil {
			return nil, err
		}
		d.jobs.Put(job)
	}
	return d, nil
}

// Ledger exposes the shared job ledger, mainly for snapshot export.
func (d *Downloader) Ledger() *ledger.Ledger {
	return d.jobs
}

// Run starts the configured number of runners on their own goroutines and
// blocks until the crawl is drained and every runner reached a terminal
// state. Cancelling ctx requests a graceful stop: in-flight jobs finish,
// nothing new is dequeued afterwards.
func (d *Downloader) Run(ctx context.Context) error {
	var group errgroup.Group
	for i := 0; i < d.cfg.Threads; i++ {
		runner := worker.NewRunner(
			d.jobs,
			d.log.With("runner", i),
			d.client,
			d.cfg.QueueAccessTimeout,
			d.cfg.CrashOnError,
			false,
		)
		d.runners = append(d.runners, runner)
		group.Go(runner.Run)
		d.log.Debug("Added runner", "runner", i)
	}
	metrics.RunnersTotal.Set(float64(len(d.runners)))

	stopStatus := d.startStatusReports()

	d.awaitDrain(ctx)

	for _, runner := range d.runners {
		runner.RequestStop()
	}
	crashErr := group.Wait()
	stopStatus()
	d.reportRunnerFailures()
	d.log.Info("Finished", "status", d.Status())

	if crashErr != nil {
		return crashErr
	}
	if d.jobs.SucceededCount() == 0 {
		return ErrAllJobsFailed
	}
	return nil
}

// RunSingle performs the whole crawl on the calling goroutine with a single
// runner that quits once the queue runs dry. Meant for debugging and very
// small sites.
func (d *Downloader) RunSingle() error {
	runner := worker.NewRunner(
		d.jobs,
		d.log.With("runner", 0),
		d.client,
		d.cfg.QueueAccessTimeout,
		d.cfg.CrashOnError,
		true,
	)
	d.runners = append(d.runners, runner)
	d.log.Debug("Starting single-threaded runner")
	if err := runner.Run(); err != nil {
		return err
	}
	if d.jobs.SucceededCount() == 0 {
		return ErrAllJobsFailed
	}
	return nil
}

// awaitDrain waits until no work is pending or in flight and no runner is
// still busy, or until ctx is cancelled. Polling instead of a blocking join
// keeps the drain from hanging when every runner crashed while jobs remain.
func (d *Downloader) awaitDrain(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.QueueAccessTimeout)
	defer ticker.Stop()
	for {
		if d.jobs.Drained() && !d.anyRunnerBusy() {
			return
		}
		if d.allRunnersDead() {
			d.log.Warn("All runners are dead, abandoning remaining jobs",
				"pending", d.jobs.PendingCount())
			return
		}
		select {
		case <-ctx.Done():
			d.log.Info("Stop requested, finishing in-flight jobs")
			return
		case <-ticker.C:
		}
	}
}

func (d *Downloader) anyRunnerBusy() bool {
	for _, runner := range d.runners {
		switch runner.State() {
		case domain.RunnerCreated, domain.RunnerWorking:
			return true
		}
	}
	return false
}

func (d *Downloader) allRunnersDead() bool {
	for _, runner := range d.runners {
		if !runner.State().Terminal() {
			return false
		}
	}
	return len(d.runners) > 0
}

func (d *Downloader) deadRunners() int {
	n := 0
	for _, runner := range d.runners {
		if runner.State().Terminal() {
			n++
		}
	}
	return n
}

func (d *Downloader) reportRunnerFailures() {
	for i, runner := range d.runners {
		if runner.State() == domain.RunnerCrashed {
			d.log.Warn("Runner crashed", "runner", i, "error", runner.Err())
		}
	}
}

// Status returns the parsable progress summary as comma-separated key=value
// pairs. The key names are stable within a run.
func (d *Downloader) Status() string {
	pending, reserved, completed, succeeded := d.jobs.Counts()
	dead := d.deadRunners()

	metrics.JobsPending.Set(float64(pending))
	metrics.JobsReserved.Set(float64(reserved))
	metrics.RunnersDead.Set(float64(dead))

	return fmt.Sprintf(
		"runners_total=%d,runners_dead=%d,jobs_completed=%d,jobs_succeeded=%d,jobs_reserved=%d,jobs_pending=%d",
		len(d.runners), dead, completed, succeeded, reserved, pending,
	)
}

// startStatusReports emits "step=N,<status>" through StatusFunc every
// StatusInterval until the returned stop function is called.
func (d *Downloader) startStatusReports() func() {
	if d.cfg.StatusInterval <= 0 || d.StatusFunc == nil {
		return func() {}
	}

	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(d.cfg.StatusInterval)
		defer ticker.Stop()
		step := 0
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				d.StatusFunc(fmt.Sprintf("step=%d,%s", step, d.Status()))
				step++
			}
		}
	}()
	return func() {
		close(done)
		<-finished
	}
}
