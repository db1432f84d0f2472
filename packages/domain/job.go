package domain

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
)

// Job describes a single download job: one remote URL together with the
// local mirror root it should be stored under. A job is created either by
// the downloader (seed) or by a processor (discovered reference, redirect or
// TLS fallback), then enqueued in the ledger and exclusively owned by the
// runner that reserved it until its completion is recorded.
type Job struct {
	// RemoteURL is the absolute URL to request, analyze and store.
	RemoteURL *url.URL
	// Netloc is the remote host used to restrict the crawl to the first
	// party. It is fixed at construction even when redirects are adopted.
	Netloc string
	// LocalBase is the root directory of the local mirror.
	LocalBase string

	// Response data, populated by the processor that owns the job.
	ResponseCode   int
	ResponseHeader http.Header
	ResponseBody   []byte
	ResponseType   string

	// FinalContent is the transformed content as persisted on disk.
	FinalContent Content
	// LocalPath is the computed file path under LocalBase.
	LocalPath string
	// References holds the absolute in-scope URLs discovered by handlers.
	References map[string]struct{}

	// Options is the configuration snapshot, immutable after construction.
	Options Options
	// Handlers is the priority-ordered list of content handlers.
	Handlers []Handler
	// Logger is rebound by the runner executing the job so every log line
	// is attributable to its worker.
	Logger *slog.Logger

	// Status flags, set roughly in this order by the owning processor.
	Started     bool
	Delayed     bool
	Analyzed    bool
	Written     bool
	Overwritten bool
	Finished    bool

	// Err holds the last error that occurred while handling the job.
	Err error
}

// NewJob builds a fresh job for the given absolute URL.
func NewJob(remote *url.URL, localBase string, logger *slog.Logger, handlers []Handler, opts Options) (*Job, error) {
	if remote == nil || remote.Host == "" {
		return nil, fmt.Errorf("not an absolute URL: %q", remote)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Job{
		RemoteURL:  remote,
		Netloc:     remote.Host,
		LocalBase:  localBase,
		References: make(map[string]struct{}),
		Options:    opts,
		Handlers:   handlers,
		Logger:     logger,
	}, nil
}

// Key returns the job's dedup identity: the remote URL with any fragment
// stripped. Two jobs are the same unit of work iff their keys are equal.
func (j *Job) Key() string {
	u := *j.RemoteURL
	u.Fragment = ""
	return u.String()
}

// Copy creates a new job pointed at remote, carrying over the mirror root,
// options and handler list but none of the processing progress.
func (j *Job) Copy(remote *url.URL) *Job {
	if remote == nil {
		remote = j.RemoteURL
	}
	return &Job{
		RemoteURL:  remote,
		Netloc:     remote.Host,
		LocalBase:  j.LocalBase,
		References: make(map[string]struct{}),
		Options:    j.Options,
		Handlers:   j.Handlers,
		Logger:     j.Logger,
	}
}

// AddReference records a discovered reference URL on the job.
func (j *Job) AddReference(ref string) {
	j.References[ref] = struct{}{}
}

func (j *Job) String() string {
	if j.ResponseCode == 0 {
		return fmt.Sprintf("Job<%s>()", j.RemoteURL)
	}
	return fmt.Sprintf("Job<%s>(%d)", j.RemoteURL, j.ResponseCode)
}
