// Package domain
package domain

// HTTPSMode controls which scheme is used when fetching resources and when
// resolving references that carry no scheme of their own.
type HTTPSMode int

const (
	// HTTPSModeUnconstrained keeps whatever scheme a URL was found with.
	HTTPSModeUnconstrained HTTPSMode = iota
	// HTTPSModeForceHTTP resolves scheme-less references to http.
	HTTPSModeForceHTTP
	// HTTPSModeForceHTTPS resolves scheme-less references to https.
	HTTPSModeForceHTTPS
	// HTTPSModeHTTPSFirst tries https and falls back to http when the TLS
	// handshake or certificate verification fails.
	HTTPSModeHTTPSFirst
)

func (m HTTPSMode) String() string {
	switch m {
	case HTTPSModeUnconstrained:
		return "unconstrained"
	case HTTPSModeForceHTTP:
		return "http-only"
	case HTTPSModeForceHTTPS:
		return "https-only"
	case HTTPSModeHTTPSFirst:
		return "https-first"
	}
	return "unknown"
}

// RunnerState is the lifecycle state of a single runner.
type RunnerState int32

const (
	RunnerCreated RunnerState = iota // created, not running yet
	RunnerWorking                    // processing jobs
	RunnerWaiting                    // waiting for new jobs to become available
	RunnerEnding                     // told to stop, finishing its last job
	RunnerExited                     // exited gracefully
	RunnerCrashed                    // crashed due to an unhandled error
)

func (s RunnerState) String() string {
	switch s {
	case RunnerCreated:
		return "created"
	case RunnerWorking:
		return "working"
	case RunnerWaiting:
		return "waiting"
	case RunnerEnding:
		return "ending"
	case RunnerExited:
		return "exited"
	case RunnerCrashed:
		return "crashed"
	}
	return "unknown"
}

// Terminal reports whether the state is one a runner never leaves.
func (s RunnerState) Terminal() bool {
	return s == RunnerExited || s == RunnerCrashed
}

// Content is the final form of a downloaded resource. Handlers must produce
// either a string (text) or a []byte (binary); anything else is a contract
// violation that Save rejects.
type Content any

// Options is the immutable per-job configuration snapshot. It is set once
// when a job is created and copied unchanged into descendant jobs.
type Options struct {
	HTTPSMode HTTPSMode
	UserAgent string

	IncludeHyperlinks  bool
	IncludeStylesheets bool
	IncludeJavascript  bool
	IncludeImages      bool

	RewriteReferences bool
	AllowOverwrites   bool
	MentionOverwrites bool
	ASCIIOnly         bool
	LoweredPaths      bool
	RespectRedirects  bool
}

// Handler analyzes the content of a fetched resource for one family of MIME
// types. Analyze records discovered references on the job as a side effect
// and returns the final content to persist.
type Handler interface {
	// Accepts reports whether the handler can analyze the given content
	// type. Matching ignores case and any parameters after ";".
	Accepts(contentType string) bool
	// Analyze inspects the job's response body, collects references and
	// returns the content to store (string or []byte).
	Analyze(job *Job, opts Options) (Content, error)
}
