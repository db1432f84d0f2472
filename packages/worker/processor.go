package worker

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"websitecrawler/packages/domain"
	"websitecrawler/packages/metrics"
	"websitecrawler/packages/urlutil"
)

// ErrInvalidContent marks a handler contract violation: the final content of
// a job was neither text nor binary. Unlike ordinary fetch failures this is
// a programming error and is returned instead of being recorded on the job.
var ErrInvalidContent = errors.New("final content must be string or []byte")

// Processor executes exactly one download job: fetch, classify, analyze,
// persist, collect references. Failures are recorded on the job and signaled
// through the boolean result; follow-up jobs that substitute for the current
// one (TLS fallback, cross-origin redirect) accumulate in Descendants and
// are enqueued by the calling runner, not by the processor itself.
type Processor struct {
	job    *domain.Job
	client *http.Client

	// Descendants holds the follow-up jobs produced while running.
	Descendants []*domain.Job
}

// NewProcessor prepares a processor for one job.
func NewProcessor(job *domain.Job, client *http.Client) *Processor {
	return &Processor{job: job, client: client}
}

// Run performs the job as a blocking operation. It returns true when all
// steps completed, false on a graceful failure (details on the job). The
// error is non-nil only for the contract-violation class.
func (p *Processor) Run() (bool, error) {
	job := p.job
	opts := job.Options
	log := job.Logger

	if job.Started {
		log.Warn("Job has already been started, parallel access?", "job", job.String())
		return false, nil
	}
	job.Started = true

	log.Debug("Currently processing", "url", job.RemoteURL)

	req, err := http.NewRequest(http.MethodGet, job.RemoteURL.String(), nil)
	if err != nil {
		job.Err = err
		job.Delayed = true
		return false, nil
	}
	req.Header.Set("User-Agent", opts.UserAgent)

	start := time.Now()
	resp, err := p.client.Do(req)
	metrics.FetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return p.fetchFailed(err), nil
	}
	defer resp.Body.Close()

	job.ResponseCode = resp.StatusCode
	job.ResponseHeader = resp.Header

	if resp.StatusCode != http.StatusOK {
		log.Error("Received unexpected status code, skipping",
			"code", resp.StatusCode, "url", job.RemoteURL)
		job.Delayed = true
		return false, nil
	}

	// Same-origin redirects were followed in flight; adopt the final URL.
	if final := resp.Request.URL; final.String() != job.RemoteURL.String() {
		log.Debug("Respecting redirect", "from", job.RemoteURL, "to", final)
		job.RemoteURL = final
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		job.Err = err
		job.Delayed = true
		log.Error("Reading response body failed", "url", job.RemoteURL, "error", err)
		return false, nil
	}
	job.ResponseBody = body

	job.ResponseType = resp.Header.Get("Content-Type")
	if job.ResponseType == "" {
		job.ResponseType = mime.TypeByExtension(path.Ext(job.RemoteURL.Path))
	}

	job.FinalContent = p.analyze()
	job.LocalPath = urlutil.LocalPath(job.RemoteURL, job.LocalBase, opts.ASCIIOnly, opts.LoweredPaths)

	if _, err := p.Save(); err != nil {
		if errors.Is(err, ErrInvalidContent) {
			job.Finished = true
			return false, err
		}
		log.Warn("Saving the final content failed", "path", job.LocalPath, "error", err)
	}

	job.Finished = true
	return true, nil
}

// fetchFailed classifies a client.Do error: a cross-origin redirect and a
// TLS failure under the https-first policy each produce a descendant job,
// everything else is terminal for this URL. Always returns false.
func (p *Processor) fetchFailed(err error) bool {
	job := p.job
	log := job.Logger
	job.Err = err

	var crossOrigin *crossOriginRedirectError
	if errors.As(err, &crossOrigin) {
		log.Warn("Redirecting to another network location", "target", crossOrigin.Target)
		log.Debug("The redirected target location will become a new job")
		p.Descendants = append(p.Descendants, job.Copy(crossOrigin.Target))
		job.Delayed = true
		return false
	}

	if isTLSError(err) {
		if job.Options.HTTPSMode == domain.HTTPSModeHTTPSFirst && job.RemoteURL.Scheme == "https" {
			fallback := *job.RemoteURL
			fallback.Scheme = "http"
			p.Descendants = append(p.Descendants, job.Copy(&fallback))
			log.Warn("TLS error, retrying via HTTP", "url", job.RemoteURL, "error", err)
		} else {
			log.Error("TLS error", "url", job.RemoteURL, "error", err)
		}
		job.Delayed = true
		return false
	}

	log.Error("Fetch failed", "url", job.RemoteURL, "error", err)
	job.Delayed = true
	return false
}

// analyze dispatches the response to the first handler accepting its content
// type. Without a match, and whenever a handler misbehaves, the raw bytes
// pass through unchanged.
func (p *Processor) analyze() domain.Content {
	job := p.job
	log := job.Logger

	for _, h := range job.Handlers {
		if !h.Accepts(job.ResponseType) {
			continue
		}
		log.Debug("Analyzing content", "type", job.ResponseType, "url", job.RemoteURL)
		content, err := h.Analyze(job, job.Options)
		if err != nil {
			log.Error("Handler failed, storing raw bytes", "url", job.RemoteURL, "error", err)
			return job.ResponseBody
		}
		switch content.(type) {
		case string, []byte:
			return content
		default:
			log.Error("Handler returned neither text nor binary content, storing raw bytes",
				"url", job.RemoteURL)
			return job.ResponseBody
		}
	}

	log.Debug("No handler accepts content type, storing raw bytes",
		"type", job.ResponseType, "url", job.RemoteURL)
	return job.ResponseBody
}

// Save stores the job's final content at its local path. It is a graceful
// no-op (false, nil) while path or content are unset, and a successful no-op
// (true, nil) when the target exists and overwrites are disallowed.
func (p *Processor) Save() (bool, error) {
	job := p.job
	log := job.Logger

	if job.LocalPath == "" || job.FinalContent == nil {
		return false, nil
	}

	overwritten := false
	if _, err := os.Stat(job.LocalPath); err == nil {
		if !job.Options.AllowOverwrites {
			log.Info("File already exists, it will not be overwritten", "path", job.LocalPath)
			job.Written = false
			job.Finished = true
			return true, nil
		}
		if job.Options.MentionOverwrites {
			log.Info("Overwriting", "path", job.LocalPath)
		}
		overwritten = true
	}

	var data []byte
	switch c := job.FinalContent.(type) {
	case string:
		data = []byte(c)
	case []byte:
		data = c
	default:
		log.Error("Content must be text or binary", "path", job.LocalPath)
		return false, ErrInvalidContent
	}

	if err := os.MkdirAll(filepath.Dir(job.LocalPath), 0o755); err != nil {
		return false, err
	}
	if err := os.WriteFile(job.LocalPath, data, 0o644); err != nil {
		return false, err
	}
	log.Debug("Wrote file", "bytes", len(data), "path", job.LocalPath)

	job.Written = true
	job.Overwritten = overwritten
	return true, nil
}
