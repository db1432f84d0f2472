// Package config
package config

import (
	"fmt"
	"time"

	"websitecrawler/packages/domain"
)

// Defaults for every tunable. Missing command-line flags fall back to these
// instead of erroring.
const (
	DefaultThreads            = 4
	DefaultQueueAccessTimeout = 100 * time.Millisecond
	DefaultFetchTimeout       = 30 * time.Second
	DefaultUserAgent          = "Mozilla/5.0 (compatible; WebsiteCrawler)"

	DefaultIncludeHyperlinks  = true
	DefaultIncludeStylesheets = true
	DefaultIncludeJavascript  = true
	DefaultIncludeImages      = false

	DefaultRewriteReferences = true
	DefaultAllowOverwrites   = true
	DefaultMentionOverwrites = true
	DefaultASCIIOnly         = false
	DefaultLoweredPaths      = false
	DefaultRespectRedirects  = true

	DefaultCrashOnError      = false
	DefaultDebugJobRetention = false
)

// DefaultHTTPSMode tries HTTPS first and falls back to HTTP on TLS errors.
const DefaultHTTPSMode = domain.HTTPSModeHTTPSFirst

// Config collects every knob of one crawl run. The zero value is not usable;
// start from Default().
type Config struct {
	Threads            int
	QueueAccessTimeout time.Duration
	// FetchTimeout bounds each HTTP request; 0 disables the bound.
	FetchTimeout time.Duration
	HTTPSMode    domain.HTTPSMode
	UserAgent    string

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

	CrashOnError      bool
	DebugJobRetention bool

	// StatusInterval is the time between status reports; 0 disables them.
	StatusInterval time.Duration
	// MetricsAddr serves /metrics when non-empty.
	MetricsAddr string
	LogFile     string
	Verbose     bool
}

// Default returns a configuration with every field set to its default.
func Default() Config {
	return Config{
		Threads:            DefaultThreads,
		QueueAccessTimeout: DefaultQueueAccessTimeout,
		FetchTimeout:       DefaultFetchTimeout,
		HTTPSMode:          DefaultHTTPSMode,
		UserAgent:          DefaultUserAgent,
		IncludeHyperlinks:  DefaultIncludeHyperlinks,
		IncludeStylesheets: DefaultIncludeStylesheets,
		IncludeJavascript:  DefaultIncludeJavascript,
		IncludeImages:      DefaultIncludeImages,
		RewriteReferences:  DefaultRewriteReferences,
		AllowOverwrites:    DefaultAllowOverwrites,
		MentionOverwrites:  DefaultMentionOverwrites,
		ASCIIOnly:          DefaultASCIIOnly,
		LoweredPaths:       DefaultLoweredPaths,
		RespectRedirects:   DefaultRespectRedirects,
		CrashOnError:       DefaultCrashOnError,
		DebugJobRetention:  DefaultDebugJobRetention,
	}
}

// Validate checks the invariants the rest of the system relies on.
func (c *Config) Validate() error {
	if c.Threads < 1 {
		return fmt.Errorf("threads must be >= 1, got %d", c.Threads)
	}
	if c.QueueAccessTimeout <= 0 {
		return fmt.Errorf("queue access timeout must be positive, got %v", c.QueueAccessTimeout)
	}
	if c.FetchTimeout < 0 {
		return fmt.Errorf("fetch timeout cannot be negative, got %v", c.FetchTimeout)
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	return nil
}

// Options snapshots the per-job configuration handed to every created job.
func (c *Config) Options() domain.Options {
	return domain.Options{
		HTTPSMode:          c.HTTPSMode,
		UserAgent:          c.UserAgent,
		IncludeHyperlinks:  c.IncludeHyperlinks,
		IncludeStylesheets: c.IncludeStylesheets,
		IncludeJavascript:  c.IncludeJavascript,
		IncludeImages:      c.IncludeImages,
		RewriteReferences:  c.RewriteReferences,
		AllowOverwrites:    c.AllowOverwrites,
		MentionOverwrites:  c.MentionOverwrites,
		ASCIIOnly:          c.ASCIIOnly,
		LoweredPaths:       c.LoweredPaths,
		RespectRedirects:   c.RespectRedirects,
	}
}
