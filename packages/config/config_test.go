package config

import (
	"testing"
	"time"

	"websitecrawler/packages/domain"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.HTTPSMode != domain.HTTPSModeHTTPSFirst {
		t.Errorf("default HTTPS mode = %v, want https-first", cfg.HTTPSMode)
	}
	if cfg.Threads != DefaultThreads {
		t.Errorf("threads = %d, want %d", cfg.Threads, DefaultThreads)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		adjust func(*Config)
		ok     bool
	}{
		{"default", func(*Config) {}, true},
		{"zero threads", func(c *Config) { c.Threads = 0 }, false},
		{"negative threads", func(c *Config) { c.Threads = -3 }, false},
		{"zero queue timeout", func(c *Config) { c.QueueAccessTimeout = 0 }, false},
		{"negative fetch timeout", func(c *Config) { c.FetchTimeout = -time.Second }, false},
		{"unbounded fetch timeout", func(c *Config) { c.FetchTimeout = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.adjust(&cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate: %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("Validate accepted an invalid config")
			}
		})
	}
}

func TestValidateFillsEmptyUserAgent(t *testing.T) {
	cfg := Default()
	cfg.UserAgent = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.UserAgent != DefaultUserAgent {
		t.Errorf("user agent = %q, want the default", cfg.UserAgent)
	}
}

func TestOptionsSnapshot(t *testing.T) {
	cfg := Default()
	cfg.HTTPSMode = domain.HTTPSModeForceHTTP
	cfg.UserAgent = "custom/2.0"
	cfg.IncludeImages = true
	cfg.AllowOverwrites = false
	cfg.LoweredPaths = true

	opts := cfg.Options()
	if opts.HTTPSMode != domain.HTTPSModeForceHTTP {
		t.Errorf("HTTPSMode = %v, want force-http", opts.HTTPSMode)
	}
	if opts.UserAgent != "custom/2.0" {
		t.Errorf("UserAgent = %q", opts.UserAgent)
	}
	if !opts.IncludeImages || opts.AllowOverwrites || !opts.LoweredPaths {
		t.Errorf("toggles not carried over: %+v", opts)
	}
	if !opts.IncludeHyperlinks || !opts.RewriteReferences || !opts.RespectRedirects {
		t.Errorf("defaults not carried over: %+v", opts)
	}
}
