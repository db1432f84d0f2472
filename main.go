// Package main
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"websitecrawler/packages/config"
	"websitecrawler/packages/domain"
	"websitecrawler/packages/downloader"
	"websitecrawler/packages/metrics"
)

func setupLogger(cfg config.Config) {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}

	var out io.Writer = os.Stdout
	if cfg.LogFile != "" {
		logDir := filepath.Dir(cfg.LogFile)
		if err := os.MkdirAll(logDir, 0o750); err != nil {
			slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error(
				"Failed to create log directory", "path", logDir, "error", err,
			)
		}
		logRotator := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    5,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, logRotator)
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().Format(time.RFC3339Nano))
			}
			return a
		},
	})
	slog.SetDefault(slog.New(handler))
}

func main() {
	cfg := config.Default()

	flag.IntVar(&cfg.Threads, "threads", cfg.Threads, "number of parallel download streams")
	flag.DurationVar(&cfg.QueueAccessTimeout, "queue-timeout", cfg.QueueAccessTimeout, "timeout when accessing the job queue")
	flag.DurationVar(&cfg.FetchTimeout, "fetch-timeout", cfg.FetchTimeout, "timeout per HTTP request (0 disables)")
	flag.StringVar(&cfg.UserAgent, "user-agent", cfg.UserAgent, "user agent string for HTTP(S) requests")

	httpOnly := flag.Bool("http-only", false, "try enforcing HTTP mode on all connections")
	httpsOnly := flag.Bool("https-only", false, "try enforcing HTTPS mode on all connections")
	httpsFirst := flag.Bool("https-first", true, "try HTTPS mode first, then fall back to HTTP on errors")

	flag.BoolVar(&cfg.IncludeHyperlinks, "hyperlinks", cfg.IncludeHyperlinks, "follow hyperlinks to other resources")
	flag.BoolVar(&cfg.IncludeStylesheets, "css", cfg.IncludeStylesheets, "include CSS files")
	flag.BoolVar(&cfg.IncludeJavascript, "javascript", cfg.IncludeJavascript, "include JavaScript files")
	flag.BoolVar(&cfg.IncludeImages, "images", cfg.IncludeImages, "include image files")

	flag.BoolVar(&cfg.AllowOverwrites, "overwrite", cfg.AllowOverwrites, "allow overwriting existing local files")
	flag.BoolVar(&cfg.RewriteReferences, "rewrite", cfg.RewriteReferences, "rewrite references to other local files")
	flag.BoolVar(&cfg.ASCIIOnly, "ascii", cfg.ASCIIOnly, "ensure ASCII chars for filenames and references")
	flag.BoolVar(&cfg.LoweredPaths, "lowered", cfg.LoweredPaths, "ensure lowercase filenames and references")

	flag.BoolVar(&cfg.CrashOnError, "crash", cfg.CrashOnError, "exit runner threads on failure")
	flag.BoolVar(&cfg.DebugJobRetention, "debug-jobs", cfg.DebugJobRetention, "retain full jobs in the ledger (high memory usage)")
	flag.DurationVar(&cfg.StatusInterval, "status", cfg.StatusInterval, "interval between status messages on stderr (0 disables)")
	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "address to expose Prometheus metrics on (empty disables)")
	flag.StringVar(&cfg.LogFile, "logfile", cfg.LogFile, "path to the logfile (otherwise stdout)")
	flag.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "print verbose information")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(),
			"Usage: %s [flags] website... target\n\nWebsiteCrawler: a deep website cloning tool\n\n",
			os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	switch {
	case *httpOnly:
		cfg.HTTPSMode = domain.HTTPSModeForceHTTP
	case *httpsOnly:
		cfg.HTTPSMode = domain.HTTPSModeForceHTTPS
	case *httpsFirst:
		cfg.HTTPSMode = domain.HTTPSModeHTTPSFirst
	default:
		cfg.HTTPSMode = domain.HTTPSModeUnconstrained
	}

	args := flag.Args()
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "Error: at least one website URL and a target directory are required")
		flag.Usage()
		os.Exit(1)
	}
	websites, targetDir := args[:len(args)-1], args[len(args)-1]

	setupLogger(cfg)
	slog.Info("--- Starting WebsiteCrawler ---",
		"websites", websites, "target", targetDir, "threads", cfg.Threads)

	if cfg.MetricsAddr != "" {
		go metrics.ExposeMetrics(cfg.MetricsAddr)
	}

	loader, err := downloader.New(cfg, slog.Default(), websites, targetDir, nil)
	if err != nil {
		slog.Error("Failed to initialize downloader", "error", err)
		os.Exit(1)
	}
	loader.StatusFunc = func(line string) {
		fmt.Fprintln(os.Stderr, line)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := loader.Run(ctx); err != nil {
		slog.Error("Crawl failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Crawl finished")
}
