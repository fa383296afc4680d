package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/hashicorp/go-multierror"

	"github.com/jbweber/oneimage/internal/config"
	"github.com/jbweber/oneimage/internal/fileserver"
	"github.com/jbweber/oneimage/internal/image"
	"github.com/jbweber/oneimage/internal/journal"
	"github.com/jbweber/oneimage/internal/metrics"
	"github.com/jbweber/oneimage/internal/one"
	"github.com/jbweber/oneimage/internal/output"
	"github.com/jbweber/oneimage/internal/transfer"
)

// app holds everything a command needs for one run.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	ctrl    *image.Controller
	journal *journal.Store
	metrics *metrics.Metrics
}

// commandContext is cancelled on SIGINT or SIGTERM so in-flight waits stop
// and served files are shut down.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// loadSettings loads the config and builds the logger.
func loadSettings(validate bool) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if validate {
		if err := cfg.Validate(); err != nil {
			return nil, nil, fmt.Errorf("invalid config: %w", err)
		}
	}

	log, err := cfg.Log.NewLogger(os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// openJournal opens the action journal, creating its directory.
func openJournal(ctx context.Context, cfg *config.Config, log *slog.Logger) (*journal.Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Journal.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}
	return journal.Open(ctx, cfg.Journal.Path, log)
}

// newApp connects to OpenNebula and wires the controller.
func newApp(ctx context.Context) (*app, error) {
	cfg, log, err := loadSettings(true)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, metrics: metrics.New()}

	srv, err := fileserver.New(fileserver.Options{
		Host:     cfg.HTTP.Host,
		BindAddr: cfg.HTTP.Bind,
		Port:     cfg.HTTP.Port,
		Logger:   log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure file server: %w", err)
	}

	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	opts := image.Options{
		Logger:           log,
		PollInterval:     cfg.Poll.Interval,
		ImageTimeout:     cfg.Poll.ImageTimeout,
		VMTimeout:        cfg.Poll.VMTimeout,
		DeleteTimeout:    cfg.Poll.DeleteTimeout,
		DownloadOverride: cfg.ONE.DownloadURL,
		CacheDir:         cfg.CacheDir,
		HTTPPort:         cfg.HTTP.Port,
		FileServer:       srv,
		Fetcher:          transfer.New(transfer.Options{Logger: log}),
		Observer:         a.metrics,
	}

	if cfg.Journal.Enabled {
		store, err := openJournal(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		a.journal = store
		opts.Recorder = store
	}

	client := one.NewClient(one.Config{
		Endpoint: cfg.ONE.Endpoint,
		User:     cfg.ONE.User,
		Password: cfg.ONE.Password,
	})
	ctrl, err := image.NewController(ctx, client, opts)
	if err != nil {
		a.close()
		return nil, err
	}
	a.ctrl = ctrl
	return a, nil
}

// close flushes metrics and closes the journal. Failures are only logged.
func (a *app) close() {
	var result error
	if a.cfg.Metrics.Textfile != "" {
		if err := a.metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to close journal: %w", err))
		}
	}
	if result != nil {
		a.log.Warn("shutdown_incomplete", "error", result)
	}
}

func newFormatter() (output.Formatter, error) {
	if err := output.ValidateFormat(outputFormat); err != nil {
		return nil, err
	}
	return output.NewFormatter(output.Options{
		Format:    output.Format(outputFormat),
		NoHeaders: noHeaders,
	})
}
