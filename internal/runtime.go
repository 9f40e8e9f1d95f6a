package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/starford/lectern/internal/annotations"
	"github.com/starford/lectern/internal/bookservice"
	"github.com/starford/lectern/internal/index"
	"github.com/starford/lectern/internal/library"
	"github.com/starford/lectern/internal/notify"
	"github.com/starford/lectern/internal/storage"
	"github.com/starford/lectern/internal/syncer"
)

// Runtime holds the wired components shared by the server and the CLI
// commands.
type Runtime struct {
	Config  *Config
	Logger  *slog.Logger
	Store   *storage.FS
	Syncer  *syncer.Syncer
	Index   *index.DB
	Service *bookservice.Service

	closers []io.Closer
}

// Open builds the logger, library, synchronizer, highlight index and book
// service from the configured options. A configured remote that cannot be
// reached leaves the runtime offline with a warning.
func Open(ctx context.Context, opts ...Option) (*Runtime, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	rt := &Runtime{Config: cfg}
	rt.Logger = rt.newLogger(app.logOutput)
	logger := rt.Logger

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("library_path", cfg.Library.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Bool("remote", cfg.Remote.Enabled()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(cfg.Library.Path, 0o755); err != nil {
		rt.Close()
		return nil, fmt.Errorf("create library dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Library.Path)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	rt.Store = store

	lib, err := library.Open(store, library.WithLogger(logger))
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("open library: %w", err)
	}

	sink := notify.Multi(append([]notify.Sink{notify.LogSink{Logger: logger}}, app.sinks...)...)
	rt.Syncer = syncer.New(lib, syncer.WithLogger(logger), syncer.WithSink(sink))

	if cfg.Remote.Enabled() {
		if err := rt.Syncer.Connect(ctx, cfg.Remote.Options()); err != nil {
			sink.Notify(notify.Warning, "Remote library unavailable, working offline")
			logger.Warn("remote connect failed", slog.String("error", err.Error()))
		}
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("init index: %w", err)
	}
	rt.Index = db
	rt.closers = append(rt.closers, db)

	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial index sync failed", slog.String("error", err.Error()))
	}

	importer := annotations.NewImporter(rt.Syncer, sink, logger, cfg.Library.PageChars)
	rt.Service = bookservice.NewService(rt.Syncer, importer, db, logger)
	return rt, nil
}

// newLogger installs the default JSON logger, tee'd into a rotated log file
// when one is configured.
func (rt *Runtime) newLogger(console io.Writer) *slog.Logger {
	cfg := rt.Config.App
	out := console
	if cfg.LogFile.Path != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.LogFile.Path,
			MaxSize:    cfg.LogFile.MaxSizeMB,
			MaxBackups: cfg.LogFile.MaxBackups,
			MaxAge:     cfg.LogFile.MaxAgeDays,
		}
		rt.closers = append(rt.closers, file)
		out = io.MultiWriter(console, file)
	}
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// Close releases the index and the log file.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
