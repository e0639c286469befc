// Package internal wires configuration, logging, the graph store and the
// note service into the commands the CLI exposes.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/starford/vaultgraph/internal/api"
	"github.com/starford/vaultgraph/internal/entities"
	"github.com/starford/vaultgraph/internal/graph"
	"github.com/starford/vaultgraph/internal/index"
	"github.com/starford/vaultgraph/internal/mcpserver"
	"github.com/starford/vaultgraph/internal/noteservice"
	"github.com/starford/vaultgraph/internal/sse"
	"github.com/starford/vaultgraph/internal/storage"
	"github.com/starford/vaultgraph/internal/watcher"
)

const (
	shutdownTimeout   = 10 * time.Second
	statsInterval     = 10 * time.Second
	readHeaderTimeout = 5 * time.Second
)

// runtime is the set of components every command shares.
type runtime struct {
	cfg     *Config
	version string
	logger  *slog.Logger
	files   *storage.FS
	filter  storage.Filter
	store   graph.Store
	svc     *noteservice.Service
	broker  *sse.Broker
	closers []io.Closer
}

type setup struct {
	detect bool // run entity detection on synced notes
	events bool // publish note changes to an SSE broker
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", logOut: os.Stderr}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, errors.New("config is required")
	}
	return app, nil
}

func (app *application) start(ctx context.Context, s setup) (*runtime, error) {
	cfg := app.config
	logger, logCloser := newLogger(cfg.App, app.logOut)
	slog.SetDefault(logger)
	rt := &runtime{cfg: cfg, version: app.version, logger: logger, filter: cfg.Vault.Filter()}
	if logCloser != nil {
		rt.closers = append(rt.closers, logCloser)
	}

	logger.Debug("app: configuration loaded",
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("store_backend", cfg.Store.Backend),
		slog.Bool("entities", cfg.Entities.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	files, err := storage.NewFS(cfg.Vault.Path, cfg.Vault.MaxNoteSize)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("open vault: %w", err)
	}
	rt.files = files

	store, err := graph.Open(ctx, cfg.Store.GraphConfig())
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("open graph store: %w", err)
	}
	rt.store = store
	rt.closers = append(rt.closers, store)

	svcOpts := []noteservice.Option{noteservice.WithLogger(logger)}
	if s.events {
		rt.broker = sse.NewBroker(sse.DefaultGraphThrottle, logger)
		rt.closers = append(rt.closers, closerFunc(func() error {
			rt.broker.Close()
			return nil
		}))
		svcOpts = append(svcOpts, noteservice.WithNotifier(rt.broker))
	}
	if s.detect && cfg.Entities.Enabled {
		d, err := entities.New(cfg.Entities.DetectorConfig(), logger)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("entity detector: %w", err)
		}
		svcOpts = append(svcOpts, noteservice.WithDetector(d, cfg.Entities.Timeout))
	}
	rt.svc = noteservice.New(files, rt.filter, store, svcOpts...)
	return rt, nil
}

func start(ctx context.Context, opts []Option, s setup) (*runtime, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	return app.start(ctx, s)
}

// Close releases the store and the log file, in reverse order of opening.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i].Close(); err != nil {
			rt.logger.Warn("app: close failed", slog.String("error", err.Error()))
		}
	}
	rt.closers = nil
}

func newLogger(cfg ApplicationConfig, out io.Writer) (*slog.Logger, io.Closer) {
	var closer io.Closer
	if cfg.LogFile.Path != "" {
		rotated := &lumberjack.Logger{
			Filename:   cfg.LogFile.Path,
			MaxSize:    cfg.LogFile.MaxSizeMB,
			MaxBackups: cfg.LogFile.MaxBackups,
			MaxAge:     cfg.LogFile.MaxAgeDays,
		}
		out = io.MultiWriter(out, rotated)
		closer = rotated
	}
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == LogFormatText {
		return slog.New(slog.NewTextHandler(out, opts)), closer
	}
	return slog.New(slog.NewJSONHandler(out, opts)), closer
}

func (rt *runtime) indexVault(ctx context.Context) (*index.Stats, error) {
	ix := index.New(rt.svc, rt.filter, rt.cfg.Index.Workers, rt.logger)
	return ix.IndexTree(ctx, rt.files.Root())
}

// RunIndex performs one full index of the vault.
func RunIndex(ctx context.Context, opts ...Option) (*index.Stats, error) {
	rt, err := start(ctx, opts, setup{detect: true})
	if err != nil {
		return nil, err
	}
	defer rt.Close()
	return rt.indexVault(ctx)
}

// RunStats counts the graph.
func RunStats(ctx context.Context, opts ...Option) (*noteservice.GraphStats, error) {
	rt, err := start(ctx, opts, setup{})
	if err != nil {
		return nil, err
	}
	defer rt.Close()
	return rt.svc.Stats(ctx)
}

// RunDuplicates lists notes sharing a content hash.
func RunDuplicates(ctx context.Context, opts ...Option) ([]graph.DuplicateGroup, error) {
	rt, err := start(ctx, opts, setup{})
	if err != nil {
		return nil, err
	}
	defer rt.Close()
	return rt.svc.Duplicates(ctx)
}

// RunPrune deletes vocabulary nodes no note references.
func RunPrune(ctx context.Context, opts ...Option) (map[graph.Label]int, error) {
	rt, err := start(ctx, opts, setup{})
	if err != nil {
		return nil, err
	}
	defer rt.Close()
	return rt.svc.PruneVocabulary(ctx)
}

// RunMCP serves the MCP tools on stdio until the client disconnects.
func RunMCP(ctx context.Context, opts ...Option) error {
	rt, err := start(ctx, opts, setup{})
	if err != nil {
		return err
	}
	defer rt.Close()

	rt.logger.Info("mcp: serving on stdio", slog.String("version", rt.version))
	return mcpserver.New(rt.svc, rt.version, rt.logger).ServeStdio()
}

// RunWatch indexes the vault once, then keeps the graph in sync with the
// filesystem until ctx is cancelled or SIGINT/SIGTERM arrives. The HTTP API
// runs alongside when enabled.
func RunWatch(ctx context.Context, opts ...Option) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(opts)
	if err != nil {
		return err
	}

	rt, err := app.start(ctx, setup{detect: true, events: app.config.App.HTTP.Enabled})
	if err != nil {
		return err
	}
	defer rt.Close()
	logger, broker := rt.logger, rt.broker

	stats, err := rt.indexVault(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("initial index: %w", err)
	}
	logger.Info("app: initial index complete",
		slog.Int("notes", stats.NotesProcessed),
		slog.Int("skipped", stats.NotesSkipped),
		slog.Int("errors", stats.Errors),
		slog.Duration("duration", stats.Duration))

	w, err := watcher.New(rt.cfg.Watcher.watcherConfig(rt.files.Root(), rt.filter), rt.svc, logger)
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}

	g, gCtx := errgroup.WithContext(ctx)

	var httpServer *http.Server
	if broker != nil {
		router := api.NewRouter(api.RouterConfig{
			Reader:      rt.svc,
			Watcher:     w,
			Events:      broker,
			AuthEnabled: rt.cfg.Auth.AuthEnabled(),
			Token:       rt.cfg.Auth.Token,
			Logger:      logger,
		})
		httpServer = &http.Server{
			Addr:              rt.cfg.App.HTTP.Address(),
			Handler:           router,
			ReadHeaderTimeout: readHeaderTimeout,
		}
		g.Go(func() error {
			logger.Info("app: http server starting", slog.String("address", httpServer.Addr))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(statsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gCtx.Done():
				return nil
			case <-ticker.C:
				c := w.Stats()
				logger.Debug("watcher: stats",
					slog.Int64("received", c.Received),
					slog.Int64("dispatched", c.Dispatched),
					slog.Int64("failed", c.Failed),
					slog.Int64("pending", c.Pending))
				if broker != nil {
					broker.PublishWatcherStats(c)
				}
			}
		}
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("app: shutting down")

		if httpServer != nil {
			// event streams never go idle on their own
			broker.Close()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("app: http shutdown failed", slog.String("error", err.Error()))
			}
		}
		if err := w.Stop(); err != nil {
			logger.Error("app: watcher stop failed", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("app: stopped with error", slog.String("error", err.Error()))
		return err
	}

	c := w.Stats()
	logger.Info("app: stopped",
		slog.Int64("dispatched", c.Dispatched),
		slog.Int64("failed", c.Failed),
		slog.Int64("dropped", c.Dropped))
	return nil
}
