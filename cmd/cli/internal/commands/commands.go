package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/storesync/internal/api"
	"github.com/wolfeidau/storesync/internal/client"
	"github.com/wolfeidau/storesync/internal/logger"
	"github.com/wolfeidau/storesync/internal/storage"
	"github.com/wolfeidau/storesync/internal/store"
	"github.com/wolfeidau/storesync/internal/telemetry"
)

// ErrNotLoggedIn is returned by commands that need a restored session.
var ErrNotLoggedIn = errors.New("not logged in, run: storesync login")

type Globals struct {
	Debug        bool          `help:"Enable debug mode."`
	Server       string        `help:"Data API base URL" default:"http://localhost:8080/api" env:"STORESYNC_SERVER"`
	StateDir     string        `help:"Directory holding the persisted session (default ~/.storesync)" env:"STORESYNC_STATE_DIR"`
	Storage      string        `help:"Session storage backend" default:"file" enum:"file,sqlite" env:"STORESYNC_STORAGE"`
	PageSize     int           `help:"Items per list page" default:"25" env:"STORESYNC_PAGE_SIZE"`
	CacheTTL     time.Duration `help:"Collection and entity cache TTL" default:"5m" env:"STORESYNC_CACHE_TTL"`
	Timeout      time.Duration `help:"HTTP request timeout" default:"30s" env:"STORESYNC_TIMEOUT"`
	Retries      uint          `help:"Retry failed GET requests this many times" default:"0" env:"STORESYNC_RETRIES"`
	HTTPCacheDir string        `help:"Persist HTTP revalidation cache in this directory" env:"STORESYNC_HTTP_CACHE_DIR"`
	HTTPCache    bool          `help:"Enable the HTTP revalidation cache" default:"false" env:"STORESYNC_HTTP_CACHE"`
	Tracing      bool          `help:"Export traces and metrics over OTLP" default:"false" env:"STORESYNC_TRACING"`
	Output       string        `help:"Output format" short:"o" default:"table" enum:"table,json,yaml" env:"STORESYNC_OUTPUT"`

	Version string `kong:"-"`

	// out is where results are rendered, stdout unless a test swaps it.
	out io.Writer `kong:"-"`
}

func (g *Globals) writer() io.Writer {
	if g.out != nil {
		return g.out
	}
	return os.Stdout
}

func (g *Globals) printer() *printer {
	return &printer{w: g.writer(), format: g.Output}
}

// app is everything a command needs, opened from the global flags.
type app struct {
	store    *store.Store
	closers  []func() error
	shutdown telemetry.ShutdownFunc
}

// open sets up logging, optional telemetry, durable storage, the API client
// and the store, then restores any persisted session.
func (g *Globals) open(ctx context.Context) (*app, error) {
	log.Logger = logger.Setup(g.Debug)

	a := &app{}

	if g.Tracing {
		shutdown, err := telemetry.InitTelemetry(ctx, telemetry.Config{ServiceName: "storesync", Version: g.Version})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
		} else {
			a.shutdown = shutdown
		}
	}

	durable, err := g.openStorage(ctx, a)
	if err != nil {
		a.close()
		return nil, err
	}

	var storeOpts []store.Option

	httpClient := client.NewHTTPClient(g.Timeout)
	if g.HTTPCache || g.HTTPCacheDir != "" {
		var responses *client.ResponseCache
		httpClient, responses = client.NewCachingHTTPClient(g.HTTPCacheDir, g.Timeout)
		storeOpts = append(storeOpts, store.WithCaches(responses))
	}

	apiClient, err := api.New(g.Server,
		api.WithHTTPClient(httpClient),
		api.WithRetries(g.Retries),
		api.WithUserAgent("storesync/"+g.Version),
	)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to create api client: %w", err)
	}

	cfg := store.DefaultConfig()
	cfg.PageSize = g.PageSize
	cfg.CollectionTTL = g.CacheTTL
	cfg.EntityTTL = g.CacheTTL

	s, err := store.New(apiClient, durable, cfg, storeOpts...)
	if err != nil {
		a.close()
		return nil, err
	}
	a.store = s
	a.closers = append([]func() error{s.Close}, a.closers...)

	restored := s.Init(ctx)
	log.Debug().Bool("restored", restored).Str("server", g.Server).Msg("store ready")

	return a, nil
}

func (g *Globals) openStorage(ctx context.Context, a *app) (storage.Store, error) {
	switch g.Storage {
	case "sqlite":
		dir, err := storage.StateDir(g.StateDir)
		if err != nil {
			return nil, err
		}
		db, err := storage.NewSQLiteStore(ctx, storage.SQLitePath(dir))
		if err != nil {
			return nil, fmt.Errorf("failed to open session database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		return db, nil
	default:
		fs, err := storage.NewFileStore(g.StateDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open session file: %w", err)
		}
		return fs, nil
	}
}

func (a *app) requireSession() error {
	if !a.store.IsAuthenticated() {
		return ErrNotLoggedIn
	}
	return nil
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			log.Warn().Err(err).Msg("failed to close")
		}
	}

	if a.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to shutdown telemetry")
		}
	}
}

// run opens the app, runs fn and always closes it.
func (g *Globals) run(ctx context.Context, authenticated bool, fn func(*app) error) error {
	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if !authenticated {
		return fn(a)
	}

	if err := a.requireSession(); err != nil {
		return err
	}

	err = fn(a)
	if api.StatusOf(err) == http.StatusUnauthorized {
		return fmt.Errorf("%w, the session may have expired, run: storesync login", err)
	}
	return err
}
