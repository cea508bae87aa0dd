package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/kennedymwaniki/resource-explorer/internal/catalog"
	"github.com/kennedymwaniki/resource-explorer/internal/config"
	"github.com/kennedymwaniki/resource-explorer/internal/favorites"
	"github.com/kennedymwaniki/resource-explorer/internal/filter"
	"github.com/kennedymwaniki/resource-explorer/internal/kvstore"
	"github.com/kennedymwaniki/resource-explorer/internal/logging"
	"github.com/kennedymwaniki/resource-explorer/internal/metrics"
	"github.com/kennedymwaniki/resource-explorer/internal/prefs"
	"github.com/kennedymwaniki/resource-explorer/internal/querycache"
	"github.com/kennedymwaniki/resource-explorer/internal/ui"
	"github.com/kennedymwaniki/resource-explorer/internal/viewsync"
)

// Options configure the explorer application.
type Options struct {
	ConfigPath   string
	EnvFile      string // empty uses ./.env when present
	InitialQuery string // starting location, e.g. "status=alive&page=2"
	Storage      string // overrides the configured backend when set
}

// Deps lets callers supply collaborators instead of building them from
// config. Nil fields are built.
type Deps struct {
	Source  catalog.DataSource
	Backend kvstore.Backend
	Clock   clock.Clock
	Logger  *zap.Logger
	Getenv  func(string) string
}

// Context owns every long-lived component. It is built once and passed by
// reference; nothing in the explorer is a package-level singleton.
type Context struct {
	Config    config.Config
	Logger    *zap.Logger
	Clock     clock.Clock
	Source    catalog.DataSource
	Store     *kvstore.Store
	Favorites *favorites.Store
	Lists     *querycache.Cache[filter.State, *catalog.Page]
	Records   *querycache.Cache[int, *catalog.Record]
	History   *viewsync.History
	Sync      *viewsync.Sync
	Theme     prefs.Theme
	Metrics   *metrics.Server

	stopRevalidate context.CancelFunc
	revalidateDone <-chan struct{}
}

// Run boots the explorer TUI until the context is cancelled or the user quits.
func Run(ctx context.Context, opts Options) error {
	if err := config.LoadDotEnv(opts.EnvFile); err != nil {
		return err
	}
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if s := strings.TrimSpace(opts.Storage); s != "" {
		cfg.Storage = strings.ToLower(s)
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	root, err := New(ctx, cfg, Deps{})
	if err != nil {
		return err
	}
	defer root.Close()

	root.Start(ctx, opts.InitialQuery)

	return ui.Run(ui.Options{
		Context:   ctx,
		Sync:      root.Sync,
		History:   root.History,
		Records:   root.Records,
		Source:    root.Source,
		Favorites: root.Favorites,
		Store:     root.Store,
		Theme:     root.Theme,
		LogPath:   root.Config.LogPath,
		Logger:    root.Logger,
	})
}

// New builds the application graph from cfg. The caller must Close it.
//
// Initialization order:
//  1. Logger
//  2. Storage backend and key-value store
//  3. Data source and query caches
//  4. Favourites, theme and list sync
//  5. Metrics server, when configured
func New(ctx context.Context, cfg config.Config, deps Deps) (*Context, error) {
	root := &Context{Config: cfg, Clock: deps.Clock, Logger: deps.Logger}
	if root.Clock == nil {
		root.Clock = clock.New()
	}
	if deps.Getenv == nil {
		deps.Getenv = os.Getenv
	}

	if root.Logger == nil {
		logger, err := logging.New(cfg.LogPath, cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
		root.Logger = logger
	}

	backend := deps.Backend
	if backend == nil {
		opened, err := openBackend(ctx, cfg, root.Clock, root.Logger)
		if err != nil {
			return nil, fmt.Errorf("open %s storage: %w", cfg.Storage, err)
		}
		backend = opened
	}
	root.Store = kvstore.New(backend, kvstore.Options{
		Namespace:     cfg.Namespace,
		MaxValueBytes: cfg.MaxValueBytes,
		Logger:        root.Logger,
	})

	root.Source = deps.Source
	if root.Source == nil {
		client, err := catalog.NewClient(cfg.APIBase, cfg.HTTPTimeout, root.Logger.Named("catalog"))
		if err != nil {
			_ = root.Store.Close()
			return nil, fmt.Errorf("init api client: %w", err)
		}
		root.Source = client
	}
	root.initCaches()

	root.Favorites = favorites.New(root.Store, root.Logger.Named("favorites"))
	root.Theme = prefs.Load(root.Store, initialTheme(cfg.Theme, deps.Getenv("COLORFGBG")))

	root.History = viewsync.NewHistory("")
	root.Sync = viewsync.New(ctx, root.Lists, root.History, viewsync.Options{
		Debounce: debounce(cfg.SearchDebounce),
		Clock:    root.Clock,
		Logger:   root.Logger.Named("sync"),
	})

	if addr := strings.TrimSpace(cfg.MetricsAddr); addr != "" {
		root.Metrics = metrics.NewServer(addr, root.Logger.Named("metrics"))
		if _, err := root.Metrics.Start(); err != nil {
			root.Metrics = nil
			root.Close()
			return nil, fmt.Errorf("start metrics server: %w", err)
		}
	}

	root.Logger.Info("explorer initialized",
		zap.String("storage", backend.Name()),
		zap.String("namespace", cfg.Namespace),
		zap.String("theme", string(root.Theme)),
		zap.Int("favorites", root.Favorites.Len()))
	return root, nil
}

func (r *Context) initCaches() {
	cfg := r.Config
	r.Lists = querycache.New(func(ctx context.Context, f filter.State) (*catalog.Page, error) {
		return r.Source.ListRecords(ctx, f)
	}, querycache.Options{
		Name:             "lists",
		FreshFor:         cfg.ListFreshFor,
		RetainFor:        cfg.RetainFor,
		MaxAttempts:      cfg.MaxAttempts,
		RetryBase:        cfg.RetryBase,
		CancelSuperseded: true,
		Clock:            r.Clock,
		Logger:           r.Logger,
	})
	r.Records = querycache.New(func(ctx context.Context, id int) (*catalog.Record, error) {
		return r.Source.GetRecord(ctx, id)
	}, querycache.Options{
		Name:        "records",
		FreshFor:    cfg.RecordFreshFor,
		RetainFor:   cfg.RetainFor,
		MaxAttempts: cfg.MaxAttempts,
		RetryBase:   cfg.RetryBase,
		Clock:       r.Clock,
		Logger:      r.Logger,
	})
}

// Start loads the initial location and begins periodic revalidation.
func (r *Context) Start(ctx context.Context, initialQuery string) {
	initial := filter.Parse(initialQuery).Encode()
	r.History.Replace(initial)
	r.Sync.Navigated(initial)

	revalidateCtx, cancel := context.WithCancel(ctx)
	r.stopRevalidate = cancel
	r.revalidateDone = StartRevalidator(revalidateCtx, r.Clock, r.Config.RevalidateEvery, r.Logger, r.Lists, r.Records)
}

// Close stops background work and releases storage. It is safe to call on a
// partially built Context.
func (r *Context) Close() {
	if r.stopRevalidate != nil {
		r.stopRevalidate()
		<-r.revalidateDone
	}
	if r.Sync != nil {
		r.Sync.Close()
	}
	if r.Favorites != nil {
		r.Favorites.Close()
	}
	if r.Lists != nil {
		r.Lists.Close()
	}
	if r.Records != nil {
		r.Records.Close()
	}
	if r.Metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := r.Metrics.Stop(ctx); err != nil {
			r.Logger.Warn("stop metrics server", zap.Error(err))
		}
		cancel()
	}
	if r.Store != nil {
		if err := r.Store.Close(); err != nil {
			r.Logger.Warn("close storage", zap.Error(err))
		}
	}
	if r.Logger != nil {
		_ = r.Logger.Sync()
	}
}

// initialTheme picks the theme used when none is stored: the configured one,
// then the terminal's COLORFGBG hint.
func initialTheme(configured, colorfgbg string) prefs.Theme {
	if theme, ok := prefs.ParseTheme(configured); ok {
		return theme
	}
	return prefs.DetectTheme(colorfgbg)
}

// debounce maps a configured zero to "no delay" for viewsync, which treats
// zero as its default.
func debounce(d time.Duration) time.Duration {
	if d == 0 {
		return -1
	}
	return d
}
