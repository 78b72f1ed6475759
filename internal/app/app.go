package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/newthinker/stock-mcp/internal/api"
	"github.com/newthinker/stock-mcp/internal/cache"
	"github.com/newthinker/stock-mcp/internal/calendar"
	"github.com/newthinker/stock-mcp/internal/collector"
	"github.com/newthinker/stock-mcp/internal/collector/aktools"
	"github.com/newthinker/stock-mcp/internal/collector/eastmoney"
	"github.com/newthinker/stock-mcp/internal/config"
	"github.com/newthinker/stock-mcp/internal/core"
	"github.com/newthinker/stock-mcp/internal/fetch"
	"github.com/newthinker/stock-mcp/internal/market"
	"github.com/newthinker/stock-mcp/internal/mcpserver"
	"github.com/newthinker/stock-mcp/internal/metrics"
	"github.com/newthinker/stock-mcp/internal/normalize"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// App is the main application orchestrator
type App struct {
	cfg     *config.Config
	logger  *zap.Logger
	sources *collector.Registry
	metrics *metrics.Registry

	cache    *cache.Store
	reaper   *cache.Reaper
	calendar *calendar.Calendar
	market   *market.Service
	mcp      *mcpserver.Server
	http     *api.Server
}

type options struct {
	sources []collector.TableSource
	now     func() time.Time
	version string
}

// Option customises App construction.
type Option func(*options)

// WithSource registers an extra table source, selectable by name through
// upstream.source.
func WithSource(s collector.TableSource) Option {
	return func(o *options) {
		o.sources = append(o.sources, s)
	}
}

// WithClock overrides the wall clock used by the cache and calendar.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithVersion sets the version announced to MCP clients.
func WithVersion(v string) Option {
	return func(o *options) {
		o.version = v
	}
}

// New wires every component from a validated configuration.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := options{now: time.Now, version: "dev"}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{
		cfg:     cfg,
		logger:  logger,
		sources: collector.NewRegistry(),
		metrics: metrics.NewRegistry(),
	}

	a.sources.Register(aktools.New())
	a.sources.Register(eastmoney.New())
	for _, s := range o.sources {
		a.sources.Register(s)
	}
	source, ok := a.sources.Get(cfg.Upstream.Source)
	if !ok {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown upstream source %q", cfg.Upstream.Source))
	}
	if err := source.Init(collector.Config{
		Enabled: true,
		BaseURL: cfg.Upstream.BaseURL,
		Timeout: cfg.Upstream.Timeout,
	}); err != nil {
		return nil, fmt.Errorf("initializing %s: %w", source.Name(), err)
	}

	var err error
	a.cache, err = cache.New(cache.Config{
		DefaultTTL: cfg.Cache.DefaultTTL,
		TTLs:       cfg.Cache.TTL,
		MaxEntries: cfg.Cache.MaxEntries,
	}, cache.WithClock(o.now), cache.WithObserver(a.metrics), cache.WithLogger(logger.Named("cache")))
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}
	if cfg.Cache.ReapSchedule != "" {
		if a.reaper, err = cache.NewReaper(a.cache, cfg.Cache.ReapSchedule, logger.Named("cache")); err != nil {
			return nil, err
		}
	}

	executor, err := fetch.New(fetch.Config{
		MaxAttempts: cfg.Fetch.MaxAttempts,
		BaseDelay:   cfg.Fetch.BaseDelay,
		Pacing:      cfg.Fetch.Pacing,
		CallTimeout: cfg.Fetch.CallTimeout,
	}, fetch.WithLogger(logger.Named("fetch")), fetch.WithObserver(a.metrics))
	if err != nil {
		return nil, fmt.Errorf("creating executor: %w", err)
	}

	if a.calendar, err = calendar.New(cfg.Calendar.Holidays, calendar.WithClock(o.now)); err != nil {
		return nil, err
	}

	a.market = market.NewService(source, executor, a.cache, a.calendar, marketConfig(cfg), logger)
	a.mcp = mcpserver.New(a.market, o.version,
		mcpserver.WithLogger(logger),
		mcpserver.WithMetrics(a.metrics),
	)

	if cfg.Metrics.Enabled {
		a.http, err = api.NewServer(api.Config{
			Addr:        cfg.Metrics.Addr,
			MetricsPath: cfg.Metrics.Path,
		}, api.Dependencies{
			Market:   a.market,
			Calendar: a.calendar,
			Cache:    a.cache,
			Metrics:  a.metrics,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("creating http server: %w", err)
		}
	}

	return a, nil
}

func marketConfig(cfg *config.Config) market.Config {
	mc := market.DefaultConfig()
	if cfg.Upstream.IndexSymbol != "" {
		mc.Datasets.IndexSpot.Params = map[string]string{"symbol": cfg.Upstream.IndexSymbol}
	}
	mc.Thresholds = normalize.Thresholds{
		Limit:    decimal.NewFromFloat(cfg.Market.LimitThreshold),
		Strong:   decimal.NewFromFloat(cfg.Market.StrongThreshold),
		Moderate: decimal.NewFromFloat(cfg.Market.ModerateThreshold),
	}
	return mc
}

// Market returns the market data service.
func (a *App) Market() *market.Service {
	return a.market
}

// Metrics returns the metrics registry.
func (a *App) Metrics() *metrics.Registry {
	return a.metrics
}

// Query answers one market data request the way the MCP tool does.
func (a *App) Query(ctx context.Context, dt core.DataType, code, date string) (any, bool) {
	return a.market.Query(ctx, dt, code, date)
}

// Run serves MCP on in/out until ctx is done or the client disconnects.
// The cache reaper and the optional HTTP listener live for the same span.
func (a *App) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	if a.reaper != nil {
		a.reaper.Start()
		defer a.reaper.Stop()
	}

	if a.http != nil {
		go func() {
			if err := a.http.Start(); err != nil {
				a.logger.Error("http server error", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := a.http.Shutdown(shutdownCtx); err != nil {
				a.logger.Warn("http shutdown", zap.Error(err))
			}
		}()
	}

	a.logger.Info("stock-mcp started",
		zap.String("upstream", a.cfg.Upstream.Source),
		zap.String("base_url", a.cfg.Upstream.BaseURL),
		zap.Bool("metrics", a.http != nil),
	)

	err := a.mcp.ServeStdio(ctx, in, out)
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		a.logger.Info("stock-mcp stopped")
		return nil
	}
	return err
}
