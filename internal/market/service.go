// Package market serves normalized market records, fetching through the
// retry executor and caching the results.
package market

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/newthinker/stock-mcp/internal/cache"
	"github.com/newthinker/stock-mcp/internal/calendar"
	"github.com/newthinker/stock-mcp/internal/collector"
	"github.com/newthinker/stock-mcp/internal/core"
	"github.com/newthinker/stock-mcp/internal/fetch"
	"github.com/newthinker/stock-mcp/internal/normalize"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Namespace is the cache namespace for every record the service produces.
const Namespace = "market_data"

const (
	kindBreadth     = "breadth"
	kindCapitalFlow = "capital_flow"
)

// Datasets names the upstream tables behind each record type.
type Datasets struct {
	IndexSpot   collector.Dataset
	Spot        collector.Dataset
	CapitalFlow collector.Dataset
}

// DefaultDatasets returns the AKShare datasets.
func DefaultDatasets() Datasets {
	return Datasets{
		IndexSpot:   collector.Dataset{Name: "stock_zh_index_spot_em", Params: map[string]string{"symbol": "沪深重要指数"}},
		Spot:        collector.Dataset{Name: "stock_zh_a_spot_em"},
		CapitalFlow: collector.Dataset{Name: "stock_hsgt_hist_em", Params: map[string]string{"symbol": "北向资金"}},
	}
}

// Config tunes the service.
type Config struct {
	Datasets   Datasets
	Thresholds normalize.Thresholds
}

// DefaultConfig returns the default datasets and thresholds.
func DefaultConfig() Config {
	return Config{
		Datasets:   DefaultDatasets(),
		Thresholds: normalize.DefaultThresholds(),
	}
}

// Service answers market data queries. Every getter fails soft: any
// upstream, parsing or cache problem is logged and reported as no data.
type Service struct {
	source   collector.TableSource
	executor *fetch.Executor
	cache    *cache.Store
	calendar *calendar.Calendar
	cfg      Config
	logger   *zap.Logger

	flights singleflight.Group
}

// NewService wires a service from its collaborators.
func NewService(source collector.TableSource, executor *fetch.Executor, store *cache.Store,
	cal *calendar.Calendar, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		source:   source,
		executor: executor,
		cache:    store,
		calendar: cal,
		cfg:      cfg,
		logger:   logger.Named("market"),
	}
}

// GetIndexSpot returns the latest quote for an index code.
func (s *Service) GetIndexSpot(ctx context.Context, code string) (*core.MarketIndex, bool) {
	if code == "" {
		code = core.DefaultIndexCode
	}
	params := cache.Params{"index_code": code}

	return load(ctx, s, "index_spot", params, func(ctx context.Context) (*core.MarketIndex, error) {
		tbl, err := s.fetchTable(ctx, s.cfg.Datasets.IndexSpot)
		if err != nil {
			return nil, err
		}
		now := s.calendar.Now()
		return normalize.IndexSpot(tbl, code, normalize.Snapshot{
			At:          now,
			TradingDate: s.calendar.LatestTradingDateAt(now),
			Status:      s.calendar.Status(now),
		})
	})
}

// GetMarketBreadth returns advance/decline statistics for date, which
// defaults to the latest trading date. The upstream only publishes a live
// snapshot, so any other date has no data.
func (s *Service) GetMarketBreadth(ctx context.Context, date string) (*core.MarketBreadth, bool) {
	latest := s.calendar.LatestTradingDate()
	if date == "" {
		date = latest
	}
	if date != latest {
		s.logger.Info("breadth is only available for the latest trading date",
			zap.String("date", date), zap.String("latest", latest))
		return nil, false
	}
	params := cache.Params{"type": kindBreadth, "date": date}

	return load(ctx, s, kindBreadth, params, func(ctx context.Context) (*core.MarketBreadth, error) {
		tbl, err := s.fetchTable(ctx, s.cfg.Datasets.Spot)
		if err != nil {
			return nil, err
		}
		return normalize.Breadth(tbl, date, s.calendar.Now(), s.cfg.Thresholds, s.logger)
	})
}

// GetCapitalFlow returns northbound flow for date, which defaults to the
// latest trading date. For the latest date the most recent published row
// is used.
func (s *Service) GetCapitalFlow(ctx context.Context, date string) (*core.CapitalFlow, bool) {
	latest := s.calendar.LatestTradingDate()
	if date == "" {
		date = latest
	}
	pinned := date != latest
	params := cache.Params{"type": kindCapitalFlow, "date": date}

	return load(ctx, s, kindCapitalFlow, params, func(ctx context.Context) (*core.CapitalFlow, error) {
		tbl, err := s.fetchTable(ctx, s.cfg.Datasets.CapitalFlow)
		if err != nil {
			return nil, err
		}
		return normalize.CapitalFlow(tbl, date, pinned, s.calendar.Now())
	})
}

// GetOverview fetches all three records concurrently. Missing parts are nil.
func (s *Service) GetOverview(ctx context.Context, code, date string) core.MarketOverview {
	var (
		ov core.MarketOverview
		wg sync.WaitGroup
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		ov.Index, _ = s.GetIndexSpot(ctx, code)
	}()
	go func() {
		defer wg.Done()
		ov.Breadth, _ = s.GetMarketBreadth(ctx, date)
	}()
	go func() {
		defer wg.Done()
		ov.CapitalFlow, _ = s.GetCapitalFlow(ctx, date)
	}()
	wg.Wait()
	return ov
}

// Calendar exposes the trading calendar the service reasons with.
func (s *Service) Calendar() *calendar.Calendar {
	return s.calendar
}

func (s *Service) fetchTable(ctx context.Context, ds collector.Dataset) (*collector.Table, error) {
	res := fetch.Do(ctx, s.executor, ds.Name, func(ctx context.Context) (*collector.Table, error) {
		return s.source.FetchTable(ctx, ds)
	})
	if !res.OK() {
		return nil, res.Err
	}
	return res.Value, nil
}

// load serves a record from cache or produces it once per signature,
// however many callers miss at the same time. The shared fetch runs
// detached from any one caller so a caller giving up only abandons its own
// wait; the executor's per-call timeout still bounds the fetch.
func load[T any](ctx context.Context, s *Service, op string, params cache.Params,
	produce func(context.Context) (*T, error)) (*T, bool) {
	if rec, ok := cached[T](s, params); ok {
		return rec, true
	}

	key := cache.Signature(Namespace, params)
	if err := ctx.Err(); err != nil {
		s.failSoft(op, key, err)
		return nil, false
	}

	flightCtx := context.WithoutCancel(ctx)
	ch := s.flights.DoChan(key, func() (any, error) {
		if rec, ok := cached[T](s, params); ok {
			return rec, nil
		}
		rec, err := produce(flightCtx)
		if err != nil {
			return nil, err
		}
		s.cache.Set(Namespace, rec, params)
		return rec, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		s.failSoft(op, key, ctx.Err())
		return nil, false
	}
	if res.Err != nil {
		s.failSoft(op, key, res.Err)
		return nil, false
	}

	rec, ok := res.Val.(*T)
	if !ok || rec == nil {
		s.failSoft(op, key, core.WrapError(core.ErrCacheFailure, fmt.Errorf("unexpected %T", res.Val)))
		return nil, false
	}
	if res.Shared {
		s.logger.Debug("joined in-flight fetch", zap.String("key", key))
	}
	return rec, true
}

func cached[T any](s *Service, params cache.Params) (*T, bool) {
	v, ok := s.cache.Get(Namespace, params)
	if !ok {
		return nil, false
	}
	rec, ok := v.(*T)
	return rec, ok && rec != nil
}

func (s *Service) failSoft(op, key string, err error) {
	fields := []zap.Field{zap.String("op", op), zap.String("key", key), zap.Error(err)}
	switch {
	case errors.Is(err, core.ErrNoData), errors.Is(err, core.ErrNotFound):
		s.logger.Info("no data", fields...)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.logger.Info("request abandoned", fields...)
	default:
		s.logger.Warn("market data unavailable", fields...)
	}
}
