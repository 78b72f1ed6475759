// internal/api/server.go
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/newthinker/stock-mcp/internal/api/response"
	"github.com/newthinker/stock-mcp/internal/calendar"
	"github.com/newthinker/stock-mcp/internal/core"
	"github.com/newthinker/stock-mcp/internal/market"
	"github.com/newthinker/stock-mcp/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// MarketData is the read surface mirrored over HTTP.
type MarketData = market.Reader

// CacheStats reports cache occupancy.
type CacheStats interface {
	Len() int
}

// Server is the operations listener: metrics, health and a read-only
// market endpoint.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
	deps       Dependencies
}

// Config holds server configuration
type Config struct {
	Addr        string
	MetricsPath string
}

// Dependencies are the components the handlers read from.
type Dependencies struct {
	Market   MarketData
	Calendar *calendar.Calendar
	Cache    CacheStats
	Metrics  *metrics.Registry
}

// NewServer creates the HTTP server
func NewServer(cfg Config, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if deps.Market == nil || deps.Calendar == nil {
		return nil, core.WrapError(core.ErrConfigMissing, errors.New("api server needs market data and a calendar"))
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		logger: logger.Named("http"),
		mux:    http.NewServeMux(),
		deps:   deps,
	}
	s.setupRoutes(cfg)

	var handler http.Handler = s.mux
	if deps.Metrics != nil {
		handler = metrics.HTTPMiddleware(deps.Metrics)(handler)
	}
	handler = metrics.LoggingMiddleware(s.logger)(handler)

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

func (s *Server) setupRoutes(cfg Config) {
	if s.deps.Metrics != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		s.mux.Handle("GET "+path, promhttp.HandlerFor(s.deps.Metrics, promhttp.HandlerOpts{}))
	}
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /api/market", s.handleMarket)
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

type health struct {
	Status            string            `json:"status"`
	MarketStatus      core.MarketStatus `json:"market_status"`
	LatestTradingDate string            `json:"latest_trading_date"`
	CacheEntries      int               `json:"cache_entries"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := s.deps.Calendar.Now()
	h := health{
		Status:            "ok",
		MarketStatus:      s.deps.Calendar.Status(now),
		LatestTradingDate: s.deps.Calendar.LatestTradingDateAt(now),
	}
	if s.deps.Cache != nil {
		h.CacheEntries = s.deps.Cache.Len()
	}
	response.JSON(w, http.StatusOK, h)
}

// handleMarket serves GET /api/market?data_type=&index_code=&date=
func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	dataType, err := core.ParseDataType(q.Get("data_type"))
	if err != nil {
		response.Error(w, 0, err)
		return
	}
	code := q.Get("index_code")
	if code == "" {
		code = core.DefaultIndexCode
	}
	date := q.Get("date")
	if date != "" {
		if _, err := calendar.ParseDate(date); err != nil {
			response.Error(w, 0, err)
			return
		}
	}

	data, ok := market.Query(r.Context(), s.deps.Market, dataType, code, date)
	if !ok {
		response.Error(w, 0, core.WrapError(core.ErrNoData, fmt.Errorf("%s unavailable", dataType)))
		return
	}
	response.JSON(w, http.StatusOK, data)
}
