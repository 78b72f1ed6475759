// Package mcpserver exposes market data to MCP clients over stdio.
package mcpserver

import (
	"context"
	"io"

	"github.com/mark3labs/mcp-go/server"
	"github.com/newthinker/stock-mcp/internal/market"
	"go.uber.org/zap"
)

// ServerName is announced to clients during initialization.
const ServerName = "stock-mcp"

// MarketData is the query surface the facade needs. A false result means
// no data, whatever the cause.
type MarketData = market.Reader

// Recorder receives one observation per tool call or resource read.
type Recorder interface {
	RecordToolCall(tool, dataType, status string, duration float64)
}

// Server adapts MarketData to MCP tools and resources.
type Server struct {
	mcp     *server.MCPServer
	data    MarketData
	logger  *zap.Logger
	metrics Recorder
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics records tool calls.
func WithMetrics(r Recorder) Option {
	return func(s *Server) {
		s.metrics = r
	}
}

// New builds the MCP server and registers its tools and resources.
func New(data MarketData, version string, opts ...Option) *Server {
	s := &Server{
		data:   data,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("mcp")

	s.mcp = server.NewMCPServer(ServerName, version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithRecovery(),
	)
	s.registerTools()
	s.registerResources()
	return s
}

// MCP returns the underlying protocol server.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// ServeStdio speaks MCP over in/out until ctx is done or in is closed.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(zap.NewStdLog(s.logger))
	s.logger.Info("serving on stdio")
	return stdio.Listen(ctx, in, out)
}

func (s *Server) record(tool, dataType, status string, seconds float64) {
	if s.metrics != nil {
		s.metrics.RecordToolCall(tool, dataType, status, seconds)
	}
}
