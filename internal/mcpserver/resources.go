package mcpserver

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/newthinker/stock-mcp/internal/core"
	"go.uber.org/zap"
)

const mimeJSON = "application/json"

// resource is a read-only JSON view over one query.
type resource struct {
	uri         string
	name        string
	description string
	kind        core.DataType
	read        func(ctx context.Context) (any, bool)
}

func (s *Server) resources() []resource {
	rs := []resource{
		{
			uri:         "market://summary/latest",
			name:        "市场概览",
			description: "最新交易日的指数行情、市场宽度与北向资金",
			kind:        core.DataAll,
			read: func(ctx context.Context) (any, bool) {
				ov := s.data.GetOverview(ctx, core.DefaultIndexCode, "")
				return ov, !ov.Empty()
			},
		},
		{
			uri:         "market://breadth/latest",
			name:        "市场宽度",
			description: "最新交易日的涨跌家数统计",
			kind:        core.DataBreadth,
			read: func(ctx context.Context) (any, bool) {
				b, ok := s.data.GetMarketBreadth(ctx, "")
				return b, ok
			},
		},
		{
			uri:         "market://capital-flow/latest",
			name:        "北向资金",
			description: "最新公布的北向资金净流入",
			kind:        core.DataCapitalFlow,
			read: func(ctx context.Context) (any, bool) {
				cf, ok := s.data.GetCapitalFlow(ctx, "")
				return cf, ok
			},
		},
	}

	for _, idx := range []struct{ code, name string }{
		{"000001", "上证指数"},
		{"399001", "深证成指"},
		{"399006", "创业板指"},
	} {
		code := idx.code
		rs = append(rs, resource{
			uri:         "market://index/" + code + "/latest",
			name:        idx.name,
			description: idx.name + "实时行情",
			kind:        core.DataRealtime,
			read: func(ctx context.Context) (any, bool) {
				v, ok := s.data.GetIndexSpot(ctx, code)
				return v, ok
			},
		})
	}
	return rs
}

func (s *Server) registerResources() {
	for _, r := range s.resources() {
		s.mcp.AddResource(
			mcp.NewResource(r.uri, r.name,
				mcp.WithResourceDescription(r.description),
				mcp.WithMIMEType(mimeJSON),
			),
			s.resourceHandler(r),
		)
	}
}

type errorBody struct {
	Error *core.Error `json:"error"`
}

func (s *Server) resourceHandler(r resource) func(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		start := time.Now()
		logger := s.logger.With(
			zap.String("request_id", uuid.NewString()),
			zap.String("uri", r.uri),
		)

		status := statusOK
		payload, ok := r.read(ctx)
		if !ok {
			status = statusNoData
			payload = errorBody{Error: core.ErrNoData}
		}

		body, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			logger.Error("encoding resource", zap.Error(err))
			body, _ = json.Marshal(errorBody{Error: &core.Error{Code: "RESOURCE_ERROR", Message: err.Error()}})
			status = "error"
		}

		s.record("resource", string(r.kind), status, time.Since(start).Seconds())
		logger.Debug("resource read", zap.String("status", status))

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      r.uri,
				MIMEType: mimeJSON,
				Text:     string(body),
			},
		}, nil
	}
}
