package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/newthinker/stock-mcp/internal/calendar"
	"github.com/newthinker/stock-mcp/internal/core"
	"github.com/newthinker/stock-mcp/internal/market"
	"go.uber.org/zap"
)

// ToolGetMarketData is the single market data tool.
const ToolGetMarketData = "get_market_data"

const (
	statusOK      = "ok"
	statusNoData  = "no_data"
	statusInvalid = "invalid"
)

func (s *Server) registerTools() {
	tool := mcp.NewTool(ToolGetMarketData,
		mcp.WithDescription("获取市场数据（实时行情/市场宽度/资金流向）"),
		mcp.WithString("data_type",
			mcp.Description("数据类型：realtime(实时行情), breadth(市场宽度), capital_flow(资金流向), all(全部)"),
			mcp.Enum(string(core.DataRealtime), string(core.DataBreadth), string(core.DataCapitalFlow), string(core.DataAll)),
			mcp.DefaultString(string(core.DataRealtime)),
		),
		mcp.WithString("index_code",
			mcp.Description("指数代码，默认 000001（上证指数）"),
			mcp.DefaultString(core.DefaultIndexCode),
		),
		mcp.WithString("date",
			mcp.Description("交易日期（YYYY-MM-DD格式），可选，默认最新交易日"),
		),
	)
	s.mcp.AddTool(tool, s.handleGetMarketData)
}

func (s *Server) handleGetMarketData(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start := time.Now()
	logger := s.logger.With(
		zap.String("request_id", uuid.NewString()),
		zap.String("tool", ToolGetMarketData),
	)

	dataType, err := core.ParseDataType(req.GetString("data_type", ""))
	if err != nil {
		return s.invalid(logger, "unknown", start, err), nil
	}
	code := req.GetString("index_code", "")
	if code == "" {
		code = core.DefaultIndexCode
	}
	date := req.GetString("date", "")
	if date != "" {
		if _, err := calendar.ParseDate(date); err != nil {
			return s.invalid(logger, string(dataType), start, err), nil
		}
	}

	logger.Info("tool called",
		zap.String("data_type", string(dataType)),
		zap.String("index_code", code),
		zap.String("date", date),
	)

	payload, ok := market.Query(ctx, s.data, dataType, code, date)

	took := time.Since(start)
	if !ok {
		s.record(ToolGetMarketData, string(dataType), statusNoData, took.Seconds())
		logger.Info("no data", zap.Duration("took", took))
		return mcp.NewToolResultText(noDataText(dataType)), nil
	}

	body, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", dataType, err)
	}

	s.record(ToolGetMarketData, string(dataType), statusOK, took.Seconds())
	logger.Debug("tool served", zap.Duration("took", took))
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(summarize(payload)),
			mcp.NewTextContent(string(body)),
		},
	}, nil
}

func (s *Server) invalid(logger *zap.Logger, dataType string, start time.Time, err error) *mcp.CallToolResult {
	s.record(ToolGetMarketData, dataType, statusInvalid, time.Since(start).Seconds())
	logger.Info("rejected arguments", zap.Error(err))
	return mcp.NewToolResultError(err.Error())
}
