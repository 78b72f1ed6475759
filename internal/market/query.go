package market

import (
	"context"

	"github.com/newthinker/stock-mcp/internal/core"
)

// Reader is the read side of the market data service.
type Reader interface {
	GetIndexSpot(ctx context.Context, code string) (*core.MarketIndex, bool)
	GetMarketBreadth(ctx context.Context, date string) (*core.MarketBreadth, bool)
	GetCapitalFlow(ctx context.Context, date string) (*core.CapitalFlow, bool)
	GetOverview(ctx context.Context, code, date string) core.MarketOverview
}

// Query answers one request by data type. The value is one of
// *core.MarketIndex, *core.MarketBreadth, *core.CapitalFlow or
// core.MarketOverview, and is nil whenever ok is false.
func Query(ctx context.Context, r Reader, dt core.DataType, code, date string) (v any, ok bool) {
	switch dt {
	case core.DataBreadth:
		if b, ok := r.GetMarketBreadth(ctx, date); ok {
			return b, true
		}
	case core.DataCapitalFlow:
		if cf, ok := r.GetCapitalFlow(ctx, date); ok {
			return cf, true
		}
	case core.DataAll:
		if ov := r.GetOverview(ctx, code, date); !ov.Empty() {
			return ov, true
		}
	default:
		if idx, ok := r.GetIndexSpot(ctx, code); ok {
			return idx, true
		}
	}
	return nil, false
}

// Query answers one request by data type against this service.
func (s *Service) Query(ctx context.Context, dt core.DataType, code, date string) (any, bool) {
	return Query(ctx, s, dt, code, date)
}
