package normalize

import (
	"fmt"
	"time"

	"github.com/newthinker/stock-mcp/internal/collector"
	"github.com/newthinker/stock-mcp/internal/core"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Thresholds are the percent-change cut-offs used to classify stocks.
// Limit approximates the ±10% daily limit while tolerating rounding in
// the upstream's printed change.
type Thresholds struct {
	Limit    decimal.Decimal
	Strong   decimal.Decimal
	Moderate decimal.Decimal
}

// DefaultThresholds returns ±9.9% / ±7% / ±5%.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Limit:    decimal.RequireFromString("9.9"),
		Strong:   decimal.NewFromInt(7),
		Moderate: decimal.NewFromInt(5),
	}
}

// Breadth counts advancers and decliners across a full-market spot table.
// Rows without a usable change percent (suspended stocks) are left out of
// the universe. Cells that do not parse are left out too and logged at debug.
func Breadth(tbl *collector.Table, date string, at time.Time, th Thresholds, logger *zap.Logger) (*core.MarketBreadth, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &core.MarketBreadth{Date: date, Timestamp: at}
	negLimit, negStrong, negModerate := th.Limit.Neg(), th.Strong.Neg(), th.Moderate.Neg()

	for _, row := range tbl.Rows {
		pct, ok, err := cell(row, ColChangePct)
		if err != nil {
			logger.Debug("skipping unparsable change percent",
				zap.String("dataset", tbl.Dataset.Name),
				zap.String("code", row[ColCode]),
				zap.Error(err),
			)
			continue
		}
		if !ok {
			continue
		}
		b.TotalStocks++

		switch pct.Sign() {
		case 1:
			b.Advancing++
		case -1:
			b.Declining++
		default:
			b.Unchanged++
		}
		if pct.GreaterThanOrEqual(th.Limit) {
			b.LimitUp++
		}
		if pct.LessThanOrEqual(negLimit) {
			b.LimitDown++
		}
		if pct.GreaterThan(th.Moderate) {
			b.GainOver5Pct++
		}
		if pct.LessThan(negModerate) {
			b.LossOver5Pct++
		}
		if pct.GreaterThan(th.Strong) {
			b.GainOver7Pct++
		}
		if pct.LessThan(negStrong) {
			b.LossOver7Pct++
		}
	}

	if b.TotalStocks == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("%s has no priced stocks", tbl.Dataset))
	}

	adv := decimal.NewFromInt(int64(b.Advancing))
	dec := decimal.NewFromInt(int64(b.Declining))
	total := decimal.NewFromInt(int64(b.TotalStocks))

	b.AdvanceDeclineRatio = adv.DivRound(decimal.Max(dec, decimal.NewFromInt(1)), 4)
	b.AdvancePct = adv.Mul(hundred).DivRound(total, 2)
	b.DeclinePct = dec.Mul(hundred).DivRound(total, 2)

	return b, nil
}
