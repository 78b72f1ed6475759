package core

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire format of trading dates.
const DateLayout = "2006-01-02"

// DefaultIndexCode is the Shanghai Composite.
const DefaultIndexCode = "000001"

// MarketStatus reports whether the exchange is in session
type MarketStatus string

const (
	StatusOpen   MarketStatus = "open"
	StatusClosed MarketStatus = "closed"
)

// DataType selects which dataset a market data request asks for
type DataType string

const (
	DataRealtime    DataType = "realtime"
	DataBreadth     DataType = "breadth"
	DataCapitalFlow DataType = "capital_flow"
	DataAll         DataType = "all"
)

// ParseDataType validates a data type string. Empty means realtime.
func ParseDataType(s string) (DataType, error) {
	switch DataType(s) {
	case "":
		return DataRealtime, nil
	case DataRealtime, DataBreadth, DataCapitalFlow, DataAll:
		return DataType(s), nil
	}
	return "", WrapError(ErrInvalidArgument, fmt.Errorf("unknown data_type %q", s))
}

// MarketIndex is a point-in-time snapshot of one market index.
// Close is only set once the session has ended.
type MarketIndex struct {
	Code         string           `json:"code"`
	Name         string           `json:"name"`
	Current      decimal.Decimal  `json:"current"`
	Open         decimal.Decimal  `json:"open"`
	High         decimal.Decimal  `json:"high"`
	Low          decimal.Decimal  `json:"low"`
	Close        *decimal.Decimal `json:"close,omitempty"`
	PreClose     decimal.Decimal  `json:"pre_close"`
	Change       decimal.Decimal  `json:"change"`
	ChangePct    decimal.Decimal  `json:"change_pct"`
	Amplitude    decimal.Decimal  `json:"amplitude"`
	Volume       int64            `json:"volume"`
	Amount       decimal.Decimal  `json:"amount"`
	TurnoverRate *decimal.Decimal `json:"turnover_rate,omitempty"`
	Timestamp    time.Time        `json:"timestamp"`
	TradingDate  string           `json:"trading_date"`
	Status       MarketStatus     `json:"market_status"`
}

// MarketBreadth aggregates advance/decline counts over all traded A-shares.
type MarketBreadth struct {
	TotalStocks         int             `json:"total_stocks"`
	Advancing           int             `json:"advancing"`
	Declining           int             `json:"declining"`
	Unchanged           int             `json:"unchanged"`
	LimitUp             int             `json:"limit_up"`
	LimitDown           int             `json:"limit_down"`
	GainOver5Pct        int             `json:"gain_over_5pct"`
	LossOver5Pct        int             `json:"loss_over_5pct"`
	GainOver7Pct        int             `json:"gain_over_7pct"`
	LossOver7Pct        int             `json:"loss_over_7pct"`
	AdvanceDeclineRatio decimal.Decimal `json:"advance_decline_ratio"`
	AdvancePct          decimal.Decimal `json:"advance_pct"`
	DeclinePct          decimal.Decimal `json:"decline_pct"`
	Date                string          `json:"date"`
	Timestamp           time.Time       `json:"timestamp"`
}

// IsConsistent checks the advance/decline partition of the universe.
func (b MarketBreadth) IsConsistent() bool {
	return b.Advancing+b.Declining+b.Unchanged == b.TotalStocks
}

// CapitalFlow is the northbound (Stock Connect) flow for one date.
// Exactly one of inflow/outflow is nonzero unless net is zero.
type CapitalFlow struct {
	NorthNet     decimal.Decimal `json:"north_net"`
	NorthInflow  decimal.Decimal `json:"north_inflow"`
	NorthOutflow decimal.Decimal `json:"north_outflow"`
	Date         string          `json:"date"`
	Timestamp    time.Time       `json:"timestamp"`
}

// NewCapitalFlow splits a signed net flow into its inflow/outflow legs.
func NewCapitalFlow(net decimal.Decimal, date string, at time.Time) CapitalFlow {
	flow := CapitalFlow{
		NorthNet:     net,
		NorthInflow:  decimal.Zero,
		NorthOutflow: decimal.Zero,
		Date:         date,
		Timestamp:    at,
	}
	switch net.Sign() {
	case 1:
		flow.NorthInflow = net
	case -1:
		flow.NorthOutflow = net.Abs()
	}
	return flow
}

// MarketOverview bundles all three datasets; missing ones are nil.
type MarketOverview struct {
	Index       *MarketIndex   `json:"index,omitempty"`
	Breadth     *MarketBreadth `json:"breadth,omitempty"`
	CapitalFlow *CapitalFlow   `json:"capital_flow,omitempty"`
}

// Empty reports whether no dataset produced data.
func (o MarketOverview) Empty() bool {
	return o.Index == nil && o.Breadth == nil && o.CapitalFlow == nil
}
