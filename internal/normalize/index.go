package normalize

import (
	"fmt"
	"time"

	"github.com/newthinker/stock-mcp/internal/collector"
	"github.com/newthinker/stock-mcp/internal/core"
	"github.com/shopspring/decimal"
)

// Snapshot describes when a quote was captured.
type Snapshot struct {
	At          time.Time
	TradingDate string
	Status      core.MarketStatus
}

// FindRow returns the first row whose code column matches code, ignoring
// exchange prefixes.
func FindRow(tbl *collector.Table, code string) (collector.Row, bool) {
	want := bareCode(code)
	for _, row := range tbl.Rows {
		if v, ok := row.Value(ColCode); ok && bareCode(v) == want {
			return row, true
		}
	}
	return nil, false
}

// IndexSpot maps the row for code in an index spot table.
func IndexSpot(tbl *collector.Table, code string, snap Snapshot) (*core.MarketIndex, error) {
	row, ok := FindRow(tbl, code)
	if !ok {
		return nil, core.WrapError(core.ErrNotFound, fmt.Errorf("index %s not in %s", code, tbl.Dataset))
	}

	name, _ := row.Value(ColName)

	idx := &core.MarketIndex{
		Code:        code,
		Name:        name,
		Timestamp:   snap.At,
		TradingDate: snap.TradingDate,
		Status:      snap.Status,
	}

	var err error
	for _, f := range []struct {
		col string
		dst *decimal.Decimal
	}{
		{ColLatest, &idx.Current},
		{ColOpen, &idx.Open},
		{ColHigh, &idx.High},
		{ColLow, &idx.Low},
		{ColPreClose, &idx.PreClose},
		{ColChange, &idx.Change},
		{ColChangePct, &idx.ChangePct},
	} {
		if *f.dst, err = required(row, f.col); err != nil {
			return nil, fmt.Errorf("index %s: %w", code, err)
		}
	}

	if idx.Amplitude, err = optional(row, ColAmplitude); err != nil {
		return nil, fmt.Errorf("index %s: %w", code, err)
	}
	if idx.Amount, err = optional(row, ColAmount); err != nil {
		return nil, fmt.Errorf("index %s: %w", code, err)
	}
	volume, err := optional(row, ColVolume)
	if err != nil {
		return nil, fmt.Errorf("index %s: %w", code, err)
	}
	idx.Volume = volume.IntPart()

	turnover, ok, err := cell(row, ColTurnover)
	if err != nil {
		return nil, fmt.Errorf("index %s: %w", code, err)
	}
	if ok {
		idx.TurnoverRate = &turnover
	}

	if snap.Status == core.StatusClosed {
		closePrice := idx.Current
		idx.Close = &closePrice
	}

	return idx, nil
}
