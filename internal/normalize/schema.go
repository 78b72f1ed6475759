// Package normalize translates upstream tables into typed market records.
// It is the only place that knows the provider's column headers.
package normalize

import (
	"fmt"
	"strings"

	"github.com/newthinker/stock-mcp/internal/collector"
	"github.com/newthinker/stock-mcp/internal/core"
	"github.com/shopspring/decimal"
)

// Upstream column headers.
const (
	ColCode      = "代码"
	ColName      = "名称"
	ColLatest    = "最新价"
	ColOpen      = "今开"
	ColHigh      = "最高"
	ColLow       = "最低"
	ColPreClose  = "昨收"
	ColChange    = "涨跌额"
	ColChangePct = "涨跌幅"
	ColAmplitude = "振幅"
	ColVolume    = "成交量"
	ColAmount    = "成交额"
	ColTurnover  = "换手率"
	ColDate      = "日期"
)

// FlowNetColumns lists the headers carrying northbound net buying, in
// order of preference.
var FlowNetColumns = []string{"当日成交净买额", "北向资金"}

var hundred = decimal.NewFromInt(100)

// cell reads a column as a decimal. Missing, null and placeholder cells
// report ok == false; unparsable text is an error.
func cell(row collector.Row, col string) (d decimal.Decimal, ok bool, err error) {
	v, present := row.Value(col)
	if !present {
		return decimal.Zero, false, nil
	}
	v = strings.TrimSpace(v)
	switch v {
	case "", "-", "--", "NaN", "nan", "None":
		return decimal.Zero, false, nil
	}
	d, err = decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, false, core.WrapError(core.ErrMalformedRow, fmt.Errorf("column %s: %q", col, v))
	}
	return d, true, nil
}

// required reads a column that must be present.
func required(row collector.Row, col string) (decimal.Decimal, error) {
	d, ok, err := cell(row, col)
	if err != nil {
		return decimal.Zero, err
	}
	if !ok {
		return decimal.Zero, core.WrapError(core.ErrMalformedRow, fmt.Errorf("missing column %s", col))
	}
	return d, nil
}

// optional reads a column that defaults to zero.
func optional(row collector.Row, col string) (decimal.Decimal, error) {
	d, _, err := cell(row, col)
	return d, err
}

// bareCode strips an exchange prefix such as "sh" from "sh000001".
func bareCode(code string) string {
	code = strings.TrimSpace(code)
	lower := strings.ToLower(code)
	for _, p := range []string{"sh", "sz", "bj", "csi"} {
		if strings.HasPrefix(lower, p) && len(code) > len(p) {
			return code[len(p):]
		}
	}
	return code
}
