package normalize

import (
	"strconv"
	"testing"
	"time"

	"github.com/newthinker/stock-mcp/internal/collector"
	"github.com/newthinker/stock-mcp/internal/core"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var testAt = time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func indexTable(rows ...collector.Row) *collector.Table {
	return collector.NewTable(collector.Dataset{Name: "stock_zh_index_spot_em"}, nil, rows)
}

func shanghaiRow() collector.Row {
	return collector.Row{
		ColCode: "000001", ColName: "上证指数", ColLatest: "3250.12",
		ColOpen: "3240.00", ColHigh: "3260.50", ColLow: "3235.10",
		ColPreClose: "3238.55", ColChange: "11.57", ColChangePct: "0.36",
		ColAmplitude: "0.78", ColVolume: "352100000", ColAmount: "4.12e11",
	}
}

func TestIndexSpot(t *testing.T) {
	snap := Snapshot{At: testAt, TradingDate: "2026-10-15", Status: core.StatusOpen}

	t.Run("maps row during session", func(t *testing.T) {
		idx, err := IndexSpot(indexTable(shanghaiRow()), "000001", snap)
		require.NoError(t, err)

		assert.Equal(t, "上证指数", idx.Name)
		assert.True(t, dec("3250.12").Equal(idx.Current))
		assert.True(t, dec("0.36").Equal(idx.ChangePct))
		assert.True(t, dec("412000000000").Equal(idx.Amount))
		assert.Equal(t, int64(352100000), idx.Volume)
		assert.Nil(t, idx.Close)
		assert.Nil(t, idx.TurnoverRate)
		assert.Equal(t, "2026-10-15", idx.TradingDate)
		assert.Equal(t, core.StatusOpen, idx.Status)
	})

	t.Run("close equals current when closed", func(t *testing.T) {
		closed := snap
		closed.Status = core.StatusClosed
		idx, err := IndexSpot(indexTable(shanghaiRow()), "000001", closed)
		require.NoError(t, err)
		require.NotNil(t, idx.Close)
		assert.True(t, idx.Close.Equal(idx.Current))
	})

	t.Run("turnover when published", func(t *testing.T) {
		row := shanghaiRow()
		row[ColTurnover] = "1.25"
		idx, err := IndexSpot(indexTable(row), "000001", snap)
		require.NoError(t, err)
		require.NotNil(t, idx.TurnoverRate)
		assert.True(t, dec("1.25").Equal(*idx.TurnoverRate))
	})

	t.Run("prefixed codes match", func(t *testing.T) {
		row := shanghaiRow()
		row[ColCode] = "sh000001"
		idx, err := IndexSpot(indexTable(row), "000001", snap)
		require.NoError(t, err)
		assert.Equal(t, "000001", idx.Code)
	})

	t.Run("unknown code", func(t *testing.T) {
		_, err := IndexSpot(indexTable(shanghaiRow()), "399001", snap)
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("missing required column", func(t *testing.T) {
		row := shanghaiRow()
		delete(row, ColHigh)
		_, err := IndexSpot(indexTable(row), "000001", snap)
		assert.ErrorIs(t, err, core.ErrMalformedRow)
	})

	t.Run("garbage number", func(t *testing.T) {
		row := shanghaiRow()
		row[ColLatest] = "n/a"
		_, err := IndexSpot(indexTable(row), "000001", snap)
		assert.ErrorIs(t, err, core.ErrMalformedRow)
	})
}

func spotTable(pcts ...string) *collector.Table {
	rows := make([]collector.Row, 0, len(pcts))
	for i, p := range pcts {
		row := collector.Row{ColCode: strconv.Itoa(600000 + i)}
		if p != "" {
			row[ColChangePct] = p
		}
		rows = append(rows, row)
	}
	return collector.NewTable(collector.Dataset{Name: "stock_zh_a_spot_em"}, nil, rows)
}

func TestBreadth(t *testing.T) {
	th := DefaultThresholds()

	t.Run("classification", func(t *testing.T) {
		tbl := spotTable("10.01", "9.9", "7.5", "5.5", "5", "0.1", "0", "0.00", "-0.3", "-5.01", "-7.2", "-9.95")
		b, err := Breadth(tbl, "2026-10-15", testAt, th, nil)
		require.NoError(t, err)

		assert.Equal(t, 12, b.TotalStocks)
		assert.Equal(t, 6, b.Advancing)
		assert.Equal(t, 4, b.Declining)
		assert.Equal(t, 2, b.Unchanged)
		assert.Equal(t, 2, b.LimitUp)
		assert.Equal(t, 1, b.LimitDown)
		assert.Equal(t, 4, b.GainOver5Pct)
		assert.Equal(t, 3, b.LossOver5Pct)
		assert.Equal(t, 3, b.GainOver7Pct)
		assert.Equal(t, 2, b.LossOver7Pct)
		assert.True(t, b.IsConsistent())

		assert.True(t, dec("1.5").Equal(b.AdvanceDeclineRatio))
		assert.True(t, dec("50").Equal(b.AdvancePct))
		assert.True(t, dec("33.33").Equal(b.DeclinePct))
		assert.Equal(t, "2026-10-15", b.Date)
	})

	t.Run("nested bands", func(t *testing.T) {
		b, err := Breadth(spotTable("8", "6", "-8", "-6", "1"), "2026-10-15", testAt, th, nil)
		require.NoError(t, err)
		assert.LessOrEqual(t, b.GainOver7Pct, b.GainOver5Pct)
		assert.LessOrEqual(t, b.GainOver5Pct, b.Advancing)
		assert.LessOrEqual(t, b.LossOver7Pct, b.LossOver5Pct)
		assert.LessOrEqual(t, b.LossOver5Pct, b.Declining)
	})

	t.Run("no decliners", func(t *testing.T) {
		b, err := Breadth(spotTable("1", "2", "3"), "2026-10-15", testAt, th, nil)
		require.NoError(t, err)
		assert.True(t, dec("3").Equal(b.AdvanceDeclineRatio))
	})

	t.Run("suspended rows excluded", func(t *testing.T) {
		b, err := Breadth(spotTable("1", "", "-", "-1"), "2026-10-15", testAt, th, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, b.TotalStocks)
		assert.True(t, b.IsConsistent())
	})

	t.Run("unparsable cells logged and excluded", func(t *testing.T) {
		obs, logs := observer.New(zap.DebugLevel)
		b, err := Breadth(spotTable("1", "abc", "-", "-1"), "2026-10-15", testAt, th, zap.New(obs))
		require.NoError(t, err)
		assert.Equal(t, 2, b.TotalStocks)

		entries := logs.FilterMessage("skipping unparsable change percent").All()
		require.Len(t, entries, 1)
		assert.Equal(t, "stock_zh_a_spot_em", entries[0].ContextMap()["dataset"])
	})

	t.Run("nothing priced", func(t *testing.T) {
		_, err := Breadth(spotTable("", "-"), "2026-10-15", testAt, th, nil)
		assert.ErrorIs(t, err, core.ErrNoData)
	})

	t.Run("custom limit", func(t *testing.T) {
		wide := th
		wide.Limit = dec("19.9")
		b, err := Breadth(spotTable("10.01", "19.95"), "2026-10-15", testAt, wide, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, b.LimitUp)
	})
}

func flowTable(netCol string, rows ...[2]string) *collector.Table {
	out := make([]collector.Row, 0, len(rows))
	for _, r := range rows {
		row := collector.Row{ColDate: r[0]}
		if r[1] != "" {
			row[netCol] = r[1]
		}
		out = append(out, row)
	}
	return collector.NewTable(collector.Dataset{Name: "stock_hsgt_hist_em"}, []string{ColDate, netCol}, out)
}

func TestCapitalFlow(t *testing.T) {
	t.Run("latest row", func(t *testing.T) {
		tbl := flowTable("当日成交净买额",
			[2]string{"2026-10-13", "-12.5"},
			[2]string{"2026-10-14T00:00:00.000", "35.2"},
		)
		f, err := CapitalFlow(tbl, "2026-10-15", false, testAt)
		require.NoError(t, err)
		assert.True(t, dec("35.2").Equal(f.NorthNet))
		assert.True(t, dec("35.2").Equal(f.NorthInflow))
		assert.True(t, f.NorthOutflow.IsZero())
		assert.Equal(t, "2026-10-14", f.Date)
	})

	t.Run("skips unpublished tail", func(t *testing.T) {
		tbl := flowTable("北向资金",
			[2]string{"2026-10-14", "-8"},
			[2]string{"2026-10-15", ""},
		)
		f, err := CapitalFlow(tbl, "2026-10-15", false, testAt)
		require.NoError(t, err)
		assert.True(t, dec("8").Equal(f.NorthOutflow))
		assert.True(t, f.NorthInflow.IsZero())
		assert.Equal(t, "2026-10-14", f.Date)
	})

	t.Run("pinned date", func(t *testing.T) {
		tbl := flowTable("当日成交净买额",
			[2]string{"2026-10-13", "-12.5"},
			[2]string{"2026-10-14", "35.2"},
		)
		f, err := CapitalFlow(tbl, "2026-10-13", true, testAt)
		require.NoError(t, err)
		assert.True(t, dec("-12.5").Equal(f.NorthNet))
		assert.Equal(t, "2026-10-13", f.Date)

		_, err = CapitalFlow(tbl, "2026-09-01", true, testAt)
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("undated table", func(t *testing.T) {
		tbl := collector.NewTable(collector.Dataset{Name: "stock_hsgt_fund_flow_summary_em"}, nil,
			[]collector.Row{{"北向资金": "21.4"}})

		f, err := CapitalFlow(tbl, "2026-10-15", false, testAt)
		require.NoError(t, err)
		assert.Equal(t, "2026-10-15", f.Date)

		_, err = CapitalFlow(tbl, "2026-10-13", true, testAt)
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("zero net", func(t *testing.T) {
		f, err := CapitalFlow(flowTable("北向资金", [2]string{"2026-10-14", "0"}), "2026-10-14", false, testAt)
		require.NoError(t, err)
		assert.True(t, f.NorthInflow.IsZero())
		assert.True(t, f.NorthOutflow.IsZero())
	})

	t.Run("no values", func(t *testing.T) {
		_, err := CapitalFlow(flowTable("北向资金", [2]string{"2026-10-14", ""}), "2026-10-14", false, testAt)
		assert.ErrorIs(t, err, core.ErrNoData)
	})

	t.Run("unknown schema", func(t *testing.T) {
		tbl := collector.NewTable(collector.Dataset{Name: "x"}, nil, []collector.Row{{"foo": "1"}})
		_, err := CapitalFlow(tbl, "2026-10-14", false, testAt)
		assert.ErrorIs(t, err, core.ErrMalformedRow)
	})
}
