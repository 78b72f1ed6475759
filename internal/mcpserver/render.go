package mcpserver

import (
	"strings"

	"github.com/newthinker/stock-mcp/internal/core"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func printer() *message.Printer {
	return message.NewPrinter(language.SimplifiedChinese)
}

func noDataText(dt core.DataType) string {
	switch dt {
	case core.DataBreadth:
		return "暂无市场宽度数据（仅提供最新交易日）"
	case core.DataCapitalFlow:
		return "暂无资金流向数据"
	case core.DataAll:
		return "暂无市场数据"
	}
	return "暂无实时行情数据"
}

func signed(d decimal.Decimal) string {
	s := d.StringFixed(2)
	if d.IsPositive() {
		return "+" + s
	}
	return s
}

func summarizeIndex(idx *core.MarketIndex) string {
	state := "交易中"
	if idx.Status == core.StatusClosed {
		state = "已收盘"
	}
	return printer().Sprintf("%s(%s) %s %s (%s%%) 成交额 %s 元，%s，交易日 %s",
		idx.Name, idx.Code, idx.Current.StringFixed(2), signed(idx.Change), signed(idx.ChangePct),
		idx.Amount.StringFixed(0), state, idx.TradingDate)
}

func summarizeBreadth(b *core.MarketBreadth) string {
	return printer().Sprintf("%s 共 %d 只：上涨 %d，下跌 %d，平盘 %d；涨停 %d，跌停 %d；涨跌比 %s",
		b.Date, b.TotalStocks, b.Advancing, b.Declining, b.Unchanged,
		b.LimitUp, b.LimitDown, b.AdvanceDeclineRatio.StringFixed(2))
}

func summarizeFlow(cf *core.CapitalFlow) string {
	switch cf.NorthNet.Sign() {
	case 1:
		return printer().Sprintf("%s 北向资金净流入 %s", cf.Date, cf.NorthInflow.StringFixed(2))
	case -1:
		return printer().Sprintf("%s 北向资金净流出 %s", cf.Date, cf.NorthOutflow.StringFixed(2))
	}
	return printer().Sprintf("%s 北向资金持平", cf.Date)
}

func summarize(v any) string {
	switch r := v.(type) {
	case *core.MarketIndex:
		return summarizeIndex(r)
	case *core.MarketBreadth:
		return summarizeBreadth(r)
	case *core.CapitalFlow:
		return summarizeFlow(r)
	case core.MarketOverview:
		return summarizeOverview(r)
	}
	return ""
}

func summarizeOverview(ov core.MarketOverview) string {
	var lines []string
	if ov.Index != nil {
		lines = append(lines, summarizeIndex(ov.Index))
	}
	if ov.Breadth != nil {
		lines = append(lines, summarizeBreadth(ov.Breadth))
	}
	if ov.CapitalFlow != nil {
		lines = append(lines, summarizeFlow(ov.CapitalFlow))
	}
	return strings.Join(lines, "\n")
}
