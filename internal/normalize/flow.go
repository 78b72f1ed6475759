package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/newthinker/stock-mcp/internal/collector"
	"github.com/newthinker/stock-mcp/internal/core"
)

// CapitalFlow takes the latest published northbound net flow from a
// time-ordered table. When pinned is set the row for date is used instead,
// and an undated table cannot answer.
func CapitalFlow(tbl *collector.Table, date string, pinned bool, at time.Time) (*core.CapitalFlow, error) {
	netCol := ""
	for _, c := range FlowNetColumns {
		if tbl.HasColumn(c) {
			netCol = c
			break
		}
	}
	if netCol == "" {
		return nil, core.WrapError(core.ErrMalformedRow,
			fmt.Errorf("%s has none of %v", tbl.Dataset, FlowNetColumns))
	}

	dated := tbl.HasColumn(ColDate)
	if pinned && !dated {
		return nil, core.WrapError(core.ErrNotFound,
			fmt.Errorf("%s has no %s column to find %s", tbl.Dataset, ColDate, date))
	}

	for i := len(tbl.Rows) - 1; i >= 0; i-- {
		row := tbl.Rows[i]
		rowDate := date
		if dated {
			if v, ok := row.Value(ColDate); ok && len(v) >= len(core.DateLayout) {
				rowDate = v[:len(core.DateLayout)]
			}
			if pinned && rowDate != date {
				continue
			}
		}

		net, ok, err := cell(row, netCol)
		if err != nil {
			return nil, err
		}
		if !ok {
			if pinned && dated {
				return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no northbound flow published for %s", date))
			}
			continue
		}

		flow := core.NewCapitalFlow(net, strings.TrimSpace(rowDate), at)
		return &flow, nil
	}

	if pinned && dated {
		return nil, core.WrapError(core.ErrNotFound, fmt.Errorf("no northbound flow row for %s", date))
	}
	return nil, core.WrapError(core.ErrNoData, fmt.Errorf("%s has no northbound flow values", tbl.Dataset))
}
