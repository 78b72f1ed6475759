package eastmoney

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/stock-mcp/internal/collector"
	"github.com/newthinker/stock-mcp/internal/core"
	"github.com/tidwall/gjson"
)

const (
	defaultBaseURL = "https://push2.eastmoney.com"
	clistPath      = "/api/qt/clist/get"
	pageSize       = 100
	maxPages       = 100
	ut             = "bd1d9ddb04089700cf9c27f6f7426281"
)

// fieldColumns maps push2 field ids to the column headers the normalizer
// reads. Requests use fltt=2 so prices arrive as plain decimals.
var fieldColumns = []struct{ field, column string }{
	{"f12", "代码"},
	{"f14", "名称"},
	{"f2", "最新价"},
	{"f3", "涨跌幅"},
	{"f4", "涨跌额"},
	{"f5", "成交量"},
	{"f6", "成交额"},
	{"f7", "振幅"},
	{"f8", "换手率"},
	{"f15", "最高"},
	{"f16", "最低"},
	{"f17", "今开"},
	{"f18", "昨收"},
}

// Index lists by symbol, as named in the AKShare dataset parameters.
var indexLists = map[string]string{
	"沪深重要指数": "b:MK0010",
	"上证系列指数": "m:1 t:1",
	"深证系列指数": "m:0 t:5",
	"中证系列指数": "m:2",
}

const aShareList = "m:0 t:6,m:0 t:80,m:1 t:2,m:1 t:23,m:0 t:81 s:2048"

// Eastmoney serves the spot datasets straight from the push2 list API,
// without an AKTools gateway. Northbound flow is not available here.
type Eastmoney struct {
	client  *http.Client
	baseURL string
}

// New creates a new Eastmoney source
func New() *Eastmoney {
	return &Eastmoney{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: defaultBaseURL,
	}
}

func (e *Eastmoney) Name() string {
	return "eastmoney"
}

func (e *Eastmoney) Init(cfg collector.Config) error {
	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("eastmoney base_url %q", cfg.BaseURL))
		}
		e.baseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.Timeout > 0 {
		e.client.Timeout = cfg.Timeout
	}
	return nil
}

// listFilter returns the push2 "fs" filter for a dataset.
func listFilter(ds collector.Dataset) (string, error) {
	switch ds.Name {
	case "stock_zh_index_spot_em":
		symbol := ds.Params["symbol"]
		if symbol == "" {
			symbol = "沪深重要指数"
		}
		fs, ok := indexLists[symbol]
		if !ok {
			return "", core.WrapError(core.ErrNotFound, fmt.Errorf("eastmoney has no index list %q", symbol))
		}
		return fs, nil
	case "stock_zh_a_spot_em":
		return aShareList, nil
	}
	return "", core.WrapError(core.ErrNotFound, fmt.Errorf("eastmoney does not serve %s", ds))
}

// FetchTable pages through the list for ds and returns one row per security.
func (e *Eastmoney) FetchTable(ctx context.Context, ds collector.Dataset) (*collector.Table, error) {
	fs, err := listFilter(ds)
	if err != nil {
		return nil, err
	}

	var rows []collector.Row
	for page := 1; page <= maxPages; page++ {
		body, err := e.get(ctx, fs, page)
		if err != nil {
			return nil, fmt.Errorf("%s page %d: %w", ds, page, err)
		}

		doc := gjson.ParseBytes(body)
		diff := doc.Get("data.diff")
		if !diff.Exists() {
			break
		}
		diff.ForEach(func(_, item gjson.Result) bool {
			rows = append(rows, toRow(item))
			return true
		})

		if total := int(doc.Get("data.total").Int()); len(rows) >= total || len(diff.Array()) < pageSize {
			break
		}
	}

	if len(rows) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("%s returned no rows", ds))
	}

	columns := make([]string, 0, len(fieldColumns))
	for _, fc := range fieldColumns {
		columns = append(columns, fc.column)
	}
	return collector.NewTable(ds, columns, rows), nil
}

func (e *Eastmoney) get(ctx context.Context, fs string, page int) ([]byte, error) {
	fields := make([]string, 0, len(fieldColumns))
	for _, fc := range fieldColumns {
		fields = append(fields, fc.field)
	}
	q := url.Values{
		"pn":     {strconv.Itoa(page)},
		"pz":     {strconv.Itoa(pageSize)},
		"po":     {"1"},
		"np":     {"1"},
		"ut":     {ut},
		"fltt":   {"2"},
		"invt":   {"2"},
		"fid":    {"f3"},
		"fs":     {fs},
		"fields": {strings.Join(fields, ",")},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+clistPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, core.WrapError(core.ErrUpstreamFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, core.WrapError(core.ErrUpstreamFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, core.WrapError(core.ErrUpstreamFailed, fmt.Errorf("http %d", resp.StatusCode))
	}
	if !gjson.ValidBytes(body) {
		return nil, core.WrapError(core.ErrUpstreamFailed, fmt.Errorf("invalid json"))
	}
	return body, nil
}

// toRow keeps literal number text; "-" placeholders are left for the
// normalizer to treat as missing.
func toRow(item gjson.Result) collector.Row {
	row := make(collector.Row, len(fieldColumns))
	for _, fc := range fieldColumns {
		v := item.Get(fc.field)
		switch v.Type {
		case gjson.Null:
		case gjson.String:
			row[fc.column] = v.Str
		default:
			if v.Exists() {
				row[fc.column] = v.Raw
			}
		}
	}
	return row
}
