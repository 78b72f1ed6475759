// Package aktools reads AKShare datasets through an AKTools HTTP gateway.
package aktools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/newthinker/stock-mcp/internal/collector"
	"github.com/newthinker/stock-mcp/internal/core"
	"github.com/tidwall/gjson"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

const (
	defaultBaseURL = "http://127.0.0.1:8080"
	defaultTimeout = 15 * time.Second
	publicPath     = "/api/public/"

	// The full A-share spot table is a few MB.
	maxBodyBytes = 32 << 20
)

const userAgent = "stock-mcp/1.0"

// AKTools implements collector.TableSource over the AKTools REST gateway
type AKTools struct {
	client  *http.Client
	baseURL string
}

// New creates a new AKTools source with default settings
func New() *AKTools {
	return &AKTools{
		client: &http.Client{
			Timeout: defaultTimeout,
		},
		baseURL: defaultBaseURL,
	}
}

func (a *AKTools) Name() string {
	return "aktools"
}

func (a *AKTools) Init(cfg collector.Config) error {
	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("aktools base_url %q", cfg.BaseURL))
		}
		a.baseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.Timeout > 0 {
		a.client.Timeout = cfg.Timeout
	}
	return nil
}

// datasetURL builds {base}/api/public/{name}?{params}
func (a *AKTools) datasetURL(ds collector.Dataset) string {
	u := a.baseURL + publicPath + ds.Name
	if len(ds.Params) > 0 {
		q := url.Values{}
		for k, v := range ds.Params {
			q.Set(k, v)
		}
		u += "?" + q.Encode()
	}
	return u
}

// FetchTable downloads one dataset and decodes it into rows.
func (a *AKTools) FetchTable(ctx context.Context, ds collector.Dataset) (*collector.Table, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.datasetURL(ds), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, core.WrapError(core.ErrUpstreamTimeout, fmt.Errorf("fetching %s: %w", ds, err))
		}
		return nil, core.WrapError(core.ErrUpstreamFailed, fmt.Errorf("fetching %s: %w", ds, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(bodyReader(resp))
	if err != nil {
		return nil, core.WrapError(core.ErrUpstreamFailed, fmt.Errorf("reading %s: %w", ds, err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, core.WrapError(core.ErrUpstreamFailed,
			fmt.Errorf("%s: http %d: %s", ds, resp.StatusCode, truncate(body, 200)))
	}

	return decodeTable(ds, body)
}

// decodeTable parses a JSON array of objects. Numbers keep their literal text.
func decodeTable(ds collector.Dataset, body []byte) (*collector.Table, error) {
	if !gjson.ValidBytes(body) {
		return nil, core.WrapError(core.ErrUpstreamFailed, fmt.Errorf("%s: invalid json", ds))
	}

	doc := gjson.ParseBytes(body)
	if !doc.IsArray() {
		return nil, core.WrapError(core.ErrUpstreamFailed,
			fmt.Errorf("%s: expected array, got %s", ds, truncate(body, 200)))
	}

	var columns []string
	var rows []collector.Row
	doc.ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			return true
		}
		row := make(collector.Row)
		item.ForEach(func(key, val gjson.Result) bool {
			if len(rows) == 0 {
				columns = append(columns, key.String())
			}
			switch val.Type {
			case gjson.Null:
			case gjson.String:
				row[key.String()] = val.Str
			default:
				row[key.String()] = val.Raw
			}
			return true
		})
		rows = append(rows, row)
		return true
	})

	if len(rows) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("%s returned no rows", ds))
	}
	return collector.NewTable(ds, columns, rows), nil
}

// bodyReader decodes GB-family charsets, which some gateway deployments
// still declare, to UTF-8.
func bodyReader(resp *http.Response) io.Reader {
	r := io.LimitReader(resp.Body, maxBodyBytes)
	_, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return r
	}
	switch strings.ToLower(params["charset"]) {
	case "gbk", "gb2312", "gb18030":
		return transform.NewReader(r, simplifiedchinese.GB18030.NewDecoder())
	}
	return r
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
