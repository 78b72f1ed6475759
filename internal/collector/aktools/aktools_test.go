package aktools

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/newthinker/stock-mcp/internal/collector"
	"github.com/newthinker/stock-mcp/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"
)

func TestAKTools_ImplementsTableSource(t *testing.T) {
	var _ collector.TableSource = (*AKTools)(nil)
}

func TestAKTools_Name(t *testing.T) {
	a := New()
	if a.Name() != "aktools" {
		t.Errorf("expected 'aktools', got '%s'", a.Name())
	}
}

func TestAKTools_InitRejectsBadURL(t *testing.T) {
	a := New()
	err := a.Init(collector.Config{BaseURL: "not a url"})
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))
}

func TestAKTools_DatasetURL(t *testing.T) {
	a := New()
	require.NoError(t, a.Init(collector.Config{BaseURL: "http://gateway:8080/"}))

	tests := []struct {
		ds   collector.Dataset
		want string
	}{
		{collector.Dataset{Name: "stock_zh_a_spot_em"}, "http://gateway:8080/api/public/stock_zh_a_spot_em"},
		{
			collector.Dataset{Name: "stock_hsgt_hist_em", Params: map[string]string{"symbol": "北向资金"}},
			"http://gateway:8080/api/public/stock_hsgt_hist_em?symbol=%E5%8C%97%E5%90%91%E8%B5%84%E9%87%91",
		},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, a.datasetURL(tc.ds))
	}
}

func newServer(t *testing.T, status int, body string) *AKTools {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	a := New()
	require.NoError(t, a.Init(collector.Config{BaseURL: srv.URL, Timeout: time.Second}))
	return a
}

func TestAKTools_FetchTable(t *testing.T) {
	body := `[
		{"序号":1,"代码":"000001","名称":"上证指数","最新价":3021.45,"成交量":3.5e8,"换手率":null},
		{"序号":2,"代码":"399001","名称":"深证成指","最新价":9876.1,"成交量":123456,"换手率":1.25}
	]`
	a := newServer(t, http.StatusOK, body)

	tbl, err := a.FetchTable(context.Background(), collector.Dataset{Name: "stock_zh_index_spot_em"})
	require.NoError(t, err)
	require.Equal(t, 2, tbl.Len())

	assert.Equal(t, []string{"序号", "代码", "名称", "最新价", "成交量", "换手率"}, tbl.Columns)

	first := tbl.Rows[0]
	assert.Equal(t, "000001", first["代码"])
	assert.Equal(t, "3021.45", first["最新价"])
	assert.Equal(t, "3.5e8", first["成交量"], "number literal must be preserved")
	_, hasTurnover := first.Value("换手率")
	assert.False(t, hasTurnover, "null cells are absent")

	assert.Equal(t, "1.25", tbl.Rows[1]["换手率"])
}

func TestAKTools_FetchTable_Empty(t *testing.T) {
	a := newServer(t, http.StatusOK, `[]`)

	_, err := a.FetchTable(context.Background(), collector.Dataset{Name: "stock_zh_a_spot_em"})
	assert.True(t, errors.Is(err, core.ErrNoData))
}

func TestAKTools_FetchTable_HTTPError(t *testing.T) {
	a := newServer(t, http.StatusBadGateway, `upstream down`)

	_, err := a.FetchTable(context.Background(), collector.Dataset{Name: "stock_zh_a_spot_em"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrUpstreamFailed))
	assert.False(t, errors.Is(err, core.ErrNoData))
}

func TestAKTools_FetchTable_Malformed(t *testing.T) {
	tests := []string{`{"error":"bad symbol"}`, `[{"代码":`}

	for _, body := range tests {
		a := newServer(t, http.StatusOK, body)
		_, err := a.FetchTable(context.Background(), collector.Dataset{Name: "x"})
		assert.True(t, errors.Is(err, core.ErrUpstreamFailed), body)
	}
}

func TestAKTools_FetchTable_ContextCancelled(t *testing.T) {
	a := newServer(t, http.StatusOK, `[]`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.FetchTable(ctx, collector.Dataset{Name: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestAKTools_FetchTable_GBK(t *testing.T) {
	body, err := simplifiedchinese.GBK.NewEncoder().String(`[{"代码":"000001","名称":"上证指数"}]`)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=GBK")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	a := New()
	require.NoError(t, a.Init(collector.Config{BaseURL: srv.URL}))

	tbl, err := a.FetchTable(context.Background(), collector.Dataset{Name: "stock_zh_index_spot_em"})
	require.NoError(t, err)
	require.Equal(t, 1, tbl.Len())
	name, _ := tbl.Rows[0].Value("名称")
	assert.Equal(t, "上证指数", name)
	assert.True(t, tbl.HasColumn("代码"))
}
