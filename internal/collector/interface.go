package collector

import (
	"context"
	"time"
)

// Config holds table source configuration
type Config struct {
	Enabled bool
	BaseURL string
	Timeout time.Duration
	Extra   map[string]any
}

// TableSource is the upstream data provider boundary: it fetches a named
// tabular dataset and returns rows of named columns.
//
// FetchTable returns an error wrapping core.ErrNoData when the dataset is
// valid but currently has no rows. Any other error is treated as transient.
type TableSource interface {
	Name() string
	Init(cfg Config) error
	FetchTable(ctx context.Context, ds Dataset) (*Table, error)
}
