// Package fetch wraps calls into the upstream provider with pacing, bounded
// retries and exponential backoff.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/newthinker/stock-mcp/internal/core"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Status is the outcome of a fetch.
type Status int

const (
	// StatusOK means the operation returned a value.
	StatusOK Status = iota
	// StatusEmpty means the upstream answered with a valid "no data".
	StatusEmpty
	// StatusFailed means every attempt failed or the caller gave up.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusEmpty:
		return "empty"
	default:
		return "failed"
	}
}

// Result carries the value or the reason there is none.
type Result[T any] struct {
	Value    T
	Status   Status
	Err      error
	Attempts int
}

// OK reports whether Value is usable.
func (r Result[T]) OK() bool {
	return r.Status == StatusOK
}

// Observer receives one event per upstream attempt.
type Observer interface {
	RecordUpstreamAttempt(dataset, outcome string, duration float64)
}

// Config holds retry tuning.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration // backoff after attempt k is BaseDelay * 2^k
	Pacing      time.Duration // minimum spacing between upstream calls, 0 disables
	CallTimeout time.Duration // per-attempt deadline, 0 disables
}

// DefaultConfig returns 3 attempts, 1s base backoff and 500ms pacing.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Pacing:      500 * time.Millisecond,
		CallTimeout: 30 * time.Second,
	}
}

// Executor runs upstream operations. It keeps no per-call state; the pacing
// limiter is shared by every caller so the aggregate upstream rate is bounded.
type Executor struct {
	cfg      Config
	limiter  *rate.Limiter
	logger   *zap.Logger
	observer Observer
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithObserver reports attempts to o.
func WithObserver(o Observer) Option {
	return func(e *Executor) {
		e.observer = o
	}
}

// New creates an executor.
func New(cfg Config, opts ...Option) (*Executor, error) {
	if cfg.MaxAttempts < 1 {
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("max_attempts must be at least 1, got %d", cfg.MaxAttempts))
	}
	if cfg.BaseDelay < 0 || cfg.Pacing < 0 || cfg.CallTimeout < 0 {
		return nil, core.WrapError(core.ErrConfigInvalid, errors.New("fetch durations cannot be negative"))
	}

	limit := rate.Inf
	if cfg.Pacing > 0 {
		limit = rate.Every(cfg.Pacing)
	}

	e := &Executor{
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the executor settings.
func (e *Executor) Config() Config {
	return e.cfg
}

// Backoff returns the wait after the zero-based attempt k.
func (e *Executor) Backoff(k int) time.Duration {
	return e.cfg.BaseDelay * time.Duration(1<<uint(k))
}

// Do runs op until it succeeds, reports no data, the attempt budget is
// spent, or ctx is done. Errors matching core.ErrNoData or core.ErrNotFound
// are final and yield StatusEmpty.
func Do[T any](ctx context.Context, e *Executor, dataset string, op func(context.Context) (T, error)) Result[T] {
	var res Result[T]
	var lastErr error

	for attempt := 0; attempt < e.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, e.Backoff(attempt-1)); err != nil {
				res.Status, res.Err = StatusFailed, err
				return res
			}
		}
		if err := e.limiter.Wait(ctx); err != nil {
			res.Status, res.Err = StatusFailed, err
			return res
		}

		res.Attempts++
		value, took, err := callOnce(ctx, e.cfg.CallTimeout, op)

		switch {
		case err == nil:
			e.observe(dataset, "ok", took)
			res.Value, res.Status = value, StatusOK
			return res

		case isEmpty(err):
			e.observe(dataset, "empty", took)
			e.logger.Debug("upstream returned no data", zap.String("dataset", dataset), zap.Error(err))
			res.Status, res.Err = StatusEmpty, err
			return res

		case ctx.Err() != nil:
			e.observe(dataset, "error", took)
			res.Status, res.Err = StatusFailed, ctx.Err()
			return res
		}

		e.observe(dataset, "error", took)
		lastErr = err
		if attempt < e.cfg.MaxAttempts-1 {
			e.logger.Warn("upstream attempt failed, retrying",
				zap.String("dataset", dataset),
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", e.Backoff(attempt)),
				zap.Error(err),
			)
		}
	}

	e.logger.Error("upstream fetch failed",
		zap.String("dataset", dataset),
		zap.Int("attempts", res.Attempts),
		zap.Error(lastErr),
	)
	res.Status = StatusFailed
	res.Err = fmt.Errorf("%s failed after %d attempts: %w", dataset, res.Attempts, lastErr)
	return res
}

// callOnce runs one attempt under the per-call deadline.
func callOnce[T any](ctx context.Context, timeout time.Duration, op func(context.Context) (T, error)) (T, time.Duration, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	start := time.Now()
	v, err := op(ctx)
	return v, time.Since(start), err
}

func (e *Executor) observe(dataset, outcome string, took time.Duration) {
	if e.observer != nil {
		e.observer.RecordUpstreamAttempt(dataset, outcome, took.Seconds())
	}
}

func isEmpty(err error) bool {
	return errors.Is(err, core.ErrNoData) || errors.Is(err, core.ErrNotFound)
}

// sleep waits for d unless ctx is done first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
