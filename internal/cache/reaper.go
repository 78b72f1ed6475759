package cache

import (
	"fmt"

	"github.com/newthinker/stock-mcp/internal/core"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Reaper periodically purges expired entries so the store does not grow
// with one-off signatures.
type Reaper struct {
	cron   *cron.Cron
	store  *Store
	logger *zap.Logger
}

// NewReaper schedules store.Purge on a cron spec such as "@every 1m".
func NewReaper(store *Store, schedule string, logger *zap.Logger) (*Reaper, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Reaper{
		cron:   cron.New(),
		store:  store,
		logger: logger,
	}
	if _, err := r.cron.AddFunc(schedule, r.reap); err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("reap schedule %q: %w", schedule, err))
	}
	return r, nil
}

func (r *Reaper) reap() {
	if n := r.store.Purge(); n > 0 {
		r.logger.Debug("purged expired cache entries", zap.Int("removed", n), zap.Int("remaining", r.store.Len()))
	}
}

// Start begins the schedule in the background.
func (r *Reaper) Start() {
	r.cron.Start()
}

// Stop halts the schedule and waits for a running purge to finish.
func (r *Reaper) Stop() {
	<-r.cron.Stop().Done()
}
