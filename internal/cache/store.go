// Package cache is a short-lived in-process store for market data snapshots.
package cache

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/newthinker/stock-mcp/internal/core"
	"go.uber.org/zap"
)

// Params distinguishes entries within a namespace, e.g. index_code or date.
type Params map[string]string

// Signature canonicalises a namespace and its params so that equivalent
// lookups compare equal regardless of argument order.
func Signature(namespace string, params Params) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(namespace)
	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	return b.String()
}

// Observer receives cache statistics.
type Observer interface {
	RecordCacheLookup(namespace string, hit bool)
	SetCacheEntries(n int)
}

// Config holds cache tuning.
type Config struct {
	DefaultTTL time.Duration
	TTLs       map[string]time.Duration // per namespace
	MaxEntries int                      // 0 means unbounded
}

type entry struct {
	value     any
	expiresAt time.Time
}

// Store maps signatures to values with per-namespace expiry. Expired
// entries read as absent.
type Store struct {
	mu       sync.Mutex
	entries  *lru.Cache[string, entry]
	cfg      Config
	now      func() time.Time
	observer Observer
	logger   *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithObserver reports lookups and size to o.
func WithObserver(o Observer) Option {
	return func(s *Store) {
		s.observer = o
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a store.
func New(cfg Config, opts ...Option) (*Store, error) {
	if cfg.DefaultTTL <= 0 {
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("cache default ttl must be positive, got %s", cfg.DefaultTTL))
	}
	for ns, ttl := range cfg.TTLs {
		if ttl <= 0 {
			return nil, core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("cache ttl for %q must be positive, got %s", ns, ttl))
		}
	}
	if cfg.MaxEntries < 0 {
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("cache max_entries cannot be negative, got %d", cfg.MaxEntries))
	}

	size := cfg.MaxEntries
	if size == 0 {
		size = math.MaxInt32
	}
	entries, err := lru.New[string, entry](size)
	if err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, err)
	}

	s := &Store{
		entries: entries,
		cfg:     cfg,
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TTL returns the time-to-live applied to namespace.
func (s *Store) TTL(namespace string) time.Duration {
	if ttl, ok := s.cfg.TTLs[namespace]; ok {
		return ttl
	}
	return s.cfg.DefaultTTL
}

// Get returns the live value stored under namespace+params.
func (s *Store) Get(namespace string, params Params) (value any, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("cache get failed, treating as miss",
				zap.Error(core.WrapError(core.ErrCacheFailure, fmt.Errorf("%v", r))),
				zap.String("namespace", namespace),
			)
			value, ok = nil, false
		}
	}()

	key := Signature(namespace, params)

	s.mu.Lock()
	e, found := s.entries.Get(key)
	if found && !s.now().Before(e.expiresAt) {
		s.entries.Remove(key)
		found = false
	}
	n := s.entries.Len()
	s.mu.Unlock()

	if s.observer != nil {
		s.observer.RecordCacheLookup(namespace, found)
		s.observer.SetCacheEntries(n)
	}
	if !found {
		return nil, false
	}
	return e.value, true
}

// Set stores value under namespace+params, expiring after the namespace TTL.
func (s *Store) Set(namespace string, value any, params Params) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("cache set failed, entry dropped",
				zap.Error(core.WrapError(core.ErrCacheFailure, fmt.Errorf("%v", r))),
				zap.String("namespace", namespace),
			)
		}
	}()

	key := Signature(namespace, params)

	s.mu.Lock()
	s.entries.Add(key, entry{value: value, expiresAt: s.now().Add(s.TTL(namespace))})
	n := s.entries.Len()
	s.mu.Unlock()

	if s.observer != nil {
		s.observer.SetCacheEntries(n)
	}
}

// Purge drops every expired entry and returns how many were removed.
func (s *Store) Purge() int {
	s.mu.Lock()
	now := s.now()
	removed := 0
	for _, key := range s.entries.Keys() {
		if e, ok := s.entries.Peek(key); ok && !now.Before(e.expiresAt) {
			s.entries.Remove(key)
			removed++
		}
	}
	n := s.entries.Len()
	s.mu.Unlock()

	if s.observer != nil {
		s.observer.SetCacheEntries(n)
	}
	return removed
}

// Len returns the number of entries, expired or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries.Len()
}

// Clear removes all entries.
func (s *Store) Clear() {
	s.mu.Lock()
	s.entries.Purge()
	s.mu.Unlock()

	if s.observer != nil {
		s.observer.SetCacheEntries(0)
	}
}
