// Package cache implements the client's keyed request cache: TTL-based
// staleness with background revalidation, per-key request coalescing,
// predicate invalidation, and mutations with optimistic updates.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrDisabled is returned by Query when the Enabled condition evaluates
// false: no fetch is issued and the entry stays absent.
var ErrDisabled = errors.New("cache: query disabled")

// Fetcher loads the value for a key from the network.
type Fetcher func(ctx context.Context) (any, error)

// Options tune a single query.
type Options struct {
	// StaleAfter is how long a populated entry is served without triggering
	// a background refetch. Zero uses the store default.
	StaleAfter time.Duration

	// EvictAfter is how long an unobserved entry survives before the
	// janitor removes it. Zero uses the store default.
	EvictAfter time.Duration

	// Enabled gates the query. When it returns false (e.g. a required id is
	// not known yet), Query returns ErrDisabled without fetching.
	Enabled func() bool
}

type entryState int

const (
	stateLoading entryState = iota
	statePopulated
	stateError
)

// entry is the cached record for one key. All fields are guarded by the
// store mutex.
type entry struct {
	key   Key
	state entryState
	value any
	err   error

	fetchedAt    time.Time
	lastObserved time.Time
	staleAfter   time.Duration
	evictAfter   time.Duration

	// invalidated forces the next Query to fetch fresh instead of serving
	// the cached value.
	invalidated bool
}

// Store is the process-wide request cache.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	group   singleflight.Group
	logger  *slog.Logger

	defaultStaleAfter time.Duration
	defaultEvictAfter time.Duration

	now  func() time.Time
	stop chan struct{}
	done chan struct{}
}

// Config holds store-wide defaults.
type Config struct {
	StaleAfter      time.Duration
	EvictAfter      time.Duration
	JanitorInterval time.Duration
}

// DefaultConfig returns the cache defaults used by the client.
func DefaultConfig() Config {
	return Config{
		StaleAfter:      2 * time.Minute,
		EvictAfter:      10 * time.Minute,
		JanitorInterval: time.Minute,
	}
}

// New creates a Store and starts its eviction janitor.
func New(cfg Config, log *slog.Logger) *Store {
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultConfig().StaleAfter
	}
	if cfg.EvictAfter <= 0 {
		cfg.EvictAfter = DefaultConfig().EvictAfter
	}
	if cfg.JanitorInterval <= 0 {
		cfg.JanitorInterval = DefaultConfig().JanitorInterval
	}

	s := &Store{
		entries:           make(map[string]*entry),
		logger:            log,
		defaultStaleAfter: cfg.StaleAfter,
		defaultEvictAfter: cfg.EvictAfter,
		now:               time.Now,
		stop:              make(chan struct{}),
		done:              make(chan struct{}),
	}
	go s.janitor(cfg.JanitorInterval)
	return s
}

// Close stops the eviction janitor.
func (s *Store) Close() {
	close(s.stop)
	<-s.done
}

// Query returns the value for key, fetching it if needed.
//
// Semantics:
//   - absent, errored, or explicitly invalidated entries block on a fetch,
//     coalesced so concurrent queries for the same key share one network call;
//   - fresh entries are served from cache;
//   - entries past StaleAfter are served immediately and refreshed in the
//     background (stale-while-revalidate).
func (s *Store) Query(ctx context.Context, key Key, fetch Fetcher, opts Options) (any, error) {
	if opts.Enabled != nil && !opts.Enabled() {
		return nil, ErrDisabled
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = s.defaultStaleAfter
	}
	if opts.EvictAfter <= 0 {
		opts.EvictAfter = s.defaultEvictAfter
	}

	id := key.String()

	s.mu.Lock()
	e, ok := s.entries[id]
	if ok {
		e.lastObserved = s.now()
		e.staleAfter = opts.StaleAfter
		e.evictAfter = opts.EvictAfter
	}

	switch {
	case ok && e.state == statePopulated && !e.invalidated:
		value := e.value
		isStale := s.now().Sub(e.fetchedAt) > e.staleAfter
		s.mu.Unlock()

		if isStale {
			queryStaleServes.Inc()
			s.refreshInBackground(ctx, key, fetch)
		} else {
			queryHits.Inc()
		}
		return value, nil

	default:
		// Absent, loading elsewhere, errored, or invalidated: fetch now.
		// Singleflight collapses concurrent fetches for the same key.
		if !ok {
			e = &entry{key: key, state: stateLoading, lastObserved: s.now(),
				staleAfter: opts.StaleAfter, evictAfter: opts.EvictAfter}
			s.entries[id] = e
		}
		s.mu.Unlock()

		queryMisses.Inc()
		return s.fetchShared(ctx, key, fetch)
	}
}

// fetchShared performs the coalesced fetch for key and records the outcome.
func (s *Store) fetchShared(ctx context.Context, key Key, fetch Fetcher) (any, error) {
	id := key.String()
	value, err, shared := s.group.Do(id, func() (any, error) {
		return fetch(ctx)
	})
	if shared {
		queryCoalesced.Inc()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		e = &entry{key: key, lastObserved: s.now(),
			staleAfter: s.defaultStaleAfter, evictAfter: s.defaultEvictAfter}
		s.entries[id] = e
	}

	if err != nil {
		e.state = stateError
		e.err = err
		e.value = nil
		return nil, err
	}

	e.state = statePopulated
	e.value = value
	e.err = nil
	e.fetchedAt = s.now()
	e.invalidated = false
	return value, nil
}

// refreshInBackground revalidates a stale entry without blocking the caller.
// The refresh outlives the caller's context deadline but not its values.
func (s *Store) refreshInBackground(ctx context.Context, key Key, fetch Fetcher) {
	bg := context.WithoutCancel(ctx)
	go func() {
		if _, err := s.fetchShared(bg, key, fetch); err != nil {
			s.logger.Debug("background revalidation failed",
				slog.String("key", key.String()),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// Invalidate marks every entry matching any predicate so the next Query
// fetches fresh data.
func (s *Store) Invalidate(preds ...Predicate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		for _, pred := range preds {
			if pred(e.key) {
				e.invalidated = true
				invalidationsTotal.Inc()
				break
			}
		}
	}
}

// Set stores value for key directly, bypassing a fetch. Used by optimistic
// updates; normal writes go through Mutate.
func (s *Store) Set(key Key, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := key.String()
	e, ok := s.entries[id]
	if !ok {
		e = &entry{key: key, lastObserved: s.now(),
			staleAfter: s.defaultStaleAfter, evictAfter: s.defaultEvictAfter}
		s.entries[id] = e
	}
	e.state = statePopulated
	e.value = value
	e.err = nil
	e.fetchedAt = s.now()
}

// Snapshot returns the current value for key, if populated.
func (s *Store) Snapshot(key Key) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key.String()]
	if !ok || e.state != statePopulated {
		return nil, false
	}
	return e.value, true
}

// Remove drops the entry for key entirely.
func (s *Store) Remove(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key.String())
}

// Len returns the number of cached entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) janitor(interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.evictExpired()
		case <-s.stop:
			return
		}
	}
}

// evictExpired removes entries that have gone unobserved past their
// evictAfter window.
func (s *Store) evictExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, e := range s.entries {
		if now.Sub(e.lastObserved) > e.evictAfter {
			delete(s.entries, id)
			evictionsTotal.Inc()
		}
	}
}

// QueryAs is the typed wrapper over Store.Query.
func QueryAs[T any](ctx context.Context, s *Store, key Key, fetch func(context.Context) (T, error), opts Options) (T, error) {
	var zero T
	v, err := s.Query(ctx, key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	}, opts)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, errors.New("cache: cached value has unexpected type")
	}
	return typed, nil
}
