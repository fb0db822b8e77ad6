package cache

import (
	"context"
	"errors"

	apperrors "github.com/KshitijGomber/arrow3-sub001/pkg/errors"
)

// Optimistic describes a speculative cache update applied before the write
// is confirmed. A snapshot of the prior value is kept; on failure the
// snapshot is restored.
type Optimistic struct {
	// Key is the cache entry the update applies to.
	Key Key

	// Apply produces the speculative value from the current one. current is
	// nil when the key has never been populated.
	Apply func(current any) any
}

// MutationOpts configure a write performed through the cache.
type MutationOpts struct {
	// Invalidates lists the entries made stale once the write settles,
	// regardless of outcome, so reads reconcile against the server's truth.
	Invalidates []Predicate

	// OnSuccess receives the server response after a successful write.
	OnSuccess func(resp any)

	// Optimistic, when set, applies a speculative update before the write
	// and rolls it back on failure.
	Optimistic *Optimistic
}

// Mutate performs a write and keeps the cache consistent with it.
//
// Writes are retried at most once, and only for server errors; client
// errors (4xx) surface immediately. After settlement the Invalidates
// predicates are applied whether the write succeeded or not.
func (s *Store) Mutate(ctx context.Context, run Fetcher, opts MutationOpts) (any, error) {
	var snapshot any
	var hadValue bool

	if opts.Optimistic != nil {
		snapshot, hadValue = s.Snapshot(opts.Optimistic.Key)
		var current any
		if hadValue {
			current = snapshot
		}
		s.Set(opts.Optimistic.Key, opts.Optimistic.Apply(current))
		optimisticUpdatesTotal.Inc()
	}

	resp, err := run(ctx)
	if err != nil && apperrors.Status(err) >= 500 {
		mutationRetriesTotal.Inc()
		resp, err = run(ctx)
	}

	if err != nil && opts.Optimistic != nil {
		// Roll the speculative value back to the pre-mutation snapshot.
		if hadValue {
			s.Set(opts.Optimistic.Key, snapshot)
		} else {
			s.Remove(opts.Optimistic.Key)
		}
		optimisticRollbacksTotal.Inc()
	}

	// Settle: invalidate related entries in both outcomes so the next read
	// refetches the server's state.
	if len(opts.Invalidates) > 0 {
		s.Invalidate(opts.Invalidates...)
	}

	if err != nil {
		return nil, err
	}
	if opts.OnSuccess != nil {
		opts.OnSuccess(resp)
	}
	return resp, nil
}

// MutateAs is the typed wrapper over Store.Mutate.
func MutateAs[T any](ctx context.Context, s *Store, run func(context.Context) (T, error), opts MutationOpts) (T, error) {
	var zero T
	resp, err := s.Mutate(ctx, func(ctx context.Context) (any, error) {
		return run(ctx)
	}, opts)
	if err != nil {
		return zero, err
	}
	typed, ok := resp.(T)
	if !ok {
		return zero, errors.New("cache: mutation response has unexpected type")
	}
	return typed, nil
}
