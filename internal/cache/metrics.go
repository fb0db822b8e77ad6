package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queryHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arrow3_cache_hits_total",
		Help: "Queries served from a fresh cache entry",
	})

	queryMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arrow3_cache_misses_total",
		Help: "Queries that had to fetch from the network",
	})

	queryStaleServes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arrow3_cache_stale_serves_total",
		Help: "Queries served a stale value while revalidating in the background",
	})

	queryCoalesced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arrow3_cache_coalesced_total",
		Help: "Queries that shared another in-flight fetch for the same key",
	})

	invalidationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arrow3_cache_invalidations_total",
		Help: "Cache entries marked stale by explicit invalidation",
	})

	evictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arrow3_cache_evictions_total",
		Help: "Cache entries removed after going unobserved past their evict window",
	})

	optimisticUpdatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arrow3_cache_optimistic_updates_total",
		Help: "Speculative cache updates applied before write confirmation",
	})

	optimisticRollbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arrow3_cache_optimistic_rollbacks_total",
		Help: "Speculative cache updates rolled back after a failed write",
	})

	mutationRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arrow3_cache_mutation_retries_total",
		Help: "Writes retried once after a server error",
	})
)
