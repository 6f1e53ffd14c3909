// Package metrics registers the ledger's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DocumentLoads counts documents fetched from the engine, by outcome.
	DocumentLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "partyledger_document_loads_total",
		Help: "Documents loaded from the document engine.",
	}, []string{"outcome"})

	// CacheHits counts read-through cache hits.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "partyledger_cache_hits_total",
		Help: "Reads served from an already-settled cache entry.",
	})

	// CacheMisses counts reads that had to start a load.
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "partyledger_cache_misses_total",
		Help: "Reads that started a new document load.",
	})

	// CacheSuspensions counts reads that blocked on a pending load.
	CacheSuspensions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "partyledger_cache_suspensions_total",
		Help: "Reads that suspended until a pending load settled.",
	})

	// CacheInvalidations counts entries dropped after a delete event.
	CacheInvalidations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "partyledger_cache_invalidations_total",
		Help: "Cache entries invalidated by document events.",
	})

	// BalanceRecomputes counts chunk balance synchronizations.
	BalanceRecomputes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "partyledger_balance_recomputes_total",
		Help: "Chunk balance recomputations triggered by mutations.",
	})

	// ExpensesCreated counts expenses written through the chunk manager.
	ExpensesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "partyledger_expenses_created_total",
		Help: "Expenses created through the chunk manager.",
	})

	// MigrationSteps counts applied migration transforms, by model.
	MigrationSteps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "partyledger_migration_steps_total",
		Help: "Migration transforms applied, labeled by model type.",
	}, []string{"model"})
)
