package metrics

import (
	"errors"

	"fightlog/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Write status labels.
const (
	StatusOK       = "ok"
	StatusCapacity = "capacity"
	StatusInvalid  = "invalid"
	StatusError    = "error"
)

// Manager holds the engine's prometheus collectors.
type Manager struct {
	// counters
	CounterWrites       *prometheus.CounterVec
	CounterSchemaErrors *prometheus.CounterVec
	CounterMigrations   *prometheus.CounterVec
	CounterUnlocks      *prometheus.CounterVec
	CounterCacheHits    prometheus.Counter
	CounterCacheMisses  prometheus.Counter

	// gauges
	GaugeFallbackActive prometheus.Gauge

	// histograms
	HistDerivationDuration *prometheus.HistogramVec
}

// NewTestManager registers a Manager on a fresh registry.
func NewTestManager() *Manager {
	return NewManager("fightlog", "test", prometheus.NewRegistry())
}

// NewTestManagerAndRegistry is NewTestManager that also returns the registry.
func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("fightlog", "test", reg), reg
}

// NewManager creates every collector under namespace and subsystem and
// registers them on reg.
func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	counterWrites := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "store_writes",
		Help:      "The total number of store writes by collection and outcome",
	}, []string{"collection", "status"})
	counterSchemaErrors := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "schema_errors",
		Help:      "Records skipped because their schema version has no migration path",
	}, []string{"collection"})
	counterMigrations := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "record_migrations",
		Help:      "Legacy records migrated and rewritten on read",
	}, []string{"collection"})
	counterUnlocks := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "unlocks",
		Help:      "Newly unlocked badges, quests and challenges",
	}, []string{"category"})
	counterCacheHits := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "derivation_cache_hits",
		Help:      "Derivations served from the memo cache",
	})
	counterCacheMisses := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "derivation_cache_misses",
		Help:      "Derivations computed from raw history",
	})

	gaugeFallbackActive := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "fallback_store_active",
		Help:      "1 when the engine runs on the capacity-limited fallback store",
	})

	histDerivationDuration := factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Buckets: []float64{
				0.00001, 0.00005, 0.0001, 0.0005, 0.001,
				0.005, 0.01, 0.05, 0.1, 0.5, 1,
			},
			Name: "derivation_duration_seconds",
			Help: "Duration of a single derivation in seconds",
		},
		[]string{"op"},
	)

	return &Manager{
		CounterWrites:          counterWrites,
		CounterSchemaErrors:    counterSchemaErrors,
		CounterMigrations:      counterMigrations,
		CounterUnlocks:         counterUnlocks,
		CounterCacheHits:       counterCacheHits,
		CounterCacheMisses:     counterCacheMisses,
		GaugeFallbackActive:    gaugeFallbackActive,
		HistDerivationDuration: histDerivationDuration,
	}
}

// ObserveWrite counts a store write by its outcome.
func (m *Manager) ObserveWrite(collection string, err error) {
	m.CounterWrites.WithLabelValues(collection, WriteStatus(err)).Inc()
}

// ObserveSchemaError counts a skipped record.
func (m *Manager) ObserveSchemaError(collection string) {
	m.CounterSchemaErrors.WithLabelValues(collection).Inc()
}

// ObserveMigration counts a migrated legacy record.
func (m *Manager) ObserveMigration(collection string) {
	m.CounterMigrations.WithLabelValues(collection).Inc()
}

// ObserveUnlock counts a newly unlocked definition.
func (m *Manager) ObserveUnlock(category string) {
	m.CounterUnlocks.WithLabelValues(category).Inc()
}

// WriteStatus maps a write error to its status label.
func WriteStatus(err error) string {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, domain.ErrCapacity):
		return StatusCapacity
	case errors.Is(err, domain.ErrValidation):
		return StatusInvalid
	default:
		return StatusError
	}
}
