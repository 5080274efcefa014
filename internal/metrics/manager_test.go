package metrics

import (
	"errors"
	"testing"

	"fightlog/internal/domain"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteStatus(t *testing.T) {
	assert.Equal(t, StatusOK, WriteStatus(nil))
	assert.Equal(t, StatusCapacity, WriteStatus(&domain.CapacityError{Limit: 10, Used: 9, Need: 2}))
	assert.Equal(t, StatusInvalid, WriteStatus(domain.Invalid("weight must be > 0")))
	assert.Equal(t, StatusError, WriteStatus(errors.New("disk on fire")))
}

func TestManager_Observe(t *testing.T) {
	m, reg := NewTestManagerAndRegistry()

	m.ObserveWrite(domain.CollectionSessions, nil)
	m.ObserveWrite(domain.CollectionSessions, nil)
	m.ObserveWrite(domain.CollectionSessions, &domain.CapacityError{})
	m.ObserveSchemaError(domain.CollectionMeasurements)
	m.ObserveMigration(domain.CollectionProfile)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CounterWrites.WithLabelValues(domain.CollectionSessions, StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CounterWrites.WithLabelValues(domain.CollectionSessions, StatusCapacity)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CounterSchemaErrors.WithLabelValues(domain.CollectionMeasurements)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CounterMigrations.WithLabelValues(domain.CollectionProfile)))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
