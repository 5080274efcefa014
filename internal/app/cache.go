package app

import (
	"encoding/json"
	"time"

	"fightlog/internal/metrics"

	"github.com/coocood/freecache"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"
)

// Cache memoizes derivations keyed by a hash of their inputs. A nil *Cache
// computes every time.
type Cache struct {
	fc      *freecache.Cache
	ttl     int
	metrics *metrics.Manager
	log     logrus.FieldLogger
}

// NewCache returns nil when sizeBytes is 0. freecache raises sizes below
// 512 KiB to that minimum.
func NewCache(sizeBytes, ttlSeconds int, m *metrics.Manager, log logrus.FieldLogger) *Cache {
	if sizeBytes <= 0 {
		return nil
	}
	return &Cache{
		fc:      freecache.NewCache(sizeBytes),
		ttl:     ttlSeconds,
		metrics: m,
		log:     log,
	}
}

// Clear drops every memoized derivation.
func (c *Cache) Clear() {
	if c == nil {
		return
	}
	c.fc.Clear()
}

// Entries returns the number of live entries.
func (c *Cache) Entries() int64 {
	if c == nil {
		return 0
	}
	return c.fc.EntryCount()
}

// cacheKey hashes op and the JSON encoding of its inputs.
func cacheKey(op string, inputs ...any) ([]byte, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return nil, err
	}
	h.Write([]byte(op))
	enc := json.NewEncoder(h)
	for _, in := range inputs {
		if err := enc.Encode(in); err != nil {
			return nil, err
		}
	}
	return h.Sum(nil), nil
}

// getOrCompute returns the memoized value for op and inputs or computes and
// stores it. Errors are never cached.
func getOrCompute[T any](c *Cache, op string, compute func() (T, error), inputs ...any) (T, error) {
	if c == nil {
		return timed(nil, op, compute)
	}

	key, err := cacheKey(op, inputs...)
	if err != nil {
		c.log.WithError(err).WithField("op", op).Warn("cache key")
		return timed(c.metrics, op, compute)
	}

	if data, err := c.fc.Get(key); err == nil {
		var v T
		if err := json.Unmarshal(data, &v); err == nil {
			c.hit()
			return v, nil
		}
		c.fc.Del(key)
	}
	c.miss()

	v, err := timed(c.metrics, op, compute)
	if err != nil {
		return v, err
	}
	data, err := json.Marshal(v)
	if err != nil {
		c.log.WithError(err).WithField("op", op).Debug("value not cacheable")
		return v, nil
	}
	if err := c.fc.Set(key, data, c.ttl); err != nil {
		c.log.WithError(err).WithField("op", op).Debug("cache set")
	}
	return v, nil
}

func timed[T any](m *metrics.Manager, op string, compute func() (T, error)) (T, error) {
	start := time.Now()
	v, err := compute()
	if m != nil {
		m.HistDerivationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
	return v, err
}

func (c *Cache) hit() {
	if c.metrics != nil {
		c.metrics.CounterCacheHits.Inc()
	}
}

func (c *Cache) miss() {
	if c.metrics != nil {
		c.metrics.CounterCacheMisses.Inc()
	}
}
