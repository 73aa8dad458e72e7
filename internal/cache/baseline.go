package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/maccolaco/claimsense/internal/logging"
	"github.com/sirupsen/logrus"
)

// AverageSource looks up the historical average charge for a procedure code
type AverageSource interface {
	AverageCharge(ctx context.Context, code string) (avg float64, found bool, err error)
}

type baselineEntry struct {
	Average float64 `json:"average"`
	Found   bool    `json:"found"`
}

// CachedBaseline serves charge averages from a cache in front of an AverageSource.
// Misses are cached too; lookup errors are not.
type CachedBaseline struct {
	source  AverageSource
	cache   Cache
	ttl     time.Duration
	timeout time.Duration
	logger  *logrus.Logger
}

// NewCachedBaseline wraps source. A nil cache disables caching.
func NewCachedBaseline(source AverageSource, c Cache, ttl time.Duration, logger *logrus.Logger) *CachedBaseline {
	return &CachedBaseline{
		source:  source,
		cache:   c,
		ttl:     ttl,
		timeout: 5 * time.Second,
		logger:  logging.OrDiscard(logger),
	}
}

// Average implements rules.Baseline. Any lookup failure makes the anomaly rule abstain.
func (b *CachedBaseline) Average(code string) (float64, bool) {
	key := CacheKey("baseline", code)

	if b.cache != nil {
		if raw, found := b.cache.Get(key); found {
			var entry baselineEntry
			if err := json.Unmarshal(raw, &entry); err == nil {
				return entry.Average, entry.Found
			}
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	avg, found, err := b.source.AverageCharge(ctx, code)
	if err != nil {
		b.logger.WithError(err).WithField("code", code).Warn("Baseline lookup failed, skipping anomaly check")
		return 0, false
	}
	if !found {
		b.logger.WithField("code", code).Debug("No baseline average for code, skipping anomaly check")
	}

	if b.cache != nil {
		data, _ := json.Marshal(baselineEntry{Average: avg, Found: found})
		if err := b.cache.Set(key, data, b.ttl); err != nil {
			b.logger.WithError(err).Warn("Failed to cache baseline average")
		}
	}

	return avg, found
}
