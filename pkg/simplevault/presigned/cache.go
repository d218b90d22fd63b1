// Package presigned caches download URLs so repeated requests for the same
// version do not re-sign.
package presigned

import (
	"context"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultSize is the number of URLs kept when no size is configured.
const DefaultSize = 1024

var cacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "simplevault_presign_cache_total",
	Help: "Presigned URL cache lookups by result.",
}, []string{"result"})

// Presigner signs a time-limited GET URL for a stored object.
type Presigner interface {
	Presign(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Cache implements simplevault.URLIssuer. A URL is kept for half the TTL it
// was signed for, so a cached URL always has at least half its lifetime left.
type Cache struct {
	presigner Presigner
	ttl       time.Duration
	urls      *expirable.LRU[string, string]
}

// NewCache creates a cache for URLs signed with ttl
func NewCache(presigner Presigner, size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = DefaultSize
	}
	return &Cache{
		presigner: presigner,
		ttl:       ttl,
		urls:      expirable.NewLRU[string, string](size, nil, ttl/2),
	}
}

// URL returns a cached URL for key or signs a new one. Requests for a shorter
// lifetime than the cache was built for bypass it.
func (c *Cache) URL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if ttl < c.ttl {
		cacheRequests.WithLabelValues("bypass").Inc()
		return c.presigner.Presign(ctx, key, ttl)
	}

	cacheKey := key + "|" + strconv.FormatInt(int64(ttl), 10)
	if url, ok := c.urls.Get(cacheKey); ok {
		cacheRequests.WithLabelValues("hit").Inc()
		return url, nil
	}
	cacheRequests.WithLabelValues("miss").Inc()

	url, err := c.presigner.Presign(ctx, key, ttl)
	if err != nil {
		return "", err
	}
	c.urls.Add(cacheKey, url)
	return url, nil
}

// Len returns the number of cached URLs
func (c *Cache) Len() int {
	return c.urls.Len()
}
