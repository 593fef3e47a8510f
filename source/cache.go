package source

import (
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dashlytics/dashlytics/logger"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dashlytics_source_cache_hits_total",
		Help: "Connection cache lookups served from the cache.",
	})
	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dashlytics_source_cache_misses_total",
		Help: "Connection cache lookups that opened a new source.",
	})
	sourceOpens = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashlytics_source_opens_total",
		Help: "Sources opened, by kind.",
	}, []string{"kind"})
	sourceOpenFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashlytics_source_open_failures_total",
		Help: "Source open failures, by kind.",
	}, []string{"kind"})
	sourceQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashlytics_source_queries_total",
		Help: "Statements executed against relational sources, by kind.",
	}, []string{"kind"})
	sourceQueryFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashlytics_source_query_failures_total",
		Help: "Failed statements against relational sources, by kind.",
	}, []string{"kind"})
)

// Cache keeps open sources keyed by handle ID, bounded by an LRU policy.
// Evicted sources are closed. It is the only shared mutable state in the
// source layer; the lru implementation carries its own locking.
type Cache struct {
	sources *lru.Cache[string, Source]
	log     *slog.Logger
}

// NewCache builds a cache bounded to size open sources.
func NewCache(size int) (*Cache, error) {
	log := logger.With("source-cache")
	sources, err := lru.NewWithEvict[string, Source](size, func(key string, src Source) {
		if err := src.Close(); err != nil {
			log.Warn("failed to close evicted source", "id", key, "error", err)
		}
	})
	if err != nil {
		return nil, err
	}
	return &Cache{sources: sources, log: log}, nil
}

// Get returns the open source for the handle, opening and caching it on a
// miss.
func (c *Cache) Get(h Handle) (Source, error) {
	key := h.ID.String()
	if src, ok := c.sources.Get(key); ok {
		cacheHits.Inc()
		return src, nil
	}
	cacheMisses.Inc()

	src, err := Open(h)
	if err != nil {
		sourceOpenFailures.WithLabelValues(string(h.Kind)).Inc()
		return nil, err
	}
	sourceOpens.WithLabelValues(string(h.Kind)).Inc()
	c.sources.Add(key, src)
	return src, nil
}

// Remove closes and drops the cached source for a handle, if present.
func (c *Cache) Remove(h Handle) {
	c.sources.Remove(h.ID.String())
}

// Close closes every cached source.
func (c *Cache) Close() {
	c.sources.Purge()
}
