package external

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"github.com/mito-cohort-pipeline/internal/domain"
)

// NameCache is a shared cache tier for resolved HPO names
type NameCache interface {
	Get(ctx context.Context, hpoID string) (string, bool, error)
	Set(ctx context.Context, hpoID, name string, ttl time.Duration) error
}

// CacheStats represents cache performance statistics
type CacheStats struct {
	MemoryHits    int64     `json:"memory_hits"`
	MemoryMisses  int64     `json:"memory_misses"`
	RedisHits     int64     `json:"redis_hits"`
	RedisMisses   int64     `json:"redis_misses"`
	ExternalCalls int64     `json:"external_calls"`
	TotalRequests int64     `json:"total_requests"`
	ErrorCount    int64     `json:"error_count"`
	LastReset     time.Time `json:"last_reset"`
}

// CachedResolverConfig represents configuration for the cached resolver
type CachedResolverConfig struct {
	MaxItems int           `json:"max_items"`
	TTL      time.Duration `json:"ttl"`
}

// CachedResolver puts an in-memory LRU and an optional shared cache in front
// of another OntologyResolver. Empty names are cached like any other answer.
type CachedResolver struct {
	upstream    domain.OntologyResolver
	memoryCache *expirable.LRU[string, string] // Tier 1
	shared      NameCache                      // Tier 2, may be nil
	ttl         time.Duration

	logger  *logrus.Logger
	stats   CacheStats
	statsMu sync.RWMutex
}

// NewCachedResolver wraps upstream. shared may be nil.
func NewCachedResolver(upstream domain.OntologyResolver, shared NameCache, config CachedResolverConfig, logger *logrus.Logger) *CachedResolver {
	if config.MaxItems <= 0 {
		config.MaxItems = 10000
	}
	if config.TTL <= 0 {
		config.TTL = 24 * time.Hour
	}

	return &CachedResolver{
		upstream:    upstream,
		memoryCache: expirable.NewLRU[string, string](config.MaxItems, nil, config.TTL),
		shared:      shared,
		ttl:         config.TTL,
		logger:      logger,
		stats:       CacheStats{LastReset: time.Now()},
	}
}

// ResolveName implements domain.OntologyResolver
func (r *CachedResolver) ResolveName(ctx context.Context, hpoID string) (string, error) {
	r.incrementStat("total_requests")

	key := strings.ToUpper(strings.TrimSpace(hpoID))
	if key == "" {
		r.incrementStat("error_count")
		return "", fmt.Errorf("HPO identifier cannot be empty")
	}

	if name, ok := r.memoryCache.Get(key); ok {
		r.incrementStat("memory_hits")
		r.logger.WithFields(logrus.Fields{
			"hpo_term":   key,
			"cache_tier": "memory",
		}).Debug("Cache hit")
		return name, nil
	}
	r.incrementStat("memory_misses")

	if r.shared != nil {
		name, ok, err := r.shared.Get(ctx, key)
		switch {
		case err != nil:
			r.logger.WithError(err).WithField("hpo_term", key).Warn("Shared cache lookup failed")
		case ok:
			r.incrementStat("redis_hits")
			r.logger.WithFields(logrus.Fields{
				"hpo_term":   key,
				"cache_tier": "redis",
			}).Debug("Cache hit")
			r.memoryCache.Add(key, name)
			return name, nil
		default:
			r.incrementStat("redis_misses")
		}
	}

	r.incrementStat("external_calls")
	name, err := r.upstream.ResolveName(ctx, key)
	if err != nil {
		r.incrementStat("error_count")
		return "", err
	}

	r.memoryCache.Add(key, name)
	if r.shared != nil {
		if err := r.shared.Set(ctx, key, name, r.ttl); err != nil {
			r.logger.WithError(err).WithField("hpo_term", key).Warn("Failed to populate shared cache")
		}
	}

	return name, nil
}

// Invalidate drops a term from the memory tier
func (r *CachedResolver) Invalidate(hpoID string) {
	r.memoryCache.Remove(strings.ToUpper(strings.TrimSpace(hpoID)))
}

// GetCacheStats returns a snapshot of cache statistics
func (r *CachedResolver) GetCacheStats() CacheStats {
	r.statsMu.RLock()
	defer r.statsMu.RUnlock()
	return r.stats
}

func (r *CachedResolver) incrementStat(name string) {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()

	switch name {
	case "memory_hits":
		r.stats.MemoryHits++
	case "memory_misses":
		r.stats.MemoryMisses++
	case "redis_hits":
		r.stats.RedisHits++
	case "redis_misses":
		r.stats.RedisMisses++
	case "external_calls":
		r.stats.ExternalCalls++
	case "total_requests":
		r.stats.TotalRequests++
	case "error_count":
		r.stats.ErrorCount++
	}
}
