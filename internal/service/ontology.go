package service

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mito-cohort-pipeline/internal/domain"
	"github.com/mito-cohort-pipeline/pkg/external"
)

// OntologySourceAPI selects the remote HPO search service instead of a file
const OntologySourceAPI = "api"

// ResolverBundle is a ready OntologyResolver plus whatever must be closed
// when the caller is done with it.
type ResolverBundle struct {
	Resolver *external.CachedResolver
	redis    *external.RedisNameCache
}

// Close releases the shared cache connection, if one was opened.
func (b *ResolverBundle) Close() error {
	if b.redis != nil {
		return b.redis.Close()
	}
	return nil
}

// NewOntologyResolver builds the resolver chain for an ontology source:
// the HPO search API when source is "api", a local hp.json otherwise. The
// chain is always fronted by the memory cache, and by Redis when a URL is
// configured and reachable.
func NewOntologyResolver(ontology domain.OntologyConfig, cache domain.CacheConfig, logger *logrus.Logger) (*ResolverBundle, error) {
	var upstream domain.OntologyResolver

	source := strings.TrimSpace(ontology.Source)
	if strings.EqualFold(source, OntologySourceAPI) {
		upstream = external.NewHPOClient(external.HPOClientConfig{
			BaseURL:    ontology.BaseURL,
			Timeout:    ontology.Timeout,
			RateLimit:  ontology.RateLimit,
			RetryCount: ontology.RetryCount,
		}, logger)
		logger.WithField("ontology_source", "api").Info("Resolving HPO names through the search API")
	} else {
		file, err := external.LoadOntologyFile(source)
		if err != nil {
			return nil, fmt.Errorf("loading ontology: %w", err)
		}
		upstream = file
		logger.WithFields(logrus.Fields{
			"ontology_source": source,
			"terms":           file.Len(),
		}).Info("Loaded local HPO ontology")
	}

	bundle := &ResolverBundle{}
	var shared external.NameCache
	if cache.RedisURL != "" {
		redisCache, err := external.NewRedisNameCache(cache)
		if err != nil {
			logger.WithError(err).Warn("Redis name cache unavailable, continuing with memory cache only")
		} else {
			bundle.redis = redisCache
			shared = redisCache
		}
	}

	bundle.Resolver = external.NewCachedResolver(upstream, shared, external.CachedResolverConfig{
		MaxItems: cache.MaxItems,
		TTL:      cache.TTL,
	}, logger)

	return bundle, nil
}
