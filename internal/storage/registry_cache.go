package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/privacy-engine/internal/logging"
	"github.com/privacy-engine/internal/models"
)

const (
	registryGenerationKey = "registry:generation"
	registryCatalogKeyFmt = "registry:catalog:%d"
)

// RegistryCache serves the cluster catalog through a process-wide Redis
// cache. Invalidation is coarse: bumping the generation counter makes every
// instance miss on its next read. Redis failures degrade to direct catalog
// reads rather than failing the request.
type RegistryCache struct {
	repo  CatalogSource
	redis *RedisCache
	ttl   time.Duration
}

// CatalogSource is the store-side catalog reader behind the cache.
type CatalogSource interface {
	List(ctx context.Context) ([]*models.ClusterDefinition, error)
}

// NewRegistryCache creates a new registry cache
func NewRegistryCache(repo CatalogSource, redis *RedisCache, ttl time.Duration) *RegistryCache {
	return &RegistryCache{
		repo:  repo,
		redis: redis,
		ttl:   ttl,
	}
}

// Catalog returns the full cluster catalog, cache-first.
func (c *RegistryCache) Catalog(ctx context.Context) ([]*models.ClusterDefinition, error) {
	logger := logging.FromContext(ctx)

	gen, err := c.generation(ctx)
	if err != nil {
		logger.WithError(err).Warn("Registry cache unavailable, reading catalog from store")
		return c.repo.List(ctx)
	}

	key := fmt.Sprintf(registryCatalogKeyFmt, gen)

	data, err := c.redis.Get(ctx, key)
	if err == nil {
		var clusters []*models.ClusterDefinition
		if err := json.Unmarshal([]byte(data), &clusters); err == nil {
			return clusters, nil
		}
		logger.WithField("key", key).Warn("Discarding undecodable registry cache entry")
	} else if !IsNil(err) {
		logger.WithError(err).Warn("Registry cache read failed, reading catalog from store")
		return c.repo.List(ctx)
	}

	clusters, err := c.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(clusters)
	if err == nil {
		if err := c.redis.Set(ctx, key, payload, c.ttl); err != nil {
			logger.WithError(err).Warn("Failed to populate registry cache")
		}
	}

	return clusters, nil
}

// CatalogMap returns the catalog keyed by cluster id.
func (c *RegistryCache) CatalogMap(ctx context.Context) (map[string]*models.ClusterDefinition, error) {
	clusters, err := c.Catalog(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*models.ClusterDefinition, len(clusters))
	for _, cluster := range clusters {
		byID[cluster.ID] = cluster
	}
	return byID, nil
}

// Invalidate bumps the generation counter so every instance re-reads the
// catalog on its next access.
func (c *RegistryCache) Invalidate(ctx context.Context) error {
	if _, err := c.redis.Incr(ctx, registryGenerationKey); err != nil {
		return fmt.Errorf("failed to bump registry generation: %w", err)
	}
	return nil
}

// generation reads the current cache generation, defaulting to 0.
func (c *RegistryCache) generation(ctx context.Context) (int64, error) {
	data, err := c.redis.Get(ctx, registryGenerationKey)
	if err != nil {
		if IsNil(err) {
			return 0, nil
		}
		return 0, err
	}

	var gen int64
	if _, err := fmt.Sscanf(data, "%d", &gen); err != nil {
		return 0, nil
	}
	return gen, nil
}
