package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/privacy-engine/internal/models"
	"github.com/privacy-engine/internal/types"
)

// stubCatalog counts store reads so tests can observe cache hits.
type stubCatalog struct {
	clusters []*models.ClusterDefinition
	reads    int
}

func (s *stubCatalog) List(ctx context.Context) ([]*models.ClusterDefinition, error) {
	s.reads++
	return s.clusters, nil
}

func setupRegistryCache(t *testing.T) (*RegistryCache, *stubCatalog, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	source := &stubCatalog{
		clusters: []*models.ClusterDefinition{
			{
				ID:                 "music",
				Name:               "Music",
				Category:           types.CategoryPersonal,
				DefaultSensitivity: 60,
				Subclusters: []models.Subcluster{
					{ID: "genres", Name: "Genres", DefaultSensitivity: 70},
				},
				Position: 1,
			},
			{
				ID:                 "career",
				Name:               "Career",
				Category:           types.CategoryProfessional,
				DefaultSensitivity: 40,
				Position:           2,
			},
		},
	}

	cache := NewRegistryCache(source, NewRedisCacheFromClient(client), time.Minute)
	return cache, source, mr
}

func TestRegistryCache_CatalogCachesAfterFirstRead(t *testing.T) {
	cache, source, _ := setupRegistryCache(t)
	ctx := context.Background()

	first, err := cache.Catalog(ctx)
	require.NoError(t, err)
	assert.Len(t, first, 2)
	assert.Equal(t, 1, source.reads)

	second, err := cache.Catalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, source.reads, "second read should be served from cache")
}

func TestRegistryCache_InvalidateForcesReread(t *testing.T) {
	cache, source, _ := setupRegistryCache(t)
	ctx := context.Background()

	_, err := cache.Catalog(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, source.reads)

	require.NoError(t, cache.Invalidate(ctx))

	source.clusters = source.clusters[:1]

	clusters, err := cache.Catalog(ctx)
	require.NoError(t, err)
	assert.Len(t, clusters, 1)
	assert.Equal(t, 2, source.reads, "invalidation should force a store read")
}

func TestRegistryCache_FallsBackWhenRedisDown(t *testing.T) {
	cache, source, mr := setupRegistryCache(t)
	ctx := context.Background()

	mr.Close()

	clusters, err := cache.Catalog(ctx)
	require.NoError(t, err)
	assert.Len(t, clusters, 2)
	assert.Equal(t, 1, source.reads)
}

func TestRegistryCache_CatalogMap(t *testing.T) {
	cache, _, _ := setupRegistryCache(t)
	ctx := context.Background()

	byID, err := cache.CatalogMap(ctx)
	require.NoError(t, err)
	require.Contains(t, byID, "music")
	assert.Equal(t, "Music", byID["music"].Name)
	require.NotNil(t, byID["music"].Subcluster("genres"))
	assert.Nil(t, byID["music"].Subcluster("missing"))
}
