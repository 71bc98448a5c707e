package service

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/privacy-engine/internal/models"
	"github.com/privacy-engine/internal/types"
)

func genLevel() gopter.Gen {
	return gen.IntRange(0, 100).Map(func(v int) types.PrivacyLevel {
		return types.PrivacyLevel(v)
	})
}

// genSettings produces a base-settings map over the test catalog's cluster IDs.
func genSettings() gopter.Gen {
	ids := []string{"professional-identity", "health-wellness", "creative-work"}
	return gopter.CombineGens(
		genLevel(), gen.Bool(),
		genLevel(), gen.Bool(),
		genLevel(), gen.Bool(),
	).Map(func(values []interface{}) map[string]models.ClusterSetting {
		settings := make(map[string]models.ClusterSetting, len(ids))
		for i, id := range ids {
			settings[id] = models.ClusterSetting{
				PrivacyLevel: values[i*2].(types.PrivacyLevel),
				Enabled:      values[i*2+1].(bool),
			}
		}
		return settings
	})
}

func TestResolveMatrix_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("every effective level stays within 0-100", prop.ForAll(
		func(settings map[string]models.ClusterSetting) bool {
			matrix := ResolveMatrix("user-1", ResolveState{
				Catalog:  testCatalog(),
				Settings: settings,
			})
			for _, cluster := range matrix.Clusters {
				if !cluster.EffectiveLevel.Valid() {
					return false
				}
				for _, sub := range cluster.Subclusters {
					if !sub.EffectiveLevel.Valid() {
						return false
					}
				}
			}
			return true
		},
		genSettings(),
	))

	properties.Property("a disabled cluster always resolves to effective 0", prop.ForAll(
		func(level types.PrivacyLevel) bool {
			matrix := ResolveMatrix("user-1", ResolveState{
				Catalog: testCatalog(),
				Settings: map[string]models.ClusterSetting{
					"health-wellness": {PrivacyLevel: level, Enabled: false},
				},
			})
			for _, cluster := range matrix.Clusters {
				if cluster.ClusterID == "health-wellness" {
					return cluster.EffectiveLevel == 0
				}
			}
			return false
		},
		genLevel(),
	))

	properties.Property("a twin global override collapses every level to itself", prop.ForAll(
		func(override types.PrivacyLevel, settings map[string]models.ClusterSetting) bool {
			matrix := ResolveMatrix("user-1", ResolveState{
				Catalog:  testCatalog(),
				Settings: settings,
				Twin: &models.ContextualTwin{
					ID:                    "twin-1",
					UserID:                "user-1",
					GlobalPrivacyOverride: &override,
				},
			})
			for _, cluster := range matrix.Clusters {
				if cluster.EffectiveLevel != override {
					return false
				}
				for _, sub := range cluster.Subclusters {
					if sub.EffectiveLevel != override {
						return false
					}
				}
			}
			return true
		},
		genLevel(),
		genSettings(),
	))

	properties.Property("identical state yields an identical matrix", prop.ForAll(
		func(settings map[string]models.ClusterSetting) bool {
			state := ResolveState{Catalog: testCatalog(), Settings: settings}
			first := ResolveMatrix("user-1", state)
			second := ResolveMatrix("user-1", state)
			if len(first.Clusters) != len(second.Clusters) {
				return false
			}
			for i := range first.Clusters {
				a, b := first.Clusters[i], second.Clusters[i]
				if a.ClusterID != b.ClusterID || a.EffectiveLevel != b.EffectiveLevel || a.Enabled != b.Enabled {
					return false
				}
			}
			return true
		},
		genSettings(),
	))

	properties.TestingRun(t)
}
