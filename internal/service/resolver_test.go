package service

import (
	"context"
	"testing"

	"github.com/privacy-engine/internal/models"
	"github.com/privacy-engine/internal/types"
)

func findCluster(t *testing.T, matrix types.ClusterPrivacyMatrix, clusterID string) types.ResolvedCluster {
	t.Helper()
	for _, c := range matrix.Clusters {
		if c.ClusterID == clusterID {
			return c
		}
	}
	t.Fatalf("Cluster %s not present in matrix", clusterID)
	return types.ResolvedCluster{}
}

func findSubcluster(t *testing.T, cluster types.ResolvedCluster, subclusterID string) types.ResolvedSubcluster {
	t.Helper()
	for _, s := range cluster.Subclusters {
		if s.SubclusterID == subclusterID {
			return s
		}
	}
	t.Fatalf("Subcluster %s not present in cluster %s", subclusterID, cluster.ClusterID)
	return types.ResolvedSubcluster{}
}

func TestResolveMatrix_CatalogDefaultsOnly(t *testing.T) {
	matrix := ResolveMatrix("user-1", ResolveState{Catalog: testCatalog()})

	if matrix.Source != types.SourceBase {
		t.Errorf("Expected source %s, got %s", types.SourceBase, matrix.Source)
	}
	if len(matrix.Clusters) != 3 {
		t.Fatalf("Expected 3 clusters, got %d", len(matrix.Clusters))
	}

	prof := findCluster(t, matrix, "professional-identity")
	if prof.EffectiveLevel != 60 || !prof.Enabled {
		t.Errorf("Expected enabled level 60, got %d enabled=%v", prof.EffectiveLevel, prof.Enabled)
	}

	// Subclusters resolve at their own granularity, not the cluster's.
	salary := findSubcluster(t, prof, "salary")
	if salary.EffectiveLevel != 10 {
		t.Errorf("Expected salary at its own default 10, got %d", salary.EffectiveLevel)
	}
}

func TestResolveMatrix_BaseSettingsGovern(t *testing.T) {
	state := ResolveState{
		Catalog: testCatalog(),
		Settings: map[string]models.ClusterSetting{
			"professional-identity": {
				PrivacyLevel: 85,
				Enabled:      true,
				Subclusters: map[string]models.SubclusterSetting{
					"salary": {PrivacyLevel: 30, Enabled: true},
				},
			},
		},
	}

	matrix := ResolveMatrix("user-1", state)

	prof := findCluster(t, matrix, "professional-identity")
	if prof.EffectiveLevel != 85 {
		t.Errorf("Expected stored level 85, got %d", prof.EffectiveLevel)
	}

	salary := findSubcluster(t, prof, "salary")
	if salary.EffectiveLevel != 30 {
		t.Errorf("Expected stored subcluster level 30, got %d", salary.EffectiveLevel)
	}

	// Untouched subclusters still fall to their own catalog defaults.
	jobTitle := findSubcluster(t, prof, "job-title")
	if jobTitle.EffectiveLevel != 70 {
		t.Errorf("Expected untouched subcluster at default 70, got %d", jobTitle.EffectiveLevel)
	}

	// Untouched clusters fall to catalog defaults.
	health := findCluster(t, matrix, "health-wellness")
	if health.EffectiveLevel != 20 {
		t.Errorf("Expected untouched cluster at default 20, got %d", health.EffectiveLevel)
	}
}

func TestResolveMatrix_DisabledZeroesEffectiveLevel(t *testing.T) {
	state := ResolveState{
		Catalog: testCatalog(),
		Settings: map[string]models.ClusterSetting{
			"health-wellness": {
				PrivacyLevel: 55,
				Enabled:      false,
				Subclusters: map[string]models.SubclusterSetting{
					"medications": {PrivacyLevel: 90, Enabled: false},
				},
			},
		},
	}

	matrix := ResolveMatrix("user-1", state)

	health := findCluster(t, matrix, "health-wellness")
	if health.EffectiveLevel != 0 {
		t.Errorf("Expected disabled cluster effective level 0, got %d", health.EffectiveLevel)
	}
	if health.PrivacyLevel != 55 {
		t.Errorf("Expected configured level 55 to be reported, got %d", health.PrivacyLevel)
	}

	meds := findSubcluster(t, health, "medications")
	if meds.EffectiveLevel != 0 {
		t.Errorf("Expected disabled subcluster effective level 0, got %d", meds.EffectiveLevel)
	}
}

func TestResolveMatrix_TwinClusterEntryGoverns(t *testing.T) {
	state := ResolveState{
		Catalog: testCatalog(),
		Settings: map[string]models.ClusterSetting{
			"professional-identity": {PrivacyLevel: 30, Enabled: false},
			"health-wellness":       {PrivacyLevel: 75, Enabled: true},
		},
		Twin: &models.ContextualTwin{
			ID:     "twin-1",
			UserID: "user-1",
			ClusterSettings: map[string]models.ClusterSetting{
				// Re-enables a cluster the base layer disabled.
				"professional-identity": {PrivacyLevel: 95, Enabled: true},
			},
		},
	}

	matrix := ResolveMatrix("user-1", state)

	if matrix.Source != types.SourceTwin {
		t.Errorf("Expected source %s, got %s", types.SourceTwin, matrix.Source)
	}

	prof := findCluster(t, matrix, "professional-identity")
	if prof.EffectiveLevel != 95 || !prof.Enabled {
		t.Errorf("Expected twin entry 95 enabled, got %d enabled=%v", prof.EffectiveLevel, prof.Enabled)
	}

	// Clusters the twin does not list fall through to the base layer.
	health := findCluster(t, matrix, "health-wellness")
	if health.EffectiveLevel != 75 {
		t.Errorf("Expected base fallthrough 75, got %d", health.EffectiveLevel)
	}
}

func TestResolveMatrix_TwinSubclusterFallthrough(t *testing.T) {
	state := ResolveState{
		Catalog: testCatalog(),
		Settings: map[string]models.ClusterSetting{
			"professional-identity": {
				PrivacyLevel: 50,
				Enabled:      true,
				Subclusters: map[string]models.SubclusterSetting{
					"salary": {PrivacyLevel: 25, Enabled: true},
				},
			},
		},
		Twin: &models.ContextualTwin{
			ID:     "twin-1",
			UserID: "user-1",
			ClusterSettings: map[string]models.ClusterSetting{
				"professional-identity": {
					PrivacyLevel: 90,
					Enabled:      true,
					Subclusters: map[string]models.SubclusterSetting{
						"job-title": {PrivacyLevel: 100, Enabled: true},
					},
				},
			},
		},
	}

	matrix := ResolveMatrix("user-1", state)
	prof := findCluster(t, matrix, "professional-identity")

	jobTitle := findSubcluster(t, prof, "job-title")
	if jobTitle.EffectiveLevel != 100 {
		t.Errorf("Expected twin subcluster entry 100, got %d", jobTitle.EffectiveLevel)
	}

	// Subclusters the twin does not list fall to the base layer.
	salary := findSubcluster(t, prof, "salary")
	if salary.EffectiveLevel != 25 {
		t.Errorf("Expected base subcluster fallthrough 25, got %d", salary.EffectiveLevel)
	}
}

func TestResolveMatrix_TwinGlobalOverrideCollapsesEverything(t *testing.T) {
	state := ResolveState{
		Catalog: testCatalog(),
		Settings: map[string]models.ClusterSetting{
			"professional-identity": {PrivacyLevel: 10, Enabled: false},
		},
		Twin: &models.ContextualTwin{
			ID:                    "twin-1",
			UserID:                "user-1",
			GlobalPrivacyOverride: levelPtr(15),
			ClusterSettings: map[string]models.ClusterSetting{
				// Ignored: the override short-circuits per-cluster entries.
				"professional-identity": {PrivacyLevel: 99, Enabled: true},
			},
		},
		Preset: &models.AudiencePreset{Key: "public", GlobalPrivacy: 80},
	}

	matrix := ResolveMatrix("user-1", state)

	if matrix.Source != types.SourceTwinGlobal {
		t.Errorf("Expected source %s, got %s", types.SourceTwinGlobal, matrix.Source)
	}

	for _, cluster := range matrix.Clusters {
		if cluster.EffectiveLevel != 15 || !cluster.Enabled {
			t.Errorf("Cluster %s: expected collapsed level 15 enabled, got %d enabled=%v",
				cluster.ClusterID, cluster.EffectiveLevel, cluster.Enabled)
		}
		for _, sub := range cluster.Subclusters {
			if sub.EffectiveLevel != 15 {
				t.Errorf("Subcluster %s: expected collapsed level 15, got %d",
					sub.SubclusterID, sub.EffectiveLevel)
			}
		}
	}
}

func TestResolveMatrix_AudiencePresetGoverns(t *testing.T) {
	state := ResolveState{
		Catalog: testCatalog(),
		Settings: map[string]models.ClusterSetting{
			"professional-identity": {PrivacyLevel: 10, Enabled: false},
		},
		Preset: &models.AudiencePreset{
			Key:           "professional",
			GlobalPrivacy: 40,
			DefaultClusterLevels: map[string]types.PrivacyLevel{
				"professional-identity": 90,
			},
		},
	}

	matrix := ResolveMatrix("user-1", state)

	if matrix.Source != types.SourceAudience {
		t.Errorf("Expected source %s, got %s", types.SourceAudience, matrix.Source)
	}

	prof := findCluster(t, matrix, "professional-identity")
	if prof.EffectiveLevel != 90 || !prof.Enabled {
		t.Errorf("Expected preset level 90 enabled, got %d enabled=%v", prof.EffectiveLevel, prof.Enabled)
	}

	// Preset layer has no subcluster granularity: subclusters inherit.
	for _, sub := range prof.Subclusters {
		if sub.EffectiveLevel != 90 {
			t.Errorf("Subcluster %s: expected inherited level 90, got %d", sub.SubclusterID, sub.EffectiveLevel)
		}
	}

	// Clusters the preset does not list get its global level.
	creative := findCluster(t, matrix, "creative-work")
	if creative.EffectiveLevel != 40 {
		t.Errorf("Expected preset global 40 for unlisted cluster, got %d", creative.EffectiveLevel)
	}
}

func TestResolveMatrix_TwinSuppressesAudience(t *testing.T) {
	state := ResolveState{
		Catalog: testCatalog(),
		Twin: &models.ContextualTwin{
			ID:     "twin-1",
			UserID: "user-1",
			ClusterSettings: map[string]models.ClusterSetting{
				"professional-identity": {PrivacyLevel: 65, Enabled: true},
			},
		},
		Preset: &models.AudiencePreset{Key: "public", GlobalPrivacy: 100},
	}

	matrix := ResolveMatrix("user-1", state)

	if matrix.Source != types.SourceTwin {
		t.Errorf("Expected source %s, got %s", types.SourceTwin, matrix.Source)
	}

	// Health has no twin entry and no base entry; with a twin governing,
	// the preset must not leak in, so the catalog default applies.
	health := findCluster(t, matrix, "health-wellness")
	if health.EffectiveLevel != 20 {
		t.Errorf("Expected catalog default 20, got %d", health.EffectiveLevel)
	}
}

func TestResolveMatrix_ClusterOrderFollowsCatalog(t *testing.T) {
	matrix := ResolveMatrix("user-1", ResolveState{Catalog: testCatalog()})

	expected := []string{"professional-identity", "health-wellness", "creative-work"}
	for i, clusterID := range expected {
		if matrix.Clusters[i].ClusterID != clusterID {
			t.Errorf("Position %d: expected %s, got %s", i, clusterID, matrix.Clusters[i].ClusterID)
		}
	}
}

func newTestResolver(catalog *mockCatalog, settings *mockSettingStore, twins *mockTwinStore, presets *mockPresetStore) *Resolver {
	return NewResolver(catalog, settings, twins, presets)
}

func TestResolver_Resolve_ExplicitTwin(t *testing.T) {
	settings := newMockSettingStore()
	twins := newMockTwinStore()
	presets := newMockPresetStore()
	resolver := newTestResolver(newMockCatalog(), settings, twins, presets)

	twins.twins["twin-1"] = &models.ContextualTwin{
		ID:     "twin-1",
		UserID: "user-1",
		ClusterSettings: map[string]models.ClusterSetting{
			"creative-work": {PrivacyLevel: 100, Enabled: true},
		},
	}

	matrix, err := resolver.Resolve(context.Background(), "user-1", strPtr("twin-1"), nil)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if matrix.TwinID == nil || *matrix.TwinID != "twin-1" {
		t.Errorf("Expected matrix to carry twin-1, got %v", matrix.TwinID)
	}
	creative := findCluster(t, *matrix, "creative-work")
	if creative.EffectiveLevel != 100 {
		t.Errorf("Expected twin entry 100, got %d", creative.EffectiveLevel)
	}
}

func TestResolver_Resolve_ActiveTwinUsedWhenNoneSelected(t *testing.T) {
	settings := newMockSettingStore()
	twins := newMockTwinStore()
	resolver := newTestResolver(newMockCatalog(), settings, twins, newMockPresetStore())

	twins.twins["twin-2"] = &models.ContextualTwin{
		ID:                    "twin-2",
		UserID:                "user-1",
		IsActive:              true,
		GlobalPrivacyOverride: levelPtr(5),
	}

	matrix, err := resolver.Resolve(context.Background(), "user-1", nil, nil)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if matrix.Source != types.SourceTwinGlobal {
		t.Errorf("Expected source %s, got %s", types.SourceTwinGlobal, matrix.Source)
	}
	if matrix.TwinID == nil || *matrix.TwinID != "twin-2" {
		t.Errorf("Expected active twin twin-2, got %v", matrix.TwinID)
	}
}

func TestResolver_Resolve_UnknownTwinDegradesToBase(t *testing.T) {
	resolver := newTestResolver(newMockCatalog(), newMockSettingStore(), newMockTwinStore(), newMockPresetStore())

	matrix, err := resolver.Resolve(context.Background(), "user-1", strPtr("missing"), nil)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if matrix.Source != types.SourceBase {
		t.Errorf("Expected degradation to %s, got %s", types.SourceBase, matrix.Source)
	}
	if matrix.TwinID != nil {
		t.Errorf("Expected no twin in matrix, got %v", *matrix.TwinID)
	}
	if len(matrix.Clusters) != 3 {
		t.Errorf("Expected a full matrix regardless, got %d clusters", len(matrix.Clusters))
	}
}

func TestResolver_Resolve_AudienceIgnoredWhenTwinActive(t *testing.T) {
	twins := newMockTwinStore()
	presets := newMockPresetStore()
	resolver := newTestResolver(newMockCatalog(), newMockSettingStore(), twins, presets)

	twins.twins["twin-1"] = &models.ContextualTwin{ID: "twin-1", UserID: "user-1", IsActive: true}
	presets.presets["public"] = &models.AudiencePreset{Key: "public", IsSystem: true, GlobalPrivacy: 100}

	matrix, err := resolver.Resolve(context.Background(), "user-1", nil, strPtr("public"))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if matrix.Source != types.SourceTwin {
		t.Errorf("Expected twin to govern, got %s", matrix.Source)
	}
	if matrix.AudienceID != nil {
		t.Errorf("Expected audience to be ignored, got %v", *matrix.AudienceID)
	}
}

func TestResolver_Resolve_Deterministic(t *testing.T) {
	settings := newMockSettingStore()
	settings.settings[settingKey("user-1", "health-wellness")] = &models.UserClusterSetting{
		UserID:    "user-1",
		ClusterID: "health-wellness",
		Setting:   models.ClusterSetting{PrivacyLevel: 33, Enabled: true},
	}
	resolver := newTestResolver(newMockCatalog(), settings, newMockTwinStore(), newMockPresetStore())

	first, err := resolver.Resolve(context.Background(), "user-1", nil, nil)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	second, err := resolver.Resolve(context.Background(), "user-1", nil, nil)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if len(first.Clusters) != len(second.Clusters) {
		t.Fatalf("Matrix sizes differ: %d vs %d", len(first.Clusters), len(second.Clusters))
	}
	for i := range first.Clusters {
		if first.Clusters[i].ClusterID != second.Clusters[i].ClusterID ||
			first.Clusters[i].EffectiveLevel != second.Clusters[i].EffectiveLevel {
			t.Errorf("Cluster %d differs between identical resolutions", i)
		}
	}
}
