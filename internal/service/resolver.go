// Package service implements the privacy resolution engine: the resolver,
// the settings facade, twin lifecycle, template/preset application, and
// audit emission.
package service

import (
	"context"

	"github.com/privacy-engine/internal/logging"
	"github.com/privacy-engine/internal/models"
	"github.com/privacy-engine/internal/types"
)

// Repository interfaces for dependency injection

// CatalogProvider serves the administered cluster catalog.
type CatalogProvider interface {
	Catalog(ctx context.Context) ([]*models.ClusterDefinition, error)
	CatalogMap(ctx context.Context) (map[string]*models.ClusterDefinition, error)
}

// SettingReader is the read side of the user's base settings.
type SettingReader interface {
	ListByUser(ctx context.Context, userID string) ([]*models.UserClusterSetting, error)
}

// TwinReader is the read side of the twin store.
type TwinReader interface {
	GetByIDAndUser(ctx context.Context, id, userID string) (*models.ContextualTwin, error)
	GetActive(ctx context.Context, userID string) (*models.ContextualTwin, error)
}

// PresetReader is the read side of the audience preset store.
type PresetReader interface {
	GetByKey(ctx context.Context, key, userID string) (*models.AudiencePreset, error)
}

// Resolver computes the effective visibility matrix for a viewing context.
// Resolution is read-only, never fails on missing data, and is a pure
// function of its inputs plus persisted state: identical inputs against
// identical state always yield an identical matrix.
type Resolver struct {
	registry CatalogProvider
	settings SettingReader
	twins    TwinReader
	presets  PresetReader
}

// NewResolver creates a new resolver
func NewResolver(registry CatalogProvider, settings SettingReader, twins TwinReader, presets PresetReader) *Resolver {
	return &Resolver{
		registry: registry,
		settings: settings,
		twins:    twins,
		presets:  presets,
	}
}

// Resolve computes the visibility matrix for a user. When twinID is set,
// that twin governs; otherwise the user's active twin (if any) governs. An
// audience is consulted only when no twin governs: twin presence alone
// decides whether the audience selector is even read. Unknown twin or
// audience references degrade to absent layers rather than erroring, since
// callers must always get a matrix.
func (r *Resolver) Resolve(ctx context.Context, userID string, twinID, audienceID *string) (*types.ClusterPrivacyMatrix, error) {
	logger := logging.FromContext(ctx)

	catalog, err := r.registry.Catalog(ctx)
	if err != nil {
		return nil, err
	}

	state := ResolveState{Catalog: catalog}

	stored, err := r.settings.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	state.Settings = make(map[string]models.ClusterSetting, len(stored))
	for _, s := range stored {
		state.Settings[s.ClusterID] = s.Setting
	}

	if twinID != nil && *twinID != "" {
		twin, err := r.twins.GetByIDAndUser(ctx, *twinID, userID)
		if err != nil {
			return nil, err
		}
		if twin == nil {
			logger.WithField("twinId", *twinID).Debug("Resolve: unknown twin, degrading to base settings")
		}
		state.Twin = twin
	} else {
		twin, err := r.twins.GetActive(ctx, userID)
		if err != nil {
			return nil, err
		}
		state.Twin = twin
	}

	if state.Twin == nil && audienceID != nil && *audienceID != "" {
		preset, err := r.presets.GetByKey(ctx, *audienceID, userID)
		if err != nil {
			return nil, err
		}
		if preset == nil {
			logger.WithField("audienceId", *audienceID).Debug("Resolve: unknown audience, degrading to base settings")
		}
		state.Preset = preset
	}

	matrix := ResolveMatrix(userID, state)
	if state.Twin != nil {
		matrix.TwinID = &state.Twin.ID
	}
	if state.Preset != nil {
		matrix.AudienceID = &state.Preset.Key
	}

	return &matrix, nil
}

// ResolveState is the persisted state a resolution reads: the catalog, the
// user's stored base settings, and the optional twin / audience layers.
type ResolveState struct {
	Catalog  []*models.ClusterDefinition
	Settings map[string]models.ClusterSetting
	Twin     *models.ContextualTwin
	Preset   *models.AudiencePreset
}

// ResolveMatrix applies the layered precedence rules to produce the
// visibility matrix. Precedence per cluster, highest wins:
//
//  1. active twin with a global override collapses everything to one level
//  2. active twin's per-cluster entry
//  3. selected audience preset (only when no twin governs)
//  4. the user's stored base setting
//  5. the catalog's default sensitivity
//
// Layers are evaluated whole, never field-by-field: a disabled flag at the
// governing layer zeroes the effective level, and a lower layer's disabled
// flag never suppresses a higher layer that re-enables the cluster.
func ResolveMatrix(userID string, state ResolveState) types.ClusterPrivacyMatrix {
	matrix := types.ClusterPrivacyMatrix{
		UserID:   userID,
		Source:   matrixSource(state),
		Clusters: make([]types.ResolvedCluster, 0, len(state.Catalog)),
	}

	// Rule 1: a twin-level global override short-circuits everything.
	if state.Twin != nil && state.Twin.GlobalPrivacyOverride != nil {
		level := *state.Twin.GlobalPrivacyOverride
		for _, def := range state.Catalog {
			resolved := types.ResolvedCluster{
				ClusterID:      def.ID,
				ClusterName:    def.Name,
				PrivacyLevel:   level,
				Enabled:        true,
				EffectiveLevel: level,
				Subclusters:    make([]types.ResolvedSubcluster, 0, len(def.Subclusters)),
			}
			for _, sub := range def.Subclusters {
				resolved.Subclusters = append(resolved.Subclusters, types.ResolvedSubcluster{
					SubclusterID:   sub.ID,
					SubclusterName: sub.Name,
					PrivacyLevel:   level,
					Enabled:        true,
					EffectiveLevel: level,
				})
			}
			matrix.Clusters = append(matrix.Clusters, resolved)
		}
		return matrix
	}

	for _, def := range state.Catalog {
		matrix.Clusters = append(matrix.Clusters, resolveCluster(def, state))
	}

	return matrix
}

// resolveCluster applies rules 2-5 for one cluster and its subclusters.
func resolveCluster(def *models.ClusterDefinition, state ResolveState) types.ResolvedCluster {
	base, hasBase := state.Settings[def.ID]

	var twinEntry *models.ClusterSetting
	if state.Twin != nil {
		if entry, ok := state.Twin.ClusterSettings[def.ID]; ok {
			twinEntry = &entry
		}
	}

	var level types.PrivacyLevel
	var enabled bool

	switch {
	case twinEntry != nil:
		level, enabled = twinEntry.PrivacyLevel, twinEntry.Enabled
	case state.Twin == nil && state.Preset != nil:
		level, enabled = presetLevel(state.Preset, def.ID), true
	case hasBase:
		level, enabled = base.PrivacyLevel, base.Enabled
	default:
		level, enabled = def.DefaultSensitivity, true
	}

	resolved := types.ResolvedCluster{
		ClusterID:      def.ID,
		ClusterName:    def.Name,
		PrivacyLevel:   level,
		Enabled:        enabled,
		EffectiveLevel: effective(level, enabled),
		Subclusters:    make([]types.ResolvedSubcluster, 0, len(def.Subclusters)),
	}

	for _, sub := range def.Subclusters {
		subLevel, subEnabled := resolveSubcluster(sub, twinEntry, base, hasBase, level, enabled, state)
		resolved.Subclusters = append(resolved.Subclusters, types.ResolvedSubcluster{
			SubclusterID:   sub.ID,
			SubclusterName: sub.Name,
			PrivacyLevel:   subLevel,
			Enabled:        subEnabled,
			EffectiveLevel: effective(subLevel, subEnabled),
		})
	}

	return resolved
}

// resolveSubcluster picks the governing entry for one subcluster. Twin
// per-subcluster entries override base subcluster settings one-for-one;
// subclusters not listed by the twin fall through to the base layer. A
// governing audience layer carries no subcluster granularity, so every
// subcluster inherits the cluster-level value.
func resolveSubcluster(
	sub models.Subcluster,
	twinEntry *models.ClusterSetting,
	base models.ClusterSetting,
	hasBase bool,
	clusterLevel types.PrivacyLevel,
	clusterEnabled bool,
	state ResolveState,
) (types.PrivacyLevel, bool) {
	if twinEntry != nil {
		if s, ok := twinEntry.Subclusters[sub.ID]; ok {
			return s.PrivacyLevel, s.Enabled
		}
		// Fall through to the user's base layer, then the catalog default.
		if hasBase {
			if s, ok := base.Subclusters[sub.ID]; ok {
				return s.PrivacyLevel, s.Enabled
			}
		}
		return sub.DefaultSensitivity, true
	}

	if state.Twin == nil && state.Preset != nil {
		return clusterLevel, clusterEnabled
	}

	if hasBase {
		if s, ok := base.Subclusters[sub.ID]; ok {
			return s.PrivacyLevel, s.Enabled
		}
	}

	return sub.DefaultSensitivity, true
}

// presetLevel returns the preset's level for a cluster, falling back to the
// preset's global level for clusters the preset does not list.
func presetLevel(preset *models.AudiencePreset, clusterID string) types.PrivacyLevel {
	if level, ok := preset.DefaultClusterLevels[clusterID]; ok {
		return level
	}
	return preset.GlobalPrivacy
}

// effective zeroes the level when the governing layer disables the entry.
func effective(level types.PrivacyLevel, enabled bool) types.PrivacyLevel {
	if !enabled {
		return 0
	}
	return level
}

// matrixSource reports which layer kind governed the resolution.
func matrixSource(state ResolveState) types.ResolutionSource {
	switch {
	case state.Twin != nil && state.Twin.GlobalPrivacyOverride != nil:
		return types.SourceTwinGlobal
	case state.Twin != nil:
		return types.SourceTwin
	case state.Preset != nil:
		return types.SourceAudience
	default:
		return types.SourceBase
	}
}
