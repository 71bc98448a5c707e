package service

import (
	apperrors "github.com/privacy-engine/internal/errors"
	"github.com/privacy-engine/internal/models"
	"github.com/privacy-engine/internal/types"
)

// DefaultGlobalPrivacy is the base global level for users who have never
// stored one.
const DefaultGlobalPrivacy types.PrivacyLevel = 50

// validateLevel rejects levels outside 0-100 before any mutation.
func validateLevel(field string, level types.PrivacyLevel) error {
	if !level.Valid() {
		return apperrors.NewOutOfRangeError(field, int(level))
	}
	return nil
}

// validateClusterSettings rejects settings maps that reference clusters or
// subclusters absent from the current catalog, or carry out-of-range
// levels. Unknown keys are rejected, never silently dropped.
func validateClusterSettings(catalog map[string]*models.ClusterDefinition, settings map[string]models.ClusterSetting) error {
	for clusterID, setting := range settings {
		def, ok := catalog[clusterID]
		if !ok {
			return apperrors.NewUnknownClusterError(clusterID)
		}

		if err := validateLevel("privacyLevel", setting.PrivacyLevel); err != nil {
			return err
		}

		for subclusterID, sub := range setting.Subclusters {
			if def.Subcluster(subclusterID) == nil {
				return apperrors.NewUnknownSubclusterError(clusterID, subclusterID)
			}
			if err := validateLevel("privacyLevel", sub.PrivacyLevel); err != nil {
				return err
			}
		}
	}

	return nil
}

// defaultSetting builds the lazily-created base setting for a cluster the
// user has never touched.
func defaultSetting(def *models.ClusterDefinition) models.ClusterSetting {
	return models.ClusterSetting{
		PrivacyLevel: def.DefaultSensitivity,
		Enabled:      true,
	}
}

// copySetting deep-copies a cluster setting so audit snapshots are not
// aliased to the mutated value.
func copySetting(s models.ClusterSetting) models.ClusterSetting {
	out := models.ClusterSetting{
		PrivacyLevel: s.PrivacyLevel,
		Enabled:      s.Enabled,
	}
	if s.Subclusters != nil {
		out.Subclusters = make(map[string]models.SubclusterSetting, len(s.Subclusters))
		for k, v := range s.Subclusters {
			out.Subclusters[k] = v
		}
	}
	return out
}
