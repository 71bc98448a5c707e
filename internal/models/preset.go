package models

import (
	"time"

	"github.com/privacy-engine/internal/types"
)

// AudiencePreset is a reusable named bundle of cluster levels, consulted
// when no twin is active and the caller selects an audience explicitly.
// Presets carry no subcluster granularity: subclusters of an affected
// cluster inherit the cluster-level value. System presets are immutable;
// custom presets belong to the creating user.
type AudiencePreset struct {
	Key                  string                        `json:"key" db:"key"`
	UserID               *string                       `json:"userId,omitempty" db:"user_id"`
	Name                 string                        `json:"name" db:"name"`
	Description          string                        `json:"description" db:"description"`
	DefaultClusterLevels map[string]types.PrivacyLevel `json:"defaultClusterLevels" db:"default_cluster_levels"`
	GlobalPrivacy        types.PrivacyLevel            `json:"globalPrivacy" db:"global_privacy"`
	IsSystem             bool                          `json:"isSystem" db:"is_system"`
	CreatedAt            time.Time                     `json:"createdAt" db:"created_at"`
}
