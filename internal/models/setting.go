package models

import (
	"time"

	"github.com/privacy-engine/internal/types"
)

// SubclusterSetting is the per-subcluster slice of a cluster setting.
type SubclusterSetting struct {
	PrivacyLevel types.PrivacyLevel `json:"privacyLevel"`
	Enabled      bool               `json:"enabled"`
}

// ClusterSetting is one cluster's visibility configuration: a level, an
// enabled flag, and sparse per-subcluster overrides keyed by subcluster id.
// The same shape is used for the user's base settings and for twin overrides.
type ClusterSetting struct {
	PrivacyLevel types.PrivacyLevel           `json:"privacyLevel"`
	Enabled      bool                         `json:"enabled"`
	Subclusters  map[string]SubclusterSetting `json:"subclusters,omitempty"`
}

// UserClusterSetting is the user's base setting for one cluster, keyed by
// (user_id, cluster_id). Created lazily on first write; absent rows default
// to the catalog's default sensitivity. Every key in Subclusters must
// reference a subcluster present in the cluster's current definition.
type UserClusterSetting struct {
	UserID    string         `json:"userId" db:"user_id"`
	ClusterID string         `json:"clusterId" db:"cluster_id"`
	Setting   ClusterSetting `json:"setting" db:"setting"`
	CreatedAt time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time      `json:"updatedAt" db:"updated_at"`
}

// UserPrivacy is the user's base global privacy level.
type UserPrivacy struct {
	UserID        string             `json:"userId" db:"user_id"`
	GlobalPrivacy types.PrivacyLevel `json:"globalPrivacy" db:"global_privacy"`
	UpdatedAt     time.Time          `json:"updatedAt" db:"updated_at"`
}

// TemplateRef is a lightweight pointer to a saved template, enough for a
// settings view to list what can be applied without loading the snapshots.
type TemplateRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PrivacySettings is the full settings view returned by GetSettings:
// the base global level, every stored cluster setting, the active twin if
// any, and references to the audience presets and templates available to
// the user.
type PrivacySettings struct {
	UserID          string                    `json:"userId"`
	GlobalPrivacy   types.PrivacyLevel        `json:"globalPrivacy"`
	Clusters        map[string]ClusterSetting `json:"clusters"`
	ActiveTwinID    *string                   `json:"activeTwinId,omitempty"`
	AudiencePresets []string                  `json:"audiencePresets,omitempty"`
	Templates       []TemplateRef             `json:"templates,omitempty"`
	Defaulted       bool                      `json:"defaulted"`
}
