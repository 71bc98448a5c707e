package models

import (
	"time"

	"github.com/privacy-engine/internal/types"
)

// PrivacyTemplate is a snapshot of a user's entire settings (global level
// plus every cluster), intended for one-shot restoration. UsageCount and
// LastUsed are UI-ranking bookkeeping, never consulted by resolution.
type PrivacyTemplate struct {
	ID            string                    `json:"id" db:"id"`
	UserID        string                    `json:"userId" db:"user_id"`
	Name          string                    `json:"name" db:"name"`
	GlobalPrivacy types.PrivacyLevel        `json:"globalPrivacy" db:"global_privacy"`
	ClusterLevels map[string]ClusterSetting `json:"clusterLevels" db:"cluster_levels"`
	UsageCount    int64                     `json:"usageCount" db:"usage_count"`
	LastUsed      *time.Time                `json:"lastUsed,omitempty" db:"last_used"`
	CreatedAt     time.Time                 `json:"createdAt" db:"created_at"`
}
