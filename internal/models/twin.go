package models

import (
	"time"

	"github.com/privacy-engine/internal/types"
)

// ContextualTwin is a named presentation persona. ClusterSettings is
// sparse: a cluster absent from the map falls through to the user's base
// setting. GlobalPrivacyOverride, when set, short-circuits all per-cluster
// computation to a single level. At most one twin per user is active at
// any moment; the store enforces this with a partial unique index.
type ContextualTwin struct {
	ID                    string                    `json:"id" db:"id"`
	UserID                string                    `json:"userId" db:"user_id"`
	Name                  string                    `json:"name" db:"name"`
	TwinType              types.TwinType            `json:"twinType" db:"twin_type"`
	ClusterSettings       map[string]ClusterSetting `json:"clusterSettings" db:"cluster_settings"`
	GlobalPrivacyOverride *types.PrivacyLevel       `json:"globalPrivacyOverride,omitempty" db:"global_privacy_override"`
	IsActive              bool                      `json:"isActive" db:"is_active"`
	IsDefault             bool                      `json:"isDefault" db:"is_default"`
	ActivationCount       int64                     `json:"activationCount" db:"activation_count"`
	LastActivatedAt       *time.Time                `json:"lastActivatedAt,omitempty" db:"last_activated_at"`
	CreatedAt             time.Time                 `json:"createdAt" db:"created_at"`
	UpdatedAt             time.Time                 `json:"updatedAt" db:"updated_at"`
}

// TwinActivationHistory is one activation event for a twin.
type TwinActivationHistory struct {
	ID          string    `json:"id" db:"id"`
	TwinID      string    `json:"twinId" db:"twin_id"`
	UserID      string    `json:"userId" db:"user_id"`
	ActivatedAt time.Time `json:"activatedAt" db:"activated_at"`
}
