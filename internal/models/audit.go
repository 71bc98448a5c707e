package models

import (
	"time"

	"github.com/privacy-engine/internal/types"
)

// ClusterChange is the before/after pair for one cluster in an audit entry.
type ClusterChange struct {
	Previous *ClusterSetting `json:"previous,omitempty"`
	New      *ClusterSetting `json:"new,omitempty"`
}

// PrivacyAuditLog is one append-only record of a privacy-affecting
// mutation. Entries are never updated or deleted; the audit table is the
// sole mutation-history source of truth.
type PrivacyAuditLog struct {
	ID             string                   `json:"id" db:"id"`
	UserID         string                   `json:"userId" db:"user_id"`
	Action         types.AuditAction        `json:"action" db:"action"`
	PreviousGlobal *types.PrivacyLevel      `json:"previousGlobal,omitempty" db:"previous_global"`
	NewGlobal      *types.PrivacyLevel      `json:"newGlobal,omitempty" db:"new_global"`
	ClusterChanges map[string]ClusterChange `json:"clusterChanges,omitempty" db:"cluster_changes"`
	Metadata       map[string]interface{}   `json:"metadata,omitempty" db:"metadata"`
	ChangedAt      time.Time                `json:"changedAt" db:"changed_at"`
}
