// Package types provides common type definitions for the privacy engine.
package types

// PrivacyLevel is a 0-100 visibility scalar; higher means more revealed.
type PrivacyLevel int

const (
	// MinPrivacyLevel is the lowest accepted visibility level (fully hidden)
	MinPrivacyLevel PrivacyLevel = 0
	// MaxPrivacyLevel is the highest accepted visibility level (fully revealed)
	MaxPrivacyLevel PrivacyLevel = 100
)

// Valid reports whether the level is within the accepted 0-100 range.
func (l PrivacyLevel) Valid() bool {
	return l >= MinPrivacyLevel && l <= MaxPrivacyLevel
}

// ClusterCategory represents the broad grouping of a data cluster
type ClusterCategory string

const (
	// CategoryPersonal represents personal-life data clusters
	CategoryPersonal ClusterCategory = "personal"
	// CategoryProfessional represents work and career data clusters
	CategoryProfessional ClusterCategory = "professional"
	// CategoryCreative represents creative-output data clusters
	CategoryCreative ClusterCategory = "creative"
)

// ValidClusterCategory reports whether the category is a known value.
func ValidClusterCategory(c ClusterCategory) bool {
	switch c {
	case CategoryPersonal, CategoryProfessional, CategoryCreative:
		return true
	default:
		return false
	}
}

// TwinType represents the intended presentation context of a contextual twin
type TwinType string

const (
	// TwinProfessional represents a work-facing persona
	TwinProfessional TwinType = "professional"
	// TwinSocial represents a friends-facing persona
	TwinSocial TwinType = "social"
	// TwinDating represents a dating-facing persona
	TwinDating TwinType = "dating"
	// TwinPublic represents a fully public persona
	TwinPublic TwinType = "public"
	// TwinCustom represents a user-defined persona
	TwinCustom TwinType = "custom"
)

// ValidTwinType reports whether the twin type is a known value.
func ValidTwinType(t TwinType) bool {
	switch t {
	case TwinProfessional, TwinSocial, TwinDating, TwinPublic, TwinCustom:
		return true
	default:
		return false
	}
}

// AuditAction identifies the kind of privacy-affecting mutation recorded
// in the audit log.
type AuditAction string

const (
	// ActionSettingsUpdated represents a bulk settings change
	ActionSettingsUpdated AuditAction = "settings_updated"
	// ActionClusterUpdated represents a single-cluster settings change
	ActionClusterUpdated AuditAction = "cluster_updated"
	// ActionGlobalPrivacyChanged represents a change to the base global level
	ActionGlobalPrivacyChanged AuditAction = "global_privacy_changed"
	// ActionTwinCreated represents creation of a contextual twin
	ActionTwinCreated AuditAction = "twin_created"
	// ActionTwinUpdated represents an update to a contextual twin
	ActionTwinUpdated AuditAction = "twin_updated"
	// ActionTwinDeleted represents deletion of a contextual twin
	ActionTwinDeleted AuditAction = "twin_deleted"
	// ActionTwinActivated represents twin activation or deactivation
	ActionTwinActivated AuditAction = "twin_activated"
	// ActionTemplateApplied represents application of a privacy template
	ActionTemplateApplied AuditAction = "template_applied"
	// ActionPresetApplied represents application of an audience preset
	ActionPresetApplied AuditAction = "preset_applied"
)

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// ResolvedSubcluster is the resolved visibility for one subcluster.
type ResolvedSubcluster struct {
	SubclusterID   string       `json:"subclusterId"`
	SubclusterName string       `json:"subclusterName"`
	PrivacyLevel   PrivacyLevel `json:"privacyLevel"`
	Enabled        bool         `json:"enabled"`
	EffectiveLevel PrivacyLevel `json:"effectiveLevel"`
}

// ResolvedCluster is the resolved visibility for one cluster and its
// subclusters. EffectiveLevel is 0 when the governing layer disables the
// cluster, PrivacyLevel otherwise.
type ResolvedCluster struct {
	ClusterID      string               `json:"clusterId"`
	ClusterName    string               `json:"clusterName"`
	PrivacyLevel   PrivacyLevel         `json:"privacyLevel"`
	Enabled        bool                 `json:"enabled"`
	EffectiveLevel PrivacyLevel         `json:"effectiveLevel"`
	Subclusters    []ResolvedSubcluster `json:"subclusters"`
}

// ResolutionSource identifies the precedence layer that governed a resolution.
type ResolutionSource string

const (
	// SourceTwinGlobal means a twin's global override collapsed every level
	SourceTwinGlobal ResolutionSource = "twin_global_override"
	// SourceTwin means an active twin's cluster settings governed
	SourceTwin ResolutionSource = "twin"
	// SourceAudience means a selected audience preset governed
	SourceAudience ResolutionSource = "audience"
	// SourceBase means the user's base settings and catalog defaults governed
	SourceBase ResolutionSource = "base"
)

// ClusterPrivacyMatrix is the complete resolved visibility for a user in a
// given viewing context. Clusters are ordered by catalog position so the
// matrix is deterministic for identical inputs and state.
type ClusterPrivacyMatrix struct {
	UserID     string            `json:"userId"`
	TwinID     *string           `json:"twinId,omitempty"`
	AudienceID *string           `json:"audienceId,omitempty"`
	Source     ResolutionSource  `json:"source"`
	Clusters   []ResolvedCluster `json:"clusters"`
}
