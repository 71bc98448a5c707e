package service

import (
	"context"

	apperrors "github.com/privacy-engine/internal/errors"
	"github.com/privacy-engine/internal/models"
	"github.com/privacy-engine/internal/types"
)

// SettingStore is the full read/write surface of the user's base settings.
type SettingStore interface {
	Get(ctx context.Context, userID, clusterID string) (*models.UserClusterSetting, error)
	ListByUser(ctx context.Context, userID string) ([]*models.UserClusterSetting, error)
	Upsert(ctx context.Context, setting *models.UserClusterSetting) error
	GetGlobal(ctx context.Context, userID string) (*models.UserPrivacy, error)
	UpsertGlobal(ctx context.Context, userID string, level types.PrivacyLevel) error
	ReplaceAll(ctx context.Context, userID string, global types.PrivacyLevel, clusters map[string]models.ClusterSetting) error
}

// TemplateLister lists the user's saved templates.
type TemplateLister interface {
	ListByUser(ctx context.Context, userID string) ([]*models.PrivacyTemplate, error)
}

// PresetLister lists the audience presets visible to a user.
type PresetLister interface {
	ListVisible(ctx context.Context, userID string) ([]*models.AudiencePreset, error)
}

// PrivacyService is the orchestrating facade for the user's base privacy
// settings. Every mutation validates first, persists second, and appends
// exactly one audit entry with before/after snapshots.
type PrivacyService struct {
	registry  CatalogProvider
	settings  SettingStore
	twins     TwinReader
	templates TemplateLister
	presets   PresetLister
	audit     *AuditLogger
	resolver  *Resolver
}

// NewPrivacyService creates a new privacy service
func NewPrivacyService(
	registry CatalogProvider,
	settings SettingStore,
	twins TwinReader,
	templates TemplateLister,
	presets PresetLister,
	audit *AuditLogger,
	resolver *Resolver,
) *PrivacyService {
	return &PrivacyService{
		registry:  registry,
		settings:  settings,
		twins:     twins,
		templates: templates,
		presets:   presets,
		audit:     audit,
		resolver:  resolver,
	}
}

// ClusterSettingResult is the outcome of a single-cluster mutation.
type ClusterSettingResult struct {
	Setting       *models.UserClusterSetting `json:"setting"`
	AuditDegraded bool                       `json:"auditDegraded,omitempty"`
}

// GlobalPrivacyResult is the outcome of a global-level mutation.
type GlobalPrivacyResult struct {
	GlobalPrivacy types.PrivacyLevel `json:"globalPrivacy"`
	AuditDegraded bool               `json:"auditDegraded,omitempty"`
}

// GetSettings returns the user's full settings view. A user with nothing
// stored gets a defaulted response, never a not-found.
func (s *PrivacyService) GetSettings(ctx context.Context, userID string) (*models.PrivacySettings, error) {
	stored, err := s.settings.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.NewPersistenceError("get settings", err)
	}

	global, err := s.settings.GetGlobal(ctx, userID)
	if err != nil {
		return nil, apperrors.NewPersistenceError("get settings", err)
	}

	settings := &models.PrivacySettings{
		UserID:        userID,
		GlobalPrivacy: DefaultGlobalPrivacy,
		Clusters:      make(map[string]models.ClusterSetting, len(stored)),
		Defaulted:     global == nil && len(stored) == 0,
	}
	if global != nil {
		settings.GlobalPrivacy = global.GlobalPrivacy
	}
	for _, row := range stored {
		settings.Clusters[row.ClusterID] = row.Setting
	}

	active, err := s.twins.GetActive(ctx, userID)
	if err != nil {
		return nil, apperrors.NewPersistenceError("get settings", err)
	}
	if active != nil {
		settings.ActiveTwinID = &active.ID
	}

	visible, err := s.presets.ListVisible(ctx, userID)
	if err != nil {
		return nil, apperrors.NewPersistenceError("get settings", err)
	}
	for _, preset := range visible {
		settings.AudiencePresets = append(settings.AudiencePresets, preset.Key)
	}

	saved, err := s.templates.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.NewPersistenceError("get settings", err)
	}
	for _, template := range saved {
		settings.Templates = append(settings.Templates, models.TemplateRef{ID: template.ID, Name: template.Name})
	}

	return settings, nil
}

// UpdateClusterPrivacy sets one cluster's visibility level.
func (s *PrivacyService) UpdateClusterPrivacy(ctx context.Context, userID, clusterID string, level types.PrivacyLevel) (*ClusterSettingResult, error) {
	if err := validateLevel("privacyLevel", level); err != nil {
		return nil, err
	}

	return s.mutateCluster(ctx, userID, clusterID, func(setting *models.ClusterSetting) {
		setting.PrivacyLevel = level
	})
}

// ToggleCluster enables or disables one cluster.
func (s *PrivacyService) ToggleCluster(ctx context.Context, userID, clusterID string, enabled bool) (*ClusterSettingResult, error) {
	return s.mutateCluster(ctx, userID, clusterID, func(setting *models.ClusterSetting) {
		setting.Enabled = enabled
	})
}

// UpdateSubclusterPrivacy sets one subcluster's visibility level.
func (s *PrivacyService) UpdateSubclusterPrivacy(ctx context.Context, userID, clusterID, subclusterID string, level types.PrivacyLevel) (*ClusterSettingResult, error) {
	if err := validateLevel("privacyLevel", level); err != nil {
		return nil, err
	}

	catalog, err := s.registry.CatalogMap(ctx)
	if err != nil {
		return nil, apperrors.NewPersistenceError("update subcluster privacy", err)
	}

	def, ok := catalog[clusterID]
	if !ok {
		return nil, apperrors.NewUnknownClusterError(clusterID)
	}

	sub := def.Subcluster(subclusterID)
	if sub == nil {
		return nil, apperrors.NewUnknownSubclusterError(clusterID, subclusterID)
	}

	return s.mutateClusterWithDef(ctx, userID, def, func(setting *models.ClusterSetting) {
		if setting.Subclusters == nil {
			setting.Subclusters = make(map[string]models.SubclusterSetting)
		}
		entry, ok := setting.Subclusters[subclusterID]
		if !ok {
			entry = models.SubclusterSetting{PrivacyLevel: sub.DefaultSensitivity, Enabled: true}
		}
		entry.PrivacyLevel = level
		setting.Subclusters[subclusterID] = entry
	})
}

// ResetClusterToDefault restores one cluster to its catalog defaults,
// clearing any subcluster overrides.
func (s *PrivacyService) ResetClusterToDefault(ctx context.Context, userID, clusterID string) (*ClusterSettingResult, error) {
	catalog, err := s.registry.CatalogMap(ctx)
	if err != nil {
		return nil, apperrors.NewPersistenceError("reset cluster", err)
	}

	def, ok := catalog[clusterID]
	if !ok {
		return nil, apperrors.NewUnknownClusterError(clusterID)
	}

	return s.mutateClusterWithDef(ctx, userID, def, func(setting *models.ClusterSetting) {
		*setting = defaultSetting(def)
	})
}

// UpdateGlobalPrivacy sets the user's base global level.
func (s *PrivacyService) UpdateGlobalPrivacy(ctx context.Context, userID string, level types.PrivacyLevel) (*GlobalPrivacyResult, error) {
	if err := validateLevel("globalPrivacy", level); err != nil {
		return nil, err
	}

	previous := DefaultGlobalPrivacy
	if current, err := s.settings.GetGlobal(ctx, userID); err != nil {
		return nil, apperrors.NewPersistenceError("update global privacy", err)
	} else if current != nil {
		previous = current.GlobalPrivacy
	}

	if err := s.settings.UpsertGlobal(ctx, userID, level); err != nil {
		return nil, apperrors.NewPersistenceError("update global privacy", err)
	}

	prev, next := globalChange(previous, level)
	degraded := s.audit.Record(ctx, &models.PrivacyAuditLog{
		UserID:         userID,
		Action:         types.ActionGlobalPrivacyChanged,
		PreviousGlobal: prev,
		NewGlobal:      next,
	})

	return &GlobalPrivacyResult{GlobalPrivacy: level, AuditDegraded: degraded}, nil
}

// Resolve computes the visibility matrix for a viewing context.
func (s *PrivacyService) Resolve(ctx context.Context, userID string, twinID, audienceID *string) (*types.ClusterPrivacyMatrix, error) {
	matrix, err := s.resolver.Resolve(ctx, userID, twinID, audienceID)
	if err != nil {
		return nil, apperrors.NewPersistenceError("resolve", err)
	}
	return matrix, nil
}

// GetAuditLog retrieves the user's audit history, newest first.
func (s *PrivacyService) GetAuditLog(ctx context.Context, userID string, limit, offset int) ([]*models.PrivacyAuditLog, int64, error) {
	entries, total, err := s.audit.List(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, apperrors.NewPersistenceError("get audit log", err)
	}
	return entries, total, nil
}

// mutateCluster resolves the cluster definition then applies a mutation.
func (s *PrivacyService) mutateCluster(ctx context.Context, userID, clusterID string, apply func(*models.ClusterSetting)) (*ClusterSettingResult, error) {
	catalog, err := s.registry.CatalogMap(ctx)
	if err != nil {
		return nil, apperrors.NewPersistenceError("load catalog", err)
	}

	def, ok := catalog[clusterID]
	if !ok {
		return nil, apperrors.NewUnknownClusterError(clusterID)
	}

	return s.mutateClusterWithDef(ctx, userID, def, apply)
}

// mutateClusterWithDef loads-or-creates the setting row, applies the
// change, persists, and appends one audit entry with the before/after pair.
// Single-cluster mutations are independently atomic: one row, one upsert.
func (s *PrivacyService) mutateClusterWithDef(ctx context.Context, userID string, def *models.ClusterDefinition, apply func(*models.ClusterSetting)) (*ClusterSettingResult, error) {
	row, err := s.settings.Get(ctx, userID, def.ID)
	if err != nil {
		return nil, apperrors.NewPersistenceError("load cluster setting", err)
	}

	var previous *models.ClusterSetting
	if row == nil {
		row = &models.UserClusterSetting{
			UserID:    userID,
			ClusterID: def.ID,
			Setting:   defaultSetting(def),
		}
	} else {
		snapshot := copySetting(row.Setting)
		previous = &snapshot
	}

	apply(&row.Setting)

	if err := s.settings.Upsert(ctx, row); err != nil {
		return nil, apperrors.NewPersistenceError("persist cluster setting", err)
	}

	next := copySetting(row.Setting)
	degraded := s.audit.Record(ctx, &models.PrivacyAuditLog{
		UserID:         userID,
		Action:         types.ActionClusterUpdated,
		ClusterChanges: clusterChange(def.ID, previous, &next),
	})

	return &ClusterSettingResult{Setting: row, AuditDegraded: degraded}, nil
}
