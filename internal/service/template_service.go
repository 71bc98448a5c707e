package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/privacy-engine/internal/errors"
	"github.com/privacy-engine/internal/logging"
	"github.com/privacy-engine/internal/models"
	"github.com/privacy-engine/internal/types"
)

// TemplateStore is the persistence surface for privacy templates.
type TemplateStore interface {
	Create(ctx context.Context, template *models.PrivacyTemplate) error
	GetByIDAndUser(ctx context.Context, id, userID string) (*models.PrivacyTemplate, error)
	ListByUser(ctx context.Context, userID string) ([]*models.PrivacyTemplate, error)
	RecordUsage(ctx context.Context, id, userID string) error
	DeleteByIDAndUser(ctx context.Context, id, userID string) error
}

// PresetStore is the persistence surface for audience presets.
type PresetStore interface {
	GetByKey(ctx context.Context, key, userID string) (*models.AudiencePreset, error)
	ListVisible(ctx context.Context, userID string) ([]*models.AudiencePreset, error)
	Create(ctx context.Context, preset *models.AudiencePreset) error
	DeleteCustom(ctx context.Context, key, userID string) error
}

// TemplateService manages templates and presets, both of which replace the
// user's entire baseline in a single transaction when applied.
type TemplateService struct {
	registry  CatalogProvider
	settings  SettingStore
	templates TemplateStore
	presets   PresetStore
	audit     *AuditLogger
}

// NewTemplateService creates a new template service
func NewTemplateService(
	registry CatalogProvider,
	settings SettingStore,
	templates TemplateStore,
	presets PresetStore,
	audit *AuditLogger,
) *TemplateService {
	return &TemplateService{
		registry:  registry,
		settings:  settings,
		templates: templates,
		presets:   presets,
		audit:     audit,
	}
}

// ApplyResult is the outcome of a template or preset application.
type ApplyResult struct {
	GlobalPrivacy   types.PrivacyLevel               `json:"globalPrivacy"`
	Clusters        map[string]models.ClusterSetting `json:"clusters"`
	SkippedClusters []string                         `json:"skippedClusters,omitempty"`
	AuditDegraded   bool                             `json:"auditDegraded,omitempty"`
}

// CreateTemplate snapshots the user's current settings under a name. A
// cluster with no stored row is captured at its catalog defaults, so the
// template is a complete baseline.
func (s *TemplateService) CreateTemplate(ctx context.Context, userID, name string) (*models.PrivacyTemplate, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apperrors.NewInvalidParameterError("name", "must not be empty")
	}

	catalog, err := s.registry.Catalog(ctx)
	if err != nil {
		return nil, apperrors.NewPersistenceError("create template", err)
	}

	stored, err := s.settings.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.NewPersistenceError("create template", err)
	}
	byCluster := make(map[string]models.ClusterSetting, len(stored))
	for _, row := range stored {
		byCluster[row.ClusterID] = row.Setting
	}

	global := DefaultGlobalPrivacy
	if current, err := s.settings.GetGlobal(ctx, userID); err != nil {
		return nil, apperrors.NewPersistenceError("create template", err)
	} else if current != nil {
		global = current.GlobalPrivacy
	}

	levels := make(map[string]models.ClusterSetting, len(catalog))
	for _, def := range catalog {
		if setting, ok := byCluster[def.ID]; ok {
			levels[def.ID] = copySetting(setting)
		} else {
			levels[def.ID] = defaultSetting(def)
		}
	}

	template := &models.PrivacyTemplate{
		UserID:        userID,
		Name:          strings.TrimSpace(name),
		GlobalPrivacy: global,
		ClusterLevels: levels,
	}
	if err := s.templates.Create(ctx, template); err != nil {
		return nil, apperrors.NewPersistenceError("create template", err)
	}

	return template, nil
}

// ListTemplates returns the user's templates, most used first.
func (s *TemplateService) ListTemplates(ctx context.Context, userID string) ([]*models.PrivacyTemplate, error) {
	templates, err := s.templates.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.NewPersistenceError("list templates", err)
	}
	return templates, nil
}

// DeleteTemplate removes an owned template.
func (s *TemplateService) DeleteTemplate(ctx context.Context, userID, templateID string) error {
	if err := s.templates.DeleteByIDAndUser(ctx, templateID, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFoundError("template", templateID)
		}
		return apperrors.NewPersistenceError("delete template", err)
	}
	return nil
}

// ApplyTemplate replaces the user's entire baseline with the template's
// snapshot in one transaction. Clusters that have since vanished from the
// catalog are skipped and reported, never applied. Usage bookkeeping is
// best effort and cannot fail the application.
func (s *TemplateService) ApplyTemplate(ctx context.Context, userID, templateID string) (*ApplyResult, error) {
	template, err := s.templates.GetByIDAndUser(ctx, templateID, userID)
	if err != nil {
		return nil, apperrors.NewPersistenceError("apply template", err)
	}
	if template == nil {
		return nil, apperrors.NewNotFoundError("template", templateID)
	}

	catalog, err := s.registry.CatalogMap(ctx)
	if err != nil {
		return nil, apperrors.NewPersistenceError("apply template", err)
	}

	clusters := make(map[string]models.ClusterSetting, len(template.ClusterLevels))
	var skipped []string
	for clusterID, setting := range template.ClusterLevels {
		if _, ok := catalog[clusterID]; !ok {
			skipped = append(skipped, clusterID)
			continue
		}
		clusters[clusterID] = setting
	}

	result, err := s.replaceBaseline(ctx, userID, template.GlobalPrivacy, clusters, skipped, types.ActionTemplateApplied, map[string]interface{}{
		"templateId": template.ID,
		"name":       template.Name,
	})
	if err != nil {
		return nil, err
	}

	if err := s.templates.RecordUsage(ctx, templateID, userID); err != nil {
		logging.FromContext(ctx).WithError(err).
			WithField("template_id", templateID).
			Warn("Failed to record template usage")
	}

	return result, nil
}

// ListPresets returns system presets plus the user's custom ones.
func (s *TemplateService) ListPresets(ctx context.Context, userID string) ([]*models.AudiencePreset, error) {
	presets, err := s.presets.ListVisible(ctx, userID)
	if err != nil {
		return nil, apperrors.NewPersistenceError("list presets", err)
	}
	return presets, nil
}

// CreatePresetInput carries the caller-supplied fields for a custom preset.
type CreatePresetInput struct {
	Key                  string                        `json:"key"`
	Name                 string                        `json:"name"`
	Description          string                        `json:"description"`
	DefaultClusterLevels map[string]types.PrivacyLevel `json:"defaultClusterLevels"`
	GlobalPrivacy        types.PrivacyLevel            `json:"globalPrivacy"`
}

// CreatePreset stores a custom preset owned by the user.
func (s *TemplateService) CreatePreset(ctx context.Context, userID string, input CreatePresetInput) (*models.AudiencePreset, error) {
	if strings.TrimSpace(input.Key) == "" {
		return nil, apperrors.NewInvalidParameterError("key", "must not be empty")
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, apperrors.NewInvalidParameterError("name", "must not be empty")
	}
	if err := validateLevel("globalPrivacy", input.GlobalPrivacy); err != nil {
		return nil, err
	}

	catalog, err := s.registry.CatalogMap(ctx)
	if err != nil {
		return nil, apperrors.NewPersistenceError("create preset", err)
	}
	for clusterID, level := range input.DefaultClusterLevels {
		if _, ok := catalog[clusterID]; !ok {
			return nil, apperrors.NewUnknownClusterError(clusterID)
		}
		if err := validateLevel("defaultClusterLevels."+clusterID, level); err != nil {
			return nil, err
		}
	}

	existing, err := s.presets.GetByKey(ctx, input.Key, userID)
	if err != nil {
		return nil, apperrors.NewPersistenceError("create preset", err)
	}
	if existing != nil {
		return nil, apperrors.NewConflictError("preset key already in use: " + input.Key)
	}

	preset := &models.AudiencePreset{
		Key:                  strings.TrimSpace(input.Key),
		UserID:               &userID,
		Name:                 strings.TrimSpace(input.Name),
		Description:          input.Description,
		DefaultClusterLevels: input.DefaultClusterLevels,
		GlobalPrivacy:        input.GlobalPrivacy,
	}
	if preset.DefaultClusterLevels == nil {
		preset.DefaultClusterLevels = make(map[string]types.PrivacyLevel)
	}

	if err := s.presets.Create(ctx, preset); err != nil {
		return nil, apperrors.NewPersistenceError("create preset", err)
	}
	return preset, nil
}

// DeletePreset removes a user's custom preset. System presets are immutable.
func (s *TemplateService) DeletePreset(ctx context.Context, userID, key string) error {
	existing, err := s.presets.GetByKey(ctx, key, userID)
	if err != nil {
		return apperrors.NewPersistenceError("delete preset", err)
	}
	if existing == nil {
		return apperrors.NewNotFoundError("preset", key)
	}
	if existing.IsSystem {
		return apperrors.NewConflictError("system presets cannot be deleted")
	}

	if err := s.presets.DeleteCustom(ctx, key, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFoundError("preset", key)
		}
		return apperrors.NewPersistenceError("delete preset", err)
	}
	return nil
}

// ApplyPreset replaces the user's baseline with the preset's levels.
// Catalog clusters the preset does not mention get the preset's global
// level, so the result is still a complete baseline.
func (s *TemplateService) ApplyPreset(ctx context.Context, userID, key string) (*ApplyResult, error) {
	preset, err := s.presets.GetByKey(ctx, key, userID)
	if err != nil {
		return nil, apperrors.NewPersistenceError("apply preset", err)
	}
	if preset == nil {
		return nil, apperrors.NewNotFoundError("preset", key)
	}

	catalog, err := s.registry.Catalog(ctx)
	if err != nil {
		return nil, apperrors.NewPersistenceError("apply preset", err)
	}

	clusters := make(map[string]models.ClusterSetting, len(catalog))
	var skipped []string
	for _, def := range catalog {
		level, ok := preset.DefaultClusterLevels[def.ID]
		if !ok {
			level = preset.GlobalPrivacy
		}
		clusters[def.ID] = models.ClusterSetting{PrivacyLevel: level, Enabled: true}
	}
	for clusterID := range preset.DefaultClusterLevels {
		if _, ok := clusterIDKnown(catalog, clusterID); !ok {
			skipped = append(skipped, clusterID)
		}
	}

	return s.replaceBaseline(ctx, userID, preset.GlobalPrivacy, clusters, skipped, types.ActionPresetApplied, map[string]interface{}{
		"presetKey": preset.Key,
		"name":      preset.Name,
	})
}

// replaceBaseline swaps the user's full baseline in one transaction,
// records the audit entry with the replaced state, and shapes the result.
// The audit diff is the only surviving record of the pre-application
// baseline, so it is captured before ReplaceAll commits.
func (s *TemplateService) replaceBaseline(
	ctx context.Context,
	userID string,
	global types.PrivacyLevel,
	clusters map[string]models.ClusterSetting,
	skipped []string,
	action types.AuditAction,
	metadata map[string]interface{},
) (*ApplyResult, error) {
	previousGlobal := DefaultGlobalPrivacy
	if current, err := s.settings.GetGlobal(ctx, userID); err != nil {
		return nil, apperrors.NewPersistenceError("replace settings", err)
	} else if current != nil {
		previousGlobal = current.GlobalPrivacy
	}

	stored, err := s.settings.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.NewPersistenceError("replace settings", err)
	}
	previousClusters := make(map[string]models.ClusterSetting, len(stored))
	for _, row := range stored {
		previousClusters[row.ClusterID] = copySetting(row.Setting)
	}

	if err := s.settings.ReplaceAll(ctx, userID, global, clusters); err != nil {
		return nil, apperrors.NewPersistenceError("replace settings", err)
	}

	if len(skipped) > 0 {
		metadata["skippedClusters"] = skipped
	}
	prev, next := globalChange(previousGlobal, global)
	degraded := s.audit.Record(ctx, &models.PrivacyAuditLog{
		UserID:         userID,
		Action:         action,
		PreviousGlobal: prev,
		NewGlobal:      next,
		ClusterChanges: settingsDiff(previousClusters, clusters),
		Metadata:       metadata,
	})

	return &ApplyResult{
		GlobalPrivacy:   global,
		Clusters:        clusters,
		SkippedClusters: skipped,
		AuditDegraded:   degraded,
	}, nil
}

func clusterIDKnown(catalog []*models.ClusterDefinition, clusterID string) (*models.ClusterDefinition, bool) {
	for _, def := range catalog {
		if def.ID == clusterID {
			return def, true
		}
	}
	return nil, false
}
