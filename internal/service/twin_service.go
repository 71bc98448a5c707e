package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/privacy-engine/internal/errors"
	"github.com/privacy-engine/internal/models"
	"github.com/privacy-engine/internal/types"
)

// TwinStore is the persistence surface for contextual twins.
type TwinStore interface {
	Create(ctx context.Context, twin *models.ContextualTwin) error
	GetByIDAndUser(ctx context.Context, id, userID string) (*models.ContextualTwin, error)
	GetActive(ctx context.Context, userID string) (*models.ContextualTwin, error)
	ListByUser(ctx context.Context, userID string) ([]*models.ContextualTwin, error)
	Update(ctx context.Context, twin *models.ContextualTwin) error
	Activate(ctx context.Context, userID, twinID string) (*models.ContextualTwin, bool, error)
	Deactivate(ctx context.Context, userID string) (*string, error)
	DeleteByIDAndUser(ctx context.Context, id, userID string) (bool, error)
	ListHistory(ctx context.Context, twinID, userID string, limit int) ([]*models.TwinActivationHistory, error)
}

// TwinService manages the lifecycle of contextual twins.
type TwinService struct {
	registry CatalogProvider
	twins    TwinStore
	audit    *AuditLogger
}

// NewTwinService creates a new twin service
func NewTwinService(registry CatalogProvider, twins TwinStore, audit *AuditLogger) *TwinService {
	return &TwinService{
		registry: registry,
		twins:    twins,
		audit:    audit,
	}
}

// TwinResult is the outcome of a twin mutation.
type TwinResult struct {
	Twin          *models.ContextualTwin `json:"twin"`
	AuditDegraded bool                   `json:"auditDegraded,omitempty"`
}

// CreateTwinInput carries the caller-supplied fields for a new twin.
type CreateTwinInput struct {
	Name                  string                           `json:"name"`
	TwinType              types.TwinType                   `json:"twinType"`
	ClusterSettings       map[string]models.ClusterSetting `json:"clusterSettings"`
	GlobalPrivacyOverride *types.PrivacyLevel              `json:"globalPrivacyOverride"`
	IsDefault             bool                             `json:"isDefault"`
}

// UpdateTwinInput carries partial updates for an existing twin. Nil fields
// are left unchanged. ClearGlobalOverride removes the override outright.
type UpdateTwinInput struct {
	Name                  *string                          `json:"name"`
	TwinType              *types.TwinType                  `json:"twinType"`
	ClusterSettings       map[string]models.ClusterSetting `json:"clusterSettings"`
	GlobalPrivacyOverride *types.PrivacyLevel              `json:"globalPrivacyOverride"`
	ClearGlobalOverride   bool                             `json:"clearGlobalOverride"`
	IsDefault             *bool                            `json:"isDefault"`
}

// CreateTwin validates and stores a new twin. New twins are never active.
func (s *TwinService) CreateTwin(ctx context.Context, userID string, input CreateTwinInput) (*TwinResult, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, apperrors.NewInvalidParameterError("name", "must not be empty")
	}
	if !types.ValidTwinType(input.TwinType) {
		return nil, apperrors.NewInvalidParameterError("twinType", "unknown twin type")
	}
	if input.GlobalPrivacyOverride != nil {
		if err := validateLevel("globalPrivacyOverride", *input.GlobalPrivacyOverride); err != nil {
			return nil, err
		}
	}

	catalog, err := s.registry.CatalogMap(ctx)
	if err != nil {
		return nil, apperrors.NewPersistenceError("create twin", err)
	}
	if err := validateClusterSettings(catalog, input.ClusterSettings); err != nil {
		return nil, err
	}

	twin := &models.ContextualTwin{
		UserID:                userID,
		Name:                  strings.TrimSpace(input.Name),
		TwinType:              input.TwinType,
		ClusterSettings:       input.ClusterSettings,
		GlobalPrivacyOverride: input.GlobalPrivacyOverride,
		IsDefault:             input.IsDefault,
	}
	if twin.ClusterSettings == nil {
		twin.ClusterSettings = make(map[string]models.ClusterSetting)
	}

	if err := s.twins.Create(ctx, twin); err != nil {
		return nil, apperrors.NewPersistenceError("create twin", err)
	}

	degraded := s.audit.Record(ctx, &models.PrivacyAuditLog{
		UserID:         userID,
		Action:         types.ActionTwinCreated,
		NewGlobal:      levelCopy(twin.GlobalPrivacyOverride),
		ClusterChanges: settingsDiff(nil, twin.ClusterSettings),
		Metadata: map[string]interface{}{
			"twinId":   twin.ID,
			"twinType": twin.TwinType,
			"name":     twin.Name,
		},
	})

	return &TwinResult{Twin: twin, AuditDegraded: degraded}, nil
}

// UpdateTwin applies a partial update to an owned twin.
func (s *TwinService) UpdateTwin(ctx context.Context, userID, twinID string, input UpdateTwinInput) (*TwinResult, error) {
	twin, err := s.twins.GetByIDAndUser(ctx, twinID, userID)
	if err != nil {
		return nil, apperrors.NewPersistenceError("update twin", err)
	}
	if twin == nil {
		return nil, apperrors.NewNotFoundError("twin", twinID)
	}

	previousSettings := make(map[string]models.ClusterSetting, len(twin.ClusterSettings))
	for clusterID, setting := range twin.ClusterSettings {
		previousSettings[clusterID] = copySetting(setting)
	}
	previousOverride := levelCopy(twin.GlobalPrivacyOverride)

	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			return nil, apperrors.NewInvalidParameterError("name", "must not be empty")
		}
		twin.Name = strings.TrimSpace(*input.Name)
	}
	if input.TwinType != nil {
		if !types.ValidTwinType(*input.TwinType) {
			return nil, apperrors.NewInvalidParameterError("twinType", "unknown twin type")
		}
		twin.TwinType = *input.TwinType
	}
	if input.ClusterSettings != nil {
		catalog, err := s.registry.CatalogMap(ctx)
		if err != nil {
			return nil, apperrors.NewPersistenceError("update twin", err)
		}
		if err := validateClusterSettings(catalog, input.ClusterSettings); err != nil {
			return nil, err
		}
		twin.ClusterSettings = input.ClusterSettings
	}
	if input.ClearGlobalOverride {
		twin.GlobalPrivacyOverride = nil
	} else if input.GlobalPrivacyOverride != nil {
		if err := validateLevel("globalPrivacyOverride", *input.GlobalPrivacyOverride); err != nil {
			return nil, err
		}
		twin.GlobalPrivacyOverride = input.GlobalPrivacyOverride
	}
	if input.IsDefault != nil {
		twin.IsDefault = *input.IsDefault
	}

	if err := s.twins.Update(ctx, twin); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("twin", twinID)
		}
		return nil, apperrors.NewPersistenceError("update twin", err)
	}

	degraded := s.audit.Record(ctx, &models.PrivacyAuditLog{
		UserID:         userID,
		Action:         types.ActionTwinUpdated,
		PreviousGlobal: previousOverride,
		NewGlobal:      levelCopy(twin.GlobalPrivacyOverride),
		ClusterChanges: settingsDiff(previousSettings, twin.ClusterSettings),
		Metadata:       map[string]interface{}{"twinId": twin.ID},
	})

	return &TwinResult{Twin: twin, AuditDegraded: degraded}, nil
}

// DeleteTwin removes an owned twin. Deleting the active twin deactivates
// it first, so resolution falls back to base settings. The audit entry
// captures the twin's final state, since the row is gone once this returns.
func (s *TwinService) DeleteTwin(ctx context.Context, userID, twinID string) (bool, error) {
	twin, err := s.twins.GetByIDAndUser(ctx, twinID, userID)
	if err != nil {
		return false, apperrors.NewPersistenceError("delete twin", err)
	}
	if twin == nil {
		return false, apperrors.NewNotFoundError("twin", twinID)
	}

	wasActive, err := s.twins.DeleteByIDAndUser(ctx, twinID, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, apperrors.NewNotFoundError("twin", twinID)
		}
		return false, apperrors.NewPersistenceError("delete twin", err)
	}

	degraded := s.audit.Record(ctx, &models.PrivacyAuditLog{
		UserID:         userID,
		Action:         types.ActionTwinDeleted,
		PreviousGlobal: levelCopy(twin.GlobalPrivacyOverride),
		ClusterChanges: settingsDiff(twin.ClusterSettings, nil),
		Metadata: map[string]interface{}{
			"twinId":    twinID,
			"twinType":  twin.TwinType,
			"name":      twin.Name,
			"wasActive": wasActive,
		},
	})

	return degraded, nil
}

// ActivateTwin makes the twin the user's single active persona. Activating
// the twin that is already active is a no-op: no counters move, no history
// row is written, and no audit entry is appended.
func (s *TwinService) ActivateTwin(ctx context.Context, userID, twinID string) (*TwinResult, error) {
	twin, changed, err := s.twins.Activate(ctx, userID, twinID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("twin", twinID)
		}
		return nil, apperrors.NewPersistenceError("activate twin", err)
	}

	if !changed {
		return &TwinResult{Twin: twin}, nil
	}

	degraded := s.audit.Record(ctx, &models.PrivacyAuditLog{
		UserID: userID,
		Action: types.ActionTwinActivated,
		Metadata: map[string]interface{}{
			"twinId":    twin.ID,
			"activated": true,
		},
	})

	return &TwinResult{Twin: twin, AuditDegraded: degraded}, nil
}

// DeactivateTwin clears the user's active twin, if any. Deactivating when
// nothing is active is a no-op.
func (s *TwinService) DeactivateTwin(ctx context.Context, userID string) (deactivatedID *string, degraded bool, err error) {
	id, err := s.twins.Deactivate(ctx, userID)
	if err != nil {
		return nil, false, apperrors.NewPersistenceError("deactivate twin", err)
	}
	if id == nil {
		return nil, false, nil
	}

	degraded = s.audit.Record(ctx, &models.PrivacyAuditLog{
		UserID: userID,
		Action: types.ActionTwinActivated,
		Metadata: map[string]interface{}{
			"twinId":    *id,
			"activated": false,
		},
	})

	return id, degraded, nil
}

// GetTwin returns one owned twin.
func (s *TwinService) GetTwin(ctx context.Context, userID, twinID string) (*models.ContextualTwin, error) {
	twin, err := s.twins.GetByIDAndUser(ctx, twinID, userID)
	if err != nil {
		return nil, apperrors.NewPersistenceError("get twin", err)
	}
	if twin == nil {
		return nil, apperrors.NewNotFoundError("twin", twinID)
	}
	return twin, nil
}

// ListTwins returns all of the user's twins.
func (s *TwinService) ListTwins(ctx context.Context, userID string) ([]*models.ContextualTwin, error) {
	twins, err := s.twins.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.NewPersistenceError("list twins", err)
	}
	return twins, nil
}

// GetActivationHistory returns recent activations for an owned twin,
// newest first.
func (s *TwinService) GetActivationHistory(ctx context.Context, userID, twinID string, limit int) ([]*models.TwinActivationHistory, error) {
	twin, err := s.twins.GetByIDAndUser(ctx, twinID, userID)
	if err != nil {
		return nil, apperrors.NewPersistenceError("get activation history", err)
	}
	if twin == nil {
		return nil, apperrors.NewNotFoundError("twin", twinID)
	}

	if limit <= 0 || limit > 200 {
		limit = 50
	}

	history, err := s.twins.ListHistory(ctx, twinID, userID, limit)
	if err != nil {
		return nil, apperrors.NewPersistenceError("get activation history", err)
	}
	return history, nil
}
