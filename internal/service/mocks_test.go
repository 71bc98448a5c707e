package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/privacy-engine/internal/models"
	"github.com/privacy-engine/internal/retry"
	"github.com/privacy-engine/internal/types"
)

var errStoreDown = errors.New("store unavailable")

// testCatalog is a small three-cluster catalog shared by the service tests.
func testCatalog() []*models.ClusterDefinition {
	return []*models.ClusterDefinition{
		{
			ID:                 "professional-identity",
			Name:               "Professional Identity",
			Category:           types.CategoryProfessional,
			DefaultSensitivity: 60,
			Position:           1,
			Subclusters: []models.Subcluster{
				{ID: "job-title", Name: "Job Title", DefaultSensitivity: 70},
				{ID: "salary", Name: "Salary", DefaultSensitivity: 10},
			},
		},
		{
			ID:                 "health-wellness",
			Name:               "Health & Wellness",
			Category:           types.CategoryPersonal,
			DefaultSensitivity: 20,
			Position:           2,
			Subclusters: []models.Subcluster{
				{ID: "fitness", Name: "Fitness", DefaultSensitivity: 40},
				{ID: "medications", Name: "Medications", DefaultSensitivity: 5},
			},
		},
		{
			ID:                 "creative-work",
			Name:               "Creative Work",
			Category:           types.CategoryCreative,
			DefaultSensitivity: 80,
			Position:           3,
		},
	}
}

type mockCatalog struct {
	clusters []*models.ClusterDefinition
	err      error
}

func newMockCatalog() *mockCatalog {
	return &mockCatalog{clusters: testCatalog()}
}

func (m *mockCatalog) Catalog(ctx context.Context) ([]*models.ClusterDefinition, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.clusters, nil
}

func (m *mockCatalog) CatalogMap(ctx context.Context) (map[string]*models.ClusterDefinition, error) {
	if m.err != nil {
		return nil, m.err
	}
	byID := make(map[string]*models.ClusterDefinition, len(m.clusters))
	for _, def := range m.clusters {
		byID[def.ID] = def
	}
	return byID, nil
}

type mockSettingStore struct {
	settings map[string]*models.UserClusterSetting // keyed user|cluster
	globals  map[string]types.PrivacyLevel
	err      error

	upserts     int
	replaceAlls int
}

func newMockSettingStore() *mockSettingStore {
	return &mockSettingStore{
		settings: make(map[string]*models.UserClusterSetting),
		globals:  make(map[string]types.PrivacyLevel),
	}
}

func settingKey(userID, clusterID string) string {
	return fmt.Sprintf("%s|%s", userID, clusterID)
}

func (m *mockSettingStore) Get(ctx context.Context, userID, clusterID string) (*models.UserClusterSetting, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.settings[settingKey(userID, clusterID)], nil
}

func (m *mockSettingStore) ListByUser(ctx context.Context, userID string) ([]*models.UserClusterSetting, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*models.UserClusterSetting
	for _, s := range m.settings {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockSettingStore) Upsert(ctx context.Context, setting *models.UserClusterSetting) error {
	if m.err != nil {
		return m.err
	}
	m.upserts++
	m.settings[settingKey(setting.UserID, setting.ClusterID)] = setting
	return nil
}

func (m *mockSettingStore) GetGlobal(ctx context.Context, userID string) (*models.UserPrivacy, error) {
	if m.err != nil {
		return nil, m.err
	}
	level, ok := m.globals[userID]
	if !ok {
		return nil, nil
	}
	return &models.UserPrivacy{UserID: userID, GlobalPrivacy: level}, nil
}

func (m *mockSettingStore) UpsertGlobal(ctx context.Context, userID string, level types.PrivacyLevel) error {
	if m.err != nil {
		return m.err
	}
	m.globals[userID] = level
	return nil
}

func (m *mockSettingStore) ReplaceAll(ctx context.Context, userID string, global types.PrivacyLevel, clusters map[string]models.ClusterSetting) error {
	if m.err != nil {
		return m.err
	}
	m.replaceAlls++
	for key, s := range m.settings {
		if s.UserID == userID {
			delete(m.settings, key)
		}
	}
	m.globals[userID] = global
	for clusterID, setting := range clusters {
		m.settings[settingKey(userID, clusterID)] = &models.UserClusterSetting{
			UserID:    userID,
			ClusterID: clusterID,
			Setting:   setting,
		}
	}
	return nil
}

type mockTwinStore struct {
	twins   map[string]*models.ContextualTwin
	history []*models.TwinActivationHistory
	err     error

	nextID int
}

func newMockTwinStore() *mockTwinStore {
	return &mockTwinStore{twins: make(map[string]*models.ContextualTwin)}
}

func (m *mockTwinStore) Create(ctx context.Context, twin *models.ContextualTwin) error {
	if m.err != nil {
		return m.err
	}
	m.nextID++
	twin.ID = fmt.Sprintf("twin-%d", m.nextID)
	twin.IsActive = false
	twin.ActivationCount = 0
	m.twins[twin.ID] = twin
	return nil
}

func (m *mockTwinStore) GetByIDAndUser(ctx context.Context, id, userID string) (*models.ContextualTwin, error) {
	if m.err != nil {
		return nil, m.err
	}
	twin, ok := m.twins[id]
	if !ok || twin.UserID != userID {
		return nil, nil
	}
	return twin, nil
}

func (m *mockTwinStore) GetActive(ctx context.Context, userID string) (*models.ContextualTwin, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, twin := range m.twins {
		if twin.UserID == userID && twin.IsActive {
			return twin, nil
		}
	}
	return nil, nil
}

func (m *mockTwinStore) ListByUser(ctx context.Context, userID string) ([]*models.ContextualTwin, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*models.ContextualTwin
	for _, twin := range m.twins {
		if twin.UserID == userID {
			out = append(out, twin)
		}
	}
	return out, nil
}

func (m *mockTwinStore) Update(ctx context.Context, twin *models.ContextualTwin) error {
	if m.err != nil {
		return m.err
	}
	existing, ok := m.twins[twin.ID]
	if !ok || existing.UserID != twin.UserID {
		return pgx.ErrNoRows
	}
	m.twins[twin.ID] = twin
	return nil
}

func (m *mockTwinStore) Activate(ctx context.Context, userID, twinID string) (*models.ContextualTwin, bool, error) {
	if m.err != nil {
		return nil, false, m.err
	}
	twin, ok := m.twins[twinID]
	if !ok || twin.UserID != userID {
		return nil, false, pgx.ErrNoRows
	}
	if twin.IsActive {
		return twin, false, nil
	}
	for _, other := range m.twins {
		if other.UserID == userID {
			other.IsActive = false
		}
	}
	twin.IsActive = true
	twin.ActivationCount++
	m.history = append(m.history, &models.TwinActivationHistory{
		ID:     fmt.Sprintf("hist-%d", len(m.history)+1),
		TwinID: twinID,
		UserID: userID,
	})
	return twin, true, nil
}

func (m *mockTwinStore) Deactivate(ctx context.Context, userID string) (*string, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, twin := range m.twins {
		if twin.UserID == userID && twin.IsActive {
			twin.IsActive = false
			id := twin.ID
			return &id, nil
		}
	}
	return nil, nil
}

func (m *mockTwinStore) DeleteByIDAndUser(ctx context.Context, id, userID string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	twin, ok := m.twins[id]
	if !ok || twin.UserID != userID {
		return false, pgx.ErrNoRows
	}
	wasActive := twin.IsActive
	delete(m.twins, id)
	return wasActive, nil
}

func (m *mockTwinStore) ListHistory(ctx context.Context, twinID, userID string, limit int) ([]*models.TwinActivationHistory, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*models.TwinActivationHistory
	for i := len(m.history) - 1; i >= 0 && len(out) < limit; i-- {
		if m.history[i].TwinID == twinID && m.history[i].UserID == userID {
			out = append(out, m.history[i])
		}
	}
	return out, nil
}

type mockPresetStore struct {
	presets map[string]*models.AudiencePreset
	err     error
}

func newMockPresetStore() *mockPresetStore {
	return &mockPresetStore{presets: make(map[string]*models.AudiencePreset)}
}

func (m *mockPresetStore) GetByKey(ctx context.Context, key, userID string) (*models.AudiencePreset, error) {
	if m.err != nil {
		return nil, m.err
	}
	preset, ok := m.presets[key]
	if !ok {
		return nil, nil
	}
	if !preset.IsSystem && (preset.UserID == nil || *preset.UserID != userID) {
		return nil, nil
	}
	return preset, nil
}

func (m *mockPresetStore) ListVisible(ctx context.Context, userID string) ([]*models.AudiencePreset, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*models.AudiencePreset
	for _, preset := range m.presets {
		if preset.IsSystem || (preset.UserID != nil && *preset.UserID == userID) {
			out = append(out, preset)
		}
	}
	return out, nil
}

func (m *mockPresetStore) Create(ctx context.Context, preset *models.AudiencePreset) error {
	if m.err != nil {
		return m.err
	}
	m.presets[preset.Key] = preset
	return nil
}

func (m *mockPresetStore) DeleteCustom(ctx context.Context, key, userID string) error {
	if m.err != nil {
		return m.err
	}
	preset, ok := m.presets[key]
	if !ok || preset.IsSystem {
		return pgx.ErrNoRows
	}
	delete(m.presets, key)
	return nil
}

type mockTemplateStore struct {
	templates map[string]*models.PrivacyTemplate
	err       error

	usageRecorded int
	usageErr      error
	nextID        int
}

func newMockTemplateStore() *mockTemplateStore {
	return &mockTemplateStore{templates: make(map[string]*models.PrivacyTemplate)}
}

func (m *mockTemplateStore) Create(ctx context.Context, template *models.PrivacyTemplate) error {
	if m.err != nil {
		return m.err
	}
	m.nextID++
	template.ID = fmt.Sprintf("template-%d", m.nextID)
	m.templates[template.ID] = template
	return nil
}

func (m *mockTemplateStore) GetByIDAndUser(ctx context.Context, id, userID string) (*models.PrivacyTemplate, error) {
	if m.err != nil {
		return nil, m.err
	}
	template, ok := m.templates[id]
	if !ok || template.UserID != userID {
		return nil, nil
	}
	return template, nil
}

func (m *mockTemplateStore) ListByUser(ctx context.Context, userID string) ([]*models.PrivacyTemplate, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*models.PrivacyTemplate
	for _, template := range m.templates {
		if template.UserID == userID {
			out = append(out, template)
		}
	}
	return out, nil
}

func (m *mockTemplateStore) RecordUsage(ctx context.Context, id, userID string) error {
	if m.usageErr != nil {
		return m.usageErr
	}
	m.usageRecorded++
	if template, ok := m.templates[id]; ok {
		template.UsageCount++
	}
	return nil
}

func (m *mockTemplateStore) DeleteByIDAndUser(ctx context.Context, id, userID string) error {
	if m.err != nil {
		return m.err
	}
	template, ok := m.templates[id]
	if !ok || template.UserID != userID {
		return pgx.ErrNoRows
	}
	delete(m.templates, id)
	return nil
}

type mockAuditStore struct {
	entries []*models.PrivacyAuditLog
	err     error
}

func (m *mockAuditStore) Append(ctx context.Context, entry *models.PrivacyAuditLog) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.PrivacyAuditLog, error) {
	if m.err != nil {
		return nil, m.err
	}
	var matched []*models.PrivacyAuditLog
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].UserID == userID {
			matched = append(matched, m.entries[i])
		}
	}
	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (m *mockAuditStore) CountByUser(ctx context.Context, userID string) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	var total int64
	for _, entry := range m.entries {
		if entry.UserID == userID {
			total++
		}
	}
	return total, nil
}

// fastRetry keeps audit retry delays negligible in tests.
func fastRetry() *retry.Config {
	return &retry.Config{
		MaxAttempts:  2,
		InitialDelay: 1,
		MaxDelay:     1,
		Multiplier:   1,
	}
}

func newTestAuditLogger(store *mockAuditStore) *AuditLogger {
	return NewAuditLogger(store, fastRetry())
}

func levelPtr(l types.PrivacyLevel) *types.PrivacyLevel { return &l }

func strPtr(s string) *string { return &s }
