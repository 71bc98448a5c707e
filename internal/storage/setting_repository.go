package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/privacy-engine/internal/models"
	"github.com/privacy-engine/internal/types"
)

// SettingRepository handles per-user cluster settings and the user's base
// global privacy level. Settings rows are created lazily on first write and
// are never deleted except with the account.
type SettingRepository struct {
	db *PostgresDB
}

// NewSettingRepository creates a new setting repository
func NewSettingRepository(db *PostgresDB) *SettingRepository {
	return &SettingRepository{db: db}
}

// BeginTx starts a new transaction
func (r *SettingRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.db.Pool().Begin(ctx)
}

// Get retrieves the setting for one (user, cluster) pair. An absent row is
// returned as (nil, nil): absence is an expected state, defaulted by the
// caller from the catalog.
func (r *SettingRepository) Get(ctx context.Context, userID, clusterID string) (*models.UserClusterSetting, error) {
	query := `
		SELECT user_id, cluster_id, privacy_level, enabled, subcluster_settings, created_at, updated_at
		FROM user_cluster_settings
		WHERE user_id = $1 AND cluster_id = $2
	`

	setting, err := scanSetting(r.db.Pool().QueryRow(ctx, query, userID, clusterID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cluster setting: %w", err)
	}

	return setting, nil
}

// ListByUser retrieves every stored cluster setting for a user, ordered by
// cluster id for stable output.
func (r *SettingRepository) ListByUser(ctx context.Context, userID string) ([]*models.UserClusterSetting, error) {
	query := `
		SELECT user_id, cluster_id, privacy_level, enabled, subcluster_settings, created_at, updated_at
		FROM user_cluster_settings
		WHERE user_id = $1
		ORDER BY cluster_id
	`

	rows, err := r.db.Pool().Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cluster settings: %w", err)
	}
	defer rows.Close()

	var settings []*models.UserClusterSetting
	for rows.Next() {
		setting, err := scanSetting(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cluster setting: %w", err)
		}
		settings = append(settings, setting)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cluster settings: %w", err)
	}

	return settings, nil
}

// Upsert inserts or updates one cluster setting row.
func (r *SettingRepository) Upsert(ctx context.Context, setting *models.UserClusterSetting) error {
	return r.upsert(ctx, r.db.Pool(), setting)
}

// UpsertTx inserts or updates one cluster setting row within a transaction.
func (r *SettingRepository) UpsertTx(ctx context.Context, tx pgx.Tx, setting *models.UserClusterSetting) error {
	return r.upsert(ctx, tx, setting)
}

func (r *SettingRepository) upsert(ctx context.Context, exec queryExecer, setting *models.UserClusterSetting) error {
	subclustersJSON, err := json.Marshal(setting.Setting.Subclusters)
	if err != nil {
		return fmt.Errorf("failed to marshal subcluster settings: %w", err)
	}

	now := time.Now()
	setting.UpdatedAt = now
	if setting.CreatedAt.IsZero() {
		setting.CreatedAt = now
	}

	query := `
		INSERT INTO user_cluster_settings (user_id, cluster_id, privacy_level, enabled, subcluster_settings, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, cluster_id) DO UPDATE
		SET privacy_level = EXCLUDED.privacy_level,
		    enabled = EXCLUDED.enabled,
		    subcluster_settings = EXCLUDED.subcluster_settings,
		    updated_at = EXCLUDED.updated_at
	`

	_, err = exec.Exec(ctx, query,
		setting.UserID,
		setting.ClusterID,
		setting.Setting.PrivacyLevel,
		setting.Setting.Enabled,
		subclustersJSON,
		setting.CreatedAt,
		setting.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert cluster setting: %w", err)
	}

	return nil
}

// GetGlobal retrieves the user's base global privacy level. An absent row
// is returned as (nil, nil).
func (r *SettingRepository) GetGlobal(ctx context.Context, userID string) (*models.UserPrivacy, error) {
	query := `
		SELECT user_id, global_privacy, updated_at
		FROM user_privacy
		WHERE user_id = $1
	`

	var up models.UserPrivacy
	err := r.db.Pool().QueryRow(ctx, query, userID).Scan(&up.UserID, &up.GlobalPrivacy, &up.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get global privacy: %w", err)
	}

	return &up, nil
}

// UpsertGlobal inserts or updates the user's base global privacy level.
func (r *SettingRepository) UpsertGlobal(ctx context.Context, userID string, level types.PrivacyLevel) error {
	return r.upsertGlobal(ctx, r.db.Pool(), userID, level)
}

// UpsertGlobalTx inserts or updates the global level within a transaction.
func (r *SettingRepository) UpsertGlobalTx(ctx context.Context, tx pgx.Tx, userID string, level types.PrivacyLevel) error {
	return r.upsertGlobal(ctx, tx, userID, level)
}

func (r *SettingRepository) upsertGlobal(ctx context.Context, exec queryExecer, userID string, level types.PrivacyLevel) error {
	query := `
		INSERT INTO user_privacy (user_id, global_privacy, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET global_privacy = EXCLUDED.global_privacy,
		    updated_at = EXCLUDED.updated_at
	`

	if _, err := exec.Exec(ctx, query, userID, level, time.Now()); err != nil {
		return fmt.Errorf("failed to upsert global privacy: %w", err)
	}

	return nil
}

// ReplaceAll replaces the user's entire baseline (global level plus every
// given cluster setting) in one transaction. Partial application is not a
// supported state: any failure rolls the whole replacement back.
func (r *SettingRepository) ReplaceAll(ctx context.Context, userID string, global types.PrivacyLevel, clusters map[string]models.ClusterSetting) error {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin replace transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx) // no-op after commit
	}()

	if err := r.upsertGlobal(ctx, tx, userID, global); err != nil {
		return err
	}

	for clusterID, setting := range clusters {
		row := &models.UserClusterSetting{
			UserID:    userID,
			ClusterID: clusterID,
			Setting:   setting,
		}
		if err := r.upsert(ctx, tx, row); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit replace: %w", err)
	}

	return nil
}

// scanSetting scans one user cluster setting row
func scanSetting(row pgx.Row) (*models.UserClusterSetting, error) {
	var setting models.UserClusterSetting
	var subclustersJSON []byte

	err := row.Scan(
		&setting.UserID,
		&setting.ClusterID,
		&setting.Setting.PrivacyLevel,
		&setting.Setting.Enabled,
		&subclustersJSON,
		&setting.CreatedAt,
		&setting.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(subclustersJSON) > 0 {
		if err := json.Unmarshal(subclustersJSON, &setting.Setting.Subclusters); err != nil {
			return nil, fmt.Errorf("failed to unmarshal subcluster settings: %w", err)
		}
	}

	return &setting, nil
}
