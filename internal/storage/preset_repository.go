package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/privacy-engine/internal/models"
)

// PresetRepository handles audience preset persistence. System presets are
// seeded at deployment and immutable; custom presets belong to the creating
// user.
type PresetRepository struct {
	db *PostgresDB
}

// NewPresetRepository creates a new preset repository
func NewPresetRepository(db *PostgresDB) *PresetRepository {
	return &PresetRepository{db: db}
}

const presetColumns = `key, user_id, name, description, default_cluster_levels, global_privacy, is_system, created_at`

// GetByKey retrieves a preset visible to the user: any system preset, or a
// custom preset the user owns. Returns (nil, nil) when absent.
func (r *PresetRepository) GetByKey(ctx context.Context, key, userID string) (*models.AudiencePreset, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM audience_presets
		WHERE key = $1 AND (is_system OR user_id = $2)
	`, presetColumns)

	preset, err := scanPreset(r.db.Pool().QueryRow(ctx, query, key, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get preset: %w", err)
	}

	return preset, nil
}

// ListVisible retrieves every system preset plus the user's custom presets.
func (r *PresetRepository) ListVisible(ctx context.Context, userID string) ([]*models.AudiencePreset, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM audience_presets
		WHERE is_system OR user_id = $1
		ORDER BY is_system DESC, key
	`, presetColumns)

	rows, err := r.db.Pool().Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list presets: %w", err)
	}
	defer rows.Close()

	var presets []*models.AudiencePreset
	for rows.Next() {
		preset, err := scanPreset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan preset: %w", err)
		}
		presets = append(presets, preset)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating presets: %w", err)
	}

	return presets, nil
}

// Create creates a custom preset.
func (r *PresetRepository) Create(ctx context.Context, preset *models.AudiencePreset) error {
	levelsJSON, err := json.Marshal(preset.DefaultClusterLevels)
	if err != nil {
		return fmt.Errorf("failed to marshal cluster levels: %w", err)
	}

	query := `
		INSERT INTO audience_presets (key, user_id, name, description, default_cluster_levels, global_privacy, is_system, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`

	_, err = r.db.Pool().Exec(ctx, query,
		preset.Key,
		preset.UserID,
		preset.Name,
		preset.Description,
		levelsJSON,
		preset.GlobalPrivacy,
		preset.IsSystem,
	)

	if err != nil {
		return fmt.Errorf("failed to create preset: %w", err)
	}

	return nil
}

// UpsertSystem inserts or updates a system preset. Used only by seeding.
func (r *PresetRepository) UpsertSystem(ctx context.Context, preset *models.AudiencePreset) error {
	levelsJSON, err := json.Marshal(preset.DefaultClusterLevels)
	if err != nil {
		return fmt.Errorf("failed to marshal cluster levels: %w", err)
	}

	query := `
		INSERT INTO audience_presets (key, user_id, name, description, default_cluster_levels, global_privacy, is_system, created_at)
		VALUES ($1, NULL, $2, $3, $4, $5, true, NOW())
		ON CONFLICT (key) DO UPDATE
		SET name = EXCLUDED.name,
		    description = EXCLUDED.description,
		    default_cluster_levels = EXCLUDED.default_cluster_levels,
		    global_privacy = EXCLUDED.global_privacy
	`

	_, err = r.db.Pool().Exec(ctx, query,
		preset.Key,
		preset.Name,
		preset.Description,
		levelsJSON,
		preset.GlobalPrivacy,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert system preset: %w", err)
	}

	return nil
}

// DeleteCustom deletes a custom preset owned by the user. System presets
// are never matched and report pgx.ErrNoRows.
func (r *PresetRepository) DeleteCustom(ctx context.Context, key, userID string) error {
	result, err := r.db.Pool().Exec(ctx,
		`DELETE FROM audience_presets WHERE key = $1 AND user_id = $2 AND NOT is_system`,
		key, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete preset: %w", err)
	}

	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	return nil
}

// scanPreset scans one preset row
func scanPreset(row pgx.Row) (*models.AudiencePreset, error) {
	var preset models.AudiencePreset
	var levelsJSON []byte

	err := row.Scan(
		&preset.Key,
		&preset.UserID,
		&preset.Name,
		&preset.Description,
		&levelsJSON,
		&preset.GlobalPrivacy,
		&preset.IsSystem,
		&preset.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(levelsJSON) > 0 {
		if err := json.Unmarshal(levelsJSON, &preset.DefaultClusterLevels); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cluster levels: %w", err)
		}
	}

	return &preset, nil
}
