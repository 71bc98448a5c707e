package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/privacy-engine/internal/models"
)

// TemplateRepository handles privacy template persistence.
type TemplateRepository struct {
	db *PostgresDB
}

// NewTemplateRepository creates a new template repository
func NewTemplateRepository(db *PostgresDB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

const templateColumns = `id, user_id, name, global_privacy, cluster_levels, usage_count, last_used, created_at`

// Create stores a captured settings snapshot.
func (r *TemplateRepository) Create(ctx context.Context, template *models.PrivacyTemplate) error {
	if template.ID == "" {
		template.ID = uuid.New().String()
	}
	template.CreatedAt = time.Now()

	levelsJSON, err := json.Marshal(template.ClusterLevels)
	if err != nil {
		return fmt.Errorf("failed to marshal cluster levels: %w", err)
	}

	query := `
		INSERT INTO privacy_templates (id, user_id, name, global_privacy, cluster_levels, usage_count, last_used, created_at)
		VALUES ($1, $2, $3, $4, $5, 0, NULL, $6)
	`

	_, err = r.db.Pool().Exec(ctx, query,
		template.ID,
		template.UserID,
		template.Name,
		template.GlobalPrivacy,
		levelsJSON,
		template.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}

	return nil
}

// GetByIDAndUser retrieves a template owned by the user, (nil, nil) when absent.
func (r *TemplateRepository) GetByIDAndUser(ctx context.Context, id, userID string) (*models.PrivacyTemplate, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM privacy_templates
		WHERE id = $1 AND user_id = $2
	`, templateColumns)

	template, err := scanTemplate(r.db.Pool().QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	return template, nil
}

// ListByUser retrieves the user's templates ranked for UI: most used first,
// then most recently created.
func (r *TemplateRepository) ListByUser(ctx context.Context, userID string) ([]*models.PrivacyTemplate, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM privacy_templates
		WHERE user_id = $1
		ORDER BY usage_count DESC, created_at DESC
	`, templateColumns)

	rows, err := r.db.Pool().Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var templates []*models.PrivacyTemplate
	for rows.Next() {
		template, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, template)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating templates: %w", err)
	}

	return templates, nil
}

// RecordUsage increments usage_count and stamps last_used. Best-effort
// bookkeeping: callers do not roll back settings changes on failure.
func (r *TemplateRepository) RecordUsage(ctx context.Context, id, userID string) error {
	_, err := r.db.Pool().Exec(ctx,
		`UPDATE privacy_templates SET usage_count = usage_count + 1, last_used = NOW()
		 WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to record template usage: %w", err)
	}
	return nil
}

// DeleteByIDAndUser deletes a template owned by the user.
func (r *TemplateRepository) DeleteByIDAndUser(ctx context.Context, id, userID string) error {
	result, err := r.db.Pool().Exec(ctx,
		`DELETE FROM privacy_templates WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}

	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	return nil
}

// scanTemplate scans one template row
func scanTemplate(row pgx.Row) (*models.PrivacyTemplate, error) {
	var template models.PrivacyTemplate
	var levelsJSON []byte

	err := row.Scan(
		&template.ID,
		&template.UserID,
		&template.Name,
		&template.GlobalPrivacy,
		&levelsJSON,
		&template.UsageCount,
		&template.LastUsed,
		&template.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(levelsJSON) > 0 {
		if err := json.Unmarshal(levelsJSON, &template.ClusterLevels); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cluster levels: %w", err)
		}
	}

	return &template, nil
}
