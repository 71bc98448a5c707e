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

// TwinRepository handles contextual twin persistence and owns the twin
// activation state machine. The "at most one active twin per user"
// invariant is enforced twice: transactionally (clear-then-set inside one
// transaction) and by a partial unique index on (user_id) WHERE is_active.
type TwinRepository struct {
	db *PostgresDB
}

// NewTwinRepository creates a new twin repository
func NewTwinRepository(db *PostgresDB) *TwinRepository {
	return &TwinRepository{db: db}
}

const twinColumns = `id, user_id, name, twin_type, cluster_settings, global_privacy_override,
	is_active, is_default, activation_count, last_activated_at, created_at, updated_at`

// Create creates a new twin. New twins are never created active.
func (r *TwinRepository) Create(ctx context.Context, twin *models.ContextualTwin) error {
	if twin.ID == "" {
		twin.ID = uuid.New().String()
	}

	now := time.Now()
	twin.CreatedAt = now
	twin.UpdatedAt = now
	twin.IsActive = false
	twin.ActivationCount = 0

	settingsJSON, err := json.Marshal(twin.ClusterSettings)
	if err != nil {
		return fmt.Errorf("failed to marshal cluster settings: %w", err)
	}

	query := `
		INSERT INTO contextual_twins (id, user_id, name, twin_type, cluster_settings, global_privacy_override,
			is_active, is_default, activation_count, last_activated_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = r.db.Pool().Exec(ctx, query,
		twin.ID,
		twin.UserID,
		twin.Name,
		twin.TwinType,
		settingsJSON,
		twin.GlobalPrivacyOverride,
		twin.IsActive,
		twin.IsDefault,
		twin.ActivationCount,
		twin.LastActivatedAt,
		twin.CreatedAt,
		twin.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create twin: %w", err)
	}

	return nil
}

// GetByIDAndUser retrieves a twin owned by the user. An absent or
// foreign-owned twin is returned as (nil, nil) so callers surface a uniform
// not-found without leaking ownership.
func (r *TwinRepository) GetByIDAndUser(ctx context.Context, id, userID string) (*models.ContextualTwin, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM contextual_twins
		WHERE id = $1 AND user_id = $2
	`, twinColumns)

	twin, err := scanTwin(r.db.Pool().QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get twin: %w", err)
	}

	return twin, nil
}

// GetActive retrieves the user's active twin, or (nil, nil) when none.
func (r *TwinRepository) GetActive(ctx context.Context, userID string) (*models.ContextualTwin, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM contextual_twins
		WHERE user_id = $1 AND is_active
	`, twinColumns)

	twin, err := scanTwin(r.db.Pool().QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active twin: %w", err)
	}

	return twin, nil
}

// ListByUser retrieves all twins for a user ordered by creation time.
func (r *TwinRepository) ListByUser(ctx context.Context, userID string) ([]*models.ContextualTwin, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM contextual_twins
		WHERE user_id = $1
		ORDER BY created_at, id
	`, twinColumns)

	rows, err := r.db.Pool().Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list twins: %w", err)
	}
	defer rows.Close()

	var twins []*models.ContextualTwin
	for rows.Next() {
		twin, err := scanTwin(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan twin: %w", err)
		}
		twins = append(twins, twin)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating twins: %w", err)
	}

	return twins, nil
}

// Update updates a twin's mutable fields. Activation state is not touched
// here; it moves only through Activate/Deactivate/Delete.
func (r *TwinRepository) Update(ctx context.Context, twin *models.ContextualTwin) error {
	twin.UpdatedAt = time.Now()

	settingsJSON, err := json.Marshal(twin.ClusterSettings)
	if err != nil {
		return fmt.Errorf("failed to marshal cluster settings: %w", err)
	}

	query := `
		UPDATE contextual_twins
		SET name = $3, twin_type = $4, cluster_settings = $5, global_privacy_override = $6,
		    is_default = $7, updated_at = $8
		WHERE id = $1 AND user_id = $2
	`

	result, err := r.db.Pool().Exec(ctx, query,
		twin.ID,
		twin.UserID,
		twin.Name,
		twin.TwinType,
		settingsJSON,
		twin.GlobalPrivacyOverride,
		twin.IsDefault,
		twin.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to update twin: %w", err)
	}

	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	return nil
}

// Activate makes the twin the user's single active twin. Clearing the
// previous active twin and setting the new one happen inside one
// transaction, so no interleaving ever observes two active twins. Returns
// the refreshed twin and whether a state change occurred: activating the
// already-active twin is an idempotent no-op that neither increments the
// activation count nor writes history.
func (r *TwinRepository) Activate(ctx context.Context, userID, twinID string) (*models.ContextualTwin, bool, error) {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin activation transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx) // no-op after commit
	}()

	var isActive bool
	err = tx.QueryRow(ctx,
		`SELECT is_active FROM contextual_twins WHERE id = $1 AND user_id = $2 FOR UPDATE`,
		twinID, userID,
	).Scan(&isActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, pgx.ErrNoRows
		}
		return nil, false, fmt.Errorf("failed to lock twin for activation: %w", err)
	}

	if isActive {
		if err := tx.Commit(ctx); err != nil {
			return nil, false, fmt.Errorf("failed to commit activation: %w", err)
		}
		twin, err := r.GetByIDAndUser(ctx, twinID, userID)
		if err != nil {
			return nil, false, err
		}
		return twin, false, nil
	}

	if _, err := tx.Exec(ctx,
		`UPDATE contextual_twins SET is_active = false, updated_at = NOW() WHERE user_id = $1 AND is_active`,
		userID,
	); err != nil {
		return nil, false, fmt.Errorf("failed to clear active twin: %w", err)
	}

	now := time.Now()
	if _, err := tx.Exec(ctx,
		`UPDATE contextual_twins
		 SET is_active = true, activation_count = activation_count + 1, last_activated_at = $3, updated_at = $3
		 WHERE id = $1 AND user_id = $2`,
		twinID, userID, now,
	); err != nil {
		return nil, false, fmt.Errorf("failed to activate twin: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO twin_activation_history (id, twin_id, user_id, activated_at) VALUES ($1, $2, $3, $4)`,
		uuid.New().String(), twinID, userID, now,
	); err != nil {
		return nil, false, fmt.Errorf("failed to record activation history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("failed to commit activation: %w", err)
	}

	twin, err := r.GetByIDAndUser(ctx, twinID, userID)
	if err != nil {
		return nil, false, err
	}
	return twin, true, nil
}

// Deactivate clears the user's active twin if any. Idempotent: returns the
// id of the twin that was deactivated, or nil when none was active.
func (r *TwinRepository) Deactivate(ctx context.Context, userID string) (*string, error) {
	var twinID string
	err := r.db.Pool().QueryRow(ctx,
		`UPDATE contextual_twins SET is_active = false, updated_at = NOW()
		 WHERE user_id = $1 AND is_active
		 RETURNING id`,
		userID,
	).Scan(&twinID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to deactivate twin: %w", err)
	}

	return &twinID, nil
}

// DeleteByIDAndUser removes a twin. Deleting the active twin deactivates it
// in the same transaction, so the system never points at a deleted twin and
// resolution falls back to base settings, never to another twin.
func (r *TwinRepository) DeleteByIDAndUser(ctx context.Context, id, userID string) (wasActive bool, err error) {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin delete transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx) // no-op after commit
	}()

	err = tx.QueryRow(ctx,
		`SELECT is_active FROM contextual_twins WHERE id = $1 AND user_id = $2 FOR UPDATE`,
		id, userID,
	).Scan(&wasActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, pgx.ErrNoRows
		}
		return false, fmt.Errorf("failed to lock twin for delete: %w", err)
	}

	if wasActive {
		if _, err := tx.Exec(ctx,
			`UPDATE contextual_twins SET is_active = false WHERE id = $1 AND user_id = $2`,
			id, userID,
		); err != nil {
			return false, fmt.Errorf("failed to deactivate twin before delete: %w", err)
		}
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM contextual_twins WHERE id = $1 AND user_id = $2`,
		id, userID,
	); err != nil {
		return false, fmt.Errorf("failed to delete twin: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit delete: %w", err)
	}

	return wasActive, nil
}

// ListHistory retrieves activation history for a twin, newest first.
func (r *TwinRepository) ListHistory(ctx context.Context, twinID, userID string, limit int) ([]*models.TwinActivationHistory, error) {
	query := `
		SELECT id, twin_id, user_id, activated_at
		FROM twin_activation_history
		WHERE twin_id = $1 AND user_id = $2
		ORDER BY activated_at DESC
		LIMIT $3
	`

	rows, err := r.db.Pool().Query(ctx, query, twinID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list activation history: %w", err)
	}
	defer rows.Close()

	var entries []*models.TwinActivationHistory
	for rows.Next() {
		var entry models.TwinActivationHistory
		if err := rows.Scan(&entry.ID, &entry.TwinID, &entry.UserID, &entry.ActivatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activation history: %w", err)
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activation history: %w", err)
	}

	return entries, nil
}

// scanTwin scans one twin row
func scanTwin(row pgx.Row) (*models.ContextualTwin, error) {
	var twin models.ContextualTwin
	var settingsJSON []byte

	err := row.Scan(
		&twin.ID,
		&twin.UserID,
		&twin.Name,
		&twin.TwinType,
		&settingsJSON,
		&twin.GlobalPrivacyOverride,
		&twin.IsActive,
		&twin.IsDefault,
		&twin.ActivationCount,
		&twin.LastActivatedAt,
		&twin.CreatedAt,
		&twin.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(settingsJSON) > 0 {
		if err := json.Unmarshal(settingsJSON, &twin.ClusterSettings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cluster settings: %w", err)
		}
	}

	return &twin, nil
}
