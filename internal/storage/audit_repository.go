package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/privacy-engine/internal/models"
)

// AuditRepository handles the append-only privacy audit log. It exposes
// insert and read operations only; entries are never updated or deleted.
type AuditRepository struct {
	db *PostgresDB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *PostgresDB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append inserts one audit entry.
func (r *AuditRepository) Append(ctx context.Context, entry *models.PrivacyAuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.ChangedAt.IsZero() {
		entry.ChangedAt = time.Now()
	}

	changesJSON, err := json.Marshal(entry.ClusterChanges)
	if err != nil {
		return fmt.Errorf("failed to marshal cluster changes: %w", err)
	}

	metadataJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO privacy_audit_log (id, user_id, action, previous_global, new_global, cluster_changes, metadata, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.db.Pool().Exec(ctx, query,
		entry.ID,
		entry.UserID,
		entry.Action,
		entry.PreviousGlobal,
		entry.NewGlobal,
		changesJSON,
		metadataJSON,
		entry.ChangedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	return nil
}

// ListByUser retrieves audit entries for a user, newest first.
func (r *AuditRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.PrivacyAuditLog, error) {
	query := `
		SELECT id, user_id, action, previous_global, new_global, cluster_changes, metadata, changed_at
		FROM privacy_audit_log
		WHERE user_id = $1
		ORDER BY changed_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Pool().Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.PrivacyAuditLog
	for rows.Next() {
		var entry models.PrivacyAuditLog
		var changesJSON, metadataJSON []byte

		err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.Action,
			&entry.PreviousGlobal,
			&entry.NewGlobal,
			&changesJSON,
			&metadataJSON,
			&entry.ChangedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}

		if len(changesJSON) > 0 {
			if err := json.Unmarshal(changesJSON, &entry.ClusterChanges); err != nil {
				return nil, fmt.Errorf("failed to unmarshal cluster changes: %w", err)
			}
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &entry.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}

		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}

	return entries, nil
}

// CountByUser returns the number of audit entries for a user.
func (r *AuditRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.Pool().QueryRow(ctx,
		`SELECT COUNT(*) FROM privacy_audit_log WHERE user_id = $1`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count audit entries: %w", err)
	}

	return count, nil
}
