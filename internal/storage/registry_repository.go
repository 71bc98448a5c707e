package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/privacy-engine/internal/models"
)

// RegistryRepository handles the administered cluster catalog. The catalog
// is read-only at runtime from the engine's point of view; writes happen
// only through seeding.
type RegistryRepository struct {
	db *PostgresDB
}

// NewRegistryRepository creates a new registry repository
func NewRegistryRepository(db *PostgresDB) *RegistryRepository {
	return &RegistryRepository{db: db}
}

const clusterColumns = `id, name, category, default_sensitivity, subclusters, position, created_at`

// List returns the full catalog ordered by position then id, so callers
// observe a stable ordering.
func (r *RegistryRepository) List(ctx context.Context) ([]*models.ClusterDefinition, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM cluster_definitions
		ORDER BY position, id
	`, clusterColumns)

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list clusters: %w", err)
	}
	defer rows.Close()

	var clusters []*models.ClusterDefinition
	for rows.Next() {
		cluster, err := scanCluster(rows)
		if err != nil {
			return nil, err
		}
		clusters = append(clusters, cluster)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating clusters: %w", err)
	}

	return clusters, nil
}

// GetByID retrieves a single cluster definition
func (r *RegistryRepository) GetByID(ctx context.Context, id string) (*models.ClusterDefinition, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM cluster_definitions
		WHERE id = $1
	`, clusterColumns)

	row := r.db.Pool().QueryRow(ctx, query, id)
	cluster, err := scanCluster(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("cluster not found: %s", id)
		}
		return nil, err
	}

	return cluster, nil
}

// Upsert inserts or updates a catalog entry. Used only by seeding.
func (r *RegistryRepository) Upsert(ctx context.Context, cluster *models.ClusterDefinition) error {
	subclustersJSON, err := json.Marshal(cluster.Subclusters)
	if err != nil {
		return fmt.Errorf("failed to marshal subclusters: %w", err)
	}

	query := `
		INSERT INTO cluster_definitions (id, name, category, default_sensitivity, subclusters, position, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    category = EXCLUDED.category,
		    default_sensitivity = EXCLUDED.default_sensitivity,
		    subclusters = EXCLUDED.subclusters,
		    position = EXCLUDED.position
	`

	_, err = r.db.Pool().Exec(ctx, query,
		cluster.ID,
		cluster.Name,
		cluster.Category,
		cluster.DefaultSensitivity,
		subclustersJSON,
		cluster.Position,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert cluster: %w", err)
	}

	return nil
}

// scanCluster scans one cluster definition row
func scanCluster(row pgx.Row) (*models.ClusterDefinition, error) {
	var cluster models.ClusterDefinition
	var subclustersJSON []byte

	err := row.Scan(
		&cluster.ID,
		&cluster.Name,
		&cluster.Category,
		&cluster.DefaultSensitivity,
		&subclustersJSON,
		&cluster.Position,
		&cluster.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(subclustersJSON) > 0 {
		if err := json.Unmarshal(subclustersJSON, &cluster.Subclusters); err != nil {
			return nil, fmt.Errorf("failed to unmarshal subclusters: %w", err)
		}
	}

	return &cluster, nil
}
