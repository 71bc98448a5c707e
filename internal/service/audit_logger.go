package service

import (
	"context"
	"time"

	"github.com/privacy-engine/internal/logging"
	"github.com/privacy-engine/internal/models"
	"github.com/privacy-engine/internal/retry"
	"github.com/privacy-engine/internal/types"
)

// AuditStore is the append-only audit persistence.
type AuditStore interface {
	Append(ctx context.Context, entry *models.PrivacyAuditLog) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.PrivacyAuditLog, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
}

// AuditLogger records privacy-affecting mutations with before/after
// snapshots. Audit is observability, not correctness-critical for
// resolution: a failed write is retried briefly, then surfaced to the
// caller as a degradation flag rather than failing the primary operation.
type AuditLogger struct {
	store AuditStore
	retry *retry.Config
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(store AuditStore, retryConfig *retry.Config) *AuditLogger {
	if retryConfig == nil {
		retryConfig = retry.DefaultConfig()
	}
	return &AuditLogger{
		store: store,
		retry: retryConfig,
	}
}

// Record appends one audit entry. Returns true when the write ultimately
// failed and the operation proceeded degraded.
func (a *AuditLogger) Record(ctx context.Context, entry *models.PrivacyAuditLog) (degraded bool) {
	if entry.ChangedAt.IsZero() {
		entry.ChangedAt = time.Now()
	}

	err := retry.WithBackoff(ctx, a.retry, func(ctx context.Context, attempt int) error {
		return a.store.Append(ctx, entry)
	})
	if err != nil {
		logging.FromContext(ctx).WithFields(map[string]interface{}{
			"action": string(entry.Action),
			"userId": entry.UserID,
			"error":  err.Error(),
		}).Warn("Audit write degraded")
		return true
	}

	return false
}

// List retrieves a user's audit entries, newest first.
func (a *AuditLogger) List(ctx context.Context, userID string, limit, offset int) ([]*models.PrivacyAuditLog, int64, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	entries, err := a.store.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := a.store.CountByUser(ctx, userID)
	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

// globalChange builds the previous/new global fields for an audit entry.
func globalChange(previous, next types.PrivacyLevel) (*types.PrivacyLevel, *types.PrivacyLevel) {
	p, n := previous, next
	return &p, &n
}

// clusterChange builds a single-cluster audit diff.
func clusterChange(clusterID string, previous, next *models.ClusterSetting) map[string]models.ClusterChange {
	return map[string]models.ClusterChange{
		clusterID: {Previous: previous, New: next},
	}
}

// settingsDiff builds per-cluster before/after pairs between two full
// cluster-setting maps. Unchanged clusters are omitted; a cluster present
// on only one side gets a one-sided entry. Returns nil when nothing moved.
func settingsDiff(previous, next map[string]models.ClusterSetting) map[string]models.ClusterChange {
	changes := make(map[string]models.ClusterChange)
	for clusterID, before := range previous {
		b := copySetting(before)
		after, ok := next[clusterID]
		if !ok {
			changes[clusterID] = models.ClusterChange{Previous: &b}
			continue
		}
		if settingEqual(before, after) {
			continue
		}
		a := copySetting(after)
		changes[clusterID] = models.ClusterChange{Previous: &b, New: &a}
	}
	for clusterID, after := range next {
		if _, ok := previous[clusterID]; ok {
			continue
		}
		a := copySetting(after)
		changes[clusterID] = models.ClusterChange{New: &a}
	}
	if len(changes) == 0 {
		return nil
	}
	return changes
}

// settingEqual reports whether two cluster settings are identical,
// subcluster overrides included.
func settingEqual(a, b models.ClusterSetting) bool {
	if a.PrivacyLevel != b.PrivacyLevel || a.Enabled != b.Enabled {
		return false
	}
	if len(a.Subclusters) != len(b.Subclusters) {
		return false
	}
	for id, sa := range a.Subclusters {
		sb, ok := b.Subclusters[id]
		if !ok || sa != sb {
			return false
		}
	}
	return true
}

// levelCopy clones an optional privacy level so audit rows do not alias
// entity state.
func levelCopy(level *types.PrivacyLevel) *types.PrivacyLevel {
	if level == nil {
		return nil
	}
	v := *level
	return &v
}
