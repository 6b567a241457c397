package repo

import (
	"context"
	"time"

	"github.com/richardliu001/location-service/internal/model"
	"gorm.io/gorm"
)

const dispatchableCond = "(status = ? OR (status = ? AND retry_count < ?))"

// CreateOutboxEvent inserts evt inside the caller's transaction.
func (r *Repository) CreateOutboxEvent(ctx context.Context, tx *gorm.DB, evt *model.OutboxEvent) error {
	return tx.WithContext(ctx).Create(evt).Error
}

// OutboxEventExists reports whether a row was already written for this version
// of the aggregate, whatever its status.
func (r *Repository) OutboxEventExists(ctx context.Context, tx *gorm.DB, aggregateType string, aggregateID, version uint64) (bool, error) {
	var n int64
	err := tx.WithContext(ctx).
		Model(&model.OutboxEvent{}).
		Where("aggregate_type = ? AND aggregate_id = ? AND version = ?", aggregateType, aggregateID, version).
		Count(&n).Error
	return n > 0, err
}

// FetchDispatchable returns up to limit rows that are READY, or FAILED below
// maxRetry, and not leased by another worker, oldest first.
func (r *Repository) FetchDispatchable(ctx context.Context, limit, maxRetry int, now time.Time) ([]model.OutboxEvent, error) {
	var evts []model.OutboxEvent
	err := r.db.WithContext(ctx).
		Where(dispatchableCond, model.OutboxReady, model.OutboxFailed, maxRetry).
		Where("(claimed_until IS NULL OR claimed_until < ?)", now.UTC()).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&evts).Error
	return evts, err
}

// ClaimOutboxEvent leases the row to worker until the given time. It reports
// false when the row is no longer dispatchable or someone else holds the lease.
func (r *Repository) ClaimOutboxEvent(ctx context.Context, id uint64, worker string, maxRetry int, now, until time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.OutboxEvent{}).
		Where("id = ?", id).
		Where(dispatchableCond, model.OutboxReady, model.OutboxFailed, maxRetry).
		Where("(claimed_until IS NULL OR claimed_until < ?)", now.UTC()).
		Updates(map[string]interface{}{
			"claimed_by":    worker,
			"claimed_until": until.UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkOutboxPublished finalizes a row held by worker.
func (r *Repository) MarkOutboxPublished(ctx context.Context, tx *gorm.DB, id uint64, worker string) error {
	res := tx.WithContext(ctx).
		Model(&model.OutboxEvent{}).
		Where("id = ? AND claimed_by = ?", id, worker).
		Updates(map[string]interface{}{
			"status":        model.OutboxPublished,
			"published_at":  time.Now().UTC(),
			"last_error":    nil,
			"claimed_by":    nil,
			"claimed_until": nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrClaimLost
	}
	return nil
}

// MarkOutboxFailed records a failed attempt and releases the lease.
func (r *Repository) MarkOutboxFailed(ctx context.Context, tx *gorm.DB, id uint64, worker, reason string) error {
	res := tx.WithContext(ctx).
		Model(&model.OutboxEvent{}).
		Where("id = ? AND claimed_by = ?", id, worker).
		Updates(map[string]interface{}{
			"status":        model.OutboxFailed,
			"retry_count":   gorm.Expr("retry_count + 1"),
			"last_error":    reason,
			"claimed_by":    nil,
			"claimed_until": nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrClaimLost
	}
	return nil
}

// ReleaseOutboxClaim drops worker's lease without recording an attempt, leaving
// status and retry_count as they were.
func (r *Repository) ReleaseOutboxClaim(ctx context.Context, tx *gorm.DB, id uint64, worker string) error {
	res := tx.WithContext(ctx).
		Model(&model.OutboxEvent{}).
		Where("id = ? AND claimed_by = ?", id, worker).
		Updates(map[string]interface{}{
			"claimed_by":    nil,
			"claimed_until": nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrClaimLost
	}
	return nil
}

// CountDeadOutboxEvents counts FAILED rows that reached maxRetry.
func (r *Repository) CountDeadOutboxEvents(ctx context.Context, maxRetry int) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.OutboxEvent{}).
		Where("status = ? AND retry_count >= ?", model.OutboxFailed, maxRetry).
		Count(&n).Error
	return n, err
}
