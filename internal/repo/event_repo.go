// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file stores the per-request audit trail.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/esic-backend/internal/domain"
)

// AppendEvent writes one audit entry. Call it with the transaction handle
// that performed the transition.
func AppendEvent(ctx context.Context, db *gorm.DB, e *domain.RequestEvent) error {
	return db.WithContext(ctx).Create(e).Error
}

// ListEvents returns a request's audit trail in insertion order.
func ListEvents(ctx context.Context, db *gorm.DB, requestID string) ([]domain.RequestEvent, error) {
	var out []domain.RequestEvent
	err := db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("id ASC").
		Find(&out).Error
	return out, err
}
