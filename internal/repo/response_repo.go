// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Response
// model. Responses are append-only.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/esic-backend/internal/domain"
)

// CreateResponse inserts a staff response.
func CreateResponse(ctx context.Context, db *gorm.DB, r *domain.Response) error {
	return db.WithContext(ctx).Create(r).Error
}

// ListResponses returns the responses of a request in the order they were
// recorded (RespondedAt ASC, CreatedAt ASC, ID ASC).
func ListResponses(ctx context.Context, db *gorm.DB, requestID string) ([]domain.Response, error) {
	var out []domain.Response
	err := db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("responded_at ASC, created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// CountResponsesByKind returns how many responses of each kind exist.
func CountResponsesByKind(ctx context.Context, db *gorm.DB) (map[domain.ResponseKind]int64, error) {
	var rows []struct {
		Kind string
		N    int64
	}
	err := db.WithContext(ctx).
		Model(&domain.Response{}).
		Select("kind, COUNT(*) AS n").
		Group("kind").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[domain.ResponseKind]int64, len(rows))
	for _, r := range rows {
		out[domain.ResponseKind(r.Kind)] = r.N
	}
	return out, nil
}
