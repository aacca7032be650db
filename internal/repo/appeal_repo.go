// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Appeal
// model.
//
// The (request_id, instance) unique index backs the "no duplicate instance"
// rule; an insert that hits it returns ErrDuplicate. Deciding is a guarded
// update on decided_at IS NULL so a decision is written at most once.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/esic-backend/internal/domain"
)

// AppealDecisionUpdate carries the columns written when an appeal is decided.
type AppealDecisionUpdate struct {
	ID        string
	Decision  domain.AppealDecision
	Rationale string
	DecidedBy string
	At        time.Time
}

// CreateAppeal inserts a. A second appeal with the same (request, instance)
// yields ErrDuplicate.
func CreateAppeal(ctx context.Context, db *gorm.DB, a *domain.Appeal) error {
	if err := db.WithContext(ctx).Create(a).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetAppeal fetches an appeal by ID or returns ErrNotFound.
func GetAppeal(ctx context.Context, db *gorm.DB, id string) (*domain.Appeal, error) {
	var a domain.Appeal
	if err := db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAppeals returns the appeals of a request ordered by instance.
func ListAppeals(ctx context.Context, db *gorm.DB, requestID string) ([]domain.Appeal, error) {
	var out []domain.Appeal
	err := db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("instance ASC").
		Find(&out).Error
	return out, err
}

// LatestAppeal returns the highest-instance appeal of a request, or
// ErrNotFound when none was filed.
func LatestAppeal(ctx context.Context, db *gorm.DB, requestID string) (*domain.Appeal, error) {
	var a domain.Appeal
	err := db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("instance DESC").
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// DecideAppeal records the decision only while the appeal is still open. It
// reports whether a row was updated.
func DecideAppeal(ctx context.Context, db *gorm.DB, u AppealDecisionUpdate) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Appeal{}).
		Where("id = ? AND decided_at IS NULL", u.ID).
		Updates(map[string]any{
			"decision":           string(u.Decision),
			"decision_rationale": u.Rationale,
			"decided_by":         u.DecidedBy,
			"decided_at":         u.At,
			"updated_at":         u.At,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// CountOpenAppeals returns how many appeals await a decision.
func CountOpenAppeals(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Appeal{}).
		Where("decided_at IS NULL").
		Count(&n).Error
	return n, err
}
