// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Request
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They hold no lifecycle rules: the
// services decide which transition is legal and pass the allowed source
// statuses down as the guard of a conditional update.
//
// Error semantics:
//   - When a request is not found, functions return ErrNotFound.
//   - On other DB errors the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/esic-backend/internal/domain"
)

// RequestFilter narrows administrative listings. Zero values match all rows.
type RequestFilter struct {
	// Status restricts results to one lifecycle state.
	Status domain.Status
	// Terms are accent-folded tokens; each must occur in search_text.
	Terms []string
}

// StatusChange describes a guarded status update of one request.
type StatusChange struct {
	ID   string
	From []domain.Status
	To   domain.Status
	At   time.Time
	// Set holds extra columns written together with the status.
	Set map[string]any
	// RequireNoExtension additionally guards on extended_deadline IS NULL.
	RequireNoExtension bool
}

// CreateRequest inserts r. The caller assigns ID, protocol and deadlines.
func CreateRequest(ctx context.Context, db *gorm.DB, r *domain.Request) error {
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetRequest fetches a request by its internal ID.
func GetRequest(ctx context.Context, db *gorm.DB, id string) (*domain.Request, error) {
	var r domain.Request
	if err := db.WithContext(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRequestByProtocol fetches a request by its public protocol.
func GetRequestByProtocol(ctx context.Context, db *gorm.DB, protocol string) (*domain.Request, error) {
	var r domain.Request
	if err := db.WithContext(ctx).Where("protocol = ?", protocol).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// CountRequests returns how many requests match f.
func CountRequests(ctx context.Context, db *gorm.DB, f RequestFilter) (int64, error) {
	var total int64
	err := applyFilter(db.WithContext(ctx).Model(&domain.Request{}), f).Count(&total).Error
	return total, err
}

// ListRequests returns every request matching f, newest submission first.
func ListRequests(ctx context.Context, db *gorm.DB, f RequestFilter) ([]domain.Request, error) {
	var out []domain.Request
	err := applyFilter(db.WithContext(ctx), f).
		Order("submitted_at DESC, id ASC").
		Find(&out).Error
	return out, err
}

// ListRequestsPage returns a page of requests matching f, newest first.
// Use CountRequests to obtain the total for pagination metadata.
func ListRequestsPage(ctx context.Context, db *gorm.DB, f RequestFilter, offset, limit int) ([]domain.Request, error) {
	var out []domain.Request
	err := applyFilter(db.WithContext(ctx), f).
		Order("submitted_at DESC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ChangeStatus applies ch only if the row is still in one of ch.From. It
// reports whether the row was updated; false means the guard did not hold
// (or the request does not exist) and nothing was written.
func ChangeStatus(ctx context.Context, db *gorm.DB, ch StatusChange) (bool, error) {
	if len(ch.From) == 0 {
		return false, nil
	}
	updates := map[string]any{
		"status":     string(ch.To),
		"updated_at": ch.At,
	}
	for k, v := range ch.Set {
		updates[k] = v
	}

	q := db.WithContext(ctx).
		Model(&domain.Request{}).
		Where("id = ? AND status IN ?", ch.ID, statusStrings(ch.From))
	if ch.RequireNoExtension {
		q = q.Where("extended_deadline IS NULL")
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func applyFilter(q *gorm.DB, f RequestFilter) *gorm.DB {
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	for _, t := range f.Terms {
		q = q.Where("search_text LIKE ?", "%"+t+"%")
	}
	return q
}
