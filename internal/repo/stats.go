// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides aggregate queries for the statistics
// dashboard and for conditional responses (ETag) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/esic-backend/internal/domain"
)

// DeadlineRow is the projection needed to evaluate a request's deadline.
type DeadlineRow struct {
	ID               string
	Protocol         string
	Status           domain.Status
	BaseDeadline     time.Time
	ExtendedDeadline *time.Time
}

// CountByStatus returns the number of requests per status. Statuses with no
// rows are absent from the map.
func CountByStatus(ctx context.Context, db *gorm.DB) (map[domain.Status]int64, error) {
	var rows []struct {
		Status string
		N      int64
	}
	err := db.WithContext(ctx).
		Model(&domain.Request{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[domain.Status]int64, len(rows))
	for _, r := range rows {
		out[domain.Status(r.Status)] = r.N
	}
	return out, nil
}

// OpenDeadlines returns the deadline projection of every request still
// awaiting a substantive answer.
func OpenDeadlines(ctx context.Context, db *gorm.DB) ([]DeadlineRow, error) {
	open := make([]domain.Status, 0, 3)
	for _, s := range domain.AllStatuses {
		if s.Open() {
			open = append(open, s)
		}
	}
	var out []DeadlineRow
	err := db.WithContext(ctx).
		Model(&domain.Request{}).
		Select("id, protocol, status, base_deadline, extended_deadline").
		Where("status IN ?", statusStrings(open)).
		Order("base_deadline ASC").
		Find(&out).Error
	return out, err
}

// RequestsStats returns the total number of requests and the greatest
// UpdatedAt among them. When the table is empty, count is 0 and
// maxUpdatedAt is nil.
func RequestsStats(ctx context.Context, db *gorm.DB) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Request{})

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = db.WithContext(ctx).Model(&domain.Request{}).
		Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
