// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file allocates protocol sequence numbers.
package repo

import (
	"context"

	"gorm.io/gorm"
)

// NextProtocolSeq atomically increments and returns the counter for year.
// The first call for a year returns 1. Run it inside the transaction that
// inserts the request so a rolled-back submission does not burn a number.
func NextProtocolSeq(ctx context.Context, db *gorm.DB, year int) (int64, error) {
	tx := db.WithContext(ctx)
	err := tx.Exec(
		`INSERT INTO protocol_counters (year, last) VALUES (?, 1)
		 ON CONFLICT(year) DO UPDATE SET last = protocol_counters.last + 1`,
		year,
	).Error
	if err != nil {
		return 0, err
	}
	var last int64
	if err := tx.Raw("SELECT last FROM protocol_counters WHERE year = ?", year).Scan(&last).Error; err != nil {
		return 0, err
	}
	return last, nil
}
