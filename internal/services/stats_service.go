// Package services – StatisticsAggregator
//
// This file implements the dashboard statistics. They are recomputed from
// the source tables on every call and never cached, so they cannot drift
// from the data.
package services

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"gorm.io/gorm"

	"github.com/tbourn/esic-backend/internal/deadline"
	"github.com/tbourn/esic-backend/internal/domain"
	"github.com/tbourn/esic-backend/internal/repo"
)

// Statistics is a point-in-time snapshot of the registry.
type Statistics struct {
	Total             int64                         `json:"total"`
	CountByStatus     map[domain.Status]int64       `json:"count_by_status"`
	ResponseRate      float64                       `json:"response_rate"`
	NearDeadlineCount int64                         `json:"near_deadline_count"`
	OverdueCount      int64                         `json:"overdue_count"`
	OpenAppeals       int64                         `json:"open_appeals"`
	ResponsesByKind   map[domain.ResponseKind]int64 `json:"responses_by_kind"`
	GeneratedAt       time.Time                     `json:"generated_at"`
}

// StatisticsAggregator computes Statistics.
type StatisticsAggregator struct {
	DB        *gorm.DB
	Deadlines deadline.Calculator

	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// NewStatisticsAggregator shares the registry's store, windows and clock.
func NewStatisticsAggregator(reg *RequestRegistry) *StatisticsAggregator {
	return &StatisticsAggregator{DB: reg.DB, Deadlines: reg.Deadlines, Now: reg.Now}
}

// Get computes the statistics. Every status appears in CountByStatus, with
// zero when absent; ResponseRate is 0 for an empty registry.
func (s *StatisticsAggregator) Get(ctx context.Context) (*Statistics, error) {
	tr := otel.Tracer("services/StatisticsAggregator")
	ctx, span := tr.Start(ctx, "Get")
	defer span.End()

	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}

	counts, err := repo.CountByStatus(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	st := &Statistics{
		CountByStatus:   make(map[domain.Status]int64, len(domain.AllStatuses)),
		ResponsesByKind: map[domain.ResponseKind]int64{},
		GeneratedAt:     now,
	}
	var answered int64
	for _, status := range domain.AllStatuses {
		n := counts[status]
		st.CountByStatus[status] = n
		st.Total += n
		if status.Answered() {
			answered += n
		}
	}
	if st.Total > 0 {
		st.ResponseRate = float64(answered) / float64(st.Total)
	}

	open, err := repo.OpenDeadlines(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	for _, r := range open {
		eff := deadline.Effective(r.BaseDeadline, r.ExtendedDeadline)
		if s.Deadlines.IsNear(r.Status, now, eff) {
			st.NearDeadlineCount++
		}
		if deadline.IsOverdue(r.Status, now, eff) {
			st.OverdueCount++
		}
	}

	if st.OpenAppeals, err = repo.CountOpenAppeals(ctx, s.DB); err != nil {
		return nil, err
	}
	byKind, err := repo.CountResponsesByKind(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	for k, n := range byKind {
		st.ResponsesByKind[k] = n
	}
	return st, nil
}
