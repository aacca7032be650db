// Package deadline implements the statutory deadline arithmetic of the
// records-request lifecycle. Every function is pure: deadlines are evaluated
// lazily at read time and nothing here schedules work.
//
// Windows are counted in calendar days, not business days, matching the
// literal wording of the access-to-information statute.
package deadline

import (
	"time"

	"github.com/tbourn/esic-backend/internal/domain"
)

// Day is the unit used by DaysRemaining.
const Day = 24 * time.Hour

// Default windows, overridable through config.LifecycleConfig.
const (
	DefaultResponseDays     = 20
	DefaultExtensionDays    = 10
	DefaultNearDeadlineDays = 5
)

// Calculator computes response deadlines for a fixed set of windows.
// The zero value is not useful; use New or Default.
type Calculator struct {
	ResponseDays     int
	ExtensionDays    int
	NearDeadlineDays int
}

// New returns a Calculator with the given windows.
func New(responseDays, extensionDays, nearDeadlineDays int) Calculator {
	return Calculator{
		ResponseDays:     responseDays,
		ExtensionDays:    extensionDays,
		NearDeadlineDays: nearDeadlineDays,
	}
}

// Default returns the 20+10 day calculator with a five-day alert threshold.
func Default() Calculator {
	return New(DefaultResponseDays, DefaultExtensionDays, DefaultNearDeadlineDays)
}

// Base returns submittedAt plus the response window.
func (c Calculator) Base(submittedAt time.Time) time.Time {
	return submittedAt.AddDate(0, 0, c.ResponseDays)
}

// Extend returns base plus the extension window. The extension length is
// fixed; callers enforce that it is applied at most once per request.
func (c Calculator) Extend(base time.Time) time.Time {
	return base.AddDate(0, 0, c.ExtensionDays)
}

// Effective returns the extended deadline when present, else base.
func Effective(base time.Time, extended *time.Time) time.Time {
	if extended != nil {
		return *extended
	}
	return base
}

// DaysRemaining returns ceil((deadline - now) / 1 day). A negative value
// means the deadline passed abs(result) days ago.
func DaysRemaining(now, deadline time.Time) int {
	d := deadline.Sub(now)
	q := d / Day
	// Integer division truncates toward zero, which is already the ceiling
	// for negative values.
	if d%Day > 0 {
		q++
	}
	return int(q)
}

// IsNear reports whether a request in status s with the given effective
// deadline is open and has at most NearDeadlineDays left. Overdue open
// requests are near as well.
func (c Calculator) IsNear(s domain.Status, now, effective time.Time) bool {
	return s.Open() && DaysRemaining(now, effective) <= c.NearDeadlineDays
}

// IsOverdue reports whether an open request has passed its deadline.
func IsOverdue(s domain.Status, now, effective time.Time) bool {
	return s.Open() && DaysRemaining(now, effective) < 0
}

// ForRequest is a convenience view over a stored request.
type ForRequest struct {
	Effective     time.Time `json:"effective_deadline"`
	DaysRemaining int       `json:"days_remaining"`
	Near          bool      `json:"near_deadline"`
	Overdue       bool      `json:"overdue"`
}

// Evaluate computes the deadline view of r at now.
func (c Calculator) Evaluate(r domain.Request, now time.Time) ForRequest {
	eff := Effective(r.BaseDeadline, r.ExtendedDeadline)
	return ForRequest{
		Effective:     eff,
		DaysRemaining: DaysRemaining(now, eff),
		Near:          c.IsNear(r.Status, now, eff),
		Overdue:       IsOverdue(r.Status, now, eff),
	}
}
