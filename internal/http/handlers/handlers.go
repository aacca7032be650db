// Package handlers exposes the e-SIC lifecycle over HTTP.
//
// Handlers are transport-thin: they bind and sanity-check input, call the
// application services through the interfaces below, and translate results
// and service errors into responses.
package handlers

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/esic-backend/internal/domain"
	"github.com/tbourn/esic-backend/internal/services"
	"github.com/tbourn/esic-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// RequestService covers submission, lookup, listings and the staff
// transitions that are not tied to a response or an appeal.
type RequestService interface {
	Submit(ctx context.Context, in services.Submission) (*domain.Request, error)
	Lookup(ctx context.Context, protocol string) (*services.RequestSummary, bool, error)
	Get(ctx context.Context, id string) (*services.RequestDetail, error)
	ListPage(ctx context.Context, q services.ListQuery) ([]services.RequestListItem, int64, error)
	// Version returns (count, max updated_at) for weak ETags.
	Version(ctx context.Context) (int64, *time.Time, error)
	MarkInProgress(ctx context.Context, id, actorID string) (*domain.Request, error)
	Archive(ctx context.Context, id, actorID string) (*domain.Request, error)
	History(ctx context.Context, id string) ([]domain.RequestEvent, error)
}

// ResponseService records staff responses.
type ResponseService interface {
	Record(ctx context.Context, requestID string, in services.ResponseInput) (*domain.Response, *domain.Request, error)
}

// AppealService files and decides appeals.
type AppealService interface {
	File(ctx context.Context, requestID string, in services.AppealInput) (*domain.Appeal, error)
	FileByProtocol(ctx context.Context, protocol string, in services.AppealInput) (*domain.Appeal, error)
	Decide(ctx context.Context, appealID string, in services.DecisionInput) (*domain.Appeal, error)
}

// StatsService computes dashboard statistics.
type StatsService interface {
	Get(ctx context.Context) (*services.Statistics, error)
}

// ReportService renders the spreadsheet export.
type ReportService interface {
	Write(ctx context.Context, w io.Writer, status domain.Status, text string) error
}

// IdempotencyStore remembers which resource a submission created for a given
// (scope, key) pair, so that a retried POST replays the original result.
type IdempotencyStore interface {
	Lookup(ctx context.Context, scope, key string) (resourceID string, found bool, err error)
	Remember(ctx context.Context, scope, key, resourceID string, status int) error
}

//
// Handler wiring
//

// Handlers groups the citizen and staff endpoints.
type Handlers struct {
	reqSvc    RequestService
	respSvc   ResponseService
	appealSvc AppealService
	statsSvc  StatsService
	reportSvc ReportService
	idem      IdempotencyStore
}

// New constructs Handlers. idem may be nil, which disables replays.
func New(reqSvc RequestService, respSvc ResponseService, appealSvc AppealService, statsSvc StatsService, reportSvc ReportService, idem IdempotencyStore) *Handlers {
	return &Handlers{
		reqSvc:    reqSvc,
		respSvc:   respSvc,
		appealSvc: appealSvc,
		statsSvc:  statsSvc,
		reportSvc: reportSvc,
		idem:      idem,
	}
}

// userID extracts the staff member id from the Gin context (set by upstream
// middleware), falling back to the X-User-ID header and finally "staff".
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "staff"
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := utils.Window{Page: page, Size: pageSize}.TotalPages(total)
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// clampPagination parses and bounds page and page_size query params.
func clampPagination(c *gin.Context) (page, pageSize int) {
	w := utils.ParseWindow(c.Query("page"), c.Query("page_size"))
	return w.Page, w.Size
}
