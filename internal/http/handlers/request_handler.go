// Request HTTP handlers.
//
// Citizen endpoints:
//   - POST /requests               (submit, idempotent with Idempotency-Key)
//   - GET  /requests/{protocol}    (lookup by protocol)
//
// Staff endpoints:
//   - GET  /admin/requests               (list, paginated, ETag support)
//   - GET  /admin/requests/{id}          (detail)
//   - GET  /admin/requests/{id}/events   (audit trail)
//   - POST /admin/requests/{id}/start    (Pending -> InProgress)
//   - POST /admin/requests/{id}/archive  (Responded -> Archived)
package handlers

import (
	"fmt"
	"hash/fnv"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/esic-backend/internal/domain"
	"github.com/tbourn/esic-backend/internal/http/middleware"
	"github.com/tbourn/esic-backend/internal/services"
)

//
// DTOs
//

// RequesterBody identifies the citizen.
type RequesterBody struct {
	Name     string `json:"name"     binding:"required,max=255" example:"Maria da Silva"`
	Email    string `json:"email"    binding:"required,email"   example:"maria@example.org"`
	Phone    string `json:"phone"    binding:"max=32"           example:"+55 61 99999-0000"`
	Document string `json:"document" binding:"max=32"           example:"123.456.789-09"`
}

// SubmitRequestBody is the JSON payload of a citizen submission.
type SubmitRequestBody struct {
	Requester      RequesterBody `json:"requester"`
	Subject        string        `json:"subject"         binding:"required,max=255" example:"Contratos de limpeza urbana"`
	Description    string        `json:"description"     binding:"required"         example:"Solicito cópia dos contratos de limpeza urbana vigentes."`
	ReceiptChannel string        `json:"receipt_channel" binding:"omitempty,oneof=email in_person mail" example:"email"`
}

// SubmitResponse is returned to the citizen after a submission.
type SubmitResponse struct {
	Protocol     string    `json:"protocol"      example:"ESIC-2024-000001"`
	SubmittedAt  time.Time `json:"submitted_at"`
	BaseDeadline time.Time `json:"base_deadline"`
}

// ListRequestsResponse wraps a page of requests and pagination information.
type ListRequestsResponse struct {
	Requests   []services.RequestListItem `json:"requests"`
	Pagination Pagination                 `json:"pagination"`
}

// EventsResponse lists the audit trail of a request.
type EventsResponse struct {
	Events []domain.RequestEvent `json:"events"`
}

//
// Citizen
//

// SubmitRequest godoc
// @ID          submitRequest
// @Summary     Submit a records request
// @Description Validates the submission, issues a protocol and computes the base deadline.
// @Description A repeated Idempotency-Key replays the original protocol.
// @Tags        Requests
// @Accept      json
// @Produce     json
// @Param       Idempotency-Key  header  string  false  "Idempotency key for safe retries"
// @Param       body  body  handlers.SubmitRequestBody  true  "Submission"
// @Success     201  {object}  handlers.SubmitResponse
// @Failure     400  {object}  handlers.ErrorResponse  "validation_failed"
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /requests [post]
func (h *Handlers) SubmitRequest(c *gin.Context) {
	var body SubmitRequestBody
	if !bindJSON(c, &body) {
		return
	}
	ctx := c.Request.Context()

	key, _ := middleware.GetIdempotencyKey(c)
	scope := middleware.IdempotencyScope(c)
	if key != "" && h.idem != nil {
		if id, found, err := h.idem.Lookup(ctx, scope, key); err == nil && found {
			if prev, err := h.reqSvc.Get(ctx, id); err == nil {
				c.Header("Idempotency-Replayed", "true")
				ok(c, http.StatusCreated, submitResponse(&prev.Request))
				return
			}
		}
	}

	r, err := h.reqSvc.Submit(ctx, services.Submission{
		Requester: services.Requester{
			Name:     body.Requester.Name,
			Email:    body.Requester.Email,
			Phone:    body.Requester.Phone,
			Document: body.Requester.Document,
		},
		Subject:        body.Subject,
		Description:    body.Description,
		ReceiptChannel: domain.ReceiptChannel(body.ReceiptChannel),
	})
	if err != nil {
		failErr(c, err)
		return
	}

	if key != "" && h.idem != nil {
		if err := h.idem.Remember(ctx, scope, key, r.ID, http.StatusCreated); err != nil {
			lg := middleware.LoggerFrom(c)
			lg.Warn().Err(err).Str("protocol", r.Protocol).Msg("idempotency key not stored")
		}
	}

	ok(c, http.StatusCreated, submitResponse(r))
}

func submitResponse(r *domain.Request) SubmitResponse {
	return SubmitResponse{Protocol: r.Protocol, SubmittedAt: r.SubmittedAt, BaseDeadline: r.BaseDeadline}
}

// LookupRequest godoc
// @ID          lookupRequest
// @Summary     Look up a request by protocol
// @Description Returns status, deadlines, responses and appeals. Contact data is never included.
// @Tags        Requests
// @Produce     json
// @Param       protocol  path  string  true  "Protocol"  example(ESIC-2024-000001)
// @Success     200  {object}  services.RequestSummary
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /requests/{protocol} [get]
func (h *Handlers) LookupRequest(c *gin.Context) {
	sum, found, err := h.reqSvc.Lookup(c.Request.Context(), c.Param("protocol"))
	if err != nil {
		failErr(c, err)
		return
	}
	if !found {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "request not found")
		return
	}
	ok(c, http.StatusOK, sum)
}

//
// Staff
//

// ListRequests godoc
// @ID          listRequests
// @Summary     List requests (paginated)
// @Description Filters by status and accent-insensitive text. Supports weak ETag via If-None-Match.
// @Tags        Admin
// @Produce     json
// @Param       status     query  string  false  "Status filter"  Enums(pending, in_progress, responded, extension_requested, under_appeal, archived)
// @Param       q          query  string  false  "Search text"
// @Param       page       query  int     false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListRequestsResponse
// @Success     304  {string}  string  "Not Modified"
// @Failure     400  {object}  handlers.ErrorResponse
// @Router      /admin/requests [get]
func (h *Handlers) ListRequests(c *gin.Context) {
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort). Deadline views change with the date, so
	// the day is part of the tag.
	if count, maxTS, err := h.reqSvc.Version(ctx); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.Unix()
		}
		q := fnv.New32a()
		_, _ = q.Write([]byte(fmt.Sprintf("%s|%s|%d|%d", c.Query("status"), c.Query("q"), page, pageSize)))
		etag := fmt.Sprintf(`W/"requests:%d:%d:%s:%x"`, count, ts, time.Now().UTC().Format("20060102"), q.Sum32())
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, total, err := h.reqSvc.ListPage(ctx, services.ListQuery{
		Status:   domain.Status(c.Query("status")),
		Text:     c.Query("q"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ListRequestsResponse{
		Requests:   items,
		Pagination: newPagination(page, pageSize, total),
	})
}

// GetRequest godoc
// @ID          getRequest
// @Summary     Request detail
// @Tags        Admin
// @Produce     json
// @Param       id  path  string  true  "Request ID"  format(uuid)
// @Success     200  {object}  services.RequestDetail
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /admin/requests/{id} [get]
func (h *Handlers) GetRequest(c *gin.Context) {
	d, err := h.reqSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, d)
}

// RequestEvents godoc
// @ID          requestEvents
// @Summary     Audit trail of a request
// @Tags        Admin
// @Produce     json
// @Param       id  path  string  true  "Request ID"  format(uuid)
// @Success     200  {object}  handlers.EventsResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /admin/requests/{id}/events [get]
func (h *Handlers) RequestEvents(c *gin.Context) {
	evs, err := h.reqSvc.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, EventsResponse{Events: evs})
}

// StartProcessing godoc
// @ID          startProcessing
// @Summary     Mark a pending request as in progress
// @Tags        Admin
// @Produce     json
// @Param       X-User-ID  header  string  false  "Staff member"
// @Param       id  path  string  true  "Request ID"  format(uuid)
// @Success     200  {object}  domain.Request
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse  "invalid_transition"
// @Router      /admin/requests/{id}/start [post]
func (h *Handlers) StartProcessing(c *gin.Context) {
	r, err := h.reqSvc.MarkInProgress(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, r)
}

// ArchiveRequest godoc
// @ID          archiveRequest
// @Summary     Archive a responded request
// @Tags        Admin
// @Produce     json
// @Param       X-User-ID  header  string  false  "Staff member"
// @Param       id  path  string  true  "Request ID"  format(uuid)
// @Success     200  {object}  domain.Request
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse  "invalid_transition"
// @Router      /admin/requests/{id}/archive [post]
func (h *Handlers) ArchiveRequest(c *gin.Context) {
	r, err := h.reqSvc.Archive(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, r)
}
