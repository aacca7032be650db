// Staff response and appeal handlers.
//
//   - POST /admin/requests/{id}/responses    (record a response or extension)
//   - POST /admin/requests/{id}/appeals      (file an appeal on behalf of the citizen)
//   - POST /admin/appeals/{id}/decision      (decide an open appeal)
//   - POST /requests/{protocol}/appeals      (citizen files an appeal)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/esic-backend/internal/domain"
	"github.com/tbourn/esic-backend/internal/services"
)

//
// DTOs
//

// RecordResponseBody is the staff payload of a response.
type RecordResponseBody struct {
	Kind       string `json:"kind"        binding:"required" example:"denied"`
	Content    string `json:"content"     binding:"required" example:"Informação classificada como reservada."`
	LegalBasis string `json:"legal_basis" example:"Art. 23, VIII"`
}

// RecordResponseResult returns the stored response and the updated request.
type RecordResponseResult struct {
	Response *domain.Response `json:"response"`
	Request  *domain.Request  `json:"request"`
}

// FileAppealBody is the payload of an appeal. Instance is optional; when set
// it must be the next instance due (1, 2 or 3).
type FileAppealBody struct {
	Reason   string `json:"reason"   binding:"required,max=10000" example:"A resposta não atende ao pedido."`
	Instance int    `json:"instance" binding:"omitempty,min=1,max=3" example:"1"`
}

// DecideAppealBody is the payload of an appeal decision.
type DecideAppealBody struct {
	Decision  string `json:"decision"  binding:"required,oneof=granted partially_granted denied" example:"partially_granted"`
	Rationale string `json:"rationale" binding:"required" example:"Parte da informação é pública."`
}

//
// Handlers
//

// RecordResponse godoc
// @ID          recordResponse
// @Summary     Record a staff response
// @Description kind=extension_requested extends the deadline once; any other kind answers the request.
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  false  "Staff member"
// @Param       id    path  string  true  "Request ID"  format(uuid)
// @Param       body  body  handlers.RecordResponseBody  true  "Response"
// @Success     201  {object}  handlers.RecordResponseResult
// @Failure     400  {object}  handlers.ErrorResponse  "validation_failed"
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse  "invalid_transition | extension_already_used"
// @Router      /admin/requests/{id}/responses [post]
func (h *Handlers) RecordResponse(c *gin.Context) {
	var body RecordResponseBody
	if !bindJSON(c, &body) {
		return
	}
	resp, r, err := h.respSvc.Record(c.Request.Context(), c.Param("id"), services.ResponseInput{
		Kind:        domain.ResponseKind(body.Kind),
		Content:     body.Content,
		LegalBasis:  body.LegalBasis,
		ResponderID: userID(c),
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, RecordResponseResult{Response: resp, Request: r})
}

// FileAppeal godoc
// @ID          fileAppeal
// @Summary     File an appeal (staff)
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  false  "Staff member"
// @Param       id    path  string  true  "Request ID"  format(uuid)
// @Param       body  body  handlers.FileAppealBody  true  "Appeal"
// @Success     201  {object}  domain.Appeal
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse  "invalid_transition | invalid_appeal_sequence | appeal_exhausted"
// @Router      /admin/requests/{id}/appeals [post]
func (h *Handlers) FileAppeal(c *gin.Context) {
	var body FileAppealBody
	if !bindJSON(c, &body) {
		return
	}
	a, err := h.appealSvc.File(c.Request.Context(), c.Param("id"), services.AppealInput{
		Reason:   body.Reason,
		Instance: domain.AppealInstance(body.Instance),
		ActorID:  userID(c),
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, a)
}

// CitizenAppeal godoc
// @ID          citizenAppeal
// @Summary     File an appeal (citizen)
// @Tags        Requests
// @Accept      json
// @Produce     json
// @Param       protocol  path  string  true  "Protocol"  example(ESIC-2024-000001)
// @Param       body      body  handlers.FileAppealBody  true  "Appeal"
// @Success     201  {object}  domain.Appeal
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse
// @Router      /requests/{protocol}/appeals [post]
func (h *Handlers) CitizenAppeal(c *gin.Context) {
	var body FileAppealBody
	if !bindJSON(c, &body) {
		return
	}
	a, err := h.appealSvc.FileByProtocol(c.Request.Context(), c.Param("protocol"), services.AppealInput{
		Reason:   body.Reason,
		Instance: domain.AppealInstance(body.Instance),
		ActorID:  services.ActorCitizen,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, a)
}

// DecideAppeal godoc
// @ID          decideAppeal
// @Summary     Decide an open appeal
// @Description Returns the request to Responded; escalation is a new appeal.
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  false  "Staff member"
// @Param       id    path  string  true  "Appeal ID"  format(uuid)
// @Param       body  body  handlers.DecideAppealBody  true  "Decision"
// @Success     200  {object}  domain.Appeal
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse  "already_decided"
// @Router      /admin/appeals/{id}/decision [post]
func (h *Handlers) DecideAppeal(c *gin.Context) {
	var body DecideAppealBody
	if !bindJSON(c, &body) {
		return
	}
	a, err := h.appealSvc.Decide(c.Request.Context(), c.Param("id"), services.DecisionInput{
		Decision:  domain.AppealDecision(body.Decision),
		Rationale: body.Rationale,
		ActorID:   userID(c),
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, a)
}
