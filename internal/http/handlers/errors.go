// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes the symbolic error codes written in the `code` field of
// the error envelope, and failErr, which translates service errors into an
// HTTP status plus code. Clients branch on the code; the message is for humans.
//
// Conventions:
//   - Codes are lowercase snake_case.
//   - Lifecycle rejections (invalid_transition, extension_already_used, ...)
//     map to 409 Conflict: the request is well-formed but the record's current
//     state does not allow it.
//   - validation_failed carries the offending input in `field`.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "invalid_appeal_sequence",
//	  "message": "invalid appeal sequence: first instance is still undecided"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/esic-backend/internal/services"
)

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Lifecycle:
	ErrCodeValidation            = "validation_failed"
	ErrCodeInvalidTransition     = "invalid_transition"
	ErrCodeExtensionAlreadyUsed  = "extension_already_used"
	ErrCodeInvalidAppealSequence = "invalid_appeal_sequence"
	ErrCodeAppealExhausted       = "appeal_exhausted"
	ErrCodeAlreadyDecided        = "already_decided"
)

// failErr writes the envelope matching err. Unknown errors become a 500 with
// a generic message; the detail is only logged.
func failErr(c *gin.Context, err error) {
	var ve *services.ValidationError
	if errors.As(err, &ve) {
		failField(c, http.StatusBadRequest, ErrCodeValidation, ve.Message, ve.Field)
		return
	}
	switch code := services.Reason(err); code {
	case "not_found":
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case ErrCodeInvalidTransition, ErrCodeExtensionAlreadyUsed, ErrCodeInvalidAppealSequence,
		ErrCodeAppealExhausted, ErrCodeAlreadyDecided:
		fail(c, http.StatusConflict, code, err.Error())
	default:
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
	}
}
