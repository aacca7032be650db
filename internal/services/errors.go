// Package services defines the business logic of the records-request
// lifecycle. This file centralizes the service-level error values so that
// they can be consistently returned by service methods and checked by
// callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import (
	"errors"
	"fmt"

	"github.com/tbourn/esic-backend/internal/domain"
)

var (
	// ErrInvalidTransition is returned when the request's current status does
	// not accept the attempted event. The request is left unchanged.
	ErrInvalidTransition = domain.ErrInvalidTransition

	// ErrRequestNotFound indicates an unknown request id or protocol.
	ErrRequestNotFound = errors.New("request not found")

	// ErrAppealNotFound indicates an unknown appeal id.
	ErrAppealNotFound = errors.New("appeal not found")

	// ErrExtensionAlreadyUsed is returned for a second extension on the same
	// request. The extended deadline is not modified.
	ErrExtensionAlreadyUsed = errors.New("deadline extension already used")

	// ErrInvalidAppealSequence is returned when an appeal would skip an
	// instance or while the previous appeal is still undecided.
	ErrInvalidAppealSequence = errors.New("invalid appeal sequence")

	// ErrAppealExhausted is returned when every appeal instance was used.
	ErrAppealExhausted = errors.New("appeal instances exhausted")

	// ErrAlreadyDecided is returned when deciding an appeal twice.
	ErrAlreadyDecided = errors.New("appeal already decided")
)

// ValidationError reports malformed or missing input. Field names the
// offending input using its JSON name.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}
