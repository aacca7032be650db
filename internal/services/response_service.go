// Package services – ResponseRecorder
//
// This file implements ResponseRecorder, which appends staff responses to a
// request and drives the status forward. An extension notice is modeled as a
// response of kind extension_requested: it moves the request to
// ExtensionRequested and fixes the extended deadline, which can happen once.
// Any other kind is a substantive answer that moves the request to Responded
// and stamps respondedAt.
package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/esic-backend/internal/domain"
	"github.com/tbourn/esic-backend/internal/observability"
	"github.com/tbourn/esic-backend/internal/repo"
)

// ResponseInput is the staff input of recordResponse.
type ResponseInput struct {
	Kind        domain.ResponseKind
	Content     string
	LegalBasis  string
	ResponderID string
}

// ResponseRecorder records staff responses.
type ResponseRecorder struct {
	Registry *RequestRegistry
}

// NewResponseRecorder returns a recorder sharing the registry's store and clock.
func NewResponseRecorder(reg *RequestRegistry) *ResponseRecorder {
	return &ResponseRecorder{Registry: reg}
}

// Record appends a response to the request and applies the matching
// transition in a single transaction. It returns the stored response and the
// updated request.
//
// Errors:
//   - *ValidationError for an unknown kind or empty content.
//   - ErrRequestNotFound for an unknown request.
//   - ErrInvalidTransition when the request does not accept responses
//     (Responded, UnderAppeal, Archived).
//   - ErrExtensionAlreadyUsed for a second extension; the extended deadline
//     is left untouched.
func (s *ResponseRecorder) Record(ctx context.Context, requestID string, in ResponseInput) (*domain.Response, *domain.Request, error) {
	tr := otel.Tracer("services/ResponseRecorder")
	ctx, span := tr.Start(ctx, "Record",
		trace.WithAttributes(
			attribute.String("request.id", requestID),
			attribute.String("response.kind", string(in.Kind)),
		),
	)
	defer span.End()

	in.Content = strings.TrimSpace(in.Content)
	in.LegalBasis = strings.TrimSpace(in.LegalBasis)
	switch {
	case !in.Kind.Valid():
		return nil, nil, rejected(invalid("kind", "unknown response kind"))
	case in.Content == "":
		return nil, nil, rejected(invalid("content", "content is required"))
	}

	reg := s.Registry
	now := reg.now()
	extension := !in.Kind.Substantive()

	var (
		resp *domain.Response
		out  *domain.Request
		rec  *domain.RequestEvent
	)
	err := reg.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := reg.load(ctx, tx, requestID)
		if err != nil {
			return err
		}

		c := change{
			requestID: requestID,
			event:     in.Kind.Event(),
			actorID:   in.ResponderID,
			at:        now,
			note:      string(in.Kind),
			precheck:  acceptsResponse(extension),
		}
		if extension {
			c.set = map[string]any{"extended_deadline": reg.Deadlines.Extend(cur.BaseDeadline)}
			c.requireNoExtension = true
		} else {
			c.set = map[string]any{"responded_at": notBefore(now, cur.SubmittedAt)}
		}

		out, rec, err = reg.transition(ctx, tx, c)
		if err != nil {
			return err
		}

		resp = &domain.Response{
			ID:          uuid.NewString(),
			RequestID:   requestID,
			Kind:        in.Kind,
			Content:     in.Content,
			LegalBasis:  in.LegalBasis,
			ResponderID: in.ResponderID,
			RespondedAt: now,
			CreatedAt:   now,
		}
		return repo.CreateResponse(ctx, tx, resp)
	})
	if err != nil {
		return nil, nil, rejected(err)
	}

	observability.ResponsesRecorded.WithLabelValues(string(in.Kind)).Inc()
	detail := map[string]string{"kind": string(in.Kind)}
	if out.ExtendedDeadline != nil && extension {
		detail["extended_deadline"] = out.ExtendedDeadline.Format(time.RFC3339)
	}
	reg.notify(ctx, eventFor(out, rec, detail))
	return resp, out, nil
}

// acceptsResponse rejects requests that no longer take responses before the
// extension rule is looked at, so that answering a closed request reports
// ErrInvalidTransition rather than ErrExtensionAlreadyUsed.
func acceptsResponse(extension bool) func(*gorm.DB, *domain.Request) error {
	return func(_ *gorm.DB, cur *domain.Request) error {
		if !cur.Status.Open() {
			_, err := domain.Next(cur.Status, domain.EventRespond)
			return err
		}
		if extension && cur.ExtendedDeadline != nil {
			return ErrExtensionAlreadyUsed
		}
		return nil
	}
}

// notBefore returns t, or floor when t is earlier.
func notBefore(t, floor time.Time) time.Time {
	if t.Before(floor) {
		return floor
	}
	return t
}
