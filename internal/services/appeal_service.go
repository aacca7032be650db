// Package services – AppealManager
//
// This file implements AppealManager, which files appeals against answered
// requests and records their decisions. Instances are filed in ascending
// order without skipping, at most one appeal per request is undecided at a
// time, and the number of instances is capped by configuration (three by
// default). Deciding an appeal returns the request to Responded; escalation
// to the next instance is a separate File call, never automatic.
package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/esic-backend/internal/domain"
	"github.com/tbourn/esic-backend/internal/observability"
	"github.com/tbourn/esic-backend/internal/repo"
)

// AppealInput is the input of fileAppeal. Instance is optional; when set it
// must be the next instance due.
type AppealInput struct {
	Reason   string
	Instance domain.AppealInstance
	ActorID  string
}

// DecisionInput is the input of decideAppeal.
type DecisionInput struct {
	Decision  domain.AppealDecision
	Rationale string
	ActorID   string
}

// AppealManager files and decides appeals.
type AppealManager struct {
	Registry *RequestRegistry

	// MaxInstances caps the number of appeal instances (1..3).
	MaxInstances int
}

// NewAppealManager returns a manager sharing the registry's store and clock.
func NewAppealManager(reg *RequestRegistry, maxInstances int) *AppealManager {
	if maxInstances < 1 || maxInstances > int(domain.MaxAppealInstance) {
		maxInstances = int(domain.MaxAppealInstance)
	}
	return &AppealManager{Registry: reg, MaxInstances: maxInstances}
}

// FileByProtocol resolves the protocol and files the appeal on the citizen's
// behalf.
func (s *AppealManager) FileByProtocol(ctx context.Context, protocol string, in AppealInput) (*domain.Appeal, error) {
	r, err := repo.GetRequestByProtocol(ctx, s.Registry.DB, NormalizeProtocol(protocol))
	if errors.Is(err, repo.ErrNotFound) {
		return nil, rejected(ErrRequestNotFound)
	}
	if err != nil {
		return nil, err
	}
	if in.ActorID == "" {
		in.ActorID = ActorCitizen
	}
	return s.File(ctx, r.ID, in)
}

// File opens the next appeal instance and moves the request to UnderAppeal.
//
// Checks, in order:
//   - ErrRequestNotFound for an unknown request.
//   - ErrInvalidTransition unless the request is Responded or UnderAppeal.
//   - ErrInvalidAppealSequence while an appeal is undecided.
//   - ErrAppealExhausted when every instance was used.
//   - ErrInvalidAppealSequence when in.Instance is set and is not the next.
//
// A failed call creates no Appeal row.
func (s *AppealManager) File(ctx context.Context, requestID string, in AppealInput) (*domain.Appeal, error) {
	tr := otel.Tracer("services/AppealManager")
	ctx, span := tr.Start(ctx, "File",
		trace.WithAttributes(
			attribute.String("request.id", requestID),
			attribute.Int("appeal.instance", int(in.Instance)),
		),
	)
	defer span.End()

	in.Reason = strings.TrimSpace(in.Reason)
	switch {
	case in.Reason == "":
		return nil, rejected(invalid("reason", "reason is required"))
	case in.Instance != 0 && !in.Instance.Valid():
		return nil, rejected(invalid("instance", "instance must be 1, 2 or 3"))
	}

	reg := s.Registry
	now := reg.now()

	var (
		appeal *domain.Appeal
		out    *domain.Request
		rec    *domain.RequestEvent
	)
	err := reg.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := reg.load(ctx, tx, requestID)
		if err != nil {
			return err
		}
		// UnderAppeal falls through so an undecided appeal reports a
		// sequence error.
		if cur.Status != domain.StatusResponded && cur.Status != domain.StatusUnderAppeal {
			_, err := domain.Next(cur.Status, domain.EventFileAppeal)
			return err
		}
		next, err := s.nextInstance(ctx, tx, requestID, in.Instance)
		if err != nil {
			return err
		}

		out, rec, err = reg.transition(ctx, tx, change{
			requestID: requestID,
			event:     domain.EventFileAppeal,
			actorID:   in.ActorID,
			at:        now,
			note:      "instance " + strconv.Itoa(int(next)),
		})
		if err != nil {
			return err
		}

		appeal = &domain.Appeal{
			ID:        uuid.NewString(),
			RequestID: requestID,
			Instance:  next,
			Reason:    in.Reason,
			FiledAt:   now,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := repo.CreateAppeal(ctx, tx, appeal); err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				return ErrInvalidAppealSequence
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, rejected(err)
	}

	observability.AppealsFiled.WithLabelValues(appeal.Instance.String()).Inc()
	reg.notify(ctx, eventFor(out, rec, map[string]string{
		"appeal_id": appeal.ID,
		"instance":  appeal.Instance.String(),
	}))
	return appeal, nil
}

// Decide records the decision of an open appeal and returns the request to
// Responded. A second decision fails with ErrAlreadyDecided.
func (s *AppealManager) Decide(ctx context.Context, appealID string, in DecisionInput) (*domain.Appeal, error) {
	tr := otel.Tracer("services/AppealManager")
	ctx, span := tr.Start(ctx, "Decide",
		trace.WithAttributes(
			attribute.String("appeal.id", appealID),
			attribute.String("appeal.decision", string(in.Decision)),
		),
	)
	defer span.End()

	in.Rationale = strings.TrimSpace(in.Rationale)
	switch {
	case !in.Decision.Valid():
		return nil, rejected(invalid("decision", "decision must be granted, partially_granted or denied"))
	case in.Rationale == "":
		return nil, rejected(invalid("rationale", "rationale is required"))
	}

	reg := s.Registry
	now := reg.now()

	var (
		appeal *domain.Appeal
		out    *domain.Request
		rec    *domain.RequestEvent
	)
	err := reg.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a, err := repo.GetAppeal(ctx, tx, appealID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrAppealNotFound
		}
		if err != nil {
			return err
		}
		if !a.Open() {
			return ErrAlreadyDecided
		}

		ok, err := repo.DecideAppeal(ctx, tx, repo.AppealDecisionUpdate{
			ID:        appealID,
			Decision:  in.Decision,
			Rationale: in.Rationale,
			DecidedBy: in.ActorID,
			At:        now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadyDecided
		}

		out, rec, err = reg.transition(ctx, tx, change{
			requestID: a.RequestID,
			event:     domain.EventDecideAppeal,
			actorID:   in.ActorID,
			at:        now,
			note:      fmt.Sprintf("instance %d: %s", a.Instance, in.Decision),
		})
		if err != nil {
			return err
		}

		appeal, err = repo.GetAppeal(ctx, tx, appealID)
		return err
	})
	if err != nil {
		return nil, rejected(err)
	}

	reg.notify(ctx, eventFor(out, rec, map[string]string{
		"appeal_id": appeal.ID,
		"instance":  appeal.Instance.String(),
		"decision":  string(in.Decision),
	}))
	return appeal, nil
}

// Appeals lists the appeals of a request ordered by instance.
func (s *AppealManager) Appeals(ctx context.Context, requestID string) ([]domain.Appeal, error) {
	if _, err := s.Registry.load(ctx, s.Registry.DB, requestID); err != nil {
		return nil, err
	}
	return repo.ListAppeals(ctx, s.Registry.DB, requestID)
}

// nextInstance computes the instance the next appeal must use.
func (s *AppealManager) nextInstance(ctx context.Context, tx *gorm.DB, requestID string, requested domain.AppealInstance) (domain.AppealInstance, error) {
	next := domain.InstanceFirst
	latest, err := repo.LatestAppeal(ctx, tx, requestID)
	switch {
	case errors.Is(err, repo.ErrNotFound):
	case err != nil:
		return 0, err
	case latest.Open():
		return 0, fmt.Errorf("%w: %s instance is still undecided", ErrInvalidAppealSequence, latest.Instance)
	default:
		next = latest.Instance + 1
	}

	if int(next) > s.MaxInstances {
		return 0, ErrAppealExhausted
	}
	if requested != 0 && requested != next {
		return 0, fmt.Errorf("%w: next instance is %s, got %s", ErrInvalidAppealSequence, next, requested)
	}
	return next, nil
}
