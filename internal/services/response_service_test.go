package services

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/esic-backend/internal/domain"
	"github.com/tbourn/esic-backend/internal/repo"
)

func TestRecord_ScenarioB_ExtensionThenDaysRemaining(t *testing.T) {
	f := newFixture(t)
	r := f.submit(t)

	f.clock.Set("2024-01-10T00:00:00Z")
	resp, got, err := f.resp.Record(context.Background(), r.ID, ResponseInput{
		Kind:        domain.KindExtensionRequested,
		Content:     "Prazo prorrogado para levantamento dos contratos.",
		LegalBasis:  "Art. 11, §2º",
		ResponderID: "staff-1",
	})
	if err != nil {
		t.Fatalf("record extension: %v", err)
	}
	if resp.Kind != domain.KindExtensionRequested {
		t.Fatalf("kind = %s", resp.Kind)
	}
	if got.Status != domain.StatusExtensionRequested {
		t.Fatalf("status = %s", got.Status)
	}
	if got.ExtendedDeadline == nil || !got.ExtendedDeadline.Equal(mustTime("2024-01-31T00:00:00Z")) {
		t.Fatalf("extended deadline = %v", got.ExtendedDeadline)
	}
	if got.RespondedAt != nil {
		t.Fatalf("an extension must not stamp responded_at")
	}

	f.clock.Set("2024-01-15T00:00:00Z")
	detail, err := f.reg.Get(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if detail.Deadline.DaysRemaining != 16 {
		t.Fatalf("days remaining = %d, want 16", detail.Deadline.DaysRemaining)
	}
	if len(detail.Responses) != 1 {
		t.Fatalf("responses = %d", len(detail.Responses))
	}
}

func TestRecord_SecondExtension_RejectedAndDeadlineUnchanged(t *testing.T) {
	f := newFixture(t)
	r := f.submit(t)
	first := f.respond(t, r.ID, domain.KindExtensionRequested)

	f.clock.Set("2024-01-20T00:00:00Z")
	_, _, err := f.resp.Record(context.Background(), r.ID, ResponseInput{
		Kind:    domain.KindExtensionRequested,
		Content: "Nova prorrogação.",
	})
	if !errors.Is(err, ErrExtensionAlreadyUsed) {
		t.Fatalf("want ErrExtensionAlreadyUsed, got %v", err)
	}
	if Reason(err) != "extension_already_used" {
		t.Fatalf("reason = %q", Reason(err))
	}

	now, err := repo.GetRequest(context.Background(), f.db, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !now.ExtendedDeadline.Equal(*first.ExtendedDeadline) {
		t.Fatalf("extended deadline moved: %s -> %s", first.ExtendedDeadline, now.ExtendedDeadline)
	}
	resps, _ := repo.ListResponses(context.Background(), f.db, r.ID)
	if len(resps) != 1 {
		t.Fatalf("responses = %d, want 1", len(resps))
	}
}

func TestRecord_SubstantiveAfterExtension(t *testing.T) {
	f := newFixture(t)
	r := f.submit(t)
	f.respond(t, r.ID, domain.KindExtensionRequested)

	f.clock.Set("2024-01-25T10:00:00Z")
	got := f.respond(t, r.ID, domain.KindPartiallyGranted)

	if got.Status != domain.StatusResponded {
		t.Fatalf("status = %s", got.Status)
	}
	if got.RespondedAt == nil || !got.RespondedAt.Equal(mustTime("2024-01-25T10:00:00Z")) {
		t.Fatalf("responded_at = %v", got.RespondedAt)
	}
	if got.ExtendedDeadline == nil {
		t.Fatalf("extended deadline lost")
	}
}

func TestRecord_RespondedRequestRejectsResponses(t *testing.T) {
	f := newFixture(t)
	r := f.submit(t)
	f.respond(t, r.ID, domain.KindDenied)

	for _, kind := range []domain.ResponseKind{domain.KindGranted, domain.KindExtensionRequested} {
		_, _, err := f.resp.Record(context.Background(), r.ID, ResponseInput{Kind: kind, Content: "x"})
		if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("%s on responded: want ErrInvalidTransition, got %v", kind, err)
		}
	}
}

func TestRecord_Validation(t *testing.T) {
	f := newFixture(t)
	r := f.submit(t)

	_, _, err := f.resp.Record(context.Background(), r.ID, ResponseInput{Kind: "maybe", Content: "x"})
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "kind" {
		t.Fatalf("want kind ValidationError, got %v", err)
	}

	_, _, err = f.resp.Record(context.Background(), r.ID, ResponseInput{Kind: domain.KindGranted, Content: "   "})
	if !errors.As(err, &ve) || ve.Field != "content" {
		t.Fatalf("want content ValidationError, got %v", err)
	}

	_, _, err = f.resp.Record(context.Background(), "missing", ResponseInput{Kind: domain.KindGranted, Content: "x"})
	if !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("want ErrRequestNotFound, got %v", err)
	}
}

func TestNotBefore(t *testing.T) {
	floor := mustTime("2024-01-10T00:00:00Z")
	if got := notBefore(mustTime("2024-01-09T00:00:00Z"), floor); !got.Equal(floor) {
		t.Fatalf("got %s", got)
	}
	later := mustTime("2024-01-11T00:00:00Z")
	if got := notBefore(later, floor); !got.Equal(later) {
		t.Fatalf("got %s", got)
	}
}
