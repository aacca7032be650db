package repo

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/esic-backend/internal/domain"
)

func TestAppendAndListEvents(t *testing.T) {
	db := newTestDB(t, &domain.Request{}, &domain.RequestEvent{})
	base := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	seedRequest(t, db, "r1", "ESIC-2024-000001", domain.StatusPending, base)

	evs := []domain.RequestEvent{
		{RequestID: "r1", Event: domain.EventSubmit, ToStatus: domain.StatusPending, ActorID: "citizen", At: base},
		{RequestID: "r1", Event: domain.EventStartProcessing, FromStatus: domain.StatusPending, ToStatus: domain.StatusInProgress, ActorID: "staff-1", At: base.Add(time.Hour)},
		{RequestID: "other", Event: domain.EventSubmit, ToStatus: domain.StatusPending, ActorID: "citizen", At: base},
	}
	for i := range evs {
		if err := AppendEvent(context.Background(), db, &evs[i]); err != nil {
			t.Fatalf("AppendEvent %d: %v", i, err)
		}
		if evs[i].ID == 0 {
			t.Fatalf("expected autoincrement id on event %d", i)
		}
	}

	got, err := ListEvents(context.Background(), db, "r1")
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(got) != 2 || got[0].Event != domain.EventSubmit || got[1].ToStatus != domain.StatusInProgress {
		t.Fatalf("unexpected trail: %+v", got)
	}
}

func TestCreateAndListResponses(t *testing.T) {
	db := newTestDB(t, &domain.Request{}, &domain.Response{})
	base := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	seedRequest(t, db, "r1", "ESIC-2024-000001", domain.StatusResponded, base)

	resps := []*domain.Response{
		{ID: "p2", RequestID: "r1", Kind: domain.KindGranted, Content: "Segue anexo", RespondedAt: base.AddDate(0, 0, 25)},
		{ID: "p1", RequestID: "r1", Kind: domain.KindExtensionRequested, Content: "Prorrogacao", LegalBasis: "Art. 11", RespondedAt: base.AddDate(0, 0, 18)},
	}
	for _, p := range resps {
		if err := CreateResponse(context.Background(), db, p); err != nil {
			t.Fatalf("CreateResponse %s: %v", p.ID, err)
		}
	}

	got, err := ListResponses(context.Background(), db, "r1")
	if err != nil {
		t.Fatalf("ListResponses: %v", err)
	}
	if len(got) != 2 || got[0].ID != "p1" || got[1].ID != "p2" {
		t.Fatalf("expected chronological order, got %+v", got)
	}

	byKind, err := CountResponsesByKind(context.Background(), db)
	if err != nil {
		t.Fatalf("CountResponsesByKind: %v", err)
	}
	if byKind[domain.KindGranted] != 1 || byKind[domain.KindExtensionRequested] != 1 {
		t.Fatalf("unexpected kinds: %v", byKind)
	}
}
