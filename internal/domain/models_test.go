package domain

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:domain_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Enforce FKs so RESTRICT actually executes.
	db.Exec("PRAGMA foreign_keys=ON;")
	return db
}

func seedRequest(t *testing.T, db *gorm.DB, id, protocol string) *Request {
	t.Helper()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := &Request{
		ID:             id,
		Protocol:       protocol,
		RequesterName:  "Maria",
		RequesterEmail: "maria@example.org",
		Subject:        "Contratos",
		Description:    "Cópia dos contratos de limpeza urbana de 2023",
		ReceiptChannel: ChannelEmail,
		Status:         StatusPending,
		SubmittedAt:    now,
		BaseDeadline:   now.AddDate(0, 0, 20),
	}
	if err := db.Create(r).Error; err != nil {
		t.Fatalf("insert request: %v", err)
	}
	return r
}

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		(Request{}).TableName():         "requests",
		(Response{}).TableName():        "responses",
		(Appeal{}).TableName():          "appeals",
		(ProtocolCounter{}).TableName(): "protocol_counters",
		(RequestEvent{}).TableName():    "request_events",
		(Idempotency{}).TableName():     "idempotency",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("TableName() = %q; want %q", got, want)
		}
	}
}

func TestMigrations_Indexes_AndConstraints(t *testing.T) {
	db := newDomainDB(t)

	models := []any{&Request{}, &Response{}, &Appeal{}, &ProtocolCounter{}, &RequestEvent{}, &Idempotency{}}
	if err := db.AutoMigrate(models...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()
	for _, tbl := range models {
		if !m.HasTable(tbl) {
			t.Fatalf("expected table for %T to exist", tbl)
		}
	}

	if !m.HasIndex(&Request{}, "ux_requests_protocol") {
		t.Fatalf("expected unique index ux_requests_protocol on requests")
	}
	if !m.HasIndex(&Request{}, "idx_requests_status") {
		t.Fatalf("expected index idx_requests_status on requests")
	}
	if !m.HasIndex(&Appeal{}, "ux_appeals_request_instance") {
		t.Fatalf("expected unique index ux_appeals_request_instance on appeals")
	}
	if !m.HasIndex(&Idempotency{}, "ux_scope_key") {
		t.Fatalf("expected unique index ux_scope_key on idempotency")
	}

	seedRequest(t, db, "r1", "ESIC-2024-000001")

	// Duplicate protocol is rejected.
	dup := &Request{
		ID: "r2", Protocol: "ESIC-2024-000001", RequesterName: "João", RequesterEmail: "j@example.org",
		Subject: "s", Description: "d", ReceiptChannel: ChannelMail, Status: StatusPending,
		SubmittedAt: time.Now().UTC(), BaseDeadline: time.Now().UTC(),
	}
	if err := db.Create(dup).Error; err == nil {
		t.Fatalf("expected unique violation on duplicate protocol")
	}

	// (request_id, instance) is unique.
	now := time.Now().UTC()
	a1 := &Appeal{ID: "a1", RequestID: "r1", Instance: InstanceFirst, Reason: "x", FiledAt: now}
	if err := db.Create(a1).Error; err != nil {
		t.Fatalf("insert appeal: %v", err)
	}
	a2 := &Appeal{ID: "a2", RequestID: "r1", Instance: InstanceFirst, Reason: "y", FiledAt: now}
	if err := db.Create(a2).Error; err == nil {
		t.Fatalf("expected unique violation on (request_id, instance)")
	}

	// Instance outside 1..3 violates the CHECK constraint.
	a4 := &Appeal{ID: "a4", RequestID: "r1", Instance: 4, Reason: "z", FiledAt: now}
	if err := db.Create(a4).Error; err == nil {
		t.Fatalf("expected check violation for instance 4")
	}

	// Responses cannot reference a missing request.
	orphan := &Response{ID: "x1", RequestID: "missing", Kind: KindGranted, Content: "c", RespondedAt: now}
	if err := db.Create(orphan).Error; err == nil {
		t.Fatalf("expected FK violation for orphan response")
	}

	// Requests referenced by responses cannot be deleted.
	resp := &Response{ID: "x2", RequestID: "r1", Kind: KindGranted, Content: "c", RespondedAt: now}
	if err := db.Create(resp).Error; err != nil {
		t.Fatalf("insert response: %v", err)
	}
	if err := db.Delete(&Request{}, "id = ?", "r1").Error; err == nil {
		t.Fatalf("expected RESTRICT to block deleting a request with responses")
	}
}

func TestRequest_EffectiveDeadline(t *testing.T) {
	base := time.Date(2024, 1, 21, 0, 0, 0, 0, time.UTC)
	r := Request{BaseDeadline: base}
	if !r.EffectiveDeadline().Equal(base) {
		t.Fatalf("expected base deadline without extension")
	}
	ext := base.AddDate(0, 0, 10)
	r.ExtendedDeadline = &ext
	if !r.EffectiveDeadline().Equal(ext) {
		t.Fatalf("expected extended deadline when present")
	}
}

func TestAppeal_Open(t *testing.T) {
	a := Appeal{}
	if !a.Open() {
		t.Fatalf("appeal without decision should be open")
	}
	now := time.Now()
	a.DecidedAt = &now
	if a.Open() {
		t.Fatalf("decided appeal should not be open")
	}
}
