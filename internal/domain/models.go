// Package domain defines the persistence models for records requests, staff
// responses, appeals and their audit trail. These types are mapped with GORM
// and form the core data layer of the e-SIC service.
package domain

import "time"

// Request is a citizen's public-records request. Rows are never deleted; a
// closed request is archived and kept for audit.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Protocol: human-typeable tracking code issued at submission (unique, immutable).
//   - Requester*: identification of the citizen; email is required, phone and
//     identity document are optional.
//   - Subject / Description: free text of the request.
//   - ReceiptChannel: how the reply should be delivered.
//   - Status: lifecycle state (see status.go).
//   - SubmittedAt: creation instant, immutable.
//   - BaseDeadline: SubmittedAt plus the statutory response window.
//   - ExtendedDeadline: BaseDeadline plus the extension window, set at most once.
//   - RespondedAt: instant of the latest substantive response.
//   - ArchivedAt: instant the request was archived.
type Request struct {
	ID                string         `json:"id"                  gorm:"type:char(36);primaryKey"`
	Protocol          string         `json:"protocol"            gorm:"type:varchar(32);not null;uniqueIndex:ux_requests_protocol"`
	RequesterName     string         `json:"requester_name"      gorm:"type:varchar(255);not null"`
	RequesterEmail    string         `json:"requester_email"     gorm:"type:varchar(255);not null"`
	RequesterPhone    string         `json:"requester_phone,omitempty"    gorm:"type:varchar(32)"`
	RequesterDocument string         `json:"requester_document,omitempty" gorm:"type:varchar(32)"`
	Subject           string         `json:"subject"             gorm:"type:varchar(255);not null"`
	Description       string         `json:"description"         gorm:"type:text;not null"`
	ReceiptChannel    ReceiptChannel `json:"receipt_channel"     gorm:"type:varchar(16);not null;check:receipt_channel IN ('email','in_person','mail')"`
	Status            Status         `json:"status"              gorm:"type:varchar(32);not null;index:idx_requests_status"`
	SubmittedAt       time.Time      `json:"submitted_at"        gorm:"not null;index:idx_requests_submitted"`
	BaseDeadline      time.Time      `json:"base_deadline"       gorm:"not null"`
	ExtendedDeadline  *time.Time     `json:"extended_deadline,omitempty"`
	RespondedAt       *time.Time     `json:"responded_at,omitempty"`
	ArchivedAt        *time.Time     `json:"archived_at,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`

	// SearchText is the accent-folded concatenation of the searchable fields.
	SearchText string `json:"-" gorm:"type:text;not null;default:''"`
}

// TableName returns the database table name for Request.
func (Request) TableName() string { return "requests" }

// EffectiveDeadline is the extended deadline when present, else the base one.
func (r Request) EffectiveDeadline() time.Time {
	if r.ExtendedDeadline != nil {
		return *r.ExtendedDeadline
	}
	return r.BaseDeadline
}

// Response is an immutable staff reply appended to a request. A request may
// hold several, e.g. an extension notice followed by the substantive answer.
type Response struct {
	ID          string       `json:"id"           gorm:"type:char(36);primaryKey"`
	RequestID   string       `json:"request_id"   gorm:"type:char(36);not null;index:idx_responses_request,priority:1"`
	Kind        ResponseKind `json:"kind"         gorm:"type:varchar(32);not null"`
	Content     string       `json:"content"      gorm:"type:text;not null"`
	LegalBasis  string       `json:"legal_basis,omitempty" gorm:"type:text"`
	ResponderID string       `json:"responder_id,omitempty" gorm:"type:varchar(64)"`
	RespondedAt time.Time    `json:"responded_at" gorm:"not null;index:idx_responses_request,priority:2"`
	CreatedAt   time.Time    `json:"created_at"`

	Request Request `json:"-" gorm:"foreignKey:RequestID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the database table name for Response.
func (Response) TableName() string { return "responses" }

// Appeal escalates a request to the next review instance. At most one appeal
// per request is undecided at any time, and (request_id, instance) is unique.
type Appeal struct {
	ID                string          `json:"id"         gorm:"type:char(36);primaryKey"`
	RequestID         string          `json:"request_id" gorm:"type:char(36);not null;uniqueIndex:ux_appeals_request_instance,priority:1"`
	Instance          AppealInstance  `json:"instance"   gorm:"not null;uniqueIndex:ux_appeals_request_instance,priority:2;check:instance IN (1,2,3)"`
	Reason            string          `json:"reason"     gorm:"type:text;not null"`
	FiledAt           time.Time       `json:"filed_at"   gorm:"not null"`
	Decision          *AppealDecision `json:"decision,omitempty"           gorm:"type:varchar(32)"`
	DecisionRationale *string         `json:"decision_rationale,omitempty" gorm:"type:text"`
	DecidedAt         *time.Time      `json:"decided_at,omitempty"`
	DecidedBy         string          `json:"decided_by,omitempty"         gorm:"type:varchar(64)"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`

	Request Request `json:"-" gorm:"foreignKey:RequestID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the database table name for Appeal.
func (Appeal) TableName() string { return "appeals" }

// Open reports whether the appeal still awaits a decision.
func (a Appeal) Open() bool { return a.DecidedAt == nil }

// ProtocolCounter holds the last protocol sequence number issued in a year.
type ProtocolCounter struct {
	Year int   `gorm:"primaryKey;autoIncrement:false"`
	Last int64 `gorm:"not null;default:0"`
}

// TableName returns the database table name for ProtocolCounter.
func (ProtocolCounter) TableName() string { return "protocol_counters" }

// RequestEvent is one entry of a request's audit trail, written in the same
// transaction as the transition it records.
type RequestEvent struct {
	ID         uint      `json:"id"          gorm:"primaryKey;autoIncrement"`
	RequestID  string    `json:"request_id"  gorm:"type:char(36);not null;index:idx_request_events_request"`
	Event      Event     `json:"event"       gorm:"type:varchar(32);not null"`
	FromStatus Status    `json:"from_status,omitempty" gorm:"type:varchar(32)"`
	ToStatus   Status    `json:"to_status"   gorm:"type:varchar(32);not null"`
	ActorID    string    `json:"actor_id"    gorm:"type:varchar(64);not null"`
	Note       string    `json:"note,omitempty" gorm:"type:text"`
	At         time.Time `json:"at"          gorm:"not null"`
}

// TableName returns the database table name for RequestEvent.
func (RequestEvent) TableName() string { return "request_events" }
