// Package services – RequestRegistry
//
// This file implements RequestRegistry, the owner of the records-request
// aggregate. It accepts citizen submissions (validating input, issuing the
// protocol and computing the base deadline atomically), serves the citizen
// lookup and the administrative listings, and applies the staff-driven
// transitions that are not tied to a response or an appeal.
//
// Every status change in the service layer goes through transition(), which
// consults the domain transition table and then writes the new status with a
// conditional UPDATE guarded on the allowed source statuses. The guard is the
// commit point: if another session changed the row in between, zero rows
// are affected, the transaction is rolled back and the fresh row is used to
// report the precise error.
//
// Observability: public methods are OpenTelemetry-instrumented and accepted
// mutations bump the domain Prometheus counters.
package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/esic-backend/internal/config"
	"github.com/tbourn/esic-backend/internal/deadline"
	"github.com/tbourn/esic-backend/internal/domain"
	"github.com/tbourn/esic-backend/internal/notify"
	"github.com/tbourn/esic-backend/internal/observability"
	"github.com/tbourn/esic-backend/internal/repo"
	"github.com/tbourn/esic-backend/internal/search"
	"github.com/tbourn/esic-backend/internal/utils"
)

const (
	// ActorCitizen is recorded in the audit trail for citizen-initiated events.
	ActorCitizen = "citizen"

	maxNameRunes    = 255
	maxSubjectRunes = 255
	maxContactRunes = 32
)

// Requester identifies the citizen behind a request.
type Requester struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Document string `json:"document,omitempty"`
}

// Submission is the citizen input of submitRequest.
type Submission struct {
	Requester      Requester
	Subject        string
	Description    string
	ReceiptChannel domain.ReceiptChannel
}

// ListQuery filters and paginates administrative listings.
type ListQuery struct {
	Status   domain.Status
	Text     string
	Page     int
	PageSize int
}

// RequestListItem is a request with its deadline evaluated at read time.
type RequestListItem struct {
	domain.Request
	Deadline deadline.ForRequest `json:"deadline"`
}

// RequestDetail is the administrative view of one request.
type RequestDetail struct {
	RequestListItem
	Responses []domain.Response `json:"responses"`
	Appeals   []domain.Appeal   `json:"appeals"`
}

// ResponseView is a response as shown to the requester.
type ResponseView struct {
	Kind        domain.ResponseKind `json:"kind"`
	Content     string              `json:"content"`
	LegalBasis  string              `json:"legal_basis,omitempty"`
	RespondedAt time.Time           `json:"responded_at"`
}

// AppealView is an appeal as shown to the requester.
type AppealView struct {
	ID                string                 `json:"id"`
	Instance          domain.AppealInstance  `json:"instance"`
	Reason            string                 `json:"reason"`
	FiledAt           time.Time              `json:"filed_at"`
	Decision          *domain.AppealDecision `json:"decision,omitempty"`
	DecisionRationale *string                `json:"decision_rationale,omitempty"`
	DecidedAt         *time.Time             `json:"decided_at,omitempty"`
}

// RequestSummary is the citizen-facing result of a protocol lookup. It
// carries no requester contact data.
type RequestSummary struct {
	Protocol         string                `json:"protocol"`
	Subject          string                `json:"subject"`
	ReceiptChannel   domain.ReceiptChannel `json:"receipt_channel"`
	Status           domain.Status         `json:"status"`
	SubmittedAt      time.Time             `json:"submitted_at"`
	BaseDeadline     time.Time             `json:"base_deadline"`
	ExtendedDeadline *time.Time            `json:"extended_deadline,omitempty"`
	RespondedAt      *time.Time            `json:"responded_at,omitempty"`
	Deadline         deadline.ForRequest   `json:"deadline"`
	Responses        []ResponseView        `json:"responses"`
	Appeals          []AppealView          `json:"appeals"`
}

// RequestRegistry owns request creation and status transitions.
type RequestRegistry struct {
	DB        *gorm.DB
	Deadlines deadline.Calculator
	Protocols ProtocolIssuer
	Notifier  notify.Notifier

	// MinDescriptionLen is the minimum description length in runes.
	MinDescriptionLen int

	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// validate is safe for concurrent use and caches struct metadata.
var validate = validator.New()

// NewRequestRegistry builds a registry from the lifecycle configuration.
func NewRequestRegistry(db *gorm.DB, lc config.LifecycleConfig, n notify.Notifier) *RequestRegistry {
	if n == nil {
		n = notify.Nop{}
	}
	return &RequestRegistry{
		DB:                db,
		Deadlines:         deadline.New(lc.ResponseDays, lc.ExtensionDays, lc.NearDeadlineDays),
		Protocols:         SequentialIssuer{Prefix: lc.ProtocolPrefix},
		Notifier:          n,
		MinDescriptionLen: lc.MinDescriptionLen,
	}
}

// Submit validates a citizen submission and persists it as a Pending
// request. Protocol allocation, the insert and the audit entry share one
// transaction; a validation failure issues no protocol.
func (s *RequestRegistry) Submit(ctx context.Context, in Submission) (*domain.Request, error) {
	tr := otel.Tracer("services/RequestRegistry")
	ctx, span := tr.Start(ctx, "Submit",
		trace.WithAttributes(attribute.String("receipt_channel", string(in.ReceiptChannel))),
	)
	defer span.End()

	in = normalizeSubmission(in)
	if err := s.validateSubmission(in); err != nil {
		return nil, rejected(err)
	}

	now := s.now()
	r := &domain.Request{
		ID:                uuid.NewString(),
		RequesterName:     in.Requester.Name,
		RequesterEmail:    in.Requester.Email,
		RequesterPhone:    in.Requester.Phone,
		RequesterDocument: in.Requester.Document,
		Subject:           in.Subject,
		Description:       in.Description,
		ReceiptChannel:    in.ReceiptChannel,
		Status:            domain.StatusPending,
		SubmittedAt:       now,
		BaseDeadline:      s.Deadlines.Base(now),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.Protocols.Issue(ctx, tx, now)
		if err != nil {
			return err
		}
		r.Protocol = p
		r.SearchText = search.Document(p, r.Subject, r.Description, r.RequesterName)
		if err := repo.CreateRequest(ctx, tx, r); err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		return repo.AppendEvent(ctx, tx, &domain.RequestEvent{
			RequestID: r.ID,
			Event:     domain.EventSubmit,
			ToStatus:  domain.StatusPending,
			ActorID:   ActorCitizen,
			At:        now,
		})
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("request.protocol", r.Protocol))
	observability.RequestsSubmitted.Inc()
	s.notify(ctx, notify.Event{
		Event:     domain.EventSubmit,
		RequestID: r.ID,
		Protocol:  r.Protocol,
		Status:    r.Status,
		ActorID:   ActorCitizen,
		At:        now,
		Detail:    map[string]string{"base_deadline": r.BaseDeadline.Format(time.RFC3339)},
	})
	return r, nil
}

// Lookup returns the citizen summary of the request with the given protocol.
// An unknown protocol is an expected outcome and yields found == false with
// a nil error.
func (s *RequestRegistry) Lookup(ctx context.Context, protocol string) (*RequestSummary, bool, error) {
	tr := otel.Tracer("services/RequestRegistry")
	ctx, span := tr.Start(ctx, "Lookup",
		trace.WithAttributes(attribute.String("request.protocol", protocol)),
	)
	defer span.End()

	r, err := repo.GetRequestByProtocol(ctx, s.DB, NormalizeProtocol(protocol))
	if errors.Is(err, repo.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	resps, err := repo.ListResponses(ctx, s.DB, r.ID)
	if err != nil {
		return nil, false, err
	}
	appeals, err := repo.ListAppeals(ctx, s.DB, r.ID)
	if err != nil {
		return nil, false, err
	}

	sum := &RequestSummary{
		Protocol:         r.Protocol,
		Subject:          r.Subject,
		ReceiptChannel:   r.ReceiptChannel,
		Status:           r.Status,
		SubmittedAt:      r.SubmittedAt,
		BaseDeadline:     r.BaseDeadline,
		ExtendedDeadline: r.ExtendedDeadline,
		RespondedAt:      r.RespondedAt,
		Deadline:         s.Deadlines.Evaluate(*r, s.now()),
		Responses:        make([]ResponseView, 0, len(resps)),
		Appeals:          make([]AppealView, 0, len(appeals)),
	}
	for _, p := range resps {
		sum.Responses = append(sum.Responses, ResponseView{
			Kind:        p.Kind,
			Content:     p.Content,
			LegalBasis:  p.LegalBasis,
			RespondedAt: p.RespondedAt,
		})
	}
	for _, a := range appeals {
		sum.Appeals = append(sum.Appeals, AppealView{
			ID:                a.ID,
			Instance:          a.Instance,
			Reason:            a.Reason,
			FiledAt:           a.FiledAt,
			Decision:          a.Decision,
			DecisionRationale: a.DecisionRationale,
			DecidedAt:         a.DecidedAt,
		})
	}
	return sum, true, nil
}

// Get returns the administrative view of a request by ID.
func (s *RequestRegistry) Get(ctx context.Context, id string) (*RequestDetail, error) {
	tr := otel.Tracer("services/RequestRegistry")
	ctx, span := tr.Start(ctx, "Get", trace.WithAttributes(attribute.String("request.id", id)))
	defer span.End()

	r, err := s.load(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	resps, err := repo.ListResponses(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	appeals, err := repo.ListAppeals(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	return &RequestDetail{
		RequestListItem: s.item(*r, s.now()),
		Responses:       resps,
		Appeals:         appeals,
	}, nil
}

// ListPage returns a page of requests and the total number of matches.
// Without search text the newest submissions come first; with search text
// the matches are ranked by relevance before paging.
func (s *RequestRegistry) ListPage(ctx context.Context, q ListQuery) ([]RequestListItem, int64, error) {
	tr := otel.Tracer("services/RequestRegistry")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("status", string(q.Status)),
			attribute.Int("page", q.Page),
			attribute.Int("page_size", q.PageSize),
		),
	)
	defer span.End()

	if q.Status != "" && !q.Status.Valid() {
		return nil, 0, invalid("status", "unknown status")
	}
	win := utils.NewWindow(q.Page, q.PageSize)
	terms := search.Terms(q.Text)
	f := repo.RequestFilter{Status: q.Status, Terms: terms}
	now := s.now()

	if len(terms) > 0 {
		all, err := repo.ListRequests(ctx, s.DB, f)
		if err != nil {
			return nil, 0, err
		}
		search.Rank(all, terms, func(r domain.Request) string { return r.SearchText })
		start, end := win.Bounds(len(all))
		return s.items(all[start:end], now), int64(len(all)), nil
	}

	total, err := repo.CountRequests(ctx, s.DB, f)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []RequestListItem{}, 0, nil
	}
	page, err := repo.ListRequestsPage(ctx, s.DB, f, win.Offset(), win.Size)
	if err != nil {
		return nil, 0, err
	}
	return s.items(page, now), total, nil
}

// List returns every request matching the filter, ranked like ListPage.
func (s *RequestRegistry) List(ctx context.Context, status domain.Status, text string) ([]RequestListItem, error) {
	if status != "" && !status.Valid() {
		return nil, invalid("status", "unknown status")
	}
	terms := search.Terms(text)
	all, err := repo.ListRequests(ctx, s.DB, repo.RequestFilter{Status: status, Terms: terms})
	if err != nil {
		return nil, err
	}
	if len(terms) > 0 {
		search.Rank(all, terms, func(r domain.Request) string { return r.SearchText })
	}
	return s.items(all, s.now()), nil
}

// Version returns the number of requests and the latest update instant,
// used by the HTTP layer to build a weak ETag for listings.
func (s *RequestRegistry) Version(ctx context.Context) (int64, *time.Time, error) {
	return repo.RequestsStats(ctx, s.DB)
}

// MarkInProgress moves a Pending request to InProgress.
func (s *RequestRegistry) MarkInProgress(ctx context.Context, id, actorID string) (*domain.Request, error) {
	tr := otel.Tracer("services/RequestRegistry")
	ctx, span := tr.Start(ctx, "MarkInProgress", trace.WithAttributes(attribute.String("request.id", id)))
	defer span.End()

	return s.applySimple(ctx, id, actorID, domain.EventStartProcessing, s.now(), nil)
}

// Archive closes a Responded request. Archived is terminal.
func (s *RequestRegistry) Archive(ctx context.Context, id, actorID string) (*domain.Request, error) {
	tr := otel.Tracer("services/RequestRegistry")
	ctx, span := tr.Start(ctx, "Archive", trace.WithAttributes(attribute.String("request.id", id)))
	defer span.End()

	now := s.now()
	return s.applySimple(ctx, id, actorID, domain.EventArchive, now, map[string]any{"archived_at": now})
}

// History returns the audit trail of a request.
func (s *RequestRegistry) History(ctx context.Context, id string) ([]domain.RequestEvent, error) {
	if _, err := s.load(ctx, s.DB, id); err != nil {
		return nil, err
	}
	return repo.ListEvents(ctx, s.DB, id)
}

func (s *RequestRegistry) applySimple(ctx context.Context, id, actorID string, ev domain.Event, at time.Time, set map[string]any) (*domain.Request, error) {
	var (
		out *domain.Request
		rec *domain.RequestEvent
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		out, rec, err = s.transition(ctx, tx, change{
			requestID: id,
			event:     ev,
			actorID:   actorID,
			at:        at,
			set:       set,
		})
		return err
	})
	if err != nil {
		return nil, rejected(err)
	}
	s.notify(ctx, eventFor(out, rec, nil))
	return out, nil
}

// change describes one guarded status transition.
type change struct {
	requestID string
	event     domain.Event
	actorID   string
	at        time.Time
	note      string

	// set holds extra columns written with the status.
	set map[string]any
	// requireNoExtension adds the extended_deadline IS NULL guard.
	requireNoExtension bool
	// precheck runs against the current row before the transition table is
	// consulted; its error wins over ErrInvalidTransition.
	precheck func(tx *gorm.DB, cur *domain.Request) error
}

// transition applies c inside tx and appends the audit entry. It returns the
// updated request. Callers own the transaction so that dependent inserts
// (responses, appeals) commit or roll back together with the status.
func (s *RequestRegistry) transition(ctx context.Context, tx *gorm.DB, c change) (*domain.Request, *domain.RequestEvent, error) {
	cur, err := s.load(ctx, tx, c.requestID)
	if err != nil {
		return nil, nil, err
	}
	to, err := s.check(tx, cur, c)
	if err != nil {
		return nil, nil, err
	}

	ok, err := repo.ChangeStatus(ctx, tx, repo.StatusChange{
		ID:                 c.requestID,
		From:               domain.SourcesOf(c.event),
		To:                 to,
		At:                 c.at,
		Set:                c.set,
		RequireNoExtension: c.requireNoExtension,
	})
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		// Lost a race: report against the row as it is now.
		fresh, err := s.load(ctx, tx, c.requestID)
		if err != nil {
			return nil, nil, err
		}
		if _, err := s.check(tx, fresh, c); err != nil {
			return nil, nil, err
		}
		if c.requireNoExtension && fresh.ExtendedDeadline != nil {
			return nil, nil, ErrExtensionAlreadyUsed
		}
		return nil, nil, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, c.event, fresh.Status)
	}

	ev := &domain.RequestEvent{
		RequestID:  c.requestID,
		Event:      c.event,
		FromStatus: cur.Status,
		ToStatus:   to,
		ActorID:    c.actorID,
		Note:       c.note,
		At:         c.at,
	}
	if err := repo.AppendEvent(ctx, tx, ev); err != nil {
		return nil, nil, err
	}

	updated, err := s.load(ctx, tx, c.requestID)
	if err != nil {
		return nil, nil, err
	}
	return updated, ev, nil
}

func (s *RequestRegistry) check(tx *gorm.DB, cur *domain.Request, c change) (domain.Status, error) {
	if c.precheck != nil {
		if err := c.precheck(tx, cur); err != nil {
			return cur.Status, err
		}
	}
	return domain.Next(cur.Status, c.event)
}

func (s *RequestRegistry) load(ctx context.Context, db *gorm.DB, id string) (*domain.Request, error) {
	r, err := repo.GetRequest(ctx, db, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrRequestNotFound
	}
	return r, err
}

func (s *RequestRegistry) validateSubmission(in Submission) error {
	switch {
	case in.Requester.Name == "":
		return invalid("requester.name", "name is required")
	case utf8.RuneCountInString(in.Requester.Name) > maxNameRunes:
		return invalid("requester.name", "name is too long")
	case validate.Var(in.Requester.Email, "required,email") != nil:
		return invalid("requester.email", "a valid e-mail address is required")
	case utf8.RuneCountInString(in.Requester.Phone) > maxContactRunes:
		return invalid("requester.phone", "phone is too long")
	case utf8.RuneCountInString(in.Requester.Document) > maxContactRunes:
		return invalid("requester.document", "document is too long")
	case in.Subject == "":
		return invalid("subject", "subject is required")
	case utf8.RuneCountInString(in.Subject) > maxSubjectRunes:
		return invalid("subject", "subject is too long")
	case in.Description == "":
		return invalid("description", "description is required")
	case utf8.RuneCountInString(in.Description) < s.MinDescriptionLen:
		return invalid("description", fmt.Sprintf("description must have at least %d characters", s.MinDescriptionLen))
	case !in.ReceiptChannel.Valid():
		return invalid("receipt_channel", "receipt channel must be email, in_person or mail")
	}
	return nil
}

func (s *RequestRegistry) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *RequestRegistry) item(r domain.Request, now time.Time) RequestListItem {
	return RequestListItem{Request: r, Deadline: s.Deadlines.Evaluate(r, now)}
}

func (s *RequestRegistry) items(rs []domain.Request, now time.Time) []RequestListItem {
	out := make([]RequestListItem, 0, len(rs))
	for _, r := range rs {
		out = append(out, s.item(r, now))
	}
	return out
}

// notify delivers a committed event. Failures are logged and swallowed.
func (s *RequestRegistry) notify(ctx context.Context, ev notify.Event) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.Notify(ctx, ev); err != nil {
		zerolog.Ctx(ctx).Warn().
			Err(err).
			Str("event", string(ev.Event)).
			Str("protocol", ev.Protocol).
			Msg("notification not delivered")
	}
}

func eventFor(r *domain.Request, rec *domain.RequestEvent, detail map[string]string) notify.Event {
	return notify.Event{
		Event:     rec.Event,
		RequestID: r.ID,
		Protocol:  r.Protocol,
		Status:    r.Status,
		ActorID:   rec.ActorID,
		At:        rec.At,
		Detail:    detail,
	}
}

// normalizeSubmission trims free text and collapses runs of whitespace in
// single-line fields. An empty channel defaults to e-mail.
func normalizeSubmission(in Submission) Submission {
	in.Requester.Name = normalizeLine(in.Requester.Name)
	in.Requester.Email = strings.TrimSpace(in.Requester.Email)
	in.Requester.Phone = strings.TrimSpace(in.Requester.Phone)
	in.Requester.Document = strings.TrimSpace(in.Requester.Document)
	in.Subject = normalizeLine(in.Subject)
	in.Description = strings.TrimSpace(in.Description)
	if in.ReceiptChannel == "" {
		in.ReceiptChannel = domain.ChannelEmail
	}
	return in
}

func normalizeLine(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)

// rejected counts business-rule rejections by their stable reason and
// returns err unchanged.
func rejected(err error) error {
	if reason := Reason(err); reason != "" {
		observability.RejectedOperations.WithLabelValues(reason).Inc()
	}
	return err
}

// Reason maps a service error to its stable snake_case code, or "" for
// errors that are not business-rule rejections.
func Reason(err error) string {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return "validation_failed"
	case errors.Is(err, ErrRequestNotFound), errors.Is(err, ErrAppealNotFound):
		return "not_found"
	case errors.Is(err, ErrExtensionAlreadyUsed):
		return "extension_already_used"
	case errors.Is(err, ErrInvalidAppealSequence):
		return "invalid_appeal_sequence"
	case errors.Is(err, ErrAppealExhausted):
		return "appeal_exhausted"
	case errors.Is(err, ErrAlreadyDecided):
		return "already_decided"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	}
	return ""
}
