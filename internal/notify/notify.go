// Package notify delivers lifecycle events of records requests to external
// consumers (e-mail dispatchers, ombudsman dashboards). Delivery happens after
// the mutation is committed and is best-effort: a failed publish is reported
// to the caller for logging and never undoes the mutation.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/tbourn/esic-backend/internal/config"
	"github.com/tbourn/esic-backend/internal/domain"
)

// Event is the payload published for one accepted lifecycle transition.
type Event struct {
	Event     domain.Event  `json:"event"`
	RequestID string        `json:"request_id"`
	Protocol  string        `json:"protocol"`
	Status    domain.Status `json:"status"`
	ActorID   string        `json:"actor_id,omitempty"`
	At        time.Time     `json:"at"`
	// Detail carries event-specific fields such as the response kind or
	// the appeal instance.
	Detail map[string]string `json:"detail,omitempty"`
}

// Notifier receives committed lifecycle events.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Nop discards every event.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, Event) error { return nil }

// publisher is the subset of *nats.Conn used here.
type publisher interface {
	Publish(subject string, data []byte) error
}

// NATS publishes events as JSON on "<prefix>.<event>".
type NATS struct {
	pub    publisher
	prefix string
	close  func()
}

// NewNATS connects to url and returns a publisher rooted at prefix.
func NewNATS(url, prefix string, opts ...nats.Option) (*NATS, error) {
	opts = append([]nats.Option{
		nats.Name("esic-backend"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	}, opts...)
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATS{pub: nc, prefix: prefix, close: nc.Close}, nil
}

// Subject returns the subject an event is published on.
func (n *NATS) Subject(ev domain.Event) string {
	return strings.TrimSuffix(n.prefix, ".") + "." + string(ev)
}

// Notify implements Notifier.
func (n *NATS) Notify(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before publish: %w", err)
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return n.pub.Publish(n.Subject(ev.Event), data)
}

// Close closes the underlying connection.
func (n *NATS) Close() {
	if n.close != nil {
		n.close()
	}
}

// New returns the notifier selected by cfg: a NATS publisher when a URL is
// configured, Nop otherwise. The returned func releases the connection.
func New(cfg config.NATSConfig) (Notifier, func(), error) {
	if cfg.URL == "" {
		return Nop{}, func() {}, nil
	}
	n, err := NewNATS(cfg.URL, cfg.SubjectPrefix)
	if err != nil {
		return nil, nil, err
	}
	return n, n.Close, nil
}
