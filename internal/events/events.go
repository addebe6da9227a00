package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"cardapi/internal/card"
	"cardapi/internal/config"
)

// CardGenerated is published after a card record is persisted.
type CardGenerated struct {
	CardNumber  string    `json:"cardNumber"`
	CardType    string    `json:"cardType"`
	HolderName  string    `json:"holderName"`
	Email       string    `json:"email"`
	ValidFrom   card.Date `json:"validFrom"`
	ValidThru   card.Date `json:"validThru"`
	PDFURL      *string   `json:"pdfUrl"`
	SourceKind  string    `json:"sourceKind"`
	SourceID    string    `json:"sourceId"`
	Regenerated bool      `json:"regenerated"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// Publisher emits domain events.
type Publisher interface {
	PublishCardGenerated(ctx context.Context, evt CardGenerated) error
	Close() error
}

// Noop discards every event. It is used when no broker is configured.
type Noop struct{}

func (Noop) PublishCardGenerated(context.Context, CardGenerated) error { return nil }
func (Noop) Close() error                                              { return nil }

// conn is the subset of *nats.Conn the publisher needs.
type conn interface {
	Publish(subj string, data []byte) error
	Drain() error
}

// NATS publishes events as JSON on a single subject.
type NATS struct {
	conn    conn
	subject string
	log     logrus.FieldLogger
}

// Connect dials the configured server. A missing URL yields a Noop publisher.
func Connect(cfg config.NATSConfig, log logrus.FieldLogger) (Publisher, error) {
	if cfg.URL == "" {
		log.WithField("component", "events").Info("NATS_URL not set, card events disabled")
		return Noop{}, nil
	}

	opts := []nats.Option{
		nats.Name("cardapi"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Warn("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.WithField("url", c.ConnectedUrl()).Info("nats reconnected")
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return NewNATS(nc, cfg.Subject, log), nil
}

// NewNATS wraps an established connection.
func NewNATS(c conn, subject string, log logrus.FieldLogger) *NATS {
	if subject == "" {
		subject = "card.generated"
	}
	return &NATS{conn: c, subject: subject, log: log}
}

func (n *NATS) PublishCardGenerated(ctx context.Context, evt CardGenerated) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal card event: %w", err)
	}
	if err := n.conn.Publish(n.subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", n.subject, err)
	}
	n.log.WithFields(logrus.Fields{"subject": n.subject, "card_number": evt.CardNumber}).Debug("card event published")
	return nil
}

// Close flushes pending messages and closes the connection.
func (n *NATS) Close() error {
	return n.conn.Drain()
}
