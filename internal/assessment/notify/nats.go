package notify

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/nats-io/nats.go"

	"shipboard-health/internal/assessment/application"
	"shipboard-health/internal/observability/metrics"
)

const (
	channelNATS        = "nats"
	DefaultNATSSubject = "assessment.events"
)

// NATSPublisher publishes every assessment event as JSON on a subject.
// Events go to "<subject>.<event type>".
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	logger  Logger
}

// NewNATSPublisher connects to the NATS server at url.
func NewNATSPublisher(url, subject string, logger Logger) (*NATSPublisher, error) {
	if url == "" {
		return nil, errors.New("nats publisher: empty url")
	}
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	if subject == "" {
		subject = DefaultNATSSubject
	}
	return &NATSPublisher{conn: conn, subject: subject, logger: logger}, nil
}

// Notify implements application.ResultNotifier.
func (p *NATSPublisher) Notify(_ context.Context, event application.AssessmentEvent) {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.Publish(event); err != nil {
		metrics.IncNotify(channelNATS, metrics.ResultError)
		if p.logger != nil {
			p.logger.Printf("assessment nats publish failed: equipment=%s type=%s err=%v", event.EquipmentID, event.Type, err)
		}
		return
	}
	metrics.IncNotify(channelNATS, metrics.ResultSuccess)
}

// Publish marshals the event and publishes it.
func (p *NATSPublisher) Publish(event application.AssessmentEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.conn.Publish(Subject(p.subject, event.Type), data)
}

// Subject returns the subject an event type is published on.
func Subject(base, eventType string) string {
	if eventType == "" {
		return base
	}
	return base + "." + eventType
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	_ = p.conn.Drain()
	p.conn.Close()
}
