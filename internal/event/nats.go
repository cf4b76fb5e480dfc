// internal/event/nats.go
// Package event provides the NATS JetStream implementation for publishing
// ingestion events. Publishing an event is what hands an uploaded object to
// the processing pipeline.
package event

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/oklog/ulid/v2"

	"github.com/nebula-foundry/media-gateway-go/internal/model"
)

// Publisher defines the event publishing operations required by the gateway.
type Publisher interface {
	// PublishIngestion publishes one ingestion message and returns the
	// message id acknowledged to the client.
	PublishIngestion(ctx context.Context, msg model.IngestionMessage) (string, error)

	// Close closes the publisher connection.
	Close() error
}

// noop is a no-op implementation of Publisher for when NATS is not
// configured. Upload publishing still succeeds so the rest of the flow can
// be exercised in development; the pipeline simply never runs.
type noop struct{}

// Close implements Publisher.
func (n *noop) Close() error { return nil }

// PublishIngestion implements Publisher. It fabricates a message id and
// drops the payload.
func (n *noop) PublishIngestion(ctx context.Context, msg model.IngestionMessage) (string, error) {
	return newMessageID(), nil
}

// natsPub is the NATS JetStream implementation of Publisher.
type natsPub struct {
	nc      *nats.Conn            // NATS connection
	js      nats.JetStreamContext // JetStream context for stream operations
	subject string                // Ingestion subject
}

// NewPublisher creates a publisher for the given NATS URL and subject. An
// empty URL, a failed connection, or a failed stream setup all degrade to a
// no-op publisher so the gateway can run without the queue.
func NewPublisher(url, subject string) Publisher {
	if url == "" {
		return &noop{}
	}

	nc, err := nats.Connect(url)
	if err != nil {
		slog.Warn("NATS connect failed, using noop publisher", "error", err)
		return &noop{}
	}

	js, err := nc.JetStream()
	if err != nil {
		slog.Warn("NATS JetStream context creation failed, using noop publisher", "error", err)
		nc.Close()
		return &noop{}
	}

	if err := initStream(js, subject); err != nil {
		slog.Warn("NATS stream initialization failed, using noop publisher", "error", err)
		nc.Close()
		return &noop{}
	}

	return &natsPub{nc: nc, js: js, subject: subject}
}

// initStream creates the ingestion stream if it does not exist.
func initStream(js nats.JetStreamContext, subject string) error {
	_, err := js.AddStream(&nats.StreamConfig{
		Name:      "MEDIA_INGESTION",
		Subjects:  []string{subject},
		Retention: nats.LimitsPolicy,
		MaxAge:    24 * time.Hour,
		Discard:   nats.DiscardOld,
		Storage:   nats.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("failed to create MEDIA_INGESTION stream: %w", err)
	}
	return nil
}

// Close closes the NATS connection.
func (p *natsPub) Close() error {
	if p.nc != nil {
		p.nc.Close()
	}
	return nil
}

// PublishIngestion publishes an ingestion message to the configured subject.
// The returned id is attached as a header so the pipeline can correlate the
// acknowledgment the client received with the message it consumes.
func (p *natsPub) PublishIngestion(ctx context.Context, msg model.IngestionMessage) (string, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}

	id := newMessageID()
	m := nats.NewMsg(p.subject)
	m.Header.Set("Media-Message-Id", id)
	m.Data = b

	if _, err := p.js.PublishMsg(m, nats.Context(ctx)); err != nil {
		return "", err
	}
	return id, nil
}

// newMessageID produces a lexicographically ordered, collision-resistant
// message id.
func newMessageID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
