// Package events publishes session activity to NATS JetStream so other
// processes can follow what the wallet session does.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Publisher publishes session activity events.
type Publisher interface {
	// Publish sends one event to the subject "walletlink.activity.{address}".
	Publish(ctx context.Context, event *ActivityEvent) error

	// Close closes the connection to NATS.
	Close() error
}

// JetStreamPublisher publishes activity events to NATS JetStream.
type JetStreamPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	logger *slog.Logger
}

const (
	// StreamName is the name of the JetStream stream for session activity.
	StreamName = "WALLETLINK_ACTIVITY"

	// StreamSubjects is the subject pattern for the stream.
	StreamSubjects = "walletlink.activity.*"

	// StreamRetention is how long events are retained.
	StreamRetention = 7 * 24 * time.Hour
)

// Subject returns the subject events for address are published to.
func Subject(address string) string {
	return fmt.Sprintf("walletlink.activity.%s", address)
}

// NewPublisher connects to NATS and ensures the activity stream exists.
func NewPublisher(natsURL string, logger *slog.Logger) (*JetStreamPublisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("walletlink-events"),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(1*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	publisher := &JetStreamPublisher{
		nc:     nc,
		js:     js,
		logger: logger,
	}

	if err := publisher.ensureStream(); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream exists: %w", err)
	}

	logger.Info("activity publisher initialized",
		"url", natsURL,
		"stream", StreamName,
	)

	return publisher, nil
}

func (p *JetStreamPublisher) ensureStream() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stream, err := p.js.Stream(ctx, StreamName)
	if err == nil {
		info, err := stream.Info(ctx)
		if err == nil {
			p.logger.Debug("activity stream already exists",
				"stream", StreamName,
				"messages", info.State.Msgs,
			)
		}
		return nil
	}

	p.logger.Info("creating activity stream", "stream", StreamName)

	_, err = p.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Wallet session activity",
		Subjects:    []string{StreamSubjects},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      StreamRetention,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// Publish publishes a single activity event.
func (p *JetStreamPublisher) Publish(ctx context.Context, event *ActivityEvent) error {
	event.PublishedAt = time.Now().UTC()
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal activity event: %w", err)
	}

	subject := Subject(event.Address)
	if _, err := p.js.Publish(ctx, subject, data, jetstream.WithMsgID(event.ID)); err != nil {
		return fmt.Errorf("failed to publish activity event: %w", err)
	}

	p.logger.Debug("published activity event",
		"subject", subject,
		"type", event.Type,
		"id", event.ID,
	)
	return nil
}

// Close closes the connection to NATS.
func (p *JetStreamPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
		p.logger.Info("activity publisher closed")
	}
	return nil
}
