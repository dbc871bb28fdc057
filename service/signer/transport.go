package signer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Transport opens a fresh connection to the signer. Every gateway operation
// dials, performs exactly one exchange, and closes.
type Transport interface {
	Dial(ctx context.Context) (Conn, error)
}

// Conn is a single connection to the signer.
type Conn interface {
	// RoundTrip sends one encoded request and waits for the encoded reply.
	RoundTrip(ctx context.Context, req []byte) ([]byte, error)
	Close() error
}

// NATSTransport reaches the signer over NATS request/reply. The signer
// (a wallet bridge) subscribes to Subject and answers each request.
type NATSTransport struct {
	url         string
	subject     string
	dialTimeout time.Duration
	logger      *slog.Logger
}

// NewNATSTransport creates a transport for the signer listening on subject.
func NewNATSTransport(natsURL, subject string, logger *slog.Logger) *NATSTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSTransport{
		url:         natsURL,
		subject:     subject,
		dialTimeout: 10 * time.Second,
		logger:      logger,
	}
}

// Dial connects to NATS. Reconnects are disabled: a connection lives for
// one exchange only, and a dropped connection is reported as unavailable.
func (t *NATSTransport) Dial(ctx context.Context) (Conn, error) {
	timeout := t.dialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("dial signer: %w", context.DeadlineExceeded)
	}

	nc, err := nats.Connect(t.url,
		nats.Name("walletlink-signer-gateway"),
		nats.Timeout(timeout),
		nats.NoReconnect(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w: %w", ErrUnavailable, err)
	}

	t.logger.Debug("signer connection opened", "url", t.url, "subject", t.subject)
	return &natsConn{nc: nc, subject: t.subject}, nil
}

type natsConn struct {
	nc      *nats.Conn
	subject string
}

func (c *natsConn) RoundTrip(ctx context.Context, req []byte) ([]byte, error) {
	msg, err := c.nc.RequestWithContext(ctx, c.subject, req)
	if err != nil {
		if errors.Is(err, nats.ErrNoResponders) {
			return nil, fmt.Errorf("no signer listening on %s: %w", c.subject, ErrUnavailable)
		}
		return nil, fmt.Errorf("signer request: %w", err)
	}
	return msg.Data, nil
}

func (c *natsConn) Close() error {
	c.nc.Close()
	return nil
}
