package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/dukerupert/burgerbuilder/internal/domain"
)

// msgPublisher is the subset of *nats.Conn the publisher uses.
type msgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

// NATSPublisher publishes order placed events to NATS.
type NATSPublisher struct {
	conn    *nats.Conn
	pub     msgPublisher
	subject string
	logger  *slog.Logger
}

// Connect dials the NATS server at url. The connection reconnects forever;
// publishes made while disconnected are buffered by the client.
func Connect(url, subject string, logger *slog.Logger) (*NATSPublisher, error) {
	if subject == "" {
		subject = DefaultSubject
	}

	conn, err := nats.Connect(url,
		nats.Name("burgerbuilder"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	logger.Info("connected to nats", "url", conn.ConnectedUrl(), "subject", subject)

	return &NATSPublisher{
		conn:    conn,
		pub:     conn,
		subject: subject,
		logger:  logger,
	}, nil
}

// PublishOrderPlaced publishes the order as JSON. The order ID is set as the
// Nats-Msg-Id header so JetStream consumers can drop duplicates.
func (p *NATSPublisher) PublishOrderPlaced(ctx context.Context, order domain.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(NewOrderPlaced(order))
	if err != nil {
		return fmt.Errorf("failed to encode order placed event: %w", err)
	}

	msg := nats.NewMsg(p.subject)
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, order.ID.String())
	msg.Header.Set("Content-Type", "application/json")

	if err := p.pub.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish order placed event: %w", err)
	}

	p.logger.Debug("published order placed event", "order_id", order.ID, "subject", p.subject)
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() {
	if p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.logger.Warn("failed to drain nats connection", "error", err)
	}
}
