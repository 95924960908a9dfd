// Package feed publishes device status changes to NATS for remote dashboards.
package feed

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"shreddy/internal/device"
	"shreddy/internal/logging"
)

// DefaultSubject is used when no subject is configured.
const DefaultSubject = "shreddy.status"

// StatusEvent is the JSON payload published for each status change.
type StatusEvent struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Path      string    `json:"path"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher implements device.StatusNotifier over a NATS connection.
type Publisher struct {
	nc      *nats.Conn
	subject string
	source  string
	logger  *logging.Logger
}

// Connect подключается к NATS. Переподключение выполняется клиентом в фоне.
func Connect(url, subject string, logger *logging.Logger) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("shreddy"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Log("WARN", "NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Log("INFO", "NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}

	return NewPublisher(nc, subject, logger), nil
}

// NewPublisher wraps an existing connection.
func NewPublisher(nc *nats.Conn, subject string, logger *logging.Logger) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	source, err := os.Hostname()
	if err != nil {
		source = "shreddy"
	}
	return &Publisher{nc: nc, subject: subject, source: source, logger: logger}
}

// SetStatus publishes one event. Errors are logged and never returned.
func (p *Publisher) SetStatus(path string, status device.Severity) {
	if err := p.Publish(path, status); err != nil {
		p.logger.Log("WARN", "Failed to publish status event", "path", path, "status", status.String(), "error", err)
	}
}

// Publish sends a status event for path.
func (p *Publisher) Publish(path string, status device.Severity) error {
	event := StatusEvent{
		ID:        uuid.New().String(),
		Source:    p.source,
		Path:      path,
		Status:    status.String(),
		Timestamp: time.Now().UTC(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal status event: %w", err)
	}
	if err := p.nc.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish status event: %w", err)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (p *Publisher) Close() error {
	if p == nil || p.nc == nil {
		return nil
	}
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
		return fmt.Errorf("failed to drain NATS connection: %w", err)
	}
	return nil
}
