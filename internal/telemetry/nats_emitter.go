package telemetry

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ConnectionMaster/flutter/internal/config"
)

// NATSEmitter publishes build events to a NATS subject.
type NATSEmitter struct {
	conn    *nats.Conn
	subject string
}

// NewNATSEmitter connects to the configured NATS server. Connection failure is
// an error here (the caller decides whether to fall back to a no-op emitter),
// but once constructed the emitter never propagates publish failures.
func NewNATSEmitter(cfg config.TelemetryConfig) (*NATSEmitter, error) {
	if cfg.NATSURL == "" {
		return nil, fmt.Errorf("telemetry NATS URL is required")
	}

	conn, err := nats.Connect(cfg.NATSURL,
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(2),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	subject := cfg.Subject
	if subject == "" {
		subject = "flutter.build.events"
	}

	slog.Info("Telemetry emitter connected", "url", cfg.NATSURL, "subject", subject)
	return &NATSEmitter{conn: conn, subject: subject}, nil
}

// Emit publishes one event. Failures are logged at debug level and dropped.
func (e *NATSEmitter) Emit(event Event) {
	if e == nil || e.conn == nil {
		return
	}
	event.Timestamp = time.Now()

	data, err := json.Marshal(event)
	if err != nil {
		slog.Debug("Dropping telemetry event: marshal failed", "error", err)
		return
	}
	if err := e.conn.Publish(e.subject, data); err != nil {
		slog.Debug("Dropping telemetry event: publish failed", "error", err)
	}
}

// Close flushes and closes the underlying connection.
func (e *NATSEmitter) Close() {
	if e == nil || e.conn == nil {
		return
	}
	_ = e.conn.Flush()
	e.conn.Close()
}
