// Package telemetry emits fire-and-forget build events. Emission failures are
// logged and never surface to the caller; a lost event must not fail a build.
package telemetry

import (
	"log/slog"
	"time"
)

// EventKind enumerates the build events emitted per run.
type EventKind string

const (
	EventBuildSuccess EventKind = "build-success"
	EventBuildFailure EventKind = "build-failure"
	EventRecovered    EventKind = "build-recovered" // success after signature-triggered retries
	EventTiming       EventKind = "build-timing"
)

// Event is one telemetry record for a build run.
type Event struct {
	Kind      EventKind     `json:"kind"`
	RunID     string        `json:"run_id"`
	Artifact  string        `json:"artifact"`
	Mode      string        `json:"mode,omitempty"`
	Signature string        `json:"signature,omitempty"` // matched failure signature label, if any
	Attempts  int           `json:"attempts,omitempty"`
	Elapsed   time.Duration `json:"elapsed,omitempty"`
	Commit    string        `json:"commit,omitempty"` // project HEAD fingerprint
	Timestamp time.Time     `json:"timestamp"`
}

// Emitter publishes build events. Implementations swallow their own errors.
type Emitter interface {
	Emit(event Event)
}

// NoopEmitter discards all events (default when telemetry is not configured).
type NoopEmitter struct{}

func (NoopEmitter) Emit(Event) {}

// SlogEmitter writes events to the structured log at debug level. Used when
// telemetry is enabled without a NATS endpoint.
type SlogEmitter struct{}

func (SlogEmitter) Emit(event Event) {
	slog.Debug("build event",
		"kind", string(event.Kind),
		"run_id", event.RunID,
		"artifact", event.Artifact,
		"signature", event.Signature,
		"attempts", event.Attempts,
		"elapsed", event.Elapsed)
}
