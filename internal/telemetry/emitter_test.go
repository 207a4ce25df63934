package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ConnectionMaster/flutter/internal/config"
)

func TestNoopEmitterDiscards(t *testing.T) {
	var e Emitter = NoopEmitter{}
	e.Emit(Event{Kind: EventBuildSuccess, RunID: "r1"})
}

func TestSlogEmitterDoesNotPanic(t *testing.T) {
	SlogEmitter{}.Emit(Event{Kind: EventTiming, Artifact: "apk", Elapsed: time.Second})
}

func TestNilNATSEmitterIsSafe(t *testing.T) {
	var e *NATSEmitter
	e.Emit(Event{Kind: EventBuildFailure})
	e.Close()
}

func TestNewNATSEmitterRequiresURL(t *testing.T) {
	_, err := NewNATSEmitter(config.TelemetryConfig{})
	require.Error(t, err)
}
