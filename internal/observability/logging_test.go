package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogContextAccumulates(t *testing.T) {
	ctx := context.Background()
	ctx = WithRunID(ctx, "run-1")
	ctx = WithArtifact(ctx, "appbundle")
	ctx = WithMode(ctx, "release")

	lc := extractLogContext(ctx)
	require.Equal(t, "run-1", lc.RunID)
	require.Equal(t, "appbundle", lc.Artifact)
	require.Equal(t, "release", lc.Mode)
	require.Empty(t, lc.Variant)
}

func TestGetLogAttrsSkipsEmptyFields(t *testing.T) {
	ctx := WithVariant(context.Background(), "profile")
	attrs := getLogAttrs(ctx)
	require.Len(t, attrs, 1)
	require.Equal(t, "variant", attrs[0].Key)
}

func TestExtractLogContextEmpty(t *testing.T) {
	lc := extractLogContext(context.Background())
	require.Equal(t, LogContext{}, lc)
}
