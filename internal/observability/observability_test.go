package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicaid/regsearch/internal/log"
)

func TestSetupDefaultEndpoint(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Endpoint:    "", // empty should use default
		Environment: "test",
		ServiceName: "test-service",
	}

	shutdown, err := Setup(context.Background(), cfg, log.NewNop())
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	// Shutdown may report export failures when no collector is
	// listening; it must not panic.
	_ = shutdown(context.Background())
}

func TestSetupCustomEndpoint(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Endpoint:    "collector.internal:4318",
		Environment: "staging",
		ServiceName: "regsearch",
	}

	shutdown, err := Setup(context.Background(), cfg, log.NewNop())
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	_ = shutdown(context.Background())
}

func TestDefaultEndpointValue(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "localhost:4318", DefaultEndpoint)
}
