package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_DisabledReturnsNoopShutdown(t *testing.T) {
	shutdown, err := Init(context.Background(), DefaultConfig("arrow3"))
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("arrow3")
	assert.Equal(t, "arrow3", cfg.ServiceName)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "localhost:4318", cfg.OTLPEndpoint)
}

func TestTracer_ReturnsUsableTracer(t *testing.T) {
	tracer := Tracer("test")
	_, span := tracer.Start(context.Background(), "op")
	span.End()
}
