package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := Init(context.Background(), Settings{ServiceName: "test"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	// No-op providers still hand out usable instruments.
	c, err := Meter("test").Int64Counter("x")
	require.NoError(t, err)
	c.Add(context.Background(), 1)

	_, span := Tracer("test").Start(context.Background(), "op")
	span.End()
}
