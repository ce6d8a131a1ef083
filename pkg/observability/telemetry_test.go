package observability_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infracore/eventcore/pkg/observability"
)

func TestInitDegradesGracefullyWithoutExportersOrReaders(t *testing.T) {
	tel, err := observability.Init(context.Background(), observability.Config{ServiceName: "test"})
	require.NoError(t, err)
	require.NotNil(t, tel.TracerProvider)
	require.NotNil(t, tel.MeterProvider)

	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestInitRequiresNoLoggerToAvoidPanicking(t *testing.T) {
	tel, err := observability.Init(context.Background(), observability.Config{ServiceName: "test"})
	require.NoError(t, err)
	assert.NotNil(t, tel.Logger)
}
