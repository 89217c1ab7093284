package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DisabledProviderIsSafeNoOp(t *testing.T) {
	p, err := New(context.Background(), DefaultConfig())
	require.NoError(t, err)

	ctx, done := p.TrackOperation(context.Background(), "test-op")
	done(nil)
	_ = ctx

	p.RecordRequest(context.Background())
	p.RecordError(context.Background(), errors.New("boom"))
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestDefaultConfig_DisabledByDefault(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "veraseal", cfg.ServiceName)
}
