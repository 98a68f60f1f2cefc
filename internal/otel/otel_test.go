package otel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yourorg/tiered-staking/internal/config"
)

func TestInitTracer_DisabledWithoutEndpoint(t *testing.T) {
	shutdown := InitTracer(config.Config{})
	assert.NotNil(t, shutdown)
	shutdown()
}

func TestRecordError(t *testing.T) {
	ctx, span := Tracer().Start(context.Background(), "test")
	defer span.End()
	assert.NotPanics(t, func() { RecordError(ctx, errors.New("boom")) })
}
