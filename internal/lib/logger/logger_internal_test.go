package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetup_Levels(t *testing.T) {
	var buf bytes.Buffer

	prod := setup(EnvProd, &buf)
	assert.False(t, prod.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, prod.Enabled(context.Background(), slog.LevelInfo))

	dev := setup(EnvDevelopment, &buf)
	assert.True(t, dev.Enabled(context.Background(), slog.LevelDebug))

	local := setup(EnvLocal, &buf)
	assert.True(t, local.Enabled(context.Background(), slog.LevelDebug))
}

func TestSetup_TestEnvDiscards(t *testing.T) {
	var buf bytes.Buffer
	log := setup(EnvTest, &buf)
	log.Info("hidden")
	assert.Zero(t, buf.Len())
}

func TestSetup_ProdWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := setup(EnvProd, &buf)
	log.Info("starting app", slog.String("env", EnvProd))
	assert.Contains(t, buf.String(), `"msg":"starting app"`)
	assert.Contains(t, buf.String(), `"env":"prod"`)
}
