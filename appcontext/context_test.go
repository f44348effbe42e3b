package appcontext_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"grants/dataloader/appcontext"
)

func TestLoggerFromContext_Default(t *testing.T) {
	assert.Same(t, slog.Default(), appcontext.LoggerFromContext(context.Background()))
}

func TestLoggerFromContext_RoundTrip(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	ctx := appcontext.WithLogger(context.Background(), logger)

	assert.Same(t, logger, appcontext.LoggerFromContext(ctx))
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, appcontext.ParseLevel(in), "level %q", in)
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := appcontext.NewLogger(&buf, "info", "json")
	logger.Info("hello", "file", "GrantsDBExtract20240101v2.zip")

	assert.Contains(t, buf.String(), `"msg":"hello"`)
	assert.Contains(t, buf.String(), `"file":"GrantsDBExtract20240101v2.zip"`)
}

func TestNewLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := appcontext.NewLogger(&buf, "warn", "text")
	logger.Info("dropped")
	logger.Warn("kept")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
}
