package log_test

import (
	"log/slog"
	"testing"

	"github.com/dukex/funnels/pkg/log"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.LevelDebug, log.ParseLevel("debug"))
	assert.Equal(t, slog.LevelDebug, log.ParseLevel(" DEBUG "))
	assert.Equal(t, slog.LevelWarn, log.ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, log.ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, log.ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, log.ParseLevel("verbose"))
}
