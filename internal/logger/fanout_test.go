package logger

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFanoutRespectsPerOutputLevel(t *testing.T) {
	t.Parallel()

	console := &bytes.Buffer{}
	file := &bytes.Buffer{}
	h := newFanoutHandler(
		newTextHandler(console, slog.LevelInfo, time.UTC),
		newJSONHandler(file, slog.LevelDebug, time.UTC),
	)
	log := slog.New(h).With("module", "catalog")

	log.Debug("debug only in file")
	log.Info("both")

	assert.NotContains(t, console.String(), "debug only in file")
	assert.Contains(t, console.String(), "both")
	assert.Contains(t, file.String(), "debug only in file")
	assert.Contains(t, file.String(), `"module":"catalog"`)
	assert.False(t, h.Enabled(t.Context(), traceLevelValue))
}
