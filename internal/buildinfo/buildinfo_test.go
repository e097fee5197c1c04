package buildinfo

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextDefaults(t *testing.T) {
	t.Parallel()

	var nilCtx *Context
	assert.Equal(t, "unknown", nilCtx.GetVersion())
	assert.Equal(t, "unknown", nilCtx.GetBuildDate())
	assert.Equal(t, "unknown", NewContext("", "").GetVersion())

	ctx := NewContext("v1.4.0", "2026-10-01T12:00:00Z")
	assert.Equal(t, "v1.4.0", ctx.GetVersion())
	assert.Equal(t, "2026-10-01T12:00:00Z", ctx.GetBuildDate())
}

func TestNewRunID(t *testing.T) {
	t.Parallel()

	a, b := NewRunID(), NewRunID()
	assert.NotEqual(t, a, b)
	_, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Len(t, a, 36)
}
