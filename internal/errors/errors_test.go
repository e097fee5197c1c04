package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDefaults(t *testing.T) {
	t.Parallel()

	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, ComponentUnknown, ee.GetComponent())
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.Empty(t, ee.GetPriority())
	assert.Nil(t, ee.GetContext())
}

func TestBuildInheritsWrappedCategory(t *testing.T) {
	t.Parallel()

	inner := StoreError(fmt.Errorf("database is locked"), "insert_sources")
	outer := New(fmt.Errorf("process image 3: %w", inner)).Component("pipeline").Build()

	assert.Equal(t, CategoryDatabase, outer.Category)
	assert.True(t, IsStore(outer))
	assert.Equal(t, "pipeline", outer.GetComponent())
}

func TestTaxonomyHelpers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		err   error
		check func(error) bool
		cat   ErrorCategory
	}{
		{"source data", SourceDataError(NewStd("flux is NaN"), 12, "flux"), IsSourceData, CategorySourceData},
		{"config", ConfigError(NewStd("band missing"), "band"), IsConfig, CategoryConfiguration},
		{"image state", ImageStateError(4, "processed"), IsImageState, CategoryImageState},
		{"store", StoreError(NewStd("timeout"), "commit"), IsStore, CategoryDatabase},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.True(t, tt.check(wrapped))
			assert.Equal(t, tt.cat, CategoryOf(wrapped))
		})
	}

	assert.Equal(t, CategoryGeneric, CategoryOf(NewStd("plain")))
	assert.False(t, IsStore(ConfigError(NewStd("x"), "y")))
}

func TestImageStateErrorContext(t *testing.T) {
	t.Parallel()

	ee := ImageStateError(9, "processed")
	require.NotNil(t, ee)

	ctx := ee.GetContext()
	assert.Equal(t, uint(9), ctx["image_id"])
	assert.Equal(t, "processed", ctx["state"])
	assert.Equal(t, PriorityLow, ee.GetPriority())
	assert.Contains(t, ee.Error(), "image 9")
}

func TestContextIsCopied(t *testing.T) {
	t.Parallel()

	ee := New(NewStd("boom")).Context("k", 1).Build()
	ctx := ee.GetContext()
	ctx["k"] = 2

	assert.Equal(t, 1, ee.GetContext()["k"])
}

func TestPriorityFallback(t *testing.T) {
	t.Parallel()

	assert.Equal(t, PriorityMedium, New(NewStd("x")).Priority("urgent").Build().GetPriority())
	assert.Equal(t, PriorityCritical, New(NewStd("x")).Priority(PriorityCritical).Build().GetPriority())
}

func TestIsMatchesSentinel(t *testing.T) {
	t.Parallel()

	sentinel := NewStd("image not found")
	ee := New(sentinel).Category(CategoryNotFound).Build()

	assert.True(t, Is(ee, sentinel))
	assert.True(t, IsNotFound(ee))
	assert.True(t, Is(ee, &EnhancedError{Category: CategoryNotFound}))
}
