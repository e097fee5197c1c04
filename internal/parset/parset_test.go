package parset

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/runcat/internal/conf"
	"github.com/tphakala/runcat/internal/datastore/entities"
	"github.com/tphakala/runcat/internal/datastore/testutil"
	"github.com/tphakala/runcat/internal/errors"
)

func writeDescriptor(t *testing.T, dir string, imageID uint, body string) {
	t.Helper()
	p := NewFileProvider(dir, 0)
	require.NoError(t, os.WriteFile(p.Path(imageID), []byte(body), 0o600))
}

func TestFileProvider(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeDescriptor(t, dir, 7, "band: 3\nfrequency: 1.5e8\nbandwidth: 2e6\n")
	p := NewFileProvider(dir, time.Minute)

	d, err := p.Descriptor(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, uint(7), d.ImageID)
	assert.Equal(t, uint(3), d.BandID)
	assert.InDelta(t, 1.5e8, d.Frequency, 0)
	assert.InDelta(t, 2e6, d.Bandwidth, 0)

	// Served from cache once read.
	require.NoError(t, os.Remove(p.Path(7)))
	d, err = p.Descriptor(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, uint(3), d.BandID)

	// Another image has no file and no cache entry.
	_, err = p.Descriptor(context.Background(), 8)
	require.Error(t, err)
	assert.True(t, errors.IsConfig(err))
}

func TestFileProviderRejectsIncompleteDescriptor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"missing band", "frequency: 1.5e8\n"},
		{"missing frequency", "band: 2\n"},
		{"negative frequency", "band: 2\nfrequency: -1\n"},
		{"non-numeric frequency", "band: 2\nfrequency: high\n"},
		{"negative bandwidth", "band: 2\nfrequency: 1.5e8\nbandwidth: -3\n"},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			id := uint(i + 1)
			writeDescriptor(t, dir, id, tt.body)

			_, err := NewFileProvider(dir, time.Minute).Descriptor(context.Background(), id)
			require.Error(t, err)
			assert.True(t, errors.IsConfig(err), "got %v", err)
		})
	}
}

func TestStoreProvider(t *testing.T) {
	t.Parallel()

	tc := testutil.NewTestStore(t)
	ctx := context.Background()

	_, err := tc.Store.Images.EnsureBand(ctx, &entities.Band{ID: 4, CenterFrequency: 1.4e8, Bandwidth: 1e6})
	require.NoError(t, err)
	image := &entities.Image{BandID: 4, Frequency: 1.41e8}
	require.NoError(t, tc.Store.Images.Create(ctx, image))

	p := NewProvider(&conf.ParsetSettings{}, tc.Store.Images)
	require.IsType(t, &StoreProvider{}, p)

	d, err := p.Descriptor(ctx, image.ID)
	require.NoError(t, err)
	assert.Equal(t, uint(4), d.BandID)
	assert.InDelta(t, 1.41e8, d.Frequency, 0)
	assert.InDelta(t, 1e6, d.Bandwidth, 0)

	_, err = p.Descriptor(ctx, image.ID+100)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	noFreq := &entities.Image{BandID: 4}
	require.NoError(t, tc.Store.Images.Create(ctx, noFreq))
	_, err = p.Descriptor(ctx, noFreq.ID)
	assert.True(t, errors.IsConfig(err))
}

func TestNewProviderSelectsFiles(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "parsets")
	p := NewProvider(&conf.ParsetSettings{Dir: dir, CacheTTL: time.Minute}, nil)
	assert.IsType(t, &FileProvider{}, p)
}
