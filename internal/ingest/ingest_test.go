package ingest_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/runcat/internal/datastore/entities"
	"github.com/tphakala/runcat/internal/datastore/testutil"
	"github.com/tphakala/runcat/internal/errors"
	"github.com/tphakala/runcat/internal/geometry"
	"github.com/tphakala/runcat/internal/ingest"
)

const imageFile = `
image:
  band: 3
  frequency: 1.5e8
  bandwidth: 2e6
sources:
  - {ra: 10.5, decl: 20.1, ra_err: 1.2, decl_err: 1.1, flux: 0.8, flux_err: 0.05}
  - {ra: 359.99, decl: -0.4, ra_err: 2, decl_err: 2, flux: 3.1, flux_err: 0.2, kind: extended}
`

func newIngester(tc *testutil.TestContext) *ingest.Ingester {
	return ingest.NewIngester(tc.Store, tc.Settings.Association.ZoneWidth, tc.Settings.Association.BatchSize, tc.Logger)
}

func TestIngestStoresImageBandAndSources(t *testing.T) {
	t.Parallel()

	tc := testutil.NewTestStore(t)
	ctx := context.Background()

	res, err := newIngester(tc).Ingest(ctx, strings.NewReader(imageFile))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Sources)
	assert.Equal(t, uint(3), res.Image.BandID)
	assert.Equal(t, entities.ImageStatusUnprocessed, res.Image.Status)

	band, err := tc.Store.Images.GetBand(ctx, 3)
	require.NoError(t, err)
	assert.InDelta(t, 1.5e8, band.CenterFrequency, 0)
	assert.InDelta(t, 2e6, band.Bandwidth, 0)

	sources, err := tc.Store.Sources.ListByImage(ctx, res.Image.ID)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, entities.SourceKindPoint, sources[0].Kind)
	assert.Equal(t, entities.SourceKindExtended, sources[1].Kind)

	v := geometry.UnitVector(359.99, -0.4)
	assert.InDelta(t, v.X, sources[1].X, 1e-12)
	assert.InDelta(t, v.Y, sources[1].Y, 1e-12)
	assert.InDelta(t, v.Z, sources[1].Z, 1e-12)
	assert.Equal(t, geometry.Zone(-0.4, tc.Settings.Association.ZoneWidth), sources[1].Zone)
}

func TestIngestFile(t *testing.T) {
	t.Parallel()

	tc := testutil.NewTestStore(t)
	path := filepath.Join(t.TempDir(), "image.yaml")
	require.NoError(t, os.WriteFile(path, []byte(imageFile), 0o600))

	res, err := newIngester(tc).IngestFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Sources)

	_, err = newIngester(tc).IngestFile(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))
}

func TestIngestRejectsBandAtAnotherFrequency(t *testing.T) {
	t.Parallel()

	tc := testutil.NewTestStore(t)
	ctx := context.Background()
	ing := newIngester(tc)

	_, err := ing.Ingest(ctx, strings.NewReader(imageFile))
	require.NoError(t, err)

	moved := strings.Replace(imageFile, "frequency: 1.5e8", "frequency: 1.2e8", 1)
	_, err = ing.Ingest(ctx, strings.NewReader(moved))
	require.Error(t, err)
	assert.True(t, errors.IsConfig(err), "got %v", err)

	pending, err := tc.Store.Images.ListUnprocessed(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 1, "rejected image is not registered")
}

func TestIngestRejectsMalformedInput(t *testing.T) {
	t.Parallel()

	header := "image:\n  band: 1\n  frequency: 1.2e8\nsources:\n"
	tests := []struct {
		name    string
		body    string
		isError func(error) bool
	}{
		{"non-numeric flux", header + "  - {ra: 1, decl: 2, ra_err: 1, decl_err: 1, flux: bright, flux_err: 0.1}\n", errors.IsSourceData},
		{"missing decl", header + "  - {ra: 1, ra_err: 1, decl_err: 1, flux: 1, flux_err: 0.1}\n", errors.IsSourceData},
		{"nan flux error", header + "  - {ra: 1, decl: 2, ra_err: 1, decl_err: 1, flux: 1, flux_err: .nan}\n", errors.IsSourceData},
		{"declination out of range", header + "  - {ra: 1, decl: 91, ra_err: 1, decl_err: 1, flux: 1, flux_err: 0.1}\n", errors.IsSourceData},
		{"zero position error", header + "  - {ra: 1, decl: 2, ra_err: 0, decl_err: 1, flux: 1, flux_err: 0.1}\n", errors.IsSourceData},
		{"unknown kind", header + "  - {ra: 1, decl: 2, ra_err: 1, decl_err: 1, flux: 1, flux_err: 0.1, kind: blob}\n", errors.IsSourceData},
		{"missing band", "image:\n  frequency: 1.2e8\nsources: []\n", errors.IsConfig},
		{"missing frequency", "image:\n  band: 1\nsources: []\n", errors.IsConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tc := testutil.NewTestStore(t)
			_, err := newIngester(tc).Ingest(context.Background(), strings.NewReader(tt.body))
			require.Error(t, err)
			assert.True(t, tt.isError(err), "unexpected error category: %v", err)

			pending, err := tc.Store.Images.ListUnprocessed(context.Background(), 0)
			require.NoError(t, err)
			assert.Empty(t, pending, "nothing is stored for a rejected file")
		})
	}
}

func TestValidateSource(t *testing.T) {
	t.Parallel()

	src := entities.ExtractedSource{ID: 12, RA: 10, Decl: 20, RAErr: 1, DeclErr: 1, Flux: -0.2, FluxErr: 0.1}
	require.NoError(t, ingest.ValidateSource(&src, src.ID), "negative flux is a valid measurement")

	src.RA = 360
	err := ingest.ValidateSource(&src, src.ID)
	require.Error(t, err)

	var enhanced *errors.EnhancedError
	require.ErrorAs(t, err, &enhanced)
	assert.Equal(t, "ra", enhanced.Context["field"])
	assert.Equal(t, uint(12), enhanced.Context["source_id"])
}
