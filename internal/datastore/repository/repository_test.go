package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/tphakala/runcat/internal/datastore/entities"
	"github.com/tphakala/runcat/internal/datastore/repository"
	"github.com/tphakala/runcat/internal/datastore/testutil"
	"github.com/tphakala/runcat/internal/errors"
	"github.com/tphakala/runcat/internal/geometry"
)

// createEntry stores entry through the batch get-or-create path.
func createEntry(t *testing.T, catalog repository.CatalogRepository, entry entities.RunningCatalog) *entities.RunningCatalog {
	t.Helper()
	bySeed, err := catalog.BatchGetOrCreate(context.Background(), []entities.RunningCatalog{entry}, 0)
	require.NoError(t, err)
	stored, ok := bySeed[entry.SeedSourceID]
	require.True(t, ok)
	return stored
}

func catalogEntry(seed uint, ra, decl float64) entities.RunningCatalog {
	v := geometry.UnitVector(ra, decl)
	return entities.RunningCatalog{
		SeedSourceID:  seed,
		WmRA:          ra,
		WmDecl:        decl,
		WmRAErr:       1,
		WmDeclErr:     1,
		X:             v.X,
		Y:             v.Y,
		Z:             v.Z,
		Zone:          geometry.Zone(decl, 1),
		RAWeightSum:   1,
		RAValueSum:    ra,
		DeclWeightSum: 1,
		DeclValueSum:  decl,
		Datapoints:    1,
		LastUpdate:    time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestImageLifecycle(t *testing.T) {
	t.Parallel()

	tc := testutil.NewTestStore(t)
	ctx := context.Background()

	image, sources := tc.SeedImage(1, 150e6, testutil.NewSource(10, 20), testutil.NewSource(11, 21))
	require.Len(t, sources, 2)
	assert.Equal(t, entities.ImageStatusUnprocessed, image.Status)

	pending, err := tc.Store.Images.ListUnprocessed(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	stamp := func(runID string) repository.ProcessedStamp {
		return repository.ProcessedStamp{BandID: 1, Frequency: 151e6, Version: "v1", RunID: runID, At: time.Now().UTC()}
	}
	require.NoError(t, tc.Store.Images.MarkProcessed(ctx, image.ID, stamp("run-1")))

	err = tc.Store.Images.MarkProcessed(ctx, image.ID, stamp("run-2"))
	require.ErrorIs(t, err, repository.ErrImageAlreadyProcessed)

	err = tc.Store.Images.MarkProcessed(ctx, 9999, stamp("run-3"))
	require.ErrorIs(t, err, repository.ErrImageNotFound)

	stored, err := tc.Store.Images.Get(ctx, image.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsProcessed())
	assert.Equal(t, "run-1", stored.RunID)
	assert.InDelta(t, 151e6, stored.Frequency, 0)
	require.NotNil(t, stored.ProcessedAt)

	pending, err = tc.Store.Images.ListUnprocessed(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestEnsureBandIsIdempotent(t *testing.T) {
	t.Parallel()

	tc := testutil.NewTestStore(t)
	ctx := context.Background()

	first, err := tc.Store.Images.EnsureBand(ctx, &entities.Band{ID: 3, CenterFrequency: 120e6, Bandwidth: 1e6})
	require.NoError(t, err)
	second, err := tc.Store.Images.EnsureBand(ctx, &entities.Band{ID: 3, CenterFrequency: 120e6})
	require.NoError(t, err)
	assert.InDelta(t, first.Bandwidth, second.Bandwidth, 0)

	stored, err := tc.Store.Images.EnsureBand(ctx, &entities.Band{ID: 3, CenterFrequency: 150e6})
	require.ErrorIs(t, err, repository.ErrBandConflict)
	assert.InDelta(t, 120e6, stored.CenterFrequency, 0, "stored band is left alone")

	_, err = tc.Store.Images.GetBand(ctx, 4)
	require.ErrorIs(t, err, repository.ErrBandNotFound)

	bands, err := tc.Store.Images.GetBands(ctx, []uint{3, 4})
	require.NoError(t, err)
	assert.Len(t, bands, 1)
}

func TestCatalogBatchGetOrCreate(t *testing.T) {
	t.Parallel()

	tc := testutil.NewTestStore(t)
	ctx := context.Background()

	stored := createEntry(t, tc.Store.Catalog, catalogEntry(7, 10, 20))
	assert.NotZero(t, stored.ID)

	again := createEntry(t, tc.Store.Catalog, catalogEntry(7, 11, 21))
	assert.Equal(t, stored.ID, again.ID)
	assert.InDelta(t, 10, again.WmRA, 0, "existing entry is not overwritten")

	batch := []entities.RunningCatalog{catalogEntry(7, 10, 20), catalogEntry(8, 30, 40), catalogEntry(9, 50, 60)}
	bySeed, err := tc.Store.Catalog.BatchGetOrCreate(ctx, batch, 2)
	require.NoError(t, err)
	require.Len(t, bySeed, 3)
	assert.Equal(t, stored.ID, bySeed[7].ID)

	count, err := tc.Store.Catalog.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestMergeAndResolveHead(t *testing.T) {
	t.Parallel()

	tc := testutil.NewTestStore(t)
	ctx := context.Background()

	bySeed, err := tc.Store.Catalog.BatchGetOrCreate(ctx, []entities.RunningCatalog{
		catalogEntry(1, 10, 20), catalogEntry(2, 10.001, 20), catalogEntry(3, 10.002, 20),
	}, 0)
	require.NoError(t, err)
	a, b, c := bySeed[1].ID, bySeed[2].ID, bySeed[3].ID

	now := time.Now().UTC()
	require.NoError(t, tc.Store.Catalog.MarkMerged(ctx, []uint{b}, c, now))
	require.NoError(t, tc.Store.Catalog.RepointHeads(ctx, []uint{b, c}, a))
	require.NoError(t, tc.Store.Catalog.MarkMerged(ctx, []uint{c}, a, now))

	for _, id := range []uint{a, b, c} {
		head, err := tc.Store.Catalog.ResolveHead(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, a, head)
	}

	merged, err := tc.Store.Catalog.Get(ctx, b)
	require.NoError(t, err)
	assert.True(t, merged.Deleted)
	assert.Equal(t, int64(1), merged.Revision)

	_, err = tc.Store.Catalog.ResolveHead(ctx, 424242)
	require.ErrorIs(t, err, repository.ErrCatalogEntryNotFound)

	active, err := tc.Store.Catalog.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, a, active[0].ID)
}

func TestSaveSpectrumRejectsStaleRevision(t *testing.T) {
	t.Parallel()

	tc := testutil.NewTestStore(t)
	ctx := context.Background()

	stored := createEntry(t, tc.Store.Catalog, catalogEntry(1, 10, 20))

	coeffs := datatypes.JSON(`[0.5,-0.7]`)
	fitted := time.Now().UTC().Truncate(time.Microsecond)
	fit := repository.SpectrumFit{Order: 1, Coeffs: coeffs, ChiSquare: 0.25, Bands: 3, FittedAt: fitted}
	require.NoError(t, tc.Store.Catalog.SaveSpectrum(ctx, stored.ID, stored.Revision, fit))

	stored.Revision++
	require.NoError(t, tc.Store.Catalog.Save(ctx, stored))

	err := tc.Store.Catalog.SaveSpectrum(ctx, stored.ID, stored.Revision-1, fit)
	require.ErrorIs(t, err, repository.ErrStaleRevision)

	reloaded, err := tc.Store.Catalog.Get(ctx, stored.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.SpectralOrder)
	assert.Equal(t, 1, *reloaded.SpectralOrder)
	assert.JSONEq(t, `[0.5,-0.7]`, string(reloaded.SpectralCoeffs))
	assert.Equal(t, 3, reloaded.SpectralBands)
	assert.InDelta(t, 0.25, reloaded.SpectralChiSquare, 0)
}

func TestSaveFluxesUpserts(t *testing.T) {
	t.Parallel()

	tc := testutil.NewTestStore(t)
	ctx := context.Background()

	stored := createEntry(t, tc.Store.Catalog, catalogEntry(1, 10, 20))

	row := entities.RunningCatalogFlux{RuncatID: stored.ID, BandID: 1, WmFlux: 1, WmFluxErr: 0.1, FluxWeightSum: 100, FluxValueSum: 100, Datapoints: 1}
	require.NoError(t, tc.Store.Catalog.SaveFluxes(ctx, []entities.RunningCatalogFlux{row}, 0))

	row.Datapoints = 2
	row.FluxWeightSum = 200
	row.FluxValueSum = 300
	row.WmFlux = 1.5
	other := entities.RunningCatalogFlux{RuncatID: stored.ID, BandID: 2, WmFlux: 2, WmFluxErr: 0.2, FluxWeightSum: 25, FluxValueSum: 50, Datapoints: 1}
	require.NoError(t, tc.Store.Catalog.SaveFluxes(ctx, []entities.RunningCatalogFlux{row, other}, 0))

	fluxes, err := tc.Store.Catalog.Fluxes(ctx, []uint{stored.ID})
	require.NoError(t, err)
	require.Len(t, fluxes[stored.ID], 2)
	assert.Equal(t, 2, fluxes[stored.ID][0].Datapoints)
	assert.InDelta(t, 1.5, fluxes[stored.ID][0].WmFlux, 1e-12)

	total, err := tc.Store.Catalog.CountFluxRows(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestInsertCandidatesMatchesGeometry(t *testing.T) {
	t.Parallel()

	tc := testutil.NewTestStore(t)
	ctx := context.Background()

	// Catalog entries near RA=0 to exercise wrapping.
	_, err := tc.Store.Catalog.BatchGetOrCreate(ctx, []entities.RunningCatalog{
		catalogEntry(1001, 359.9995, 10),
		catalogEntry(1002, 45, -30),
		catalogEntry(1003, 180, 80),
	}, 0)
	require.NoError(t, err)

	// r is about 1.6, 4.2 and 21 respectively; the second only passes the
	// extended threshold.
	ra1, dec1 := testutil.OffsetArcsec(359.9995, 10, 2, -1)
	ra2, dec2 := testutil.OffsetArcsec(45, -30, 6, 0)
	ra3, dec3 := testutil.OffsetArcsec(180, 80, 30, 30)
	image, sources := tc.SeedImage(1, 150e6,
		testutil.NewSource(ra1, dec1),
		testutil.NewSource(ra2, dec2),
		testutil.NewSource(ra2, dec2).Extended(),
		testutil.NewSource(ra3, dec3),
	)

	inserted, err := tc.Store.Associations.InsertCandidates(ctx, repository.CandidateQuery{
		ImageID:            image.ID,
		HalfWindow:         geometry.RadToDeg(0.025),
		ZoneWidth:          1,
		PointThreshold2:    3.717 * 3.717,
		ExtendedThreshold2: 5.68 * 5.68,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), inserted)

	rows, err := tc.Store.Associations.ListByImage(ctx, image.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, sources[0].ID, rows[0].SourceID)
	assert.Equal(t, sources[2].ID, rows[1].SourceID)
	assert.Equal(t, entities.SourceKindExtended, rows[1].SourceKind)

	det := geometry.Position{RA: ra1, Decl: dec1, RAErr: 1, DeclErr: 1}
	cat := geometry.Position{RA: 359.9995, Decl: 10, RAErr: 1, DeclErr: 1}
	assert.InDelta(t, geometry.DeRuiter(det, cat), rows[0].R, 1e-6)
	assert.InDelta(t, geometry.SeparationArcsec(geometry.UnitVector(ra1, dec1), geometry.UnitVector(359.9995, 10)), rows[0].DistanceArcsec, 1e-4)

	require.NoError(t, tc.Store.Associations.SetRelations(ctx, map[uint]entities.Relation{
		rows[0].ID: entities.RelationOneToOne,
		rows[1].ID: entities.RelationOneToOne,
	}))
	rows, err = tc.Store.Associations.ListByImage(ctx, image.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.RelationOneToOne, rows[0].Relation)

	require.NoError(t, tc.Store.Associations.ClearImage(ctx, image.ID))
	rows, err = tc.Store.Associations.ListByImage(ctx, image.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestTransactionRollsBack(t *testing.T) {
	t.Parallel()

	tc := testutil.NewTestStore(t)
	ctx := context.Background()
	boom := errors.NewStd("boom")

	err := tc.Store.Transaction(ctx, func(tx *repository.Tx) error {
		if _, err := tx.Catalog.BatchGetOrCreate(ctx, []entities.RunningCatalog{catalogEntry(1, 10, 20)}, 0); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.True(t, errors.IsStore(err))

	assert.Panics(t, func() {
		_ = tc.Store.Transaction(ctx, func(tx *repository.Tx) error {
			_, _ = tx.Catalog.BatchGetOrCreate(ctx, []entities.RunningCatalog{catalogEntry(2, 10, 20)}, 0)
			panic("kaboom")
		})
	})

	count, err := tc.Store.Catalog.CountActive(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	// Categorized errors pass through unchanged.
	stateErr := errors.ImageStateError(1, "processed")
	err = tc.Store.Transaction(ctx, func(*repository.Tx) error { return stateErr })
	assert.True(t, errors.IsImageState(err))
}

func TestTxFinishesOnce(t *testing.T) {
	t.Parallel()

	tc := testutil.NewTestStore(t)
	tx, err := tc.Store.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	require.ErrorIs(t, tx.Rollback(), repository.ErrTxDone)
}
