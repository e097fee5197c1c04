package catalog_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/runcat/internal/association"
	"github.com/tphakala/runcat/internal/catalog"
	"github.com/tphakala/runcat/internal/datastore/entities"
	"github.com/tphakala/runcat/internal/datastore/repository"
	"github.com/tphakala/runcat/internal/datastore/testutil"
)

type fixture struct {
	tc      *testutil.TestContext
	updater *catalog.Updater
	clock   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		tc:    testutil.NewTestStore(t),
		clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	f.updater = catalog.NewUpdater(1, 100, func() time.Time { return f.clock }, f.tc.Logger)
	return f
}

func batchOf(image *entities.Image, sources []entities.ExtractedSource) *catalog.Batch {
	b := &catalog.Batch{Image: image, Sources: make(map[uint]*entities.ExtractedSource, len(sources))}
	for i := range sources {
		b.Sources[sources[i].ID] = &sources[i]
	}
	return b
}

func sourceIDs(sources []entities.ExtractedSource) []uint {
	ids := make([]uint, len(sources))
	for i := range sources {
		ids[i] = sources[i].ID
	}
	return ids
}

// create seeds one entry per detection of a new image and returns the entry ids.
func (f *fixture) create(t *testing.T, bandID uint, builders ...*testutil.SourceBuilder) []uint {
	t.Helper()
	ctx := context.Background()
	image, sources := f.tc.SeedImage(bandID, float64(bandID)*100e6, builders...)

	var ids []uint
	err := f.tc.Store.Transaction(ctx, func(tx *repository.Tx) error {
		res, err := f.updater.CreateEntries(ctx, tx, batchOf(image, sources), sourceIDs(sources))
		if err != nil {
			return err
		}
		for _, m := range res.Memberships {
			ids = append(ids, m.RuncatID)
		}
		return f.updater.RecordMemberships(ctx, tx, res.Memberships)
	})
	require.NoError(t, err)
	return ids
}

func TestCreateEntries(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ids := f.create(t, 1, testutil.NewSource(10, 10), testutil.NewSource(20, 20).WithFlux(3, 0.3))
	require.Len(t, ids, 2)

	ctx := context.Background()
	entry, err := f.tc.Store.Catalog.Get(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, 1, entry.Datapoints)
	assert.InDelta(t, 20, entry.WmRA, 1e-12)
	assert.True(t, f.clock.Equal(entry.LastUpdate))
	assert.True(t, entry.Dirty())

	fluxes, err := f.tc.Store.Catalog.Fluxes(ctx, ids)
	require.NoError(t, err)
	require.Len(t, fluxes[ids[1]], 1)
	assert.InDelta(t, 3, fluxes[ids[1]][0].WmFlux, 1e-12)

	members, err := f.tc.Store.Memberships.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, entities.RelationNew, members[0].Relation)
}

func TestApplyDirectTouchesAfterLastFit(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	ids := f.create(t, 1, testutil.NewSource(10, 10))

	// A fit stamped in the future relative to the clock.
	fitted := f.clock.Add(time.Hour)
	entry, err := f.tc.Store.Catalog.Get(ctx, ids[0])
	require.NoError(t, err)
	require.NoError(t, f.tc.Store.Catalog.SaveSpectrum(ctx, entry.ID, entry.Revision, repository.SpectrumFit{Coeffs: []byte(`[0]`), Bands: 1, FittedAt: fitted}))

	image, sources := f.tc.SeedImage(2, 200e6, testutil.NewSource(10, 10).WithFlux(2, 0.1), testutil.NewSource(10, 10))
	direct := map[uint][]entities.Association{
		ids[0]: {
			{ImageID: image.ID, SourceID: sources[0].ID, RuncatID: ids[0], Relation: entities.RelationManyToOne},
			{ImageID: image.ID, SourceID: sources[1].ID, RuncatID: ids[0], Relation: entities.RelationManyToOne},
		},
	}

	err = f.tc.Store.Transaction(ctx, func(tx *repository.Tx) error {
		res, err := f.updater.ApplyDirect(ctx, tx, batchOf(image, sources), direct)
		if err != nil {
			return err
		}
		assert.Equal(t, 1, res.Updated)
		assert.Len(t, res.Memberships, 2)
		return nil
	})
	require.NoError(t, err)

	entry, err = f.tc.Store.Catalog.Get(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, 3, entry.Datapoints)
	assert.Equal(t, int64(1), entry.Revision)
	assert.True(t, fitted.Add(time.Microsecond).Equal(entry.LastUpdate), "last update %s", entry.LastUpdate)
	assert.True(t, entry.Dirty())

	fluxes, err := f.tc.Store.Catalog.Fluxes(ctx, ids)
	require.NoError(t, err)
	rows := fluxes[ids[0]]
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].Datapoints)
	assert.Equal(t, 2, rows[1].Datapoints)
	assert.Equal(t, entry.Datapoints, rows[0].Datapoints+rows[1].Datapoints)
}

func TestApplyGroupCollapsesIntoLowestID(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	ids := f.create(t, 1,
		testutil.NewSource(10, 10),
		testutil.NewSource(10.0005, 10),
		testutil.NewSource(10.001, 10),
	)

	image, sources := f.tc.SeedImage(1, 100e6, testutil.NewSource(10.0003, 10), testutil.NewSource(10.0008, 10))
	pairs := []entities.Association{
		{ImageID: image.ID, SourceID: sources[0].ID, RuncatID: ids[0]},
		{ImageID: image.ID, SourceID: sources[0].ID, RuncatID: ids[1]},
		{ImageID: image.ID, SourceID: sources[1].ID, RuncatID: ids[1]},
		{ImageID: image.ID, SourceID: sources[1].ID, RuncatID: ids[2]},
	}
	classified := association.Classify(pairs)
	groups := association.Partition(classified.Ambiguous)
	require.Len(t, groups, 1)

	err := f.tc.Store.Transaction(ctx, func(tx *repository.Tx) error {
		res, err := f.updater.ApplyGroup(ctx, tx, batchOf(image, sources), groups[0])
		if err != nil {
			return err
		}
		assert.Equal(t, 2, res.Merged)
		assert.Len(t, res.Memberships, 2)
		return f.updater.RecordMemberships(ctx, tx, res.Memberships)
	})
	require.NoError(t, err)

	head, err := f.tc.Store.Catalog.Get(ctx, ids[0])
	require.NoError(t, err)
	assert.False(t, head.Deleted)
	assert.Equal(t, 5, head.Datapoints)
	assert.InDelta(t, (10+10.0005+10.001+10.0003+10.0008)/5, head.WmRA, 1e-9)

	for _, id := range ids[1:] {
		member, err := f.tc.Store.Catalog.Get(ctx, id)
		require.NoError(t, err)
		assert.True(t, member.Deleted)
		require.NotNil(t, member.GroupHeadID)
		assert.Equal(t, ids[0], *member.GroupHeadID)
	}

	fluxes, err := f.tc.Store.Catalog.Fluxes(ctx, ids[:1])
	require.NoError(t, err)
	require.Len(t, fluxes[ids[0]], 1)
	assert.Equal(t, 5, fluxes[ids[0]][0].Datapoints)

	active, err := f.tc.Store.Catalog.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), active)
}
