//go:build integration && mysql

package datastore_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/tphakala/runcat/internal/buildinfo"
	"github.com/tphakala/runcat/internal/conf"
	"github.com/tphakala/runcat/internal/datastore"
	"github.com/tphakala/runcat/internal/datastore/entities"
	"github.com/tphakala/runcat/internal/datastore/repository"
	"github.com/tphakala/runcat/internal/datastore/testutil"
	"github.com/tphakala/runcat/internal/logger"
	"github.com/tphakala/runcat/internal/parset"
	"github.com/tphakala/runcat/internal/pipeline"
)

// startMySQL runs a MySQL container and returns settings pointing at it.
func startMySQL(t *testing.T) *conf.Settings {
	t.Helper()
	ctx := context.Background()

	container, err := tcmysql.Run(ctx, "mysql:8.0",
		tcmysql.WithDatabase("runcat"),
		tcmysql.WithUsername("runcat"),
		tcmysql.WithPassword("runcat"),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = testcontainers.TerminateContainer(container)
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "3306/tcp")
	require.NoError(t, err)

	settings := conf.Default()
	settings.Database.Type = conf.DatabaseMySQL
	settings.Database.MySQL.Host = host
	settings.Database.MySQL.Port = port.Int()
	settings.Database.MySQL.Username = "runcat"
	settings.Database.MySQL.Password = "runcat"
	settings.Database.MySQL.Database = "runcat"
	return settings
}

func TestMySQLPipeline(t *testing.T) {
	settings := startMySQL(t)
	ctx := context.Background()
	log := logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)

	manager, err := datastore.Open(&settings.Database, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })
	require.NoError(t, manager.Initialize())
	require.True(t, manager.IsMySQL())

	store := repository.NewStore(manager.DB(), true)
	zw := settings.Association.ZoneWidth

	seed := func(band uint, freq float64, builders ...*testutil.SourceBuilder) uint {
		_, err := store.Images.EnsureBand(ctx, &entities.Band{ID: band, CenterFrequency: freq})
		require.NoError(t, err)
		image := &entities.Image{BandID: band, Frequency: freq}
		require.NoError(t, store.Images.Create(ctx, image))
		rows := make([]entities.ExtractedSource, 0, len(builders))
		for _, b := range builders {
			rows = append(rows, b.Build(image.ID, zw))
		}
		require.NoError(t, store.Sources.InsertBatch(ctx, rows, 0))
		return image.ID
	}

	first := seed(1, 120e6, testutil.NewSource(359.9999, 0.5), testutil.NewSource(15, -30))
	ra, decl := testutil.OffsetArcsec(359.9999, 0.5, 0.8, -0.2)
	second := seed(2, 150e6, testutil.NewSource(ra, decl))

	engine, err := pipeline.NewEngine(settings, store, parset.NewStoreProvider(store.Images),
		buildinfo.NewContext("integration", ""), log)
	require.NoError(t, err)

	r, err := engine.ProcessImage(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Created)

	r, err = engine.ProcessImage(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Relations[entities.RelationOneToOne], "match across RA zero")
	assert.Equal(t, int64(2), r.Active)

	_, err = engine.ProcessImage(ctx, second)
	require.Error(t, err)

	active, err := store.Catalog.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, 2, active[0].Datapoints)
}
