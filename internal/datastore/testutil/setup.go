package testutil

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tphakala/runcat/internal/conf"
	"github.com/tphakala/runcat/internal/datastore"
	"github.com/tphakala/runcat/internal/datastore/entities"
	"github.com/tphakala/runcat/internal/datastore/repository"
	"github.com/tphakala/runcat/internal/logger"
)

// TestContext contains the dependencies of a store-backed test.
type TestContext struct {
	TempDir  string
	Settings *conf.Settings
	Manager  *datastore.SQLiteManager
	Store    *repository.Store
	Logger   logger.Logger

	t *testing.T
}

// NewTestStore creates a migrated SQLite database in t.TempDir() with
// default settings. The database is closed by t.Cleanup.
func NewTestStore(t *testing.T) *TestContext {
	t.Helper()

	tmpDir := t.TempDir()
	log := logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)

	settings := conf.Default()
	settings.Database.Type = conf.DatabaseSQLite
	settings.Database.SQLite.Path = filepath.Join(tmpDir, "runcat.db")

	manager, err := datastore.NewSQLiteManager(settings.Database.SQLite.Path, &settings.Database, log)
	require.NoError(t, err, "failed to open test database")
	require.NoError(t, manager.Initialize(), "failed to migrate test database")

	t.Cleanup(func() {
		_ = manager.Close()
	})

	return &TestContext{
		TempDir:  tmpDir,
		Settings: settings,
		Manager:  manager,
		Store:    repository.NewStore(manager.DB(), false),
		Logger:   log,
		t:        t,
	}
}

// SeedImage registers the band if needed, creates an unprocessed image and
// inserts its detections. Derived columns are filled from RA/Decl.
func (tc *TestContext) SeedImage(bandID uint, frequency float64, sources ...*SourceBuilder) (*entities.Image, []entities.ExtractedSource) {
	tc.t.Helper()

	_, err := tc.Store.Images.EnsureBand(context.Background(), &entities.Band{ID: bandID, CenterFrequency: frequency})
	require.NoError(tc.t, err)

	image := &entities.Image{BandID: bandID, Frequency: frequency}
	return image, tc.InsertImage(image, sources...)
}

// InsertImage creates image as given, without touching frequency_bands, and
// inserts its detections.
func (tc *TestContext) InsertImage(image *entities.Image, sources ...*SourceBuilder) []entities.ExtractedSource {
	tc.t.Helper()
	ctx := context.Background()

	require.NoError(tc.t, tc.Store.Images.Create(ctx, image))

	rows := make([]entities.ExtractedSource, 0, len(sources))
	for _, b := range sources {
		rows = append(rows, b.Build(image.ID, tc.Settings.Association.ZoneWidth))
	}
	require.NoError(tc.t, tc.Store.Sources.InsertBatch(ctx, rows, tc.Settings.Association.BatchSize))

	stored, err := tc.Store.Sources.ListByImage(ctx, image.ID)
	require.NoError(tc.t, err)
	return stored
}
