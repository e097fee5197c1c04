package repository

import (
	"context"
	"time"

	"gorm.io/datatypes"

	"github.com/tphakala/runcat/internal/datastore/entities"
)

// maxHeadHops bounds group_head_id chain traversal. Merges always repoint
// to the newest head, so a valid chain is one hop long.
const maxHeadHops = 16

// Window selects catalog entries by declination zone and declination range.
type Window struct {
	ZoneLo, ZoneHi int
	DeclLo, DeclHi float64
}

// SpectrumFit is the cached spectral model of a catalog entry.
type SpectrumFit struct {
	Order     int
	Coeffs    datatypes.JSON
	ChiSquare float64
	Bands     int
	FittedAt  time.Time
}

// CatalogRepository provides access to running catalog entries and their
// per-band flux rows.
type CatalogRepository interface {
	// Get retrieves an entry by id, deleted or not.
	// Returns ErrCatalogEntryNotFound if not found.
	Get(ctx context.Context, id uint) (*entities.RunningCatalog, error)

	// GetByIDs retrieves entries keyed by id. forUpdate locks rows on MySQL.
	GetByIDs(ctx context.Context, ids []uint, forUpdate bool) (map[uint]*entities.RunningCatalog, error)

	// ListWindow returns the live entries inside w in id order.
	// forUpdate locks the rows on MySQL.
	ListWindow(ctx context.Context, w Window, forUpdate bool) ([]entities.RunningCatalog, error)

	// MaxDeclErr returns the largest declination error (arcsec) of live entries.
	MaxDeclErr(ctx context.Context) (float64, error)

	// BatchGetOrCreate returns the entries seeded by each entry's
	// SeedSourceID, inserting those that do not exist yet. Existing entries
	// are left unchanged. The result is keyed by seed source id.
	BatchGetOrCreate(ctx context.Context, entries []entities.RunningCatalog, batch int) (map[uint]*entities.RunningCatalog, error)

	// Save writes the position, aggregate, merge and revision columns of entry.
	Save(ctx context.Context, entry *entities.RunningCatalog) error

	// MarkMerged flags ids as deleted members of head's group.
	MarkMerged(ctx context.Context, ids []uint, head uint, at time.Time) error

	// RepointHeads moves every pointer at one of from onto head.
	RepointHeads(ctx context.Context, from []uint, head uint) error

	// ResolveHead follows group_head_id from id to the live entry.
	ResolveHead(ctx context.Context, id uint) (uint, error)

	// CountActive returns the number of live entries.
	CountActive(ctx context.Context) (int64, error)

	// ListActive returns the live entries in id order.
	ListActive(ctx context.Context) ([]entities.RunningCatalog, error)

	// SaveSpectrum stores a spectral fit if the entry is still at revision.
	// Returns ErrStaleRevision otherwise.
	SaveSpectrum(ctx context.Context, id uint, revision int64, fit SpectrumFit) error

	// Fluxes returns the flux rows of the given entries keyed by entry id.
	Fluxes(ctx context.Context, ids []uint) (map[uint][]entities.RunningCatalogFlux, error)

	// SaveFluxes upserts flux rows keyed by (runcat_id, band_id).
	SaveFluxes(ctx context.Context, rows []entities.RunningCatalogFlux, batch int) error

	// CountFluxRows returns the total number of flux rows.
	CountFluxRows(ctx context.Context) (int64, error)
}
