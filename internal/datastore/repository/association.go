package repository

import (
	"context"

	"github.com/tphakala/runcat/internal/datastore/entities"
)

// CandidateQuery parameterizes store-side candidate generation for one image.
type CandidateQuery struct {
	ImageID    uint
	HalfWindow float64 // declination half-window, degrees
	ZoneWidth  float64 // degrees

	// Squared de Ruiter thresholds per source kind.
	PointThreshold2    float64
	ExtendedThreshold2 float64
}

// AssociationRepository provides access to the per-image scratch candidates.
type AssociationRepository interface {
	// ClearImage deletes the scratch rows of an image.
	ClearImage(ctx context.Context, imageID uint) error

	// InsertBatch inserts candidate rows in batches of batch rows.
	InsertBatch(ctx context.Context, rows []entities.Association, batch int) error

	// InsertCandidates computes and inserts every candidate pair of an image
	// in a single statement. Returns the number of rows inserted.
	InsertCandidates(ctx context.Context, q CandidateQuery) (int64, error)

	// ListByImage returns the scratch rows of an image ordered by source, then
	// catalog entry.
	ListByImage(ctx context.Context, imageID uint) ([]entities.Association, error)

	// SetRelations writes the relation of each scratch row keyed by row id.
	SetRelations(ctx context.Context, relations map[uint]entities.Relation) error
}

// MembershipRepository provides access to the permanent source-to-entry history.
type MembershipRepository interface {
	// InsertBatch records memberships in batches of batch rows.
	InsertBatch(ctx context.Context, rows []entities.CatalogMembership, batch int) error

	// ListByImage returns the memberships recorded for an image.
	ListByImage(ctx context.Context, imageID uint) ([]entities.CatalogMembership, error)

	// ListAll returns every membership ordered by source id.
	ListAll(ctx context.Context) ([]entities.CatalogMembership, error)
}
