package repository

import (
	"context"
	"time"

	"github.com/tphakala/runcat/internal/datastore/entities"
)

// ProcessedStamp is written to an image row when it is marked processed.
// BandID and Frequency record the descriptor the image was merged with.
type ProcessedStamp struct {
	BandID    uint
	Frequency float64
	Version   string
	RunID     string
	At        time.Time
}

// ImageRepository provides access to the images and frequency_bands tables.
type ImageRepository interface {
	// Create inserts a new unprocessed image.
	Create(ctx context.Context, image *entities.Image) error

	// Get retrieves an image by id.
	// Returns ErrImageNotFound if not found.
	Get(ctx context.Context, id uint) (*entities.Image, error)

	// GetForUpdate retrieves an image and locks its row on MySQL.
	GetForUpdate(ctx context.Context, id uint) (*entities.Image, error)

	// MarkProcessed flips an unprocessed image to processed and stamps it.
	// Returns ErrImageAlreadyProcessed if the image was not unprocessed.
	MarkProcessed(ctx context.Context, id uint, stamp ProcessedStamp) error

	// ListUnprocessed returns up to limit unprocessed images in id order.
	// A non-positive limit returns all of them.
	ListUnprocessed(ctx context.Context, limit int) ([]entities.Image, error)

	// EnsureBand returns the stored band with band.ID, creating it if missing.
	// Returns ErrBandConflict if the stored band has another center frequency.
	EnsureBand(ctx context.Context, band *entities.Band) (*entities.Band, error)

	// GetBand retrieves a band by id.
	// Returns ErrBandNotFound if not found.
	GetBand(ctx context.Context, id uint) (*entities.Band, error)

	// GetBands retrieves multiple bands keyed by id.
	GetBands(ctx context.Context, ids []uint) (map[uint]*entities.Band, error)
}
