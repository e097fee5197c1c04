package repository

import (
	"context"
	"database/sql"

	"gorm.io/gorm"

	"github.com/tphakala/runcat/internal/datastore/entities"
)

// SourceRepository provides access to extracted sources.
type SourceRepository interface {
	// InsertBatch inserts sources in batches of batch rows.
	InsertBatch(ctx context.Context, sources []entities.ExtractedSource, batch int) error

	// ListByImage returns every detection of an image in id order.
	ListByImage(ctx context.Context, imageID uint) ([]entities.ExtractedSource, error)

	// MaxDeclErr returns the largest declination error (arcsec) of an image's
	// detections, or zero for an image without detections.
	MaxDeclErr(ctx context.Context, imageID uint) (float64, error)

	// DeclRange returns the smallest and largest declination of an image's
	// detections. ok is false for an image without detections.
	DeclRange(ctx context.Context, imageID uint) (lo, hi float64, ok bool, err error)
}

type sourceRepository struct {
	db *gorm.DB
}

// NewSourceRepository creates a new SourceRepository.
func NewSourceRepository(db *gorm.DB) SourceRepository {
	return &sourceRepository{db: db}
}

func (r *sourceRepository) InsertBatch(ctx context.Context, sources []entities.ExtractedSource, batch int) error {
	if len(sources) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(sources, batchSize(batch)).Error
}

func (r *sourceRepository) ListByImage(ctx context.Context, imageID uint) ([]entities.ExtractedSource, error) {
	var sources []entities.ExtractedSource
	if err := r.db.WithContext(ctx).
		Where("image_id = ?", imageID).
		Order("id ASC").
		Find(&sources).Error; err != nil {
		return nil, err
	}
	return sources, nil
}

func (r *sourceRepository) MaxDeclErr(ctx context.Context, imageID uint) (float64, error) {
	var maxErr sql.NullFloat64
	if err := r.db.WithContext(ctx).Model(&entities.ExtractedSource{}).
		Where("image_id = ?", imageID).
		Select("MAX(decl_err)").
		Row().Scan(&maxErr); err != nil {
		return 0, err
	}
	return maxErr.Float64, nil
}

func (r *sourceRepository) DeclRange(ctx context.Context, imageID uint) (float64, float64, bool, error) {
	var lo, hi sql.NullFloat64
	if err := r.db.WithContext(ctx).Model(&entities.ExtractedSource{}).
		Where("image_id = ?", imageID).
		Select("MIN(decl), MAX(decl)").
		Row().Scan(&lo, &hi); err != nil {
		return 0, 0, false, err
	}
	if !lo.Valid || !hi.Valid {
		return 0, 0, false, nil
	}
	return lo.Float64, hi.Float64, true, nil
}
