package repository

import (
	"context"
	"fmt"
	"math"

	"gorm.io/gorm"

	"github.com/tphakala/runcat/internal/datastore/entities"
	"github.com/tphakala/runcat/internal/errors"
)

// imageRepository implements ImageRepository.
type imageRepository struct {
	db      *gorm.DB
	isMySQL bool
}

// NewImageRepository creates a new ImageRepository.
func NewImageRepository(db *gorm.DB, isMySQL bool) ImageRepository {
	return &imageRepository{db: db, isMySQL: isMySQL}
}

// Create inserts a new unprocessed image.
func (r *imageRepository) Create(ctx context.Context, image *entities.Image) error {
	if image.Status == "" {
		image.Status = entities.ImageStatusUnprocessed
	}
	return r.db.WithContext(ctx).Create(image).Error
}

// Get retrieves an image by id.
func (r *imageRepository) Get(ctx context.Context, id uint) (*entities.Image, error) {
	return r.get(ctx, id, false)
}

// GetForUpdate retrieves an image and locks its row on MySQL.
func (r *imageRepository) GetForUpdate(ctx context.Context, id uint) (*entities.Image, error) {
	return r.get(ctx, id, true)
}

func (r *imageRepository) get(ctx context.Context, id uint, forUpdate bool) (*entities.Image, error) {
	var image entities.Image
	err := lockForUpdate(r.db.WithContext(ctx), r.isMySQL, forUpdate).First(&image, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrImageNotFound
	}
	if err != nil {
		return nil, err
	}
	return &image, nil
}

// MarkProcessed flips an unprocessed image to processed and stamps it.
func (r *imageRepository) MarkProcessed(ctx context.Context, id uint, stamp ProcessedStamp) error {
	result := r.db.WithContext(ctx).Model(&entities.Image{}).
		Where("id = ? AND status = ?", id, entities.ImageStatusUnprocessed).
		Updates(map[string]any{
			"status":       entities.ImageStatusProcessed,
			"band_id":      stamp.BandID,
			"frequency":    stamp.Frequency,
			"version":      stamp.Version,
			"run_id":       stamp.RunID,
			"processed_at": stamp.At,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return ErrImageAlreadyProcessed
	}
	return nil
}

// ListUnprocessed returns unprocessed images in id order.
func (r *imageRepository) ListUnprocessed(ctx context.Context, limit int) ([]entities.Image, error) {
	var images []entities.Image
	q := r.db.WithContext(ctx).Where("status = ?", entities.ImageStatusUnprocessed).Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&images).Error; err != nil {
		return nil, err
	}
	return images, nil
}

// EnsureBand returns the stored band with band.ID, creating it if missing.
func (r *imageRepository) EnsureBand(ctx context.Context, band *entities.Band) (*entities.Band, error) {
	existing, err := r.GetBand(ctx, band.ID)
	if err == nil {
		return checkBand(existing, band)
	}
	if !errors.Is(err, ErrBandNotFound) {
		return nil, err
	}

	created := *band
	if createErr := r.db.WithContext(ctx).Create(&created).Error; createErr != nil {
		// Another writer may have created it first.
		existing, findErr := r.GetBand(ctx, band.ID)
		if findErr != nil {
			return nil, createErr
		}
		return checkBand(existing, band)
	}
	return &created, nil
}

// bandFrequencyTolerance is relative; it absorbs float round trips through
// the database and YAML.
const bandFrequencyTolerance = 1e-9

func checkBand(existing, want *entities.Band) (*entities.Band, error) {
	diff := math.Abs(existing.CenterFrequency - want.CenterFrequency)
	if diff > bandFrequencyTolerance*math.Max(math.Abs(existing.CenterFrequency), math.Abs(want.CenterFrequency)) {
		return existing, fmt.Errorf("%w: band %d is at %g Hz, not %g Hz",
			ErrBandConflict, existing.ID, existing.CenterFrequency, want.CenterFrequency)
	}
	return existing, nil
}

// GetBand retrieves a band by id.
func (r *imageRepository) GetBand(ctx context.Context, id uint) (*entities.Band, error) {
	var band entities.Band
	err := r.db.WithContext(ctx).First(&band, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBandNotFound
	}
	if err != nil {
		return nil, err
	}
	return &band, nil
}

// GetBands retrieves multiple bands keyed by id.
func (r *imageRepository) GetBands(ctx context.Context, ids []uint) (map[uint]*entities.Band, error) {
	result := make(map[uint]*entities.Band, len(ids))
	for _, chunk := range chunkIDs(ids, inClauseChunk) {
		var bands []entities.Band
		if err := r.db.WithContext(ctx).Where("id IN ?", chunk).Find(&bands).Error; err != nil {
			return nil, err
		}
		for i := range bands {
			result[bands[i].ID] = &bands[i]
		}
	}
	return result, nil
}
