package parset

import (
	"context"

	"github.com/tphakala/runcat/internal/conf"
	"github.com/tphakala/runcat/internal/datastore/repository"
	"github.com/tphakala/runcat/internal/errors"
)

// StoreProvider reads descriptors from the band and frequency recorded on
// the image at ingest.
type StoreProvider struct {
	images repository.ImageRepository
}

// NewStoreProvider creates a StoreProvider.
func NewStoreProvider(images repository.ImageRepository) *StoreProvider {
	return &StoreProvider{images: images}
}

// Descriptor implements Provider.
func (p *StoreProvider) Descriptor(ctx context.Context, imageID uint) (*Descriptor, error) {
	image, err := p.images.Get(ctx, imageID)
	if err != nil {
		if errors.Is(err, repository.ErrImageNotFound) {
			return nil, errors.New(err).
				Component("parset").
				Category(errors.CategoryNotFound).
				ImageContext(imageID).
				Build()
		}
		return nil, errors.StoreError(err, "load_image")
	}

	d := &Descriptor{ImageID: imageID, BandID: image.BandID, Frequency: image.Frequency}
	if image.BandID != 0 {
		band, err := p.images.GetBand(ctx, image.BandID)
		switch {
		case err == nil:
			d.Bandwidth = band.Bandwidth
		case !errors.Is(err, repository.ErrBandNotFound):
			return nil, errors.StoreError(err, "load_band")
		}
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// NewProvider returns a FileProvider when settings.Dir is set and a
// StoreProvider otherwise.
func NewProvider(settings *conf.ParsetSettings, images repository.ImageRepository) Provider {
	if settings != nil && settings.Dir != "" {
		return NewFileProvider(settings.Dir, settings.CacheTTL)
	}
	return NewStoreProvider(images)
}
