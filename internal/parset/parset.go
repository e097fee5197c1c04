// Package parset supplies the per-image band and frequency descriptor the
// pipeline needs before an image can be merged into the catalog.
package parset

import (
	"context"
	"fmt"
	"math"

	"github.com/tphakala/runcat/internal/errors"
)

// Descriptor is the band/frequency description of one image.
type Descriptor struct {
	ImageID   uint    `yaml:"-"`
	BandID    uint    `yaml:"band"`
	Frequency float64 `yaml:"frequency"` // Hz
	Bandwidth float64 `yaml:"bandwidth"` // Hz, optional
}

// Provider resolves the descriptor of an image.
type Provider interface {
	Descriptor(ctx context.Context, imageID uint) (*Descriptor, error)
}

// Validate returns a configuration error when a required value is missing.
func (d *Descriptor) Validate() error {
	switch {
	case d.BandID == 0:
		return descriptorError(d.ImageID, "band", "missing band")
	case d.Frequency <= 0 || math.IsNaN(d.Frequency) || math.IsInf(d.Frequency, 0):
		return descriptorError(d.ImageID, "frequency", fmt.Sprintf("invalid frequency %v", d.Frequency))
	case d.Bandwidth < 0 || math.IsNaN(d.Bandwidth) || math.IsInf(d.Bandwidth, 0):
		return descriptorError(d.ImageID, "bandwidth", fmt.Sprintf("invalid bandwidth %v", d.Bandwidth))
	}
	return nil
}

func descriptorError(imageID uint, key, msg string) error {
	return errors.Newf("image %d descriptor: %s", imageID, msg).
		Component("parset").
		Category(errors.CategoryConfiguration).
		ImageContext(imageID).
		Context("key", key).
		Build()
}
