package ingest

import (
	"fmt"
	"math"

	"github.com/tphakala/runcat/internal/datastore/entities"
	"github.com/tphakala/runcat/internal/errors"
	"github.com/tphakala/runcat/internal/geometry"
)

// ValidateSource checks that a detection can be merged into the catalog.
// ref identifies the detection in errors: its id once stored, its position in
// the input file before that.
func ValidateSource(src *entities.ExtractedSource, ref uint) error {
	checks := []struct {
		field string
		value float64
		ok    func(float64) bool
		want  string
	}{
		{"ra", src.RA, func(v float64) bool { return v >= 0 && v < 360 }, "in [0, 360)"},
		{"decl", src.Decl, func(v float64) bool { return v >= -90 && v <= 90 }, "in [-90, 90]"},
		{"ra_err", src.RAErr, positive, "positive"},
		{"decl_err", src.DeclErr, positive, "positive"},
		{"flux", src.Flux, func(float64) bool { return true }, "finite"},
		{"flux_err", src.FluxErr, positive, "positive"},
	}
	for _, c := range checks {
		if math.IsNaN(c.value) || math.IsInf(c.value, 0) || !c.ok(c.value) {
			return errors.SourceDataError(fmt.Errorf("%s = %v, want %s", c.field, c.value, c.want), ref, c.field)
		}
	}
	if src.Kind != entities.SourceKindPoint && src.Kind != entities.SourceKindExtended {
		return errors.SourceDataError(fmt.Errorf("unknown kind %d", src.Kind), ref, "kind")
	}
	return nil
}

func positive(v float64) bool { return v > 0 }

// Derive fills the unit vector and declination zone of src.
func Derive(src *entities.ExtractedSource, zoneWidth float64) {
	v := geometry.UnitVector(src.RA, src.Decl)
	src.X, src.Y, src.Z = v.X, v.Y, v.Z
	src.Zone = geometry.Zone(src.Decl, zoneWidth)
}
