package association

import (
	"context"
	"math"

	"github.com/tphakala/runcat/internal/conf"
	"github.com/tphakala/runcat/internal/datastore/entities"
	"github.com/tphakala/runcat/internal/datastore/repository"
	"github.com/tphakala/runcat/internal/geometry"
)

// Thresholds are the de Ruiter acceptance radii per source kind.
type Thresholds struct {
	Point    float64
	Extended float64
}

// For returns the threshold for kind.
func (t Thresholds) For(kind entities.SourceKind) float64 {
	if kind == entities.SourceKindExtended {
		return t.Extended
	}
	return t.Point
}

// Max returns the larger threshold.
func (t Thresholds) Max() float64 {
	return math.Max(t.Point, t.Extended)
}

// Accepts reports whether r^2 passes the threshold for kind.
func (t Thresholds) Accepts(kind entities.SourceKind, r2 float64) bool {
	thr := t.For(kind)
	return r2 < thr*thr
}

// Config holds the matcher parameters resolved from settings.
type Config struct {
	Thresholds Thresholds
	ZoneWidth  float64 // degrees
	MinWindow  float64 // radians
	BatchSize  int
}

// ConfigFrom converts association settings.
func ConfigFrom(s *conf.AssociationSettings) Config {
	return Config{
		Thresholds: Thresholds{Point: s.PointThreshold, Extended: s.ExtendedThreshold},
		ZoneWidth:  s.ZoneWidth,
		MinWindow:  s.MinWindow,
		BatchSize:  s.BatchSize,
	}
}

// HalfWindow returns the declination half-width in degrees that contains
// every candidate of a detection.
//
// r >= |dDec| / sqrt(sDec_cat^2 + sDec_det^2), so a pair with
// |dDec| > rMax * hypot(maxDetDeclErr, maxCatDeclErr) can never pass. The
// result is at least MinWindow.
func (c Config) HalfWindow(maxDetDeclErr, maxCatDeclErr float64) float64 {
	bound := geometry.ArcsecToDeg(c.Thresholds.Max() * math.Hypot(maxDetDeclErr, maxCatDeclErr))
	return math.Max(geometry.RadToDeg(c.MinWindow), bound)
}

// Window is the catalog region scanned for one image.
type Window struct {
	HalfWidth float64 // degrees, per detection
	Region    repository.Window
	Empty     bool // the image has no detections
}

// ComputeWindow derives the scan window of an image from the error bounds of
// its detections and of the live catalog.
func ComputeWindow(ctx context.Context, tx *repository.Tx, imageID uint, cfg Config) (Window, error) {
	lo, hi, ok, err := tx.Sources.DeclRange(ctx, imageID)
	if err != nil {
		return Window{}, err
	}
	if !ok {
		return Window{Empty: true}, nil
	}

	detErr, err := tx.Sources.MaxDeclErr(ctx, imageID)
	if err != nil {
		return Window{}, err
	}
	catErr, err := tx.Catalog.MaxDeclErr(ctx)
	if err != nil {
		return Window{}, err
	}

	w := cfg.HalfWindow(detErr, catErr)
	declLo, declHi := lo-w, hi+w
	return Window{
		HalfWidth: w,
		Region: repository.Window{
			ZoneLo: geometry.Zone(declLo, cfg.ZoneWidth),
			ZoneHi: geometry.Zone(declHi, cfg.ZoneWidth),
			DeclLo: declLo,
			DeclHi: declHi,
		},
	}, nil
}
