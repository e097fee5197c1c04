// Package geometry implements the sky geometry used for source association:
// unit-sphere vectors, angular separation from chord length, the de Ruiter
// normalized distance and declination zones.
//
// Positions are in degrees and positional errors in arcseconds throughout.
package geometry

import (
	"math"

	"github.com/soniakeys/unit"
)

// Vector is a point on the unit sphere.
type Vector struct {
	X, Y, Z float64
}

// UnitVector returns the unit-sphere vector for ra, decl in degrees.
func UnitVector(ra, decl float64) Vector {
	sra, cra := unit.AngleFromDeg(ra).Sincos()
	sdec, cdec := unit.AngleFromDeg(decl).Sincos()
	return Vector{X: cdec * cra, Y: cdec * sra, Z: sdec}
}

// ChordSquared returns |v-o|^2.
func (v Vector) ChordSquared(o Vector) float64 {
	dx, dy, dz := v.X-o.X, v.Y-o.Y, v.Z-o.Z
	return dx*dx + dy*dy + dz*dz
}

// SeparationFromChord converts a squared chord length to an angle in
// arcseconds: 2*asin(|d|/2). It stays accurate for small separations and near
// the poles.
func SeparationFromChord(chord2 float64) float64 {
	h := math.Sqrt(chord2) / 2
	if h > 1 {
		h = 1
	}
	return unit.Angle(2 * math.Asin(h)).Sec()
}

// SeparationArcsec returns the angular distance between a and b in arcseconds.
func SeparationArcsec(a, b Vector) float64 {
	return SeparationFromChord(a.ChordSquared(b))
}

// Position is a sky position with on-sky 1-sigma errors.
type Position struct {
	RA      float64 // degrees
	Decl    float64 // degrees
	RAErr   float64 // arcsec, on sky
	DeclErr float64 // arcsec
}

// WrapRA folds an RA difference in degrees into [-180, 180].
func WrapRA(dra float64) float64 {
	switch {
	case dra > 180:
		return dra - 360
	case dra < -180:
		return dra + 360
	default:
		return dra
	}
}

// NormalizeRA folds ra in degrees into [0, 360).
func NormalizeRA(ra float64) float64 {
	ra = math.Mod(ra, 360)
	if ra < 0 {
		ra += 360
	}
	return ra
}

// DeRuiterSquared returns r^2 for a detection against a catalog position:
//
//	r^2 = (dRA*cos(dec))^2/(sRA_cat^2+sRA_det^2) + dDec^2/(sDec_cat^2+sDec_det^2)
//
// with offsets in arcseconds and dec the detection's declination.
func DeRuiterSquared(det, cat Position) float64 {
	dra := unit.AngleFromDeg(WrapRA(det.RA-cat.RA)).Sec() * unit.AngleFromDeg(det.Decl).Cos()
	ddec := unit.AngleFromDeg(det.Decl - cat.Decl).Sec()
	return dra*dra/(cat.RAErr*cat.RAErr+det.RAErr*det.RAErr) +
		ddec*ddec/(cat.DeclErr*cat.DeclErr+det.DeclErr*det.DeclErr)
}

// DeRuiter returns the de Ruiter normalized distance r.
func DeRuiter(det, cat Position) float64 {
	return math.Sqrt(DeRuiterSquared(det, cat))
}

// Zone returns the declination zone index floor(decl/width).
func Zone(decl, width float64) int {
	return int(math.Floor(decl / width))
}

// ZoneRange returns the inclusive zone range covering [decl-halfWidth, decl+halfWidth].
func ZoneRange(decl, halfWidth, width float64) (lo, hi int) {
	return Zone(decl-halfWidth, width), Zone(decl+halfWidth, width)
}

// RadToDeg converts radians to degrees.
func RadToDeg(rad float64) float64 {
	return unit.Angle(rad).Deg()
}

// ArcsecToDeg converts arcseconds to degrees.
func ArcsecToDeg(sec float64) float64 {
	return unit.AngleFromSec(sec).Deg()
}
