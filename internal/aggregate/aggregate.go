// Package aggregate implements the order-independent weighted means kept by
// running catalog entries.
//
// Every scalar is tracked as a pair of sums, the weight sum W = sum(1/sigma^2)
// and the value sum V = sum(x/sigma^2). The mean is V/W and its error
// sqrt(1/W), so merging detections one at a time or all at once gives the
// same result, and two entries merge by adding their sums.
package aggregate

import (
	"math"
	"time"

	"github.com/tphakala/runcat/internal/datastore/entities"
	"github.com/tphakala/runcat/internal/geometry"
)

// minCosDecl keeps RA weights finite at the poles.
const minCosDecl = 1e-9

// Accumulator holds the weight and value sums of one scalar.
type Accumulator struct {
	WeightSum float64
	ValueSum  float64
}

// Add folds in value with weight.
func (a *Accumulator) Add(value, weight float64) {
	a.WeightSum += weight
	a.ValueSum += weight * value
}

// AddMeasurement folds in value with its 1-sigma error.
func (a *Accumulator) AddMeasurement(value, sigma float64) {
	a.Add(value, 1/(sigma*sigma))
}

// Merge folds in another accumulator.
func (a *Accumulator) Merge(o Accumulator) {
	a.WeightSum += o.WeightSum
	a.ValueSum += o.ValueSum
}

// Empty reports whether nothing has been accumulated.
func (a Accumulator) Empty() bool {
	return a.WeightSum == 0
}

// Mean returns V/W, or zero when empty.
func (a Accumulator) Mean() float64 {
	if a.Empty() {
		return 0
	}
	return a.ValueSum / a.WeightSum
}

// Err returns sqrt(1/W), or +Inf when empty.
func (a Accumulator) Err() float64 {
	if a.Empty() {
		return math.Inf(1)
	}
	return math.Sqrt(1 / a.WeightSum)
}

// shift moves the mean by delta without changing the weight.
func (a *Accumulator) shift(delta float64) {
	a.ValueSum += delta * a.WeightSum
}

// cosDecl returns cos(decl) floored at minCosDecl.
func cosDecl(decl float64) float64 {
	return math.Max(geometry.UnitVector(0, decl).X, minCosDecl)
}

// Position accumulates a sky position.
//
// RA values are unwrapped around the running mean before they are added, and
// RA weights are cos^2(decl) / sigma_onsky^2 so that on-sky errors turn into
// errors on the RA coordinate. Sums are in degrees weighted by arcsec^-2.
type Position struct {
	RA         Accumulator
	Decl       Accumulator
	Datapoints int
}

// PositionOf returns the accumulated position state of a catalog entry.
func PositionOf(e *entities.RunningCatalog) Position {
	return Position{
		RA:         Accumulator{WeightSum: e.RAWeightSum, ValueSum: e.RAValueSum},
		Decl:       Accumulator{WeightSum: e.DeclWeightSum, ValueSum: e.DeclValueSum},
		Datapoints: e.Datapoints,
	}
}

// AddDetection folds in one detection.
// raErr and declErr are on-sky 1-sigma errors in arcsec.
func (p *Position) AddDetection(ra, decl, raErr, declErr float64) {
	if !p.RA.Empty() {
		mean := p.RA.Mean()
		ra = mean + geometry.WrapRA(ra-mean)
	}
	c := cosDecl(decl)
	p.RA.Add(ra, c*c/(raErr*raErr))
	p.Decl.AddMeasurement(decl, declErr)
	p.Datapoints++
}

// Merge folds in another position, unwrapping its RA around this mean.
func (p *Position) Merge(o Position) {
	if !p.RA.Empty() && !o.RA.Empty() {
		mean, other := p.RA.Mean(), o.RA.Mean()
		o.RA.shift(geometry.WrapRA(other-mean) - (other - mean))
	}
	p.RA.Merge(o.RA)
	p.Decl.Merge(o.Decl)
	p.Datapoints += o.Datapoints
}

// normalize folds the RA mean into [0, 360).
func (p *Position) normalize() {
	mean := p.RA.Mean()
	if n := geometry.NormalizeRA(mean); n != mean {
		p.RA.shift(n - mean)
	}
}

// RAMean returns the weighted-mean RA in [0, 360) degrees.
func (p Position) RAMean() float64 {
	return geometry.NormalizeRA(p.RA.Mean())
}

// RAErr returns the on-sky RA error in arcsec at the mean declination.
func (p Position) RAErr() float64 {
	return cosDecl(p.Decl.Mean()) * p.RA.Err()
}

// ApplyTo writes the position state and derived columns to e.
func (p Position) ApplyTo(e *entities.RunningCatalog, zoneWidth float64) {
	p.normalize()

	e.WmRA = p.RAMean()
	e.WmDecl = p.Decl.Mean()
	e.WmRAErr = p.RAErr()
	e.WmDeclErr = p.Decl.Err()

	v := geometry.UnitVector(e.WmRA, e.WmDecl)
	e.X, e.Y, e.Z = v.X, v.Y, v.Z
	e.Zone = geometry.Zone(e.WmDecl, zoneWidth)

	e.RAWeightSum, e.RAValueSum = p.RA.WeightSum, p.RA.ValueSum
	e.DeclWeightSum, e.DeclValueSum = p.Decl.WeightSum, p.Decl.ValueSum
	e.Datapoints = p.Datapoints
}

// NewEntry seeds a catalog entry from a single detection.
func NewEntry(src *entities.ExtractedSource, zoneWidth float64, at time.Time) entities.RunningCatalog {
	var p Position
	p.AddDetection(src.RA, src.Decl, src.RAErr, src.DeclErr)

	e := entities.RunningCatalog{
		SeedSourceID: src.ID,
		LastUpdate:   at,
	}
	p.ApplyTo(&e, zoneWidth)
	return e
}

// Flux accumulates the flux of one entry in one band.
type Flux struct {
	Acc        Accumulator
	Datapoints int
}

// FluxOf returns the accumulated state of a flux row.
func FluxOf(row *entities.RunningCatalogFlux) Flux {
	return Flux{
		Acc:        Accumulator{WeightSum: row.FluxWeightSum, ValueSum: row.FluxValueSum},
		Datapoints: row.Datapoints,
	}
}

// AddDetection folds in one flux measurement in Jy.
func (f *Flux) AddDetection(flux, fluxErr float64) {
	f.Acc.AddMeasurement(flux, fluxErr)
	f.Datapoints++
}

// Merge folds in another flux state of the same band.
func (f *Flux) Merge(o Flux) {
	f.Acc.Merge(o.Acc)
	f.Datapoints += o.Datapoints
}

// Row returns the flux row for runcatID in bandID.
func (f Flux) Row(runcatID, bandID uint) entities.RunningCatalogFlux {
	return entities.RunningCatalogFlux{
		RuncatID:      runcatID,
		BandID:        bandID,
		WmFlux:        f.Acc.Mean(),
		WmFluxErr:     f.Acc.Err(),
		FluxWeightSum: f.Acc.WeightSum,
		FluxValueSum:  f.Acc.ValueSum,
		Datapoints:    f.Datapoints,
	}
}
