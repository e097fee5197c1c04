package testutil

import (
	"github.com/tphakala/runcat/internal/datastore/entities"
	"github.com/tphakala/runcat/internal/geometry"
)

// SourceBuilder provides a fluent API for building test detections.
type SourceBuilder struct {
	src entities.ExtractedSource
}

// NewSource creates a point detection at ra, decl with 1 arcsec errors and a
// 1 Jy flux.
func NewSource(ra, decl float64) *SourceBuilder {
	return &SourceBuilder{
		src: entities.ExtractedSource{
			RA:      ra,
			Decl:    decl,
			RAErr:   1,
			DeclErr: 1,
			Flux:    1,
			FluxErr: 0.1,
			Kind:    entities.SourceKindPoint,
		},
	}
}

// WithErrors sets the RA and declination errors in arcsec.
func (b *SourceBuilder) WithErrors(raErr, declErr float64) *SourceBuilder {
	b.src.RAErr = raErr
	b.src.DeclErr = declErr
	return b
}

// WithFlux sets the flux and flux error in Jy.
func (b *SourceBuilder) WithFlux(flux, fluxErr float64) *SourceBuilder {
	b.src.Flux = flux
	b.src.FluxErr = fluxErr
	return b
}

// Extended marks the detection as extended.
func (b *SourceBuilder) Extended() *SourceBuilder {
	b.src.Kind = entities.SourceKindExtended
	return b
}

// Build returns the detection for imageID with derived columns filled.
func (b *SourceBuilder) Build(imageID uint, zoneWidth float64) entities.ExtractedSource {
	src := b.src
	src.ImageID = imageID
	v := geometry.UnitVector(src.RA, src.Decl)
	src.X, src.Y, src.Z = v.X, v.Y, v.Z
	src.Zone = geometry.Zone(src.Decl, zoneWidth)
	return src
}

// OffsetArcsec returns ra, decl shifted by dra (on sky) and ddecl arcseconds.
func OffsetArcsec(ra, decl, dra, ddecl float64) (float64, float64) {
	cosDec := geometry.UnitVector(0, decl).X
	return geometry.NormalizeRA(ra + geometry.ArcsecToDeg(dra)/cosDec), decl + geometry.ArcsecToDeg(ddecl)
}
