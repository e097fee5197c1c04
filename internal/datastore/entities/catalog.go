package entities

import (
	"time"

	"gorm.io/datatypes"
)

// RunningCatalog is one entry of the running catalog: the weighted-mean
// position of every detection merged into it so far.
type RunningCatalog struct {
	ID uint `gorm:"primaryKey"`

	// Seed detection; unique so creation is an atomic get-or-create.
	SeedSourceID uint `gorm:"not null;uniqueIndex:idx_runcat_seed"`

	WmRA      float64 `gorm:"column:wm_ra;not null"`
	WmDecl    float64 `gorm:"column:wm_decl;not null;index:idx_runcat_zone_decl,priority:2"`
	WmRAErr   float64 `gorm:"column:wm_ra_err;not null"`
	WmDeclErr float64 `gorm:"column:wm_decl_err;not null"`

	X    float64 `gorm:"not null"`
	Y    float64 `gorm:"not null"`
	Z    float64 `gorm:"not null"`
	Zone int     `gorm:"not null;index:idx_runcat_zone_decl,priority:1"`

	// Accumulated sums; RA values are unwrapped around the running mean.
	RAWeightSum   float64 `gorm:"column:ra_weight_sum;not null"`
	RAValueSum    float64 `gorm:"column:ra_value_sum;not null"`
	DeclWeightSum float64 `gorm:"column:decl_weight_sum;not null"`
	DeclValueSum  float64 `gorm:"column:decl_value_sum;not null"`

	Datapoints int `gorm:"not null"`

	GroupHeadID *uint `gorm:"index"`
	Deleted     bool  `gorm:"not null;default:false;index"`

	// Cached spectral fit.
	SpectralOrder     *int
	SpectralCoeffs    datatypes.JSON
	SpectralChiSquare float64
	SpectralBands     int        // bands that entered the fit
	LastFit           *time.Time `gorm:"precision:6"`

	// Revision increments on every write to the position or flux state.
	Revision   int64     `gorm:"not null;default:0"`
	LastUpdate time.Time `gorm:"precision:6;not null"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

// TableName returns the table name for GORM.
func (RunningCatalog) TableName() string {
	return "running_catalog"
}

// Dirty reports whether the cached spectral fit is stale.
func (r *RunningCatalog) Dirty() bool {
	return r.LastFit == nil || r.LastUpdate.After(*r.LastFit)
}

// RunningCatalogFlux accumulates the flux of one catalog entry in one band.
type RunningCatalogFlux struct {
	RuncatID uint `gorm:"primaryKey;autoIncrement:false"`
	BandID   uint `gorm:"primaryKey;autoIncrement:false"`

	WmFlux    float64 `gorm:"not null"`
	WmFluxErr float64 `gorm:"not null"`

	FluxWeightSum float64 `gorm:"not null"`
	FluxValueSum  float64 `gorm:"not null"`

	Datapoints int `gorm:"not null"`
}

// TableName returns the table name for GORM.
func (RunningCatalogFlux) TableName() string {
	return "running_catalog_flux"
}
