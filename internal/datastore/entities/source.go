package entities

// SourceKind distinguishes point from extended detections. Each kind has its
// own association threshold.
type SourceKind int8

const (
	SourceKindPoint    SourceKind = 0
	SourceKindExtended SourceKind = 1
)

// String returns the kind name used in ingest files and logs.
func (k SourceKind) String() string {
	switch k {
	case SourceKindPoint:
		return "point"
	case SourceKindExtended:
		return "extended"
	default:
		return "unknown"
	}
}

// ExtractedSource is a single detection in one image. Immutable after ingest.
type ExtractedSource struct {
	ID      uint `gorm:"primaryKey"`
	ImageID uint `gorm:"not null;index:idx_source_image"`

	RA      float64 `gorm:"column:ra;not null"`
	Decl    float64 `gorm:"column:decl;not null"`
	RAErr   float64 `gorm:"column:ra_err;not null"`
	DeclErr float64 `gorm:"column:decl_err;not null"`

	// Derived at ingest from RA/Decl.
	X    float64 `gorm:"not null"`
	Y    float64 `gorm:"not null"`
	Z    float64 `gorm:"not null"`
	Zone int     `gorm:"not null;index:idx_source_zone"`

	Flux    float64    `gorm:"not null"` // Jy
	FluxErr float64    `gorm:"not null"` // Jy
	Kind    SourceKind `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM.
func (ExtractedSource) TableName() string {
	return "extracted_sources"
}
