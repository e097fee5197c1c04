package entities

// Relation is the multiplicity class of an association.
type Relation string

const (
	RelationNone       Relation = ""
	RelationNew        Relation = "new"
	RelationOneToOne   Relation = "1-1"
	RelationManyToOne  Relation = "n-1"
	RelationOneToMany  Relation = "1-n"
	RelationManyToMany Relation = "n-m"
)

// Association is a scratch candidate link produced by the matcher for one
// image. Rows for an image are cleared at the start of each run.
type Association struct {
	ID       uint `gorm:"primaryKey"`
	ImageID  uint `gorm:"not null;index:idx_assoc_image"`
	SourceID uint `gorm:"not null;index:idx_assoc_source"`
	RuncatID uint `gorm:"not null;index:idx_assoc_runcat"`

	SourceKind     SourceKind `gorm:"not null"`
	DistanceArcsec float64    `gorm:"not null"`
	R              float64    `gorm:"column:r;not null"` // de Ruiter radius
	Relation       Relation   `gorm:"type:varchar(8);not null;default:''"`
}

// TableName returns the table name for GORM.
func (Association) TableName() string {
	return "associations"
}

// CatalogMembership records the catalog entry each detection was merged into.
// RuncatID is the entry at merge time; follow group_head_id for the live entry.
type CatalogMembership struct {
	SourceID uint `gorm:"primaryKey;autoIncrement:false"`
	RuncatID uint `gorm:"not null;index"`
	ImageID  uint `gorm:"not null;index"`

	Relation       Relation `gorm:"type:varchar(8);not null"`
	DistanceArcsec float64
	R              float64 `gorm:"column:r"`
}

// TableName returns the table name for GORM.
func (CatalogMembership) TableName() string {
	return "catalog_memberships"
}

// All returns every model, in migration order.
func All() []any {
	return []any{
		&Band{},
		&Image{},
		&ExtractedSource{},
		&RunningCatalog{},
		&RunningCatalogFlux{},
		&Association{},
		&CatalogMembership{},
	}
}
