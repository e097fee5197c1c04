package entities

import "time"

// ImageStatus is the persisted processing state of an image.
type ImageStatus string

const (
	ImageStatusUnprocessed ImageStatus = "unprocessed"
	ImageStatusProcessed   ImageStatus = "processed"
)

// Image is one observation whose detections are merged into the catalog.
type Image struct {
	ID        uint        `gorm:"primaryKey"`
	BandID    uint        `gorm:"not null;index"`
	Frequency float64     `gorm:"not null"` // effective frequency, Hz
	Status    ImageStatus `gorm:"type:varchar(16);not null;default:unprocessed;index"`

	// Stamped when the image is marked processed.
	Version     string     `gorm:"type:varchar(64)"`
	RunID       string     `gorm:"type:varchar(36)"`
	ProcessedAt *time.Time `gorm:"precision:6"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName returns the table name for GORM.
func (Image) TableName() string {
	return "images"
}

// IsProcessed reports whether the image has been merged into the catalog.
func (i *Image) IsProcessed() bool {
	return i.Status == ImageStatusProcessed
}

// Band is a frequency band. Its id is assigned by the survey, not the store.
type Band struct {
	ID              uint    `gorm:"primaryKey;autoIncrement:false"`
	CenterFrequency float64 `gorm:"not null"` // Hz
	Bandwidth       float64 // Hz, zero when unknown
}

// TableName returns the table name for GORM.
func (Band) TableName() string {
	return "frequency_bands"
}
