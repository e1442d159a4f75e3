package model

import (
	"time"

	"gorm.io/datatypes"
)

// CaptureAttempt records one throw at a wild pokemon, successful or not.
// Snapshot holds the wild pokemon as it appeared at the moment of the throw
// (species, level, stats, shiny) so the history survives catalog changes.
type CaptureAttempt struct {
	ID          int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	TrainerID   int64          `gorm:"index:idx_capture_trainer;not null" json:"trainer_id"`
	SpeciesID   int            `gorm:"not null" json:"species_id"`
	Level       int            `gorm:"not null" json:"level"`
	Success     bool           `gorm:"index:idx_capture_success" json:"success"`
	Probability float64        `json:"probability"`
	Rolls       int            `gorm:"default:1" json:"rolls"`
	Snapshot    datatypes.JSON `json:"snapshot"`
	CreatedAt   time.Time      `gorm:"index:idx_capture_created;autoCreateTime" json:"created_at"`
}
