package model

import (
	"time"

	"gorm.io/datatypes"
)

// WildEncounter is the single pending catchable pokemon per trainer.
// Creating a new one replaces the old; a successful capture deletes it.
// Snapshot holds the catalog species record (stats, catch rate, sprite)
// frozen at generation time.
type WildEncounter struct {
	ID        int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	TrainerID int64          `gorm:"uniqueIndex:idx_wild_trainer;not null" json:"trainer_id"`
	Zone      int            `gorm:"not null" json:"zone"`
	SpeciesID int            `gorm:"not null" json:"species_id"`
	Level     int            `gorm:"not null" json:"level"`
	Shiny     bool           `gorm:"default:false" json:"is_shiny"`
	Gender    string         `gorm:"size:8" json:"genre"`
	Snapshot  datatypes.JSON `json:"snapshot"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
}
