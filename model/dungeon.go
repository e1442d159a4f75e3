package model

import "gorm.io/datatypes"

// Dungeon is a configured dungeon run: a chain of wild minions ending
// in a fixed boss. Zone selects the species pool minions are drawn from.
type Dungeon struct {
	ID            int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Name          string         `gorm:"size:64;not null" json:"name"`
	Zone          int            `gorm:"not null" json:"zone"`
	BossSpeciesID int            `gorm:"not null" json:"boss_species_id"`
	BossLevel     int            `gorm:"not null" json:"boss_level"`
	MinionCount   int            `gorm:"default:3" json:"minion_count"`
	SpawnLevels   datatypes.JSON `json:"spawn_levels"` // minion levels, e.g. [15,17,20]
	Rewards       datatypes.JSON `json:"rewards"`
	Enabled       bool           `json:"enabled"` // no column default: gorm would drop an explicit false on Create
}
