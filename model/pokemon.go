package model

import "time"

// OwnedPokemon is a pokemon captured by a trainer.
type OwnedPokemon struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TrainerID int64     `gorm:"index:idx_owned_trainer;not null" json:"trainer_id"`
	SpeciesID int       `gorm:"not null" json:"species_id"`
	Name      string    `gorm:"size:64" json:"name"`
	Level     int       `gorm:"not null" json:"level"`
	Gender    string    `gorm:"size:8" json:"gender"`
	Shiny     bool      `gorm:"default:false" json:"shiny"`
	BoostHP   int       `gorm:"default:0" json:"boost_hp"`
	BoostAtk  int       `gorm:"default:0" json:"boost_atk"`
	BoostDef  int       `gorm:"default:0" json:"boost_def"`
	TeamSlot  *int      `gorm:"index:idx_owned_slot" json:"team_slot"` // nil = not in the active team
	CaughtAt  time.Time `gorm:"autoCreateTime" json:"caught_at"`

	Moves []OwnedPokemonMove `gorm:"foreignKey:OwnedPokemonID" json:"moves"`
}

// OwnedPokemonMove is a move assigned to an owned pokemon.
// Power and Accuracy are nullable: status moves have neither.
type OwnedPokemonMove struct {
	ID             int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnedPokemonID int64  `gorm:"index:idx_move_owner;not null" json:"owned_pokemon_id"`
	Name           string `gorm:"size:64;not null" json:"name"`
	Type           string `gorm:"size:16" json:"type"`
	Power          *int   `json:"power"`
	Accuracy       *int   `json:"accuracy"`
	PP             int    `gorm:"default:10" json:"pp"`
	MaxPP          int    `gorm:"default:10" json:"max_pp"`
	Priority       int    `gorm:"default:0" json:"priority"`
	DamageClass    string `gorm:"size:16" json:"damage_class"`
}
