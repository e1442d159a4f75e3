package catalog

import (
	"context"
	"errors"
	"strconv"
)

// ErrEmptyPool is returned when a zone's species pool has no entries.
var ErrEmptyPool = errors.New("catalog: empty species pool")

// ErrUpstream is returned when the upstream catalog API cannot be reached
// and no fallback applies.
var ErrUpstream = errors.New("catalog: upstream unavailable")

// BaseStats are the species base stats used for combat scaling.
type BaseStats struct {
	HP      int `json:"hp"`
	Attack  int `json:"atk"`
	Defense int `json:"def"`
	Speed   int `json:"spe"`
}

// GenderRatio is the male/female spawn weight pair. A nil ratio or a
// zero-sum pair means the species has no gender.
type GenderRatio struct {
	Male   float64 `json:"male"`
	Female float64 `json:"female"`
}

// Species is the catalog record for one pokedex entry.
type Species struct {
	ID        int          `json:"pokedex_id"`
	Name      string       `json:"name"`
	Sprite    string       `json:"sprite"`
	Types     []string     `json:"types"`
	CatchRate *int         `json:"catch_rate"` // nil = unknown, capture falls back to its default
	Stats     BaseStats    `json:"stats"`
	Gender    *GenderRatio `json:"gender"`
}

// Move is a learnable move as served by the catalog. Power and Accuracy
// are nil for status moves and always-hit moves respectively. Level is
// the level the species learns it at (0 = machine/tutor move).
type Move struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Power       *int   `json:"power"`
	Accuracy    *int   `json:"accuracy"`
	PP          int    `json:"pp"`
	Priority    int    `json:"priority"`
	DamageClass string `json:"damage_class"`
	Level       int    `json:"level"`
}

// Provider serves species and learnset data.
//
// SpeciesByID degrades to Fallback on upstream failure so display and
// battle paths keep working; SpeciesPool and MovesForSpecies propagate
// failures because capture correctness depends on them.
type Provider interface {
	SpeciesByID(ctx context.Context, id int) (*Species, error)
	SpeciesPool(ctx context.Context, zone int) ([]Species, error)
	MovesForSpecies(ctx context.Context, speciesID, level int) ([]Move, error)
}

// Fallback returns the documented default record served when the
// upstream catalog is unreachable: a generic name, modest base stats
// and no catch rate.
func Fallback(id int) *Species {
	return &Species{
		ID:    id,
		Name:  "Species " + strconv.Itoa(id),
		Types: []string{"Normal"},
		Stats: BaseStats{HP: 45, Attack: 49, Defense: 49, Speed: 45},
	}
}
