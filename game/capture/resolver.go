// Package capture tracks each trainer's pending wild encounter and
// resolves capture throws against it.
package capture

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"

	"github.com/clicker-pokemon/server/cache"
	"github.com/clicker-pokemon/server/catalog"
	"github.com/clicker-pokemon/server/game/encounter"
	"github.com/clicker-pokemon/server/game/pokemon"
	"github.com/clicker-pokemon/server/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrNoPending is returned when a throw is attempted with no pending
// wild encounter in the zone.
var ErrNoPending = errors.New("capture: no pending wild encounter")

const (
	defaultCatchRate = 35
	rateBonus        = 1.5
	rateCeiling      = 0.95
)

// Probability converts a base catch rate into the capture probability:
// min(base/255 * 1.5, 0.95). A missing rate defaults to 35.
func Probability(catchRate *int) float64 {
	base := defaultCatchRate
	if catchRate != nil {
		base = *catchRate
	}
	p := float64(base) / 255.0 * rateBonus
	if p > rateCeiling {
		p = rateCeiling
	}
	if p < 0 {
		p = 0
	}
	return p
}

// Result is the outcome of one capture throw.
type Result struct {
	Caught bool                `json:"success"`
	Wild   *encounter.Wild     `json:"pokemon"`         // the target as displayed
	Owned  *model.OwnedPokemon `json:"ownedPokemon"`    // set on success
	Next   *encounter.Wild     `json:"nextWildPokemon"` // fresh encounter, set on success
}

// Resolver owns the pending-wild-encounter lifecycle. A successful
// capture persists the pokemon, assigns its move set and immediately
// re-rolls a fresh encounter for the same zone; a failed throw leaves
// the encounter in place.
type Resolver struct {
	db        *gorm.DB
	generator *encounter.Generator
	store     *pokemon.Store
	movesets  *pokemon.MoveSet
	pubsub    cache.PubSub
	rng       *rand.Rand
	logger    *zap.Logger
}

// NewResolver creates a Resolver. pubsub feeds the activity stream and
// may be nil in tests.
func NewResolver(db *gorm.DB, gen *encounter.Generator, store *pokemon.Store, movesets *pokemon.MoveSet, ps cache.PubSub, rng *rand.Rand, logger *zap.Logger) *Resolver {
	return &Resolver{
		db:        db,
		generator: gen,
		store:     store,
		movesets:  movesets,
		pubsub:    ps,
		rng:       rng,
		logger:    logger,
	}
}

// GetOrCreate returns the trainer's pending encounter for a zone,
// rolling a new one when none exists or the pending one belongs to a
// different zone.
func (r *Resolver) GetOrCreate(ctx context.Context, trainerID int64, zone int) (*encounter.Wild, error) {
	var row model.WildEncounter
	err := r.db.Where("trainer_id = ?", trainerID).First(&row).Error
	if err == nil && row.Zone == zone {
		return wildFromRow(&row)
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return r.Release(ctx, trainerID, zone)
}

// Release discards any pending encounter and rolls a fresh one for the
// zone.
func (r *Resolver) Release(ctx context.Context, trainerID int64, zone int) (*encounter.Wild, error) {
	if err := r.db.Where("trainer_id = ?", trainerID).Delete(&model.WildEncounter{}).Error; err != nil {
		return nil, err
	}
	wild, err := r.generator.GenerateWild(ctx, zone)
	if err != nil {
		return nil, err
	}
	snapshot, err := json.Marshal(wild.Species)
	if err != nil {
		return nil, err
	}
	row := model.WildEncounter{
		TrainerID: trainerID,
		Zone:      zone,
		SpeciesID: wild.SpeciesID,
		Level:     wild.Level,
		Shiny:     wild.Shiny,
		Gender:    wild.Gender,
		Snapshot:  datatypes.JSON(snapshot),
	}
	if err := r.db.Create(&row).Error; err != nil {
		return nil, err
	}
	return wild, nil
}

// Attempt resolves one throw at the trainer's pending encounter.
func (r *Resolver) Attempt(ctx context.Context, trainerID int64, zone int) (*Result, error) {
	var row model.WildEncounter
	err := r.db.Where("trainer_id = ? AND zone = ?", trainerID, zone).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoPending
	}
	if err != nil {
		return nil, err
	}
	wild, err := wildFromRow(&row)
	if err != nil {
		return nil, err
	}

	probability := Probability(wild.Species.CatchRate)
	success := r.rng.Float64() < probability

	r.recordAttempt(&row, success, probability)

	if !success {
		return &Result{Wild: wild}, nil
	}

	moves, err := r.movesets.Assign(ctx, row.SpeciesID, row.Level)
	if err != nil {
		return nil, err
	}
	owned := &model.OwnedPokemon{
		TrainerID: trainerID,
		SpeciesID: row.SpeciesID,
		Name:      wild.Species.Name,
		Level:     row.Level,
		Gender:    row.Gender,
		Shiny:     row.Shiny,
		Moves:     moves,
	}
	if err := r.store.Create(owned); err != nil {
		return nil, err
	}
	if err := r.db.Where("trainer_id = ?", trainerID).Delete(&model.WildEncounter{}).Error; err != nil {
		return nil, err
	}

	// Capturing never leaves the trainer without a pending target.
	next, err := r.Release(ctx, trainerID, zone)
	if err != nil {
		return nil, err
	}

	r.announce(ctx, trainerID, wild)
	r.logger.Info("pokemon captured",
		zap.Int64("trainer", trainerID),
		zap.Int("species", row.SpeciesID),
		zap.Int("level", row.Level),
		zap.Bool("shiny", row.Shiny))
	return &Result{Caught: true, Wild: wild, Owned: owned, Next: next}, nil
}

// announce publishes the capture to the activity feed. Best effort, a
// publish failure never fails the throw.
func (r *Resolver) announce(ctx context.Context, trainerID int64, wild *encounter.Wild) {
	if r.pubsub == nil {
		return
	}
	msg, _ := json.Marshal(map[string]interface{}{
		"type":      "capture",
		"trainerId": trainerID,
		"pokemon":   wild.Species.Name,
		"level":     wild.Level,
		"shiny":     wild.Shiny,
	})
	if err := r.pubsub.Publish(ctx, cache.ActivityChannel, string(msg)); err != nil {
		r.logger.Warn("activity publish failed", zap.Error(err))
	}
}

// recordAttempt appends a row to the throw history. History is best
// effort and never fails the throw.
func (r *Resolver) recordAttempt(row *model.WildEncounter, success bool, probability float64) {
	attempt := model.CaptureAttempt{
		TrainerID:   row.TrainerID,
		SpeciesID:   row.SpeciesID,
		Level:       row.Level,
		Success:     success,
		Probability: probability,
		Snapshot:    row.Snapshot,
	}
	if err := r.db.Create(&attempt).Error; err != nil {
		r.logger.Warn("capture history write failed", zap.Error(err))
	}
}

func wildFromRow(row *model.WildEncounter) (*encounter.Wild, error) {
	var sp catalog.Species
	if err := json.Unmarshal(row.Snapshot, &sp); err != nil {
		return nil, err
	}
	return &encounter.Wild{
		Zone:      row.Zone,
		SpeciesID: row.SpeciesID,
		Level:     row.Level,
		Shiny:     row.Shiny,
		Gender:    row.Gender,
		Species:   &sp,
	}, nil
}
