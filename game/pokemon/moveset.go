package pokemon

import (
	"context"
	"errors"
	"math/rand"

	"github.com/clicker-pokemon/server/catalog"
	"github.com/clicker-pokemon/server/model"
	"go.uber.org/zap"
)

// ErrNoMoves is returned when the catalog has no learnable moves for a
// species at the given level. Capture must not produce a moveless pokemon.
var ErrNoMoves = errors.New("pokemon: no learnable moves")

// MoveSet assigns moves to freshly captured pokemon from the catalog
// learnset. The catalog client caches learnsets, so repeated captures of
// the same species stay cheap.
type MoveSet struct {
	provider catalog.Provider
	rng      *rand.Rand
	logger   *zap.Logger
}

// NewMoveSet creates a MoveSet service.
func NewMoveSet(provider catalog.Provider, rng *rand.Rand, logger *zap.Logger) *MoveSet {
	return &MoveSet{provider: provider, rng: rng, logger: logger}
}

// Assign returns up to 4 moves for a species at a level, drawn at random
// from the learnable set. Catalog failures propagate.
func (m *MoveSet) Assign(ctx context.Context, speciesID, level int) ([]model.OwnedPokemonMove, error) {
	learnable, err := m.provider.MovesForSpecies(ctx, speciesID, level)
	if err != nil {
		return nil, err
	}
	if len(learnable) == 0 {
		return nil, ErrNoMoves
	}

	m.rng.Shuffle(len(learnable), func(i, j int) {
		learnable[i], learnable[j] = learnable[j], learnable[i]
	})
	if len(learnable) > 4 {
		learnable = learnable[:4]
	}

	out := make([]model.OwnedPokemonMove, 0, len(learnable))
	for _, mv := range learnable {
		out = append(out, model.OwnedPokemonMove{
			Name:        mv.Name,
			Type:        mv.Type,
			Power:       mv.Power,
			Accuracy:    mv.Accuracy,
			PP:          mv.PP,
			MaxPP:       mv.PP,
			Priority:    mv.Priority,
			DamageClass: mv.DamageClass,
		})
	}
	m.logger.Debug("move set assigned",
		zap.Int("species", speciesID), zap.Int("level", level), zap.Int("moves", len(out)))
	return out, nil
}
