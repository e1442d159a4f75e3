// Package pokemon manages trainer-owned pokemon: persistence, move-set
// assignment after capture and battle combatant construction.
package pokemon

import (
	"errors"

	"github.com/clicker-pokemon/server/model"
	"gorm.io/gorm"
)

// ErrNotOwned is returned when a pokemon id does not belong to the trainer.
var ErrNotOwned = errors.New("pokemon: not owned by trainer")

// Store persists owned pokemon and their moves.
type Store struct {
	db *gorm.DB
}

// NewStore creates a Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// ListByTrainer returns every pokemon the trainer owns, moves included.
func (s *Store) ListByTrainer(trainerID int64) ([]model.OwnedPokemon, error) {
	var owned []model.OwnedPokemon
	err := s.db.Preload("Moves").
		Where("trainer_id = ?", trainerID).
		Order("caught_at DESC").
		Find(&owned).Error
	return owned, err
}

// Get returns one owned pokemon with its moves, ErrNotOwned when the id
// does not belong to the trainer.
func (s *Store) Get(trainerID, id int64) (*model.OwnedPokemon, error) {
	var owned model.OwnedPokemon
	err := s.db.Preload("Moves").
		Where("id = ? AND trainer_id = ?", id, trainerID).
		First(&owned).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotOwned
	}
	if err != nil {
		return nil, err
	}
	return &owned, nil
}

// GetTeam loads the given pokemon ids, verifying all belong to the
// trainer. The result preserves the requested order.
func (s *Store) GetTeam(trainerID int64, ids []int64) ([]model.OwnedPokemon, error) {
	var owned []model.OwnedPokemon
	err := s.db.Preload("Moves").
		Where("trainer_id = ? AND id IN ?", trainerID, ids).
		Find(&owned).Error
	if err != nil {
		return nil, err
	}
	if len(owned) != len(ids) {
		return nil, ErrNotOwned
	}
	byID := make(map[int64]model.OwnedPokemon, len(owned))
	for _, o := range owned {
		byID[o.ID] = o
	}
	team := make([]model.OwnedPokemon, 0, len(ids))
	for _, id := range ids {
		team = append(team, byID[id])
	}
	return team, nil
}

// Create persists a newly captured pokemon together with its moves.
func (s *Store) Create(owned *model.OwnedPokemon) error {
	return s.db.Create(owned).Error
}

// Release deletes an owned pokemon and its moves. Moves go first: the
// foreign key has no cascade and sqlite enforces it.
func (s *Store) Release(trainerID, id int64) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var owned model.OwnedPokemon
		err := tx.Where("id = ? AND trainer_id = ?", id, trainerID).
			First(&owned).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotOwned
		}
		if err != nil {
			return err
		}
		if err := tx.Where("owned_pokemon_id = ?", id).
			Delete(&model.OwnedPokemonMove{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.OwnedPokemon{}, id).Error
	})
}
