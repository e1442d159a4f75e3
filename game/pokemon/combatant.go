package pokemon

import (
	"fmt"

	"github.com/clicker-pokemon/server/catalog"
	"github.com/clicker-pokemon/server/game/battle"
	"github.com/clicker-pokemon/server/game/stats"
	"github.com/clicker-pokemon/server/model"
)

// BuildCombatant turns an owned pokemon plus its catalog record into a
// battle-scoped snapshot. Boosts apply to HP, attack and defense; speed
// takes none.
func BuildCombatant(owned *model.OwnedPokemon, sp *catalog.Species) *battle.Combatant {
	name := owned.Name
	if name == "" {
		name = sp.Name
	}

	moves := make([]*battle.BattleMove, 0, len(owned.Moves))
	for _, m := range owned.Moves {
		// MaxPP 0 would make the move read as Struggle in the engine;
		// rows without the column fall back to the current PP.
		maxPP := m.MaxPP
		if maxPP == 0 {
			maxPP = m.PP
		}
		moves = append(moves, &battle.BattleMove{
			ID:          m.ID,
			Name:        m.Name,
			Type:        m.Type,
			Power:       m.Power,
			Accuracy:    m.Accuracy,
			PP:          m.PP,
			MaxPP:       maxPP,
			Priority:    m.Priority,
			DamageClass: m.DamageClass,
		})
	}

	c := &battle.Combatant{
		ID:        fmt.Sprintf("owned_%d", owned.ID),
		SpeciesID: owned.SpeciesID,
		Name:      name,
		Level:     owned.Level,
		MaxHP:     stats.HP(sp.Stats.HP, owned.Level, owned.BoostHP),
		Attack:    stats.Stat(sp.Stats.Attack, owned.Level, owned.BoostAtk),
		Defense:   stats.Stat(sp.Stats.Defense, owned.Level, owned.BoostDef),
		Speed:     stats.Speed(sp.Stats.Speed, owned.Level),
		Moves:     moves,
		Types:     sp.Types,
		Sprite:    sp.Sprite,
		Gender:    owned.Gender,
		Shiny:     owned.Shiny,
		IsPlayer:  true,
	}
	c.HP = c.MaxHP
	return c
}

// OwnedID parses the database id back out of a player combatant id.
func OwnedID(combatantID string) (int64, bool) {
	var id int64
	if _, err := fmt.Sscanf(combatantID, "owned_%d", &id); err != nil {
		return 0, false
	}
	return id, true
}
