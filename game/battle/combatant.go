package battle

// BattleMove is a move snapshot carried by a combatant for one battle.
// Power is nil for non-damaging moves; Accuracy nil means the move
// always hits.
type BattleMove struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Power       *int   `json:"power"`
	Accuracy    *int   `json:"accuracy"`
	PP          int    `json:"pp"`
	MaxPP       int    `json:"maxPp"`
	Priority    int    `json:"priority"`
	DamageClass string `json:"damageClass"`
}

// Usable reports whether the move can still be chosen this battle.
// Struggle (MaxPP 0) is always usable.
func (m *BattleMove) Usable() bool {
	return m.MaxPP == 0 || m.PP > 0
}

// Struggle is the zero-cost fallback used when a combatant has no PP
// left on any move.
func Struggle() *BattleMove {
	power := 20
	accuracy := 100
	return &BattleMove{
		Name:        "Lutte",
		Type:        "Normal",
		Power:       &power,
		Accuracy:    &accuracy,
		DamageClass: "physical",
	}
}

// Combatant is an ephemeral, battle-scoped stat and move snapshot built
// from an owned pokemon or a generated opponent. It lives for exactly
// one battle.
type Combatant struct {
	ID        string        `json:"id"`
	SpeciesID int           `json:"pokedexId"`
	Name      string        `json:"name"`
	Level     int           `json:"level"`
	HP        int           `json:"hp"`
	MaxHP     int           `json:"maxHp"`
	Attack    int           `json:"attack"`
	Defense   int           `json:"defense"`
	Speed     int           `json:"speed"`
	Moves     []*BattleMove `json:"moves"`
	Types     []string      `json:"types"`
	Sprite    string        `json:"sprite"`
	Gender    string        `json:"genre"`
	Shiny     bool          `json:"isShiny"`
	IsPlayer  bool          `json:"-"`
}

// KO reports whether the combatant is knocked out.
func (c *Combatant) KO() bool {
	return c.HP <= 0
}

// MoveByID finds an owned move. Returns nil if the combatant does not
// know it.
func (c *Combatant) MoveByID(id int64) *BattleMove {
	for _, m := range c.Moves {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// UsableMoves returns the moves with PP remaining.
func (c *Combatant) UsableMoves() []*BattleMove {
	var out []*BattleMove
	for _, m := range c.Moves {
		if m.Usable() {
			out = append(out, m)
		}
	}
	return out
}
