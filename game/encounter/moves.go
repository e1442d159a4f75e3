package encounter

import "github.com/clicker-pokemon/server/game/battle"

func intp(v int) *int { return &v }

// minionMoves returns the canned minion move set, sized by level:
// min(4, level/10 + 2) moves.
func (g *Generator) minionMoves(level int) []*battle.BattleMove {
	canned := []*battle.BattleMove{
		{ID: 1, Name: "Charge", Type: "Normal", Power: intp(40), Accuracy: intp(100),
			PP: 35, MaxPP: 35, DamageClass: "physical"},
		{ID: 2, Name: "Rugissement", Type: "Normal", Accuracy: intp(100),
			PP: 40, MaxPP: 40, DamageClass: "status"},
		{ID: 3, Name: "Vive-Attaque", Type: "Normal", Power: intp(40), Accuracy: intp(100),
			PP: 30, MaxPP: 30, Priority: 1, DamageClass: "physical"},
		{ID: 4, Name: "Morsure", Type: "Ténèbres", Power: intp(60), Accuracy: intp(100),
			PP: 25, MaxPP: 25, DamageClass: "physical"},
	}
	n := level/10 + 2
	if n > 4 {
		n = 4
	}
	return canned[:n]
}

// bossMoves returns the curated boss move set. Mew gets its own themed
// set; every other boss shares a generic heavy-hitter pair.
func bossMoves(speciesID int) []*battle.BattleMove {
	if speciesID == 151 {
		return []*battle.BattleMove{
			{ID: 1, Name: "Psyko", Type: "Psy", Power: intp(70), Accuracy: intp(100),
				PP: 20, MaxPP: 20, DamageClass: "special"},
			{ID: 2, Name: "Ombre Portée", Type: "Spectre", Power: intp(60), Accuracy: intp(100),
				PP: 15, MaxPP: 15, DamageClass: "special"},
			{ID: 3, Name: "Lance-Flammes", Type: "Feu", Power: intp(65), Accuracy: intp(95),
				PP: 15, MaxPP: 15, DamageClass: "special"},
			{ID: 4, Name: "Tonnerre", Type: "Électrik", Power: intp(65), Accuracy: intp(95),
				PP: 15, MaxPP: 15, DamageClass: "special"},
		}
	}
	return []*battle.BattleMove{
		{ID: 1, Name: "Charge Puissante", Type: "Normal", Power: intp(80), Accuracy: intp(100),
			PP: 15, MaxPP: 15, DamageClass: "physical"},
		{ID: 2, Name: "Attaque Ultime", Type: "Normal", Power: intp(100), Accuracy: intp(85),
			PP: 10, MaxPP: 10, DamageClass: "physical"},
	}
}
