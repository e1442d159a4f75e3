// Package encounter builds combat-ready opponents: the pending wild
// catch candidate, dungeon minions and the boss.
package encounter

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/clicker-pokemon/server/catalog"
	"github.com/clicker-pokemon/server/game/battle"
	"github.com/clicker-pokemon/server/game/stats"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// roster lists the species dungeon minions are drawn from.
var roster = []int{
	1, 4, 7, 25, 39, 52, 54, 58, 60, 63, 66, 69, 72, 74, 81, 84, 86, 90, 92, 95,
	100, 102, 104, 109, 111, 116, 118, 120, 129, 133, 138, 140, 147, 152, 155, 158,
}

// Wild is a pending catchable pokemon tracked per trainer.
type Wild struct {
	Zone      int              `json:"zone"`
	SpeciesID int              `json:"pokedexId"`
	Level     int              `json:"level"`
	Shiny     bool             `json:"isShiny"`
	Gender    string           `json:"genre"`
	Species   *catalog.Species `json:"pokemon"`
}

// Config tunes the wild level walk and shiny odds.
type Config struct {
	LevelCap  int // max wild level, default 60
	ShinyOdds int // 1-in-N shiny chance at level >= 10, default 300
}

// Generator rolls wild encounters and dungeon opponents. The random
// source is injected for deterministic tests.
type Generator struct {
	provider  catalog.Provider
	rng       *rand.Rand
	levelCap  int
	shinyOdds int
	logger    *zap.Logger
}

// New creates a Generator. Zero Config fields get defaults.
func New(provider catalog.Provider, rng *rand.Rand, cfg Config, logger *zap.Logger) *Generator {
	if cfg.LevelCap <= 0 {
		cfg.LevelCap = 60
	}
	if cfg.ShinyOdds <= 0 {
		cfg.ShinyOdds = 300
	}
	return &Generator{
		provider:  provider,
		rng:       rng,
		levelCap:  cfg.LevelCap,
		shinyOdds: cfg.ShinyOdds,
		logger:    logger,
	}
}

// GenerateWild rolls a fresh wild encounter for a zone: uniform species
// from the zone pool, biased-low level walk, shiny only from level 10,
// gender from the species' weight pair.
func (g *Generator) GenerateWild(ctx context.Context, zone int) (*Wild, error) {
	pool, err := g.provider.SpeciesPool(ctx, zone)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return nil, catalog.ErrEmptyPool
	}
	sp := pool[g.rng.Intn(len(pool))]
	level := g.rollLevel()
	return &Wild{
		Zone:      zone,
		SpeciesID: sp.ID,
		Level:     level,
		Shiny:     level >= 10 && g.rng.Intn(g.shinyOdds) == 0,
		Gender:    g.rollGender(sp.Gender),
		Species:   &sp,
	}, nil
}

// GenerateOpponents builds the full dungeon roster: one minion per
// spawn level drawn from the fixed minion roster, then the boss last.
func (g *Generator) GenerateOpponents(ctx context.Context, spawnLevels []int, bossSpeciesID, bossLevel int) ([]*battle.Combatant, error) {
	opponents, err := g.GenerateMinions(ctx, spawnLevels)
	if err != nil {
		return nil, err
	}
	boss, err := g.GenerateBoss(ctx, bossSpeciesID, bossLevel)
	if err != nil {
		return nil, err
	}
	return append(opponents, boss), nil
}

// GenerateMinions builds one roster minion per requested level.
func (g *Generator) GenerateMinions(ctx context.Context, levels []int) ([]*battle.Combatant, error) {
	minions := make([]*battle.Combatant, 0, len(levels))
	for _, level := range levels {
		speciesID := roster[g.rng.Intn(len(roster))]
		minion, err := g.buildOpponent(ctx, speciesID, level, false)
		if err != nil {
			return nil, err
		}
		minions = append(minions, minion)
	}
	return minions, nil
}

// GenerateBoss builds the curated boss combatant.
func (g *Generator) GenerateBoss(ctx context.Context, speciesID, level int) (*battle.Combatant, error) {
	return g.buildOpponent(ctx, speciesID, level, true)
}

// buildOpponent scales a species into a battle-ready combatant with a
// unique identity.
func (g *Generator) buildOpponent(ctx context.Context, speciesID, level int, boss bool) (*battle.Combatant, error) {
	sp, err := g.provider.SpeciesByID(ctx, speciesID)
	if err != nil {
		return nil, err
	}

	prefix, shinyOdds := "enemy", 20 // 5% shiny minions
	moves := g.minionMoves(level)
	if boss {
		prefix, shinyOdds = "boss", 10 // 10% shiny boss
		moves = bossMoves(speciesID)
	}

	gender := "male"
	if g.rng.Float64() < 0.5 {
		gender = "female"
	}

	c := &battle.Combatant{
		ID:        fmt.Sprintf("%s_%d_%d_%s", prefix, speciesID, level, uuid.NewString()),
		SpeciesID: speciesID,
		Name:      sp.Name,
		Level:     level,
		MaxHP:     stats.HP(sp.Stats.HP, level, 0),
		Attack:    stats.Stat(sp.Stats.Attack, level, 0),
		Defense:   stats.Stat(sp.Stats.Defense, level, 0),
		Speed:     stats.Speed(sp.Stats.Speed, level),
		Moves:     moves,
		Types:     sp.Types,
		Sprite:    sp.Sprite,
		Gender:    gender,
		Shiny:     g.rng.Intn(shinyOdds) == 0,
	}
	c.HP = c.MaxHP

	g.logger.Debug("opponent generated",
		zap.String("id", c.ID),
		zap.Int("species", speciesID),
		zap.Int("level", level),
		zap.Bool("boss", boss))
	return c, nil
}

// rollLevel draws 1..cap uniformly and retries high results with
// decreasing acceptance, approximating a decaying distribution.
func (g *Generator) rollLevel() int {
	for {
		lvl := g.rng.Intn(g.levelCap) + 1
		if (lvl > 59 && g.rng.Float64() > 1.0/4000) ||
			(lvl > 50 && g.rng.Float64() > 1.0/500) ||
			(lvl > 40 && g.rng.Float64() > 1.0/200) {
			continue
		}
		return lvl
	}
}

// rollGender draws from the male/female weight pair; "unknown" when the
// pair is absent or zero-sum.
func (g *Generator) rollGender(ratio *catalog.GenderRatio) string {
	if ratio == nil {
		return "unknown"
	}
	total := ratio.Male + ratio.Female
	if total <= 0 {
		return "unknown"
	}
	if g.rng.Float64()*total < ratio.Male {
		return "male"
	}
	return "female"
}
