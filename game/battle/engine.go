package battle

import (
	"errors"
	"math/rand"
	"sync"

	"go.uber.org/zap"
)

// ErrInvalidMove is returned when a chosen move is not owned by the
// actor or has no PP left. The turn is not advanced.
var ErrInvalidMove = errors.New("battle: invalid move")

const (
	critChance     = 0.10
	critMultiplier = 1.5
	typeMultiplier = 1.0 // no type chart
)

// ActionResult is the outcome of one actor's move within a turn.
type ActionResult struct {
	ActorID     string `json:"attacker"`
	TargetID    string `json:"defender"`
	Move        string `json:"move"`
	Hit         bool   `json:"hit"`
	Damage      int    `json:"damage"`
	Critical    bool   `json:"isCritical"`
	RemainingHP int    `json:"remainingHp"`
	TargetKO    bool   `json:"targetKo"`
}

// TurnResult is the ordered list of action outcomes for one resolved turn.
type TurnResult struct {
	Actions  []ActionResult `json:"actions"`
	PlayerKO bool           `json:"playerKo"`
	EnemyKO  bool           `json:"enemyKo"`
}

// Engine resolves battle turns. The random source is injected so tests
// can run deterministic sequences; the mutex serializes it across
// concurrent battles.
type Engine struct {
	mu     sync.Mutex
	rng    *rand.Rand
	logger *zap.Logger
}

// NewEngine creates a battle engine around the given random source.
func NewEngine(rng *rand.Rand, logger *zap.Logger) *Engine {
	return &Engine{rng: rng, logger: logger}
}

// AutoMove picks a move for a combatant: uniform among moves with PP
// remaining, Struggle when none are left.
func (e *Engine) AutoMove(c *Combatant) *BattleMove {
	usable := c.UsableMoves()
	if len(usable) == 0 {
		return Struggle()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return usable[e.rng.Intn(len(usable))]
}

// ResolveTurn resolves one full turn: both actors act in priority order
// (priority desc, then speed desc, player first on full ties), each
// skipped if already knocked out by the earlier actor. The player's
// move is validated; the enemy's move is engine-chosen and trusted.
func (e *Engine) ResolveTurn(player *Combatant, playerMove *BattleMove, enemy *Combatant, enemyMove *BattleMove) (*TurnResult, error) {
	if err := e.validateMove(player, playerMove); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	type turnAction struct {
		actor, target *Combatant
		move          *BattleMove
	}
	actions := []turnAction{
		{actor: player, target: enemy, move: playerMove},
		{actor: enemy, target: player, move: enemyMove},
	}
	if e.enemyFirst(playerMove, enemyMove, player, enemy) {
		actions[0], actions[1] = actions[1], actions[0]
	}

	result := &TurnResult{}
	for _, a := range actions {
		if a.actor.KO() || a.target.KO() {
			continue
		}
		result.Actions = append(result.Actions, e.performAction(a.actor, a.target, a.move))
	}
	result.PlayerKO = player.KO()
	result.EnemyKO = enemy.KO()
	return result, nil
}

// validateMove rejects moves the actor does not own or cannot pay for.
func (e *Engine) validateMove(actor *Combatant, move *BattleMove) error {
	if move == nil {
		return ErrInvalidMove
	}
	if move.MaxPP == 0 {
		// Struggle: only legal when nothing else is usable.
		return nil
	}
	owned := false
	for _, m := range actor.Moves {
		if m == move || m.ID == move.ID {
			owned = true
			break
		}
	}
	if !owned || move.PP <= 0 {
		return ErrInvalidMove
	}
	return nil
}

// enemyFirst decides turn order. The player acts first on every full tie.
func (e *Engine) enemyFirst(playerMove, enemyMove *BattleMove, player, enemy *Combatant) bool {
	if enemyMove.Priority != playerMove.Priority {
		return enemyMove.Priority > playerMove.Priority
	}
	return enemy.Speed > player.Speed
}

// performAction runs the accuracy check, applies damage and consumes PP.
func (e *Engine) performAction(actor, target *Combatant, move *BattleMove) ActionResult {
	res := ActionResult{
		ActorID:  actor.ID,
		TargetID: target.ID,
		Move:     move.Name,
	}

	// PP is spent whether or not the move lands.
	if move.MaxPP > 0 && move.PP > 0 {
		move.PP--
	}

	accuracy := 100.0
	if move.Accuracy != nil {
		accuracy = float64(*move.Accuracy)
	}
	if e.rng.Float64()*100 > accuracy {
		if e.logger != nil {
			e.logger.Debug("move missed",
				zap.String("actor", actor.ID), zap.String("move", move.Name))
		}
		res.RemainingHP = target.HP
		return res
	}
	res.Hit = true

	if move.Power != nil && *move.Power > 0 {
		res.Damage, res.Critical = e.damage(actor, target, *move.Power)
		target.HP -= res.Damage
		if target.HP < 0 {
			target.HP = 0
		}
	}
	res.RemainingHP = target.HP
	res.TargetKO = target.KO()
	return res
}

// damage computes the hit's damage:
// floor((((2L+10)/250) * (atk/def) * power + 2) * typeMult * randomFactor)
// with randomFactor uniform in [0.85, 1.00] and an independent 10% crit
// multiplying the total by 1.5. Minimum 1 whenever power > 0.
func (e *Engine) damage(actor, target *Combatant, power int) (int, bool) {
	levelFactor := float64(2*actor.Level+10) / 250.0
	ratio := float64(actor.Attack) / float64(target.Defense)
	base := levelFactor*ratio*float64(power) + 2

	randomFactor := 0.85 + e.rng.Float64()*0.15
	total := base * typeMultiplier * randomFactor

	crit := e.rng.Float64() < critChance
	if crit {
		total *= critMultiplier
	}

	dmg := int(total)
	if dmg < 1 {
		dmg = 1
	}
	return dmg, crit
}
