// Package arena runs player-driven battles: the trainer picks every
// move itself, unlike the scheduler-paced dungeon loop. A battle pits
// the trainer's team against generated wild opponents, optionally
// capped by a dungeon boss.
package arena

import (
	"context"
	"errors"
	"math/rand"
	"sync"

	"github.com/clicker-pokemon/server/catalog"
	"github.com/clicker-pokemon/server/game/battle"
	"github.com/clicker-pokemon/server/game/encounter"
	"github.com/clicker-pokemon/server/game/pokemon"
	"github.com/clicker-pokemon/server/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrNoBattle is returned when the trainer has no live battle.
	ErrNoBattle = errors.New("arena: no active battle")
	// ErrInvalidTeamSize is returned when the selected team is not
	// exactly the required size.
	ErrInvalidTeamSize = errors.New("arena: invalid team size")
	// ErrInvalidSelection is returned when the chosen pokemon is not in
	// the team or already knocked out.
	ErrInvalidSelection = errors.New("arena: invalid selection")
	// ErrWrongPhase is returned when the action does not fit the battle
	// phase, an attack before any pokemon entered the field for one.
	ErrWrongPhase = errors.New("arena: wrong phase")
	// ErrNotAvailable is returned when the requested boss dungeon does
	// not exist or is disabled.
	ErrNotAvailable = errors.New("arena: dungeon not available")
)

// Phase is the battle's turn-taking state.
type Phase string

const (
	// PhaseSelection awaits the first pokemon pick.
	PhaseSelection Phase = "SELECTION"
	// PhaseAttack awaits the next move choice.
	PhaseAttack Phase = "ATTACK"
	// PhaseSwitch awaits a forced replacement after a knockout.
	PhaseSwitch Phase = "SWITCH"
)

// Battle outcome labels, terminal.
const (
	ResultVictory = "VICTORY"
	ResultDefeat  = "DEFEAT"
)

// Battle is one trainer's live manual battle. All fields are guarded by
// mu; there are no scheduler continuations, every mutation is a gateway
// call.
type Battle struct {
	mu sync.Mutex

	ID         string
	TrainerID  int64
	PlayerTeam []*battle.Combatant
	EnemyTeam  []*battle.Combatant
	Player     *battle.Combatant
	Enemy      *battle.Combatant
	Turn       int
	Phase      Phase
	Defeated   int
}

// member returns the team combatant for an owned pokemon id.
func (b *Battle) member(ownedID int64) *battle.Combatant {
	for _, c := range b.PlayerTeam {
		if id, ok := pokemon.OwnedID(c.ID); ok && id == ownedID {
			return c
		}
	}
	return nil
}

// living returns the team members still standing.
func (b *Battle) living() []*battle.Combatant {
	var out []*battle.Combatant
	for _, c := range b.PlayerTeam {
		if !c.KO() {
			out = append(out, c)
		}
	}
	return out
}

// nextEnemy returns the first enemy still standing, nil when the whole
// opposing team is down.
func (b *Battle) nextEnemy() *battle.Combatant {
	for _, c := range b.EnemyTeam {
		if !c.KO() {
			return c
		}
	}
	return nil
}

// Config tunes battle shape. Zero fields get defaults.
type Config struct {
	TeamSize   int
	EnemyCount int // wild opponents per battle, boss excluded
}

// Manager owns every trainer's manual battle. The manager mutex guards
// only the battle map; each battle carries its own lock.
type Manager struct {
	mu      sync.Mutex
	battles map[int64]*Battle

	db        *gorm.DB
	provider  catalog.Provider
	generator *encounter.Generator
	engine    *battle.Engine
	store     *pokemon.Store
	rngMu     sync.Mutex
	rng       *rand.Rand
	cfg       Config
	logger    *zap.Logger
}

// NewManager creates a Manager.
func NewManager(db *gorm.DB, provider catalog.Provider, gen *encounter.Generator, engine *battle.Engine,
	store *pokemon.Store, rng *rand.Rand, cfg Config, logger *zap.Logger) *Manager {
	if cfg.TeamSize <= 0 {
		cfg.TeamSize = 4
	}
	if cfg.EnemyCount <= 0 {
		cfg.EnemyCount = 3
	}
	return &Manager{
		battles:   make(map[int64]*Battle),
		db:        db,
		provider:  provider,
		generator: gen,
		engine:    engine,
		store:     store,
		rng:       rng,
		cfg:       cfg,
		logger:    logger,
	}
}

// Created describes a freshly set up battle. The enemy move sets are
// concealed.
type Created struct {
	BattleID   string              `json:"battleId"`
	PlayerTeam []*battle.Combatant `json:"playerTeam"`
	EnemyTeam  []*battle.Combatant `json:"aiTeam"`
}

// Started reports the matchup after a pokemon enters the field.
type Started struct {
	Player *battle.Combatant `json:"playerPokemon"`
	Enemy  *battle.Combatant `json:"aiPokemon"`
	Phase  Phase             `json:"phase"`
}

// TurnOutcome is one resolved turn plus whatever it forced: a terminal
// result, a forced switch, or the next enemy stepping in.
type TurnOutcome struct {
	Turn    int                   `json:"turn"`
	Actions []battle.ActionResult `json:"results"`
	Player  *battle.Combatant     `json:"playerPokemon"`
	Enemy   *battle.Combatant     `json:"aiPokemon"`

	Result      string              `json:"result,omitempty"`
	ForceSwitch []*battle.Combatant `json:"availablePokemon,omitempty"`
	NextEnemy   *battle.Combatant   `json:"newAiPokemon,omitempty"`
}

// Switched reports a succeeded player switch.
type Switched struct {
	Player *battle.Combatant `json:"newPokemon"`
}

// CreateBattle validates the team, discards any prior battle for the
// trainer and sets up a fresh one awaiting the first pick. dungeonID 0
// means wild opponents only; otherwise the dungeon's boss closes the
// enemy team.
func (m *Manager) CreateBattle(ctx context.Context, trainerID, dungeonID int64, teamIDs []int64) (*Created, error) {
	if len(teamIDs) != m.cfg.TeamSize {
		return nil, ErrInvalidTeamSize
	}

	owned, err := m.store.GetTeam(trainerID, teamIDs)
	if err != nil {
		return nil, err
	}
	team := make([]*battle.Combatant, 0, len(owned))
	for i := range owned {
		sp, err := m.provider.SpeciesByID(ctx, owned[i].SpeciesID)
		if err != nil {
			return nil, err
		}
		team = append(team, pokemon.BuildCombatant(&owned[i], sp))
	}

	enemies, err := m.generator.GenerateMinions(ctx, m.rollEnemyLevels())
	if err != nil {
		return nil, err
	}
	if dungeonID != 0 {
		var d model.Dungeon
		err := m.db.Where("id = ? AND enabled = ?", dungeonID, true).First(&d).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotAvailable
		}
		if err != nil {
			return nil, err
		}
		boss, err := m.generator.GenerateBoss(ctx, d.BossSpeciesID, d.BossLevel)
		if err != nil {
			return nil, err
		}
		enemies = append(enemies, boss)
	}

	b := &Battle{
		ID:         uuid.NewString(),
		TrainerID:  trainerID,
		PlayerTeam: team,
		EnemyTeam:  enemies,
		Enemy:      enemies[0],
		Phase:      PhaseSelection,
	}
	m.mu.Lock()
	m.battles[trainerID] = b
	m.mu.Unlock()

	m.logger.Info("battle created",
		zap.Int64("trainer", trainerID),
		zap.String("battle", b.ID),
		zap.Int("enemies", len(enemies)))

	return &Created{BattleID: b.ID, PlayerTeam: team, EnemyTeam: concealed(enemies)}, nil
}

// ChoosePokemon puts the first pokemon on the field and opens the
// attack phase.
func (m *Manager) ChoosePokemon(trainerID, ownedID int64) (*Started, error) {
	b := m.battle(trainerID)
	if b == nil {
		return nil, ErrNoBattle
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.Phase != PhaseSelection {
		return nil, ErrWrongPhase
	}
	member := b.member(ownedID)
	if member == nil || member.KO() {
		return nil, ErrInvalidSelection
	}

	b.Player = member
	b.Phase = PhaseAttack
	return &Started{Player: b.Player, Enemy: b.Enemy, Phase: b.Phase}, nil
}

// Attack resolves one turn with the trainer's chosen move against an
// engine-picked enemy move. An unknown or exhausted move fails with
// battle.ErrInvalidMove and the turn does not advance.
func (m *Manager) Attack(trainerID, moveID int64) (*TurnOutcome, error) {
	b := m.battle(trainerID)
	if b == nil {
		return nil, ErrNoBattle
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.Phase != PhaseAttack {
		return nil, ErrWrongPhase
	}

	playerMove := b.Player.MoveByID(moveID)
	enemyMove := m.engine.AutoMove(b.Enemy)
	result, err := m.engine.ResolveTurn(b.Player, playerMove, b.Enemy, enemyMove)
	if err != nil {
		return nil, err
	}
	b.Turn++

	out := &TurnOutcome{
		Turn:    b.Turn,
		Actions: result.Actions,
		Player:  b.Player,
		Enemy:   b.Enemy,
	}

	switch {
	case result.EnemyKO:
		b.Defeated++
		next := b.nextEnemy()
		if next == nil {
			out.Result = ResultVictory
			m.remove(trainerID, b.ID, true)
			break
		}
		b.Enemy = next
		out.NextEnemy = next
	case result.PlayerKO:
		living := b.living()
		if len(living) == 0 {
			out.Result = ResultDefeat
			m.remove(trainerID, b.ID, false)
			break
		}
		b.Phase = PhaseSwitch
		out.ForceSwitch = living
	}
	return out, nil
}

// Switch replaces the active pokemon, voluntarily or after a forced
// switch request. The replacement must be standing and different.
func (m *Manager) Switch(trainerID, ownedID int64) (*Switched, error) {
	b := m.battle(trainerID)
	if b == nil {
		return nil, ErrNoBattle
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.Phase == PhaseSelection {
		return nil, ErrWrongPhase
	}
	member := b.member(ownedID)
	if member == nil || member.KO() || member == b.Player {
		return nil, ErrInvalidSelection
	}

	b.Player = member
	b.Phase = PhaseAttack
	return &Switched{Player: member}, nil
}

// Reset tears down the trainer's battle, unconditionally. Used on
// disconnect.
func (m *Manager) Reset(trainerID int64) {
	m.mu.Lock()
	_, existed := m.battles[trainerID]
	delete(m.battles, trainerID)
	m.mu.Unlock()
	if existed {
		m.logger.Info("battle reset", zap.Int64("trainer", trainerID))
	}
}

// ActiveBattles returns the number of live battles.
func (m *Manager) ActiveBattles() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.battles)
}

func (m *Manager) battle(trainerID int64) *Battle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.battles[trainerID]
}

// remove drops a finished battle. Called with the battle lock held.
func (m *Manager) remove(trainerID int64, battleID string, won bool) {
	m.mu.Lock()
	delete(m.battles, trainerID)
	m.mu.Unlock()
	m.logger.Info("battle finished",
		zap.Int64("trainer", trainerID),
		zap.String("battle", battleID),
		zap.Bool("won", won))
}

// rollEnemyLevels draws the wild opponents' levels, uniform in [10,39].
func (m *Manager) rollEnemyLevels() []int {
	m.rngMu.Lock()
	defer m.rngMu.Unlock()
	levels := make([]int, m.cfg.EnemyCount)
	for i := range levels {
		levels[i] = 10 + m.rng.Intn(30)
	}
	return levels
}

// concealed copies a team with the move sets stripped, so the client
// cannot read the AI's hand.
func concealed(team []*battle.Combatant) []*battle.Combatant {
	out := make([]*battle.Combatant, len(team))
	for i, c := range team {
		cp := *c
		cp.Moves = nil
		out[i] = &cp
	}
	return out
}
