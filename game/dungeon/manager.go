package dungeon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/clicker-pokemon/server/audit"
	"github.com/clicker-pokemon/server/cache"
	"github.com/clicker-pokemon/server/catalog"
	"github.com/clicker-pokemon/server/game/battle"
	"github.com/clicker-pokemon/server/game/encounter"
	"github.com/clicker-pokemon/server/game/pokemon"
	"github.com/clicker-pokemon/server/model"
	"github.com/clicker-pokemon/server/scheduler"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrNoSession is returned when the trainer has no active run.
	ErrNoSession = errors.New("dungeon: no active session")
	// ErrInvalidTeamSize is returned when the selected team is not
	// exactly the required size.
	ErrInvalidTeamSize = errors.New("dungeon: invalid team size")
	// ErrInvalidSelection is returned when the chosen pokemon is not in
	// the team, already knocked out, or the run is in the wrong state.
	ErrInvalidSelection = errors.New("dungeon: invalid selection")
	// ErrNotAvailable is returned when the dungeon does not exist or is
	// disabled.
	ErrNotAvailable = errors.New("dungeon: not available")
)

// RankingKey is the cache ZSet holding dungeon clear counts per trainer.
const RankingKey = "ranking:dungeon_clears"

// Config tunes run shape and pacing. Delays are pure pacing, safe to
// zero in tests.
type Config struct {
	TeamSize       int
	TurnDelay      time.Duration
	KODelay        time.Duration
	NextFightDelay time.Duration
}

// Manager owns every trainer's dungeon run. The manager mutex guards
// only the session map; each session carries its own lock, so trainers
// never block each other.
type Manager struct {
	mu       sync.Mutex
	sessions map[int64]*Session

	db        *gorm.DB
	provider  catalog.Provider
	generator *encounter.Generator
	engine    *battle.Engine
	store     *pokemon.Store
	sched     *scheduler.Scheduler
	sink      EventSink
	cache     cache.Cache
	pubsub    cache.PubSub
	auditSvc  *audit.Service
	cfg       Config
	logger    *zap.Logger
}

// NewManager creates a Manager. The sink receives every outbound event;
// pubsub and auditSvc may be nil in tests.
func NewManager(db *gorm.DB, provider catalog.Provider, gen *encounter.Generator, engine *battle.Engine,
	store *pokemon.Store, sched *scheduler.Scheduler, sink EventSink,
	c cache.Cache, ps cache.PubSub, auditSvc *audit.Service, cfg Config, logger *zap.Logger) *Manager {
	if cfg.TeamSize <= 0 {
		cfg.TeamSize = 4
	}
	return &Manager{
		sessions:  make(map[int64]*Session),
		db:        db,
		provider:  provider,
		generator: gen,
		engine:    engine,
		store:     store,
		sched:     sched,
		sink:      sink,
		cache:     c,
		pubsub:    ps,
		auditSvc:  auditSvc,
		cfg:       cfg,
		logger:    logger,
	}
}

// StartRun validates the team, discards any prior run for the trainer
// and sets up a fresh session in READY state. Starting over mid-battle
// is allowed and silently drops the old battle.
func (m *Manager) StartRun(ctx context.Context, trainerID, dungeonID int64, teamIDs []int64) error {
	if len(teamIDs) != m.cfg.TeamSize {
		return ErrInvalidTeamSize
	}

	var d model.Dungeon
	err := m.db.Where("id = ? AND enabled = ?", dungeonID, true).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotAvailable
	}
	if err != nil {
		return err
	}

	owned, err := m.store.GetTeam(trainerID, teamIDs)
	if err != nil {
		return err
	}

	team := make([]*battle.Combatant, 0, len(owned))
	for i := range owned {
		sp, err := m.provider.SpeciesByID(ctx, owned[i].SpeciesID)
		if err != nil {
			return err
		}
		team = append(team, pokemon.BuildCombatant(&owned[i], sp))
	}

	opponents, err := m.generator.GenerateOpponents(ctx, spawnLevels(&d), d.BossSpeciesID, d.BossLevel)
	if err != nil {
		return err
	}

	// Any previous run is discarded, even mid-fight.
	m.Reset(trainerID)

	s := &Session{
		TrainerID: trainerID,
		Dungeon:   &d,
		Team:      team,
		Opponents: opponents,
		Status:    StatusReady,
		dead:      make(map[int64]bool),
	}
	m.mu.Lock()
	m.sessions[trainerID] = s
	m.mu.Unlock()

	m.logger.Info("dungeon run started",
		zap.Int64("trainer", trainerID),
		zap.Int64("dungeon", dungeonID),
		zap.Int("opponents", len(opponents)))

	m.sink.Emit(trainerID, EventDungeonReady, ReadyPayload{
		Status: StatusReady,
		Dungeon: DungeonInfo{
			ID: d.ID, Name: d.Name, Zone: d.Zone, Rewards: d.Rewards,
		},
		PlayerTeam: team,
		Enemies:    opponents[:len(opponents)-1],
		Boss:       opponents[len(opponents)-1],
		Rewards:    d.Rewards,
	})
	return nil
}

// BeginFight opens the battle against the next undefeated opponent with
// the chosen team member and kicks off the automatic turn loop.
func (m *Manager) BeginFight(trainerID, ownedID int64) error {
	s := m.session(trainerID)
	if s == nil {
		return ErrNoSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status != StatusReady && s.Status != StatusInProgress {
		return ErrInvalidSelection
	}
	member := s.teamMember(ownedID)
	if member == nil || s.isDead(ownedID) {
		return ErrInvalidSelection
	}

	enemy := s.Opponents[s.Defeated]
	s.Battle = &BattleState{
		ID:     uuid.NewString(),
		Player: member,
		Enemy:  enemy,
	}
	s.Status = StatusBattle

	m.emitBattleStarted(s)
	m.scheduleTurn(trainerID, s.Battle.ID)
	return nil
}

// ChangePokemon swaps the active combatant, either voluntarily or after
// a forced switch request. The replacement must be a living team member.
func (m *Manager) ChangePokemon(trainerID, newOwnedID int64) error {
	s := m.session(trainerID)
	if s == nil {
		return ErrNoSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status != StatusBattle || s.Battle == nil {
		return ErrInvalidSelection
	}
	member := s.teamMember(newOwnedID)
	if member == nil || s.isDead(newOwnedID) || member == s.Battle.Player {
		return ErrInvalidSelection
	}

	s.Battle.Player = member
	s.Battle.AwaitingSwitch = false

	m.emitBattleStarted(s)
	m.scheduleTurn(trainerID, s.Battle.ID)
	return nil
}

// Reset tears down the trainer's session and cancels every scheduled
// continuation, unconditionally. Used on disconnect and explicit abandon.
func (m *Manager) Reset(trainerID int64) {
	m.sched.RemovePrefix(taskPrefix(trainerID))
	m.mu.Lock()
	_, existed := m.sessions[trainerID]
	delete(m.sessions, trainerID)
	m.mu.Unlock()
	if existed {
		m.logger.Info("dungeon session reset", zap.Int64("trainer", trainerID))
	}
}

// Session returns the trainer's live session, nil if none.
func (m *Manager) session(trainerID int64) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[trainerID]
}

// ActiveRuns returns the number of live sessions.
func (m *Manager) ActiveRuns() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// ---- automatic turn loop ----

func taskPrefix(trainerID int64) string {
	return fmt.Sprintf("dungeon:%d:", trainerID)
}

// scheduleTurn arms the next turn continuation. The battle id pins the
// continuation to the battle it was armed for: stale timers no-op.
func (m *Manager) scheduleTurn(trainerID int64, battleID string) {
	m.sched.AddDelay(taskPrefix(trainerID)+"turn", m.cfg.TurnDelay, func() {
		m.runTurn(trainerID, battleID)
	})
}

// runTurn resolves one automatic turn. Both sides' moves are engine
// picked. Re-checks under the session lock that the battle it was armed
// for is still live.
func (m *Manager) runTurn(trainerID int64, battleID string) {
	s := m.session(trainerID)
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status != StatusBattle || s.Battle == nil || s.Battle.ID != battleID || s.Battle.AwaitingSwitch {
		return
	}
	b := s.Battle

	playerMove := m.engine.AutoMove(b.Player)
	enemyMove := m.engine.AutoMove(b.Enemy)
	result, err := m.engine.ResolveTurn(b.Player, playerMove, b.Enemy, enemyMove)
	if err != nil {
		m.logger.Error("turn resolution failed",
			zap.Int64("trainer", trainerID), zap.Error(err))
		return
	}
	b.Turn++

	for _, action := range result.Actions {
		m.sink.Emit(trainerID, EventAttackResult, action)
	}

	switch {
	case result.EnemyKO:
		m.scheduleKO(trainerID, battleID, b.Enemy.ID, b.Player.ID)
	case result.PlayerKO:
		m.scheduleKO(trainerID, battleID, b.Player.ID, b.Enemy.ID)
	default:
		m.scheduleTurn(trainerID, battleID)
	}
}

// scheduleKO arms the knockout continuation after the KO pacing delay.
func (m *Manager) scheduleKO(trainerID int64, battleID, koed, winner string) {
	m.sched.AddDelay(taskPrefix(trainerID)+"ko", m.cfg.KODelay, func() {
		m.handleKO(trainerID, battleID, koed, winner)
	})
}

// handleKO emits POKEMON_KO and advances the run: next opponent, forced
// switch, or a terminal state.
func (m *Manager) handleKO(trainerID int64, battleID, koed, winner string) {
	s := m.session(trainerID)
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status != StatusBattle || s.Battle == nil || s.Battle.ID != battleID {
		return
	}
	b := s.Battle

	m.sink.Emit(trainerID, EventPokemonKO, KOPayload{KOed: koed, Winner: winner})

	if b.Enemy.KO() {
		m.advanceRun(s)
		return
	}

	// Player side fell.
	ownedID, ok := pokemon.OwnedID(b.Player.ID)
	if ok {
		s.markDead(ownedID)
	}
	living := s.livingMembers()
	if len(living) == 0 {
		m.finishRun(s, false)
		return
	}
	b.AwaitingSwitch = true
	m.sink.Emit(trainerID, EventForceSwitch, ForceSwitchPayload{
		Available: living,
		BattleID:  b.ID,
	})
}

// advanceRun counts the defeated opponent and either completes the run
// or chains into the next fight with the same member.
func (m *Manager) advanceRun(s *Session) {
	s.Defeated++
	if s.Defeated >= len(s.Opponents) {
		m.finishRun(s, true)
		return
	}

	m.sink.Emit(s.TrainerID, EventEnemyDefeated, EnemyDefeatedPayload{
		DefeatedEnemies: s.Defeated,
		TotalEnemies:    len(s.Opponents),
	})

	member := s.Battle.Player
	s.Battle = nil
	s.Status = StatusInProgress

	ownedID, ok := pokemon.OwnedID(member.ID)
	if !ok {
		return
	}
	m.sched.AddDelay(taskPrefix(s.TrainerID)+"next", m.cfg.NextFightDelay, func() {
		if err := m.BeginFight(s.TrainerID, ownedID); err != nil &&
			!errors.Is(err, ErrNoSession) && !errors.Is(err, ErrInvalidSelection) {
			m.logger.Error("auto advance failed",
				zap.Int64("trainer", s.TrainerID), zap.Error(err))
		}
	})
}

// finishRun moves the session to its terminal state, emits the outcome
// and removes the session. Called with the session lock held.
func (m *Manager) finishRun(s *Session, won bool) {
	if won {
		s.Status = StatusCompleted
		m.sink.Emit(s.TrainerID, EventDungeonWin, WinPayload{
			Rewards:         s.Dungeon.Rewards,
			DefeatedEnemies: s.Defeated,
		})
		m.creditClear(s)
	} else {
		s.Status = StatusFailed
		m.sink.Emit(s.TrainerID, EventDungeonLoose, struct{}{})
		if m.auditSvc != nil {
			trainerID := s.TrainerID
			m.auditSvc.Log(audit.Entry{
				TrainerID: &trainerID,
				Action:    audit.ActionDungeonLose,
				Request:   map[string]int64{"dungeonId": s.Dungeon.ID},
			})
		}
	}

	m.logger.Info("dungeon run finished",
		zap.Int64("trainer", s.TrainerID),
		zap.Int64("dungeon", s.Dungeon.ID),
		zap.Bool("won", won),
		zap.Int("defeated", s.Defeated))

	m.sched.RemovePrefix(taskPrefix(s.TrainerID))
	m.mu.Lock()
	delete(m.sessions, s.TrainerID)
	m.mu.Unlock()
}

// creditClear persists the win: clear counter, ranking bump, audit row
// and an activity feed publish. Best effort, never blocks the outcome.
func (m *Manager) creditClear(s *Session) {
	ctx := context.Background()
	trainerID := s.TrainerID

	if err := m.db.Model(&model.Trainer{}).Where("id = ?", trainerID).
		UpdateColumn("dungeon_clears", gorm.Expr("dungeon_clears + 1")).Error; err != nil {
		m.logger.Warn("clear counter update failed", zap.Error(err))
	}
	if m.cache != nil {
		if _, err := m.cache.ZIncrBy(ctx, RankingKey, 1, strconv.FormatInt(trainerID, 10)); err != nil {
			m.logger.Warn("ranking bump failed", zap.Error(err))
		}
	}
	if m.auditSvc != nil {
		m.auditSvc.Log(audit.Entry{
			TrainerID: &trainerID,
			Action:    audit.ActionDungeonWin,
			Request:   map[string]int64{"dungeonId": s.Dungeon.ID},
			Response:  map[string]int{"defeated": s.Defeated},
		})
	}
	if m.pubsub != nil {
		msg, _ := json.Marshal(map[string]interface{}{
			"type":      "dungeon_win",
			"trainerId": trainerID,
			"dungeon":   s.Dungeon.Name,
		})
		if err := m.pubsub.Publish(ctx, cache.ActivityChannel, string(msg)); err != nil {
			m.logger.Warn("activity publish failed", zap.Error(err))
		}
	}
}

func (m *Manager) emitBattleStarted(s *Session) {
	m.sink.Emit(s.TrainerID, EventBattleStarted, BattleStartedPayload{
		BattleID:     s.Battle.ID,
		Player:       s.Battle.Player,
		Enemy:        s.Battle.Enemy,
		EnemyNumber:  s.Defeated + 1,
		TotalEnemies: len(s.Opponents),
		IsBoss:       s.Defeated == len(s.Opponents)-1,
	})
}

// spawnLevels parses the dungeon's minion level list, falling back to
// the stock 15/17/20 spread.
func spawnLevels(d *model.Dungeon) []int {
	var levels []int
	if len(d.SpawnLevels) > 0 {
		if err := json.Unmarshal(d.SpawnLevels, &levels); err == nil && len(levels) > 0 {
			return levels
		}
	}
	count := d.MinionCount
	if count <= 0 {
		count = 3
	}
	defaults := []int{15, 17, 20}
	levels = make([]int, count)
	for i := range levels {
		levels[i] = defaults[i%len(defaults)]
	}
	return levels
}
