package ws

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/clicker-pokemon/server/catalog"
	"github.com/clicker-pokemon/server/game/arena"
	"github.com/clicker-pokemon/server/game/battle"
	"github.com/clicker-pokemon/server/game/encounter"
	"github.com/clicker-pokemon/server/game/player"
	"github.com/clicker-pokemon/server/game/pokemon"
	"github.com/clicker-pokemon/server/model"
	"github.com/clicker-pokemon/server/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type battleFixture struct {
	router *Router
	db     *gorm.DB
}

func newBattleFixture(t *testing.T) *battleFixture {
	t.Helper()
	db := testutil.SetupTestDB(t)

	provider := catalog.NewStatic()
	gen := encounter.New(provider, rand.New(rand.NewSource(1)), encounter.Config{}, zap.NewNop())
	engine := battle.NewEngine(rand.New(rand.NewSource(1)), zap.NewNop())
	store := pokemon.NewStore(db)

	mgr := arena.NewManager(db, provider, gen, engine, store,
		rand.New(rand.NewSource(1)), arena.Config{TeamSize: 4}, zap.NewNop())

	r := NewRouter(zap.NewNop())
	NewBattleHandlers(mgr, zap.NewNop()).Register(r)
	return &battleFixture{router: r, db: db}
}

// seedBattleTeam creates a trainer with a full team, each member
// carrying one move row.
func (f *battleFixture) seedBattleTeam(t *testing.T, username string) (int64, []int64) {
	t.Helper()
	tr := &model.Trainer{Username: username, PasswordHash: "x"}
	require.NoError(t, f.db.Create(tr).Error)

	power, acc := 90, 100
	ids := make([]int64, 0, 4)
	for i := 0; i < 4; i++ {
		o := &model.OwnedPokemon{
			TrainerID: tr.ID,
			SpeciesID: 25,
			Name:      "Pikachu",
			Level:     30,
			Gender:    "male",
			Moves: []model.OwnedPokemonMove{
				{Name: "Tonnerre", Type: "Électrik", Power: &power,
					Accuracy: &acc, PP: 15, MaxPP: 15, DamageClass: "special"},
			},
		}
		require.NoError(t, f.db.Create(o).Error)
		ids = append(ids, o.ID)
	}
	return tr.ID, ids
}

// nextTyped pops packets until one of the given type shows up, nil when
// the outbox drains first.
func nextTyped(t *testing.T, s *player.Session, msgType string) *player.Packet {
	t.Helper()
	for {
		pkt := lastPacket(t, s)
		if pkt == nil || pkt.Type == msgType {
			return pkt
		}
	}
}

func TestBattleSelectTeam_WrongSize(t *testing.T) {
	f := newBattleFixture(t)
	s := newSession(7, "red")

	f.router.Dispatch(s, makePacket(t, 1, "SELECT_TEAM",
		map[string]interface{}{"dungeonId": 0, "pokemonIds": []int64{1, 2}}))

	assert.Equal(t, CodeInvalidTeamSize, errorCode(t, s))
}

func TestBattleStart_NoActiveBattle(t *testing.T) {
	f := newBattleFixture(t)
	s := newSession(7, "red")

	f.router.Dispatch(s, makePacket(t, 1, "START_BATTLE",
		map[string]int64{"pokemonId": 1}))

	assert.Equal(t, CodeNoActiveBattle, errorCode(t, s))
}

func TestBattleAttack_NoActiveBattle(t *testing.T) {
	f := newBattleFixture(t)
	s := newSession(7, "red")

	f.router.Dispatch(s, makePacket(t, 1, "ATTACK",
		map[string]int64{"moveId": 1}))

	assert.Equal(t, CodeNoActiveBattle, errorCode(t, s))
}

func TestBattleSwitch_NoActiveBattle(t *testing.T) {
	f := newBattleFixture(t)
	s := newSession(7, "red")

	f.router.Dispatch(s, makePacket(t, 1, "SWITCH_POKEMON",
		map[string]int64{"pokemonId": 1}))

	assert.Equal(t, CodeNoActiveBattle, errorCode(t, s))
}

func TestBattleFlow_CreateStartAttack(t *testing.T) {
	f := newBattleFixture(t)
	trainerID, team := f.seedBattleTeam(t, "red")
	s := newSession(trainerID, "red")

	// Field names follow the wire contract, not the Go structs.
	f.router.Dispatch(s, makePacket(t, 1, "SELECT_TEAM",
		map[string]interface{}{"dungeonId": 0, "pokemonIds": team}))

	pkt := nextTyped(t, s, "BATTLE_CREATED")
	require.NotNil(t, pkt)

	var created arena.Created
	require.NoError(t, json.Unmarshal(pkt.Payload, &created))
	require.Len(t, created.PlayerTeam, 4)
	require.Len(t, created.EnemyTeam, 3)
	for _, e := range created.EnemyTeam {
		assert.Empty(t, e.Moves, "enemy move sets stay hidden until used")
	}

	// Attacking before a pokemon is on the field is rejected.
	f.router.Dispatch(s, makePacket(t, 2, "ATTACK",
		map[string]int64{"moveId": 1}))
	assert.Equal(t, CodeWrongPhase, errorCode(t, s))

	f.router.Dispatch(s, makePacket(t, 3, "START_BATTLE",
		map[string]int64{"pokemonId": team[0]}))
	pkt = nextTyped(t, s, "BATTLE_STARTED")
	require.NotNil(t, pkt)

	var started arena.Started
	require.NoError(t, json.Unmarshal(pkt.Payload, &started))
	require.NotNil(t, started.Player)
	require.NotEmpty(t, started.Player.Moves)
	assert.Equal(t, arena.PhaseAttack, started.Phase)

	// An unknown move id never resolves a turn.
	f.router.Dispatch(s, makePacket(t, 4, "ATTACK",
		map[string]int64{"moveId": 999999}))
	assert.Equal(t, CodeInvalidMove, errorCode(t, s))

	f.router.Dispatch(s, makePacket(t, 5, "ATTACK",
		map[string]int64{"moveId": started.Player.Moves[0].ID}))
	pkt = nextTyped(t, s, "TURN_RESULT")
	require.NotNil(t, pkt)

	var out arena.TurnOutcome
	require.NoError(t, json.Unmarshal(pkt.Payload, &out))
	assert.Equal(t, 1, out.Turn)
	assert.NotEmpty(t, out.Actions)
}

func TestBattleSwitch_BeforeFirstPick(t *testing.T) {
	f := newBattleFixture(t)
	trainerID, team := f.seedBattleTeam(t, "blue")
	s := newSession(trainerID, "blue")

	f.router.Dispatch(s, makePacket(t, 1, "SELECT_TEAM",
		map[string]interface{}{"dungeonId": 0, "pokemonIds": team}))
	require.NotNil(t, nextTyped(t, s, "BATTLE_CREATED"))

	f.router.Dispatch(s, makePacket(t, 2, "SWITCH_POKEMON",
		map[string]int64{"pokemonId": team[1]}))
	assert.Equal(t, CodeWrongPhase, errorCode(t, s))
}
