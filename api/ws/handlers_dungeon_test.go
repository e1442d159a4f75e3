package ws

import (
	"context"
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/clicker-pokemon/server/cache"
	"github.com/clicker-pokemon/server/catalog"
	"github.com/clicker-pokemon/server/config"
	"github.com/clicker-pokemon/server/game/battle"
	"github.com/clicker-pokemon/server/game/dungeon"
	"github.com/clicker-pokemon/server/game/encounter"
	"github.com/clicker-pokemon/server/game/player"
	"github.com/clicker-pokemon/server/game/pokemon"
	mw "github.com/clicker-pokemon/server/middleware"
	"github.com/clicker-pokemon/server/scheduler"
	"github.com/clicker-pokemon/server/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type handlerFixture struct {
	handlers *DungeonHandlers
	router   *Router
	sm       *player.SessionManager
	cache    cache.Cache
	sec      config.SecurityConfig
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	c, ps := testutil.SetupTestCache(t)

	provider := catalog.NewStatic()
	gen := encounter.New(provider, rand.New(rand.NewSource(1)), encounter.Config{}, zap.NewNop())
	engine := battle.NewEngine(rand.New(rand.NewSource(1)), zap.NewNop())
	store := pokemon.NewStore(db)
	sched := scheduler.New(zap.NewNop())
	t.Cleanup(sched.Stop)

	sm := player.NewSessionManager(zap.NewNop())
	bridge := NewEventBridge(sm, zap.NewNop())
	mgr := dungeon.NewManager(db, provider, gen, engine, store, sched, bridge,
		c, ps, nil, dungeon.Config{TeamSize: 4}, zap.NewNop())

	sec := config.SecurityConfig{JWTSecret: "test-secret", JWTTTLH: time.Hour}
	handlers := NewDungeonHandlers(sm, mgr, zap.NewNop())
	r := NewRouter(zap.NewNop())
	NewSessionHandlers(sm, c, sec, zap.NewNop()).Register(r)
	handlers.Register(r)

	return &handlerFixture{handlers: handlers, router: r, sm: sm, cache: c, sec: sec}
}

func (f *handlerFixture) issueToken(t *testing.T, trainerID int64, username string) string {
	t.Helper()
	token, err := mw.GenerateToken(trainerID, username, f.sec.JWTSecret, time.Hour)
	require.NoError(t, err)
	require.NoError(t, f.cache.Set(context.Background(), "session:"+token, username, time.Hour))
	return token
}

func errorCode(t *testing.T, s *player.Session) string {
	t.Helper()
	for {
		pkt := lastPacket(t, s)
		if pkt == nil {
			return ""
		}
		if pkt.Type != "ERROR" {
			continue
		}
		var ep ErrorPayload
		require.NoError(t, json.Unmarshal(pkt.Payload, &ep))
		return ep.Code
	}
}

func TestAuthenticate_BindsAndRegisters(t *testing.T) {
	f := newHandlerFixture(t)
	token := f.issueToken(t, 7, "sacha")

	s := newSession(0, "")
	f.router.Dispatch(s, makePacket(t, 1, "AUTHENTICATE",
		map[string]string{"token": token}))

	pkt := lastPacket(t, s)
	require.NotNil(t, pkt)
	assert.Equal(t, "AUTHENTICATED", pkt.Type)

	var ap authenticatedPayload
	require.NoError(t, json.Unmarshal(pkt.Payload, &ap))
	assert.Equal(t, int64(7), ap.TrainerID)
	assert.Equal(t, "sacha", ap.Username)

	assert.True(t, s.Authenticated())
	assert.True(t, f.sm.IsOnline(7))
}

func TestAuthenticate_InvalidToken(t *testing.T) {
	f := newHandlerFixture(t)

	s := newSession(0, "")
	f.router.Dispatch(s, makePacket(t, 1, "AUTHENTICATE",
		map[string]string{"token": "garbage"}))

	assert.Equal(t, CodeUnauthorized, errorCode(t, s))
	assert.False(t, s.Authenticated())
}

func TestAuthenticate_ExpiredSession(t *testing.T) {
	f := newHandlerFixture(t)
	// Valid JWT, but nothing stored in the session cache.
	token, err := mw.GenerateToken(7, "sacha", f.sec.JWTSecret, time.Hour)
	require.NoError(t, err)

	s := newSession(0, "")
	f.router.Dispatch(s, makePacket(t, 1, "AUTHENTICATE",
		map[string]string{"token": token}))

	assert.Equal(t, CodeUnauthorized, errorCode(t, s))
}

func TestSelectTeam_WrongSize(t *testing.T) {
	f := newHandlerFixture(t)
	s := newSession(7, "sacha")

	f.router.Dispatch(s, makePacket(t, 1, "SELECT_TEAM",
		selectTeamPayload{DungeonID: 1, PokemonIDs: []int64{1, 2}}))

	assert.Equal(t, CodeInvalidTeamSize, errorCode(t, s))
}

func TestSelectTeam_UnknownDungeon(t *testing.T) {
	f := newHandlerFixture(t)
	s := newSession(7, "sacha")

	f.router.Dispatch(s, makePacket(t, 1, "SELECT_TEAM",
		selectTeamPayload{DungeonID: 404, PokemonIDs: []int64{1, 2, 3, 4}}))

	assert.Equal(t, CodeDungeonNotAvailable, errorCode(t, s))
}

func TestStartFight_NoActiveSession(t *testing.T) {
	f := newHandlerFixture(t)
	s := newSession(7, "sacha")

	// Field name follows the wire contract, not the Go struct.
	f.router.Dispatch(s, makePacket(t, 1, "START_FIGHT",
		map[string]int64{"selectedPokemonId": 1}))

	assert.Equal(t, CodeNoActiveSession, errorCode(t, s))
}

func TestChangePokemon_NoActiveSession(t *testing.T) {
	f := newHandlerFixture(t)
	s := newSession(7, "sacha")

	f.router.Dispatch(s, makePacket(t, 1, "CHANGE_POKEMON",
		map[string]int64{"newPokemonId": 1}))

	assert.Equal(t, CodeNoActiveSession, errorCode(t, s))
}

func TestEventBridge_DeliversToRegisteredSession(t *testing.T) {
	sm := player.NewSessionManager(zap.NewNop())
	bridge := NewEventBridge(sm, zap.NewNop())

	s := newSession(7, "sacha")
	sm.Register(s)

	bridge.Emit(7, "BATTLE_STARTED", map[string]string{"battleId": "b1"})

	pkt := lastPacket(t, s)
	require.NotNil(t, pkt)
	assert.Equal(t, "BATTLE_STARTED", pkt.Type)
}

func TestEventBridge_UnknownTrainerNoPanic(t *testing.T) {
	sm := player.NewSessionManager(zap.NewNop())
	bridge := NewEventBridge(sm, zap.NewNop())
	bridge.Emit(999, "DUNGEON_READY", nil)
}
