package ws

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/clicker-pokemon/server/game/arena"
	"github.com/clicker-pokemon/server/game/battle"
	"github.com/clicker-pokemon/server/game/player"
	"github.com/clicker-pokemon/server/game/pokemon"
	"go.uber.org/zap"
)

// BattleHandlers binds the manual battle message types onto a Router.
// Unlike the dungeon loop there are no scheduled continuations: every
// turn waits for the trainer's choice, so responses are sent directly
// from the handler.
type BattleHandlers struct {
	mgr    *arena.Manager
	logger *zap.Logger
}

// NewBattleHandlers creates the handler set.
func NewBattleHandlers(mgr *arena.Manager, logger *zap.Logger) *BattleHandlers {
	return &BattleHandlers{mgr: mgr, logger: logger}
}

// Register wires the battle message types onto the router.
func (h *BattleHandlers) Register(r *Router) {
	r.On("SELECT_TEAM", h.handleSelectTeam)
	r.On("START_BATTLE", h.handleStartBattle)
	r.On("ATTACK", h.handleAttack)
	r.On("SWITCH_POKEMON", h.handleSwitchPokemon)
}

type battleTeamPayload struct {
	DungeonID  int64   `json:"dungeonId"`
	PokemonIDs []int64 `json:"pokemonIds"`
}

func (h *BattleHandlers) handleSelectTeam(ctx context.Context, s *player.Session, payload json.RawMessage) error {
	var req battleTeamPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		SendError(s, CodeInvalidSelection, "malformed payload")
		return nil
	}

	created, err := h.mgr.CreateBattle(ctx, s.TrainerID(), req.DungeonID, req.PokemonIDs)
	switch {
	case err == nil:
		h.send(s, "BATTLE_CREATED", created)
	case errors.Is(err, arena.ErrInvalidTeamSize):
		SendError(s, CodeInvalidTeamSize, "team must have exactly 4 pokemon")
	case errors.Is(err, pokemon.ErrNotOwned):
		SendError(s, CodePokemonNotOwned, "pokemon not owned")
	case errors.Is(err, arena.ErrNotAvailable):
		SendError(s, CodeDungeonNotAvailable, "dungeon not available")
	default:
		h.fail(ctx, s, "battle team selection failed", err)
	}
	return nil
}

type startBattlePayload struct {
	PokemonID int64 `json:"pokemonId"`
}

func (h *BattleHandlers) handleStartBattle(ctx context.Context, s *player.Session, payload json.RawMessage) error {
	var req startBattlePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		SendError(s, CodeInvalidSelection, "malformed payload")
		return nil
	}

	started, err := h.mgr.ChoosePokemon(s.TrainerID(), req.PokemonID)
	switch {
	case err == nil:
		h.send(s, "BATTLE_STARTED", started)
	case errors.Is(err, arena.ErrNoBattle):
		SendError(s, CodeNoActiveBattle, "no active battle")
	case errors.Is(err, arena.ErrWrongPhase):
		SendError(s, CodeWrongPhase, "battle already underway")
	case errors.Is(err, arena.ErrInvalidSelection):
		SendError(s, CodeInvalidSelection, "invalid pokemon selection")
	default:
		h.fail(ctx, s, "start battle failed", err)
	}
	return nil
}

type attackPayload struct {
	MoveID int64 `json:"moveId"`
}

func (h *BattleHandlers) handleAttack(ctx context.Context, s *player.Session, payload json.RawMessage) error {
	var req attackPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		SendError(s, CodeInvalidMove, "malformed payload")
		return nil
	}

	out, err := h.mgr.Attack(s.TrainerID(), req.MoveID)
	switch {
	case err == nil:
	case errors.Is(err, arena.ErrNoBattle):
		SendError(s, CodeNoActiveBattle, "no active battle")
		return nil
	case errors.Is(err, arena.ErrWrongPhase):
		SendError(s, CodeWrongPhase, "cannot attack now")
		return nil
	case errors.Is(err, battle.ErrInvalidMove):
		SendError(s, CodeInvalidMove, "invalid move or no PP left")
		return nil
	default:
		h.fail(ctx, s, "attack failed", err)
		return nil
	}

	h.send(s, "TURN_RESULT", out)
	switch {
	case out.Result != "":
		h.send(s, "BATTLE_END", map[string]string{"result": out.Result})
	case len(out.ForceSwitch) > 0:
		h.send(s, "FORCE_SWITCH", map[string]interface{}{
			"availablePokemon": out.ForceSwitch,
		})
	case out.NextEnemy != nil:
		h.send(s, "AI_SWITCH", map[string]interface{}{
			"newAiPokemon": out.NextEnemy,
		})
	}
	return nil
}

type switchPokemonPayload struct {
	PokemonID int64 `json:"pokemonId"`
}

func (h *BattleHandlers) handleSwitchPokemon(ctx context.Context, s *player.Session, payload json.RawMessage) error {
	var req switchPokemonPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		SendError(s, CodeInvalidSelection, "malformed payload")
		return nil
	}

	switched, err := h.mgr.Switch(s.TrainerID(), req.PokemonID)
	switch {
	case err == nil:
		h.send(s, "POKEMON_SWITCHED", switched)
	case errors.Is(err, arena.ErrNoBattle):
		SendError(s, CodeNoActiveBattle, "no active battle")
	case errors.Is(err, arena.ErrWrongPhase):
		SendError(s, CodeWrongPhase, "no pokemon on the field yet")
	case errors.Is(err, arena.ErrInvalidSelection):
		SendError(s, CodeInvalidSelection, "invalid or knocked out pokemon")
	default:
		h.fail(ctx, s, "switch pokemon failed", err)
	}
	return nil
}

func (h *BattleHandlers) send(s *player.Session, event string, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("battle payload marshal failed",
			zap.String("event", event), zap.Error(err))
		return
	}
	s.Send(&player.Packet{Type: event, Payload: body})
}

func (h *BattleHandlers) fail(ctx context.Context, s *player.Session, msg string, err error) {
	h.logger.Error(msg,
		zap.Int64("trainer_id", s.TrainerID()),
		zap.String("trace_id", TraceIDFromCtx(ctx)),
		zap.Error(err))
	SendError(s, CodeInternalError, "internal error")
}
