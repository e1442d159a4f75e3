package ws

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/clicker-pokemon/server/game/dungeon"
	"github.com/clicker-pokemon/server/game/player"
	"github.com/clicker-pokemon/server/game/pokemon"
	"go.uber.org/zap"
)

// DungeonHandlers binds the dungeon run message types onto a Router and
// bridges manager events back onto trainer sessions.
type DungeonHandlers struct {
	sm     *player.SessionManager
	mgr    *dungeon.Manager
	logger *zap.Logger
}

// NewDungeonHandlers creates the handler set.
func NewDungeonHandlers(sm *player.SessionManager, mgr *dungeon.Manager, logger *zap.Logger) *DungeonHandlers {
	return &DungeonHandlers{sm: sm, mgr: mgr, logger: logger}
}

// Register wires the dungeon message types onto the router.
func (h *DungeonHandlers) Register(r *Router) {
	r.On("SELECT_TEAM", h.handleSelectTeam)
	r.On("START_FIGHT", h.handleStartFight)
	r.On("CHANGE_POKEMON", h.handleChangePokemon)
}

// EventBridge implements dungeon.EventSink: manager events become
// packets on the trainer's live session. Emit never blocks; Session.Send
// drops on a full channel.
type EventBridge struct {
	sm     *player.SessionManager
	logger *zap.Logger
}

// NewEventBridge creates the sink over a session registry.
func NewEventBridge(sm *player.SessionManager, logger *zap.Logger) *EventBridge {
	return &EventBridge{sm: sm, logger: logger}
}

func (b *EventBridge) Emit(trainerID int64, event string, payload interface{}) {
	s := b.sm.Get(trainerID)
	if s == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		b.logger.Error("event payload marshal failed",
			zap.String("event", event), zap.Error(err))
		return
	}
	s.Send(&player.Packet{Type: event, Payload: body})
}

type selectTeamPayload struct {
	DungeonID  int64   `json:"dungeonId"`
	PokemonIDs []int64 `json:"pokemonIds"`
}

func (h *DungeonHandlers) handleSelectTeam(ctx context.Context, s *player.Session, payload json.RawMessage) error {
	var req selectTeamPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		SendError(s, CodeInvalidSelection, "malformed payload")
		return nil
	}

	err := h.mgr.StartRun(ctx, s.TrainerID(), req.DungeonID, req.PokemonIDs)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, dungeon.ErrInvalidTeamSize):
		SendError(s, CodeInvalidTeamSize, "team must have exactly 4 pokemon")
	case errors.Is(err, pokemon.ErrNotOwned):
		SendError(s, CodePokemonNotOwned, "pokemon not owned")
	case errors.Is(err, dungeon.ErrNotAvailable):
		SendError(s, CodeDungeonNotAvailable, "dungeon not available")
	default:
		h.logger.Error("select team failed",
			zap.Int64("trainer_id", s.TrainerID()),
			zap.String("trace_id", TraceIDFromCtx(ctx)),
			zap.Error(err))
		SendError(s, CodeInternalError, "internal error")
	}
	return nil
}

type startFightPayload struct {
	SelectedPokemonID int64 `json:"selectedPokemonId"`
}

type changePokemonPayload struct {
	NewPokemonID int64 `json:"newPokemonId"`
}

func (h *DungeonHandlers) handleStartFight(ctx context.Context, s *player.Session, payload json.RawMessage) error {
	var req startFightPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		SendError(s, CodeInvalidSelection, "malformed payload")
		return nil
	}

	err := h.mgr.BeginFight(s.TrainerID(), req.SelectedPokemonID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, dungeon.ErrNoSession):
		SendError(s, CodeNoActiveSession, "no active dungeon run")
	case errors.Is(err, dungeon.ErrInvalidSelection):
		SendError(s, CodeInvalidSelection, "invalid pokemon selection")
	default:
		h.logger.Error("start fight failed",
			zap.Int64("trainer_id", s.TrainerID()),
			zap.String("trace_id", TraceIDFromCtx(ctx)),
			zap.Error(err))
		SendError(s, CodeInternalError, "internal error")
	}
	return nil
}

func (h *DungeonHandlers) handleChangePokemon(ctx context.Context, s *player.Session, payload json.RawMessage) error {
	var req changePokemonPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		SendError(s, CodeInvalidSelection, "malformed payload")
		return nil
	}

	err := h.mgr.ChangePokemon(s.TrainerID(), req.NewPokemonID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, dungeon.ErrNoSession):
		SendError(s, CodeNoActiveSession, "no active dungeon run")
	case errors.Is(err, dungeon.ErrInvalidSelection):
		SendError(s, CodeInvalidSelection, "invalid pokemon selection")
	default:
		h.logger.Error("change pokemon failed",
			zap.Int64("trainer_id", s.TrainerID()),
			zap.String("trace_id", TraceIDFromCtx(ctx)),
			zap.Error(err))
		SendError(s, CodeInternalError, "internal error")
	}
	return nil
}
