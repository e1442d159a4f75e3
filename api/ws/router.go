package ws

import (
	"context"
	"encoding/json"

	"github.com/clicker-pokemon/server/game/player"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Error codes sent in ERROR packets.
const (
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeInvalidTeamSize     = "INVALID_TEAM_SIZE"
	CodePokemonNotOwned     = "POKEMON_NOT_OWNED"
	CodeNoActiveSession     = "NO_ACTIVE_SESSION"
	CodeNoActiveBattle      = "NO_ACTIVE_BATTLE"
	CodeInvalidSelection    = "INVALID_SELECTION"
	CodeInvalidMove         = "INVALID_MOVE"
	CodeWrongPhase          = "WRONG_PHASE"
	CodeDungeonNotAvailable = "DUNGEON_NOT_AVAILABLE"
	CodeUnknownAction       = "UNKNOWN_ACTION"
	CodeInternalError       = "INTERNAL_ERROR"
)

// HandlerFunc processes a decoded WS message payload.
type HandlerFunc func(ctx context.Context, session *player.Session, payload json.RawMessage) error

// Router dispatches incoming WS packets to registered handlers. Every
// message type except the handshake ones requires a bound session.
type Router struct {
	handlers map[string]HandlerFunc
	preAuth  map[string]bool
	logger   *zap.Logger
}

// NewRouter creates a new Router.
func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		handlers: make(map[string]HandlerFunc),
		preAuth:  make(map[string]bool),
		logger:   logger,
	}
}

// On registers a HandlerFunc for the given message type.
func (r *Router) On(msgType string, fn HandlerFunc) {
	r.handlers[msgType] = fn
}

// OnPreAuth registers a HandlerFunc that anonymous sessions may call.
func (r *Router) OnPreAuth(msgType string, fn HandlerFunc) {
	r.handlers[msgType] = fn
	r.preAuth[msgType] = true
}

// Dispatch decodes raw bytes, validates seq and the auth gate, and
// invokes the appropriate handler.
func (r *Router) Dispatch(s *player.Session, raw []byte) {
	var pkt player.Packet
	if err := json.Unmarshal(raw, &pkt); err != nil {
		r.logger.Warn("malformed packet",
			zap.Int64("trainer_id", s.TrainerID()),
			zap.Error(err))
		return
	}

	// Monotonic seq check (anti-replay). Seq == 0 means no seq tracking.
	if pkt.Seq != 0 && pkt.Seq <= s.LastSeq {
		r.logger.Warn("replayed or out-of-order packet",
			zap.Int64("trainer_id", s.TrainerID()),
			zap.Uint64("seq", pkt.Seq),
			zap.Uint64("last_seq", s.LastSeq))
		return
	}
	if pkt.Seq != 0 {
		s.LastSeq = pkt.Seq
	}

	// Assign a trace ID for this message dispatch.
	s.TraceID = uuid.NewString()
	ctx := context.WithValue(context.Background(), ctxKeyTraceID{}, s.TraceID)

	fn, ok := r.handlers[pkt.Type]
	if !ok {
		r.logger.Debug("unhandled message type",
			zap.String("type", pkt.Type),
			zap.Int64("trainer_id", s.TrainerID()))
		SendError(s, CodeUnknownAction, "unknown action: "+pkt.Type)
		return
	}

	if !s.Authenticated() && !r.preAuth[pkt.Type] {
		SendError(s, CodeUnauthorized, "authenticate first")
		return
	}

	if err := fn(ctx, s, pkt.Payload); err != nil {
		r.logger.Error("handler error",
			zap.String("type", pkt.Type),
			zap.Int64("trainer_id", s.TrainerID()),
			zap.String("trace_id", s.TraceID),
			zap.Error(err))
	}
}

// ErrorPayload is the body of an ERROR packet.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SendError pushes an ERROR packet to the session.
func SendError(s *player.Session, code, message string) {
	payload, _ := json.Marshal(ErrorPayload{Code: code, Message: message})
	s.Send(&player.Packet{Type: "ERROR", Payload: payload})
}

type ctxKeyTraceID struct{}

// TraceIDFromCtx extracts the trace ID from a handler context.
func TraceIDFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyTraceID{}).(string); ok {
		return v
	}
	return ""
}
