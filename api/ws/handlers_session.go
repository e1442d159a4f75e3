package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/clicker-pokemon/server/cache"
	"github.com/clicker-pokemon/server/config"
	"github.com/clicker-pokemon/server/game/player"
	mw "github.com/clicker-pokemon/server/middleware"
	"go.uber.org/zap"
)

// SessionHandlers binds the handshake messages shared by every WS mode:
// authentication and the heartbeat.
type SessionHandlers struct {
	sm     *player.SessionManager
	cache  cache.Cache
	sec    config.SecurityConfig
	logger *zap.Logger
}

// NewSessionHandlers creates the handler set.
func NewSessionHandlers(sm *player.SessionManager, c cache.Cache,
	sec config.SecurityConfig, logger *zap.Logger) *SessionHandlers {
	return &SessionHandlers{sm: sm, cache: c, sec: sec, logger: logger}
}

// Register wires the handshake messages onto a router.
func (h *SessionHandlers) Register(r *Router) {
	r.OnPreAuth("AUTHENTICATE", h.handleAuthenticate)
	r.OnPreAuth("ping", h.handlePing)
}

type authenticatePayload struct {
	Token string `json:"token"`
}

type authenticatedPayload struct {
	TrainerID int64  `json:"trainerId"`
	Username  string `json:"username"`
}

// handleAuthenticate validates the JWT and session cache, binds the
// trainer identity and registers the session for event delivery.
func (h *SessionHandlers) handleAuthenticate(ctx context.Context, s *player.Session, payload json.RawMessage) error {
	var req authenticatePayload
	if err := json.Unmarshal(payload, &req); err != nil || req.Token == "" {
		SendError(s, CodeUnauthorized, "missing token")
		return nil
	}

	claims, err := mw.ParseToken(req.Token, h.sec.JWTSecret)
	if err != nil {
		SendError(s, CodeUnauthorized, "invalid token")
		return nil
	}

	cacheCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	exists, err := h.cache.Exists(cacheCtx, "session:"+req.Token)
	if err != nil || !exists {
		SendError(s, CodeUnauthorized, "session expired")
		return nil
	}

	s.Bind(claims.TrainerID, claims.Username)
	h.sm.Register(s)

	body, _ := json.Marshal(authenticatedPayload{
		TrainerID: claims.TrainerID,
		Username:  claims.Username,
	})
	s.Send(&player.Packet{Type: "AUTHENTICATED", Payload: body})
	return nil
}

type pingPayload struct {
	ClientTS int64 `json:"client_ts"`
}

func (h *SessionHandlers) handlePing(_ context.Context, s *player.Session, payload json.RawMessage) error {
	var req pingPayload
	_ = json.Unmarshal(payload, &req)
	s.SendHeartbeatPong(req.ClientTS)
	return nil
}
