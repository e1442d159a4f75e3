package ws

import (
	"net/http"

	"github.com/clicker-pokemon/server/game/arena"
	"github.com/clicker-pokemon/server/game/dungeon"
	"github.com/clicker-pokemon/server/game/player"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handler is the Gin handler for GET /ws. Connections upgrade without
// credentials; the client must authenticate with its first message.
// The mode query parameter selects the protocol: "dungeon" (default)
// or "battle".
type Handler struct {
	sm            *player.SessionManager
	dungeonMgr    *dungeon.Manager
	arenaMgr      *arena.Manager
	dungeonRouter *Router
	battleRouter  *Router
	logger        *zap.Logger
	upgrader      websocket.Upgrader
}

// NewHandler creates a new WebSocket Handler.
// allowedOrigins controls which WebSocket origins are accepted.
// An empty slice permits all origins (development only).
func NewHandler(
	sm *player.SessionManager,
	dungeonMgr *dungeon.Manager,
	arenaMgr *arena.Manager,
	dungeonRouter *Router,
	battleRouter *Router,
	allowedOrigins []string,
	logger *zap.Logger,
) *Handler {
	h := &Handler{
		sm:            sm,
		dungeonMgr:    dungeonMgr,
		arenaMgr:      arenaMgr,
		dungeonRouter: dungeonRouter,
		battleRouter:  battleRouter,
		logger:        logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true // dev mode: allow all
			}
			origin := r.Header.Get("Origin")
			for _, o := range allowedOrigins {
				if o == origin {
					return true
				}
			}
			return false
		},
	}
	return h
}

// ServeWS handles GET /ws?mode=<dungeon|battle>.
func (h *Handler) ServeWS(c *gin.Context) {
	router := h.dungeonRouter
	if c.Query("mode") == "battle" {
		router = h.battleRouter
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", zap.Error(err))
		return
	}

	sess := player.NewSession(conn, h.logger)
	h.readPump(sess, router)
}

// readPump reads messages from the WebSocket connection and dispatches them.
func (h *Handler) readPump(s *player.Session, router *Router) {
	defer func() {
		h.handleDisconnect(s)
	}()

	s.SetReadDeadline()
	s.Conn.SetPongHandler(func(string) error {
		s.SetReadDeadline()
		return nil
	})

	for {
		_, raw, err := s.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseNoStatusReceived) {
				h.logger.Warn("ws unexpected close",
					zap.Int64("trainer_id", s.TrainerID()),
					zap.Error(err))
			}
			return
		}
		// Reset read deadline on any message (heartbeat or otherwise).
		s.SetReadDeadline()
		router.Dispatch(s, raw)
	}
}

// handleDisconnect cleans up after the connection closes. A disconnect
// abandons any in-flight dungeon run or manual battle.
func (h *Handler) handleDisconnect(s *player.Session) {
	s.Close()

	trainerID := s.TrainerID()
	if trainerID == 0 {
		return
	}

	// A reconnect may have displaced this session already; only the
	// registered session tears down the trainer's run.
	if h.sm.Get(trainerID) == s {
		h.dungeonMgr.Reset(trainerID)
		h.arenaMgr.Reset(trainerID)
		h.sm.Unregister(trainerID)
	}
	h.logger.Info("trainer disconnected",
		zap.Int64("trainer_id", trainerID),
		zap.String("username", s.Username()))
}
