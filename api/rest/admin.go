package rest

import (
	"net/http"
	"strconv"

	"github.com/clicker-pokemon/server/audit"
	"github.com/clicker-pokemon/server/game/dungeon"
	"github.com/clicker-pokemon/server/game/player"
	"github.com/clicker-pokemon/server/model"
	"github.com/clicker-pokemon/server/scheduler"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AdminHandler handles admin-only REST endpoints.
// Routes should be protected by AdminAuth middleware.
type AdminHandler struct {
	db         *gorm.DB
	sm         *player.SessionManager
	dungeonMgr *dungeon.Manager
	sched      *scheduler.Scheduler
	auditSvc   *audit.Service
	logger     *zap.Logger
}

// NewAdminHandler creates an AdminHandler. auditSvc may be nil.
func NewAdminHandler(
	db *gorm.DB,
	sm *player.SessionManager,
	dungeonMgr *dungeon.Manager,
	sched *scheduler.Scheduler,
	auditSvc *audit.Service,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		db:         db,
		sm:         sm,
		dungeonMgr: dungeonMgr,
		sched:      sched,
		auditSvc:   auditSvc,
		logger:     logger,
	}
}

// Metrics returns server health metrics.
// GET /api/admin/metrics
func (h *AdminHandler) Metrics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"online_trainers": h.sm.Count(),
		"active_runs":     h.dungeonMgr.ActiveRuns(),
		"scheduler_tasks": h.sched.ListTickers(),
	})
}

// ListTrainers returns a snapshot of all online trainers.
// GET /api/admin/trainers
func (h *AdminHandler) ListTrainers(c *gin.Context) {
	sessions := h.sm.All()
	type trainerInfo struct {
		TrainerID int64  `json:"trainer_id"`
		Username  string `json:"username"`
	}
	result := make([]trainerInfo, 0, len(sessions))
	for _, s := range sessions {
		result = append(result, trainerInfo{
			TrainerID: s.TrainerID(),
			Username:  s.Username(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"trainers": result, "count": len(result)})
}

// KickTrainer forcibly disconnects a trainer and abandons their run.
// POST /api/admin/kick/:id
func (h *AdminHandler) KickTrainer(c *gin.Context) {
	trainerID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	s := h.sm.Get(trainerID)
	if s == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "trainer not online"})
		return
	}
	h.dungeonMgr.Reset(trainerID)
	s.Close()
	h.logger.Info("admin kicked trainer", zap.Int64("trainer_id", trainerID))
	if h.auditSvc != nil {
		h.auditSvc.Log(audit.Entry{
			TrainerID: &trainerID,
			Action:    audit.ActionKick,
			IP:        c.ClientIP(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// BanTrainer bans or unbans a trainer account.
// POST /api/admin/trainers/:id/ban
func (h *AdminHandler) BanTrainer(c *gin.Context) {
	trainerID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req struct {
		Ban bool `json:"ban"`
	}
	_ = c.ShouldBindJSON(&req)

	status := 1
	if req.Ban {
		status = 0
	}
	result := h.db.Model(&model.Trainer{}).Where("id = ?", trainerID).Update("status", status)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "trainer not found"})
		return
	}

	// Kick the trainer if currently online.
	if req.Ban {
		if s := h.sm.Get(trainerID); s != nil {
			h.dungeonMgr.Reset(trainerID)
			s.Close()
		}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "status": status})
}

// ListSchedulerTasks returns names of all registered ticker tasks.
// GET /api/admin/scheduler
func (h *AdminHandler) ListSchedulerTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": h.sched.ListTickers()})
}

// AdminAuth returns a middleware that checks the X-Admin-Key header.
// WARNING: if adminKey is empty all admin endpoints are disabled (503) so the
// server cannot be accidentally deployed without protection. Set a non-empty
// server.admin_key in config to enable admin routes.
func AdminAuth(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminKey == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable,
				gin.H{"error": "admin endpoints disabled: set server.admin_key in config"})
			return
		}
		key := c.GetHeader("X-Admin-Key")
		if key != adminKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
