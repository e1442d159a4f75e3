package rest

import (
	"net/http"

	mw "github.com/clicker-pokemon/server/middleware"
	"github.com/clicker-pokemon/server/model"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TrainerHandler exposes the trainer profile.
type TrainerHandler struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewTrainerHandler creates a TrainerHandler.
func NewTrainerHandler(db *gorm.DB, logger *zap.Logger) *TrainerHandler {
	return &TrainerHandler{db: db, logger: logger}
}

// Me returns the authenticated trainer's profile.
// GET /api/trainer/me
func (h *TrainerHandler) Me(c *gin.Context) {
	trainerID := mw.GetTrainerID(c)

	var tr model.Trainer
	if err := h.db.First(&tr, trainerID).Error; err != nil {
		h.logger.Error("load trainer failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	var ownedCount int64
	h.db.Model(&model.OwnedPokemon{}).Where("trainer_id = ?", trainerID).Count(&ownedCount)

	c.JSON(http.StatusOK, gin.H{
		"trainer":     tr,
		"owned_count": ownedCount,
	})
}
