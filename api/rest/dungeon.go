package rest

import (
	"net/http"
	"strconv"

	"github.com/clicker-pokemon/server/model"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DungeonHandler lists the dungeons a trainer can enter.
type DungeonHandler struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewDungeonHandler creates a DungeonHandler.
func NewDungeonHandler(db *gorm.DB, logger *zap.Logger) *DungeonHandler {
	return &DungeonHandler{db: db, logger: logger}
}

// List returns every enabled dungeon.
// GET /api/dungeons
func (h *DungeonHandler) List(c *gin.Context) {
	var dungeons []model.Dungeon
	if err := h.db.Where("enabled = ?", true).Order("id").Find(&dungeons).Error; err != nil {
		h.logger.Error("list dungeons failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"dungeons": dungeons, "count": len(dungeons)})
}

// Get returns one dungeon by id.
// GET /api/dungeons/:id
func (h *DungeonHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var d model.Dungeon
	if err := h.db.Where("id = ? AND enabled = ?", id, true).First(&d).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "dungeon not found"})
		return
	}
	c.JSON(http.StatusOK, d)
}
