package rest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/clicker-pokemon/server/game/pokemon"
	mw "github.com/clicker-pokemon/server/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PokemonHandler exposes the owned pokemon collection.
type PokemonHandler struct {
	db     *gorm.DB
	store  *pokemon.Store
	logger *zap.Logger
}

// NewPokemonHandler creates a PokemonHandler.
func NewPokemonHandler(db *gorm.DB, store *pokemon.Store, logger *zap.Logger) *PokemonHandler {
	return &PokemonHandler{db: db, store: store, logger: logger}
}

// List returns every pokemon the trainer owns, moves included.
// GET /api/pokemon
func (h *PokemonHandler) List(c *gin.Context) {
	trainerID := mw.GetTrainerID(c)
	owned, err := h.store.ListByTrainer(trainerID)
	if err != nil {
		h.logger.Error("list pokemon failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"pokemon": owned, "count": len(owned)})
}

// Get returns one owned pokemon by id.
// GET /api/pokemon/:id
func (h *PokemonHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	trainerID := mw.GetTrainerID(c)

	owned, err := h.store.Get(trainerID, id)
	if errors.Is(err, pokemon.ErrNotOwned) {
		c.JSON(http.StatusNotFound, gin.H{"error": "pokemon not owned"})
		return
	}
	if err != nil {
		h.logger.Error("get pokemon failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, owned)
}

// Release permanently removes an owned pokemon and its moves.
// DELETE /api/pokemon/:id
func (h *PokemonHandler) Release(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	trainerID := mw.GetTrainerID(c)

	err = h.store.Release(trainerID, id)
	if errors.Is(err, pokemon.ErrNotOwned) {
		c.JSON(http.StatusNotFound, gin.H{"error": "pokemon not owned"})
		return
	}
	if err != nil {
		h.logger.Error("release pokemon failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
