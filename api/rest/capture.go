package rest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/clicker-pokemon/server/audit"
	"github.com/clicker-pokemon/server/catalog"
	"github.com/clicker-pokemon/server/game/capture"
	mw "github.com/clicker-pokemon/server/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CaptureHandler exposes the wild encounter endpoints.
type CaptureHandler struct {
	resolver *capture.Resolver
	auditSvc *audit.Service
	logger   *zap.Logger
}

// NewCaptureHandler creates a CaptureHandler. auditSvc may be nil.
func NewCaptureHandler(resolver *capture.Resolver, auditSvc *audit.Service, logger *zap.Logger) *CaptureHandler {
	return &CaptureHandler{resolver: resolver, auditSvc: auditSvc, logger: logger}
}

// Current returns the trainer's pending wild encounter for a zone,
// rolling one if needed.
// GET /api/capture/:zone
func (h *CaptureHandler) Current(c *gin.Context) {
	zone, err := strconv.Atoi(c.Param("zone"))
	if err != nil || zone < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid zone"})
		return
	}
	trainerID := mw.GetTrainerID(c)

	wild, err := h.resolver.GetOrCreate(c.Request.Context(), trainerID, zone)
	if err != nil {
		h.captureError(c, err)
		return
	}
	c.JSON(http.StatusOK, wild)
}

// Attempt throws a ball at the pending encounter.
// POST /api/capture/:zone/attempt
func (h *CaptureHandler) Attempt(c *gin.Context) {
	zone, err := strconv.Atoi(c.Param("zone"))
	if err != nil || zone < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid zone"})
		return
	}
	trainerID := mw.GetTrainerID(c)

	result, err := h.resolver.Attempt(c.Request.Context(), trainerID, zone)
	if errors.Is(err, capture.ErrNoPending) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no pending encounter"})
		return
	}
	if err != nil {
		h.captureError(c, err)
		return
	}

	if result.Caught && h.auditSvc != nil {
		h.auditSvc.Log(audit.Entry{
			TrainerID:   &trainerID,
			TrainerName: mw.GetUsername(c),
			Action:      audit.ActionCapture,
			Request:     map[string]int{"zone": zone},
			Response:    map[string]interface{}{"speciesId": result.Wild.SpeciesID, "level": result.Wild.Level},
			IP:          c.ClientIP(),
		})
	}
	c.JSON(http.StatusOK, result)
}

// Release discards the pending encounter and rolls a fresh one.
// POST /api/capture/:zone/release
func (h *CaptureHandler) Release(c *gin.Context) {
	zone, err := strconv.Atoi(c.Param("zone"))
	if err != nil || zone < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid zone"})
		return
	}
	trainerID := mw.GetTrainerID(c)

	wild, err := h.resolver.Release(c.Request.Context(), trainerID, zone)
	if err != nil {
		h.captureError(c, err)
		return
	}

	if h.auditSvc != nil {
		h.auditSvc.Log(audit.Entry{
			TrainerID: &trainerID,
			Action:    audit.ActionRelease,
			Request:   map[string]int{"zone": zone},
			IP:        c.ClientIP(),
		})
	}
	c.JSON(http.StatusOK, wild)
}

func (h *CaptureHandler) captureError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, catalog.ErrEmptyPool):
		c.JSON(http.StatusNotFound, gin.H{"error": "no species in zone"})
	case errors.Is(err, catalog.ErrUpstream):
		c.JSON(http.StatusBadGateway, gin.H{"error": "catalog unavailable"})
	default:
		h.logger.Error("capture request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
