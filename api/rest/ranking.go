package rest

import (
	"net/http"
	"strconv"

	"github.com/clicker-pokemon/server/cache"
	"github.com/clicker-pokemon/server/game/dungeon"
	"github.com/clicker-pokemon/server/model"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RankingHandler handles leaderboard REST endpoints.
type RankingHandler struct {
	db     *gorm.DB
	cache  cache.Cache
	logger *zap.Logger
}

// NewRankingHandler creates a RankingHandler.
func NewRankingHandler(db *gorm.DB, c cache.Cache, logger *zap.Logger) *RankingHandler {
	return &RankingHandler{db: db, cache: c, logger: logger}
}

const rankingTop = 100

// RankEntry is one row in the leaderboard.
type RankEntry struct {
	Rank      int    `json:"rank"`
	TrainerID int64  `json:"trainer_id"`
	Username  string `json:"username"`
	Clears    int    `json:"dungeon_clears"`
}

// TopClears returns the top trainers sorted by dungeon clears.
// GET /api/ranking/clears?limit=20
func (h *RankingHandler) TopClears(c *gin.Context) {
	limit := 20
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 && l <= rankingTop {
		limit = l
	}

	// Try cached ranking from sorted set.
	ctx := c.Request.Context()
	members, err := h.cache.ZRevRange(ctx, dungeon.RankingKey, 0, int64(limit-1))
	if err == nil && len(members) > 0 {
		entries := make([]RankEntry, 0, len(members))
		for i, m := range members {
			trainerID, err := strconv.ParseInt(m, 10, 64)
			if err != nil {
				continue
			}
			score, _ := h.cache.ZScore(ctx, dungeon.RankingKey, m)
			entries = append(entries, RankEntry{
				Rank:      i + 1,
				TrainerID: trainerID,
				Clears:    int(score),
			})
		}
		// Enrich with trainer names.
		h.enrichNames(entries)
		c.JSON(http.StatusOK, gin.H{"ranking": entries})
		return
	}

	// Fall back to DB query.
	var trainers []model.Trainer
	h.db.Select("id, username, dungeon_clears").
		Where("dungeon_clears > 0").
		Order("dungeon_clears DESC").
		Limit(limit).
		Find(&trainers)

	entries := make([]RankEntry, len(trainers))
	for i, tr := range trainers {
		entries[i] = RankEntry{
			Rank:      i + 1,
			TrainerID: tr.ID,
			Username:  tr.Username,
			Clears:    tr.DungeonClears,
		}
		// Refresh cache entry.
		_ = h.cache.ZAdd(ctx, dungeon.RankingKey, float64(tr.DungeonClears), strconv.FormatInt(tr.ID, 10))
	}
	c.JSON(http.StatusOK, gin.H{"ranking": entries})
}

// RefreshRanking rebuilds the ranking sorted set from the DB.
// Called periodically by the scheduler; also exposed as POST /api/admin/ranking/refresh.
func (h *RankingHandler) RefreshRanking(c *gin.Context) {
	var trainers []model.Trainer
	if err := h.db.Select("id, dungeon_clears").
		Where("dungeon_clears > 0").
		Order("dungeon_clears DESC").
		Limit(rankingTop).
		Find(&trainers).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	ctx := c.Request.Context()
	for _, tr := range trainers {
		_ = h.cache.ZAdd(ctx, dungeon.RankingKey, float64(tr.DungeonClears), strconv.FormatInt(tr.ID, 10))
	}
	c.JSON(http.StatusOK, gin.H{"refreshed": len(trainers)})
}

func (h *RankingHandler) enrichNames(entries []RankEntry) {
	if len(entries) == 0 {
		return
	}
	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.TrainerID
	}
	var trainers []model.Trainer
	h.db.Select("id, username, dungeon_clears").Where("id IN ?", ids).Find(&trainers)
	nameMap := make(map[int64]model.Trainer, len(trainers))
	for _, tr := range trainers {
		nameMap[tr.ID] = tr
	}
	for i := range entries {
		if tr, ok := nameMap[entries[i].TrainerID]; ok {
			entries[i].Username = tr.Username
			entries[i].Clears = tr.DungeonClears
		}
	}
}
