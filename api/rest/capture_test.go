package rest_test

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/clicker-pokemon/server/api/rest"
	"github.com/clicker-pokemon/server/catalog"
	"github.com/clicker-pokemon/server/game/capture"
	"github.com/clicker-pokemon/server/game/encounter"
	"github.com/clicker-pokemon/server/game/pokemon"
	mw "github.com/clicker-pokemon/server/middleware"
	"github.com/clicker-pokemon/server/model"
	"github.com/clicker-pokemon/server/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func intp(v int) *int { return &v }

// asTrainer injects the trainer identity the Auth middleware would set.
func asTrainer(trainerID int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(mw.TrainerIDKey, trainerID)
		c.Set(mw.UsernameKey, "red")
		c.Next()
	}
}

func newCaptureRouter(t *testing.T, seed int64) (*gin.Engine, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)

	provider := catalog.NewStatic()
	provider.AddSpecies(1, &catalog.Species{
		ID:        25,
		Name:      "Pikachu",
		Types:     []string{"Électrik"},
		CatchRate: intp(190),
		Stats:     catalog.BaseStats{HP: 35, Attack: 55, Defense: 40, Speed: 90},
	})
	provider.Moves[25] = []catalog.Move{
		{ID: 84, Name: "Éclair", Type: "Électrik", Power: intp(40), Accuracy: intp(100), PP: 30, Level: 1},
	}

	rng := rand.New(rand.NewSource(seed))
	gen := encounter.New(provider, rng, encounter.Config{}, zap.NewNop())
	store := pokemon.NewStore(db)
	movesets := pokemon.NewMoveSet(provider, rng, zap.NewNop())
	resolver := capture.NewResolver(db, gen, store, movesets, nil, rng, zap.NewNop())
	h := rest.NewCaptureHandler(resolver, nil, zap.NewNop())

	r := gin.New()
	g := r.Group("/api", asTrainer(1))
	g.GET("/capture/:zone", h.Current)
	g.POST("/capture/:zone/attempt", h.Attempt)
	g.POST("/capture/:zone/release", h.Release)
	return r, db
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func post(r *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCapture_Current_RollsEncounter(t *testing.T) {
	r, db := newCaptureRouter(t, 1)

	w := get(r, "/api/capture/1")
	require.Equal(t, http.StatusOK, w.Code)

	var wild map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &wild))
	assert.Equal(t, float64(25), wild["pokedexId"])

	var count int64
	db.Model(&model.WildEncounter{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestCapture_Current_IsStable(t *testing.T) {
	r, _ := newCaptureRouter(t, 1)

	w1 := get(r, "/api/capture/1")
	require.Equal(t, http.StatusOK, w1.Code)
	w2 := get(r, "/api/capture/1")
	require.Equal(t, http.StatusOK, w2.Code)

	// Same pending encounter both times.
	assert.JSONEq(t, w1.Body.String(), w2.Body.String())
}

func TestCapture_Current_InvalidZone(t *testing.T) {
	r, _ := newCaptureRouter(t, 1)
	assert.Equal(t, http.StatusBadRequest, get(r, "/api/capture/zero").Code)
	assert.Equal(t, http.StatusBadRequest, get(r, "/api/capture/0").Code)
}

func TestCapture_Current_EmptyZone(t *testing.T) {
	r, _ := newCaptureRouter(t, 1)
	// Zone 9 has no species registered.
	assert.Equal(t, http.StatusNotFound, get(r, "/api/capture/9").Code)
}

func TestCapture_Attempt_WithoutEncounter(t *testing.T) {
	r, _ := newCaptureRouter(t, 1)
	assert.Equal(t, http.StatusNotFound, post(r, "/api/capture/1/attempt").Code)
}

func TestCapture_Attempt_EventuallyCatches(t *testing.T) {
	r, db := newCaptureRouter(t, 7)

	require.Equal(t, http.StatusOK, get(r, "/api/capture/1").Code)

	// Catch rate 190 → ~95% per throw; a handful of attempts must land one.
	caught := false
	for i := 0; i < 20 && !caught; i++ {
		w := post(r, "/api/capture/1/attempt")
		require.Equal(t, http.StatusOK, w.Code)
		var res map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		caught = res["success"].(bool)
	}
	require.True(t, caught)

	var owned []model.OwnedPokemon
	require.NoError(t, db.Preload("Moves").Find(&owned).Error)
	require.Len(t, owned, 1)
	assert.Equal(t, 25, owned[0].SpeciesID)
	assert.NotEmpty(t, owned[0].Moves)

	// A fresh encounter replaced the captured one.
	var count int64
	db.Model(&model.WildEncounter{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestCapture_Release_Rerolls(t *testing.T) {
	r, db := newCaptureRouter(t, 1)

	require.Equal(t, http.StatusOK, get(r, "/api/capture/1").Code)
	var before model.WildEncounter
	require.NoError(t, db.First(&before).Error)

	w := post(r, "/api/capture/1/release")
	require.Equal(t, http.StatusOK, w.Code)

	var after model.WildEncounter
	require.NoError(t, db.First(&after).Error)
	assert.NotEqual(t, before.ID, after.ID)
}
