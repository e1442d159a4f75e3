package rest_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/clicker-pokemon/server/api/rest"
	"github.com/clicker-pokemon/server/catalog"
	"github.com/clicker-pokemon/server/game/battle"
	"github.com/clicker-pokemon/server/game/dungeon"
	"github.com/clicker-pokemon/server/game/encounter"
	"github.com/clicker-pokemon/server/game/player"
	"github.com/clicker-pokemon/server/game/pokemon"
	"github.com/clicker-pokemon/server/model"
	"github.com/clicker-pokemon/server/scheduler"
	"github.com/clicker-pokemon/server/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func nopLogger() *zap.Logger { l, _ := zap.NewDevelopment(); return l }

type discardSink struct{}

func (discardSink) Emit(int64, string, interface{}) {}

func newDungeonManager(t *testing.T, db *gorm.DB) *dungeon.Manager {
	t.Helper()
	provider := catalog.NewStatic()
	gen := encounter.New(provider, rand.New(rand.NewSource(1)), encounter.Config{}, zap.NewNop())
	engine := battle.NewEngine(rand.New(rand.NewSource(1)), zap.NewNop())
	store := pokemon.NewStore(db)
	sched := scheduler.New(zap.NewNop())
	t.Cleanup(sched.Stop)
	c, ps := testutil.SetupTestCache(t)
	return dungeon.NewManager(db, provider, gen, engine, store, sched, discardSink{},
		c, ps, nil, dungeon.Config{TeamSize: 4}, zap.NewNop())
}

func newAdminRouter(t *testing.T, adminKey string) (*gin.Engine, *rest.AdminHandler) {
	db := testutil.SetupTestDB(t)
	sm := player.NewSessionManager(nopLogger())
	mgr := newDungeonManager(t, db)
	sched := scheduler.New(nopLogger())
	t.Cleanup(sched.Stop)
	h := rest.NewAdminHandler(db, sm, mgr, sched, nil, nopLogger())

	r := gin.New()
	r.Use(rest.AdminAuth(adminKey))
	r.GET("/api/admin/metrics", h.Metrics)
	r.GET("/api/admin/trainers", h.ListTrainers)
	r.POST("/api/admin/kick/:id", h.KickTrainer)
	r.POST("/api/admin/trainers/:id/ban", h.BanTrainer)
	r.GET("/api/admin/scheduler", h.ListSchedulerTasks)

	return r, h
}

func adminGet(r *gin.Engine, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if key != "" {
		req.Header.Set("X-Admin-Key", key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func adminPost(r *gin.Engine, path, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("X-Admin-Key", key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ---- AdminAuth ----

func TestAdminAuth_NoKey_Disabled(t *testing.T) {
	// When adminKey is empty, admin endpoints must be disabled (503) so the
	// server cannot be accidentally deployed without protection.
	r, _ := newAdminRouter(t, "")
	w := adminGet(r, "/api/admin/metrics", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAdminAuth_WrongKey(t *testing.T) {
	r, _ := newAdminRouter(t, "secret")
	w := adminGet(r, "/api/admin/metrics", "wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminAuth_CorrectKey(t *testing.T) {
	r, _ := newAdminRouter(t, "secret")
	w := adminGet(r, "/api/admin/metrics", "secret")
	assert.Equal(t, http.StatusOK, w.Code)
}

// ---- Metrics ----

func TestMetrics_Structure(t *testing.T) {
	r, _ := newAdminRouter(t, "test-key")
	w := adminGet(r, "/api/admin/metrics", "test-key")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp, "online_trainers")
	assert.Contains(t, resp, "active_runs")
	assert.Contains(t, resp, "scheduler_tasks")
}

// ---- ListTrainers ----

func TestListTrainers_Empty(t *testing.T) {
	r, _ := newAdminRouter(t, "test-key")
	w := adminGet(r, "/api/admin/trainers", "test-key")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, float64(0), resp["count"])
}

// ---- KickTrainer ----

func TestKickTrainer_NotFound(t *testing.T) {
	r, _ := newAdminRouter(t, "test-key")
	w := adminPost(r, "/api/admin/kick/999", "test-key", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestKickTrainer_InvalidID(t *testing.T) {
	r, _ := newAdminRouter(t, "test-key")
	w := adminPost(r, "/api/admin/kick/abc", "test-key", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// ---- BanTrainer ----

func TestBanTrainer_NotFound(t *testing.T) {
	r, _ := newAdminRouter(t, "test-key")
	w := adminPost(r, "/api/admin/trainers/999/ban", "test-key", `{"ban":true}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBanTrainer_Success(t *testing.T) {
	db := testutil.SetupTestDB(t)
	sm := player.NewSessionManager(nopLogger())
	mgr := newDungeonManager(t, db)
	sched := scheduler.New(nopLogger())
	t.Cleanup(sched.Stop)
	h := rest.NewAdminHandler(db, sm, mgr, sched, nil, nopLogger())

	tr := &model.Trainer{Username: "testuser", PasswordHash: "x", Status: 1}
	require.NoError(t, db.Create(tr).Error)

	r := gin.New()
	r.POST("/api/admin/trainers/:id/ban", h.BanTrainer)

	body, _ := json.Marshal(map[string]bool{"ban": true})
	req := httptest.NewRequest(http.MethodPost,
		fmt.Sprintf("/api/admin/trainers/%d/ban", tr.ID),
		bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var updated model.Trainer
	db.First(&updated, tr.ID)
	assert.Equal(t, 0, updated.Status)
}

func TestBanTrainer_Unban(t *testing.T) {
	db := testutil.SetupTestDB(t)
	sm := player.NewSessionManager(nopLogger())
	mgr := newDungeonManager(t, db)
	sched := scheduler.New(nopLogger())
	t.Cleanup(sched.Stop)
	h := rest.NewAdminHandler(db, sm, mgr, sched, nil, nopLogger())

	tr := &model.Trainer{Username: "unbanned", PasswordHash: "x", Status: 0}
	require.NoError(t, db.Create(tr).Error)

	r := gin.New()
	r.POST("/api/admin/trainers/:id/ban", h.BanTrainer)

	// ban=false → status=1
	body, _ := json.Marshal(map[string]bool{"ban": false})
	req := httptest.NewRequest(http.MethodPost,
		fmt.Sprintf("/api/admin/trainers/%d/ban", tr.ID),
		bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var updated model.Trainer
	db.First(&updated, tr.ID)
	assert.Equal(t, 1, updated.Status)
}

func TestBanTrainer_InvalidID(t *testing.T) {
	r, _ := newAdminRouter(t, "test-key")
	w := adminPost(r, "/api/admin/trainers/abc/ban", "test-key", `{"ban":true}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// ---- ListSchedulerTasks ----

func TestListSchedulerTasks_Empty(t *testing.T) {
	r, _ := newAdminRouter(t, "test-key")
	w := adminGet(r, "/api/admin/scheduler", "test-key")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp, "tasks")
}
