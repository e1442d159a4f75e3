package main

import (
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	apirest "github.com/clicker-pokemon/server/api/rest"
	"github.com/clicker-pokemon/server/api/sse"
	apows "github.com/clicker-pokemon/server/api/ws"
	"github.com/clicker-pokemon/server/audit"
	"github.com/clicker-pokemon/server/cache"
	"github.com/clicker-pokemon/server/catalog"
	"github.com/clicker-pokemon/server/config"
	dbadapter "github.com/clicker-pokemon/server/db"
	"github.com/clicker-pokemon/server/game/arena"
	"github.com/clicker-pokemon/server/game/battle"
	"github.com/clicker-pokemon/server/game/capture"
	"github.com/clicker-pokemon/server/game/dungeon"
	"github.com/clicker-pokemon/server/game/encounter"
	"github.com/clicker-pokemon/server/game/player"
	"github.com/clicker-pokemon/server/game/pokemon"
	mw "github.com/clicker-pokemon/server/middleware"
	"github.com/clicker-pokemon/server/model"
	"github.com/clicker-pokemon/server/scheduler"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	// Warn loudly if admin endpoints will be disabled.
	if cfg.Server.AdminKey == "" {
		logger.Warn("server.admin_key is not set; admin endpoints are disabled")
	}

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	logger.Info("DB initialized")

	// ---- Audit ----
	auditSvc := audit.New(db, logger)
	defer auditSvc.Stop(nil)

	// ---- Cache / PubSub ----
	cacheConfig := cache.CacheConfig{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
		LocalPubSubBuf:  cfg.Cache.LocalPubSubBuf,
	}
	c, err := cache.NewCache(cacheConfig)
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	pubsub, err := cache.NewPubSub(cacheConfig)
	if err != nil {
		log.Fatalf("pubsub: %v", err)
	}
	logger.Info("Cache initialized")

	// ---- Species Catalog ----
	provider := catalog.NewClient(catalog.ClientConfig{
		BaseURL:     cfg.Catalog.BaseURL,
		LearnsetURL: cfg.Catalog.LearnsetURL,
		Timeout:     cfg.Catalog.Timeout,
		CacheTTL:    cfg.Catalog.CacheTTL,
	}, c, logger)

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	defer sched.Stop()

	// ---- Game Systems ----
	sm := player.NewSessionManager(logger)
	defer sm.CloseAllSessions()

	gen := encounter.New(provider, rand.New(rand.NewSource(time.Now().UnixNano())), encounter.Config{
		LevelCap:  cfg.Game.WildLevelCap,
		ShinyOdds: cfg.Game.ShinyOdds,
	}, logger)
	engine := battle.NewEngine(rand.New(rand.NewSource(time.Now().UnixNano())), logger)
	store := pokemon.NewStore(db)
	movesets := pokemon.NewMoveSet(provider, rand.New(rand.NewSource(time.Now().UnixNano())), logger)
	resolver := capture.NewResolver(db, gen, store, movesets, pubsub,
		rand.New(rand.NewSource(time.Now().UnixNano())), logger)

	bridge := apows.NewEventBridge(sm, logger)
	dungeonMgr := dungeon.NewManager(db, provider, gen, engine, store, sched, bridge, c, pubsub, auditSvc,
		dungeon.Config{
			TeamSize:       cfg.Game.TeamSize,
			TurnDelay:      time.Duration(cfg.Game.TurnDelayMs) * time.Millisecond,
			KODelay:        time.Duration(cfg.Game.KODelayMs) * time.Millisecond,
			NextFightDelay: time.Duration(cfg.Game.NextFightDelayMs) * time.Millisecond,
		}, logger)

	// ---- WS Router ----
	arenaMgr := arena.NewManager(db, provider, gen, engine, store,
		rand.New(rand.NewSource(time.Now().UnixNano())),
		arena.Config{TeamSize: cfg.Game.TeamSize}, logger)

	sh := apows.NewSessionHandlers(sm, c, cfg.Security, logger)

	dungeonRouter := apows.NewRouter(logger)
	sh.Register(dungeonRouter)
	apows.NewDungeonHandlers(sm, dungeonMgr, logger).Register(dungeonRouter)

	battleRouter := apows.NewRouter(logger)
	sh.Register(battleRouter)
	apows.NewBattleHandlers(arenaMgr, logger).Register(battleRouter)

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	// Health check
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	// ---- REST API routes ----
	authH := apirest.NewAuthHandler(db, c, cfg.Security, auditSvc)
	trainerH := apirest.NewTrainerHandler(db, logger)
	pokeH := apirest.NewPokemonHandler(db, store, logger)
	captureH := apirest.NewCaptureHandler(resolver, auditSvc, logger)
	dungeonH := apirest.NewDungeonHandler(db, logger)
	rankH := apirest.NewRankingHandler(db, c, logger)
	adminH := apirest.NewAdminHandler(db, sm, dungeonMgr, sched, auditSvc, logger)

	api := r.Group("/api")
	{
		authG := api.Group("/auth")
		authG.POST("/login", authH.Login)
		authG.POST("/logout", mw.Auth(cfg.Security, c), authH.Logout)
		authG.POST("/refresh", mw.Auth(cfg.Security, c), authH.Refresh)

		trainerG := api.Group("/trainer")
		trainerG.Use(mw.Auth(cfg.Security, c))
		trainerG.GET("/me", trainerH.Me)

		pokeG := api.Group("/pokemon")
		pokeG.Use(mw.Auth(cfg.Security, c))
		pokeG.GET("", pokeH.List)
		pokeG.GET("/:id", pokeH.Get)
		pokeG.DELETE("/:id", pokeH.Release)

		captureG := api.Group("/capture")
		captureG.Use(mw.Auth(cfg.Security, c))
		captureG.GET("/:zone", captureH.Current)
		captureG.POST("/:zone/attempt", captureH.Attempt)
		captureG.POST("/:zone/release", captureH.Release)

		dungeonsG := api.Group("/dungeons")
		dungeonsG.Use(mw.Auth(cfg.Security, c))
		dungeonsG.GET("", dungeonH.List)
		dungeonsG.GET("/:id", dungeonH.Get)

		rankG := api.Group("/ranking")
		rankG.GET("/clears", rankH.TopClears)

		adminG := api.Group("/admin")
		adminG.Use(apirest.AdminAuth(cfg.Server.AdminKey))
		adminG.GET("/metrics", adminH.Metrics)
		adminG.GET("/trainers", adminH.ListTrainers)
		adminG.POST("/kick/:id", adminH.KickTrainer)
		adminG.POST("/trainers/:id/ban", adminH.BanTrainer)
		adminG.GET("/scheduler", adminH.ListSchedulerTasks)
		adminG.POST("/ranking/refresh", rankH.RefreshRanking)
	}

	// ---- WebSocket ----
	wsH := apows.NewHandler(sm, dungeonMgr, arenaMgr, dungeonRouter, battleRouter,
		cfg.Security.AllowedOrigins, logger)
	r.GET("/ws", wsH.ServeWS)

	// ---- SSE activity feed ----
	sseH := sse.NewHandler(pubsub, c, cfg.Security, logger)
	r.GET("/sse", sseH.ServeSSE)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Server listening", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
