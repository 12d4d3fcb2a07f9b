package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/luminar-sync-api/api/swagger"
	"github.com/noah-isme/luminar-sync-api/internal/handler"
	"github.com/noah-isme/luminar-sync-api/internal/middleware"
	"github.com/noah-isme/luminar-sync-api/internal/repository"
	"github.com/noah-isme/luminar-sync-api/internal/service"
	"github.com/noah-isme/luminar-sync-api/internal/sge"
	"github.com/noah-isme/luminar-sync-api/pkg/cache"
	"github.com/noah-isme/luminar-sync-api/pkg/config"
	"github.com/noah-isme/luminar-sync-api/pkg/database"
	"github.com/noah-isme/luminar-sync-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/luminar-sync-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/luminar-sync-api/pkg/middleware/requestid"
	"github.com/noah-isme/luminar-sync-api/pkg/secrets"
)

// @title Luminar Sync API
// @version 0.1.0
// @description Attendance ledger and SGE reconciliation service
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, roster cache disabled", "error", err)
		redisClient = nil
	}

	sealer, err := secrets.NewSealer(cfg.SGE.CredentialSealKey)
	if err != nil {
		logr.Sugar().Fatalw("invalid credential seal key", "error", err)
	}

	validate := validator.New()
	metrics := service.NewMetricsService()
	gateway := sge.NewHTTPClient(cfg.SGE.BaseURL, cfg.SGE.Timeout, logr)

	attendanceRepo := repository.NewAttendanceRepository(db)
	mappingRepo := repository.NewMappingRepository(db)
	accountRepo := repository.NewAccountRepository(db, sealer)
	classRepo := repository.NewClassRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	rosterCache := repository.NewRosterCacheRepository(redisClient, cfg.SGE.RosterCacheTTL, logr)

	tokenService := service.NewTokenService(cfg.JWT)
	identityService := service.NewIdentityService(mappingRepo, logr)
	accountService := service.NewAccountService(accountRepo, validate, logr)
	ledgerService := service.NewLedgerService(attendanceRepo, validate, logr)
	syncService := service.NewSyncService(identityService, classRepo, subjectRepo, attendanceRepo, gateway, rosterCache, metrics, cfg.SGE, logr)
	divergenceService := service.NewDivergenceService(identityService, classRepo, subjectRepo, gateway, rosterCache, metrics, cfg.SGE, logr)

	syncHandler := handler.NewSyncHandler(syncService, divergenceService, accountService, ledgerService, identityService, validate)
	attendanceHandler := handler.NewAttendanceHandler(ledgerService)
	accountHandler := handler.NewAccountHandler(accountService)
	metricsHandler := handler.NewMetricsHandler(metrics)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	api := r.Group(cfg.APIPrefix, middleware.JWT(tokenService))
	{
		api.POST("/attendance", attendanceHandler.Upsert)
		api.GET("/attendance", attendanceHandler.List)
		api.DELETE("/attendance/:id", attendanceHandler.Delete)

		api.POST("/sync/push", syncHandler.Push)
		api.POST("/sync/verify", syncHandler.Verify)
		api.POST("/sync/delete", syncHandler.Delete)
		api.GET("/sync/status", syncHandler.Status)
		api.GET("/sync/divergence", syncHandler.Divergence)
		api.GET("/sync/mappings", syncHandler.Mappings)

		api.GET("/sync/account", accountHandler.Get)
		api.PUT("/sync/account", accountHandler.Upsert)
	}

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
