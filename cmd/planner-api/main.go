package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rutaescolar/planner-api/internal/feasibility"
	"github.com/rutaescolar/planner-api/internal/handler"
	"github.com/rutaescolar/planner-api/internal/middleware"
	"github.com/rutaescolar/planner-api/internal/repository"
	"github.com/rutaescolar/planner-api/internal/service"
	"github.com/rutaescolar/planner-api/pkg/cache"
	"github.com/rutaescolar/planner-api/pkg/config"
	"github.com/rutaescolar/planner-api/pkg/database"
	"github.com/rutaescolar/planner-api/pkg/logger"
	corsmiddleware "github.com/rutaescolar/planner-api/pkg/middleware/cors"
	reqidmiddleware "github.com/rutaescolar/planner-api/pkg/middleware/requestid"
)

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Warnw("postgres unavailable, publish archive disabled", "error", err)
		db = nil
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, drafts disabled", "error", err)
		redisClient = nil
	}

	feasClient := feasibility.NewClient(cfg.Feasibility, logr)
	go feasClient.Run(ctx)

	metrics := service.NewMetricsService()

	snapshots := repository.NewSnapshotRepository(redisClient, logr, 0)
	var archive service.ArchiveStore
	var versions handler.VersionReader
	if db != nil {
		repo := repository.NewPublishRepository(db)
		archive = repo
		versions = repo
	}

	workspace := service.NewWorkspaceService(feasClient, snapshots, archive, metrics, logr, cfg.Workspace)
	reassigner := service.NewReassignmentService(workspace, metrics, logr, cfg.Workspace.ReassignLoadPenalty, cfg.Workspace.AutoReassign)
	exports := service.NewExportService(workspace, cfg.Exports.Title)

	workspaceHandler := handler.NewWorkspaceHandler(workspace, reassigner, versions)
	exportHandler := handler.NewExportHandler(exports)
	metricsHandler := handler.NewMetricsHandler(metrics, feasClient.State)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(cfg.JWT.Secret, cfg.JWT.Enabled))
	{
		ws := api.Group("/workspace")
		ws.GET("", workspaceHandler.Get)
		ws.POST("/load", workspaceHandler.Load)
		ws.PUT("/day", workspaceHandler.SwitchDay)
		ws.POST("/routes/drop", workspaceHandler.DropRoute)
		ws.POST("/routes/transfer", workspaceHandler.ToTransfer)
		ws.POST("/routes/from-transfer", workspaceHandler.FromTransfer)
		ws.POST("/buses", workspaceHandler.AddBus)
		ws.POST("/buses/with-route", workspaceHandler.CreateBus)
		ws.DELETE("/buses/:busId", workspaceHandler.RemoveBus)
		ws.DELETE("/buses/:busId/routes/:routeId", workspaceHandler.RemoveRoute)
		ws.POST("/validate", workspaceHandler.Validate)
		ws.GET("/report", workspaceHandler.Report)
		ws.POST("/reassign", workspaceHandler.Reassign)
		ws.POST("/refresh", workspaceHandler.Refresh)
		ws.POST("/draft", workspaceHandler.SaveDraft)
		ws.POST("/publish", workspaceHandler.Publish)
		ws.GET("/versions", workspaceHandler.Versions)
		ws.GET("/versions/:id", workspaceHandler.Version)
		ws.GET("/stats", workspaceHandler.Stats)

		api.GET("/exports/incidents", exportHandler.Incidents)
		api.GET("/exports/schedule", exportHandler.Schedule)
		api.GET("/system/metrics", metricsHandler.Snapshot)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown failed", "error", err)
	}
}
