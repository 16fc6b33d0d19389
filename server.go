package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/buildhub/datasync_backend/config"
	"github.com/buildhub/datasync_backend/middlewares"
	"github.com/buildhub/datasync_backend/models"
	"github.com/buildhub/datasync_backend/utils"
	"github.com/buildhub/datasync_backend/workflow"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

// server carries what every handler needs; the database is resolved per
// request through config.GetDB so the port can open before it connects.
type server struct {
	logger *logrus.Logger
	opts   workflow.Options
}

func newServer(logger *logrus.Logger, settings config.SyncSettings) *server {
	opts := workflow.NewOptions(settings)
	opts.Locker = workflow.NewFallbackUserLocker(config.GetRedisLock)
	return &server{logger: logger, opts: opts}
}

func corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		// Deny all unless an allowlist is configured.
		cfg.AllowOrigins = utils.SplitAndTrim(allowedOrigins)
		if len(cfg.AllowOrigins) == 0 {
			cfg.AllowOriginFunc = func(string) bool { return false }
		}
	} else {
		cfg.AllowAllOrigins = true
	}
	cfg.AddAllowMethods("GET", "POST", "OPTIONS")
	cfg.AddAllowHeaders("Origin", "Content-Type", "Authorization", middlewares.CorrelationHeader)
	cfg.AddExposeHeaders("Content-Length", middlewares.CorrelationHeader)
	return cfg
}

func rateLimitFromEnv() (int64, time.Duration, bool) {
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		return 0, 0, false
	}
	limit := int64(600)
	if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			limit = n
		}
	}
	windowSec := int64(60)
	if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			windowSec = n
		}
	}
	return limit, time.Duration(windowSec) * time.Second, true
}

func (s *server) routes() *gin.Engine {
	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.Use(func(c *gin.Context) {
		// Redis is optional; the database is not.
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})
	r.Use(cors.New(corsConfig()))
	if limit, window, ok := rateLimitFromEnv(); ok {
		r.Use(middlewares.NewRateLimiter(config.GetRedisDB, limit, window).Middleware())
	}
	r.Use(middlewares.AuthMiddleware())
	r.Use(customErrorLogger(s.logger))
	r.Use(gin.Recovery())

	// Pub/Sub push is authenticated at the ingress (OIDC push auth).
	r.POST("/pubsub", s.syncPubSubHandler())

	api := r.Group("/api")
	syncGroup := api.Group("/sync", middlewares.RequireRole(utils.RoleAdmin, utils.RoleOperator))
	syncGroup.POST("/orders", s.syncOrderHandler())
	syncGroup.POST("/projects", s.syncProjectHandler())

	consistency := api.Group("/consistency", middlewares.RequireRole(utils.RoleAdmin))
	consistency.GET("/:userId", s.checkConsistencyHandler())
	consistency.GET("/:userId/latest", s.latestConsistencyHandler())
	consistency.GET("/:userId/export", s.exportConsistencyHandler())
	consistency.POST("/:userId/reconcile", s.reconcileHandler())

	// Roles on /query are enforced per field by @hasRole.
	r.POST("/query", middlewares.LoaderMiddleware(), s.graphqlHandler())

	// Ops tooling (admin only): replay outbox rows that were marked DEAD/FAILED.
	r.POST("/internal/ops/outbox/replay", middlewares.RequireRole(utils.RoleAdmin), s.outboxReplayHandler())
	r.NoRoute(customNotFoundHandler)
	return r
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) > 0 && logger != nil {
			logger.WithFields(logrus.Fields{
				"field": "http",
				"path":  c.FullPath(),
			}).Error(c.Errors.String())
		}
	}
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()
	settings, err := config.LoadSyncSettings()
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "settings"}).Fatal(err.Error())
	}

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	s := newServer(logger, settings)
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: s.routes(),
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	if os.Getenv("REDIS_ADDRESS") != "" {
		config.ConnectRedisWithRetry(sigCtx)
	} else {
		logger.WithFields(logrus.Fields{"field": "redis"}).Warn("REDIS_ADDRESS not set; report cache and distributed locks disabled")
	}

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	if !config.SkipMigrations() {
		if err := models.MigrateTable(db); err != nil {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Fatal(err.Error())
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Outbox workers stop before the HTTP drain.
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	workersDone := make(chan struct{})
	go func() {
		defer close(workersDone)
		if config.OutboxDirectProcessing() {
			workflow.NewOutboxDirectProcessor(db, logger, s.opts).Run(workerCtx)
			return
		}
		workflow.NewOutboxDispatcher(db, logger).Run(workerCtx)
	}()

	logger.WithFields(logrus.Fields{
		"info":            "Connection Established",
		"parallel_fanout": settings.ParallelFanout,
		"direct_outbox":   config.OutboxDirectProcessing(),
	}).Info("listening on port ", port)
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	cancelWorkers()
	<-workersDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}
