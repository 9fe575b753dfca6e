package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"treevault/config"
	"treevault/jobs"
	"treevault/middleware"
	"treevault/routes"
	"treevault/services"
	"treevault/storage"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using system environment variables")
	}

	config.LoadConfig()
	cfg := config.AppConfig

	if cfg.Env == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := config.CreateContext(10 * time.Second)
	defer cancel()

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to MongoDB")
	}
	defer func() {
		disconnectCtx, disconnectCancel := config.CreateContext(5 * time.Second)
		defer disconnectCancel()
		if err := mongoClient.Disconnect(disconnectCtx); err != nil {
			log.Error().Err(err).Msg("failed to disconnect MongoDB")
		}
	}()

	if err := mongoClient.Ping(ctx, nil); err != nil {
		log.Fatal().Err(err).Msg("failed to ping MongoDB")
	}
	log.Info().Msg("connected to MongoDB")

	db := mongoClient.Database(cfg.DatabaseName)

	if err := storage.EnsureIndexes(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("failed to create indexes")
	}

	assets, err := storage.NewB2Store(ctx, cfg.B2ApplicationKeyID, cfg.B2ApplicationKey, cfg.B2BucketName)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize object storage")
	}

	treeStore := storage.NewTreeStore(db)
	recordStore := storage.NewFileRecordStore(db)
	jobStore := storage.NewJobStore(db)

	policy := services.RetryPolicy{MaxAttempts: cfg.JobMaxAttempts, BackoffBase: cfg.JobBackoffBase}
	scheduler := services.NewScheduler(jobStore, policy)
	treeService := services.NewTreeService(treeStore, recordStore, assets)
	deleteService := services.NewDeleteService(treeStore, recordStore, treeService, scheduler, cfg.RestoreWindow)
	cleanupService := services.NewCleanupService(treeStore, recordStore, assets, treeService, cfg.AssetDeleteBatchSize)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	worker := jobs.NewCleanupWorker(jobStore, cleanupService, policy, cfg.WorkerPollInterval, cfg.WorkerLease)
	go worker.Start(workerCtx)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(corsMiddleware(cfg.AllowedOrigins))

	api := router.Group("/api")
	routes.SetupRoutes(api, routes.Deps{
		TreeService:   treeService,
		DeleteService: deleteService,
		Assets:        assets,
		Config:        cfg,
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().UTC(),
		})
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	workerCancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(allowedOrigins))
	wildcard := len(allowedOrigins) == 0
	for _, origin := range allowedOrigins {
		if origin == "*" {
			wildcard = true
		}
		allowed[origin] = true
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		switch {
		case wildcard:
			c.Header("Access-Control-Allow-Origin", "*")
		case allowed[origin]:
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
