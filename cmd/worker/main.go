package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/gin-gonic/gin"
	"github.com/waterplan/cadastre-ingest/internal/config"
	"github.com/waterplan/cadastre-ingest/internal/database"
	"github.com/waterplan/cadastre-ingest/internal/handlers"
	"github.com/waterplan/cadastre-ingest/internal/logger"
	"github.com/waterplan/cadastre-ingest/internal/middleware"
	"github.com/waterplan/cadastre-ingest/internal/normalize"
	"github.com/waterplan/cadastre-ingest/internal/projection"
	"github.com/waterplan/cadastre-ingest/internal/queue"
	"github.com/waterplan/cadastre-ingest/internal/repository"
	"github.com/waterplan/cadastre-ingest/internal/services"
	"github.com/waterplan/cadastre-ingest/internal/storage"
)

const (
	shutdownTimeout = 30 * time.Second
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	log := logger.New(cfg.Server.Env)
	log.Info("Starting ingestion worker", map[string]interface{}{
		"version":     handlers.WorkerVersion,
		"environment": cfg.Server.Env,
		"port":        cfg.Server.Port,
		"queue_url":   cfg.Queue.URL,
	})

	// Create database connection pool and apply the schema
	ctx := context.Background()
	db, err := database.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", err, map[string]interface{}{
			"host": cfg.Database.Host,
			"port": cfg.Database.Port,
			"name": cfg.Database.Name,
		})
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Fatal("Failed to apply database schema", err, nil)
	}

	log.Info("Database connection established", map[string]interface{}{
		"host":     cfg.Database.Host,
		"port":     cfg.Database.Port,
		"database": cfg.Database.Name,
		"pool_min": cfg.Database.PoolMin,
		"pool_max": cfg.Database.PoolMax,
	})

	// Build AWS clients. A custom endpoint switches both clients to a local
	// stack; S3 additionally needs path-style addressing there.
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		log.Fatal("Failed to load AWS configuration", err, nil)
	}
	if cfg.AWS.Endpoint != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.AWS.Endpoint)
	}

	sqsClient := sqs.NewFromConfig(awsCfg)
	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.AWS.Endpoint != "" {
			o.UsePathStyle = true
		}
	})

	// Initialize repository and service layers
	parcelRepo := repository.NewParcelRepository(db)
	uploadRepo := repository.NewUploadRepository(db)
	summaryRepo := repository.NewZoneSummaryRepository(db)

	ingestService := services.NewIngestService(
		storage.NewBlobStore(s3Client),
		parcelRepo,
		uploadRepo,
		summaryRepo,
		projection.NewReprojector(cfg.Projection.UTMZone, cfg.Projection.Northern, cfg.Ingest.AreaRaiDivisor),
		normalize.New(),
		cfg.Ingest.WorkDir,
		log,
	)

	consumer := queue.NewConsumer(sqsClient, cfg.Queue, ingestService, log)

	// Setup Gin router for the operational endpoints
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware in order: RequestID -> Logger -> Recovery -> CORS
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS(cfg.CORS.Origins))

	// Register health check routes
	healthHandler := handlers.NewHealthHandler(db, cfg.Server.Env)
	router.GET("/health", healthHandler.Health)
	router.GET("/health/ready", healthHandler.Ready)
	router.GET("/api/v1/info", healthHandler.Info)

	// Register read-only status routes
	statusHandler := handlers.NewStatusHandler(uploadRepo, parcelRepo, summaryRepo)
	v1 := router.Group("/api/v1")
	{
		v1.GET("/uploads/:id", statusHandler.GetUpload)
		zones := v1.Group("/zones")
		{
			zones.GET("/:zone/parcels", statusHandler.GetZoneParcels)
			zones.GET("/:zone/summary", statusHandler.GetZoneSummary)
		}
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	// Start HTTP server in goroutine
	go func() {
		log.Info("Server listening", map[string]interface{}{
			"port": cfg.Server.Port,
			"addr": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", err, nil)
		}
	}()

	// Start the queue consumer; cancelling consumerCtx stops it
	consumerCtx, stopConsumer := context.WithCancel(ctx)
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := consumer.Run(consumerCtx); err != nil && consumerCtx.Err() == nil {
			log.Error("Queue consumer exited", err, nil)
		}
	}()

	// Wait for interrupt signal (SIGINT or SIGTERM)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown: stop polling first, then drain the HTTP server
	log.Info("Shutting down worker...", nil)
	stopConsumer()

	select {
	case <-consumerDone:
	case <-time.After(shutdownTimeout):
		log.Warn("Queue consumer did not stop in time", map[string]interface{}{
			"timeout": shutdownTimeout.String(),
		})
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", err, map[string]interface{}{
			"timeout": shutdownTimeout.String(),
		})
	}

	log.Info("Worker exited", nil)
}
