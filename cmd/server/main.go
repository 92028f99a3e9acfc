package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/creativehub/media/internal/client"
	"github.com/creativehub/media/internal/config"
	"github.com/creativehub/media/internal/executor"
	"github.com/creativehub/media/internal/handler"
	"github.com/creativehub/media/internal/media"
	"github.com/creativehub/media/internal/middleware"
	"github.com/creativehub/media/internal/scheduler"
	"github.com/creativehub/media/internal/service"
	"github.com/creativehub/media/internal/store"
	"github.com/creativehub/media/internal/worker"
	ws "github.com/creativehub/media/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	// Open the job database
	if dir := filepath.Dir(cfg.Database.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("Failed to create database directory: %v", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(cfg.Database.Path), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	jobStore := store.NewJobStore(db)
	if err := jobStore.Migrate(ctx); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Fail jobs a previous run left in flight before accepting new work.
	if recovered, err := jobStore.RecoverInterrupted(ctx); err != nil {
		log.Fatalf("Failed to recover interrupted jobs: %v", err)
	} else if recovered > 0 {
		log.Printf("Marked %d interrupted jobs as failed", recovered)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available, rate limiting degrades to allow-all: %v", err)
	}

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Initialize external clients
	storageClient, err := client.NewR2Client(&cfg.Storage)
	if err != nil {
		log.Fatalf("Object storage is required: %v", err)
	}
	separationClient := client.NewSeparationClient(&cfg.Separation)
	if !separationClient.IsConfigured() {
		log.Println("Warning: separation service URL not configured")
	}

	// Initialize job machinery
	transcoder := media.NewTranscoder(
		cfg.Transcode.FFmpegBin,
		cfg.Transcode.FFprobeBin,
		time.Duration(cfg.Transcode.TimeoutMin)*time.Minute,
	)
	pool := executor.NewPool(cfg.Transcode.Workers, cfg.Transcode.QueueSize)
	transcodeWorker := worker.NewTranscodeWorker(jobStore, storageClient, transcoder, hub, cfg.Transcode.TempDir)
	separationWorker := worker.NewSeparationWorker(jobStore, separationClient, hub)

	// Initialize services
	mediaService := service.NewMediaService(jobStore, storageClient, pool, transcodeWorker, separationWorker, hub)

	// Start the synthetic progress ramp for remote jobs
	booster := scheduler.NewProgressBooster(jobStore, hub, scheduler.BoosterConfig{
		Floor:    cfg.Booster.Floor,
		Ceiling:  cfg.Booster.Ceiling,
		Step:     cfg.Booster.Step,
		Interval: time.Duration(cfg.Booster.IntervalSec) * time.Second,
	})
	if err := booster.Start(); err != nil {
		log.Fatalf("Failed to start progress booster: %v", err)
	}

	// Initialize handlers
	mediaHandler := handler.NewMediaHandler(mediaService)
	audioHandler := handler.NewAudioHandler(mediaService, validate)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    50 * 1024 * 1024, // 50MB
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Base URL - timestamp
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"storage":    storageClient.IsConfigured(),
				"separation": separationClient.IsConfigured(),
			},
		})
	})

	// API routes
	api := app.Group("/api", middleware.GatewayAuthMiddleware())

	// Media routes
	mediaRoutes := api.Group("/media")
	mediaRoutes.Post("/upload", rateLimiter.UploadLimit(cfg.RateLimit.UploadPerHour), mediaHandler.Upload)
	mediaRoutes.Get("/:id", mediaHandler.Status)
	mediaRoutes.Delete("/:id", mediaHandler.Delete)

	// Audio separation routes
	separation := api.Group("/audio/separation", rateLimiter.SeparationLimit(cfg.RateLimit.SeparationPerHour))
	separation.Post("/vocal", audioHandler.Vocal)
	separation.Post("/stem4", audioHandler.Stem4)
	separation.Post("/stem6", audioHandler.Stem6)

	api.Get("/audio/task/:jobId", audioHandler.TaskStatus)

	// Internal routes (service-to-service)
	internal := app.Group("/internal", middleware.InternalAuthMiddleware(cfg.Internal.Token))
	internal.Post("/audio/task/:jobId/progress", audioHandler.PushProgress)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		jobID := c.Params("jobId")
		hub.HandleConnection(c, jobID)
	}))

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	// Listen has returned: drain background work on the main goroutine so
	// the process does not exit while encodes are still in flight.
	booster.Stop()
	drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := pool.Shutdown(drainCtx); err != nil {
		log.Printf("Worker pool shutdown error: %v", err)
	}
	log.Println("Shutdown complete")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
