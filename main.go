package main

import (
	"log"
	"time"

	"coursehub/config"
	"coursehub/database"
	"coursehub/middleware"
	"coursehub/routes"
	"coursehub/services"
	"coursehub/storage"
	"coursehub/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	// Initialize database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Error initializing database: %v", err)
	}

	// Initialize logger
	logger := utils.InitLogger()

	// One shared video store for the whole process
	store := storage.NewBlobStore(db, int64(cfg.MaxVideoMB)*1024*1024)

	// Background cleanup of dead uploads and orphaned videos
	tree := services.NewContentTree(db)
	reaper := storage.NewReaper(db, store, logger,
		time.Duration(cfg.StaleUploadMinutes)*time.Minute,
		tree.ReferencedVideoIDs)
	if _, err := reaper.Start(cfg.ReaperSchedule); err != nil {
		log.Fatalf("Error starting storage reaper: %v", err)
	}

	// Create Fiber app; the body limit has to fit a whole video upload
	app := fiber.New(fiber.Config{
		BodyLimit: (cfg.MaxVideoMB + 1) * 1024 * 1024,
	})

	// Middleware
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(middleware.LoggingMiddleware(logger))

	// Setup routes
	routes.SetupRoutes(app, db, cfg, store, logger)

	// Start server
	log.Fatal(app.Listen(":" + cfg.ServerPort))
}
