package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/parkwatch/parking-backend/config"
	"github.com/parkwatch/parking-backend/handlers"
	"github.com/parkwatch/parking-backend/jobs"
	"github.com/parkwatch/parking-backend/services"
	"github.com/parkwatch/parking-backend/shared"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load config
	cfg := config.LoadConfig()

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logrus.Warnf("Invalid LOG_LEVEL %q, using info", cfg.LogLevel)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	// The transport session is created once and shared by every search;
	// it carries cookies and connections, never per-search state.
	session, err := shared.SharedSession(shared.SessionConfig{
		BaseURL:         cfg.PortalBaseURL,
		Timeout:         cfg.GetRequestTimeout(),
		PolitenessDelay: cfg.GetPolitenessDelay(),
	})
	if err != nil {
		logrus.Fatalf("Failed to initialize portal session: %v", err)
	}

	cacheService := services.NewCacheServiceWithConfig(cfg.GetCacheTTL(), cfg.GetCacheMaxSize())
	searchService := services.NewCitationSearchService(session, cacheService, cfg.GetMaxDetailWorkers())

	logrus.Info("Parking citations backend services initialized:")
	logrus.Infof("  - Portal session (endpoint: %s, timeout: %v)", cfg.PortalBaseURL, cfg.GetRequestTimeout())
	logrus.Infof("  - Citation search service (max detail workers: %d)", cfg.GetMaxDetailWorkers())
	logrus.Infof("  - Result cache (TTL: %v, max size: %d)", cfg.GetCacheTTL(), cfg.GetCacheMaxSize())

	if len(os.Args) > 1 && os.Args[1] == "--api" {
		runAPIServer(cfg, searchService, cacheService)
		return
	}
	runCLI(searchService)
}

// runCLI performs a single tag search and prints the result as indented
// JSON. The tag comes from the command line or an interactive prompt.
func runCLI(searchService *services.CitationSearchService) {
	tag := ""
	if len(os.Args) > 1 {
		tag = os.Args[1]
	} else {
		fmt.Print("Enter tag number: ")
		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		tag = strings.TrimSpace(line)
	}
	if tag == "" {
		logrus.Fatal("Tag number is required")
	}

	result, err := searchService.SearchByTag(context.Background(), tag)
	if err != nil {
		logrus.Fatalf("Search failed for tag %s: %v", tag, err)
	}

	output, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		logrus.Fatalf("Failed to encode result: %v", err)
	}
	fmt.Println(string(output))
}

func runAPIServer(cfg *config.Config, searchService *services.CitationSearchService, cacheService *services.CacheService) {
	// Background cache cleanup
	cleanupJob := jobs.NewCacheCleanupJob(cacheService)
	go func() {
		cleanupTicker := time.NewTicker(cfg.GetCacheTTL())
		for range cleanupTicker.C {
			cleanupJob.Run()
		}
	}()

	// Setup Fiber
	app := fiber.New()

	// Middleware
	app.Use(logger.New())
	app.Use(cors.New())

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "ok",
			"timestamp": time.Now().Unix(),
		})
	})

	// Routes
	citationHandler := handlers.NewCitationHandler(searchService)
	app.Get("/", citationHandler.Home)
	app.Get("/api/parking-tickets", citationHandler.GetParkingTickets)

	// Start server
	logrus.Infof("Server starting on port %s", cfg.ServerPort)
	logrus.Infof("Example: http://localhost:%s/api/parking-tickets?tag=ABC123", cfg.ServerPort)
	if err := app.Listen(":" + cfg.ServerPort); err != nil {
		logrus.Fatalf("Server failed to start: %v", err)
	}
}
