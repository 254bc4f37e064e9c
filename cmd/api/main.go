package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dlnapm/egreetz/internal/api"
	"github.com/dlnapm/egreetz/internal/config"
	"github.com/dlnapm/egreetz/internal/db"
	"github.com/dlnapm/egreetz/internal/production"
	"github.com/dlnapm/egreetz/internal/queue"
	"github.com/dlnapm/egreetz/internal/services"
	"github.com/dlnapm/egreetz/internal/storage"
	"github.com/dlnapm/egreetz/internal/worker"
)

func main() {
	log.Println("Starting Egreetz API...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to database
	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	log.Println("Connected to database")

	// Connect to Redis queue
	q, err := queue.New(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()
	log.Println("Connected to Redis queue")

	// Initialize asset storage — cloud bucket when configured, local disk otherwise
	var store storage.Store
	localAssetDir := ""
	if cfg.CloudStorageEnabled() {
		store = storage.NewSupabase(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseStorageBucket)
		log.Println("Initialized Supabase storage")
	} else {
		local, err := storage.NewLocal(cfg.LocalAssetDir, cfg.PublicBaseURL)
		if err != nil {
			log.Fatalf("Failed to initialize local storage: %v", err)
		}
		store = local
		localAssetDir = local.Root()
		log.Printf("Initialized local storage at %s", localAssetDir)
	}

	// Create API handler
	handler := api.NewHandler(database, q, store)
	router := api.NewRouter(handler, api.RouterConfig{
		BackendAPIKey:      cfg.BackendAPIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
		LocalAssetDir:      localAssetDir,
	})

	if cfg.BackendAPIKey != "" {
		log.Println("API key authentication enabled")
	} else {
		log.Println("WARNING: No BACKEND_API_KEY set — API is unprotected (dev mode)")
	}

	// Start HTTP server
	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	// Start worker if enabled
	var workerCtx context.Context
	var workerCancel context.CancelFunc
	if cfg.WorkerEnabled {
		log.Println("Worker enabled, starting background processing...")

		ctx := context.Background()

		// Video generation
		veoSvc, err := services.NewVeoService(ctx, cfg.GeminiKey, cfg.VeoFastModel, cfg.VeoQualityModel)
		if err != nil {
			log.Fatalf("Failed to initialize video generation: %v", err)
		}
		log.Printf("Video generation enabled (fast: %s, quality: %s)", cfg.VeoFastModel, cfg.VeoQualityModel)

		// Narration — optional at runtime; production degrades to silent greetings
		var narrator production.Narrator
		if narrSvc, err := services.NewNarrationService(ctx, cfg.GeminiKey, cfg.TTSModel); err != nil {
			log.Printf("WARNING: narration unavailable, greetings will be silent: %v", err)
		} else {
			narrator = narrSvc
			log.Printf("Narration enabled (model: %s, default voice: %s)", cfg.TTSModel, cfg.DefaultVoice)
		}

		// Planning — optional, raw messages go straight to production without it
		var planner worker.Planner
		if cfg.PlanEnabled {
			planner = services.NewOpenAIService(cfg.OpenAIKey, cfg.PlanModel)
			log.Printf("Greeting planning enabled (model: %s)", cfg.PlanModel)
		} else {
			log.Println("Greeting planning disabled — raw messages used as scripts")
		}

		orch := production.New(veoSvc, narrator)
		w := worker.New(database, q, store, planner, orch, cfg.DefaultMusicPath)

		workerCtx, workerCancel = context.WithCancel(context.Background())
		go w.Start(workerCtx, cfg.MaxConcurrentJobs)
	}

	// Start server in goroutine
	go func() {
		log.Printf("API server listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Shutdown worker
	if workerCancel != nil {
		workerCancel()
	}

	// Shutdown HTTP server
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
