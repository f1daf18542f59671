package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"diagnosis-assistant-service/config"
	"diagnosis-assistant-service/database"
	"diagnosis-assistant-service/gemini"
	"diagnosis-assistant-service/handlers"
	"diagnosis-assistant-service/inference"
	"diagnosis-assistant-service/metrics"
	"diagnosis-assistant-service/models"
	"diagnosis-assistant-service/service"
	"diagnosis-assistant-service/session"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	metrics.Register()

	// Initialize database. Persistence is optional; without DB_HOST the
	// service runs session-only.
	var db *database.Database
	if cfg.PersistenceEnabled() {
		var err error
		db, err = database.NewDatabase(cfg)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer db.Close()

		if err := db.CreateDiagnosisRecordsTable(); err != nil {
			log.Fatalf("Failed to create diagnosis_records table: %v", err)
		}
	} else {
		log.Println("DB_HOST not set, running without the record archive")
	}

	// Initialize the inference engine
	engine, err := buildEngine(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize inference engine: %v", err)
	}
	if closer, ok := engine.(interface{ Close() error }); ok {
		defer closer.Close()
	}
	log.Printf("Inference backend: %s", engine.SourceName())

	// Initialize the language model client
	llmClient := gemini.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.LLMTimeout)
	log.Printf("LLM provider=%s model=%s", llmClient.SourceName(), cfg.GeminiModel)

	// Initialize service and sessions
	diagnosisService := service.NewService(cfg, db, engine, llmClient)
	sessions := session.NewManager(cfg.SessionTTL)

	stopSweeper := make(chan struct{})
	defer close(stopSweeper)
	sessions.StartSweeper(10*time.Minute, stopSweeper)

	// Setup HTTP server
	router := gin.Default()
	handlers.NewDiagnosisHandler(diagnosisService, sessions).RegisterRoutes(router)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start HTTP server in a goroutine
	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Create a deadline for server shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Attempt graceful shutdown
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}

func buildEngine(cfg *config.Config) (inference.Engine, error) {
	switch cfg.InferenceBackend {
	case config.BackendClassifier:
		return inference.NewClassifierEngine(inference.ClassifierConfig{
			ModelPath:       cfg.OnnxModelPath,
			LibraryPath:     cfg.OnnxLibraryPath,
			InputName:       cfg.OnnxInputName,
			OutputName:      cfg.OnnxOutputName,
			PositiveChannel: cfg.PositiveChannel,
			PositiveLabel:   models.LabelThyroidCancer,
		})
	case config.BackendDetector:
		return inference.NewDetectorEngine(cfg.DetectorURL, cfg.TumorClassID, models.LabelBrainTumor, cfg.InferenceTimeout), nil
	default:
		return inference.NewStubEngine(models.LabelThyroidCancer), nil
	}
}
