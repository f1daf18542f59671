package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Inference backend names accepted in INFERENCE_BACKEND.
const (
	BackendClassifier = "classifier"
	BackendDetector   = "detector"
	BackendStub       = "stub"
)

// Config holds all configuration for the diagnosis assistant service
type Config struct {
	// Server configuration
	Port string

	// Database configuration. Empty DBHost disables the record archive.
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Gemini configuration
	GeminiAPIKey string
	GeminiModel  string
	LLMTimeout   time.Duration
	MaxRetries   int

	// Inference configuration
	InferenceBackend string
	InferenceTimeout time.Duration

	// Classifier (local ONNX) configuration
	OnnxModelPath   string
	OnnxLibraryPath string
	OnnxInputName   string
	OnnxOutputName  string
	// Index of the positive class channel in the classifier output. The
	// bundled model emits [normal, thyroid cancer].
	PositiveChannel int

	// Detector (remote sidecar) configuration
	DetectorURL string
	// Class ID the detector assigns to tumor boxes.
	TumorClassID int

	// Session configuration
	SessionTTL time.Duration

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables
func Load() *Config {
	config := &Config{
		// Server defaults
		Port: getEnv("PORT", "8080"),

		// Database defaults. No DB_HOST default: persistence is opt-in.
		DBHost:     getEnv("DB_HOST", ""),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "server"),
		DBPassword: getEnv("DB_PASSWORD", "secret_app"),
		DBName:     getEnv("DB_NAME", "diagassist"),

		// Gemini defaults
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-1.5-pro"),
		LLMTimeout:   getDurationEnv("LLM_TIMEOUT", 60*time.Second),
		MaxRetries:   getIntEnv("MAX_RETRIES", 3),

		// Inference defaults
		InferenceBackend: getEnv("INFERENCE_BACKEND", BackendClassifier),
		InferenceTimeout: getDurationEnv("INFERENCE_TIMEOUT", 30*time.Second),

		// Classifier defaults
		OnnxModelPath:   getEnv("ONNX_MODEL_PATH", "models/thyroid_classifier.onnx"),
		OnnxLibraryPath: getEnv("ONNX_LIBRARY_PATH", "/usr/lib/libonnxruntime.so"),
		OnnxInputName:   getEnv("ONNX_INPUT_NAME", "input_1"),
		OnnxOutputName:  getEnv("ONNX_OUTPUT_NAME", "dense_1"),
		PositiveChannel: getIntEnv("POSITIVE_CHANNEL", 1),

		// Detector defaults
		DetectorURL:  getEnv("DETECTOR_URL", "http://localhost:9090"),
		TumorClassID: getIntEnv("TUMOR_CLASS_ID", 1),

		// Session defaults
		SessionTTL: getDurationEnv("SESSION_TTL", 2*time.Hour),

		// Logging defaults
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return config
}

// Validate checks the settings the service cannot run without. The language
// model has no offline fallback, so a missing key fails startup.
func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	switch c.InferenceBackend {
	case BackendClassifier, BackendDetector, BackendStub:
	default:
		return fmt.Errorf("unknown INFERENCE_BACKEND %q", c.InferenceBackend)
	}
	return nil
}

// PersistenceEnabled reports whether the record archive is configured.
func (c *Config) PersistenceEnabled() bool {
	return c.DBHost != ""
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv gets a duration environment variable or returns a default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable or returns a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
