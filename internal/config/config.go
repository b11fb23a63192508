// internal/config/config.go
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"gcdbackend/internal/logger"
)

// Variables available everywhere
var (
	processorEndpoint string
	processorAPIKey   string
	baseDir           string
	dataDirectory     string
	logsDirectory     string
	catalogPath       string
	databasePath      string
	selectionTTL      time.Duration

	// Exported settings
	LogFileFormat              string
	AllowedOrigin              string // For CORS
	RedirectBaseURL            string
	ProcessorWebhookSecret     string
	UseMockWebhookVerification bool
)

//
// --- Utility Helpers ---
//

// Helper: get a setting based on ENVIRONMENT (dev or prod)
func GetEnvBasedSetting(base string) string {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "dev"
	}
	return os.Getenv(fmt.Sprintf("%s_%s", base, strings.ToUpper(env)))
}

// Helper: log which environment is running
func LogCurrentEnvironment() {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "dev"
	}

	if env == "dev" {
		logger.LogInfo("Running in development environment")
	} else {
		logger.LogInfo("Running in production environment")
	}
}

//
// --- Loaders ---
//

// LoadEnv reads .env file
func LoadEnv() {
	wd, err := os.Getwd()
	if err != nil {
		log.Printf("Could not determine working directory: %v", err)
	} else {
		log.Printf("Current working directory: %s", wd)
	}

	err = godotenv.Load(".env")
	if err != nil {
		log.Printf("No .env file found in %s. Using system environment variables.", wd)
	} else {
		log.Printf("Loaded environment variables from .env file in %s", wd)
	}

	UseMockWebhookVerification = os.Getenv("USE_MOCK_WEBHOOK") == "true"

	if UseMockWebhookVerification {
		logger.LogInfo("Mock webhook verification enabled. Skipping real verification.")
	}
}

// LoggerConfig returns a logger.Config struct populated from environment
func LoggerConfig() logger.Config {
	logDir := GetEnvBasedSetting("LOGS_DIRECTORY")
	if logDir == "" {
		logDir = "./logs"
	}

	logFormat := GetEnvBasedSetting("LOG_FILE_FORMAT")
	if logFormat == "" {
		logFormat = "./logs/server_%s.log"
	}

	timezone := os.Getenv("TIME_ZONE")
	if timezone == "" {
		timezone = "Local"
	}

	return logger.Config{
		LogsDirectory: logDir,
		LogFileFormat: logFormat,
		TimeZone:      timezone,
	}
}

// ConfigurePaths sets up folders and paths
func ConfigurePaths() {
	wd, err := os.Getwd()
	if err != nil {
		logger.LogFatal("Failed to get working directory: %v", err)
	}
	baseDir = wd

	dataDir := GetEnvBasedSetting("DATA_DIRECTORY")
	if dataDir != "" {
		dataDirectory = dataDir
	} else {
		dataDirectory = filepath.Join(baseDir, "data")
	}

	logsDir := GetEnvBasedSetting("LOGS_DIRECTORY")
	if logsDir != "" {
		logsDirectory = logsDir
	} else {
		logsDirectory = filepath.Join(baseDir, "logs")
	}

	catalogFile := GetEnvBasedSetting("CATALOG_FILE")
	if catalogFile != "" {
		catalogPath = catalogFile
	} else {
		catalogPath = filepath.Join(dataDirectory, "catalog.json")
	}

	dbFile := GetEnvBasedSetting("DATABASE_FILE")
	if dbFile != "" {
		databasePath = dbFile
	} else {
		databasePath = filepath.Join(dataDirectory, "donations.db")
	}

	// Selections left untouched longer than this are treated as abandoned
	ttlStr := os.Getenv("SELECTION_TTL_MINUTES")
	if ttlStr != "" {
		minutes, err := strconv.Atoi(ttlStr)
		if err != nil || minutes <= 0 {
			logger.LogWarn("Invalid SELECTION_TTL_MINUTES: %s, using default 30 minutes", ttlStr)
			selectionTTL = 30 * time.Minute
		} else {
			selectionTTL = time.Duration(minutes) * time.Minute
		}
	} else {
		selectionTTL = 30 * time.Minute
	}

	// Set derived paths
	LogFileFormat = filepath.Join(logsDirectory, "server_%s.log")
}

// LoadProcessorConfig sets up the external card processor info
func LoadProcessorConfig() error {
	processorEndpoint = os.Getenv("PROCESSOR_ENDPOINT")
	processorAPIKey = os.Getenv("PROCESSOR_API_KEY")

	if processorEndpoint == "" {
		return fmt.Errorf("processor endpoint is missing")
	}

	mode := os.Getenv("PROCESSOR_MODE")
	if mode == "live" {
		logger.LogInfo("Using live card processor environment")
	} else {
		logger.LogInfo("Using sandbox card processor environment")
	}

	ProcessorWebhookSecret = os.Getenv("PROCESSOR_WEBHOOK_SECRET")
	if ProcessorWebhookSecret == "" {
		logger.LogWarn("PROCESSOR_WEBHOOK_SECRET is not set in environment")
	}

	return nil
}

// LoadCORSConfig loads CORS settings
func LoadCORSConfig() {
	AllowedOrigin = GetEnvBasedSetting("ALLOWED_ORIGIN")
	if AllowedOrigin == "" {
		AllowedOrigin = "*" // Allow all - be careful in prod
		logger.LogWarn("ALLOWED_ORIGIN not set, using '*' (allow all origins) - SECURITY RISK")
	} else {
		logger.LogInfo("Allowed Origin: %s", AllowedOrigin)
	}
}

// LoadRedirectConfig loads Redirect Base URL
func LoadRedirectConfig() {
	RedirectBaseURL = GetEnvBasedSetting("REDIRECT_BASE_URL")
	if RedirectBaseURL == "" {
		RedirectBaseURL = "http://localhost:3000"
		logger.LogWarn("REDIRECT_BASE_URL not set, using default: %s", RedirectBaseURL)
	} else {
		logger.LogInfo("Redirect base URL: %s", RedirectBaseURL)
	}
}

func WebhookMockNotice() string {
	if UseMockWebhookVerification {
		return "\n\n---\nNOTE: This webhook was processed in *mock verification mode*. No live signature validation was performed."
	}
	return ""
}

//
// --- Getters (exported) ---
//

func DataDirectory() string {
	return dataDirectory
}

func LogsDirectory() string {
	return logsDirectory
}

func CatalogPath() string {
	return catalogPath
}

func DatabasePath() string {
	return databasePath
}

func SelectionTTL() time.Duration {
	return selectionTTL
}

func ProcessorEndpoint() string {
	return processorEndpoint
}

func ProcessorAPIKey() string {
	return processorAPIKey
}

// SetProcessorEndpoint overrides the processor endpoint so tests can point
// submissions at a local mock.
func SetProcessorEndpoint(endpoint string) {
	processorEndpoint = endpoint
}
