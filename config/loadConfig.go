package config

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Default values.
const (
	defaultStoreDriver       = DriverMongo
	defaultMongoURI          = "mongodb://localhost:27017/grants"
	defaultMongoHost         = "localhost"
	defaultMongoPort         = "27017"
	defaultMongoDatabase     = "grants"
	defaultMongoTransactions = false
	defaultDatabaseURL       = "file:grants.db"
	defaultListingURL        = "https://www.grants.gov/xml-extract"
	defaultDownloadBaseURL   = "https://prod-grants-gov-chatbot.s3.amazonaws.com/extracts"
	defaultListingTimeout    = 30 * time.Second
	defaultDownloadTimeout   = 5 * time.Minute
	defaultJobTimeout        = 15 * time.Minute
	defaultBatchSize         = 100
	defaultCleanupGrace      = 24 * time.Hour
	defaultSyntheticDataDir  = "tmp/synthetic"
	defaultSyntheticDataRows = 100
	defaultLogLevel          = "info"
	defaultLogFormat         = "text"
	envStoreDriver           = "STORE_DRIVER"
	envMongoURI              = "MONGO_URI"
	envMongoHost             = "MONGO_HOST"
	envMongoUser             = "MONGO_USER"
	envMongoPassword         = "MONGO_PASSWORD"
	envMongoDatabase         = "MONGO_DATABASE"
	envMongoTransactions     = "MONGO_TRANSACTIONS"
	envDatabaseURL           = "DATABASE_URL"
	envListingURL            = "GRANTS_LISTING_URL"
	envDownloadBaseURL       = "GRANTS_DOWNLOAD_BASE_URL"
	envListingTimeout        = "LISTING_TIMEOUT"
	envDownloadTimeout       = "DOWNLOAD_TIMEOUT"
	envJobTimeout            = "JOB_TIMEOUT"
	envBatchSize             = "UPSERT_BATCH_SIZE"
	envCleanupGrace          = "CLEANUP_GRACE"
	envEligibilityRulesFile  = "ELIGIBILITY_RULES_FILE"
	envSyntheticDataDir      = "SYNTHETIC_DATA_DIR"
	envSyntheticDataRows     = "SYNTHETIC_DATA_ROWS"
	envLogLevel              = "LOG_LEVEL"
	envLogFormat             = "LOG_FORMAT"
)

// LoadDotEnv loads variables from the given .env files (or ./.env) into the
// process environment. A missing file is not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	present := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}

	if err := godotenv.Load(present...); err != nil {
		return fmt.Errorf("failed to load env files %v: %w", present, err)
	}

	return nil
}

// LoadConfig loads the application configuration from environment variables or uses default values.
func LoadConfig(ctx context.Context, logger *slog.Logger) *Config {
	storeDriver := strings.ToLower(getString(ctx, logger, envStoreDriver, defaultStoreDriver))
	switch storeDriver {
	case DriverMongo, DriverPostgres, DriverSQLite:
	default:
		logger.WarnContext(ctx, "Invalid value for STORE_DRIVER, using default",
			"value", storeDriver, "default", defaultStoreDriver)
		storeDriver = defaultStoreDriver
	}

	batchSize := getInt(ctx, logger, envBatchSize, defaultBatchSize)
	if batchSize <= 0 {
		logger.WarnContext(ctx, "UPSERT_BATCH_SIZE must be positive, using default",
			"value", batchSize, "default", defaultBatchSize)
		batchSize = defaultBatchSize
	}

	return &Config{
		StoreDriver:          storeDriver,
		MongoURI:             formatMongoURI(ctx, os.Getenv(envMongoURI), logger),
		MongoDatabase:        getString(ctx, logger, envMongoDatabase, defaultMongoDatabase),
		MongoTransactions:    getBool(ctx, logger, envMongoTransactions, defaultMongoTransactions),
		DatabaseURL:          getString(ctx, logger, envDatabaseURL, defaultDatabaseURL),
		ListingURL:           getString(ctx, logger, envListingURL, defaultListingURL),
		DownloadBaseURL:      getString(ctx, logger, envDownloadBaseURL, defaultDownloadBaseURL),
		ListingTimeout:       getDuration(ctx, logger, envListingTimeout, defaultListingTimeout),
		DownloadTimeout:      getDuration(ctx, logger, envDownloadTimeout, defaultDownloadTimeout),
		JobTimeout:           getDuration(ctx, logger, envJobTimeout, defaultJobTimeout),
		BatchSize:            batchSize,
		CleanupGrace:         getDuration(ctx, logger, envCleanupGrace, defaultCleanupGrace),
		EligibilityRulesFile: getString(ctx, logger, envEligibilityRulesFile, ""),
		SyntheticDataDir:     getString(ctx, logger, envSyntheticDataDir, defaultSyntheticDataDir),
		SyntheticDataRows:    getInt(ctx, logger, envSyntheticDataRows, defaultSyntheticDataRows),
		LogLevel:             getString(ctx, logger, envLogLevel, defaultLogLevel),
		LogFormat:            getString(ctx, logger, envLogFormat, defaultLogFormat),
	}
}

func getString(ctx context.Context, logger *slog.Logger, key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		logger.DebugContext(ctx, "Using default value", "key", key, "value", def)
		return def
	}

	logger.DebugContext(ctx, "Using value from environment variable", "key", key, "value", value)
	return value
}

func getInt(ctx context.Context, logger *slog.Logger, key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		logger.DebugContext(ctx, "Using default value", "key", key, "value", def)
		return def
	}

	parsed, err := strconv.Atoi(raw)
	if err != nil {
		logger.WarnContext(ctx, "Invalid integer in environment variable, using default",
			"key", key, "value", raw, "default", def, "error", err)
		return def
	}

	return parsed
}

func getBool(ctx context.Context, logger *slog.Logger, key string, def bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		logger.DebugContext(ctx, "Using default value", "key", key, "value", def)
		return def
	}

	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		logger.WarnContext(ctx, "Invalid boolean in environment variable, using default",
			"key", key, "value", raw, "default", def, "error", err)
		return def
	}

	return parsed
}

func getDuration(ctx context.Context, logger *slog.Logger, key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		logger.DebugContext(ctx, "Using default value", "key", key, "value", def)
		return def
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		logger.WarnContext(ctx, "Invalid duration in environment variable, using default",
			"key", key, "value", raw, "default", def, "error", err)
		return def
	}

	return parsed
}

// formatMongoURI formats mongo settings to a url and return the result.
func formatMongoURI(
	ctx context.Context,
	mongoURI string,
	logger *slog.Logger,
) string {
	if mongoURI != "" {
		logger.DebugContext(ctx, "Using MongoDB URI from environment variable")
		return mongoURI
	}

	mongoHost := os.Getenv(envMongoHost)
	if mongoHost == "" {
		mongoHost = defaultMongoHost
		logger.DebugContext(ctx, "Using default MongoDB host", "host", mongoHost)
	} else {
		logger.DebugContext(ctx, "Using MongoDB host from environment variable", "host", mongoHost)
	}

	mongoUser := os.Getenv(envMongoUser)
	mongoPassword := os.Getenv(envMongoPassword)

	if mongoUser != "" && mongoPassword != "" {
		hostPort := net.JoinHostPort(mongoHost, defaultMongoPort)
		mongoURI = fmt.Sprintf(
			"mongodb://%s:%s@%s/%s?authSource=admin",
			mongoUser,
			mongoPassword,
			hostPort,
			defaultMongoDatabase,
		)
		logger.DebugContext(ctx, "Created MongoDB URI from user, password, and host", "host", hostPort)
	} else {
		mongoURI = defaultMongoURI
		logger.DebugContext(ctx, "Using default MongoDB URI", "uri", mongoURI)
	}
	return mongoURI
}
