package config

import (
	"time"
)

// Store drivers understood by storage.Open.
const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds the application configuration.
type Config struct {
	StoreDriver       string
	MongoURI          string
	MongoDatabase     string
	MongoTransactions bool
	DatabaseURL       string

	ListingURL      string
	DownloadBaseURL string
	ListingTimeout  time.Duration
	DownloadTimeout time.Duration
	JobTimeout      time.Duration

	BatchSize    int
	CleanupGrace time.Duration

	EligibilityRulesFile string

	SyntheticDataDir  string
	SyntheticDataRows int

	LogLevel  string
	LogFormat string
}
