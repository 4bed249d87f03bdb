package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every variable name, e.g. FLEXDESK_DATA_DIR.
const Prefix = "FLEXDESK"

type App struct {
	// Storage
	DataDir     string `envconfig:"DATA_DIR" default:"."`
	Backend     string `envconfig:"BACKEND" default:"csv"`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"flexdesk.db"`
	PostgresDSN string `envconfig:"POSTGRES_DSN"`
	// Index
	IndexBuckets int `envconfig:"INDEX_BUCKETS" default:"1009"`
	// Logging
	LogFile  string `envconfig:"LOG_FILE" default:"system.log"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	// Metrics; empty disables the HTTP listener.
	MetricsAddr string `envconfig:"METRICS_ADDR"`
	// Lock demo
	DemoHold    time.Duration `envconfig:"DEMO_HOLD" default:"2s"`
	DemoStagger time.Duration `envconfig:"DEMO_STAGGER" default:"100ms"`
	// Backup; empty bucket disables it.
	S3Bucket    string `envconfig:"S3_BUCKET"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3PathStyle bool   `envconfig:"S3_PATH_STYLE" default:"false"`
	S3Prefix    string `envconfig:"S3_PREFIX" default:"flexdesk"`
}

// Load reads an optional .env file from the working directory, then the
// environment.
func Load() (App, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return App{}, err
	}
	var c App
	err := envconfig.Process(Prefix, &c)
	return c, err
}
