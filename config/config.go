package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Render modes.
const (
	RenderBrowser = "browser"
	RenderStatic  = "static"
)

// Config holds all application configuration loaded from environment variables.
// Values that vary per run (recipient, publishers, cap) only seed the defaults
// of a run; they are never mutated while a run is in flight.
type Config struct {
	MaxConcurrency    int           `envconfig:"MAX_CONCURRENCY" default:"3"`
	RateLimit         time.Duration `envconfig:"RATE_LIMIT" default:"250ms"`
	MaxRetries        int           `envconfig:"MAX_RETRIES" default:"3"`
	PerPublisherCap   int           `envconfig:"PER_PUBLISHER_CAP" default:"3"`
	ConcurrentSources bool          `envconfig:"CONCURRENT_SOURCES" default:"false"`
	Publishers        []string      `envconfig:"PUBLISHERS"`

	SnapshotPath string `envconfig:"SNAPSHOT_PATH" default:"all_books.json"`
	ImageDir     string `envconfig:"IMAGE_DIR" default:"book_images"`

	RenderMode        string        `envconfig:"RENDER_MODE" default:"browser"`
	ChromeBin         string        `envconfig:"CHROME_BIN"`
	NavigationTimeout time.Duration `envconfig:"NAVIGATION_TIMEOUT" default:"90s"`
	AdapterTimeout    time.Duration `envconfig:"ADAPTER_TIMEOUT" default:"3m"`
	FetchTimeout      time.Duration `envconfig:"FETCH_TIMEOUT" default:"30s"`
	UserAgent         string        `envconfig:"USER_AGENT" default:"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"`
	RespectRobots     bool          `envconfig:"RESPECT_ROBOTS" default:"false"`

	SMTPHost     string `envconfig:"SMTP_HOST" default:"smtp.gmail.com"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"465"`
	SMTPUsername string `envconfig:"SMTP_USERNAME"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	SMTPSender   string `envconfig:"SMTP_SENDER"`
	Recipient    string `envconfig:"RECIPIENT"`

	// ArchiveDSN enables the PostgreSQL run archive when set.
	ArchiveDSN string `envconfig:"ARCHIVE_DSN"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":5000"`
	// CORSOrigins limits which sites may post the subscribe form; empty allows any.
	CORSOrigins []string `envconfig:"CORS_ORIGINS"`
}

// Load reads an optional .env file and returns a populated, validated Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// A missing .env is normal outside local development.
		if _, statErr := os.Stat(".env"); statErr == nil {
			log.Printf("[config] .env found but could not be loaded: %v", err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.MaxConcurrency < 1:
		return errors.New("config: MAX_CONCURRENCY must be at least 1")
	case c.PerPublisherCap < 1:
		return errors.New("config: PER_PUBLISHER_CAP must be at least 1")
	case c.RateLimit < 0:
		return errors.New("config: RATE_LIMIT cannot be negative")
	case c.RenderMode != RenderBrowser && c.RenderMode != RenderStatic:
		return fmt.Errorf("config: RENDER_MODE must be %q or %q", RenderBrowser, RenderStatic)
	case c.NavigationTimeout <= 0 || c.AdapterTimeout <= 0 || c.FetchTimeout <= 0:
		return errors.New("config: timeouts must be positive")
	case c.SnapshotPath == "":
		return errors.New("config: SNAPSHOT_PATH is required")
	case c.ImageDir == "":
		return errors.New("config: IMAGE_DIR is required")
	}
	return nil
}

// MailConfigured reports whether enough SMTP settings exist to send a digest.
func (c *Config) MailConfigured() bool {
	return c.SMTPHost != "" && (c.SMTPSender != "" || c.SMTPUsername != "")
}
