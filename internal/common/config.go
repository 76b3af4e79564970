package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Storage  StorageConfig  `yaml:"storage"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Office   OfficeConfig   `yaml:"office"`
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Sweep    SweepConfig    `yaml:"sweep"`
	Inbox    InboxConfig    `yaml:"inbox"`
	Log      LogConfig      `yaml:"log"`
}

// StorageConfig holds the three storage roots
type StorageConfig struct {
	UploadDir string `yaml:"upload_dir"`
	OutputDir string `yaml:"output_dir"`
	StatusDir string `yaml:"status_dir"`
}

// PipelineConfig holds worker pool settings
type PipelineConfig struct {
	Workers    int           `yaml:"workers"`
	QueueSize  int           `yaml:"queue_size"`
	JobTimeout time.Duration `yaml:"job_timeout"`
}

// OfficeConfig holds external converter settings
type OfficeConfig struct {
	SuitePath        string        `yaml:"suite_path"` // empty -> probe well-known locations
	Antiword         string        `yaml:"antiword"`
	Catdoc           string        `yaml:"catdoc"`
	Docx2PDF         string        `yaml:"docx2pdf"`
	NormalizeTimeout time.Duration `yaml:"normalize_timeout"`
	TextTimeout      time.Duration `yaml:"text_timeout"`
	RenderTimeout    time.Duration `yaml:"render_timeout"`
}

// DatabaseConfig holds ledger database configuration
type DatabaseConfig struct {
	Driver           string        `yaml:"driver"` // sqlite | postgres
	DSN              string        `yaml:"dsn"`    // empty disables the ledger
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string `yaml:"grpc_addr"`
}

// SweepConfig holds retention settings
type SweepConfig struct {
	MaxAge   time.Duration `yaml:"max_age"`
	Interval time.Duration `yaml:"interval"`
}

// InboxConfig holds the optional drop-folder watcher settings
type InboxConfig struct {
	Dir      string        `yaml:"dir"` // empty disables the watcher
	Debounce time.Duration `yaml:"debounce"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text | json
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			UploadDir: "uploads",
			OutputDir: "outputs",
			StatusDir: "status",
		},
		Pipeline: PipelineConfig{
			Workers:    4,
			QueueSize:  64,
			JobTimeout: 30 * time.Minute,
		},
		Office: OfficeConfig{
			Antiword:         "antiword",
			Catdoc:           "catdoc",
			Docx2PDF:         "docx2pdf",
			NormalizeTimeout: 60 * time.Second,
			TextTimeout:      30 * time.Second,
			RenderTimeout:    120 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:          "sqlite",
			MaxConns:        20,
			MinConns:        2,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Server: ServerConfig{
			GRPCAddr: ":8080",
		},
		Sweep: SweepConfig{
			MaxAge:   24 * time.Hour,
			Interval: time.Hour,
		},
		Inbox: InboxConfig{
			Debounce: 500 * time.Millisecond,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig starts from defaults, overlays the YAML file named by
// DOCMERGE_CONFIG (if any) and finally applies environment variables.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()
	if path := os.Getenv("DOCMERGE_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, NewAppError("CONFIG_ERROR", "failed to read config file", err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Storage.UploadDir = getEnv("UPLOAD_DIR", c.Storage.UploadDir)
	c.Storage.OutputDir = getEnv("OUTPUT_DIR", c.Storage.OutputDir)
	c.Storage.StatusDir = getEnv("STATUS_DIR", c.Storage.StatusDir)

	c.Pipeline.Workers = getEnvAsInt("PIPELINE_WORKERS", c.Pipeline.Workers)
	c.Pipeline.QueueSize = getEnvAsInt("PIPELINE_QUEUE_SIZE", c.Pipeline.QueueSize)
	c.Pipeline.JobTimeout = getEnvAsDuration("PIPELINE_JOB_TIMEOUT", c.Pipeline.JobTimeout)

	c.Office.SuitePath = getEnv("OFFICE_SUITE_PATH", c.Office.SuitePath)
	c.Office.Antiword = getEnv("ANTIWORD_BIN", c.Office.Antiword)
	c.Office.Catdoc = getEnv("CATDOC_BIN", c.Office.Catdoc)
	c.Office.Docx2PDF = getEnv("DOCX2PDF_BIN", c.Office.Docx2PDF)
	c.Office.NormalizeTimeout = getEnvAsDuration("OFFICE_NORMALIZE_TIMEOUT", c.Office.NormalizeTimeout)
	c.Office.TextTimeout = getEnvAsDuration("OFFICE_TEXT_TIMEOUT", c.Office.TextTimeout)
	c.Office.RenderTimeout = getEnvAsDuration("OFFICE_RENDER_TIMEOUT", c.Office.RenderTimeout)

	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", c.Database.MinConns)
	c.Database.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", c.Database.MaxConnLifetime)
	c.Database.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", c.Database.MaxConnIdleTime)
	c.Database.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", c.Database.DialTimeout)
	c.Database.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", c.Database.StatementTimeout)

	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)

	c.Sweep.MaxAge = getEnvAsDuration("SWEEP_MAX_AGE", c.Sweep.MaxAge)
	c.Sweep.Interval = getEnvAsDuration("SWEEP_INTERVAL", c.Sweep.Interval)

	c.Inbox.Dir = getEnv("INBOX_DIR", c.Inbox.Dir)
	c.Inbox.Debounce = getEnvAsDuration("INBOX_DEBOUNCE", c.Inbox.Debounce)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

// LedgerEnabled reports whether a database DSN was configured.
func (c *Config) LedgerEnabled() bool {
	return strings.TrimSpace(c.Database.DSN) != ""
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Storage.UploadDir == "" || c.Storage.OutputDir == "" || c.Storage.StatusDir == "" {
		return NewAppError("CONFIG_ERROR", "UPLOAD_DIR, OUTPUT_DIR and STATUS_DIR are required", ErrInvalidInput)
	}
	if c.Pipeline.Workers <= 0 {
		return NewAppError("CONFIG_ERROR", "PIPELINE_WORKERS must be positive", ErrInvalidInput)
	}
	if c.Sweep.MaxAge <= 0 {
		return NewAppError("CONFIG_ERROR", "SWEEP_MAX_AGE must be positive", ErrInvalidInput)
	}
	if c.LedgerEnabled() {
		switch c.Database.Driver {
		case "sqlite", "postgres":
		default:
			return NewAppError("CONFIG_ERROR", fmt.Sprintf("unsupported DB_DRIVER %q", c.Database.Driver), ErrInvalidInput)
		}
	}
	if c.Server.GRPCAddr == "" {
		return NewAppError("CONFIG_ERROR", "GRPC_ADDR is required", ErrInvalidInput)
	}
	return nil
}
