// Package config loads service configuration: defaults first, then a .env
// file if present, then environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full service configuration.
type Config struct {
	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`

	// DataPath is the listing dataset JSON file.
	DataPath string `json:"data_path"`

	// ModelsDir is the local artifact directory.
	ModelsDir string `json:"models_dir"`

	Search  SearchConfig  `json:"search"`
	Backup  BackupConfig  `json:"backup"`
	Monitor MonitorConfig `json:"monitor"`
}

// SearchConfig holds ranking defaults and bounds.
type SearchConfig struct {
	DefaultTopN    int     `json:"default_top_n"`
	MaxTopN        int     `json:"max_top_n"`
	SemanticWeight float64 `json:"semantic_weight"`
}

// BackupConfig holds remote backup settings. Provider selects the backend:
// "none", "s3", or "minio".
type BackupConfig struct {
	Provider     string `json:"provider"`
	Bucket       string `json:"bucket"`
	Prefix       string `json:"prefix"`
	Region       string `json:"region"`
	Endpoint     string `json:"endpoint"`
	Compression  string `json:"compression"`
	Codec        string `json:"codec"`
	KeepVersions int    `json:"keep_versions"`
}

// Enabled reports whether a remote backup backend is configured.
func (b BackupConfig) Enabled() bool {
	return b.Provider != "" && b.Provider != "none"
}

// MonitorConfig controls the background retrain monitor.
type MonitorConfig struct {
	AutoRetrain   bool          `json:"auto_retrain"`
	CheckInterval time.Duration `json:"check_interval"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		DataPath:  "data/dataset.json",
		ModelsDir: "models",
		Search: SearchConfig{
			DefaultTopN:    10,
			MaxTopN:        50,
			SemanticWeight: 0.6,
		},
		Backup: BackupConfig{
			Provider:     "none",
			Prefix:       "listingsearch",
			Region:       "us-east-1",
			Compression:  "gzip",
			Codec:        "json",
			KeepVersions: 5,
		},
		Monitor: MonitorConfig{
			AutoRetrain:   false,
			CheckInterval: 5 * time.Minute,
		},
	}
}

// Load builds the configuration: defaults, then .env, then environment.
func Load() (*Config, error) {
	// A .env file is optional.
	_ = godotenv.Load()

	cfg := Default()
	cfg.applyEnv()
	cfg.normalize()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	applyString("LOG_LEVEL", &c.LogLevel)
	applyString("LOG_FORMAT", &c.LogFormat)

	applyString("DATA_PATH", &c.DataPath)
	applyString("MODELS_DIR", &c.ModelsDir)

	applyInt("SEARCH_DEFAULT_TOP_N", &c.Search.DefaultTopN)
	applyInt("SEARCH_MAX_TOP_N", &c.Search.MaxTopN)
	applyFloat64("SEARCH_SEMANTIC_WEIGHT", &c.Search.SemanticWeight)

	applyString("BACKUP_PROVIDER", &c.Backup.Provider)
	applyString("BACKUP_BUCKET", &c.Backup.Bucket)
	applyString("BACKUP_PREFIX", &c.Backup.Prefix)
	applyString("BACKUP_REGION", &c.Backup.Region)
	applyString("BACKUP_ENDPOINT", &c.Backup.Endpoint)
	applyString("BACKUP_COMPRESSION", &c.Backup.Compression)
	applyString("BACKUP_CODEC", &c.Backup.Codec)
	applyInt("BACKUP_KEEP_VERSIONS", &c.Backup.KeepVersions)

	applyBool("AUTO_RETRAIN", &c.Monitor.AutoRetrain)
	applyDuration("RETRAIN_CHECK_INTERVAL", &c.Monitor.CheckInterval)
}

func (c *Config) normalize() {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	c.Backup.Provider = strings.ToLower(strings.TrimSpace(c.Backup.Provider))
	c.Backup.Compression = strings.ToLower(strings.TrimSpace(c.Backup.Compression))
	c.Backup.Codec = strings.ToLower(strings.TrimSpace(c.Backup.Codec))

	if c.Search.MaxTopN < c.Search.DefaultTopN {
		c.Search.MaxTopN = c.Search.DefaultTopN
	}
}

func (c *Config) validate() error {
	if c.DataPath == "" {
		return fmt.Errorf("config: DATA_PATH must not be empty")
	}
	if c.ModelsDir == "" {
		return fmt.Errorf("config: MODELS_DIR must not be empty")
	}
	if c.Search.DefaultTopN < 1 {
		return fmt.Errorf("config: SEARCH_DEFAULT_TOP_N must be positive, got %d", c.Search.DefaultTopN)
	}
	if c.Search.SemanticWeight < 0 || c.Search.SemanticWeight > 1 {
		return fmt.Errorf("config: SEARCH_SEMANTIC_WEIGHT must be within [0,1], got %v", c.Search.SemanticWeight)
	}

	switch c.Backup.Provider {
	case "", "none":
	case "s3", "minio":
		if c.Backup.Bucket == "" {
			return fmt.Errorf("config: BACKUP_BUCKET is required for provider %q", c.Backup.Provider)
		}
		if c.Backup.Provider == "minio" && c.Backup.Endpoint == "" {
			return fmt.Errorf("config: BACKUP_ENDPOINT is required for provider minio")
		}
	default:
		return fmt.Errorf("config: unknown BACKUP_PROVIDER %q", c.Backup.Provider)
	}

	if c.Backup.KeepVersions < 1 {
		return fmt.Errorf("config: BACKUP_KEEP_VERSIONS must be positive, got %d", c.Backup.KeepVersions)
	}
	if c.Monitor.AutoRetrain && c.Monitor.CheckInterval < time.Second {
		return fmt.Errorf("config: RETRAIN_CHECK_INTERVAL must be at least 1s, got %v", c.Monitor.CheckInterval)
	}

	return nil
}

func applyString(key string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func applyInt(key string, dst *int) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func applyFloat64(key string, dst *float64) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func applyBool(key string, dst *bool) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func applyDuration(key string, dst *time.Duration) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
