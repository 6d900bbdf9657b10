// Package config assembles the runtime configuration from flags, an
// optional TOML file named by -config, and VGRAB_* environment variables
// (optionally loaded from a .env file), in that order of increasing
// precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config holds application configuration.
type Config struct {
	Port    int
	Backend string

	TmpDir         string
	MaxFileSizeMB  int
	AllowedDomains []string

	CleanupTTL      time.Duration
	CleanupInterval time.Duration

	RedisURL        string
	Queue           string
	QueueJobTimeout time.Duration
	ResultTTL       time.Duration

	RateLimit  int
	RateWindow time.Duration

	QueueCapacity int
}

// fileConfig is the TOML file schema. Durations are given in seconds.
type fileConfig struct {
	Port               *int     `toml:"port"`
	Backend            *string  `toml:"backend"`
	TmpDir             *string  `toml:"tmp_dir"`
	MaxFileSizeMB      *int     `toml:"max_file_size_mb"`
	AllowedDomains     []string `toml:"allowed_domains"`
	CleanupTTLSec      *int     `toml:"cleanup_ttl_sec"`
	CleanupIntervalSec *int     `toml:"cleanup_interval_sec"`
	RedisURL           *string  `toml:"redis_url"`
	Queue              *string  `toml:"queue"`
	QueueJobTimeoutSec *int     `toml:"queue_job_timeout_sec"`
	ResultTTLSec       *int     `toml:"result_ttl_sec"`
	RateLimit          *int     `toml:"rate_limit"`
	RateWindowSec      *int     `toml:"rate_window_sec"`
	QueueCapacity      *int     `toml:"queue_capacity"`
}

func (fc *fileConfig) applyTo(cfg *Config) {
	if fc.Port != nil {
		cfg.Port = *fc.Port
	}
	if fc.Backend != nil {
		cfg.Backend = strings.ToLower(strings.TrimSpace(*fc.Backend))
	}
	if fc.TmpDir != nil {
		cfg.TmpDir = *fc.TmpDir
	}
	if fc.MaxFileSizeMB != nil {
		cfg.MaxFileSizeMB = *fc.MaxFileSizeMB
	}
	if fc.AllowedDomains != nil {
		cfg.AllowedDomains = fc.AllowedDomains
	}
	if fc.CleanupTTLSec != nil {
		cfg.CleanupTTL = time.Duration(*fc.CleanupTTLSec) * time.Second
	}
	if fc.CleanupIntervalSec != nil {
		cfg.CleanupInterval = time.Duration(*fc.CleanupIntervalSec) * time.Second
	}
	if fc.RedisURL != nil {
		cfg.RedisURL = *fc.RedisURL
	}
	if fc.Queue != nil {
		cfg.Queue = *fc.Queue
	}
	if fc.QueueJobTimeoutSec != nil {
		cfg.QueueJobTimeout = time.Duration(*fc.QueueJobTimeoutSec) * time.Second
	}
	if fc.ResultTTLSec != nil {
		cfg.ResultTTL = time.Duration(*fc.ResultTTLSec) * time.Second
	}
	if fc.RateLimit != nil {
		cfg.RateLimit = *fc.RateLimit
	}
	if fc.RateWindowSec != nil {
		cfg.RateWindow = time.Duration(*fc.RateWindowSec) * time.Second
	}
	if fc.QueueCapacity != nil {
		cfg.QueueCapacity = *fc.QueueCapacity
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:            8000,
		Backend:         BackendMemory,
		TmpDir:          "./temp",
		MaxFileSizeMB:   500,
		AllowedDomains:  []string{"youtube.com", "youtu.be", "tiktok.com"},
		CleanupTTL:      15 * time.Minute,
		CleanupInterval: 2 * time.Minute,
		RedisURL:        "redis://localhost:6379/0",
		Queue:           "downloads",
		QueueJobTimeout: 30 * time.Minute,
		ResultTTL:       time.Hour,
		RateLimit:       10,
		RateWindow:      10 * time.Minute,
		QueueCapacity:   256,
	}
}

// Load builds the configuration from defaults, flags, the optional TOML
// file and environment overrides.
func Load() (*Config, error) {
	// Missing .env is fine; only explicit settings matter.
	_ = godotenv.Load()

	cfg := Default()

	var configFile string
	flag.StringVar(&configFile, "config", "", "TOML configuration file")
	flag.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flag.StringVar(&cfg.Backend, "backend", cfg.Backend, "job backend: memory or redis")
	flag.StringVar(&cfg.TmpDir, "tmp-dir", cfg.TmpDir, "artifact directory")
	flag.StringVar(&cfg.RedisURL, "redis-url", cfg.RedisURL, "Redis connection URL")
	flag.Parse()

	if configFile != "" {
		var fc fileConfig
		if _, err := toml.DecodeFile(configFile, &fc); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
		fc.applyTo(cfg)
	}
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides fields from VGRAB_* environment variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("VGRAB_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}
	if v := os.Getenv("VGRAB_BACKEND"); v != "" {
		cfg.Backend = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("VGRAB_TMP_DIR"); v != "" {
		cfg.TmpDir = v
	}
	if v := os.Getenv("VGRAB_MAX_FILE_SIZE_MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxFileSizeMB = n
		}
	}
	if v := os.Getenv("VGRAB_ALLOWED_DOMAINS"); v != "" {
		cfg.AllowedDomains = splitList(v)
	}
	if v := os.Getenv("VGRAB_CLEANUP_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CleanupTTL = d
		}
	}
	if v := os.Getenv("VGRAB_CLEANUP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CleanupInterval = d
		}
	}
	if v := os.Getenv("VGRAB_REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := os.Getenv("VGRAB_QUEUE"); v != "" {
		cfg.Queue = v
	}
	if v := os.Getenv("VGRAB_QUEUE_JOB_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.QueueJobTimeout = d
		}
	}
	if v := os.Getenv("VGRAB_RESULT_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ResultTTL = d
		}
	}
	if v := os.Getenv("VGRAB_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit = n
		}
	}
	if v := os.Getenv("VGRAB_RATE_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RateWindow = d
		}
	}
	if v := os.Getenv("VGRAB_QUEUE_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.QueueCapacity = n
		}
	}
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks invariants the rest of the system depends on.
func (c *Config) Validate() error {
	if c.Backend != BackendMemory && c.Backend != BackendRedis {
		return fmt.Errorf("backend must be %q or %q, got %q", BackendMemory, BackendRedis, c.Backend)
	}
	if c.MaxFileSizeMB <= 0 {
		return errors.New("max file size must be greater than zero")
	}
	if c.CleanupTTL <= 0 {
		return errors.New("cleanup TTL must be greater than zero")
	}
	if c.QueueJobTimeout <= 0 || c.ResultTTL <= 0 {
		return errors.New("queue TTL values must be greater than zero")
	}
	// A record must outlive any pending work item, or a picked-up item
	// would find nothing to resolve.
	if c.ResultTTL < c.QueueJobTimeout {
		return fmt.Errorf("result TTL (%s) must not be shorter than the queue job timeout (%s)", c.ResultTTL, c.QueueJobTimeout)
	}
	if len(c.AllowedDomains) == 0 {
		return errors.New("allowed domains must not be empty")
	}
	if c.RateLimit <= 0 || c.RateWindow <= 0 {
		return errors.New("rate limit and window must be greater than zero")
	}
	return nil
}

// EnsureTmpDir guarantees the artifact directory exists.
func (c *Config) EnsureTmpDir() error {
	return os.MkdirAll(c.TmpDir, 0755)
}
