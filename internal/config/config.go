package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config carries every tunable of the engine. Values come from an optional
// querygate.yaml, then the environment (with .env support); the environment
// wins.
type Config struct {
	Port        int    `yaml:"port"`
	CatalogPath string `yaml:"catalog_path"`
	LogDir      string `yaml:"log_dir"`

	// EncryptionKey protects connector DSNs at rest and signs admin
	// session cookies. At least 32 characters.
	EncryptionKey string `yaml:"encryption_key"`

	TestTimeout        time.Duration `yaml:"test_timeout"`
	QueryTimeout       time.Duration `yaml:"query_timeout"`
	PoolAcquireTimeout time.Duration `yaml:"pool_acquire_timeout"`

	PoolMaxOpen     int           `yaml:"pool_max_open"`
	PoolMaxIdle     int           `yaml:"pool_max_idle"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`

	MaxSampleRows  int `yaml:"max_sample_rows"`
	MaxPreviewRows int `yaml:"max_preview_rows"`
	DefaultRows    int `yaml:"default_rows"`

	RatePerMinute float64 `yaml:"rate_per_minute"`
	RateBurst     int     `yaml:"rate_burst"`

	// DevMode bypasses admin auth for local work. Never set in production.
	DevMode bool `yaml:"dev_mode"`
}

const yamlFile = "querygate.yaml"

// Load assembles the configuration. A missing .env or querygate.yaml is not
// an error; a missing encryption key is generated and persisted to .env so
// encrypted DSNs stay readable across restarts.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:               8080,
		CatalogPath:        "querygate.db",
		LogDir:             "logs",
		TestTimeout:        5 * time.Second,
		QueryTimeout:       30 * time.Second,
		PoolAcquireTimeout: 5 * time.Second,
		PoolMaxOpen:        25,
		PoolMaxIdle:        5,
		ConnMaxLifetime:    5 * time.Minute,
		MaxSampleRows:      100,
		MaxPreviewRows:     1000,
		DefaultRows:        100,
		RatePerMinute:      60,
		RateBurst:          10,
	}

	if b, err := os.ReadFile(yamlFile); err == nil {
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", yamlFile, err)
		}
	}

	applyEnv(cfg)

	if len(cfg.EncryptionKey) < 32 {
		key, err := generateKey(32)
		if err != nil {
			return nil, fmt.Errorf("generate encryption key: %w", err)
		}
		if err := appendEnv("QUERYGATE_KEY", key); err != nil {
			fmt.Printf("Warning: failed to persist generated key to .env: %v\n", err)
		}
		cfg.EncryptionKey = key
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}
	if v := os.Getenv("QUERYGATE_CATALOG"); v != "" {
		cfg.CatalogPath = v
	}
	if v := os.Getenv("QUERYGATE_LOG_DIR"); v != "" {
		cfg.LogDir = v
	}
	if v := os.Getenv("QUERYGATE_KEY"); v != "" {
		cfg.EncryptionKey = v
	}
	if v := os.Getenv("QUERYGATE_QUERY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.QueryTimeout = d
		}
	}
	if v := os.Getenv("DEV_MODE"); v != "" {
		switch v {
		case "1", "true", "yes":
			cfg.DevMode = true
		}
	}
}

func generateKey(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func appendEnv(key, value string) error {
	f, err := os.OpenFile(".env", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "%s=%s\n", key, value)
	return err
}
