package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Mode string

const (
	ModeLocal Mode = "local"
	ModeGCP   Mode = "gcp"
)

type Config struct {
	Mode Mode

	Port        string
	FrontendURL string
	LogLevel    string

	APIKey       string
	GCPProjectID string
	GCPLocation  string
	ModelName    string

	UseMockLLM bool // true = use mock even with credentials
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// Load reads a .env file if present, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	mode := ModeLocal
	if getEnv("PROMPTLAB_MODE", "local") == "gcp" {
		mode = ModeGCP
	}

	cfg := &Config{
		Mode: mode,

		Port:        getEnv("PROMPTLAB_PORT", "8080"),
		FrontendURL: getEnv("PROMPTLAB_FRONTEND_URL", "*"),
		LogLevel:    getEnv("PROMPTLAB_LOG_LEVEL", "info"),

		APIKey:       getEnv("API_KEY", os.Getenv("GEMINI_API_KEY")),
		GCPProjectID: getEnv("PROMPTLAB_GCP_PROJECT", ""),
		GCPLocation:  getEnv("PROMPTLAB_GCP_LOCATION", "us-central1"),
		ModelName:    getEnv("PROMPTLAB_MODEL_NAME", "gemini-2.5-flash"),
	}
	cfg.UseMockLLM = getBoolEnv("PROMPTLAB_USE_MOCK_LLM", false)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PROMPTLAB_PORT cannot be empty")
	}
	if c.ModelName == "" {
		return fmt.Errorf("PROMPTLAB_MODEL_NAME cannot be empty")
	}
	if c.Mode == ModeGCP && c.GCPProjectID == "" {
		return fmt.Errorf("PROMPTLAB_GCP_PROJECT must be set in gcp mode")
	}
	return nil
}

// HasCredentials reports whether the real model can be reached.
func (c *Config) HasCredentials() bool {
	return c.APIKey != "" || c.GCPProjectID != ""
}
