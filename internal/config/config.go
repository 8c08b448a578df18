package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/8adimka/expert_consult/internal/errorsx"
	"github.com/joho/godotenv"
)

// Config holds all configuration parameters
type Config struct {
	OpenAIApiKey      string
	OpenAIModel       string
	OpenAIBaseURL     string
	OpenAITemperature float64
	Port              string
	LogLevel          string
	Environment       string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	CacheTTLMinutes   int
	MongoURI          string
	MongoDB           string
	RateLimitRPS      float64
	RateLimitBurst    int
	// TrustedProxies is a comma-separated list of IPs/CIDRs allowed to set X-Forwarded-For
	TrustedProxies string
	// AdminAPIKey guards the consultation history API; empty leaves it open
	AdminAPIKey string
	// BreakerFailures of 0 leaves the LLM client unguarded
	BreakerFailures        int
	BreakerCooldownSeconds int
}

// LLM is the read-only view of the settings the answer requester needs.
type LLM struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
}

// HasCredential reports whether an API key is configured
func (l LLM) HasCredential() bool {
	return strings.TrimSpace(l.APIKey) != ""
}

// Load loads configuration from environment variables and .env file
func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	return FromEnv()
}

// FromEnv builds the configuration from the process environment only
func FromEnv() *Config {
	return &Config{
		OpenAIApiKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", ""),
		OpenAITemperature: getEnvFloat("OPENAI_TEMPERATURE", 0.7),
		Port:              getEnv("PORT", "8080"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		Environment:       getEnv("APP_ENV", "development"),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		CacheTTLMinutes:   getEnvInt("CACHE_TTL_MINUTES", 60),
		MongoURI:          getEnv("MONGO_URI", ""),
		MongoDB:           getEnv("MONGO_DB", "expert_consult"),
		RateLimitRPS:      getEnvFloat("RATE_LIMIT_RPS", 2),
		RateLimitBurst:    getEnvInt("RATE_LIMIT_BURST", 5),
		TrustedProxies:    getEnv("TRUSTED_PROXIES", ""),
		AdminAPIKey:       getEnv("ADMIN_API_KEY", ""),

		BreakerFailures:        getEnvInt("LLM_BREAKER_FAILURES", 0),
		BreakerCooldownSeconds: getEnvInt("LLM_BREAKER_COOLDOWN_SECONDS", 30),
	}
}

// LLM returns the settings handed to the answer requester
func (c *Config) LLM() LLM {
	return LLM{
		APIKey:      c.OpenAIApiKey,
		Model:       c.OpenAIModel,
		BaseURL:     c.OpenAIBaseURL,
		Temperature: c.OpenAITemperature,
	}
}

// CacheTTL returns the answer cache lifetime
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMinutes) * time.Minute
}

// BreakerCooldown returns how long the LLM breaker stays open
func (c *Config) BreakerCooldown() time.Duration {
	return time.Duration(c.BreakerCooldownSeconds) * time.Second
}

// Validate reports every configuration problem joined into one error.
// A missing API key matches errorsx.ErrMissingCredential and is not fatal: the
// server still starts so the page can show it. Everything else matches
// errorsx.ErrInvalidInput.
func (c *Config) Validate() error {
	var problems []error
	if !c.LLM().HasCredential() {
		problems = append(problems, errorsx.Wrap(errorsx.ErrMissingCredential, "OPENAI_API_KEY is not set"))
	}
	if c.OpenAIModel == "" {
		problems = append(problems, errorsx.Wrap(errorsx.ErrInvalidInput, "OPENAI_MODEL is empty"))
	}
	if c.OpenAITemperature < 0 || c.OpenAITemperature > 2 {
		problems = append(problems, errorsx.Wrapf(errorsx.ErrInvalidInput, "OPENAI_TEMPERATURE %.2f out of range [0,2]", c.OpenAITemperature))
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		problems = append(problems, errorsx.Wrapf(errorsx.ErrInvalidInput, "RATE_LIMIT_RPS %g and RATE_LIMIT_BURST %d must be positive", c.RateLimitRPS, c.RateLimitBurst))
	}
	return errors.Join(problems...)
}

// getEnv gets environment variable with fallback
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

// getEnvInt gets environment variable as integer with fallback
func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
		log.Printf("Warning: invalid integer value for %s: %s, using default: %d", key, value, fallback)
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		result, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err == nil {
			return result
		}
		log.Printf("Warning: invalid float value for %s: %s, using default: %g", key, value, fallback)
	}
	return fallback
}
