// Package config loads application configuration from the environment.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store driver names. The store is selected once at startup; nothing inside
// the auth core branches on the driver.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Store    StoreConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string
	Port string
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// AuthConfig holds token and cookie configuration.
// A missing or changed SigningSecret invalidates every previously issued
// token, forcing re-login.
type AuthConfig struct {
	SigningSecret  string
	SessionTTL     time.Duration
	Issuer         string
	CookieName     string
	CookieSecure   bool
	ReaperInterval time.Duration
}

// StoreConfig selects the session/user store driver
type StoreConfig struct {
	Driver string
}

// Load reads configuration from environment variables, loading a .env file
// first when one is present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnv("SERVER_PORT", "8080"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "quizmaker"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Auth: AuthConfig{
			SigningSecret:  getEnv("AUTH_SIGNING_SECRET", ""),
			SessionTTL:     getDurationEnv("AUTH_SESSION_TTL", 7*24*time.Hour),
			Issuer:         getEnv("AUTH_ISSUER", "quizmaker"),
			CookieName:     getEnv("AUTH_COOKIE_NAME", "qm_session"),
			CookieSecure:   getBoolEnv("AUTH_COOKIE_SECURE", true),
			ReaperInterval: getDurationEnv("AUTH_REAPER_INTERVAL", time.Hour),
		},
		Store: StoreConfig{
			Driver: getEnv("STORE_DRIVER", StorePostgres),
		},
	}
}

// Validate checks that required configuration is present
func (c *Config) Validate() error {
	if c.Auth.SigningSecret == "" {
		return errors.New("AUTH_SIGNING_SECRET environment variable is required")
	}
	switch c.Store.Driver {
	case StorePostgres, StoreMemory:
	default:
		return errors.New("STORE_DRIVER must be either postgres or memory")
	}
	return nil
}

// DSN returns the PostgreSQL connection string
func (d *DatabaseConfig) DSN() string {
	return "host=" + d.Host +
		" port=" + d.Port +
		" user=" + d.User +
		" password=" + d.Password +
		" dbname=" + d.DBName +
		" sslmode=" + d.SSLMode
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv returns duration from environment variable or default.
// Accepts Go duration strings ("168h") or a plain number of hours.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if hours, err := strconv.Atoi(value); err == nil {
		return time.Duration(hours) * time.Hour
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return defaultValue
}
