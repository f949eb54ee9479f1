package config

import (
	"encoding/base64"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerAddr     string
	DatabaseDSN    string
	SigningKey     []byte
	AllowedOrigins []string
}

// dsnEnvVars is the fixed lookup order for the store DSN when no
// explicit value is given.
var dsnEnvVars = []string{"POMOCHAT_DATABASE_URL", "DATABASE_URL"}

// DiscoverDSN resolves the store DSN: an explicit value wins, then the
// process environment in fixed precedence, with a .env file filling any
// variables not already set. An empty result is valid and puts the
// server in degraded mode.
func DiscoverDSN(explicit string) string {
	if explicit != "" {
		return explicit
	}

	// godotenv never overrides variables already in the environment
	_ = godotenv.Load()

	for _, key := range dsnEnvVars {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(base64Secret)
}

// NewConfig validates and assembles the server configuration. An empty
// DSN is accepted: store operations are disabled until one is provided,
// and that condition is surfaced distinctly to callers.
func NewConfig(serverAddr, databaseDSN, base64Secret string, allowedOrigins []string) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}

	signingKey, err := decodeSigningSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	return &Config{
		ServerAddr:     serverAddr,
		DatabaseDSN:    databaseDSN,
		SigningKey:     signingKey,
		AllowedOrigins: allowedOrigins,
	}, nil
}

// Configured reports whether a store is available; without one every
// room operation degrades to a distinct "unconfigured" failure.
func (c *Config) Configured() bool {
	return c.DatabaseDSN != ""
}
