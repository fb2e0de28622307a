package config

import (
	"encoding/base64"
	"fmt"
	"time"
)

const (
	DefaultTokenTTL        = 7 * 24 * time.Hour
	DefaultEventsPerSecond = 50
)

type Config struct {
	DatabaseDSN     string
	ServerAddr      string
	SigningKey      []byte
	AllowedOrigins  []string
	RedisURL        string
	TokenTTL        time.Duration
	EventsPerSecond int
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(base64Secret)
	if err != nil {
		return nil, err
	}

	if len(key) == 0 {
		return nil, fmt.Errorf("empty signing secret")
	}

	return key, nil
}

func NewConfig(serverAddr, databaseDSN, base64Secret string, allowedOrigins []string) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}

	// Decode the base64 encoded signing secret
	signingKey, err := decodeSigningSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	return &Config{
		DatabaseDSN:     databaseDSN,
		ServerAddr:      serverAddr,
		SigningKey:      signingKey,
		AllowedOrigins:  allowedOrigins,
		TokenTTL:        DefaultTokenTTL,
		EventsPerSecond: DefaultEventsPerSecond,
	}, nil
}

// WithRedisURL enables the user cache. An empty url leaves it disabled.
func (c *Config) WithRedisURL(url string) *Config {
	c.RedisURL = url
	return c
}

func (c *Config) WithTokenTTL(ttl time.Duration) (*Config, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}

	c.TokenTTL = ttl
	return c, nil
}

func (c *Config) WithEventsPerSecond(n int) (*Config, error) {
	if n <= 0 {
		return nil, fmt.Errorf("events per second must be positive, got %d", n)
	}

	c.EventsPerSecond = n
	return c, nil
}
