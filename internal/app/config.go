package app

import (
	"fitcoach/internal/config"
	"fitcoach/internal/repository/db"
	"fitcoach/internal/service/llm"
)

// Config holds all application dependencies and configuration
type Config struct {
	// Database interface for data persistence
	DB db.Database
	// Context snapshot store; the database itself unless Redis is configured
	Cache db.ContextCacheStore
	// Model gateway used by every AI handler
	Gateway llm.Gateway
	// Centralized application configuration
	AppConfig *config.AppConfig
}

// NewConfig creates a new application configuration.
// A nil cache falls back to the database.
func NewConfig(database db.Database, cache db.ContextCacheStore, gateway llm.Gateway, appConfig *config.AppConfig) *Config {
	if cache == nil {
		cache = database
	}
	return &Config{
		DB:        database,
		Cache:     cache,
		Gateway:   gateway,
		AppConfig: appConfig,
	}
}

// AIConfig returns the request-type, tier and pricing tables
func (c *Config) AIConfig() *config.AIConfig {
	return c.AppConfig.AI
}
