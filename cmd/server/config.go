package main

import (
	"fmt"
	"log/slog"

	"github.com/phrazzld/suggestion-api/internal/config"
)

// loadAppConfig loads the application configuration from environment variables or config file.
func loadAppConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	slog.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel)

	if cfg.Database.URL != "" {
		slog.Debug("Database configuration", "url_present", true)
	}
	if cfg.Auth.JWTSecret != "" {
		slog.Debug("Auth configuration", "jwt_secret_present", true)
	}
	slog.Debug("Dispatcher configuration",
		"enabled", cfg.Dispatcher.Enabled,
		"timezone", cfg.Dispatcher.Timezone,
		"page_size", cfg.Dispatcher.PageSize)

	return cfg, nil
}
