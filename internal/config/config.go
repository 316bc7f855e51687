// Package config содержит логику чтения конфигурации сервиса AVYboost.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса AVYboost.
type Config struct {
	RunAddress  string `env:"RUN_ADDRESS"`
	DatabaseURI string `env:"DATABASE_URI"`
	AuthSecret  string `env:"AUTH_SECRET"`

	ExoBoosterAddress string `env:"EXOBOOSTER_ADDRESS"`
	ExoBoosterAPIKey  string `env:"EXOBOOSTER_API_KEY"`

	CampayAddress string `env:"CAMPAY_ADDRESS"`
	CampayToken   string `env:"CAMPAY_PERMANENT_TOKEN"`

	ResendAPIKey string `env:"RESEND_API_KEY"`
	AlertEmail   string `env:"ALERT_EMAIL"`

	AllowedOrigins []string      `env:"ALLOWED_ORIGINS" envSeparator:","`
	SyncInterval   time.Duration `env:"SYNC_INTERVAL"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envExoAddress := cfg.ExoBoosterAddress
	envCampayAddress := cfg.CampayAddress

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.ExoBoosterAddress, "b", "https://exosupplier.com/api/v2", "fulfillment panel API address")
	flag.StringVar(&cfg.CampayAddress, "p", "https://campay.net/api", "payment gateway API address")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envExoAddress != "" {
		cfg.ExoBoosterAddress = envExoAddress
	}
	if envCampayAddress != "" {
		cfg.CampayAddress = envCampayAddress
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.AuthSecret == "" {
		cfg.AuthSecret = "avyboost-secret"
	}
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = 30 * time.Second
	}

	return cfg, nil
}
