// Package config содержит логику чтения конфигурации сервиса витрины.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса витрины.
type Config struct {
	RunAddress        string `env:"RUN_ADDRESS"`
	DataDir           string `env:"DATA_DIR"`
	BotToken          string `env:"BOT_TOKEN"`
	BootstrapPassword string `env:"ADMIN_BOOTSTRAP_PASSWORD"`
	GitHubToken       string `env:"GITHUB_TOKEN"`
	GitHubOwner       string `env:"GITHUB_OWNER"`
	GitHubRepo        string `env:"GITHUB_REPO"`
	GitHubBranch      string `env:"GITHUB_BRANCH"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDataDir := cfg.DataDir

	flag.StringVar(&cfg.RunAddress, "a", "localhost:4005", "address and port for HTTP server")
	flag.StringVar(&cfg.DataDir, "d", ".", "directory for persisted JSON documents")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDataDir != "" {
		cfg.DataDir = envDataDir
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:4005"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "."
	}
	if cfg.BootstrapPassword == "" {
		cfg.BootstrapPassword = "terpz420"
	}
	if cfg.GitHubBranch == "" {
		cfg.GitHubBranch = "main"
	}

	return cfg, nil
}
