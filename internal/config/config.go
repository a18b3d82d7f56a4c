package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath       string        `env:"DB_PATH" envDefault:"data/quizfire.db"`
	LogLevel     slog.Level    `env:"LOG_LEVEL" envDefault:"INFO"`
	PublicURL    string        `env:"PUBLIC_URL" envDefault:"http://localhost:8080"`
	HostPasscode string        `env:"HOST_PASSCODE" envDefault:"letmein"`
	BuzzWindow   time.Duration `env:"BUZZ_WINDOW" envDefault:"4s"`
	FinalWindow  time.Duration `env:"FINAL_WINDOW" envDefault:"31s"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return &cfg, nil
}
