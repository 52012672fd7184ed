package config

import (
	"fmt"

	env "github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL         string `env:"DATABASE_URL,required"`
	TransferProviderURL string `env:"TRANSFER_PROVIDER_URL" envDefault:"http://mock-provider:8081"`
	TransferTimeoutS    int    `env:"TRANSFER_TIMEOUT_S" envDefault:"10"`
	DefaultCurrency     string `env:"DEFAULT_CURRENCY" envDefault:"BRL"`

	PollIntervalS      int `env:"POLL_INTERVAL_S" envDefault:"5"`
	PollBatchSize      int `env:"POLL_BATCH_SIZE" envDefault:"10"`
	EventReclaimAfterS int `env:"EVENT_RECLAIM_AFTER_S" envDefault:"300"`

	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv   string `env:"APP_ENV" envDefault:"production"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}
