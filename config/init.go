package config

import (
	"log"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	cron_config "github.com/customeros/mailsorter/internal/cron/config"
	"github.com/customeros/mailsorter/internal/logger"
	"github.com/customeros/mailsorter/internal/tracing"
)

type Config struct {
	AppConfig      *AppConfig
	Logger         *logger.Config
	Tracing        *tracing.JaegerConfig
	DatabaseConfig *DatabaseConfig
	GmailConfig    *GmailConfig
	OpenAIConfig   *OpenAIConfig
	PipelineConfig *PipelineConfig
	RedisConfig    *RedisConfig
	Cron           *cron_config.Config
}

func newConfig() *Config {
	return &Config{
		AppConfig:      &AppConfig{},
		Logger:         &logger.Config{},
		Tracing:        &tracing.JaegerConfig{},
		DatabaseConfig: &DatabaseConfig{},
		GmailConfig:    &GmailConfig{},
		OpenAIConfig:   &OpenAIConfig{},
		PipelineConfig: &PipelineConfig{},
		RedisConfig:    &RedisConfig{},
		Cron:           &cron_config.Config{},
	}
}

func InitConfig() (*Config, error) {
	config := newConfig()

	err := godotenv.Load()
	if err != nil {
		log.Print("Unable to load .env file")
	}

	if err := env.Parse(config); err != nil {
		return nil, errors.Wrap(err, "error loading mailsorter config")
	}

	return config, nil
}
