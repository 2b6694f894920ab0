package config

import "time"

type AppConfig struct {
	APIPort     string `env:"PORT" envDefault:"12222"`
	APIKey      string `env:"API_KEY"`
	RabbitMQURL string `env:"RABBITMQ_URL"`
}

type DatabaseConfig struct {
	Host            string `env:"MAILSORTER_POSTGRES_HOST,required"`
	Port            string `env:"MAILSORTER_POSTGRES_PORT,required"`
	User            string `env:"MAILSORTER_POSTGRES_USER,required"`
	DBName          string `env:"MAILSORTER_POSTGRES_DB_NAME,required"`
	Password        string `env:"MAILSORTER_POSTGRES_PASSWORD,required"`
	MaxConn         int    `env:"MAILSORTER_POSTGRES_DB_MAX_CONN" envDefault:"25"`
	MaxIdleConn     int    `env:"MAILSORTER_POSTGRES_DB_MAX_IDLE_CONN" envDefault:"10"`
	ConnMaxLifetime int    `env:"MAILSORTER_POSTGRES_DB_CONN_MAX_LIFETIME" envDefault:"60"`
	LogLevel        string `env:"MAILSORTER_POSTGRES_LOG_LEVEL" envDefault:"WARN"`
	SSLMode         string `env:"MAILSORTER_POSTGRES_SSL_MODE" envDefault:"require"`
}

type GmailConfig struct {
	ClientID            string  `env:"GOOGLE_CLIENT_ID"`
	ClientSecret        string  `env:"GOOGLE_CLIENT_SECRET"`
	Endpoint            string  `env:"GMAIL_ENDPOINT"`
	QuotaUnitsPerSecond float64 `env:"GMAIL_QUOTA_UNITS_PER_SECOND" envDefault:"250"`
	MaxRetries          int     `env:"GMAIL_MAX_RETRIES" envDefault:"3"`
}

type OpenAIConfig struct {
	ApiKey      string        `env:"LLM_API_KEY"`
	Url         string        `env:"LLM_API_URL" envDefault:"https://api.openai.com/v1"`
	Model       string        `env:"LLM_MODEL" envDefault:"gpt-4"`
	Temperature float64       `env:"LLM_TEMPERATURE" envDefault:"0.5"`
	MaxTokens   int           `env:"LLM_MAX_TOKENS" envDefault:"1000"`
	Timeout     time.Duration `env:"LLM_TIMEOUT" envDefault:"60s"`
}

type PipelineConfig struct {
	Concurrency        int           `env:"PIPELINE_CONCURRENCY" envDefault:"4"`
	CallTimeout        time.Duration `env:"PIPELINE_CALL_TIMEOUT" envDefault:"30s"`
	RunGuardTTL        time.Duration `env:"PIPELINE_RUN_GUARD_TTL" envDefault:"10m"`
	StuckLabelAttempts int           `env:"PIPELINE_STUCK_LABEL_ATTEMPTS" envDefault:"5"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}
