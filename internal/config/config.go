package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит конфигурацию Storybot Server.
type Config struct {
	// Настройки сервера
	Port     string `envconfig:"STORYBOT_SERVER_PORT" default:"8084"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Настройки PostgreSQL
	DBHost        string        `envconfig:"DB_HOST" required:"true"`
	DBPort        string        `envconfig:"DB_PORT" default:"5432"`
	DBUser        string        `envconfig:"DB_USER" required:"true"`
	DBPassword    string        `envconfig:"DB_PASSWORD" required:"true"`
	DBName        string        `envconfig:"DB_NAME" required:"true"`
	DBSSLMode     string        `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns    int           `envconfig:"DB_MAX_CONNECTIONS" default:"10"`
	DBIdleTimeout time.Duration `envconfig:"DB_MAX_IDLE_MINUTES" default:"5m"`
	MigrationsDir string        `envconfig:"MIGRATIONS_DIR" default:"internal/database/migrations"`

	// Настройки RabbitMQ
	RabbitMQURL            string `envconfig:"RABBITMQ_URL" required:"true"`
	NotificationsQueueName string `envconfig:"NOTIFICATIONS_QUEUE_NAME" default:"turn_notifications"`

	// Шлюз мессенджера (sidecar, владеющий Discord-клиентом)
	GatewayBaseURL string `envconfig:"GATEWAY_BASE_URL" required:"true"`
	GatewayToken   string `envconfig:"GATEWAY_TOKEN" default:""`

	// Поведение движка
	DefaultLanguage        string        `envconfig:"DEFAULT_LANGUAGE" default:"en"`
	EntryPreviewTimeoutMin int           `envconfig:"ENTRY_PREVIEW_TIMEOUT_MINUTES" default:"15"`
	ActivationPollInterval time.Duration `envconfig:"ACTIVATION_POLL_INTERVAL" default:"1m"`
	FinalizeFetchLimit     int           `envconfig:"FINALIZE_FETCH_LIMIT" default:"100"`
}

// GetDSN возвращает строку подключения (DSN) для PostgreSQL.
func (c *Config) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// LoadConfig загружает конфигурацию из переменных окружения.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации storybot-server: %w", err)
	}
	return &cfg, nil
}
