package app

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/resale/internal/service/risk"
)

// Поддерживаемые драйверы хранилища.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config описывает настройки запуска сервиса перепродажи.
type Config struct {
	GRPCAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	// CheckoutAttempts задаёт, сколько раз повторять операцию заказа при ErrStorage; 1 отключает повторы.
	CheckoutAttempts int

	SweepInterval   time.Duration
	PaymentDeadline time.Duration
	SweepBatchSize  int
	ListingExpiry   bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaBrokers       []string
	PaymentEventsGroup string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	Risk risk.Rules
}

// DefaultConfig возвращает конфигурацию для локального запуска: in-memory хранилище, без Redis и Kafka.
func DefaultConfig() Config {
	return Config{
		GRPCAddr:            ":50051",
		MetricsAddr:         ":9090",
		StorageDriver:       StorageMemory,
		PostgresAutoMigrate: true,
		CheckoutAttempts:    1,
		SweepInterval:       time.Minute,
		PaymentDeadline:     5 * time.Minute,
		SweepBatchSize:      200,
		ListingExpiry:       true,
		PaymentEventsGroup:  "resale-payments",
		OutboxPollInterval:  time.Second,
		OutboxBatchSize:     100,
		OutboxMaxAttempts:   3,
		OutboxRetryDelay:    100 * time.Millisecond,
		Risk:                risk.DefaultRules(),
	}
}

// riskRules подставляет значения по умолчанию вместо нулевых порогов.
func (c Config) riskRules() risk.Rules {
	rules := c.Risk
	defaults := risk.DefaultRules()
	if rules.HighPriceRatio.LessThanOrEqual(decimal.Zero) {
		rules.HighPriceRatio = defaults.HighPriceRatio
	}
	if rules.LowPriceRatio.LessThanOrEqual(decimal.Zero) {
		rules.LowPriceRatio = defaults.LowPriceRatio
	}
	return rules
}
