package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/resale/internal/app"
)

const (
	envLogLevel            = "RESALE_LOG_LEVEL"
	envGRPCAddr            = "RESALE_GRPC_ADDR"
	envMetricsAddr         = "RESALE_METRICS_ADDR"
	envStorageDriver       = "RESALE_STORAGE_DRIVER"
	envPostgresDSN         = "RESALE_POSTGRES_DSN"
	envPostgresAutoMigrate = "RESALE_POSTGRES_AUTO_MIGRATE"
	envCheckoutAttempts    = "RESALE_CHECKOUT_ATTEMPTS"
	envSweepInterval       = "RESALE_SWEEP_INTERVAL"
	envPaymentDeadline     = "RESALE_PAYMENT_DEADLINE"
	envSweepBatchSize      = "RESALE_SWEEP_BATCH_SIZE"
	envListingExpiry       = "RESALE_LISTING_EXPIRY"
	envRedisAddr           = "RESALE_REDIS_ADDR"
	envRedisPassword       = "RESALE_REDIS_PASSWORD"
	envRedisDB             = "RESALE_REDIS_DB"
	envKafkaBrokers        = "RESALE_KAFKA_BROKERS"
	envPaymentEventsGroup  = "RESALE_PAYMENT_EVENTS_GROUP"
	envOutboxPollInterval  = "RESALE_OUTBOX_POLL_INTERVAL"
	envOutboxBatchSize     = "RESALE_OUTBOX_BATCH_SIZE"
	envOutboxMaxAttempts   = "RESALE_OUTBOX_MAX_ATTEMPTS"
	envOutboxRetryDelay    = "RESALE_OUTBOX_RETRY_DELAY"
	envRiskNewSellerTier   = "RESALE_RISK_NEW_SELLER_MIN_TIER"
	envRiskHighPriceRatio  = "RESALE_RISK_HIGH_PRICE_RATIO"
	envRiskLowPriceRatio   = "RESALE_RISK_LOW_PRICE_RATIO"
	envRiskMaxQuantity     = "RESALE_RISK_MAX_QUANTITY"
)

type envLookup func(key string) (string, bool)

// readConfigFromEnv накладывает RESALE_* переменные на app.DefaultConfig.
// Некорректное значение не прерывает запуск: остаётся значение по умолчанию, а в warnings попадает описание.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string

	warn := func(key, value string, err error) {
		warnings = append(warnings, fmt.Sprintf("invalid %s=%q: %v; using default", key, value, err))
	}
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			parsed, err := parseBool(v)
			if err != nil {
				warn(key, v, err)
				return
			}
			*dst = parsed
		}
	}
	integer := func(key string, dst *int, valid func(int) bool, rule string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			parsed, err := parseInt(v, valid, rule)
			if err != nil {
				warn(key, v, err)
				return
			}
			*dst = parsed
		}
	}
	duration := func(key string, dst *time.Duration, valid func(time.Duration) bool, rule string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			parsed, err := parseDuration(v, valid, rule)
			if err != nil {
				warn(key, v, err)
				return
			}
			*dst = parsed
		}
	}
	ratio := func(key string, dst *decimal.Decimal) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			parsed, err := parseRatio(v)
			if err != nil {
				warn(key, v, err)
				return
			}
			*dst = parsed
		}
	}

	positive := func(v int) bool { return v > 0 }
	nonNegative := func(v int) bool { return v >= 0 }
	positiveDuration := func(v time.Duration) bool { return v > 0 }

	str(envGRPCAddr, &cfg.GRPCAddr)
	str(envMetricsAddr, &cfg.MetricsAddr)
	str(envStorageDriver, &cfg.StorageDriver)
	cfg.StorageDriver = strings.ToLower(cfg.StorageDriver)
	str(envPostgresDSN, &cfg.PostgresDSN)
	boolean(envPostgresAutoMigrate, &cfg.PostgresAutoMigrate)
	integer(envCheckoutAttempts, &cfg.CheckoutAttempts, positive, "must be > 0")

	duration(envSweepInterval, &cfg.SweepInterval, positiveDuration, "must be > 0")
	duration(envPaymentDeadline, &cfg.PaymentDeadline, positiveDuration, "must be > 0")
	integer(envSweepBatchSize, &cfg.SweepBatchSize, positive, "must be > 0")
	boolean(envListingExpiry, &cfg.ListingExpiry)

	str(envRedisAddr, &cfg.RedisAddr)
	if v, ok := lookup(envRedisPassword); ok {
		cfg.RedisPassword = v
	}
	integer(envRedisDB, &cfg.RedisDB, nonNegative, "must be >= 0")

	if v, ok := lookup(envKafkaBrokers); ok {
		cfg.KafkaBrokers = app.ParseBrokers(v)
	}
	str(envPaymentEventsGroup, &cfg.PaymentEventsGroup)
	duration(envOutboxPollInterval, &cfg.OutboxPollInterval, positiveDuration, "must be > 0")
	integer(envOutboxBatchSize, &cfg.OutboxBatchSize, positive, "must be > 0")
	integer(envOutboxMaxAttempts, &cfg.OutboxMaxAttempts, positive, "must be > 0")
	duration(envOutboxRetryDelay, &cfg.OutboxRetryDelay, func(v time.Duration) bool { return v >= 0 }, "must be >= 0")

	integer(envRiskNewSellerTier, &cfg.Risk.NewSellerMinTier, nonNegative, "must be >= 0")
	ratio(envRiskHighPriceRatio, &cfg.Risk.HighPriceRatio)
	ratio(envRiskLowPriceRatio, &cfg.Risk.LowPriceRatio)
	integer(envRiskMaxQuantity, &cfg.Risk.MaxQuantity, nonNegative, "must be >= 0")

	return cfg, warnings
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("expected boolean")
	}
}

func parseInt(raw string, valid func(int) bool, rule string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if valid != nil && !valid(value) {
		return 0, fmt.Errorf("%s", rule)
	}
	return value, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if valid != nil && !valid(value) {
		return 0, fmt.Errorf("%s", rule)
	}
	return value, nil
}

func parseRatio(raw string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, err
	}
	if !value.IsPositive() {
		return decimal.Zero, fmt.Errorf("must be > 0")
	}
	return value, nil
}
