package app

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/vladislavdragonenkov/resale/internal/service/risk"
)

func TestDefaultConfig_Values(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ":50051", cfg.GRPCAddr)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.Equal(t, StorageMemory, cfg.StorageDriver)
	assert.True(t, cfg.PostgresAutoMigrate)
	assert.Equal(t, 1, cfg.CheckoutAttempts)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, 5*time.Minute, cfg.PaymentDeadline)
	assert.Equal(t, 200, cfg.SweepBatchSize)
	assert.True(t, cfg.ListingExpiry)
	assert.Empty(t, cfg.RedisAddr)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Positive(t, cfg.OutboxPollInterval)
	assert.Positive(t, cfg.OutboxBatchSize)
	assert.Positive(t, cfg.OutboxMaxAttempts)
	assert.Equal(t, risk.DefaultRules(), cfg.Risk)
}

func TestConfig_RiskRulesFallBackToDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Risk = risk.Rules{NewSellerMinTier: 3, MaxQuantity: 4}

	rules := cfg.riskRules()

	defaults := risk.DefaultRules()
	assert.Equal(t, 3, rules.NewSellerMinTier)
	assert.Equal(t, 4, rules.MaxQuantity)
	assert.True(t, rules.HighPriceRatio.Equal(defaults.HighPriceRatio))
	assert.True(t, rules.LowPriceRatio.Equal(defaults.LowPriceRatio))
}

func TestConfig_RiskRulesKeepCustomRatios(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Risk.HighPriceRatio = decimal.RequireFromString("1.5")
	cfg.Risk.LowPriceRatio = decimal.RequireFromString("0.3")

	rules := cfg.riskRules()

	assert.Equal(t, "1.5", rules.HighPriceRatio.String())
	assert.Equal(t, "0.3", rules.LowPriceRatio.String())
}
