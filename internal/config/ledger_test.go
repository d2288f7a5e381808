package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestLoadLedgerConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		viper.Reset()
		cfg := LoadLedgerConfig()
		assert.Equal(t, "USD", cfg.DefaultCurrency)
		assert.Equal(t, 20, cfg.DefaultHistoryLimit)
		assert.Equal(t, 100, cfg.MaxHistoryLimit)
		assert.Equal(t, "ledger_events", cfg.EventQueue)
		assert.Equal(t, 10*time.Second, cfg.OperationTimeout)
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("LEDGER_DEFAULT_CURRENCY", "eur")
		t.Setenv("LEDGER_MAX_HISTORY_LIMIT", "50")
		t.Setenv("LEDGER_OPERATION_TIMEOUT", "3s")
		t.Setenv("LEDGER_DEFAULT_HISTORY_LIMIT", "not-a-number")

		viper.Reset()
		cfg := LoadLedgerConfig()
		assert.Equal(t, "EUR", cfg.DefaultCurrency)
		assert.Equal(t, 50, cfg.MaxHistoryLimit)
		assert.Equal(t, 3*time.Second, cfg.OperationTimeout)
		assert.Equal(t, 20, cfg.DefaultHistoryLimit)
	})

	t.Run("values set through viper", func(t *testing.T) {
		viper.Reset()
		viper.Set("ledger.event_channel", "ledger_fanout")
		viper.Set("ledger.default_history_limit", 5)

		cfg := LoadLedgerConfig()
		assert.Equal(t, "ledger_fanout", cfg.EventChannel)
		assert.Equal(t, "ledger_events", cfg.EventQueue)
		assert.Equal(t, 5, cfg.DefaultHistoryLimit)
	})
}

func TestHistoryLimit(t *testing.T) {
	cfg := &LedgerConfig{DefaultHistoryLimit: 20, MaxHistoryLimit: 100}

	assert.Equal(t, 20, cfg.HistoryLimit(0))
	assert.Equal(t, 20, cfg.HistoryLimit(-5))
	assert.Equal(t, 7, cfg.HistoryLimit(7))
	assert.Equal(t, 100, cfg.HistoryLimit(500))
}
