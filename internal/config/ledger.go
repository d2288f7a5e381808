package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type LedgerConfig struct {
	DefaultCurrency     string
	DefaultHistoryLimit int
	MaxHistoryLimit     int
	EventQueue          string
	EventChannel        string
	OperationTimeout    time.Duration
}

func LoadLedgerConfig() *LedgerConfig {
	viper.SetDefault("ledger.default_currency", "USD")
	viper.SetDefault("ledger.default_history_limit", 20)
	viper.SetDefault("ledger.max_history_limit", 100)
	viper.SetDefault("ledger.event_queue", "ledger_events")
	viper.SetDefault("ledger.event_channel", "ledger_events")
	viper.SetDefault("ledger.operation_timeout", 10*time.Second)

	viper.BindEnv("ledger.default_currency", "LEDGER_DEFAULT_CURRENCY")
	viper.BindEnv("ledger.default_history_limit", "LEDGER_DEFAULT_HISTORY_LIMIT")
	viper.BindEnv("ledger.max_history_limit", "LEDGER_MAX_HISTORY_LIMIT")
	viper.BindEnv("ledger.event_queue", "LEDGER_EVENT_QUEUE")
	viper.BindEnv("ledger.event_channel", "LEDGER_EVENT_CHANNEL")
	viper.BindEnv("ledger.operation_timeout", "LEDGER_OPERATION_TIMEOUT")

	cfg := &LedgerConfig{
		DefaultCurrency:     strings.ToUpper(viper.GetString("ledger.default_currency")),
		DefaultHistoryLimit: viper.GetInt("ledger.default_history_limit"),
		MaxHistoryLimit:     viper.GetInt("ledger.max_history_limit"),
		EventQueue:          viper.GetString("ledger.event_queue"),
		EventChannel:        viper.GetString("ledger.event_channel"),
		OperationTimeout:    viper.GetDuration("ledger.operation_timeout"),
	}

	// unparsable values read as zero
	if cfg.DefaultHistoryLimit <= 0 {
		cfg.DefaultHistoryLimit = 20
	}
	if cfg.MaxHistoryLimit <= 0 {
		cfg.MaxHistoryLimit = 100
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 10 * time.Second
	}
	return cfg
}

// HistoryLimit clamps a requested page size. Zero or negative means the default.
func (c *LedgerConfig) HistoryLimit(requested int) int {
	if requested <= 0 {
		return c.DefaultHistoryLimit
	}
	if requested > c.MaxHistoryLimit {
		return c.MaxHistoryLimit
	}
	return requested
}
