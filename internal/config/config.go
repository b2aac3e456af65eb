package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the trader runtime's configuration surface (SPEC_FULL
// §2.1/§6): broker mode, strategy manifest, back-test window and fee
// parameters, plus the ambient server/database/logging knobs carried over
// from the teacher's config shape.
type Config struct {
	// Introspection HTTP surface
	HTTPAddr string
	DevMode  bool

	// Database (audit trail, not ledger state — §3.1)
	DatabasePath string

	// Broker selection: "historical" or "live".
	BrokerMode string

	// StrategyManifestPath points at the strategy configuration file
	// (§6 "strategy configuration surface"). Nothing reads it: cmd/trader
	// builds its strategies in code, and Validate does not check it.
	StrategyManifestPath string

	// Back-test window and fee schedule (§6 "trader configuration
	// surface": back-tester additionally accepts stop + the three fee
	// parameters). BacktestStart/Stop are zero when unset.
	BacktestStart          time.Time
	BacktestStop           time.Time
	VariableTransactionFee float64
	FeePerShare            float64
	FixedTransactionFee    float64

	// StartCash seeds the main ledger's Cash singleton.
	StartCash float64
	// TickInterval is Clock.dtime in historical mode.
	TickInterval time.Duration

	LogLevel string
}

// Load reads configuration from environment variables, falling back to
// .env if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:               getEnv("HTTP_ADDR", ":8001"),
		DevMode:                getEnvAsBool("DEV_MODE", false),
		DatabasePath:           getEnv("DATABASE_PATH", "./data/audit.db"),
		BrokerMode:             getEnv("BROKER_MODE", "historical"),
		StrategyManifestPath:   getEnv("STRATEGY_MANIFEST_PATH", ""),
		BacktestStart:          getEnvAsTime("BACKTEST_START", time.Time{}),
		BacktestStop:           getEnvAsTime("BACKTEST_STOP", time.Time{}),
		VariableTransactionFee: getEnvAsFloat("VARIABLE_TRANSACTION_FEE", 0),
		FeePerShare:            getEnvAsFloat("FEE_PER_SHARE", 0),
		FixedTransactionFee:    getEnvAsFloat("FIXED_TRANSACTION_FEE", 0),
		StartCash:              getEnvAsFloat("START_CASH", 100000),
		TickInterval:           getEnvAsDuration("TICK_INTERVAL", time.Minute),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required configuration is present and internally
// consistent.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.BrokerMode != "historical" && c.BrokerMode != "live" {
		return fmt.Errorf("BROKER_MODE must be \"historical\" or \"live\", got %q", c.BrokerMode)
	}
	if c.BrokerMode == "historical" {
		if c.BacktestStart.IsZero() {
			return fmt.Errorf("BACKTEST_START is required in historical mode")
		}
		if c.BacktestStop.IsZero() {
			return fmt.Errorf("BACKTEST_STOP is required in historical mode")
		}
		if !c.BacktestStart.Before(c.BacktestStop) {
			return fmt.Errorf("BACKTEST_START must be before BACKTEST_STOP")
		}
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("TICK_INTERVAL must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsTime(key string, defaultValue time.Time) time.Time {
	if value := os.Getenv(key); value != "" {
		if t, err := time.Parse(time.RFC3339, value); err == nil {
			return t
		}
	}
	return defaultValue
}
