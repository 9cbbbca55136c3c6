package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/Backtester/models"
)

// Config holds all application configuration
type Config struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Data source: a CSV file wins over the Twelve Data API when set
	Symbols        []string `env:"SYMBOLS" envDefault:"AAPL,MSFT"`
	DataFile       string   `env:"DATA_FILE"`
	TwelveAPIKey   string   `env:"TWELVE_API_KEY"`
	Interval       string   `env:"INTERVAL" envDefault:"1day"`
	RequestTimeout int      `env:"REQUEST_TIMEOUT" envDefault:"30"` // seconds
	RequestsPerSec int      `env:"REQUESTS_PER_SEC" envDefault:"5"`

	Strategy        string  `env:"STRATEGY" envDefault:"ema_crossover"`
	StartDate       string  `env:"START_DATE"`
	EndDate         string  `env:"END_DATE"`
	InitialCapital  float64 `env:"INITIAL_CAPITAL" envDefault:"100000"`
	MaxPositionSize float64 `env:"MAX_POSITION_SIZE" envDefault:"0.2"`
	TransactionCost float64 `env:"TRANSACTION_COST" envDefault:"0.001"`

	MonteCarloRuns int   `env:"MONTE_CARLO_RUNS" envDefault:"1000"`
	MonteCarloSeed int64 `env:"MONTE_CARLO_SEED" envDefault:"1"`

	Database DatabaseConfig
}

// DatabaseConfig holds Postgres connection settings. An empty host disables
// persistence.
type DatabaseConfig struct {
	Host     string `env:"DB_HOST"`
	Port     int    `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD"`
	Name     string `env:"DB_NAME" envDefault:"backtester"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
}

// Enabled reports whether a database is configured
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

// Load initializes configuration from environment variables
func Load() (*Config, error) {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	var cfg Config

	cfg.LogLevel = getEnvWithDefault("LOG_LEVEL", "info")

	cfg.Symbols = getEnvListWithDefault("SYMBOLS", []string{"AAPL", "MSFT"})
	cfg.DataFile = os.Getenv("DATA_FILE")
	cfg.TwelveAPIKey = os.Getenv("TWELVE_API_KEY")
	cfg.Interval = getEnvWithDefault("INTERVAL", "1day")
	cfg.RequestTimeout = getEnvIntWithDefault("REQUEST_TIMEOUT", 30)
	cfg.RequestsPerSec = getEnvIntWithDefault("REQUESTS_PER_SEC", 5)

	cfg.Strategy = getEnvWithDefault("STRATEGY", "ema_crossover")
	cfg.StartDate = os.Getenv("START_DATE")
	cfg.EndDate = os.Getenv("END_DATE")
	cfg.InitialCapital = getEnvFloatWithDefault("INITIAL_CAPITAL", 100000)
	cfg.MaxPositionSize = getEnvFloatWithDefault("MAX_POSITION_SIZE", 0.2)
	cfg.TransactionCost = getEnvFloatWithDefault("TRANSACTION_COST", 0.001)

	cfg.MonteCarloRuns = getEnvIntWithDefault("MONTE_CARLO_RUNS", 1000)
	cfg.MonteCarloSeed = int64(getEnvIntWithDefault("MONTE_CARLO_SEED", 1))

	cfg.Database = DatabaseConfig{
		Host:     os.Getenv("DB_HOST"),
		Port:     getEnvIntWithDefault("DB_PORT", 5432),
		User:     getEnvWithDefault("DB_USER", "postgres"),
		Password: os.Getenv("DB_PASSWORD"),
		Name:     getEnvWithDefault("DB_NAME", "backtester"),
		SSLMode:  getEnvWithDefault("DB_SSLMODE", "disable"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects contradictory settings
func (c *Config) Validate() error {
	var errs []error

	if len(c.Symbols) == 0 {
		errs = append(errs, errors.New("SYMBOLS must list at least one symbol"))
	}
	if c.DataFile == "" && c.TwelveAPIKey == "" {
		errs = append(errs, errors.New("either DATA_FILE or TWELVE_API_KEY must be set"))
	}
	if c.InitialCapital <= 0 {
		errs = append(errs, fmt.Errorf("INITIAL_CAPITAL %.2f must be positive", c.InitialCapital))
	}
	if c.MaxPositionSize <= 0 || c.MaxPositionSize > 1 {
		errs = append(errs, fmt.Errorf("MAX_POSITION_SIZE %.4f must be in (0, 1]", c.MaxPositionSize))
	}
	if c.TransactionCost < 0 || c.TransactionCost >= 1 {
		errs = append(errs, fmt.Errorf("TRANSACTION_COST %.4f must be in [0, 1)", c.TransactionCost))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("REQUEST_TIMEOUT must be positive"))
	}
	if c.RequestsPerSec <= 0 {
		errs = append(errs, fmt.Errorf("REQUESTS_PER_SEC %d must be positive", c.RequestsPerSec))
	}

	start, startErr := parseOptionalDate("START_DATE", c.StartDate)
	end, endErr := parseOptionalDate("END_DATE", c.EndDate)
	if startErr != nil {
		errs = append(errs, startErr)
	}
	if endErr != nil {
		errs = append(errs, endErr)
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		errs = append(errs, fmt.Errorf("END_DATE %s is before START_DATE %s", c.EndDate, c.StartDate))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Backtest converts the settings into an engine configuration
func (c *Config) Backtest() models.BacktestConfig {
	return models.BacktestConfig{
		StrategyName:    c.Strategy,
		StartDate:       c.StartDate,
		EndDate:         c.EndDate,
		InitialCapital:  c.InitialCapital,
		MaxPositionSize: models.Float(c.MaxPositionSize),
		TransactionCost: models.Float(c.TransactionCost),
	}
}

// Timeout returns the HTTP request timeout
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

func parseOptionalDate(key, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := models.ParseDate(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", key, err)
	}
	return t, nil
}

// Helper functions for environment variable handling
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvListWithDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, strings.ToUpper(item))
		}
	}
	return out
}
