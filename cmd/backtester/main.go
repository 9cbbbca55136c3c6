package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/Backtester/internal/api/twelvedata"
	"github.com/Alias1177/Backtester/internal/config"
	"github.com/Alias1177/Backtester/internal/database"
	"github.com/Alias1177/Backtester/internal/dataset"
	"github.com/Alias1177/Backtester/internal/strategy"
	"github.com/Alias1177/Backtester/internal/trading/backtest"
	"github.com/Alias1177/Backtester/models"
)

func main() {
	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	setupSignalHandling(cancel)

	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// 2. Configure logging
	setupLogging(cfg.LogLevel)
	log.Info().Msg("Starting backtester")

	// 3. Print configuration
	printConfig(cfg)

	if err := run(ctx, cfg); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn().Msg("Backtest cancelled")
			os.Exit(130)
		}
		log.Fatal().Err(err).Msg("Backtest failed")
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	// 4. Load historical data
	data, err := loadData(ctx, cfg)
	if err != nil {
		return fmt.Errorf("loading historical data: %w", err)
	}
	log.Info().Int("dates", len(data)).Msg("Historical data loaded")

	// 5. Build the strategy over the loaded snapshot
	strat, err := strategy.New(cfg.Strategy, data)
	if err != nil {
		return err
	}

	// 6. Pick a result store
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// 7. Run the backtest
	engine := backtest.NewEngine(store)
	result, err := engine.Run(ctx, strat, data, cfg.Symbols, cfg.Backtest())
	if err != nil {
		return err
	}

	fmt.Println(backtest.FormatResults(result))

	// 8. Stress the trade sequence
	if cfg.MonteCarloRuns > 0 {
		mc := backtest.MonteCarlo(result, cfg.MonteCarloRuns, cfg.MonteCarloSeed)
		fmt.Println(backtest.FormatMonteCarlo(mc))
	}

	return nil
}

// loadData prefers a local CSV file and falls back to the Twelve Data API
func loadData(ctx context.Context, cfg *config.Config) (models.HistoricalData, error) {
	if cfg.DataFile != "" {
		log.Info().Str("file", cfg.DataFile).Msg("Reading historical data from CSV")
		return dataset.LoadFile(cfg.DataFile)
	}

	client := twelvedata.NewClient(twelvedata.ClientOptions{
		APIKey:         cfg.TwelveAPIKey,
		Interval:       cfg.Interval,
		RequestTimeout: cfg.Timeout(),
		RequestsPerSec: cfg.RequestsPerSec,
	})
	log.Info().Strs("symbols", cfg.Symbols).Msg("Fetching historical data from Twelve Data")
	return client.LoadHistoricalData(ctx, cfg.Symbols, cfg.StartDate, cfg.EndDate)
}

// openStore connects to Postgres when configured and keeps results in memory otherwise
func openStore(ctx context.Context, cfg *config.Config) (backtest.ResultStore, func(), error) {
	if !cfg.Database.Enabled() {
		log.Info().Msg("No database configured, keeping results in memory")
		return database.NewMemoryStore(), func() {}, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.Timeout())
	defer cancel()

	db, err := database.New(connectCtx, database.ConnectionParams{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.Name,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}

	return db, func() {
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("Closing database")
		}
	}, nil
}

// setupSignalHandling cancels the run on SIGINT or SIGTERM
func setupSignalHandling(cancel context.CancelFunc) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		log.Info().Msg("Shutdown signal received, stopping...")
		cancel()
	}()
}

// setupLogging configures the logger
func setupLogging(logLevel string) {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log.Logger = log.Output(output)

	// Set log level from config
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log.Logger = log.Logger.Level(level)
}

// printConfig outputs the current configuration
func printConfig(cfg *config.Config) {
	log.Info().
		Strs("Symbols", cfg.Symbols).
		Str("DataFile", cfg.DataFile).
		Str("Interval", cfg.Interval).
		Str("Strategy", cfg.Strategy).
		Str("StartDate", cfg.StartDate).
		Str("EndDate", cfg.EndDate).
		Float64("InitialCapital", cfg.InitialCapital).
		Float64("MaxPositionSize", cfg.MaxPositionSize).
		Float64("TransactionCost", cfg.TransactionCost).
		Int("MonteCarloRuns", cfg.MonteCarloRuns).
		Bool("Database", cfg.Database.Enabled()).
		Msg("Configuration loaded")
}
