package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/hyperyield/yvm/internal/config"
	"github.com/hyperyield/yvm/internal/datafetcher"
	"github.com/hyperyield/yvm/internal/logger"
	"github.com/hyperyield/yvm/internal/oracle"
	"github.com/hyperyield/yvm/internal/state"
	"github.com/hyperyield/yvm/internal/web"
	"github.com/hyperyield/yvm/internal/worker"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// main is the entry point for the YVM system.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FILE"))
	log.Info().Msg("YVM Core Logic Starting...")

	// Initialize Database Connection
	dbCfg := state.DBConfig{
		Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
		User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
		DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// --- Start Web Server ---
	webPort := os.Getenv("WEB_PORT")
	if webPort == "" {
		webPort = "8080"
	}

	webServer := web.NewWebServer(webPort)
	go func() {
		log.Info().Str("port", webPort).Str("url", "http://localhost:"+webPort).Msg("Starting YVM web API")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 2. RPC Client and Rate Oracle ---
	rpcClient, err := oracle.NewRPCClient(config.EVMRPCEndpoints...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create RPC client")
	}
	log.Info().Int("endpoints", len(config.EVMRPCEndpoints)).Msg("RPC client ready")

	irmOracle := oracle.NewIRMOracle(rpcClient, config.FelixIRMAddress)
	fetcher := datafetcher.NewFetcher(rpcClient, irmOracle)

	// --- 3. Create Worker with Dependency Injection ---
	params := config.DefaultSafetyParameters
	params.MinGainBps = config.MinGainBps

	w, err := worker.New(worker.Config{
		Fetcher:    fetcher,
		RateOracle: irmOracle,
		Params:     params,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create worker")
	}

	// --- 4. Start Decision Loop ---
	interval := time.Duration(config.LoopIntervalMinutes) * time.Minute
	log.Info().Str("interval", interval.String()).Msg("Starting decision loop")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w.RunLoop(ctx, interval)
	log.Info().Msg("YVM shut down cleanly")
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
