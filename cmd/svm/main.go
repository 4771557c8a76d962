package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/stratavault/svm/internal/config"
	"github.com/stratavault/svm/internal/engine"
	"github.com/stratavault/svm/internal/logger"
	"github.com/stratavault/svm/internal/market"
	"github.com/stratavault/svm/internal/pool"
	"github.com/stratavault/svm/internal/state"
	"github.com/stratavault/svm/internal/strategy"
	"github.com/stratavault/svm/internal/token"
	"github.com/stratavault/svm/internal/web"
)

const (
	SNAPSHOT_INTERVAL = 5 * time.Minute
)

// main is the entry point for the SVM system.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("SVM Core Starting...")

	// Initialize Database Connection (receipts and snapshots)
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

	// --- 2. Build the Asset Ledger and External Markets ---
	asset := token.New(token.Address(config.AssetAddress), config.AssetSymbol, config.AssetDecimals)
	lendingMarket := market.NewSimLendingMarket("markets/sim-lending", asset)
	vaultMarket := market.NewSimVaultMarket("markets/sim-vault", asset)

	// --- 3. Create the Pool ---
	placement, err := pool.NewPlacementPolicy(config.PlacementPolicy)
	if err != nil {
		log.Fatal().Err(err).Str("policy", config.PlacementPolicy).Msg("Unknown placement policy")
	}

	p, err := pool.New(pool.Config{
		Asset:       asset,
		Custody:     token.Address(config.PoolCustody),
		Operator:    token.Address(config.OperatorAddress),
		ShareSymbol: config.ShareSymbol,
		Placement:   placement,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create pool")
	}

	// --- 4. Create Engine Instance with Dependency Injection ---
	eng, err := engine.New(engine.Config{
		Pool:     p,
		Recorder: engine.PostgresRecorder{},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create engine instance")
	}

	mustRegister(eng, "sim-lending", func() (strategy.Strategy, error) {
		addr := token.Address(fmt.Sprintf("strategies/sim-lending/%s", uuid.New().String()))
		return strategy.NewLendingAdapter(addr, asset, lendingMarket)
	})
	mustRegister(eng, "sim-vault", func() (strategy.Strategy, error) {
		addr := token.Address(fmt.Sprintf("strategies/sim-vault/%s", uuid.New().String()))
		return strategy.NewVaultAdapter(addr, asset, vaultMarket)
	})

	log.Info().Strs("markets", eng.Markets()).Msg("Engine instance created successfully")

	// --- 5. Start Web Server ---
	webPort := os.Getenv("WEB_PORT")
	if webPort == "" {
		webPort = "8080"
	}

	webServer := web.NewWebServer(webPort, eng)
	go func() {
		log.Info().Str("port", webPort).Str("url", "http://localhost:"+webPort).Msg("Starting SVM web API")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 6. Run Snapshot Loop Until Shutdown ---
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info().Str("interval", SNAPSHOT_INTERVAL.String()).Msg("Starting snapshot loop")
	eng.RunSnapshotLoop(ctx, SNAPSHOT_INTERVAL)

	log.Info().Msg("SVM Core shut down")
}

func mustRegister(eng *engine.Engine, name string, factory engine.AdapterFactory) {
	if err := eng.RegisterMarket(name, factory); err != nil {
		log.Fatal().Err(err).Str("market", name).Msg("Failed to register market")
	}
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
