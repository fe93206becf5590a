package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// VaultAddress is the address of the vault this YVM instance manages.
	VaultAddress string

	// EVMRPCEndpoints are the JSON-RPC endpoints for the HyperEVM network.
	// The first is primary; the rest are failovers for read calls.
	EVMRPCEndpoints []string

	// FelixPoolAddress is the MetaMorpho-style vault whose IRM contract
	// answers borrowRateView for the Felix submarkets.
	FelixPoolAddress string
	// FelixIRMAddress is the interest-rate-model contract for Felix.
	FelixIRMAddress string

	// HyperLendDataProvider / HypurrFiDataProvider are the protocol data
	// provider contracts used to read reserve state for kinked pools.
	HyperLendDataProvider string
	HypurrFiDataProvider  string

	// HyperLendPoolAddress / HypurrFiPoolAddress key the pool snapshots
	// and receive the vault's supply and withdraw transactions.
	HyperLendPoolAddress string
	HypurrFiPoolAddress  string

	// AssetAddress is the vault's single underlying asset; AssetDecimals
	// its on-chain decimals.
	AssetAddress  string
	AssetDecimals int

	// FelixMarketIDs are the bytes32 market identifiers of the Felix
	// submarkets the vault's allocation is spread across.
	FelixMarketIDs []string

	// PriceOracleAddress is the Aave-style oracle answering getAssetPrice.
	PriceOracleAddress string

	// LoopIntervalMinutes is how often the worker runs a decision cycle.
	LoopIntervalMinutes int

	// MinGainBps is the profitability threshold; moves below it are
	// reported but flagged unprofitable.
	MinGainBps float64
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// All environment variables are required and must be set.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	VaultAddress, err = getEnv("YVM_VAULT_ADDRESS")
	if err != nil {
		return err
	}

	rpcList, err := getEnv("EVM_RPC_ENDPOINTS")
	if err != nil {
		return err
	}
	EVMRPCEndpoints = splitAndTrim(rpcList)
	if len(EVMRPCEndpoints) == 0 {
		return errors.New("EVM_RPC_ENDPOINTS must contain at least one endpoint")
	}

	FelixPoolAddress, err = getEnv("FELIX_POOL_ADDRESS")
	if err != nil {
		return err
	}

	FelixIRMAddress, err = getEnv("FELIX_IRM_ADDRESS")
	if err != nil {
		return err
	}

	HyperLendDataProvider, err = getEnv("HYPERLEND_DATA_PROVIDER")
	if err != nil {
		return err
	}

	HypurrFiDataProvider, err = getEnv("HYPURRFI_DATA_PROVIDER")
	if err != nil {
		return err
	}

	HyperLendPoolAddress, err = getEnv("HYPERLEND_POOL_ADDRESS")
	if err != nil {
		return err
	}

	HypurrFiPoolAddress, err = getEnv("HYPURRFI_POOL_ADDRESS")
	if err != nil {
		return err
	}

	AssetAddress, err = getEnv("ASSET_ADDRESS")
	if err != nil {
		return err
	}

	AssetDecimals, err = getEnvAsInt("ASSET_DECIMALS")
	if err != nil {
		return err
	}
	if AssetDecimals <= 0 || AssetDecimals > 36 {
		return errors.New("ASSET_DECIMALS must be in (0, 36]")
	}

	marketList, err := getEnv("FELIX_MARKET_IDS")
	if err != nil {
		return err
	}
	FelixMarketIDs = splitAndTrim(marketList)
	if len(FelixMarketIDs) == 0 {
		return errors.New("FELIX_MARKET_IDS must contain at least one market id")
	}

	PriceOracleAddress, err = getEnv("PRICE_ORACLE_ADDRESS")
	if err != nil {
		return err
	}

	LoopIntervalMinutes, err = getEnvAsInt("LOOP_INTERVAL_MINUTES")
	if err != nil {
		return err
	}
	if LoopIntervalMinutes <= 0 {
		return errors.New("LOOP_INTERVAL_MINUTES must be positive")
	}

	MinGainBps, err = getEnvAsFloat64("MIN_GAIN_BPS")
	if err != nil {
		return err
	}
	if MinGainBps < 0 {
		return errors.New("MIN_GAIN_BPS cannot be negative")
	}

	log.Debug().
		Str("VaultAddress", VaultAddress).
		Int("RPCEndpoints", len(EVMRPCEndpoints)).
		Msg("Configuration loaded successfully.")

	return nil
}

func splitAndTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvAsInt retrieves an environment variable as an int. Returns error if not set or invalid.
func getEnvAsInt(key string) (int, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid int, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsFloat64 retrieves an environment variable as a float64. Returns error if not set or invalid.
func getEnvAsFloat64(key string) (float64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid float64, got: " + valueStr)
	}
	return value, nil
}
