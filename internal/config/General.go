package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// AssetAddress is the identity of the single accepted fungible token.
	AssetAddress string
	// AssetSymbol is the display symbol of the accepted token.
	AssetSymbol string
	// AssetDecimals is the precision of the accepted token.
	AssetDecimals int

	// PoolCustody is the pool's custody account holding the idle balance.
	PoolCustody string
	// OperatorAddress is the controlling authority allowed to manage
	// strategies and trigger rebalancing.
	OperatorAddress string
	// ShareSymbol names the pool's share token.
	ShareSymbol string
	// PlacementPolicy selects where deposits are deployed
	// ("first-active" or "proportional").
	PlacementPolicy string
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// All environment variables are required and must be set.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	AssetAddress, err = getEnv("SVM_ASSET_ADDRESS")
	if err != nil {
		return err
	}

	AssetSymbol, err = getEnv("SVM_ASSET_SYMBOL")
	if err != nil {
		return err
	}

	AssetDecimals, err = getEnvAsInt("SVM_ASSET_DECIMALS")
	if err != nil {
		return err
	}
	if AssetDecimals < 0 || AssetDecimals > 18 {
		return errors.New("environment variable SVM_ASSET_DECIMALS must be between 0 and 18")
	}

	PoolCustody, err = getEnv("SVM_POOL_CUSTODY")
	if err != nil {
		return err
	}

	OperatorAddress, err = getEnv("SVM_OPERATOR_ADDRESS")
	if err != nil {
		return err
	}

	ShareSymbol, err = getEnv("SVM_SHARE_SYMBOL")
	if err != nil {
		return err
	}

	// Placement policy defaults to the first-active scan.
	PlacementPolicy = os.Getenv("SVM_PLACEMENT_POLICY")
	if PlacementPolicy == "" {
		PlacementPolicy = "first-active"
	}

	log.Debug().
		Str("AssetSymbol", AssetSymbol).
		Str("PoolCustody", PoolCustody).
		Str("OperatorAddress", OperatorAddress).
		Str("PlacementPolicy", PlacementPolicy).
		Msg("Configuration loaded successfully.")

	return nil
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
		return 0, errors.New("environment variable " + key + " must be a valid integer, got: " + valueStr)
	}
	return value, nil
}
