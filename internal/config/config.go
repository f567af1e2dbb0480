package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"blockrand/internal/errors"
)

// Storage backends
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// Config represents the complete application configuration
type Config struct {
	Randomization RandomizationConfig
	Storage       StorageConfig
	Server        ServerConfig
}

// RandomizationConfig holds allocation settings
type RandomizationConfig struct {
	BlockSize    int
	Seed         int64
	BiasEnabled  bool
	PriorityMode string
	ExtraStrata  []StratumSpec
}

// StratumSpec describes one additional categorical stratification dimension
type StratumSpec struct {
	Name   string
	Levels []string
}

// StorageConfig selects and locates the history store
type StorageConfig struct {
	Backend     string
	HistoryCSV  string
	HistoryXLSX string
	DatabaseURL string
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string
	GinMode string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{}

	randomization, err := loadRandomizationConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load randomization configuration")
	}
	config.Randomization = *randomization

	config.Storage = *loadStorageConfig()
	config.Server = *loadServerConfig()

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadRandomizationConfig() (*RandomizationConfig, error) {
	blockSize, err := getEnvInt("BLOCK_SIZE", 4)
	if err != nil {
		return nil, err
	}
	seed, err := getEnvInt64("RANDOM_SEED", 0)
	if err != nil {
		return nil, err
	}
	bias, err := getEnvBool("BIAS_ENABLED", true)
	if err != nil {
		return nil, err
	}
	extra, err := ParseExtraStrata(os.Getenv("EXTRA_STRATA"))
	if err != nil {
		return nil, err
	}

	return &RandomizationConfig{
		BlockSize:    blockSize,
		Seed:         seed,
		BiasEnabled:  bias,
		PriorityMode: strings.ToLower(getEnvOrDefault("PRIORITY_MODE", "neutral")),
		ExtraStrata:  extra,
	}, nil
}

func loadStorageConfig() *StorageConfig {
	return &StorageConfig{
		Backend:     strings.ToLower(getEnvOrDefault("STORAGE_BACKEND", BackendFile)),
		HistoryCSV:  getEnvOrDefault("HISTORY_CSV", "assignments.csv"),
		HistoryXLSX: getEnvOrDefault("HISTORY_XLSX", "assignments.xlsx"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
	}
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:    getEnvOrDefault("PORT", "8080"),
		GinMode: getEnvOrDefault("GIN_MODE", "release"),
	}
}

// ParseExtraStrata parses "site:North|South,smoker:Yes|No". Empty input
// yields no extra dimensions.
func ParseExtraStrata(raw string) ([]StratumSpec, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var specs []StratumSpec
	for _, part := range strings.Split(raw, ",") {
		name, levelList, ok := strings.Cut(strings.TrimSpace(part), ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, errors.ConfigInvalid(fmt.Sprintf("EXTRA_STRATA entry %q must look like name:level|level", part))
		}
		var levels []string
		for _, level := range strings.Split(levelList, "|") {
			if level = strings.TrimSpace(level); level != "" {
				levels = append(levels, level)
			}
		}
		if len(levels) < 2 {
			return nil, errors.ConfigInvalid(fmt.Sprintf("EXTRA_STRATA dimension %q needs at least two levels", name))
		}
		specs = append(specs, StratumSpec{Name: name, Levels: levels})
	}
	return specs, nil
}

func validateConfig(config *Config) error {
	if config.Randomization.BlockSize < 2 {
		return errors.ConfigInvalid("BLOCK_SIZE must be at least 2")
	}
	switch config.Randomization.PriorityMode {
	case "neutral", "weighted":
	default:
		return errors.ConfigInvalid(fmt.Sprintf("PRIORITY_MODE %q must be neutral or weighted", config.Randomization.PriorityMode))
	}
	switch config.Storage.Backend {
	case BackendFile:
		if config.Storage.HistoryCSV == "" {
			return errors.ConfigInvalid("HISTORY_CSV is required for the file backend")
		}
	case BackendPostgres:
		if config.Storage.DatabaseURL == "" {
			return errors.ConfigInvalid("DATABASE_URL is required for the postgres backend")
		}
	default:
		return errors.ConfigInvalid(fmt.Sprintf("STORAGE_BACKEND %q must be file or postgres", config.Storage.Backend))
	}
	return nil
}

// Helper functions for environment variable parsing. Malformed values are
// reported rather than replaced by the default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	intValue, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, errors.ConfigInvalid(fmt.Sprintf("%s must be an integer, got %q", key, value))
	}
	return intValue, nil
}

func getEnvInt64(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, errors.ConfigInvalid(fmt.Sprintf("%s must be an integer, got %q", key, value))
	}
	return intValue, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	boolValue, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return false, errors.ConfigInvalid(fmt.Sprintf("%s must be a boolean, got %q", key, value))
	}
	return boolValue, nil
}
