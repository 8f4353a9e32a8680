package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/ShashankTrevonix/digital-credentials-nw-credit-card/credit"
	"github.com/ShashankTrevonix/digital-credentials-nw-credit-card/logging"
	"github.com/ShashankTrevonix/digital-credentials-nw-credit-card/pingone"
	"github.com/ShashankTrevonix/digital-credentials-nw-credit-card/redis"
)

type Config struct {
	ServerConfig ServerConfig `json:"server_config"`

	LogLevel  string `json:"log_level,omitempty"`
	LogFormat string `json:"log_format,omitempty"`

	PingOneConfig pingone.Config `json:"pingone_config"`

	StorageType         string                    `json:"storage_type"`
	RedisConfig         redis.RedisConfig         `json:"redis_config,omitempty"`
	RedisSentinelConfig redis.RedisSentinelConfig `json:"redis_sentinel_config,omitempty"`
}

func main() {
	configPath := flag.String("config", "", "Path for the config.json to use")
	flag.Parse()

	if *configPath == "" {
		slog.Error("please provide a config path using the --config flag")
		os.Exit(1)
	}

	// A .env file next to the binary may carry the provider secrets so they
	// stay out of config.json. Missing file is fine.
	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded environment overrides from .env")
	}

	config, err := readConfigFile(*configPath)
	if err != nil {
		slog.Error("failed to read config file", "path", *configPath, "error", err)
		os.Exit(1)
	}

	logging.InitLogger(config.LogLevel, config.LogFormat)
	slog.Info("using config", "path", *configPath)
	slog.Info("hosting on", "host", config.ServerConfig.Host, "port", config.ServerConfig.Port)

	applyEnvOverrides(&config.PingOneConfig)
	if config.PingOneConfig.ClientId == "" || config.PingOneConfig.ClientSecret == "" {
		slog.Error("missing PingOne client credentials; set them in the config or via PINGONE_CLIENT_ID / PINGONE_CLIENT_SECRET")
		os.Exit(1)
	}

	flowStorage, err := createFlowStorage(&config)
	if err != nil {
		slog.Error("failed to instantiate flow storage", "error", err)
		os.Exit(1)
	}

	serverState := ServerState{
		flowStorage: flowStorage,
		flows:       NewFlowRegistry(),
		gateway:     pingone.NewClient(config.PingOneConfig),
		decider:     credit.NewStubDecider(),
	}

	server, err := NewServer(&serverState, config.ServerConfig)
	if err != nil {
		slog.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	err = server.ListenAndServe()
	if err != nil {
		slog.Error("failed to listen and serve", "error", err)
		os.Exit(1)
	}
}

func readConfigFile(path string) (Config, error) {
	configBytes, err := os.ReadFile(path)

	if err != nil {
		return Config{}, err
	}

	var config Config
	err = json.Unmarshal(configBytes, &config)

	if err != nil {
		return Config{}, err
	}

	return config, nil
}

// applyEnvOverrides lets the environment win over config.json for the
// provider credentials and endpoints.
func applyEnvOverrides(config *pingone.Config) {
	overrides := map[string]*string{
		"PINGONE_AUTH_BASE_URL":   &config.AuthBaseUrl,
		"PINGONE_API_BASE_URL":    &config.ApiBaseUrl,
		"PINGONE_ENVIRONMENT_ID":  &config.EnvironmentId,
		"PINGONE_CLIENT_ID":       &config.ClientId,
		"PINGONE_CLIENT_SECRET":   &config.ClientSecret,
		"PINGONE_WALLET_APP_ID":   &config.WalletApplicationId,
		"PINGONE_CREDENTIAL_TYPE": &config.CredentialTypeId,
	}
	for key, target := range overrides {
		if value := os.Getenv(key); value != "" {
			*target = value
		}
	}
}

func createFlowStorage(config *Config) (FlowStorage, error) {
	if config.StorageType == "redis" {
		slog.Info("Using redis flow storage")
		client, err := redis.NewRedisClient(&config.RedisConfig)
		if err != nil {
			return nil, err
		}
		return NewRedisFlowStorage(client, config.RedisConfig.Namespace), nil
	}
	if config.StorageType == "redis_sentinel" {
		slog.Info("Using redis sentinal storage")
		client, err := redis.NewRedisSentinelClient(&config.RedisSentinelConfig)
		if err != nil {
			return nil, err
		}
		return NewRedisFlowStorage(client, config.RedisSentinelConfig.Namespace), nil
	}
	if config.StorageType == "memory" {
		slog.Info("Using in memory storage")
		return NewInMemoryFlowStorage(), nil
	}
	return nil, fmt.Errorf("%v is not a valid storage type", config.StorageType)
}
