package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Assets is the fixed portfolio universe, in display order.
var Assets = []string{"Equities", "Gold", "Bitcoin", "REITs"}

// AssetSymbols maps portfolio asset names to the identifiers used by the
// sentiment backend.
var AssetSymbols = map[string]string{
	"Equities": "NIFTY50",
	"Gold":     "GOLD",
	"Bitcoin":  "BITCOIN",
	"REITs":    "REIT",
}

// QuoteSymbols maps portfolio asset names to market data tickers.
var QuoteSymbols = map[string]string{
	"Equities": "^NSEI",
	"Gold":     "GC=F",
	"Bitcoin":  "BTC-USD",
	"REITs":    "MINDSPACE.NS",
}

type Config struct {
	Port       int    `envconfig:"PORT" default:"5001"`
	DataDir    string `envconfig:"DATA_DIR" default:"data"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`
	LogVerbose bool   `envconfig:"LOG_VERBOSE" default:"false"`

	AzureOpenAIKey        string `envconfig:"AZURE_OPENAI_KEY" required:"true"`
	AzureOpenAIEndpoint   string `envconfig:"AZURE_OPENAI_ENDPOINT" default:"https://api-openai-service.openai.azure.com/"`
	AzureOpenAIDeployment string `envconfig:"AZURE_OPENAI_DEPLOYMENT" default:"o4-mini"`
	AzureOpenAIVersion    string `envconfig:"AZURE_OPENAI_VERSION" default:"2024-12-01-preview"`

	AssetBackendURL string `envconfig:"ASSET_BACKEND_URL" default:"https://assetmanagement-production-f542.up.railway.app"`

	// RedisAddr empty means the file-backed cache is used instead.
	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	CacheTTL      time.Duration `envconfig:"CACHE_TTL" default:"26h"`

	OTELEnabled     bool   `envconfig:"OTEL_ENABLED" default:"false"`
	OTELEndpoint    string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTELServiceName string `envconfig:"OTEL_SERVICE_NAME" default:"folio"`
	OTELEnvironment string `envconfig:"OTEL_ENVIRONMENT" default:"dev"`
	OTELInsecure    bool   `envconfig:"OTEL_INSECURE" default:"false"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("PORT out of range: %d", cfg.Port)
	}
	return &cfg, nil
}
