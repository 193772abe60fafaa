package deploy

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const envExample = `# Azure OpenAI (required)
AZURE_OPENAI_KEY=
AZURE_OPENAI_ENDPOINT=https://api-openai-service.openai.azure.com/
AZURE_OPENAI_DEPLOYMENT=o4-mini
AZURE_OPENAI_VERSION=2024-12-01-preview

# Service
PORT=5001
LOG_LEVEL=info
DATA_DIR=data

# Sentiment backend
ASSET_BACKEND_URL=https://assetmanagement-production-f542.up.railway.app

# Optional Redis cache (file cache is used when unset)
# REDIS_ADDR=redis:6379
# REDIS_PASSWORD=
CACHE_TTL=26h
`

const defaultManifestTOML = `service = "portfolio-explainer"
compose_file = "docker-compose.yml"
prod_overlay = "docker-compose.prod.yml"
required_env = ["AZURE_OPENAI_KEY", "AZURE_OPENAI_ENDPOINT", "AZURE_OPENAI_DEPLOYMENT"]
health_url = "http://localhost:${PORT:-5001}/"

[probe]
interval_seconds = 30
timeout_seconds = 10
start_period_seconds = 5
retries = 3
`

// DevSetup prepares a fresh checkout for local work: data and log dirs,
// a .env seeded from .env.example, and a default deploy.toml. Existing
// files are never overwritten.
func DevSetup(projectRoot string, out io.Writer) error {
	say := func(format string, args ...any) {
		if out != nil {
			fmt.Fprintf(out, format+"\n", args...)
		}
	}

	for _, dir := range []string{"data", "logs"} {
		path := filepath.Join(projectRoot, dir)
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", path, err)
		}
	}
	say("data and log directories ready")

	examplePath := filepath.Join(projectRoot, ".env.example")
	if _, err := os.Stat(examplePath); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(examplePath, []byte(envExample), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", examplePath, err)
		}
		say("wrote .env.example")
	}

	envPath := filepath.Join(projectRoot, ".env")
	if _, err := os.Stat(envPath); errors.Is(err, os.ErrNotExist) {
		example, err := os.ReadFile(examplePath)
		if err != nil {
			return fmt.Errorf("read %s: %w", examplePath, err)
		}
		if err := os.WriteFile(envPath, example, 0o600); err != nil {
			return fmt.Errorf("write %s: %w", envPath, err)
		}
		say("seeded .env from .env.example (fill in AZURE_OPENAI_KEY before deploying)")
	} else {
		say(".env already present, leaving it alone")
	}

	manifestPath := filepath.Join(projectRoot, "deploy.toml")
	if _, err := os.Stat(manifestPath); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(manifestPath, []byte(defaultManifestTOML), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", manifestPath, err)
		}
		say("wrote default deploy.toml")
	}

	return nil
}
