package deploy

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Probe mirrors the container HEALTHCHECK parameters so the manifest is the
// single source of truth for the compose healthcheck block.
type Probe struct {
	IntervalSeconds    int `toml:"interval_seconds"`
	TimeoutSeconds     int `toml:"timeout_seconds"`
	StartPeriodSeconds int `toml:"start_period_seconds"`
	Retries            int `toml:"retries"`
}

// Env renders the probe as the HEALTHCHECK_* variables the compose file
// interpolates into its healthcheck block, so editing [probe] in deploy.toml
// changes the running container's probe.
func (p Probe) Env() map[string]string {
	return map[string]string{
		"HEALTHCHECK_INTERVAL":     fmt.Sprintf("%ds", p.IntervalSeconds),
		"HEALTHCHECK_TIMEOUT":      fmt.Sprintf("%ds", p.TimeoutSeconds),
		"HEALTHCHECK_START_PERIOD": fmt.Sprintf("%ds", p.StartPeriodSeconds),
		"HEALTHCHECK_RETRIES":      fmt.Sprintf("%d", p.Retries),
	}
}

// Manifest is the deploy.toml at the project root. Every field has a
// default, so a project without the file still deploys.
type Manifest struct {
	Service     string   `toml:"service"`
	ComposeFile string   `toml:"compose_file"`
	Overlays    []string `toml:"overlays"`
	ProdOverlay string   `toml:"prod_overlay"`
	RequiredEnv []string `toml:"required_env"`
	HealthURL   string   `toml:"health_url"`
	Probe       Probe    `toml:"probe"`
	Path        string   `toml:"-"`
}

// DefaultManifest carries the service's standing deployment contract.
func DefaultManifest() Manifest {
	return Manifest{
		Service:     "portfolio-explainer",
		ComposeFile: "docker-compose.yml",
		ProdOverlay: "docker-compose.prod.yml",
		RequiredEnv: []string{
			"AZURE_OPENAI_KEY",
			"AZURE_OPENAI_ENDPOINT",
			"AZURE_OPENAI_DEPLOYMENT",
		},
		HealthURL: "http://localhost:${PORT:-5001}/",
		Probe: Probe{
			IntervalSeconds:    30,
			TimeoutSeconds:     10,
			StartPeriodSeconds: 5,
			Retries:            3,
		},
	}
}

// LoadManifest reads deploy.toml from the project root, filling defaults
// for any omitted field. A missing file yields the full default manifest.
func LoadManifest(projectRoot string) (Manifest, error) {
	if projectRoot == "" {
		return Manifest{}, errors.New("project root is required")
	}

	path := filepath.Join(projectRoot, "deploy.toml")
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return DefaultManifest(), nil
		}
		return Manifest{}, fmt.Errorf("stat %s: %w", path, err)
	}

	m := DefaultManifest()
	if _, err := toml.DecodeFile(path, &m); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	m.Path = path

	def := DefaultManifest()
	if m.Service == "" {
		m.Service = def.Service
	}
	if m.ComposeFile == "" {
		m.ComposeFile = def.ComposeFile
	}
	if m.ProdOverlay == "" {
		m.ProdOverlay = def.ProdOverlay
	}
	if len(m.RequiredEnv) == 0 {
		m.RequiredEnv = def.RequiredEnv
	}
	if m.HealthURL == "" {
		m.HealthURL = def.HealthURL
	}
	if m.Probe.IntervalSeconds <= 0 {
		m.Probe.IntervalSeconds = def.Probe.IntervalSeconds
	}
	if m.Probe.TimeoutSeconds <= 0 {
		m.Probe.TimeoutSeconds = def.Probe.TimeoutSeconds
	}
	if m.Probe.StartPeriodSeconds <= 0 {
		m.Probe.StartPeriodSeconds = def.Probe.StartPeriodSeconds
	}
	if m.Probe.Retries <= 0 {
		m.Probe.Retries = def.Probe.Retries
	}
	return m, nil
}
