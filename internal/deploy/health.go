package deploy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	healthPollInterval = 2 * time.Second
	healthPollTimeout  = 60 * time.Second
)

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// healthClient uses a short per-request timeout so one hanging request
// cannot eat the whole polling window.
var healthClient = &http.Client{Timeout: healthPollInterval}

// WaitHealthy polls the URL until it answers with a 2xx status. The first
// success wins; anything else keeps polling until the window runs out, and
// the timeout error tells the operator where to look next.
func WaitHealthy(ctx context.Context, rawURL string, env map[string]string) error {
	url := ExpandEnvDefaults(rawURL, env)

	check := func() (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		resp, err := healthClient.Do(req)
		if err != nil {
			return struct{}{}, err
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return struct{}{}, fmt.Errorf("status %d", resp.StatusCode)
		}
		return struct{}{}, nil
	}

	_, err := backoff.Retry(ctx, check,
		backoff.WithBackOff(backoff.NewConstantBackOff(healthPollInterval)),
		backoff.WithMaxElapsedTime(healthPollTimeout))
	if err != nil {
		return fmt.Errorf("service did not become healthy at %s within %s: %w (check `docker compose logs` for details)",
			url, healthPollTimeout, err)
	}
	return nil
}

// ExpandEnvDefaults substitutes ${VAR} and ${VAR:-default} references using
// the layered env, matching compose interpolation for the common cases.
func ExpandEnvDefaults(input string, env map[string]string) string {
	return envPattern.ReplaceAllStringFunc(input, func(m string) string {
		parts := envPattern.FindStringSubmatch(m)
		if len(parts) < 2 {
			return m
		}
		key := parts[1]
		if v, ok := env[key]; ok && strings.TrimSpace(v) != "" {
			return v
		}
		if len(parts) >= 4 {
			return parts[3]
		}
		return ""
	})
}
