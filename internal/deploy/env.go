package deploy

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// envFileNames are the env layers in precedence order: later files override
// earlier ones, and the process environment overrides both.
var envFileNames = []string{".env", ".folio.env"}

// RequireEnvFile fails when the project has no .env. Deployment must stop
// here, before any compose command runs, so a missing secrets file never
// produces a half-started stack.
func RequireEnvFile(projectRoot string) error {
	path := filepath.Join(projectRoot, ".env")
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf(".env file not found at %s (copy .env.example and fill in credentials)", path)
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected a file", path)
	}
	return nil
}

// LoadLayeredEnv merges the process environment with the project env files.
// Process values win so operators can override a file setting per-invocation.
func LoadLayeredEnv(projectRoot string) (map[string]string, error) {
	if projectRoot == "" {
		return nil, errors.New("project root is required")
	}

	env := map[string]string{}
	for _, name := range envFileNames {
		fileVars, err := parseEnvFile(filepath.Join(projectRoot, name))
		if err != nil {
			return nil, err
		}
		for k, v := range fileVars {
			env[k] = v
		}
	}

	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		env[k] = v
	}

	return env, nil
}

// ValidateRequiredEnv reports every required key that is absent or blank,
// sorted, in one error.
func ValidateRequiredEnv(env map[string]string, required []string) error {
	if len(required) == 0 {
		return nil
	}

	missing := make([]string, 0)
	for _, key := range required {
		value, ok := env[key]
		if !ok || strings.TrimSpace(value) == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) == 0 {
		return nil
	}

	sort.Strings(missing)
	return fmt.Errorf("missing required env keys: %s", strings.Join(missing, ", "))
}

func parseEnvFile(path string) (map[string]string, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	out := map[string]string{}
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("invalid env line %s:%d", path, lineNo)
		}

		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("empty env key at %s:%d", path, lineNo)
		}

		value = strings.TrimSpace(value)
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') || (value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		out[key] = value
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return out, nil
}

func existingEnvFiles(projectRoot string) []string {
	files := make([]string, 0, len(envFileNames))
	for _, name := range envFileNames {
		path := filepath.Join(projectRoot, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			files = append(files, path)
		}
	}
	return files
}
