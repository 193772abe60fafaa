package deploy

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fakeCompose records every docker invocation and lets a test fail a verb.
type fakeCompose struct {
	calls    [][]string
	envs     []map[string]string
	failVerb string
}

func (f *fakeCompose) run(_ context.Context, _ string, args []string, env map[string]string) ([]byte, error) {
	f.calls = append(f.calls, args)
	f.envs = append(f.envs, env)
	if f.failVerb != "" {
		for _, a := range args {
			if a == f.failVerb {
				return []byte("simulated failure"), fmt.Errorf("exit status 1")
			}
		}
	}
	return nil, nil
}

func (f *fakeCompose) verbs() []string {
	out := make([]string, 0, len(f.calls))
	for _, args := range f.calls {
		out = append(out, args[len(args)-1])
	}
	return out
}

func setupProject(t *testing.T, envContent string) string {
	t.Helper()
	tmp := t.TempDir()
	writeFiles(t, tmp, "docker-compose.yml", "docker-compose.prod.yml")
	if envContent != "" {
		if err := os.WriteFile(filepath.Join(tmp, ".env"), []byte(envContent), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return tmp
}

const goodEnv = "AZURE_OPENAI_KEY=secret\n" +
	"AZURE_OPENAI_ENDPOINT=https://example.openai.azure.com/\n" +
	"AZURE_OPENAI_DEPLOYMENT=o4-mini\n"

func TestDeployHappyPath(t *testing.T) {
	fake := &fakeCompose{}
	oldRunner := composeRunner
	composeRunner = fake.run
	defer func() { composeRunner = oldRunner }()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tmp := setupProject(t, goodEnv)
	manifest := "health_url = \"" + srv.URL + "\"\n"
	if err := os.WriteFile(filepath.Join(tmp, "deploy.toml"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := Deploy(context.Background(), tmp, Options{Out: &out}); err != nil {
		t.Fatalf("deploy failed: %v", err)
	}

	verbs := fake.verbs()
	want := []string{"config", "build", "-d"} // up args end with -d
	if len(verbs) != 3 {
		t.Fatalf("compose calls = %v", verbs)
	}
	for i, v := range want {
		if verbs[i] != v {
			t.Fatalf("call %d ended with %q, want %q", i, verbs[i], v)
		}
	}
	if !strings.Contains(out.String(), "is healthy") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestDeployStopsBeforeComposeWithoutEnvFile(t *testing.T) {
	fake := &fakeCompose{}
	oldRunner := composeRunner
	composeRunner = fake.run
	defer func() { composeRunner = oldRunner }()

	tmp := setupProject(t, "")

	err := Deploy(context.Background(), tmp, Options{})
	if err == nil {
		t.Fatal("expected error with no .env")
	}
	if len(fake.calls) != 0 {
		t.Fatalf("compose ran despite missing .env: %v", fake.calls)
	}
}

func TestDeployStopsBeforeComposeOnMissingKeys(t *testing.T) {
	fake := &fakeCompose{}
	oldRunner := composeRunner
	composeRunner = fake.run
	defer func() { composeRunner = oldRunner }()

	// endpoint and deployment present, key missing
	tmp := setupProject(t, "AZURE_OPENAI_ENDPOINT=x\nAZURE_OPENAI_DEPLOYMENT=y\n")

	err := Deploy(context.Background(), tmp, Options{})
	if err == nil {
		t.Fatal("expected error for missing key")
	}
	if !strings.Contains(err.Error(), "AZURE_OPENAI_KEY") {
		t.Fatalf("error = %v", err)
	}
	if len(fake.calls) != 0 {
		t.Fatalf("compose ran despite invalid env: %v", fake.calls)
	}
}

func TestDeployBuildFailureStopsFlow(t *testing.T) {
	fake := &fakeCompose{failVerb: "build"}
	oldRunner := composeRunner
	composeRunner = fake.run
	defer func() { composeRunner = oldRunner }()

	tmp := setupProject(t, goodEnv)

	err := Deploy(context.Background(), tmp, Options{})
	if err == nil {
		t.Fatal("expected build failure")
	}
	if !strings.Contains(err.Error(), "build failed") {
		t.Fatalf("error = %v", err)
	}
	verbs := fake.verbs()
	for _, v := range verbs {
		if v == "-d" {
			t.Fatal("up ran after failed build")
		}
	}
}

func TestDeployProdIncludesOverlay(t *testing.T) {
	fake := &fakeCompose{}
	oldRunner := composeRunner
	composeRunner = fake.run
	defer func() { composeRunner = oldRunner }()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tmp := setupProject(t, goodEnv)
	manifest := "health_url = \"" + srv.URL + "\"\n"
	if err := os.WriteFile(filepath.Join(tmp, "deploy.toml"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Deploy(context.Background(), tmp, Options{Prod: true}); err != nil {
		t.Fatalf("deploy failed: %v", err)
	}

	joined := strings.Join(fake.calls[0], " ")
	if !strings.Contains(joined, "docker-compose.prod.yml") {
		t.Fatalf("prod overlay missing from args: %s", joined)
	}
}

func TestDeployRendersProbeIntoComposeEnv(t *testing.T) {
	fake := &fakeCompose{}
	oldRunner := composeRunner
	composeRunner = fake.run
	defer func() { composeRunner = oldRunner }()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tmp := setupProject(t, goodEnv)
	manifest := "health_url = \"" + srv.URL + "\"\n\n[probe]\ninterval_seconds = 15\nretries = 6\n"
	if err := os.WriteFile(filepath.Join(tmp, "deploy.toml"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Deploy(context.Background(), tmp, Options{}); err != nil {
		t.Fatalf("deploy failed: %v", err)
	}

	if len(fake.envs) == 0 {
		t.Fatal("no compose invocations recorded")
	}
	for i, env := range fake.envs {
		if env["HEALTHCHECK_INTERVAL"] != "15s" || env["HEALTHCHECK_RETRIES"] != "6" {
			t.Fatalf("call %d env missing probe values: interval=%q retries=%q",
				i, env["HEALTHCHECK_INTERVAL"], env["HEALTHCHECK_RETRIES"])
		}
		// omitted fields fall back to the defaults
		if env["HEALTHCHECK_TIMEOUT"] != "10s" || env["HEALTHCHECK_START_PERIOD"] != "5s" {
			t.Fatalf("call %d env defaults wrong: timeout=%q start=%q",
				i, env["HEALTHCHECK_TIMEOUT"], env["HEALTHCHECK_START_PERIOD"])
		}
	}
}

func TestAssembleCarriesProbeEnv(t *testing.T) {
	tmp := setupProject(t, goodEnv)

	_, env, _, err := Assemble(tmp, false)
	if err != nil {
		t.Fatal(err)
	}
	if env["HEALTHCHECK_INTERVAL"] != "30s" || env["HEALTHCHECK_RETRIES"] != "3" {
		t.Fatalf("probe env = interval %q retries %q",
			env["HEALTHCHECK_INTERVAL"], env["HEALTHCHECK_RETRIES"])
	}
}

func TestDevSetupSeedsFiles(t *testing.T) {
	tmp := t.TempDir()

	var out bytes.Buffer
	if err := DevSetup(tmp, &out); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{".env.example", ".env", "deploy.toml", "data", "logs"} {
		if _, err := os.Stat(filepath.Join(tmp, name)); err != nil {
			t.Fatalf("%s not created: %v", name, err)
		}
	}

	// second run must not clobber an edited .env
	envPath := filepath.Join(tmp, ".env")
	if err := os.WriteFile(envPath, []byte("AZURE_OPENAI_KEY=real\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := DevSetup(tmp, nil); err != nil {
		t.Fatal(err)
	}
	content, err := os.ReadFile(envPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(content), "real") {
		t.Fatal("DevSetup overwrote an existing .env")
	}
}
