package deploy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestExpandEnvDefaults(t *testing.T) {
	env := map[string]string{"PORT": "8080", "BLANK": "  "}

	cases := []struct {
		in   string
		want string
	}{
		{"http://localhost:${PORT:-5001}/", "http://localhost:8080/"},
		{"http://localhost:${MISSING:-5001}/", "http://localhost:5001/"},
		{"http://localhost:${BLANK:-5001}/", "http://localhost:5001/"},
		{"http://localhost:${MISSING}/", "http://localhost:/"},
		{"no refs here", "no refs here"},
	}
	for _, tc := range cases {
		if got := ExpandEnvDefaults(tc.in, env); got != tc.want {
			t.Errorf("ExpandEnvDefaults(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestWaitHealthyImmediateSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := WaitHealthy(context.Background(), srv.URL, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWaitHealthyEventualSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	start := time.Now()
	if err := WaitHealthy(context.Background(), srv.URL, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// two failures means two poll intervals before success
	if elapsed := time.Since(start); elapsed < 2*healthPollInterval {
		t.Fatalf("poll finished too fast: %v", elapsed)
	}
	if calls.Load() < 3 {
		t.Fatalf("calls = %d, want at least 3", calls.Load())
	}
}

func TestWaitHealthyExpandsURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	host := strings.TrimPrefix(srv.URL, "http://")
	_, port, _ := strings.Cut(host, ":")

	err := WaitHealthy(context.Background(), "http://127.0.0.1:${PORT:-80}/", map[string]string{"PORT": port})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWaitHealthyTimeoutMentionsLogs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err := WaitHealthy(ctx, srv.URL, nil)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !strings.Contains(err.Error(), "docker compose logs") {
		t.Fatalf("error should point at compose logs: %v", err)
	}
}
