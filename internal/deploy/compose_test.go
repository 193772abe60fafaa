package deploy

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("services: {}\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestBuildComposeAssemblyDev(t *testing.T) {
	tmp := t.TempDir()
	writeFiles(t, tmp, "docker-compose.yml", "docker-compose.prod.yml")

	assembly, err := BuildComposeAssembly(tmp, DefaultManifest(), false)
	if err != nil {
		t.Fatal(err)
	}
	if len(assembly.Files) != 1 {
		t.Fatalf("dev assembly files = %v", assembly.Files)
	}
	if filepath.Base(assembly.BaseFile) != "docker-compose.yml" {
		t.Fatalf("base = %s", assembly.BaseFile)
	}
}

func TestBuildComposeAssemblyProd(t *testing.T) {
	tmp := t.TempDir()
	writeFiles(t, tmp, "docker-compose.yml", "docker-compose.prod.yml")

	assembly, err := BuildComposeAssembly(tmp, DefaultManifest(), true)
	if err != nil {
		t.Fatal(err)
	}
	if len(assembly.Files) != 2 {
		t.Fatalf("prod assembly files = %v", assembly.Files)
	}
	if filepath.Base(assembly.Files[1]) != "docker-compose.prod.yml" {
		t.Fatalf("overlay = %s", assembly.Files[1])
	}
}

func TestBuildComposeAssemblyMissingOverlay(t *testing.T) {
	tmp := t.TempDir()
	writeFiles(t, tmp, "docker-compose.yml")

	if _, err := BuildComposeAssembly(tmp, DefaultManifest(), true); err == nil {
		t.Fatal("expected error for missing prod overlay")
	}
}

func TestBuildComposeAssemblyDeduplicatesOverlays(t *testing.T) {
	tmp := t.TempDir()
	writeFiles(t, tmp, "docker-compose.yml", "docker-compose.redis.yml")

	m := DefaultManifest()
	m.Overlays = []string{"docker-compose.redis.yml", "docker-compose.redis.yml"}

	assembly, err := BuildComposeAssembly(tmp, m, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(assembly.OverlayFiles) != 1 {
		t.Fatalf("overlays = %v", assembly.OverlayFiles)
	}
}

func TestBuildComposeFileArgs(t *testing.T) {
	got := BuildComposeFileArgs([]string{"/a/base.yml", "/a/prod.yml"})
	want := []string{"-f", "/a/base.yml", "-f", "/a/prod.yml"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("args = %v", got)
	}
}

func TestComposeArgVerbs(t *testing.T) {
	tmp := t.TempDir()
	writeFiles(t, tmp, "docker-compose.yml")
	assembly, err := BuildComposeAssembly(tmp, DefaultManifest(), false)
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		args []string
		tail []string
	}{
		{BuildComposeConfigArgs(assembly), []string{"config"}},
		{BuildComposeBuildArgs(assembly), []string{"build"}},
		{BuildComposeUpArgs(assembly), []string{"up", "-d"}},
		{BuildComposeDownArgs(assembly), []string{"down"}},
		{BuildComposeLogsArgs(assembly), []string{"logs", "-f"}},
	}
	for _, tc := range cases {
		if tc.args[0] != "compose" {
			t.Fatalf("args should start with compose: %v", tc.args)
		}
		got := tc.args[len(tc.args)-len(tc.tail):]
		if !reflect.DeepEqual(got, tc.tail) {
			t.Fatalf("args %v should end with %v", tc.args, tc.tail)
		}
	}
}
