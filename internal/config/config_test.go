package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pathsplit/pathsplit/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, key := range []string{"PATHSPLIT_DB_PATH", "PATHSPLIT_PORT", "PATHSPLIT_CATALOG", "PATHSPLIT_MIN_SAMPLE", "PATHSPLIT_MIN_CONFIDENCE", "LOGS_FOLDER"} {
		t.Setenv(key, "")
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "./pathsplit.db" {
		t.Errorf("got DBPath %q, want ./pathsplit.db", cfg.DBPath)
	}
	if cfg.Port != 8080 {
		t.Errorf("got Port %d, want 8080", cfg.Port)
	}
	if cfg.MinSample != 100 || cfg.MinConfidence != 95 {
		t.Errorf("got thresholds %d/%v, want 100/95", cfg.MinSample, cfg.MinConfidence)
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PATHSPLIT_DB_PATH", "/tmp/x.db")
	t.Setenv("PATHSPLIT_PORT", "9090")
	t.Setenv("PATHSPLIT_MIN_CONFIDENCE", "90")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "/tmp/x.db" || cfg.Port != 9090 || cfg.MinConfidence != 90 {
		t.Errorf("got %+v, want environment values", cfg)
	}
}

func TestLoad_DotEnvDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("PATHSPLIT_CATALOG=catalog.yaml\nPATHSPLIT_PORT=7000\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATHSPLIT_CATALOG", "")
	t.Setenv("PATHSPLIT_PORT", "9000")
	os.Unsetenv("PATHSPLIT_CATALOG")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CatalogPath != "catalog.yaml" {
		t.Errorf("got CatalogPath %q, want value from .env", cfg.CatalogPath)
	}
	if cfg.Port != 9000 {
		t.Errorf("got Port %d, want environment to win over .env", cfg.Port)
	}
}

func TestLoad_Invalid(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PATHSPLIT_PORT", "eighty")
	if _, err := config.Load(); err == nil {
		t.Error("expected error for non-numeric port")
	}

	t.Setenv("PATHSPLIT_PORT", "")
	t.Setenv("PATHSPLIT_MIN_CONFIDENCE", "150")
	if _, err := config.Load(); err == nil {
		t.Error("expected error for confidence above 100")
	}
}
