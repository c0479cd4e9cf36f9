package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileAppliesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Host.ModulesDir != "./modules" {
		t.Fatalf("got modules dir %q, want default", cfg.Host.ModulesDir)
	}
	if cfg.Host.TickMillis != 5 {
		t.Fatalf("got tick millis %d, want default 5", cfg.Host.TickMillis)
	}
}

func TestLoadFilePartiallyOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meshkernel.toml")
	body := "[host]\nmodules_dir = \"/var/lib/meshkernel/modules\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Host.ModulesDir != "/var/lib/meshkernel/modules" {
		t.Fatalf("got modules dir %q, want the overridden value", cfg.Host.ModulesDir)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("expected unset fields to still receive defaults, got log level %q", cfg.Log.Level)
	}
}
