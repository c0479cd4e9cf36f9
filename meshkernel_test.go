package meshkernel

import (
	"path/filepath"
	"testing"

	"github.com/machinefabric/meshkernel-go/internal/config"
)

func TestBootstrapCreatesModulesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "modules")
	cfg := config.Config{}
	config.ApplyDefaults(&cfg)
	cfg.Host.ModulesDir = dir

	rt := New(cfg)
	discovered, err := rt.Bootstrap()
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if len(discovered) != 0 {
		t.Fatalf("expected no manifests in a freshly created directory, got %d", len(discovered))
	}
}
