// Package meshkernel wires the matchmaker, the per-instance bridge
// and the surrounding configuration, logging, metrics and modules
// bootstrap into one runnable host.
package meshkernel

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/machinefabric/meshkernel-go/bridge"
	"github.com/machinefabric/meshkernel-go/internal/config"
	"github.com/machinefabric/meshkernel-go/internal/metrics"
	"github.com/machinefabric/meshkernel-go/meshaddr"
	"github.com/machinefabric/meshkernel-go/modloader"
)

// Runtime is the assembled host: one matchmaker, the Bridge that
// loads and turns plugin instances, and the observability and
// configuration surface around them.
type Runtime struct {
	Config  config.Config
	Log     hclog.Logger
	Metrics *metrics.Collector
	Host    *bridge.Host
}

// New assembles a Runtime from cfg, installing metrics hooks into the
// matchmaker and preparing (but not yet creating) the modules
// directory.
func New(cfg config.Config) *Runtime {
	log := hclog.New(&hclog.LoggerOptions{
		Name:       "meshkernel",
		Level:      hclog.LevelFromString(cfg.Log.Level),
		JSONFormat: cfg.Log.Format == "json",
	})

	m := metrics.New()

	host := bridge.NewHost(log.Named("bridge"))
	host.Matchmaker().SetMetrics(m)
	host.SetMetrics(m)

	return &Runtime{
		Config:  cfg,
		Log:     log,
		Metrics: m,
		Host:    host,
	}
}

// Bootstrap ensures the configured modules directory exists,
// discovering and logging any manifests already present. It never
// loads module bytecode: sandbox loading is an external collaborator
// outside this package's scope.
func (rt *Runtime) Bootstrap() ([]modloader.Discovered, error) {
	created, err := modloader.EnsureDir(rt.Config.Host.ModulesDir)
	if err != nil {
		return nil, fmt.Errorf("meshkernel: bootstrap: %w", err)
	}
	if created {
		rt.Log.Info("modules directory did not exist, created it", "path", rt.Config.Host.ModulesDir)
	}

	discovered, err := modloader.Discover(rt.Config.Host.ModulesDir)
	if err != nil {
		rt.Log.Warn("some manifests failed to load", "error", err)
	}
	for _, d := range discovered {
		rt.Log.Info("discovered module manifest", "path", d.Path, "module_id", string(d.Manifest.ModuleId))
	}
	return discovered, err
}

// LoadInstance loads guest under module and returns its Instance.
func (rt *Runtime) LoadInstance(module meshaddr.ModuleId, guest bridge.Guest) *bridge.Instance {
	inst := rt.Host.Load(module, guest)
	rt.Metrics.InstancesLoaded.Inc()
	return inst
}

// Run drives the matchmaker and turns every loaded instance forward
// on the configured tick until ctx is cancelled.
func (rt *Runtime) Run(ctx context.Context) {
	rt.Host.Run(ctx, rt.Config.Host.TickInterval())
}
