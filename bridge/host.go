// Package bridge implements the guest-host calling convention: it
// loads plugin instances, exposes the syscall ABI described in
// section 6 of the core's external interfaces, and drives each
// instance's cooperative task pool forward on every turn.
package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/machinefabric/meshkernel-go/matchmaker"
	"github.com/machinefabric/meshkernel-go/meshaddr"
)

// Host owns the process-global matchmaker and the set of currently
// loaded plugin instances. Each instance is internally
// single-threaded; the Host turns them concurrently on its own
// goroutine pool, matching the reference system's work-stealing
// executor at a much smaller scale.
type Host struct {
	mm      *matchmaker.MatchMaker
	log     hclog.Logger
	metrics Metrics

	mu        sync.Mutex
	instances map[meshaddr.ModuleId]*Instance
}

// NewHost constructs a Host with its own matchmaker. Call Run to
// start serving matchmaker requests and turning loaded instances.
func NewHost(log hclog.Logger) *Host {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Host{
		mm:        matchmaker.New(),
		log:       log,
		metrics:   noopMetrics{},
		instances: make(map[meshaddr.ModuleId]*Instance),
	}
}

// Matchmaker returns the host's rendezvous registry, primarily so
// callers can inspect it in tests.
func (h *Host) Matchmaker() *matchmaker.MatchMaker {
	return h.mm
}

// SetMetrics installs the observability hooks the host and every
// instance it subsequently loads report turn and handle activity
// through. Passing nil reverts to a no-op. Instances already loaded
// before this call keep reporting to whatever was installed at their
// own Load time.
func (h *Host) SetMetrics(metrics Metrics) {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	h.metrics = metrics
}

// Load instantiates guest as a new plugin instance under module,
// invokes its Main export, and registers it for future turns.
func (h *Host) Load(module meshaddr.ModuleId, guest Guest) *Instance {
	inst := NewInstance(module, h.mm.Requests(), guest, h.log.Named(string(module)))
	inst.metrics = h.metrics

	h.mu.Lock()
	h.instances[module] = inst
	h.mu.Unlock()

	inst.Guest.Main()
	return inst
}

// Unload drops a plugin instance. Its matchmaker registrations are
// not actively revoked; they drain passively as described by the
// error handling design (the stale listener or connector simply
// observes a closed or unresponsive peer on its next operation).
func (h *Host) Unload(module meshaddr.ModuleId) {
	h.mu.Lock()
	delete(h.instances, module)
	h.mu.Unlock()
}

// Instance looks up a loaded instance by module id.
func (h *Host) Instance(module meshaddr.ModuleId) (*Instance, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	inst, ok := h.instances[module]
	return inst, ok
}

func (h *Host) snapshot() []*Instance {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Instance, 0, len(h.instances))
	for _, inst := range h.instances {
		out = append(out, inst)
	}
	return out
}

// TurnAll drives every currently loaded instance through one
// scheduling turn, concurrently. It returns once all instances have
// stalled for this turn.
func (h *Host) TurnAll() {
	instances := h.snapshot()
	var wg sync.WaitGroup
	wg.Add(len(instances))
	for _, inst := range instances {
		inst := inst
		go func() {
			defer wg.Done()
			inst.Turn()
		}()
	}
	wg.Wait()
}

// Run starts the matchmaker's own task and turns every loaded
// instance once per tick until ctx is cancelled.
func (h *Host) Run(ctx context.Context, tick time.Duration) {
	go h.mm.Run(ctx)

	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.TurnAll()
		}
	}
}
