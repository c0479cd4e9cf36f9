package bridge

import (
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/machinefabric/meshkernel-go/abi"
	"github.com/machinefabric/meshkernel-go/matchmaker"
	"github.com/machinefabric/meshkernel-go/meshaddr"
	"github.com/machinefabric/meshkernel-go/reactor"
	"github.com/machinefabric/meshkernel-go/socket"
)

// Instance is one loaded plugin: its module identity, its
// SocketManager and Reactor, and the Guest it drives. The guest's
// apparent process-wide singletons (reactor, task pool) are modeled
// here as state owned by the Instance and threaded through the
// syscall methods below, rather than as package-level globals.
type Instance struct {
	Module  meshaddr.ModuleId
	LoadID  uuid.UUID
	Sockets *socket.SocketManager
	Reactor *reactor.Reactor
	Guest   Guest

	log     hclog.Logger
	metrics Metrics
}

// NewInstance constructs an Instance for module, filing matchmaker
// requests on requests and logging through log. LoadID is a fresh
// random identifier correlating this particular load across log
// lines, distinct from a module reloaded under the same ModuleId
// later.
func NewInstance(module meshaddr.ModuleId, requests chan<- matchmaker.Request, guest Guest, log hclog.Logger) *Instance {
	loadID := uuid.New()
	return &Instance{
		Module:  module,
		LoadID:  loadID,
		Sockets: socket.New(module, requests),
		Reactor: reactor.New(),
		Guest:   guest,
		log:     log.With("load_id", loadID.String()),
		metrics: noopMetrics{},
	}
}

// awaitHandle registers a waker for h that re-enters the guest's Wake
// export. Syscalls that observe Pending call this so the handle's
// eventual readiness re-schedules the blocked task.
func (inst *Instance) awaitHandle(h meshaddr.Handle) {
	inst.Reactor.Register(h, func() { inst.Guest.Wake(h) })
}

// SyscallConnect implements the `connect` ABI import.
func (inst *Instance) SyscallConnect(peer meshaddr.ModuleId, port meshaddr.Port) int64 {
	h := inst.Sockets.Connect(peer, port)
	return abi.Encode(abi.OK(uint32(h)))
}

// SyscallListenerCreate implements the `listener_create` ABI import.
func (inst *Instance) SyscallListenerCreate(port meshaddr.Port) int64 {
	h := inst.Sockets.ListenerCreate(port)
	return abi.Encode(abi.OK(uint32(h)))
}

// SyscallListen implements the `listen` ABI import.
func (inst *Instance) SyscallListen(h meshaddr.Handle) int64 {
	res := inst.Sockets.Listen(h)
	if res.IsPending() {
		inst.awaitHandle(h)
	}
	return abi.Encode(res)
}

// SyscallRead implements the `read` ABI import, copying up to
// len(buf) bytes into buf and returning the number actually read. A
// Pending result leaves buf untouched.
func (inst *Instance) SyscallRead(h meshaddr.Handle, buf []byte) int64 {
	chunk, res := inst.Sockets.Read(h, len(buf))
	if res.IsPending() {
		inst.awaitHandle(h)
		return abi.Encode(res)
	}
	if chunk != nil {
		copy(buf, chunk)
	}
	return abi.Encode(res)
}

// SyscallWrite implements the `write` ABI import.
func (inst *Instance) SyscallWrite(h meshaddr.Handle, data []byte) int64 {
	_, res := inst.Sockets.Write(h, data)
	if res.IsPending() {
		inst.awaitHandle(h)
	}
	return abi.Encode(res)
}

// SyscallFlush implements the `flush` ABI import.
func (inst *Instance) SyscallFlush(h meshaddr.Handle) int64 {
	res := inst.Sockets.Flush(h)
	if res.IsPending() {
		inst.awaitHandle(h)
	}
	return abi.Encode(res)
}

// SyscallClose implements the `close` ABI import. It never blocks and
// has no return value, matching the ABI table.
func (inst *Instance) SyscallClose(h meshaddr.Handle) {
	inst.Sockets.Close(h)
	inst.Reactor.Forget(h)
}

// SyscallDebug implements the `debug` ABI import, routing the guest's
// message through the host log rather than any guest-visible stream.
func (inst *Instance) SyscallDebug(msg string) {
	inst.log.Debug(msg, "module", string(inst.Module))
}

// Turn executes one host-driven scheduling turn: wake every handle
// the socket manager reports ready, then drive the guest's task pool
// until it stalls again.
func (inst *Instance) Turn() {
	for _, h := range inst.Sockets.Wakes() {
		inst.Reactor.Wake(h)
	}
	inst.Guest.RunTasks()

	inst.metrics.IncTurn(string(inst.Module))
	for kind, count := range inst.Sockets.HandleCounts() {
		inst.metrics.SetHandlesOpen(string(inst.Module), kind, count)
	}
}
