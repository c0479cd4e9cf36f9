package bridge

import "github.com/machinefabric/meshkernel-go/meshaddr"

// Guest is the sandboxed module's export surface, per the guest-host
// ABI: one-time init, waking a blocked task, and draining the
// cooperative task pool until it stalls. A real implementation
// dispatches these into WASM or native plugin code; the tests
// implement Guest directly in Go.
type Guest interface {
	// Main performs one-time initialization and registers the
	// module's initial tasks.
	Main()
	// Wake invokes whatever task registered itself against h the last
	// time it observed Pending.
	Wake(h meshaddr.Handle)
	// RunTasks drives the cooperative task pool until it stalls,
	// re-entering any syscall the guest's tasks issue along the way.
	RunTasks()
}
