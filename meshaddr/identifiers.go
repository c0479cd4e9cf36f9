// Package meshaddr defines the addressing primitives shared by the
// matchmaker, socket manager and bridge: module identifiers, ports and
// the per-instance handle numbering space.
package meshaddr

import "fmt"

// ModuleId names a plugin instance uniquely within one host process.
// It is derived from the plugin's source file stem (e.g. "renderer",
// "asteroids").
type ModuleId string

// Port namespaces a rendezvous address inside a ModuleId.
type Port uint16

// Handle names a listener, connector or socket within one plugin
// instance. Handles are allocated monotonically starting at zero and
// are never reused within the lifetime of a SocketManager.
type Handle uint32

// Address is the rendezvous key the matchmaker matches listeners and
// connectors on.
type Address struct {
	Module ModuleId
	Port   Port
}

func (a Address) String() string {
	return fmt.Sprintf("%s:%d", a.Module, a.Port)
}
