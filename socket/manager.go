// Package socket implements the per-instance SocketManager: the
// handle table and syscall front door for one plugin instance. It
// translates connect/listener_create/listen/read/write/flush/close
// into matchmaker requests and loopback operations.
package socket

import (
	"github.com/machinefabric/meshkernel-go/abi"
	"github.com/machinefabric/meshkernel-go/loopback"
	"github.com/machinefabric/meshkernel-go/matchmaker"
	"github.com/machinefabric/meshkernel-go/meshaddr"
)

// SocketManager owns the handle table for one plugin instance:
// listeners, single-shot connectors, and established sockets. It is
// single-owner; callers must not share one across goroutines without
// external synchronization, matching the single-threaded guest model.
type SocketManager struct {
	module   meshaddr.ModuleId
	requests chan<- matchmaker.Request

	nextHandle meshaddr.Handle

	listeners  map[meshaddr.Handle]*PendingEndpoint
	connectors map[meshaddr.Handle]*PendingEndpoint
	sockets    map[meshaddr.Handle]*loopback.Loopback

	writeStaging map[meshaddr.Handle][]byte
	readStaging  map[meshaddr.Handle][]byte
}

// New constructs a SocketManager for one plugin instance identified
// by module, filing matchmaker requests on requests.
func New(module meshaddr.ModuleId, requests chan<- matchmaker.Request) *SocketManager {
	return &SocketManager{
		module:       module,
		requests:     requests,
		listeners:    make(map[meshaddr.Handle]*PendingEndpoint),
		connectors:   make(map[meshaddr.Handle]*PendingEndpoint),
		sockets:      make(map[meshaddr.Handle]*loopback.Loopback),
		writeStaging: make(map[meshaddr.Handle][]byte),
		readStaging:  make(map[meshaddr.Handle][]byte),
	}
}

func (m *SocketManager) allocHandle() meshaddr.Handle {
	h := m.nextHandle
	m.nextHandle++
	return h
}

// fileRequest submits req on the shared matchmaker channel without
// blocking the instance's turn. A full or closed matchmaker channel
// is a host-side failure, not a guest-visible error class (the
// matchmaker only backs up or disappears when the executor itself is
// going down), so it panics rather than hanging the caller.
func (m *SocketManager) fileRequest(req matchmaker.Request) {
	select {
	case m.requests <- req:
	default:
		panic("socket: matchmaker request channel full")
	}
}

// Connect allocates a connector handle and files a single-shot
// rendezvous request against (peer, port). It never blocks: filing
// the request is a non-blocking channel send that panics, rather than
// hangs the caller, if the shared matchmaker channel is full or
// closed (see spec error mapping: that case is a host-side failure).
func (m *SocketManager) Connect(peer meshaddr.ModuleId, port meshaddr.Port) meshaddr.Handle {
	h := m.allocHandle()
	pe := newPendingEndpoint()
	m.connectors[h] = pe
	m.fileRequest(matchmaker.Request{
		Addr: meshaddr.Address{Module: peer, Port: port},
		Kind: matchmaker.KindConnector,
		Dest: pe.dest(),
	})
	return h
}

// ListenerCreate allocates a listener handle and registers it with
// the matchmaker under this instance's own module id and port. It
// never blocks, in the same sense as Connect above.
func (m *SocketManager) ListenerCreate(port meshaddr.Port) meshaddr.Handle {
	h := m.allocHandle()
	pe := newPendingEndpoint()
	m.listeners[h] = pe
	m.fileRequest(matchmaker.Request{
		Addr: meshaddr.Address{Module: m.module, Port: port},
		Kind: matchmaker.KindListener,
		Dest: pe.dest(),
	})
	return h
}

// Listen polls the pending endpoint behind h. On rendezvous it
// allocates a new socket handle and returns it; for a connector, h
// itself is removed since connectors are single-shot.
func (m *SocketManager) Listen(h meshaddr.Handle) abi.Result {
	if pe, ok := m.listeners[h]; ok {
		return m.resolveListen(pe, nil)
	}
	if pe, ok := m.connectors[h]; ok {
		return m.resolveListen(pe, &h)
	}
	return abi.Fail(abi.ErrNotFound)
}

// removeOnResolve, when non-nil, names the connector handle to delete
// once its single match (or terminal failure) resolves.
func (m *SocketManager) resolveListen(pe *PendingEndpoint, removeOnResolve *meshaddr.Handle) abi.Result {
	lb, res := pe.Poll()
	if res.IsPending() {
		return res
	}
	if _, err := res.Value(); err != nil {
		if removeOnResolve != nil {
			delete(m.connectors, *removeOnResolve)
		}
		return res
	}
	if removeOnResolve != nil {
		delete(m.connectors, *removeOnResolve)
	}
	newHandle := m.allocHandle()
	m.sockets[newHandle] = lb
	return abi.OK(uint32(newHandle))
}

// Read copies up to maxLen bytes from the socket's inbound stream.
// End of stream (peer closed, buffers drained) surfaces as
// NotConnected, matching the loopback contract.
func (m *SocketManager) Read(h meshaddr.Handle, maxLen int) ([]byte, abi.Result) {
	lb, ok := m.sockets[h]
	if !ok {
		return nil, abi.Fail(abi.ErrNotFound)
	}
	if maxLen == 0 {
		return nil, abi.OK(0)
	}
	staging := m.readStaging[h]
	if len(staging) == 0 {
		chunk, res := lb.PollRead()
		if res.IsPending() {
			return nil, res
		}
		if _, err := res.Value(); err != nil {
			return nil, res
		}
		if chunk == nil {
			return nil, abi.Fail(abi.ErrNotConnected)
		}
		staging = chunk
	}
	n := maxLen
	if n > len(staging) {
		n = len(staging)
	}
	out := staging[:n]
	rest := staging[n:]
	if len(rest) == 0 {
		delete(m.readStaging, h)
	} else {
		m.readStaging[h] = rest
	}
	return out, abi.OK(uint32(n))
}

// Write appends data to the socket's write staging buffer, flushing
// automatically once the buffer exceeds loopback.MaxChunkSize. It
// reports how many bytes of data it accepted: all of them, unless that
// automatic flush cannot complete, in which case the bytes of data it
// could not send are taken back off the staging buffer and the count
// covers only the sent ones (possibly 0), leaving the rest for the
// caller to re-drive. Accepted bytes are never dropped; staged bytes
// wait until flush drains them.
func (m *SocketManager) Write(h meshaddr.Handle, data []byte) (int, abi.Result) {
	lb, ok := m.sockets[h]
	if !ok {
		return 0, abi.Fail(abi.ErrNotFound)
	}
	if len(data) == 0 {
		return 0, abi.OK(0)
	}
	m.writeStaging[h] = append(m.writeStaging[h], data...)
	if len(m.writeStaging[h]) > loopback.MaxChunkSize {
		res := m.flushStaging(h, lb)
		if res.IsPending() {
			// The unsent tail of the staging buffer ends with the unsent
			// part of data; remove it so a re-driven write does not stage
			// those bytes twice.
			rest := m.writeStaging[h]
			unsent := len(data)
			if unsent > len(rest) {
				unsent = len(rest)
			}
			m.writeStaging[h] = rest[:len(rest)-unsent]
			return len(data) - unsent, abi.OK(uint32(len(data) - unsent))
		}
		if _, err := res.Value(); err != nil {
			return 0, res
		}
	}
	return len(data), abi.OK(uint32(len(data)))
}

// Flush drains the write staging buffer into the loopback's outbound
// channel. Once it resolves OK, every byte previously accepted by
// Write is guaranteed visible to a subsequent peer read.
func (m *SocketManager) Flush(h meshaddr.Handle) abi.Result {
	lb, ok := m.sockets[h]
	if !ok {
		return abi.Fail(abi.ErrNotFound)
	}
	return m.flushStaging(h, lb)
}

func (m *SocketManager) flushStaging(h meshaddr.Handle, lb *loopback.Loopback) abi.Result {
	staging := m.writeStaging[h]
	for len(staging) > 0 {
		n := len(staging)
		if n > loopback.MaxChunkSize {
			n = loopback.MaxChunkSize
		}
		res := lb.PollWrite(staging[:n])
		if res.IsPending() {
			m.writeStaging[h] = staging
			return abi.Pending()
		}
		if _, err := res.Value(); err != nil {
			m.writeStaging[h] = staging
			return res
		}
		staging = staging[n:]
	}
	delete(m.writeStaging, h)
	return abi.OK(0)
}

// Close removes h from whichever table holds it. Closing a socket
// performs one best-effort, non-blocking flush of any staged bytes
// first; if that flush cannot complete immediately, Close proceeds to
// close anyway rather than block the caller.
func (m *SocketManager) Close(h meshaddr.Handle) {
	if _, ok := m.listeners[h]; ok {
		delete(m.listeners, h)
		return
	}
	if _, ok := m.connectors[h]; ok {
		delete(m.connectors, h)
		return
	}
	if lb, ok := m.sockets[h]; ok {
		m.flushStaging(h, lb)
		lb.PollClose()
		delete(m.sockets, h)
		delete(m.writeStaging, h)
		delete(m.readStaging, h)
	}
}

// Wakes peeks every listener, connector and socket and returns the
// handles that would make progress on an immediate re-poll: a
// listener or connector with a rendezvous outcome ready, or a socket
// with data to read or newly freed write capacity for a pending
// write/flush.
func (m *SocketManager) Wakes() []meshaddr.Handle {
	var ready []meshaddr.Handle
	for h, pe := range m.listeners {
		if pe.Ready() {
			ready = append(ready, h)
		}
	}
	for h, pe := range m.connectors {
		if pe.Ready() {
			ready = append(ready, h)
		}
	}
	for h, lb := range m.sockets {
		readReady := lb.Readable()
		writeReady := false
		if _, pending := m.writeStaging[h]; pending {
			writeReady = lb.Writable()
		}
		if readReady || writeReady {
			ready = append(ready, h)
		}
	}
	return ready
}

// HandleCounts reports how many handles of each kind this instance
// currently holds open, keyed "listener", "connector" and "socket".
// It exists for observability (see internal/metrics.Collector.SetHandlesOpen)
// and has no effect on scheduling.
func (m *SocketManager) HandleCounts() map[string]int {
	return map[string]int{
		"listener":  len(m.listeners),
		"connector": len(m.connectors),
		"socket":    len(m.sockets),
	}
}
