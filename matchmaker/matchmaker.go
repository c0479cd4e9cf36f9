// Package matchmaker implements the process-global rendezvous
// registry: it pairs listener and connector requests filed against
// the same (ModuleId, Port) address and hands each side one half of
// a freshly-created Loopback.
package matchmaker

import (
	"context"

	"github.com/machinefabric/meshkernel-go/loopback"
	"github.com/machinefabric/meshkernel-go/meshaddr"
)

// Kind distinguishes a listener registration from a connector request.
type Kind int

const (
	KindListener Kind = iota
	KindConnector
)

// maxPendingConnectors bounds the connector queue per address. The
// archival matchmaker left this unbounded; this implementation caps
// it and rejects further connectors with Other once exceeded.
const maxPendingConnectors = 256

// requestQueueCapacity bounds the matchmaker's own inbound request
// channel, mirroring the original MATCHMAKER_MAX_REQ.
const requestQueueCapacity = 32

// Dest is the channel a requester supplies for rendezvous delivery. A
// nil value sent on Dest means "request rejected" (surfaced to the
// requester as an Other error); the channel being closed without a
// value ever having been sent means the matchmaker gave up on this
// request (surfaced as NotFound).
type Dest chan<- *loopback.Loopback

// Request is one matchmaker work item: register a listener or file a
// connector against addr, delivering the resulting loopback half on
// Dest.
type Request struct {
	Addr meshaddr.Address
	Kind Kind
	Dest Dest
}

// Metrics is the subset of observability hooks the matchmaker drives.
// internal/metrics.Collector satisfies this interface implicitly; it
// is declared locally so this package does not depend on it.
type Metrics interface {
	IncMatch()
	SetPendingConnectors(address string, count int)
	IncConnectorRejected()
}

type noopMetrics struct{}

func (noopMetrics) IncMatch()                        {}
func (noopMetrics) SetPendingConnectors(string, int) {}
func (noopMetrics) IncConnectorRejected()            {}

// MatchMaker is the single-threaded rendezvous task. All state is
// owned exclusively by the goroutine running Run; Requests() is the
// only safe way for other goroutines to interact with it.
type MatchMaker struct {
	requests chan Request

	listeners map[meshaddr.Address]Dest
	pending   map[meshaddr.Address][]Dest

	metrics Metrics
}

// New constructs a MatchMaker. Call Run in its own goroutine to start
// serving requests.
func New() *MatchMaker {
	return &MatchMaker{
		requests:  make(chan Request, requestQueueCapacity),
		listeners: make(map[meshaddr.Address]Dest),
		pending:   make(map[meshaddr.Address][]Dest),
		metrics:   noopMetrics{},
	}
}

// SetMetrics installs the observability hooks the matchmaker reports
// match and queue activity through. Passing nil reverts to a no-op.
func (m *MatchMaker) SetMetrics(metrics Metrics) {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	m.metrics = metrics
}

// Requests returns the channel used to submit work. It never closes
// on its own; closing it is the caller's signal to shut the
// matchmaker down, at which point Run returns.
func (m *MatchMaker) Requests() chan<- Request {
	return m.requests
}

// Run drives the matchmaker loop until either ctx is cancelled or the
// request channel is closed. It never touches its state from any
// other goroutine, matching the single-threaded serialization the
// core relies on.
func (m *MatchMaker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-m.requests:
			if !ok {
				return
			}
			m.handle(req)
		}
	}
}

func (m *MatchMaker) handle(req Request) {
	switch req.Kind {
	case KindConnector:
		m.handleConnector(req.Addr, req.Dest)
	case KindListener:
		m.handleListener(req.Addr, req.Dest)
	}
}

func trySend(dest Dest, lb *loopback.Loopback) bool {
	select {
	case dest <- lb:
		return true
	default:
		return false
	}
}

func (m *MatchMaker) handleConnector(addr meshaddr.Address, dest Dest) {
	if listenerDest, ok := m.listeners[addr]; ok {
		a, b := loopback.Pair()
		if trySend(listenerDest, a) {
			trySend(dest, b)
			m.metrics.IncMatch()
			return
		}
		// Listener hung up or its channel is backed up beyond recovery;
		// drop the stale registration and fall through to enqueue.
		delete(m.listeners, addr)
	}

	queue := m.pending[addr]
	if len(queue) >= maxPendingConnectors {
		// Reject explicitly rather than leaving the requester to time out.
		trySend(dest, nil)
		m.metrics.IncConnectorRejected()
		return
	}
	m.pending[addr] = append(queue, dest)
	m.metrics.SetPendingConnectors(addr.String(), len(m.pending[addr]))
}

func (m *MatchMaker) handleListener(addr meshaddr.Address, dest Dest) {
	queue := m.pending[addr]
	for len(queue) > 0 {
		connDest := queue[0]
		a, b := loopback.Pair()
		if !trySend(dest, a) {
			// The listener's own channel is full; restore the connector
			// we popped and bail without registering this listener.
			m.pending[addr] = queue
			m.metrics.SetPendingConnectors(addr.String(), len(queue))
			return
		}
		trySend(connDest, b)
		m.metrics.IncMatch()
		queue = queue[1:]
	}
	delete(m.pending, addr)
	m.metrics.SetPendingConnectors(addr.String(), 0)
	m.listeners[addr] = dest
}
