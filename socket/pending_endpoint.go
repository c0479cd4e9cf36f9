package socket

import (
	"github.com/machinefabric/meshkernel-go/abi"
	"github.com/machinefabric/meshkernel-go/loopback"
)

// rendezvousCapacity bounds the ephemeral channel a listener or
// connector hands to the matchmaker as its delivery destination.
const rendezvousCapacity = 32

// PendingEndpoint is the receiving half of a handle's rendezvous
// channel: it peeks without consuming so the reactor can tell whether
// a match has arrived without resolving it twice.
type PendingEndpoint struct {
	ch chan *loopback.Loopback

	havePeek     bool
	peeked       *loopback.Loopback
	peekedClosed bool
}

func newPendingEndpoint() *PendingEndpoint {
	return &PendingEndpoint{ch: make(chan *loopback.Loopback, rendezvousCapacity)}
}

// dest is the channel handed to the matchmaker as a Request.Dest.
func (p *PendingEndpoint) dest() chan<- *loopback.Loopback {
	return p.ch
}

func (p *PendingEndpoint) fill() bool {
	if p.havePeek {
		return true
	}
	select {
	case lb, ok := <-p.ch:
		p.havePeek = true
		if !ok {
			p.peekedClosed = true
			p.peeked = nil
		} else {
			p.peeked = lb
		}
		return true
	default:
		return false
	}
}

// Ready reports whether Poll would resolve immediately, without
// consuming the pending value.
func (p *PendingEndpoint) Ready() bool {
	return p.fill()
}

// Poll resolves the next rendezvous outcome. It returns Pending if
// nothing has arrived yet, NotFound if the matchmaker gave up on this
// request (channel closed without delivering), Other if the
// matchmaker explicitly rejected the request (a nil delivery, used
// for connector-queue overflow), or the delivered Loopback half.
func (p *PendingEndpoint) Poll() (*loopback.Loopback, abi.Result) {
	if !p.fill() {
		return nil, abi.Pending()
	}
	closed := p.peekedClosed
	lb := p.peeked
	p.havePeek = false
	p.peeked = nil
	p.peekedClosed = false

	if closed {
		return nil, abi.Fail(abi.ErrNotFound)
	}
	if lb == nil {
		return nil, abi.Fail(abi.ErrOther)
	}
	return lb, abi.OK(0)
}
