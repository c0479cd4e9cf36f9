// Package loopback implements the in-memory byte-stream the matchmaker
// hands to a matched listener/connector pair. Each endpoint holds an
// outbound and an inbound queue of chunks; Pair crosses two endpoints
// so that one's outbound queue is the other's inbound queue.
package loopback

import (
	"github.com/machinefabric/meshkernel-go/abi"
)

// channelCapacity bounds the number of buffered chunks per direction,
// mirroring the original CHANNEL_CAP.
const channelCapacity = 32

// MaxChunkSize is the chunk size SocketManager splits its staged
// writes into before handing them to PollWrite. PollWrite itself does
// not check it, and never blocks.
const MaxChunkSize = 16384

// Loopback is one end of a paired in-memory byte stream.
type Loopback struct {
	tx chan []byte
	rx chan []byte

	closed bool

	peeked   []byte
	havePeek bool
}

// Pair constructs two Loopback endpoints wired to each other: writes
// on a are reads on b, and vice versa.
func Pair() (a, b *Loopback) {
	c1 := make(chan []byte, channelCapacity)
	c2 := make(chan []byte, channelCapacity)
	a = &Loopback{tx: c1, rx: c2}
	b = &Loopback{tx: c2, rx: c1}
	return a, b
}

// PollWrite attempts to enqueue data as one chunk without blocking.
// On success it returns OK(len(data)); data is never split. It returns
// Pending when the peer has not drained enough capacity yet, and
// NotConnected once this endpoint has been closed. A peer that has
// closed its own end is not detected here: writes to it are still
// queued, and return Pending once the queue is full.
func (l *Loopback) PollWrite(data []byte) abi.Result {
	if l.closed {
		return abi.Fail(abi.ErrNotConnected)
	}
	chunk := make([]byte, len(data))
	copy(chunk, data)
	select {
	case l.tx <- chunk:
		return abi.OK(uint32(len(chunk)))
	default:
		return abi.Pending()
	}
}

// Writable reports whether a subsequent PollWrite of any size up to
// MaxChunkSize would complete immediately, without attempting a send.
// SocketManager uses this to decide whether a handle blocked on write
// or flush capacity should be woken.
func (l *Loopback) Writable() bool {
	return !l.closed && len(l.tx) < cap(l.tx)
}

// PollFlush reports whether the outbound queue can take another
// chunk. Because PollWrite already places every chunk directly in the
// channel the peer reads from, flush completes as soon as the queue is
// not full; a fuller drain guarantee would require peer acknowledgment
// this byte stream does not provide.
func (l *Loopback) PollFlush() abi.Result {
	if l.closed {
		return abi.Fail(abi.ErrNotConnected)
	}
	if len(l.tx) < cap(l.tx) {
		return abi.OK(0)
	}
	return abi.Pending()
}

// PollClose closes the local send half. It never blocks.
func (l *Loopback) PollClose() abi.Result {
	if l.closed {
		return abi.OK(0)
	}
	l.closed = true
	close(l.tx)
	return abi.OK(0)
}

// PollRead attempts to dequeue the next chunk without blocking. It
// returns Pending when no data is queued and the peer is still open,
// and OK(0) with a nil slice once the peer has closed and all
// buffered chunks are drained (end of stream).
func (l *Loopback) PollRead() ([]byte, abi.Result) {
	if l.havePeek {
		chunk := l.peeked
		l.peeked = nil
		l.havePeek = false
		if chunk == nil {
			return nil, abi.OK(0)
		}
		return chunk, abi.OK(uint32(len(chunk)))
	}
	select {
	case chunk, ok := <-l.rx:
		if !ok {
			return nil, abi.OK(0)
		}
		return chunk, abi.OK(uint32(len(chunk)))
	default:
		return nil, abi.Pending()
	}
}

// Readable reports whether a subsequent PollRead would return data or
// end-of-stream immediately, without consuming anything. It is used
// by the reactor to decide whether a socket's read waker should fire.
func (l *Loopback) Readable() bool {
	if l.havePeek {
		return true
	}
	select {
	case chunk, ok := <-l.rx:
		if !ok {
			l.peeked = nil
			l.havePeek = true
			return true
		}
		l.peeked = chunk
		l.havePeek = true
		return true
	default:
		return false
	}
}
