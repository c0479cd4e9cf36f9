package socket

import (
	"context"
	"testing"
	"time"

	"github.com/machinefabric/meshkernel-go/matchmaker"
	"github.com/machinefabric/meshkernel-go/meshaddr"
)

func newManagers(t *testing.T) (listener *SocketManager, connector *SocketManager, cancel context.CancelFunc) {
	t.Helper()
	mm := matchmaker.New()
	ctx, cancelFn := context.WithCancel(context.Background())
	go mm.Run(ctx)
	listener = New("svc", mm.Requests())
	connector = New("client", mm.Requests())
	return listener, connector, cancelFn
}

func pollUntilReady(t *testing.T, fn func() (bool, interface{})) interface{} {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		done, v := fn()
		if done {
			return v
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for condition")
	return nil
}

func TestEchoRoundTripS1(t *testing.T) {
	listener, connector, cancel := newManagers(t)
	defer cancel()

	lh := listener.ListenerCreate(5062)
	ch := connector.Connect("svc", 5062)

	var lSock, cSock meshaddr.Handle
	pollUntilReady(t, func() (bool, interface{}) {
		res := listener.Listen(lh)
		if res.IsPending() {
			return false, nil
		}
		v, err := res.Value()
		if err != nil {
			t.Fatalf("listener.Listen failed: %v", err)
		}
		lSock = meshaddr.Handle(v)
		return true, nil
	})
	pollUntilReady(t, func() (bool, interface{}) {
		res := connector.Listen(ch)
		if res.IsPending() {
			return false, nil
		}
		v, err := res.Value()
		if err != nil {
			t.Fatalf("connector.Listen failed: %v", err)
		}
		cSock = meshaddr.Handle(v)
		return true, nil
	})

	msg := []byte("Message from client!")
	if len(msg) != 20 {
		t.Fatalf("fixture message must be 20 bytes, got %d", len(msg))
	}
	n, res := connector.Write(cSock, msg)
	if res.IsPending() {
		t.Fatalf("write unexpectedly pending")
	}
	if n != len(msg) {
		t.Fatalf("write accepted %d bytes, want %d", n, len(msg))
	}
	connector.Flush(cSock)

	var got []byte
	pollUntilReady(t, func() (bool, interface{}) {
		chunk, res := listener.Read(lSock, 64)
		if res.IsPending() {
			return false, nil
		}
		if _, err := res.Value(); err != nil {
			t.Fatalf("listener read failed: %v", err)
		}
		got = append([]byte{}, chunk...)
		return true, nil
	})
	if string(got) != string(msg) {
		t.Fatalf("listener read %q, want %q", got, msg)
	}

	listener.Write(lSock, got)
	listener.Flush(lSock)

	var echoed []byte
	pollUntilReady(t, func() (bool, interface{}) {
		chunk, res := connector.Read(cSock, 64)
		if res.IsPending() {
			return false, nil
		}
		if _, err := res.Value(); err != nil {
			t.Fatalf("connector read failed: %v", err)
		}
		echoed = append([]byte{}, chunk...)
		return true, nil
	})
	if string(echoed) != string(msg) {
		t.Fatalf("echoed bytes %q, want %q", echoed, msg)
	}
}

func TestConnectorSingleShotS3(t *testing.T) {
	listener, connector, cancel := newManagers(t)
	defer cancel()

	lh := listener.ListenerCreate(1)
	ch := connector.Connect("svc", 1)

	pollUntilReady(t, func() (bool, interface{}) {
		res := listener.Listen(lh)
		return !res.IsPending(), nil
	})
	pollUntilReady(t, func() (bool, interface{}) {
		res := connector.Listen(ch)
		return !res.IsPending(), nil
	})

	res := connector.Listen(ch)
	if !res.IsPending() {
		_, err := res.Value()
		if err == nil {
			t.Fatalf("expected reissued listen on a drained connector to fail")
		}
	} else {
		t.Fatalf("reissued listen on unknown handle must not be Pending")
	}
}

func TestListenerStaysAliveAfterMatchS4(t *testing.T) {
	listener, connector, cancel := newManagers(t)
	defer cancel()

	lh := listener.ListenerCreate(2)
	ch := connector.Connect("svc", 2)

	pollUntilReady(t, func() (bool, interface{}) {
		res := listener.Listen(lh)
		return !res.IsPending(), nil
	})
	pollUntilReady(t, func() (bool, interface{}) {
		res := connector.Listen(ch)
		return !res.IsPending(), nil
	})

	res := listener.Listen(lh)
	if !res.IsPending() {
		t.Fatalf("expected listener handle to remain Pending with no new connector")
	}
}

func TestFlushFenceS5(t *testing.T) {
	listener, connector, cancel := newManagers(t)
	defer cancel()

	lh := listener.ListenerCreate(3)
	ch := connector.Connect("svc", 3)

	var lSock, cSock meshaddr.Handle
	pollUntilReady(t, func() (bool, interface{}) {
		res := listener.Listen(lh)
		if res.IsPending() {
			return false, nil
		}
		v, _ := res.Value()
		lSock = meshaddr.Handle(v)
		return true, nil
	})
	pollUntilReady(t, func() (bool, interface{}) {
		res := connector.Listen(ch)
		if res.IsPending() {
			return false, nil
		}
		v, _ := res.Value()
		cSock = meshaddr.Handle(v)
		return true, nil
	})

	connector.Write(cSock, []byte{1, 2, 3})
	flushRes := connector.Flush(cSock)
	if flushRes.IsPending() {
		t.Fatalf("flush on an uncontested channel must resolve immediately")
	}

	chunk, res := listener.Read(lSock, 16)
	if res.IsPending() {
		t.Fatalf("expected data visible immediately after a resolved flush")
	}
	if string(chunk) != string([]byte{1, 2, 3}) {
		t.Fatalf("read %v, want [1 2 3]", chunk)
	}
}

func TestHandleUnknownIsNotFound(t *testing.T) {
	listener, _, cancel := newManagers(t)
	defer cancel()

	_, res := listener.Read(999, 10)
	if _, err := res.Value(); err == nil {
		t.Fatalf("expected NotFound for an unknown handle")
	}
}
