package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/machinefabric/meshkernel-go/abi"
	"github.com/machinefabric/meshkernel-go/meshaddr"
)

// stepGuest is a test double Guest: its RunTasks advances through a
// fixed program of steps, each of which may report itself as not yet
// complete (Pending), in which case RunTasks stops until the next
// turn re-invokes it.
type stepGuest struct {
	steps []func() bool
	idx   int
	woken int
}

func (g *stepGuest) Main()                {}
func (g *stepGuest) Wake(meshaddr.Handle) { g.woken++ }
func (g *stepGuest) RunTasks() {
	for g.idx < len(g.steps) {
		if !g.steps[g.idx]() {
			return
		}
		g.idx++
	}
}

func mustValue(t *testing.T, res abi.Result) uint32 {
	t.Helper()
	v, err := res.Value()
	if err != nil {
		t.Fatalf("unexpected error result: %v", err)
	}
	return v
}

func echoListenerSteps(t *testing.T, inst *Instance, port meshaddr.Port, received *[]byte) []func() bool {
	t.Helper()
	var lh, sockH meshaddr.Handle
	return []func() bool{
		func() bool {
			lh = meshaddr.Handle(mustValue(t, abi.Decode(inst.SyscallListenerCreate(port))))
			return true
		},
		func() bool {
			res := abi.Decode(inst.SyscallListen(lh))
			if res.IsPending() {
				return false
			}
			sockH = meshaddr.Handle(mustValue(t, res))
			return true
		},
		func() bool {
			buf := make([]byte, 64)
			res := abi.Decode(inst.SyscallRead(sockH, buf))
			if res.IsPending() {
				return false
			}
			n := mustValue(t, res)
			*received = append([]byte{}, buf[:n]...)
			return true
		},
		func() bool {
			inst.SyscallWrite(sockH, *received)
			inst.SyscallFlush(sockH)
			return true
		},
	}
}

func echoConnectorSteps(t *testing.T, inst *Instance, peer meshaddr.ModuleId, port meshaddr.Port, msg []byte, echoed *[]byte) []func() bool {
	t.Helper()
	var ch, sockH meshaddr.Handle
	return []func() bool{
		func() bool {
			ch = meshaddr.Handle(mustValue(t, abi.Decode(inst.SyscallConnect(peer, port))))
			return true
		},
		func() bool {
			res := abi.Decode(inst.SyscallListen(ch))
			if res.IsPending() {
				return false
			}
			sockH = meshaddr.Handle(mustValue(t, res))
			return true
		},
		func() bool {
			inst.SyscallWrite(sockH, msg)
			inst.SyscallFlush(sockH)
			return true
		},
		func() bool {
			buf := make([]byte, 64)
			res := abi.Decode(inst.SyscallRead(sockH, buf))
			if res.IsPending() {
				return false
			}
			n := mustValue(t, res)
			*echoed = append([]byte{}, buf[:n]...)
			return true
		},
	}
}

func TestHostEchoRoundTrip(t *testing.T) {
	host := NewHost(hclog.NewNullLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go host.mm.Run(ctx)

	var received, echoed []byte
	msg := []byte("Message from client!")

	listenerGuest := &stepGuest{}
	connectorGuest := &stepGuest{}

	listenerInst := host.Load("svc", listenerGuest)
	connectorInst := host.Load("client", connectorGuest)

	listenerGuest.steps = echoListenerSteps(t, listenerInst, 5062, &received)
	connectorGuest.steps = echoConnectorSteps(t, connectorInst, "svc", 5062, msg, &echoed)

	for i := 0; i < 50 && len(echoed) == 0; i++ {
		host.TurnAll()
		time.Sleep(5 * time.Millisecond)
	}

	if string(received) != string(msg) {
		t.Fatalf("listener received %q, want %q", received, msg)
	}
	if string(echoed) != string(msg) {
		t.Fatalf("connector echoed %q, want %q", echoed, msg)
	}
}

func TestLoadInvokesMain(t *testing.T) {
	host := NewHost(hclog.NewNullLogger())
	mainCalled := false
	host.Load("probe", &mainTrackingGuest{onMain: func() { mainCalled = true }})
	if !mainCalled {
		t.Fatalf("expected Load to invoke the guest's Main export")
	}
}

type mainTrackingGuest struct {
	onMain func()
}

func (g *mainTrackingGuest) Main()                { g.onMain() }
func (g *mainTrackingGuest) Wake(meshaddr.Handle) {}
func (g *mainTrackingGuest) RunTasks()            {}

func TestUnloadRemovesInstance(t *testing.T) {
	host := NewHost(hclog.NewNullLogger())
	host.Load("tmp", &mainTrackingGuest{onMain: func() {}})
	if _, ok := host.Instance("tmp"); !ok {
		t.Fatalf("expected instance to be present after Load")
	}
	host.Unload("tmp")
	if _, ok := host.Instance("tmp"); ok {
		t.Fatalf("expected instance to be gone after Unload")
	}
}
