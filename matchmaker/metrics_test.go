package matchmaker

import (
	"context"
	"testing"
	"time"

	"github.com/machinefabric/meshkernel-go/loopback"
	"github.com/machinefabric/meshkernel-go/meshaddr"
)

type recordingMetrics struct {
	matches int
	rejects int
	pending map[string]int
}

func (r *recordingMetrics) IncMatch() { r.matches++ }
func (r *recordingMetrics) SetPendingConnectors(address string, count int) {
	if r.pending == nil {
		r.pending = make(map[string]int)
	}
	r.pending[address] = count
}
func (r *recordingMetrics) IncConnectorRejected() { r.rejects++ }

func TestMetricsRecordMatchesAndRejections(t *testing.T) {
	m := New()
	rec := &recordingMetrics{}
	m.SetMetrics(rec)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	addr := meshaddr.Address{Module: "svc", Port: 9}
	cch := make(chan *loopback.Loopback, 1)
	m.Requests() <- Request{Addr: addr, Kind: KindConnector, Dest: cch}

	time.Sleep(20 * time.Millisecond)
	if rec.pending[addr.String()] != 1 {
		t.Fatalf("expected pending gauge to record 1 connector, got %d", rec.pending[addr.String()])
	}

	lch := make(chan *loopback.Loopback, 1)
	m.Requests() <- Request{Addr: addr, Kind: KindListener, Dest: lch}

	<-cch
	<-lch
	time.Sleep(20 * time.Millisecond)
	if rec.matches != 1 {
		t.Fatalf("expected 1 recorded match, got %d", rec.matches)
	}
}
