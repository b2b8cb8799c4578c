package simfilter

import (
	"testing"

	"github.com/COMSYS/ns3-efm-study-overview/internal/efm"
	"github.com/COMSYS/ns3-efm-study-overview/internal/simdata"
)

func buildScenario() *simdata.ResultSet {
	rs := simdata.New("sim-1")
	vp := simdata.NewVantagePoint(1, simdata.VPObserver)

	set := efm.NewSet()
	set.Add(efm.Event{Kind: efm.KindLSetHost, Time: 0.2, FlowID: 1, Data: efm.BitSetPCountEvent{PktCount: 10}})
	set.Add(efm.Event{Kind: efm.KindLSetHost, Time: 0.3, FlowID: 1, Data: efm.BitSetPCountEvent{PktCount: 11}})
	set.Add(efm.Event{Kind: efm.KindLSetHost, Time: 0.4, FlowID: 1, Data: efm.BitSetPCountEvent{PktCount: 12}})
	set.Add(efm.Event{Kind: efm.KindQLoss, Time: 0.1, FlowID: 1, Data: efm.LossMeasurementEvent{PktCount: 20, Loss: 1}})
	set.Add(efm.Event{Kind: efm.KindQLoss, Time: 0.35, FlowID: 1, Data: efm.LossMeasurementEvent{PktCount: 50, Loss: 2}})
	set.Finalize()

	vp.PutFlow(simdata.NewObserverFlow(1, set))
	rs.FlowTuples[1] = simdata.FiveTuple{SrcNodeID: 1, DstNodeID: 2}
	rs.PutVantagePoint(vp)
	return rs
}

func TestLBitTriggeredMonitoring(t *testing.T) {
	rs := buildScenario()
	out := ApplyLBitTriggeredMonitoring(rs)

	vp, ok := out.LookupVantagePoint(1)
	if !ok {
		t.Fatal("observer vanished after filtering")
	}
	f, ok := vp.Flow(1)
	if !ok {
		t.Fatal("flow vanished after filtering")
	}

	qLoss := f.Events.Events(efm.KindQLoss)
	if len(qLoss) != 0 {
		t.Fatalf("expected both Q-loss events dropped (pre-trigger + first-after-trigger), got %d", len(qLoss))
	}

	lSet := f.Events.Events(efm.KindLSetHost)
	if len(lSet) != 2 {
		t.Fatalf("expected trigger event dropped, leaving 2 L-set events, got %d", len(lSet))
	}
	want := []uint64{2, 3}
	for i, e := range lSet {
		p, ok := e.Data.(efm.BitSetPCountEvent)
		if !ok {
			t.Fatalf("event %d has unexpected payload type", i)
		}
		if p.PktCount != want[i] {
			t.Fatalf("L-set %d pkt_count = %d, want %d", i, p.PktCount, want[i])
		}
	}
}

func TestFilterDoesNotMutateOriginal(t *testing.T) {
	rs := buildScenario()
	ApplyLBitTriggeredMonitoring(rs)

	vp, _ := rs.LookupVantagePoint(1)
	f, _ := vp.Flow(1)
	if got := len(f.Events.Events(efm.KindQLoss)); got != 2 {
		t.Fatalf("original result set must be untouched, got %d Q-loss events", got)
	}
}

func TestSpinTransientTrim(t *testing.T) {
	rs := simdata.New("sim-1")
	vp := simdata.NewVantagePoint(1, simdata.VPObserver)
	set := efm.NewSet()
	for i := 0; i < 5; i++ {
		set.Add(efm.Event{Kind: efm.KindSpinDelay, Time: float64(i), FlowID: 1, Data: efm.DelayMeasurementEvent{FullDelayMs: float64(i)}})
	}
	set.Finalize()
	vp.PutFlow(simdata.NewObserverFlow(1, set))
	rs.PutVantagePoint(vp)

	out := ApplySpinTransientTrim(rs, 2)
	vp2, _ := out.LookupVantagePoint(1)
	f2, _ := vp2.Flow(1)
	if got := f2.Events.Len(efm.KindSpinDelay); got != 3 {
		t.Fatalf("expected 3 events remaining after trimming last 2 of 5, got %d", got)
	}
}
