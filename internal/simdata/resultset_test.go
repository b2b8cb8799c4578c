package simdata

import (
	"testing"

	"github.com/COMSYS/ns3-efm-study-overview/internal/efm"
)

func withFlowBegin(nodeID uint32, t float64) *VantagePoint {
	vp := NewVantagePoint(nodeID, VPObserver)
	set := efm.NewSet()
	set.Add(efm.Event{Kind: efm.KindFlowBegin, Time: t, FlowID: 1})
	set.Finalize()
	vp.PutFlow(NewObserverFlow(1, set))
	return vp
}

func TestFlowPathOrderedByStartTimeContainsEachObserverOnce(t *testing.T) {
	rs := New("sim-1")
	a := withFlowBegin(10, 0.5)
	m := withFlowBegin(20, 0.1)
	b := withFlowBegin(30, 0.9)
	rs.vantagePoints[a.NodeID] = a
	rs.vantagePoints[m.NodeID] = m
	rs.vantagePoints[b.NodeID] = b

	path := rs.FlowPath(1)
	want := []uint32{20, 10, 30}
	if len(path) != len(want) {
		t.Fatalf("got %v want %v", path, want)
	}
	for i := range want {
		if path[i] != want[i] {
			t.Fatalf("got %v want %v", path, want)
		}
	}
	seen := map[uint32]bool{}
	for _, n := range path {
		if seen[n] {
			t.Fatalf("observer %d appears twice in %v", n, path)
		}
		seen[n] = true
	}
}

func TestReverseFlowIDIsInvolution(t *testing.T) {
	rs := New("sim-1")
	fwd := FiveTuple{SrcNodeID: 1, DstNodeID: 2, SrcPort: 100, DstPort: 200, Proto: "tcp"}
	rs.FlowTuples[1] = fwd
	rs.FlowTuples[2] = fwd.Reverse()

	rev, ok := rs.ReverseFlowID(1)
	if !ok || rev != 2 {
		t.Fatalf("expected reverse of 1 to be 2, got %v ok=%v", rev, ok)
	}
	back, ok := rs.ReverseFlowID(rev)
	if !ok || back != 1 {
		t.Fatalf("expected reverse of reverse to be original flow id, got %v ok=%v", back, ok)
	}
	if rs.FlowTuples[2] != rs.FlowTuples[1].Reverse() {
		t.Fatal("reverse tuple must swap endpoints and ports")
	}
}
