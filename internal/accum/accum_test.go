package accum

import (
	"testing"

	"github.com/COMSYS/ns3-efm-study-overview/internal/classify"
	"github.com/COMSYS/ns3-efm-study-overview/internal/efm"
	"github.com/COMSYS/ns3-efm-study-overview/internal/efmwarn"
	"github.com/COMSYS/ns3-efm-study-overview/internal/simdata"
)

func TestRawValuesDrainsOnceAndNotRestartable(t *testing.T) {
	rv := NewRawValues([]float64{1, 2, 3})
	if v, ok := rv.Next(); !ok || v != 1 {
		t.Fatalf("expected first value 1, got %v %v", v, ok)
	}
	rest := rv.Drain()
	if len(rest) != 2 || rest[0] != 2 || rest[1] != 3 {
		t.Fatalf("expected [2 3] remaining, got %v", rest)
	}
	if _, ok := rv.Next(); ok {
		t.Fatal("expected series to be exhausted after Drain")
	}
	if got := rv.Sum(); got != 0 {
		t.Fatalf("expected 0 from a second drain, got %v", got)
	}
}

func TestRawValuesSum(t *testing.T) {
	rv := NewRawValues([]float64{1, 2, 3, 4})
	if got := rv.Sum(); got != 10 {
		t.Fatalf("expected sum 10, got %v", got)
	}
}

func TestComputeStatsEmpty(t *testing.T) {
	if s := ComputeStats(nil); s.Count != 0 {
		t.Fatalf("expected zero Stats for an empty series, got %+v", s)
	}
}

func TestComputeStatsBasic(t *testing.T) {
	s := ComputeStats([]float64{1, 2, 3, 4, 5})
	if s.Count != 5 {
		t.Fatalf("expected count 5, got %d", s.Count)
	}
	if s.Mean != 3 {
		t.Fatalf("expected mean 3, got %v", s.Mean)
	}
	if s.P50 < 2.9 || s.P50 > 3.1 {
		t.Fatalf("expected median near 3, got %v", s.P50)
	}
}

// buildChain mirrors classify's own fixture: A(1)-M(2)-B(3), one observer
// at M, forward flow 1 and reverse flow 2, each carrying a seq-loss
// cumulative snapshot yielding relLoss.
func buildChain(t *testing.T, relLoss float64) *simdata.ResultSet {
	t.Helper()
	rs := simdata.New("sim-1")
	rs.FlowTuples[1] = simdata.FiveTuple{SrcNodeID: 1, DstNodeID: 3, Proto: "tcp"}
	rs.FlowTuples[2] = rs.FlowTuples[1].Reverse()

	obs := simdata.NewVantagePoint(2, simdata.VPObserver)
	obs.PutFlow(flowWithSeqLoss(1, 0.1, relLoss))
	obs.PutFlow(flowWithSeqLoss(2, 0.1, relLoss))
	rs.PutVantagePoint(obs)

	rs.ObserverFlowStats[2] = map[simdata.FlowID]simdata.FlowStats{
		1: {TotalPackets: 100, TotalEfmPackets: 100},
		2: {TotalPackets: 100, TotalEfmPackets: 100},
	}
	return rs
}

func flowWithSeqLoss(id simdata.FlowID, beginTime float64, relLoss float64) *simdata.ObserverFlow {
	set := efm.NewSet()
	set.Add(efm.Event{Kind: efm.KindFlowBegin, Time: beginTime, FlowID: uint64(id)})
	loss := int64(relLoss * 100)
	pkt := uint64(100) - uint64(loss)
	set.Add(efm.Event{Kind: efm.KindSeqLoss, Time: 1.0, FlowID: uint64(id), Data: efm.SignedLossMeasurementEvent{PktCount: pkt, LossSigned: loss}})
	set.Finalize()
	return simdata.NewObserverFlow(id, set)
}

func TestBuildObserverResultsSplitsFlowFromActive(t *testing.T) {
	rs := buildChain(t, 0.2)
	bits, _ := efm.NewBitSet([]efm.Bit{efm.BitSEQ})
	set := classify.Build(rs, classify.Config{
		Observers: map[uint32]bool{2: true},
		Bits:      bits,
		LossTh:    0.1,
		Mode:      classify.ModeStatic,
	})

	flow, active, flowRaw, _ := BuildObserverResults(set)
	k := resultKey(2, "SEQ")
	r, ok := flow[k]
	if !ok {
		t.Fatalf("expected a flow result at key %q, got %+v", k, flow)
	}
	if r.Stats.Count != 2 {
		t.Fatalf("expected 2 classified paths (forward+reverse), got %d", r.Stats.Count)
	}
	if len(active) != 0 {
		t.Fatalf("expected no active-bit results for a SEQ-only bit set, got %+v", active)
	}
	if len(flowRaw[k]) != 2 {
		t.Fatalf("expected 2 raw values at key %q, got %v", k, flowRaw[k])
	}
}

func TestAccumulatorBuildProducesDocumentWithoutRawValues(t *testing.T) {
	rs := buildChain(t, 0.2)
	rs.FailedLinks[simdata.Link{Src: 1, Dst: 2}] = simdata.FailedLinkInfo{LossRate: 0.2}
	rs.EdgeLinks = []simdata.Link{{Src: 1, Dst: 2}}
	rs.CoreLinks = []simdata.Link{{Src: 2, Dst: 3}}

	bits, _ := efm.NewBitSet([]efm.Bit{efm.BitSEQ})
	set := classify.Build(rs, classify.Config{
		Observers: map[uint32]bool{2: true},
		Bits:      bits,
		LossTh:    0.1,
		Mode:      classify.ModeStatic,
	})

	a := NewAccumulator()
	a.AddClassified(set)
	a.AddPaths(rs)

	var warnings efmwarn.Tally
	warnings.Warn(efmwarn.KindShortFlowPath, "test")

	doc, err := a.Build(rs, nil, false, nil, &warnings)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if doc.SimID != "sim-1" {
		t.Fatalf("expected simId sim-1, got %q", doc.SimID)
	}
	if len(doc.AllLinks) != 2 {
		t.Fatalf("expected 2 allLinks (edge+core union), got %v", doc.AllLinks)
	}
	if doc.ObserverFlowRawValues != nil {
		t.Fatal("expected no raw values when outputRawValues is false")
	}
	if len(doc.ObserverFlowResults) == 0 {
		t.Fatal("expected non-empty observerFlowResults")
	}
}

func TestAccumulatorBuildIncludesRawValuesWhenRequested(t *testing.T) {
	rs := buildChain(t, 0.2)
	bits, _ := efm.NewBitSet([]efm.Bit{efm.BitSEQ})
	set := classify.Build(rs, classify.Config{
		Observers: map[uint32]bool{2: true},
		Bits:      bits,
		LossTh:    0.1,
		Mode:      classify.ModeStatic,
	})

	a := NewAccumulator()
	a.AddClassified(set)

	doc, err := a.Build(rs, nil, true, nil, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(doc.ObserverFlowRawValues) == 0 {
		t.Fatal("expected non-empty observerFlowRawValues when outputRawValues is true")
	}
}

func TestAllLinksDeduplicatesOverlap(t *testing.T) {
	rs := simdata.New("sim-2")
	rs.EdgeLinks = []simdata.Link{{Src: 1, Dst: 2}, {Src: 2, Dst: 3}}
	rs.CoreLinks = []simdata.Link{{Src: 2, Dst: 3}, {Src: 3, Dst: 4}}
	links := AllLinks(rs)
	if len(links) != 3 {
		t.Fatalf("expected 3 deduplicated links, got %v", links)
	}
}
