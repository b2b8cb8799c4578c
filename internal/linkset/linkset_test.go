package linkset

import (
	"testing"

	"github.com/COMSYS/ns3-efm-study-overview/internal/classify"
	"github.com/COMSYS/ns3-efm-study-overview/internal/efm"
	"github.com/COMSYS/ns3-efm-study-overview/internal/simdata"
)

func chainResultSet(t *testing.T, relLoss float64) *simdata.ResultSet {
	t.Helper()
	rs := simdata.New("sim-1")
	rs.FlowTuples[1] = simdata.FiveTuple{SrcNodeID: 1, DstNodeID: 3}
	rs.FlowTuples[2] = rs.FlowTuples[1].Reverse()
	rs.CoreLinks = []simdata.Link{{Src: 1, Dst: 2}, {Src: 2, Dst: 3}, {Src: 3, Dst: 2}, {Src: 2, Dst: 1}}

	obs := simdata.NewVantagePoint(2, simdata.VPObserver)
	obs.PutFlow(seqFlow(1, relLoss))
	obs.PutFlow(seqFlow(2, relLoss))
	rs.PutVantagePoint(obs)
	rs.ObserverFlowStats[2] = map[simdata.FlowID]simdata.FlowStats{
		1: {TotalPackets: 100, TotalEfmPackets: 100},
		2: {TotalPackets: 100, TotalEfmPackets: 100},
	}
	return rs
}

func seqFlow(id simdata.FlowID, relLoss float64) *simdata.ObserverFlow {
	set := efm.NewSet()
	set.Add(efm.Event{Kind: efm.KindFlowBegin, Time: 0.1, FlowID: uint64(id)})
	loss := int64(relLoss * 100)
	pkt := uint64(100) - uint64(loss)
	set.Add(efm.Event{Kind: efm.KindSeqLoss, Time: 1.0, FlowID: uint64(id), Data: efm.SignedLossMeasurementEvent{PktCount: pkt, LossSigned: loss}})
	set.Finalize()
	return simdata.NewObserverFlow(id, set)
}

func TestLinkCharacteristicSetBuildsIndicatorRows(t *testing.T) {
	rs := chainResultSet(t, 0.20)
	bits, _ := efm.NewBitSet([]efm.Bit{efm.BitSEQ})
	cfg := Config{
		Config: classify.Config{
			Observers: map[uint32]bool{2: true},
			Bits:      bits,
			LossTh:    0.10,
			Mode:      classify.ModeStatic,
		},
		Universe: UniverseCoreOnly,
	}
	set := Build(rs, cfg)
	if set.Index.Len() != 4 {
		t.Fatalf("expected 4 indexed links, got %d", set.Index.Len())
	}
	bucket, ok := set.Bucket(2, efm.BitSEQ)
	if !ok {
		t.Fatal("expected a SEQ bucket at observer 2")
	}
	if len(bucket.A) != 2 {
		t.Fatalf("expected one row per direction, got %d", len(bucket.A))
	}
	for i, row := range bucket.A {
		var ones int
		for _, v := range row {
			if v == 1 {
				ones++
			}
		}
		if ones != 1 {
			t.Fatalf("row %d: expected exactly one indicator column, got %d (%v)", i, ones, row)
		}
		if bucket.B[i] != 0.20 {
			t.Fatalf("row %d: expected measurement 0.20, got %v", i, bucket.B[i])
		}
	}
}

func TestLinkIndexCoreOnlyExcludesEdgeLinks(t *testing.T) {
	rs := simdata.New("sim-2")
	rs.CoreLinks = []simdata.Link{{Src: 1, Dst: 2}}
	rs.EdgeLinks = []simdata.Link{{Src: 0, Dst: 1}}
	core := NewLinkIndex(rs, UniverseCoreOnly)
	if core.Len() != 1 {
		t.Fatalf("expected 1 core link, got %d", core.Len())
	}
	all := NewLinkIndex(rs, UniverseAll)
	if all.Len() != 2 {
		t.Fatalf("expected 2 links in the all-links universe, got %d", all.Len())
	}
}

func TestCombinedFlowSetDifferencesAdjacentObservers(t *testing.T) {
	rs := simdata.New("sim-3")
	rs.FlowTuples[1] = simdata.FiveTuple{SrcNodeID: 1, DstNodeID: 4}
	rs.CoreLinks = []simdata.Link{{Src: 1, Dst: 2}, {Src: 2, Dst: 3}, {Src: 3, Dst: 4}}

	near := simdata.NewVantagePoint(2, simdata.VPObserver)
	near.PutFlow(qFlow(1, 0.05, 10, 640))
	far := simdata.NewVantagePoint(3, simdata.VPObserver)
	far.PutFlow(qFlow(1, 0.10, 25, 640))
	rs.PutVantagePoint(near)
	rs.PutVantagePoint(far)
	rs.ObserverFlowStats[2] = map[simdata.FlowID]simdata.FlowStats{1: {TotalPackets: 1000, TotalEfmPackets: 1000}}
	rs.ObserverFlowStats[3] = map[simdata.FlowID]simdata.FlowStats{1: {TotalPackets: 1000, TotalEfmPackets: 1000}}

	bits, _ := efm.NewBitSet([]efm.Bit{efm.BitQ})
	cfg := Config{
		Config: classify.Config{
			Observers: map[uint32]bool{2: true, 3: true},
			Bits:      bits,
			LossTh:    0.10,
			Mode:      classify.ModeStatic,
		},
		Universe: UniverseCoreOnly,
	}
	set := BuildCombined(rs, cfg)
	bucket, ok := set.Bucket(3, efm.BitQ)
	if !ok {
		t.Fatal("expected the farther observer (longer path) to attribute the differential row")
	}
	if len(bucket.A) != 1 {
		t.Fatalf("expected exactly one differential row, got %d", len(bucket.A))
	}
	var ones int
	for _, v := range bucket.A[0] {
		if v == 1 {
			ones++
		}
	}
	if ones != 1 {
		t.Fatalf("expected the row to indicate exactly the set-difference link (2->3), got %d ones", ones)
	}
}

func qFlow(id simdata.FlowID, beginTime float64, loss, pkt uint64) *simdata.ObserverFlow {
	set := efm.NewSet()
	set.Add(efm.Event{Kind: efm.KindFlowBegin, Time: beginTime, FlowID: uint64(id)})
	set.Add(efm.Event{Kind: efm.KindQLoss, Time: 1.0, FlowID: uint64(id), Data: efm.LossMeasurementEvent{PktCount: pkt, Loss: loss}})
	set.Finalize()
	return simdata.NewObserverFlow(id, set)
}
