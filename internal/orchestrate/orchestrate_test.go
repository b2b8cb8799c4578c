package orchestrate

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/COMSYS/ns3-efm-study-overview/internal/cache"
	"github.com/COMSYS/ns3-efm-study-overview/internal/classify"
	"github.com/COMSYS/ns3-efm-study-overview/internal/efm"
	"github.com/COMSYS/ns3-efm-study-overview/internal/efmconfig"
	"github.com/COMSYS/ns3-efm-study-overview/internal/localize/lp"
	"github.com/COMSYS/ns3-efm-study-overview/internal/simdata"
)

// chainResultSet builds A(1)-M(2)-B(3), one observer at M, with a forward
// flow 1 (A->B) and its reverse flow 2 (B->A) each losing relLoss of its
// packets by SEQ. Mirrors internal/linkset's fixture of the same shape.
func chainResultSet(t *testing.T, relLoss float64) *simdata.ResultSet {
	t.Helper()
	rs := simdata.New("sim-orchestrate")
	rs.FlowTuples[1] = simdata.FiveTuple{SrcNodeID: 1, DstNodeID: 3, Proto: "tcp"}
	rs.FlowTuples[2] = rs.FlowTuples[1].Reverse()
	rs.CoreLinks = []simdata.Link{{Src: 1, Dst: 2}, {Src: 2, Dst: 3}, {Src: 3, Dst: 2}, {Src: 2, Dst: 1}}

	obs := simdata.NewVantagePoint(2, simdata.VPObserver)
	obs.PutFlow(seqLossFlow(1, relLoss))
	obs.PutFlow(seqLossFlow(2, relLoss))
	rs.PutVantagePoint(obs)
	rs.ObserverFlowStats[2] = map[simdata.FlowID]simdata.FlowStats{
		1: {TotalPackets: 100, TotalEfmPackets: 100},
		2: {TotalPackets: 100, TotalEfmPackets: 100},
	}
	return rs
}

func seqLossFlow(id simdata.FlowID, relLoss float64) *simdata.ObserverFlow {
	set := efm.NewSet()
	set.Add(efm.Event{Kind: efm.KindFlowBegin, Time: 0.1, FlowID: uint64(id)})
	loss := int64(relLoss * 100)
	pkt := uint64(100) - uint64(loss)
	set.Add(efm.Event{Kind: efm.KindSeqLoss, Time: 1.0, FlowID: uint64(id), Data: efm.SignedLossMeasurementEvent{PktCount: pkt, LossSigned: loss}})
	set.Finalize()
	return simdata.NewObserverFlow(id, set)
}

const detectionDoc = `[
  {
    "performLocalization": true,
    "efmBitSets": [["SEQ"]],
    "classificationModes": ["STATIC"],
    "flowLengthTh": 0,
    "observerSets": [[2]],
    "autoLossRateThOffset": 0,
    "autoDelayThOffsetMs": 0,
    "localizationMethods": {"DETECTION": {}},
    "flowSelectionStrategies": {"ALL": {}}
  }
]`

const basicMultiStrategyDoc = `[
  {
    "performLocalization": false,
    "efmBitSets": [["SEQ"]],
    "classificationModes": ["STATIC", "PERFECT"],
    "flowLengthTh": 0,
    "observerSets": [[2], [2, 3]],
    "autoLossRateThOffset": 0,
    "autoDelayThOffsetMs": 0,
    "localizationMethods": {},
    "flowSelectionStrategies": {"ALL": {}, "RANDOM": {"flow_count": 1}, "COVERAGE_FIXED_FLOWS": {"flow_count": 2}}
  }
]`

const lsqrFixedFlowsDoc = `[
  {
    "performLocalization": true,
    "efmBitSets": [["SEQ"]],
    "classificationModes": ["STATIC"],
    "flowLengthTh": 0,
    "observerSets": [[2]],
    "autoLossRateThOffset": 0,
    "autoDelayThOffsetMs": 0,
    "localizationMethods": {"LSQR": {}},
    "flowSelectionStrategies": {"ALL_FIXED_FLOWS": {}}
  }
]`

func resolve(t *testing.T, doc string, rs *simdata.ResultSet) []efmconfig.Config {
	t.Helper()
	cfgs, err := efmconfig.ResolveAll([]byte(doc), rs)
	if err != nil {
		t.Fatalf("ResolveAll: %v", err)
	}
	return cfgs
}

func TestRunProducesOneEntryPerUnit(t *testing.T) {
	rs := chainResultSet(t, 0.20)
	cfgs := resolve(t, detectionDoc, rs)

	m := NewManager(cache.NewMemStore(), lp.Unavailable, 2)
	doc, err := m.Run(context.Background(), rs, json.RawMessage(detectionDoc), cfgs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(doc.LocalizationResults) != 1 {
		t.Fatalf("expected 1 localizationResults entry (1 config x 1 observer set x 1 mode x 1 strategy), got %d", len(doc.LocalizationResults))
	}
	entry := doc.LocalizationResults[0]
	if entry.FlowSelection != "ALL" {
		t.Fatalf("expected flowSelection ALL, got %q", entry.FlowSelection)
	}
	if entry.Filter != "none" {
		t.Fatalf("expected filter none, got %q", entry.Filter)
	}
	if len(entry.Results) != 1 {
		t.Fatalf("expected 1 method result (DETECTION), got %d", len(entry.Results))
	}
	if entry.Results[0].Method != "DETECTION" {
		t.Fatalf("expected DETECTION result, got %q", entry.Results[0].Method)
	}
}

func TestRunDeterministicAcrossRepeatedCalls(t *testing.T) {
	rs := chainResultSet(t, 0.20)
	cfgs := resolve(t, detectionDoc, rs)
	m := NewManager(cache.NewMemStore(), lp.Unavailable, 4)

	first, err := m.Run(context.Background(), rs, json.RawMessage(detectionDoc), cfgs)
	if err != nil {
		t.Fatalf("Run (first): %v", err)
	}
	second, err := m.Run(context.Background(), rs, json.RawMessage(detectionDoc), cfgs)
	if err != nil {
		t.Fatalf("Run (second): %v", err)
	}
	a, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal first: %v", err)
	}
	b, err := json.Marshal(second)
	if err != nil {
		t.Fatalf("marshal second: %v", err)
	}
	if string(a) != string(b) {
		t.Fatalf("expected bitwise-identical output across repeated runs:\n%s\n!=\n%s", a, b)
	}
}

func TestRunBuildsLinearMethodVariantsUnderFixedFlows(t *testing.T) {
	rs := chainResultSet(t, 0.20)
	cfgs := resolve(t, lsqrFixedFlowsDoc, rs)

	m := NewManager(cache.NewMemStore(), lp.Unavailable, 1)
	doc, err := m.Run(context.Background(), rs, json.RawMessage(lsqrFixedFlowsDoc), cfgs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(doc.LocalizationResults) != 1 {
		t.Fatalf("expected 1 localizationResults entry, got %d", len(doc.LocalizationResults))
	}
	results := doc.LocalizationResults[0].Results
	// core and all-links under the non-propagating pass, doubled again for
	// the FIXED_FLOWS strategy's propagating pass: up to 4 LSQR variants.
	// SEQ is not combinable, so no FLOW_COMBINATION variants are added.
	if len(results) == 0 {
		t.Fatal("expected at least one LSQR matrix variant result")
	}
	for _, r := range results {
		if r.Method != "LSQR" {
			t.Fatalf("expected only LSQR results, got %q", r.Method)
		}
	}
}

func TestBuildClassifySetCachesByKey(t *testing.T) {
	rs := chainResultSet(t, 0.20)
	store := cache.NewMemStore()
	bits, _ := efm.NewBitSet([]efm.Bit{efm.BitSEQ})
	cfg := classify.Config{
		Observers: map[uint32]bool{2: true},
		Bits:      bits,
		LossTh:    0.10,
		Mode:      classify.ModeStatic,
	}
	key := classifyCacheKey(rs.SimID, "none", []uint32{2}, bits, classify.ModeStatic, 0.10, 0, 0, 0, "ALL")

	first, err := buildClassifySet(context.Background(), store, key, rs, cfg)
	if err != nil {
		t.Fatalf("buildClassifySet (first): %v", err)
	}
	second, err := buildClassifySet(context.Background(), store, key, rs, cfg)
	if err != nil {
		t.Fatalf("buildClassifySet (second): %v", err)
	}
	if len(first.AllPaths()) != len(second.AllPaths()) {
		t.Fatalf("expected cached and recomputed sets to carry the same paths, got %d vs %d", len(first.AllPaths()), len(second.AllPaths()))
	}
}

func TestApplyFilterAppliesBothFiltersInOrder(t *testing.T) {
	rs := chainResultSet(t, 0.20)
	filtered := applyFilter(rs, efmconfig.SimFilter{LBitTriggeredMonitoring: true, RemoveLastXSpinTransients: 1})
	if filtered == rs {
		t.Fatal("expected a filtered copy distinct from the input result set")
	}
}

func TestFilterLabelRendersCombinedFilters(t *testing.T) {
	cases := []struct {
		f    efmconfig.SimFilter
		want string
	}{
		{efmconfig.SimFilter{}, "none"},
		{efmconfig.SimFilter{LBitTriggeredMonitoring: true}, "l-bit-triggered"},
		{efmconfig.SimFilter{RemoveLastXSpinTransients: 3}, "spin-transient-trim-3"},
		{efmconfig.SimFilter{LBitTriggeredMonitoring: true, RemoveLastXSpinTransients: 3}, "l-bit-triggered+spin-transient-trim-3"},
	}
	for _, c := range cases {
		if got := filterLabel(c.f); got != c.want {
			t.Errorf("filterLabel(%+v) = %q, want %q", c.f, got, c.want)
		}
	}
}

func TestBuildUnitsOrderIsStableAcrossCalls(t *testing.T) {
	rs := chainResultSet(t, 0.20)
	cfgs := resolve(t, basicMultiStrategyDoc, rs)
	a := buildUnits(cfgs)
	b := buildUnits(cfgs)
	if len(a) != len(b) {
		t.Fatalf("expected stable unit count, got %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].key() != b[i].key() {
			t.Fatalf("unit %d: key changed across calls: %q vs %q", i, a[i].key(), b[i].key())
		}
	}
}
