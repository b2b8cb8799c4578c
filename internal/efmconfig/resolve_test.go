package efmconfig

import (
	"testing"

	"github.com/COMSYS/ns3-efm-study-overview/internal/efm"
	"github.com/COMSYS/ns3-efm-study-overview/internal/localize"
	"github.com/COMSYS/ns3-efm-study-overview/internal/selection"
	"github.com/COMSYS/ns3-efm-study-overview/internal/simdata"
)

func newResultSetWithFailedLinks() *simdata.ResultSet {
	rs := simdata.New("sim-cfg")
	rs.FailedLinks[simdata.Link{Src: 1, Dst: 2}] = simdata.FailedLinkInfo{LossRate: 0.2, DelayMs: 10}
	rs.FailedLinks[simdata.Link{Src: 2, Dst: 3}] = simdata.FailedLinkInfo{LossRate: 0.05, DelayMs: 2}
	return rs
}

const basicDoc = `[
  {
    "performLocalization": true,
    "efmBitSets": [["SEQ"], ["Q", "L"]],
    "classificationModes": ["STATIC"],
    "flowLengthTh": 10,
    "observerSets": [[1,2,3], {"observers":[4,5], "metadata":{"note":"edge"}}],
    "autoLossRateThOffset": 0,
    "autoDelayThOffsetMs": 0,
    "localizationMethods": {"DETECTION": {}, "WEIGHT_DIR": {"wthresh": 0.5, "winc": 1.0}},
    "flowSelectionStrategies": {"COVERAGE_FIXED_FLOWS": {"flow_count": 3}},
    "simFilter": {"lBitTriggeredMonitoring": true, "removeLastXSpinTransients": 2},
    "time_filter_ms": 5,
    "output_raw_values": true
  }
]`

func TestResolveAllBasicEntry(t *testing.T) {
	rs := newResultSetWithFailedLinks()
	cfgs, err := ResolveAll([]byte(basicDoc), rs)
	if err != nil {
		t.Fatalf("ResolveAll: %v", err)
	}
	if len(cfgs) != 1 {
		t.Fatalf("expected 1 resolved config, got %d", len(cfgs))
	}
	c := cfgs[0]
	if c.ClassificationBaseID != "default_id_0" {
		t.Fatalf("expected default classification_base_id, got %q", c.ClassificationBaseID)
	}
	if len(c.BitSets) != 2 || c.BitSets[0].Bits()[0] != efm.BitSEQ {
		t.Fatalf("expected first bit set {SEQ}, got %v", c.BitSets)
	}
	if len(c.ObserverSets) != 2 || len(c.ObserverSets[0].Observers) != 3 || len(c.ObserverSets[1].Observers) != 2 {
		t.Fatalf("expected two observer sets (3 and 2 nodes), got %+v", c.ObserverSets)
	}
	if c.ObserverSets[1].Metadata["note"] != "edge" {
		t.Fatalf("expected metadata note=edge, got %+v", c.ObserverSets[1].Metadata)
	}
	// min nonzero loss rate is 0.05; offset 0 -> lossRateTh = 0.05.
	if diff := c.LossRateTh - 0.05; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected auto lossRateTh 0.05, got %v", c.LossRateTh)
	}
	if diff := c.DelayThMs - 2; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected auto delayThMs 2, got %v", c.DelayThMs)
	}
	if p, ok := c.LocalizationMethods[localize.MethodWeightDir]; !ok || p.WThresh != 0.5 || p.Winc != 1.0 {
		t.Fatalf("expected WEIGHT_DIR params resolved, got %+v", c.LocalizationMethods)
	}
	if len(c.FlowSelectionStrategies) != 1 {
		t.Fatalf("expected 1 flow selection strategy, got %d", len(c.FlowSelectionStrategies))
	}
	fs := c.FlowSelectionStrategies[0]
	if fs.Selection.Strategy != selection.StrategyCoverage || !fs.Selection.Propagate || fs.Selection.FlowCount != 3 {
		t.Fatalf("expected COVERAGE strategy with propagation and flow_count 3, got %+v", fs.Selection)
	}
	if !c.SimFilter.LBitTriggeredMonitoring || c.SimFilter.RemoveLastXSpinTransients != 2 {
		t.Fatalf("expected simFilter resolved, got %+v", c.SimFilter)
	}
	if c.TimeFilterMs != 5000 {
		t.Fatalf("expected time_filter_ms scaled by 1000 (5000), got %v", c.TimeFilterMs)
	}
}

func TestStoreMeasurementsFirstWins(t *testing.T) {
	rs := simdata.New("sim-cfg")
	const doc = `[
      {"performLocalization": false, "efmBitSets": [], "classificationModes": [], "autoLossRateThOffset": 0, "autoDelayThOffsetMs": 0, "storeMeasurements": true},
      {"performLocalization": false, "efmBitSets": [], "classificationModes": [], "autoLossRateThOffset": 0, "autoDelayThOffsetMs": 0, "storeMeasurements": false}
    ]`
	cfgs, err := ResolveAll([]byte(doc), rs)
	if err != nil {
		t.Fatalf("ResolveAll: %v", err)
	}
	if !cfgs[0].StoreMeasurements || !cfgs[1].StoreMeasurements {
		t.Fatalf("expected the first entry's storeMeasurements=true to win for every entry, got %+v", cfgs)
	}
}

func TestResolveThresholdRejectsBothExplicitAndAuto(t *testing.T) {
	rs := simdata.New("sim-cfg")
	const doc = `[{"performLocalization": false, "efmBitSets": [], "classificationModes": [], "lossRateTh": 0.1, "autoLossRateThOffset": 0, "autoDelayThOffsetMs": 0}]`
	if _, err := ResolveAll([]byte(doc), rs); err == nil {
		t.Fatal("expected an error when both lossRateTh and autoLossRateThOffset are set")
	}
}

func TestResolveThresholdRejectsNeitherExplicitNorAuto(t *testing.T) {
	rs := simdata.New("sim-cfg")
	const doc = `[{"performLocalization": false, "efmBitSets": [], "classificationModes": [], "autoDelayThOffsetMs": 0}]`
	if _, err := ResolveAll([]byte(doc), rs); err == nil {
		t.Fatal("expected an error when neither lossRateTh nor autoLossRateThOffset is set")
	}
}

func TestResolveBitSetsRejectsMixedLossAndDelay(t *testing.T) {
	rs := simdata.New("sim-cfg")
	const doc = `[{"performLocalization": false, "efmBitSets": [["SEQ", "SPIN"]], "classificationModes": [], "autoLossRateThOffset": 0, "autoDelayThOffsetMs": 0}]`
	if _, err := ResolveAll([]byte(doc), rs); err == nil {
		t.Fatal("expected an error for a bit set mixing loss and delay bits")
	}
}

func TestAutoThresholdDefaultsToZeroWithNoFailedLinks(t *testing.T) {
	rs := simdata.New("sim-cfg")
	const doc = `[{"performLocalization": false, "efmBitSets": [], "classificationModes": [], "autoLossRateThOffset": 0.01, "autoDelayThOffsetMs": 0}]`
	cfgs, err := ResolveAll([]byte(doc), rs)
	if err != nil {
		t.Fatalf("ResolveAll: %v", err)
	}
	if cfgs[0].LossRateTh != 0 {
		t.Fatalf("expected lossRateTh 0 with no failed links, got %v", cfgs[0].LossRateTh)
	}
}

func TestParseDocumentRejectsEmptyArray(t *testing.T) {
	if _, err := ResolveAll([]byte(`[]`), simdata.New("sim-cfg")); err == nil {
		t.Fatal("expected an error for an empty analysis config document")
	}
}
