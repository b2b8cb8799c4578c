package efmconfig

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/COMSYS/ns3-efm-study-overview/internal/classify"
	"github.com/COMSYS/ns3-efm-study-overview/internal/efm"
	"github.com/COMSYS/ns3-efm-study-overview/internal/localize"
	"github.com/COMSYS/ns3-efm-study-overview/internal/selection"
	"github.com/COMSYS/ns3-efm-study-overview/internal/simdata"
)

// ObserverSet is one resolved observerSets element.
type ObserverSet struct {
	Observers []uint32
	Metadata  map[string]interface{}
}

// SimFilter is the resolved simFilter sub-object.
type SimFilter struct {
	LBitTriggeredMonitoring   bool
	RemoveLastXSpinTransients int
}

// FlowSelectionStrategy is one resolved flowSelectionStrategies entry: the
// selection package's strategy/propagation knobs plus the raw name, which
// orchestrate needs verbatim for the output document's "flowSelection"
// field.
type FlowSelectionStrategy struct {
	Name      string
	Selection selection.Config
}

// Config is one analysis config entry, fully resolved against a ResultSet's
// ground truth (for auto-thresholds) and validated.
type Config struct {
	StoreMeasurements    bool
	PerformLocalization  bool
	BitSets              []efm.BitSet
	ClassificationModes  []classify.Mode
	ClassificationBaseID string
	FlowLengthTh         uint64
	ObserverSets         []ObserverSet

	LossRateTh float64
	DelayThMs  float64

	LocalizationMethods     map[localize.Method]localize.Params
	FlowSelectionStrategies []FlowSelectionStrategy

	SimFilter       SimFilter
	TimeFilterMs    float64
	OutputRawValues bool
}

// ResolveAll parses and resolves every entry of an analysis config document
// against rs, applying the storeMeasurements first-wins rule across the
// whole array.
func ResolveAll(raw []byte, rs *simdata.ResultSet) ([]Config, error) {
	entries, err := ParseDocument(raw)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("efmconfig: analysis config document has no entries")
	}

	storeMeasurements := firstStoreMeasurements(entries)

	out := make([]Config, 0, len(entries))
	for i, e := range entries {
		cfg, err := resolveEntry(e, rs, i)
		if err != nil {
			return nil, fmt.Errorf("efmconfig: entry %d: %w", i, err)
		}
		cfg.StoreMeasurements = storeMeasurements
		out = append(out, cfg)
	}
	return out, nil
}

// firstStoreMeasurements returns the first entry's explicitly-set
// storeMeasurements value, or false if none sets it.
func firstStoreMeasurements(entries []EntryJSON) bool {
	for _, e := range entries {
		if e.StoreMeasurements != nil {
			return *e.StoreMeasurements
		}
	}
	return false
}

func resolveEntry(e EntryJSON, rs *simdata.ResultSet, index int) (Config, error) {
	bitSets, err := resolveBitSets(e.EfmBitSets)
	if err != nil {
		return Config{}, err
	}
	modes, err := resolveModes(e.ClassificationModes)
	if err != nil {
		return Config{}, err
	}
	observerSets, err := resolveObserverSets(e.ObserverSets)
	if err != nil {
		return Config{}, err
	}
	lossTh, err := resolveThreshold("lossRateTh", "autoLossRateThOffset", e.LossRateTh, e.AutoLossRateThOffset, nonzeroLossRates(rs))
	if err != nil {
		return Config{}, err
	}
	delayTh, err := resolveThreshold("delayThMs", "autoDelayThOffsetMs", e.DelayThMs, e.AutoDelayThOffsetMs, nonzeroDelays(rs))
	if err != nil {
		return Config{}, err
	}
	methods, err := resolveLocalizationMethods(e.LocalizationMethods)
	if err != nil {
		return Config{}, err
	}
	strategies, err := resolveFlowSelectionStrategies(e.FlowSelectionStrategies)
	if err != nil {
		return Config{}, err
	}

	baseID := fmt.Sprintf("default_id_%d", index)
	if e.ClassificationBaseID != nil {
		baseID = *e.ClassificationBaseID
	}

	var simFilter SimFilter
	if e.SimFilter != nil {
		simFilter = SimFilter{
			LBitTriggeredMonitoring:   e.SimFilter.LBitTriggeredMonitoring,
			RemoveLastXSpinTransients: e.SimFilter.RemoveLastXSpinTransients,
		}
	}

	return Config{
		PerformLocalization:     e.PerformLocalization,
		BitSets:                 bitSets,
		ClassificationModes:     modes,
		ClassificationBaseID:    baseID,
		FlowLengthTh:            e.FlowLengthTh,
		ObserverSets:            observerSets,
		LossRateTh:              lossTh,
		DelayThMs:               delayTh,
		LocalizationMethods:     methods,
		FlowSelectionStrategies: strategies,
		SimFilter:               simFilter,
		TimeFilterMs:            e.TimeFilterMs * 1000,
		OutputRawValues:         e.OutputRawValues,
	}, nil
}

func resolveBitSets(raw [][]string) ([]efm.BitSet, error) {
	out := make([]efm.BitSet, 0, len(raw))
	for _, names := range raw {
		bits := make([]efm.Bit, 0, len(names))
		for _, n := range names {
			b, err := efm.ParseBit(n)
			if err != nil {
				return nil, err
			}
			bits = append(bits, b)
		}
		set, err := efm.NewBitSet(bits)
		if err != nil {
			return nil, err
		}
		out = append(out, set)
	}
	return out, nil
}

func resolveModes(raw []string) ([]classify.Mode, error) {
	out := make([]classify.Mode, 0, len(raw))
	for _, n := range raw {
		m, err := classify.ParseMode(n)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// resolveObserverSets decodes each observerSets element as either a bare
// array of node ids or a `{observers, metadata}` object.
func resolveObserverSets(raw []json.RawMessage) ([]ObserverSet, error) {
	out := make([]ObserverSet, 0, len(raw))
	for i, r := range raw {
		var nodes []uint32
		if err := json.Unmarshal(r, &nodes); err == nil {
			out = append(out, ObserverSet{Observers: nodes})
			continue
		}
		var obj ObserverSetEntryJSON
		if err := json.Unmarshal(r, &obj); err != nil {
			return nil, fmt.Errorf("observerSets[%d]: neither a node-id array nor an {observers,metadata} object: %w", i, err)
		}
		out = append(out, ObserverSet{Observers: obj.Observers, Metadata: obj.Metadata})
	}
	return out, nil
}

// resolveThreshold enforces the "exactly one of explicit/auto" rule and
// applies the auto-threshold derivation when the auto field is set.
func resolveThreshold(explicitName, autoName string, explicit, autoOffset *float64, nonzero []float64) (float64, error) {
	if explicit != nil && autoOffset != nil {
		return 0, fmt.Errorf("%s and %s are mutually exclusive", explicitName, autoName)
	}
	if explicit == nil && autoOffset == nil {
		return 0, fmt.Errorf("exactly one of %s or %s is required", explicitName, autoName)
	}
	if explicit != nil {
		return *explicit, nil
	}
	if len(nonzero) == 0 {
		return 0, nil
	}
	min := nonzero[0]
	for _, v := range nonzero[1:] {
		if v < min {
			min = v
		}
	}
	th := *autoOffset + min
	if th < 0 {
		return 0, nil
	}
	return th, nil
}

func nonzeroLossRates(rs *simdata.ResultSet) []float64 {
	if rs == nil {
		return nil
	}
	var out []float64
	for _, info := range rs.FailedLinks {
		if info.LossRate > 0 {
			out = append(out, info.LossRate)
		}
	}
	return out
}

func nonzeroDelays(rs *simdata.ResultSet) []float64 {
	if rs == nil {
		return nil
	}
	var out []float64
	for _, info := range rs.FailedLinks {
		if info.DelayMs > 0 {
			out = append(out, info.DelayMs)
		}
	}
	return out
}

func resolveLocalizationMethods(raw map[string]map[string]float64) (map[localize.Method]localize.Params, error) {
	out := make(map[localize.Method]localize.Params, len(raw))
	for name, params := range raw {
		m, err := localize.ParseMethod(name)
		if err != nil {
			return nil, err
		}
		out[m] = paramsFromMap(params)
	}
	return out, nil
}

func paramsFromMap(m map[string]float64) localize.Params {
	return localize.Params{
		WThresh:   m["wthresh"],
		DLCThresh: m["dlcthresh"],
		Winc:      m["winc"],
		WincLvl1:  m["winc_lvl1"],
		WincLvl2:  m["winc_lvl2"],
		WincLvl3:  m["winc_lvl3"],
		WScale:    m["wscale"],
		WDec:      m["wdec"],
		PathScale: m["pathscale"] != 0,
		Normalize: m["normalize"] != 0,
		Tau:       m["tau"],
	}
}

// resolveFlowSelectionStrategies resolves each flowSelectionStrategies key,
// splitting the "_FIXED_FLOWS" suffix into selection.Config.Propagate.
func resolveFlowSelectionStrategies(raw map[string]map[string]float64) ([]FlowSelectionStrategy, error) {
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]FlowSelectionStrategy, 0, len(raw))
	for _, name := range names {
		strategy, propagate, err := parseStrategyName(name)
		if err != nil {
			return nil, err
		}
		out = append(out, FlowSelectionStrategy{
			Name: name,
			Selection: selection.Config{
				Strategy:  strategy,
				FlowCount: int(raw[name]["flow_count"]),
				Propagate: propagate,
			},
		})
	}
	return out, nil
}

func parseStrategyName(name string) (selection.Strategy, bool, error) {
	propagate := false
	base := name
	if strings.HasSuffix(name, "_FIXED_FLOWS") {
		propagate = true
		base = strings.TrimSuffix(name, "_FIXED_FLOWS")
	} else {
		base = strings.TrimSuffix(name, "_FLOWS")
	}
	switch base {
	case "ALL":
		return selection.StrategyAll, propagate, nil
	case "RANDOM":
		return selection.StrategyRandom, propagate, nil
	case "COVERAGE":
		return selection.StrategyCoverage, propagate, nil
	default:
		return 0, false, fmt.Errorf("unknown flow selection strategy %q", name)
	}
}
