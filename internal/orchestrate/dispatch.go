package orchestrate

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/COMSYS/ns3-efm-study-overview/internal/cache"
	"github.com/COMSYS/ns3-efm-study-overview/internal/classify"
	"github.com/COMSYS/ns3-efm-study-overview/internal/efm"
	"github.com/COMSYS/ns3-efm-study-overview/internal/efmconfig"
	"github.com/COMSYS/ns3-efm-study-overview/internal/efmio"
	"github.com/COMSYS/ns3-efm-study-overview/internal/efmwarn"
	"github.com/COMSYS/ns3-efm-study-overview/internal/linkset"
	"github.com/COMSYS/ns3-efm-study-overview/internal/localize"
	"github.com/COMSYS/ns3-efm-study-overview/internal/localize/lp"
	"github.com/COMSYS/ns3-efm-study-overview/internal/selection"
	"github.com/COMSYS/ns3-efm-study-overview/internal/simdata"
)

// unitOutput is one unit's computed results, written into a pre-indexed
// slot so the worker pool's completion order never affects the final
// document.
type unitOutput struct {
	classified []*classify.Set // one per bit set, for accumulator merging
	entry      *efmio.LocalizationResultJSON
}

// runUnit executes classification and localization for one (config,
// observer set, mode, flow selection strategy) combination.
func runUnit(ctx context.Context, rs *simdata.ResultSet, u unit, store cache.Store, solver lp.Solver, warn *efmwarn.Tally) (unitOutput, error) {
	cfg := u.cfg
	observers := observerSetMap(u.obsSet.Observers)

	// Run the flow selector twice when this strategy requires FIXED_FLOWS
	// propagation; classification always uses the non-propagating pass.
	nonProp := u.strategy.Selection
	nonProp.Propagate = false
	selNonProp := selection.Select(rs, u.obsSet.Observers, nonProp)

	var selProp selection.Result
	if u.strategy.Selection.Propagate {
		selProp = selection.Select(rs, u.obsSet.Observers, u.strategy.Selection)
	}

	out := unitOutput{}
	var results []efmio.LocalizeResultJSON

	for _, bitSet := range cfg.BitSets {
		classifyCfg := classify.Config{
			Observers:    observers,
			FlowSelect:   selNonProp,
			Bits:         bitSet,
			LossTh:       cfg.LossRateTh,
			DelayThMs:    cfg.DelayThMs,
			FlowLenTh:    cfg.FlowLengthTh,
			Mode:         u.mode,
			TimeFilterMs: cfg.TimeFilterMs,
			Warn:         warn,
		}

		key := classifyCacheKey(rs.SimID, filterLabel(cfg.SimFilter), u.obsSet.Observers, bitSet, u.mode, cfg.LossRateTh, cfg.DelayThMs, cfg.FlowLengthTh, cfg.TimeFilterMs, u.strategy.Name)
		set, err := buildClassifySet(ctx, store, key, rs, classifyCfg)
		if err != nil {
			return unitOutput{}, err
		}
		out.classified = append(out.classified, set)

		if !cfg.PerformLocalization {
			continue
		}

		var propCfg *classify.Config
		if u.strategy.Selection.Propagate {
			p := classifyCfg
			p.FlowSelect = selProp
			propCfg = &p
		}

		methodResults, err := runMethods(rs, u, classifyCfg, propCfg, set, bitSet, solver, warn)
		if err != nil {
			return unitOutput{}, err
		}
		results = append(results, methodResults...)
	}

	if cfg.PerformLocalization {
		effConfig, err := effectiveConfigJSON(cfg, u, selNonProp)
		if err != nil {
			return unitOutput{}, err
		}
		out.entry = &efmio.LocalizationResultJSON{
			Filter:        filterLabel(cfg.SimFilter),
			Config:        effConfig,
			FlowSelection: u.strategy.Name,
			Results:       results,
		}
	}
	return out, nil
}

// matrixVariant is one (core/all x regular/combined x selection pass)
// dense-system input a matrix method can be dispatched against.
type matrixVariant struct {
	li     *linkset.LinkIndex
	bucket *linkset.Bucket
}

// collectMatrixVariants builds every matrix-shaped input a matrix method
// call for: both link universes under the non-propagating selection,
// the combined flow set variants when the bit set is combinable, and
// both again under the propagating selection if this strategy is a
// FIXED_FLOWS variant. Returns nil under PERFECT mode, which needs no
// linear-method input.
func collectMatrixVariants(rs *simdata.ResultSet, classifyCfg classify.Config, propCfg *classify.Config, observers map[uint32]bool, bits []efm.Bit, combinable bool) []matrixVariant {
	if classifyCfg.Mode == classify.ModePerfect {
		return nil
	}
	var variants []matrixVariant
	add := func(cfg classify.Config, universe linkset.Universe, combined bool) {
		var li *linkset.LinkIndex
		var bucket *linkset.Bucket
		if combined {
			li, bucket = buildCombinedBucket(rs, cfg, universe, observers, bits)
		} else {
			li, bucket = buildLinkBucket(rs, cfg, universe, observers, bits)
		}
		if bucket != nil && len(bucket.A) > 0 {
			variants = append(variants, matrixVariant{li: li, bucket: bucket})
		}
	}
	passes := []classify.Config{classifyCfg}
	if propCfg != nil {
		passes = append(passes, *propCfg)
	}
	for _, pass := range passes {
		add(pass, linkset.UniverseCoreOnly, false)
		add(pass, linkset.UniverseAll, false)
		if combinable {
			add(pass, linkset.UniverseCoreOnly, true)
			add(pass, linkset.UniverseAll, true)
		}
	}
	return variants
}

// runMethods dispatches every requested localization method against one
// bit set's classified paths, building link-characteristic and combined
// flow sets lazily and only when a matrix method is actually requested.
func runMethods(rs *simdata.ResultSet, u unit, classifyCfg classify.Config, propCfg *classify.Config, set *classify.Set, bitSet efm.BitSet, solver lp.Solver, warn *efmwarn.Tally) ([]efmio.LocalizeResultJSON, error) {
	bits := bitSet.Bits()
	if len(bits) == 0 {
		return nil, nil
	}
	representative := bits[0]
	combinable := representative == efm.BitQ || representative == efm.BitTCPDART || representative == efm.BitSPIN

	methods := make([]localize.Method, 0, len(u.cfg.LocalizationMethods))
	for m := range u.cfg.LocalizationMethods {
		methods = append(methods, m)
	}
	sort.Slice(methods, func(i, j int) bool { return methods[i] < methods[j] })

	var paths []classify.Path
	for _, o := range sortedObserverKeys(classifyCfg.Observers) {
		for _, b := range bits {
			paths = append(paths, set.Paths(o, b)...)
		}
	}

	var matrixVariants []matrixVariant
	matrixBuilt := false

	var out []efmio.LocalizeResultJSON
	for _, method := range methods {
		params := u.cfg.LocalizationMethods[method]
		switch method {
		case localize.MethodLPWithSlack:
			r, err := localize.RunLPWithSlack(paths, representative, params, bitSet, solver, warn)
			if err != nil {
				return nil, err
			}
			out = append(out, efmio.LocalizeResultToJSON(r))
		case localize.MethodLSQR:
			if !matrixBuilt {
				matrixVariants = collectMatrixVariants(rs, classifyCfg, propCfg, classifyCfg.Observers, bits, combinable)
				matrixBuilt = true
			}
			for _, v := range matrixVariants {
				r, err := localize.RunMatrix(v.bucket, v.li, representative, params, bitSet, warn)
				if err != nil {
					return nil, err
				}
				out = append(out, efmio.LocalizeResultToJSON(r))
			}
		default:
			r, err := localize.RunClassified(paths, method, params, bitSet)
			if err != nil {
				return nil, err
			}
			out = append(out, efmio.LocalizeResultToJSON(r))
		}
	}
	return out, nil
}

// buildLinkBucket walks linkset.Build for one universe and merges every
// (observer, bit) bucket in scope into a single combined bucket, since
// localize.RunMatrix takes one bucket per call while a bit set may name
// several bits sharing the same loss/delay semantics.
func buildLinkBucket(rs *simdata.ResultSet, classifyCfg classify.Config, universe linkset.Universe, observers map[uint32]bool, bits []efm.Bit) (*linkset.LinkIndex, *linkset.Bucket) {
	ls := linkset.Build(rs, linkset.Config{Config: classifyCfg, Universe: universe})
	return ls.Index, mergeLinksetBuckets(ls, observers, bits)
}

func buildCombinedBucket(rs *simdata.ResultSet, classifyCfg classify.Config, universe linkset.Universe, observers map[uint32]bool, bits []efm.Bit) (*linkset.LinkIndex, *linkset.Bucket) {
	ls := linkset.BuildCombined(rs, linkset.Config{Config: classifyCfg, Universe: universe})
	return ls.Index, mergeLinksetBuckets(ls, observers, bits)
}

func mergeLinksetBuckets(ls *linkset.Set, observers map[uint32]bool, bits []efm.Bit) *linkset.Bucket {
	merged := &linkset.Bucket{}
	for _, o := range sortedObserverKeys(observers) {
		for _, b := range bits {
			bk, ok := ls.Bucket(o, b)
			if !ok {
				continue
			}
			merged.A = append(merged.A, bk.A...)
			merged.B = append(merged.B, bk.B...)
		}
	}
	return merged
}

// sortedObserverKeys returns an observer set's ids in ascending order, so
// that the row order fed into a connectivity matrix or a first-seen
// tie-break never depends on Go's randomized map iteration order.
func sortedObserverKeys(observers map[uint32]bool) []uint32 {
	out := make([]uint32, 0, len(observers))
	for o := range observers {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// filterLabel renders a simFilter config as the output document's
// "filter" string.
func filterLabel(f efmconfig.SimFilter) string {
	var parts []string
	if f.LBitTriggeredMonitoring {
		parts = append(parts, "l-bit-triggered")
	}
	if f.RemoveLastXSpinTransients > 0 {
		parts = append(parts, fmt.Sprintf("spin-transient-trim-%d", f.RemoveLastXSpinTransients))
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}

// effectiveConfigEntry is the on-disk shape of a localizationResults
// entry's "config" field: the effective thresholds, flow ids,
// classification mode, and observer set used.
type effectiveConfigEntry struct {
	ClassificationBaseID string                      `json:"classificationBaseId"`
	ObserverSet          []uint32                    `json:"observerSet"`
	ClassificationMode   string                      `json:"classificationMode"`
	LossRateTh           float64                     `json:"lossRateTh"`
	DelayThMs            float64                     `json:"delayThMs"`
	FlowLengthTh         uint64                      `json:"flowLengthTh"`
	TimeFilterMs         float64                     `json:"timeFilterMs"`
	FlowSelection        map[string][]simdata.FlowID `json:"flowSelection"`
}

func effectiveConfigJSON(cfg efmconfig.Config, u unit, sel selection.Result) (json.RawMessage, error) {
	flowSel := make(map[string][]simdata.FlowID, len(sel))
	for observer, flows := range sel {
		ids := make([]simdata.FlowID, 0, len(flows))
		for id := range flows {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		flowSel[fmt.Sprintf("%d", observer)] = ids
	}
	entry := effectiveConfigEntry{
		ClassificationBaseID: cfg.ClassificationBaseID,
		ObserverSet:          u.obsSet.Observers,
		ClassificationMode:   u.mode.String(),
		LossRateTh:           cfg.LossRateTh,
		DelayThMs:            cfg.DelayThMs,
		FlowLengthTh:         cfg.FlowLengthTh,
		TimeFilterMs:         cfg.TimeFilterMs,
		FlowSelection:        flowSel,
	}
	return json.Marshal(entry)
}
