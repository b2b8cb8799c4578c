package accum

import (
	"encoding/json"
	"fmt"

	"github.com/COMSYS/ns3-efm-study-overview/internal/classify"
	"github.com/COMSYS/ns3-efm-study-overview/internal/efmio"
	"github.com/COMSYS/ns3-efm-study-overview/internal/efmwarn"
	"github.com/COMSYS/ns3-efm-study-overview/internal/simdata"
)

// Accumulator collects every (observer, bit) result bucket orchestrate
// produces for one file group's run, across however many (config,
// observerSet, bitSet) combinations it evaluates, and assembles them into
// the single output document once the run completes. A given
// (observer, bit) key may be written by more than one combination (e.g.
// two configs requesting the same bit under the same thresholds); the
// later write wins, which is a no-op whenever the combinations agree.
type Accumulator struct {
	flow, active map[string]ObserverBitResult
	flowRaw      map[string][]float64
	activeRaw    map[string][]float64

	paths    map[string]ObserverBitResult
	pathsRaw map[string][]float64
}

// NewAccumulator returns an empty Accumulator, ready for one run.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		flow:      make(map[string]ObserverBitResult),
		active:    make(map[string]ObserverBitResult),
		flowRaw:   make(map[string][]float64),
		activeRaw: make(map[string][]float64),
		paths:     make(map[string]ObserverBitResult),
		pathsRaw:  make(map[string][]float64),
	}
}

// AddClassified merges one classification run's per-(observer, bit)
// summaries into the run-wide observerFlowResults/observerActiveResults
// accumulation. Call once per (config, bitSet, mode) combination
// orchestrate evaluates.
func (a *Accumulator) AddClassified(set *classify.Set) {
	flow, active, flowRaw, activeRaw := BuildObserverResults(set)
	mergeResults(a.flow, flow)
	mergeResults(a.active, active)
	mergeRaw(a.flowRaw, flowRaw)
	mergeRaw(a.activeRaw, activeRaw)
	classifiedBucketsTotal.Add(float64(len(flow) + len(active)))
}

// AddPaths merges a result set's path-aggregate summaries into the
// run-wide observerPathResults accumulation. Path aggregates are a
// property of the imported result set, not of any one classification
// combination, so this is typically called once per result set rather
// than once per combination.
func (a *Accumulator) AddPaths(rs *simdata.ResultSet) {
	results, raw := BuildPathResults(rs)
	mergeResults(a.paths, results)
	mergeRaw(a.pathsRaw, raw)
}

// Build assembles the output document for one file group's run: rs's
// topology/ground-truth tables, this accumulator's observer result
// buckets (raw value series included only when outputRawValues is set),
// and the localization results orchestrate has already produced and
// converted via efmio.LocalizeResultToJSON. It also records warnings'
// per-kind counts as Prometheus gauges and logs the end-of-run warning
// report.
func (a *Accumulator) Build(
	rs *simdata.ResultSet,
	rawConfig json.RawMessage,
	outputRawValues bool,
	localizationResults []efmio.LocalizationResultJSON,
	warnings *efmwarn.Tally,
) (*efmio.OutputDocument, error) {
	recordWarnings(warnings)
	if warnings != nil {
		warnings.LogSummary()
	}

	flowJSON, err := marshalResults(a.flow)
	if err != nil {
		return nil, fmt.Errorf("accum: marshaling observerFlowResults: %w", err)
	}
	activeJSON, err := marshalResults(a.active)
	if err != nil {
		return nil, fmt.Errorf("accum: marshaling observerActiveResults: %w", err)
	}
	pathJSON, err := marshalResults(a.paths)
	if err != nil {
		return nil, fmt.Errorf("accum: marshaling observerPathResults: %w", err)
	}

	doc := &efmio.OutputDocument{
		SimID:                rs.SimID,
		Config:               rawConfig,
		FlowPathMap:          BuildFlowPathMap(rs),
		FailedLinks:          efmio.FailedLinksToJSON(rs.FailedLinks),
		BackboneOverrides:    efmio.FailedLinksToJSON(rs.BackboneOverrides),
		AllLinks:             efmio.LinksToJSON(AllLinks(rs)),
		EdgeLinks:            efmio.LinksToJSON(rs.EdgeLinks),
		CoreLinks:            efmio.LinksToJSON(rs.CoreLinks),
		LinkGroundtruthStats: efmio.LinkGroundTruthToJSON(BuildLinkGroundtruthStats(rs)),

		ObserverFlowResults:   flowJSON,
		ObserverActiveResults: activeJSON,
		ObserverPathResults:   pathJSON,

		LocalizationResults: localizationResults,
	}

	if outputRawValues {
		if doc.ObserverFlowRawValues, err = marshalRaw(a.flowRaw); err != nil {
			return nil, fmt.Errorf("accum: marshaling observerFlowRawValues: %w", err)
		}
		if doc.ObserverActiveRawValues, err = marshalRaw(a.activeRaw); err != nil {
			return nil, fmt.Errorf("accum: marshaling observerActiveRawValues: %w", err)
		}
		if doc.ObserverPathRawValues, err = marshalRaw(a.pathsRaw); err != nil {
			return nil, fmt.Errorf("accum: marshaling observerPathRawValues: %w", err)
		}
	}

	outputDocumentsTotal.Inc()
	return doc, nil
}

func marshalResults(m map[string]ObserverBitResult) (json.RawMessage, error) {
	return json.Marshal(m)
}

// marshalRaw drains every RawValues series exactly once, since a raw-value
// series is a single-use generator and the output document is the
// only consumer.
func marshalRaw(m map[string][]float64) (json.RawMessage, error) {
	out := make(map[string][]float64, len(m))
	for k, v := range m {
		out[k] = NewRawValues(v).Drain()
	}
	return json.Marshal(out)
}
