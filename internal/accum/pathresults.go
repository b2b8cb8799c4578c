package accum

import (
	"fmt"

	"github.com/COMSYS/ns3-efm-study-overview/internal/efm"
	"github.com/COMSYS/ns3-efm-study-overview/internal/simdata"
)

// BuildPathResults summarizes every vantage point's path aggregates: the
// P-L-set/P-SQ-loss event carriers efmio routes there by group_id.path_id
// ("observerPathResults"). Unlike the flow/active buckets, path
// aggregates are not run through classify — there is no per-bit threshold
// for a path-level carrier — so they are reported as plain packet-count /
// loss summaries per (node, path).
func BuildPathResults(rs *simdata.ResultSet) (results map[string]ObserverBitResult, raw map[string][]float64) {
	results = make(map[string]ObserverBitResult)
	raw = make(map[string][]float64)

	for _, vp := range rs.AllVantagePoints() {
		for pathID, agg := range vp.Paths() {
			values := pathMeasurements(agg)
			if len(values) == 0 {
				continue
			}
			k := fmt.Sprintf("%d/%d", vp.NodeID, pathID)
			results[k] = ObserverBitResult{Observer: vp.NodeID, Bit: "PATH", Stats: ComputeStats(values)}
			raw[k] = values
		}
	}
	return results, raw
}

func pathMeasurements(agg *simdata.PathAggregate) []float64 {
	var values []float64
	for _, e := range agg.Events.Events(efm.KindPLSet) {
		if p, ok := e.Data.(efm.BitSetPCountEvent); ok {
			values = append(values, float64(p.PktCount))
		}
	}
	for _, e := range agg.Events.Events(efm.KindPSQLoss) {
		if p, ok := e.Data.(efm.LossMeasurementEvent); ok {
			values = append(values, float64(p.Loss))
		}
	}
	return values
}
