package accum

import (
	"github.com/COMSYS/ns3-efm-study-overview/internal/efm"
	"github.com/COMSYS/ns3-efm-study-overview/internal/simdata"
)

// gtPercentiles are the fixed percentile points reported per link,
// matching the keys already used by imported ground-truth stats
// ("delay percentiles in μs").
var gtPercentiles = []int{50, 95, 99}

// BuildLinkGroundtruthStats merges each link's imported ground-truth
// counters with delay percentiles derived from the run's own gt-trans-delay
// / gt-app-delay samples, attributed to every link of the sampled flow's
// end-to-end path. A link's imported percentiles (from the trace
// document's gt_stats block) are kept whenever the run carries no such
// samples for it, so a summary-only import still reports ground truth.
func BuildLinkGroundtruthStats(rs *simdata.ResultSet) map[simdata.Link]simdata.LinkGTStats {
	samples := collectLinkDelaySamplesMs(rs)

	out := make(map[simdata.Link]simdata.LinkGTStats, len(rs.LinkGroundTruth))
	for link, gt := range rs.LinkGroundTruth {
		out[link] = gt
	}
	for link, values := range samples {
		gt := out[link]
		pct := percentiles(values, gtPercentiles)
		for p, v := range pct {
			pct[p] = v * 1000 // samples are in ms; DelayPercentile is in μs
		}
		gt.DelayPercentile = pct
		out[link] = gt
	}
	return out
}

func collectLinkDelaySamplesMs(rs *simdata.ResultSet) map[simdata.Link][]float64 {
	out := make(map[simdata.Link][]float64)
	for flowID := range rs.FlowTuples {
		nodes := rs.FlowPath(flowID)
		path := simdata.FromNodes(nodes)
		if len(path) == 0 {
			continue
		}
		for _, nodeID := range nodes {
			vp, ok := rs.LookupVantagePoint(nodeID)
			if !ok {
				continue
			}
			flow, ok := vp.Flow(flowID)
			if !ok {
				flow, ok = vp.HostFlow(flowID)
			}
			if !ok {
				continue
			}
			addGTDelaySamples(out, path, flow.Events.Events(efm.KindGTTransDelay))
			addGTDelaySamples(out, path, flow.Events.Events(efm.KindGTAppDelay))
		}
	}
	return out
}

func addGTDelaySamples(out map[simdata.Link][]float64, path simdata.LinkPath, events []efm.Event) {
	for _, e := range events {
		d, ok := e.Data.(efm.DelayMeasurementEvent)
		if !ok {
			continue
		}
		for _, link := range path {
			out[link] = append(out[link], d.FullDelayMs)
		}
	}
}
