package accum

import (
	"sort"

	"github.com/COMSYS/ns3-efm-study-overview/internal/efmio"
	"github.com/COMSYS/ns3-efm-study-overview/internal/simdata"
)

// AllLinks returns the deduplicated union of a result set's edge and core
// links, sorted by (src, dst) — the output document's "allLinks".
func AllLinks(rs *simdata.ResultSet) []simdata.Link {
	seen := make(map[simdata.Link]bool, len(rs.EdgeLinks)+len(rs.CoreLinks))
	var out []simdata.Link
	for _, l := range rs.EdgeLinks {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	for _, l := range rs.CoreLinks {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Src != out[j].Src {
			return out[i].Src < out[j].Src
		}
		return out[i].Dst < out[j].Dst
	})
	return out
}

// BuildFlowPathMap renders every imported flow's end-to-end node sequence,
// keyed by its serialized 5-tuple ("flowPathMap").
func BuildFlowPathMap(rs *simdata.ResultSet) map[string][]uint32 {
	out := make(map[string][]uint32, len(rs.FlowTuples))
	for id, tuple := range rs.FlowTuples {
		out[efmio.FlowTupleKey(tuple)] = rs.FlowPath(id)
	}
	return out
}
