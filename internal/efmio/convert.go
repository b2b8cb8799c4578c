package efmio

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/COMSYS/ns3-efm-study-overview/internal/localize"
	"github.com/COMSYS/ns3-efm-study-overview/internal/simdata"
)

// LinkToJSON converts an internal link to its on-disk pair shape.
func LinkToJSON(l simdata.Link) LinkJSON { return LinkJSON{Src: l.Src, Dst: l.Dst} }

// LinksToJSON converts a slice of links, preserving order.
func LinksToJSON(links []simdata.Link) []LinkJSON {
	out := make([]LinkJSON, len(links))
	for i, l := range links {
		out[i] = LinkToJSON(l)
	}
	return out
}

// FailedLinksToJSON converts the ground-truth failed-link table to the
// output document's array shape, sorted by (src, dst) for determinism.
func FailedLinksToJSON(m map[simdata.Link]simdata.FailedLinkInfo) []FailedLinkJSON {
	out := make([]FailedLinkJSON, 0, len(m))
	for l, info := range m {
		out = append(out, FailedLinkJSON{NodeA: l.Src, NodeB: l.Dst, LossRate: info.LossRate, DelayMs: info.DelayMs})
	}
	sortFailedLinks(out)
	return out
}

func sortFailedLinks(fl []FailedLinkJSON) {
	for i := 1; i < len(fl); i++ {
		for j := i; j > 0 && linkLess(fl[j], fl[j-1]); j-- {
			fl[j], fl[j-1] = fl[j-1], fl[j]
		}
	}
}

func linkLess(a, b FailedLinkJSON) bool {
	if a.NodeA != b.NodeA {
		return a.NodeA < b.NodeA
	}
	return a.NodeB < b.NodeB
}

// linkKey renders a link as the "src->dst" string used for LinkRatings map
// keys, since JSON object keys must be strings.
func linkKey(l simdata.Link) string { return fmt.Sprintf("%d->%d", l.Src, l.Dst) }

// LocalizeResultToJSON converts one localize.Result to its on-disk shape.
func LocalizeResultToJSON(r localize.Result) LocalizeResultJSON {
	failed := make([]simdata.Link, 0, len(r.FailedLinks))
	for l, bad := range r.FailedLinks {
		if bad {
			failed = append(failed, l)
		}
	}
	ratings := make(map[string]float64, len(r.LinkRatings))
	for l, v := range r.LinkRatings {
		ratings[linkKey(l)] = v
	}
	return LocalizeResultJSON{
		Method:      r.Method.String(),
		FailedLinks: LinksToJSON(sortedLinks(failed)),
		LinkRatings: ratings,
	}
}

func sortedLinks(links []simdata.Link) []simdata.Link {
	out := append([]simdata.Link(nil), links...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && less(out[j], out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func less(a, b simdata.Link) bool {
	if a.Src != b.Src {
		return a.Src < b.Src
	}
	return a.Dst < b.Dst
}

// LinkGroundTruthToJSON converts a link ground-truth table to the output
// document's array shape, sorted by (src, dst) for determinism.
func LinkGroundTruthToJSON(m map[simdata.Link]simdata.LinkGTStats) []LinkGTStatJSON {
	out := make([]LinkGTStatJSON, 0, len(m))
	for l, gt := range m {
		out = append(out, LinkGTStatJSON{
			Src:             l.Src,
			Dst:             l.Dst,
			Lost:            gt.Lost,
			Received:        gt.Received,
			DelayPercentile: percentileKeysToStrings(gt.DelayPercentile),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Src != out[j].Src {
			return out[i].Src < out[j].Src
		}
		return out[i].Dst < out[j].Dst
	})
	return out
}

func percentileKeysToStrings(m map[int]float64) map[string]float64 {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[strconv.Itoa(k)] = v
	}
	return out
}

// FlowTupleKey renders a flow's 5-tuple as the output document's
// flowPathMap string key.
func FlowTupleKey(t simdata.FiveTuple) string {
	return fmt.Sprintf("%d:%d->%d:%d/%s", t.SrcNodeID, t.SrcPort, t.DstNodeID, t.DstPort, t.Proto)
}
