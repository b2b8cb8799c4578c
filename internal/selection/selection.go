// Package selection implements the flow-selection strategies: ALL,
// RANDOM and COVERAGE, each producing an observerId -> set<flowId> map
// consumed by classify.Config.FlowSelect.
package selection

import (
	"math/rand"
	"sort"

	"github.com/COMSYS/ns3-efm-study-overview/internal/simdata"
)

// Strategy is the closed set of selection strategies.
type Strategy int

const (
	StrategyAll Strategy = iota
	StrategyRandom
	StrategyCoverage
)

// Config parameterizes one selection run.
type Config struct {
	Strategy Strategy
	// FlowCount bounds flows drawn per observer under RANDOM/COVERAGE.
	FlowCount int
	// Propagate enables FIXED_FLOWS semantics: a flow picked at one
	// observer is also tracked by every other observer on its forward
	// path, independent of that observer's own remaining capacity.
	Propagate bool
	// RNG backs StrategyRandom; a nil RNG defaults to an unseeded one.
	// A seedable RNG is acceptable; determinism under propagation is
	// not required.
	RNG *rand.Rand
}

// Result is observerId -> set<flowId>.
type Result map[uint32]map[simdata.FlowID]bool

func (r Result) add(observer uint32, flow simdata.FlowID) {
	m, ok := r[observer]
	if !ok {
		m = make(map[simdata.FlowID]bool)
		r[observer] = m
	}
	m[flow] = true
}

// Select runs the configured strategy over one result set and observer set.
func Select(rs *simdata.ResultSet, observers []uint32, cfg Config) Result {
	switch cfg.Strategy {
	case StrategyRandom:
		return selectRandom(rs, observers, cfg)
	case StrategyCoverage:
		return selectCoverage(rs, observers, cfg)
	default:
		return selectAll(rs, observers)
	}
}

// flowsSeenBy returns, in ascending flow-id order, every flow id an observer
// has its own recorded measurements for.
func flowsSeenBy(rs *simdata.ResultSet, observer uint32) []simdata.FlowID {
	vp, ok := rs.LookupVantagePoint(observer)
	if !ok || vp.Type != simdata.VPObserver {
		return nil
	}
	out := make([]simdata.FlowID, 0, len(vp.Flows()))
	for id := range vp.Flows() {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func selectAll(rs *simdata.ResultSet, observers []uint32) Result {
	out := make(Result)
	for _, o := range observers {
		for _, f := range flowsSeenBy(rs, o) {
			out.add(o, f)
		}
	}
	return out
}

// propagate tracks flow at every observer on its own forward path,
// independent of per-observer capacity: a propagated flow's remaining
// capacity at each observer continues to be filled.
func propagate(rs *simdata.ResultSet, out Result, flow simdata.FlowID) {
	for _, node := range rs.FlowPath(flow) {
		out.add(node, flow)
	}
}

func selectRandom(rs *simdata.ResultSet, observers []uint32, cfg Config) Result {
	rng := cfg.RNG
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	out := make(Result)
	for _, o := range observers {
		candidates := flowsSeenBy(rs, o)
		rng.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })
		n := cfg.FlowCount
		if n > len(candidates) {
			n = len(candidates)
		}
		for _, f := range candidates[:n] {
			already := out[o][f]
			if already {
				continue
			}
			out.add(o, f)
			if cfg.Propagate {
				propagate(rs, out, f)
			}
		}
	}
	return out
}

// selectCoverage greedily picks, per observer, the flow adding the most
// link-path coverage not yet selected at that observer; falls back to the
// longest remaining flow once no flow adds new coverage. Ties always break
// toward the smaller flow id.
func selectCoverage(rs *simdata.ResultSet, observers []uint32, cfg Config) Result {
	out := make(Result)
	for _, o := range observers {
		candidates := flowsSeenBy(rs, o)
		covered := make(map[simdata.Link]bool)
		remaining := make(map[simdata.FlowID]bool, len(candidates))
		for _, f := range candidates {
			remaining[f] = true
		}
		paths := make(map[simdata.FlowID]simdata.LinkPath, len(candidates))
		for _, f := range candidates {
			paths[f] = simdata.FromNodes(rs.FlowPath(f))
		}

		for i := 0; i < cfg.FlowCount && len(remaining) > 0; i++ {
			best, bestGain := pickByCoverageGain(candidates, remaining, paths, covered)
			if bestGain == 0 {
				best = pickLongestRemaining(candidates, remaining, paths)
			}
			delete(remaining, best)
			out.add(o, best)
			for _, l := range paths[best] {
				covered[l] = true
			}
			if cfg.Propagate {
				propagate(rs, out, best)
			}
		}
	}
	return out
}

func pickByCoverageGain(candidates []simdata.FlowID, remaining map[simdata.FlowID]bool, paths map[simdata.FlowID]simdata.LinkPath, covered map[simdata.Link]bool) (simdata.FlowID, int) {
	var best simdata.FlowID
	bestGain := -1
	for _, f := range candidates {
		if !remaining[f] {
			continue
		}
		gain := 0
		for _, l := range paths[f] {
			if !covered[l] {
				gain++
			}
		}
		if gain > bestGain {
			bestGain = gain
			best = f
		}
	}
	if bestGain < 0 {
		bestGain = 0
	}
	return best, bestGain
}

func pickLongestRemaining(candidates []simdata.FlowID, remaining map[simdata.FlowID]bool, paths map[simdata.FlowID]simdata.LinkPath) simdata.FlowID {
	var best simdata.FlowID
	bestLen := -1
	for _, f := range candidates {
		if !remaining[f] {
			continue
		}
		if l := len(paths[f]); l > bestLen {
			bestLen = l
			best = f
		}
	}
	return best
}
