package linkset

import (
	"sort"

	"github.com/COMSYS/ns3-efm-study-overview/internal/classify"
	"github.com/COMSYS/ns3-efm-study-overview/internal/efm"
	"github.com/COMSYS/ns3-efm-study-overview/internal/simdata"
)

// combinedEntry is one observer's {path-up-to-it, measurement} sample along
// a single flow's forward path.
type combinedEntry struct {
	observer uint32
	upTo     simdata.LinkPath
	value    float64
	flow     *simdata.ObserverFlow
}

// BuildCombined builds the combined flow set: per eligible flow,
// differential rows between pairs of observers at different path depths.
// Only defined for BitQ, BitTCPDART and BitSPIN; other bits in cfg.Bits are
// ignored. Skipped entirely under ModePerfect (ground truth needs no
// differential characterization).
func BuildCombined(rs *simdata.ResultSet, cfg Config) *Set {
	li := NewLinkIndex(rs, cfg.Universe)
	out := newSet(li)
	if cfg.Mode == classify.ModePerfect {
		return out
	}

	for flowID := range rs.FlowTuples {
		fwdNodes := rs.FlowPath(flowID)
		if len(fwdNodes) < 2 {
			continue
		}
		fwd := simdata.FromNodes(fwdNodes)

		for _, bit := range cfg.Bits.Bits() {
			if bit != efm.BitQ && bit != efm.BitTCPDART && bit != efm.BitSPIN {
				continue
			}
			entries := collectEntries(rs, cfg, flowID, fwdNodes, fwd, bit)
			if len(entries) < 2 {
				continue
			}
			sort.SliceStable(entries, func(i, j int) bool { return len(entries[i].upTo) > len(entries[j].upTo) })
			if bit == efm.BitTCPDART {
				for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
					entries[i], entries[j] = entries[j], entries[i]
				}
			}
			for i := 0; i+1 < len(entries); i++ {
				emitCombinedRow(out, li, bit, entries[i], entries[i+1])
			}
		}
	}
	return out
}

func collectEntries(rs *simdata.ResultSet, cfg Config, flowID simdata.FlowID, fwdNodes []uint32, fwd simdata.LinkPath, bit efm.Bit) []combinedEntry {
	var out []combinedEntry
	for _, observer := range fwdNodes {
		if !cfg.Observers[observer] {
			continue
		}
		if cfg.FlowSelect != nil {
			sel, ok := cfg.FlowSelect[observer]
			if !ok || !sel[flowID] {
				continue
			}
		}
		vp, ok := rs.LookupVantagePoint(observer)
		if !ok {
			continue
		}
		flow, ok := vp.Flow(flowID)
		if !ok {
			continue
		}
		stats := rs.ObserverFlowStats[observer][flowID]
		if stats.TotalEfmPackets == 0 {
			continue
		}
		upTo := fwd.UpTo(observer)
		if len(upTo) < 1 {
			continue
		}
		v, ok := measurementForCombined(bit, flow, cfg.TimeFilterMs)
		if !ok {
			continue
		}
		out = append(out, combinedEntry{observer: observer, upTo: upTo, value: v, flow: flow})
	}
	return out
}

func measurementForCombined(bit efm.Bit, flow *simdata.ObserverFlow, timeFilterMs float64) (float64, bool) {
	switch bit {
	case efm.BitQ:
		return flow.RelativeQBitLoss(), true
	case efm.BitTCPDART:
		return flow.AvgTCPDartDelay()
	case efm.BitSPIN:
		return flow.AvgSpinRTDelay(timeFilterMs)
	default:
		return 0, false
	}
}

// emitCombinedRow drops the row unless long's path is a proper superset of
// short's.
func emitCombinedRow(out *Set, li *LinkIndex, bit efm.Bit, long, short combinedEntry) {
	diff, ok := properSupersetDiff(long.upTo, short.upTo)
	if !ok {
		return
	}
	var b float64
	switch bit {
	case efm.BitQ:
		lossLong := long.flow.AbsoluteQLoss()
		lossShort := short.flow.AbsoluteQLoss()
		totalPacketsLong := float64(long.flow.AbsoluteQPacketCount())
		den := totalPacketsLong - float64(lossShort)
		if den == 0 {
			return
		}
		b = (float64(lossLong) - float64(lossShort)) / den
	default: // BitTCPDART, BitSPIN
		b = long.value - short.value
	}
	bucket := out.ensureBucket(long.observer, bit)
	bucket.addRow(li, diff, b)
}

// properSupersetDiff returns the link-path set difference long \ short, and
// whether long is a proper superset of short's link set.
func properSupersetDiff(long, short simdata.LinkPath) (simdata.LinkPath, bool) {
	shortSet := make(map[simdata.Link]bool, len(short))
	for _, l := range short {
		shortSet[l] = true
	}
	for _, l := range short {
		if !long.ContainsLink(l) {
			return nil, false
		}
	}
	var diff simdata.LinkPath
	for _, l := range long {
		if !shortSet[l] {
			diff = append(diff, l)
		}
	}
	if len(diff) == 0 {
		return nil, false
	}
	return diff, true
}
