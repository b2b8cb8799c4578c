package classify

import (
	"github.com/COMSYS/ns3-efm-study-overview/internal/efm"
	"github.com/COMSYS/ns3-efm-study-overview/internal/simdata"
)

// processActiveMeasurements classifies PINGLSS/PINGDLY bits over every
// observer's ping pairs.
func processActiveMeasurements(rs *simdata.ResultSet, cfg Config, out *Set) {
	hasPingLoss := cfg.Bits.Len() > 0 && hasBit(cfg.Bits, efm.BitPINGLSS)
	hasPingDelay := hasBit(cfg.Bits, efm.BitPINGDLY)
	if !hasPingLoss && !hasPingDelay {
		return
	}
	for observer := range cfg.Observers {
		vp, ok := rs.LookupVantagePoint(observer)
		if !ok {
			continue
		}
		for _, pair := range vp.ClientPings() {
			path := pingRoute(rs, observer, pair.TargetNodeID).Append(pingRoute(rs, pair.TargetNodeID, observer))
			emitActive(rs, out, cfg, observer, path, pair, efm.KindPingRTLoss, efm.KindPingRTDelay, hasPingLoss, hasPingDelay)
		}
		for _, pair := range vp.ServerPings() {
			path := pingRoute(rs, pair.TargetNodeID, observer)
			emitActive(rs, out, cfg, observer, path, pair, efm.KindPingETELoss, efm.KindPingETEDelay, hasPingLoss, hasPingDelay)
		}
	}
}

func hasBit(s efm.BitSet, b efm.Bit) bool {
	for _, x := range s.Bits() {
		if x == b {
			return true
		}
	}
	return false
}

func pingRoute(rs *simdata.ResultSet, src, dst uint32) simdata.LinkPath {
	nodes := rs.PingRoutes[[2]uint32{src, dst}]
	return simdata.FromNodes(nodes)
}

func emitActive(rs *simdata.ResultSet, out *Set, cfg Config, observer uint32, path simdata.LinkPath,
	pair *simdata.PingPair, lossKind, delayKind efm.Kind, wantLoss, wantDelay bool) {
	if len(path) < 1 {
		return
	}
	if wantLoss {
		emitActiveBit(rs, out, cfg, observer, efm.BitPINGLSS, path, func() (float64, bool) {
			return pair.RelativeLoss(lossKind)
		})
	}
	if wantDelay {
		emitActiveBit(rs, out, cfg, observer, efm.BitPINGDLY, path, func() (float64, bool) {
			return pair.Delay(delayKind)
		})
	}
}

// emitActiveBit classifies one active-measurement sample. A missing sample
// (ok=false) is treated as "not failed" rather than an error, and is simply
// not emitted (mirrors the non-active "no data" skip).
func emitActiveBit(rs *simdata.ResultSet, out *Set, cfg Config, observer uint32, bit efm.Bit, path simdata.LinkPath, sample func() (float64, bool)) {
	var p Path
	if cfg.Mode == ModePerfect {
		p = classifyPerfect(rs, observer, bit, path)
	} else {
		m, ok := sample()
		if !ok {
			return
		}
		p = classifyStatic(observer, bit, path, m, threshold(bit, cfg))
	}
	if p.Measurement < 0 {
		return
	}
	out.add(p)
}
