// Package classify builds the classified-path-set: per (observer, bit)
// lists of link paths annotated with failure severity and a scalar
// measurement, under either STATIC (threshold) or PERFECT (ground-truth)
// classification.
package classify

import (
	"fmt"

	"github.com/COMSYS/ns3-efm-study-overview/internal/efm"
	"github.com/COMSYS/ns3-efm-study-overview/internal/simdata"
)

// Mode selects between thresholded and ground-truth classification.
type Mode int

const (
	ModeStatic Mode = iota
	ModePerfect
)

func (m Mode) String() string {
	switch m {
	case ModeStatic:
		return "STATIC"
	case ModePerfect:
		return "PERFECT"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode resolves a classificationModes entry as it appears in an
// analysis config document.
func ParseMode(name string) (Mode, error) {
	switch name {
	case "STATIC":
		return ModeStatic, nil
	case "PERFECT":
		return ModePerfect, nil
	default:
		return 0, fmt.Errorf("classify: unknown classification mode %q", name)
	}
}

// Severity weight factors for static classification.
const (
	SmallFactor = 0.5
	LargeFactor = 2.0
)

// Path is one classified link path.
type Path struct {
	Observer    uint32
	Bit         efm.Bit
	LinkPath    simdata.LinkPath
	Failed      bool // == Medium
	Small       bool
	Medium      bool
	Large       bool
	Measurement float64
}

// Set is the result of classification: observerId -> bit -> list of
// classified link paths. Every requested (observer, bit) bucket is
// materialized even when empty.
type Set struct {
	buckets map[uint32]map[efm.Bit][]Path
}

func newSet() *Set { return &Set{buckets: make(map[uint32]map[efm.Bit][]Path)} }

func (s *Set) ensureBucket(observer uint32, bit efm.Bit) {
	m, ok := s.buckets[observer]
	if !ok {
		m = make(map[efm.Bit][]Path)
		s.buckets[observer] = m
	}
	if _, ok := m[bit]; !ok {
		m[bit] = nil
	}
}

func (s *Set) add(p Path) {
	s.ensureBucket(p.Observer, p.Bit)
	s.buckets[p.Observer][p.Bit] = append(s.buckets[p.Observer][p.Bit], p)
}

// Paths returns the classified paths for one (observer, bit) bucket.
func (s *Set) Paths(observer uint32, bit efm.Bit) []Path {
	m, ok := s.buckets[observer]
	if !ok {
		return nil
	}
	return m[bit]
}

// Observers returns the observer ids present in the set.
func (s *Set) Observers() []uint32 {
	out := make([]uint32, 0, len(s.buckets))
	for o := range s.buckets {
		out = append(out, o)
	}
	return out
}

// Bits returns the bits present for one observer.
func (s *Set) Bits(observer uint32) []efm.Bit {
	m := s.buckets[observer]
	out := make([]efm.Bit, 0, len(m))
	for b := range m {
		out = append(out, b)
	}
	return out
}

// Empty reports whether the set has no buckets at all.
func (s *Set) Empty() bool { return len(s.buckets) == 0 }

// AllPaths flattens the set back to its path list, the inverse of
// FromPaths, for round-tripping a Set through a byte-oriented cache.
func (s *Set) AllPaths() []Path {
	var out []Path
	for _, m := range s.buckets {
		for _, paths := range m {
			out = append(out, paths...)
		}
	}
	return out
}

// FromPaths rebuilds a Set from a flat path list plus the (observer, bit)
// buckets a Build call over the same observers/bits would have
// materialized, preserving the "always materialize every requested bucket,
// even when empty" invariant for a Set restored from a cache.
func FromPaths(paths []Path, observers map[uint32]bool, bits efm.BitSet) *Set {
	out := newSet()
	for o := range observers {
		for _, b := range bits.Bits() {
			out.ensureBucket(o, b)
		}
	}
	for _, p := range paths {
		out.add(p)
	}
	return out
}

// Config bundles the parameters of one classification run.
type Config struct {
	Observers    map[uint32]bool
	FlowSelect   map[uint32]map[simdata.FlowID]bool // observerId -> selected flow ids
	Bits         efm.BitSet
	LossTh       float64
	DelayThMs    float64
	FlowLenTh    uint64
	Mode         Mode
	TimeFilterMs float64
	Warn         WarnSink
}

// WarnSink receives data-quality warnings raised during classification;
// nil is a valid no-op sink.
type WarnSink interface {
	Warn(kind, detail string)
}

func warn(w WarnSink, kind, detail string) {
	if w != nil {
		w.Warn(kind, detail)
	}
}

// Build walks every flow of the result set and produces the classified
// path set.
func Build(rs *simdata.ResultSet, cfg Config) *Set {
	out := newSet()
	for o := range cfg.Observers {
		for _, b := range cfg.Bits.Bits() {
			out.ensureBucket(o, b)
		}
	}

	for flowID := range rs.FlowTuples {
		processFlow(rs, flowID, cfg, out)
	}
	processActiveMeasurements(rs, cfg, out)
	return out
}

func processFlow(rs *simdata.ResultSet, flowID simdata.FlowID, cfg Config, out *Set) {
	fwdNodes := rs.FlowPath(flowID)
	if len(fwdNodes) < 2 {
		warn(cfg.Warn, "short-flow-path", "flow path shorter than two nodes")
		return
	}
	revID, hasRev := rs.ReverseFlowID(flowID)
	var revNodes []uint32
	if hasRev {
		revNodes = rs.FlowPath(revID)
	}
	if len(revNodes) < 2 {
		return
	}

	fwdLinks := simdata.FromNodes(fwdNodes)
	revLinks := simdata.FromNodes(revNodes)

	for _, observer := range fwdNodes {
		if !cfg.Observers[observer] {
			continue
		}
		if !flowSelected(cfg, observer, flowID) {
			continue
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

		reverseObserved := containsNode(revNodes, observer)

		for _, bit := range cfg.Bits.Bits() {
			if bit.IsActive() {
				continue
			}
			covered, ok := coveredPath(bit, fwdLinks, revLinks, observer)
			if !ok {
				continue
			}
			classifyAndEmit(rs, out, cfg, observer, bit, covered, flow, flowID, stats, fwdLinks, revLinks)

			if reverseObserved {
				emitBidirectional(rs, out, cfg, observer, bit, flow, revID, revLinks, fwdLinks, stats)
			}
		}
	}
}

func flowSelected(cfg Config, observer uint32, flowID simdata.FlowID) bool {
	if cfg.FlowSelect == nil {
		return true
	}
	sel, ok := cfg.FlowSelect[observer]
	if !ok {
		return false
	}
	return sel[flowID]
}

func containsNode(nodes []uint32, n uint32) bool {
	for _, x := range nodes {
		if x == n {
			return true
		}
	}
	return false
}

// coveredPath returns the link path covered by a (non-active) bit at an
// observer position, per the bit -> covered-path table.
func coveredPath(bit efm.Bit, fwd, rev simdata.LinkPath, observer uint32) (simdata.LinkPath, bool) {
	switch bit {
	case efm.BitSEQ, efm.BitQ:
		return fwd.UpTo(observer), true
	case efm.BitL, efm.BitTCPRO:
		return fwd, true
	case efm.BitT:
		return fwd.Append(rev), true
	case efm.BitR:
		return rev.Append(fwd.UpTo(observer)), true
	case efm.BitSPIN:
		return fwd.Append(rev), true
	case efm.BitQL:
		return fwd.FromXToEnd(observer), true
	case efm.BitQR:
		return rev, true
	case efm.BitQT:
		return fwd.FromXToEnd(observer).Append(rev), true
	case efm.BitLT:
		return rev, true
	case efm.BitTCPDART:
		return fwd.FromXToEnd(observer).Append(rev.UpTo(observer)), true
	default:
		return nil, false
	}
}

// measurementFor returns the STATIC-mode scalar measurement for a bit at a
// flow, and whether it was computed from a corrected (negative-clamped)
// source event.
func measurementFor(bit efm.Bit, flow *simdata.ObserverFlow, timeFilterMs float64) (float64, bool) {
	switch bit {
	case efm.BitSEQ:
		v, c := flow.RelativeSeqLoss()
		return v, c
	case efm.BitQ:
		return flow.RelativeQBitLoss(), false
	case efm.BitL:
		return flow.RelativeLBitLoss(), false
	case efm.BitR:
		return flow.RelativeRBitLoss(), false
	case efm.BitT:
		return flow.RelativeTBitFullLoss(), false
	case efm.BitTCPRO:
		v, c := flow.RelativeTCPReordering()
		return v, c
	case efm.BitSPIN:
		v, ok := flow.AvgSpinRTDelay(timeFilterMs)
		if !ok {
			return -1, false
		}
		return v, false
	case efm.BitTCPDART:
		v, ok := flow.AvgTCPDartDelay()
		if !ok {
			return -1, false
		}
		return v, false
	case efm.BitQL:
		qRel := flow.RelativeQBitLoss()
		return divClamp(flow.RelativeLBitLoss()-qRel, 1-qRel), false
	case efm.BitQR:
		qRel := flow.RelativeQBitLoss()
		return divClamp(flow.RelativeRBitLoss()-qRel, 1-qRel), false
	case efm.BitQT:
		qRel := flow.RelativeQBitLoss()
		return divClamp(flow.RelativeTBitFullLoss()-qRel, 1-qRel), false
	case efm.BitLT:
		lRel := flow.RelativeLBitLoss()
		return divClamp(flow.RelativeTBitFullLoss()-lRel, 1-lRel), false
	default:
		return -1, false
	}
}

func threshold(bit efm.Bit, cfg Config) float64 {
	if bit.IsLossBit() {
		return cfg.LossTh
	}
	return cfg.DelayThMs
}

func classifyAndEmit(rs *simdata.ResultSet, out *Set, cfg Config, observer uint32, bit efm.Bit,
	covered simdata.LinkPath, flow *simdata.ObserverFlow, flowID simdata.FlowID, stats simdata.FlowStats,
	fwd, rev simdata.LinkPath) {
	if len(covered) < 1 {
		return
	}
	var p Path
	switch cfg.Mode {
	case ModePerfect:
		p = classifyPerfect(rs, observer, bit, covered)
	default:
		m, corrected := measurementFor(bit, flow, cfg.TimeFilterMs)
		if corrected {
			warn(cfg.Warn, "negative-measurement-corrected", "bit measurement clamped to zero")
		}
		p = classifyStatic(observer, bit, covered, m, threshold(bit, cfg))
	}
	if !emitEligible(p, stats, cfg.FlowLenTh) {
		return
	}
	out.add(p)
}

func classifyStatic(observer uint32, bit efm.Bit, covered simdata.LinkPath, m, th float64) Path {
	return Path{
		Observer:    observer,
		Bit:         bit,
		LinkPath:    covered,
		Measurement: m,
		Medium:      m >= th,
		Failed:      m >= th,
		Small:       m >= SmallFactor*th,
		Large:       m >= LargeFactor*th,
	}
}

func classifyPerfect(rs *simdata.ResultSet, observer uint32, bit efm.Bit, covered simdata.LinkPath) Path {
	failed := rs.AnyGroundTruthFailedLinkOnPath(covered, bit.IsLossBit(), bit.IsDelayBit())
	return Path{
		Observer:    observer,
		Bit:         bit,
		LinkPath:    covered,
		Measurement: 0,
		Medium:      failed,
		Failed:      failed,
		Small:       false,
		Large:       false,
	}
}

// emitEligible applies the filter: "Record the entry only if
// (small=true OR totalPackets >= flowLenTh) AND m >= 0".
func emitEligible(p Path, stats simdata.FlowStats, flowLenTh uint64) bool {
	if len(p.LinkPath) < 1 {
		return false
	}
	if p.Measurement < 0 {
		return false
	}
	if !(p.Small || stats.TotalPackets >= flowLenTh) {
		return false
	}
	return true
}

func emitBidirectional(rs *simdata.ResultSet, out *Set, cfg Config, observer uint32, bit efm.Bit,
	flow *simdata.ObserverFlow, revID simdata.FlowID, rev, fwd simdata.LinkPath, stats simdata.FlowStats) {
	switch bit {
	case efm.BitT:
		path := rev.FromXToEnd(observer).Append(fwd.UpTo(observer))
		emitSynth(out, cfg, observer, bit, path, flow.RelativeTBitHalfLoss(), false, stats)
	case efm.BitSPIN:
		path := rev.FromXToEnd(observer).Append(fwd.UpTo(observer))
		v, ok := flow.AvgSpinEtEDelay(cfg.TimeFilterMs)
		if !ok {
			return
		}
		emitSynth(out, cfg, observer, bit, path, v, false, stats)
	case efm.BitQR:
		emitQRBidirectional(rs, out, cfg, observer, flow, revID, rev, fwd, stats)
	case efm.BitQT:
		emitQTBidirectional(rs, out, cfg, observer, flow, revID, rev, fwd, stats)
	}
}

func revFlow(rs *simdata.ResultSet, observer uint32, revID simdata.FlowID) (*simdata.ObserverFlow, bool) {
	vp, ok := rs.LookupVantagePoint(observer)
	if !ok {
		return nil, false
	}
	return vp.Flow(revID)
}

func emitQRBidirectional(rs *simdata.ResultSet, out *Set, cfg Config, observer uint32, fwdFlow *simdata.ObserverFlow,
	revID simdata.FlowID, rev, fwd simdata.LinkPath, stats simdata.FlowStats) {
	rflow, ok := revFlow(rs, observer, revID)
	if !ok {
		return
	}
	qRevRel := rflow.RelativeQBitLoss()
	rRevRel := rflow.RelativeRBitLoss()
	qFwdRel := fwdFlow.RelativeQBitLoss()
	rFwdRel := fwdFlow.RelativeRBitLoss()

	dsl := divClamp(divClamp(rRevRel-qRevRel, 1-qRevRel)-qFwdRel, 1-qFwdRel)
	emitSynth(out, cfg, observer, efm.BitQR, fwd.FromXToEnd(observer), dsl, true, stats)

	half := divClamp(rFwdRel-qRevRel, 1-qRevRel)
	emitSynth(out, cfg, observer, efm.BitQR, rev.FromXToEnd(observer).Append(fwd.UpTo(observer)), half, true, stats)
}

func emitQTBidirectional(rs *simdata.ResultSet, out *Set, cfg Config, observer uint32, fwdFlow *simdata.ObserverFlow,
	revID simdata.FlowID, rev, fwd simdata.LinkPath, stats simdata.FlowStats) {
	rflow, ok := revFlow(rs, observer, revID)
	if !ok {
		return
	}
	qRevRel := rflow.RelativeQBitLoss()
	tRevHalf := rflow.RelativeTBitHalfLoss()
	loss := divClamp(tRevHalf-qRevRel, 1-qRevRel)
	emitSynth(out, cfg, observer, efm.BitQT, fwd.FromXToEnd(observer).Append(rev), loss, true, stats)
}

func divClamp(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

func emitSynth(out *Set, cfg Config, observer uint32, bit efm.Bit, path simdata.LinkPath, m float64, isLoss bool, stats simdata.FlowStats) {
	th := cfg.LossTh
	if !isLoss && !bit.IsLossBit() {
		th = cfg.DelayThMs
	}
	p := classifyStatic(observer, bit, path, m, th)
	if cfg.Mode == ModePerfect {
		return
	}
	if !emitEligible(p, stats, cfg.FlowLenTh) {
		return
	}
	out.add(p)
}
