package simdata

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/COMSYS/ns3-efm-study-overview/internal/efm"
)

// FailedLinkInfo is one entry of the ground-truth failed-link table.
type FailedLinkInfo struct {
	LossRate float64
	DelayMs  float64
}

// FlowStats is the per-observer, per-flow packet-count summary imported
// from the trace document's observer_stats.
type FlowStats struct {
	TotalPackets    uint64
	TotalEfmPackets uint64
}

// LinkGTStats is a per-link ground-truth statistic: loss counts and delay
// percentiles in microseconds.
type LinkGTStats struct {
	Lost, Received  uint64
	DelayPercentile map[int]float64 // e.g. 50, 95, 99 -> microseconds
}

// ResultSet is a single simulation run's imported output: its topology,
// ground truth, and all vantage points. Owns its vantage points; derived
// sets (classified paths, link-characteristic sets) hold only link values
// and measurement scalars, never borrowed references into a ResultSet, so
// a ResultSet may be dropped once downstream sets are built.
type ResultSet struct {
	SimID     string
	RawConfig json.RawMessage

	FailedLinks       map[Link]FailedLinkInfo
	BackboneOverrides map[Link]FailedLinkInfo

	FlowTuples        map[FlowID]FiveTuple
	ObserverFlowStats map[uint32]map[FlowID]FlowStats

	PingRoutes map[[2]uint32][]uint32

	EdgeLinks []Link
	CoreLinks []Link

	LinkGroundTruth map[Link]LinkGTStats

	vantagePoints map[uint32]*VantagePoint
}

// New constructs an empty result set for a sim id.
func New(simID string) *ResultSet {
	return &ResultSet{
		SimID:             simID,
		FailedLinks:       make(map[Link]FailedLinkInfo),
		BackboneOverrides: make(map[Link]FailedLinkInfo),
		FlowTuples:        make(map[FlowID]FiveTuple),
		ObserverFlowStats: make(map[uint32]map[FlowID]FlowStats),
		PingRoutes:        make(map[[2]uint32][]uint32),
		LinkGroundTruth:   make(map[Link]LinkGTStats),
		vantagePoints:     make(map[uint32]*VantagePoint),
	}
}

// VantagePoint returns the vantage point at a node, creating it with the
// given type if absent (import-time use only).
func (r *ResultSet) VantagePoint(nodeID uint32, t VPType) *VantagePoint {
	vp, ok := r.vantagePoints[nodeID]
	if !ok {
		vp = NewVantagePoint(nodeID, t)
		r.vantagePoints[nodeID] = vp
	}
	return vp
}

// PutVantagePoint registers an already-built vantage point (import-time use
// only).
func (r *ResultSet) PutVantagePoint(vp *VantagePoint) {
	r.vantagePoints[vp.NodeID] = vp
}

// LookupVantagePoint returns the vantage point at a node, if imported.
func (r *ResultSet) LookupVantagePoint(nodeID uint32) (*VantagePoint, bool) {
	vp, ok := r.vantagePoints[nodeID]
	return vp, ok
}

// Observers returns all observer-type vantage points.
func (r *ResultSet) Observers() []*VantagePoint {
	var out []*VantagePoint
	for _, vp := range r.vantagePoints {
		if vp.Type == VPObserver {
			out = append(out, vp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out
}

// AllVantagePoints returns every vantage point, sorted by node id.
func (r *ResultSet) AllVantagePoints() []*VantagePoint {
	out := make([]*VantagePoint, 0, len(r.vantagePoints))
	for _, vp := range r.vantagePoints {
		out = append(out, vp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out
}

// FlowBeginTime returns the time of a flow's flow-begin event at a given
// observer node, if observed there.
func (r *ResultSet) FlowBeginTime(nodeID uint32, flowID FlowID) (float64, bool) {
	vp, ok := r.vantagePoints[nodeID]
	if !ok || vp.Type != VPObserver {
		return 0, false
	}
	f, ok := vp.Flow(flowID)
	if !ok {
		return 0, false
	}
	events := f.Events.Events(efm.KindFlowBegin)
	if len(events) == 0 {
		return 0, false
	}
	return events[0].Time, true
}

// FlowPath returns the end-to-end node chain carrying flowID: the flow's
// source endpoint, the network observers it passes through ordered by
// observed flow-begin time, and its destination endpoint. The
// client/server endpoints are derived from the flow's 5-tuple rather
// than from an observer event, since host vantage points do not record a
// flow-begin event of their own.
func (r *ResultSet) FlowPath(flowID FlowID) []uint32 {
	type obsTime struct {
		node uint32
		t    float64
	}
	var chain []obsTime
	for _, vp := range r.vantagePoints {
		if vp.Type != VPObserver {
			continue
		}
		if t, ok := r.FlowBeginTime(vp.NodeID, flowID); ok {
			chain = append(chain, obsTime{vp.NodeID, t})
		}
	}
	sort.Slice(chain, func(i, j int) bool { return chain[i].t < chain[j].t })

	tuple, hasTuple := r.FlowTuples[flowID]
	out := make([]uint32, 0, len(chain)+2)
	if hasTuple {
		out = append(out, tuple.SrcNodeID)
	}
	for _, c := range chain {
		out = append(out, c.node)
	}
	if hasTuple {
		out = append(out, tuple.DstNodeID)
	}
	return out
}

// ReverseFlowID looks up the flow id whose 5-tuple is the reverse of
// flowID's, returning (id, true) if present in FlowTuples.
func (r *ResultSet) ReverseFlowID(flowID FlowID) (FlowID, bool) {
	tuple, ok := r.FlowTuples[flowID]
	if !ok {
		return 0, false
	}
	want := tuple.Reverse()
	for id, t := range r.FlowTuples {
		if t == want {
			return id, true
		}
	}
	return 0, false
}

// AnyGroundTruthFailedLinkOnPath reports whether any link on path appears
// in the failed-link table with a positive loss rate (checkLoss) or delay
// (checkDelay) — the PERFECT classification oracle.
func (r *ResultSet) AnyGroundTruthFailedLinkOnPath(path LinkPath, checkLoss, checkDelay bool) bool {
	for _, l := range path {
		info, ok := r.FailedLinks[l]
		if !ok {
			continue
		}
		if checkLoss && info.LossRate > 0 {
			return true
		}
		if checkDelay && info.DelayMs > 0 {
			return true
		}
	}
	return false
}

// Clone deep-clones the result set's vantage points (and their flows,
// paths, ping pairs) while sharing the immutable topology/ground-truth
// tables, for use by a filter.
func (r *ResultSet) Clone() *ResultSet {
	out := &ResultSet{
		SimID:             r.SimID,
		RawConfig:         r.RawConfig,
		FailedLinks:       r.FailedLinks,
		BackboneOverrides: r.BackboneOverrides,
		FlowTuples:        r.FlowTuples,
		ObserverFlowStats: r.ObserverFlowStats,
		PingRoutes:        r.PingRoutes,
		EdgeLinks:         r.EdgeLinks,
		CoreLinks:         r.CoreLinks,
		LinkGroundTruth:   r.LinkGroundTruth,
		vantagePoints:     make(map[uint32]*VantagePoint, len(r.vantagePoints)),
	}
	for id, vp := range r.vantagePoints {
		out.vantagePoints[id] = vp.Clone()
	}
	return out
}

// AppendTraceDocument merges another trace document's events into this
// result set, provided its title_ref matches this SimID. Used by
// simdata.Manager when a run's log is split across multiple files.
func (r *ResultSet) AppendTraceDocument(titleRef string, merge func(*ResultSet) error) error {
	if titleRef != r.SimID {
		return fmt.Errorf("simdata: title_ref %q does not match sim id %q", titleRef, r.SimID)
	}
	return merge(r)
}
