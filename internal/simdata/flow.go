package simdata

import "github.com/COMSYS/ns3-efm-study-overview/internal/efm"

// FlowID identifies one directed flow (observer flow id as assigned by the
// simulator, referenced from trace group_id.flow_id).
type FlowID uint64

// FiveTuple is a flow's identifying 5-tuple.
type FiveTuple struct {
	SrcNodeID, DstNodeID uint32
	SrcPort, DstPort     uint16
	Proto                string
}

// Reverse swaps endpoints and ports, matching the wire direction of the
// flow running the opposite way.
func (t FiveTuple) Reverse() FiveTuple {
	return FiveTuple{
		SrcNodeID: t.DstNodeID, DstNodeID: t.SrcNodeID,
		SrcPort: t.DstPort, DstPort: t.SrcPort,
		Proto: t.Proto,
	}
}

// ObserverFlow is one directed flow observed at one vantage point: the
// event multiset recorded for that flow at that observer. Immutable after
// import; a filter produces a new ObserverFlow.
type ObserverFlow struct {
	FlowID FlowID
	Events *efm.Set
}

// NewObserverFlow wraps an event set for one flow at one vantage point.
func NewObserverFlow(id FlowID, events *efm.Set) *ObserverFlow {
	return &ObserverFlow{FlowID: id, Events: events}
}

// Clone deep-clones the observer flow for use by a filter.
func (f *ObserverFlow) Clone() *ObserverFlow {
	return &ObserverFlow{FlowID: f.FlowID, Events: f.Events.Clone()}
}

// PathAggregate is a multi-endpoint logical path (L and SQ bit carriers)
// owning its own event multiset.
type PathAggregate struct {
	PathID uint64
	Events *efm.Set
}

func (p *PathAggregate) Clone() *PathAggregate {
	return &PathAggregate{PathID: p.PathID, Events: p.Events.Clone()}
}

// PingKind distinguishes a client-origin from a server-origin active
// measurement series.
type PingKind int

const (
	PingClient PingKind = iota
	PingServer
)

// PingPair is a client<->target or server<->source active-measurement
// series.
type PingPair struct {
	TargetNodeID uint32
	Kind         PingKind
	Events       *efm.Set
}

func (p *PingPair) Clone() *PingPair {
	return &PingPair{TargetNodeID: p.TargetNodeID, Kind: p.Kind, Events: p.Events.Clone()}
}
