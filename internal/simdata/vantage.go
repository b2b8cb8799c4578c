package simdata

// VPType distinguishes a host vantage point (client or server) from a
// network observer.
type VPType int

const (
	VPClient VPType = iota
	VPServer
	VPObserver
)

func (t VPType) String() string {
	switch t {
	case VPClient:
		return "client"
	case VPServer:
		return "server"
	case VPObserver:
		return "network"
	default:
		return "unknown"
	}
}

// ParseVPType resolves the vantage_point.type string from a trace document.
func ParseVPType(s string) (VPType, error) {
	switch s {
	case "client":
		return VPClient, nil
	case "server":
		return VPServer, nil
	case "network":
		return VPObserver, nil
	default:
		return 0, &UnknownVPTypeError{Type: s}
	}
}

// UnknownVPTypeError is an import error: a trace named a
// vantage_point.type outside {client, server, network}.
type UnknownVPTypeError struct{ Type string }

func (e *UnknownVPTypeError) Error() string {
	return "simdata: unknown vantage point type " + e.Type
}

// VantagePoint is a single simulation node at which events were recorded.
// Host vantage points (client/server) own a flow-id -> flow map; observer
// vantage points own flow, path, and (twice) ping-pair maps.
type VantagePoint struct {
	NodeID uint32
	Type   VPType

	// Host-side storage (VPClient, VPServer).
	hostFlows map[FlowID]*ObserverFlow

	// Observer-side storage (VPObserver).
	flows       map[FlowID]*ObserverFlow
	paths       map[uint64]*PathAggregate
	clientPings map[uint32]*PingPair
	serverPings map[uint32]*PingPair
}

// NewVantagePoint constructs an empty vantage point of the given type.
func NewVantagePoint(nodeID uint32, t VPType) *VantagePoint {
	vp := &VantagePoint{NodeID: nodeID, Type: t}
	switch t {
	case VPObserver:
		vp.flows = make(map[FlowID]*ObserverFlow)
		vp.paths = make(map[uint64]*PathAggregate)
		vp.clientPings = make(map[uint32]*PingPair)
		vp.serverPings = make(map[uint32]*PingPair)
	default:
		vp.hostFlows = make(map[FlowID]*ObserverFlow)
	}
	return vp
}

// HostFlow returns the named flow's event set at a host vantage point.
func (vp *VantagePoint) HostFlow(id FlowID) (*ObserverFlow, bool) {
	f, ok := vp.hostFlows[id]
	return f, ok
}

// PutHostFlow appends (or replaces, during import) a host flow.
func (vp *VantagePoint) PutHostFlow(f *ObserverFlow) { vp.hostFlows[f.FlowID] = f }

// HostFlows returns all flow ids tracked at a host vantage point.
func (vp *VantagePoint) HostFlows() map[FlowID]*ObserverFlow { return vp.hostFlows }

// Flow returns the named flow's event set at an observer vantage point.
func (vp *VantagePoint) Flow(id FlowID) (*ObserverFlow, bool) {
	f, ok := vp.flows[id]
	return f, ok
}

// PutFlow appends (or replaces, during import) an observer flow.
func (vp *VantagePoint) PutFlow(f *ObserverFlow) { vp.flows[f.FlowID] = f }

// Flows returns all flows tracked at an observer vantage point.
func (vp *VantagePoint) Flows() map[FlowID]*ObserverFlow { return vp.flows }

// Path returns a path aggregate by id.
func (vp *VantagePoint) Path(id uint64) (*PathAggregate, bool) {
	p, ok := vp.paths[id]
	return p, ok
}

// PutPath appends (or replaces) a path aggregate.
func (vp *VantagePoint) PutPath(p *PathAggregate) { vp.paths[p.PathID] = p }

// Paths returns all path aggregates tracked at an observer vantage point.
func (vp *VantagePoint) Paths() map[uint64]*PathAggregate { return vp.paths }

// PingPair returns the client or server ping pair targeting targetNodeID.
func (vp *VantagePoint) PingPair(kind PingKind, targetNodeID uint32) (*PingPair, bool) {
	if kind == PingClient {
		p, ok := vp.clientPings[targetNodeID]
		return p, ok
	}
	p, ok := vp.serverPings[targetNodeID]
	return p, ok
}

// PutPingPair appends (or replaces) a ping pair in the map matching its kind.
func (vp *VantagePoint) PutPingPair(p *PingPair) {
	if p.Kind == PingClient {
		vp.clientPings[p.TargetNodeID] = p
	} else {
		vp.serverPings[p.TargetNodeID] = p
	}
}

// ClientPings returns all client-kind ping pairs at an observer.
func (vp *VantagePoint) ClientPings() map[uint32]*PingPair { return vp.clientPings }

// ServerPings returns all server-kind ping pairs at an observer.
func (vp *VantagePoint) ServerPings() map[uint32]*PingPair { return vp.serverPings }

// Clone deep-clones a vantage point for use by a filter: filters clone
// deeply rather than mutate in place.
func (vp *VantagePoint) Clone() *VantagePoint {
	out := NewVantagePoint(vp.NodeID, vp.Type)
	for id, f := range vp.hostFlows {
		out.hostFlows[id] = f.Clone()
	}
	for id, f := range vp.flows {
		out.flows[id] = f.Clone()
	}
	for id, p := range vp.paths {
		out.paths[id] = p.Clone()
	}
	for id, p := range vp.clientPings {
		out.clientPings[id] = p.Clone()
	}
	for id, p := range vp.serverPings {
		out.serverPings[id] = p.Clone()
	}
	return out
}
