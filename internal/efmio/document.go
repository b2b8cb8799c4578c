// Package efmio is the boundary between the JSON trace/config/output
// document shapes and the internal simdata/efm model. It is the only
// package in this module that knows about encoding/json field names.
package efmio

import "encoding/json"

// TraceDocument is one file's worth of a simulation run's trace data: either
// the master (title + summary + traces) or a fragment (title_ref + traces)
// of a run split across multiple files.
type TraceDocument struct {
	Title    string          `json:"title,omitempty"`
	TitleRef string          `json:"title_ref,omitempty"`
	Summary  *SummaryBlock   `json:"summary,omitempty"`
	Traces   []TraceEntry    `json:"traces"`
	Config   json.RawMessage `json:"config,omitempty"`
}

// IsMaster reports whether this document declares itself the sim id owner.
func (d *TraceDocument) IsMaster() bool { return d.Title != "" }

// SummaryBlock is the master document's topology/ground-truth payload.
type SummaryBlock struct {
	ClientStats      json.RawMessage                     `json:"client_stats,omitempty"`
	ServerStats      json.RawMessage                      `json:"server_stats,omitempty"`
	ObserverStats    map[string]map[string]FlowStatsJSON  `json:"observer_stats,omitempty"`
	Config           json.RawMessage                      `json:"config,omitempty"`
	FailedLinks      []FailedLinkJSON                     `json:"failed_links,omitempty"`
	HostConnections  map[string]HostConnectionJSON        `json:"host_connections,omitempty"`
	ObserverFlows    map[string]ObserverFlowJSON          `json:"observer_flows,omitempty"`
	ObserverPaths    json.RawMessage                      `json:"observer_paths,omitempty"`
	PingRoutes       map[string][]uint32                  `json:"ping_routes,omitempty"`
	LinkSets         *LinkSetsJSON                        `json:"link_sets,omitempty"`
	GTStats          []LinkGTStatJSON                      `json:"gt_stats,omitempty"`
	BackboneOverrides []FailedLinkJSON                     `json:"backbone_overrides,omitempty"`
}

// FlowStatsJSON is one observer_stats leaf: packet/efm-packet totals for one
// flow at one observer node.
type FlowStatsJSON struct {
	TotalPackets    uint64 `json:"total_packets"`
	TotalEfmPackets uint64 `json:"total_efm_packets"`
}

// FailedLinkJSON is one failed_links/backbone_overrides entry.
type FailedLinkJSON struct {
	NodeA    uint32  `json:"nodeA"`
	NodeB    uint32  `json:"nodeB"`
	LossRate float64 `json:"lossRate"`
	DelayMs  float64 `json:"delayMs"`
}

// HostConnectionJSON is one host_connections entry: client/server endpoint
// bookkeeping. Accepted for schema completeness; the analysis pipeline
// derives everything it needs from ObserverFlowJSON instead.
type HostConnectionJSON struct {
	ClientNodeID uint32 `json:"client_node_id"`
	ClientPort   uint16 `json:"client_port"`
	ServerNodeID uint32 `json:"server_node_id"`
	ServerPort   uint16 `json:"server_port"`
	Proto        string `json:"prot"`
}

// ObserverFlowJSON is one observer_flows entry: the 5-tuple for an observer
// flow id, keyed by that id as a decimal string in the JSON map.
type ObserverFlowJSON struct {
	SrcNodeID uint32 `json:"src_node_id"`
	SrcPort   uint16 `json:"src_port"`
	DstNodeID uint32 `json:"dst_node_id"`
	DstPort   uint16 `json:"dst_port"`
	Proto     string `json:"prot"`
}

// LinkSetsJSON splits the topology into core (backbone) and edge links.
type LinkSetsJSON struct {
	CoreLinks []LinkJSON `json:"core_links,omitempty"`
	EdgeLinks []LinkJSON `json:"edge_links,omitempty"`
}

// LinkJSON is a directed (src, dst) pair.
type LinkJSON struct {
	Src uint32 `json:"src"`
	Dst uint32 `json:"dst"`
}

// LinkGTStatJSON is one gt_stats entry: loss counts and delay percentiles
// (microseconds) for one link.
type LinkGTStatJSON struct {
	Src             uint32             `json:"src"`
	Dst             uint32             `json:"dst"`
	Lost            uint64             `json:"lost"`
	Received        uint64             `json:"received"`
	DelayPercentile map[string]float64 `json:"delay_percentile_us,omitempty"`
}

// TraceEntry is one vantage point's recorded events.
type TraceEntry struct {
	VantagePoint VantagePointJSON `json:"vantage_point"`
	Events       []EventJSON      `json:"events"`
}

// VantagePointJSON names and types a trace's recording node. Name carries
// the node id as its leading "/"-delimited segment (e.g. "12/client").
type VantagePointJSON struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// GroupIDJSON identifies which flow (and, for path-carrier events, which
// logical path) an event belongs to.
type GroupIDJSON struct {
	FlowID uint64  `json:"flow_id"`
	PathID *uint64 `json:"path_id,omitempty"`
}

// EventJSON is one trace record before Kind-specific payload decoding.
type EventJSON struct {
	Name    string          `json:"name"`
	Time    float64         `json:"time"`
	GroupID GroupIDJSON     `json:"group_id"`
	Data    json.RawMessage `json:"data,omitempty"`
}
