package efmio

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/COMSYS/ns3-efm-study-overview/internal/efm"
	"github.com/COMSYS/ns3-efm-study-overview/internal/simdata"
)

// ImportMaster builds a fresh ResultSet from a master trace document (one
// whose Title is set), populating topology/ground truth from its summary
// and events from its traces.
func ImportMaster(doc *TraceDocument) (*simdata.ResultSet, error) {
	if !doc.IsMaster() {
		return nil, fmt.Errorf("efmio: ImportMaster called on a document with no title")
	}
	rs := simdata.New(doc.Title)
	rs.RawConfig = doc.Config
	if doc.Summary != nil {
		if err := populateSummary(rs, doc.Summary); err != nil {
			return nil, fmt.Errorf("efmio: sim %q: %w", doc.Title, err)
		}
	}
	if err := populateTraces(rs, doc.Traces); err != nil {
		return nil, fmt.Errorf("efmio: sim %q: %w", doc.Title, err)
	}
	finalizeAll(rs)
	return rs, nil
}

// ImportFragment merges a fragment trace document (one whose TitleRef is
// set) into a previously-imported master's ResultSet.
func ImportFragment(rs *simdata.ResultSet, doc *TraceDocument) error {
	if doc.TitleRef == "" {
		return fmt.Errorf("efmio: ImportFragment called on a document with no title_ref")
	}
	err := rs.AppendTraceDocument(doc.TitleRef, func(rs *simdata.ResultSet) error {
		return populateTraces(rs, doc.Traces)
	})
	if err != nil {
		return fmt.Errorf("efmio: title_ref %q: %w", doc.TitleRef, err)
	}
	finalizeAll(rs)
	return nil
}

// parseNodeID reads the leading "<nodeId>/..." segment of a vantage point
// name.
func parseNodeID(name string) (uint32, error) {
	seg := name
	if i := strings.IndexByte(name, '/'); i >= 0 {
		seg = name[:i]
	}
	n, err := strconv.ParseUint(seg, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("efmio: vantage point name %q has no leading node id: %w", name, err)
	}
	return uint32(n), nil
}

// populateTraces imports every vantage point's events into rs, creating
// vantage points, flows, and path aggregates as needed.
func populateTraces(rs *simdata.ResultSet, traces []TraceEntry) error {
	for _, t := range traces {
		nodeID, err := parseNodeID(t.VantagePoint.Name)
		if err != nil {
			return err
		}
		vpType, err := simdata.ParseVPType(t.VantagePoint.Type)
		if err != nil {
			return err
		}
		vp := rs.VantagePoint(nodeID, vpType)

		for _, ej := range t.Events {
			event, err := decodeEvent(ej)
			if err != nil {
				return fmt.Errorf("node %d: %w", nodeID, err)
			}
			addEvent(vp, ej, event)
		}
	}
	return nil
}

// addEvent routes a decoded event to the flow, or (for path-carrier kinds)
// path aggregate, that it belongs to, at its vantage point. Host vantage
// points only ever see flow-scoped events.
func addEvent(vp *simdata.VantagePoint, ej EventJSON, event efm.Event) {
	flowID := simdata.FlowID(ej.GroupID.FlowID)

	if isPathCarrier(event.Kind) {
		pathID := ej.GroupID.FlowID
		if ej.GroupID.PathID != nil {
			pathID = *ej.GroupID.PathID
		}
		p, ok := vp.Path(pathID)
		if !ok {
			p = &simdata.PathAggregate{PathID: pathID, Events: efm.NewSet()}
			vp.PutPath(p)
		}
		p.Events.Add(event)
		return
	}

	if vp.Type == simdata.VPObserver {
		f, ok := vp.Flow(flowID)
		if !ok {
			f = simdata.NewObserverFlow(flowID, efm.NewSet())
			vp.PutFlow(f)
		}
		f.Events.Add(event)
		return
	}

	f, ok := vp.HostFlow(flowID)
	if !ok {
		f = simdata.NewObserverFlow(flowID, efm.NewSet())
		vp.PutHostFlow(f)
	}
	f.Events.Add(event)
}

func isPathCarrier(k efm.Kind) bool {
	return k == efm.KindPLSet || k == efm.KindPSQLoss
}

// finalizeAll sorts every flow/path/ping-pair event bucket by time.
func finalizeAll(rs *simdata.ResultSet) {
	for _, vp := range rs.AllVantagePoints() {
		for _, f := range vp.Flows() {
			f.Events.Finalize()
		}
		for _, f := range vp.HostFlows() {
			f.Events.Finalize()
		}
		for _, p := range vp.Paths() {
			p.Events.Finalize()
		}
		for _, p := range vp.ClientPings() {
			p.Events.Finalize()
		}
		for _, p := range vp.ServerPings() {
			p.Events.Finalize()
		}
	}
}

func populateSummary(rs *simdata.ResultSet, s *SummaryBlock) error {
	for _, fl := range s.FailedLinks {
		rs.FailedLinks[simdata.Link{Src: fl.NodeA, Dst: fl.NodeB}] = simdata.FailedLinkInfo{LossRate: fl.LossRate, DelayMs: fl.DelayMs}
	}
	for _, fl := range s.BackboneOverrides {
		rs.BackboneOverrides[simdata.Link{Src: fl.NodeA, Dst: fl.NodeB}] = simdata.FailedLinkInfo{LossRate: fl.LossRate, DelayMs: fl.DelayMs}
	}

	for idStr, tuple := range s.ObserverFlows {
		id, err := strconv.ParseUint(idStr, 10, 64)
		if err != nil {
			return fmt.Errorf("observer_flows: bad flow id %q: %w", idStr, err)
		}
		rs.FlowTuples[simdata.FlowID(id)] = simdata.FiveTuple{
			SrcNodeID: tuple.SrcNodeID, SrcPort: tuple.SrcPort,
			DstNodeID: tuple.DstNodeID, DstPort: tuple.DstPort,
			Proto: tuple.Proto,
		}
	}

	for obsStr, byFlow := range s.ObserverStats {
		obs, err := strconv.ParseUint(obsStr, 10, 32)
		if err != nil {
			return fmt.Errorf("observer_stats: bad observer id %q: %w", obsStr, err)
		}
		node := uint32(obs)
		if rs.ObserverFlowStats[node] == nil {
			rs.ObserverFlowStats[node] = make(map[simdata.FlowID]simdata.FlowStats)
		}
		for flowStr, fs := range byFlow {
			id, err := strconv.ParseUint(flowStr, 10, 64)
			if err != nil {
				return fmt.Errorf("observer_stats: bad flow id %q: %w", flowStr, err)
			}
			rs.ObserverFlowStats[node][simdata.FlowID(id)] = simdata.FlowStats{
				TotalPackets: fs.TotalPackets, TotalEfmPackets: fs.TotalEfmPackets,
			}
		}
	}

	for key, route := range s.PingRoutes {
		pair, err := parsePairKey(key)
		if err != nil {
			return fmt.Errorf("ping_routes: %w", err)
		}
		rs.PingRoutes[pair] = route
	}

	if s.LinkSets != nil {
		for _, l := range s.LinkSets.CoreLinks {
			rs.CoreLinks = append(rs.CoreLinks, simdata.Link{Src: l.Src, Dst: l.Dst})
		}
		for _, l := range s.LinkSets.EdgeLinks {
			rs.EdgeLinks = append(rs.EdgeLinks, simdata.Link{Src: l.Src, Dst: l.Dst})
		}
	}

	for _, g := range s.GTStats {
		pct := make(map[int]float64, len(g.DelayPercentile))
		for k, v := range g.DelayPercentile {
			n, err := strconv.Atoi(k)
			if err != nil {
				return fmt.Errorf("gt_stats: bad percentile key %q: %w", k, err)
			}
			pct[n] = v
		}
		rs.LinkGroundTruth[simdata.Link{Src: g.Src, Dst: g.Dst}] = simdata.LinkGTStats{
			Lost: g.Lost, Received: g.Received, DelayPercentile: pct,
		}
	}

	return nil
}

// parsePairKey parses a "src/dst" ping_routes key into a node-id pair.
func parsePairKey(key string) ([2]uint32, error) {
	parts := strings.SplitN(key, "/", 2)
	if len(parts) != 2 {
		return [2]uint32{}, fmt.Errorf("malformed pair key %q", key)
	}
	a, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return [2]uint32{}, fmt.Errorf("malformed pair key %q: %w", key, err)
	}
	bb, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return [2]uint32{}, fmt.Errorf("malformed pair key %q: %w", key, err)
	}
	return [2]uint32{uint32(a), uint32(bb)}, nil
}
