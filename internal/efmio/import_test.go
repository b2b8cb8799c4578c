package efmio

import (
	"testing"

	"github.com/COMSYS/ns3-efm-study-overview/internal/efm"
	"github.com/COMSYS/ns3-efm-study-overview/internal/simdata"
)

const masterDoc = `{
  "title": "sim-1",
  "summary": {
    "failed_links": [{"nodeA": 1, "nodeB": 2, "lossRate": 0.2, "delayMs": 0}],
    "observer_flows": {"7": {"src_node_id": 1, "src_port": 1000, "dst_node_id": 3, "dst_port": 80, "prot": "tcp"}},
    "observer_stats": {"2": {"7": {"total_packets": 100, "total_efm_packets": 90}}},
    "link_sets": {"core_links": [{"src": 1, "dst": 2}], "edge_links": [{"src": 2, "dst": 3}]},
    "gt_stats": [{"src": 1, "dst": 2, "lost": 5, "received": 95, "delay_percentile_us": {"50": 12.5}}],
    "ping_routes": {"1/3": [1, 2, 3]}
  },
  "traces": [
    {
      "vantage_point": {"name": "2/network", "type": "network"},
      "events": [
        {"name": "flow-begin", "time": 0.0, "group_id": {"flow_id": 7}, "data": {}},
        {"name": "seq-loss", "time": 1.5, "group_id": {"flow_id": 7}, "data": {"pkt_count": 80, "loss_signed": 20}}
      ]
    }
  ]
}`

func TestImportMasterPopulatesSummaryAndTraces(t *testing.T) {
	doc, err := ParseDocument([]byte(masterDoc))
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	rs, err := ImportMaster(doc)
	if err != nil {
		t.Fatalf("ImportMaster: %v", err)
	}
	if rs.SimID != "sim-1" {
		t.Fatalf("expected sim id sim-1, got %q", rs.SimID)
	}
	link := simdata.Link{Src: 1, Dst: 2}
	if info, ok := rs.FailedLinks[link]; !ok || info.LossRate != 0.2 {
		t.Fatalf("expected failed link (1,2) lossRate 0.2, got %+v", rs.FailedLinks)
	}
	if tuple, ok := rs.FlowTuples[7]; !ok || tuple.DstNodeID != 3 {
		t.Fatalf("expected flow 7 tuple dst 3, got %+v", rs.FlowTuples)
	}
	if stats, ok := rs.ObserverFlowStats[2][7]; !ok || stats.TotalPackets != 100 {
		t.Fatalf("expected observer 2 flow 7 stats, got %+v", rs.ObserverFlowStats)
	}
	if len(rs.CoreLinks) != 1 || rs.CoreLinks[0] != (simdata.Link{Src: 1, Dst: 2}) {
		t.Fatalf("expected one core link (1,2), got %v", rs.CoreLinks)
	}
	if gt, ok := rs.LinkGroundTruth[link]; !ok || gt.Lost != 5 || gt.DelayPercentile[50] != 12.5 {
		t.Fatalf("expected gt stats for (1,2), got %+v", rs.LinkGroundTruth)
	}
	if route, ok := rs.PingRoutes[[2]uint32{1, 3}]; !ok || len(route) != 3 {
		t.Fatalf("expected ping route 1/3, got %v", rs.PingRoutes)
	}

	vp, ok := rs.LookupVantagePoint(2)
	if !ok || vp.Type != simdata.VPObserver {
		t.Fatalf("expected an observer vantage point at node 2")
	}
	flow, ok := vp.Flow(7)
	if !ok {
		t.Fatalf("expected flow 7 recorded at node 2")
	}
	if flow.Events.Len(efm.KindFlowBegin) != 1 {
		t.Fatalf("expected one flow-begin event")
	}
	events := flow.Events.Events(efm.KindSeqLoss)
	if len(events) != 1 {
		t.Fatalf("expected one seq-loss event, got %d", len(events))
	}
	p, ok := events[0].Data.(efm.SignedLossMeasurementEvent)
	if !ok || p.LossSigned != 20 || p.PktCount != 80 {
		t.Fatalf("expected seq-loss payload {80,20}, got %+v", events[0].Data)
	}
}

const fragmentDoc = `{
  "title_ref": "sim-1",
  "traces": [
    {
      "vantage_point": {"name": "2/network", "type": "network"},
      "events": [
        {"name": "Q-loss", "time": 2.0, "group_id": {"flow_id": 7}, "data": {"pkt_count": 64, "loss": 3}}
      ]
    }
  ]
}`

func TestImportFragmentMergesIntoMaster(t *testing.T) {
	doc, err := ParseDocument([]byte(masterDoc))
	if err != nil {
		t.Fatalf("ParseDocument(master): %v", err)
	}
	rs, err := ImportMaster(doc)
	if err != nil {
		t.Fatalf("ImportMaster: %v", err)
	}
	frag, err := ParseDocument([]byte(fragmentDoc))
	if err != nil {
		t.Fatalf("ParseDocument(fragment): %v", err)
	}
	if err := ImportFragment(rs, frag); err != nil {
		t.Fatalf("ImportFragment: %v", err)
	}
	vp, _ := rs.LookupVantagePoint(2)
	flow, _ := vp.Flow(7)
	if flow.Events.Len(efm.KindQLoss) != 1 {
		t.Fatalf("expected the fragment's Q-loss event merged in, got %d", flow.Events.Len(efm.KindQLoss))
	}
}

func TestImportFragmentRejectsWrongTitleRef(t *testing.T) {
	doc, _ := ParseDocument([]byte(masterDoc))
	rs, _ := ImportMaster(doc)
	bad := &TraceDocument{TitleRef: "sim-2"}
	if err := ImportFragment(rs, bad); err == nil {
		t.Fatal("expected an error for a title_ref that does not match the master's sim id")
	}
}

func TestImportMasterRejectsUnknownVantagePointType(t *testing.T) {
	const bad = `{"title":"sim-x","traces":[{"vantage_point":{"name":"1/x","type":"router"},"events":[]}]}`
	doc, err := ParseDocument([]byte(bad))
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	if _, err := ImportMaster(doc); err == nil {
		t.Fatal("expected an error for an unknown vantage point type")
	}
}

func TestImportMasterRejectsUnknownEventKind(t *testing.T) {
	const bad = `{"title":"sim-x","traces":[{"vantage_point":{"name":"1/network","type":"network"},"events":[{"name":"bogus-event","time":0,"group_id":{"flow_id":1}}]}]}`
	doc, err := ParseDocument([]byte(bad))
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	if _, err := ImportMaster(doc); err == nil {
		t.Fatal("expected an error for an unknown event kind")
	}
}

func TestParseDocumentRejectsMissingTitleAndTitleRef(t *testing.T) {
	if _, err := ParseDocument([]byte(`{"traces":[]}`)); err == nil {
		t.Fatal("expected an error when neither title nor title_ref is present")
	}
}
