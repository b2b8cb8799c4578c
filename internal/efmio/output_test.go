package efmio

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/COMSYS/ns3-efm-study-overview/internal/efm"
	"github.com/COMSYS/ns3-efm-study-overview/internal/localize"
	"github.com/COMSYS/ns3-efm-study-overview/internal/simdata"
)

func TestWriteOutputRoundTrips(t *testing.T) {
	doc := &OutputDocument{
		SimID: "sim-1",
		FailedLinks: FailedLinksToJSON(map[simdata.Link]simdata.FailedLinkInfo{
			{Src: 1, Dst: 2}: {LossRate: 0.2},
		}),
		LocalizationResults: []LocalizationResultJSON{
			{
				Filter:        "none",
				FlowSelection: "ALL_FLOWS",
				Results: []LocalizeResultJSON{LocalizeResultToJSON(localize.Result{
					Method:      localize.MethodDetection,
					FailedLinks: map[simdata.Link]bool{{Src: 1, Dst: 2}: true},
					LinkRatings: map[simdata.Link]float64{{Src: 1, Dst: 2}: 0.2},
					EfmBits:     efm.BitSet{},
				})},
			},
		},
	}

	var buf bytes.Buffer
	if err := WriteOutput(&buf, doc); err != nil {
		t.Fatalf("WriteOutput: %v", err)
	}

	var round map[string]json.RawMessage
	if err := json.Unmarshal(buf.Bytes(), &round); err != nil {
		t.Fatalf("unmarshaling written output: %v", err)
	}
	var simID string
	if err := json.Unmarshal(round["simId"], &simID); err != nil || simID != "sim-1" {
		t.Fatalf("expected simId sim-1, got %s (%v)", round["simId"], err)
	}
}

func TestFailedLinksToJSONIsSorted(t *testing.T) {
	out := FailedLinksToJSON(map[simdata.Link]simdata.FailedLinkInfo{
		{Src: 5, Dst: 1}: {},
		{Src: 1, Dst: 9}: {},
		{Src: 1, Dst: 2}: {},
	})
	if len(out) != 3 || out[0].NodeA != 1 || out[0].NodeB != 2 || out[1].NodeB != 9 || out[2].NodeA != 5 {
		t.Fatalf("expected deterministic (src,dst) order, got %+v", out)
	}
}
