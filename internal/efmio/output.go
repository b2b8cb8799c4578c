package efmio

import (
	"encoding/json"
	"fmt"
	"io"
)

// OutputDocument is the analysis run's result shape. Built by
// internal/accum and serialized here, the only package permitted
// to know its on-disk field names.
type OutputDocument struct {
	SimID             string                  `json:"simId"`
	Config            json.RawMessage         `json:"config,omitempty"`
	FlowPathMap       map[string][]uint32     `json:"flowPathMap,omitempty"`
	FailedLinks       []FailedLinkJSON        `json:"failedLinks,omitempty"`
	BackboneOverrides []FailedLinkJSON        `json:"backboneOverrides,omitempty"`
	AllLinks          []LinkJSON              `json:"allLinks,omitempty"`
	EdgeLinks         []LinkJSON              `json:"edgeLinks,omitempty"`
	CoreLinks         []LinkJSON              `json:"coreLinks,omitempty"`
	LinkGroundtruthStats []LinkGTStatJSON     `json:"linkGroundtruthStats,omitempty"`

	ObserverFlowResults   json.RawMessage `json:"observerFlowResults,omitempty"`
	ObserverFlowRawValues json.RawMessage `json:"observerFlowRawValues,omitempty"`
	ObserverPathResults   json.RawMessage `json:"observerPathResults,omitempty"`
	ObserverPathRawValues json.RawMessage `json:"observerPathRawValues,omitempty"`
	ObserverActiveResults   json.RawMessage `json:"observerActiveResults,omitempty"`
	ObserverActiveRawValues json.RawMessage `json:"observerActiveRawValues,omitempty"`

	LocalizationResults []LocalizationResultJSON `json:"localizationResults"`
}

// LocalizationResultJSON is one {filter, config, flowSelection, results}
// entry of the output document's localizationResults array: results is
// itself an array of per-(bit set, method) outcomes sharing the
// same filter/config/flowSelection context.
type LocalizationResultJSON struct {
	Filter        string               `json:"filter"`
	Config        json.RawMessage      `json:"config"`
	FlowSelection string               `json:"flowSelection"`
	Results       []LocalizeResultJSON `json:"results"`
}

// LocalizeResultJSON is the on-disk shape of one localize.Result.
type LocalizeResultJSON struct {
	Method      string             `json:"method"`
	FailedLinks []LinkJSON         `json:"failedLinks"`
	LinkRatings map[string]float64 `json:"linkRatings,omitempty"`
}

// WriteOutput marshals an output document as indented JSON.
func WriteOutput(w io.Writer, doc *OutputDocument) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("efmio: writing output document: %w", err)
	}
	return nil
}
