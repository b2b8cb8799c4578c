// Package efmconfig parses the analysis configuration document (a JSON
// array of entries) into the resolved, Go-native Config values that
// classify, selection, simfilter and localize consume, applying the
// auto-threshold derivation and config-error validation along the way.
package efmconfig

import (
	"encoding/json"
	"fmt"
)

// EntryJSON is one analysis config document entry, before resolution.
// Pointer fields distinguish "absent" from "present with zero value", which
// storeMeasurements's first-wins rule and the loss/delay threshold
// exactly-one rule both depend on.
type EntryJSON struct {
	StoreMeasurements    *bool               `json:"storeMeasurements"`
	PerformLocalization  bool                `json:"performLocalization"`
	EfmBitSets           [][]string          `json:"efmBitSets"`
	ClassificationModes  []string            `json:"classificationModes"`
	ClassificationBaseID *string             `json:"classification_base_id"`
	FlowLengthTh         uint64              `json:"flowLengthTh"`
	ObserverSets         []json.RawMessage   `json:"observerSets"`

	LossRateTh           *float64 `json:"lossRateTh"`
	AutoLossRateThOffset *float64 `json:"autoLossRateThOffset"`
	DelayThMs            *float64 `json:"delayThMs"`
	AutoDelayThOffsetMs  *float64 `json:"autoDelayThOffsetMs"`

	LocalizationMethods     map[string]map[string]float64 `json:"localizationMethods"`
	FlowSelectionStrategies map[string]map[string]float64 `json:"flowSelectionStrategies"`

	SimFilter     *SimFilterJSON `json:"simFilter"`
	TimeFilterMs  float64        `json:"time_filter_ms"`
	OutputRawValues bool         `json:"output_raw_values"`
}

// SimFilterJSON is the simFilter sub-object of one config entry.
type SimFilterJSON struct {
	LBitTriggeredMonitoring   bool `json:"lBitTriggeredMonitoring"`
	RemoveLastXSpinTransients int  `json:"removeLastXSpinTransients"`
}

// ObserverSetEntryJSON is the `{observers, metadata}` object form of one
// observerSets element; the bare-array form is handled separately since
// Go's encoding/json cannot decode one field as "either a list or an
// object" without a raw-message detour (see parseObserverSet).
type ObserverSetEntryJSON struct {
	Observers []uint32               `json:"observers"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// ParseDocument decodes an analysis config document: a JSON array of
// entries.
func ParseDocument(raw []byte) ([]EntryJSON, error) {
	var entries []EntryJSON
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("efmconfig: parsing analysis config document: %w", err)
	}
	return entries, nil
}
