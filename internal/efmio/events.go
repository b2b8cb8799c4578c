package efmio

import (
	"encoding/json"
	"fmt"

	"github.com/COMSYS/ns3-efm-study-overview/internal/efm"
)

// UnknownEventKindError is an import error: a trace named an event
// outside the closed efm.Kind set.
type UnknownEventKindError struct{ Name string }

func (e *UnknownEventKindError) Error() string {
	return "efmio: unknown event kind " + e.Name
}

// rawEventData is the union of every field any event kind's data object may
// carry; only the fields relevant to the decoded Kind are read.
type rawEventData struct {
	Seq            *uint64  `json:"seq"`
	PktCount       *uint64  `json:"pkt_count"`
	NewState       *bool    `json:"new_state"`
	Old            *uint64  `json:"old"`
	New            *uint64  `json:"new"`
	NewLength      *uint64  `json:"new_length"`
	OldPhase       *int     `json:"old_phase"`
	NewPhase       *int     `json:"new_phase"`
	GenTrainLength *uint64  `json:"gen_train_length"`
	RefTrainLength *uint64  `json:"ref_train_length"`
	FullDelayMs    *float64 `json:"full_delay_ms"`
	HalfDelayMs    *float64 `json:"half_delay_ms"`
	Loss           *uint64  `json:"loss"`
	LossSigned     *int64   `json:"loss_signed"`
}

func u64(p *uint64) uint64 {
	if p == nil {
		return 0
	}
	return *p
}

func i64(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func boolVal(p *bool) bool {
	if p == nil {
		return false
	}
	return *p
}

// decodePayload builds the Kind-appropriate efm.Payload from one event's raw
// data object.
func decodePayload(kind efm.Kind, raw json.RawMessage) (efm.Payload, error) {
	var d rawEventData
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("efmio: decoding %q event data: %w", kind, err)
		}
	}

	switch kind {
	case efm.KindTSet:
		return efm.BitSetEvent{Seq: u64(d.Seq)}, nil

	case efm.KindLSetHost, efm.KindPLSet:
		return efm.BitSetPCountEvent{PktCount: u64(d.PktCount), Seq: u64(d.Seq)}, nil

	case efm.KindSpinUpdate, efm.KindQUpdate, efm.KindRUpdate, efm.KindSpinEdge, efm.KindQChange, efm.KindRChange:
		return efm.BitUpdateEvent{NewState: boolVal(d.NewState), Seq: u64(d.Seq)}, nil

	case efm.KindLCounterUpdate:
		return efm.LBitCounterUpdateEvent{Old: u64(d.Old), New: u64(d.New)}, nil

	case efm.KindRBlockUpdate:
		return efm.RBlockLenUpdateEvent{NewLength: u64(d.NewLength)}, nil

	case efm.KindTPhaseUpdate:
		return efm.TPhaseEvent{
			OldPhase: i64(d.OldPhase), NewPhase: i64(d.NewPhase),
			GenTrainLength: d.GenTrainLength, RefTrainLength: d.RefTrainLength,
		}, nil

	case efm.KindSpinDelay, efm.KindPingRTDelay, efm.KindPingETEDelay, efm.KindTCPDartDelay,
		efm.KindGTTransDelay, efm.KindGTAppDelay:
		return efm.DelayMeasurementEvent{FullDelayMs: deref(d.FullDelayMs), HalfDelayMs: d.HalfDelayMs}, nil

	case efm.KindQLoss, efm.KindRLoss, efm.KindTFullLoss, efm.KindTHalfLoss,
		efm.KindPingRTLoss, efm.KindPingETELoss, efm.KindPSQLoss:
		return efm.LossMeasurementEvent{PktCount: u64(d.PktCount), Loss: u64(d.Loss)}, nil

	case efm.KindSeqLoss, efm.KindAckSeqLoss, efm.KindTCPReordering:
		return efm.SignedLossMeasurementEvent{PktCount: u64(d.PktCount), LossSigned: signed(d)}, nil

	case efm.KindFlowBegin:
		return efm.BitSetEvent{Seq: u64(d.Seq)}, nil

	default:
		return nil, &UnknownEventKindError{Name: string(kind)}
	}
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// signed prefers the explicit loss_signed field, falling back to the
// unsigned loss field for documents that never emit a negative sample.
func signed(d rawEventData) int64 {
	if d.LossSigned != nil {
		return *d.LossSigned
	}
	return int64(u64(d.Loss))
}

// decodeEvent builds an efm.Event from one trace entry's event record.
func decodeEvent(e EventJSON) (efm.Event, error) {
	kind := efm.Kind(e.Name)
	payload, err := decodePayload(kind, e.Data)
	if err != nil {
		return efm.Event{}, err
	}
	return efm.Event{Kind: kind, Time: e.Time, FlowID: e.GroupID.FlowID, Data: payload}, nil
}
