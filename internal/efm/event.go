package efm

import "sort"

// Kind is the closed set of event names a trace can carry, scoped to the
// vantage point type that records them (host-side, observer-side, or
// active-measurement events recorded at either).
type Kind string

const (
	KindGTTransDelay    Kind = "gt-trans-delay"
	KindGTAppDelay      Kind = "gt-app-delay"
	KindSpinUpdate      Kind = "spin-update"
	KindLCounterUpdate  Kind = "L-counter-update"
	KindLSetHost        Kind = "L-set"
	KindQUpdate         Kind = "Q-update"
	KindRUpdate         Kind = "R-update"
	KindRBlockUpdate    Kind = "R-block-update"
	KindTSet            Kind = "T-set"
	KindTPhaseUpdate    Kind = "T-phase-update"
	KindFlowBegin       Kind = "flow-begin"
	KindSeqLoss         Kind = "seq-loss"
	KindAckSeqLoss      Kind = "ack-seq-loss"
	KindSpinEdge        Kind = "spin-edge"
	KindSpinDelay       Kind = "spin-delay"
	KindQChange         Kind = "Q-change"
	KindQLoss           Kind = "Q-loss"
	KindRChange         Kind = "R-change"
	KindRLoss           Kind = "R-loss"
	KindTFullLoss       Kind = "T-full-loss"
	KindTHalfLoss       Kind = "T-half-loss"
	KindPLSet           Kind = "P-L-set"
	KindPSQLoss         Kind = "P-SQ-loss"
	KindTCPDartDelay    Kind = "TCP-DART-delay"
	KindTCPReordering   Kind = "TCP-reordering"
	KindPingRTDelay     Kind = "ping-rt-delay"
	KindPingETEDelay    Kind = "ping-ete-delay"
	KindPingRTLoss      Kind = "ping-rt-loss"
	KindPingETELoss     Kind = "ping-ete-loss"
)

// Event is a single trace record: a kind, a simulation time, the flow it
// belongs to, and a kind-specific payload. Events are created during import
// and never mutated afterward.
type Event struct {
	Kind   Kind
	Time   float64
	FlowID uint64
	Data   Payload
}

// Payload is implemented by each of the shape-grouped event data variants.
type Payload interface {
	isEfmPayload()
}

// BitSetEvent carries just a sequence number, e.g. T-set.
type BitSetEvent struct{ Seq uint64 }

// BitSetPCountEvent additionally carries a running packet count, used by the
// host-side L-set and P-L-set records, the relative L loss denominator.
type BitSetPCountEvent struct {
	PktCount uint64
	Seq      uint64
}

// BitUpdateEvent records a state transition of a one-bit field.
type BitUpdateEvent struct {
	NewState bool
	Seq      uint64
}

// LBitCounterUpdateEvent records the host-side L counter moving old -> new.
type LBitCounterUpdateEvent struct{ Old, New uint64 }

// RBlockLenUpdateEvent records a change to the R-block length.
type RBlockLenUpdateEvent struct{ NewLength uint64 }

// TPhaseEvent records a T-bit phase transition, with optional train lengths
// present only on certain phase changes.
type TPhaseEvent struct {
	OldPhase, NewPhase int
	GenTrainLength     *uint64
	RefTrainLength     *uint64
}

// DelayMeasurementEvent carries a full-path delay sample and, when derivable
// (spin half-RT), a half-path delay sample.
type DelayMeasurementEvent struct {
	FullDelayMs float64
	HalfDelayMs *float64
}

// LossMeasurementEvent is a per-event loss count alongside the packet count
// it was computed over (Q-loss, R-loss, T-*-loss); metrics sum it across
// events.
type LossMeasurementEvent struct {
	PktCount uint64
	Loss     uint64
}

// SignedLossMeasurementEvent is like LossMeasurementEvent but the loss
// counter may be corrected to zero on negative input (seq/ack-seq/TCP
// reordering cumulative snapshots; raises a data-quality warning).
type SignedLossMeasurementEvent struct {
	PktCount   uint64
	LossSigned int64
}

func (BitSetEvent) isEfmPayload()                 {}
func (BitSetPCountEvent) isEfmPayload()            {}
func (BitUpdateEvent) isEfmPayload()               {}
func (LBitCounterUpdateEvent) isEfmPayload()       {}
func (RBlockLenUpdateEvent) isEfmPayload()         {}
func (TPhaseEvent) isEfmPayload()                  {}
func (DelayMeasurementEvent) isEfmPayload()         {}
func (LossMeasurementEvent) isEfmPayload()          {}
func (SignedLossMeasurementEvent) isEfmPayload()    {}

// Set is an ordered-by-time multiset of events, grouped by kind, for one
// entity (an observer flow, a path, or a ping pair). Append-only during
// import; filters produce a fresh Set rather than mutating one in place.
type Set struct {
	byKind map[Kind][]Event
}

// NewSet returns an empty event set.
func NewSet() *Set {
	return &Set{byKind: make(map[Kind][]Event)}
}

// Add appends an event to its kind's bucket. Callers must add events in a
// valid ordering pass (Finalize re-sorts by time regardless).
func (s *Set) Add(e Event) {
	s.byKind[e.Kind] = append(s.byKind[e.Kind], e)
}

// Finalize sorts every kind bucket by time; equal times are left in
// insertion order (stable sort) — equal times are permitted.
func (s *Set) Finalize() {
	for k := range s.byKind {
		bucket := s.byKind[k]
		sort.SliceStable(bucket, func(i, j int) bool { return bucket[i].Time < bucket[j].Time })
	}
}

// Events returns the ordered-by-time events of one kind. The returned slice
// must not be mutated by the caller.
func (s *Set) Events(k Kind) []Event { return s.byKind[k] }

// Len reports how many events of a kind are present.
func (s *Set) Len(k Kind) int { return len(s.byKind[k]) }

// Kinds returns the set of kinds with at least one event, unordered.
func (s *Set) Kinds() []Kind {
	out := make([]Kind, 0, len(s.byKind))
	for k, v := range s.byKind {
		if len(v) > 0 {
			out = append(out, k)
		}
	}
	return out
}

// Clone deep-copies the event buckets into a fresh Set. Event values
// (and any pointer fields inside their payloads) may be shared since
// events are immutable after creation; only the containing slices/map
// are fresh.
func (s *Set) Clone() *Set {
	out := NewSet()
	for k, events := range s.byKind {
		cp := make([]Event, len(events))
		copy(cp, events)
		out.byKind[k] = cp
	}
	return out
}

// Replace overwrites the bucket for a kind wholesale. Used by filters that
// rewrite or drop events of a given kind.
func (s *Set) Replace(k Kind, events []Event) {
	s.byKind[k] = events
}
