package simdata

// RawValues is a finite, not-restartable lazy sequence of doubles, as used
// by the raw-value accumulation entry points (GetRawSpinRTValues,
// GetRawTcpHRTValues, GetRawPingDelayValues — see spec's "Generator-like
// collection" design note). Consumers either materialize it to an ordered
// slice (Collect) or fold over it once (Sum); either exhausts the sequence.
type RawValues struct {
	next func() (float64, bool)
	done bool
}

// newRawValues builds a RawValues sequence over a pre-extracted slice. The
// extraction itself (picking which field of which events to read) happens
// once, lazily, the first time the sequence is pulled from.
func newRawValues(extract func() []float64) RawValues {
	var vals []float64
	idx := 0
	started := false
	return RawValues{next: func() (float64, bool) {
		if !started {
			vals = extract()
			started = true
		}
		if idx >= len(vals) {
			return 0, false
		}
		v := vals[idx]
		idx++
		return v, true
	}}
}

// Next pulls the next value from the sequence, if any remain.
func (r *RawValues) Next() (float64, bool) {
	if r.done {
		return 0, false
	}
	v, ok := r.next()
	if !ok {
		r.done = true
	}
	return v, ok
}

// Collect materializes the remainder of the sequence into a slice,
// exhausting it.
func (r *RawValues) Collect() []float64 {
	out := make([]float64, 0)
	for {
		v, ok := r.Next()
		if !ok {
			break
		}
		out = append(out, v)
	}
	return out
}

// Sum folds the remainder of the sequence into a single total, exhausting
// it.
func (r *RawValues) Sum() float64 {
	var total float64
	for {
		v, ok := r.Next()
		if !ok {
			break
		}
		total += v
	}
	return total
}
