package accum

import (
	"fmt"

	"github.com/COMSYS/ns3-efm-study-overview/internal/classify"
)

// ObserverBitResult is one (observer, bit) summary of classified
// measurements ("observerFlowResults" / "observerActiveResults" /
// "observerPathResults").
type ObserverBitResult struct {
	Observer uint32
	Bit      string
	Stats    Stats
}

// resultKey is the map key shared by every *Results/*RawValues output
// field: "<observer>/<bit>".
func resultKey(observer uint32, bit string) string {
	return fmt.Sprintf("%d/%s", observer, bit)
}

// BuildObserverResults summarizes a classified-path set's measurements,
// split into flow (passive bit) and active (ping bit) buckets, each
// bucket paired with its raw value series for the matching *RawValues
// field (materialized eagerly here; Accumulator.Build in build.go gates
// whether they are actually serialized on output_raw_values).
func BuildObserverResults(set *classify.Set) (flow, active map[string]ObserverBitResult, flowRaw, activeRaw map[string][]float64) {
	flow = make(map[string]ObserverBitResult)
	active = make(map[string]ObserverBitResult)
	flowRaw = make(map[string][]float64)
	activeRaw = make(map[string][]float64)

	for _, observer := range set.Observers() {
		for _, bit := range set.Bits(observer) {
			paths := set.Paths(observer, bit)
			values := make([]float64, 0, len(paths))
			for _, p := range paths {
				values = append(values, p.Measurement)
			}
			k := resultKey(observer, bit.String())
			result := ObserverBitResult{Observer: observer, Bit: bit.String(), Stats: ComputeStats(values)}
			if bit.IsActive() {
				active[k] = result
				activeRaw[k] = values
			} else {
				flow[k] = result
				flowRaw[k] = values
			}
		}
	}
	return flow, active, flowRaw, activeRaw
}

func mergeResults(dst, src map[string]ObserverBitResult) {
	for k, v := range src {
		dst[k] = v
	}
}

func mergeRaw(dst, src map[string][]float64) {
	for k, v := range src {
		dst[k] = v
	}
}
