package orchestrate

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/COMSYS/ns3-efm-study-overview/internal/cache"
	"github.com/COMSYS/ns3-efm-study-overview/internal/classify"
	"github.com/COMSYS/ns3-efm-study-overview/internal/efm"
	"github.com/COMSYS/ns3-efm-study-overview/internal/simdata"
)

// classifyCacheKey names a classify.Build call: identical inputs always
// classify identically, so two configs asking for the
// same (observer set, bit set, mode, thresholds, flow selection strategy)
// combination over the same sim id and sim filter can share one result.
// filter must be included: two configs can share a sim id but classify
// over differently pre-filtered result sets.
func classifyCacheKey(simID string, filter string, observers []uint32, bits efm.BitSet, mode classify.Mode, lossTh, delayTh float64, flowLenTh uint64, timeFilterMs float64, strategyName string) string {
	sortedObs := append([]uint32(nil), observers...)
	sort.Slice(sortedObs, func(i, j int) bool { return sortedObs[i] < sortedObs[j] })

	bitNames := make([]string, 0, bits.Len())
	for _, b := range bits.Bits() {
		bitNames = append(bitNames, b.String())
	}
	return fmt.Sprintf("classify/%s/%s/%v/%v/%d/%g/%g/%d/%g/%s",
		simID, filter, sortedObs, bitNames, mode, lossTh, delayTh, flowLenTh, timeFilterMs, strategyName)
}

// cachedPaths is the wire shape a classify.Set is memoized as: its flat
// path list, the (observer, bit) buckets it was built over, and the bit
// set, so FromPaths can re-materialize the always-present empty buckets.
type cachedPaths struct {
	Paths     []classify.Path `json:"paths"`
	Observers []uint32        `json:"observers"`
	Bits      []string        `json:"bits"`
}

func buildClassifySet(ctx context.Context, store cache.Store, key string, rs *simdata.ResultSet, cfg classify.Config) (*classify.Set, error) {
	compute := func() ([]byte, error) {
		set := classify.Build(rs, cfg)
		return encodeCachedPaths(set, cfg)
	}
	raw, err := store.GetOrCompute(ctx, key, compute)
	if err != nil {
		return nil, fmt.Errorf("orchestrate: classifying %s: %w", key, err)
	}
	return decodeCachedPaths(raw, cfg.Observers, cfg.Bits)
}

func encodeCachedPaths(set *classify.Set, cfg classify.Config) ([]byte, error) {
	observers := make([]uint32, 0, len(cfg.Observers))
	for o := range cfg.Observers {
		observers = append(observers, o)
	}
	bitNames := make([]string, 0, cfg.Bits.Len())
	for _, b := range cfg.Bits.Bits() {
		bitNames = append(bitNames, b.String())
	}
	return json.Marshal(cachedPaths{Paths: set.AllPaths(), Observers: observers, Bits: bitNames})
}

func decodeCachedPaths(raw []byte, observers map[uint32]bool, bits efm.BitSet) (*classify.Set, error) {
	var cp cachedPaths
	if err := json.Unmarshal(raw, &cp); err != nil {
		return nil, fmt.Errorf("decoding cached classification: %w", err)
	}
	return classify.FromPaths(cp.Paths, observers, bits), nil
}
