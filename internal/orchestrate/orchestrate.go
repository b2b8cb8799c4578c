// Package orchestrate ties classification, flow selection, link-set
// construction, and localization into one analysis run: fan a
// fixed set of (config, observer set, classification mode, flow selection
// strategy) units out across a bounded worker pool, then fold every unit's
// output into one run-wide accumulator in a fixed, input-derived order so
// repeated runs over the same input are bitwise identical.
package orchestrate

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/COMSYS/ns3-efm-study-overview/internal/accum"
	"github.com/COMSYS/ns3-efm-study-overview/internal/cache"
	"github.com/COMSYS/ns3-efm-study-overview/internal/efmconfig"
	"github.com/COMSYS/ns3-efm-study-overview/internal/efmio"
	"github.com/COMSYS/ns3-efm-study-overview/internal/efmwarn"
	"github.com/COMSYS/ns3-efm-study-overview/internal/localize/lp"
	"github.com/COMSYS/ns3-efm-study-overview/internal/simdata"
	"github.com/COMSYS/ns3-efm-study-overview/internal/simfilter"
)

// Manager runs analysis configs against one result set. A Manager is
// reusable across result sets; it holds no per-run state itself.
type Manager struct {
	store   cache.Store
	solver  lp.Solver
	workers int
}

// NewManager builds a Manager. store memoizes classification results
// across units that request the same (sim id, filter, observer set, bit
// set, mode, thresholds, strategy) combination (classifyCacheKey); pass
// cache.NewMemStore() for a single-process run or a cache.RedisStore to
// share the cache across processes. workers bounds how many units run
// concurrently; values below 1 are treated as 1.
func NewManager(store cache.Store, solver lp.Solver, workers int) *Manager {
	if workers < 1 {
		workers = 1
	}
	return &Manager{store: store, solver: solver, workers: workers}
}

// Run executes every unit buildUnits derives from configs against rs and
// assembles the output document. rawConfig is the as-parsed analysis
// config document, embedded verbatim in the output's "config" field.
func (m *Manager) Run(ctx context.Context, rs *simdata.ResultSet, rawConfig json.RawMessage, configs []efmconfig.Config) (*efmio.OutputDocument, error) {
	filtered := make([]*simdata.ResultSet, len(configs))
	for i, cfg := range configs {
		filtered[i] = applyFilter(rs, cfg.SimFilter)
	}

	units := buildUnits(configs)
	outputs := make([]unitOutput, len(units))
	errs := make([]error, len(units))
	warn := &efmwarn.Tally{}

	m.dispatch(ctx, units, filtered, outputs, errs, warn)

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	acc := accum.NewAccumulator()
	acc.AddPaths(rs)

	var results []efmio.LocalizationResultJSON
	outputRaw := false
	for _, cfg := range configs {
		if cfg.OutputRawValues {
			outputRaw = true
		}
	}
	for _, out := range outputs {
		for _, set := range out.classified {
			acc.AddClassified(set)
		}
		if out.entry != nil {
			results = append(results, *out.entry)
		}
	}

	return acc.Build(rs, rawConfig, outputRaw, results, warn)
}

// dispatch fans units out across a bounded pool of worker goroutines,
// assigned by shardRing on the unit's key so that a given unit always
// lands on the same shard across runs over the same config document.
// Each goroutine writes only to the slots its own shard owns, so no
// synchronization is needed on outputs/errs themselves, avoiding a mutex
// on the per-unit result slice.
func (m *Manager) dispatch(ctx context.Context, units []unit, filtered []*simdata.ResultSet, outputs []unitOutput, errs []error, warn *efmwarn.Tally) {
	ring := newShardRing(m.workers)
	byShard := make([][]int, m.workers)
	for i, u := range units {
		s := ring.shard(u.key())
		byShard[s] = append(byShard[s], i)
	}

	var wg sync.WaitGroup
	for _, idxs := range byShard {
		if len(idxs) == 0 {
			continue
		}
		wg.Add(1)
		go func(idxs []int) {
			defer wg.Done()
			for _, i := range idxs {
				u := units[i]
				out, err := runUnit(ctx, filtered[u.cfgIdx], u, m.store, m.solver, warn)
				if err != nil {
					errs[i] = fmt.Errorf("orchestrate: unit %s: %w", u.key(), err)
					continue
				}
				outputs[i] = out
			}
		}(idxs)
	}
	wg.Wait()
}

// applyFilter pre-filters rs per a config's simFilter: L-bit
// triggered monitoring first, then spin transient trimming, matching the
// order the two filters are listed in the analysis config document.
func applyFilter(rs *simdata.ResultSet, f efmconfig.SimFilter) *simdata.ResultSet {
	out := rs
	if f.LBitTriggeredMonitoring {
		out = simfilter.ApplyLBitTriggeredMonitoring(out)
	}
	if f.RemoveLastXSpinTransients > 0 {
		out = simfilter.ApplySpinTransientTrim(out, f.RemoveLastXSpinTransients)
	}
	return out
}
