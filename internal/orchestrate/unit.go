package orchestrate

import (
	"fmt"

	"github.com/COMSYS/ns3-efm-study-overview/internal/classify"
	"github.com/COMSYS/ns3-efm-study-overview/internal/efmconfig"
)

// unit is one (config, observer set, classification mode, flow selection
// strategy) combination: the outer three axes of run orchestration.
// Its own inner loop walks bit sets and localization methods.
type unit struct {
	cfgIdx    int
	cfg       efmconfig.Config
	obsIdx    int
	obsSet    efmconfig.ObserverSet
	mode      classify.Mode
	strategy  efmconfig.FlowSelectionStrategy
}

// buildUnits enumerates every unit across all configs, in the stable order
// required for deterministic output: configs in document order,
// observer sets in document order, modes in document order, strategies
// sorted by name (resolveFlowSelectionStrategies already guarantees this).
func buildUnits(configs []efmconfig.Config) []unit {
	var out []unit
	for ci, cfg := range configs {
		for oi, obsSet := range cfg.ObserverSets {
			for _, mode := range cfg.ClassificationModes {
				for _, strat := range cfg.FlowSelectionStrategies {
					out = append(out, unit{
						cfgIdx:   ci,
						cfg:      cfg,
						obsIdx:   oi,
						obsSet:   obsSet,
						mode:     mode,
						strategy: strat,
					})
				}
			}
		}
	}
	return out
}

// key is the unit's identity for shard assignment and logging: stable
// across runs given the same config document and observer sets.
func (u unit) key() string {
	return fmt.Sprintf("%d/%d/%d/%s", u.cfgIdx, u.obsIdx, u.mode, u.strategy.Name)
}

func observerSetMap(obs []uint32) map[uint32]bool {
	out := make(map[uint32]bool, len(obs))
	for _, o := range obs {
		out[o] = true
	}
	return out
}
