package localize

import (
	"fmt"
	"math"

	"github.com/COMSYS/ns3-efm-study-overview/internal/classify"
	"github.com/COMSYS/ns3-efm-study-overview/internal/simdata"
)

func initialWeights(universe []simdata.Link, normalize bool) map[simdata.Link]float64 {
	v := 1.0
	if normalize && len(universe) > 0 {
		v = 1.0 / float64(len(universe))
	}
	w := make(map[simdata.Link]float64, len(universe))
	for _, l := range universe {
		w[l] = v
	}
	return w
}

func renormalize(w map[simdata.Link]float64) {
	var sum float64
	for _, v := range w {
		sum += v
	}
	if sum == 0 {
		return
	}
	for l := range w {
		w[l] /= sum
	}
}

// incFactor computes the per-path increase factor. levelled selects
// the three-level severity variant, whose α comes from the path's
// strongest severity flag rather than a single winc.
func incFactor(p classify.Path, params Params, levelled bool) (float64, error) {
	alpha := params.Winc
	if levelled {
		switch {
		case p.Large:
			alpha = params.WincLvl3
		case p.Medium:
			alpha = params.WincLvl2
		case p.Small:
			alpha = params.WincLvl1
		default:
			return 0, fmt.Errorf("localize: failed path %v carries no severity flag for a levelled weight function", p.LinkPath)
		}
	}
	gamma := params.WScale
	if params.PathScale {
		return 1 + alpha - alpha*(1-1/float64(len(p.LinkPath)))*gamma, nil
	}
	return 1 + alpha*gamma, nil
}

// applyWeightsStandard runs the weight function: every failed path's
// links are multiplied by inc, every non-failed path's links by wdec.
func applyWeightsStandard(paths []classify.Path, params Params, levelled bool) (map[simdata.Link]float64, error) {
	universe := linkUniverse(paths)
	w := initialWeights(universe, params.Normalize)
	for _, p := range paths {
		if p.Failed {
			inc, err := incFactor(p, params, levelled)
			if err != nil {
				return nil, err
			}
			for _, l := range p.LinkPath {
				w[l] *= inc
			}
		} else {
			for _, l := range p.LinkPath {
				w[l] *= params.WDec
			}
		}
		if params.Normalize {
			renormalize(w)
		}
	}
	return w, nil
}

// applyWeightsBadOnly runs the bad-paths-only weight function: good paths
// are never touched; each failed path multiplies its own links by inc and
// every other link in the universe by wdec.
func applyWeightsBadOnly(paths []classify.Path, params Params, levelled bool) (map[simdata.Link]float64, error) {
	universe := linkUniverse(paths)
	w := initialWeights(universe, params.Normalize)
	for _, p := range paths {
		if !p.Failed {
			continue
		}
		inc, err := incFactor(p, params, levelled)
		if err != nil {
			return nil, err
		}
		onPath := make(map[simdata.Link]bool, len(p.LinkPath))
		for _, l := range p.LinkPath {
			onPath[l] = true
		}
		for _, l := range universe {
			if onPath[l] {
				w[l] *= inc
			} else {
				w[l] *= params.WDec
			}
		}
		if params.Normalize {
			renormalize(w)
		}
	}
	return w, nil
}

// runWeightIter implements WEIGHT_ITER / WEIGHT_ITER_LVL: repeatedly
// recompute weights over the remaining paths, move the single max-weight
// link over wthresh into the bad set, and drop every path through it;
// stop once nothing exceeds wthresh. Bounded to L iterations (L = distinct
// links across the original input), which also bounds the iteration's
// convergence.
func runWeightIter(paths []classify.Path, params Params, levelled bool, method Method) (Result, error) {
	remaining := append([]classify.Path(nil), paths...)
	limit := len(linkUniverse(paths))
	bad := make(map[simdata.Link]bool)
	ratings := make(map[simdata.Link]float64)

	for i := 0; i < limit; i++ {
		universe := linkUniverse(remaining)
		if len(universe) == 0 {
			break
		}
		w, err := applyWeightsStandard(remaining, params, levelled)
		if err != nil {
			return Result{}, err
		}
		var maxLink simdata.Link
		maxW := math.Inf(-1)
		for _, l := range universe {
			if w[l] > maxW {
				maxW = w[l]
				maxLink = l
			}
		}
		if maxW <= params.WThresh {
			break
		}
		bad[maxLink] = true
		ratings[maxLink] = maxW
		remaining = removePathsContaining(remaining, maxLink)
	}
	return Result{FailedLinks: bad, LinkRatings: ratings, Method: method, Params: params}, nil
}

func removePathsContaining(paths []classify.Path, l simdata.Link) []classify.Path {
	out := make([]classify.Path, 0, len(paths))
	for _, p := range paths {
		if !p.LinkPath.ContainsLink(l) {
			out = append(out, p)
		}
	}
	return out
}
