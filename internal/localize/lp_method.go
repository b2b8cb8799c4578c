package localize

import (
	"fmt"
	"math"

	"github.com/COMSYS/ns3-efm-study-overview/internal/classify"
	"github.com/COMSYS/ns3-efm-study-overview/internal/efm"
	"github.com/COMSYS/ns3-efm-study-overview/internal/efmwarn"
	"github.com/COMSYS/ns3-efm-study-overview/internal/localize/lp"
	"github.com/COMSYS/ns3-efm-study-overview/internal/simdata"
)

// RunLPWithSlack implements LP_WITH_SLACK: one nonnegative variable xℓ per
// link, a positive/negative slack pair per path, minimizing the sum of
// slack. When solver has no ILP backend (the default, since this module
// carries no ILP library), the method logs a notice via sink and returns
// an empty result rather than aborting the run.
func RunLPWithSlack(paths []classify.Path, bit efm.Bit, params Params, bits efm.BitSet, solver lp.Solver, sink WarnSink) (Result, error) {
	if len(paths) == 0 {
		return emptyResult(MethodLPWithSlack, params, bits), nil
	}
	if solver == nil {
		solver = lp.Unavailable
	}

	universe := linkUniverse(paths)
	problem, err := buildLPProblem(paths, universe, bit.IsLossBit())
	if err != nil {
		return Result{}, err
	}

	sol, err := solver.Solve(problem)
	if err != nil {
		warn(sink, efmwarn.KindSolverUnavailable, fmt.Sprintf("LP_WITH_SLACK: %v", err))
		return emptyResult(MethodLPWithSlack, params, bits), nil
	}

	ratings := make(map[simdata.Link]float64, len(universe))
	bad := make(map[simdata.Link]bool)
	for i, l := range universe {
		if i >= len(sol.LinkVars) {
			break
		}
		x := sol.LinkVars[i]
		rating := x
		if bit.IsLossBit() {
			rating = 1 - math.Exp(-x)
		}
		ratings[l] = rating
		if rating >= params.Tau {
			bad[l] = true
		}
	}
	return Result{FailedLinks: bad, LinkRatings: ratings, Method: MethodLPWithSlack, Params: params, EfmBits: bits}, nil
}

// buildLPProblem builds one equality row per eligible path: the link
// indicator columns plus that path's slack pair (pᵢ, -nᵢ), set equal to
// -ln(1-m) for loss or m for delay.
func buildLPProblem(paths []classify.Path, universe []simdata.Link, isLoss bool) (lp.Problem, error) {
	col := make(map[simdata.Link]int, len(universe))
	for i, l := range universe {
		col[l] = i
	}
	numLink := len(universe)

	var rows [][]float64
	var rhs []float64
	slackIdx := 0
	for _, p := range paths {
		m := p.Measurement
		var target float64
		if isLoss {
			if m < 0 {
				return lp.Problem{}, fmt.Errorf("localize: negative loss measurement in LP_WITH_SLACK input")
			}
			if m >= 1 {
				continue
			}
			target = -math.Log(1 - m)
		} else {
			target = m
		}

		row := make([]float64, numLink+2*(len(paths)))
		for _, l := range p.LinkPath {
			if c, ok := col[l]; ok {
				row[c] = 1
			}
		}
		row[numLink+2*slackIdx] = 1
		row[numLink+2*slackIdx+1] = -1
		rows = append(rows, row)
		rhs = append(rhs, target)
		slackIdx++
	}
	return lp.Problem{NumLinkVars: numLink, Rows: rows, RHS: rhs}, nil
}
