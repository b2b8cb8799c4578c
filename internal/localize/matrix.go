package localize

import (
	"fmt"
	"math"

	"github.com/COMSYS/ns3-efm-study-overview/internal/efm"
	"github.com/COMSYS/ns3-efm-study-overview/internal/efmwarn"
	"github.com/COMSYS/ns3-efm-study-overview/internal/linkset"
	"github.com/COMSYS/ns3-efm-study-overview/internal/localize/lsqr"
	"github.com/COMSYS/ns3-efm-study-overview/internal/simdata"
)

// RunMatrix implements the LIN_LSQR / FLOW_COMBINATION methods over matrix
// inputs: bucket and idx come from either
// linkset.Build or linkset.BuildCombined, already walked for this
// (observer, bit). A loss-bit row's measurement is rewritten ln(1-b); rows
// with b < 0 are a hard error, rows with b >= 1 are dropped with a
// warning. Delay-bit rows pass through unchanged. The solved x is mapped
// back through rating = 1-e^x (loss) or rating = x (delay), bad iff
// rating >= Params.Tau.
func RunMatrix(bucket *linkset.Bucket, idx *linkset.LinkIndex, bit efm.Bit, params Params, bits efm.BitSet, sink WarnSink) (Result, error) {
	if bucket == nil || len(bucket.A) == 0 {
		return emptyResult(MethodLSQR, params, bits), nil
	}

	A := make([][]float64, 0, len(bucket.A))
	b := make([]float64, 0, len(bucket.B))
	for i, row := range bucket.A {
		v := bucket.B[i]
		if bit.IsLossBit() {
			if v < 0 {
				return Result{}, fmt.Errorf("localize: negative loss-bit measurement in LSQR row %d", i)
			}
			if v >= 1 {
				warn(sink, efmwarn.KindLSQRLossAtOrAboveOne, "loss-rate measurement at or above one dropped from LSQR input")
				continue
			}
			v = math.Log(1 - v)
		}
		A = append(A, row)
		b = append(b, v)
	}
	if len(A) == 0 {
		return emptyResult(MethodLSQR, params, bits), nil
	}

	x, term, err := lsqr.Solve(A, b)
	if err != nil {
		return Result{}, err
	}
	if term == lsqr.TerminationIllConditioned {
		warn(sink, efmwarn.KindInfeasibleLocalization, "LSQR solve reported an ill-conditioned system")
	}

	ratings := make(map[simdata.Link]float64, idx.Len())
	bad := make(map[simdata.Link]bool)
	for col, v := range x {
		l, ok := idx.Link(col)
		if !ok {
			continue
		}
		rating := v
		if bit.IsLossBit() {
			rating = 1 - math.Exp(v)
		}
		ratings[l] = rating
		if rating >= params.Tau {
			bad[l] = true
		}
	}
	return Result{FailedLinks: bad, LinkRatings: ratings, Method: MethodLSQR, Params: params, EfmBits: bits}, nil
}
