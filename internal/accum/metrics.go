package accum

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/COMSYS/ns3-efm-study-overview/internal/efmwarn"
)

// Prometheus metrics — global only (no unbounded label cardinality: the
// warnings vector is keyed by the closed set of efmwarn kinds).
var (
	classifiedBucketsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "efm_analyze_classified_buckets_total",
		Help: "Number of (observer, bit) classified-path buckets accumulated into output documents.",
	})
	outputDocumentsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "efm_analyze_output_documents_total",
		Help: "Output documents written.",
	})
	warningsTotal = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "efm_analyze_warnings_total",
		Help: "Data-quality warnings raised during the most recently accumulated run, by kind.",
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(classifiedBucketsTotal, outputDocumentsTotal, warningsTotal)
}

// warnKinds lists every efmwarn kind this package reports a gauge for.
var warnKinds = []string{
	efmwarn.KindShortFlowPath,
	efmwarn.KindNegativeLossCorrected,
	efmwarn.KindNegativePingSample,
	efmwarn.KindNegativeCombinedDiff,
	efmwarn.KindLSQRLossAtOrAboveOne,
	efmwarn.KindSolverUnavailable,
	efmwarn.KindInfeasibleLocalization,
}

func recordWarnings(t *efmwarn.Tally) {
	if t == nil {
		return
	}
	for _, kind := range warnKinds {
		warningsTotal.WithLabelValues(kind).Set(float64(t.Count(kind)))
	}
}
