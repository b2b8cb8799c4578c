// Package localize implements the localization engine: a family of
// methods that take either a classified-path set or a dense (A, b) linear
// system and return a failed-link set with per-link ratings.
package localize

import (
	"fmt"

	"github.com/COMSYS/ns3-efm-study-overview/internal/classify"
	"github.com/COMSYS/ns3-efm-study-overview/internal/efm"
	"github.com/COMSYS/ns3-efm-study-overview/internal/simdata"
)

// Method is the closed set of localization methods.
type Method int

const (
	MethodPossible Method = iota
	MethodProbable
	MethodDetection
	MethodWeightDir
	MethodWeightIter
	MethodWeightDirLvl
	MethodWeightIterLvl
	MethodWeightBad
	MethodWeightBadLvl
	MethodDLC
	MethodLPWithSlack
	MethodLSQR
)

func (m Method) String() string {
	switch m {
	case MethodPossible:
		return "POSSIBLE"
	case MethodProbable:
		return "PROBABLE"
	case MethodDetection:
		return "DETECTION"
	case MethodWeightDir:
		return "WEIGHT_DIR"
	case MethodWeightIter:
		return "WEIGHT_ITER"
	case MethodWeightDirLvl:
		return "WEIGHT_DIR_LVL"
	case MethodWeightIterLvl:
		return "WEIGHT_ITER_LVL"
	case MethodWeightBad:
		return "WEIGHT_BAD"
	case MethodWeightBadLvl:
		return "WEIGHT_BAD_LVL"
	case MethodDLC:
		return "DLC"
	case MethodLPWithSlack:
		return "LP_WITH_SLACK"
	case MethodLSQR:
		return "LIN_LSQR"
	default:
		return "UNKNOWN"
	}
}

// ParseMethod resolves a localizationMethods key as it appears in an
// analysis config document.
func ParseMethod(name string) (Method, error) {
	for _, m := range []Method{
		MethodPossible, MethodProbable, MethodDetection, MethodWeightDir, MethodWeightIter,
		MethodWeightDirLvl, MethodWeightIterLvl, MethodWeightBad, MethodWeightBadLvl,
		MethodDLC, MethodLPWithSlack, MethodLSQR,
	} {
		if m.String() == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("localize: unknown method name %q", name)
}

// Params bundles every numeric knob the localization methods read; an analysis
// config's per-method parameter object is decoded into one of these per
// method (internal/efmconfig owns that decoding).
type Params struct {
	WThresh   float64
	DLCThresh float64

	Winc     float64
	WincLvl1 float64
	WincLvl2 float64
	WincLvl3 float64
	WScale   float64
	WDec     float64
	PathScale bool
	Normalize bool

	// Tau is the per-link rating threshold for LP_WITH_SLACK and the
	// matrix (LSQR) methods.
	Tau float64
}

// Result is one method's outcome, one entry of the output document's
// per-method results array.
type Result struct {
	FailedLinks map[simdata.Link]bool
	LinkRatings map[simdata.Link]float64
	Method      Method
	Params      Params
	EfmBits     efm.BitSet
}

// WarnSink receives data-quality warnings raised while a method runs;
// nil is a valid no-op sink. *efmwarn.Tally satisfies both this and
// classify.WarnSink by the same duck-typed shape.
type WarnSink interface {
	Warn(kind, detail string)
}

func warn(w WarnSink, kind, detail string) {
	if w != nil {
		w.Warn(kind, detail)
	}
}

func emptyResult(method Method, params Params, bits efm.BitSet) Result {
	return Result{
		FailedLinks: make(map[simdata.Link]bool),
		LinkRatings: make(map[simdata.Link]float64),
		Method:      method,
		Params:      params,
		EfmBits:     bits,
	}
}

func withMeta(r Result, bits efm.BitSet) Result {
	r.EfmBits = bits
	return r
}

// RunClassified dispatches one of the classified-path methods over paths.
// Returns an empty result, not an error, when paths is empty.
func RunClassified(paths []classify.Path, method Method, params Params, bits efm.BitSet) (Result, error) {
	if len(paths) == 0 {
		return emptyResult(method, params, bits), nil
	}
	switch method {
	case MethodPossible:
		return withMeta(runPossible(paths), bits), nil
	case MethodProbable:
		return withMeta(runProbable(paths), bits), nil
	case MethodDetection:
		return withMeta(runDetection(paths), bits), nil
	case MethodDLC:
		return withMeta(runDLC(paths, params), bits), nil
	case MethodWeightDir:
		w, err := applyWeightsStandard(paths, params, false)
		if err != nil {
			return Result{}, err
		}
		return withMeta(resultFromWeights(w, params, MethodWeightDir), bits), nil
	case MethodWeightDirLvl:
		w, err := applyWeightsStandard(paths, params, true)
		if err != nil {
			return Result{}, err
		}
		return withMeta(resultFromWeights(w, params, MethodWeightDirLvl), bits), nil
	case MethodWeightBad:
		w, err := applyWeightsBadOnly(paths, params, false)
		if err != nil {
			return Result{}, err
		}
		return withMeta(resultFromWeights(w, params, MethodWeightBad), bits), nil
	case MethodWeightBadLvl:
		w, err := applyWeightsBadOnly(paths, params, true)
		if err != nil {
			return Result{}, err
		}
		return withMeta(resultFromWeights(w, params, MethodWeightBadLvl), bits), nil
	case MethodWeightIter:
		r, err := runWeightIter(paths, params, false, MethodWeightIter)
		if err != nil {
			return Result{}, err
		}
		return withMeta(r, bits), nil
	case MethodWeightIterLvl:
		r, err := runWeightIter(paths, params, true, MethodWeightIterLvl)
		if err != nil {
			return Result{}, err
		}
		return withMeta(r, bits), nil
	default:
		return Result{}, fmt.Errorf("localize: %v is not a classified-path method", method)
	}
}

func resultFromWeights(w map[simdata.Link]float64, params Params, method Method) Result {
	bad := make(map[simdata.Link]bool)
	for l, v := range w {
		if v > params.WThresh {
			bad[l] = true
		}
	}
	return Result{FailedLinks: bad, LinkRatings: w, Method: method, Params: params}
}

// linkUniverse returns every distinct link named by any of paths, in
// first-seen order (stable given a stable input order).
func linkUniverse(paths []classify.Path) []simdata.Link {
	seen := make(map[simdata.Link]bool)
	var out []simdata.Link
	for _, p := range paths {
		for _, l := range p.LinkPath {
			if !seen[l] {
				seen[l] = true
				out = append(out, l)
			}
		}
	}
	return out
}
