package localize

import (
	"github.com/COMSYS/ns3-efm-study-overview/internal/classify"
	"github.com/COMSYS/ns3-efm-study-overview/internal/simdata"
)

// runPossible: non-failed paths mark their links definitely good (and
// clear them from the bad set); failed paths add every link not already
// definitely-good to the bad set (POSSIBLE).
func runPossible(paths []classify.Path) Result {
	good := make(map[simdata.Link]bool)
	bad := make(map[simdata.Link]bool)
	for _, p := range paths {
		if !p.Failed {
			for _, l := range p.LinkPath {
				good[l] = true
				delete(bad, l)
			}
			continue
		}
		for _, l := range p.LinkPath {
			if !good[l] {
				bad[l] = true
			}
		}
	}
	return Result{FailedLinks: bad, LinkRatings: ratingsFromSet(bad), Method: MethodPossible}
}

// runProbable: a failed path's sole link outside the union of non-failed
// paths' links is bad (PROBABLE).
func runProbable(paths []classify.Path) Result {
	good := make(map[simdata.Link]bool)
	for _, p := range paths {
		if !p.Failed {
			for _, l := range p.LinkPath {
				good[l] = true
			}
		}
	}
	bad := make(map[simdata.Link]bool)
	for _, p := range paths {
		if !p.Failed {
			continue
		}
		var outside simdata.Link
		var count int
		for _, l := range p.LinkPath {
			if !good[l] {
				count++
				outside = l
			}
		}
		if count == 1 {
			bad[outside] = true
		}
	}
	return Result{FailedLinks: bad, LinkRatings: ratingsFromSet(bad), Method: MethodProbable}
}

// runDetection: union of all links on any failed path (DETECTION).
func runDetection(paths []classify.Path) Result {
	bad := make(map[simdata.Link]bool)
	for _, p := range paths {
		if !p.Failed {
			continue
		}
		for _, l := range p.LinkPath {
			bad[l] = true
		}
	}
	return Result{FailedLinks: bad, LinkRatings: ratingsFromSet(bad), Method: MethodDetection}
}

// runDLC: direct link count, count(l) = |failed paths containing l| /
// |failed paths|, bad iff count > dlcthresh (DLC).
func runDLC(paths []classify.Path, params Params) Result {
	var failedCount int
	counts := make(map[simdata.Link]int)
	for _, p := range paths {
		if !p.Failed {
			continue
		}
		failedCount++
		seen := make(map[simdata.Link]bool, len(p.LinkPath))
		for _, l := range p.LinkPath {
			if seen[l] {
				continue
			}
			seen[l] = true
			counts[l]++
		}
	}
	ratings := make(map[simdata.Link]float64, len(counts))
	bad := make(map[simdata.Link]bool)
	for l, c := range counts {
		var ratio float64
		if failedCount > 0 {
			ratio = float64(c) / float64(failedCount)
		}
		ratings[l] = ratio
		if ratio > params.DLCThresh {
			bad[l] = true
		}
	}
	return Result{FailedLinks: bad, LinkRatings: ratings, Method: MethodDLC, Params: params}
}

func ratingsFromSet(links map[simdata.Link]bool) map[simdata.Link]float64 {
	out := make(map[simdata.Link]float64, len(links))
	for l := range links {
		out[l] = 1
	}
	return out
}
