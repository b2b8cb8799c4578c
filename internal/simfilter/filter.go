// Package simfilter implements the post-hoc simulation-output transforms:
// L-bit triggered monitoring and spin-transient trimming. Filters never
// mutate a ResultSet in place — they build a deep-cloned copy and rewrite
// event buckets on the clone.
package simfilter

import (
	"github.com/COMSYS/ns3-efm-study-overview/internal/efm"
	"github.com/COMSYS/ns3-efm-study-overview/internal/simdata"
)

// lossObserverKinds are the observer loss/delay event kinds subject to
// L-bit-triggered monitoring, excluding the ground-truth seq-loss and
// ack-seq-loss kinds.
var lossObserverKinds = []efm.Kind{
	efm.KindQChange, efm.KindQLoss,
	efm.KindRChange, efm.KindRLoss,
	efm.KindTSet, efm.KindTPhaseUpdate, efm.KindTFullLoss, efm.KindTHalfLoss,
	efm.KindSpinEdge, efm.KindSpinDelay,
	efm.KindTCPDartDelay, efm.KindTCPReordering,
}

// blockRewritten are the kinds additionally subject to the pkt_count
// rewrite/first-after-trigger-drop rule.
var blockRewritten = []efm.Kind{efm.KindQLoss, efm.KindRLoss, efm.KindTFullLoss, efm.KindTHalfLoss}

// ApplyLBitTriggeredMonitoring returns a result set where every observer
// flow has been rewritten: flows with no L-set event have all
// eligible loss/delay events dropped; flows with an L-set event have
// events before the trigger dropped, the first post-trigger Q/R/T-loss
// event discarded entirely, remaining Q/R/T-loss pkt_count shifted by
// -(n0-1), and L-set pkt_count shifted by -(n0-1) with the trigger event
// itself dropped.
func ApplyLBitTriggeredMonitoring(rs *simdata.ResultSet) *simdata.ResultSet {
	return cloneAndRewriteFlows(rs, filterFlowLBit)
}

func filterFlowLBit(f *simdata.ObserverFlow) {
	lSet := f.Events.Events(efm.KindLSetHost)
	if len(lSet) == 0 {
		for _, k := range lossObserverKinds {
			f.Events.Replace(k, nil)
		}
		return
	}
	trigger, ok := lSet[0].Data.(efm.BitSetPCountEvent)
	if !ok {
		return
	}
	t0 := lSet[0].Time
	n0 := trigger.PktCount

	for _, k := range lossObserverKinds {
		events := f.Events.Events(k)
		kept := make([]efm.Event, 0, len(events))
		for _, e := range events {
			if e.Time < t0 {
				continue
			}
			kept = append(kept, e)
		}
		if isBlockRewritten(k) {
			kept = discardFirstAndShiftPktCount(kept, n0)
		}
		f.Events.Replace(k, kept)
	}

	// Rewrite the L-set bucket itself: drop the trigger, shift the rest.
	rewrittenL := make([]efm.Event, 0, len(lSet)-1)
	for i, e := range lSet {
		if i == 0 {
			continue
		}
		p, ok := e.Data.(efm.BitSetPCountEvent)
		if !ok {
			rewrittenL = append(rewrittenL, e)
			continue
		}
		shifted := p
		shifted.PktCount = shiftPktCount(p.PktCount, n0)
		e.Data = shifted
		rewrittenL = append(rewrittenL, e)
	}
	f.Events.Replace(efm.KindLSetHost, rewrittenL)
}

func isBlockRewritten(k efm.Kind) bool {
	for _, x := range blockRewritten {
		if x == k {
			return true
		}
	}
	return false
}

func shiftPktCount(pktCount, n0 uint64) uint64 {
	delta := n0 - 1
	if pktCount < delta {
		return 0
	}
	return pktCount - delta
}

// discardFirstAndShiftPktCount drops the first event (pre-arm initial
// block) and shifts the remaining events' PktCount by -(n0-1).
func discardFirstAndShiftPktCount(events []efm.Event, n0 uint64) []efm.Event {
	if len(events) == 0 {
		return events
	}
	rest := events[1:]
	out := make([]efm.Event, 0, len(rest))
	for _, e := range rest {
		switch p := e.Data.(type) {
		case efm.LossMeasurementEvent:
			p.PktCount = shiftPktCount(p.PktCount, n0)
			e.Data = p
		case efm.SignedLossMeasurementEvent:
			p.PktCount = shiftPktCount(p.PktCount, n0)
			e.Data = p
		}
		out = append(out, e)
	}
	return out
}

// ApplySpinTransientTrim removes the last k spin-bit-delay and
// spin-bit-edge events from every observer flow.
func ApplySpinTransientTrim(rs *simdata.ResultSet, k int) *simdata.ResultSet {
	return cloneAndRewriteFlows(rs, func(f *simdata.ObserverFlow) {
		for _, kind := range []efm.Kind{efm.KindSpinDelay, efm.KindSpinEdge} {
			events := f.Events.Events(kind)
			if k <= 0 || len(events) == 0 {
				continue
			}
			cut := len(events) - k
			if cut < 0 {
				cut = 0
			}
			trimmed := make([]efm.Event, cut)
			copy(trimmed, events[:cut])
			f.Events.Replace(kind, trimmed)
		}
	})
}

// cloneAndRewriteFlows deep-clones rs and applies rewrite to every observer
// flow of every observer vantage point in the clone.
func cloneAndRewriteFlows(rs *simdata.ResultSet, rewrite func(*simdata.ObserverFlow)) *simdata.ResultSet {
	clone := rs.Clone()
	for _, vp := range clone.Observers() {
		for _, f := range vp.Flows() {
			rewrite(f)
		}
	}
	return clone
}
