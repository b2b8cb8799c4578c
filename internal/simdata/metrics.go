package simdata

import "github.com/COMSYS/ns3-efm-study-overview/internal/efm"

// qBlockSize is the fixed Q-block/R-block size in packets.
const qBlockSize = 64

func sumLoss(events []efm.Event) uint64 {
	var total uint64
	for _, e := range events {
		if p, ok := e.Data.(efm.LossMeasurementEvent); ok {
			total += p.Loss
		}
	}
	return total
}

func sumLossAndPktCount(events []efm.Event) (lossSum, pktSum uint64) {
	for _, e := range events {
		if p, ok := e.Data.(efm.LossMeasurementEvent); ok {
			lossSum += p.Loss
			pktSum += p.PktCount
		}
	}
	return
}

// lastSignedLoss returns the signed-loss payload of the last event by time
// (events are kept time-ordered by efm.Set.Finalize), clamped to zero with
// a corrected flag when negative (raises a data-quality warning).
func lastSignedLoss(events []efm.Event) (loss uint64, pktCount uint64, corrected bool, ok bool) {
	if len(events) == 0 {
		return 0, 0, false, false
	}
	p, isSigned := events[len(events)-1].Data.(efm.SignedLossMeasurementEvent)
	if !isSigned {
		return 0, 0, false, false
	}
	if p.LossSigned < 0 {
		return 0, p.PktCount, true, true
	}
	return uint64(p.LossSigned), p.PktCount, false, true
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

// AbsoluteQLoss sums Loss over all Q-loss events.
func (f *ObserverFlow) AbsoluteQLoss() uint64 { return sumLoss(f.Events.Events(efm.KindQLoss)) }

// AbsoluteQPacketCount is |Q-loss events| * 64.
func (f *ObserverFlow) AbsoluteQPacketCount() uint64 {
	return uint64(f.Events.Len(efm.KindQLoss)) * qBlockSize
}

// RelativeQBitLoss is absQloss / (|events| * 64).
func (f *ObserverFlow) RelativeQBitLoss() float64 {
	return ratio(float64(f.AbsoluteQLoss()), float64(f.AbsoluteQPacketCount()))
}

// AbsoluteRLoss sums Loss over all R-loss events.
func (f *ObserverFlow) AbsoluteRLoss() uint64 { return sumLoss(f.Events.Events(efm.KindRLoss)) }

// RelativeRBitLoss is the R-bit analogue of RelativeQBitLoss.
func (f *ObserverFlow) RelativeRBitLoss() float64 {
	pktCount := uint64(f.Events.Len(efm.KindRLoss)) * qBlockSize
	return ratio(float64(f.AbsoluteRLoss()), float64(pktCount))
}

// AbsoluteLLoss is the count of L-set events.
func (f *ObserverFlow) AbsoluteLLoss() uint64 {
	return uint64(f.Events.Len(efm.KindLSetHost))
}

// RelativeLBitLoss is |L-events| / max(pkt_count) over L-events.
func (f *ObserverFlow) RelativeLBitLoss() float64 {
	events := f.Events.Events(efm.KindLSetHost)
	if len(events) == 0 {
		return 0
	}
	var maxPkt uint64
	for _, e := range events {
		if p, ok := e.Data.(efm.BitSetPCountEvent); ok && p.PktCount > maxPkt {
			maxPkt = p.PktCount
		}
	}
	return ratio(float64(len(events)), float64(maxPkt))
}

// AbsoluteTFullLoss sums Loss over T-full-loss events.
func (f *ObserverFlow) AbsoluteTFullLoss() uint64 { return sumLoss(f.Events.Events(efm.KindTFullLoss)) }

// RelativeTBitFullLoss is Σloss / Σpkt_count over T-full-loss events.
func (f *ObserverFlow) RelativeTBitFullLoss() float64 {
	lossSum, pktSum := sumLossAndPktCount(f.Events.Events(efm.KindTFullLoss))
	return ratio(float64(lossSum), float64(pktSum))
}

// AbsoluteTHalfLoss sums Loss over T-half-loss events.
func (f *ObserverFlow) AbsoluteTHalfLoss() uint64 { return sumLoss(f.Events.Events(efm.KindTHalfLoss)) }

// RelativeTBitHalfLoss is Σloss / Σpkt_count over T-half-loss events.
func (f *ObserverFlow) RelativeTBitHalfLoss() float64 {
	lossSum, pktSum := sumLossAndPktCount(f.Events.Events(efm.KindTHalfLoss))
	return ratio(float64(lossSum), float64(pktSum))
}

// AbsoluteSeqLoss returns the last seq-loss event's loss, clamped to zero
// with a corrected flag on negative input.
func (f *ObserverFlow) AbsoluteSeqLoss() (loss uint64, corrected bool) {
	l, _, c, _ := lastSignedLoss(f.Events.Events(efm.KindSeqLoss))
	return l, c
}

// RelativeSeqLoss is finalLoss / (finalLoss + finalPktCount).
func (f *ObserverFlow) RelativeSeqLoss() (float64, bool) {
	loss, pkt, corrected, ok := lastSignedLoss(f.Events.Events(efm.KindSeqLoss))
	if !ok {
		return 0, false
	}
	return ratio(float64(loss), float64(loss+pkt)), corrected
}

// AbsoluteAckSeqLoss is the ack-seq-loss analogue of AbsoluteSeqLoss.
func (f *ObserverFlow) AbsoluteAckSeqLoss() (loss uint64, corrected bool) {
	l, _, c, _ := lastSignedLoss(f.Events.Events(efm.KindAckSeqLoss))
	return l, c
}

// RelativeAckSeqLoss is the ack-seq-loss analogue of RelativeSeqLoss.
func (f *ObserverFlow) RelativeAckSeqLoss() (float64, bool) {
	loss, pkt, corrected, ok := lastSignedLoss(f.Events.Events(efm.KindAckSeqLoss))
	if !ok {
		return 0, false
	}
	return ratio(float64(loss), float64(loss+pkt)), corrected
}

// AbsoluteTCPReordering is the last TCP-reordering event's cumulative loss.
func (f *ObserverFlow) AbsoluteTCPReordering() (loss uint64, corrected bool) {
	l, _, c, _ := lastSignedLoss(f.Events.Events(efm.KindTCPReordering))
	return l, c
}

// RelativeTCPReordering is AbsoluteTCPReordering / finalPktCount.
func (f *ObserverFlow) RelativeTCPReordering() (float64, bool) {
	loss, pkt, corrected, ok := lastSignedLoss(f.Events.Events(efm.KindTCPReordering))
	if !ok {
		return 0, false
	}
	return ratio(float64(loss), float64(pkt)), corrected
}

// delayAvgMinMax averages/bounds the named field across a kind bucket,
// optionally dropping events at or after timeFilterMs when filter is set,
// and skipping events whose optional field is absent.
func delayAvgMinMax(events []efm.Event, timeFilterMs *float64, field func(efm.DelayMeasurementEvent) (float64, bool)) (avg, min, max float64, ok bool) {
	var sum float64
	var count int
	first := true
	for _, e := range events {
		if timeFilterMs != nil && e.Time >= *timeFilterMs {
			continue
		}
		p, isDelay := e.Data.(efm.DelayMeasurementEvent)
		if !isDelay {
			continue
		}
		v, has := field(p)
		if !has {
			continue
		}
		sum += v
		count++
		if first || v < min {
			min = v
		}
		if first || v > max {
			max = v
		}
		first = false
	}
	if count == 0 {
		return 0, 0, 0, false
	}
	return sum / float64(count), min, max, true
}

func rawDelayValues(events []efm.Event, timeFilterMs *float64, field func(efm.DelayMeasurementEvent) (float64, bool)) RawValues {
	return newRawValues(func() []float64 {
		var out []float64
		for _, e := range events {
			if timeFilterMs != nil && e.Time >= *timeFilterMs {
				continue
			}
			p, isDelay := e.Data.(efm.DelayMeasurementEvent)
			if !isDelay {
				continue
			}
			if v, has := field(p); has {
				out = append(out, v)
			}
		}
		return out
	})
}

func fullField(p efm.DelayMeasurementEvent) (float64, bool) { return p.FullDelayMs, true }
func halfField(p efm.DelayMeasurementEvent) (float64, bool) {
	if p.HalfDelayMs == nil {
		return 0, false
	}
	return *p.HalfDelayMs, true
}

// AvgSpinRTDelay/MinSpinRTDelay/MaxSpinRTDelay operate on spin-delay events'
// FullDelayMs field, dropping events at/after timeFilterMs.
func (f *ObserverFlow) AvgSpinRTDelay(timeFilterMs float64) (float64, bool) {
	avg, _, _, ok := delayAvgMinMax(f.Events.Events(efm.KindSpinDelay), &timeFilterMs, fullField)
	return avg, ok
}

func (f *ObserverFlow) MinSpinRTDelay(timeFilterMs float64) (float64, bool) {
	_, min, _, ok := delayAvgMinMax(f.Events.Events(efm.KindSpinDelay), &timeFilterMs, fullField)
	return min, ok
}

func (f *ObserverFlow) MaxSpinRTDelay(timeFilterMs float64) (float64, bool) {
	_, _, max, ok := delayAvgMinMax(f.Events.Events(efm.KindSpinDelay), &timeFilterMs, fullField)
	return max, ok
}

// RawSpinRTValues returns the lazy raw sequence backing GetRawSpinRTValues.
func (f *ObserverFlow) RawSpinRTValues(timeFilterMs float64) RawValues {
	return rawDelayValues(f.Events.Events(efm.KindSpinDelay), &timeFilterMs, fullField)
}

// AvgSpinEtEDelay/MinSpinEtEDelay/MaxSpinEtEDelay use the HalfDelayMs field;
// events missing that field are skipped from numerator and denominator.
func (f *ObserverFlow) AvgSpinEtEDelay(timeFilterMs float64) (float64, bool) {
	avg, _, _, ok := delayAvgMinMax(f.Events.Events(efm.KindSpinDelay), &timeFilterMs, halfField)
	return avg, ok
}

func (f *ObserverFlow) MinSpinEtEDelay(timeFilterMs float64) (float64, bool) {
	_, min, _, ok := delayAvgMinMax(f.Events.Events(efm.KindSpinDelay), &timeFilterMs, halfField)
	return min, ok
}

func (f *ObserverFlow) MaxSpinEtEDelay(timeFilterMs float64) (float64, bool) {
	_, _, max, ok := delayAvgMinMax(f.Events.Events(efm.KindSpinDelay), &timeFilterMs, halfField)
	return max, ok
}

// AvgTCPDartDelay/MinTCPDartDelay/MaxTCPDartDelay operate over TCP-DART-delay
// events' FullDelayMs field with no time filter.
func (f *ObserverFlow) AvgTCPDartDelay() (float64, bool) {
	avg, _, _, ok := delayAvgMinMax(f.Events.Events(efm.KindTCPDartDelay), nil, fullField)
	return avg, ok
}

func (f *ObserverFlow) MinTCPDartDelay() (float64, bool) {
	_, min, _, ok := delayAvgMinMax(f.Events.Events(efm.KindTCPDartDelay), nil, fullField)
	return min, ok
}

func (f *ObserverFlow) MaxTCPDartDelay() (float64, bool) {
	_, _, max, ok := delayAvgMinMax(f.Events.Events(efm.KindTCPDartDelay), nil, fullField)
	return max, ok
}

// RawTCPDartValues returns the lazy raw sequence backing GetRawTcpHRTValues.
func (f *ObserverFlow) RawTCPDartValues() RawValues {
	return rawDelayValues(f.Events.Events(efm.KindTCPDartDelay), nil, fullField)
}

// RelativeLoss returns the relative loss measurement for an arbitrary loss
// bit, and Loss for an arbitrary delay bit, selected by name; used by the
// classifier which needs a single dynamic-dispatch entry point per bit.
// Returned bool mirrors "data present" (false only for empty-filter delay
// results); loss bits always return a value (zero when no events).
