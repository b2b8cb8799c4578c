package simdata

import "github.com/COMSYS/ns3-efm-study-overview/internal/efm"

func lastLossMeasurement(events []efm.Event) (loss, pktCount uint64, ok bool) {
	if len(events) == 0 {
		return 0, 0, false
	}
	p, isLoss := events[len(events)-1].Data.(efm.LossMeasurementEvent)
	if !isLoss {
		return 0, 0, false
	}
	return p.Loss, p.PktCount, true
}

// RelativeLoss returns the ping pair's relative loss from the last event of
// the matching kind: loss / (pkt_count + loss).
func (p *PingPair) RelativeLoss(kind efm.Kind) (float64, bool) {
	loss, pkt, ok := lastLossMeasurement(p.Events.Events(kind))
	if !ok {
		return 0, false
	}
	return ratio(float64(loss), float64(pkt+loss)), true
}

// AbsoluteLoss returns the final event's loss for the matching kind.
func (p *PingPair) AbsoluteLoss(kind efm.Kind) (uint64, bool) {
	loss, _, ok := lastLossMeasurement(p.Events.Events(kind))
	return loss, ok
}

// Delay returns the final delay measurement's FullDelayMs for the matching
// kind (ping-rt-delay or ping-ete-delay).
func (p *PingPair) Delay(kind efm.Kind) (float64, bool) {
	events := p.Events.Events(kind)
	if len(events) == 0 {
		return 0, false
	}
	last, isDelay := events[len(events)-1].Data.(efm.DelayMeasurementEvent)
	if !isDelay {
		return 0, false
	}
	return last.FullDelayMs, true
}
