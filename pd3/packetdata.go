package pd3

import "time"

// packetData is the packet-bounds accumulator tracked per item: packet
// count, earliest/latest arrival timestamp, and min/max sequence number
// observed. It mirrors struct packetData (packetdata.h/.c) exactly; unlike
// loss/reorder data it needs no aggregator-to-reporter stitching beyond a
// plain copy (packetdata_a2r is a memcpy in the original).
type packetData struct {
	packetCount int
	earliest    time.Time
	latest      time.Time
	minSeq      Seqno
	maxSeq      Seqno
}

// arrival records one packet's arrival. Matching packetdata_arrival's
// comment ("do this last"), packetCount is incremented after the
// first-packet-initializes-else-compare logic below, since that logic
// keys off the pre-increment count being zero.
func (pd *packetData) arrival(ts time.Time, seq Seqno) {
	if pd.packetCount == 0 {
		pd.earliest = ts
		pd.latest = ts
		pd.minSeq = seq
		pd.maxSeq = seq
	} else {
		if ts.Before(pd.earliest) {
			pd.earliest = ts
		}
		if ts.After(pd.latest) {
			pd.latest = ts
		}
		if seqcmp(seq, pd.minSeq) < 0 {
			pd.minSeq = seq
		}
		if seqcmp(seq, pd.maxSeq) > 0 {
			pd.maxSeq = seq
		}
	}
	pd.packetCount++
}

// accumulate merges unit into accum, used both across time (successive
// periods feeding one tracker) and across streams (STREAM->FLOW
// consolidation). accum.packetCount being zero is the "nothing accumulated
// yet" sentinel, standing in for the original's accum->earliest==0 check.
func (accum *packetData) accumulate(unit *packetData) {
	if unit.packetCount == 0 {
		return
	}
	if accum.packetCount == 0 {
		*accum = *unit
		return
	}
	accum.packetCount += unit.packetCount
	if unit.earliest.Before(accum.earliest) {
		accum.earliest = unit.earliest
	}
	if unit.latest.After(accum.latest) {
		accum.latest = unit.latest
	}
	if seqcmp(unit.minSeq, accum.minSeq) < 0 {
		accum.minSeq = unit.minSeq
	}
	if seqcmp(unit.maxSeq, accum.maxSeq) > 0 {
		accum.maxSeq = unit.maxSeq
	}
}
