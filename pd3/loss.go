package pd3

import "sort"

// arrivalTag marks where a range given to lossA2R came from: the current
// period (present), a synthetic single-point range standing in for
// everything already accounted for before this period (past), or a
// period still queued ahead of the one being processed (future). Mirrors
// lossdata.c's enum arrivalPeriod.
type arrivalTag int

const (
	arrPresent arrivalTag = iota
	arrPast
	arrFuture
)

// lossState is one stream's persistent loss state, held by the reporter
// across periods and never reset between them: lossState in lossdata.h.
type lossState struct {
	hasHighSeqno bool
	highSeqno    Seqno

	hasLastRange bool
	lastRange    seqnoRange
}

// lossArrival records one packet's arrival: lossdata_arrival. A new
// arrival extending the head range by one (the common case of in-order
// delivery) grows that range in place rather than allocating a fresh
// single-point range; anything else is prepended as its own range.
// flowState.Packet() is unconditional core logic here (see flowstate.go's
// doc comment), not an opt-in feature.
func lossArrival(it *hashMapItem, seqno Seqno) {
	if n := it.lossRanges.len(); n > 0 && it.lossRanges.ranges[0].High == seqno-1 && seqno != 0 {
		it.lossRanges.ranges[0].High = seqno
	} else {
		it.lossRanges.prepend(seqnoRange{Low: seqno, High: seqno})
	}
	it.flowState = it.flowState.Packet()
}

// accumulateLoss implements lossdata_accumulate: a pointwise sum of two
// periods'/streams' worth of loss counters, treating a unit with
// Received+Dropped==0 as empty (skipped) and an empty accum as "adopt unit
// wholesale" rather than summing into zeroes.
func accumulateLoss(accum, unit *LossReport) {
	accumEmpty := accum.Received+accum.Dropped == 0
	unitEmpty := unit.Received+unit.Dropped == 0
	switch {
	case !accumEmpty && !unitEmpty:
		accum.Received += unit.Received
		accum.Dropped += unit.Dropped
		accum.ConsecutiveDrops += unit.ConsecutiveDrops
		accum.GapTotal += unit.GapTotal
		accum.GapCount += unit.GapCount
		if unit.GapMin < accum.GapMin {
			accum.GapMin = unit.GapMin
		}
		if unit.GapMax > accum.GapMax {
			accum.GapMax = unit.GapMax
		}
	case !unitEmpty:
		*accum = *unit
	}
}

// taggedRange is one range plus the bookkeeping lossA2R's sort step needs:
// the arrival tag and a transient wraparound flag.
type taggedRange struct {
	r          seqnoRange
	tag        arrivalTag
	wraparound bool
}

// lossA2R runs the aggregator-to-reporter loss computation for one stream:
// lossdata_a2r. cur holds the current period's accumulated ranges,
// flowState that period's accumulated flowstate (used only to gate the
// synthetic past range), lstate the stream's persistent cross-period loss
// state, and future the chain of not-yet-processed periods still queued
// behind this one (the reporter's own in-flight batch, earliest->next) --
// up to periodsToWait-1 of them are consulted for this stream's
// not-yet-consumed ranges.
func lossA2R(cur *seqnoRangeList, flowState FlowState, lstate *lossState, future *hashMapPeriod, key ItemKey, periodsToWait int) LossReport {
	tagged := make([]taggedRange, 0, cur.len()+1)
	for _, r := range cur.ranges {
		tagged = append(tagged, taggedRange{r: r, tag: arrPresent})
	}

	if flowState.BeginsPacket() && lstate.hasHighSeqno {
		tagged = append(tagged, taggedRange{
			r:   seqnoRange{Low: lstate.highSeqno, High: lstate.highSeqno},
			tag: arrPast,
		})
	}

	for i, p := 1, future; i < periodsToWait && p != nil; i, p = i+1, p.next {
		if it := p.retrieve(key); it != nil {
			for _, r := range it.lossRanges.ranges {
				tagged = append(tagged, taggedRange{r: r, tag: arrFuture})
			}
		}
	}

	lstate.hasHighSeqno = false
	rep, presentHigh, ok := lossA2RCompute(tagged, lstate)
	if ok {
		lstate.hasHighSeqno = true
		lstate.highSeqno = presentHigh
	}
	rep.finalize()
	return rep
}

// sortTagged sorts ranges by ascending raw Low, with any range currently
// flagged wraparound sorted before all non-wraparound ranges: rangecmp.
func sortTagged(tagged []taggedRange) {
	sort.SliceStable(tagged, func(i, j int) bool {
		if tagged[i].wraparound != tagged[j].wraparound {
			return tagged[i].wraparound
		}
		return tagged[i].r.Low < tagged[j].r.Low
	})
}

// lossA2RCompute implements lossdata_a2r_compute: sort, detect and
// re-sort for a single wraparound boundary, trim overlaps, then walk the
// stitched sequence accumulating received/dropped/gap/consecutive-drop
// counters against the stream's persistent last-processed range.
func lossA2RCompute(tagged []taggedRange, state *lossState) (rep LossReport, presentHigh Seqno, ok bool) {
	n := len(tagged)
	if n == 0 {
		return rep, 0, false
	}

	sortTagged(tagged)

	for i := range tagged {
		tagged[i].wraparound = true
		if i < n-1 {
			gap := tagged[i+1].r.Low - tagged[i].r.High
			if gap > uint32(SeqnoModulus/2) {
				sortTagged(tagged)
				break
			}
		}
	}

	begin, end := 0, n
	for i := 0; i < n; i++ {
		if tagged[i].tag == arrPast {
			begin = i + 1
		}
		if tagged[i].tag != arrFuture {
			end = i
		}
	}
	if end >= n {
		return rep, 0, false
	}

	if !state.hasLastRange {
		low := tagged[begin].r.Low - 1
		state.lastRange = seqnoRange{Low: low, High: low}
		state.hasLastRange = true
	}

	base := state.lastRange.High
	prev := state.lastRange
	for i := begin; i <= end; i++ {
		r := tagged[i].r

		dPrevHigh := modularDistance(base, prev.High)
		dThisLow := modularDistance(base, r.Low)
		dThisHigh := modularDistance(base, r.High)

		if dThisLow <= dPrevHigh {
			if dThisHigh <= dPrevHigh {
				continue // fully subsumed by the previous range
			}
			lo := prev.High
			if r.High < lo {
				lo = r.High
			}
			r.Low = lo + 1
		}
		if r.High < r.Low {
			r.High = base - 1
		}

		recd := int(r.High-r.Low) + 1
		distance := modularDistance(prev.High, r.Low)
		gap := 0
		if distance > 0 {
			gap = int(distance) - 1
		}

		prev = r

		rep.Received += recd
		rep.Dropped += gap
		if gap > 1 {
			rep.ConsecutiveDrops += gap - 1
		}
		if gap > 0 {
			if rep.GapCount == 0 || gap < rep.GapMin {
				rep.GapMin = gap
			}
			if rep.GapCount == 0 || gap > rep.GapMax {
				rep.GapMax = gap
			}
			rep.GapTotal += gap
			rep.GapCount++
		}
	}
	state.lastRange = prev

	return rep, tagged[end].r.High, true
}
