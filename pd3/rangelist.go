package pd3

// seqnoRange is a closed, contiguous run of sequence numbers [Low, High],
// compressing a run of consecutive arrivals (or, for a missing-packet
// range, a run of consecutive gaps) into a single record.
type seqnoRange struct {
	Low, High Seqno
}

// seqnoRangeList is a list of ranges. The loss estimator prepends to the
// head as packets arrive (building the list in reverse-chronological
// order); a duplicate or late arrival can leave ranges that overlap or are
// out of order, which lossA2RCompute's sort-and-stitch pass reconciles.
type seqnoRangeList struct {
	ranges []seqnoRange
}

func newSeqnoRangeList() *seqnoRangeList {
	return &seqnoRangeList{}
}

func (l *seqnoRangeList) reset() {
	l.ranges = l.ranges[:0]
}

func (l *seqnoRangeList) len() int { return len(l.ranges) }

// prepend adds a range to the front of the list, used by the loss
// estimator which observes arrivals newest-first relative to its running
// head.
func (l *seqnoRangeList) prepend(r seqnoRange) {
	l.ranges = append(l.ranges, seqnoRange{})
	copy(l.ranges[1:], l.ranges[:len(l.ranges)-1])
	l.ranges[0] = r
}

// appendRange adds a range to the back of the list.
func (l *seqnoRangeList) appendRange(r seqnoRange) {
	l.ranges = append(l.ranges, r)
}

// splice moves all of other's ranges onto the tail of l and empties other,
// the counterpart of move_seqnorangelist's O(1) pointer splice in the
// original; the slice-backed version copies other's ranges, so it is
// O(len(other)).
func (l *seqnoRangeList) splice(other *seqnoRangeList) {
	l.ranges = append(l.ranges, other.ranges...)
	other.ranges = other.ranges[:0]
}
