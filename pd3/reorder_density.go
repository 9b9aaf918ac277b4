package pd3

// ReorderDT bounds the reorder-density window: only displacements in
// [-ReorderDT, ReorderDT] are tallied into the FD histogram, and the window
// holds at most ReorderDT+1 unique arrivals during warm-up.
const ReorderDT = 8

// densityLookState is what rd_process_next_packet is currently waiting on:
// either the window's front for RI's match, or a fresh arrival to add to
// the window.
type densityLookState int

const (
	lookingAtWindow densityLookState = iota
	lookingForArrival
)

// seqnoMax is the "empty" sentinel rd_window_min/rd_buffer_min return when
// their structure holds nothing, so it never wins a min() comparison
// against a real sequence number.
const seqnoMax = Seqno(0xFFFFFFFF)

// densityCursor is one stream's persistent reorder-density algorithm
// state, held across periods and never reset between them: rdState plus
// its window queue and out-of-order buffer.
type densityCursor struct {
	windowInitialized bool
	window            []Seqno // FIFO queue, front at index 0
	buffer            map[Seqno]bool
	RI                Seqno
	state             densityLookState
}

// rdMaybeAddSeqToWindow adds i to the window's tail unless it is already
// present, and returns the window's resulting size: rd_maybe_add_seq_to_window.
func rdMaybeAddSeqToWindow(cur *densityCursor, i Seqno) int {
	if rdWindowContains(cur, i) {
		return len(cur.window)
	}
	cur.window = append(cur.window, i)
	return len(cur.window)
}

func rdWindowContains(cur *densityCursor, seq Seqno) bool {
	for _, s := range cur.window {
		if s == seq {
			return true
		}
	}
	return false
}

func rdBufferContains(cur *densityCursor, seq Seqno) bool {
	return cur.buffer[seq]
}

// rdAddSeqToWindow unconditionally pushes i onto the window's tail:
// rd_add_seq_to_window.
func rdAddSeqToWindow(cur *densityCursor, i Seqno) {
	cur.window = append(cur.window, i)
}

// rdMaybeAddNewArrivalToWindow admits a freshly arrived seqno into the
// window if the cursor is currently looking for one and seqno is not
// already known (neither already windowed nor buffered) and is not behind
// RI: rd_maybe_add_new_arrival_to_window.
func rdMaybeAddNewArrivalToWindow(cur *densityCursor, seqno Seqno) {
	if cur.state != lookingForArrival {
		return
	}
	if seqcmp(seqno, cur.RI) >= 0 && !rdWindowContains(cur, seqno) && !rdBufferContains(cur, seqno) {
		rdAddSeqToWindow(cur, seqno)
		cur.state = lookingAtWindow
	}
}

// rdRecordDistance tallies a packet observed at signed displacement D from
// RI into out.FD, ignoring displacements outside the tracked range:
// rd_record_distance.
func rdRecordDistance(out *DensityReport, D int) {
	if D < -ReorderDT || D > ReorderDT {
		return
	}
	out.FD[D+ReorderDT]++
}

func rdMaybeDeleteFromBuffer(cur *densityCursor, seq Seqno) {
	delete(cur.buffer, seq)
}

func rdAddToBuffer(cur *densityCursor, seq Seqno) {
	if cur.buffer == nil {
		cur.buffer = make(map[Seqno]bool)
	}
	cur.buffer[seq] = true
}

// rdWindowMin returns the smallest sequence number in the window, or
// seqnoMax if it is empty: rd_window_min.
func rdWindowMin(cur *densityCursor) Seqno {
	if len(cur.window) == 0 {
		return seqnoMax
	}
	min := cur.window[0]
	for _, s := range cur.window[1:] {
		if seqcmp(s, min) < 0 {
			min = s
		}
	}
	return min
}

// rdBufferMin returns the smallest sequence number in the buffer, or
// seqnoMax if it is empty: rd_buffer_min.
func rdBufferMin(cur *densityCursor) Seqno {
	if len(cur.buffer) == 0 {
		return seqnoMax
	}
	min := seqnoMax
	for s := range cur.buffer {
		if min == seqnoMax || seqcmp(s, min) < 0 {
			min = s
		}
	}
	return min
}

// rdAdvanceRI implements rd_advance_RI: RI jumps forward to the smallest
// outstanding sequence number if that is ahead of RI, else simply
// increments by one.
func rdAdvanceRI(cur *densityCursor) {
	m := rdWindowMin(cur)
	if len(cur.buffer) > 0 {
		if b := rdBufferMin(cur); len(cur.window) == 0 || seqcmp(b, m) < 0 {
			m = b
		}
	}
	if seqcmp(cur.RI, m) < 0 {
		cur.RI = m
	} else {
		cur.RI++
	}
}

// rdProcessNextPacket implements rd_process_next_packet: if RI is found in
// the window or the buffer, the window's front entry is popped
// unconditionally and its displacement from RI recorded if within range;
// a pop that falls outside the tracked range is silently dropped in the
// original, which is exactly the packet this estimator counts as an
// assumed drop. Otherwise RI is advanced to hunt for the next candidate.
func rdProcessNextPacket(cur *densityCursor, out *DensityReport) {
	if rdWindowContains(cur, cur.RI) || rdBufferContains(cur, cur.RI) {
		e := cur.window[0]
		cur.window = cur.window[1:]

		D := int(cur.RI) - int(e)
		AD := D
		if AD < 0 {
			AD = -AD
		}
		if AD <= ReorderDT {
			rdRecordDistance(out, D)
			rdMaybeDeleteFromBuffer(cur, cur.RI)
			if D < 0 {
				rdAddToBuffer(cur, e)
			}
			cur.RI++
		} else {
			out.AssumedDrops++
		}
		cur.state = lookingForArrival
		return
	}
	rdAdvanceRI(cur)
	cur.state = lookingAtWindow
}

// accumulateDensity implements reorderdata_accumulate's density half: a
// plain pointwise sum of FD and the assumed-drop count.
func accumulateDensity(accum, unit *DensityReport) {
	for i := range unit.FD {
		accum.FD[i] += unit.FD[i]
	}
	accum.AssumedDrops += unit.AssumedDrops
}

// densityArrival processes one packet's arrival against the stream's
// persistent density cursor, mirroring reorderdata_a2r's per-sequence-number
// replay loop: reorderdata_a2r walks ranges seqno-by-seqno at report time
// against persistent reporter state, which is equivalent to driving the
// same state machine directly at arrival time as long as the cursor
// survives across periods.
func densityArrival(cur *densityCursor, out *DensityReport, seqno Seqno) {
	if !cur.windowInitialized {
		if rdMaybeAddSeqToWindow(cur, seqno) < ReorderDT+1 {
			return
		}
		cur.RI = 0
		cur.windowInitialized = true
		cur.state = lookingAtWindow
		return
	}

	processedThis := false
	if cur.state == lookingForArrival {
		rdMaybeAddNewArrivalToWindow(cur, seqno)
		processedThis = true
	}
	if cur.state == lookingAtWindow {
		rdProcessNextPacket(cur, out)
	}
	if cur.state == lookingForArrival && !processedThis {
		rdMaybeAddNewArrivalToWindow(cur, seqno)
	}
}
