// Package pd3 implements a passive, in-process packet quality estimator:
// loss, reorder extent, and reorder density measured over per-flow
// sequence-numbered packet streams.
package pd3

// SeqnoModulus is one past the largest representable sequence number; all
// sequence arithmetic here is modular with respect to it. SEQNO is a wire
// 32-bit quantity (original_source/pd3_estimator.h: typedef uint32_t SEQNO),
// so the modulus is 2^32.
const SeqnoModulus = uint64(1) << 32

// Seqno is a wire sequence number. Comparisons and distances between two
// Seqno values are modular: a later number can have a numerically smaller
// value after wraparound.
type Seqno = uint32

// seqcmp returns -1, 0, or 1 according to whether a precedes, equals, or
// follows b in modular sequence order, using the sign of the signed
// half-modulus difference the way TCP sequence comparisons do.
func seqcmp(a, b Seqno) int {
	d := int32(a - b) // wraparound-aware: half-modulus signed difference
	switch {
	case d == 0:
		return 0
	case d > 0:
		return 1
	default:
		return -1
	}
}

// modularDistance returns the forward distance from s to t, wrapping
// through the modulus when t < s.
//
// This reproduces the off-by-one in the original C implementation: the
// wraparound branch computes t-s+SeqnoModulus-1 rather than t-s+SeqnoModulus.
// Left as-is; downstream code (extent/history pruning thresholds) was tuned
// against this exact arithmetic.
func modularDistance(s, t Seqno) Seqno {
	if t >= s {
		return t - s
	}
	diff := int64(t) - int64(s) + int64(SeqnoModulus) - 1
	return Seqno(uint32(diff))
}
