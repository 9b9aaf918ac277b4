package pd3

import "time"

// KeySize is the width, in bytes, of a FLOW key.
const KeySize = 2

// Key is the flow-identifying part of a stream tuple, shared by every
// stream belonging to the same flow.
type Key [KeySize]byte

// KeyType distinguishes a hashmap item naming exactly one stream from one
// naming the consolidated flow (stream_id forced to 0). The two never
// collide on equal bytes because the type itself participates in hashing
// and equality, mirroring hashmap2.c's tagged hashMapKey.
type KeyType uint8

const (
	KeyStream KeyType = iota
	KeyFlow
)

func (kt KeyType) String() string {
	if kt == KeyFlow {
		return "FLOW"
	}
	return "STREAM"
}

// ItemKey is the hashmap item key: a stream_tuple (FlowKey, StreamID)
// tagged by whether it names a single stream or the flow as a whole. A
// FLOW key is a STREAM key with StreamID forced to 0, but the two remain
// distinct items because Type differs.
type ItemKey struct {
	Type     KeyType
	FlowKey  Key
	StreamID byte
}

// streamKey builds the STREAM-typed key for one packet's stream tuple.
func streamKey(flow Key, streamID byte) ItemKey {
	return ItemKey{Type: KeyStream, FlowKey: flow, StreamID: streamID}
}

// flowKey builds the FLOW-typed key that consolidates every stream of the
// same flow: set_flowtuple's "stream_id forced to 0".
func flowKey(flow Key) ItemKey {
	return ItemKey{Type: KeyFlow, FlowKey: flow, StreamID: 0}
}

// PacketInfo is the unit of work pushed into the estimator by client
// goroutines. It mirrors pd3_estimator_packet_info's stream_tuple plus
// sequence number; the estimator stamps its own arrival timestamp.
type PacketInfo struct {
	FlowKey  Key
	StreamID byte
	Seqno    Seqno
}

// Report is what a ReportCallback receives for one flow at the end of a
// reporting period, corresponding to build_callback_results's results
// struct: packet-data bounds plus validity-flagged per-metric sub-reports.
type Report struct {
	FlowKey Key

	Earliest    time.Time
	Latest      time.Time
	Duration    time.Duration
	MinSeq      Seqno
	MaxSeq      Seqno
	PacketCount int

	LossValid bool
	Loss      LossReport

	ExtentValid bool
	Extent      ExtentReport

	DensityValid bool
	Density      DensityReport

	FlowState FlowState
	BadFlows  int
}

// LossReport summarizes the loss estimator's findings, corresponding to
// lossDataR plus the derived value/autocorrelation computed at report-build
// time in build_callback_results.
type LossReport struct {
	Received         int
	Dropped          int
	ConsecutiveDrops int
	GapMin           int
	GapMax           int
	GapTotal         int
	GapCount         int

	// Value is the loss fraction dropped/(received+dropped).
	Value float64
	// Autocorrelation is (c*r + c*d - d*d) / (d*r) where r=Received,
	// d=Dropped, c=ConsecutiveDrops, or 0 when Dropped is 0.
	Autocorrelation float64
}

// finalize computes Value and Autocorrelation from the raw accumulated
// counters, matching build_callback_results's derivation.
func (lr *LossReport) finalize() {
	r := float64(lr.Received)
	d := float64(lr.Dropped)
	c := float64(lr.ConsecutiveDrops)
	if r+d > 0 {
		lr.Value = d / (r + d)
	}
	if d != 0 {
		lr.Autocorrelation = (c*r + c*d - d*d) / (d * r)
	}
}

// ExtentReport summarizes the reorder-extent estimator's findings for one
// period: a histogram indexed 0..ReorderMaxExtent of how many packets
// arrived that many positions late, plus packets assumed dropped because a
// missing-packet record aged out unobserved.
type ExtentReport struct {
	Histogram    [ReorderMaxExtent + 1]int
	AssumedDrops int
}

// DensityReport summarizes the reorder-density estimator's findings for one
// period: FD[d+ReorderDT] counts packets observed at signed displacement d,
// for |d| <= ReorderDT, plus window entries popped at a displacement from RI
// outside that range, which are counted as assumed drops instead.
type DensityReport struct {
	FD           [2*ReorderDT + 1]int
	AssumedDrops int
}

// ReportCallback receives one Report per flow per reporter schedule item.
type ReportCallback func(Report)
