package pd3

import "testing"

func TestLossNoLossIdentity(t *testing.T) {
	it := &hashMapItem{key: streamKey(Key{1}, 0)}
	for s := Seqno(1); s <= 10; s++ {
		lossArrival(it, s)
	}
	rep := lossA2R(&it.lossRanges, it.flowState, &lossState{}, nil, it.key, 1)
	if rep.Dropped != 0 {
		t.Errorf("Dropped = %d, want 0 for a contiguous run", rep.Dropped)
	}
	if rep.Received != 10 {
		t.Errorf("Received = %d, want 10", rep.Received)
	}
}

func TestLossDuplicateIdempotence(t *testing.T) {
	it := &hashMapItem{key: streamKey(Key{1}, 0)}
	for s := Seqno(1); s <= 5; s++ {
		lossArrival(it, s)
	}
	lossArrival(it, 3) // duplicate
	rep := lossA2R(&it.lossRanges, it.flowState, &lossState{}, nil, it.key, 1)
	if rep.Dropped != 0 {
		t.Errorf("Dropped = %d, want 0 (duplicate shouldn't manufacture a gap)", rep.Dropped)
	}
}

func TestLossSingleGap(t *testing.T) {
	it := &hashMapItem{key: streamKey(Key{1}, 0)}
	for _, s := range []Seqno{1, 2, 4, 5} { // seqno 3 missing
		lossArrival(it, s)
	}
	rep := lossA2R(&it.lossRanges, it.flowState, &lossState{}, nil, it.key, 1)
	if rep.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", rep.Dropped)
	}
	if rep.GapCount != 1 || rep.GapMin != 1 || rep.GapMax != 1 {
		t.Errorf("gap stats = %+v, want a single gap of size 1", rep)
	}
}

func TestLossSeqnoZeroRecorded(t *testing.T) {
	it := &hashMapItem{key: streamKey(Key{1}, 0)}
	lossArrival(it, 0)
	if it.lossRanges.len() != 1 {
		t.Errorf("seqno 0 should be recorded as its own range, got %d ranges", it.lossRanges.len())
	}
}

// TestLossCrossPeriodStitching exercises the persistent lossState that
// carries the last-processed range across two successive lossA2R calls: a
// gap spanning a period boundary is only detectable once the later period
// is itself processed against the state the earlier call left behind.
func TestLossCrossPeriodStitching(t *testing.T) {
	key := streamKey(Key{2}, 0)
	state := &lossState{}

	cur := &hashMapItem{key: key}
	for _, s := range []Seqno{1, 2, 3} {
		lossArrival(cur, s)
	}
	rep1 := lossA2R(&cur.lossRanges, cur.flowState, state, nil, key, 1)
	if rep1.Dropped != 0 || rep1.Received != 3 {
		t.Fatalf("first period rep = %+v, want Received=3 Dropped=0", rep1)
	}

	next := &hashMapItem{key: key}
	for _, s := range []Seqno{5, 6} { // seqno 4 missing, spans the period boundary
		lossArrival(next, s)
	}
	rep2 := lossA2R(&next.lossRanges, next.flowState, state, nil, key, 1)
	if rep2.Dropped != 1 {
		t.Errorf("second period Dropped = %d, want 1 (gap carried from the persisted cross-period state)", rep2.Dropped)
	}
	if rep2.Received != 2 {
		t.Errorf("second period Received = %d, want 2", rep2.Received)
	}
}

// TestLossFutureLookaheadDoesNotDoubleCount confirms that ranges from a
// queued future period are consulted for stitching without being folded
// into the current call's own received/dropped counts -- those ranges are
// reported when their own period is processed.
func TestLossFutureLookaheadDoesNotDoubleCount(t *testing.T) {
	key := streamKey(Key{3}, 0)
	cur := &hashMapItem{key: key}
	for _, s := range []Seqno{1, 2, 3} {
		lossArrival(cur, s)
	}

	future := newHashMapPeriod(1)
	futureFl := newItemFreelist("test")
	futureIt := future.force(key, futureFl)
	for _, s := range []Seqno{5, 6} {
		lossArrival(futureIt, s)
	}

	rep := lossA2R(&cur.lossRanges, cur.flowState, &lossState{}, future, key, 2)
	if rep.Received != 3 {
		t.Errorf("Received = %d, want 3 (future period's ranges are not this call's to report)", rep.Received)
	}
	if rep.Dropped != 0 {
		t.Errorf("Dropped = %d, want 0", rep.Dropped)
	}
}
