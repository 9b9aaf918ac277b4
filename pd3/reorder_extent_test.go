package pd3

import "testing"

func TestExtentInOrderNoHistogram(t *testing.T) {
	cur := &extentCursor{}
	var out ExtentReport
	for s := Seqno(0); s < 10; s++ {
		extentArrival(cur, &out, s)
	}
	for i, c := range out.Histogram {
		if i == 0 {
			continue // in-order arrivals all land in bucket 0
		}
		if c != 0 {
			t.Errorf("Histogram[%d] = %d, want 0 for strictly in-order arrivals", i, c)
		}
	}
	if out.Histogram[0] != 10 {
		t.Errorf("Histogram[0] = %d, want 10", out.Histogram[0])
	}
}

func TestExtentOneLateArrival(t *testing.T) {
	cur := &extentCursor{}
	var out ExtentReport
	// 0,1 arrive; 3 arrives (2 is now missing); 2 then arrives late, 1
	// arrival after it was first missed.
	extentArrival(cur, &out, 0)
	extentArrival(cur, &out, 1)
	extentArrival(cur, &out, 3)
	extentArrival(cur, &out, 2)

	if out.Histogram[1] != 1 {
		t.Errorf("Histogram[1] = %d, want 1 (one packet arriving 1 position late)", out.Histogram[1])
	}
}

func TestExtentDuplicateOfResolvedMissingDoesNotDoubleCount(t *testing.T) {
	cur := &extentCursor{}
	var out ExtentReport
	extentArrival(cur, &out, 0)
	extentArrival(cur, &out, 1)
	extentArrival(cur, &out, 3) // 2 now missing
	extentArrival(cur, &out, 2) // resolves it, extent 1
	before := out.Histogram[1]

	extentArrival(cur, &out, 2) // duplicate of the now-resolved missing packet
	if out.Histogram[1] != before {
		t.Errorf("Histogram[1] changed on a duplicate of an already-observed missing packet: got %d, want %d", out.Histogram[1], before)
	}
}

func TestExtentCapped(t *testing.T) {
	cur := &extentCursor{}
	var out ExtentReport
	extentArrival(cur, &out, 0)
	for s := Seqno(500); s < 500+300; s++ {
		extentArrival(cur, &out, s)
	}
	// seqno 1 never arrives within history; nothing should overflow the
	// histogram bounds regardless.
	sum := 0
	for _, c := range out.Histogram {
		sum += c
	}
	if sum < 0 {
		t.Errorf("histogram should never hold negative counts")
	}
}
