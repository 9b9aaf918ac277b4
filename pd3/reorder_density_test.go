package pd3

import "testing"

func TestDensityInOrderHitsZeroDisplacement(t *testing.T) {
	cur := &densityCursor{}
	var out DensityReport
	for s := Seqno(0); s < 20; s++ {
		densityArrival(cur, &out, s)
	}
	// Every in-order arrival matches RI exactly, i.e. displacement 0, which
	// lands in FD[ReorderDT].
	if out.FD[ReorderDT] == 0 {
		t.Errorf("expected in-order arrivals to accumulate at FD[%d], got all-zero histogram: %v", ReorderDT, out.FD)
	}
	sum := 0
	for _, c := range out.FD {
		sum += c
	}
	if sum == 0 {
		t.Errorf("density histogram should not be all-zero after 20 in-order arrivals")
	}
}

func TestDensityWindowFillsBeforeInitializing(t *testing.T) {
	cur := &densityCursor{}
	var out DensityReport
	for s := Seqno(100); s < Seqno(100+ReorderDT); s++ {
		densityArrival(cur, &out, s)
		if cur.windowInitialized {
			t.Fatalf("windowInitialized should stay false until ReorderDT+1 unique arrivals accumulate")
		}
	}
	densityArrival(cur, &out, Seqno(100+ReorderDT))
	if !cur.windowInitialized {
		t.Fatalf("expected densityCursor to initialize once the window reaches ReorderDT+1 arrivals")
	}
	if cur.RI != 0 {
		t.Errorf("RI = %d, want 0 immediately after initialization", cur.RI)
	}
}

func TestDensityProcessNextPacketCountsAssumedDropBeyondWindow(t *testing.T) {
	var out DensityReport
	// RI is found in the window (at the back), but the front entry
	// rdProcessNextPacket unconditionally pops is far enough away that its
	// displacement falls outside [-ReorderDT, ReorderDT].
	cur := &densityCursor{windowInitialized: true, window: []Seqno{50, 0}, RI: 0}

	rdProcessNextPacket(cur, &out)

	if out.AssumedDrops != 1 {
		t.Errorf("AssumedDrops = %d, want 1", out.AssumedDrops)
	}
	if len(cur.window) != 1 || cur.window[0] != 0 {
		t.Errorf("window after pop = %v, want [0]", cur.window)
	}
}
