package pd3

import "testing"

func TestSeqcmp(t *testing.T) {
	cases := []struct {
		a, b Seqno
		want int
	}{
		{10, 10, 0},
		{10, 11, -1},
		{11, 10, 1},
		{0xFFFFFFFD, 2, -1}, // wraparound: 2 follows 0xFFFFFFFD
		{2, 0xFFFFFFFD, 1},
	}
	for _, c := range cases {
		if got := seqcmp(c.a, c.b); got != c.want {
			t.Errorf("seqcmp(%d,%d) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestModularDistanceNoWrap(t *testing.T) {
	if d := modularDistance(10, 15); d != 5 {
		t.Errorf("modularDistance(10,15) = %d, want 5", d)
	}
	if d := modularDistance(10, 10); d != 0 {
		t.Errorf("modularDistance(10,10) = %d, want 0", d)
	}
}

// TestModularDistanceWrapOffByOne pins down the intentional off-by-one in
// the wraparound branch: the distance from s to t, when t < s, comes out
// one short of the "true" modular distance.
func TestModularDistanceWrapOffByOne(t *testing.T) {
	// true distance from 0xFFFFFFFF to 0 is 1; the off-by-one formula
	// yields 0.
	got := modularDistance(0xFFFFFFFF, 0)
	want := Seqno(0)
	if got != want {
		t.Errorf("modularDistance(0xFFFFFFFF,0) = %d, want %d (off-by-one preserved)", got, want)
	}
}
