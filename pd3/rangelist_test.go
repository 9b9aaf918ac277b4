package pd3

import "testing"

func TestRangeListPrepend(t *testing.T) {
	l := newSeqnoRangeList()
	l.prepend(seqnoRange{Low: 3, High: 3})
	l.prepend(seqnoRange{Low: 2, High: 2})
	l.prepend(seqnoRange{Low: 1, High: 1})

	want := []Seqno{1, 2, 3}
	if l.len() != len(want) {
		t.Fatalf("len = %d, want %d", l.len(), len(want))
	}
	for i, w := range want {
		if l.ranges[i].Low != w {
			t.Errorf("ranges[%d].Low = %d, want %d", i, l.ranges[i].Low, w)
		}
	}
}

func TestRangeListSplice(t *testing.T) {
	a := newSeqnoRangeList()
	a.appendRange(seqnoRange{Low: 1, High: 1})
	b := newSeqnoRangeList()
	b.appendRange(seqnoRange{Low: 2, High: 2})

	a.splice(b)
	if a.len() != 2 {
		t.Fatalf("a.len() = %d, want 2", a.len())
	}
	if b.len() != 0 {
		t.Fatalf("b.len() = %d, want 0 after splice", b.len())
	}
}

func TestSortTaggedWraparoundFirst(t *testing.T) {
	tagged := []taggedRange{
		{r: seqnoRange{Low: 0, High: 5}},
		{r: seqnoRange{Low: 0xFFFFFFF0, High: 2}, wraparound: true},
	}
	sortTagged(tagged)
	if !tagged[0].wraparound {
		t.Errorf("a range flagged wraparound should sort before all non-wraparound ranges regardless of Low")
	}
}
