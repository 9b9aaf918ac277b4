package pd3

import "testing"

func TestHashMapForceCreatesAndReuses(t *testing.T) {
	p := newHashMapPeriod(0)
	fl := newItemFreelist("test")
	k := streamKey(Key{1, 2}, 0)

	a := p.force(k, fl)
	b := p.force(k, fl)
	if a != b {
		t.Errorf("force should return the same item for the same key within a period")
	}
	if p.count != 1 {
		t.Errorf("count = %d, want 1", p.count)
	}
}

func TestHashMapStreamAndFlowKeysDoNotCollide(t *testing.T) {
	p := newHashMapPeriod(0)
	fl := newItemFreelist("test")
	flow := Key{1, 2}

	stream := p.force(streamKey(flow, 0), fl)
	consolidated := p.force(flowKey(flow), fl)
	if stream == consolidated {
		t.Errorf("a STREAM key with stream_id 0 must not collide with the FLOW key sharing the same flow bytes")
	}
	if p.count != 2 {
		t.Errorf("count = %d, want 2", p.count)
	}
}

func TestHashMapRetrieveMissing(t *testing.T) {
	p := newHashMapPeriod(0)
	if it := p.retrieve(streamKey(Key{9, 9}, 0)); it != nil {
		t.Errorf("retrieve on empty period should return nil")
	}
}

func TestHashMapListChronology(t *testing.T) {
	l := newHashMapList()
	p0 := newHashMapPeriod(0)
	p1 := newHashMapPeriod(1)
	l.pushLatest(p0)
	l.pushLatest(p1)

	if l.earliest != p0 || l.latest != p1 {
		t.Fatalf("chronology wrong: earliest=%v latest=%v", l.earliest, l.latest)
	}
	got := l.popEarliest()
	if got != p0 {
		t.Errorf("popEarliest returned %v, want p0", got)
	}
	if l.earliest != p1 {
		t.Errorf("earliest after pop = %v, want p1", l.earliest)
	}
}

func TestHashMapListMoveAll(t *testing.T) {
	l := newHashMapList()
	l.pushLatest(newHashMapPeriod(0))
	l.pushLatest(newHashMapPeriod(1))
	l.pushLatest(newHashMapPeriod(2))

	earliest, latest, n := l.moveAll()
	if n != 3 {
		t.Fatalf("moveAll count = %d, want 3", n)
	}
	if !l.empty() {
		t.Errorf("list should be empty after moveAll")
	}
	if earliest.seq != 0 || latest.seq != 2 {
		t.Errorf("earliest/latest seq = %d/%d, want 0/2", earliest.seq, latest.seq)
	}
	if earliest.next.next != latest {
		t.Errorf("detached chain should still be linked earliest->...->latest")
	}
}

func TestFreelistConservation(t *testing.T) {
	fl := newItemFreelist("test")
	it := fl.get()
	fl.put(it)
	if fl.size() != 1 {
		t.Errorf("freelist size = %d, want 1 after a single get/put round trip", fl.size())
	}
	it2 := fl.get()
	if fl.size() != 0 {
		t.Errorf("freelist size = %d, want 0 after reclaiming the only entry", fl.size())
	}
	_ = it2
}
