package pd3

import (
	"sync"

	"github.com/OneOfOne/xxhash"

	"github.com/ProD3-LF/estimators/cmn/debug"
)

// HashTableSize is the fixed bucket count for every hashMap instance, held
// over from the original's #define and left as a compile-time constant
// rather than growing the table dynamically.
const HashTableSize = 1024

// hashMapItem is one flow's accumulated per-period state: raw arrival
// ranges plus the partially-built loss/extent/density accumulators. Items
// are chained within a bucket and recycled through an owner-specific
// freelist once their period has been reported.
type hashMapItem struct {
	key        ItemKey
	hash       uint32
	next       *hashMapItem
	checkedOut bool // true between a freelist get() and its matching put()

	packetData packetData
	lossRanges seqnoRangeList

	// extent and density are this period's output accumulators only
	// (histogram/FD counts for packets processed during this period); the
	// algorithms' persistent cross-period cursors (extentCursor,
	// densityCursor) live on the Estimator, keyed by stream, and are never
	// reset between periods.
	extent  ExtentReport
	density DensityReport

	flowState FlowState
}

// hashKey hashes a full tagged item key -- Type, FlowKey, and StreamID all
// participate, so a FLOW key (StreamID forced to 0) never collides with
// the STREAM key it was derived from despite sharing FlowKey bytes,
// matching hashmap2.c's equal_key comparing the whole tagged struct.
func hashKey(k ItemKey) uint32 {
	var buf [1 + KeySize + 1]byte
	buf[0] = byte(k.Type)
	copy(buf[1:], k.FlowKey[:])
	buf[1+KeySize] = k.StreamID
	return xxhash.Checksum32(buf[:])
}

// hashMapPeriod is one reporting period's worth of flows, chained into
// HashTableSize buckets by item-key hash.
type hashMapPeriod struct {
	buckets [HashTableSize]*hashMapItem
	count   int

	seq int64 // monotonically increasing period sequence number

	prev, next *hashMapPeriod // chronological list linkage
}

func newHashMapPeriod(seq int64) *hashMapPeriod {
	return &hashMapPeriod{seq: seq}
}

func (p *hashMapPeriod) bucketOf(hash uint32) int {
	return int(hash % HashTableSize)
}

// retrieve finds the item for key within this period without creating one.
func (p *hashMapPeriod) retrieve(key ItemKey) *hashMapItem {
	hash := hashKey(key)
	for it := p.buckets[p.bucketOf(hash)]; it != nil; it = it.next {
		if it.hash == hash && it.key == key {
			return it
		}
	}
	return nil
}

// force returns the item for key within this period, allocating (from the
// owner's freelist when possible) and chaining a new one if absent.
func (p *hashMapPeriod) force(key ItemKey, fl *itemFreelist) *hashMapItem {
	hash := hashKey(key)
	b := p.bucketOf(hash)
	for it := p.buckets[b]; it != nil; it = it.next {
		if it.hash == hash && it.key == key {
			return it
		}
	}
	it := fl.get()
	it.key, it.hash = key, hash
	it.next = p.buckets[b]
	p.buckets[b] = it
	p.count++
	return it
}

// items calls fn for every item chained into this period, STREAM and FLOW
// keys alike.
func (p *hashMapPeriod) items(fn func(*hashMapItem)) {
	for b := range p.buckets {
		for it := p.buckets[b]; it != nil; it = it.next {
			fn(it)
		}
	}
}

// zeroout walks every chained item and hands it back to fl, leaving the
// period's buckets empty but its struct reusable via periodFreelist.
func (p *hashMapPeriod) zeroout(fl *itemFreelist) {
	for i := range p.buckets {
		it := p.buckets[i]
		for it != nil {
			nxt := it.next
			fl.put(it)
			it = nxt
		}
		p.buckets[i] = nil
	}
	p.count = 0
}

// hashMapList is the doubly-linked chronological list of completed periods
// handed from the aggregator to the reporter (the shared pending area and
// the reporter's working list), with earliest/latest pointers mirroring the
// original hashmap2.c pop_earliest/push_latest pair.
type hashMapList struct {
	earliest, latest *hashMapPeriod
	periods          map[int64]*hashMapPeriod
}

func newHashMapList() *hashMapList {
	return &hashMapList{periods: make(map[int64]*hashMapPeriod)}
}

func (l *hashMapList) pushLatest(p *hashMapPeriod) {
	p.prev = l.latest
	p.next = nil
	if l.latest != nil {
		l.latest.next = p
	} else {
		l.earliest = p
	}
	l.latest = p
	l.periods[p.seq] = p
}

func (l *hashMapList) popEarliest() *hashMapPeriod {
	p := l.earliest
	if p == nil {
		return nil
	}
	l.earliest = p.next
	if l.earliest != nil {
		l.earliest.prev = nil
	} else {
		l.latest = nil
	}
	delete(l.periods, p.seq)
	p.prev, p.next = nil, nil
	return p
}

// moveAll detaches every period currently queued and returns its
// earliest/latest pair, leaving l empty. Mirrors
// data_exchange_reporter_unsafe's moveall_hashmap: the reporter grabs
// everything pending in one handoff rather than popping one period at a
// time, so a stitching pass can walk a period's .next chain for
// future-period lookahead.
func (l *hashMapList) moveAll() (earliest, latest *hashMapPeriod, count int) {
	earliest, latest = l.earliest, l.latest
	count = len(l.periods)
	l.earliest, l.latest = nil, nil
	l.periods = make(map[int64]*hashMapPeriod)
	return earliest, latest, count
}

func (l *hashMapList) bySeq(seq int64) *hashMapPeriod {
	return l.periods[seq]
}

func (l *hashMapList) empty() bool { return l.earliest == nil }

func (l *hashMapList) count() int { return len(l.periods) }

// pushAllFrom appends an externally-built earliest->next chain (as
// returned by moveAll) onto l's tail one period at a time.
func (l *hashMapList) pushAllFrom(earliest *hashMapPeriod) {
	for p := earliest; p != nil; {
		next := p.next
		l.pushLatest(p)
		p = next
	}
}

// itemFreelist recycles hashMapItem values within one ownership domain:
// aggregator-local or reporter-local. A period's items move
// between domains as a whole once the period itself is handed off (see
// periodFreelist.put), so the domain tag is descriptive rather than a
// per-item invariant; what is asserted is the simpler, always-true
// invariant that an item is checked out at most once between a get() and
// its matching put(), catching an accidental double-free.
type itemFreelist struct {
	mu     sync.Mutex
	domain string
	free   []*hashMapItem
}

func newItemFreelist(domain string) *itemFreelist {
	return &itemFreelist{domain: domain}
}

func (fl *itemFreelist) get() *hashMapItem {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if n := len(fl.free); n > 0 {
		it := fl.free[n-1]
		fl.free = fl.free[:n-1]
		*it = hashMapItem{}
		it.checkedOut = true
		return it
	}
	return &hashMapItem{checkedOut: true}
}

// put returns it to fl. In debug builds this asserts it was actually
// checked out, catching a double-free (the same item recycled twice,
// which would otherwise corrupt the freelist's internal slice).
func (fl *itemFreelist) put(it *hashMapItem) {
	debug.Assert(it.checkedOut)
	it.next = nil
	it.checkedOut = false
	fl.mu.Lock()
	fl.free = append(fl.free, it)
	fl.mu.Unlock()
}

func (fl *itemFreelist) size() int {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	return len(fl.free)
}

// periodFreelist recycles hashMapPeriod containers.
type periodFreelist struct {
	mu   sync.Mutex
	free []*hashMapPeriod
}

func (fl *periodFreelist) get(seq int64) *hashMapPeriod {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if n := len(fl.free); n > 0 {
		p := fl.free[n-1]
		fl.free = fl.free[:n-1]
		p.seq = seq
		p.prev, p.next = nil, nil
		return p
	}
	return newHashMapPeriod(seq)
}

func (fl *periodFreelist) put(p *hashMapPeriod, itemFl *itemFreelist) {
	p.zeroout(itemFl)
	fl.mu.Lock()
	fl.free = append(fl.free, p)
	fl.mu.Unlock()
}
