package ospf

import "time"

// A slotHandle is a stable reference into an LSDB: a slot index plus
// the generation of the LSA occupying it when the handle was taken.
// This replaces aliased smart-pointer references with an explicit
// value: every transient reference a timer, nack set, or SPT vertex
// needs can be a (slot_index, generation) pair, and MaxAge
// finalization becomes a generation bump rather than a pointer
// invalidation.
type slotHandle struct {
	index      int
	generation uint64
}

// Invalid reports whether h is the zero handle.
func (h slotHandle) Invalid() bool { return h.generation == 0 }

type lsdbSlot struct {
	generation uint64
	lsa        *LSA // nil when the slot is free
}

// LSDB is a per-area Link State Database: a dense array of LSAs
// indexed by insertion slot plus a free-slot queue for vacated
// positions. Iterators hold a snapshot of
// the high-water mark so that inserts occurring mid-iteration append
// past the snapshot rather than overwriting a slot a reader might
// still visit; compaction of freed slots is deferred for as long as
// any iterator is open.
type LSDB struct {
	slots       []lsdbSlot
	free        []int
	pendingFree []int          // vacated while readers > 0; folded into free on last Close
	byTriple    map[Triple]int // triple -> slot index, for O(1) find
	lastEntry   int            // high-water mark: largest occupied index + 1 (lowered by Delete)
	readers     int            // open iterator count
	nextGen     uint64

	// reincarnate holds slots MaxAged due to sequence-number wrap,
	// waiting for their nack set to empty so the 1Hz reaper (driven by
	// the embedding daemon calling ReapReincarnate) can hand them back
	// to origination with InitialSequenceNumber.
	reincarnate []int
}

// NewLSDB constructs an empty LSDB.
func NewLSDB() *LSDB {
	return &LSDB{byTriple: make(map[Triple]int)}
}

func (d *LSDB) nextGeneration() uint64 {
	d.nextGen++
	return d.nextGen
}

// Find looks up an LSA by its identity triple. The returned handle is
// stable across compaction as long as an iterator remains open or the
// slot is not deleted.
func (d *LSDB) Find(t Triple) (*LSA, slotHandle, bool) {
	idx, ok := d.byTriple[t]
	if !ok {
		return nil, slotHandle{}, false
	}
	slot := d.slots[idx]
	if slot.lsa == nil {
		return nil, slotHandle{}, false
	}
	return slot.lsa, slotHandle{index: idx, generation: slot.generation}, true
}

// Get dereferences a handle, returning false if the slot has since
// been invalidated (deleted or reincarnated past the handle's
// generation).
func (d *LSDB) Get(h slotHandle) (*LSA, bool) {
	if h.index < 0 || h.index >= len(d.slots) {
		return nil, false
	}
	slot := d.slots[h.index]
	if slot.lsa == nil || slot.generation != h.generation {
		return nil, false
	}
	return slot.lsa, true
}

// Add inserts a new LSA. It is an error (panic, since it signals a
// caller bug: compareLSAInstances should always be consulted first)
// to Add an LSA whose triple already exists.
func (d *LSDB) Add(lsa *LSA) slotHandle {
	t := lsa.Header.Triple()
	if _, exists := d.byTriple[t]; exists {
		panic("ospf: LSDB.Add: triple collision, caller must check Find first")
	}

	var idx int
	if n := len(d.free); n > 0 && d.readers == 0 {
		// Only reuse a freed slot when no iterator is open; while
		// readers are open, appending a fresh slot keeps existing
		// iterators' snapshots valid.
		idx = d.free[n-1]
		d.free = d.free[:n-1]
	} else {
		idx = len(d.slots)
		d.slots = append(d.slots, lsdbSlot{})
	}

	gen := d.nextGeneration()
	d.slots[idx] = lsdbSlot{generation: gen, lsa: lsa}
	d.byTriple[t] = idx
	if idx+1 > d.lastEntry {
		d.lastEntry = idx + 1
	}

	return slotHandle{index: idx, generation: gen}
}

// UpdateInPlace replaces the LSA occupying handle's slot, leaving the
// slot index unchanged -- required for wrap-around resequencing and
// for Type-5/Type-7 suppression and revival.
// The generation is bumped so stale handles taken before the update
// observe invalidation.
func (d *LSDB) UpdateInPlace(h slotHandle, newLSA *LSA) (slotHandle, bool) {
	if h.index < 0 || h.index >= len(d.slots) || d.slots[h.index].generation != h.generation {
		return slotHandle{}, false
	}

	oldTriple := d.slots[h.index].lsa.Header.Triple()
	newTriple := newLSA.Header.Triple()
	if oldTriple != newTriple {
		delete(d.byTriple, oldTriple)
		d.byTriple[newTriple] = h.index
	}

	gen := d.nextGeneration()
	d.slots[h.index] = lsdbSlot{generation: gen, lsa: newLSA}
	return slotHandle{index: h.index, generation: gen}, true
}

// Delete invalidates handle's slot. If invalidate is true, the caller
// is signaling that other code still holds *LSA references to this
// entry (e.g. an SPT vertex or a delay-queue entry) and those
// references must be treated as stale -- which the generation bump
// already guarantees for anyone going through Get, so invalidate has
// no further effect. Whether the slot is reusable at once depends only
// on whether any iterator is open.
func (d *LSDB) Delete(h slotHandle, invalidate bool) bool {
	if h.index < 0 || h.index >= len(d.slots) || d.slots[h.index].generation != h.generation {
		return false
	}

	t := d.slots[h.index].lsa.Header.Triple()
	delete(d.byTriple, t)
	d.slots[h.index] = lsdbSlot{generation: d.nextGeneration()}
	for d.lastEntry > 0 && d.slots[d.lastEntry-1].lsa == nil {
		d.lastEntry--
	}

	if d.readers == 0 {
		d.free = append(d.free, h.index)
	} else {
		d.pendingFree = append(d.pendingFree, h.index)
	}
	_ = invalidate // recorded via the generation bump above regardless

	return true
}

// OpenIterator begins a stable iteration snapshot: the returned
// *Iterator never sees slots vacated and reused while it is open,
// since the DD-exchange protocol may hold an iterator across multiple
// packet exchanges.
func (d *LSDB) OpenIterator() *Iterator {
	d.readers++
	return &Iterator{db: d, limit: d.lastEntry}
}

// An Iterator walks an LSDB's occupied slots up to the snapshot taken
// when it was opened. Inserts that occur while it is open append past
// the snapshot and are invisible to it, exactly as required for DD
// exchange correctness.
type Iterator struct {
	db     *LSDB
	limit  int
	cursor int
	closed bool
}

// Next advances the iterator and returns the next live LSA, or false
// when the snapshot is exhausted.
func (it *Iterator) Next() (*LSA, bool) {
	for it.cursor < it.limit {
		slot := it.db.slots[it.cursor]
		it.cursor++
		if slot.lsa != nil {
			return slot.lsa, true
		}
	}
	return nil, false
}

// Close releases the iterator's hold on slot reuse. When the last open
// iterator closes, freed slots (those vacated by Delete while any
// iterator was open) become reusable.
func (it *Iterator) Close() {
	if it.closed {
		return
	}
	it.closed = true
	it.db.readers--
	if it.db.readers == 0 {
		it.db.reclaimFreed()
	}
}

// reclaimFreed folds slots vacated by Delete while readers were open
// into the free queue now that it is safe to reuse them. It only
// drains pendingFree: slots Delete already placed directly onto free
// (because readers was already 0 at the time) must not be re-added
// here, or the same index would be queued twice and a later Add would
// hand it out twice, overwriting one inserted LSA with another.
func (d *LSDB) reclaimFreed() {
	d.free = append(d.free, d.pendingFree...)
	d.pendingFree = d.pendingFree[:0]
}

// MaxAgeSweepType premature-ages every self-originated LSA of the
// given type, used when an area's type changes from Normal to Stub
// and Summary-LSAs must be flushed.
func (d *LSDB) MaxAgeSweepType(t LSType, now time.Time) []*LSA {
	var swept []*LSA
	for i := range d.slots {
		s := d.slots[i].lsa
		if s == nil || s.Header.Type != t || !s.Header.SelfOriginating {
			continue
		}
		s.Header.Age = MaxAge
		swept = append(swept, s)
	}
	return swept
}

// WrapSequence MaxAges an LSA that has hit MaxSequenceNumber and
// queues it for reincarnation once its nack set drains.
func (d *LSDB) WrapSequence(h slotHandle) {
	lsa, ok := d.Get(h)
	if !ok {
		return
	}
	lsa.Header.Age = MaxAge
	d.reincarnate = append(d.reincarnate, h.index)
}

// ReapReincarnate is the 1Hz reaper callback: it moves any wrapped
// LSA whose nack set has emptied back onto the returned slice so the
// origination engine can revive it with InitialSequenceNumber and a
// fresh age.
func (d *LSDB) ReapReincarnate() []*LSA {
	var ready []*LSA
	remaining := d.reincarnate[:0]
	for _, idx := range d.reincarnate {
		lsa := d.slots[idx].lsa
		if lsa == nil {
			continue
		}
		if lsa.Header.Acked() {
			ready = append(ready, lsa)
			continue
		}
		remaining = append(remaining, idx)
	}
	d.reincarnate = remaining
	return ready
}

// Len reports the number of live LSAs currently stored.
func (d *LSDB) Len() int {
	return len(d.byTriple)
}
