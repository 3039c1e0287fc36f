package ospf

import "testing"

func newTestLSA(adv ID, seq int32) *LSA {
	return &LSA{
		Header: LSAHeader{
			Type:              RouterLSA,
			LinkStateID:       adv,
			AdvertisingRouter: adv,
			SequenceNumber:    seq,
		},
		Body: &RouterLSABody{},
	}
}

func TestLSDBAddFind(t *testing.T) {
	d := NewLSDB()
	lsa := newTestLSA(ID{192, 0, 2, 1}, InitialSequenceNumber)
	h := d.Add(lsa)

	got, gotH, ok := d.Find(lsa.Header.Triple())
	if !ok {
		t.Fatalf("Find: not found after Add")
	}
	if got != lsa {
		t.Fatalf("Find returned a different *LSA")
	}
	if gotH != h {
		t.Fatalf("Find handle = %+v, want %+v", gotH, h)
	}
	if d.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", d.Len())
	}
}

func TestLSDBAddDuplicateTriplePanics(t *testing.T) {
	d := NewLSDB()
	lsa := newTestLSA(ID{192, 0, 2, 1}, InitialSequenceNumber)
	d.Add(lsa)

	defer func() {
		if recover() == nil {
			t.Fatalf("Add with a colliding triple should panic")
		}
	}()
	d.Add(newTestLSA(ID{192, 0, 2, 1}, InitialSequenceNumber+1))
}

func TestLSDBDeleteInvalidatesHandle(t *testing.T) {
	d := NewLSDB()
	lsa := newTestLSA(ID{192, 0, 2, 1}, InitialSequenceNumber)
	h := d.Add(lsa)

	if !d.Delete(h, false) {
		t.Fatalf("Delete: want true")
	}
	if _, ok := d.Get(h); ok {
		t.Fatalf("Get after Delete should report false")
	}
	if _, _, ok := d.Find(lsa.Header.Triple()); ok {
		t.Fatalf("Find after Delete should report false")
	}
	if d.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", d.Len())
	}
}

func TestLSDBUpdateInPlaceBumpsGeneration(t *testing.T) {
	d := NewLSDB()
	lsa := newTestLSA(ID{192, 0, 2, 1}, InitialSequenceNumber)
	h := d.Add(lsa)

	updated := newTestLSA(ID{192, 0, 2, 1}, InitialSequenceNumber+1)
	h2, ok := d.UpdateInPlace(h, updated)
	if !ok {
		t.Fatalf("UpdateInPlace: want true")
	}
	if h2.index != h.index {
		t.Fatalf("UpdateInPlace should keep the same slot index")
	}
	if h2.generation == h.generation {
		t.Fatalf("UpdateInPlace should bump the generation")
	}
	if _, ok := d.Get(h); ok {
		t.Fatalf("the pre-update handle should be invalidated")
	}
	got, ok := d.Get(h2)
	if !ok || got != updated {
		t.Fatalf("Get(h2) = %v, %v, want %v, true", got, ok, updated)
	}
}

func TestLSDBIteratorStableDuringInsert(t *testing.T) {
	d := NewLSDB()
	d.Add(newTestLSA(ID{192, 0, 2, 1}, InitialSequenceNumber))
	d.Add(newTestLSA(ID{192, 0, 2, 2}, InitialSequenceNumber))

	it := d.OpenIterator()
	defer it.Close()

	// An insert occurring while the iterator is open must not be
	// visible to this snapshot.
	d.Add(newTestLSA(ID{192, 0, 2, 3}, InitialSequenceNumber))

	count := 0
	for {
		_, ok := it.Next()
		if !ok {
			break
		}
		count++
	}
	if count != 2 {
		t.Fatalf("iterator saw %d LSAs, want 2 (snapshot taken before the third Add)", count)
	}
}

func TestLSDBDeferredReclaimWhileIteratorOpen(t *testing.T) {
	d := NewLSDB()
	h := d.Add(newTestLSA(ID{192, 0, 2, 1}, InitialSequenceNumber))

	it := d.OpenIterator()
	d.Delete(h, true)

	// The freed slot must not be handed out to a new Add while the
	// iterator is still open, since the slot's generation bump is what
	// invalidates stale references, not reuse timing -- but reuse would
	// still corrupt the open iterator's view of slot indices.
	h2 := d.Add(newTestLSA(ID{192, 0, 2, 2}, InitialSequenceNumber))
	if h2.index == h.index {
		t.Fatalf("Add should not reuse a freed slot while a reader is open")
	}
	it.Close()
}

// TestLSDBNoDoubleFreeAcrossIdleIterator guards against a slot being
// queued onto the free list twice: once by Delete at readers == 0,
// and again by a later OpenIterator/Close pair that never itself
// deleted anything. A double-queued slot would be handed out to two
// Adds in a row, and the second would silently overwrite the first
// LSA's slot out from under byTriple.
func TestLSDBNoDoubleFreeAcrossIdleIterator(t *testing.T) {
	d := NewLSDB()
	first := newTestLSA(ID{192, 0, 2, 1}, InitialSequenceNumber)
	h := d.Add(first)
	d.Delete(h, false)

	// No deletes happen while this iterator is open; closing it must
	// not re-queue the slot Delete already freed.
	it := d.OpenIterator()
	it.Close()

	second := newTestLSA(ID{192, 0, 2, 2}, InitialSequenceNumber)
	hSecond := d.Add(second)
	third := newTestLSA(ID{192, 0, 2, 3}, InitialSequenceNumber)
	hThird := d.Add(third)

	if hSecond.index == hThird.index {
		t.Fatalf("slot %d handed out to two Adds in a row", hSecond.index)
	}

	gotSecond, _, ok := d.Find(second.Header.Triple())
	if !ok || gotSecond != second {
		t.Fatalf("second LSA lost from the database: got %v, ok=%v", gotSecond, ok)
	}
	gotThird, _, ok := d.Find(third.Header.Triple())
	if !ok || gotThird != third {
		t.Fatalf("third LSA lost from the database: got %v, ok=%v", gotThird, ok)
	}
}
