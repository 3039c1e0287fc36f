package ospf

import "testing"

func TestCompareLSAInstancesSequenceNumber(t *testing.T) {
	a := LSAHeader{SequenceNumber: 5}
	b := LSAHeader{SequenceNumber: 4}
	if got := compareLSAInstances(a, b); got != cmpNewer {
		t.Fatalf("higher sequence number should be newer, got %v", got)
	}
	if got := compareLSAInstances(b, a); got != cmpOlder {
		t.Fatalf("lower sequence number should be older, got %v", got)
	}
}

func TestCompareLSAInstancesChecksumTiebreak(t *testing.T) {
	a := LSAHeader{SequenceNumber: 1, Checksum: 0xdead}
	b := LSAHeader{SequenceNumber: 1, Checksum: 0xbeef}
	if got := compareLSAInstances(a, b); got != cmpNewer {
		t.Fatalf("equal sequence, higher checksum should be newer, got %v", got)
	}
}

func TestCompareLSAInstancesMaxAgeWins(t *testing.T) {
	a := LSAHeader{SequenceNumber: 1, Checksum: 1, Age: MaxAge}
	b := LSAHeader{SequenceNumber: 1, Checksum: 1, Age: 10}
	if got := compareLSAInstances(a, b); got != cmpNewer {
		t.Fatalf("MaxAge instance should always be newer, got %v", got)
	}
}

func TestCompareLSAInstancesAgeDiffTiebreak(t *testing.T) {
	a := LSAHeader{SequenceNumber: 1, Checksum: 1, Age: 100 * seconds}
	b := LSAHeader{SequenceNumber: 1, Checksum: 1, Age: 1200 * seconds}
	if got := compareLSAInstances(a, b); got != cmpNewer {
		t.Fatalf("younger instance beyond MaxAgeDiff should win, got %v", got)
	}
}

func TestCompareLSAInstancesEquivalent(t *testing.T) {
	a := LSAHeader{SequenceNumber: 1, Checksum: 1, Age: 100 * seconds}
	b := LSAHeader{SequenceNumber: 1, Checksum: 1, Age: 200 * seconds}
	if got := compareLSAInstances(a, b); got != cmpEquivalent {
		t.Fatalf("small age difference should be equivalent, got %v", got)
	}
}

const seconds = 1e9 // time.Second, spelled out to avoid importing "time" just for this constant
