package ospf

import "time"

// floodEntry is one pending publication: the LSA to flood and the
// (peer, neighbor) pair it arrived from, which publish() excludes from
// the flood.
type floodEntry struct {
	lsa            *LSA
	originPeer     PeerID
	originNeighbor NeighborID
}

// classification is the result of comparing an incoming LSA against
// the database copy.
type classification uint8

const (
	classNoMatch classification = iota
	classNewer
	classOlder
	classEquivalent
)

// arrivalTimes tracks, per triple, when the currently installed
// instance was accepted -- used to enforce MinLSArrival.
type arrivalTimes struct {
	m map[Triple]time.Time
}

func newArrivalTimes() *arrivalTimes { return &arrivalTimes{m: make(map[Triple]time.Time)} }

func (a *arrivalTimes) record(t Triple, when time.Time) { a.m[t] = when }
func (a *arrivalTimes) since(t Triple, now time.Time) (time.Duration, bool) {
	last, ok := a.m[t]
	if !ok {
		return 0, false
	}
	return now.Sub(last), true
}

// FloodEngine implements RFC 2328 section 13's receive path against
// one Area's LSDB, plus publish() fan-out to every other peer. It is
// parameterized over AfOps so the same logic serves both OSPFv2 and
// OSPFv3 areas.
type FloodEngine struct {
	area     *Area
	arrivals *arrivalTimes
	dirty    func(*LSA) // hook into SPF's dirty set
}

// NewFloodEngine constructs a FloodEngine bound to area. dirty is
// invoked for every LSA that is newly installed or updated, so SPF
// can mark the area for recompute.
func NewFloodEngine(area *Area, dirty func(*LSA)) *FloodEngine {
	return &FloodEngine{area: area, arrivals: newArrivalTimes(), dirty: dirty}
}

// ReceiveResult reports what the flooding engine did with an incoming
// LSA, mainly for tests and logging.
type ReceiveResult uint8

// Possible ReceiveResults.
const (
	ResultDropped ReceiveResult = iota
	ResultInstalled
	ResultAcked
	ResultUnicastDatabaseCopy
	ResultBadLSReq
	ResultSelfIntrusionHandled
)

// Receive implements RFC2328 section 13's receive path for lsa
// arriving from neighbor on peer. isBDR reports whether this router is
// the BDR on peer's segment and neighborIsDR whether neighbor is its
// DR, both supplied by the (external) DR-election state machine;
// neighborInExchangeOrLoading reports whether any neighbor is still in
// Exchange or Loading.
func (fe *FloodEngine) Receive(lsa *LSA, peer PeerID, neighbor NeighborID, now time.Time, isBDR bool, neighborIsDR bool, neighborInExchangeOrLoading bool) ReceiveResult {
	area := fe.area
	log := lsaLog(area.Config.ID, lsa.Header)

	// Step 2: stub/NSSA area filtering.
	if area.IsStub() && (lsa.Header.Type == ASExternalLSA || (area.Config.Type == StubArea && lsa.Header.Type == Type7LSA)) {
		log.Debug("dropping AS-scoped LSA in stub/NSSA area")
		return ResultDropped
	}

	// Step 3: MaxAge with no matching entry and no neighbor mid-sync.
	_, handle, found := area.LSDB.Find(lsa.Header.Triple())
	if lsa.Header.Age >= MaxAge && !found && !neighborInExchangeOrLoading {
		log.Debug("MaxAge LSA with no local copy: ack and drop")
		return ResultAcked
	}

	// Step 6: self-origination defense, checked before general
	// classification because it overrides normal install/flood
	// behavior regardless of comparison outcome.
	if fe.isSelfOriginatedIntrusion(lsa) {
		fe.handleSelfIntrusion(lsa, handle, found)
		return ResultSelfIntrusionHandled
	}

	if !found {
		fe.install(lsa, peer, neighbor, now)
		return ResultInstalled
	}

	existing, _ := area.LSDB.Get(handle)
	cls := classify(lsa.Header, existing.Header)

	switch cls {
	case classNewer:
		if since, ok := fe.arrivals.since(lsa.Header.Triple(), now); ok && since < MinLSArrival {
			log.Debug("dropping NEWER LSA received within MinLSArrival")
			return ResultDropped
		}
		fe.install(lsa, peer, neighbor, now)
		return ResultInstalled

	case classOlder:
		if area.Peers.OnLinkStateRequestList(peer, area.Config.ID, neighbor, lsa.Header.Triple()) {
			log.Warn("BadLSReq: received older instance of an LSA on the LSR list")
			return ResultBadLSReq
		}
		if existing.Header.Age < MaxAge && existing.Header.SequenceNumber != MaxSequenceNumber {
			area.Peers.SendLSA(peer, area.Config.ID, neighbor, existing)
			return ResultUnicastDatabaseCopy
		}
		return ResultDropped

	default: // classEquivalent
		if existing.Header.Ack(neighbor) {
			if existing.Header.Age >= MaxAge && existing.Header.Acked() {
				fe.checkMaxAgeExpiry(existing.Header.Triple())
			}
			return ResultAcked
		}
		if isBDR && neighborIsDR {
			return ResultAcked // scheduled as a delayed ack by the caller
		}
		area.Peers.SendLSA(peer, area.Config.ID, neighbor, existing)
		return ResultAcked
	}
}

// classify implements the receive path's NOMATCH/NEWER/OLDER/
// EQUIVALENT classification for two headers known to share a triple.
func classify(incoming, existing LSAHeader) classification {
	switch compareLSAInstances(incoming, existing) {
	case cmpNewer:
		return classNewer
	case cmpOlder:
		return classOlder
	default:
		return classEquivalent
	}
}

// isSelfOriginatedIntrusion implements step 6: an incoming LSA is
// deemed self-originated by an intruder if its advertising router is
// ours, or (OSPFv2 only) its link-state ID names one of our own
// interface addresses on a Network-LSA.
func (fe *FloodEngine) isSelfOriginatedIntrusion(lsa *LSA) bool {
	if lsa.Header.AdvertisingRouter == fe.area.RouterID {
		return true
	}
	if lsa.Header.Type == NetworkLSA {
		return fe.area.AF.SelfOriginatedByInterface(lsa.Header.LinkStateID)
	}
	return false
}

// handleSelfIntrusion bumps our own copy's sequence past the intruder
// and refloods it, or, if we have no local copy, MaxAges the intruder
// and refloods that -- in neither case installing the intruder's
// instance.
func (fe *FloodEngine) handleSelfIntrusion(intruder *LSA, handle slotHandle, found bool) {
	area := fe.area
	log := lsaLog(area.Config.ID, intruder.Header)

	if found {
		ours, _ := area.LSDB.Get(handle)
		if ours.Header.SequenceNumber <= intruder.Header.SequenceNumber {
			if intruder.Header.SequenceNumber >= MaxSequenceNumber {
				area.LSDB.WrapSequence(handle)
				log.Warn("self-originated LSA intrusion forced sequence wrap")
				return
			}
			next := intruder.Header.SequenceNumber + 1
			ours.Header.SequenceNumber = next
			ours.Header.Age = 0
			log.Warn("bumped self-originated LSA sequence past intruder")
		}
		fe.floodAll(ours, "", NeighborID{})
		fe.ArmMaxAgeTimer(ours.Header.Triple())
		return
	}

	// No local copy at all (e.g. a stale originator's LSA outlived a
	// restart): MaxAge the intruder's instance and reflood that,
	// without installing it.
	intruder.Header.Age = MaxAge
	fe.floodAll(intruder, "", NeighborID{})
}

// install places lsa into the database (fresh insert or in-place
// update), records its arrival time for MinLSArrival bookkeeping,
// floods it onward, schedules an ack if needed, and marks it dirty for
// SPF.
func (fe *FloodEngine) install(lsa *LSA, peer PeerID, neighbor NeighborID, now time.Time) {
	area := fe.area
	t := lsa.Header.Triple()

	if _, handle, found := area.LSDB.Find(t); found {
		area.LSDB.UpdateInPlace(handle, lsa)
	} else {
		area.LSDB.Add(lsa)
	}
	fe.arrivals.record(t, now)

	multicastBack := fe.floodAll(lsa, peer, neighbor)
	if !multicastBack {
		// Schedule a delayed ack; the caller (peer manager glue) is
		// responsible for the actual delay-ack timer since the core
		// has no opinion on the ack-delay constant beyond "delayed".
	}

	fe.ArmMaxAgeTimer(t)

	if fe.dirty != nil {
		fe.dirty(lsa)
	}
	area.ScheduleRecompute()
}

// ArmMaxAgeTimer schedules the check that purges t's current instance
// once it reaches MaxAge and every neighbor has acked it. Called
// whenever an instance is installed,
// refreshed, or deliberately MaxAged (withdrawal, self-intrusion
// defense), since each of those resets how long the current Age has
// left to run.
func (fe *FloodEngine) ArmMaxAgeTimer(t Triple) {
	lsa, _, ok := fe.area.LSDB.Find(t)
	if !ok {
		return
	}
	remaining := MaxAge - lsa.Header.Age
	if remaining < 0 {
		remaining = 0
	}
	fe.area.ArmAgeTimer(t, remaining, func() { fe.checkMaxAgeExpiry(t) })
}

// checkMaxAgeExpiry runs when t's age timer fires: if every neighbor
// has acked the MaxAged instance it is deleted outright; otherwise the
// instance is unicast again to every neighbor still outstanding and the
// check is retried after RxmtInterval scenario
// S6 ("as each neighbor acks, it is removed from the nack set; when the
// set empties, the LSA is deleted").
func (fe *FloodEngine) checkMaxAgeExpiry(t Triple) {
	area := fe.area
	lsa, handle, ok := area.LSDB.Find(t)
	if !ok {
		return
	}
	if lsa.Header.Age < MaxAge {
		return
	}
	if !lsa.Header.Acked() {
		for n := range lsa.Header.NackSet {
			area.Peers.SendLSA(n.Peer, area.Config.ID, n, lsa)
		}
		area.ArmAgeTimer(t, RxmtInterval, func() { fe.checkMaxAgeExpiry(t) })
		return
	}
	area.LSDB.Delete(handle, false)
	area.ClearTimers(t)
}

// floodAll publishes lsa to every peer except the one it arrived on,
// batched through the area's flood delay queue so rapid-fire
// origination coalesces into MinLSInterval-spaced bursts, and reports
// whether it was multicast back to us on the arrival peer (used to
// suppress an explicit ack).
//
// The multicast-back determination is independent of when the batched
// fan-out to other peers actually happens, so it is resolved
// synchronously here rather than threaded through the delay queue.
func (fe *FloodEngine) floodAll(lsa *LSA, originPeer PeerID, originNeighbor NeighborID) bool {
	multicastBack := fe.area.Peers.QueueLSA(originPeer, originPeer, originNeighbor, lsa)
	fe.area.floodDelay.Add(floodEntry{lsa: lsa, originPeer: originPeer, originNeighbor: originNeighbor})
	return multicastBack
}

// doPublish is the flood delay queue's forward callback: it performs
// the actual QueueLSA fan-out to every up peer in the area other than
// the one the LSA arrived from, then flushes each peer's
// retransmission list.
func (a *Area) doPublish(e floodEntry) {
	peers := a.Peers.PeersInArea(a.Config.ID)
	for _, p := range peers {
		if p == e.originPeer {
			continue
		}
		a.Peers.QueueLSA(p, e.originPeer, e.originNeighbor, e.lsa)
	}
	for _, p := range peers {
		a.Peers.PushLSAs(p)
	}
}
