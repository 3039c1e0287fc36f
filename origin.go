package ospf

import (
	"net/netip"
	"time"
)

// Originator assembles and maintains self-originated LSAs for one
// Area: Router-LSAs always, Network-/Intra-Area-Prefix-LSAs when this
// router is DR on a transit link, Summary-LSAs at area borders, and
// AS-External/Type-7-LSAs at the AS boundary. It owns the
// refresh-timer bookkeeping that keeps each self-originated LSA from
// aging out.
type Originator struct {
	area  *Area
	flood *FloodEngine

	// selfOriginated tracks the current sequence number of every LSA
	// this router originates in this area, so a re-origination bumps
	// rather than restarts the sequence.
	selfOriginated map[Triple]int32
}

// NewOriginator constructs an Originator bound to area, flooding
// through flood.
func NewOriginator(area *Area, flood *FloodEngine) *Originator {
	return &Originator{area: area, flood: flood, selfOriginated: make(map[Triple]int32)}
}

// RouterLinkSource supplies the per-peer link facts the origination
// engine needs to assemble a Router-LSA, since link/adjacency state
// itself lives in the peer manager.
type RouterLinkSource struct {
	Link RouterLink
	// Up reports whether the neighbor on this link is in Full state
	// (point-to-point/virtual) or 2-Way-or-greater with a DR present
	// (transit); a link with Up false is omitted from the LSA per
	// RFC2328 section 12.4.1.1.
	Up bool
}

// BuildRouterLSA assembles this router's Router-LSA body for the area
// from links, setting the V bit if virtualLinkEndpoint and the E bit
// if asbr, per RFC2328 section 12.4.1.
func (o *Originator) BuildRouterLSA(links []RouterLinkSource, virtualLinkEndpoint, asbr bool) *RouterLSABody {
	body := &RouterLSABody{
		Bits: RouterLSABits{V: virtualLinkEndpoint, E: asbr, B: o.isAreaBorderRouter()},
	}
	for _, l := range links {
		if !l.Up {
			continue
		}
		body.Links = append(body.Links, l.Link)
	}
	return body
}

// isAreaBorderRouter reports the area's borderRouter flag, which the
// owning Router updates whenever an area is added or removed; Area
// itself has no cross-area visibility.
func (o *Originator) isAreaBorderRouter() bool {
	return o.area.borderRouter
}

// BuildNetworkLSA assembles a Network-LSA for a transit link this
// router is DR on, per RFC2328 section 12.4.2. attachedRouters must
// already be filtered to 2-Way-or-greater neighbors plus this router.
func (o *Originator) BuildNetworkLSA(mask ID, attachedRouters []ID) *NetworkLSABody {
	body := &NetworkLSABody{AttachedRouters: attachedRouters}
	if o.area.AF.Version() == V2 {
		body.NetworkMask = mask
	} else {
		body.Options = 0 // the interface's advertised options; caller may override
	}
	return body
}

// BuildIntraAreaPrefixLSA assembles the OSPFv3 companion prefix LSA
// for a Router- or Network-LSA, per RFC5340 section 4.4.3.9. It is a
// no-op concept on OSPFv2, which carries prefixes on the Router-/
// Network-LSA directly.
func (o *Originator) BuildIntraAreaPrefixLSA(refType LSType, refLSID, refAdv ID, prefixes []PrefixEntry) *IntraAreaPrefixLSABody {
	return &IntraAreaPrefixLSABody{
		ReferencedType:              refType,
		ReferencedLinkStateID:       refLSID,
		ReferencedAdvertisingRouter: refAdv,
		Prefixes:                    prefixes,
	}
}

// BuildSummaryLSA assembles a Type-3 (net != ID{}) or Type-4 (asbr)
// Summary-LSA advertising net at cost metric into this area, applying
// RFC2328 Appendix E's link-state-ID disambiguation: if an existing
// Summary-LSA with link-state ID equal to net's network number already
// describes a *different* destination, successively higher IDs (one
// more each time) are probed until one is free or already describes
// net. The destination's host bits are not set, and the existing
// Summary-LSA keeps its ID.
func (o *Originator) BuildSummaryLSA(lsType LSType, net Prefix, cost uint32, referencedRouter ID, existing func(ID) (Prefix, bool)) (ID, *SummaryLSABody) {
	body := &SummaryLSABody{Prefix: net, Metric: cost}
	if o.area.AF.Version() == V2 {
		body.NetworkMask = prefixLengthToMask(net.Bits())
	}
	if lsType == SummaryASBRLSA {
		body.ReferencedRouter = referencedRouter
	}

	if lsType == SummaryASBRLSA {
		return referencedRouter, body
	}

	// RFC2328 Appendix E: try the network number itself first (with
	// host bits cleared, which net already satisfies since Prefix is
	// stored masked), then probe successive IDs until one is free or
	// already describes this exact destination. OSPFv3 has no such
	// constraint (Type-3 link-state IDs are arbitrary, RFC5340 section
	// 4.4.3.5) but the same probing is harmless and keeps one code
	// path for both versions.
	lsid := addrToIDSeed(net.Addr())
	for {
		if cur, ok := existing(lsid); !ok || cur == net {
			break
		}
		lsid = IDFromUint32(lsid.Uint32() + 1)
	}
	return lsid, body
}

// addrToIDSeed folds addr's leading 32 bits into an ID, used as the
// starting point for link-state-ID disambiguation probing.
func addrToIDSeed(addr netip.Addr) ID {
	if addr.Is4() {
		a4 := addr.As4()
		return ID(a4)
	}
	a16 := addr.As16()
	return ID{a16[0], a16[1], a16[2], a16[3]}
}

// prefixLengthToMask renders a prefix length as a dotted-decimal-style
// network mask ID, used only for OSPFv2 Summary-LSA/AS-External-LSA
// encoding (RFC2328 carries the mask, not the length, on the wire).
func prefixLengthToMask(bits int) ID {
	var m uint32
	if bits > 0 {
		m = ^uint32(0) << uint(32-bits)
	}
	return IDFromUint32(m)
}

// defaultRouteTriple is the identity of a stub/NSSA area's default
// Summary-LSA: LSID = DefaultDestinationID.
func (o *Originator) defaultRouteTriple() Triple {
	return Triple{Type: SummaryNetLSA, LinkStateID: IDFromUint32(DefaultDestinationID), AdvertisingRouter: o.area.RouterID}
}

// OriginateStubDefault originates (or re-originates) the default-route
// Summary-LSA a stub/NSSA ABR announces when StubDefaultAnnounce is
// configured: LSID = 0, prefix-length = 0, at
// StubDefaultCost. Re-origination through Originate already preserves
// the existing sequence number via selfOriginated, satisfying the
// "save-then-restore the default LSA so its sequence number is
// preserved" requirement across an area-type transition that leaves
// StubDefaultAnnounce set both before and after.
func (o *Originator) OriginateStubDefault() {
	cfg := o.area.Config
	if !cfg.StubDefaultAnnounce || cfg.Type == NormalArea {
		return
	}

	var zero netip.Addr
	if o.area.AF.Version() == V2 {
		zero = netip.IPv4Unspecified()
	} else {
		zero = netip.IPv6Unspecified()
	}
	net := PrefixFromAddr(zero, 0)

	body := &SummaryLSABody{Prefix: net, Metric: cfg.StubDefaultCost}
	if o.area.AF.Version() == V2 {
		body.NetworkMask = prefixLengthToMask(0)
	}

	lsa := &LSA{
		Header: LSAHeader{Type: SummaryNetLSA, LinkStateID: IDFromUint32(DefaultDestinationID), AdvertisingRouter: o.area.RouterID},
		Body:   body,
	}
	o.Originate(lsa)
}

// WithdrawStubDefault retracts the default-route Summary-LSA, used when
// StubDefaultAnnounce is cleared or the area transitions away from
// stub/NSSA.
func (o *Originator) WithdrawStubDefault() {
	o.Withdraw(o.defaultRouteTriple())
}

// BuildASExternalLSA assembles the body shared by AS-External-LSAs and
// Type-7-LSAs, per RFC2328 appendix A.4.5 and RFC3101 section 2; the
// caller chooses the header type. nssaPropagate sets the P-bit.
func (o *Originator) BuildASExternalLSA(net Prefix, metric uint32, eBit bool, fwdAddr netip.Addr, tag uint32, nssaPropagate bool) *ASExternalLSABody {
	body := &ASExternalLSABody{Prefix: net, Metric: metric, EBit: eBit, RouteTag: tag, HasRouteTag: tag != 0}
	if o.area.AF.Version() == V2 {
		body.NetworkMask = prefixLengthToMask(net.Bits())
	}
	if fwdAddr.IsValid() {
		body.HasForwardingAddr = true
		body.ForwardingAddr = fwdAddr
	}
	if nssaPropagate {
		body.PBit = true
		body.PrefixOptions |= PrefixP
	}
	return body
}

// NoteSelfOriginated records seq as the current sequence number of the
// self-originated LSA t, so the next Originate of t continues from
// seq+1 rather than restarting at InitialSequenceNumber.
func (o *Originator) NoteSelfOriginated(t Triple, seq int32) {
	o.selfOriginated[t] = seq
}

// Originate installs lsa as self-originated, arms its refresh timer,
// and floods it, implementing the common tail of every per-type
// Build* call above.
func (o *Originator) Originate(lsa *LSA) {
	t := lsa.Header.Triple()
	lsa.Header.SelfOriginating = true
	lsa.Header.CreationTime = time.Now()

	if seq, ok := o.selfOriginated[t]; ok {
		next := seq + 1
		if seq >= MaxSequenceNumber {
			// Restart rather than overflow. The existing instance is not
			// MaxAged first and LSDB.WrapSequence is not called here:
			// this origination simply carries InitialSequenceNumber.
			next = InitialSequenceNumber
		}
		lsa.Header.SequenceNumber = next
	} else {
		lsa.Header.SequenceNumber = InitialSequenceNumber
	}
	o.selfOriginated[t] = lsa.Header.SequenceNumber

	if _, handle, found := o.area.LSDB.Find(t); found {
		o.area.LSDB.UpdateInPlace(handle, lsa)
	} else {
		o.area.LSDB.Add(lsa)
	}

	o.flood.floodAll(lsa, "", NeighborID{})
	o.flood.ArmMaxAgeTimer(t)
	o.area.ArmRefreshTimer(t, func() { o.Originate(lsa) })
}

// Withdraw MaxAges and floods t's current instance, the mechanism
// uses to retract a Summary-/AS-External-LSA when
// the underlying destination or area-range no longer applies.
func (o *Originator) Withdraw(t Triple) {
	lsa, handle, found := o.area.LSDB.Find(t)
	if !found {
		return
	}
	lsa.Header.Age = MaxAge
	o.area.LSDB.UpdateInPlace(handle, lsa)
	o.area.ClearTimers(t)
	delete(o.selfOriginated, t)
	o.flood.floodAll(lsa, "", NeighborID{})
	o.flood.ArmMaxAgeTimer(t)
}
