package ospf

import "net/netip"

// ExternalBroker is the process-wide, area-independent owner of
// AS-External-LSA origination and NSSA Type-7/Type-5 translation: an
// AS-External-LSA is originated once and
// flooded into every non-stub, non-NSSA area's LSDB (it is not an Area
// concept at all, unlike Router-/Network-/Summary-LSAs), while each
// NSSA's Type-7-LSAs live in that area's own LSDB and are translated
// to Type-5 by at most one elected ABR per NSSA.
type ExternalBroker struct {
	routerID ID

	// byPrefix tracks this router's own redistributed destinations,
	// keyed by prefix, so a route withdrawal can find the LSA to
	// MaxAge without a linear scan.
	byPrefix map[Prefix]Triple

	// areas lists every non-stub area this router participates in,
	// used to fan Type-5 origination out to every area's LSDB (the
	// broker does not own an LSDB of its own; AS-External-LSAs are
	// stored redundantly in each area that floods them, mirroring
	// RFC2328's "flooded throughout the AS" by flooding into every
	// area's database).
	areas map[ID]*Area

	originators map[ID]*Originator

	// nextLSID hands out monotonically increasing OSPFv3 link-state
	// IDs for redistributed routes (v3 Type-5 link-state IDs are
	// arbitrary per RFC5340 section 4.4.3.5). OSPFv2 never uses it: a
	// v2 route's link-state ID is always its network address.
	nextLSID uint32
}

// NewExternalBroker constructs a broker for routerID.
func NewExternalBroker(routerID ID) *ExternalBroker {
	return &ExternalBroker{
		routerID:    routerID,
		byPrefix:    make(map[Prefix]Triple),
		areas:       make(map[ID]*Area),
		originators: make(map[ID]*Originator),
	}
}

// AddArea registers area (with its bound Originator) as a flooding
// target. RedistributeRoute originates nothing into a plain stub area
// (it only acts on Normal and NSSA areas), so registering one is
// harmless.
func (b *ExternalBroker) AddArea(area *Area, originator *Originator) {
	b.areas[area.Config.ID] = area
	b.originators[area.Config.ID] = originator
}

// RemoveArea unregisters area, e.g. when it is reconfigured away.
func (b *ExternalBroker) RemoveArea(areaID ID) {
	delete(b.areas, areaID)
	delete(b.originators, areaID)
}

// RedistributeRoute originates (or re-originates) an AS-External-LSA
// for net, flooding it into every registered non-stub, non-NSSA area;
// NSSA areas instead receive a Type-7-LSA with the P-bit set so their
// translator can propagate it onward (RFC3101 section 2.5 step 1).
func (b *ExternalBroker) RedistributeRoute(net Prefix, metric uint32, eBit bool, fwdAddr netip.Addr, tag uint32) {
	for areaID, area := range b.areas {
		if area.Config.Type == NormalArea {
			lsid := b.lsidFor(net, area.AF.Version())
			o := b.originators[areaID]
			body := o.BuildASExternalLSA(net, metric, eBit, fwdAddr, tag, false)
			lsa := &LSA{Header: LSAHeader{Type: ASExternalLSA, LinkStateID: lsid, AdvertisingRouter: b.routerID}, Body: body}
			o.Originate(lsa)
			b.byPrefix[net] = lsa.Header.Triple()
		} else if area.Config.Type == NSSAArea {
			lsid := b.lsidFor(net, area.AF.Version())
			o := b.originators[areaID]
			body := o.BuildASExternalLSA(net, metric, eBit, fwdAddr, tag, true)
			lsa := &LSA{Header: LSAHeader{Type: Type7LSA, LinkStateID: lsid, AdvertisingRouter: b.routerID}, Body: body}
			o.Originate(lsa)
		}
	}
}

// WithdrawRoute retracts a previously redistributed destination from
// every Normal area it was originated into. Type-7-LSAs that
// RedistributeRoute originated into NSSA areas are not withdrawn.
func (b *ExternalBroker) WithdrawRoute(net Prefix) {
	t, ok := b.byPrefix[net]
	if !ok {
		return
	}
	for areaID, o := range b.originators {
		area := b.areas[areaID]
		if area.Config.Type == NormalArea {
			o.Withdraw(t)
		}
	}
	delete(b.byPrefix, net)
}

func (b *ExternalBroker) lsidFor(net Prefix, v Version) ID {
	if v == V2 {
		return addrToIDSeed(net.Addr())
	}
	b.nextLSID++
	return IDFromUint32(b.nextLSID)
}

// Translate performs the NSSA Type-7-to-Type-5 translation RFC3101
// section 2.5 describes, for the ABR elected as this NSSA's
// translator (area.Translator.Enabled()): every non-MaxAge Type-7-LSA
// in area with the P-bit set is handed to RedistributeRoute, which
// re-originates it as a Type-5 AS-External-LSA into every Normal area
// (and as a self-originated Type-7 into every NSSA area), using the
// Type-7's forwarding address unchanged (or, if absent, the
// translator's own address, per RFC3101 section 2.5 step 2(c)).
// Existing Type-5s for the same destination are not consulted.
func (b *ExternalBroker) Translate(area *Area, ownAddr func() (netip.Addr, bool)) {
	if !area.Translator.Enabled() {
		return
	}

	it := area.LSDB.OpenIterator()
	defer it.Close()
	for {
		lsa, ok := it.Next()
		if !ok {
			break
		}
		if lsa.Header.Type != Type7LSA || lsa.Header.Age >= MaxAge {
			continue
		}
		body, ok := lsa.Body.(*ASExternalLSABody)
		if !ok || !body.PBit {
			continue
		}

		fwd := body.ForwardingAddr
		if !body.HasForwardingAddr {
			if a, ok := ownAddr(); ok {
				fwd = a
			}
		}

		b.RedistributeRoute(body.Prefix, body.Metric, body.EBit, fwd, body.RouteTag)
	}
}
