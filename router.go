package ospf

import "net/netip"

// Router is the top-level orchestration type: one OSPF process
// (single router ID, single address family) owning a set of Areas,
// the process-wide external-LSA broker, and the wiring between SPF
// recompute and each area's routing Table's
// description of the daemon as a whole.
type Router struct {
	ID ID
	AF AfOps

	Loop  EventLoop
	Peers PeerManager

	areas    map[ID]*Area
	origins  map[ID]*Originator
	floods   map[ID]*FloodEngine
	tables   map[ID]*Table
	external *ExternalBroker

	// asbrDistance holds, per area, the most recent intra-area distance
	// to every router settled by that area's SPF, keyed by router ID.
	// originateSummaries consults it to cost Type-4 (ASBR) Summary-LSAs
	// without re-running SPF.
	asbrDistance map[ID]map[ID]uint32
}

// NewRouter constructs an empty Router. Areas are added with AddArea.
func NewRouter(id ID, af AfOps, loop EventLoop, peers PeerManager) *Router {
	return &Router{
		ID:       id,
		AF:       af,
		Loop:     loop,
		Peers:    peers,
		areas:    make(map[ID]*Area),
		origins:  make(map[ID]*Originator),
		floods:   make(map[ID]*FloodEngine),
		tables:   make(map[ID]*Table),
		external: NewExternalBroker(id),
		asbrDistance: make(map[ID]map[ID]uint32),
	}
}

// AddArea brings up a new Area: it constructs the Area's LSDB/timers,
// its FloodEngine, its Originator, and its Table, wires the Area's
// recompute debouncer to a fresh SPF/post-pass run, registers it with
// the external broker, and recomputes every other area's border-router
// bit (since adding a second area makes this router an ABR).
func (r *Router) AddArea(cfg AreaConfig, rib RIBClient, policy PolicyFilter) (*Area, error) {
	area, err := NewArea(cfg, r.ID, r.AF, r.Loop, r.Peers)
	if err != nil {
		return nil, err
	}

	flood := NewFloodEngine(area, nil)
	origin := NewOriginator(area, flood)
	table := NewTable(cfg.ID, rib, policy)

	r.areas[cfg.ID] = area
	r.floods[cfg.ID] = flood
	r.origins[cfg.ID] = origin
	r.tables[cfg.ID] = table
	r.external.AddArea(area, origin)

	area.OnRecompute(func() { r.recompute(area) })
	r.updateBorderRouterBit()
	origin.OriginateStubDefault()

	return area, nil
}

// RemoveArea tears down an area: its timers are implicitly abandoned
// (the EventLoop caller is expected to drop them along with the Area
// value) and it is unregistered from the external broker.
func (r *Router) RemoveArea(areaID ID) {
	delete(r.areas, areaID)
	delete(r.floods, areaID)
	delete(r.origins, areaID)
	delete(r.tables, areaID)
	r.external.RemoveArea(areaID)
	r.updateBorderRouterBit()
}

func (r *Router) updateBorderRouterBit() {
	isABR := len(r.areas) > 1
	for _, a := range r.areas {
		a.borderRouter = isABR
	}
}

// Area returns the Area by ID, if present.
func (r *Router) Area(areaID ID) (*Area, bool) {
	a, ok := r.areas[areaID]
	return a, ok
}

// Flood returns the FloodEngine for an area, used by the peer manager
// glue to feed received LSAs into Receive.
func (r *Router) Flood(areaID ID) (*FloodEngine, bool) {
	f, ok := r.floods[areaID]
	return f, ok
}

// Originator returns the Originator for an area, used by the peer
// manager glue and by configuration changes that need to originate or
// withdraw Router-/Network-/Summary-LSAs directly.
func (r *Router) Originator(areaID ID) (*Originator, bool) {
	o, ok := r.origins[areaID]
	return o, ok
}

// External returns the process-wide external-LSA broker, used by
// whatever redistribution source (static routes, BGP, connected
// routes) feeds AS-External-LSA origination.
func (r *Router) External() *ExternalBroker {
	return r.external
}

// recompute rebuilds area's routing table from its current LSDB:
// build the SPF graph, run Dijkstra, and run the three post-passes,
// in the order lays out. vertexAddr/resolveRouter/
// resolveForwarding/prefixesOf are supplied by the peer manager glue
// since address resolution depends on interface state the core does
// not own; this method is a thin, deterministic driver over them.
func (r *Router) recompute(area *Area) {
	graph := BuildGraph(area)
	spt := ShortestPathTree(graph)

	table, ok := r.tables[area.Config.ID]
	if !ok {
		return
	}

	table.Begin()
	pass := NewPostPass(area, graph, spt, func(v VertexID) (Prefix, uint32, bool) {
		addr, ok := r.Peers.NeighborAddress(v.RouterID, v.InterfaceID)
		return addr, v.InterfaceID, ok
	})

	routerDistance := pass.InstallIntraArea(table, func(v VertexID) []PrefixEntry {
		return r.vertexPrefixes(area, v)
	})

	pass.InterAreaSummary(table, routerDistance, func(adv ID) (Prefix, uint32, bool) {
		return r.resolveRouter(adv)
	})

	pass.TransitAreaVirtualLinks(routerDistance, func(adv ID) (Prefix, uint32, bool) {
		return r.resolveRouter(adv)
	})

	table.End()
	r.asbrDistance[area.Config.ID] = routerDistance

	ext := pass.ASExternal(area.LSDB, routerDistance, func(adv ID) (Prefix, uint32, bool) {
		return r.resolveRouter(adv)
	}, func(fwd Prefix) (uint32, bool) {
		if e, ok := table.Best(fwd); ok {
			return e.Metric, true
		}
		return 0, false
	})
	r.mergeExternalRoutes(ext)
	r.originateSummaries()
}

// originateSummaries implements's Summary-LSA
// origination rules from the routing tables just recomputed: an ABR's
// intra-area routes computed in a non-backbone area are re-advertised
// as Type-3 Summary-LSAs into the backbone; an ABR's intra-area and
// inter-area routes computed in the backbone are re-advertised into
// every non-backbone area. Destinations covered by a configured,
// advertising area-range collapse into a single range summary at the
// worst-case component cost; destinations covered by a
// non-advertising range are suppressed outright. A source area's
// transit capability lets its intra-area routes bypass range
// suppression, per RFC2328's transit-area exception. Type-4 (ASBR)
// summaries follow the same backbone-relative rule but are never
// originated into a stub or NSSA area.
func (r *Router) originateSummaries() {
	if len(r.areas) < 2 {
		return
	}

	for srcID, srcArea := range r.areas {
		srcTable, ok := r.tables[srcID]
		if !ok {
			continue
		}
		fromBackbone := srcID == BackboneArea

		type candidate struct {
			prefix Prefix
			cost   uint32
		}
		var individual []candidate
		rangeCost := make(map[Prefix]uint32)

		for prefix, entry := range srcTable.All() {
			p := Prefix{prefix}
			if entry.PathType != IntraArea && entry.PathType != InterArea {
				continue
			}
			if entry.PathType == InterArea && !fromBackbone {
				continue // only the backbone re-advertises inter-area routes
			}
			if entry.Metric >= LSInfinity {
				continue
			}

			if rng, covered := coveringRange(srcArea.Config.Ranges, p); covered {
				bypass := entry.PathType == IntraArea && srcArea.TransitCapability && !fromBackbone
				if !bypass {
					if rng.Advertise {
						if c, ok := rangeCost[rng.Net]; !ok || entry.Metric > c {
							rangeCost[rng.Net] = entry.Metric
						}
					}
					continue
				}
			}
			individual = append(individual, candidate{prefix: p, cost: entry.Metric})
		}

		for dstID, dstArea := range r.areas {
			if dstID == srcID {
				continue
			}
			toBackbone := dstID == BackboneArea
			if !fromBackbone && !toBackbone {
				continue // non-backbone to non-backbone needs backbone transit
			}
			if dstArea.IsStub() && !dstArea.Config.Summaries {
				continue
			}
			origin, ok := r.origins[dstID]
			if !ok {
				continue
			}

			for net, cost := range rangeCost {
				r.announceNetSummary(origin, dstArea, net, cost)
			}
			for _, c := range individual {
				r.announceNetSummary(origin, dstArea, c.prefix, c.cost)
			}

			if !dstArea.IsStub() {
				r.announceASBRSummaries(srcID, srcArea, origin, dstArea)
			}
		}
	}
}

// coveringRange returns the most specific configured range covering p,
// if any.
func coveringRange(ranges []RangeConfig, p Prefix) (RangeConfig, bool) {
	var best RangeConfig
	found := false
	for _, rc := range ranges {
		if !rc.Net.Contains(p) {
			continue
		}
		if !found || rc.Net.Bits() > best.Net.Bits() {
			best, found = rc, true
		}
	}
	return best, found
}

// announceNetSummary originates (or refreshes) a Type-3 Summary-LSA
// for net at cost into dstArea.
func (r *Router) announceNetSummary(origin *Originator, dstArea *Area, net Prefix, cost uint32) {
	lsid, body := origin.BuildSummaryLSA(SummaryNetLSA, net, cost, ID{}, func(id ID) (Prefix, bool) {
		return r.existingSummaryDestination(dstArea, SummaryNetLSA, id)
	})
	lsa := &LSA{Header: LSAHeader{Type: SummaryNetLSA, LinkStateID: lsid, AdvertisingRouter: r.ID}, Body: body}
	origin.Originate(lsa)
}

// announceASBRSummaries originates a Type-4 Summary-LSA into dstArea
// for every router srcArea's SPF found to be an ASBR (Router-LSA
// E-bit set), at the intra-area distance computed for it.
func (r *Router) announceASBRSummaries(srcID ID, srcArea *Area, origin *Originator, dstArea *Area) {
	dist := r.asbrDistance[srcID]
	if dist == nil {
		return
	}

	it := srcArea.LSDB.OpenIterator()
	defer it.Close()
	for {
		lsa, ok := it.Next()
		if !ok {
			break
		}
		if lsa.Header.Type != RouterLSA || lsa.Header.Age >= MaxAge {
			continue
		}
		if lsa.Header.AdvertisingRouter == r.ID {
			continue // never summarize ourselves
		}
		body, ok := lsa.Body.(*RouterLSABody)
		if !ok || !body.Bits.E {
			continue
		}
		cost, ok := dist[lsa.Header.AdvertisingRouter]
		if !ok || cost >= LSInfinity {
			continue
		}

		asbr := lsa.Header.AdvertisingRouter
		_, abody := origin.BuildSummaryLSA(SummaryASBRLSA, Prefix{}, cost, asbr, nil)
		out := &LSA{Header: LSAHeader{Type: SummaryASBRLSA, LinkStateID: asbr, AdvertisingRouter: r.ID}, Body: abody}
		origin.Originate(out)
	}
}

// existingSummaryDestination looks up the destination currently
// described by a Summary-LSA of type lsType with link-state ID id in
// dstArea's LSDB, used by RFC2328 Appendix E's disambiguation probe.
func (r *Router) existingSummaryDestination(dstArea *Area, lsType LSType, id ID) (Prefix, bool) {
	lsa, _, ok := dstArea.LSDB.Find(Triple{Type: lsType, LinkStateID: id, AdvertisingRouter: r.ID})
	if !ok {
		return Prefix{}, false
	}
	body, ok := lsa.Body.(*SummaryLSABody)
	if !ok {
		return Prefix{}, false
	}
	return body.Prefix, true
}

// vertexPrefixes resolves the prefixes described by a settled vertex:
// on OSPFv3 these live in the companion Intra-Area-Prefix-LSA; on
// OSPFv2 they are read directly off the Router-/Network-LSA's stub
// links and network mask (the AfOps.HasIntraAreaPrefix split).
func (r *Router) vertexPrefixes(area *Area, v VertexID) []PrefixEntry {
	if !area.AF.HasIntraAreaPrefix() {
		return v2VertexPrefixes(area, v)
	}

	var refType LSType
	var refLSID, refAdv ID
	if v.Type == RouterVertex {
		refType, refLSID, refAdv = RouterLSA, ID{}, v.RouterID
	} else {
		refType, refLSID, refAdv = NetworkLSA, IDFromUint32(v.InterfaceID), v.RouterID
	}

	it := area.LSDB.OpenIterator()
	defer it.Close()
	for {
		lsa, ok := it.Next()
		if !ok {
			break
		}
		if lsa.Header.Type != IntraAreaPrefixLSA {
			continue
		}
		body, ok := lsa.Body.(*IntraAreaPrefixLSABody)
		if !ok || body.ReferencedType != refType || body.ReferencedAdvertisingRouter != refAdv {
			continue
		}
		if refType == NetworkLSA && body.ReferencedLinkStateID != refLSID {
			continue
		}
		return body.Prefixes
	}
	return nil
}

// v2VertexPrefixes reads OSPFv2 stub-network links directly off a
// router vertex's Router-LSA (network vertices carry their subnet
// implicitly via the Network-LSA's mask, resolved by the caller's
// vertexAddr, not enumerated here).
func v2VertexPrefixes(area *Area, v VertexID) []PrefixEntry {
	if v.Type != RouterVertex {
		return nil
	}
	lsa, _, ok := area.LSDB.Find(Triple{Type: RouterLSA, LinkStateID: v.RouterID, AdvertisingRouter: v.RouterID})
	if !ok {
		return nil
	}
	body, ok := lsa.Body.(*RouterLSABody)
	if !ok {
		return nil
	}

	var out []PrefixEntry
	for _, l := range body.Links {
		if l.Type != StubNetwork {
			continue
		}
		out = append(out, PrefixEntry{
			Prefix: PrefixFromAddr(idToV4Addr(l.LinkID), maskToBits(l.LinkData)),
			Metric: l.Metric,
		})
	}
	return out
}

// idToV4Addr reinterprets a 4-byte ID as an IPv4 address, the
// encoding OSPFv2 uses throughout for both router IDs and addresses.
func idToV4Addr(id ID) netip.Addr {
	return netip.AddrFrom4(id)
}

// maskToBits counts the leading one-bits in an OSPFv2 subnet mask
// encoded as an ID, per RFC2328's mask-based (rather than prefix
// length-based) stub network encoding.
func maskToBits(mask ID) int {
	bits := 0
	for _, b := range mask {
		for b&0x80 != 0 {
			bits++
			b <<= 1
		}
	}
	return bits
}

func (r *Router) resolveRouter(adv ID) (Prefix, uint32, bool) {
	addr, ok := r.Peers.NeighborAddress(adv, 0)
	return addr, 0, ok
}

// mergeExternalRoutes folds one area's AS-external candidates into
// every area's table (AS-External routes are installed AS-wide, not
// scoped to the area that computed them, per RFC2328 section 11):
// for each destination, the better-scoring area's candidate wins.
func (r *Router) mergeExternalRoutes(ext []ExternalRoute) {
	best := make(map[Prefix]*RouteEntry)
	for _, e := range ext {
		if cur, ok := best[e.Entry.Prefix]; !ok || Better(e.Entry, cur) {
			best[e.Entry.Prefix] = e.Entry
		}
	}
	if len(best) == 0 {
		return
	}
	for _, table := range r.tables {
		// Re-add the committed generation first so End's diff sees only
		// the merged external entries as changes.
		table.Begin()
		for _, cur := range table.All() {
			table.Add(cur)
		}
		for _, entry := range best {
			if existing, ok := table.Best(entry.Prefix); ok && !Better(entry, existing) {
				continue
			}
			table.Add(entry)
		}
		table.End()
	}
}
