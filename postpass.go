package ospf

// PostPass runs the three post-Dijkstra passes that turn the settled
// SPT into installed RouteEntry values:
// the inter-area pass (RFC2328 section 16.2, Summary-LSAs), the
// transit-area pass for virtual links (RFC2328 section 16.3), and the
// AS-external pass (RFC2328 section 16.4, extended by RFC3101 section
// 2.5 for NSSA Type-7 translation). It owns no state of its own; it
// reads the settled SPT and the area's LSDB and writes into a Table.
type PostPass struct {
	area  *Area
	graph *Graph
	spt   []RouteCommand

	// vertexAddr resolves a settled vertex to the address usable as an
	// installed next hop, supplied by the peer manager since the core
	// has no notion of interface addressing on its own.
	vertexAddr func(VertexID) (Prefix, uint32, bool)
}

// NewPostPass constructs a PostPass over an already-computed SPT.
func NewPostPass(area *Area, graph *Graph, spt []RouteCommand, vertexAddr func(VertexID) (Prefix, uint32, bool)) *PostPass {
	return &PostPass{area: area, graph: graph, spt: spt, vertexAddr: vertexAddr}
}

// InstallIntraArea writes one IntraArea RouteEntry per prefix of every
// router/network vertex the SPT settled with a resolvable next hop, and
// returns the
// per-router distances the inter-area and AS-external passes need to
// evaluate Summary-/AS-External-LSAs against (RFC2328 section 16.1's
// final step, "the list of intra-area routes that have been
// calculated").
func (p *PostPass) InstallIntraArea(t *Table, prefixesOf func(VertexID) []PrefixEntry) map[ID]uint32 {
	routerDistance := make(map[ID]uint32)

	// RFC2328 section 16.1 step 2: the origin's own directly attached
	// networks go on the tree at cost 0 without Dijkstra ever visiting
	// them, since ShortestPathTree only settles vertices other than the
	// origin.
	if addr, ifID, ok := p.vertexAddr(p.graph.origin); ok {
		for _, pe := range prefixesOf(p.graph.origin) {
			t.Add(&RouteEntry{
				Prefix:    pe.Prefix,
				PathType:  IntraArea,
				Metric:    0,
				NextHops:  []NextHop{{Addr: addr, InterfaceID: ifID}},
				AdvRouter: p.graph.origin.RouterID,
				Area:      p.area.Config.ID,
			})
		}
	}

	for _, rc := range p.spt {
		addr, ifID, ok := p.vertexAddr(rc.NextHop)
		if !ok {
			continue
		}
		if rc.Node.Type == RouterVertex {
			routerDistance[rc.Node.RouterID] = rc.Weight
		}

		for _, pe := range prefixesOf(rc.Node) {
			t.Add(&RouteEntry{
				Prefix:    pe.Prefix,
				PathType:  IntraArea,
				Metric:    rc.Weight,
				NextHops:  []NextHop{{Addr: addr, InterfaceID: ifID}},
				AdvRouter: rc.Node.RouterID,
				Area:      p.area.Config.ID,
			})
		}
	}
	return routerDistance
}

// InterAreaSummary runs RFC2328 section 16.2: for every non-MaxAge
// Type-3 Summary-LSA originated by a router this area's SPT reached
// (an ABR), install prefix-at-(ABR-distance+summary-metric) unless the
// prefix is already covered by a better intra-area route, or the area
// is a stub/NSSA that should instead rely on its default route.
func (p *PostPass) InterAreaSummary(t *Table, routerDistance map[ID]uint32, resolve func(advRouter ID) (Prefix, uint32, bool)) {
	if p.area.IsStub() {
		return
	}

	it := p.area.LSDB.OpenIterator()
	defer it.Close()
	for {
		lsa, ok := it.Next()
		if !ok {
			break
		}
		if lsa.Header.Type != SummaryNetLSA || lsa.Header.Age >= MaxAge {
			continue
		}
		body, ok := lsa.Body.(*SummaryLSABody)
		if !ok {
			continue
		}
		dist, ok := routerDistance[lsa.Header.AdvertisingRouter]
		if !ok {
			continue // ABR unreachable this round
		}
		if body.Metric >= LSInfinity {
			continue
		}

		metric := dist + body.Metric
		addr, ifID, ok := resolve(lsa.Header.AdvertisingRouter)
		if !ok {
			continue
		}

		candidate := &RouteEntry{
			Prefix:    body.Prefix,
			PathType:  InterArea,
			Metric:    metric,
			NextHops:  []NextHop{{Addr: addr, InterfaceID: ifID}},
			AdvRouter: lsa.Header.AdvertisingRouter,
			Area:      p.area.Config.ID,
		}

		if existing, ok := t.Best(body.Prefix); ok && !Better(candidate, existing) {
			continue
		}
		t.Add(candidate)
	}
}

// TransitAreaVirtualLinks runs RFC2328 section 16.3: for each
// configured virtual-link peer, if the SPT in the area's transit-area
// reached that peer's router-vertex, bring the virtual link up with
// the discovered cost and endpoint address; otherwise tear it down.
func (p *PostPass) TransitAreaVirtualLinks(routerDistance map[ID]uint32, resolve func(ID) (Prefix, uint32, bool)) {
	for _, peer := range p.area.Config.VirtualLinkPeers {
		dist, reached := routerDistance[peer]
		if !reached {
			p.area.Peers.DownVirtualLink(peer)
			continue
		}
		remote, _, ok := resolve(peer)
		if !ok {
			p.area.Peers.DownVirtualLink(peer)
			continue
		}
		local, _, _ := p.vertexAddr(p.graph.origin)
		p.area.Peers.UpVirtualLink(peer, local, dist, remote)
	}
}

// ExternalRoute is one row of the process-wide AS-external RIB,
// produced by the AS-external post-pass and consumed by
// Router.mergeExternalRoutes (router.go) when merging across areas (a destination may be reachable via
// more than one area's ASBR).
type ExternalRoute struct {
	Entry    *RouteEntry
	ViaArea  ID
	NSSA     bool // originated from a Type-7 rather than Type-5 LSA
}

// ASExternal runs RFC2328 section 16.4 (extended by RFC3101 section
// 2.5 for Type-7): for every non-MaxAge AS-External-LSA (Type-5, AS
// scoped) or, if this area is NSSA, Type-7-LSA (area scoped), resolve
// the advertising router's (or forwarding address's) intra-/inter-area
// distance and install a Type1External or Type2External candidate.
// AS-External/Type-7-LSAs are read from lsdb, the AS-wide database,
// not the area's own LSDB, except for Type-7 which IS the area's LSDB.
func (p *PostPass) ASExternal(lsdb *LSDB, routerDistance map[ID]uint32, resolveRouter func(ID) (Prefix, uint32, bool), resolveForwarding func(Prefix) (uint32, bool)) []ExternalRoute {
	if p.area.Config.Type == StubArea {
		return nil
	}

	var out []ExternalRoute
	it := lsdb.OpenIterator()
	defer it.Close()
	for {
		lsa, ok := it.Next()
		if !ok {
			break
		}
		wantType := ASExternalLSA
		nssa := p.area.Config.Type == NSSAArea
		if nssa {
			wantType = Type7LSA
		}
		if lsa.Header.Type != wantType || lsa.Header.Age >= MaxAge {
			continue
		}
		body, ok := lsa.Body.(*ASExternalLSABody)
		if !ok || body.Metric >= LSInfinity {
			continue
		}

		var base uint32
		var addr Prefix
		var ifID uint32
		if body.HasForwardingAddr {
			fwd := PrefixFromAddr(body.ForwardingAddr, body.ForwardingAddr.BitLen())
			m, ok := resolveForwarding(fwd)
			if !ok {
				continue
			}
			base = m
			addr, ifID, ok = resolveRouter(lsa.Header.AdvertisingRouter)
			if !ok {
				continue
			}
		} else {
			dist, ok := routerDistance[lsa.Header.AdvertisingRouter]
			if !ok {
				continue
			}
			base = dist
			addr, ifID, ok = resolveRouter(lsa.Header.AdvertisingRouter)
			if !ok {
				continue
			}
		}

		pt := Type1External
		metric := base + body.Metric
		metric2 := body.Metric
		if body.EBit {
			pt = Type2External
			metric = base // type-2 ranks on the external metric alone; base only breaks ties
		}

		out = append(out, ExternalRoute{
			ViaArea: p.area.Config.ID,
			NSSA:    nssa,
			Entry: &RouteEntry{
				Prefix:    body.Prefix,
				PathType:  pt,
				Metric:    metric,
				Metric2:   metric2,
				NextHops:  []NextHop{{Addr: addr, InterfaceID: ifID}},
				AdvRouter: lsa.Header.AdvertisingRouter,
				Area:      p.area.Config.ID,
			},
		})
	}
	return out
}
