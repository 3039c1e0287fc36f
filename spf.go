package ospf

import (
	"container/heap"
	"net/netip"
)

// VertexType distinguishes router vertices from transit-network
// vertices in the SPF graph.
type VertexType uint8

// Possible VertexTypes.
const (
	RouterVertex VertexType = iota
	NetworkVertex
)

// VertexID identifies a Vertex: a router is identified by its router
// ID alone; an OSPFv3 transit network is identified by (DR router ID,
// interface ID), while an OSPFv2 transit network is identified by its
// DR's address folded into the router-id slot (the Network-LSA's
// link-state ID already *is* the DR's interface address in v2).
type VertexID struct {
	Type        VertexType
	RouterID    ID
	InterfaceID uint32 // OSPFv3 transit networks only
}

// A Vertex is one node of the Dijkstra graph built from Router- and
// Network-LSAs.
type Vertex struct {
	ID     VertexID
	Origin bool // true for the router running the computation

	// Resolved once the vertex is settled by Dijkstra.
	Weight   uint32
	NextHop  VertexID
	NextHopAddr netip.Addr
	PrevHop  VertexID
	HasPrevHop bool

	// LSAs responsible for this vertex: exactly one Router-LSA for a
	// router vertex, or the Network-LSA (plus, in v3, its companion
	// Intra-Area-Prefix-LSA) for a network vertex.
	RouterLSA  *LSA
	NetworkLSA *LSA
}

// edge is a directed SPF graph edge.
type edge struct {
	to     VertexID
	metric uint32
}

// Graph is the Dijkstra input built from one area's LSDB by BuildGraph.
type Graph struct {
	origin VertexID
	vertex map[VertexID]*Vertex
	edges  map[VertexID][]edge
}

// BuildGraph walks area's LSDB and constructs the SPF vertex graph:
// one vertex per valid, non-MaxAge Router-LSA and Network-LSA, with
// edges added only where bidirectional reachability is confirmed.
func BuildGraph(area *Area) *Graph {
	g := &Graph{
		origin: VertexID{Type: RouterVertex, RouterID: area.RouterID},
		vertex: make(map[VertexID]*Vertex),
		edges:  make(map[VertexID][]edge),
	}

	routerLSAs := make(map[ID]*LSA)
	networkLSAs := make(map[VertexID]*LSA)

	it := area.LSDB.OpenIterator()
	defer it.Close()
	for {
		lsa, ok := it.Next()
		if !ok {
			break
		}
		if lsa.Header.Age >= MaxAge {
			continue
		}
		switch lsa.Header.Type {
		case RouterLSA:
			routerLSAs[lsa.Header.AdvertisingRouter] = lsa
			vid := VertexID{Type: RouterVertex, RouterID: lsa.Header.AdvertisingRouter}
			g.vertex[vid] = &Vertex{ID: vid, Origin: vid == g.origin, RouterLSA: lsa}
		case NetworkLSA:
			var vid VertexID
			if area.AF.Version() == V3 {
				vid = VertexID{Type: NetworkVertex, RouterID: lsa.Header.AdvertisingRouter, InterfaceID: networkLSAInterfaceID(lsa)}
			} else {
				vid = VertexID{Type: NetworkVertex, RouterID: lsa.Header.LinkStateID}
			}
			networkLSAs[vid] = lsa
			g.vertex[vid] = &Vertex{ID: vid, NetworkLSA: lsa}
		}
	}

	for adv, rlsa := range routerLSAs {
		body, _ := rlsa.Body.(*RouterLSABody)
		if body == nil {
			continue
		}
		from := VertexID{Type: RouterVertex, RouterID: adv}

		for _, link := range body.Links {
			switch link.Type {
			case PointToPoint, VirtualLink:
				peer := link.peerRouterID(area.AF.Version())
				if peerLSA, ok := routerLSAs[peer]; ok && hasReversePointToPoint(peerLSA, adv, area.AF.Version()) {
					to := VertexID{Type: RouterVertex, RouterID: peer}
					g.edges[from] = append(g.edges[from], edge{to: to, metric: uint32(link.Metric)})
				}
			case Transit:
				nid := link.transitVertexID(area.AF.Version(), adv)
				if nlsa, ok := networkLSAs[nid]; ok && networkListsRouter(nlsa, adv) {
					g.edges[from] = append(g.edges[from], edge{to: nid, metric: uint32(link.Metric)})
				}
			}
		}
	}

	// Network -> router edges have metric 0, per RFC2328 section
	// 16.1: the network vertex lists every attached router with no
	// additional cost on that leg.
	for vid, nlsa := range networkLSAs {
		body, _ := nlsa.Body.(*NetworkLSABody)
		if body == nil {
			continue
		}
		for _, r := range body.AttachedRouters {
			rlsa, ok := routerLSAs[r]
			if !ok {
				continue
			}
			rbody, _ := rlsa.Body.(*RouterLSABody)
			if rbody == nil {
				continue
			}
			// Bidirectional check: r must list this network as a transit link.
			for _, l := range rbody.Links {
				if l.Type == Transit && l.transitVertexID(area.AF.Version(), r) == vid {
					g.edges[vid] = append(g.edges[vid], edge{to: VertexID{Type: RouterVertex, RouterID: r}, metric: 0})
					break
				}
			}
		}
	}

	g.synthesizeOriginTransitEdges(area, routerLSAs)

	return g
}

// synthesizeOriginTransitEdges adds direct edges from the origin to
// every bidirectionally-adjacent attached router on each of the
// origin's transit links, guarding against the DR acting as a false
// next-hop relay. If we are not the DR on a segment, only routers in
// 2-Way-or-higher state with us qualify.
func (g *Graph) synthesizeOriginTransitEdges(area *Area, routerLSAs map[ID]*LSA) {
	originLSA, ok := routerLSAs[area.RouterID]
	if !ok {
		return
	}
	body, ok := originLSA.Body.(*RouterLSABody)
	if !ok {
		return
	}

	added := make(map[ID]bool)
	for _, link := range body.Links {
		if link.Type != Transit {
			continue
		}
		// The peer manager reports the attached set per peer, not per
		// Router-LSA link; union across every up peer in the area since
		// this layer has no link-to-peer mapping of its own, and the
		// peer manager already restricts each set to 2-Way-or-greater
		// via AttachedRouters.
		for _, peer := range area.Peers.PeersInArea(area.Config.ID) {
			for _, r := range area.Peers.AttachedRouters(peer, area.Config.ID) {
				if r == area.RouterID || added[r] {
					continue
				}
				if _, ok := routerLSAs[r]; !ok {
					continue
				}
				added[r] = true
				to := VertexID{Type: RouterVertex, RouterID: r}
				g.edges[g.origin] = append(g.edges[g.origin], edge{to: to, metric: uint32(link.Metric)})
			}
		}
	}
}

func networkLSAInterfaceID(lsa *LSA) uint32 {
	// OSPFv3 Network-LSAs are keyed in the LSDB by link-state ID,
	// which the DR assigns equal to the transit link's interface ID
	// per RFC5340 section 4.4.3.2.
	return lsa.Header.LinkStateID.Uint32()
}

func (l RouterLink) peerRouterID(v Version) ID {
	if v == V3 {
		return l.NeighborRouterID
	}
	return l.LinkID
}

func (l RouterLink) transitVertexID(v Version, adv ID) VertexID {
	if v == V3 {
		return VertexID{Type: NetworkVertex, RouterID: l.LinkID, InterfaceID: l.NeighborInterfaceID}
	}
	return VertexID{Type: NetworkVertex, RouterID: l.LinkID}
}

// hasReversePointToPoint checks that peerLSA contains a link back to
// adv of the matching type, implementing the bidirectional
// reachability check RFC2328 section 16.1 requires for point-to-point
// and virtual-link edges.
func hasReversePointToPoint(peerLSA *LSA, adv ID, v Version) bool {
	body, ok := peerLSA.Body.(*RouterLSABody)
	if !ok {
		return false
	}
	for _, l := range body.Links {
		if l.Type != PointToPoint && l.Type != VirtualLink {
			continue
		}
		if l.peerRouterID(v) == adv {
			return true
		}
	}
	return false
}

// networkListsRouter checks that a Network-LSA's attached-routers list
// includes adv, the bidirectional check for transit edges.
func networkListsRouter(nlsa *LSA, adv ID) bool {
	body, ok := nlsa.Body.(*NetworkLSABody)
	if !ok {
		return false
	}
	for _, r := range body.AttachedRouters {
		if r == adv {
			return true
		}
	}
	return false
}

// pqItem is a container/heap entry for Dijkstra's priority queue.
type pqItem struct {
	id     VertexID
	weight uint32
	index  int
}

type priorityQueue []*pqItem

func (pq priorityQueue) Len() int { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool {
	return pq[i].weight < pq[j].weight
}
func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index, pq[j].index = i, j
}
func (pq *priorityQueue) Push(x any) {
	item := x.(*pqItem)
	item.index = len(*pq)
	*pq = append(*pq, item)
}
func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*pq = old[:n-1]
	return item
}

// RouteCommand is one SPT output entry: a
// node reached at a given weight, via a given next-hop vertex, from a
// given previous-hop vertex.
type RouteCommand struct {
	Node    VertexID
	Weight  uint32
	NextHop VertexID
	PrevHop VertexID
}

// ShortestPathTree runs Dijkstra over g from its origin, tie-breaking
// equal-cost paths on the lower advertising-router, and returns one RouteCommand per settled vertex except the
// origin itself.
func ShortestPathTree(g *Graph) []RouteCommand {
	const infinite = ^uint32(0)

	dist := make(map[VertexID]uint32, len(g.vertex))
	prev := make(map[VertexID]VertexID)
	nexthop := make(map[VertexID]VertexID)
	settled := make(map[VertexID]bool, len(g.vertex))

	for id := range g.vertex {
		dist[id] = infinite
	}
	dist[g.origin] = 0

	pq := &priorityQueue{}
	heap.Init(pq)
	heap.Push(pq, &pqItem{id: g.origin, weight: 0})

	for pq.Len() > 0 {
		top := heap.Pop(pq).(*pqItem)
		u := top.id
		if settled[u] {
			continue
		}
		settled[u] = true

		for _, e := range g.edges[u] {
			if settled[e.to] {
				continue
			}
			nd := dist[u] + e.metric
			cur := dist[e.to]

			better := nd < cur
			tie := nd == cur && cur != infinite && e.to.RouterID != g.origin.RouterID &&
				lowerAdvertisingRouterWins(u, prev[e.to], g)

			if better || tie {
				dist[e.to] = nd
				prev[e.to] = u
				if u == g.origin {
					nexthop[e.to] = e.to
				} else if nh, ok := nexthop[u]; ok {
					nexthop[e.to] = nh
				}
				heap.Push(pq, &pqItem{id: e.to, weight: nd})
			}
		}
	}

	var out []RouteCommand
	for id, w := range dist {
		if id == g.origin || w == infinite {
			continue
		}
		out = append(out, RouteCommand{
			Node:    id,
			Weight:  w,
			NextHop: nexthop[id],
			PrevHop: prev[id],
		})
	}
	return out
}

// lowerAdvertisingRouterWins breaks equal-cost ties on the lower
// advertising (parent) router ID.
func lowerAdvertisingRouterWins(candidate, incumbent VertexID, g *Graph) bool {
	if incumbent == (VertexID{}) {
		return true
	}
	return candidate.RouterID.Uint32() < incumbent.RouterID.Uint32()
}
