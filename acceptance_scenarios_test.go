package ospf

import (
	"net/netip"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// routerLSA is a small builder used throughout the acceptance suite to
// keep each scenario's Given block readable: a Router-LSA with one or
// more links, installed directly into an area's LSDB (flooding itself
// is exercised by flood_test.go; these scenarios start from "the LSDB
// already holds these LSAs" and assert on SPF/origination output).
func routerLSA(adv ID, links ...RouterLink) *LSA {
	return &LSA{
		Header: LSAHeader{Type: RouterLSA, LinkStateID: adv, AdvertisingRouter: adv, SequenceNumber: InitialSequenceNumber},
		Body:   &RouterLSABody{Links: links},
	}
}

func p2p(peer ID, metric uint16, ifaceAddr ID) RouterLink {
	return RouterLink{Type: PointToPoint, Metric: metric, LinkID: peer, LinkData: ifaceAddr}
}

func stub(net netip.Prefix, metric uint16) RouterLink {
	addr4 := net.Addr().As4()
	return RouterLink{Type: StubNetwork, Metric: metric, LinkID: ID(addr4), LinkData: maskID(net.Bits())}
}

// maskID renders a v2 prefix length as the dotted-mask ID RFC2328
// stub-network links carry (e.g. /24 -> 255.255.255.0).
func maskID(bits int) ID {
	var m ID
	for i := 0; i < 4; i++ {
		n := bits - i*8
		switch {
		case n >= 8:
			m[i] = 0xff
		case n <= 0:
			m[i] = 0
		default:
			m[i] = byte(0xff << (8 - n))
		}
	}
	return m
}

var _ = Describe("two-router point-to-point, OSPFv2", func() {
	It("settles each router's own stub network at cost 0 and the peer's at the link metric", func() {
		a, b := ID{1, 1, 1, 1}, ID{2, 2, 2, 2}
		netA := netip.MustParsePrefix("10.0.1.0/24")
		netB := netip.MustParsePrefix("10.0.2.0/24")

		peers := newAcceptancePeers()
		peers.addrs[a] = apfx("10.0.0.1/32")
		peers.addrs[b] = apfx("10.0.0.2/32")

		rib := newAcceptanceRIB()
		router := NewRouter(a, V2Ops{}, &fakeLoop{}, peers)
		area, err := router.AddArea(AreaConfig{ID: BackboneArea, Type: NormalArea}, rib, nil)
		Expect(err).NotTo(HaveOccurred())

		area.LSDB.Add(routerLSA(a, p2p(b, 10, ID{10, 0, 0, 1}), stub(netA, 1)))
		area.LSDB.Add(routerLSA(b, p2p(a, 10, ID{10, 0, 0, 2}), stub(netB, 1)))

		router.recompute(area)

		own, ok := rib.routes[apfx("10.0.1.0/24")]
		Expect(ok).To(BeTrue(), "A's own stub network should be installed")
		Expect(own.metric).To(Equal(uint32(0)))

		peer, ok := rib.routes[apfx("10.0.2.0/24")]
		Expect(ok).To(BeTrue(), "B's stub network should be installed via the point-to-point link")
		Expect(peer.metric).To(Equal(uint32(10)))
	})
})

var _ = Describe("ABR with two areas", func() {
	It("originates a Type-3 Summary-LSA at SPF cost and installs it inter-area on the far side", func() {
		x, z, y := ID{9, 9, 9, 9}, ID{3, 3, 3, 3}, ID{5, 5, 5, 5}
		area1Net := netip.MustParsePrefix("10.0.1.0/24")

		xPeers := newAcceptancePeers()
		xPeers.addrs[z] = apfx("10.1.0.2/32")
		xRouter := NewRouter(x, V2Ops{}, &fakeLoop{}, xPeers)
		backbone, err := xRouter.AddArea(AreaConfig{ID: BackboneArea, Type: NormalArea}, newAcceptanceRIB(), nil)
		Expect(err).NotTo(HaveOccurred())
		area1, err := xRouter.AddArea(AreaConfig{ID: ID{0, 0, 0, 1}, Type: NormalArea}, newAcceptanceRIB(), nil)
		Expect(err).NotTo(HaveOccurred())

		area1.LSDB.Add(routerLSA(x, p2p(z, 3, ID{10, 1, 0, 1})))
		area1.LSDB.Add(routerLSA(z, p2p(x, 3, ID{10, 1, 0, 2}), stub(area1Net, 1)))

		xRouter.recompute(area1)

		var summaryMetric uint32
		found := false
		it := backbone.LSDB.OpenIterator()
		for {
			lsa, ok := it.Next()
			if !ok {
				break
			}
			if lsa.Header.Type == SummaryNetLSA {
				body := lsa.Body.(*SummaryLSABody)
				if body.Prefix == (Prefix{area1Net}) {
					found, summaryMetric = true, body.Metric
				}
			}
		}
		it.Close()
		Expect(found).To(BeTrue(), "X should originate a Type-3 Summary-LSA for area1's stub network into the backbone")
		Expect(summaryMetric).To(Equal(uint32(3)), "the summary's metric should equal the SPF cost to Z inside area1")

		summaryLSA, _, ok := backbone.LSDB.Find(Triple{Type: SummaryNetLSA, LinkStateID: addrToIDSeed(area1Net.Addr()), AdvertisingRouter: x})
		Expect(ok).To(BeTrue())

		yPeers := newAcceptancePeers()
		yPeers.addrs[x] = apfx("10.2.0.1/32")
		yRouter := NewRouter(y, V2Ops{}, &fakeLoop{}, yPeers)
		yRIB := newAcceptanceRIB()
		yBackbone, err := yRouter.AddArea(AreaConfig{ID: BackboneArea, Type: NormalArea}, yRIB, nil)
		Expect(err).NotTo(HaveOccurred())

		yBackbone.LSDB.Add(routerLSA(x, p2p(y, 2, ID{10, 2, 0, 1})))
		yBackbone.LSDB.Add(routerLSA(y, p2p(x, 2, ID{10, 2, 0, 2})))
		yBackbone.LSDB.Add(summaryLSA)

		yRouter.recompute(yBackbone)

		route, ok := yRIB.routes[apfx("10.0.1.0/24")]
		Expect(ok).To(BeTrue(), "Y should install area1's network as an inter-area route via X")
		Expect(route.metric).To(Equal(uint32(2 + 3)))
	})
})

var _ = Describe("area range aggregation", func() {
	It("collapses both component networks into a single worst-cost range summary", func() {
		x, z1, z2 := ID{9, 9, 9, 9}, ID{3, 3, 3, 1}, ID{3, 3, 3, 2}
		net1 := netip.MustParsePrefix("10.0.1.0/24")
		net2 := netip.MustParsePrefix("10.0.2.0/24")
		rangeNet := apfx("10.0.0.0/16")

		peers := newAcceptancePeers()
		peers.addrs[z1] = apfx("10.1.0.2/32")
		peers.addrs[z2] = apfx("10.1.0.3/32")
		router := NewRouter(x, V2Ops{}, &fakeLoop{}, peers)
		backbone, err := router.AddArea(AreaConfig{ID: BackboneArea, Type: NormalArea}, newAcceptanceRIB(), nil)
		Expect(err).NotTo(HaveOccurred())
		area1, err := router.AddArea(AreaConfig{
			ID:     ID{0, 0, 0, 1},
			Type:   NormalArea,
			Ranges: []RangeConfig{{Net: rangeNet, Advertise: true}},
		}, newAcceptanceRIB(), nil)
		Expect(err).NotTo(HaveOccurred())

		area1.LSDB.Add(routerLSA(x, p2p(z1, 4, ID{10, 1, 0, 1}), p2p(z2, 9, ID{10, 1, 0, 4})))
		area1.LSDB.Add(routerLSA(z1, p2p(x, 4, ID{10, 1, 0, 2}), stub(net1, 1)))
		area1.LSDB.Add(routerLSA(z2, p2p(x, 9, ID{10, 1, 0, 3}), stub(net2, 1)))

		router.recompute(area1)

		var rangeCount int
		var rangeMetric uint32
		it := backbone.LSDB.OpenIterator()
		for {
			lsa, ok := it.Next()
			if !ok {
				break
			}
			if lsa.Header.Type != SummaryNetLSA {
				continue
			}
			body := lsa.Body.(*SummaryLSABody)
			Expect(body.Prefix).NotTo(Equal(Prefix{net1}), "a range-covered component must not be individually advertised")
			Expect(body.Prefix).NotTo(Equal(Prefix{net2}), "a range-covered component must not be individually advertised")
			if body.Prefix == rangeNet {
				rangeCount++
				rangeMetric = body.Metric
			}
		}
		it.Close()

		Expect(rangeCount).To(Equal(1), "exactly one range summary should be originated")
		Expect(rangeMetric).To(Equal(uint32(9)), "the range summary's cost is the maximum of its two components")
	})
})

var _ = Describe("NSSA translation", func() {
	It("converts a P-bit Type-7 into a Type-5 and floods it into the backbone", func() {
		x := ID{9, 9, 9, 9}
		originator := ID{7, 7, 7, 7}
		net := netip.MustParsePrefix("192.0.2.0/24")

		router := NewRouter(x, V2Ops{}, &fakeLoop{}, newAcceptancePeers())
		backbone, err := router.AddArea(AreaConfig{ID: BackboneArea, Type: NormalArea}, newAcceptanceRIB(), nil)
		Expect(err).NotTo(HaveOccurred())
		nssa, err := router.AddArea(AreaConfig{ID: ID{0, 0, 0, 1}, Type: NSSAArea}, newAcceptanceRIB(), nil)
		Expect(err).NotTo(HaveOccurred())

		nssa.LSDB.Add(&LSA{
			Header: LSAHeader{Type: Type7LSA, LinkStateID: addrToIDSeed(net.Addr()), AdvertisingRouter: originator, SequenceNumber: InitialSequenceNumber},
			Body:   &ASExternalLSABody{Prefix: Prefix{net}, Metric: 20, PBit: true},
		})
		nssa.Translator = TranslatorState{Role: TranslatorAlways}

		router.External().Translate(nssa, func() (netip.Addr, bool) { return netip.MustParseAddr("198.51.100.9"), true })

		found := false
		it := backbone.LSDB.OpenIterator()
		for {
			lsa, ok := it.Next()
			if !ok {
				break
			}
			if lsa.Header.Type == ASExternalLSA && lsa.Header.AdvertisingRouter == x {
				body := lsa.Body.(*ASExternalLSABody)
				if body.Prefix == (Prefix{net}) {
					found = true
				}
			}
		}
		it.Close()
		Expect(found).To(BeTrue(), "the elected translator should re-originate the Type-7 as a self-originated Type-5 into the backbone")
	})
})

var _ = Describe("self-origination intrusion", func() {
	It("bumps our own sequence number past the intruder's and reinstalls our copy", func() {
		a := ID{1, 1, 1, 1}
		peers := &floodTestPeers{}
		area, err := NewArea(AreaConfig{ID: BackboneArea, Type: NormalArea}, a, V2Ops{}, &fakeLoop{}, peers)
		Expect(err).NotTo(HaveOccurred())
		flood := NewFloodEngine(area, nil)

		ours := &LSA{Header: LSAHeader{Type: RouterLSA, LinkStateID: a, AdvertisingRouter: a, SequenceNumber: InitialSequenceNumber}, Body: &RouterLSABody{}}
		area.LSDB.Add(ours)

		intruder := &LSA{Header: LSAHeader{Type: RouterLSA, LinkStateID: a, AdvertisingRouter: a, SequenceNumber: InitialSequenceNumber + 5}, Body: &RouterLSABody{}}
		result := flood.Receive(intruder, "p0", NeighborID{Peer: "p0", Router: ID{2, 2, 2, 2}}, time.Now(), false, false, false)

		Expect(result).To(Equal(ResultSelfIntrusionHandled), "a reflected self-originated LSA should be handled as an intrusion, never installed")

		lsa, _, ok := area.LSDB.Find(Triple{Type: RouterLSA, LinkStateID: a, AdvertisingRouter: a})
		Expect(ok).To(BeTrue())
		Expect(lsa.Header.SequenceNumber).To(BeNumerically(">", intruder.Header.SequenceNumber), "our copy's sequence should be bumped strictly above the intruder's")
	})
})

var _ = Describe("MaxAge flush with pending ack", func() {
	It("keeps a self-originated MaxAged LSA until every outstanding neighbor acks it, then deletes it", func() {
		adv := ID{1, 1, 1, 1}
		peers := &floodTestPeers{}
		area, err := NewArea(AreaConfig{ID: BackboneArea, Type: NormalArea}, adv, V2Ops{}, &fakeLoop{}, peers)
		Expect(err).NotTo(HaveOccurred())
		flood := NewFloodEngine(area, nil)

		n1 := NeighborID{Peer: "p0", Router: ID{2, 2, 2, 2}}
		n2 := NeighborID{Peer: "p1", Router: ID{3, 3, 3, 3}}
		triple := Triple{Type: RouterLSA, LinkStateID: adv, AdvertisingRouter: adv}
		lsa := &LSA{Header: LSAHeader{Type: RouterLSA, LinkStateID: adv, AdvertisingRouter: adv, SequenceNumber: InitialSequenceNumber, Age: MaxAge}}
		lsa.Header.AddNack(n1)
		lsa.Header.AddNack(n2)
		area.LSDB.Add(lsa)

		flood.ArmMaxAgeTimer(triple)
		tok := area.ageTimers[triple].(*fakeTimer)
		tok.fn()

		Expect(peers.sent).To(HaveLen(2), "a unicast of the MaxAged instance should go to every outstanding neighbor")
		_, _, ok := area.LSDB.Find(triple)
		Expect(ok).To(BeTrue(), "the LSA must remain in the database while neighbors are still outstanding")

		lsa.Header.Ack(n1)
		retry := area.ageTimers[triple].(*fakeTimer)
		retry.fn()
		_, _, ok = area.LSDB.Find(triple)
		Expect(ok).To(BeTrue(), "one ack should not yet remove the LSA while n2 is still outstanding")

		lsa.Header.Ack(n2)
		final := area.ageTimers[triple].(*fakeTimer)
		final.fn()
		_, _, ok = area.LSDB.Find(triple)
		Expect(ok).To(BeFalse(), "once every neighbor has acked, the MaxAged LSA should be deleted")
	})
})
