package ospf

import (
	"testing"
)

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	return NewRouter(ID{1, 1, 1, 1}, V2Ops{}, &fakeLoop{}, &fakePeers{})
}

func TestAddAreaSetsBorderRouterBitOnlyWithMultipleAreas(t *testing.T) {
	r := newTestRouter(t)

	backbone, err := r.AddArea(AreaConfig{ID: BackboneArea, Type: NormalArea}, &fakeRIB{}, nil)
	if err != nil {
		t.Fatalf("AddArea: %v", err)
	}
	if backbone.borderRouter {
		t.Fatalf("a single-area router should not be an ABR")
	}

	area1, err := r.AddArea(AreaConfig{ID: ID{0, 0, 0, 1}, Type: NormalArea}, &fakeRIB{}, nil)
	if err != nil {
		t.Fatalf("AddArea: %v", err)
	}
	if !backbone.borderRouter || !area1.borderRouter {
		t.Fatalf("adding a second area should make every area's border-router bit true")
	}

	r.RemoveArea(area1.Config.ID)
	if backbone.borderRouter {
		t.Fatalf("removing back down to one area should clear the border-router bit")
	}
}

func TestAddAreaOriginatesStubDefaultWhenConfigured(t *testing.T) {
	r := newTestRouter(t)
	area, err := r.AddArea(AreaConfig{ID: ID{0, 0, 0, 1}, Type: StubArea, StubDefaultAnnounce: true, StubDefaultCost: 3}, &fakeRIB{}, nil)
	if err != nil {
		t.Fatalf("AddArea: %v", err)
	}

	origin, _ := r.Originator(area.Config.ID)
	triple := origin.defaultRouteTriple()
	if _, _, ok := area.LSDB.Find(triple); !ok {
		t.Fatalf("AddArea should originate the stub default-route Summary-LSA immediately")
	}
}

func TestCoveringRangeReturnsMostSpecific(t *testing.T) {
	wide := RangeConfig{Net: mustPrefix(t, "10.0.0.0/8"), Advertise: true}
	narrow := RangeConfig{Net: mustPrefix(t, "10.1.0.0/16"), Advertise: false}
	ranges := []RangeConfig{wide, narrow}

	got, ok := coveringRange(ranges, mustPrefix(t, "10.1.2.0/24"))
	if !ok || got.Net != narrow.Net {
		t.Fatalf("coveringRange = %+v, %v, want the /16 (most specific)", got, ok)
	}

	got2, ok2 := coveringRange(ranges, mustPrefix(t, "10.2.2.0/24"))
	if !ok2 || got2.Net != wide.Net {
		t.Fatalf("coveringRange = %+v, %v, want the /8 (only one covering)", got2, ok2)
	}

	_, ok3 := coveringRange(ranges, mustPrefix(t, "192.0.2.0/24"))
	if ok3 {
		t.Fatalf("coveringRange should report false for an uncovered prefix")
	}
}

func TestOriginateSummariesAdvertisesIntraAreaRouteIntoBackbone(t *testing.T) {
	r := newTestRouter(t)
	backbone, err := r.AddArea(AreaConfig{ID: BackboneArea, Type: NormalArea}, &fakeRIB{}, nil)
	if err != nil {
		t.Fatalf("AddArea backbone: %v", err)
	}
	_, err = r.AddArea(AreaConfig{ID: ID{0, 0, 0, 1}, Type: NormalArea}, &fakeRIB{}, nil)
	if err != nil {
		t.Fatalf("AddArea area1: %v", err)
	}

	net := mustPrefix(t, "192.0.2.0/24")
	area1Table := r.tables[ID{0, 0, 0, 1}]
	area1Table.Begin()
	area1Table.Add(&RouteEntry{Prefix: net, PathType: IntraArea, Metric: 10})
	area1Table.End()

	r.originateSummaries()

	found := false
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
		if body.Prefix == net && body.Metric == 10 {
			found = true
		}
	}
	it.Close()
	if !found {
		t.Fatalf("originateSummaries should advertise area1's intra-area route into the backbone as a Type-3 Summary-LSA")
	}
}

func TestOriginateSummariesCollapsesAdvertisingRangeAtWorstCost(t *testing.T) {
	r := newTestRouter(t)
	backbone, err := r.AddArea(AreaConfig{ID: BackboneArea, Type: NormalArea}, &fakeRIB{}, nil)
	if err != nil {
		t.Fatalf("AddArea backbone: %v", err)
	}
	rng := mustPrefix(t, "10.0.0.0/8")
	_, err = r.AddArea(AreaConfig{ID: ID{0, 0, 0, 1}, Type: NormalArea, Ranges: []RangeConfig{{Net: rng, Advertise: true}}}, &fakeRIB{}, nil)
	if err != nil {
		t.Fatalf("AddArea area1: %v", err)
	}

	a := mustPrefix(t, "10.1.0.0/16")
	b := mustPrefix(t, "10.2.0.0/16")
	area1Table := r.tables[ID{0, 0, 0, 1}]
	area1Table.Begin()
	area1Table.Add(&RouteEntry{Prefix: a, PathType: IntraArea, Metric: 5})
	area1Table.Add(&RouteEntry{Prefix: b, PathType: IntraArea, Metric: 20})
	area1Table.End()

	r.originateSummaries()

	var summaryCount int
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
		if body.Prefix == rng {
			summaryCount++
			rangeMetric = body.Metric
		}
		if body.Prefix == a || body.Prefix == b {
			t.Fatalf("a range-covered destination must not also be individually advertised, got %v", body.Prefix)
		}
	}
	it.Close()

	if summaryCount != 1 {
		t.Fatalf("got %d range summaries, want exactly 1", summaryCount)
	}
	if rangeMetric != 20 {
		t.Fatalf("range summary metric = %d, want the worst-case component cost 20", rangeMetric)
	}
}

func TestOriginateSummariesSuppressesNonAdvertisingRange(t *testing.T) {
	r := newTestRouter(t)
	backbone, err := r.AddArea(AreaConfig{ID: BackboneArea, Type: NormalArea}, &fakeRIB{}, nil)
	if err != nil {
		t.Fatalf("AddArea backbone: %v", err)
	}
	rng := mustPrefix(t, "10.0.0.0/8")
	_, err = r.AddArea(AreaConfig{ID: ID{0, 0, 0, 1}, Type: NormalArea, Ranges: []RangeConfig{{Net: rng, Advertise: false}}}, &fakeRIB{}, nil)
	if err != nil {
		t.Fatalf("AddArea area1: %v", err)
	}

	a := mustPrefix(t, "10.1.0.0/16")
	area1Table := r.tables[ID{0, 0, 0, 1}]
	area1Table.Begin()
	area1Table.Add(&RouteEntry{Prefix: a, PathType: IntraArea, Metric: 5})
	area1Table.End()

	r.originateSummaries()

	if backbone.LSDB.Len() != 0 {
		t.Fatalf("a non-advertising range should suppress its covered destinations entirely, LSDB has %d entries", backbone.LSDB.Len())
	}
}

func TestOriginateSummariesSkipsStubDestinationAreaWithoutSummaries(t *testing.T) {
	r := newTestRouter(t)
	_, err := r.AddArea(AreaConfig{ID: BackboneArea, Type: NormalArea}, &fakeRIB{}, nil)
	if err != nil {
		t.Fatalf("AddArea backbone: %v", err)
	}
	stub, err := r.AddArea(AreaConfig{ID: ID{0, 0, 0, 1}, Type: StubArea, Summaries: false}, &fakeRIB{}, nil)
	if err != nil {
		t.Fatalf("AddArea stub: %v", err)
	}

	net := mustPrefix(t, "192.0.2.0/24")
	backboneTable := r.tables[BackboneArea]
	backboneTable.Begin()
	backboneTable.Add(&RouteEntry{Prefix: net, PathType: IntraArea, Metric: 10})
	backboneTable.End()

	r.originateSummaries()

	if stub.LSDB.Len() != 0 {
		t.Fatalf("a stub area configured with Summaries=false should receive no Type-3 Summary-LSAs, got %d entries", stub.LSDB.Len())
	}
}

func TestAnnounceASBRSummariesOriginatesForEBitRouters(t *testing.T) {
	r := newTestRouter(t)
	backbone, err := r.AddArea(AreaConfig{ID: BackboneArea, Type: NormalArea}, &fakeRIB{}, nil)
	if err != nil {
		t.Fatalf("AddArea backbone: %v", err)
	}
	area1, err := r.AddArea(AreaConfig{ID: ID{0, 0, 0, 1}, Type: NormalArea}, &fakeRIB{}, nil)
	if err != nil {
		t.Fatalf("AddArea area1: %v", err)
	}

	asbr := ID{192, 0, 2, 9}
	area1.LSDB.Add(&LSA{
		Header: LSAHeader{Type: RouterLSA, LinkStateID: asbr, AdvertisingRouter: asbr, SequenceNumber: InitialSequenceNumber},
		Body:   &RouterLSABody{Bits: RouterLSABits{E: true}},
	})
	r.asbrDistance[area1.Config.ID] = map[ID]uint32{asbr: 7}

	origin, _ := r.Originator(BackboneArea)
	r.announceASBRSummaries(area1.Config.ID, area1, origin, backbone)

	found := false
	it := backbone.LSDB.OpenIterator()
	for {
		lsa, ok := it.Next()
		if !ok {
			break
		}
		if lsa.Header.Type == SummaryASBRLSA {
			body := lsa.Body.(*SummaryLSABody)
			if body.ReferencedRouter == asbr && body.Metric == 7 {
				found = true
			}
		}
	}
	it.Close()
	if !found {
		t.Fatalf("announceASBRSummaries should originate a Type-4 Summary-LSA for the E-bit router at its cached distance")
	}
}

func TestAnnounceASBRSummariesNeverSummarizesSelf(t *testing.T) {
	r := newTestRouter(t)
	backbone, err := r.AddArea(AreaConfig{ID: BackboneArea, Type: NormalArea}, &fakeRIB{}, nil)
	if err != nil {
		t.Fatalf("AddArea backbone: %v", err)
	}
	area1, err := r.AddArea(AreaConfig{ID: ID{0, 0, 0, 1}, Type: NormalArea}, &fakeRIB{}, nil)
	if err != nil {
		t.Fatalf("AddArea area1: %v", err)
	}

	area1.LSDB.Add(&LSA{
		Header: LSAHeader{Type: RouterLSA, LinkStateID: r.ID, AdvertisingRouter: r.ID, SequenceNumber: InitialSequenceNumber},
		Body:   &RouterLSABody{Bits: RouterLSABits{E: true}},
	})
	r.asbrDistance[area1.Config.ID] = map[ID]uint32{r.ID: 1}

	origin, _ := r.Originator(BackboneArea)
	r.announceASBRSummaries(area1.Config.ID, area1, origin, backbone)

	if backbone.LSDB.Len() != 0 {
		t.Fatalf("announceASBRSummaries must never summarize this router's own Router-LSA, got %d entries", backbone.LSDB.Len())
	}
}
