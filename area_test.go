package ospf

import (
	"net/netip"
	"testing"
)

func TestAreaConfigValidateRejectsVirtualLinkThroughStub(t *testing.T) {
	cfg := AreaConfig{ID: ID{1, 1, 1, 1}, Type: StubArea, VirtualLinkPeers: []ID{{2, 2, 2, 2}}}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("Validate should reject a virtual link configured through a stub area")
	}
}

func TestAreaConfigValidateRejectsInvalidRange(t *testing.T) {
	cfg := AreaConfig{ID: ID{1, 1, 1, 1}, Type: NormalArea, Ranges: []RangeConfig{{Net: Prefix{}}}}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("Validate should reject a range with no prefix length (zero Prefix has Bits() == -1)")
	}
}

func TestAreaConfigValidateAcceptsNormalConfig(t *testing.T) {
	net := Prefix{netip.MustParsePrefix("10.0.0.0/8")}
	cfg := AreaConfig{ID: ID{1, 1, 1, 1}, Type: NormalArea, Ranges: []RangeConfig{{Net: net, Advertise: true}}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: unexpected error %v", err)
	}
}

func TestNewAreaDefaultsSummariesTrueForNormalArea(t *testing.T) {
	area, err := NewArea(AreaConfig{ID: BackboneArea, Type: NormalArea, Summaries: false}, ID{1, 1, 1, 1}, V2Ops{}, &fakeLoop{}, &fakePeers{})
	if err != nil {
		t.Fatalf("NewArea: %v", err)
	}
	if !area.Config.Summaries {
		t.Fatalf("NewArea should force Summaries true for a normal area regardless of the caller's input")
	}
}

func TestNewAreaHonorsExplicitFalseSummariesForStub(t *testing.T) {
	area, err := NewArea(AreaConfig{ID: ID{1, 2, 3, 4}, Type: StubArea, Summaries: false}, ID{1, 1, 1, 1}, V2Ops{}, &fakeLoop{}, &fakePeers{})
	if err != nil {
		t.Fatalf("NewArea: %v", err)
	}
	if area.Config.Summaries {
		t.Fatalf("NewArea should honor an explicit false Summaries for a stub area")
	}
}

func TestAreaIsStub(t *testing.T) {
	cases := []struct {
		typ  AreaType
		want bool
	}{
		{NormalArea, false},
		{StubArea, true},
		{NSSAArea, true},
	}
	for _, c := range cases {
		area := &Area{Config: AreaConfig{Type: c.typ}}
		if got := area.IsStub(); got != c.want {
			t.Errorf("IsStub() for %v = %v, want %v", c.typ, got, c.want)
		}
	}
}

func TestAreaArmAgeTimerReplacesPrevious(t *testing.T) {
	loop := &fakeLoop{}
	area, err := NewArea(AreaConfig{ID: BackboneArea, Type: NormalArea}, ID{1, 1, 1, 1}, V2Ops{}, loop, &fakePeers{})
	if err != nil {
		t.Fatalf("NewArea: %v", err)
	}
	triple := Triple{Type: RouterLSA, LinkStateID: ID{9, 9, 9, 9}, AdvertisingRouter: ID{9, 9, 9, 9}}

	fired := 0
	area.ArmAgeTimer(triple, MaxAge, func() { fired++ })
	first := area.ageTimers[triple]

	area.ArmAgeTimer(triple, MaxAge, func() { fired++ })
	if !first.(*fakeTimer).cancelled {
		t.Fatalf("re-arming the age timer for the same triple should cancel the previous token")
	}

	loop.fire()
	if fired != 1 {
		t.Fatalf("only the most recently armed callback should fire, got %d calls", fired)
	}
}

func TestAreaClearTimersCancelsBoth(t *testing.T) {
	loop := &fakeLoop{}
	area, err := NewArea(AreaConfig{ID: BackboneArea, Type: NormalArea}, ID{1, 1, 1, 1}, V2Ops{}, loop, &fakePeers{})
	if err != nil {
		t.Fatalf("NewArea: %v", err)
	}
	triple := Triple{Type: RouterLSA, LinkStateID: ID{9, 9, 9, 9}, AdvertisingRouter: ID{9, 9, 9, 9}}

	area.ArmAgeTimer(triple, MaxAge, func() {})
	age := area.ageTimers[triple].(*fakeTimer)
	area.ArmRefreshTimer(triple, func() {})
	refresh := area.refreshTimers[triple].(*fakeTimer)

	area.ClearTimers(triple)

	if !age.cancelled || !refresh.cancelled {
		t.Fatalf("ClearTimers should cancel both the age and refresh timers")
	}
	if _, ok := area.ageTimers[triple]; ok {
		t.Fatalf("ClearTimers should remove the age timer entry")
	}
	if _, ok := area.refreshTimers[triple]; ok {
		t.Fatalf("ClearTimers should remove the refresh timer entry")
	}
}

func TestTranslatorStateEnabled(t *testing.T) {
	cases := []struct {
		state TranslatorState
		want  bool
	}{
		{TranslatorState{Role: TranslatorAlways}, true},
		{TranslatorState{Role: TranslatorNever}, false},
		{TranslatorState{Role: TranslatorCandidate, Election: TranslatorDisabled}, false},
		{TranslatorState{Role: TranslatorCandidate, Election: TranslatorElected}, true},
	}
	for _, c := range cases {
		if got := c.state.Enabled(); got != c.want {
			t.Errorf("TranslatorState%+v.Enabled() = %v, want %v", c.state, got, c.want)
		}
	}
}
