package ospf

import "time"

// AreaType classifies an Area.
type AreaType uint8

// Possible AreaTypes.
const (
	NormalArea AreaType = iota
	StubArea
	NSSAArea
)

func (t AreaType) String() string {
	switch t {
	case NormalArea:
		return "normal"
	case StubArea:
		return "stub"
	case NSSAArea:
		return "nssa"
	default:
		return "unknown"
	}
}

// RangeConfig is one configured area-range: a prefix and whether it is
// advertised (aggregated into one Summary-LSA) or suppressed entirely.
type RangeConfig struct {
	Net       Prefix
	Advertise bool
}

// AreaConfig is the caller-supplied configuration for an Area,
// validated by NewArea. Configuration loading itself is external to
// the core; this struct is simply the shape it
// produces.
type AreaConfig struct {
	ID               ID
	Type             AreaType
	Ranges           []RangeConfig
	VirtualLinkPeers []ID
	Summaries        bool // controls stub/NSSA Type-3 import; NewArea forces true for normal areas, the zero value (false) is kept for stub/NSSA
	StubDefaultAnnounce bool
	StubDefaultCost     uint32
}

// Validate rejects configuration combinations calls
// out as configuration errors: a virtual link configured through a
// stub or NSSA area.
func (c AreaConfig) Validate() error {
	if len(c.VirtualLinkPeers) > 0 && c.Type != NormalArea {
		return newErr(ErrConfiguration, "AreaConfig.Validate", errVirtualLinkThroughStub)
	}
	for _, r := range c.Ranges {
		if r.Net.Bits() < 0 {
			return newErr(ErrConfiguration, "AreaConfig.Validate", errInvalidAreaRange)
		}
	}
	return nil
}

// Area owns one area's LSDB, configuration, and the per-area timer
// infrastructure describes (flood delay queue and
// routing recompute debouncer). It is the unit flood.go, origin.go,
// spf.go and postpass.go all operate on.
type Area struct {
	RouterID ID
	Config   AreaConfig
	LSDB     *LSDB
	AF       AfOps
	Loop     EventLoop
	Peers    PeerManager

	// TransitCapability is set iff some Router-LSA in this area has
	// the V-bit set.
	TransitCapability bool

	// borderRouter is set by the owning Router whenever an area is added
	// or removed: true iff this router has at least one other active area,
	// making it an area border router and setting the B-bit on every
	// area's self-originated Router-LSA (RFC2328 section 12.4.1).
	borderRouter bool

	// Translator state for NSSA ABRs.
	Translator TranslatorState

	floodDelay *DelayQueue[Triple, floodEntry]
	recompute  *Debouncer

	// onRecompute is invoked by the debouncer; set by the owning
	// Router so SPF (spf.go) rebuilds this area's table.
	onRecompute func()

	// ageTimers / refreshTimers hold the per-LSA timer tokens keyed by
	// triple, so RemoveLSA can cancel them (:
	// "Removing an LSA clears its age, refresh, and any pending
	// flood-queue references").
	ageTimers    map[Triple]Token
	refreshTimers map[Triple]Token
}

// NewArea constructs an Area after validating cfg.
func NewArea(cfg AreaConfig, routerID ID, af AfOps, loop EventLoop, peers PeerManager) (*Area, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Summaries == false && cfg.Type == NormalArea {
		// Normal areas always import Type-3/4. For stub/NSSA the
		// configured value is kept as given, so leaving Summaries unset
		// (false) disables Type-3 import there.
		cfg.Summaries = true
	}

	a := &Area{
		RouterID:      routerID,
		Config:        cfg,
		LSDB:          NewLSDB(),
		AF:            af,
		Loop:          loop,
		Peers:         peers,
		ageTimers:     make(map[Triple]Token),
		refreshTimers: make(map[Triple]Token),
	}
	a.floodDelay = NewDelayQueue(loop, MinLSInterval, func(e floodEntry) Triple { return e.lsa.Header.Triple() }, a.doPublish)
	a.recompute = NewDebouncer(loop, 1*time.Second, a.doRecompute)
	return a, nil
}

// IsStub reports whether the area is Stub or NSSA (both reject
// AS-External-LSAs).
func (a *Area) IsStub() bool {
	return a.Config.Type == StubArea || a.Config.Type == NSSAArea
}

// ScheduleRecompute arms the debounced routing recompute.
func (a *Area) ScheduleRecompute() {
	a.recompute.Schedule()
}

func (a *Area) doRecompute() {
	if a.onRecompute != nil {
		a.onRecompute()
	}
}

// OnRecompute registers the callback the debouncer invokes. Used by
// Router to wire SPF into each area.
func (a *Area) OnRecompute(fn func()) {
	a.onRecompute = fn
}

// ArmAgeTimer schedules t's removal-on-MaxAge callback, replacing any
// previously armed age timer for the same triple.
func (a *Area) ArmAgeTimer(t Triple, d time.Duration, fn func()) {
	if tok, ok := a.ageTimers[t]; ok {
		tok.Cancel()
	}
	a.ageTimers[t] = a.Loop.After(d, fn)
}

// ArmRefreshTimer schedules a self-originated LSA's LSRefreshTime
// refresh callback.
func (a *Area) ArmRefreshTimer(t Triple, fn func()) {
	if tok, ok := a.refreshTimers[t]; ok {
		tok.Cancel()
	}
	a.refreshTimers[t] = a.Loop.After(LSRefreshTime, fn)
}

// ClearTimers cancels any age/refresh timer associated with t: an LSA
// must never outlive its timers.
func (a *Area) ClearTimers(t Triple) {
	if tok, ok := a.ageTimers[t]; ok {
		tok.Cancel()
		delete(a.ageTimers, t)
	}
	if tok, ok := a.refreshTimers[t]; ok {
		tok.Cancel()
		delete(a.refreshTimers, t)
	}
}

// TranslatorRole is a Type-7 translator's configured role.
type TranslatorRole uint8

// Possible TranslatorRoles.
const (
	TranslatorCandidate TranslatorRole = iota
	TranslatorAlways
	TranslatorNever
)

// TranslatorElection is a Type-7 translator's elected state.
type TranslatorElection uint8

// Possible TranslatorElections.
const (
	TranslatorDisabled TranslatorElection = iota
	TranslatorElected
)

// TranslatorState tracks an ABR's NSSA Type-7-to-Type-5 translator
// role and election outcome.
type TranslatorState struct {
	Role     TranslatorRole
	Election TranslatorElection
}

// Enabled reports whether this ABR currently performs Type-7 to
// Type-5 translation for its NSSA.
func (s TranslatorState) Enabled() bool {
	return s.Role == TranslatorAlways || (s.Role == TranslatorCandidate && s.Election == TranslatorElected)
}
