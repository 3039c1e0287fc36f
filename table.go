package ospf

import (
	"net/netip"

	"github.com/gaissmai/bart"
)

// PathType classifies a RouteEntry by how it was computed, used both
// to order per-destination winners (intra-area beats inter-area beats
// type-1 external beats type-2 external, per RFC2328 section 11 and
// RFC3101 section 2.5) and to report the route's origin to the RIB
// client.
type PathType uint8

// Possible PathTypes, in ascending preference order (lower value
// always wins regardless of metric).
const (
	IntraArea PathType = iota
	InterArea
	Type1External
	Type2External
)

// A RouteEntry is one area routing table destination: the best path
// currently known to Prefix, installed in netip.Prefix-keyed storage
// backed by github.com/gaissmai/bart so longest-prefix-match lookups
// (area-range containment, NSSA default fallback) are cheap.
type RouteEntry struct {
	Prefix     Prefix
	PathType   PathType
	Metric     uint32
	Metric2    uint32 // type-2 external's unchanged metric, used for tie-breaks per RFC2328 section 16.4
	NextHops   []NextHop
	AdvRouter  ID // AS-external's advertising router, for E1/E2 tie-breaks
	Area       ID // the area this path was computed in
	Discard    bool // true for an area-range's aggregate entry
	PolicyTags []string
}

// A NextHop is one equal-cost next hop for a RouteEntry.
type NextHop struct {
	Addr        Prefix
	InterfaceID uint32
}

// Table is one area's routing table: the SPF/post-pass output,
// queryable by prefix and diffable against the previous generation so
// RIB pushes are incremental.
type Table struct {
	areaID ID
	rib    RIBClient
	policy PolicyFilter

	cur  *bart.Table[*RouteEntry]
	prev *bart.Table[*RouteEntry]

	txn *bart.Table[*RouteEntry] // the table under construction, swapped in on End
}

// NewTable constructs an empty Table for areaID, pushing deltas
// through rib and filtering installs through policy (NopPolicyFilter
// if nil).
func NewTable(areaID ID, rib RIBClient, policy PolicyFilter) *Table {
	if policy == nil {
		policy = NopPolicyFilter{}
	}
	return &Table{
		areaID: areaID,
		rib:    rib,
		policy: policy,
		cur:    new(bart.Table[*RouteEntry]),
	}
}

// Begin starts a new computation generation: a fresh table is built up
// via Add/Replace and compared against the previous generation on End.
func (t *Table) Begin() {
	t.txn = new(bart.Table[*RouteEntry])
}

// Add inserts or overwrites entry in the generation under
// construction, after checking it past the configured PolicyFilter.
// A policy-rejected entry is silently dropped: policy evaluation
// itself is out of scope here.
func (t *Table) Add(entry *RouteEntry) {
	ok, tags := t.policy.Allow(entry)
	if !ok {
		return
	}
	entry.PolicyTags = tags
	t.txn.Insert(entry.Prefix.Prefix, entry)
}

// Best returns the current (already-committed) best entry for prefix,
// if any, used by the AS-external post-pass to look up an area's best
// intra-/inter-area route to an ASBR or forwarding address.
func (t *Table) Best(prefix Prefix) (*RouteEntry, bool) {
	return t.cur.Get(prefix.Prefix)
}

// LookupContaining returns the most specific committed entry whose
// prefix contains addr, used for area-range containment checks and
// NSSA/stub default-route fallback lookups.
func (t *Table) LookupContaining(addr Prefix) (*RouteEntry, bool) {
	return t.cur.Lookup(addr.Addr())
}

// All iterates every destination in the committed generation, used by
// Summary-LSA origination (router.go) to walk an area's routes for
// re-advertisement into other areas.
func (t *Table) All() func(func(netip.Prefix, *RouteEntry) bool) {
	return t.cur.All()
}

// End commits the generation under construction, diffing it against
// the previous generation and pushing AddRoute/ReplaceRoute/
// DeleteRoute calls through the RIBClient for every changed
// destination. RIB push failures are logged and otherwise ignored:
// the generation is committed regardless, so a destination whose push
// failed is not pushed again until it changes.
func (t *Table) End() {
	next := t.txn
	t.txn = nil

	t.diffAndPush(next)
	t.prev, t.cur = t.cur, next
}

// diffAndPush compares next against t.cur (the generation about to be
// retired) and issues RIB calls for every added, changed, or removed
// destination.
func (t *Table) diffAndPush(next *bart.Table[*RouteEntry]) {
	seen := make(map[Prefix]bool)

	for prefix, entry := range next.All() {
		p := Prefix{prefix}
		seen[p] = true

		old, existed := t.cur.Get(prefix)
		nh, nhID := firstNextHop(entry)

		if !existed {
			if err := t.rib.AddRoute(p, nh, nhID, entry.Metric, len(entry.NextHops) > 1, entry.Discard, entry.PolicyTags); err != nil {
				areaLog(t.areaID).WithError(err).Warn("RIB add failed")
			}
			continue
		}
		if !routeEntryEqual(old, entry) {
			if err := t.rib.ReplaceRoute(p, nh, nhID, entry.Metric, len(entry.NextHops) > 1, entry.Discard, entry.PolicyTags); err != nil {
				areaLog(t.areaID).WithError(err).Warn("RIB replace failed")
			}
		}
	}

	for prefix := range t.cur.All() {
		p := Prefix{prefix}
		if seen[p] {
			continue
		}
		if err := t.rib.DeleteRoute(p); err != nil {
			areaLog(t.areaID).WithError(err).Warn("RIB delete failed")
		}
	}
}

func firstNextHop(e *RouteEntry) (Prefix, uint32) {
	if len(e.NextHops) == 0 {
		return Prefix{}, 0
	}
	return e.NextHops[0].Addr, e.NextHops[0].InterfaceID
}

func routeEntryEqual(a, b *RouteEntry) bool {
	if a.PathType != b.PathType || a.Metric != b.Metric || a.Metric2 != b.Metric2 || a.Discard != b.Discard {
		return false
	}
	if len(a.NextHops) != len(b.NextHops) {
		return false
	}
	for i := range a.NextHops {
		if a.NextHops[i] != b.NextHops[i] {
			return false
		}
	}
	return true
}

// Better reports whether candidate should replace incumbent as a
// destination's installed route, implementing the partial order
// RFC3101 section 2.5 requires: intra-area < inter-area <
// type-1-external < type-2-external, with
// metric (and, for type-2, the unchanged external Metric2) breaking
// ties within a path type, and the lower advertising router breaking
// remaining ties per RFC2328 section 16.4.
func Better(candidate, incumbent *RouteEntry) bool {
	if candidate.PathType != incumbent.PathType {
		return candidate.PathType < incumbent.PathType
	}
	switch candidate.PathType {
	case Type2External:
		if candidate.Metric2 != incumbent.Metric2 {
			return candidate.Metric2 < incumbent.Metric2
		}
		if candidate.Metric != incumbent.Metric {
			return candidate.Metric < incumbent.Metric
		}
	default:
		if candidate.Metric != incumbent.Metric {
			return candidate.Metric < incumbent.Metric
		}
	}
	return candidate.AdvRouter.Uint32() < incumbent.AdvRouter.Uint32()
}
