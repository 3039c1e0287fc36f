package ospf

import (
	"net/netip"
	"time"
)

// Protocol-wide constants exposed by the core.
const (
	// MaxAge is the terminal LSA age in seconds, signifying the LSA is
	// a candidate for purge from the database.
	MaxAge = 3600 * time.Second
	// MinLSArrival is the minimum interval between accepting two
	// instances of the same LSA.
	MinLSArrival = 1 * time.Second
	// MinLSInterval is the minimum gap between re-originations of the
	// same self-originated LSA, enforced by the flood delay queue.
	MinLSInterval = 5 * time.Second
	// LSRefreshTime is the period at which a self-originated LSA is
	// re-advertised with a bumped sequence number.
	LSRefreshTime = 1800 * time.Second
	// RxmtInterval is the retry period for unicasting a MaxAged LSA to
	// a neighbor that has not yet acked it.
	RxmtInterval = 5 * time.Second
	// MaxAgeDiff is the age-difference tie-break threshold used when
	// comparing two LSA instances of otherwise equal sequence and
	// checksum.
	MaxAgeDiff = 900 * time.Second

	// InitialSequenceNumber is the first sequence number used when an
	// LSA is originated or revived.
	InitialSequenceNumber int32 = -0x7fffffff // 0x80000001 as signed int32
	// MaxSequenceNumber is the sequence number at which an LSA must be
	// MaxAged and re-originated ("wrapped") rather than incremented
	// further.
	MaxSequenceNumber int32 = 0x7fffffff

	// LSInfinity is the 24-bit metric value meaning "unreachable"; a
	// route whose cost reaches LSInfinity is never summarized or
	// installed.
	LSInfinity uint32 = 0x00ffffff

	// DefaultDestinationID is the link-state ID used by a default
	// route Summary-LSA (stub/NSSA default-route origination).
	DefaultDestinationID uint32 = 0
)

// An LSType identifies the kind of LSA, normalized across OSPFv2 and
// OSPFv3 wire encodings so the LSDB, flooding engine, origination
// engine and SPF all operate on one type enum regardless of address
// family, per the AfOps factoring calls for.
type LSType uint8

// Possible LSTypes.
const (
	RouterLSA LSType = iota + 1
	NetworkLSA
	SummaryNetLSA // Type-3: network summary
	SummaryASBRLSA // Type-4: ASBR summary
	ASExternalLSA
	Type7LSA // NSSA, area-scoped AS-External
	LinkLSA  // OSPFv3 only
	IntraAreaPrefixLSA // OSPFv3 only
)

func (t LSType) String() string {
	switch t {
	case RouterLSA:
		return "Router-LSA"
	case NetworkLSA:
		return "Network-LSA"
	case SummaryNetLSA:
		return "Summary-LSA(net)"
	case SummaryASBRLSA:
		return "Summary-LSA(asbr)"
	case ASExternalLSA:
		return "AS-External-LSA"
	case Type7LSA:
		return "Type-7-LSA"
	case LinkLSA:
		return "Link-LSA"
	case IntraAreaPrefixLSA:
		return "Intra-Area-Prefix-LSA"
	default:
		return "LSType(unknown)"
	}
}

// AreaScoped reports whether LSAs of type t are flooded only within a
// single area (as opposed to AS-External's AS-wide scope).
func (t LSType) AreaScoped() bool {
	return t != ASExternalLSA
}

// A PeerID is an opaque identifier for a local interface/peer, supplied
// by the peer manager (external collaborator). The
// core never interprets it beyond equality comparison.
type PeerID string

// A NeighborID identifies a neighbor for nack-set and retransmission
// bookkeeping: the peer it was learned on plus its OSPF router ID.
type NeighborID struct {
	Peer   PeerID
	Router ID
}

// Triple is the (type, link-state-id, advertising-router) identity
// the LSDB keys on: LSAs are identity-compared by this triple alone.
type Triple struct {
	Type              LSType
	LinkStateID       ID
	AdvertisingRouter ID
}

// An LSAHeader carries the wire-exact LSA header fields plus the
// off-wire bookkeeping flags that never go on the wire
// (self_originating, creation_time, and the nack set).
type LSAHeader struct {
	Age               time.Duration
	Options           uint32 // 24-bit on v3, 8-bit on v2 (upper bits unused)
	Type              LSType
	LinkStateID       ID
	AdvertisingRouter ID
	SequenceNumber    int32
	Checksum          uint16
	Length            uint16

	// Off-wire bookkeeping.
	SelfOriginating bool
	CreationTime    time.Time
	NackSet         map[NeighborID]struct{}
}

// Triple returns the header's LSDB identity key.
func (h LSAHeader) Triple() Triple {
	return Triple{Type: h.Type, LinkStateID: h.LinkStateID, AdvertisingRouter: h.AdvertisingRouter}
}

// Ack removes n from the nack set, implementing the "implied ack" and
// direct-ack bookkeeping the flooding receive path needs. It reports
// whether n was present.
func (h *LSAHeader) Ack(n NeighborID) bool {
	if h.NackSet == nil {
		return false
	}
	if _, ok := h.NackSet[n]; !ok {
		return false
	}
	delete(h.NackSet, n)
	return true
}

// AddNack adds n to the nack set, arming retransmission bookkeeping
// for that neighbor.
func (h *LSAHeader) AddNack(n NeighborID) {
	if h.NackSet == nil {
		h.NackSet = make(map[NeighborID]struct{})
	}
	h.NackSet[n] = struct{}{}
}

// Acked reports whether every neighbor has acknowledged this LSA (the
// nack set is empty), the condition required before a MaxAged LSA may
// be deleted.
func (h LSAHeader) Acked() bool {
	return len(h.NackSet) == 0
}

// A Body is an OSPF LSA payload: the part of the LSA beyond the shared
// header. Each concrete type below implements Body. Dispatch by LSA
// type happens via a type switch against the decoded LS type rather
// than a runtime-typed downcast.
type Body interface {
	lsaType() LSType
}

// An LSA pairs a header with its typed body.
type LSA struct {
	Header LSAHeader
	Body   Body
}

// RouterLinkType enumerates the kinds of router-link
// names: point-to-point, transit, stub (v2 only) and virtual-link.
type RouterLinkType uint8

// Possible RouterLinkTypes.
const (
	PointToPoint RouterLinkType = iota + 1
	Transit
	StubNetwork // OSPFv2 only
	VirtualLink
)

// A RouterLink is one entry of a Router-LSA's link list. Both address
// families' link identification fields are carried; callers consult
// only the fields meaningful for the version in play via the AfOps
// helpers in af.go.
type RouterLink struct {
	Type   RouterLinkType
	Metric uint16

	// OSPFv2 fields. LinkID's meaning depends on Type: neighbor router
	// ID (point-to-point/virtual), network address (stub), or DR
	// address (transit). LinkData is the originating router's own
	// interface address or, for stub networks, its mask.
	LinkID   ID
	LinkData ID

	// OSPFv3 fields, per RFC5340 appendix A.4.3.
	InterfaceID         uint32
	NeighborInterfaceID uint32
	NeighborRouterID    ID
}

// RouterLSABits are the V/E/B bits carried in a Router-LSA.
type RouterLSABits struct {
	V bool // virtual-link endpoint
	E bool // AS boundary router
	B bool // area border router
}

// A RouterLSABody is a Router-LSA: the union of a router's per-peer
// link lists, as origin.go's BuildRouterLSA assembles.
type RouterLSABody struct {
	Bits  RouterLSABits
	Links []RouterLink
}

func (*RouterLSABody) lsaType() LSType { return RouterLSA }

// A NetworkLSABody is a Network-LSA: the set of routers attached to a
// transit network, originated by the network's DR.
type NetworkLSABody struct {
	NetworkMask     ID // OSPFv2 only
	Options         uint32 // OSPFv3 only
	AttachedRouters []ID
}

func (*NetworkLSABody) lsaType() LSType { return NetworkLSA }

// A SummaryLSABody is a Type-3 (network) or Type-4 (ASBR) Summary-LSA.
// Which it is follows from the header's Type field
// (SummaryNetLSA/SummaryASBRLSA); ReferencedRouter is only meaningful
// for Type-4 in OSPFv3, where (unlike OSPFv2) the link-state ID is a
// locally assigned handle rather than the described router's ID.
type SummaryLSABody struct {
	NetworkMask      ID     // OSPFv2 Type-3 only
	Prefix           Prefix // authoritative destination; always populated
	PrefixOptions    PrefixOptions
	Metric           uint32 // 24-bit
	ReferencedRouter ID // OSPFv3 Type-4 only
}

func (*SummaryLSABody) lsaType() LSType {
	// Resolved by the enclosing LSAHeader.Type; kept here only to
	// satisfy the Body interface via a generic value.
	return SummaryNetLSA
}

// An ASExternalLSABody is an AS-External-LSA (Type-5) or, when
// enclosed in an LSAHeader of Type Type7LSA, a Type-7-LSA: the two
// share an identical body layout per RFC2328 appendix A.4.5 /
// RFC3101 section 2.
type ASExternalLSABody struct {
	NetworkMask       ID // OSPFv2 only
	Prefix            Prefix
	PrefixOptions     PrefixOptions // OSPFv3 only
	EBit              bool         // true: type-2 metric, false: type-1
	Metric            uint32       // 24-bit
	HasForwardingAddr bool
	ForwardingAddr    netip.Addr
	RouteTag          uint32
	HasRouteTag       bool // OSPFv3 T-bit
	PBit              bool // OSPFv2 Type-7 propagate bit (stored in Options on the wire)
}

func (*ASExternalLSABody) lsaType() LSType { return ASExternalLSA }

// PrefixOptions are the per-prefix option bits carried in OSPFv3
// Link-LSAs, Intra-Area-Prefix-LSAs and Inter-Area-Prefix bodies, per
// RFC5340 appendix A.4.1.1.
type PrefixOptions uint8

// Possible PrefixOptions bits.
const (
	PrefixNU PrefixOptions = 1 << 0 // do not use for forwarding
	PrefixLA PrefixOptions = 1 << 1 // local address, not a route
	PrefixMC PrefixOptions = 1 << 2 // multicast
	PrefixP  PrefixOptions = 1 << 3 // NSSA propagate (translate to Type-5)
	PrefixDN PrefixOptions = 1 << 4 // BGP-MPLS VPN loop prevention (carried, unused by the core)
)

// A PrefixEntry is one prefix carried in a Link-LSA or
// Intra-Area-Prefix-LSA, each with its own options and (in the
// Intra-Area-Prefix-LSA case) metric.
type PrefixEntry struct {
	Prefix  Prefix
	Options PrefixOptions
	Metric  uint16
}

// A LinkLSABody is an OSPFv3 Link-LSA: the originating router's
// link-local address and the prefixes it advertises on one link,
// scoped to that link alone (one per peer per area).
type LinkLSABody struct {
	RouterPriority uint8
	Options        uint32
	LinkLocalAddr  netip.Addr
	Prefixes       []PrefixEntry
}

func (*LinkLSABody) lsaType() LSType { return LinkLSA }

// An IntraAreaPrefixLSABody is an OSPFv3 Intra-Area-Prefix-LSA: the
// prefix list associated with a Router- or Network-LSA, referenced by
// that LSA's (type, link-state-id, advertising-router) triple.
type IntraAreaPrefixLSABody struct {
	ReferencedType              LSType // RouterLSA or NetworkLSA
	ReferencedLinkStateID       ID
	ReferencedAdvertisingRouter ID
	Prefixes                    []PrefixEntry
}

func (*IntraAreaPrefixLSABody) lsaType() LSType { return IntraAreaPrefixLSA }

// compareResult classifies a pair of same-triple LSA instances per
// RFC2328 section 13.1.
type compareResult uint8

const (
	cmpNewer compareResult = iota
	cmpOlder
	cmpEquivalent
)

// compareLSAInstances implements the RFC 2328 section 13.1 comparison
// of two LSA instances sharing the same (type, LSID, advertising
// router) triple: newer wins on sequence number; ties break on
// checksum; MaxAge always wins; remaining ties break on an age
// difference exceeding MaxAgeDiff, with the younger instance winning.
func compareLSAInstances(a, b LSAHeader) compareResult {
	switch {
	case a.SequenceNumber > b.SequenceNumber:
		return cmpNewer
	case a.SequenceNumber < b.SequenceNumber:
		return cmpOlder
	}

	switch {
	case a.Checksum > b.Checksum:
		return cmpNewer
	case a.Checksum < b.Checksum:
		return cmpOlder
	}

	aMax, bMax := a.Age >= MaxAge, b.Age >= MaxAge
	switch {
	case aMax && !bMax:
		return cmpNewer
	case !aMax && bMax:
		return cmpOlder
	}

	diff := a.Age - b.Age
	if diff < 0 {
		diff = -diff
	}
	if diff > MaxAgeDiff {
		if a.Age < b.Age {
			return cmpNewer
		}
		return cmpOlder
	}

	return cmpEquivalent
}
