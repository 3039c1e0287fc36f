package ospf

// PeerManager is the upward-facing external collaborator contract from
//: the core consumes neighbor/interface state and
// transmission services from it, but never owns the Hello/DD/LSR
// state machines, socket I/O, or DR election itself.
type PeerManager interface {
	// RouterID returns this router's own OSPF router ID.
	RouterID() ID

	// InterfaceID returns peer's OSPFv3 interface ID (unused in v2).
	InterfaceID(peer PeerID) uint32

	// PeersInArea enumerates the up peers attached to area, used by
	// the flooding engine's publish() fan-out.
	PeersInArea(area ID) []PeerID

	// AttachedRouters returns the router IDs of every router in
	// 2-Way-or-greater adjacency state on peer within area, used by
	// origination to build Network-LSAs and by SPF to synthesize the
	// origin's direct transit edges.
	AttachedRouters(peer PeerID, area ID) []ID

	// NeighborAddress resolves a neighbor's usable address given its
	// router ID and (OSPFv3) interface ID, used to resolve AS-external
	// forwarding addresses and virtual-link next hops.
	NeighborAddress(router ID, interfaceID uint32) (Prefix, bool)

	// KnownInterfaceAddress reports whether addr is configured on one
	// of this router's own interfaces (OSPFv2 self-origination check).
	KnownInterfaceAddress(addr ID) bool

	// ConfiguredNetwork reports whether addr falls within a locally
	// configured network, used by origination's Router-LSA stub-link
	// assembly.
	ConfiguredNetwork(addr Prefix) bool

	// QueueLSA enqueues lsa for transmission to neighbor on peer, on
	// behalf of origin (the peer/neighbor the LSA arrived from, so it
	// is excluded from the flood). It reports whether the LSA was
	// multicast back to us on the arrival peer, used to suppress the
	// explicit ack.
	QueueLSA(peer PeerID, originPeer PeerID, originNeighbor NeighborID, lsa *LSA) (multicast bool)

	// PushLSAs flushes any LSAs queued via QueueLSA for peer.
	PushLSAs(peer PeerID)

	// OnLinkStateRequestList reports whether lsa's triple is on
	// neighbor's Link State Request list within area, used to detect a
	// BadLSReq protocol violation.
	OnLinkStateRequestList(peer PeerID, area ID, neighbor NeighborID, t Triple) bool

	// SendLSA unicasts lsa to neighbor on peer within area, used both
	// for the OLDER-copy response and for MaxAged-with-pending-ack
	// retransmission.
	SendLSA(peer PeerID, area ID, neighbor NeighborID, lsa *LSA)

	// UpVirtualLink and DownVirtualLink notify the peer manager that a
	// virtual link to router should be brought up (through the given
	// transit area, at the given cost, to remote) or torn down.
	UpVirtualLink(router ID, local Prefix, cost uint32, remote Prefix)
	DownVirtualLink(router ID)

	// AreaRangeCovered reports whether net is covered by a configured
	// area-range within area, used by the inter-area post-pass's
	// "equal-or-larger-scope" suppression rule.
	AreaRangeCovered(area ID, net Prefix) bool
}

// RIBClient is the downward-facing external collaborator contract:
// the area routing table (table.go) pushes deltas through it and
// treats failures as advisory only.
type RIBClient interface {
	AddRoute(prefix Prefix, nexthop Prefix, nexthopID uint32, metric uint32, equalCost bool, discard bool, policyTags []string) error
	ReplaceRoute(prefix Prefix, nexthop Prefix, nexthopID uint32, metric uint32, equalCost bool, discard bool, policyTags []string) error
	DeleteRoute(prefix Prefix) error
}

// PolicyFilter is invoked by the area table when installing routes;
// policy evaluation itself is out of scope and
// tags are opaque to the core.
type PolicyFilter interface {
	// Allow reports whether entry may be installed, and the (possibly
	// policy-rewritten) tag set to attach.
	Allow(entry *RouteEntry) (ok bool, tags []string)
}

// NopPolicyFilter allows every route through unchanged; it is the
// default when no PolicyFilter is configured.
type NopPolicyFilter struct{}

// Allow implements PolicyFilter.
func (NopPolicyFilter) Allow(entry *RouteEntry) (bool, []string) { return true, nil }
