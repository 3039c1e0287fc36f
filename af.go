package ospf

// AfOps factors the address-family-specific behavior out of the
// otherwise version-independent flooding and LSDB logic, per the
// factoring calls for ("Factor the version-
// independent flooding and LSDB logic into a single generic
// implementation parameterized by an AfOps trait"). V2Ops and V3Ops
// below are the two concrete instances; everything in flood.go,
// lsdb.go, spf.go and origin.go is written against this interface
// rather than against a version tag.
type AfOps interface {
	// Version reports which OSPF version this instance implements.
	Version() Version

	// HasLinkLSA reports whether this address family originates and
	// consumes Link-LSAs. False (OSPFv2) makes LinkLSA handling a
	// no-op throughout the core.
	HasLinkLSA() bool

	// HasIntraAreaPrefix reports whether this address family uses
	// Intra-Area-Prefix-LSAs to carry prefix information separately
	// from Router-/Network-LSAs. False (OSPFv2) means prefix
	// information is read directly off the Router-/Network-LSA.
	HasIntraAreaPrefix() bool

	// SelfOriginatedByInterface reports whether lsid, carried on a
	// Network-LSA, equals one of our own interface addresses -- the
	// OSPFv2-only self-origination-by-interface check in the flooding
	// receive path's self-origination defense. OSPFv3 always returns
	// false here because v3 Network-LSAs are keyed by (DR router-id,
	// interface-id), not by an address we could coincidentally share.
	SelfOriginatedByInterface(lsid ID) bool

	// RFC1583Compatible reports whether the AS-external post-pass
	// should use the RFC1583 tie-break when comparing two AS-external
	// routes of otherwise equal preference. Per's
	// design notes this is an OSPFv2-only concern: the original
	// source's RFC1583 compatibility branch is commented out for v3.
	RFC1583Compatible() bool
}

// V2Ops implements AfOps for OSPFv2 (RFC 2328, IPv4).
type V2Ops struct {
	// KnownInterfaceAddress reports whether addr is configured on one
	// of this router's own interfaces; wired to the peer manager's
	// known_interface_address contract.
	KnownInterfaceAddress func(addr ID) bool
	// RFC1583 enables RFC1583 AS-external comparison compatibility.
	RFC1583 bool
}

func (V2Ops) Version() Version              { return V2 }
func (V2Ops) HasLinkLSA() bool               { return false }
func (V2Ops) HasIntraAreaPrefix() bool       { return false }
func (o V2Ops) RFC1583Compatible() bool      { return o.RFC1583 }

func (o V2Ops) SelfOriginatedByInterface(lsid ID) bool {
	if o.KnownInterfaceAddress == nil {
		return false
	}
	return o.KnownInterfaceAddress(lsid)
}

// V3Ops implements AfOps for OSPFv3 (RFC 5340, IPv6).
type V3Ops struct{}

func (V3Ops) Version() Version                         { return V3 }
func (V3Ops) HasLinkLSA() bool                         { return true }
func (V3Ops) HasIntraAreaPrefix() bool                 { return true }
func (V3Ops) RFC1583Compatible() bool                  { return false }
func (V3Ops) SelfOriginatedByInterface(ID) bool         { return false }
