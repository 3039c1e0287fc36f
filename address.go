// Package ospf implements the core of an OSPF routing daemon: the
// per-area link-state database, the reliable LSA flooding engine, and
// the area routing computation for both OSPFv2 (RFC 2328) and OSPFv3
// (RFC 5340), including not-so-stubby areas (RFC 3101).
//
// Socket I/O, the Hello/DD/LSR neighbor state machines, DR election,
// policy filtering, configuration loading and the RIB client are not
// part of this package; they are external collaborators described by
// the interfaces in peer.go and table.go.
package ospf

import (
	"fmt"
	"net/netip"
)

// Version identifies which OSPF protocol version a component instance
// is operating as.
type Version uint8

// Supported Versions.
const (
	V2 Version = 2
	V3 Version = 3
)

func (v Version) String() string {
	switch v {
	case V2:
		return "OSPFv2"
	case V3:
		return "OSPFv3"
	default:
		return fmt.Sprintf("Version(%d)", uint8(v))
	}
}

// An ID is a four byte identifier used for OSPF router IDs, area IDs,
// and (in OSPFv2) link-state IDs. It is always carried on the wire in
// network byte order and is typically rendered in dotted-decimal form,
// matching RFC 2328 and RFC 5340's presentation of these fields.
type ID [4]byte

func (id ID) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", id[0], id[1], id[2], id[3])
}

// Uint32 returns id interpreted as a big-endian 32-bit integer, which
// is how router and area IDs are compared and incremented (for
// instance when assigning monotonic Summary-LSA link-state IDs).
func (id ID) Uint32() uint32 {
	return uint32(id[0])<<24 | uint32(id[1])<<16 | uint32(id[2])<<8 | uint32(id[3])
}

// IDFromUint32 packs a 32-bit integer into an ID in network byte order.
func IDFromUint32(v uint32) ID {
	return ID{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

// BackboneArea is the reserved area ID (0.0.0.0) denoting the OSPF
// backbone, per RFC 2328 section 3.
var BackboneArea = ID{}

// A Prefix pairs an address with a prefix length, the (address,
// length) pair used throughout for area ranges, Summary-LSA
// destinations and AS-External-LSA destinations. It wraps
// netip.Prefix so it plugs directly into
// github.com/gaissmai/bart's Table, which is keyed on netip.Prefix.
type Prefix struct {
	netip.Prefix
}

// PrefixFromAddr builds a Prefix from an address and a mask length,
// masking host bits per netip.Prefix semantics.
func PrefixFromAddr(addr netip.Addr, length int) Prefix {
	p := netip.PrefixFrom(addr, length)
	return Prefix{p.Masked()}
}

// IsDefault reports whether p is the default route (::/0 or
// 0.0.0.0/0), used for the NSSA/stub default-route origination case
// and the AS-external post-pass's NSSA-default rule.
func (p Prefix) IsDefault() bool {
	return p.Bits() == 0
}

// SetHostBits returns p with all bits beyond the prefix length set to
// 1, used by RFC 2328 Appendix E's Summary-LSA link-state-ID
// disambiguation.
func (p Prefix) SetHostBits() netip.Addr {
	if p.Addr().Is4() {
		b := p.Addr().As4()
		fullOnes(b[:], p.Bits())
		return netip.AddrFrom4(b)
	}
	b := p.Addr().As16()
	fullOnes(b[:], p.Bits())
	return netip.AddrFrom16(b)
}

func fullOnes(b []byte, prefixBits int) {
	total := len(b) * 8
	for bit := prefixBits; bit < total; bit++ {
		b[bit/8] |= 1 << (7 - uint(bit%8))
	}
}

// Contains reports whether p fully contains other, i.e. other is at
// least as specific and falls within p's range.
func (p Prefix) Contains(other Prefix) bool {
	if p.Bits() > other.Bits() {
		return false
	}
	return p.Masked().Contains(other.Addr()) || p.Addr() == other.Masked().Addr()
}

// Overlap returns the length of the longest common prefix of a and b,
// capped at min(a.Bits(), b.Bits()).
func Overlap(a, b Prefix) int {
	max := a.Bits()
	if b.Bits() < max {
		max = b.Bits()
	}
	if a.Addr().Is4() != b.Addr().Is4() {
		return 0
	}

	var ab, bb []byte
	if a.Addr().Is4() {
		a4, b4 := a.Addr().As4(), b.Addr().As4()
		ab, bb = a4[:], b4[:]
	} else {
		a16, b16 := a.Addr().As16(), b.Addr().As16()
		ab, bb = a16[:], b16[:]
	}

	n := 0
	for i := 0; i < max; i++ {
		byteIdx, bitIdx := i/8, 7-uint(i%8)
		if (ab[byteIdx]>>bitIdx)&1 != (bb[byteIdx]>>bitIdx)&1 {
			break
		}
		n++
	}
	return n
}

// IsLinkLocal reports whether addr is a link-local unicast address
// (fe80::/10 for IPv6; OSPFv2 has no link-local concept and always
// returns false).
func IsLinkLocal(addr netip.Addr) bool {
	return addr.Is6() && addr.IsLinkLocalUnicast()
}

// IsMulticast reports whether addr is a multicast address.
func IsMulticast(addr netip.Addr) bool {
	return addr.IsMulticast()
}

// IsUnicast reports whether addr is a plausible unicast address (not
// multicast, not the unspecified address).
func IsUnicast(addr netip.Addr) bool {
	return addr.IsValid() && !addr.IsMulticast() && !addr.IsUnspecified()
}
