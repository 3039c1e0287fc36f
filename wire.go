package ospf

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"time"
)

// Wire-format framing lengths: fixed header plus variable sections,
// generalized to both address families.
const (
	headerLenV2 = 24 // version, type, length, router/area ID, checksum, AuType, auth (unused, see below)
	headerLenV3 = 16
	lsaHeaderWireLen = 20
	helloLenV2       = 20 // network mask, interval, options+priority, dead interval, DR, BDR, then neighbor IDs
	helloLenV3       = 20
	ddLenV2          = 8
	ddLenV3          = 12
)

// Authentication (RFC2328 appendix D) is out of scope: the OSPFv2 AuType/Authentication fields are always
// written as zero and ignored on parse.

// A packetType is the OSPF packet type carried in the common header.
type packetType uint8

// Possible packet types, shared by OSPFv2 (RFC2328 appendix A.3.1) and
// OSPFv3 (RFC5340 appendix A.3.1).
const (
	ptHello             packetType = 1
	ptDatabaseDesc      packetType = 2
	ptLinkStateRequest  packetType = 3
	ptLinkStateUpdate   packetType = 4
	ptLinkStateAck      packetType = 5
)

// A Header is the common OSPF packet header, version-agnostic at this
// layer: the wire-exact field layout differs between v2 and v3 and is
// handled by marshalHeader/parseHeader below.
type Header struct {
	RouterID ID
	AreaID   ID
	Checksum uint16

	InstanceID uint8 // OSPFv3 only
}

func marshalHeader(b []byte, v Version, h Header, ptyp packetType, plen uint16) {
	b[0] = byte(v)
	b[1] = byte(ptyp)
	binary.BigEndian.PutUint16(b[2:4], plen)
	copy(b[4:8], h.RouterID[:])
	copy(b[8:12], h.AreaID[:])
	binary.BigEndian.PutUint16(b[12:14], h.Checksum)

	switch v {
	case V2:
		// b[14:16] AuType, b[16:24] Authentication: left zero.
	case V3:
		b[14] = h.InstanceID
		// b[15] reserved.
	}
}

func headerLen(v Version) int {
	if v == V2 {
		return headerLenV2
	}
	return headerLenV3
}

func parseHeader(b []byte, v Version) (Header, packetType, int, error) {
	hl := headerLen(v)
	if l := len(b); l < hl {
		return Header{}, 0, 0, fmt.Errorf("not enough bytes for OSPF header: %d: %w", l, errParse)
	}
	if got := Version(b[0]); got != v {
		return Header{}, 0, 0, fmt.Errorf("unrecognized OSPF version: %d: %w", got, errParse)
	}

	h := Header{Checksum: binary.BigEndian.Uint16(b[12:14])}
	copy(h.RouterID[:], b[4:8])
	copy(h.AreaID[:], b[8:12])
	if v == V3 {
		h.InstanceID = b[14]
	}

	plen := int(binary.BigEndian.Uint16(b[2:4]))
	if plen < hl {
		return Header{}, 0, 0, fmt.Errorf("header packet length %d too short: %w", plen, errParse)
	}
	if l := len(b); l < plen {
		return Header{}, 0, 0, fmt.Errorf("header packet length %d exceeds %d available bytes: %w", plen, l, errParse)
	}

	return h, packetType(b[1]), plen, nil
}

// A WireMessage is one of Hello, DatabaseDescription, LinkStateRequest
// or LinkStateAcknowledgement: every OSPF packet type that carries no
// full LSA bodies. Link State Update is handled separately by
// MarshalUpdate/ParseUpdate since its payload requires the Body
// marshal/unmarshal dispatch in lsawire.go.
type WireMessage interface {
	wireLen(v Version) int
	marshalBody(b []byte, v Version) error
	unmarshalBody(b []byte, v Version) error
}

// MarshalWireMessage turns m into packet bytes for address family v.
func MarshalWireMessage(v Version, h Header, ptyp packetType, m WireMessage) ([]byte, error) {
	n := headerLen(v) + m.wireLen(v)
	b := make([]byte, n)
	marshalHeader(b, v, h, ptyp, uint16(n))
	if err := m.marshalBody(b[headerLen(v):], v); err != nil {
		return nil, fmt.Errorf("ospf: failed to marshal %T: %w", m, err)
	}
	return b, nil
}

// ParseWireMessage parses the common header from b and reports which
// concrete type to unmarshal, leaving the body unmarshal to the
// caller (which already knows which struct to allocate by context, or
// dispatches on the returned packetType).
func ParseWireMessage(b []byte, v Version) (Header, packetType, []byte, error) {
	h, ptyp, plen, err := parseHeader(b, v)
	if err != nil {
		return Header{}, 0, nil, err
	}
	return h, ptyp, b[headerLen(v):plen], nil
}

// A Hello is an OSPF Hello packet (RFC2328 appendix A.3.2, RFC5340
// appendix A.3.2). Fields meaningless for the active version are left
// zero; NetworkMask is OSPFv2 only, InterfaceID is OSPFv3 only.
type Hello struct {
	NetworkMask              ID // v2
	InterfaceID              uint32 // v3
	Options                  uint32
	RouterPriority            uint8
	HelloInterval             time.Duration
	RouterDeadInterval        time.Duration
	DesignatedRouterID        ID
	BackupDesignatedRouterID  ID
	NeighborIDs               []ID
}

func (h *Hello) wireLen(v Version) int {
	base := helloLenV2
	if v == V3 {
		base = helloLenV3
	}
	return base + 4*len(h.NeighborIDs)
}

func (h *Hello) marshalBody(b []byte, v Version) error {
	switch v {
	case V2:
		copy(b[0:4], h.NetworkMask[:])
		putUint16Seconds(b[4:6], h.HelloInterval)
		b[6] = uint8(h.Options) // v2 options are 8 bits
		b[7] = h.RouterPriority
		putUint32Seconds(b[8:12], h.RouterDeadInterval)
		copy(b[12:16], h.DesignatedRouterID[:])
		copy(b[16:20], h.BackupDesignatedRouterID[:])
		nn := 20
		for i := range h.NeighborIDs {
			copy(b[nn:nn+4], h.NeighborIDs[i][:])
			nn += 4
		}
	case V3:
		binary.BigEndian.PutUint32(b[0:4], h.InterfaceID)
		binary.BigEndian.PutUint32(b[4:8], uint32(h.RouterPriority)<<24|(h.Options&0x00ffffff))
		putUint16Seconds(b[8:10], h.HelloInterval)
		putUint16Seconds(b[10:12], h.RouterDeadInterval)
		copy(b[12:16], h.DesignatedRouterID[:])
		copy(b[16:20], h.BackupDesignatedRouterID[:])
		nn := 20
		for i := range h.NeighborIDs {
			copy(b[nn:nn+4], h.NeighborIDs[i][:])
			nn += 4
		}
	}
	return nil
}

func (h *Hello) unmarshalBody(b []byte, v Version) error {
	base := helloLenV2
	if v == V3 {
		base = helloLenV3
	}
	if l := len(b); l < base {
		return fmt.Errorf("not enough bytes for Hello: %d: %w", l, errParse)
	}
	if (len(b)-base)%4 != 0 {
		return fmt.Errorf("Hello neighbor list not 4-byte aligned: %w", errParse)
	}

	switch v {
	case V2:
		copy(h.NetworkMask[:], b[0:4])
		h.HelloInterval = uint16Seconds(b[4:6])
		h.Options = uint32(b[6])
		h.RouterPriority = b[7]
		h.RouterDeadInterval = uint32Seconds(b[8:12])
		copy(h.DesignatedRouterID[:], b[12:16])
		copy(h.BackupDesignatedRouterID[:], b[16:20])
	case V3:
		h.InterfaceID = binary.BigEndian.Uint32(b[0:4])
		word := binary.BigEndian.Uint32(b[4:8])
		h.RouterPriority = uint8(word >> 24)
		h.Options = word & 0x00ffffff
		h.HelloInterval = uint16Seconds(b[8:10])
		h.RouterDeadInterval = uint16Seconds(b[10:12])
		copy(h.DesignatedRouterID[:], b[12:16])
		copy(h.BackupDesignatedRouterID[:], b[16:20])
	}

	h.NeighborIDs = h.NeighborIDs[:0]
	for i := base; i+4 <= len(b); i += 4 {
		var id ID
		copy(id[:], b[i:i+4])
		h.NeighborIDs = append(h.NeighborIDs, id)
	}
	return nil
}

// DDFlags are the Database Description I/M/MS bits, shared by both
// versions (RFC2328 appendix A.3.3, RFC5340 appendix A.3.3).
type DDFlags uint16

// Possible DDFlags.
const (
	MSBit DDFlags = 1 << 0
	MBit  DDFlags = 1 << 1
	IBit  DDFlags = 1 << 2
)

// A DatabaseDescription is an OSPF Database Description packet.
type DatabaseDescription struct {
	Options        uint32
	InterfaceMTU   uint16
	Flags          DDFlags
	SequenceNumber uint32
	LSAs           []LSAHeader
}

func (dd *DatabaseDescription) wireLen(v Version) int {
	base := ddLenV2
	if v == V3 {
		base = ddLenV3
	}
	return base + lsaHeaderWireLen*len(dd.LSAs)
}

func (dd *DatabaseDescription) marshalBody(b []byte, v Version) error {
	var off int
	switch v {
	case V2:
		binary.BigEndian.PutUint16(b[0:2], dd.InterfaceMTU)
		b[2] = uint8(dd.Options)
		b[3] = byte(dd.Flags)
		binary.BigEndian.PutUint32(b[4:8], dd.SequenceNumber)
		off = 8
	case V3:
		binary.BigEndian.PutUint32(b[0:4], dd.Options&0x00ffffff)
		binary.BigEndian.PutUint16(b[4:6], dd.InterfaceMTU)
		b[7] = byte(dd.Flags)
		binary.BigEndian.PutUint32(b[8:12], dd.SequenceNumber)
		off = 12
	}
	for i := range dd.LSAs {
		marshalLSAHeader(b[off:off+lsaHeaderWireLen], v, dd.LSAs[i])
		off += lsaHeaderWireLen
	}
	return nil
}

func (dd *DatabaseDescription) unmarshalBody(b []byte, v Version) error {
	base := ddLenV2
	if v == V3 {
		base = ddLenV3
	}
	if l := len(b); l < base {
		return fmt.Errorf("not enough bytes for DatabaseDescription: %d: %w", l, errParse)
	}

	switch v {
	case V2:
		dd.InterfaceMTU = binary.BigEndian.Uint16(b[0:2])
		dd.Options = uint32(b[2])
		dd.Flags = DDFlags(b[3])
		dd.SequenceNumber = binary.BigEndian.Uint32(b[4:8])
	case V3:
		dd.Options = binary.BigEndian.Uint32(b[0:4]) & 0x00ffffff
		dd.InterfaceMTU = binary.BigEndian.Uint16(b[4:6])
		dd.Flags = DDFlags(b[7])
		dd.SequenceNumber = binary.BigEndian.Uint32(b[8:12])
	}

	rest := b[base:]
	if len(rest)%lsaHeaderWireLen != 0 {
		return fmt.Errorf("DatabaseDescription LSA headers misaligned: %w", errParse)
	}
	n := len(rest) / lsaHeaderWireLen
	dd.LSAs = make([]LSAHeader, 0, n)
	for i := 0; i < n; i++ {
		start := i * lsaHeaderWireLen
		h, err := parseLSAHeader(rest[start:start+lsaHeaderWireLen], v)
		if err != nil {
			return err
		}
		dd.LSAs = append(dd.LSAs, h)
	}
	return nil
}

// A LinkStateRequest lists the (type, link-state-id, advertising
// router) triples being requested; the wire encoding of a triple
// differs only in how Type is packed (raw LSType in v2 vs the 16-bit
// code in v3), handled by triple(Un)marshal in lsawire.go.
type LinkStateRequest struct {
	Triples []Triple
}

func (r *LinkStateRequest) wireLen(v Version) int { return 12 * len(r.Triples) }

func (r *LinkStateRequest) marshalBody(b []byte, v Version) error {
	off := 0
	for _, t := range r.Triples {
		marshalTriple(b[off:off+12], v, t)
		off += 12
	}
	return nil
}

func (r *LinkStateRequest) unmarshalBody(b []byte, v Version) error {
	if len(b)%12 != 0 {
		return fmt.Errorf("LinkStateRequest entries misaligned: %w", errParse)
	}
	n := len(b) / 12
	r.Triples = make([]Triple, 0, n)
	for i := 0; i < n; i++ {
		start := i * 12
		t, err := parseTriple(b[start:start+12], v)
		if err != nil {
			return err
		}
		r.Triples = append(r.Triples, t)
	}
	return nil
}

// A LinkStateAcknowledgement carries one LSAHeader per acknowledged
// LSA.
type LinkStateAcknowledgement struct {
	LSAs []LSAHeader
}

func (a *LinkStateAcknowledgement) wireLen(v Version) int { return lsaHeaderWireLen * len(a.LSAs) }

func (a *LinkStateAcknowledgement) marshalBody(b []byte, v Version) error {
	off := 0
	for i := range a.LSAs {
		marshalLSAHeader(b[off:off+lsaHeaderWireLen], v, a.LSAs[i])
		off += lsaHeaderWireLen
	}
	return nil
}

func (a *LinkStateAcknowledgement) unmarshalBody(b []byte, v Version) error {
	if len(b)%lsaHeaderWireLen != 0 {
		return fmt.Errorf("LinkStateAcknowledgement headers misaligned: %w", errParse)
	}
	n := len(b) / lsaHeaderWireLen
	a.LSAs = make([]LSAHeader, 0, n)
	for i := 0; i < n; i++ {
		start := i * lsaHeaderWireLen
		h, err := parseLSAHeader(b[start:start+lsaHeaderWireLen], v)
		if err != nil {
			return err
		}
		a.LSAs = append(a.LSAs, h)
	}
	return nil
}

// LinkStateUpdate carries full LSAs (header plus body); marshaling
// its variable-length, type-dependent bodies is handled in
// lsawire.go's MarshalLSA/ParseLSA.
type LinkStateUpdate struct {
	LSAs []*LSA
}

func uint16Seconds(b []byte) time.Duration {
	return time.Duration(binary.BigEndian.Uint16(b)) * time.Second
}

func putUint16Seconds(b []byte, d time.Duration) {
	binary.BigEndian.PutUint16(b, uint16(d.Round(time.Second).Seconds()))
}

func uint32Seconds(b []byte) time.Duration {
	return time.Duration(binary.BigEndian.Uint32(b)) * time.Second
}

func putUint32Seconds(b []byte, d time.Duration) {
	binary.BigEndian.PutUint32(b, uint32(d.Round(time.Second).Seconds()))
}

// addrToV6Bytes renders addr (assumed IPv6 or the zero value) as 16
// bytes for OSPFv3 forwarding-address encoding.
func addrToV6Bytes(addr netip.Addr) [16]byte {
	if !addr.IsValid() {
		return [16]byte{}
	}
	return addr.As16()
}
