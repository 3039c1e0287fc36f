package ospf

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

// lsTypeToWireV3 maps the normalized LSType to its RFC5340 appendix
// A.4.2.1 16-bit code, which embeds the U-bit (LSA handling) and S1/S2
// flooding-scope bits alongside the function code.
func lsTypeToWireV3(t LSType) (uint16, error) {
	switch t {
	case RouterLSA:
		return 0x2001, nil
	case NetworkLSA:
		return 0x2002, nil
	case SummaryNetLSA:
		return 0x2003, nil
	case SummaryASBRLSA:
		return 0x2004, nil
	case ASExternalLSA:
		return 0x4005, nil
	case Type7LSA:
		return 0x2007, nil
	case LinkLSA:
		return 0x0008, nil
	case IntraAreaPrefixLSA:
		return 0x2009, nil
	default:
		return 0, fmt.Errorf("ospf: LSType %v has no OSPFv3 wire code: %w", t, errMarshal)
	}
}

func wireToLSTypeV3(code uint16) (LSType, error) {
	switch code {
	case 0x2001:
		return RouterLSA, nil
	case 0x2002:
		return NetworkLSA, nil
	case 0x2003:
		return SummaryNetLSA, nil
	case 0x2004:
		return SummaryASBRLSA, nil
	case 0x4005:
		return ASExternalLSA, nil
	case 0x2007:
		return Type7LSA, nil
	case 0x0008:
		return LinkLSA, nil
	case 0x2009:
		return IntraAreaPrefixLSA, nil
	default:
		return 0, fmt.Errorf("ospf: unrecognized OSPFv3 LS type code %#04x: %w", code, errParse)
	}
}

// lsTypeToWireV2 maps the normalized LSType to its RFC2328 appendix
// A.4.1 one-byte code; Type7LSA's code 7 is defined by RFC3101
// section 2.
func lsTypeToWireV2(t LSType) (uint8, error) {
	switch t {
	case RouterLSA:
		return 1, nil
	case NetworkLSA:
		return 2, nil
	case SummaryNetLSA:
		return 3, nil
	case SummaryASBRLSA:
		return 4, nil
	case ASExternalLSA:
		return 5, nil
	case Type7LSA:
		return 7, nil
	default:
		return 0, fmt.Errorf("ospf: LSType %v has no OSPFv2 wire code: %w", t, errMarshal)
	}
}

func wireToLSTypeV2(code uint8) (LSType, error) {
	switch code {
	case 1:
		return RouterLSA, nil
	case 2:
		return NetworkLSA, nil
	case 3:
		return SummaryNetLSA, nil
	case 4:
		return SummaryASBRLSA, nil
	case 5:
		return ASExternalLSA, nil
	case 7:
		return Type7LSA, nil
	default:
		return 0, fmt.Errorf("ospf: unrecognized OSPFv2 LS type code %d: %w", code, errParse)
	}
}

// marshalTriple packs t into the 12-byte form used by Link State
// Request packets (RFC2328 appendix A.4, RFC5340 appendix A.3.4): a
// 32-bit LS type field (only the low byte/16 bits meaningful) followed
// by the 4-byte link-state ID and advertising router.
func marshalTriple(b []byte, v Version, t Triple) error {
	var code uint32
	if v == V3 {
		c, err := lsTypeToWireV3(t.Type)
		if err != nil {
			return err
		}
		code = uint32(c)
	} else {
		c, err := lsTypeToWireV2(t.Type)
		if err != nil {
			return err
		}
		code = uint32(c)
	}
	binary.BigEndian.PutUint32(b[0:4], code)
	copy(b[4:8], t.LinkStateID[:])
	copy(b[8:12], t.AdvertisingRouter[:])
	return nil
}

func parseTriple(b []byte, v Version) (Triple, error) {
	code := binary.BigEndian.Uint32(b[0:4])
	var (
		lt  LSType
		err error
	)
	if v == V3 {
		lt, err = wireToLSTypeV3(uint16(code))
	} else {
		lt, err = wireToLSTypeV2(uint8(code))
	}
	if err != nil {
		return Triple{}, err
	}

	t := Triple{Type: lt}
	copy(t.LinkStateID[:], b[4:8])
	copy(t.AdvertisingRouter[:], b[8:12])
	return t, nil
}

// marshalLSAHeader packs h into the 20-byte LSA header common to both
// versions; the byte layout differs only in whether byte 2 carries an
// Options octet (v2) or the LS type's high byte (v3).
func marshalLSAHeader(b []byte, v Version, h LSAHeader) error {
	putUint16Seconds(b[0:2], h.Age)
	binary.BigEndian.PutUint32(b[12:16], uint32(h.SequenceNumber))
	binary.BigEndian.PutUint16(b[16:18], h.Checksum)
	binary.BigEndian.PutUint16(b[18:20], h.Length)
	copy(b[4:8], h.LinkStateID[:])
	copy(b[8:12], h.AdvertisingRouter[:])

	if v == V3 {
		code, err := lsTypeToWireV3(h.Type)
		if err != nil {
			return err
		}
		binary.BigEndian.PutUint16(b[2:4], code)
		return nil
	}

	code, err := lsTypeToWireV2(h.Type)
	if err != nil {
		return err
	}
	b[2] = uint8(h.Options)
	b[3] = code
	return nil
}

func parseLSAHeader(b []byte, v Version) (LSAHeader, error) {
	h := LSAHeader{
		Age:            uint16Seconds(b[0:2]),
		SequenceNumber: int32(binary.BigEndian.Uint32(b[12:16])),
		Checksum:       binary.BigEndian.Uint16(b[16:18]),
		Length:         binary.BigEndian.Uint16(b[18:20]),
	}
	copy(h.LinkStateID[:], b[4:8])
	copy(h.AdvertisingRouter[:], b[8:12])

	if v == V3 {
		code := binary.BigEndian.Uint16(b[2:4])
		t, err := wireToLSTypeV3(code)
		if err != nil {
			return LSAHeader{}, err
		}
		h.Type = t
		return h, nil
	}

	h.Options = uint32(b[2])
	t, err := wireToLSTypeV2(b[3])
	if err != nil {
		return LSAHeader{}, err
	}
	h.Type = t
	return h, nil
}

// MarshalLSA encodes lsa (header and type-dispatched body) to wire
// bytes for address family v, computing Length as it goes since the
// header's Length field must reflect the final size.
func MarshalLSA(v Version, lsa *LSA) ([]byte, error) {
	body, err := marshalBody(v, lsa.Body)
	if err != nil {
		return nil, fmt.Errorf("ospf: failed to marshal %v body: %w", lsa.Header.Type, err)
	}

	total := lsaHeaderWireLen + len(body)
	lsa.Header.Length = uint16(total)

	b := make([]byte, total)
	if err := marshalLSAHeader(b[:lsaHeaderWireLen], v, lsa.Header); err != nil {
		return nil, err
	}
	copy(b[lsaHeaderWireLen:], body)
	return b, nil
}

// ParseLSA decodes a full LSA (header plus type-dispatched body) from
// wire bytes for address family v.
func ParseLSA(v Version, b []byte) (*LSA, error) {
	if len(b) < lsaHeaderWireLen {
		return nil, fmt.Errorf("not enough bytes for LSA header: %d: %w", len(b), errParse)
	}
	h, err := parseLSAHeader(b[:lsaHeaderWireLen], v)
	if err != nil {
		return nil, err
	}
	if int(h.Length) > len(b) {
		return nil, fmt.Errorf("LSA length %d exceeds %d available bytes: %w", h.Length, len(b), errParse)
	}

	body, err := unmarshalBody(v, h.Type, b[lsaHeaderWireLen:h.Length])
	if err != nil {
		return nil, fmt.Errorf("ospf: failed to parse %v body: %w", h.Type, err)
	}

	return &LSA{Header: h, Body: body}, nil
}

// MarshalUpdate encodes a Link State Update packet: a 4-byte LSA count
// followed by each LSA in full (RFC2328 appendix A.3.5, RFC5340
// appendix A.3.5), since Link State Update carries variable-length,
// type-dispatched LSA bodies that the shared WireMessage interface in
// wire.go cannot express.
func MarshalUpdate(v Version, h Header, u *LinkStateUpdate) ([]byte, error) {
	encoded := make([][]byte, len(u.LSAs))
	bodyLen := 4
	for i, lsa := range u.LSAs {
		b, err := MarshalLSA(v, lsa)
		if err != nil {
			return nil, err
		}
		encoded[i] = b
		bodyLen += len(b)
	}

	total := headerLen(v) + bodyLen
	out := make([]byte, total)
	marshalHeader(out, v, h, ptLinkStateUpdate, uint16(total))

	body := out[headerLen(v):]
	binary.BigEndian.PutUint32(body, uint32(len(u.LSAs)))
	off := 4
	for _, b := range encoded {
		off += copy(body[off:], b)
	}
	return out, nil
}

// ParseUpdate decodes a Link State Update packet body (the bytes after
// the common header, as returned by ParseWireMessage).
func ParseUpdate(v Version, body []byte) (*LinkStateUpdate, error) {
	if len(body) < 4 {
		return nil, fmt.Errorf("link state update: %d bytes too short for count: %w", len(body), errParse)
	}
	n := binary.BigEndian.Uint32(body)
	u := &LinkStateUpdate{LSAs: make([]*LSA, 0, n)}

	off := 4
	for i := uint32(0); i < n; i++ {
		if off+lsaHeaderWireLen > len(body) {
			return nil, fmt.Errorf("link state update: truncated LSA %d: %w", i, errParse)
		}
		h, err := parseLSAHeader(body[off:off+lsaHeaderWireLen], v)
		if err != nil {
			return nil, err
		}
		if off+int(h.Length) > len(body) {
			return nil, fmt.Errorf("link state update: LSA %d length %d exceeds remaining bytes: %w", i, h.Length, errParse)
		}
		lsa, err := ParseLSA(v, body[off:off+int(h.Length)])
		if err != nil {
			return nil, err
		}
		u.LSAs = append(u.LSAs, lsa)
		off += int(h.Length)
	}
	return u, nil
}

func marshalBody(v Version, body Body) ([]byte, error) {
	switch bd := body.(type) {
	case *RouterLSABody:
		return marshalRouterLSABody(v, bd), nil
	case *NetworkLSABody:
		return marshalNetworkLSABody(v, bd), nil
	case *SummaryLSABody:
		return marshalSummaryLSABody(v, bd), nil
	case *ASExternalLSABody:
		return marshalASExternalLSABody(v, bd), nil
	case *LinkLSABody:
		return marshalLinkLSABody(bd), nil
	case *IntraAreaPrefixLSABody:
		return marshalIntraAreaPrefixLSABody(bd), nil
	default:
		return nil, fmt.Errorf("ospf: unknown LSA body type %T: %w", body, errMarshal)
	}
}

func unmarshalBody(v Version, t LSType, b []byte) (Body, error) {
	switch t {
	case RouterLSA:
		return unmarshalRouterLSABody(v, b)
	case NetworkLSA:
		return unmarshalNetworkLSABody(v, b)
	case SummaryNetLSA, SummaryASBRLSA:
		return unmarshalSummaryLSABody(v, t, b)
	case ASExternalLSA, Type7LSA:
		return unmarshalASExternalLSABody(v, b)
	case LinkLSA:
		return unmarshalLinkLSABody(b)
	case IntraAreaPrefixLSA:
		return unmarshalIntraAreaPrefixLSABody(b)
	default:
		return nil, fmt.Errorf("ospf: unknown LSA type %v: %w", t, errParse)
	}
}

// --- Router-LSA ---

func marshalRouterLSABody(v Version, body *RouterLSABody) []byte {
	if v == V3 {
		b := make([]byte, 4)
		b[0] = routerLSABits(body.Bits)
		// b[1] reserved, Options occupy no separate field in the
		// Router-LSA body itself on v3 beyond the bits byte; the
		// 24-bit Options advertised on Hello/DD apply at the
		// interface level, not per-LSA.
		for _, l := range body.Links {
			e := make([]byte, 16)
			e[0] = byte(routerLinkTypeWire(l.Type))
			// e[1] reserved
			binary.BigEndian.PutUint16(e[2:4], l.Metric)
			binary.BigEndian.PutUint32(e[4:8], l.InterfaceID)
			binary.BigEndian.PutUint32(e[8:12], l.NeighborInterfaceID)
			copy(e[12:16], l.NeighborRouterID[:])
			b = append(b, e...)
		}
		return b
	}

	b := make([]byte, 4)
	b[0] = routerLSABits(body.Bits)
	binary.BigEndian.PutUint16(b[2:4], uint16(len(body.Links)))
	for _, l := range body.Links {
		e := make([]byte, 12)
		copy(e[0:4], l.LinkID[:])
		copy(e[4:8], l.LinkData[:])
		e[8] = byte(routerLinkTypeWire(l.Type))
		e[9] = 0 // TOS count, always zero (no TOS metrics supported)
		binary.BigEndian.PutUint16(e[10:12], l.Metric)
		b = append(b, e...)
	}
	return b
}

func unmarshalRouterLSABody(v Version, b []byte) (*RouterLSABody, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("not enough bytes for Router-LSA: %d: %w", len(b), errParse)
	}
	body := &RouterLSABody{Bits: routerLSABitsFromWire(b[0])}

	if v == V3 {
		for off := 4; off+16 <= len(b); off += 16 {
			e := b[off : off+16]
			l := RouterLink{
				Type:                routerLinkTypeFromWire(e[0]),
				Metric:              binary.BigEndian.Uint16(e[2:4]),
				InterfaceID:         binary.BigEndian.Uint32(e[4:8]),
				NeighborInterfaceID: binary.BigEndian.Uint32(e[8:12]),
			}
			copy(l.NeighborRouterID[:], e[12:16])
			body.Links = append(body.Links, l)
		}
		return body, nil
	}

	n := int(binary.BigEndian.Uint16(b[2:4]))
	off := 4
	for i := 0; i < n && off+12 <= len(b); i++ {
		e := b[off : off+12]
		l := RouterLink{Type: routerLinkTypeFromWire(e[8]), Metric: binary.BigEndian.Uint16(e[10:12])}
		copy(l.LinkID[:], e[0:4])
		copy(l.LinkData[:], e[4:8])
		body.Links = append(body.Links, l)
		off += 12
	}
	return body, nil
}

func routerLSABits(bits RouterLSABits) byte {
	var b byte
	if bits.V {
		b |= 1 << 2
	}
	if bits.E {
		b |= 1 << 1
	}
	if bits.B {
		b |= 1 << 0
	}
	return b
}

func routerLSABitsFromWire(b byte) RouterLSABits {
	return RouterLSABits{V: b&(1<<2) != 0, E: b&(1<<1) != 0, B: b&(1<<0) != 0}
}

func routerLinkTypeWire(t RouterLinkType) uint8 {
	switch t {
	case PointToPoint:
		return 1
	case Transit:
		return 2
	case StubNetwork:
		return 3
	case VirtualLink:
		return 4
	default:
		return 0
	}
}

func routerLinkTypeFromWire(b byte) RouterLinkType {
	switch b {
	case 1:
		return PointToPoint
	case 2:
		return Transit
	case 3:
		return StubNetwork
	case 4:
		return VirtualLink
	default:
		return 0
	}
}

// --- Network-LSA ---

func marshalNetworkLSABody(v Version, body *NetworkLSABody) []byte {
	if v == V3 {
		b := make([]byte, 4+4*len(body.AttachedRouters))
		binary.BigEndian.PutUint32(b[0:4], body.Options&0x00ffffff)
		for i, r := range body.AttachedRouters {
			copy(b[4+4*i:8+4*i], r[:])
		}
		return b
	}

	b := make([]byte, 4+4*len(body.AttachedRouters))
	copy(b[0:4], body.NetworkMask[:])
	for i, r := range body.AttachedRouters {
		copy(b[4+4*i:8+4*i], r[:])
	}
	return b
}

func unmarshalNetworkLSABody(v Version, b []byte) (*NetworkLSABody, error) {
	if len(b) < 4 || (len(b)-4)%4 != 0 {
		return nil, fmt.Errorf("malformed Network-LSA: %d bytes: %w", len(b), errParse)
	}
	body := &NetworkLSABody{}
	if v == V3 {
		body.Options = binary.BigEndian.Uint32(b[0:4]) & 0x00ffffff
	} else {
		copy(body.NetworkMask[:], b[0:4])
	}
	for off := 4; off+4 <= len(b); off += 4 {
		var r ID
		copy(r[:], b[off:off+4])
		body.AttachedRouters = append(body.AttachedRouters, r)
	}
	return body, nil
}

// --- Summary-LSA / Inter-Area-Prefix / Inter-Area-Router ---

func marshalSummaryLSABody(v Version, body *SummaryLSABody) []byte {
	if v == V3 {
		pb := marshalV3Prefix(body.Prefix, body.PrefixOptions)
		b := make([]byte, 4+len(pb))
		binary.BigEndian.PutUint32(b[0:4], body.Metric&0x00ffffff)
		copy(b[4:], pb)
		return b
	}

	b := make([]byte, 8)
	copy(b[0:4], body.NetworkMask[:])
	binary.BigEndian.PutUint32(b[4:8], body.Metric&0x00ffffff)
	return b
}

func unmarshalSummaryLSABody(v Version, t LSType, b []byte) (*SummaryLSABody, error) {
	body := &SummaryLSABody{}
	if v == V3 {
		if len(b) < 4 {
			return nil, fmt.Errorf("not enough bytes for Inter-Area LSA: %d: %w", len(b), errParse)
		}
		body.Metric = binary.BigEndian.Uint32(b[0:4]) & 0x00ffffff
		if t == SummaryASBRLSA {
			if len(b) < 8 {
				return nil, fmt.Errorf("not enough bytes for Inter-Area-Router-LSA: %d: %w", len(b), errParse)
			}
			copy(body.ReferencedRouter[:], b[4:8])
			return body, nil
		}
		prefix, opts, _, err := parseV3PrefixN(b[4:])
		if err != nil {
			return nil, err
		}
		body.Prefix, body.PrefixOptions = prefix, opts
		return body, nil
	}

	if len(b) < 8 {
		return nil, fmt.Errorf("not enough bytes for Summary-LSA: %d: %w", len(b), errParse)
	}
	copy(body.NetworkMask[:], b[0:4])
	body.Metric = binary.BigEndian.Uint32(b[4:8]) & 0x00ffffff
	return body, nil
}

// --- AS-External-LSA / Type-7 ---

func marshalASExternalLSABody(v Version, body *ASExternalLSABody) []byte {
	if v == V3 {
		pb := marshalV3Prefix(body.Prefix, body.PrefixOptions)
		flags := uint32(0)
		if body.EBit {
			flags |= 1 << 26
		}
		if body.HasForwardingAddr {
			flags |= 1 << 25
		}
		if body.HasRouteTag {
			flags |= 1 << 24
		}
		metricWord := flags | (body.Metric & 0x00ffffff)

		size := 4 + len(pb)
		if body.HasForwardingAddr {
			size += 16
		}
		if body.HasRouteTag {
			size += 4
		}
		b := make([]byte, size)
		binary.BigEndian.PutUint32(b[0:4], metricWord)
		off := 4
		copy(b[off:], pb)
		off += len(pb)
		if body.HasForwardingAddr {
			a := addrToV6Bytes(body.ForwardingAddr)
			copy(b[off:off+16], a[:])
			off += 16
		}
		if body.HasRouteTag {
			binary.BigEndian.PutUint32(b[off:off+4], body.RouteTag)
		}
		return b
	}

	size := 12
	if body.HasRouteTag {
		size += 4
	}
	b := make([]byte, size)
	copy(b[0:4], body.NetworkMask[:])
	flags := byte(0)
	if body.EBit {
		flags |= 1 << 7
	}
	if body.PBit {
		flags |= 1 << 0
	}
	b[4] = flags
	b[5] = byte(body.Metric >> 16)
	b[6] = byte(body.Metric >> 8)
	b[7] = byte(body.Metric)
	a4 := [4]byte{}
	if body.HasForwardingAddr && body.ForwardingAddr.Is4() {
		a4 = body.ForwardingAddr.As4()
	}
	copy(b[8:12], a4[:])
	if body.HasRouteTag {
		binary.BigEndian.PutUint32(b[12:16], body.RouteTag)
	}
	return b
}

func unmarshalASExternalLSABody(v Version, b []byte) (*ASExternalLSABody, error) {
	body := &ASExternalLSABody{}
	if v == V3 {
		if len(b) < 4 {
			return nil, fmt.Errorf("not enough bytes for AS-External-LSA: %d: %w", len(b), errParse)
		}
		word := binary.BigEndian.Uint32(b[0:4])
		body.EBit = word&(1<<26) != 0
		body.HasForwardingAddr = word&(1<<25) != 0
		body.HasRouteTag = word&(1<<24) != 0
		body.Metric = word & 0x00ffffff

		prefix, opts, n, err := parseV3PrefixN(b[4:])
		if err != nil {
			return nil, err
		}
		body.Prefix, body.PrefixOptions = prefix, opts
		off := 4 + n
		if body.HasForwardingAddr {
			if len(b) < off+16 {
				return nil, fmt.Errorf("not enough bytes for AS-External forwarding address: %w", errParse)
			}
			var a16 [16]byte
			copy(a16[:], b[off:off+16])
			body.ForwardingAddr = netip.AddrFrom16(a16)
			off += 16
		}
		if body.HasRouteTag {
			if len(b) < off+4 {
				return nil, fmt.Errorf("not enough bytes for AS-External route tag: %w", errParse)
			}
			body.RouteTag = binary.BigEndian.Uint32(b[off : off+4])
		}
		return body, nil
	}

	if len(b) < 12 {
		return nil, fmt.Errorf("not enough bytes for AS-External-LSA: %d: %w", len(b), errParse)
	}
	copy(body.NetworkMask[:], b[0:4])
	body.EBit = b[4]&(1<<7) != 0
	body.PBit = b[4]&(1<<0) != 0
	body.Metric = uint32(b[5])<<16 | uint32(b[6])<<8 | uint32(b[7])
	var fa [4]byte
	copy(fa[:], b[8:12])
	if fa != ([4]byte{}) {
		body.HasForwardingAddr = true
		body.ForwardingAddr = netip.AddrFrom4(fa)
	}
	if len(b) >= 16 {
		body.HasRouteTag = true
		body.RouteTag = binary.BigEndian.Uint32(b[12:16])
	}
	return body, nil
}

// --- Link-LSA (OSPFv3 only) ---

// marshalLinkLSABody packs body per RFC5340 appendix A.4.9: router
// priority + 24-bit options (4 bytes), link-local address (16 bytes),
// prefix count (4 bytes), then one prefix entry per advertised prefix.
func marshalLinkLSABody(body *LinkLSABody) []byte {
	a := addrToV6Bytes(body.LinkLocalAddr)
	b := make([]byte, 4+16+4)
	binary.BigEndian.PutUint32(b[0:4], uint32(body.RouterPriority)<<24|(body.Options&0x00ffffff))
	copy(b[4:20], a[:])
	binary.BigEndian.PutUint32(b[20:24], uint32(len(body.Prefixes)))

	for _, p := range body.Prefixes {
		b = append(b, marshalV3PrefixEntry(p)...)
	}
	return b
}

func unmarshalLinkLSABody(b []byte) (*LinkLSABody, error) {
	if len(b) < 24 {
		return nil, fmt.Errorf("not enough bytes for Link-LSA: %d: %w", len(b), errParse)
	}
	body := &LinkLSABody{}
	word := binary.BigEndian.Uint32(b[0:4])
	body.RouterPriority = uint8(word >> 24)
	body.Options = word & 0x00ffffff
	var a16 [16]byte
	copy(a16[:], b[4:20])
	body.LinkLocalAddr = netip.AddrFrom16(a16)

	n := int(binary.BigEndian.Uint32(b[20:24]))
	off := 24
	for i := 0; i < n; i++ {
		e, consumed, err := parseV3PrefixEntry(b[off:])
		if err != nil {
			return nil, err
		}
		body.Prefixes = append(body.Prefixes, e)
		off += consumed
	}
	return body, nil
}

// --- Intra-Area-Prefix-LSA (OSPFv3 only) ---

func marshalIntraAreaPrefixLSABody(body *IntraAreaPrefixLSABody) []byte {
	b := make([]byte, 12)
	binary.BigEndian.PutUint16(b[0:2], uint16(len(body.Prefixes)))
	code, _ := lsTypeToWireV3(body.ReferencedType)
	binary.BigEndian.PutUint16(b[2:4], code)
	copy(b[4:8], body.ReferencedLinkStateID[:])
	copy(b[8:12], body.ReferencedAdvertisingRouter[:])
	for _, p := range body.Prefixes {
		b = append(b, marshalV3PrefixEntry(p)...)
	}
	return b
}

func unmarshalIntraAreaPrefixLSABody(b []byte) (*IntraAreaPrefixLSABody, error) {
	if len(b) < 12 {
		return nil, fmt.Errorf("not enough bytes for Intra-Area-Prefix-LSA: %d: %w", len(b), errParse)
	}
	body := &IntraAreaPrefixLSABody{}
	n := int(binary.BigEndian.Uint16(b[0:2]))
	code := binary.BigEndian.Uint16(b[2:4])
	t, err := wireToLSTypeV3(code)
	if err != nil {
		return nil, err
	}
	body.ReferencedType = t
	copy(body.ReferencedLinkStateID[:], b[4:8])
	copy(body.ReferencedAdvertisingRouter[:], b[8:12])

	off := 12
	for i := 0; i < n; i++ {
		e, consumed, err := parseV3PrefixEntry(b[off:])
		if err != nil {
			return nil, err
		}
		body.Prefixes = append(body.Prefixes, e)
		off += consumed
	}
	return body, nil
}

// --- OSPFv3 prefix encoding (RFC5340 appendix A.4.1.1) ---

func marshalV3Prefix(p Prefix, opts PrefixOptions) []byte {
	bits := p.Bits()
	nbytes := (bits + 7) / 8
	b := make([]byte, 4+nbytes)
	b[0] = byte(bits)
	b[1] = byte(opts)
	// b[2:4] reserved.
	raw := p.Addr().AsSlice()
	copy(b[4:4+nbytes], raw[:nbytes])
	return b
}

func marshalV3PrefixEntry(e PrefixEntry) []byte {
	b := marshalV3Prefix(e.Prefix, e.Options)
	binary.BigEndian.PutUint16(b[2:4], e.Metric)
	return b
}

func parseV3PrefixN(b []byte) (Prefix, PrefixOptions, int, error) {
	if len(b) < 4 {
		return Prefix{}, 0, 0, fmt.Errorf("not enough bytes for OSPFv3 prefix: %d: %w", len(b), errParse)
	}
	bits := int(b[0])
	opts := PrefixOptions(b[1])
	nbytes := (bits + 7) / 8
	if len(b) < 4+nbytes {
		return Prefix{}, 0, 0, fmt.Errorf("not enough bytes for %d-bit OSPFv3 prefix: %w", bits, errParse)
	}

	var a16 [16]byte
	copy(a16[:], b[4:4+nbytes])
	addr := netip.AddrFrom16(a16)
	return PrefixFromAddr(addr, bits), opts, 4 + nbytes, nil
}

func parseV3PrefixEntry(b []byte) (PrefixEntry, int, error) {
	if len(b) < 4 {
		return PrefixEntry{}, 0, fmt.Errorf("not enough bytes for OSPFv3 prefix entry: %d: %w", len(b), errParse)
	}
	bits := int(b[0])
	opts := PrefixOptions(b[1])
	metric := binary.BigEndian.Uint16(b[2:4])
	nbytes := (bits + 7) / 8
	if len(b) < 4+nbytes {
		return PrefixEntry{}, 0, fmt.Errorf("not enough bytes for %d-bit OSPFv3 prefix entry: %w", bits, errParse)
	}

	var a16 [16]byte
	copy(a16[:], b[4:4+nbytes])
	addr := netip.AddrFrom16(a16)
	return PrefixEntry{Prefix: PrefixFromAddr(addr, bits), Options: opts, Metric: metric}, 4 + nbytes, nil
}
