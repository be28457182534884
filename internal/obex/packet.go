package obex

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf16"
)

// Request opcodes. The high bit marks the final packet of a request.
const (
	OpConnect    byte = 0x80
	OpDisconnect byte = 0x81
	OpPut        byte = 0x02
	OpPutFinal   byte = 0x82
	OpGet        byte = 0x03
	OpGetFinal   byte = 0x83
	OpSetPath    byte = 0x85
	OpAbort      byte = 0xFF

	FinalBit byte = 0x80
)

// Version is the OBEX protocol version carried in CONNECT packets (1.0).
const Version byte = 0x10

// Header identifiers used by the message notification profile.
const (
	HeaderName         byte = 0x01
	HeaderType         byte = 0x42
	HeaderTarget       byte = 0x46
	HeaderBody         byte = 0x48
	HeaderEndOfBody    byte = 0x49
	HeaderWho          byte = 0x4A
	HeaderAppParams    byte = 0x4C
	HeaderLength       byte = 0xC3
	HeaderConnectionID byte = 0xCB
)

// header encodings, selected by the two high bits of the header id
const (
	encUnicode = 0x00
	encBytes   = 0x40
	encByte    = 0x80
	encUint32  = 0xC0
)

const (
	// MinPacketSize is the smallest maximum packet length a peer may announce.
	MinPacketSize = 255
	// MaxPacketSize is the largest packet the 16-bit length field can describe.
	MaxPacketSize = 0xFFFF

	packetPrefixLen = 3
)

var (
	ErrShortPacket   = errors.New("obex: short packet")
	ErrPacketLength  = errors.New("obex: packet length mismatch")
	ErrPacketTooBig  = errors.New("obex: packet exceeds maximum length")
	ErrMalformedHead = errors.New("obex: malformed header")
)

// Header is a single OBEX header. Value holds the raw encoded value without
// the header id and length prefix.
type Header struct {
	ID    byte
	Value []byte
}

// Headers is an ordered header list.
type Headers []Header

// Get returns the first header value with the given id.
func (h Headers) Get(id byte) ([]byte, bool) {
	for _, hd := range h {
		if hd.ID == id {
			return hd.Value, true
		}
	}
	return nil, false
}

// Text decodes a text header. Unicode headers are UTF-16BE and byte-sequence
// headers (Type) are ASCII; both are null terminated.
func (h Headers) Text(id byte) string {
	v, ok := h.Get(id)
	if !ok {
		return ""
	}
	if id&0xC0 == encUnicode {
		return decodeUnicode(v)
	}
	for len(v) > 0 && v[len(v)-1] == 0 {
		v = v[:len(v)-1]
	}
	return string(v)
}

// Uint32 returns a four-byte header value.
func (h Headers) Uint32(id byte) (uint32, bool) {
	v, ok := h.Get(id)
	if !ok || len(v) != 4 {
		return 0, false
	}
	return binary.BigEndian.Uint32(v), true
}

// Body concatenates every Body and EndOfBody value in order.
func (h Headers) Body() []byte {
	var out []byte
	for _, hd := range h {
		if hd.ID == HeaderBody || hd.ID == HeaderEndOfBody {
			out = append(out, hd.Value...)
		}
	}
	return out
}

// UnicodeHeader builds a null-terminated UTF-16BE header.
func UnicodeHeader(id byte, s string) Header {
	if s == "" {
		return Header{ID: id}
	}
	units := utf16.Encode([]rune(s))
	b := make([]byte, 0, len(units)*2+2)
	for _, u := range units {
		b = binary.BigEndian.AppendUint16(b, u)
	}
	b = append(b, 0, 0)
	return Header{ID: id, Value: b}
}

// TypeHeader builds the null-terminated ASCII Type header.
func TypeHeader(mime string) Header {
	return Header{ID: HeaderType, Value: append([]byte(mime), 0)}
}

// BytesHeader builds a byte-sequence header.
func BytesHeader(id byte, v []byte) Header {
	return Header{ID: id, Value: append([]byte(nil), v...)}
}

// Uint32Header builds a four-byte header.
func Uint32Header(id byte, v uint32) Header {
	return Header{ID: id, Value: binary.BigEndian.AppendUint32(nil, v)}
}

func decodeUnicode(v []byte) string {
	units := make([]uint16, 0, len(v)/2)
	for i := 0; i+1 < len(v); i += 2 {
		u := binary.BigEndian.Uint16(v[i:])
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units))
}

// Packet is a decoded OBEX request or response. Code is the opcode for
// requests and the response code for responses. Prefix carries the
// opcode-specific fixed fields that precede the headers.
type Packet struct {
	Code    byte
	Prefix  []byte
	Headers Headers
}

// Encode serializes p into its wire form.
func (p Packet) Encode() ([]byte, error) {
	size := packetPrefixLen + len(p.Prefix)
	for _, h := range p.Headers {
		size += headerSize(h)
	}
	if size > MaxPacketSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrPacketTooBig, size)
	}
	b := make([]byte, 0, size)
	b = append(b, p.Code)
	b = binary.BigEndian.AppendUint16(b, uint16(size))
	b = append(b, p.Prefix...)
	for _, h := range p.Headers {
		b = appendHeader(b, h)
	}
	return b, nil
}

func headerSize(h Header) int {
	switch h.ID & 0xC0 {
	case encByte:
		return 2
	case encUint32:
		return 5
	default:
		return 3 + len(h.Value)
	}
}

func appendHeader(b []byte, h Header) []byte {
	b = append(b, h.ID)
	switch h.ID & 0xC0 {
	case encByte:
		var v byte
		if len(h.Value) > 0 {
			v = h.Value[0]
		}
		return append(b, v)
	case encUint32:
		var v [4]byte
		copy(v[:], h.Value)
		return append(b, v[:]...)
	default:
		b = binary.BigEndian.AppendUint16(b, uint16(3+len(h.Value)))
		return append(b, h.Value...)
	}
}

// requestPrefixLen returns the number of fixed bytes following the length
// field of a request with the given opcode.
func requestPrefixLen(op byte) int {
	switch op {
	case OpConnect:
		return 4
	case OpSetPath:
		return 2
	default:
		return 0
	}
}

// DecodeRequest parses a request packet.
func DecodeRequest(b []byte) (Packet, error) {
	if len(b) < packetPrefixLen {
		return Packet{}, ErrShortPacket
	}
	return decode(b, requestPrefixLen(b[0]))
}

// DecodeResponse parses the response to a request sent with opcode op.
func DecodeResponse(b []byte, op byte) (Packet, error) {
	n := 0
	if op == OpConnect {
		n = 4
	}
	return decode(b, n)
}

func decode(b []byte, prefixLen int) (Packet, error) {
	if len(b) < packetPrefixLen+prefixLen {
		return Packet{}, ErrShortPacket
	}
	if n := int(binary.BigEndian.Uint16(b[1:3])); n != len(b) {
		return Packet{}, fmt.Errorf("%w: header says %d, got %d", ErrPacketLength, n, len(b))
	}
	p := Packet{Code: b[0]}
	if prefixLen > 0 {
		p.Prefix = append([]byte(nil), b[3:3+prefixLen]...)
	}
	hs, err := parseHeaders(b[3+prefixLen:])
	if err != nil {
		return Packet{}, err
	}
	p.Headers = hs
	return p, nil
}

func parseHeaders(b []byte) (Headers, error) {
	var out Headers
	for len(b) > 0 {
		id := b[0]
		switch id & 0xC0 {
		case encByte:
			if len(b) < 2 {
				return nil, ErrMalformedHead
			}
			out = append(out, Header{ID: id, Value: []byte{b[1]}})
			b = b[2:]
		case encUint32:
			if len(b) < 5 {
				return nil, ErrMalformedHead
			}
			out = append(out, Header{ID: id, Value: append([]byte(nil), b[1:5]...)})
			b = b[5:]
		default:
			if len(b) < 3 {
				return nil, ErrMalformedHead
			}
			n := int(binary.BigEndian.Uint16(b[1:3]))
			if n < 3 || n > len(b) {
				return nil, fmt.Errorf("%w: id 0x%02x length %d", ErrMalformedHead, id, n)
			}
			out = append(out, Header{ID: id, Value: append([]byte(nil), b[3:n]...)})
			b = b[n:]
		}
	}
	return out, nil
}

// ConnectPrefix builds the CONNECT fixed fields: version, flags and the
// maximum packet length the sender can receive.
func ConnectPrefix(maxPacket uint16) []byte {
	return []byte{Version, 0x00, byte(maxPacket >> 8), byte(maxPacket)}
}

// ConnectMaxPacket extracts the announced maximum packet length from a
// CONNECT prefix.
func ConnectMaxPacket(prefix []byte) (uint16, bool) {
	if len(prefix) != 4 {
		return 0, false
	}
	return binary.BigEndian.Uint16(prefix[2:4]), true
}

// ParseAppParams decodes an application parameters header value, a
// sequence of tag, length, value triplets.
func ParseAppParams(b []byte) (map[byte][]byte, error) {
	out := make(map[byte][]byte)
	for len(b) > 0 {
		if len(b) < 2 {
			return nil, fmt.Errorf("%w: truncated application parameter", ErrMalformedHead)
		}
		tag, n := b[0], int(b[1])
		if len(b) < 2+n {
			return nil, fmt.Errorf("%w: application parameter 0x%02x overruns header", ErrMalformedHead, tag)
		}
		out[tag] = append([]byte(nil), b[2:2+n]...)
		b = b[2+n:]
	}
	return out, nil
}

// AppParam encodes a single application parameter triplet.
func AppParam(tag byte, value []byte) []byte {
	return append([]byte{tag, byte(len(value))}, value...)
}
