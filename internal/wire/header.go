package wire

import (
	"encoding/binary"
	"fmt"
)

// PacketType discriminates framed packets on the stream.
type PacketType uint8

const (
	PacketInvalid        PacketType = 0
	PacketMessage        PacketType = 1 // application payload
	PacketPing           PacketType = 2 // keepalive probe
	PacketPong           PacketType = 3 // keepalive reply
	PacketProtocolHeader PacketType = 4 // handshake preamble marker
	PacketSessionStatus  PacketType = 5 // server status / disconnect indication
)

func (t PacketType) String() string {
	switch t {
	case PacketMessage:
		return "Message"
	case PacketPing:
		return "Ping"
	case PacketPong:
		return "Pong"
	case PacketProtocolHeader:
		return "ProtocolHeader"
	case PacketSessionStatus:
		return "SessionStatus"
	default:
		return fmt.Sprintf("PacketType(%d)", uint8(t))
	}
}

// CompressionMode says how a packet payload is compressed.
type CompressionMode uint8

const (
	CompressionNone    CompressionMode = 0
	CompressionDeflate CompressionMode = 1
)

const (
	// PacketHeaderLen is the fixed byte size of every packet prefix.
	PacketHeaderLen = 6

	// MaxPacketPayloadSize bounds decode memory use when enforcement is on.
	MaxPacketPayloadSize = 8 * 1024 * 1024
)

// PacketHeader is the fixed wire prefix of every packet.
//
// Layout: [1B type][1B compression][4B payload size big-endian]
type PacketHeader struct {
	Type        PacketType
	Compression CompressionMode
	PayloadSize int
}

// EncodePacketHeader writes the fixed header into the start of buf.
// PayloadSize must be non-negative; when enforceLimit is set it must not
// exceed MaxPacketPayloadSize.
func EncodePacketHeader(h PacketHeader, buf []byte, enforceLimit bool) error {
	if len(buf) < PacketHeaderLen {
		return fmt.Errorf("%w: have %d bytes, need %d", ErrShortBuffer, len(buf), PacketHeaderLen)
	}
	if h.PayloadSize < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeSize, h.PayloadSize)
	}
	if enforceLimit && h.PayloadSize > MaxPacketPayloadSize {
		return fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, h.PayloadSize, MaxPacketPayloadSize)
	}
	buf[0] = uint8(h.Type)
	buf[1] = uint8(h.Compression)
	binary.BigEndian.PutUint32(buf[2:6], uint32(h.PayloadSize))
	return nil
}

// DecodePacketHeader reads a fixed header starting at offset.
// Size-limit enforcement can be disabled for test and debug paths.
func DecodePacketHeader(buf []byte, offset int, enforceLimit bool) (PacketHeader, error) {
	if offset < 0 {
		return PacketHeader{}, fmt.Errorf("%w: offset %d", ErrNegativeSize, offset)
	}
	if len(buf)-offset < PacketHeaderLen {
		return PacketHeader{}, fmt.Errorf("%w: %d bytes at offset %d", ErrTruncated, len(buf)-offset, offset)
	}
	h := PacketHeader{
		Type:        PacketType(buf[offset]),
		Compression: CompressionMode(buf[offset+1]),
		PayloadSize: int(binary.BigEndian.Uint32(buf[offset+2 : offset+6])),
	}
	if h.Type == PacketInvalid || h.Type > PacketSessionStatus {
		return PacketHeader{}, fmt.Errorf("wire: invalid packet type %d", buf[offset])
	}
	if h.Compression > CompressionDeflate {
		return PacketHeader{}, fmt.Errorf("wire: invalid compression mode %d", buf[offset+1])
	}
	if enforceLimit && h.PayloadSize > MaxPacketPayloadSize {
		return PacketHeader{}, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, h.PayloadSize, MaxPacketPayloadSize)
	}
	return h, nil
}

// ProtocolStatus is carried by the connection preamble.
type ProtocolStatus uint8

const (
	StatusInvalid         ProtocolStatus = 0
	StatusClusterRunning  ProtocolStatus = 1
	StatusClusterStarting ProtocolStatus = 2
	StatusInMaintenance   ProtocolStatus = 3
)

func (s ProtocolStatus) String() string {
	switch s {
	case StatusClusterRunning:
		return "ClusterRunning"
	case StatusClusterStarting:
		return "ClusterStarting"
	case StatusInMaintenance:
		return "InMaintenance"
	default:
		return fmt.Sprintf("ProtocolStatus(%d)", uint8(s))
	}
}

const (
	protocolMagic = 0xC0DE6A3E

	// ProtocolVersion is bumped on any breaking wire change.
	ProtocolVersion = 1

	// GameMagicLen is the fixed length of the application magic string.
	GameMagicLen = 4

	// ProtocolHeaderLen is the fixed byte size of the connection preamble:
	// [4B magic][1B status][1B length + 4B game magic][1B protocol version]
	ProtocolHeaderLen = 11
)

// EncodeProtocolHeader builds the connection preamble sent once before
// packet framing begins. gameMagic must be exactly GameMagicLen bytes.
func EncodeProtocolHeader(status ProtocolStatus, gameMagic string) ([]byte, error) {
	if len(gameMagic) != GameMagicLen {
		return nil, fmt.Errorf("%w: %q", ErrBadGameMagic, gameMagic)
	}
	buf := make([]byte, ProtocolHeaderLen)
	binary.BigEndian.PutUint32(buf[0:4], protocolMagic)
	buf[4] = uint8(status)
	buf[5] = GameMagicLen
	copy(buf[6:10], gameMagic)
	buf[10] = ProtocolVersion
	return buf, nil
}

// DecodeProtocolHeader parses a preamble, returning the cluster status,
// game magic, and protocol version.
func DecodeProtocolHeader(buf []byte) (ProtocolStatus, string, uint8, error) {
	if len(buf) < ProtocolHeaderLen {
		return 0, "", 0, fmt.Errorf("%w: preamble %d bytes", ErrTruncated, len(buf))
	}
	if binary.BigEndian.Uint32(buf[0:4]) != protocolMagic {
		return 0, "", 0, fmt.Errorf("%w: 0x%08X", ErrBadMagic, binary.BigEndian.Uint32(buf[0:4]))
	}
	status := ProtocolStatus(buf[4])
	if status == StatusInvalid || status > StatusInMaintenance {
		return 0, "", 0, fmt.Errorf("wire: invalid protocol status %d", buf[4])
	}
	if buf[5] != GameMagicLen {
		return 0, "", 0, fmt.Errorf("%w: declared length %d", ErrBadGameMagic, buf[5])
	}
	return status, string(buf[6:10]), buf[10], nil
}
