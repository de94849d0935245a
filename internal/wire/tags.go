package wire

import "fmt"

// Tag is the wire-type byte that prefixes every encoded value.
// Each tagged value is self-describing: the tag plus any length/count
// prefix is enough to walk the payload without knowing the source type.
type Tag uint8

const (
	TagNull     Tag = 0 // null reference, empty payload
	TagVarInt   Tag = 1 // zigzag varint (ints, bools, enums)
	TagFloat64  Tag = 2 // 8 bytes big-endian IEEE 754
	TagString   Tag = 3 // varuint length + UTF-8 bytes
	TagBytes    Tag = 4 // varuint length + raw bytes
	TagStruct   Tag = 5 // [member id varuint >= 1][tagged value]..., id 0 terminates
	TagAbstract Tag = 6 // varuint variant code (0 == null) + struct body
	TagList     Tag = 7 // varuint count + count tagged values
	TagMap      Tag = 8 // varuint count + count (tagged key, tagged value) pairs
)

func (t Tag) String() string {
	switch t {
	case TagNull:
		return "Null"
	case TagVarInt:
		return "VarInt"
	case TagFloat64:
		return "Float64"
	case TagString:
		return "String"
	case TagBytes:
		return "Bytes"
	case TagStruct:
		return "Struct"
	case TagAbstract:
		return "Abstract"
	case TagList:
		return "List"
	case TagMap:
		return "Map"
	default:
		return fmt.Sprintf("Tag(%d)", uint8(t))
	}
}

// IsPrimitive reports whether a tag encodes a leaf value.
func (t Tag) IsPrimitive() bool {
	switch t {
	case TagNull, TagVarInt, TagFloat64, TagString, TagBytes:
		return true
	default:
		return false
	}
}

func checkTag(t Tag) error {
	if t > TagMap {
		return fmt.Errorf("%w: %d", ErrUnknownTag, uint8(t))
	}
	return nil
}
