package wire

// Kind classifies the declared shape of a schema node.
type Kind uint8

const (
	KindInt Kind = iota
	KindFloat
	KindString
	KindBytes
	KindStruct
	KindAbstract
	KindList
	KindMap
)

// Tag returns the wire tag a schema kind encodes as.
func (k Kind) Tag() Tag {
	switch k {
	case KindInt:
		return TagVarInt
	case KindFloat:
		return TagFloat64
	case KindString:
		return TagString
	case KindBytes:
		return TagBytes
	case KindStruct:
		return TagStruct
	case KindAbstract:
		return TagAbstract
	case KindList:
		return TagList
	case KindMap:
		return TagMap
	default:
		return TagNull
	}
}

// Schema declares the tagged shape of a type. The serializer never needs
// one (marshal functions are hand-written); schemas exist so the
// inspector can resolve member names and the differ can render paths.
type Schema struct {
	Name     string
	Kind     Kind
	Fields   []Field            // KindStruct, and Abstract variant bodies
	Elem     *Schema            // KindList element
	Key      *Schema            // KindMap key
	Value    *Schema            // KindMap value
	Variants map[uint64]*Schema // KindAbstract: variant code -> body schema
}

// Field is one declared struct member.
type Field struct {
	ID     uint64
	Name   string
	Schema *Schema
}

// FieldByID finds a declared member by its wire id.
func (s *Schema) FieldByID(id uint64) (Field, bool) {
	for _, f := range s.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}

// Matches reports whether a wire tag is compatible with this schema.
// Null matches everything: any declared shape can be a null reference.
func (s *Schema) Matches(t Tag) bool {
	return t == TagNull || t == s.Kind.Tag()
}

func IntSchema() *Schema    { return &Schema{Kind: KindInt} }
func FloatSchema() *Schema  { return &Schema{Kind: KindFloat} }
func StringSchema() *Schema { return &Schema{Kind: KindString} }
func BytesSchema() *Schema  { return &Schema{Kind: KindBytes} }

func StructSchema(name string, fields ...Field) *Schema {
	return &Schema{Name: name, Kind: KindStruct, Fields: fields}
}

func ListSchema(elem *Schema) *Schema {
	return &Schema{Kind: KindList, Elem: elem}
}

func MapSchema(key, value *Schema) *Schema {
	return &Schema{Kind: KindMap, Key: key, Value: value}
}

func AbstractSchema(name string, variants map[uint64]*Schema) *Schema {
	return &Schema{Name: name, Kind: KindAbstract, Variants: variants}
}
