package wire

// Flags tune tagged serialization behavior.
type Flags uint32

const (
	FlagNone Flags = 0

	// FlagIncludeDebugNames is reserved for diagnostic dumps.
	FlagIncludeDebugNames Flags = 1 << 0
)

// Encoder writes tagged envelopes through a Writer. Member-level methods
// take a member id (>= 1) and are valid inside a struct body; the *Val
// methods write a bare tagged value (list elements, map keys/values).
//
// Per-type marshal functions are hand-written against this API and
// addressed through a Registry, instead of reflecting over the value.
type Encoder struct {
	w            *Writer
	flags        Flags
	logicVersion int32
}

func NewEncoder(w *Writer) *Encoder {
	return &Encoder{w: w}
}

// LogicVersion returns the schema version the caller is encoding for.
// Marshal functions may branch on it when members were added over time.
func (e *Encoder) LogicVersion() int32 {
	return e.logicVersion
}

func (e *Encoder) Flags() Flags {
	return e.flags
}

func (e *Encoder) member(id uint64) {
	e.w.WriteVarUint(id)
}

// --- member-level writes (struct bodies) ---

func (e *Encoder) Int(id uint64, v int64) {
	e.member(id)
	e.IntVal(v)
}

func (e *Encoder) Bool(id uint64, v bool) {
	e.member(id)
	e.BoolVal(v)
}

func (e *Encoder) Float(id uint64, v float64) {
	e.member(id)
	e.FloatVal(v)
}

func (e *Encoder) Str(id uint64, s string) {
	e.member(id)
	e.StrVal(s)
}

func (e *Encoder) Bytes(id uint64, p []byte) {
	e.member(id)
	e.BytesVal(p)
}

func (e *Encoder) Null(id uint64) {
	e.member(id)
	e.NullVal()
}

func (e *Encoder) Struct(id uint64, body func(*Encoder)) {
	e.member(id)
	e.StructVal(body)
}

// Variant writes a polymorphic member. A zero code encodes null; the
// body is skipped in that case.
func (e *Encoder) Variant(id uint64, code uint64, body func(*Encoder)) {
	e.member(id)
	e.VariantVal(code, body)
}

func (e *Encoder) List(id uint64, n int, elem func(*Encoder, int)) {
	e.member(id)
	e.ListVal(n, elem)
}

// Map writes n key/value pairs; entry must write exactly one key value
// followed by one value value per call.
func (e *Encoder) Map(id uint64, n int, entry func(*Encoder, int)) {
	e.member(id)
	e.MapVal(n, entry)
}

// --- value-level writes ---

func (e *Encoder) NullVal() {
	e.w.WriteUint8(uint8(TagNull))
}

func (e *Encoder) IntVal(v int64) {
	e.w.WriteUint8(uint8(TagVarInt))
	e.w.WriteVarInt(v)
}

func (e *Encoder) BoolVal(v bool) {
	var n int64
	if v {
		n = 1
	}
	e.IntVal(n)
}

func (e *Encoder) FloatVal(v float64) {
	e.w.WriteUint8(uint8(TagFloat64))
	e.w.WriteFloat64(v)
}

func (e *Encoder) StrVal(s string) {
	e.w.WriteUint8(uint8(TagString))
	e.w.WriteString(s)
}

func (e *Encoder) BytesVal(p []byte) {
	e.w.WriteUint8(uint8(TagBytes))
	e.w.WriteBytes(p)
}

func (e *Encoder) StructVal(body func(*Encoder)) {
	e.w.WriteUint8(uint8(TagStruct))
	body(e)
	e.w.WriteVarUint(0) // end-of-members marker
}

func (e *Encoder) VariantVal(code uint64, body func(*Encoder)) {
	e.w.WriteUint8(uint8(TagAbstract))
	e.w.WriteVarUint(code)
	if code == 0 {
		return
	}
	body(e)
	e.w.WriteVarUint(0)
}

func (e *Encoder) ListVal(n int, elem func(*Encoder, int)) {
	e.w.WriteUint8(uint8(TagList))
	e.w.WriteVarUint(uint64(n))
	for i := 0; i < n; i++ {
		elem(e, i)
	}
}

func (e *Encoder) MapVal(n int, entry func(*Encoder, int)) {
	e.w.WriteUint8(uint8(TagMap))
	e.w.WriteVarUint(uint64(n))
	for i := 0; i < n; i++ {
		entry(e, i)
	}
}
