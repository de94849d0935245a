package wire

import (
	"fmt"
	"sort"
	"sync"
)

// Message is an application value that travels in tagged form. Marshal
// and unmarshal are hand-written per type and addressed through a
// Registry keyed by TypeCode; no reflection is involved.
type Message interface {
	// TypeCode is the wire-level type id, unique within a Registry.
	TypeCode() uint64

	// MarshalTagged writes the struct-body members. The encoder owns the
	// envelope tag and the end-of-members marker.
	MarshalTagged(e *Encoder)

	// UnmarshalTagged consumes struct-body members through
	// Decoder.NextMember until the zero end marker, skipping unknown ids.
	UnmarshalTagged(d *Decoder) error
}

// Registry is the resolver mapping wire type codes to message
// constructors and declared schemas. Populated at startup, read-only
// afterward; safe for concurrent use once sealed by first decode.
type Registry struct {
	mu      sync.RWMutex
	byCode  map[uint64]func() Message
	schemas map[uint64]*Schema
}

func NewRegistry() *Registry {
	return &Registry{
		byCode:  make(map[uint64]func() Message),
		schemas: make(map[uint64]*Schema),
	}
}

// Register binds a type code to a constructor and an optional schema.
// Registering a duplicate code panics: codes are a compile-time contract.
func (r *Registry) Register(code uint64, newFn func() Message, schema *Schema) {
	if code == 0 {
		panic("wire: type code 0 is reserved for null")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byCode[code]; dup {
		panic(fmt.Sprintf("wire: duplicate type code %d", code))
	}
	r.byCode[code] = newFn
	if schema != nil {
		r.schemas[code] = schema
	}
}

// New constructs an empty message for a wire type code.
func (r *Registry) New(code uint64) (Message, error) {
	r.mu.RLock()
	newFn, ok := r.byCode[code]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTypeCode, code)
	}
	return newFn(), nil
}

// Schema returns the declared schema for a type code, if registered.
func (r *Registry) Schema(code uint64) (*Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[code]
	return s, ok
}

// Codes lists registered type codes in ascending order.
func (r *Registry) Codes() []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]uint64, 0, len(r.byCode))
	for c := range r.byCode {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SerializeTagged encodes one value as a self-contained tagged envelope.
func SerializeTagged(v Message, flags Flags, logicVersion int32) []byte {
	w := NewWriter(64)
	e := NewEncoder(w)
	e.flags = flags
	e.logicVersion = logicVersion
	e.StructVal(v.MarshalTagged)
	return w.Bytes()
}

// DeserializeTagged decodes one tagged envelope into v and requires the
// buffer to be fully consumed. reg may be nil when v has no polymorphic
// members.
func DeserializeTagged(data []byte, v Message, flags Flags, reg *Registry, logicVersion int32) error {
	r := NewReader(data)
	d := NewDecoder(r)
	d.reg = reg
	d.flags = flags
	d.logicVersion = logicVersion
	if err := d.Struct(func(d *Decoder) error { return v.UnmarshalTagged(d) }); err != nil {
		return err
	}
	if !r.IsFinished() {
		return fmt.Errorf("%w: %d of %d bytes consumed", ErrTrailingBytes, r.Offset(), r.Len())
	}
	return nil
}

// EncodeMessage appends a framed application message: a varuint type
// code followed by the tagged struct envelope.
func EncodeMessage(w *Writer, m Message) {
	w.WriteVarUint(m.TypeCode())
	e := NewEncoder(w)
	e.StructVal(m.MarshalTagged)
}

// DecodeMessage decodes one framed application message from a packet
// payload slice [offset, offset+payloadSize).
func DecodeMessage(buf []byte, offset, payloadSize int, reg *Registry) (Message, error) {
	if reg == nil {
		return nil, ErrNilResolver
	}
	if offset < 0 || payloadSize < 0 {
		return nil, fmt.Errorf("%w: offset %d size %d", ErrNegativeSize, offset, payloadSize)
	}
	if offset+payloadSize > len(buf) {
		return nil, fmt.Errorf("%w: payload [%d,%d) in %d-byte buffer",
			ErrLengthOverrun, offset, offset+payloadSize, len(buf))
	}
	r := NewReader(buf[offset : offset+payloadSize])
	d := NewDecoder(r)
	d.reg = reg

	code, err := r.ReadVarUint()
	if err != nil {
		return nil, err
	}
	msg, err := reg.New(code)
	if err != nil {
		return nil, err
	}
	if err := d.Struct(func(d *Decoder) error { return msg.UnmarshalTagged(d) }); err != nil {
		return nil, fmt.Errorf("wire: decode message type %d: %w", code, err)
	}
	if !r.IsFinished() {
		return nil, fmt.Errorf("%w: message type %d", ErrTrailingBytes, code)
	}
	return msg, nil
}
