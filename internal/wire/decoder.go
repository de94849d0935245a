package wire

import "fmt"

// maxNestingDepth bounds recursive skip/walk so corrupted buffers cannot
// exhaust the stack.
const maxNestingDepth = 64

// Decoder pulls tagged envelopes from a Reader. Unknown members are
// consumed through Skip using their self-description, so decoding stays
// tolerant of members added or removed across schema versions.
type Decoder struct {
	r            *Reader
	reg          *Registry
	flags        Flags
	logicVersion int32
	depth        int
}

func NewDecoder(r *Reader) *Decoder {
	return &Decoder{r: r}
}

func (d *Decoder) Reader() *Reader {
	return d.r
}

func (d *Decoder) LogicVersion() int32 {
	return d.logicVersion
}

// NextMember consumes the next member id inside a struct body.
// A zero id is the end-of-members marker.
func (d *Decoder) NextMember() (uint64, error) {
	return d.r.ReadVarUint()
}

func (d *Decoder) readTag() (Tag, error) {
	b, err := d.r.ReadUint8()
	if err != nil {
		return 0, err
	}
	t := Tag(b)
	if err := checkTag(t); err != nil {
		return 0, err
	}
	return t, nil
}

func (d *Decoder) expect(want Tag) (Tag, error) {
	t, err := d.readTag()
	if err != nil {
		return 0, err
	}
	if t != want && t != TagNull {
		return 0, fmt.Errorf("%w: got %s, want %s", ErrTagMismatch, t, want)
	}
	return t, nil
}

func (d *Decoder) Int() (int64, error) {
	t, err := d.expect(TagVarInt)
	if err != nil || t == TagNull {
		return 0, err
	}
	return d.r.ReadVarInt()
}

func (d *Decoder) Bool() (bool, error) {
	v, err := d.Int()
	return v != 0, err
}

func (d *Decoder) Float() (float64, error) {
	t, err := d.expect(TagFloat64)
	if err != nil || t == TagNull {
		return 0, err
	}
	return d.r.ReadFloat64()
}

// Str decodes a string value; a null envelope yields "".
func (d *Decoder) Str() (string, error) {
	t, err := d.expect(TagString)
	if err != nil || t == TagNull {
		return "", err
	}
	return d.r.ReadString()
}

// Bytes decodes a byte-slice value; a null envelope yields nil.
func (d *Decoder) Bytes() ([]byte, error) {
	t, err := d.expect(TagBytes)
	if err != nil || t == TagNull {
		return nil, err
	}
	return d.r.ReadBytes()
}

// Struct decodes a struct value. body must consume members until it sees
// the zero end marker from NextMember. A null envelope skips body.
func (d *Decoder) Struct(body func(*Decoder) error) error {
	t, err := d.expect(TagStruct)
	if err != nil || t == TagNull {
		return err
	}
	return d.nested(func() error { return body(d) })
}

// Variant decodes a polymorphic value through the resolver. Both a null
// envelope and a zero variant code yield a nil message.
func (d *Decoder) Variant() (Message, error) {
	t, err := d.expect(TagAbstract)
	if err != nil || t == TagNull {
		return nil, err
	}
	code, err := d.r.ReadVarUint()
	if err != nil {
		return nil, err
	}
	if code == 0 {
		return nil, nil
	}
	if d.reg == nil {
		return nil, ErrNilResolver
	}
	msg, err := d.reg.New(code)
	if err != nil {
		return nil, err
	}
	if err := d.nested(func() error { return msg.UnmarshalTagged(d) }); err != nil {
		return nil, err
	}
	return msg, nil
}

// List decodes a sequence, invoking elem once per element. elem must
// consume exactly one value per call.
func (d *Decoder) List(elem func(*Decoder, int) error) error {
	t, err := d.expect(TagList)
	if err != nil || t == TagNull {
		return err
	}
	n, err := d.count()
	if err != nil {
		return err
	}
	return d.nested(func() error {
		for i := 0; i < n; i++ {
			if err := elem(d, i); err != nil {
				return err
			}
		}
		return nil
	})
}

// Map decodes a key/value collection; entry must consume one key value
// followed by one value value per call.
func (d *Decoder) Map(entry func(*Decoder, int) error) error {
	t, err := d.expect(TagMap)
	if err != nil || t == TagNull {
		return err
	}
	n, err := d.count()
	if err != nil {
		return err
	}
	return d.nested(func() error {
		for i := 0; i < n; i++ {
			if err := entry(d, i); err != nil {
				return err
			}
		}
		return nil
	})
}

// count reads a collection count and sanity-checks it against the bytes
// that remain. Every element is at least one byte on the wire.
func (d *Decoder) count() (int, error) {
	n, err := d.r.ReadVarUint()
	if err != nil {
		return 0, err
	}
	if n > uint64(d.r.Remaining()) {
		return 0, fmt.Errorf("%w: count %d with %d bytes remaining", ErrLengthOverrun, n, d.r.Remaining())
	}
	return int(n), nil
}

func (d *Decoder) nested(fn func() error) error {
	d.depth++
	if d.depth > maxNestingDepth {
		return ErrNestingTooDeep
	}
	err := fn()
	d.depth--
	return err
}

// Skip consumes one whole tagged value of any shape using only its
// self-description. This is the member-tolerance path: removed or
// not-yet-known members decode through here without error.
func (d *Decoder) Skip() error {
	t, err := d.readTag()
	if err != nil {
		return err
	}
	return d.skipPayload(t)
}

func (d *Decoder) skipPayload(t Tag) error {
	switch t {
	case TagNull:
		return nil
	case TagVarInt:
		_, err := d.r.ReadVarUint()
		return err
	case TagFloat64:
		_, err := d.r.ReadRaw(8)
		return err
	case TagString, TagBytes:
		_, err := d.r.readPrefixed()
		return err
	case TagStruct:
		return d.nested(d.skipMembers)
	case TagAbstract:
		code, err := d.r.ReadVarUint()
		if err != nil {
			return err
		}
		if code == 0 {
			return nil
		}
		return d.nested(d.skipMembers)
	case TagList:
		n, err := d.count()
		if err != nil {
			return err
		}
		return d.nested(func() error {
			for i := 0; i < n; i++ {
				if err := d.Skip(); err != nil {
					return err
				}
			}
			return nil
		})
	case TagMap:
		n, err := d.count()
		if err != nil {
			return err
		}
		return d.nested(func() error {
			for i := 0; i < n; i++ {
				if err := d.Skip(); err != nil {
					return err
				}
				if err := d.Skip(); err != nil {
					return err
				}
			}
			return nil
		})
	default:
		return fmt.Errorf("%w: %d", ErrUnknownTag, uint8(t))
	}
}

func (d *Decoder) skipMembers() error {
	for {
		id, err := d.NextMember()
		if err != nil {
			return err
		}
		if id == 0 {
			return nil
		}
		if err := d.Skip(); err != nil {
			return err
		}
	}
}
