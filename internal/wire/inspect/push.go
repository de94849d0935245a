package inspect

import (
	"fmt"

	"github.com/danmuck/wirelink/internal/wire"
)

// maxDepth mirrors the decoder's nesting bound.
const maxDepth = 64

// Visitor receives structural callbacks while a tagged buffer is walked
// left to right in a single pass. OnBegin and OnEnd fire exactly once
// each; after OnEnd the reader cursor sits at the end of the value (and
// at the end of the buffer when full consumption is requested).
type Visitor interface {
	OnBegin()
	OnEnd()

	// OnPrimitive reports one leaf value with its decoded payload.
	OnPrimitive(tag wire.Tag, value any, envStart, payStart, payEnd int) error

	// OnCompositeBegin opens a struct, abstract, list, or map value.
	// variantCode is meaningful for abstracts, count for lists and maps.
	OnCompositeBegin(tag wire.Tag, envStart, payStart int, variantCode uint64, count int) error

	// OnMember fires before each struct member's value callback.
	OnMember(id uint64) error
	// OnElement fires before each list element's value callback.
	OnElement(index int) error
	// OnKey and OnValue bracket each map pair's two value callbacks.
	OnKey(index int) error
	OnValue(index int) error

	// OnCompositeEnd closes the current composite. payEnd excludes the
	// end-of-members marker for structs and abstracts.
	OnCompositeEnd(payEnd, envEnd int) error
}

// Walk drives a Visitor over exactly one tagged value. With checkConsumed
// set, trailing bytes after the value are an error.
func Walk(r *wire.Reader, v Visitor, checkConsumed bool) error {
	v.OnBegin()
	p := &parser{r: r, v: v}
	if err := p.value(); err != nil {
		return err
	}
	if checkConsumed && !r.IsFinished() {
		return fmt.Errorf("%w: %d of %d bytes consumed", wire.ErrTrailingBytes, r.Offset(), r.Len())
	}
	v.OnEnd()
	return nil
}

type parser struct {
	r     *wire.Reader
	v     Visitor
	depth int
}

func (p *parser) value() error {
	envStart := p.r.Offset()
	b, err := p.r.ReadUint8()
	if err != nil {
		return err
	}
	tag := wire.Tag(b)

	switch tag {
	case wire.TagNull:
		off := p.r.Offset()
		return p.v.OnPrimitive(tag, nil, envStart, off, off)

	case wire.TagVarInt:
		payStart := p.r.Offset()
		n, err := p.r.ReadVarInt()
		if err != nil {
			return err
		}
		return p.v.OnPrimitive(tag, n, envStart, payStart, p.r.Offset())

	case wire.TagFloat64:
		payStart := p.r.Offset()
		f, err := p.r.ReadFloat64()
		if err != nil {
			return err
		}
		return p.v.OnPrimitive(tag, f, envStart, payStart, p.r.Offset())

	case wire.TagString:
		s, err := p.r.ReadString()
		if err != nil {
			return err
		}
		payEnd := p.r.Offset()
		return p.v.OnPrimitive(tag, s, envStart, payEnd-len(s), payEnd)

	case wire.TagBytes:
		raw, err := p.r.ReadBytes()
		if err != nil {
			return err
		}
		payEnd := p.r.Offset()
		return p.v.OnPrimitive(tag, raw, envStart, payEnd-len(raw), payEnd)

	case wire.TagStruct:
		if err := p.v.OnCompositeBegin(tag, envStart, p.r.Offset(), 0, 0); err != nil {
			return err
		}
		return p.members()

	case wire.TagAbstract:
		code, err := p.r.ReadVarUint()
		if err != nil {
			return err
		}
		if err := p.v.OnCompositeBegin(tag, envStart, p.r.Offset(), code, 0); err != nil {
			return err
		}
		if code == 0 {
			off := p.r.Offset()
			return p.v.OnCompositeEnd(off, off)
		}
		return p.members()

	case wire.TagList:
		n, err := p.count()
		if err != nil {
			return err
		}
		if err := p.v.OnCompositeBegin(tag, envStart, p.r.Offset(), 0, n); err != nil {
			return err
		}
		err = p.nested(func() error {
			for i := 0; i < n; i++ {
				if err := p.v.OnElement(i); err != nil {
					return err
				}
				if err := p.value(); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		off := p.r.Offset()
		return p.v.OnCompositeEnd(off, off)

	case wire.TagMap:
		n, err := p.count()
		if err != nil {
			return err
		}
		if err := p.v.OnCompositeBegin(tag, envStart, p.r.Offset(), 0, n); err != nil {
			return err
		}
		err = p.nested(func() error {
			for i := 0; i < n; i++ {
				if err := p.v.OnKey(i); err != nil {
					return err
				}
				if err := p.value(); err != nil {
					return err
				}
				if err := p.v.OnValue(i); err != nil {
					return err
				}
				if err := p.value(); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		off := p.r.Offset()
		return p.v.OnCompositeEnd(off, off)

	default:
		return fmt.Errorf("%w: %d at offset %d", wire.ErrUnknownTag, b, envStart)
	}
}

// members walks struct-body members until the zero end marker, then
// closes the composite with the marker excluded from the payload range.
func (p *parser) members() error {
	return p.nested(func() error {
		for {
			beforeMarker := p.r.Offset()
			id, err := p.r.ReadVarUint()
			if err != nil {
				return err
			}
			if id == 0 {
				return p.v.OnCompositeEnd(beforeMarker, p.r.Offset())
			}
			if err := p.v.OnMember(id); err != nil {
				return err
			}
			if err := p.value(); err != nil {
				return err
			}
		}
	})
}

func (p *parser) count() (int, error) {
	n, err := p.r.ReadVarUint()
	if err != nil {
		return 0, err
	}
	if n > uint64(p.r.Remaining()) {
		return 0, fmt.Errorf("%w: count %d with %d bytes remaining", wire.ErrLengthOverrun, n, p.r.Remaining())
	}
	return int(n), nil
}

func (p *parser) nested(fn func() error) error {
	p.depth++
	if p.depth > maxDepth {
		return wire.ErrNestingTooDeep
	}
	err := fn()
	p.depth--
	return err
}
