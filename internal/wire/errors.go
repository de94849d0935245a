package wire

import "errors"

var (
	ErrTruncated       = errors.New("wire: truncated buffer")
	ErrUnknownTag      = errors.New("wire: unknown tag byte")
	ErrTagMismatch     = errors.New("wire: unexpected tag")
	ErrLengthOverrun   = errors.New("wire: length overruns buffer")
	ErrVarintOverflow  = errors.New("wire: varint overflow")
	ErrNestingTooDeep  = errors.New("wire: nesting too deep")
	ErrTrailingBytes   = errors.New("wire: trailing bytes after value")
	ErrNegativeSize    = errors.New("wire: negative payload size")
	ErrPayloadTooLarge = errors.New("wire: payload exceeds max packet size")
	ErrBadMagic        = errors.New("wire: bad protocol magic")
	ErrBadGameMagic    = errors.New("wire: invalid game magic")
	ErrNilResolver     = errors.New("wire: nil resolver")
	ErrUnknownTypeCode = errors.New("wire: unknown message type code")
	ErrShortBuffer     = errors.New("wire: destination buffer too small")
)
