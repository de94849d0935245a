package inspect

import (
	"github.com/danmuck/wirelink/internal/wire"
)

// ObjectInfo is one node of the reconstructed object tree. Offsets are
// byte positions in the inspected buffer: the envelope range covers the
// whole tagged value including its tag/length prefix, the payload range
// covers the inner bytes. A child's envelope is always fully contained
// in its parent's payload range. Built once per Inspect call over an
// immutable buffer; read-only afterward.
type ObjectInfo struct {
	Tag           wire.Tag
	EnvelopeStart int
	EnvelopeEnd   int
	PayloadStart  int
	PayloadEnd    int

	IsPrimitive bool
	Value       any    // decoded primitive payload (int64, float64, string, []byte, nil)
	VariantCode uint64 // abstract values only

	// SerializableType is resolved only when Inspect received a type hint
	// whose declared shape matches this node.
	SerializableType *wire.Schema

	Members            []Member      // struct / abstract
	ValueCollection    []*ObjectInfo // list
	KeyValueCollection []KeyValue    // map
}

// Member is one named struct member. Name is empty unless schema-resolved.
type Member struct {
	ID    uint64
	Name  string
	Value *ObjectInfo
}

// KeyValue is one map pair.
type KeyValue struct {
	Key   *ObjectInfo
	Value *ObjectInfo
}

// Inspect builds a complete ObjectInfo tree in one pass over the reader.
// typeHint may be nil; when given, matching nodes get SerializableType
// and member names filled in from the declared schema. With checkConsumed
// set, trailing bytes after the root value are an error.
func Inspect(r *wire.Reader, typeHint *wire.Schema, checkConsumed bool) (*ObjectInfo, error) {
	tb := &treeBuilder{}
	if err := Walk(r, tb, checkConsumed); err != nil {
		return nil, err
	}
	if typeHint != nil {
		resolveSchema(tb.root, typeHint)
	}
	return tb.root, nil
}

type slotKind uint8

const (
	slotMember slotKind = iota
	slotElement
	slotKey
	slotValue
)

type frame struct {
	node       *ObjectInfo
	slot       slotKind
	memberID   uint64
	pendingKey *ObjectInfo
}

// treeBuilder is the Visitor that assembles the ObjectInfo tree.
type treeBuilder struct {
	root  *ObjectInfo
	stack []*frame
}

func (b *treeBuilder) OnBegin() {}
func (b *treeBuilder) OnEnd()   {}

func (b *treeBuilder) attach(node *ObjectInfo) {
	if len(b.stack) == 0 {
		b.root = node
		return
	}
	top := b.stack[len(b.stack)-1]
	switch top.slot {
	case slotMember:
		top.node.Members = append(top.node.Members, Member{ID: top.memberID, Value: node})
	case slotElement:
		top.node.ValueCollection = append(top.node.ValueCollection, node)
	case slotKey:
		top.pendingKey = node
	case slotValue:
		top.node.KeyValueCollection = append(top.node.KeyValueCollection, KeyValue{
			Key:   top.pendingKey,
			Value: node,
		})
		top.pendingKey = nil
	}
}

func (b *treeBuilder) OnPrimitive(tag wire.Tag, value any, envStart, payStart, payEnd int) error {
	b.attach(&ObjectInfo{
		Tag:           tag,
		EnvelopeStart: envStart,
		EnvelopeEnd:   payEnd,
		PayloadStart:  payStart,
		PayloadEnd:    payEnd,
		IsPrimitive:   true,
		Value:         value,
	})
	return nil
}

func (b *treeBuilder) OnCompositeBegin(tag wire.Tag, envStart, payStart int, variantCode uint64, count int) error {
	node := &ObjectInfo{
		Tag:           tag,
		EnvelopeStart: envStart,
		PayloadStart:  payStart,
		VariantCode:   variantCode,
	}
	if count > 0 {
		if tag == wire.TagList {
			node.ValueCollection = make([]*ObjectInfo, 0, count)
		} else {
			node.KeyValueCollection = make([]KeyValue, 0, count)
		}
	}
	b.attach(node)
	b.stack = append(b.stack, &frame{node: node})
	return nil
}

func (b *treeBuilder) OnMember(id uint64) error {
	top := b.stack[len(b.stack)-1]
	top.slot = slotMember
	top.memberID = id
	return nil
}

func (b *treeBuilder) OnElement(index int) error {
	b.stack[len(b.stack)-1].slot = slotElement
	return nil
}

func (b *treeBuilder) OnKey(index int) error {
	b.stack[len(b.stack)-1].slot = slotKey
	return nil
}

func (b *treeBuilder) OnValue(index int) error {
	b.stack[len(b.stack)-1].slot = slotValue
	return nil
}

func (b *treeBuilder) OnCompositeEnd(payEnd, envEnd int) error {
	top := b.stack[len(b.stack)-1]
	b.stack = b.stack[:len(b.stack)-1]
	top.node.PayloadEnd = payEnd
	top.node.EnvelopeEnd = envEnd
	return nil
}

// resolveSchema annotates a parsed tree with a declared schema. A node
// whose wire tag does not match the declared shape is left unresolved,
// as are members the schema does not declare.
func resolveSchema(node *ObjectInfo, schema *wire.Schema) {
	if node == nil || schema == nil || !schema.Matches(node.Tag) {
		return
	}
	node.SerializableType = schema

	switch node.Tag {
	case wire.TagStruct:
		for i := range node.Members {
			if f, ok := schema.FieldByID(node.Members[i].ID); ok {
				node.Members[i].Name = f.Name
				resolveSchema(node.Members[i].Value, f.Schema)
			}
		}
	case wire.TagAbstract:
		body, ok := schema.Variants[node.VariantCode]
		if !ok {
			return
		}
		for i := range node.Members {
			if f, ok := body.FieldByID(node.Members[i].ID); ok {
				node.Members[i].Name = f.Name
				resolveSchema(node.Members[i].Value, f.Schema)
			}
		}
	case wire.TagList:
		for _, elem := range node.ValueCollection {
			resolveSchema(elem, schema.Elem)
		}
	case wire.TagMap:
		for i := range node.KeyValueCollection {
			resolveSchema(node.KeyValueCollection[i].Key, schema.Key)
			resolveSchema(node.KeyValueCollection[i].Value, schema.Value)
		}
	}
}
