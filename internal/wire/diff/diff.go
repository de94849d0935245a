// Package diff compares two tagged buffers structurally and reports the
// first semantic difference with a human-readable path. It never panics
// on corrupted input: a buffer that fails to parse is itself reported as
// the difference.
package diff

import (
	"bytes"
	"fmt"

	"github.com/danmuck/wirelink/internal/wire"
	"github.com/danmuck/wirelink/internal/wire/inspect"
)

// Result is the outcome of one comparison.
type Result struct {
	DumpsAreEqual bool
	Description   string
}

// Compare walks both buffers in lockstep and reports the first pre-order
// divergence. Paths are rendered from wire member ids (member#N).
func Compare(a, b []byte) Result {
	return compare(a, b, nil)
}

// CompareWithSchema is Compare with declared member names in paths.
func CompareWithSchema(a, b []byte, schema *wire.Schema) Result {
	return compare(a, b, schema)
}

func compare(a, b []byte, schema *wire.Schema) Result {
	if bytes.Equal(a, b) {
		return Result{DumpsAreEqual: true, Description: "Dumps are byte-identical"}
	}

	treeA, errA := inspect.Inspect(wire.NewReader(a), schema, true)
	treeB, errB := inspect.Inspect(wire.NewReader(b), schema, true)
	switch {
	case errA != nil && errB != nil:
		return Result{Description: fmt.Sprintf("Neither dump parses: %v / %v", errA, errB)}
	case errA != nil:
		return Result{Description: fmt.Sprintf("First dump does not parse: %v", errA)}
	case errB != nil:
		return Result{Description: fmt.Sprintf("Second dump does not parse: %v", errB)}
	}

	if desc := compareNodes(treeA, treeB, "obj"); desc != "" {
		return Result{Description: desc}
	}
	return Result{DumpsAreEqual: true, Description: "Dumps are structurally equal"}
}

// compareNodes returns "" when the subtrees are equal, otherwise the
// description of the first pre-order difference. Traversal order is
// members in wire order, list elements by index, map pairs by index.
func compareNodes(a, b *inspect.ObjectInfo, path string) string {
	if a.Tag != b.Tag {
		return fmt.Sprintf("Types differ at %s: %s vs %s", path, a.Tag, b.Tag)
	}

	switch a.Tag {
	case wire.TagNull:
		return ""

	case wire.TagVarInt, wire.TagFloat64, wire.TagString, wire.TagBytes:
		if !primitiveEqual(a.Value, b.Value) {
			return fmt.Sprintf("Values differ at %s: %s vs %s",
				path, renderValue(a.Value), renderValue(b.Value))
		}
		return ""

	case wire.TagStruct:
		return compareMembers(a, b, path)

	case wire.TagAbstract:
		if a.VariantCode != b.VariantCode {
			return fmt.Sprintf("Types differ at %s: %s vs %s",
				path, variantName(a), variantName(b))
		}
		return compareMembers(a, b, path)

	case wire.TagList:
		if len(a.ValueCollection) != len(b.ValueCollection) {
			return fmt.Sprintf("Child counts differ at %s: %d vs %d",
				path, len(a.ValueCollection), len(b.ValueCollection))
		}
		for i := range a.ValueCollection {
			elemPath := fmt.Sprintf("%s[%d]", path, i)
			if desc := compareNodes(a.ValueCollection[i], b.ValueCollection[i], elemPath); desc != "" {
				return desc
			}
		}
		return ""

	case wire.TagMap:
		if len(a.KeyValueCollection) != len(b.KeyValueCollection) {
			return fmt.Sprintf("Child counts differ at %s: %d vs %d",
				path, len(a.KeyValueCollection), len(b.KeyValueCollection))
		}
		for i := range a.KeyValueCollection {
			keyPath := fmt.Sprintf("%s[%d].key", path, i)
			if desc := compareNodes(a.KeyValueCollection[i].Key, b.KeyValueCollection[i].Key, keyPath); desc != "" {
				return desc
			}
			valPath := fmt.Sprintf("%s[%d].value", path, i)
			if desc := compareNodes(a.KeyValueCollection[i].Value, b.KeyValueCollection[i].Value, valPath); desc != "" {
				return desc
			}
		}
		return ""

	default:
		return fmt.Sprintf("Unknown tag at %s: %s", path, a.Tag)
	}
}

func compareMembers(a, b *inspect.ObjectInfo, path string) string {
	if len(a.Members) != len(b.Members) {
		return fmt.Sprintf("Child counts differ at %s: %d vs %d members",
			path, len(a.Members), len(b.Members))
	}
	for i := range a.Members {
		ma, mb := a.Members[i], b.Members[i]
		if ma.ID != mb.ID {
			return fmt.Sprintf("Member tags differ at %s: %s vs %s",
				path, memberName(ma), memberName(mb))
		}
		if desc := compareNodes(ma.Value, mb.Value, path+"."+memberName(ma)); desc != "" {
			return desc
		}
	}
	return ""
}

func memberName(m inspect.Member) string {
	if m.Name != "" {
		return m.Name
	}
	return fmt.Sprintf("member#%d", m.ID)
}

func variantName(n *inspect.ObjectInfo) string {
	if n.VariantCode == 0 {
		return "null variant"
	}
	if n.SerializableType != nil {
		if body, ok := n.SerializableType.Variants[n.VariantCode]; ok && body.Name != "" {
			return body.Name
		}
	}
	return fmt.Sprintf("variant#%d", n.VariantCode)
}

func primitiveEqual(a, b any) bool {
	ab, aok := a.([]byte)
	bb, bok := b.([]byte)
	if aok && bok {
		return bytes.Equal(ab, bb)
	}
	if aok != bok {
		return false
	}
	return a == b
}

func renderValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", t)
	case []byte:
		return fmt.Sprintf("0x%X", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
