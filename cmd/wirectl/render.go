package main

import (
	"fmt"
	"strings"

	"github.com/danmuck/wirelink/internal/wire"
	"github.com/danmuck/wirelink/internal/wire/inspect"
)

// renderTree formats an inspected object tree, one node per line, with
// the envelope byte range of every node.
func renderTree(root *inspect.ObjectInfo) string {
	var sb strings.Builder
	renderNode(&sb, root, "", 0)
	return sb.String()
}

func renderNode(sb *strings.Builder, n *inspect.ObjectInfo, label string, depth int) {
	sb.WriteString(strings.Repeat("  ", depth))
	if label != "" {
		sb.WriteString(label)
		sb.WriteString(": ")
	}

	switch {
	case n.Tag == wire.TagAbstract && n.VariantCode == 0:
		fmt.Fprintf(sb, "%s null", n.Tag)
	case n.Tag == wire.TagAbstract:
		fmt.Fprintf(sb, "%s variant#%d", n.Tag, n.VariantCode)
	case n.IsPrimitive:
		fmt.Fprintf(sb, "%s %s", n.Tag, renderPrimitive(n.Value))
	case n.Tag == wire.TagList:
		fmt.Fprintf(sb, "%s (%d elements)", n.Tag, len(n.ValueCollection))
	case n.Tag == wire.TagMap:
		fmt.Fprintf(sb, "%s (%d pairs)", n.Tag, len(n.KeyValueCollection))
	default:
		sb.WriteString(n.Tag.String())
	}
	fmt.Fprintf(sb, "  [%d,%d)\n", n.EnvelopeStart, n.EnvelopeEnd)

	for _, m := range n.Members {
		name := m.Name
		if name == "" {
			name = fmt.Sprintf("member#%d", m.ID)
		}
		renderNode(sb, m.Value, name, depth+1)
	}
	for i, elem := range n.ValueCollection {
		renderNode(sb, elem, fmt.Sprintf("[%d]", i), depth+1)
	}
	for i, kv := range n.KeyValueCollection {
		renderNode(sb, kv.Key, fmt.Sprintf("[%d].key", i), depth+1)
		renderNode(sb, kv.Value, fmt.Sprintf("[%d].value", i), depth+1)
	}
}

func renderPrimitive(v any) string {
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
