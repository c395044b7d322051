package heap

import (
	"strconv"
	"strings"
)

const inspectMaxDepth = 6

// Inspect renders v for display, following references into h. Strings inside
// containers are quoted; cycles print as [Circular].
func Inspect(h Heap, v Value) string {
	var sb strings.Builder
	in := inspector{heap: h, seen: make(map[Handle]bool)}
	in.write(&sb, v, 0, true)
	return sb.String()
}

type inspector struct {
	heap Heap
	seen map[Handle]bool
}

func (in *inspector) write(sb *strings.Builder, v Value, depth int, top bool) {
	switch v.Kind {
	case KindString:
		if top {
			sb.WriteString(v.Str)
		} else {
			sb.WriteString(strconv.Quote(v.Str))
		}
		return
	case KindObject, KindArray, KindFunction:
	default:
		sb.WriteString(ToString(v))
		return
	}

	h := v.Handle()
	cell, err := in.heap.Deref(h)
	if err != nil {
		sb.WriteString("<invalid " + h.String() + ">")
		return
	}
	if in.seen[h] {
		sb.WriteString("[Circular]")
		return
	}

	switch c := cell.(type) {
	case *Function:
		sb.WriteString("[Function: " + c.Name() + "]")
		return
	case *Native:
		sb.WriteString("[Function: " + c.Name + "]")
		return
	}

	if depth >= inspectMaxDepth {
		if v.Kind == KindArray {
			sb.WriteString("[Array]")
		} else {
			sb.WriteString("[Object]")
		}
		return
	}
	in.seen[h] = true
	defer delete(in.seen, h)

	switch c := cell.(type) {
	case *Array:
		sb.WriteString("[")
		for i, e := range c.Elements {
			if i > 0 {
				sb.WriteString(", ")
			}
			in.write(sb, e, depth+1, false)
		}
		sb.WriteString("]")
	case *Object:
		if c.Len() == 0 {
			sb.WriteString("{}")
			return
		}
		sb.WriteString("{ ")
		for i, k := range c.keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			if isIdentifier(k) {
				sb.WriteString(k)
			} else {
				sb.WriteString(strconv.Quote(k))
			}
			sb.WriteString(": ")
			in.write(sb, c.props[k], depth+1, false)
		}
		sb.WriteString(" }")
	}
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '$':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
