package shader

import (
	"strconv"
	"strings"
)

// typeLayout is the host-shareable size and alignment of a WGSL type.
type typeLayout struct {
	size  uint64
	align uint64
}

type parsedField struct {
	name      string
	typeName  string
	isBuiltin bool
}

type parsedStruct struct {
	name   string
	fields []parsedField
}

// layouts maps WGSL type names to their layout. Struct names are added once every
// field they hold resolves.
type layouts map[string]typeLayout

// builtinLayouts holds the scalar, vector and matrix types of 32-bit components.
var builtinLayouts = func() layouts {
	l := layouts{"bool": {4, 4}}
	for _, scalar := range []string{"f32", "i32", "u32"} {
		l[scalar] = typeLayout{4, 4}
	}
	vec := func(n uint64) typeLayout {
		if n == 2 {
			return typeLayout{8, 8}
		}
		return typeLayout{4 * n, 16}
	}
	suffixes := map[string]string{"f32": "f", "i32": "i", "u32": "u"}
	for n := uint64(2); n <= 4; n++ {
		dim := strconv.FormatUint(n, 10)
		for scalar, short := range suffixes {
			l["vec"+dim+"<"+scalar+">"] = vec(n)
			l["vec"+dim+short] = vec(n)
		}
	}
	// matCxR is C columns of vecR, each padded to its alignment.
	for cols := uint64(2); cols <= 4; cols++ {
		for rows := uint64(2); rows <= 4; rows++ {
			column := vec(rows)
			m := typeLayout{cols * alignUp(column.size, column.align), column.align}
			name := "mat" + strconv.FormatUint(cols, 10) + "x" + strconv.FormatUint(rows, 10)
			l[name+"<f32>"] = m
			l[name+"f"] = m
		}
	}
	return l
}()

func alignUp(value, alignment uint64) uint64 {
	if alignment == 0 {
		return value
	}
	return (value + alignment - 1) &^ (alignment - 1)
}

// resolve returns the layout of typeName. Runtime-sized arrays and unknown types
// do not resolve.
func (l layouts) resolve(typeName string) (typeLayout, bool) {
	if layout, ok := builtinLayouts[typeName]; ok {
		return layout, true
	}
	if layout, ok := l[typeName]; ok {
		return layout, true
	}

	base, params := splitTypeParams(typeName)
	if base != "array" {
		return typeLayout{}, false
	}
	comma := strings.LastIndex(params, ",")
	if comma < 0 {
		return typeLayout{}, false
	}
	count, err := strconv.ParseUint(strings.TrimSpace(params[comma+1:]), 10, 64)
	if err != nil {
		return typeLayout{}, false
	}
	elem, ok := l.resolve(strings.TrimSpace(params[:comma]))
	if !ok {
		return typeLayout{}, false
	}
	return typeLayout{count * alignUp(elem.size, elem.align), elem.align}, true
}

// add lays out ps and records it. Builtin fields are not part of the buffer.
func (l layouts) add(ps parsedStruct) bool {
	var offset uint64
	align := uint64(1)
	for _, f := range ps.fields {
		if f.isBuiltin {
			continue
		}
		fl, ok := l.resolve(f.typeName)
		if !ok {
			return false
		}
		offset = alignUp(offset, fl.align) + fl.size
		align = max(align, fl.align)
	}
	l[ps.name] = typeLayout{alignUp(offset, align), align}
	return true
}

// structLayouts lays out every struct in source order, retrying structs that
// reference one declared later until a pass makes no progress.
func structLayouts(structs []parsedStruct) layouts {
	l := make(layouts, len(structs))
	pending := append([]parsedStruct(nil), structs...)
	for len(pending) > 0 {
		next := pending[:0]
		for _, ps := range pending {
			if !l.add(ps) {
				next = append(next, ps)
			}
		}
		if len(next) == len(pending) {
			break
		}
		pending = next
	}
	return l
}

// splitTypeParams splits "texture_2d<f32>" into ("texture_2d", "f32"). Types
// without parameters return an empty params string.
func splitTypeParams(typeName string) (base, params string) {
	base, rest, ok := strings.Cut(typeName, "<")
	if !ok {
		return typeName, ""
	}
	return strings.TrimSpace(base), strings.TrimSpace(strings.TrimSuffix(rest, ">"))
}
