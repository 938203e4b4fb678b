package shader

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

var (
	// struct Name { body }, the body cannot nest braces in WGSL
	structRe = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)

	// [attributes] name : type, where type may be parameterized
	memberRe = regexp.MustCompile(`^(?:@\w+(?:\([^)]*\))?\s*)*(\w+)\s*:\s*(.+)$`)

	// @group(G) @binding(B) var[<space>] name : type;
	resourceRe = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)

	entryRes = map[ShaderType]*regexp.Regexp{
		ShaderTypeVertex:   regexp.MustCompile(`(?s)@vertex\b.*?\bfn\s+(\w+)`),
		ShaderTypeFragment: regexp.MustCompile(`(?s)@fragment\b.*?\bfn\s+(\w+)`),
	}
)

// parseBindGroupLayouts reads every @group/@binding declaration of a WGSL module.
// Buffer entries get a MinBindingSize from the layout of their struct, entries of
// a group are sorted by binding, and samplers sharing a group with a depth texture
// are declared non-filtering since depth cannot be filtered.
//
// Parameters:
//   - source: the WGSL source
//   - visibility: the stage flag set on every entry
//
// Returns:
//   - map[int]wgpu.BindGroupLayoutDescriptor: descriptors keyed by group
func parseBindGroupLayouts(source string, visibility wgpu.ShaderStage) map[int]wgpu.BindGroupLayoutDescriptor {
	src := stripComments(source)
	known := structLayouts(parseStructBlocks(src))

	entries := make(map[int][]wgpu.BindGroupLayoutEntry)
	for _, m := range resourceRe.FindAllStringSubmatch(src, -1) {
		group, _ := strconv.Atoi(m[1])
		binding, _ := strconv.Atoi(m[2])
		space, typeName := strings.TrimSpace(m[3]), strings.TrimSpace(m[5])

		entry := bindingEntry(uint32(binding), visibility, space, typeName)
		if entry.Buffer.Type != wgpu.BufferBindingTypeUndefined {
			if l, ok := known.resolve(typeName); ok {
				entry.Buffer.MinBindingSize = l.size
			}
		}
		entries[group] = append(entries[group], entry)
	}

	layouts := make(map[int]wgpu.BindGroupLayoutDescriptor, len(entries))
	for g, es := range entries {
		slices.SortFunc(es, func(a, b wgpu.BindGroupLayoutEntry) int { return int(a.Binding) - int(b.Binding) })
		if slices.ContainsFunc(es, func(e wgpu.BindGroupLayoutEntry) bool { return e.Texture.SampleType == wgpu.TextureSampleTypeDepth }) {
			for i := range es {
				if es[i].Sampler.Type == wgpu.SamplerBindingTypeFiltering {
					es[i].Sampler.Type = wgpu.SamplerBindingTypeNonFiltering
				}
			}
		}
		layouts[g] = wgpu.BindGroupLayoutDescriptor{Entries: es}
	}
	return layouts
}

// parseEntryPoint returns the name of the first function attributed with the
// stage, or "" if the module has none.
func parseEntryPoint(source string, shaderType ShaderType) string {
	re, ok := entryRes[shaderType]
	if !ok {
		return ""
	}
	if m := re.FindStringSubmatch(stripComments(source)); m != nil {
		return m[1]
	}
	return ""
}

// parseStructBlocks lists the structs of comment-free WGSL source in order.
func parseStructBlocks(source string) []parsedStruct {
	var structs []parsedStruct
	for _, m := range structRe.FindAllStringSubmatch(source, -1) {
		ps := parsedStruct{name: m[1]}
		for _, member := range splitAtTopLevelCommas(m[2]) {
			member = strings.TrimSpace(member)
			fm := memberRe.FindStringSubmatch(member)
			if fm == nil {
				continue
			}
			ps.fields = append(ps.fields, parsedField{
				name:      fm[1],
				typeName:  strings.TrimSpace(fm[2]),
				isBuiltin: strings.Contains(member, "@builtin("),
			})
		}
		structs = append(structs, ps)
	}
	return structs
}

// splitAtTopLevelCommas splits struct members on commas outside angle brackets,
// keeping array<vec4<f32>, 9> whole.
func splitAtTopLevelCommas(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i, c := range s {
		switch {
		case c == '<':
			depth++
		case c == '>' && depth > 0:
			depth--
		case c == ',' && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}
