package sdftext

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// tupleTypes are the type names whose values print as parenthesized
// tuples rather than bracketed arrays.
var tupleTypes = map[string]struct{}{
	"float2": {}, "texCoord2f": {}, "float3": {}, "double3": {},
	"color3f": {}, "normal3f": {}, "point3f": {}, "vector3f": {},
	"float4": {}, "quatf": {},
}

// Format writes a Document back to canonical stage text. Parsing the
// result yields an equivalent document, so Format(Parse(Format(x)))
// is stable.
func Format(doc *Document) string {
	var b strings.Builder
	b.WriteString(Header)
	b.WriteString("\n")
	for _, prim := range doc.Prims {
		b.WriteString("\n")
		writePrim(&b, prim, 0)
	}
	return b.String()
}

// FormatPrim writes a single prim block at the given indent depth,
// without the document header. Splice write-back uses this to render
// a replacement block for one prim.
func FormatPrim(prim *Prim, depth int) string {
	var b strings.Builder
	writePrim(&b, prim, depth)
	return strings.TrimSuffix(b.String(), "\n")
}

func writePrim(b *strings.Builder, p *Prim, depth int) {
	ind := strings.Repeat("    ", depth)
	b.WriteString(ind)
	b.WriteString(p.Specifier)
	if p.TypeName != "" {
		b.WriteString(" ")
		b.WriteString(p.TypeName)
	}
	fmt.Fprintf(b, " %q", p.Name)

	meta := primMetaLines(p)
	if len(meta) > 0 {
		b.WriteString(" (\n")
		for _, line := range meta {
			b.WriteString(ind + "    " + line + "\n")
		}
		b.WriteString(ind + ")")
	}
	b.WriteString(" {\n")

	inner := ind + "    "
	for _, a := range p.Attrs {
		writeAttr(b, a, inner)
	}
	for _, vs := range p.VariantSets {
		quoted := make([]string, len(vs.Variants))
		for i, v := range vs.Variants {
			quoted[i] = strconv.Quote(v)
		}
		fmt.Fprintf(b, "%svariantSet %q = { %s }\n", inner, vs.Name, strings.Join(quoted, ", "))
	}
	for _, child := range p.Children {
		writePrim(b, child, depth+1)
	}
	b.WriteString(ind + "}\n")
}

func primMetaLines(p *Prim) []string {
	var lines []string
	if p.Kind != "" {
		lines = append(lines, fmt.Sprintf("kind = %q", p.Kind))
	}
	if p.Active != nil {
		lines = append(lines, fmt.Sprintf("active = %v", *p.Active))
	}
	if p.Instanceable {
		lines = append(lines, "instanceable = true")
	}
	if p.Payload != "" {
		lines = append(lines, fmt.Sprintf("payload = @%s@", p.Payload))
	}
	if len(p.Variants) > 0 {
		sets := make([]string, 0, len(p.Variants))
		for set := range p.Variants {
			sets = append(sets, set)
		}
		sort.Strings(sets)
		pairs := make([]string, len(sets))
		for i, set := range sets {
			pairs[i] = fmt.Sprintf("%s = %q", set, p.Variants[set])
		}
		lines = append(lines, "variants = { "+strings.Join(pairs, ", ")+" }")
	}
	if len(p.Metadata) > 0 {
		keys := make([]string, 0, len(p.Metadata))
		for k := range p.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			lines = append(lines, k+" = "+FormatValue(p.Metadata[k], ""))
		}
	}
	return lines
}

func writeAttr(b *strings.Builder, a *Attr, ind string) {
	if a.HasValue || len(a.Samples) == 0 {
		b.WriteString(ind)
		if a.Custom {
			b.WriteString("custom ")
		}
		if a.Uniform {
			b.WriteString("uniform ")
		}
		b.WriteString(a.TypeName + " " + a.Name)
		if a.HasValue {
			b.WriteString(" = " + FormatValue(a.Value, a.TypeName))
		}
		if len(a.Meta) > 0 {
			keys := make([]string, 0, len(a.Meta))
			for k := range a.Meta {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			pairs := make([]string, len(keys))
			for i, k := range keys {
				pairs[i] = k + " = " + FormatValue(a.Meta[k], "")
			}
			b.WriteString(" ( " + strings.Join(pairs, ", ") + " )")
		}
		b.WriteString("\n")
	}
	if len(a.Samples) > 0 {
		b.WriteString(ind + a.TypeName + " " + a.Name + ".timeSamples = {\n")
		for _, s := range a.Samples {
			b.WriteString(ind + "    " + formatFloat(s.Time) + ": " + FormatValue(s.Value, a.TypeName) + ",\n")
		}
		b.WriteString(ind + "}\n")
	}
}

// FormatValue renders a value literal. typeName selects tuple versus
// array notation for slices; pass "" for untyped metadata values.
func FormatValue(v any, typeName string) string {
	if elem, ok := strings.CutSuffix(typeName, "[]"); ok {
		items := asSlice(v)
		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = FormatValue(item, elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	if typeName == "matrix4d" {
		rows := asSlice(v)
		parts := make([]string, len(rows))
		for i, row := range rows {
			parts[i] = formatTuple(asSlice(row))
		}
		return "( " + strings.Join(parts, ", ") + " )"
	}
	if _, tuple := tupleTypes[typeName]; tuple {
		if items := asSlice(v); items != nil {
			return formatTuple(items)
		}
	}
	switch x := v.(type) {
	case nil:
		return "None"
	case string:
		if typeName == "asset" {
			return "@" + x + "@"
		}
		return strconv.Quote(x)
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return formatFloat(x)
	case []any, []float64, [][]float64:
		items := asSlice(v)
		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = FormatValue(item, "")
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case []int:
		parts := make([]string, len(x))
		for i, n := range x {
			parts[i] = strconv.Itoa(n)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, len(keys))
		for i, k := range keys {
			pairs[i] = k + ": " + FormatValue(x[k], "")
		}
		return "{ " + strings.Join(pairs, ", ") + " }"
	default:
		return fmt.Sprintf("%v", x)
	}
}

func formatTuple(items []any) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = FormatValue(item, "")
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// formatFloat keeps a decimal point on integral floats so the value
// reads back as a float, not an int.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func asSlice(v any) []any {
	switch x := v.(type) {
	case []any:
		return x
	case []float64:
		out := make([]any, len(x))
		for i, f := range x {
			out[i] = f
		}
		return out
	case [][]float64:
		out := make([]any, len(x))
		for i, row := range x {
			out[i] = row
		}
		return out
	}
	return nil
}
