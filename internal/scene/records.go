package scene

import (
	"fmt"
	"sort"

	"github.com/voidreamer/maya-usd-author/internal/sdftext"
)

// Conversions between the path-keyed prim table and the sdftext parse
// tree. Both stage backends flatten incoming text through
// recordsFromDocument and serialize through documentFromRecords, so
// the two agree byte-for-byte on export.

// recordsFromDocument flattens a parse tree into the path-keyed prim
// table, rejecting duplicate sibling names.
func recordsFromDocument(doc *sdftext.Document) (map[Path]*primRecord, error) {
	prims := map[Path]*primRecord{
		RootPath: {path: RootPath, active: true},
	}
	var walk func(parent Path, sp *sdftext.Prim) error
	walk = func(parent Path, sp *sdftext.Prim) error {
		p := parent.Child(sp.Name)
		if _, exists := prims[p]; exists {
			return fmt.Errorf("duplicate prim %s", p)
		}
		prims[p] = recordFromSpec(p, sp)
		prims[parent].children = append(prims[parent].children, p)
		for _, c := range sp.Children {
			if err := walk(p, c); err != nil {
				return err
			}
		}
		return nil
	}
	for _, root := range doc.Prims {
		if err := walk(RootPath, root); err != nil {
			return nil, err
		}
	}
	return prims, nil
}

func recordFromSpec(p Path, sp *sdftext.Prim) *primRecord {
	rec := &primRecord{
		path:         p,
		specifier:    sp.Specifier,
		typeName:     sp.TypeName,
		kind:         sp.Kind,
		active:       sp.IsActive(),
		abstract:     sp.Specifier == "class",
		instanceable: sp.Instanceable,
		payload:      sp.Payload,
		loaded:       sp.Payload != "", // stages open with payloads loaded
		metadata:     sp.Metadata,
	}
	for _, a := range sp.Attrs {
		if sdftext.IsPrimvar(a.Name) {
			rec.primvars = append(rec.primvars, &primvarRecord{
				name:          sdftext.PrimvarName(a.Name),
				typeName:      a.TypeName,
				value:         coerceLoose(a.Value, a.TypeName, a.HasValue),
				interpolation: metaString(a.Meta, "interpolation", "constant"),
				elementSize:   metaInt(a.Meta, "elementSize"),
				indices:       metaInts(a.Meta, "indices"),
			})
			continue
		}
		ar := &attrRecord{
			name:     a.Name,
			typeName: a.TypeName,
			custom:   a.Custom,
			uniform:  a.Uniform,
			value:    coerceLoose(a.Value, a.TypeName, a.HasValue),
			hasValue: a.HasValue,
		}
		for _, sm := range a.Samples {
			ar.samples = append(ar.samples, TimeSample{Time: sm.Time, Value: coerceLoose(sm.Value, a.TypeName, true)})
		}
		sort.Slice(ar.samples, func(i, j int) bool { return ar.samples[i].Time < ar.samples[j].Time })
		rec.attrs = append(rec.attrs, ar)
	}
	for _, vs := range sp.VariantSets {
		rec.variantSets = append(rec.variantSets, &variantSetRecord{
			name:      vs.Name,
			variants:  append([]string(nil), vs.Variants...),
			selection: sp.Variants[vs.Name],
		})
	}
	// A selection without a declared set still names a set.
	for set, sel := range sp.Variants {
		if rec.variantSet(set) == nil {
			rec.variantSets = append(rec.variantSets, &variantSetRecord{
				name:      set,
				variants:  []string{sel},
				selection: sel,
			})
		}
	}
	sort.Slice(rec.variantSets, func(i, j int) bool { return rec.variantSets[i].name < rec.variantSets[j].name })
	return rec
}

func documentFromRecords(prims map[Path]*primRecord) *sdftext.Document {
	doc := &sdftext.Document{}
	root := prims[RootPath]
	if root == nil {
		return doc
	}
	for _, cp := range root.children {
		doc.Prims = append(doc.Prims, specFromRecord(prims, cp))
	}
	return doc
}

func specFromRecord(prims map[Path]*primRecord, p Path) *sdftext.Prim {
	rec := prims[p]
	sp := &sdftext.Prim{
		Specifier:    rec.specifier,
		TypeName:     rec.typeName,
		Name:         rec.path.Name(),
		Kind:         rec.kind,
		Instanceable: rec.instanceable,
		Payload:      rec.payload,
		Metadata:     rec.metadata,
	}
	if !rec.active {
		f := false
		sp.Active = &f
	}
	for _, a := range rec.attrs {
		sa := &sdftext.Attr{
			Name:     a.name,
			TypeName: a.typeName,
			Custom:   a.custom,
			Uniform:  a.uniform,
			Value:    a.value,
			HasValue: a.hasValue,
		}
		for _, ts := range a.samples {
			sa.Samples = append(sa.Samples, sdftext.Sample{Time: ts.Time, Value: ts.Value})
		}
		sp.Attrs = append(sp.Attrs, sa)
	}
	for _, pv := range rec.primvars {
		sa := &sdftext.Attr{
			Name:     "primvars:" + pv.name,
			TypeName: pv.typeName,
			Meta:     map[string]any{"interpolation": pv.interpolation},
		}
		if pv.value != nil {
			sa.Value = pv.value
			sa.HasValue = true
		}
		if pv.elementSize > 0 {
			sa.Meta["elementSize"] = int64(pv.elementSize)
		}
		if len(pv.indices) > 0 {
			sa.Meta["indices"] = pv.indices
		}
		sp.Attrs = append(sp.Attrs, sa)
	}
	for _, vs := range rec.variantSets {
		sp.VariantSets = append(sp.VariantSets, &sdftext.VariantSet{
			Name:     vs.name,
			Variants: append([]string(nil), vs.variants...),
		})
		if vs.selection != "" {
			if sp.Variants == nil {
				sp.Variants = map[string]string{}
			}
			sp.Variants[vs.name] = vs.selection
		}
	}
	for _, cp := range rec.children {
		sp.Children = append(sp.Children, specFromRecord(prims, cp))
	}
	return sp
}

// coerceLoose canonicalizes authored values of known types and leaves
// everything else as parsed.
func coerceLoose(v any, typeName string, authored bool) any {
	if !authored || v == nil || !KnownTypeName(typeName) {
		return v
	}
	if cv, err := Coerce(v, typeName); err == nil {
		return cv
	}
	return v
}

func metaString(meta map[string]any, key, fallback string) string {
	if s, ok := meta[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

func metaInt(meta map[string]any, key string) int {
	switch n := meta[key].(type) {
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func metaInts(meta map[string]any, key string) []int {
	return toIntSlice(meta[key])
}

func toIntSlice(v any) []int {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]int, 0, len(items))
	for _, item := range items {
		switch n := item.(type) {
		case int64:
			out = append(out, int(n))
		case float64:
			out = append(out, int(n))
		}
	}
	return out
}

func validAttrName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' || r == ':':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func orUntyped(typeName string) string {
	if typeName == "" {
		return "untyped"
	}
	return typeName
}
