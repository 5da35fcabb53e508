// Package sdftext reads and writes the textual stage format: a usda-
// flavored dialect with def/over/class prim blocks, header metadata,
// typed attributes (including timeSamples and primvars with trailing
// metadata), and variantSet declarations. The parser records the byte
// range of every prim block so a single prim can be spliced back into
// its source file without rewriting the rest.
//
// Value literals (numbers, strings, booleans, arrays, tuples) are
// decoded with ojg's SEN parser after tuple parentheses are normalized
// to brackets; tuples come back as []any of numbers.
package sdftext

import "strings"

// Header is the magic first line of a stage text document.
const Header = "#usda 1.0"

// Origin is the half-open byte range [Start, End) a prim block occupies
// in the source text it was parsed from.
type Origin struct {
	Start int
	End   int
}

// Document is a parsed stage text: the ordered root prims.
type Document struct {
	Prims []*Prim
}

// Prim is one def/over/class block.
type Prim struct {
	Specifier    string // "def", "over" or "class"
	TypeName     string // schema type, may be empty
	Name         string
	Kind         string
	Active       *bool // nil means unauthored (active)
	Instanceable bool
	Payload      string            // asset path of the payload arc, "" if none
	Variants     map[string]string // variant selections by set name
	Metadata     map[string]any    // remaining header metadata
	Attrs        []*Attr
	VariantSets  []*VariantSet
	Children     []*Prim
	Origin       Origin
}

// Attr is one attribute statement. An attribute with neither a default
// value nor samples is declared but unauthored.
type Attr struct {
	Name     string
	TypeName string
	Custom   bool
	Uniform  bool
	Value    any
	HasValue bool
	Samples  []Sample
	Meta     map[string]any // trailing parenthesized metadata
}

// Sample is one timeSamples entry.
type Sample struct {
	Time  float64
	Value any
}

// VariantSet is a variantSet declaration listing the available variants.
type VariantSet struct {
	Name     string
	Variants []string
}

// IsActive resolves the authored active flag, defaulting to true.
func (p *Prim) IsActive() bool {
	return p.Active == nil || *p.Active
}

// Attr returns the attribute with the given name, or nil.
func (p *Prim) Attr(name string) *Attr {
	for _, a := range p.Attrs {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// Child returns the direct child prim with the given name, or nil.
func (p *Prim) Child(name string) *Prim {
	for _, c := range p.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Find resolves an absolute prim path like "/world/geo" against the
// document, returning nil when any component is missing.
func (d *Document) Find(path string) *Prim {
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == "" {
		return nil
	}
	comps := strings.Split(path, "/")
	var cur *Prim
	for _, root := range d.Prims {
		if root.Name == comps[0] {
			cur = root
			break
		}
	}
	for _, comp := range comps[1:] {
		if cur == nil {
			return nil
		}
		cur = cur.Child(comp)
	}
	return cur
}

// IsPrimvar reports whether an attribute name is in the primvars
// namespace.
func IsPrimvar(name string) bool {
	return strings.HasPrefix(name, "primvars:")
}

// PrimvarName strips the primvars: namespace prefix.
func PrimvarName(attrName string) string {
	return strings.TrimPrefix(attrName, "primvars:")
}
