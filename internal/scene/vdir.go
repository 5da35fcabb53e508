package scene

import (
	"fmt"
	gopath "path"
	"strings"

	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"
)

// Virtual file names surfaced inside every prim directory by the mount
// layers. A prim that happens to carry one of these names is shadowed.
const (
	VFileInfo       = "_info"
	VFileAttributes = "_attributes"
	VFilePrimvars   = "_primvars"
	VFileVariants   = "_variants"
)

// Root-only virtual files. Their content is owned by the mounts (the
// stage text needs ExportText and the status line is mount state), so
// this package only reserves the names.
const (
	VFileStage  = "_stage.usda"
	VFileStatus = "_status"
)

var primVFiles = []string{VFileInfo, VFileAttributes, VFilePrimvars, VFileVariants}

var jsonOptions = ojg.Options{Sort: true, Indent: 2}

// Entry is one directory entry of a prim directory.
type Entry struct {
	Name string
	Dir  bool
	Size int64
}

// IsVirtualName reports whether name is reserved for a virtual file.
func IsVirtualName(name string) bool {
	switch name {
	case VFileInfo, VFileAttributes, VFilePrimvars, VFileVariants, VFileStage, VFileStatus:
		return true
	}
	return false
}

// SplitVirtual maps a filesystem path onto a prim path plus an
// optional virtual file name: "/world/geo/_info" becomes
// ("/world/geo", "_info"), "/world/geo" becomes ("/world/geo", "").
func SplitVirtual(fspath string) (Path, string, error) {
	cleaned := gopath.Clean("/" + strings.TrimPrefix(fspath, "/"))
	if cleaned == "/" {
		return RootPath, "", nil
	}
	base := cleaned[strings.LastIndexByte(cleaned, '/')+1:]
	if !IsVirtualName(base) {
		p, err := ParsePath(cleaned)
		return p, "", err
	}
	parent := cleaned[:strings.LastIndexByte(cleaned, '/')]
	if parent == "" {
		return RootPath, base, nil
	}
	p, err := ParsePath(parent)
	return p, base, err
}

// ListEntries lists a prim directory: child prims first in authoring
// order, then the per-prim virtual files with their rendered sizes.
func ListEntries(r Reader, p Path) ([]Entry, error) {
	children, err := r.Children(p)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(children)+len(primVFiles))
	for _, c := range children {
		entries = append(entries, Entry{Name: c.Name(), Dir: true})
	}
	for _, name := range primVFiles {
		data, err := RenderVirtual(r, p, name)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Name: name, Size: int64(len(data))})
	}
	return entries, nil
}

// RenderVirtual renders the JSON body of a per-prim virtual file.
func RenderVirtual(r Reader, p Path, file string) ([]byte, error) {
	switch file {
	case VFileInfo:
		info, err := r.Info(p)
		if err != nil {
			return nil, err
		}
		return renderJSON(infoDocument(info)), nil
	case VFileAttributes:
		attrs, err := r.Attributes(p)
		if err != nil {
			return nil, err
		}
		return renderJSON(attributeDocuments(attrs)), nil
	case VFilePrimvars:
		primvars, err := r.Primvars(p)
		if err != nil {
			return nil, err
		}
		return renderJSON(primvarDocuments(primvars)), nil
	case VFileVariants:
		sets, err := r.VariantSets(p)
		if err != nil {
			return nil, err
		}
		return renderJSON(variantDocuments(sets)), nil
	}
	return nil, fmt.Errorf("%s/%s: %w", p, file, ErrNotFound)
}

func renderJSON(v any) []byte {
	return append([]byte(oj.JSON(v, &jsonOptions)), '\n')
}

func infoDocument(info NodeInfo) map[string]any {
	m := map[string]any{
		"path":          info.Path.String(),
		"name":          info.Name,
		"type":          info.TypeName,
		"specifier":     info.Specifier,
		"kind":          info.Kind,
		"purpose":       info.Purpose,
		"active":        info.Active,
		"defined":       info.Defined,
		"abstract":      info.Abstract,
		"instanceable":  info.Instance,
		"hasVariants":   info.HasVariants,
		"hasPayload":    info.HasPayload,
		"payloadLoaded": info.PayloadLoaded,
	}
	if len(info.Metadata) > 0 {
		m["metadata"] = info.Metadata
	}
	return m
}

func attributeDocuments(attrs []AttributeInfo) []any {
	items := make([]any, 0, len(attrs))
	for _, a := range attrs {
		m := map[string]any{
			"name":     a.Name,
			"type":     a.TypeName,
			"custom":   a.Custom,
			"authored": a.Authored,
		}
		if a.Value != nil {
			m["value"] = a.Value
		}
		if len(a.TimeSamples) > 0 {
			samples := make([]any, 0, len(a.TimeSamples))
			for _, ts := range a.TimeSamples {
				samples = append(samples, map[string]any{"time": ts.Time, "value": ts.Value})
			}
			m["timeSamples"] = samples
		}
		items = append(items, m)
	}
	return items
}

func primvarDocuments(primvars []PrimvarInfo) []any {
	items := make([]any, 0, len(primvars))
	for _, pv := range primvars {
		m := map[string]any{
			"name":          pv.Name,
			"type":          pv.TypeName,
			"interpolation": pv.Interpolation,
		}
		if pv.Value != nil {
			m["value"] = pv.Value
		}
		if pv.ElementSize > 0 {
			m["elementSize"] = pv.ElementSize
		}
		if len(pv.Indices) > 0 {
			m["indices"] = pv.Indices
		}
		items = append(items, m)
	}
	return items
}

func variantDocuments(sets []VariantSetInfo) []any {
	items := make([]any, 0, len(sets))
	for _, vs := range sets {
		m := map[string]any{
			"name":     vs.Name,
			"variants": vs.Variants,
		}
		if vs.Selection != "" {
			m["selection"] = vs.Selection
		}
		items = append(items, m)
	}
	return items
}
