// Package scene defines the hierarchy model and the provider contract
// that every stage backend implements: ordered lazy child listing with a
// cheap existence probe, descriptive per-prim snapshots, and the editing
// operations. Everything above this package (caching, tree projection,
// mounts, MCP) talks to a stage only through these interfaces.
package scene

import "errors"

// Sentinel errors for the recoverable failure taxonomy. Callers match
// with errors.Is; surfaces turn them into a boolean outcome plus a
// human-readable message rather than terminating.
var (
	// ErrStageUnavailable means no hierarchy is open behind the provider.
	ErrStageUnavailable = errors.New("no stage is open")
	// ErrNotFound means the path does not resolve to a prim on the
	// current stage (absent, or hidden behind an unloaded payload).
	ErrNotFound = errors.New("prim not found")
	// ErrMutationRejected means the provider refused an edit:
	// bad value, unknown vocabulary entry, or a target that cannot
	// carry the property.
	ErrMutationRejected = errors.New("mutation rejected")
)

// TimeSample pairs a time code with an authored value.
type TimeSample struct {
	Time  float64
	Value any
}

// NodeInfo is the descriptive snapshot of a prim. It is a value type:
// safe to cache as-is and compare between cached and fresh reads.
// HasVariants and HasPayload record arc presence only; the variant
// selections themselves are never part of this snapshot.
type NodeInfo struct {
	Path          Path
	Name          string
	TypeName      string
	Specifier     string
	Kind          string
	Purpose       string
	Active        bool
	Defined       bool
	Abstract      bool
	Instance      bool
	HasVariants   bool
	HasPayload    bool
	PayloadLoaded bool
	Metadata      map[string]any
}

// AttributeInfo describes one attribute of a prim.
type AttributeInfo struct {
	Name        string
	TypeName    string
	Value       any
	Custom      bool
	Authored    bool
	TimeSamples []TimeSample
}

// PrimvarInfo describes one primvar of a prim.
type PrimvarInfo struct {
	Name          string
	TypeName      string
	Value         any
	Interpolation string
	ElementSize   int
	Indices       []int
}

// VariantSetInfo describes one variant set and its current selection.
type VariantSetInfo struct {
	Name      string
	Variants  []string
	Selection string
}

// Reader is the read side of a stage provider.
//
// Children applies the fixed child predicate (active and not abstract)
// and returns paths in authoring order. HasChildren answers the same
// question existence-only; implementations must keep it cheap and must
// not materialize child structures to answer it. VariantSets reads the
// live selection every time; callers must not cache its results.
type Reader interface {
	Root() (Path, error)
	Children(p Path) ([]Path, error)
	HasChildren(p Path) (bool, error)
	Info(p Path) (NodeInfo, error)
	Attributes(p Path) ([]AttributeInfo, error)
	Primvars(p Path) ([]PrimvarInfo, error)
	VariantSets(p Path) ([]VariantSetInfo, error)
}

// Mutator is the write side of a stage provider. Every method validates
// its input against the prim it targets and returns ErrMutationRejected
// (wrapped with the reason) instead of writing anything on failure.
// SetAttributeValue writes the default when at is nil, otherwise the
// sample at that time code. ReplaceFromText swaps the entire hierarchy
// for the parsed text in one step; on parse failure the stage is
// untouched.
type Mutator interface {
	SelectVariant(p Path, set, variant string) error
	SetKind(p Path, kind string) error
	SetPurpose(p Path, purpose string) error
	LoadPayload(p Path) error
	UnloadPayload(p Path) error
	AddAttribute(p Path, name, typeName string, value any) error
	RemoveAttribute(p Path, name string) error
	SetAttributeValue(p Path, name string, value any, at *float64) error
	AddPrimvar(p Path, name, typeName string, value any, interpolation string) error
	RemovePrimvar(p Path, name string) error
	ReplaceFromText(text string) error
}

// Provider is a complete stage backend.
type Provider interface {
	Reader
	Mutator
	ExportText() (string, error)
}

// Editing vocabularies offered by the authoring surfaces. Providers
// reject values outside these lists.
var (
	Kinds          = []string{"", "component", "subcomponent", "assembly", "group"}
	Purposes       = []string{"default", "render", "proxy", "guide"}
	Interpolations = []string{"constant", "uniform", "vertex", "varying", "faceVarying"}
)

func ValidKind(kind string) bool { return contains(Kinds, kind) }

func ValidPurpose(purpose string) bool { return contains(Purposes, purpose) }

func ValidInterpolation(interp string) bool { return contains(Interpolations, interp) }

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// imageableTypes lists the schema types that carry purpose and primvars.
var imageableTypes = map[string]struct{}{
	"Xform":       {},
	"Scope":       {},
	"Mesh":        {},
	"Sphere":      {},
	"Cube":        {},
	"Cylinder":    {},
	"Cone":        {},
	"Capsule":     {},
	"Plane":       {},
	"Points":      {},
	"BasisCurves": {},
	"NurbsCurves": {},
	"Camera":      {},
	"SkelRoot":    {},
}

// Imageable reports whether a prim of the given schema type can carry
// purpose and primvars.
func Imageable(typeName string) bool {
	_, ok := imageableTypes[typeName]
	return ok
}
