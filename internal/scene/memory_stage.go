package scene

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/voidreamer/maya-usd-author/internal/sdftext"
)

// MemoryStage is the in-memory stage backend. A zero stage is closed:
// every operation reports ErrStageUnavailable until ReplaceFromText
// (or NewMemoryStageFromText) populates it. All methods are safe for
// concurrent use.
type MemoryStage struct {
	mu    sync.RWMutex
	open  bool
	prims map[Path]*primRecord
}

var _ Provider = (*MemoryStage)(nil)

type primRecord struct {
	path         Path
	specifier    string
	typeName     string
	kind         string
	active       bool
	abstract     bool
	instanceable bool
	payload      string // payload asset path, "" when no payload arc
	loaded       bool   // payload load state
	metadata     map[string]any
	attrs        []*attrRecord
	primvars     []*primvarRecord
	variantSets  []*variantSetRecord
	children     []Path // authoring order, unfiltered
}

type attrRecord struct {
	name     string
	typeName string
	custom   bool
	uniform  bool
	value    any
	hasValue bool
	samples  []TimeSample // sorted by time
}

type primvarRecord struct {
	name          string // without the primvars: prefix
	typeName      string
	value         any
	interpolation string
	elementSize   int
	indices       []int
}

type variantSetRecord struct {
	name      string
	variants  []string
	selection string
}

func NewMemoryStage() *MemoryStage {
	return &MemoryStage{}
}

// NewMemoryStageFromText opens a stage directly from text.
func NewMemoryStageFromText(text string) (*MemoryStage, error) {
	s := NewMemoryStage()
	if err := s.ReplaceFromText(text); err != nil {
		return nil, err
	}
	return s, nil
}

// record resolves a path to its prim, applying payload visibility: a
// prim whose ancestor holds an unloaded payload is not on the stage.
// Callers must hold at least the read lock.
func (s *MemoryStage) record(p Path) (*primRecord, error) {
	if !s.open {
		return nil, ErrStageUnavailable
	}
	rec, ok := s.prims[p]
	if !ok {
		return nil, fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	for _, anc := range p.Ancestors() {
		if a := s.prims[anc]; a != nil && a.payload != "" && !a.loaded {
			return nil, fmt.Errorf("%s: %w", p, ErrNotFound)
		}
	}
	return rec, nil
}

func (s *MemoryStage) Root() (Path, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.open {
		return "", ErrStageUnavailable
	}
	return RootPath, nil
}

// browsable is the fixed child predicate: active and not abstract.
func (r *primRecord) browsable() bool {
	return r.active && !r.abstract
}

func (s *MemoryStage) Children(p Path) ([]Path, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, err := s.record(p)
	if err != nil {
		return nil, err
	}
	if rec.payload != "" && !rec.loaded {
		return nil, nil
	}
	var out []Path
	for _, cp := range rec.children {
		if child := s.prims[cp]; child != nil && child.browsable() {
			out = append(out, cp)
		}
	}
	return out, nil
}

func (s *MemoryStage) HasChildren(p Path) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, err := s.record(p)
	if err != nil {
		return false, err
	}
	if rec.payload != "" && !rec.loaded {
		return false, nil
	}
	for _, cp := range rec.children {
		if child := s.prims[cp]; child != nil && child.browsable() {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStage) Info(p Path) (NodeInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, err := s.record(p)
	if err != nil {
		return NodeInfo{}, err
	}
	return NodeInfo{
		Path:          p,
		Name:          p.Name(),
		TypeName:      rec.typeName,
		Specifier:     rec.specifier,
		Kind:          rec.kind,
		Purpose:       rec.purposeValue(),
		Active:        rec.active,
		Defined:       rec.specifier == "def",
		Abstract:      rec.abstract,
		Instance:      rec.instanceable,
		HasVariants:   len(rec.variantSets) > 0,
		HasPayload:    rec.payload != "",
		PayloadLoaded: rec.payload != "" && rec.loaded,
		Metadata:      rec.metadata,
	}, nil
}

func (r *primRecord) purposeValue() string {
	if a := r.attr("purpose"); a != nil && a.hasValue {
		if s, ok := a.value.(string); ok && s != "" {
			return s
		}
	}
	return "default"
}

func (r *primRecord) attr(name string) *attrRecord {
	for _, a := range r.attrs {
		if a.name == name {
			return a
		}
	}
	return nil
}

func (r *primRecord) primvar(name string) *primvarRecord {
	for _, pv := range r.primvars {
		if pv.name == name {
			return pv
		}
	}
	return nil
}

func (r *primRecord) variantSet(name string) *variantSetRecord {
	for _, vs := range r.variantSets {
		if vs.name == name {
			return vs
		}
	}
	return nil
}

func (s *MemoryStage) Attributes(p Path) ([]AttributeInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, err := s.record(p)
	if err != nil {
		return nil, err
	}
	out := make([]AttributeInfo, 0, len(rec.attrs))
	for _, a := range rec.attrs {
		out = append(out, AttributeInfo{
			Name:        a.name,
			TypeName:    a.typeName,
			Value:       a.value,
			Custom:      a.custom,
			Authored:    a.hasValue || len(a.samples) > 0,
			TimeSamples: append([]TimeSample(nil), a.samples...),
		})
	}
	return out, nil
}

func (s *MemoryStage) Primvars(p Path) ([]PrimvarInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, err := s.record(p)
	if err != nil {
		return nil, err
	}
	out := make([]PrimvarInfo, 0, len(rec.primvars))
	for _, pv := range rec.primvars {
		out = append(out, PrimvarInfo{
			Name:          pv.name,
			TypeName:      pv.typeName,
			Value:         pv.value,
			Interpolation: pv.interpolation,
			ElementSize:   pv.elementSize,
			Indices:       append([]int(nil), pv.indices...),
		})
	}
	return out, nil
}

func (s *MemoryStage) VariantSets(p Path) ([]VariantSetInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, err := s.record(p)
	if err != nil {
		return nil, err
	}
	out := make([]VariantSetInfo, 0, len(rec.variantSets))
	for _, vs := range rec.variantSets {
		out = append(out, VariantSetInfo{
			Name:      vs.name,
			Variants:  append([]string(nil), vs.variants...),
			Selection: vs.selection,
		})
	}
	return out, nil
}

func (s *MemoryStage) SelectVariant(p Path, set, variant string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.record(p)
	if err != nil {
		return err
	}
	vs := rec.variantSet(set)
	if vs == nil {
		return fmt.Errorf("no variant set %q on %s: %w", set, p, ErrMutationRejected)
	}
	if !contains(vs.variants, variant) {
		return fmt.Errorf("variant set %q has no variant %q: %w", set, variant, ErrMutationRejected)
	}
	vs.selection = variant
	return nil
}

func (s *MemoryStage) SetKind(p Path, kind string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.record(p)
	if err != nil {
		return err
	}
	if !ValidKind(kind) {
		return fmt.Errorf("unknown kind %q: %w", kind, ErrMutationRejected)
	}
	rec.kind = kind
	return nil
}

func (s *MemoryStage) SetPurpose(p Path, purpose string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.record(p)
	if err != nil {
		return err
	}
	if !ValidPurpose(purpose) {
		return fmt.Errorf("unknown purpose %q: %w", purpose, ErrMutationRejected)
	}
	if !Imageable(rec.typeName) {
		return fmt.Errorf("%s (%s) is not imageable: %w", p, orUntyped(rec.typeName), ErrMutationRejected)
	}
	a := rec.attr("purpose")
	if a == nil {
		a = &attrRecord{name: "purpose", typeName: "token"}
		rec.attrs = append(rec.attrs, a)
	}
	a.value = purpose
	a.hasValue = true
	return nil
}

func (s *MemoryStage) LoadPayload(p Path) error {
	return s.setPayloadLoaded(p, true)
}

func (s *MemoryStage) UnloadPayload(p Path) error {
	return s.setPayloadLoaded(p, false)
}

func (s *MemoryStage) setPayloadLoaded(p Path, loaded bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.record(p)
	if err != nil {
		return err
	}
	if rec.payload == "" {
		return fmt.Errorf("%s has no payload arc: %w", p, ErrMutationRejected)
	}
	rec.loaded = loaded
	return nil
}

func (s *MemoryStage) AddAttribute(p Path, name, typeName string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.record(p)
	if err != nil {
		return err
	}
	if !validAttrName(name) {
		return fmt.Errorf("invalid attribute name %q: %w", name, ErrMutationRejected)
	}
	if strings.HasPrefix(name, "primvars:") {
		return fmt.Errorf("%q is in the primvars namespace, author it as a primvar: %w", name, ErrMutationRejected)
	}
	if !KnownTypeName(typeName) {
		return fmt.Errorf("unknown type name %q: %w", typeName, ErrMutationRejected)
	}
	if rec.attr(name) != nil {
		return fmt.Errorf("attribute %q already exists on %s: %w", name, p, ErrMutationRejected)
	}
	a := &attrRecord{name: name, typeName: typeName, custom: true}
	if value != nil {
		cv, err := Coerce(value, typeName)
		if err != nil {
			return fmt.Errorf("attribute %q: %w", name, err)
		}
		a.value = cv
		a.hasValue = true
	}
	rec.attrs = append(rec.attrs, a)
	return nil
}

func (s *MemoryStage) RemoveAttribute(p Path, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.record(p)
	if err != nil {
		return err
	}
	for i, a := range rec.attrs {
		if a.name == name {
			rec.attrs = append(rec.attrs[:i], rec.attrs[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("no attribute %q on %s: %w", name, p, ErrMutationRejected)
}

func (s *MemoryStage) SetAttributeValue(p Path, name string, value any, at *float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.record(p)
	if err != nil {
		return err
	}
	a := rec.attr(name)
	if a == nil {
		return fmt.Errorf("no attribute %q on %s: %w", name, p, ErrMutationRejected)
	}
	cv, err := Coerce(value, a.typeName)
	if err != nil {
		return fmt.Errorf("attribute %q: %w", name, err)
	}
	if at == nil {
		a.value = cv
		a.hasValue = true
		return nil
	}
	i := sort.Search(len(a.samples), func(i int) bool { return a.samples[i].Time >= *at })
	if i < len(a.samples) && a.samples[i].Time == *at {
		a.samples[i].Value = cv
		return nil
	}
	a.samples = append(a.samples, TimeSample{})
	copy(a.samples[i+1:], a.samples[i:])
	a.samples[i] = TimeSample{Time: *at, Value: cv}
	return nil
}

func (s *MemoryStage) AddPrimvar(p Path, name, typeName string, value any, interpolation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.record(p)
	if err != nil {
		return err
	}
	name = sdftext.PrimvarName(name)
	if !validAttrName(name) {
		return fmt.Errorf("invalid primvar name %q: %w", name, ErrMutationRejected)
	}
	if !Imageable(rec.typeName) {
		return fmt.Errorf("%s (%s) is not imageable: %w", p, orUntyped(rec.typeName), ErrMutationRejected)
	}
	if !KnownTypeName(typeName) {
		return fmt.Errorf("unknown type name %q: %w", typeName, ErrMutationRejected)
	}
	if interpolation == "" {
		interpolation = "constant"
	}
	if !ValidInterpolation(interpolation) {
		return fmt.Errorf("unknown interpolation %q: %w", interpolation, ErrMutationRejected)
	}
	if rec.primvar(name) != nil {
		return fmt.Errorf("primvar %q already exists on %s: %w", name, p, ErrMutationRejected)
	}
	pv := &primvarRecord{name: name, typeName: typeName, interpolation: interpolation}
	if value != nil {
		cv, err := Coerce(value, typeName)
		if err != nil {
			return fmt.Errorf("primvar %q: %w", name, err)
		}
		pv.value = cv
	}
	rec.primvars = append(rec.primvars, pv)
	return nil
}

func (s *MemoryStage) RemovePrimvar(p Path, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.record(p)
	if err != nil {
		return err
	}
	name = sdftext.PrimvarName(name)
	for i, pv := range rec.primvars {
		if pv.name == name {
			rec.primvars = append(rec.primvars[:i], rec.primvars[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("no primvar %q on %s: %w", name, p, ErrMutationRejected)
}

// ReplaceFromText parses text and swaps the entire hierarchy for the
// result. On any parse or validation error the stage keeps its current
// content.
func (s *MemoryStage) ReplaceFromText(text string) error {
	doc, err := sdftext.Parse(text)
	if err != nil {
		return fmt.Errorf("stage text rejected: %v: %w", err, ErrMutationRejected)
	}
	prims, err := recordsFromDocument(doc)
	if err != nil {
		return fmt.Errorf("stage text rejected: %v: %w", err, ErrMutationRejected)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prims = prims
	s.open = true
	return nil
}

func (s *MemoryStage) ExportText() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.open {
		return "", ErrStageUnavailable
	}
	return sdftext.Format(documentFromRecords(s.prims)), nil
}

// Document snapshots the stage as a parse tree, e.g. for per-prim
// splice write-back. Callers own the result.
func (s *MemoryStage) Document() (*sdftext.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.open {
		return nil, ErrStageUnavailable
	}
	return documentFromRecords(s.prims), nil
}
