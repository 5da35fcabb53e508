package scene

import (
	"io"
	"sync"
)

// HotSwapStage is a thread-safe wrapper that allows swapping the
// underlying stage provider while readers keep using one handle. Open
// and reopen go through Swap; everything else delegates.
type HotSwapStage struct {
	mu      sync.RWMutex
	current Provider
}

var _ Provider = (*HotSwapStage)(nil)

func NewHotSwapStage(initial Provider) *HotSwapStage {
	return &HotSwapStage{current: initial}
}

// Swap atomically replaces the current provider with a new one and
// closes the old one when it holds resources.
func (h *HotSwapStage) Swap(next Provider) {
	h.mu.Lock()
	old := h.current
	h.current = next
	h.mu.Unlock()
	if closer, ok := old.(io.Closer); ok && old != nil {
		_ = closer.Close()
	}
}

// Current returns the wrapped provider. Callers must not retain it
// across a Swap.
func (h *HotSwapStage) Current() Provider {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

func (h *HotSwapStage) Root() (Path, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current.Root()
}

func (h *HotSwapStage) Children(p Path) ([]Path, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current.Children(p)
}

func (h *HotSwapStage) HasChildren(p Path) (bool, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current.HasChildren(p)
}

func (h *HotSwapStage) Info(p Path) (NodeInfo, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current.Info(p)
}

func (h *HotSwapStage) Attributes(p Path) ([]AttributeInfo, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current.Attributes(p)
}

func (h *HotSwapStage) Primvars(p Path) ([]PrimvarInfo, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current.Primvars(p)
}

func (h *HotSwapStage) VariantSets(p Path) ([]VariantSetInfo, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current.VariantSets(p)
}

func (h *HotSwapStage) SelectVariant(p Path, set, variant string) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current.SelectVariant(p, set, variant)
}

func (h *HotSwapStage) SetKind(p Path, kind string) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current.SetKind(p, kind)
}

func (h *HotSwapStage) SetPurpose(p Path, purpose string) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current.SetPurpose(p, purpose)
}

func (h *HotSwapStage) LoadPayload(p Path) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current.LoadPayload(p)
}

func (h *HotSwapStage) UnloadPayload(p Path) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current.UnloadPayload(p)
}

func (h *HotSwapStage) AddAttribute(p Path, name, typeName string, value any) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current.AddAttribute(p, name, typeName, value)
}

func (h *HotSwapStage) RemoveAttribute(p Path, name string) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current.RemoveAttribute(p, name)
}

func (h *HotSwapStage) SetAttributeValue(p Path, name string, value any, at *float64) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current.SetAttributeValue(p, name, value, at)
}

func (h *HotSwapStage) AddPrimvar(p Path, name, typeName string, value any, interpolation string) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current.AddPrimvar(p, name, typeName, value, interpolation)
}

func (h *HotSwapStage) RemovePrimvar(p Path, name string) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current.RemovePrimvar(p, name)
}

func (h *HotSwapStage) ReplaceFromText(text string) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current.ReplaceFromText(text)
}

func (h *HotSwapStage) ExportText() (string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current.ExportText()
}
