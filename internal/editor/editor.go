// Package editor is the authoring façade a host binds to: one object
// owning the stage provider, the info cache, the tree projection and
// the view session. Mutations come back as Result values with a
// human-readable message; nothing here is fatal.
package editor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/voidreamer/maya-usd-author/internal/config"
	"github.com/voidreamer/maya-usd-author/internal/control"
	"github.com/voidreamer/maya-usd-author/internal/infocache"
	"github.com/voidreamer/maya-usd-author/internal/scene"
	"github.com/voidreamer/maya-usd-author/internal/sdftext"
	"github.com/voidreamer/maya-usd-author/internal/session"
	"github.com/voidreamer/maya-usd-author/internal/treeview"
)

// Result is the outcome of an editing operation.
type Result struct {
	OK      bool
	Message string
}

func ok(msg string) Result { return Result{OK: true, Message: msg} }

func fail(err error) Result { return Result{Message: err.Error()} }

// Editor binds a hot-swappable stage, the info cache and the tree
// projection under one set of operations. Reads go through the cache;
// every successful mutation invalidates exactly the touched path and
// records it in the projection's dirty set.
//
// The editor itself is not safe for concurrent use. The Reader it
// exposes is, so mount surfaces may read while one host edits.
type Editor struct {
	cfg   config.Options
	stage *scene.HotSwapStage
	cache *infocache.Cache
	proj  *treeview.Projection

	stagePath string
	selection scene.Path
	onSelect  func(scene.Path)

	sessions *session.Store

	ctl     *control.Controller
	lastGen uint64

	log logrus.FieldLogger
}

// New builds an editor around an empty stage. Load a file or replace
// the stage text before browsing.
func New(cfg config.Options) (*Editor, error) {
	hot := scene.NewHotSwapStage(scene.NewMemoryStage())
	cache := infocache.New(hot)
	cache.SetEnabled(cfg.CacheNodeInfo)

	e := &Editor{
		cfg:   cfg,
		stage: hot,
		cache: cache,
		proj: treeview.NewProjection(cache, treeview.Options{
			AutoExpand:       cfg.AutoExpand,
			MaxExpandedDepth: cfg.MaxExpandedDepth,
		}),
		log: logrus.WithField("component", "editor"),
	}
	if cfg.SessionDB != "" {
		store, err := session.Open(cfg.SessionDB)
		if err != nil {
			return nil, err
		}
		e.sessions = store
	}
	return e, nil
}

// Close saves the session for the current stage and releases the
// editor's resources.
func (e *Editor) Close() error {
	if err := e.SaveSession(); err != nil {
		e.log.WithError(err).Warn("session save failed on close")
	}
	var firstErr error
	if e.sessions != nil {
		firstErr = e.sessions.Close()
	}
	if e.ctl != nil {
		if err := e.ctl.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if closer, ok := e.stage.Current().(io.Closer); ok {
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Reader returns the cached read side of the stage. Safe for
// concurrent use by mount surfaces.
func (e *Editor) Reader() scene.Reader { return e.cache }

// Stage returns the live provider.
func (e *Editor) Stage() scene.Provider { return e.stage }

// Cache returns the info cache.
func (e *Editor) Cache() *infocache.Cache { return e.cache }

// Projection returns the tree projection. Callers must not use it
// concurrently with editor operations.
func (e *Editor) Projection() *treeview.Projection { return e.proj }

// StagePath returns the file behind the current stage, "" when the
// stage came from inline text.
func (e *Editor) StagePath() string { return e.stagePath }

// LoadFile opens a stage file: .db/.sqlite files as a SQLite stage,
// anything else as stage text. View state saved for that file is
// restored.
func (e *Editor) LoadFile(path string) Result {
	var provider scene.Provider
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite":
		st, err := scene.OpenSQLiteStage(path)
		if err != nil {
			return fail(err)
		}
		provider = st
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return fail(fmt.Errorf("read stage: %w", err))
		}
		st, err := scene.NewMemoryStageFromText(string(data))
		if err != nil {
			return fail(err)
		}
		provider = st
	}

	// A reload of the same file keeps the live view state; Rebuild
	// carries the expansion set across.
	samePath := path == e.stagePath
	e.stage.Swap(provider)
	e.stagePath = path
	e.cache.InvalidateAll()
	if e.ctl != nil {
		if err := e.ctl.SetStage(path); err != nil {
			e.log.WithError(err).Warn("control block not updated")
		}
		e.lastGen = e.ctl.Generation()
	}
	if !samePath {
		e.selection = ""
		e.restoreSession()
	}
	if err := e.proj.Rebuild(); err != nil {
		return fail(err)
	}
	if !e.cfg.LazyLoading {
		e.materializeAll()
	}
	return ok(fmt.Sprintf("loaded %s", path))
}

// SaveFile writes the stage text to path atomically and makes path the
// stage's backing file.
func (e *Editor) SaveFile(path string) Result {
	text, err := e.stage.ExportText()
	if err != nil {
		return fail(err)
	}
	if err := sdftext.WriteFileAtomic(path, []byte(text)); err != nil {
		return fail(err)
	}
	e.stagePath = path
	if e.ctl != nil {
		if err := e.ctl.SetStage(path); err != nil {
			e.log.WithError(err).Warn("control block not updated")
		}
		e.lastGen = e.ctl.Bump()
	}
	return ok(fmt.Sprintf("saved %s", path))
}

// Save writes back to the file the stage was loaded from.
func (e *Editor) Save() Result {
	if e.stagePath == "" {
		return fail(errors.New("no backing file; use SaveFile"))
	}
	return e.SaveFile(e.stagePath)
}

// ExportText returns the stage serialized as text.
func (e *Editor) ExportText() (string, error) { return e.stage.ExportText() }

// materializeAll walks the whole tree so every node is loaded up
// front.
func (e *Editor) materializeAll() {
	root := e.proj.Root()
	if root == nil {
		return
	}
	queue := []*treeview.Node{root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		children, err := n.Children()
		if err != nil {
			continue
		}
		queue = append(queue, children...)
	}
}

// restoreSession applies saved view state for the current stage file.
func (e *Editor) restoreSession() {
	if e.sessions == nil || e.stagePath == "" {
		return
	}
	st, found, err := e.sessions.Load(e.stagePath)
	if err != nil {
		e.log.WithError(err).Debug("session restore failed")
		return
	}
	if !found {
		return
	}
	e.proj.RestoreExpanded(st.Expanded)
	e.selection = st.Selection
}

// SaveSession persists expansion and selection for the current stage
// file. A no-op without a session store or a backing file.
func (e *Editor) SaveSession() error {
	if e.sessions == nil || e.stagePath == "" {
		return nil
	}
	return e.sessions.Save(e.stagePath, session.State{
		Expanded:  e.proj.ExpandedPaths(),
		Selection: e.selection,
	})
}

// Info reads the cached node snapshot.
func (e *Editor) Info(p scene.Path) (scene.NodeInfo, error) { return e.cache.Info(p) }

// Attributes reads the cached attribute list.
func (e *Editor) Attributes(p scene.Path) ([]scene.AttributeInfo, error) {
	return e.cache.Attributes(p)
}

// Primvars reads the cached primvar list.
func (e *Editor) Primvars(p scene.Path) ([]scene.PrimvarInfo, error) {
	return e.cache.Primvars(p)
}

// VariantSets always reads live selections.
func (e *Editor) VariantSets(p scene.Path) ([]scene.VariantSetInfo, error) {
	return e.cache.VariantSets(p)
}

// mutate runs one provider mutation and, on success, invalidates the
// touched path and marks it dirty.
func (e *Editor) mutate(p scene.Path, success string, op func() error) Result {
	if err := op(); err != nil {
		return fail(err)
	}
	e.cache.Invalidate(p)
	e.proj.MarkDirty(p)
	return ok(success)
}

func (e *Editor) SetKind(p scene.Path, kind string) Result {
	return e.mutate(p, fmt.Sprintf("kind of %s set to %q", p, kind),
		func() error { return e.stage.SetKind(p, kind) })
}

func (e *Editor) SetPurpose(p scene.Path, purpose string) Result {
	return e.mutate(p, fmt.Sprintf("purpose of %s set to %q", p, purpose),
		func() error { return e.stage.SetPurpose(p, purpose) })
}

func (e *Editor) SelectVariant(p scene.Path, set, variant string) Result {
	return e.mutate(p, fmt.Sprintf("variant %s=%s selected on %s", set, variant, p),
		func() error { return e.stage.SelectVariant(p, set, variant) })
}

func (e *Editor) AddAttribute(p scene.Path, name, typeName string, value any) Result {
	return e.mutate(p, fmt.Sprintf("attribute %s added to %s", name, p),
		func() error { return e.stage.AddAttribute(p, name, typeName, value) })
}

func (e *Editor) RemoveAttribute(p scene.Path, name string) Result {
	return e.mutate(p, fmt.Sprintf("attribute %s removed from %s", name, p),
		func() error { return e.stage.RemoveAttribute(p, name) })
}

func (e *Editor) SetAttributeValue(p scene.Path, name string, value any, at *float64) Result {
	msg := fmt.Sprintf("attribute %s set on %s", name, p)
	if at != nil {
		msg = fmt.Sprintf("attribute %s set on %s at time %g", name, p, *at)
	}
	return e.mutate(p, msg,
		func() error { return e.stage.SetAttributeValue(p, name, value, at) })
}

func (e *Editor) AddPrimvar(p scene.Path, name, typeName string, value any, interpolation string) Result {
	return e.mutate(p, fmt.Sprintf("primvar %s added to %s", name, p),
		func() error { return e.stage.AddPrimvar(p, name, typeName, value, interpolation) })
}

func (e *Editor) RemovePrimvar(p scene.Path, name string) Result {
	return e.mutate(p, fmt.Sprintf("primvar %s removed from %s", name, p),
		func() error { return e.stage.RemovePrimvar(p, name) })
}

// LoadPayload loads the payload on p and brings its descendants back
// into view.
func (e *Editor) LoadPayload(p scene.Path) Result {
	return e.payloadOp(p, "payload loaded on %s", e.stage.LoadPayload)
}

// UnloadPayload unloads the payload on p, hiding its descendants.
func (e *Editor) UnloadPayload(p scene.Path) Result {
	return e.payloadOp(p, "payload unloaded on %s", e.stage.UnloadPayload)
}

// payloadOp differs from mutate: payload state changes visibility of a
// whole subtree, so the cache is invalidated by prefix, the node's
// materialized children are dropped and the rows are refreshed.
func (e *Editor) payloadOp(p scene.Path, format string, op func(scene.Path) error) Result {
	if err := op(p); err != nil {
		return fail(err)
	}
	e.cache.InvalidatePrefix(p)
	if n := e.proj.NodeAt(p); n != nil {
		n.Invalidate()
	}
	e.proj.MarkDirty(p)
	if err := e.proj.Refresh(); err != nil {
		return fail(err)
	}
	return ok(fmt.Sprintf(format, p))
}

// ReplaceFromText swaps the whole hierarchy for the parsed text. On
// rejected text the stage, cache and rows are untouched.
func (e *Editor) ReplaceFromText(text string) Result {
	if err := e.stage.ReplaceFromText(text); err != nil {
		return fail(err)
	}
	e.cache.InvalidateAll()
	if err := e.proj.Rebuild(); err != nil {
		return fail(err)
	}
	return ok("stage replaced from text")
}

// Select resolves p to a visible row, remembers it as the current
// selection and fires the selection callback. A hidden or vanished
// path reports not-found.
func (e *Editor) Select(p scene.Path) Result {
	idx := e.proj.IndexOf(p)
	if idx < 0 {
		return fail(fmt.Errorf("%s: %w", p, scene.ErrNotFound))
	}
	e.selection = p
	if e.onSelect != nil {
		e.onSelect(p)
	}
	return ok(fmt.Sprintf("selected %s (row %d)", p, idx))
}

// Reveal expands p's ancestors so p gets a row, then selects it.
func (e *Editor) Reveal(p scene.Path) Result {
	for _, anc := range p.Ancestors() {
		e.proj.TrackExpanded(anc, true)
	}
	if err := e.proj.Refresh(); err != nil {
		return fail(err)
	}
	return e.Select(p)
}

// SelectAncestors returns the chain a host expands to reveal p.
func (e *Editor) SelectAncestors(p scene.Path) []scene.Path { return p.Ancestors() }

// Selection returns the current selection, "" when nothing is
// selected.
func (e *Editor) Selection() scene.Path { return e.selection }

// OnSelect registers the selection-changed callback.
func (e *Editor) OnSelect(fn func(scene.Path)) { e.onSelect = fn }

// AttachControl maps the control block at path and primes the
// generation baseline for CheckExternal.
func (e *Editor) AttachControl(path string) error {
	ctl, err := control.OpenOrCreate(path)
	if err != nil {
		return err
	}
	e.ctl = ctl
	e.lastGen = ctl.Generation()
	if e.stagePath != "" {
		if err := ctl.SetStage(e.stagePath); err != nil {
			e.log.WithError(err).Warn("control block not updated")
		}
	}
	return nil
}

// CheckExternal polls the control generation and reloads the backing
// file when an external writer bumped it. Returns true when a reload
// happened.
func (e *Editor) CheckExternal() (bool, error) {
	if e.ctl == nil {
		return false, nil
	}
	gen := e.ctl.Generation()
	if gen == e.lastGen {
		return false, nil
	}
	e.lastGen = gen
	if e.stagePath == "" {
		return false, nil
	}
	e.log.WithFields(logrus.Fields{
		"generation": gen,
		"stage":      e.stagePath,
	}).Info("external edit detected, reloading stage")
	if res := e.LoadFile(e.stagePath); !res.OK {
		return false, errors.New(res.Message)
	}
	return true, nil
}
