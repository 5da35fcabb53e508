package scene

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ohler55/ojg/oj"
	_ "modernc.org/sqlite"

	"github.com/voidreamer/maya-usd-author/internal/sdftext"
)

// SQLiteStage is the durable stage backend. The hierarchy lives in a
// prims table keyed by path with an indexed (parent, ord) pair, so
// child listing is one range scan and the existence probe is a LIMIT 1
// lookup that touches no child rows. Values are stored as JSON text.
type SQLiteStage struct {
	db *sql.DB
}

var _ Provider = (*SQLiteStage)(nil)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS prims (
	path         TEXT PRIMARY KEY,
	parent       TEXT NOT NULL,
	ord          INTEGER NOT NULL,
	specifier    TEXT NOT NULL DEFAULT 'def',
	type_name    TEXT NOT NULL DEFAULT '',
	kind         TEXT NOT NULL DEFAULT '',
	active       INTEGER NOT NULL DEFAULT 1,
	abstract     INTEGER NOT NULL DEFAULT 0,
	instanceable INTEGER NOT NULL DEFAULT 0,
	payload      TEXT NOT NULL DEFAULT '',
	loaded       INTEGER NOT NULL DEFAULT 0,
	metadata     TEXT NOT NULL DEFAULT 'null'
);
CREATE INDEX IF NOT EXISTS idx_prims_parent ON prims(parent, ord);

CREATE TABLE IF NOT EXISTS attributes (
	path      TEXT NOT NULL,
	name      TEXT NOT NULL,
	ord       INTEGER NOT NULL,
	type_name TEXT NOT NULL,
	custom    INTEGER NOT NULL DEFAULT 0,
	uniform   INTEGER NOT NULL DEFAULT 0,
	has_value INTEGER NOT NULL DEFAULT 0,
	value     TEXT NOT NULL DEFAULT 'null',
	PRIMARY KEY (path, name)
);

CREATE TABLE IF NOT EXISTS time_samples (
	path  TEXT NOT NULL,
	attr  TEXT NOT NULL,
	t     REAL NOT NULL,
	value TEXT NOT NULL DEFAULT 'null',
	PRIMARY KEY (path, attr, t)
);

CREATE TABLE IF NOT EXISTS primvars (
	path          TEXT NOT NULL,
	name          TEXT NOT NULL,
	ord           INTEGER NOT NULL,
	type_name     TEXT NOT NULL,
	interpolation TEXT NOT NULL DEFAULT 'constant',
	element_size  INTEGER NOT NULL DEFAULT 0,
	value         TEXT NOT NULL DEFAULT 'null',
	indices       TEXT NOT NULL DEFAULT '[]',
	PRIMARY KEY (path, name)
);

CREATE TABLE IF NOT EXISTS variant_sets (
	path      TEXT NOT NULL,
	name      TEXT NOT NULL,
	variants  TEXT NOT NULL DEFAULT '[]',
	selection TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (path, name)
);
`

// OpenSQLiteStage opens or creates a stage database at path.
func OpenSQLiteStage(path string) (*SQLiteStage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open stage db %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure stage db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create stage schema: %w", err)
	}
	return &SQLiteStage{db: db}, nil
}

func (s *SQLiteStage) Close() error { return s.db.Close() }

type sqliteRow struct {
	specifier    string
	typeName     string
	kind         string
	active       bool
	abstract     bool
	instanceable bool
	payload      string
	loaded       bool
	metadata     string
}

// primRow resolves a path, applying payload visibility the same way
// MemoryStage does: a prim under an unloaded payload is not on the
// stage.
func (s *SQLiteStage) primRow(p Path) (*sqliteRow, error) {
	var r sqliteRow
	err := s.db.QueryRow(
		`SELECT specifier, type_name, kind, active, abstract, instanceable, payload, loaded, metadata
		 FROM prims WHERE path = ?`, string(p)).
		Scan(&r.specifier, &r.typeName, &r.kind, &r.active, &r.abstract, &r.instanceable, &r.payload, &r.loaded, &r.metadata)
	if errors.Is(err, sql.ErrNoRows) {
		if !s.isOpen() {
			return nil, ErrStageUnavailable
		}
		return nil, fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query prim %s: %w", p, err)
	}
	hidden, err := s.hiddenByPayload(p)
	if err != nil {
		return nil, err
	}
	if hidden {
		return nil, fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	return &r, nil
}

func (s *SQLiteStage) isOpen() bool {
	var one int
	return s.db.QueryRow(`SELECT 1 FROM prims WHERE path = '/'`).Scan(&one) == nil
}

func (s *SQLiteStage) hiddenByPayload(p Path) (bool, error) {
	var one int
	err := s.db.QueryRow(
		`SELECT 1 FROM prims WHERE payload != '' AND loaded = 0 AND ? LIKE path || '/%' LIMIT 1`,
		string(p)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("payload visibility for %s: %w", p, err)
	}
	return true, nil
}

func (s *SQLiteStage) Root() (Path, error) {
	if !s.isOpen() {
		return "", ErrStageUnavailable
	}
	return RootPath, nil
}

func (s *SQLiteStage) Children(p Path) ([]Path, error) {
	rec, err := s.primRow(p)
	if err != nil {
		return nil, err
	}
	if rec.payload != "" && !rec.loaded {
		return nil, nil
	}
	rows, err := s.db.Query(
		`SELECT path FROM prims WHERE parent = ? AND active = 1 AND abstract = 0 ORDER BY ord`,
		string(p))
	if err != nil {
		return nil, fmt.Errorf("list children of %s: %w", p, err)
	}
	defer rows.Close()
	var out []Path
	for rows.Next() {
		var cp string
		if err := rows.Scan(&cp); err != nil {
			return nil, err
		}
		out = append(out, Path(cp))
	}
	return out, rows.Err()
}

func (s *SQLiteStage) HasChildren(p Path) (bool, error) {
	rec, err := s.primRow(p)
	if err != nil {
		return false, err
	}
	if rec.payload != "" && !rec.loaded {
		return false, nil
	}
	var one int
	err = s.db.QueryRow(
		`SELECT 1 FROM prims WHERE parent = ? AND active = 1 AND abstract = 0 LIMIT 1`,
		string(p)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("probe children of %s: %w", p, err)
	}
	return true, nil
}

func (s *SQLiteStage) Info(p Path) (NodeInfo, error) {
	rec, err := s.primRow(p)
	if err != nil {
		return NodeInfo{}, err
	}
	info := NodeInfo{
		Path:          p,
		Name:          p.Name(),
		TypeName:      rec.typeName,
		Specifier:     rec.specifier,
		Kind:          rec.kind,
		Purpose:       "default",
		Active:        rec.active,
		Defined:       rec.specifier == "def",
		Abstract:      rec.abstract,
		Instance:      rec.instanceable,
		HasPayload:    rec.payload != "",
		PayloadLoaded: rec.payload != "" && rec.loaded,
	}
	if rec.metadata != "" && rec.metadata != "null" {
		if v, err := oj.Parse([]byte(rec.metadata)); err == nil {
			if m, ok := v.(map[string]any); ok {
				info.Metadata = m
			}
		}
	}
	var purposeJSON string
	err = s.db.QueryRow(
		`SELECT value FROM attributes WHERE path = ? AND name = 'purpose' AND has_value = 1`,
		string(p)).Scan(&purposeJSON)
	if err == nil {
		if v, perr := oj.Parse([]byte(purposeJSON)); perr == nil {
			if sv, ok := v.(string); ok && sv != "" {
				info.Purpose = sv
			}
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		return NodeInfo{}, fmt.Errorf("query purpose of %s: %w", p, err)
	}
	var one int
	err = s.db.QueryRow(`SELECT 1 FROM variant_sets WHERE path = ? LIMIT 1`, string(p)).Scan(&one)
	if err == nil {
		info.HasVariants = true
	} else if !errors.Is(err, sql.ErrNoRows) {
		return NodeInfo{}, fmt.Errorf("query variant sets of %s: %w", p, err)
	}
	return info, nil
}

func (s *SQLiteStage) Attributes(p Path) ([]AttributeInfo, error) {
	if _, err := s.primRow(p); err != nil {
		return nil, err
	}
	samples, err := s.samplesFor(p)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(
		`SELECT name, type_name, custom, has_value, value FROM attributes WHERE path = ? ORDER BY ord`,
		string(p))
	if err != nil {
		return nil, fmt.Errorf("list attributes of %s: %w", p, err)
	}
	defer rows.Close()
	var out []AttributeInfo
	for rows.Next() {
		var (
			a        AttributeInfo
			hasValue bool
			raw      string
		)
		if err := rows.Scan(&a.Name, &a.TypeName, &a.Custom, &hasValue, &raw); err != nil {
			return nil, err
		}
		if hasValue {
			a.Value = decodeValue(raw, a.TypeName)
		}
		a.TimeSamples = samples[a.Name]
		for i := range a.TimeSamples {
			a.TimeSamples[i].Value = coerceLoose(a.TimeSamples[i].Value, a.TypeName, true)
		}
		a.Authored = hasValue || len(a.TimeSamples) > 0
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLiteStage) samplesFor(p Path) (map[string][]TimeSample, error) {
	rows, err := s.db.Query(
		`SELECT attr, t, value FROM time_samples WHERE path = ? ORDER BY attr, t`, string(p))
	if err != nil {
		return nil, fmt.Errorf("list time samples of %s: %w", p, err)
	}
	defer rows.Close()
	out := map[string][]TimeSample{}
	for rows.Next() {
		var (
			attr string
			ts   TimeSample
			raw  string
		)
		if err := rows.Scan(&attr, &ts.Time, &raw); err != nil {
			return nil, err
		}
		ts.Value, _ = oj.Parse([]byte(raw))
		out[attr] = append(out[attr], ts)
	}
	return out, rows.Err()
}

func (s *SQLiteStage) Primvars(p Path) ([]PrimvarInfo, error) {
	if _, err := s.primRow(p); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(
		`SELECT name, type_name, interpolation, element_size, value, indices FROM primvars WHERE path = ? ORDER BY ord`,
		string(p))
	if err != nil {
		return nil, fmt.Errorf("list primvars of %s: %w", p, err)
	}
	defer rows.Close()
	var out []PrimvarInfo
	for rows.Next() {
		var (
			pv         PrimvarInfo
			raw, idxJS string
		)
		if err := rows.Scan(&pv.Name, &pv.TypeName, &pv.Interpolation, &pv.ElementSize, &raw, &idxJS); err != nil {
			return nil, err
		}
		if raw != "null" {
			pv.Value = decodeValue(raw, pv.TypeName)
		}
		if v, err := oj.Parse([]byte(idxJS)); err == nil {
			pv.Indices = toIntSlice(v)
		}
		out = append(out, pv)
	}
	return out, rows.Err()
}

func (s *SQLiteStage) VariantSets(p Path) ([]VariantSetInfo, error) {
	if _, err := s.primRow(p); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(
		`SELECT name, variants, selection FROM variant_sets WHERE path = ? ORDER BY name`, string(p))
	if err != nil {
		return nil, fmt.Errorf("list variant sets of %s: %w", p, err)
	}
	defer rows.Close()
	var out []VariantSetInfo
	for rows.Next() {
		var (
			vs  VariantSetInfo
			raw string
		)
		if err := rows.Scan(&vs.Name, &raw, &vs.Selection); err != nil {
			return nil, err
		}
		if v, err := oj.Parse([]byte(raw)); err == nil {
			if items, ok := v.([]any); ok {
				for _, item := range items {
					if sv, ok := item.(string); ok {
						vs.Variants = append(vs.Variants, sv)
					}
				}
			}
		}
		out = append(out, vs)
	}
	return out, rows.Err()
}

func (s *SQLiteStage) SelectVariant(p Path, set, variant string) error {
	if _, err := s.primRow(p); err != nil {
		return err
	}
	var raw string
	err := s.db.QueryRow(
		`SELECT variants FROM variant_sets WHERE path = ? AND name = ?`, string(p), set).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("no variant set %q on %s: %w", set, p, ErrMutationRejected)
	}
	if err != nil {
		return fmt.Errorf("query variant set %q: %w", set, err)
	}
	found := false
	if v, perr := oj.Parse([]byte(raw)); perr == nil {
		if items, ok := v.([]any); ok {
			for _, item := range items {
				if item == variant {
					found = true
					break
				}
			}
		}
	}
	if !found {
		return fmt.Errorf("variant set %q has no variant %q: %w", set, variant, ErrMutationRejected)
	}
	_, err = s.db.Exec(
		`UPDATE variant_sets SET selection = ? WHERE path = ? AND name = ?`, variant, string(p), set)
	return err
}

func (s *SQLiteStage) SetKind(p Path, kind string) error {
	if !ValidKind(kind) {
		return fmt.Errorf("unknown kind %q: %w", kind, ErrMutationRejected)
	}
	if _, err := s.primRow(p); err != nil {
		return err
	}
	_, err := s.db.Exec(`UPDATE prims SET kind = ? WHERE path = ?`, kind, string(p))
	return err
}

func (s *SQLiteStage) SetPurpose(p Path, purpose string) error {
	if !ValidPurpose(purpose) {
		return fmt.Errorf("unknown purpose %q: %w", purpose, ErrMutationRejected)
	}
	rec, err := s.primRow(p)
	if err != nil {
		return err
	}
	if !Imageable(rec.typeName) {
		return fmt.Errorf("%s (%s) is not imageable: %w", p, orUntyped(rec.typeName), ErrMutationRejected)
	}
	res, err := s.db.Exec(
		`UPDATE attributes SET value = ?, has_value = 1 WHERE path = ? AND name = 'purpose'`,
		oj.JSON(purpose), string(p))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		_, err = s.db.Exec(
			`INSERT INTO attributes (path, name, ord, type_name, has_value, value)
			 VALUES (?, 'purpose', (SELECT COALESCE(MAX(ord)+1, 0) FROM attributes WHERE path = ?), 'token', 1, ?)`,
			string(p), string(p), oj.JSON(purpose))
	}
	return err
}

func (s *SQLiteStage) LoadPayload(p Path) error { return s.setPayloadLoaded(p, true) }

func (s *SQLiteStage) UnloadPayload(p Path) error { return s.setPayloadLoaded(p, false) }

func (s *SQLiteStage) setPayloadLoaded(p Path, loaded bool) error {
	rec, err := s.primRow(p)
	if err != nil {
		return err
	}
	if rec.payload == "" {
		return fmt.Errorf("%s has no payload arc: %w", p, ErrMutationRejected)
	}
	_, err = s.db.Exec(`UPDATE prims SET loaded = ? WHERE path = ?`, loaded, string(p))
	return err
}

func (s *SQLiteStage) AddAttribute(p Path, name, typeName string, value any) error {
	if _, err := s.primRow(p); err != nil {
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
	raw, hasValue := "null", false
	if value != nil {
		cv, err := Coerce(value, typeName)
		if err != nil {
			return fmt.Errorf("attribute %q: %w", name, err)
		}
		raw, hasValue = oj.JSON(cv), true
	}
	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO attributes (path, name, ord, type_name, custom, has_value, value)
		 VALUES (?, ?, (SELECT COALESCE(MAX(ord)+1, 0) FROM attributes WHERE path = ?), ?, 1, ?, ?)`,
		string(p), name, string(p), typeName, hasValue, raw)
	if err != nil {
		return fmt.Errorf("add attribute %q: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("attribute %q already exists on %s: %w", name, p, ErrMutationRejected)
	}
	return nil
}

func (s *SQLiteStage) RemoveAttribute(p Path, name string) error {
	if _, err := s.primRow(p); err != nil {
		return err
	}
	res, err := s.db.Exec(`DELETE FROM attributes WHERE path = ? AND name = ?`, string(p), name)
	if err != nil {
		return fmt.Errorf("remove attribute %q: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("no attribute %q on %s: %w", name, p, ErrMutationRejected)
	}
	_, err = s.db.Exec(`DELETE FROM time_samples WHERE path = ? AND attr = ?`, string(p), name)
	return err
}

func (s *SQLiteStage) SetAttributeValue(p Path, name string, value any, at *float64) error {
	if _, err := s.primRow(p); err != nil {
		return err
	}
	var typeName string
	err := s.db.QueryRow(
		`SELECT type_name FROM attributes WHERE path = ? AND name = ?`, string(p), name).Scan(&typeName)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("no attribute %q on %s: %w", name, p, ErrMutationRejected)
	}
	if err != nil {
		return fmt.Errorf("query attribute %q: %w", name, err)
	}
	cv, err := Coerce(value, typeName)
	if err != nil {
		return fmt.Errorf("attribute %q: %w", name, err)
	}
	if at == nil {
		_, err = s.db.Exec(
			`UPDATE attributes SET value = ?, has_value = 1 WHERE path = ? AND name = ?`,
			oj.JSON(cv), string(p), name)
		return err
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO time_samples (path, attr, t, value) VALUES (?, ?, ?, ?)`,
		string(p), name, *at, oj.JSON(cv))
	return err
}

func (s *SQLiteStage) AddPrimvar(p Path, name, typeName string, value any, interpolation string) error {
	rec, err := s.primRow(p)
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
	raw := "null"
	if value != nil {
		cv, err := Coerce(value, typeName)
		if err != nil {
			return fmt.Errorf("primvar %q: %w", name, err)
		}
		raw = oj.JSON(cv)
	}
	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO primvars (path, name, ord, type_name, interpolation, value)
		 VALUES (?, ?, (SELECT COALESCE(MAX(ord)+1, 0) FROM primvars WHERE path = ?), ?, ?, ?)`,
		string(p), name, string(p), typeName, interpolation, raw)
	if err != nil {
		return fmt.Errorf("add primvar %q: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("primvar %q already exists on %s: %w", name, p, ErrMutationRejected)
	}
	return nil
}

func (s *SQLiteStage) RemovePrimvar(p Path, name string) error {
	if _, err := s.primRow(p); err != nil {
		return err
	}
	name = sdftext.PrimvarName(name)
	res, err := s.db.Exec(`DELETE FROM primvars WHERE path = ? AND name = ?`, string(p), name)
	if err != nil {
		return fmt.Errorf("remove primvar %q: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("no primvar %q on %s: %w", name, p, ErrMutationRejected)
	}
	return nil
}

// ReplaceFromText swaps the whole database content for the parsed text
// in one transaction.
func (s *SQLiteStage) ReplaceFromText(text string) error {
	doc, err := sdftext.Parse(text)
	if err != nil {
		return fmt.Errorf("stage text rejected: %v: %w", err, ErrMutationRejected)
	}
	prims, err := recordsFromDocument(doc)
	if err != nil {
		return fmt.Errorf("stage text rejected: %v: %w", err, ErrMutationRejected)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin stage swap: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"prims", "attributes", "time_samples", "primvars", "variant_sets"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	if err := insertRecords(tx, prims); err != nil {
		return err
	}
	return tx.Commit()
}

func insertRecords(tx *sql.Tx, prims map[Path]*primRecord) error {
	insPrim, err := tx.Prepare(
		`INSERT INTO prims (path, parent, ord, specifier, type_name, kind, active, abstract, instanceable, payload, loaded, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insPrim.Close()
	insAttr, err := tx.Prepare(
		`INSERT INTO attributes (path, name, ord, type_name, custom, uniform, has_value, value)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insAttr.Close()
	insSample, err := tx.Prepare(
		`INSERT INTO time_samples (path, attr, t, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insSample.Close()
	insPrimvar, err := tx.Prepare(
		`INSERT INTO primvars (path, name, ord, type_name, interpolation, element_size, value, indices)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insPrimvar.Close()
	insVariant, err := tx.Prepare(
		`INSERT INTO variant_sets (path, name, variants, selection) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insVariant.Close()

	var write func(p Path, parent Path, ord int) error
	write = func(p Path, parent Path, ord int) error {
		rec := prims[p]
		meta := "null"
		if rec.metadata != nil {
			meta = oj.JSON(rec.metadata)
		}
		if _, err := insPrim.Exec(string(p), string(parent), ord, rec.specifier, rec.typeName, rec.kind,
			rec.active, rec.abstract, rec.instanceable, rec.payload, rec.loaded, meta); err != nil {
			return fmt.Errorf("insert prim %s: %w", p, err)
		}
		for i, a := range rec.attrs {
			if _, err := insAttr.Exec(string(p), a.name, i, a.typeName, a.custom, a.uniform,
				a.hasValue, oj.JSON(a.value)); err != nil {
				return fmt.Errorf("insert attribute %s.%s: %w", p, a.name, err)
			}
			for _, ts := range a.samples {
				if _, err := insSample.Exec(string(p), a.name, ts.Time, oj.JSON(ts.Value)); err != nil {
					return fmt.Errorf("insert sample %s.%s@%v: %w", p, a.name, ts.Time, err)
				}
			}
		}
		for i, pv := range rec.primvars {
			if _, err := insPrimvar.Exec(string(p), pv.name, i, pv.typeName, pv.interpolation,
				pv.elementSize, oj.JSON(pv.value), oj.JSON(pv.indices)); err != nil {
				return fmt.Errorf("insert primvar %s.%s: %w", p, pv.name, err)
			}
		}
		for _, vs := range rec.variantSets {
			if _, err := insVariant.Exec(string(p), vs.name, oj.JSON(vs.variants), vs.selection); err != nil {
				return fmt.Errorf("insert variant set %s.%s: %w", p, vs.name, err)
			}
		}
		for i, cp := range rec.children {
			if err := write(cp, p, i); err != nil {
				return err
			}
		}
		return nil
	}
	return write(RootPath, "", 0)
}

// ExportText loads the whole hierarchy back into records and formats
// it, so SQLite and memory stages export identical text for identical
// content.
func (s *SQLiteStage) ExportText() (string, error) {
	prims, err := s.loadAllRecords()
	if err != nil {
		return "", err
	}
	return sdftext.Format(documentFromRecords(prims)), nil
}

func (s *SQLiteStage) loadAllRecords() (map[Path]*primRecord, error) {
	if !s.isOpen() {
		return nil, ErrStageUnavailable
	}
	prims := map[Path]*primRecord{}
	rows, err := s.db.Query(
		`SELECT path, parent, specifier, type_name, kind, active, abstract, instanceable, payload, loaded, metadata
		 FROM prims ORDER BY parent, ord`)
	if err != nil {
		return nil, fmt.Errorf("load prims: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			path, parent, meta string
			rec                primRecord
		)
		if err := rows.Scan(&path, &parent, &rec.specifier, &rec.typeName, &rec.kind,
			&rec.active, &rec.abstract, &rec.instanceable, &rec.payload, &rec.loaded, &meta); err != nil {
			return nil, err
		}
		rec.path = Path(path)
		if meta != "" && meta != "null" {
			if v, err := oj.Parse([]byte(meta)); err == nil {
				if m, ok := v.(map[string]any); ok {
					rec.metadata = m
				}
			}
		}
		prims[rec.path] = &rec
		// A parent path sorts before its children's parent key, so the
		// parent record always exists by the time a child row scans.
		if path != string(RootPath) {
			if parentRec := prims[Path(parent)]; parentRec != nil {
				parentRec.children = append(parentRec.children, rec.path)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.loadAttributes(prims); err != nil {
		return nil, err
	}
	if err := s.loadPrimvars(prims); err != nil {
		return nil, err
	}
	if err := s.loadVariantSets(prims); err != nil {
		return nil, err
	}
	return prims, nil
}

func (s *SQLiteStage) loadAttributes(prims map[Path]*primRecord) error {
	rows, err := s.db.Query(
		`SELECT path, name, type_name, custom, uniform, has_value, value FROM attributes ORDER BY path, ord`)
	if err != nil {
		return fmt.Errorf("load attributes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			path, raw string
			a         attrRecord
		)
		if err := rows.Scan(&path, &a.name, &a.typeName, &a.custom, &a.uniform, &a.hasValue, &raw); err != nil {
			return err
		}
		if a.hasValue {
			a.value = decodeValue(raw, a.typeName)
		}
		if rec := prims[Path(path)]; rec != nil {
			rec.attrs = append(rec.attrs, &a)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	srows, err := s.db.Query(`SELECT path, attr, t, value FROM time_samples ORDER BY path, attr, t`)
	if err != nil {
		return fmt.Errorf("load time samples: %w", err)
	}
	defer srows.Close()
	for srows.Next() {
		var (
			path, attr, raw string
			t               float64
		)
		if err := srows.Scan(&path, &attr, &t, &raw); err != nil {
			return err
		}
		rec := prims[Path(path)]
		if rec == nil {
			continue
		}
		if a := rec.attr(attr); a != nil {
			v, _ := oj.Parse([]byte(raw))
			a.samples = append(a.samples, TimeSample{Time: t, Value: coerceLoose(v, a.typeName, true)})
		}
	}
	return srows.Err()
}

func (s *SQLiteStage) loadPrimvars(prims map[Path]*primRecord) error {
	rows, err := s.db.Query(
		`SELECT path, name, type_name, interpolation, element_size, value, indices FROM primvars ORDER BY path, ord`)
	if err != nil {
		return fmt.Errorf("load primvars: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			path, raw, idxJS string
			pv               primvarRecord
		)
		if err := rows.Scan(&path, &pv.name, &pv.typeName, &pv.interpolation, &pv.elementSize, &raw, &idxJS); err != nil {
			return err
		}
		if raw != "null" {
			pv.value = decodeValue(raw, pv.typeName)
		}
		if v, err := oj.Parse([]byte(idxJS)); err == nil {
			pv.indices = toIntSlice(v)
		}
		if rec := prims[Path(path)]; rec != nil {
			rec.primvars = append(rec.primvars, &pv)
		}
	}
	return rows.Err()
}

func (s *SQLiteStage) loadVariantSets(prims map[Path]*primRecord) error {
	rows, err := s.db.Query(`SELECT path, name, variants, selection FROM variant_sets ORDER BY path, name`)
	if err != nil {
		return fmt.Errorf("load variant sets: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			path, raw string
			vs        variantSetRecord
		)
		if err := rows.Scan(&path, &vs.name, &raw, &vs.selection); err != nil {
			return err
		}
		if v, err := oj.Parse([]byte(raw)); err == nil {
			if items, ok := v.([]any); ok {
				for _, item := range items {
					if sv, ok := item.(string); ok {
						vs.variants = append(vs.variants, sv)
					}
				}
			}
		}
		if rec := prims[Path(path)]; rec != nil {
			rec.variantSets = append(rec.variantSets, &vs)
		}
	}
	return rows.Err()
}

// decodeValue parses a stored JSON value and re-canonicalizes it for
// its declared type, so reads from SQLite match reads from memory.
func decodeValue(raw, typeName string) any {
	v, err := oj.Parse([]byte(raw))
	if err != nil {
		return nil
	}
	return coerceLoose(v, typeName, true)
}

