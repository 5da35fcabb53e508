// Package session persists per-stage view state (the expansion set and
// the current selection) in a small SQLite database so a host restores
// its tree exactly as the user left it.
package session

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/voidreamer/maya-usd-author/internal/scene"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	stage     TEXT PRIMARY KEY,
	selection TEXT NOT NULL DEFAULT '',
	saved_at  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS expanded (
	stage TEXT NOT NULL,
	path  TEXT NOT NULL,
	PRIMARY KEY (stage, path)
);
`

// State is the view state saved for one stage file.
type State struct {
	Expanded  []scene.Path
	Selection scene.Path
}

// Store is a session database. Stage files are keyed by their cleaned
// absolute path, so relative and absolute spellings hit the same row.
type Store struct {
	db *sql.DB
}

// Open opens or creates the session database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open session db %s: %w", path, err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure session db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create session schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func stageKey(stage string) (string, error) {
	abs, err := filepath.Abs(stage)
	if err != nil {
		return "", fmt.Errorf("resolve stage path %s: %w", stage, err)
	}
	return abs, nil
}

// Save replaces the stored state for the given stage file.
func (s *Store) Save(stage string, st State) error {
	key, err := stageKey(stage)
	if err != nil {
		return err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO sessions (stage, selection, saved_at) VALUES (?, ?, ?)`,
		key, string(st.Selection), time.Now().Unix()); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM expanded WHERE stage = ?`, key); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	ins, err := tx.Prepare(`INSERT OR IGNORE INTO expanded (stage, path) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	defer ins.Close()
	for _, p := range st.Expanded {
		if _, err := ins.Exec(key, string(p)); err != nil {
			return fmt.Errorf("save session path %s: %w", p, err)
		}
	}
	return tx.Commit()
}

// Load returns the stored state for the given stage file. The second
// return is false when no session was ever saved for it.
func (s *Store) Load(stage string) (State, bool, error) {
	key, err := stageKey(stage)
	if err != nil {
		return State{}, false, err
	}
	var st State
	var selection string
	err = s.db.QueryRow(`SELECT selection FROM sessions WHERE stage = ?`, key).Scan(&selection)
	if errors.Is(err, sql.ErrNoRows) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("load session: %w", err)
	}
	st.Selection = scene.Path(selection)

	rows, err := s.db.Query(`SELECT path FROM expanded WHERE stage = ? ORDER BY path`, key)
	if err != nil {
		return State{}, false, fmt.Errorf("load session: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return State{}, false, fmt.Errorf("load session: %w", err)
		}
		st.Expanded = append(st.Expanded, scene.Path(p))
	}
	if err := rows.Err(); err != nil {
		return State{}, false, fmt.Errorf("load session: %w", err)
	}
	return st, true, nil
}
