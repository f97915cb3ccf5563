// Package statsdb persists lexical analysis runs in a SQLite database,
// so corpus statistics can be compared across invocations.
package statsdb

import (
	"database/sql"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/blip-corpus/bela/core/errors"
	"github.com/blip-corpus/bela/core/lex"
	"github.com/blip-corpus/bela/core/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS run_groups (
	run_id   TEXT NOT NULL REFERENCES runs(id),
	speaker  TEXT NOT NULL,
	language TEXT NOT NULL,
	source   TEXT NOT NULL,
	tokens   INTEGER NOT NULL,
	types    INTEGER NOT NULL,
	ratio    REAL
);
CREATE INDEX IF NOT EXISTS idx_run_groups_run ON run_groups(run_id);
`

// DB is an open statistics database.
type DB struct {
	db *sql.DB
}

// Open opens (creating if needed) a statistics database at path.
func Open(path string) (*DB, error) {
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open statistics database %s", path)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "cannot initialize statistics schema")
	}
	return &DB{db: db}, nil
}

// OpenReadOnly opens an existing statistics database for querying.
func OpenReadOnly(path string) (*DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "statistics database %s", path)
	}
	db, err := sqlite.OpenReadOnly(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open statistics database %s", path)
	}
	return &DB{db: db}, nil
}

// Close closes the underlying database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Run is one recorded analysis run.
type Run struct {
	ID        string `json:"id"`
	Source    string `json:"source"`
	CreatedAt string `json:"created_at"`
	Groups    int    `json:"groups"`
}

// SaveReport records a report's group statistics as a new run and
// returns the run ID.
func (d *DB) SaveReport(source string, rep *lex.Report) (string, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return "", errors.Wrap(err, "cannot begin transaction")
	}
	defer tx.Rollback()

	id := uuid.NewString()
	created := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.Exec(`INSERT INTO runs (id, source, created_at) VALUES (?, ?, ?)`,
		id, source, created); err != nil {
		return "", errors.Wrap(err, "cannot insert run")
	}
	for _, g := range rep.Groups {
		var ratio any
		if g.Ratio != nil {
			ratio = *g.Ratio
		}
		if _, err := tx.Exec(
			`INSERT INTO run_groups (run_id, speaker, language, source, tokens, types, ratio)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, g.Speaker, g.Language, g.Source, g.Tokens, g.Types, ratio); err != nil {
			return "", errors.Wrap(err, "cannot insert run group")
		}
	}
	if err := tx.Commit(); err != nil {
		return "", errors.Wrap(err, "cannot commit run")
	}
	return id, nil
}

// Runs lists recorded runs, newest first.
func (d *DB) Runs() ([]Run, error) {
	rows, err := d.db.Query(`
		SELECT r.id, r.source, r.created_at, COUNT(g.run_id)
		FROM runs r LEFT JOIN run_groups g ON g.run_id = r.id
		GROUP BY r.id, r.source, r.created_at
		ORDER BY r.created_at DESC, r.id`)
	if err != nil {
		return nil, errors.Wrap(err, "cannot query runs")
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Source, &r.CreatedAt, &r.Groups); err != nil {
			return nil, errors.Wrap(err, "cannot scan run")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RunGroups returns the group statistics recorded for one run.
func (d *DB) RunGroups(runID string) ([]lex.GroupStat, error) {
	rows, err := d.db.Query(`
		SELECT speaker, language, source, tokens, types, ratio
		FROM run_groups WHERE run_id = ?
		ORDER BY speaker, language, source`, runID)
	if err != nil {
		return nil, errors.Wrap(err, "cannot query run groups")
	}
	defer rows.Close()

	var out []lex.GroupStat
	for rows.Next() {
		var g lex.GroupStat
		var ratio sql.NullFloat64
		if err := rows.Scan(&g.Speaker, &g.Language, &g.Source, &g.Tokens, &g.Types, &ratio); err != nil {
			return nil, errors.Wrap(err, "cannot scan run group")
		}
		if ratio.Valid {
			r := ratio.Float64
			g.Ratio = &r
		}
		out = append(out, g)
	}
	if len(out) == 0 {
		var n int
		if err := d.db.QueryRow(`SELECT COUNT(*) FROM runs WHERE id = ?`, runID).Scan(&n); err == nil && n == 0 {
			return nil, errors.Wrapf(errors.ErrNotFound, "run %s", runID)
		}
	}
	return out, rows.Err()
}
