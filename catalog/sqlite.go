package catalog

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteConfig struct {
	OnDisk    bool
	Directory string
}

type SQLiteStorage struct {
	SQLiteConfig

	db *sql.DB
}

type SQLiteWriter struct {
	db              *sql.DB
	stopInsertQuery *sql.Stmt
	stopInsertTx    *sql.Tx
}

type SQLiteReader struct {
	db *sql.DB
}

func NewSQLiteStorage(cfg ...SQLiteConfig) (*SQLiteStorage, error) {
	onDisk := false
	directory := ""
	if len(cfg) > 0 {
		onDisk = cfg[0].OnDisk
		directory = cfg[0].Directory
	}

	sourceName := ":memory:"
	if onDisk {
		if err := os.MkdirAll(directory, 0755); err != nil {
			return nil, fmt.Errorf("creating directory: %w", err)
		}
		sourceName = directory + "/catalog.db"
	}

	db, err := sql.Open("sqlite3", sourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Every connection to :memory: is a database of its own.
	if !onDisk {
		db.SetMaxOpenConns(1)
	}

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS line (
    code TEXT PRIMARY KEY,
    label TEXT NOT NULL,
    name_a TEXT NOT NULL,
    name_b TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS stop (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    lines TEXT NOT NULL,
    x REAL NOT NULL,
    y REAL NOT NULL
);`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating catalog tables: %w", err)
	}

	return &SQLiteStorage{
		SQLiteConfig: SQLiteConfig{
			OnDisk:    onDisk,
			Directory: directory,
		},
		db: db,
	}, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) GetWriter() (Writer, error) {
	_, err := s.db.Exec(`
DELETE FROM line;
DELETE FROM stop;`)
	if err != nil {
		return nil, fmt.Errorf("clearing catalog: %w", err)
	}
	return &SQLiteWriter{db: s.db}, nil
}

func (s *SQLiteStorage) GetReader() (Reader, error) {
	return &SQLiteReader{db: s.db}, nil
}

func (w *SQLiteWriter) WriteLine(line *Line) error {
	_, err := w.db.Exec(`
INSERT INTO line (code, label, name_a, name_b)
VALUES (?, ?, ?, ?)
ON CONFLICT (code) DO UPDATE SET
    label = excluded.label,
    name_a = excluded.name_a,
    name_b = excluded.name_b`,
		line.Code, line.Label, line.NameA, line.NameB)
	if err != nil {
		return fmt.Errorf("inserting line: %w", err)
	}
	return nil
}

func (w *SQLiteWriter) BeginStops() error {
	// transaction with prepared statement.
	var err error
	w.stopInsertTx, err = w.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning stop insert transaction: %w", err)
	}

	w.stopInsertQuery, err = w.stopInsertTx.Prepare(`
INSERT OR REPLACE INTO stop (id, name, lines, x, y)
VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		w.stopInsertTx.Rollback()
		w.stopInsertTx = nil
		return fmt.Errorf("preparing stop insert: %w", err)
	}

	return nil
}

func (w *SQLiteWriter) WriteStop(stop *StopRow) error {
	if w.stopInsertQuery == nil {
		return fmt.Errorf("WriteStop called outside BeginStops/EndStops")
	}

	_, err := w.stopInsertQuery.Exec(stop.ID, stop.Name, stop.Lines, stop.X, stop.Y)
	if err != nil {
		w.stopInsertQuery.Close()
		w.stopInsertTx.Rollback()
		w.stopInsertTx = nil
		w.stopInsertQuery = nil
		return fmt.Errorf("inserting stop: %w", err)
	}

	return nil
}

func (w *SQLiteWriter) EndStops() error {
	if w.stopInsertTx == nil {
		return nil
	}

	// commit transaction and clean up
	w.stopInsertQuery.Close()
	err := w.stopInsertTx.Commit()
	if err != nil {
		return fmt.Errorf("committing stop insert transaction: %w", err)
	}
	w.stopInsertTx = nil
	w.stopInsertQuery = nil

	return nil
}

func (w *SQLiteWriter) Close() error {
	return w.EndStops()
}

func (r *SQLiteReader) Line(code string) (*Line, error) {
	var line Line
	err := r.db.QueryRow(`
SELECT code, label, name_a, name_b
FROM line
WHERE code = ?`, code).Scan(&line.Code, &line.Label, &line.NameA, &line.NameB)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying line: %w", err)
	}
	return &line, nil
}

func (r *SQLiteReader) Lines() ([]*Line, error) {
	rows, err := r.db.Query(`SELECT code, label, name_a, name_b FROM line ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("querying lines: %w", err)
	}
	defer rows.Close()

	lines := []*Line{}
	for rows.Next() {
		var line Line
		err := rows.Scan(&line.Code, &line.Label, &line.NameA, &line.NameB)
		if err != nil {
			return nil, fmt.Errorf("scanning line: %w", err)
		}
		lines = append(lines, &line)
	}

	return lines, rows.Err()
}

func (r *SQLiteReader) Stop(id string) (*StopRow, error) {
	var stop StopRow
	err := r.db.QueryRow(`
SELECT id, name, lines, x, y
FROM stop
WHERE id = ?`, id).Scan(&stop.ID, &stop.Name, &stop.Lines, &stop.X, &stop.Y)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying stop: %w", err)
	}
	return &stop, nil
}

func (r *SQLiteReader) Stops() ([]*StopRow, error) {
	return r.queryStops(`
SELECT id, name, lines, x, y
FROM stop
ORDER BY LENGTH(id), id`)
}

func (r *SQLiteReader) StopsWithPrefix(prefix string, limit int) ([]*StopRow, error) {
	query := `
SELECT id, name, lines, x, y
FROM stop
WHERE id LIKE ? ESCAPE '\'
ORDER BY LENGTH(id), id`
	params := []interface{}{escapeLike(prefix) + "%"}
	if limit > 0 {
		query += " LIMIT ?"
		params = append(params, limit)
	}
	return r.queryStops(query, params...)
}

func (r *SQLiteReader) queryStops(query string, params ...interface{}) ([]*StopRow, error) {
	rows, err := r.db.Query(query, params...)
	if err != nil {
		return nil, fmt.Errorf("querying stops: %w", err)
	}
	defer rows.Close()

	stops := []*StopRow{}
	for rows.Next() {
		var stop StopRow
		err := rows.Scan(&stop.ID, &stop.Name, &stop.Lines, &stop.X, &stop.Y)
		if err != nil {
			return nil, fmt.Errorf("scanning stop: %w", err)
		}
		stops = append(stops, &stop)
	}

	return stops, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
