package catalog

import (
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

const (
	PSQLStopBatchSize = 5000
)

type PSQLStorage struct {
	db *sql.DB
}

type PSQLWriter struct {
	db      *sql.DB
	stopBuf []StopRow
}

type PSQLReader struct {
	db *sql.DB
}

// Creates a new Postgres Storage using the provided connection string.
//
// If clearDB is true, the catalog tables are dropped on startup. You
// probably only want this for testing.
func NewPSQLStorage(connStr string, clearDB bool) (*PSQLStorage, error) {

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	if clearDB {
		_, err = db.Exec(`
DROP TABLE IF EXISTS catalog_line;
DROP TABLE IF EXISTS catalog_stop;
`)
		if err != nil {
			return nil, fmt.Errorf("clearing db: %w", err)
		}
	}

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS catalog_line (
    code TEXT PRIMARY KEY,
    label TEXT NOT NULL,
    name_a TEXT NOT NULL,
    name_b TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS catalog_stop (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    lines TEXT NOT NULL,
    x DOUBLE PRECISION NOT NULL,
    y DOUBLE PRECISION NOT NULL
);`)
	if err != nil {
		return nil, fmt.Errorf("creating catalog tables: %w", err)
	}

	return &PSQLStorage{
		db: db,
	}, nil
}

func (s *PSQLStorage) Close() error {
	err := s.db.Close()
	if err != nil {
		return fmt.Errorf("failed to close db: %w", err)
	}
	return nil
}

func (s *PSQLStorage) GetWriter() (Writer, error) {
	_, err := s.db.Exec(`
TRUNCATE catalog_line;
TRUNCATE catalog_stop;`)
	if err != nil {
		return nil, fmt.Errorf("clearing catalog: %w", err)
	}
	return &PSQLWriter{db: s.db}, nil
}

func (s *PSQLStorage) GetReader() (Reader, error) {
	return &PSQLReader{db: s.db}, nil
}

func (w *PSQLWriter) WriteLine(line *Line) error {
	_, err := w.db.Exec(`
INSERT INTO catalog_line (code, label, name_a, name_b)
VALUES ($1, $2, $3, $4)
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

func (w *PSQLWriter) BeginStops() error {
	return nil
}

func (w *PSQLWriter) WriteStop(stop *StopRow) error {
	w.stopBuf = append(w.stopBuf, *stop)

	if len(w.stopBuf) >= PSQLStopBatchSize {
		err := w.flushStops()
		if err != nil {
			return fmt.Errorf("flushing stops: %w", err)
		}
	}

	return nil
}

func (w *PSQLWriter) EndStops() error {
	if len(w.stopBuf) > 0 {
		err := w.flushStops()
		if err != nil {
			return fmt.Errorf("flushing stops: %w", err)
		}
	}
	return nil
}

func (w *PSQLWriter) flushStops() error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(pq.CopyIn("catalog_stop", "id", "name", "lines", "x", "y"))
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, stop := range w.stopBuf {
		_, err = stmt.Exec(stop.ID, stop.Name, stop.Lines, stop.X, stop.Y)
		if err != nil {
			return fmt.Errorf("COPY stop: %w", err)
		}
	}

	_, err = stmt.Exec()
	if err != nil {
		return fmt.Errorf("executing statement: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("committing: %w", err)
	}

	w.stopBuf = nil

	return nil
}

func (w *PSQLWriter) Close() error {
	return w.EndStops()
}

func (r *PSQLReader) Line(code string) (*Line, error) {
	var line Line
	err := r.db.QueryRow(`
SELECT code, label, name_a, name_b
FROM catalog_line
WHERE code = $1`, code).Scan(&line.Code, &line.Label, &line.NameA, &line.NameB)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying line: %w", err)
	}
	return &line, nil
}

func (r *PSQLReader) Lines() ([]*Line, error) {
	rows, err := r.db.Query(`SELECT code, label, name_a, name_b FROM catalog_line ORDER BY code`)
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

func (r *PSQLReader) Stop(id string) (*StopRow, error) {
	var stop StopRow
	err := r.db.QueryRow(`
SELECT id, name, lines, x, y
FROM catalog_stop
WHERE id = $1`, id).Scan(&stop.ID, &stop.Name, &stop.Lines, &stop.X, &stop.Y)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying stop: %w", err)
	}
	return &stop, nil
}

func (r *PSQLReader) Stops() ([]*StopRow, error) {
	return r.queryStops(`
SELECT id, name, lines, x, y
FROM catalog_stop
ORDER BY LENGTH(id), id`)
}

func (r *PSQLReader) StopsWithPrefix(prefix string, limit int) ([]*StopRow, error) {
	query := `
SELECT id, name, lines, x, y
FROM catalog_stop
WHERE id LIKE $1
ORDER BY LENGTH(id), id`
	params := []interface{}{escapeLike(prefix) + "%"}
	if limit > 0 {
		query += " LIMIT $2"
		params = append(params, limit)
	}
	return r.queryStops(query, params...)
}

func (r *PSQLReader) queryStops(query string, params ...interface{}) ([]*StopRow, error) {
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
