package sink

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite is a PersistentSink backed by a single on-disk database,
// grounded on the teacher's internal/storage/sqlite.go (database/sql +
// mattn/go-sqlite3, JSON-encoded value column) and internal/recording's
// header-row convention. Rows are stored as JSON arrays of strings
// rather than a fixed column set so the same table serves every
// attribute kind's string encoding.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (creating if necessary) the database at path and
// ensures its schema exists.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sink: open sqlite %s: %w", path, err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS sink_headers (
	name TEXT PRIMARY KEY,
	header TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS sink_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	seq INTEGER NOT NULL,
	row TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sink_records_name_seq ON sink_records(name, seq);
`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sink: migrate sqlite %s: %w", path, err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Save(name string, header []string, body [][]string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("sink: begin tx: %w", err)
	}
	defer tx.Rollback()

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("sink: encode header: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO sink_headers(name, header) VALUES(?, ?)
		 ON CONFLICT(name) DO NOTHING`,
		name, string(headerJSON),
	); err != nil {
		return fmt.Errorf("sink: save header: %w", err)
	}

	var nextSeq int64
	if err := tx.QueryRow(
		`SELECT COALESCE(MAX(seq), -1) + 1 FROM sink_records WHERE name = ?`, name,
	).Scan(&nextSeq); err != nil {
		return fmt.Errorf("sink: next seq: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO sink_records(name, seq, row) VALUES(?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sink: prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, row := range body {
		rowJSON, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("sink: encode row: %w", err)
		}
		if _, err := stmt.Exec(name, nextSeq+int64(i), string(rowJSON)); err != nil {
			return fmt.Errorf("sink: insert row: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SQLite) Load(name string) ([]string, [][]string, error) {
	var headerJSON string
	err := s.db.QueryRow(`SELECT header FROM sink_headers WHERE name = ?`, name).Scan(&headerJSON)
	switch {
	case err == sql.ErrNoRows:
		return nil, nil, nil
	case err != nil:
		return nil, nil, fmt.Errorf("sink: load header: %w", err)
	}

	var header []string
	if err := json.Unmarshal([]byte(headerJSON), &header); err != nil {
		return nil, nil, fmt.Errorf("sink: decode header: %w", err)
	}

	rows, err := s.db.Query(`SELECT row FROM sink_records WHERE name = ? ORDER BY seq ASC`, name)
	if err != nil {
		return nil, nil, fmt.Errorf("sink: load rows: %w", err)
	}
	defer rows.Close()

	var body [][]string
	for rows.Next() {
		var rowJSON string
		if err := rows.Scan(&rowJSON); err != nil {
			return nil, nil, fmt.Errorf("sink: scan row: %w", err)
		}
		var row []string
		if err := json.Unmarshal([]byte(rowJSON), &row); err != nil {
			return nil, nil, fmt.Errorf("sink: decode row: %w", err)
		}
		body = append(body, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("sink: iterate rows: %w", err)
	}

	return header, body, nil
}

func (s *SQLite) Close() error { return s.db.Close() }
