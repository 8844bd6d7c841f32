package library

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tracks (
	track_key TEXT NOT NULL,
	path      TEXT NOT NULL,
	PRIMARY KEY (track_key, path)
);
CREATE TABLE IF NOT EXISTS recordings (
	recording_id TEXT NOT NULL,
	path         TEXT NOT NULL,
	PRIMARY KEY (recording_id, path)
);
CREATE TABLE IF NOT EXISTS meta (
	name  TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

func openSQLite(path string, readOnly bool) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", path)
	if readOnly {
		dsn += "&mode=ro"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}
	return db, nil
}

func readSQLite(path string) (Data, error) {
	if _, err := os.Stat(path); err != nil {
		return Data{}, fmt.Errorf("failed to read index: %w", err)
	}

	db, err := openSQLite(path, true)
	if err != nil {
		return Data{}, err
	}
	defer db.Close()

	data := Data{
		TextMap: map[string][]string{},
		IDMap:   map[string][]string{},
		Meta:    map[string]any{},
	}

	if err := readPairs(db, `SELECT track_key, path FROM tracks ORDER BY rowid`, data.TextMap); err != nil {
		return Data{}, err
	}
	if err := readPairs(db, `SELECT recording_id, path FROM recordings ORDER BY rowid`, data.IDMap); err != nil {
		return Data{}, err
	}

	rows, err := db.Query(`SELECT name, value FROM meta`)
	if err != nil {
		return Data{}, fmt.Errorf("failed to read index meta: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name, raw string
		if err := rows.Scan(&name, &raw); err != nil {
			return Data{}, fmt.Errorf("failed to scan index meta: %w", err)
		}
		var value any
		if err := json.UnmarshalFromString(raw, &value); err != nil {
			value = raw
		}
		data.Meta[name] = value
	}
	if err := rows.Err(); err != nil {
		return Data{}, fmt.Errorf("failed to read index meta: %w", err)
	}

	return data, nil
}

func readPairs(db *sql.DB, query string, into map[string][]string) error {
	rows, err := db.Query(query)
	if err != nil {
		return fmt.Errorf("failed to query index: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, path string
		if err := rows.Scan(&key, &path); err != nil {
			return fmt.Errorf("failed to scan index row: %w", err)
		}
		into[key] = append(into[key], path)
	}
	return rows.Err()
}

func writeSQLite(path string, data Data) (err error) {
	db, err := openSQLite(path, false)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.Exec(sqliteSchema); err != nil {
		return fmt.Errorf("failed to create index schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin index transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = insertPairs(tx, `INSERT OR IGNORE INTO tracks (track_key, path) VALUES (?, ?)`, data.TextMap); err != nil {
		return err
	}
	if err = insertPairs(tx, `INSERT OR IGNORE INTO recordings (recording_id, path) VALUES (?, ?)`, data.IDMap); err != nil {
		return err
	}

	for name, value := range data.Meta {
		raw, encErr := json.MarshalToString(value)
		if encErr != nil {
			err = fmt.Errorf("failed to encode index meta %s: %w", name, encErr)
			return err
		}
		if _, err = tx.Exec(`INSERT OR REPLACE INTO meta (name, value) VALUES (?, ?)`, name, raw); err != nil {
			return fmt.Errorf("failed to write index meta: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit index: %w", err)
	}
	return nil
}

func insertPairs(tx *sql.Tx, query string, pairs map[string][]string) error {
	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare index insert: %w", err)
	}
	defer stmt.Close()

	for key, paths := range pairs {
		for _, path := range paths {
			if _, err := stmt.Exec(key, path); err != nil {
				return fmt.Errorf("failed to insert index row: %w", err)
			}
		}
	}
	return nil
}
