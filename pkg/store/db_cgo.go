//go:build cgo_sqlite

package store

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

func openDB(path string) (*sql.DB, error) {
	if path == ":memory:" {
		return sql.Open("sqlite3", path)
	}
	return sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
}
