//go:build !cgo_sqlite

package store

import (
	"database/sql"

	_ "modernc.org/sqlite"
)

func openDB(path string) (*sql.DB, error) {
	if path == ":memory:" {
		return sql.Open("sqlite", path)
	}
	return sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
}
