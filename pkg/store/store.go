// Package store caches compiled templates in a SQLite database, keyed by
// the template source and the filter set it was compiled against.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/neurodesk/mdtemplate/pkg/mdtemplate"
)

const schema = `CREATE TABLE IF NOT EXISTS templates (
	key        TEXT PRIMARY KEY,
	blob       BLOB NOT NULL,
	created_at INTEGER NOT NULL
)`

type Store struct {
	db     *sql.DB
	Logger *slog.Logger
}

// Open opens or creates the cache database at path. ":memory:" gives a
// private in-memory cache. The pure Go driver is used unless the
// cgo_sqlite build tag selects the cgo one.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}
	db, err := openDB(path)
	if err != nil {
		return nil, fmt.Errorf("opening template cache: %w", err)
	}
	if path == ":memory:" {
		// every connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating template cache schema: %w", err)
	}
	return &Store{db: db, Logger: slog.Default()}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Key identifies a compiled template. trimAfterClose is part of the key
// because the parser applies it while building the tree.
func Key(src string, filters []string, trimAfterClose bool) string {
	names := append([]string(nil), filters...)
	sort.Strings(names)
	h := sha256.New()
	if trimAfterClose {
		h.Write([]byte{'t'})
	} else {
		h.Write([]byte{'k'})
	}
	h.Write([]byte(src))
	for _, n := range names {
		h.Write([]byte{0})
		h.Write([]byte(n))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the blob stored under key; ok is false when there is none.
func (s *Store) Get(ctx context.Context, key string) (blob []byte, ok bool, err error) {
	err = s.db.QueryRowContext(ctx, `SELECT blob FROM templates WHERE key = ?`, key).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading template cache: %w", err)
	}
	return blob, true, nil
}

func (s *Store) Put(ctx context.Context, key string, blob []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO templates (key, blob, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET blob = excluded.blob, created_at = excluded.created_at`,
		key, blob, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("writing template cache: %w", err)
	}
	return nil
}

// Prune deletes entries stored before t and reports how many were removed.
func (s *Store) Prune(ctx context.Context, t time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM templates WHERE created_at < ?`, t.Unix())
	if err != nil {
		return 0, fmt.Errorf("pruning template cache: %w", err)
	}
	return res.RowsAffected()
}

// Parse compiles src with env, reusing a cached compilation when there is
// one. Unreadable cache entries are replaced. cached reports a cache hit.
func (s *Store) Parse(ctx context.Context, env *mdtemplate.Environment, src string) (t *mdtemplate.Template, cached bool, err error) {
	key := Key(src, env.Filters.Names(), env.TrimAfterClose)
	blob, ok, err := s.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if ok {
		t, err := env.Decode(blob)
		if err == nil {
			return t, true, nil
		}
		s.Logger.Warn("discarding cached template", "key", key[:12], "error", err)
	}

	t, err = env.Parse(src)
	if err != nil {
		return nil, false, err
	}
	if blob, err = t.Encode(); err != nil {
		return nil, false, err
	}
	if err := s.Put(ctx, key, blob); err != nil {
		return nil, false, err
	}
	return t, false, nil
}
