package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLite persists documents in a single sqlite table. Change notification
// is in-process (the same hub as the memory backend), so live subscriptions
// only observe writes made through this handle.
type SQLite struct {
	db *sql.DB
	// pubMu orders commit publishes against subscriber registration:
	// Subscribe holds it across its initial read and hub registration, so
	// a commit landing in between cannot publish before the subscriber is
	// registered.
	pubMu sync.Mutex
	hub   *hub
}

var _ Store = (*SQLite)(nil)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
    path    TEXT PRIMARY KEY,
    data    TEXT NOT NULL,
    version INTEGER NOT NULL DEFAULT 1
);
`

// OpenSQLite opens (creating if needed) the document database at path.
// Use ":memory:" for an ephemeral database.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite %s: %w", path, err)
	}
	// The modernc driver serializes access per connection; a single
	// connection avoids SQLITE_BUSY between our own transactions.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	return &SQLite{db: db, hub: newHub()}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) Get(ctx context.Context, path string, out any) (bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM documents WHERE path = ?`, path).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: get %s: %w", path, err)
	}
	if err := json.Unmarshal([]byte(data), out); err != nil {
		return true, fmt.Errorf("store: decode %s: %w", path, err)
	}
	return true, nil
}

func (s *SQLite) Set(ctx context.Context, path string, doc any) error {
	return s.RunTransaction(ctx, func(tx Tx) error {
		return tx.Set(path, doc)
	})
}

func (s *SQLite) Delete(ctx context.Context, path string) error {
	return s.RunTransaction(ctx, func(tx Tx) error {
		return tx.Delete(path)
	})
}

func (s *SQLite) ArrayUnion(ctx context.Context, path, field string, elems ...string) error {
	return arrayUnion(ctx, s, path, field, elems...)
}

func (s *SQLite) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	for attempt := 0; attempt < txAttempts; attempt++ {
		snaps, err := s.runOnce(ctx, fn)
		if err == nil {
			s.pubMu.Lock()
			for _, snap := range snaps {
				s.hub.publish(snap)
			}
			s.pubMu.Unlock()
			return nil
		}
		if !isBusy(err) {
			return err
		}
	}
	return ErrTxContention
}

func (s *SQLite) runOnce(ctx context.Context, fn func(tx Tx) error) ([]Snapshot, error) {
	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin: %w", err)
	}
	tx := &sqliteTx{ctx: ctx, tx: dbtx, writes: make(map[string]memWrite)}
	if err := fn(tx); err != nil {
		dbtx.Rollback()
		return nil, err
	}
	snaps, err := tx.flush()
	if err != nil {
		dbtx.Rollback()
		return nil, err
	}
	if err := dbtx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit: %w", err)
	}
	return snaps, nil
}

func (s *SQLite) Subscribe(ctx context.Context, path string) (*Subscription, error) {
	var (
		data    string
		version int64
	)
	// Holding pubMu makes the read and the registration atomic with
	// respect to publishes: a commit before the read lands in the initial
	// snapshot, a commit after it blocks on pubMu until the subscriber is
	// registered.
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	initial := Snapshot{Path: path}
	err := s.db.QueryRowContext(ctx, `SELECT data, version FROM documents WHERE path = ?`, path).
		Scan(&data, &version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("store: subscribe %s: %w", path, err)
	default:
		initial = Snapshot{Path: path, Data: json.RawMessage(data), Version: version, Exists: true}
	}
	return s.hub.subscribe(ctx, path, initial), nil
}

// sqliteTx buffers writes so that an aborted closure leaves no trace, then
// flushes them inside the enclosing sql transaction.
type sqliteTx struct {
	ctx    context.Context
	tx     *sql.Tx
	writes map[string]memWrite
}

func (t *sqliteTx) Get(path string, out any) (bool, error) {
	if w, ok := t.writes[path]; ok {
		if w.delete {
			return false, nil
		}
		if err := json.Unmarshal(w.data, out); err != nil {
			return true, fmt.Errorf("store: decode %s: %w", path, err)
		}
		return true, nil
	}
	var data string
	err := t.tx.QueryRowContext(t.ctx, `SELECT data FROM documents WHERE path = ?`, path).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: get %s: %w", path, err)
	}
	if err := json.Unmarshal([]byte(data), out); err != nil {
		return true, fmt.Errorf("store: decode %s: %w", path, err)
	}
	return true, nil
}

func (t *sqliteTx) Set(path string, doc any) error {
	data, err := encode(doc)
	if err != nil {
		return err
	}
	t.writes[path] = memWrite{data: data}
	return nil
}

func (t *sqliteTx) Delete(path string) error {
	t.writes[path] = memWrite{delete: true}
	return nil
}

func (t *sqliteTx) flush() ([]Snapshot, error) {
	snaps := make([]Snapshot, 0, len(t.writes))
	for path, w := range t.writes {
		if w.delete {
			if _, err := t.tx.ExecContext(t.ctx, `DELETE FROM documents WHERE path = ?`, path); err != nil {
				return nil, fmt.Errorf("store: delete %s: %w", path, err)
			}
			snaps = append(snaps, Snapshot{Path: path, Exists: false})
			continue
		}
		_, err := t.tx.ExecContext(t.ctx, `
INSERT INTO documents (path, data, version) VALUES (?, ?, 1)
ON CONFLICT(path) DO UPDATE SET data = excluded.data, version = documents.version + 1`,
			path, string(w.data))
		if err != nil {
			return nil, fmt.Errorf("store: set %s: %w", path, err)
		}
		var version int64
		if err := t.tx.QueryRowContext(t.ctx, `SELECT version FROM documents WHERE path = ?`, path).Scan(&version); err != nil {
			return nil, fmt.Errorf("store: set %s: %w", path, err)
		}
		snaps = append(snaps, Snapshot{Path: path, Data: w.data, Version: version, Exists: true})
	}
	return snaps, nil
}

// isBusy reports whether err is sqlite lock contention, the only error
// class worth a transparent retry.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
