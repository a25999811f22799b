package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/ValentinKolb/pKV/lib/db"
	_ "github.com/mattn/go-sqlite3"
)

// sqliteImpl stores both namespaces of a database in a single SQLite table.
//
// Table:
//
//	entries(ns, key, value)  PRIMARY KEY (ns, key)
type sqliteImpl struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// DBOptions configures the sqlite engine
type DBOptions struct {
	// Path of the database file. An empty path or ":memory:" keeps the database in memory.
	Path string
}

// NewSqliteDB opens (or creates) the SQLite database described by opts.
func NewSqliteDB(opts DBOptions) (db.KVDB, error) {
	path := opts.Path
	if path == "" {
		path = ":memory:"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	handle, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// every connection to ":memory:" is a separate database, and all access is serialized by mu
	handle.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := handle.Exec("PRAGMA journal_mode=WAL"); err != nil {
			handle.Close()
			return nil, err
		}
	}
	if _, err := handle.Exec(`CREATE TABLE IF NOT EXISTS entries (
		ns INTEGER NOT NULL,
		key TEXT NOT NULL,
		value BLOB NOT NULL,
		PRIMARY KEY (ns, key)
	)`); err != nil {
		handle.Close()
		return nil, err
	}
	return &sqliteImpl{db: handle, path: path}, nil
}

// --------------------------------------------------------------------------
// Namespace helpers
// --------------------------------------------------------------------------

func (s *sqliteImpl) get(ns db.Namespace, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false, db.ErrClosed
	}
	return getTx(s.db, ns, key)
}

func (s *sqliteImpl) put(ns db.Namespace, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return db.ErrClosed
	}
	return putTx(s.db, ns, key, value)
}

func (s *sqliteImpl) del(ns db.Namespace, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return db.ErrClosed
	}
	_, err := s.db.Exec("DELETE FROM entries WHERE ns = ? AND key = ?", ns, key)
	return err
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}

func getTx(q queryer, ns db.Namespace, key string) ([]byte, bool, error) {
	var value []byte
	err := q.QueryRow("SELECT value FROM entries WHERE ns = ? AND key = ?", ns, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if value == nil {
		value = []byte{}
	}
	return value, true, nil
}

func putTx(q queryer, ns db.Namespace, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := q.Exec(
		`INSERT INTO entries (ns, key, value) VALUES (?, ?, ?)
		 ON CONFLICT(ns, key) DO UPDATE SET value = excluded.value`,
		ns, key, value,
	)
	return err
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

func (s *sqliteImpl) Set(key string, value []byte) error {
	return s.put(db.NamespaceData, key, value)
}

func (s *sqliteImpl) SetIfUnset(key string, value []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, db.ErrClosed
	}
	if value == nil {
		value = []byte{}
	}
	res, err := s.db.Exec(
		"INSERT INTO entries (ns, key, value) VALUES (?, ?, ?) ON CONFLICT(ns, key) DO NOTHING",
		db.NamespaceData, key, value,
	)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *sqliteImpl) Delete(key string) error {
	return s.del(db.NamespaceData, key)
}

// Update runs fn inside a transaction while holding the write lock.
func (s *sqliteImpl) Update(key string, fn db.UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return db.ErrClosed
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	old, loaded, err := getTx(tx, db.NamespaceData, key)
	if err != nil {
		return err
	}
	value, op, err := fn(old, loaded)
	if err != nil {
		return err
	}
	switch op {
	case db.UpdateSet:
		if err := putTx(tx, db.NamespaceData, key, value); err != nil {
			return err
		}
	case db.UpdateDelete:
		if _, err := tx.Exec("DELETE FROM entries WHERE ns = ? AND key = ?", db.NamespaceData, key); err != nil {
			return err
		}
	default:
		return nil
	}
	return tx.Commit()
}

func (s *sqliteImpl) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return db.ErrClosed
	}
	_, err := s.db.Exec("DELETE FROM entries WHERE ns = ?", db.NamespaceData)
	return err
}

// --------------------------------------------------------------------------
// Query Operations
// --------------------------------------------------------------------------

func (s *sqliteImpl) Get(key string) ([]byte, bool, error) {
	return s.get(db.NamespaceData, key)
}

func (s *sqliteImpl) Has(key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, db.ErrClosed
	}
	var one int
	err := s.db.QueryRow("SELECT 1 FROM entries WHERE ns = ? AND key = ?", db.NamespaceData, key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// Range reads all entries in key order before calling fn, so fn may write to the database.
func (s *sqliteImpl) Range(fn func(key string, value []byte) bool) error {
	entries, err := s.all(db.NamespaceData)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !fn(e.Key, e.Value) {
			return nil
		}
	}
	return nil
}

func (s *sqliteImpl) all(ns db.Namespace) ([]db.SnapshotEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, db.ErrClosed
	}
	rows, err := s.db.Query("SELECT key, value FROM entries WHERE ns = ? ORDER BY key", ns)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []db.SnapshotEntry
	for rows.Next() {
		e := db.SnapshotEntry{Namespace: ns}
		if err := rows.Scan(&e.Key, &e.Value); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *sqliteImpl) Size() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, db.ErrClosed
	}
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM entries WHERE ns = ?", db.NamespaceData).Scan(&n)
	return n, err
}

// --------------------------------------------------------------------------
// Metadata
// --------------------------------------------------------------------------

func (s *sqliteImpl) GetMeta(key string) ([]byte, bool, error) {
	return s.get(db.NamespaceMeta, key)
}

func (s *sqliteImpl) SetMeta(key string, value []byte) error {
	return s.put(db.NamespaceMeta, key, value)
}

func (s *sqliteImpl) DeleteMeta(key string) error {
	return s.del(db.NamespaceMeta, key)
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

func (s *sqliteImpl) Save(w io.Writer) error {
	data, err := s.all(db.NamespaceData)
	if err != nil {
		return err
	}
	meta, err := s.all(db.NamespaceMeta)
	if err != nil {
		return err
	}
	entries := append(data, meta...)
	return db.WriteSnapshot(w, db.ImplSqlite, len(entries), func(emit func(db.SnapshotEntry) error) error {
		for _, e := range entries {
			if err := emit(e); err != nil {
				return err
			}
		}
		return nil
	})
}

// Load replaces the table content in a single transaction. A corrupt snapshot rolls back.
func (s *sqliteImpl) Load(r io.Reader) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return db.ErrClosed
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec("DELETE FROM entries"); err != nil {
		return err
	}
	if _, err := db.ReadSnapshot(r, func(e db.SnapshotEntry) error {
		return putTx(tx, e.Namespace, e.Key, e.Value)
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// --------------------------------------------------------------------------
// Features and Info
// --------------------------------------------------------------------------

var supportedFeatures = db.FeatureSet |
	db.FeatureSetIfUnset |
	db.FeatureGet |
	db.FeatureDelete |
	db.FeatureHas |
	db.FeatureUpdate |
	db.FeatureRange |
	db.FeatureMeta |
	db.FeatureSave |
	db.FeatureLoad

func (s *sqliteImpl) SupportsFeature(feature db.Feature) bool {
	features := supportedFeatures
	if s.path != ":memory:" {
		features |= db.FeaturePersistent
	}
	return features&feature == feature
}

func (s *sqliteImpl) GetInfo() db.DatabaseInfo {
	features := supportedFeatures
	if s.path != ":memory:" {
		features |= db.FeaturePersistent
	}
	info := db.DatabaseInfo{
		DbType:            db.ImplSqlite,
		SupportedFeatures: features.List(),
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return info
	}

	var pageCount, pageSize int
	_ = s.db.QueryRow("PRAGMA page_count").Scan(&pageCount)
	_ = s.db.QueryRow("PRAGMA page_size").Scan(&pageSize)
	_ = s.db.QueryRow("SELECT COUNT(*) FROM entries WHERE ns = ?", db.NamespaceData).Scan(&info.Entries)
	info.SizeBytes = pageCount * pageSize
	info.Metadata = &struct {
		Path string `json:"path"`
	}{Path: s.path}
	return info
}

func (s *sqliteImpl) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("could not close sqlite store: %w", err)
	}
	return nil
}
