// Package cache stores successful query results on disk so repeated reads
// of slow-moving chain state (params, metadata, supply) skip the network.
package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

type Store struct {
	db   *sql.DB
	lock *flock.Flock
	now  func() time.Time
}

type Result struct {
	Hit      bool
	Value    []byte
	Age      time.Duration
	Stale    bool
	TooStale bool
}

// Key derives the entry key for one query. Tokens are hashed in order, so
// "balance A umfx" and "balance umfx A" never collide.
func Key(chainID, module, subcommand string, args []string) string {
	buf, _ := json.Marshal(struct {
		ChainID    string   `json:"chainId"`
		Module     string   `json:"module"`
		Subcommand string   `json:"subcommand"`
		Args       []string `json:"args"`
	}{chainID, module, subcommand, args})
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:])
}

func Open(path, lockPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache: %w", err)
	}

	queries := []string{
		"PRAGMA busy_timeout=5000;",
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		`CREATE TABLE IF NOT EXISTS query_results (
			key TEXT PRIMARY KEY,
			chain_id TEXT NOT NULL,
			module TEXT NOT NULL,
			subcommand TEXT NOT NULL,
			value BLOB NOT NULL,
			created_at INTEGER NOT NULL,
			ttl_seconds INTEGER NOT NULL
		);`,
	}
	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init cache schema: %w", err)
		}
	}

	store := &Store{db: db, lock: flock.New(lockPath), now: time.Now}
	_ = store.Prune()
	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Prune deletes entries whose TTL has fully expired. Open calls it.
func (s *Store) Prune() error {
	if s == nil || s.db == nil {
		return nil
	}
	nowUnix := s.now().UTC().Unix()
	_, err := s.db.Exec("DELETE FROM query_results WHERE created_at + ttl_seconds < ?", nowUnix)
	if err != nil {
		return fmt.Errorf("prune cache: %w", err)
	}
	return nil
}

// Purge drops every entry for chainID, or all entries when chainID is empty.
func (s *Store) Purge(chainID string) (int64, error) {
	if err := s.withLock(); err != nil {
		return 0, err
	}
	defer func() { _ = s.lock.Unlock() }()

	var (
		res sql.Result
		err error
	)
	if chainID == "" {
		res, err = s.db.Exec("DELETE FROM query_results")
	} else {
		res, err = s.db.Exec("DELETE FROM query_results WHERE chain_id = ?", chainID)
	}
	if err != nil {
		return 0, fmt.Errorf("purge cache: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Get looks key up. maxStale < 0 means stale entries are never too stale.
func (s *Store) Get(key string, maxStale time.Duration) (Result, error) {
	var value []byte
	var createdUnix int64
	var ttlSeconds int64
	err := s.db.QueryRow("SELECT value, created_at, ttl_seconds FROM query_results WHERE key = ?", key).Scan(&value, &createdUnix, &ttlSeconds)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Result{Hit: false}, nil
		}
		return Result{}, fmt.Errorf("cache read: %w", err)
	}

	created := time.Unix(createdUnix, 0).UTC()
	age := s.now().Sub(created)
	if age < 0 {
		age = 0
	}
	ttl := time.Duration(ttlSeconds) * time.Second
	stale := age > ttl
	tooStale := stale && maxStale >= 0 && age > ttl+maxStale

	return Result{
		Hit:      true,
		Value:    value,
		Age:      age,
		Stale:    stale,
		TooStale: tooStale,
	}, nil
}

// Entry tags a stored value with the query that produced it.
type Entry struct {
	ChainID    string
	Module     string
	Subcommand string
}

func (s *Store) Set(key string, entry Entry, value []byte, ttl time.Duration) error {
	if err := s.withLock(); err != nil {
		return err
	}
	defer func() { _ = s.lock.Unlock() }()

	createdUnix := s.now().UTC().Unix()
	ttlSeconds := int64(ttl.Seconds())
	if ttlSeconds <= 0 {
		ttlSeconds = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO query_results (key, chain_id, module, subcommand, value, created_at, ttl_seconds)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value=excluded.value,
			created_at=excluded.created_at,
			ttl_seconds=excluded.ttl_seconds
	`, key, entry.ChainID, entry.Module, entry.Subcommand, value, createdUnix, ttlSeconds)
	if err != nil {
		return fmt.Errorf("cache write: %w", err)
	}
	return nil
}

func (s *Store) withLock() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	locked, err := s.lock.TryLockContext(ctx, 10*time.Millisecond)
	if err != nil {
		return fmt.Errorf("lock cache: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock cache: timeout acquiring lock")
	}
	return nil
}
