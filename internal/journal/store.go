// Package journal records every broadcast transaction so agents can look
// back at what was submitted, by whom and with what outcome.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	clierr "github.com/manifest-network/manifest-mcp-browser-sub000/internal/errors"
)

type Status string

const (
	StatusBroadcast Status = "broadcast"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
	StatusRejected  Status = "rejected"
)

// Entry is one journaled transaction. Args are stored already redacted.
type Entry struct {
	ID          string   `json:"id"`
	ChainID     string   `json:"chainId"`
	Module      string   `json:"module"`
	Subcommand  string   `json:"subcommand"`
	Args        []string `json:"args"`
	Sender      string   `json:"sender"`
	TxHash      string   `json:"transactionHash,omitempty"`
	Code        uint32   `json:"code"`
	Height      string   `json:"height,omitempty"`
	Status      Status   `json:"status"`
	RawLog      string   `json:"rawLog,omitempty"`
	Error       string   `json:"error,omitempty"`
	CreatedAt   string   `json:"createdAt"`
	ConfirmedAt string   `json:"confirmedAt,omitempty"`
}

func NewEntryID() string {
	return "tx_" + uuid.NewString()
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	ChainID string
	Module  string
	Status  Status
	Sender  string
}

type Store struct {
	db   *sql.DB
	lock *flock.Flock
	now  func() time.Time
}

func Open(path, lockPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create journal lock directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal sqlite: %w", err)
	}

	queries := []string{
		"PRAGMA busy_timeout=5000;",
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		`CREATE TABLE IF NOT EXISTS transactions (
			entry_id TEXT PRIMARY KEY,
			chain_id TEXT NOT NULL,
			module TEXT NOT NULL,
			sender TEXT NOT NULL,
			status TEXT NOT NULL,
			tx_hash TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			payload BLOB NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_transactions_created ON transactions(created_at DESC);",
		"CREATE INDEX IF NOT EXISTS idx_transactions_hash ON transactions(tx_hash);",
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init journal schema: %w", err)
		}
	}
	return &Store{db: db, lock: flock.New(lockPath), now: time.Now}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record inserts or updates entry. A missing ID or timestamp is filled in
// and the stored entry is returned.
func (s *Store) Record(entry Entry) (Entry, error) {
	if strings.TrimSpace(entry.ID) == "" {
		entry.ID = NewEntryID()
	}
	if entry.CreatedAt == "" {
		entry.CreatedAt = s.now().UTC().Format(time.RFC3339)
	}
	if entry.Status == "" {
		entry.Status = StatusBroadcast
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	locked, err := s.lock.TryLockContext(ctx, 10*time.Millisecond)
	if err != nil {
		return Entry{}, fmt.Errorf("lock journal: %w", err)
	}
	if !locked {
		return Entry{}, fmt.Errorf("lock journal: timeout acquiring lock")
	}
	defer func() { _ = s.lock.Unlock() }()

	payload, err := json.Marshal(entry)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal journal entry: %w", err)
	}
	createdUnix, ok := parseRFC3339Unix(entry.CreatedAt)
	if !ok {
		createdUnix = s.now().UTC().Unix()
	}

	_, err = s.db.Exec(`
		INSERT INTO transactions (entry_id, chain_id, module, sender, status, tx_hash, created_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(entry_id) DO UPDATE SET
			status=excluded.status,
			tx_hash=excluded.tx_hash,
			payload=excluded.payload
	`, entry.ID, entry.ChainID, entry.Module, entry.Sender, string(entry.Status), strings.ToUpper(entry.TxHash), createdUnix, payload)
	if err != nil {
		return Entry{}, fmt.Errorf("save journal entry: %w", err)
	}
	return entry, nil
}

// Get finds an entry by its ID or by transaction hash.
func (s *Store) Get(idOrHash string) (Entry, error) {
	var payload []byte
	err := s.db.QueryRow(
		"SELECT payload FROM transactions WHERE entry_id = ? OR tx_hash = ? ORDER BY created_at DESC LIMIT 1",
		idOrHash, strings.ToUpper(idOrHash),
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, clierr.WithDetails(clierr.CodeQueryFailed, "journal entry not found: "+idOrHash, map[string]any{"id": idOrHash})
		}
		return Entry{}, fmt.Errorf("read journal entry: %w", err)
	}
	var entry Entry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return Entry{}, fmt.Errorf("decode journal payload: %w", err)
	}
	return entry, nil
}

// List returns the newest entries matching filter.
func (s *Store) List(filter Filter, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	clauses := make([]string, 0, 4)
	params := make([]any, 0, 5)
	if v := strings.TrimSpace(filter.ChainID); v != "" {
		clauses = append(clauses, "chain_id = ?")
		params = append(params, v)
	}
	if v := strings.TrimSpace(filter.Module); v != "" {
		clauses = append(clauses, "module = ?")
		params = append(params, v)
	}
	if v := strings.TrimSpace(string(filter.Status)); v != "" {
		clauses = append(clauses, "status = ?")
		params = append(params, v)
	}
	if v := strings.TrimSpace(filter.Sender); v != "" {
		clauses = append(clauses, "sender = ?")
		params = append(params, v)
	}
	query := "SELECT payload FROM transactions"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ?"
	params = append(params, limit)

	rows, err := s.db.Query(query, params...)
	if err != nil {
		return nil, fmt.Errorf("list journal: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}
		var entry Entry
		if err := json.Unmarshal(payload, &entry); err != nil {
			return nil, fmt.Errorf("decode journal row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal rows: %w", err)
	}
	return entries, nil
}

func parseRFC3339Unix(v string) (int64, bool) {
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return 0, false
	}
	return t.UTC().Unix(), true
}
