// Package sqlite implements the allow-from and pairing stores on a single
// sqlite database file. One gateway process owns the file; WAL mode keeps the
// CLI's approval writes from blocking the gateway's reads.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/vimalinx/vimagram/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS allow_from (
	channel_id TEXT NOT NULL,
	entry      TEXT NOT NULL,
	added_at   TIMESTAMP NOT NULL,
	PRIMARY KEY (channel_id, entry)
);
CREATE TABLE IF NOT EXISTS pairing_requests (
	channel_id  TEXT NOT NULL,
	sender_id   TEXT NOT NULL,
	sender_name TEXT NOT NULL DEFAULT '',
	chat_id     TEXT NOT NULL DEFAULT '',
	code        TEXT NOT NULL,
	created_at  TIMESTAMP NOT NULL,
	PRIMARY KEY (channel_id, sender_id)
);
CREATE UNIQUE INDEX IF NOT EXISTS pairing_requests_code ON pairing_requests(code);
`

// Store implements store.AllowFromStore and store.PairingAdmin.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Read returns the store-backed allow-from entries for a channel account.
func (s *Store) Read(ctx context.Context, channelID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entry FROM allow_from WHERE channel_id = ? ORDER BY added_at`, channelID)
	if err != nil {
		return nil, fmt.Errorf("read allow_from: %w", err)
	}
	defer rows.Close()

	var entries []string
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// UpsertPairingRequest issues or reuses a pairing code for a sender.
// INSERT OR IGNORE makes the created flag atomic: exactly one caller observes
// created=true per pending request.
func (s *Store) UpsertPairingRequest(ctx context.Context, channelID, senderID string, meta store.PairingMeta) (string, bool, error) {
	code := newPairingCode()
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO pairing_requests
		 (channel_id, sender_id, sender_name, chat_id, code, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		channelID, senderID, meta.SenderName, meta.ChatID, code, time.Now().UTC())
	if err != nil {
		return "", false, fmt.Errorf("upsert pairing request: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return "", false, err
	}
	if n > 0 {
		return code, true, nil
	}

	// Existing request: return its code without re-notifying.
	var existing string
	err = s.db.QueryRowContext(ctx,
		`SELECT code FROM pairing_requests WHERE channel_id = ? AND sender_id = ?`,
		channelID, senderID).Scan(&existing)
	if err != nil {
		return "", false, fmt.Errorf("read pairing request: %w", err)
	}
	return existing, false, nil
}

// ListPairingRequests returns all pending requests, oldest first.
func (s *Store) ListPairingRequests(ctx context.Context) ([]store.PairingRequest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT channel_id, sender_id, sender_name, chat_id, code, created_at
		 FROM pairing_requests ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reqs []store.PairingRequest
	for rows.Next() {
		var r store.PairingRequest
		if err := rows.Scan(&r.ChannelID, &r.SenderID, &r.SenderName, &r.ChatID, &r.Code, &r.CreatedAt); err != nil {
			return nil, err
		}
		reqs = append(reqs, r)
	}
	return reqs, rows.Err()
}

// ApprovePairing resolves a pending request: the sender moves into the
// allow-from list and the request is removed. Later allowlist reads observe
// the sender as paired.
func (s *Store) ApprovePairing(ctx context.Context, code string) (*store.PairingRequest, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var r store.PairingRequest
	err = tx.QueryRowContext(ctx,
		`SELECT channel_id, sender_id, sender_name, chat_id, code, created_at
		 FROM pairing_requests WHERE code = ?`, code).
		Scan(&r.ChannelID, &r.SenderID, &r.SenderName, &r.ChatID, &r.Code, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("pairing code %s not found", code)
	}
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO allow_from (channel_id, entry, added_at) VALUES (?, ?, ?)`,
		r.ChannelID, r.SenderID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("add allow_from: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM pairing_requests WHERE code = ?`, code); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &r, nil
}

// AddAllowFrom inserts a store-backed allowlist entry directly.
func (s *Store) AddAllowFrom(ctx context.Context, channelID, entry string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO allow_from (channel_id, entry, added_at) VALUES (?, ?, ?)`,
		channelID, entry, time.Now().UTC())
	return err
}

// newPairingCode returns a short uppercase code suitable for reading aloud.
func newPairingCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:8])
}
