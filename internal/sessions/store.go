package sessions

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Record is the per-session metadata the gateway persists on every admitted
// inbound message. One JSON file per session key.
type Record struct {
	Key           string    `json:"key"`
	Channel       string    `json:"channel"`
	AccountID     string    `json:"accountId"`
	ChatID        string    `json:"chatId"`
	SenderID      string    `json:"senderId"`
	Mode          string    `json:"mode,omitempty"`
	LastMessageID string    `json:"lastMessageId,omitempty"`
	Updated       time.Time `json:"updated"`
	LastOutbound  time.Time `json:"lastOutbound,omitempty"`
}

// Store persists session metadata under one directory per agent.
type Store struct {
	mu  sync.Mutex
	dir string
}

// ResolveStorePath returns the session-store directory for an agent.
func ResolveStorePath(baseDir, agentID string) string {
	return filepath.Join(baseDir, agentID)
}

// NewStore opens a session metadata store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session store %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// ReadUpdatedAt returns the session's prior activity timestamp, if any.
func (s *Store) ReadUpdatedAt(sessionKey string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.read(sessionKey)
	if err != nil || rec.Updated.IsZero() {
		return time.Time{}, false
	}
	return rec.Updated, true
}

// RecordInbound persists session metadata for an admitted message. Overwrites
// the inbound fields, preserves LastOutbound.
func (s *Store) RecordInbound(sessionKey string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, err := s.read(sessionKey); err == nil {
		rec.LastOutbound = prev.LastOutbound
	}
	rec.Key = sessionKey
	return s.write(sessionKey, rec)
}

// RecordOutbound stamps the last-outbound timestamp after a delivered reply.
func (s *Store) RecordOutbound(sessionKey string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.read(sessionKey)
	if err != nil {
		rec = Record{Key: sessionKey}
	}
	rec.LastOutbound = at
	return s.write(sessionKey, rec)
}

func (s *Store) read(sessionKey string) (Record, error) {
	var rec Record
	data, err := os.ReadFile(s.path(sessionKey))
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *Store) write(sessionKey string, rec Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	path := s.path(sessionKey)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// path places each session file under its agent's store directory:
// {dir}/{agentId}/{rest}.json. Keys outside the canonical format fall back
// to a flat file under dir. Pure; write creates the directory.
func (s *Store) path(sessionKey string) string {
	agentID, rest := ParseSessionKey(sessionKey)
	if agentID == "" {
		return filepath.Join(s.dir, sanitizeKey(sessionKey)+".json")
	}
	return filepath.Join(ResolveStorePath(s.dir, agentID), sanitizeKey(rest)+".json")
}

// sanitizeKey makes a session key filesystem-safe.
func sanitizeKey(key string) string {
	r := strings.NewReplacer(":", "_", "/", "_", "\\", "_", " ", "_")
	return r.Replace(key)
}
