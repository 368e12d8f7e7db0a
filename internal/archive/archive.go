// ============================================================================
// PersonaChat - Persona-Sprachchat
// ============================================================================
//
// Package:     archive
// Description: SQLite archive of cleared and expired conversations
// Author:      Mike Stoffels
// Created:     2026-10-19
// License:     MIT
// ============================================================================

package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/msto63/personachat/internal/session"
)

// ErrNotFound is returned for unknown conversation ids
var ErrNotFound = errors.New("conversation not found")

// titleLength is the maximum title length in runes
const titleLength = 60

// Conversation is an archived transcript
type Conversation struct {
	ID         string         `json:"id"`
	SessionID  string         `json:"session_id"`
	Title      string         `json:"title"`
	Model      string         `json:"model"`
	Persona    string         `json:"persona"`
	TurnCount  int            `json:"turn_count"`
	CreatedAt  time.Time      `json:"created_at"`
	ArchivedAt time.Time      `json:"archived_at"`
	Turns      []session.Turn `json:"turns,omitempty"`
}

// Entry is what gets archived
type Entry struct {
	SessionID string
	Model     string
	Persona   string
	CreatedAt time.Time
	Turns     []session.Turn
}

// Config holds configuration for the archive
type Config struct {
	Path string
}

// Store persists conversations in SQLite
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open creates or opens the archive database
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("archive path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		model TEXT NOT NULL DEFAULT '',
		persona TEXT NOT NULL DEFAULT '',
		turn_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		archived_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS turns (
		conversation_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (conversation_id, position),
		FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_conversations_archived ON conversations(archived_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save archives an entry and returns its id. Empty transcripts are
// skipped and return "".
func (s *Store) Save(ctx context.Context, e Entry) (string, error) {
	if len(e.Turns) == 0 {
		return "", nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	now := time.Now()
	created := e.CreatedAt
	if created.IsZero() {
		created = e.Turns[0].CreatedAt
	}
	if created.IsZero() {
		created = now
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversations (id, session_id, title, model, persona, turn_count, created_at, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, e.SessionID, Title(e.Turns), e.Model, e.Persona, len(e.Turns), created, now)
	if err != nil {
		return "", fmt.Errorf("failed to insert conversation: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO turns (conversation_id, position, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare turn insert: %w", err)
	}
	defer stmt.Close()

	for i, t := range e.Turns {
		ts := t.CreatedAt
		if ts.IsZero() {
			ts = now
		}
		if _, err := stmt.ExecContext(ctx, id, i, string(t.Role), t.Content, ts); err != nil {
			return "", fmt.Errorf("failed to insert turn %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit: %w", err)
	}
	return id, nil
}

// SaveSession archives the current transcript of sess
func (s *Store) SaveSession(ctx context.Context, sess *session.Session, personaID string) (string, error) {
	return s.Save(ctx, Entry{
		SessionID: sess.ID,
		Model:     sess.Store.Settings().Model,
		Persona:   personaID,
		CreatedAt: sess.CreatedAt,
		Turns:     sess.Store.Transcript(),
	})
}

// List returns conversations, newest first, without turns
func (s *Store) List(ctx context.Context, limit, offset int) ([]*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, title, model, persona, turn_count, created_at, archived_at
		FROM conversations
		ORDER BY archived_at DESC, rowid DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var out []*Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.SessionID, &c.Title, &c.Model, &c.Persona, &c.TurnCount, &c.CreatedAt, &c.ArchivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// Get returns a conversation with its turns in order
func (s *Store) Get(ctx context.Context, id string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c Conversation
	err := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, title, model, persona, turn_count, created_at, archived_at
		FROM conversations WHERE id = ?
	`, id).Scan(&c.ID, &c.SessionID, &c.Title, &c.Model, &c.Persona, &c.TurnCount, &c.CreatedAt, &c.ArchivedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, created_at FROM turns
		WHERE conversation_id = ?
		ORDER BY position ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get turns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t session.Turn
		var role string
		if err := rows.Scan(&role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		t.Role = session.Role(role)
		c.Turns = append(c.Turns, t)
	}
	return &c, rows.Err()
}

// Delete removes a conversation and its turns
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Statistics returns store statistics
func (s *Store) Statistics(ctx context.Context) (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var convs, turns int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&convs); err != nil {
		return nil, fmt.Errorf("failed to count conversations: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM turns`).Scan(&turns); err != nil {
		return nil, fmt.Errorf("failed to count turns: %w", err)
	}
	return map[string]interface{}{
		"total_conversations": convs,
		"total_turns":         turns,
	}, nil
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Title derives a title from the first user turn
func Title(turns []session.Turn) string {
	for _, t := range turns {
		if t.Role != session.RoleUser {
			continue
		}
		title := strings.Join(strings.Fields(t.Content), " ")
		if utf8.RuneCountInString(title) > titleLength {
			r := []rune(title)
			title = strings.TrimSpace(string(r[:titleLength])) + "…"
		}
		if title != "" {
			return title
		}
	}
	return "Untitled conversation"
}
