package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/DevRickLin/chatguard/internal/biz/domain"

	_ "modernc.org/sqlite"
)

// DeletedMessage is one audited deletion
type DeletedMessage struct {
	ID        int64     `json:"id"`
	MessageID string    `json:"message_id"`
	Chat      string    `json:"chat"`
	Sender    string    `json:"sender"`
	DeletedBy string    `json:"deleted_by"`
	Content   string    `json:"content"`
	MsgType   string    `json:"msg_type"`
	DeletedAt time.Time `json:"deleted_at"`
}

// EditedMessage is one audited edit
type EditedMessage struct {
	ID              int64     `json:"id"`
	MessageID       string    `json:"message_id"`
	Chat            string    `json:"chat"`
	EditedBy        string    `json:"edited_by"`
	OriginalContent string    `json:"original_content"`
	EditedContent   string    `json:"edited_content"`
	EditedAt        time.Time `json:"edited_at"`
}

// Store implements repo.SettingsStore and repo.AuditRepo on SQLite
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the settings and audit database.
// defaultPrefix seeds the command prefix on first use.
func NewStore(dbPath, defaultPrefix string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// modernc sqlite serialises writers; one connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initTables(defaultPrefix); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initTables(defaultPrefix string) error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS bot_settings (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			prefix TEXT NOT NULL DEFAULT '.',
			owner_id TEXT NOT NULL DEFAULT '',
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS group_settings (
			chat_id TEXT PRIMARY KEY,
			antilink INTEGER NOT NULL DEFAULT 0,
			antidelete INTEGER NOT NULL DEFAULT 0,
			antidemote INTEGER NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS deleted_messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			message_id TEXT NOT NULL,
			chat_id TEXT NOT NULL,
			sender TEXT NOT NULL,
			deleted_by TEXT NOT NULL,
			content TEXT NOT NULL,
			msg_type TEXT NOT NULL,
			deleted_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS edited_messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			message_id TEXT NOT NULL,
			chat_id TEXT NOT NULL,
			edited_by TEXT NOT NULL,
			original_content TEXT NOT NULL,
			edited_content TEXT NOT NULL,
			edited_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS user_trust (
			sender TEXT PRIMARY KEY,
			trust_score INTEGER NOT NULL DEFAULT 100,
			is_blocked INTEGER NOT NULL DEFAULT 0,
			last_activity INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_deleted_messages_chat ON deleted_messages(chat_id, deleted_at)`,
		`CREATE INDEX IF NOT EXISTS idx_edited_messages_chat ON edited_messages(chat_id, edited_at)`,
	}
	for _, stmt := range tables {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	if defaultPrefix == "" {
		defaultPrefix = "."
	}
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO bot_settings (id, prefix, owner_id, updated_at) VALUES (1, ?, '', ?)
	`, defaultPrefix, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to seed bot settings: %w", err)
	}
	return nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Settings ====================

// GetCommandPrefix returns the command prefix
func (s *Store) GetCommandPrefix(ctx context.Context) (string, error) {
	var prefix string
	err := s.db.QueryRowContext(ctx, `SELECT prefix FROM bot_settings WHERE id = 1`).Scan(&prefix)
	if err != nil {
		return "", fmt.Errorf("failed to query prefix: %w", err)
	}
	return prefix, nil
}

// SetCommandPrefix updates the command prefix
func (s *Store) SetCommandPrefix(ctx context.Context, prefix string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE bot_settings SET prefix = ?, updated_at = ? WHERE id = 1`, prefix, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to update prefix: %w", err)
	}
	return nil
}

// GetOwnerIdentity returns the owner account, empty when unset
func (s *Store) GetOwnerIdentity(ctx context.Context) (string, error) {
	var owner string
	err := s.db.QueryRowContext(ctx, `SELECT owner_id FROM bot_settings WHERE id = 1`).Scan(&owner)
	if err != nil {
		return "", fmt.Errorf("failed to query owner: %w", err)
	}
	return owner, nil
}

// SetOwnerIdentity records the owner account
func (s *Store) SetOwnerIdentity(ctx context.Context, owner string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE bot_settings SET owner_id = ?, updated_at = ? WHERE id = 1`, owner, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to update owner: %w", err)
	}
	return nil
}

// GetGroupSettings returns a group's switches; unknown groups get all switches off
func (s *Store) GetGroupSettings(ctx context.Context, chatID string) (*domain.GroupSettings, error) {
	gs := &domain.GroupSettings{Chat: chatID}
	err := s.db.QueryRowContext(ctx, `
		SELECT antilink, antidelete, antidemote
		FROM group_settings
		WHERE chat_id = ?
	`, chatID).Scan(&gs.AntiLink, &gs.AntiDelete, &gs.AntiDemote)
	if errors.Is(err, sql.ErrNoRows) {
		return gs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query group settings: %w", err)
	}
	return gs, nil
}

// SaveGroupSettings creates or updates a group's switches
func (s *Store) SaveGroupSettings(ctx context.Context, gs *domain.GroupSettings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO group_settings (chat_id, antilink, antidelete, antidemote, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			antilink = excluded.antilink,
			antidelete = excluded.antidelete,
			antidemote = excluded.antidemote,
			updated_at = excluded.updated_at
	`, gs.Chat, gs.AntiLink, gs.AntiDelete, gs.AntiDemote, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save group settings: %w", err)
	}
	return nil
}

// ==================== Audit ====================

// LogDeletedMessage records the content of a revoked message
func (s *Store) LogDeletedMessage(ctx context.Context, rec domain.MessageRecord, deleter string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deleted_messages (message_id, chat_id, sender, deleted_by, content, msg_type, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Chat, rec.Sender, deleter, rec.Content, rec.MsgType, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to log deleted message: %w", err)
	}
	return nil
}

// LogEditedMessage records the before and after of an edit
func (s *Store) LogEditedMessage(ctx context.Context, rec domain.MessageRecord, newContent string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO edited_messages (message_id, chat_id, edited_by, original_content, edited_content, edited_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Chat, rec.Sender, rec.Content, newContent, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to log edited message: %w", err)
	}
	return nil
}

// UpdateUserTrust stores the latest score. A stored block is never cleared.
func (s *Store) UpdateUserTrust(ctx context.Context, score domain.TrustScore) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_trust (sender, trust_score, is_blocked, last_activity)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(sender) DO UPDATE SET
			trust_score = excluded.trust_score,
			is_blocked = MAX(user_trust.is_blocked, excluded.is_blocked),
			last_activity = excluded.last_activity
	`, score.Sender, score.Score, score.Blocked, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to update user trust: %w", err)
	}
	return nil
}

// IsUserBlocked reports whether a sender was ever blocked
func (s *Store) IsUserBlocked(ctx context.Context, sender string) (bool, error) {
	var blocked bool
	err := s.db.QueryRowContext(ctx, `SELECT is_blocked FROM user_trust WHERE sender = ?`, sender).Scan(&blocked)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query user trust: %w", err)
	}
	return blocked, nil
}

// GetUserTrust returns the stored score of a sender, nil when never scored
func (s *Store) GetUserTrust(ctx context.Context, sender string) (*domain.TrustScore, error) {
	score := &domain.TrustScore{Sender: sender}
	err := s.db.QueryRowContext(ctx, `
		SELECT trust_score, is_blocked FROM user_trust WHERE sender = ?
	`, sender).Scan(&score.Score, &score.Blocked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user trust: %w", err)
	}
	return score, nil
}

// ListDeletedMessages returns the latest deletions, newest first
func (s *Store) ListDeletedMessages(ctx context.Context, limit int) ([]*DeletedMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, message_id, chat_id, sender, deleted_by, content, msg_type, deleted_at
		FROM deleted_messages
		ORDER BY deleted_at DESC, id DESC
		LIMIT ?
	`, limitOrDefault(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query deleted messages: %w", err)
	}
	defer rows.Close()

	var out []*DeletedMessage
	for rows.Next() {
		var m DeletedMessage
		var at int64
		if err := rows.Scan(&m.ID, &m.MessageID, &m.Chat, &m.Sender, &m.DeletedBy, &m.Content, &m.MsgType, &at); err != nil {
			return nil, fmt.Errorf("failed to scan deleted message: %w", err)
		}
		m.DeletedAt = time.Unix(at, 0)
		out = append(out, &m)
	}
	return out, rows.Err()
}

// ListEditedMessages returns the latest edits, newest first
func (s *Store) ListEditedMessages(ctx context.Context, limit int) ([]*EditedMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, message_id, chat_id, edited_by, original_content, edited_content, edited_at
		FROM edited_messages
		ORDER BY edited_at DESC, id DESC
		LIMIT ?
	`, limitOrDefault(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query edited messages: %w", err)
	}
	defer rows.Close()

	var out []*EditedMessage
	for rows.Next() {
		var m EditedMessage
		var at int64
		if err := rows.Scan(&m.ID, &m.MessageID, &m.Chat, &m.EditedBy, &m.OriginalContent, &m.EditedContent, &at); err != nil {
			return nil, fmt.Errorf("failed to scan edited message: %w", err)
		}
		m.EditedAt = time.Unix(at, 0)
		out = append(out, &m)
	}
	return out, rows.Err()
}

func limitOrDefault(limit int) int {
	if limit <= 0 || limit > 500 {
		return 50
	}
	return limit
}
