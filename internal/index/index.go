// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package index

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

	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/Rajbasheer/multichat-tui/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrClosed        = errors.New("index closed")
	ErrDatabaseError = errors.New("index database error")
)

// =============================================================================
// CONVERSATION INDEX
// =============================================================================

// Index is the offline search index over the local conversation mirror.
type Index struct {
	db  *sql.DB
	dir string
}

// Open opens (or creates) the index database at dbPath, covering the mirror
// directory dir.
func Open(dbPath, dir string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	// SQLite allows one writer; a bounded pool avoids lock contention.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	if _, err := db.Exec(
		`INSERT OR REPLACE INTO metadata (key, value) VALUES ('schema_version', ?)`,
		fmt.Sprint(SchemaVersion),
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	return &Index{db: db, dir: dir}, nil
}

// Close releases the database.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// =============================================================================
// INDEXING
// =============================================================================

// Put indexes (or re-indexes) one conversation. Existing rows for the same
// conversation id are replaced wholesale, so re-indexing is idempotent.
func (ix *Index) Put(ctx context.Context, conv model.Conversation, modTime time.Time) error {
	doc := conv.History()

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer tx.Rollback()

	// Cascade removes old messages and their FTS rows via triggers.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM conversations WHERE conversation_id = ?`, conv.ConversationID); err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO conversations (conversation_id, title, mod_time, indexed_at) VALUES (?, ?, ?, ?)`,
		conv.ConversationID, conv.Title, modTime.Unix(), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	fk, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO messages (conversation_fk, model_key, role, content, position) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer stmt.Close()

	for key, history := range doc.Models {
		for pos, entry := range history.Messages {
			if _, err := stmt.ExecContext(ctx, fk, key, string(entry.Role),
				normalize(entry.Message), pos); err != nil {
				return fmt.Errorf("%w: %v", ErrDatabaseError, err)
			}
		}
	}

	return tx.Commit()
}

// Delete removes a conversation from the index.
func (ix *Index) Delete(ctx context.Context, conversationID string) error {
	_, err := ix.db.ExecContext(ctx,
		`DELETE FROM conversations WHERE conversation_id = ?`, conversationID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	return nil
}

// Reindex scans the mirror directory and indexes every conversation file
// that is new or changed since its recorded mod time. Returns how many files
// were (re)indexed.
func (ix *Index) Reindex(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(ix.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	indexed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(ix.dir, entry.Name())

		stale, err := ix.isStale(ctx, path, info.ModTime())
		if err != nil || !stale {
			continue
		}
		conv, err := readMirrorFile(path)
		if err != nil {
			// A torn or foreign file in the mirror dir is skipped, not fatal.
			continue
		}
		if err := ix.Put(ctx, conv, info.ModTime()); err != nil {
			return indexed, err
		}
		indexed++
	}
	return indexed, nil
}

func (ix *Index) isStale(ctx context.Context, path string, modTime time.Time) (bool, error) {
	conv, err := readMirrorFile(path)
	if err != nil {
		return false, err
	}
	var recorded int64
	err = ix.db.QueryRowContext(ctx,
		`SELECT mod_time FROM conversations WHERE conversation_id = ?`,
		conv.ConversationID).Scan(&recorded)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return modTime.Unix() > recorded, nil
}

func readMirrorFile(path string) (model.Conversation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Conversation{}, err
	}
	var conv model.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return model.Conversation{}, err
	}
	if conv.ConversationID == "" {
		return model.Conversation{}, errors.New("mirror file without conversation id")
	}
	return conv, nil
}

// =============================================================================
// SEARCH
// =============================================================================

// Hit is one search result.
type Hit struct {
	ConversationID string
	Title          string
	ModelKey       string
	Role           string
	Snippet        string
	Rank           float64
}

// Search runs a full-text query and returns up to limit hits, best first.
func (ix *Index) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 20
	}
	q := ftsQuery(query)
	if q == "" {
		return nil, nil
	}

	rows, err := ix.db.QueryContext(ctx, `
		SELECT c.conversation_id, c.title, m.model_key, m.role,
		       snippet(messages_fts, 0, '', '', '…', 12),
		       rank
		FROM messages_fts
		JOIN messages m ON m.id = messages_fts.rowid
		JOIN conversations c ON c.id = m.conversation_fk
		WHERE messages_fts MATCH ?
		ORDER BY rank
		LIMIT ?`, q, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.ConversationID, &h.Title, &h.ModelKey, &h.Role, &h.Snippet, &h.Rank); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// normalize puts text into NFC so composed and decomposed inputs match.
func normalize(s string) string {
	return norm.NFC.String(s)
}

// ftsQuery escapes user input into quoted FTS5 terms joined with implicit
// AND, so operators in the raw query cannot break the statement.
func ftsQuery(query string) string {
	fields := strings.Fields(normalize(query))
	if len(fields) == 0 {
		return ""
	}
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " ")
}
