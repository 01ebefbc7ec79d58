// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package index provides offline full-text search over locally mirrored
// conversations.
package index

const (
	// SchemaVersion tracks the database schema for migrations.
	SchemaVersion = 1
)

// SQLite schema: one row per conversation message, with an FTS5 shadow table
// kept in sync by triggers.
const schema = `
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
) WITHOUT ROWID;

-- Conversations table: one row per mirrored conversation file
CREATE TABLE IF NOT EXISTS conversations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    conversation_id TEXT NOT NULL UNIQUE,
    title TEXT NOT NULL,
    mod_time INTEGER NOT NULL,   -- mirror file mtime, Unix seconds
    indexed_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_conversations_conv_id ON conversations(conversation_id);

-- Messages table: individual entries, the unit of search results
CREATE TABLE IF NOT EXISTS messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    conversation_fk INTEGER NOT NULL,
    model_key TEXT NOT NULL,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    position INTEGER NOT NULL,
    FOREIGN KEY(conversation_fk) REFERENCES conversations(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_fk);
CREATE INDEX IF NOT EXISTS idx_messages_model ON messages(model_key);

-- Full-text search over message content and conversation titles
CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(
    content,
    content='messages',
    content_rowid='id',
    tokenize='porter unicode61'
);

CREATE TRIGGER IF NOT EXISTS messages_ai AFTER INSERT ON messages BEGIN
    INSERT INTO messages_fts(rowid, content) VALUES (new.id, new.content);
END;

CREATE TRIGGER IF NOT EXISTS messages_ad AFTER DELETE ON messages BEGIN
    DELETE FROM messages_fts WHERE rowid = old.id;
END;

CREATE TRIGGER IF NOT EXISTS messages_au AFTER UPDATE ON messages BEGIN
    DELETE FROM messages_fts WHERE rowid = old.id;
    INSERT INTO messages_fts(rowid, content) VALUES (new.id, new.content);
END;`
