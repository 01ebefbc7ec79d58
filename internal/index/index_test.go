// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package index

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rajbasheer/multichat-tui/internal/model"
)

func testIndex(t *testing.T) (*Index, string) {
	t.Helper()
	dir := t.TempDir()
	ix, err := Open(filepath.Join(dir, "index.db"), dir)
	require.NoError(t, err)
	t.Cleanup(func() { ix.Close() })
	return ix, dir
}

func conversation(t *testing.T, id, title string, entries map[string][]model.HistoryEntry) model.Conversation {
	t.Helper()
	doc := model.NewHistoryDoc()
	for key, msgs := range entries {
		doc.SetModel(key, msgs)
	}
	raw, err := doc.Serialize()
	require.NoError(t, err)
	return model.Conversation{ConversationID: id, Title: title, Messages: raw}
}

func TestPutAndSearch(t *testing.T) {
	ix, _ := testIndex(t)
	conv := conversation(t, "conv_1", "Generics chat", map[string][]model.HistoryEntry{
		"gpt-4.1": {
			{Role: model.RoleUser, Message: "Explain Go generics with type parameters"},
			{Role: model.RoleAssistant, Message: "Type parameters let functions work over sets of types."},
		},
	})
	require.NoError(t, ix.Put(context.Background(), conv, time.Now()))

	hits, err := ix.Search(context.Background(), "generics", 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "conv_1", hits[0].ConversationID)
	assert.Equal(t, "gpt-4.1", hits[0].ModelKey)
}

func TestPutIsIdempotent(t *testing.T) {
	ix, _ := testIndex(t)
	conv := conversation(t, "conv_1", "Dup check", map[string][]model.HistoryEntry{
		"gpt-4.1": {{Role: model.RoleUser, Message: "unique marker phrase"}},
	})

	require.NoError(t, ix.Put(context.Background(), conv, time.Now()))
	require.NoError(t, ix.Put(context.Background(), conv, time.Now()))

	hits, err := ix.Search(context.Background(), "marker", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1, "re-indexing must replace, not duplicate")
}

func TestDeleteRemovesHits(t *testing.T) {
	ix, _ := testIndex(t)
	conv := conversation(t, "conv_1", "Doomed", map[string][]model.HistoryEntry{
		"gpt-4.1": {{Role: model.RoleUser, Message: "ephemeral content"}},
	})
	require.NoError(t, ix.Put(context.Background(), conv, time.Now()))
	require.NoError(t, ix.Delete(context.Background(), "conv_1"))

	hits, err := ix.Search(context.Background(), "ephemeral", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchOperatorsAreEscaped(t *testing.T) {
	ix, _ := testIndex(t)
	conv := conversation(t, "conv_1", "Ops", map[string][]model.HistoryEntry{
		"gpt-4.1": {{Role: model.RoleUser, Message: "a AND b OR c"}},
	})
	require.NoError(t, ix.Put(context.Background(), conv, time.Now()))

	// Raw operators and quotes must not break the query.
	for _, q := range []string{`AND`, `"broken`, `NEAR(x y)`} {
		_, err := ix.Search(context.Background(), q, 10)
		assert.NoError(t, err, "query %q", q)
	}
}

func TestSearchNormalizesUnicode(t *testing.T) {
	ix, _ := testIndex(t)
	// Decomposed é (e + combining acute) in the stored text.
	conv := conversation(t, "conv_1", "Accents", map[string][]model.HistoryEntry{
		"gpt-4.1": {{Role: model.RoleUser, Message: "café recommendations"}},
	})
	require.NoError(t, ix.Put(context.Background(), conv, time.Now()))

	// Composed é in the query still matches.
	hits, err := ix.Search(context.Background(), "café", 10)
	require.NoError(t, err)
	assert.NotEmpty(t, hits)
}

func TestReindexPicksUpMirrorFiles(t *testing.T) {
	ix, dir := testIndex(t)

	conv := conversation(t, "conv_9", "From disk", map[string][]model.HistoryEntry{
		"claude-3-opus": {{Role: model.RoleAssistant, Message: "mirrored knowledge"}},
	})
	data, err := json.Marshal(conv)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "conv_9.json"), data, 0644))

	n, err := ix.Reindex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Unchanged files are skipped on the next pass.
	n, err = ix.Reindex(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	hits, err := ix.Search(context.Background(), "mirrored", 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "conv_9", hits[0].ConversationID)
}

func TestReindexSkipsTornFiles(t *testing.T) {
	ix, dir := testIndex(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "junk.json"), []byte("{not json"), 0644))

	n, err := ix.Reindex(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
