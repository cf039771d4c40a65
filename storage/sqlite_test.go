package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinex/kronologi/llm"
)

func newStore(t *testing.T) *SqliteStorage {
	t.Helper()
	s, err := NewSqliteInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun() Run {
	return Run{
		Job:             "monthly",
		Label:           "2026-3",
		Provider:        "anthropic",
		Model:           "claude-x",
		History:         2,
		Summary:         1,
		OriginalHistory: 3,
		OriginalSummary: 1,
		Iterations:      2,
		Usage:           llm.NewTokenUsage(1200, 300),
		Content:         "# March",
		Messages: []llm.Message{
			llm.SystemMessage("sys"),
			llm.UserMessage("summarize"),
			llm.AssistantMessage("Using tool: list_files"),
			llm.UserMessage("Tool result: a.md"),
		},
		ToolCalls: []llm.ToolCall{
			{ID: "call_1", Name: "list_files", Input: json.RawMessage(`{"directory":"activity"}`)},
		},
	}
}

func TestSaveAndGet(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	id, err := s.Save(ctx, sampleRun())
	require.NoError(t, err)
	assert.Len(t, id, 36)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)

	want := sampleRun()
	assert.Equal(t, id, got.ID)
	assert.Equal(t, want.Job, got.Job)
	assert.Equal(t, want.Label, got.Label)
	assert.Equal(t, want.Provider, got.Provider)
	assert.Equal(t, want.Model, got.Model)
	assert.Equal(t, 2, got.History)
	assert.Equal(t, 1, got.Summary)
	assert.Equal(t, 3, got.OriginalHistory)
	assert.Equal(t, 2, got.Iterations)
	assert.Equal(t, want.Usage, got.Usage)
	assert.Equal(t, want.Content, got.Content)
	assert.False(t, got.Skipped)
	assert.False(t, got.CreatedAt.IsZero())
	assert.Equal(t, want.Messages, got.Messages)
	require.Len(t, got.ToolCalls, 1)
	assert.Equal(t, "list_files", got.ToolCalls[0].Name)
	assert.JSONEq(t, `{"directory":"activity"}`, string(got.ToolCalls[0].Input))
}

func TestGetUnknownRun(t *testing.T) {
	_, err := newStore(t).Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrRunNotFound)
}

func TestSaveReplacesExistingRun(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	id, err := s.Save(ctx, sampleRun())
	require.NoError(t, err)

	updated := sampleRun()
	updated.ID = id
	updated.Content = ""
	updated.Skipped = true
	updated.Messages = updated.Messages[:2]
	updated.ToolCalls = nil

	_, err = s.Save(ctx, updated)
	require.NoError(t, err)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, got.Skipped)
	assert.Len(t, got.Messages, 2)
	assert.Empty(t, got.ToolCalls)

	all, err := s.List(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestListNewestFirst(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i, job := range []string{"monthly", "weekly", "monthly"} {
		run := sampleRun()
		run.ID = job + "-" + string(rune('a'+i))
		run.Job = job
		run.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		_, err := s.Save(ctx, run)
		require.NoError(t, err)
	}

	monthly, err := s.List(ctx, "monthly", 0)
	require.NoError(t, err)
	require.Len(t, monthly, 2)
	assert.Equal(t, "monthly-c", monthly[0].ID)
	assert.Equal(t, "monthly-a", monthly[1].ID)
	assert.Nil(t, monthly[0].Messages)

	latest, err := s.List(ctx, "", 1)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, "monthly-c", latest[0].ID)
	assert.True(t, latest[0].CreatedAt.Equal(base.Add(2*time.Hour)))
}

func TestDelete(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	id, err := s.Save(ctx, sampleRun())
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, id))

	_, err = s.Get(ctx, id)
	require.ErrorIs(t, err, ErrRunNotFound)

	// A new run may reuse the ID without leftover rows.
	run := sampleRun()
	run.ID = id
	_, err = s.Save(ctx, run)
	require.NoError(t, err)
}

func TestOpenSqliteCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "runs.db")

	s, err := OpenSqlite(path)
	require.NoError(t, err)
	id, err := s.Save(context.Background(), sampleRun())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := OpenSqlite(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "# March", got.Content)
}
