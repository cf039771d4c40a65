// Package storage provides SQLite persistence for run transcripts.
//
// A transcript is everything a report run exchanged with the model: the
// conversation history, the tool calls it issued, and the depth and usage
// it finished with. Transcripts are kept for replay and debugging.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/richinex/kronologi/llm"
)

// ErrRunNotFound is returned by Get for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// Run is a stored transcript.
type Run struct {
	ID              string
	Job             string
	Label           string
	Provider        string
	Model           string
	History         int
	Summary         int
	OriginalHistory int
	OriginalSummary int
	Iterations      int
	Usage           llm.TokenUsage
	Content         string
	Skipped         bool
	CreatedAt       time.Time

	Messages  []llm.Message
	ToolCalls []llm.ToolCall
}

// SqliteStorage stores transcripts in a SQLite database file.
// Safe for concurrent use; sql.DB pools connections.
type SqliteStorage struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSqlite opens or creates a SQLite database at the given path.
// Creates parent directories if they don't exist.
func OpenSqlite(path string) (*SqliteStorage, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	return open(path)
}

// NewSqliteInMemory creates an in-memory database (useful for testing).
func NewSqliteInMemory() (*SqliteStorage, error) {
	return open(":memory:")
}

func open(dsn string) (*SqliteStorage, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	s := &SqliteStorage{db: db, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SqliteStorage) Close() error {
	return s.db.Close()
}

func (s *SqliteStorage) createSchema() error {
	schema := `
		PRAGMA foreign_keys = ON;

		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			job TEXT NOT NULL,
			label TEXT NOT NULL,
			provider TEXT NOT NULL,
			model TEXT NOT NULL,
			history_depth INTEGER NOT NULL,
			summary_depth INTEGER NOT NULL,
			original_history_depth INTEGER NOT NULL,
			original_summary_depth INTEGER NOT NULL,
			iterations INTEGER NOT NULL,
			input_tokens INTEGER NOT NULL,
			output_tokens INTEGER NOT NULL,
			content TEXT NOT NULL,
			skipped INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_runs_job
		ON runs(job, created_at DESC);

		CREATE TABLE IF NOT EXISTS messages (
			run_id TEXT NOT NULL,
			message_index INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE,
			PRIMARY KEY (run_id, message_index)
		);

		CREATE TABLE IF NOT EXISTS tool_calls (
			run_id TEXT NOT NULL,
			call_index INTEGER NOT NULL,
			call_id TEXT NOT NULL,
			name TEXT NOT NULL,
			input TEXT NOT NULL,
			FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE,
			PRIMARY KEY (run_id, call_index)
		);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Save stores run and returns its ID. A run without an ID gets a new UUID;
// saving an existing ID replaces the stored transcript.
func (s *SqliteStorage) Save(ctx context.Context, run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	// Rollback after Commit is a no-op.
	defer func() { _ = tx.Rollback() }()

	if err := deleteRun(ctx, tx, run.ID); err != nil {
		return "", fmt.Errorf("failed to clear old run: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(run_id, job, label, provider, model, history_depth, summary_depth,
		 original_history_depth, original_summary_depth, iterations,
		 input_tokens, output_tokens, content, skipped, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Job, run.Label, run.Provider, run.Model,
		run.History, run.Summary, run.OriginalHistory, run.OriginalSummary,
		run.Iterations, run.Usage.InputTokens, run.Usage.OutputTokens,
		run.Content, run.Skipped, run.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	msgStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO messages (run_id, message_index, role, content) VALUES (?, ?, ?, ?)")
	if err != nil {
		return "", fmt.Errorf("failed to prepare message insert: %w", err)
	}
	defer msgStmt.Close()

	for i, msg := range run.Messages {
		if _, err := msgStmt.ExecContext(ctx, run.ID, i, string(msg.Role), msg.Content); err != nil {
			return "", fmt.Errorf("failed to insert message: %w", err)
		}
	}

	callStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO tool_calls (run_id, call_index, call_id, name, input) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return "", fmt.Errorf("failed to prepare tool call insert: %w", err)
	}
	defer callStmt.Close()

	for i, call := range run.ToolCalls {
		if _, err := callStmt.ExecContext(ctx, run.ID, i, call.ID, call.Name, string(call.Input)); err != nil {
			return "", fmt.Errorf("failed to insert tool call: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	return run.ID, nil
}

const runColumns = `run_id, job, label, provider, model, history_depth, summary_depth,
	original_history_depth, original_summary_depth, iterations,
	input_tokens, output_tokens, content, skipped, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run       Run
		in, out   int64
		createdAt int64
	)
	err := row.Scan(&run.ID, &run.Job, &run.Label, &run.Provider, &run.Model,
		&run.History, &run.Summary, &run.OriginalHistory, &run.OriginalSummary,
		&run.Iterations, &in, &out, &run.Content, &run.Skipped, &createdAt)
	if err != nil {
		return Run{}, err
	}
	run.Usage = llm.NewTokenUsage(in, out)
	run.CreatedAt = time.UnixMilli(createdAt)
	return run, nil
}

// Get loads a full transcript, including messages and tool calls.
func (s *SqliteStorage) Get(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE run_id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("failed to load run: %w", err)
	}

	if run.Messages, err = s.loadMessages(ctx, id); err != nil {
		return Run{}, err
	}
	if run.ToolCalls, err = s.loadToolCalls(ctx, id); err != nil {
		return Run{}, err
	}
	return run, nil
}

func (s *SqliteStorage) loadMessages(ctx context.Context, id string) ([]llm.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT role, content FROM messages WHERE run_id = ? ORDER BY message_index ASC", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := []llm.Message{}
	for rows.Next() {
		var msg llm.Message
		if err := rows.Scan(&msg.Role, &msg.Content); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return messages, nil
}

func (s *SqliteStorage) loadToolCalls(ctx context.Context, id string) ([]llm.ToolCall, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT call_id, name, input FROM tool_calls WHERE run_id = ? ORDER BY call_index ASC", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query tool calls: %w", err)
	}
	defer rows.Close()

	calls := []llm.ToolCall{}
	for rows.Next() {
		var (
			call  llm.ToolCall
			input string
		)
		if err := rows.Scan(&call.ID, &call.Name, &input); err != nil {
			return nil, fmt.Errorf("failed to scan tool call: %w", err)
		}
		call.Input = []byte(input)
		calls = append(calls, call)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tool calls: %w", err)
	}
	return calls, nil
}

// List returns run summaries for job, newest first, without messages or
// tool calls. An empty job lists every run. limit <= 0 means no limit.
func (s *SqliteStorage) List(ctx context.Context, job string, limit int) ([]Run, error) {
	query := "SELECT " + runColumns + " FROM runs"
	var args []any
	if job != "" {
		query += " WHERE job = ?"
		args = append(args, job)
	}
	query += " ORDER BY created_at DESC, rowid DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// Delete removes a run and its messages and tool calls.
func (s *SqliteStorage) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := deleteRun(ctx, tx, id); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func deleteRun(ctx context.Context, tx *sql.Tx, id string) error {
	for _, table := range []string{"tool_calls", "messages", "runs"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE run_id = ?", id); err != nil {
			return err
		}
	}
	return nil
}
