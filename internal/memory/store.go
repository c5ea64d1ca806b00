// Package memory persists generation sessions in SQLite so previous requests
// and their scripts can be listed, inspected, and reused as context.
package memory

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

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrSessionNotFound is returned when no session has the requested ID.
var ErrSessionNotFound = errors.New("session not found")

// DefaultSimilarLimit is the number of similar prompts returned by default.
const DefaultSimilarLimit = 5

// timestamps are stored in a fixed-width UTC layout so text order is time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store is a SQLite-backed session store.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens the store under dir (sessions.db), or an in-memory store when
// dir is ":memory:".
func Open(dir string) (*Store, error) {
	dbPath := ":memory:"
	if dir != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create memory directory: %w", err)
		}
		dbPath = filepath.Join(dir, "sessions.db")
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Each pooled connection to ":memory:" would see its own database.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: dbPath}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		timestamp TEXT NOT NULL,
		user_prompt TEXT,
		cot_result TEXT,                  -- JSON
		clarification_questions TEXT,     -- JSON array
		user_feedback TEXT,               -- JSON
		updated_prompt TEXT,
		plan TEXT,                        -- JSON
		search_results TEXT,              -- JSON array
		code_shots TEXT,                  -- JSON array
		generated_code TEXT,
		test_result TEXT,                 -- JSON
		regenerated_code TEXT,
		final_test_result TEXT            -- JSON
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_timestamp ON sessions(timestamp);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// NewSession starts a session and persists its empty record.
func (s *Store) NewSession(ctx context.Context) (*Recorder, error) {
	sess := &Session{ID: uuid.NewString(), Timestamp: time.Now().UTC()}
	r := &Recorder{store: s, session: sess}
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) save(ctx context.Context, sess *Session) error {
	questions, err := marshalList(sess.ClarificationQuestions)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, timestamp, user_prompt, cot_result, clarification_questions,
			user_feedback, updated_prompt, plan, search_results, code_shots, generated_code,
			test_result, regenerated_code, final_test_result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			timestamp = excluded.timestamp,
			user_prompt = excluded.user_prompt,
			cot_result = excluded.cot_result,
			clarification_questions = excluded.clarification_questions,
			user_feedback = excluded.user_feedback,
			updated_prompt = excluded.updated_prompt,
			plan = excluded.plan,
			search_results = excluded.search_results,
			code_shots = excluded.code_shots,
			generated_code = excluded.generated_code,
			test_result = excluded.test_result,
			regenerated_code = excluded.regenerated_code,
			final_test_result = excluded.final_test_result`,
		sess.ID, sess.Timestamp.UTC().Format(timeLayout),
		nullString(sess.UserPrompt), nullRaw(sess.CoTResult), questions,
		nullRaw(sess.UserFeedback), nullString(sess.UpdatedPrompt), nullRaw(sess.Plan),
		nullRaw(sess.SearchResults), nullRaw(sess.CodeShots), nullString(sess.GeneratedCode),
		nullRaw(sess.TestResult), nullString(sess.RegeneratedCode), nullRaw(sess.FinalTestResult),
	)
	if err != nil {
		return fmt.Errorf("save session %s: %w", sess.ID, err)
	}
	return nil
}

const sessionColumns = `id, timestamp, user_prompt, cot_result, clarification_questions,
	user_feedback, updated_prompt, plan, search_results, code_shots, generated_code,
	test_result, regenerated_code, final_test_result`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var (
		sess                                            Session
		ts                                              string
		prompt, cot, questions, feedback, updated, plan sql.NullString
		search, shots, code, test, regen, final         sql.NullString
	)
	if err := row.Scan(&sess.ID, &ts, &prompt, &cot, &questions, &feedback, &updated,
		&plan, &search, &shots, &code, &test, &regen, &final); err != nil {
		return nil, err
	}

	t, err := time.Parse(timeLayout, ts)
	if err != nil {
		return nil, fmt.Errorf("parse timestamp %q: %w", ts, err)
	}
	sess.Timestamp = t
	sess.UserPrompt = prompt.String
	sess.CoTResult = rawOrNil(cot)
	if questions.Valid && questions.String != "" {
		if err := json.Unmarshal([]byte(questions.String), &sess.ClarificationQuestions); err != nil {
			return nil, fmt.Errorf("decode clarification questions: %w", err)
		}
	}
	sess.UserFeedback = rawOrNil(feedback)
	sess.UpdatedPrompt = updated.String
	sess.Plan = rawOrNil(plan)
	sess.SearchResults = rawOrNil(search)
	sess.CodeShots = rawOrNil(shots)
	sess.GeneratedCode = code.String
	sess.TestResult = rawOrNil(test)
	sess.RegeneratedCode = regen.String
	sess.FinalTestResult = rawOrNil(final)
	return &sess, nil
}

// Get loads a session by ID. A unique ID prefix of at least 4 characters
// is accepted, matching the short IDs shown in listings.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+sessionColumns+" FROM sessions WHERE id = ?", id)
	sess, err := scanSession(row)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if len(id) < 4 {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT "+sessionColumns+" FROM sessions WHERE id LIKE ? LIMIT 2", id+"%")
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var matches []*Session
	for rows.Next() {
		m, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		matches = append(matches, m)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, err
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	default:
		return nil, fmt.Errorf("session id prefix %q is ambiguous", id)
	}
}

// List returns session summaries, newest first. limit <= 0 means no limit.
func (s *Store) List(ctx context.Context, limit int) ([]SessionSummary, error) {
	query := `SELECT id, timestamp, user_prompt, generated_code, regenerated_code,
		test_result, final_test_result FROM sessions ORDER BY timestamp DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []SessionSummary
	for rows.Next() {
		var (
			sum                         SessionSummary
			ts                          string
			prompt, code, regen, t1, t2 sql.NullString
		)
		if err := rows.Scan(&sum.ID, &ts, &prompt, &code, &regen, &t1, &t2); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sum.Timestamp, _ = time.Parse(timeLayout, ts)
		sum.UserPrompt = prompt.String
		sum.HasCode = code.String != "" || regen.String != ""
		last := t1
		if t2.Valid && t2.String != "" {
			last = t2
		}
		if last.Valid && last.String != "" {
			var res struct {
				Success bool `json:"success"`
			}
			if json.Unmarshal([]byte(last.String), &res) == nil {
				sum.Passed = &res.Success
			}
		}
		out = append(out, sum)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a session.
func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

// SimilarPrompts returns previous sessions, newest first, whose prompt contains
// any lower-cased word of prompt. Sessions with ID exclude are skipped.
func (s *Store) SimilarPrompts(ctx context.Context, prompt, exclude string, limit int) ([]SimilarPrompt, error) {
	if limit <= 0 {
		limit = DefaultSimilarLimit
	}
	words := strings.Fields(strings.ToLower(prompt))
	if len(words) == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, timestamp, user_prompt, generated_code, regenerated_code
		FROM sessions WHERE user_prompt IS NOT NULL AND user_prompt != '' ORDER BY timestamp DESC`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []SimilarPrompt
	for rows.Next() {
		var (
			id, ts         string
			p, code, regen sql.NullString
		)
		if err := rows.Scan(&id, &ts, &p, &code, &regen); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if id == exclude || !containsAny(strings.ToLower(p.String), words) {
			continue
		}
		sp := SimilarPrompt{Prompt: p.String, GeneratedCode: code.String}
		if sp.GeneratedCode == "" {
			sp.GeneratedCode = regen.String
		}
		sp.Timestamp, _ = time.Parse(timeLayout, ts)
		out = append(out, sp)
		if len(out) >= limit {
			break
		}
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, err
	}
	return out, nil
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
