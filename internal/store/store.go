package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/autoescuela/campus/internal/model"
)

// ErrAttemptExists is returned by CreateAttempt when the user already has an
// unfinished attempt for the exam.
var ErrAttemptExists = errors.New("unfinished attempt already exists")

// Store is the relational store backing the platform.
type Store struct {
	db *sql.DB
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// New opens the SQLite database at dbPath and applies the schema.
func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if dbPath != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite serializes writers anyway; a single connection also keeps
	// in-memory databases shared across calls.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS courses (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		code TEXT NOT NULL UNIQUE,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS cohorts (
		id TEXT PRIMARY KEY,
		course_id TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		code TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE (course_id, code)
	);

	CREATE TABLE IF NOT EXISTS subjects (
		id TEXT PRIMARY KEY,
		course_id TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		order_index INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS contents (
		id TEXT PRIMARY KEY,
		subject_id TEXT NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		body TEXT NOT NULL DEFAULT '',
		external_link TEXT NOT NULL DEFAULT '',
		file_url TEXT NOT NULL DEFAULT '',
		order_index INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		full_name TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL CHECK (role IN ('admin', 'student')),
		course_id TEXT REFERENCES courses(id) ON DELETE SET NULL,
		cohort_id TEXT REFERENCES cohorts(id) ON DELETE SET NULL,
		cedula TEXT NOT NULL DEFAULT '',
		must_change_password INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS exams (
		id TEXT PRIMARY KEY,
		subject_id TEXT REFERENCES subjects(id) ON DELETE CASCADE,
		course_id TEXT REFERENCES courses(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		question_count INTEGER NOT NULL CHECK (question_count >= 1),
		passing_score INTEGER NOT NULL DEFAULT 70 CHECK (passing_score BETWEEN 0 AND 100),
		duration_minutes INTEGER,
		max_attempts INTEGER NOT NULL DEFAULT 1 CHECK (max_attempts >= 1),
		created_at DATETIME NOT NULL,
		CHECK ((subject_id IS NULL) <> (course_id IS NULL))
	);

	CREATE TABLE IF NOT EXISTS questions (
		id TEXT PRIMARY KEY,
		subject_id TEXT REFERENCES subjects(id) ON DELETE CASCADE,
		exam_id TEXT REFERENCES exams(id) ON DELETE CASCADE,
		question_text TEXT NOT NULL,
		image_url TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL CHECK (type IN ('multiple_choice', 'open_text')),
		order_index INTEGER NOT NULL DEFAULT 0,
		answer_parts TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME NOT NULL,
		CHECK ((subject_id IS NULL) <> (exam_id IS NULL))
	);

	CREATE TABLE IF NOT EXISTS question_options (
		id TEXT PRIMARY KEY,
		question_id TEXT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
		option_text TEXT NOT NULL,
		is_correct INTEGER NOT NULL DEFAULT 0,
		order_index INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS exam_attempts (
		id TEXT PRIMARY KEY,
		exam_id TEXT NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		score REAL,
		passed INTEGER
	);

	CREATE UNIQUE INDEX IF NOT EXISTS exam_attempts_one_open
		ON exam_attempts (exam_id, user_id) WHERE finished_at IS NULL;
	CREATE INDEX IF NOT EXISTS exam_attempts_user ON exam_attempts (user_id, exam_id);

	CREATE TABLE IF NOT EXISTS attempt_questions (
		attempt_id TEXT NOT NULL REFERENCES exam_attempts(id) ON DELETE CASCADE,
		question_id TEXT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		option_order TEXT NOT NULL DEFAULT '[]',
		PRIMARY KEY (attempt_id, question_id)
	);

	CREATE TABLE IF NOT EXISTS attempt_answers (
		id TEXT PRIMARY KEY,
		attempt_id TEXT NOT NULL REFERENCES exam_attempts(id) ON DELETE CASCADE,
		question_id TEXT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
		option_id TEXT REFERENCES question_options(id) ON DELETE SET NULL,
		text_answer TEXT,
		is_correct INTEGER NOT NULL DEFAULT 0,
		UNIQUE (attempt_id, question_id)
	);

	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		cohort_id TEXT NOT NULL REFERENCES cohorts(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		body TEXT NOT NULL DEFAULT '',
		created_by TEXT REFERENCES users(id) ON DELETE SET NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS notification_reads (
		notification_id TEXT NOT NULL REFERENCES notifications(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		read_at DATETIME NOT NULL,
		PRIMARY KEY (notification_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS user_activity (
		user_id TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		total_time_seconds INTEGER NOT NULL DEFAULT 0,
		contents_viewed TEXT NOT NULL DEFAULT '[]',
		last_active_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS revoked_tokens (
		jti TEXT PRIMARY KEY,
		expires_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// inTx runs fn in a transaction, committing when fn succeeds.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// notFound turns sql.ErrNoRows into model.ErrNotFound.
func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, model.ErrNotFound)
	}
	return err
}

// constraint translates uniqueness and foreign key violations into validation errors.
func constraint(err error, field string) error {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return err
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return model.Invalid(field, "already exists")
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return model.Invalid(field, "references a missing record")
	}
	return err
}

// checkAffected returns model.ErrNotFound when res touched no rows.
func checkAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, model.ErrNotFound)
	}
	return nil
}
