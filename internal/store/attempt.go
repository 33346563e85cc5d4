package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/autoescuela/campus/internal/model"
)

const attemptColumns = `a.id, a.exam_id, a.user_id, a.started_at, a.finished_at, a.score, a.passed`

func scanAttempt(sc scanner, extra ...any) (model.Attempt, error) {
	var a model.Attempt
	dest := append([]any{&a.ID, &a.ExamID, &a.UserID, &a.StartedAt, &a.FinishedAt, &a.Score, &a.Passed}, extra...)
	err := sc.Scan(dest...)
	return a, err
}

// CreateAttempt inserts an unfinished attempt together with its question set.
// The partial unique index on unfinished attempts decides concurrent starts:
// the loser gets ErrAttemptExists and nothing is written.
func (s *Store) CreateAttempt(ctx context.Context, a model.Attempt, set []model.AttemptQuestion) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO exam_attempts (id, exam_id, user_id, started_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT DO NOTHING`,
			a.ID, a.ExamID, a.UserID, a.StartedAt,
		)
		if err != nil {
			return fmt.Errorf("insert attempt: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrAttemptExists
		}

		for _, aq := range set {
			order, err := json.Marshal(idsOrEmpty(aq.OptionOrder))
			if err != nil {
				return fmt.Errorf("encode option order: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO attempt_questions (attempt_id, question_id, position, option_order) VALUES (?, ?, ?, ?)`,
				a.ID, aq.QuestionID, aq.Position, string(order),
			); err != nil {
				return fmt.Errorf("insert attempt question: %w", err)
			}
		}
		return nil
	})
}

// GetAttempt returns an attempt by ID.
func (s *Store) GetAttempt(ctx context.Context, id uuid.UUID) (model.Attempt, error) {
	a, err := scanAttempt(s.db.QueryRowContext(ctx,
		`SELECT `+attemptColumns+` FROM exam_attempts a WHERE a.id = ?`, id,
	))
	return a, notFound(err, "attempt")
}

// OpenAttempt returns the user's unfinished attempt for an exam, or nil.
func (s *Store) OpenAttempt(ctx context.Context, examID, userID uuid.UUID) (*model.Attempt, error) {
	a, err := scanAttempt(s.db.QueryRowContext(ctx,
		`SELECT `+attemptColumns+` FROM exam_attempts a
		 WHERE a.exam_id = ? AND a.user_id = ? AND a.finished_at IS NULL`, examID, userID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CountFinishedAttempts returns how many attempts the user has finished for an exam.
func (s *Store) CountFinishedAttempts(ctx context.Context, examID, userID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM exam_attempts WHERE exam_id = ? AND user_id = ? AND finished_at IS NOT NULL`,
		examID, userID,
	).Scan(&n)
	return n, err
}

// AttemptQuestions returns the persisted question set of an attempt in presentation order.
func (s *Store) AttemptQuestions(ctx context.Context, attemptID uuid.UUID) ([]model.AttemptQuestion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT attempt_id, question_id, position, option_order FROM attempt_questions
		 WHERE attempt_id = ? ORDER BY position`, attemptID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var set []model.AttemptQuestion
	for rows.Next() {
		var aq model.AttemptQuestion
		var order string
		if err := rows.Scan(&aq.AttemptID, &aq.QuestionID, &aq.Position, &order); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(order), &aq.OptionOrder); err != nil {
			return nil, fmt.Errorf("decode option order: %w", err)
		}
		set = append(set, aq)
	}
	return set, rows.Err()
}

// AttemptQuestionDefs returns the full definitions of the questions in an attempt's set.
func (s *Store) AttemptQuestionDefs(ctx context.Context, attemptID uuid.UUID) ([]model.Question, error) {
	return questionsWhere(ctx, s.db,
		`q.id IN (SELECT question_id FROM attempt_questions WHERE attempt_id = ?)`, attemptID)
}

// FinishAttempt writes the graded answers and closes the attempt in one
// transaction. A concurrent or repeated submission gets model.ErrAlreadySubmitted.
func (s *Store) FinishAttempt(ctx context.Context, attemptID uuid.UUID, answers []model.AttemptAnswer, score float64, passed bool, at time.Time) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE exam_attempts SET finished_at = ?, score = ?, passed = ? WHERE id = ? AND finished_at IS NULL`,
			at, score, passed, attemptID,
		)
		if err != nil {
			return fmt.Errorf("finish attempt: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("attempt %s: %w", attemptID, model.ErrAlreadySubmitted)
		}

		for _, ans := range answers {
			id := ans.ID
			if id == uuid.Nil {
				id = uuid.New()
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO attempt_answers (id, attempt_id, question_id, option_id, text_answer, is_correct)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				id, attemptID, ans.QuestionID, ans.OptionID, ans.TextAnswer, ans.IsCorrect,
			); err != nil {
				return fmt.Errorf("insert answer: %w", err)
			}
		}
		return nil
	})
}

// AttemptAnswers returns the stored answers of an attempt in question order.
func (s *Store) AttemptAnswers(ctx context.Context, attemptID uuid.UUID) ([]model.AttemptAnswer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT aa.id, aa.attempt_id, aa.question_id, aa.option_id, aa.text_answer, aa.is_correct
		 FROM attempt_answers aa
		 LEFT JOIN attempt_questions aq ON aq.attempt_id = aa.attempt_id AND aq.question_id = aa.question_id
		 WHERE aa.attempt_id = ? ORDER BY aq.position`, attemptID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var answers []model.AttemptAnswer
	for rows.Next() {
		var a model.AttemptAnswer
		if err := rows.Scan(&a.ID, &a.AttemptID, &a.QuestionID, &a.OptionID, &a.TextAnswer, &a.IsCorrect); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// AttemptFilter selects finished attempts for reporting. Exactly one field is
// normally set.
type AttemptFilter struct {
	UserID   *uuid.UUID
	ExamID   *uuid.UUID
	CohortID *uuid.UUID
}

// FinishedAttempts returns finished attempts joined with their exam and user,
// oldest first.
func (s *Store) FinishedAttempts(ctx context.Context, f AttemptFilter) ([]model.AttemptRecord, error) {
	query := `SELECT ` + attemptColumns + `, e.title, u.email, u.full_name
		FROM exam_attempts a
		JOIN exams e ON e.id = a.exam_id
		JOIN users u ON u.id = a.user_id
		WHERE a.finished_at IS NOT NULL`
	var args []any
	if f.UserID != nil {
		query += ` AND a.user_id = ?`
		args = append(args, *f.UserID)
	}
	if f.ExamID != nil {
		query += ` AND a.exam_id = ?`
		args = append(args, *f.ExamID)
	}
	if f.CohortID != nil {
		query += ` AND u.cohort_id = ?`
		args = append(args, *f.CohortID)
	}
	query += ` ORDER BY a.finished_at, a.id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []model.AttemptRecord
	for rows.Next() {
		var r model.AttemptRecord
		a, err := scanAttempt(rows, &r.ExamTitle, &r.Email, &r.FullName)
		if err != nil {
			return nil, err
		}
		r.Attempt = a
		records = append(records, r)
	}
	return records, rows.Err()
}

func idsOrEmpty(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}
