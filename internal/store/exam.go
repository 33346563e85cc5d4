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

const examColumns = `e.id, e.subject_id, e.course_id, e.title, e.question_count, e.passing_score,
	e.duration_minutes, e.max_attempts, e.created_at, COALESCE(e.course_id, s.course_id)`

const examFrom = `FROM exams e LEFT JOIN subjects s ON s.id = e.subject_id`

func scanExam(sc scanner) (model.Exam, error) {
	var e model.Exam
	err := sc.Scan(&e.ID, &e.SubjectID, &e.CourseID, &e.Title, &e.QuestionCount, &e.PassingScore,
		&e.DurationMinutes, &e.MaxAttempts, &e.CreatedAt, &e.ScopeCourseID)
	return e, err
}

// CreateExam inserts an exam definition.
func (s *Store) CreateExam(ctx context.Context, e model.Exam) (model.Exam, error) {
	e.ID = uuid.New()
	e.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exams (id, subject_id, course_id, title, question_count, passing_score, duration_minutes, max_attempts, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SubjectID, e.CourseID, e.Title, e.QuestionCount, e.PassingScore, e.DurationMinutes, e.MaxAttempts, e.CreatedAt,
	)
	if err != nil {
		return e, constraint(err, "scope")
	}
	return s.GetExam(ctx, e.ID)
}

// GetExam returns an exam by ID.
func (s *Store) GetExam(ctx context.Context, id uuid.UUID) (model.Exam, error) {
	e, err := scanExam(s.db.QueryRowContext(ctx, `SELECT `+examColumns+` `+examFrom+` WHERE e.id = ?`, id))
	return e, notFound(err, "exam")
}

// ListExams returns exams, optionally limited to those belonging to a course
// directly or through one of its subjects.
func (s *Store) ListExams(ctx context.Context, courseID *uuid.UUID) ([]model.Exam, error) {
	query := `SELECT ` + examColumns + ` ` + examFrom
	var args []any
	if courseID != nil {
		query += ` WHERE COALESCE(e.course_id, s.course_id) = ?`
		args = append(args, *courseID)
	}
	query += ` ORDER BY e.created_at, e.title`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var exams []model.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}

// UpdateExam stores the settings of an existing exam. The scope is fixed at creation.
func (s *Store) UpdateExam(ctx context.Context, e model.Exam) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE exams SET title = ?, question_count = ?, passing_score = ?, duration_minutes = ?, max_attempts = ?
		 WHERE id = ?`,
		e.Title, e.QuestionCount, e.PassingScore, e.DurationMinutes, e.MaxAttempts, e.ID,
	)
	if err != nil {
		return err
	}
	return checkAffected(res, "exam")
}

// DeleteExam removes an exam with its fixed questions and attempts.
func (s *Store) DeleteExam(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM exams WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkAffected(res, "exam")
}

// AddQuestion inserts a question and its options after the last question of
// the same bank or exam.
func (s *Store) AddQuestion(ctx context.Context, q model.Question) (model.Question, error) {
	q.ID = uuid.New()
	q.CreatedAt = time.Now().UTC()
	parts, err := json.Marshal(partsOrEmpty(q.AnswerParts))
	if err != nil {
		return q, fmt.Errorf("encode answer parts: %w", err)
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		scopeCol, scopeID := "exam_id", q.ExamID
		if q.SubjectID != nil {
			scopeCol, scopeID = "subject_id", q.SubjectID
		}
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(order_index), -1) + 1 FROM questions WHERE `+scopeCol+` = ?`, scopeID,
		).Scan(&q.OrderIndex); err != nil {
			return fmt.Errorf("next order index: %w", err)
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO questions (id, subject_id, exam_id, question_text, image_url, type, order_index, answer_parts, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			q.ID, q.SubjectID, q.ExamID, q.Text, q.ImageURL, q.Type, q.OrderIndex, string(parts), q.CreatedAt,
		)
		if err != nil {
			return constraint(err, scopeCol)
		}

		for i := range q.Options {
			o := &q.Options[i]
			o.ID = uuid.New()
			o.QuestionID = q.ID
			o.OrderIndex = i
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO question_options (id, question_id, option_text, is_correct, order_index) VALUES (?, ?, ?, ?, ?)`,
				o.ID, o.QuestionID, o.Text, o.IsCorrect, o.OrderIndex,
			); err != nil {
				return fmt.Errorf("insert option: %w", err)
			}
		}
		return nil
	})
	return q, err
}

// SetAnswerParts replaces the accepted answers of an open-text question.
func (s *Store) SetAnswerParts(ctx context.Context, id uuid.UUID, parts [][]string) error {
	data, err := json.Marshal(partsOrEmpty(parts))
	if err != nil {
		return fmt.Errorf("encode answer parts: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE questions SET answer_parts = ? WHERE id = ? AND type = ?`, string(data), id, model.QuestionOpenText,
	)
	if err != nil {
		return err
	}
	return checkAffected(res, "open-text question")
}

// GetQuestion returns a question with its options.
func (s *Store) GetQuestion(ctx context.Context, id uuid.UUID) (model.Question, error) {
	qs, err := questionsWhere(ctx, s.db, `q.id = ?`, id)
	if err != nil {
		return model.Question{}, err
	}
	if len(qs) == 0 {
		return model.Question{}, fmt.Errorf("question: %w", model.ErrNotFound)
	}
	return qs[0], nil
}

// ListBankQuestions returns the pooled questions of a subject.
func (s *Store) ListBankQuestions(ctx context.Context, subjectID uuid.UUID) ([]model.Question, error) {
	return questionsWhere(ctx, s.db, `q.subject_id = ?`, subjectID)
}

// ListExamQuestions returns the fixed questions of an exam.
func (s *Store) ListExamQuestions(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	return questionsWhere(ctx, s.db, `q.exam_id = ?`, examID)
}

// DeleteQuestion removes a question and its options.
func (s *Store) DeleteQuestion(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM questions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkAffected(res, "question")
}

// questionsWhere loads questions matching cond, ordered by order_index, with
// their options attached.
func questionsWhere(ctx context.Context, db querier, cond string, arg any) ([]model.Question, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT q.id, q.subject_id, q.exam_id, q.question_text, q.image_url, q.type, q.order_index, q.answer_parts, q.created_at
		 FROM questions q WHERE `+cond+` ORDER BY q.order_index, q.created_at`, arg,
	)
	if err != nil {
		return nil, err
	}
	var questions []model.Question
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var q model.Question
		var parts string
		if err := rows.Scan(&q.ID, &q.SubjectID, &q.ExamID, &q.Text, &q.ImageURL, &q.Type, &q.OrderIndex, &parts, &q.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		if err := json.Unmarshal([]byte(parts), &q.AnswerParts); err != nil {
			rows.Close()
			return nil, fmt.Errorf("decode answer parts of %s: %w", q.ID, err)
		}
		index[q.ID] = len(questions)
		questions = append(questions, q)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, nil
	}

	optRows, err := db.QueryContext(ctx,
		`SELECT o.id, o.question_id, o.option_text, o.is_correct, o.order_index
		 FROM question_options o JOIN questions q ON q.id = o.question_id
		 WHERE `+cond+` ORDER BY o.order_index`, arg,
	)
	if err != nil {
		return nil, err
	}
	defer optRows.Close()
	for optRows.Next() {
		var o model.Option
		if err := optRows.Scan(&o.ID, &o.QuestionID, &o.Text, &o.IsCorrect, &o.OrderIndex); err != nil {
			return nil, err
		}
		if i, ok := index[o.QuestionID]; ok {
			questions[i].Options = append(questions[i].Options, o)
		}
	}
	return questions, optRows.Err()
}

func partsOrEmpty(parts [][]string) [][]string {
	if parts == nil {
		return [][]string{}
	}
	return parts
}
