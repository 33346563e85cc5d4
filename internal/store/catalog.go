package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/autoescuela/campus/internal/model"
)

// CreateCourse inserts a course and returns it with its ID set.
func (s *Store) CreateCourse(ctx context.Context, c model.Course) (model.Course, error) {
	c.ID = uuid.New()
	c.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO courses (id, name, code, created_at) VALUES (?, ?, ?, ?)`,
		c.ID, c.Name, c.Code, c.CreatedAt,
	)
	if err != nil {
		return c, constraint(err, "code")
	}
	return c, nil
}

// ListCourses returns all courses ordered by name.
func (s *Store) ListCourses(ctx context.Context) ([]model.Course, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, code, created_at FROM courses ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var courses []model.Course
	for rows.Next() {
		var c model.Course
		if err := rows.Scan(&c.ID, &c.Name, &c.Code, &c.CreatedAt); err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

// GetCourse returns a course by ID.
func (s *Store) GetCourse(ctx context.Context, id uuid.UUID) (model.Course, error) {
	var c model.Course
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, code, created_at FROM courses WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.Code, &c.CreatedAt)
	return c, notFound(err, "course")
}

// GetCourseByCode returns a course by its unique code, or nil if missing.
func (s *Store) GetCourseByCode(ctx context.Context, code string) (*model.Course, error) {
	var c model.Course
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, code, created_at FROM courses WHERE code = ?`, code,
	).Scan(&c.ID, &c.Name, &c.Code, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateCourse stores the name and code of an existing course.
func (s *Store) UpdateCourse(ctx context.Context, c model.Course) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE courses SET name = ?, code = ? WHERE id = ?`, c.Name, c.Code, c.ID,
	)
	if err != nil {
		return constraint(err, "code")
	}
	return checkAffected(res, "course")
}

// DeleteCourse removes a course together with its subjects, cohorts and exams.
func (s *Store) DeleteCourse(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM courses WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkAffected(res, "course")
}

const cohortColumns = `ch.id, ch.course_id, ch.name, ch.code, co.name, ch.created_at`

const cohortFrom = `FROM cohorts ch JOIN courses co ON co.id = ch.course_id`

func scanCohort(sc scanner) (model.Cohort, error) {
	var c model.Cohort
	err := sc.Scan(&c.ID, &c.CourseID, &c.Name, &c.Code, &c.CourseName, &c.CreatedAt)
	return c, err
}

// CreateCohort inserts a cohort. Codes are unique within a course.
func (s *Store) CreateCohort(ctx context.Context, c model.Cohort) (model.Cohort, error) {
	c.ID = uuid.New()
	c.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cohorts (id, course_id, name, code, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.CourseID, c.Name, c.Code, c.CreatedAt,
	)
	if err != nil {
		return c, constraint(err, "code")
	}
	return s.GetCohort(ctx, c.ID)
}

// GetOrCreateCohort returns the cohort with the given code in a course,
// creating it when it does not exist yet.
func (s *Store) GetOrCreateCohort(ctx context.Context, courseID uuid.UUID, code, name string) (model.Cohort, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cohorts (id, course_id, name, code, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(course_id, code) DO NOTHING`,
		uuid.New(), courseID, name, code, time.Now().UTC(),
	)
	if err != nil {
		return model.Cohort{}, constraint(err, "course_id")
	}
	c, err := scanCohort(s.db.QueryRowContext(ctx,
		`SELECT `+cohortColumns+` `+cohortFrom+` WHERE ch.course_id = ? AND ch.code = ?`, courseID, code,
	))
	return c, notFound(err, "cohort")
}

// GetCohort returns a cohort by ID.
func (s *Store) GetCohort(ctx context.Context, id uuid.UUID) (model.Cohort, error) {
	c, err := scanCohort(s.db.QueryRowContext(ctx,
		`SELECT `+cohortColumns+` `+cohortFrom+` WHERE ch.id = ?`, id,
	))
	return c, notFound(err, "cohort")
}

// ListCohorts returns cohorts, optionally restricted to one course.
func (s *Store) ListCohorts(ctx context.Context, courseID *uuid.UUID) ([]model.Cohort, error) {
	query := `SELECT ` + cohortColumns + ` ` + cohortFrom
	var args []any
	if courseID != nil {
		query += ` WHERE ch.course_id = ?`
		args = append(args, *courseID)
	}
	query += ` ORDER BY co.name, ch.code`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var cohorts []model.Cohort
	for rows.Next() {
		c, err := scanCohort(rows)
		if err != nil {
			return nil, err
		}
		cohorts = append(cohorts, c)
	}
	return cohorts, rows.Err()
}

// UpdateCohort stores the name and code of an existing cohort.
func (s *Store) UpdateCohort(ctx context.Context, c model.Cohort) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE cohorts SET name = ?, code = ? WHERE id = ?`, c.Name, c.Code, c.ID,
	)
	if err != nil {
		return constraint(err, "code")
	}
	return checkAffected(res, "cohort")
}

// DeleteCohort removes a cohort. With deleteStudents set, the students
// enrolled in it are deleted too; otherwise they are left without a cohort.
func (s *Store) DeleteCohort(ctx context.Context, id uuid.UUID, deleteStudents bool) (int64, error) {
	var removed int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if deleteStudents {
			res, err := tx.ExecContext(ctx,
				`DELETE FROM users WHERE cohort_id = ? AND role = ?`, id, model.UserRoleStudent,
			)
			if err != nil {
				return fmt.Errorf("delete cohort students: %w", err)
			}
			if removed, err = res.RowsAffected(); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM cohorts WHERE id = ?`, id)
		if err != nil {
			return err
		}
		return checkAffected(res, "cohort")
	})
	return removed, err
}

// CreateSubject inserts a subject.
func (s *Store) CreateSubject(ctx context.Context, sub model.Subject) (model.Subject, error) {
	sub.ID = uuid.New()
	sub.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subjects (id, course_id, name, order_index, created_at) VALUES (?, ?, ?, ?, ?)`,
		sub.ID, sub.CourseID, sub.Name, sub.OrderIndex, sub.CreatedAt,
	)
	if err != nil {
		return sub, constraint(err, "course_id")
	}
	return sub, nil
}

// GetSubject returns a subject by ID.
func (s *Store) GetSubject(ctx context.Context, id uuid.UUID) (model.Subject, error) {
	var sub model.Subject
	err := s.db.QueryRowContext(ctx,
		`SELECT id, course_id, name, order_index, created_at FROM subjects WHERE id = ?`, id,
	).Scan(&sub.ID, &sub.CourseID, &sub.Name, &sub.OrderIndex, &sub.CreatedAt)
	return sub, notFound(err, "subject")
}

// ListSubjects returns subjects in display order, optionally for one course.
func (s *Store) ListSubjects(ctx context.Context, courseID *uuid.UUID) ([]model.Subject, error) {
	query := `SELECT id, course_id, name, order_index, created_at FROM subjects`
	var args []any
	if courseID != nil {
		query += ` WHERE course_id = ?`
		args = append(args, *courseID)
	}
	query += ` ORDER BY order_index, name`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var subjects []model.Subject
	for rows.Next() {
		var sub model.Subject
		if err := rows.Scan(&sub.ID, &sub.CourseID, &sub.Name, &sub.OrderIndex, &sub.CreatedAt); err != nil {
			return nil, err
		}
		subjects = append(subjects, sub)
	}
	return subjects, rows.Err()
}

// CountSubjects returns the number of subjects in a course.
func (s *Store) CountSubjects(ctx context.Context, courseID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM subjects WHERE course_id = ?`, courseID).Scan(&n)
	return n, err
}

// UpdateSubject stores the name and order of an existing subject.
func (s *Store) UpdateSubject(ctx context.Context, sub model.Subject) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE subjects SET name = ?, order_index = ? WHERE id = ?`, sub.Name, sub.OrderIndex, sub.ID,
	)
	if err != nil {
		return err
	}
	return checkAffected(res, "subject")
}

// DeleteSubject removes a subject with its contents, bank questions and exams.
func (s *Store) DeleteSubject(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM subjects WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkAffected(res, "subject")
}

const contentColumns = `id, subject_id, title, body, external_link, file_url, order_index, created_at`

func scanContent(sc scanner) (model.Content, error) {
	var c model.Content
	err := sc.Scan(&c.ID, &c.SubjectID, &c.Title, &c.Body, &c.ExternalLink, &c.FileURL, &c.OrderIndex, &c.CreatedAt)
	return c, err
}

// CreateContent inserts a content item.
func (s *Store) CreateContent(ctx context.Context, c model.Content) (model.Content, error) {
	c.ID = uuid.New()
	c.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contents (`+contentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.SubjectID, c.Title, c.Body, c.ExternalLink, c.FileURL, c.OrderIndex, c.CreatedAt,
	)
	if err != nil {
		return c, constraint(err, "subject_id")
	}
	return c, nil
}

// GetContent returns a content item by ID.
func (s *Store) GetContent(ctx context.Context, id uuid.UUID) (model.Content, error) {
	c, err := scanContent(s.db.QueryRowContext(ctx,
		`SELECT `+contentColumns+` FROM contents WHERE id = ?`, id,
	))
	return c, notFound(err, "content")
}

// ListContents returns the contents of a subject in display order.
func (s *Store) ListContents(ctx context.Context, subjectID uuid.UUID) ([]model.Content, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+contentColumns+` FROM contents WHERE subject_id = ? ORDER BY order_index, title`, subjectID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var contents []model.Content
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, err
		}
		contents = append(contents, c)
	}
	return contents, rows.Err()
}

// UpdateContent replaces the editable fields of a content item.
func (s *Store) UpdateContent(ctx context.Context, c model.Content) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE contents SET title = ?, body = ?, external_link = ?, file_url = ?, order_index = ? WHERE id = ?`,
		c.Title, c.Body, c.ExternalLink, c.FileURL, c.OrderIndex, c.ID,
	)
	if err != nil {
		return err
	}
	return checkAffected(res, "content")
}

// DeleteContent removes a content item.
func (s *Store) DeleteContent(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM contents WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkAffected(res, "content")
}
