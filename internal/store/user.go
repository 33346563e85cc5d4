package store

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/autoescuela/campus/internal/model"
)

const userColumns = `u.id, u.email, u.password_hash, u.full_name, u.role, u.cohort_id, u.course_id,
	COALESCE(ch.course_id, u.course_id), u.cedula, u.must_change_password, u.created_at`

const userFrom = `FROM users u LEFT JOIN cohorts ch ON ch.id = u.cohort_id`

func scanUser(sc scanner) (model.User, error) {
	var u model.User
	err := sc.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Role, &u.CohortID, &u.DirectCourseID,
		&u.CourseID, &u.Cedula, &u.MustChangePassword, &u.CreatedAt)
	return u, err
}

// CreateUser inserts a new user. Emails are stored lower-cased.
func (s *Store) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	u.ID = uuid.New()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, full_name, role, course_id, cohort_id, cedula, must_change_password, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, u.FullName, u.Role, u.DirectCourseID, u.CohortID, u.Cedula,
		u.MustChangePassword, u.CreatedAt,
	)
	if err != nil {
		slog.Error("failed to create user", "email", u.Email, "error", err)
		return u, constraint(err, "email")
	}
	slog.Info("created user", "id", u.ID, "email", u.Email, "role", u.Role)
	created, err := s.GetUserByID(ctx, u.ID)
	if err != nil || created == nil {
		return u, err
	}
	return *created, nil
}

// GetUserByEmail returns a user by email, or nil if missing.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` `+userFrom+` WHERE u.email = ?`, strings.ToLower(strings.TrimSpace(email)),
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByID returns a user by ID, or nil if missing.
func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` `+userFrom+` WHERE u.id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListUsers returns users matching the filter, newest first. Search matches
// cédula, full name and email.
func (s *Store) ListUsers(ctx context.Context, f model.UserFilter) ([]model.User, error) {
	query := `SELECT ` + userColumns + ` ` + userFrom + ` WHERE 1=1`
	var args []any
	if f.CourseID != nil {
		query += ` AND COALESCE(ch.course_id, u.course_id) = ?`
		args = append(args, *f.CourseID)
	}
	if f.CohortID != nil {
		query += ` AND u.cohort_id = ?`
		args = append(args, *f.CohortID)
	}
	if f.Role != "" {
		query += ` AND u.role = ?`
		args = append(args, f.Role)
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query += ` AND (lower(u.cedula) LIKE ? OR lower(u.full_name) LIKE ? OR u.email LIKE ?)`
		args = append(args, like, like, like)
	}
	query += ` ORDER BY u.created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateUser stores profile fields of an existing user. The password is not touched.
func (s *Store) UpdateUser(ctx context.Context, u model.User) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET email = ?, full_name = ?, role = ?, course_id = ?, cohort_id = ?, cedula = ? WHERE id = ?`,
		strings.ToLower(strings.TrimSpace(u.Email)), u.FullName, u.Role, u.DirectCourseID, u.CohortID, u.Cedula, u.ID,
	)
	if err != nil {
		return constraint(err, "email")
	}
	return checkAffected(res, "user")
}

// SetPassword replaces a user's password hash and its change-required flag.
func (s *Store) SetPassword(ctx context.Context, id uuid.UUID, hash string, mustChange bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, must_change_password = ? WHERE id = ?`, hash, mustChange, id,
	)
	if err != nil {
		return err
	}
	return checkAffected(res, "user")
}

// DeleteUser removes a user and everything recorded for them.
func (s *Store) DeleteUser(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkAffected(res, "user")
}

// UserCount returns the total number of users.
func (s *Store) UserCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}
