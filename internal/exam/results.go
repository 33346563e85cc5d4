package exam

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/autoescuela/campus/internal/model"
	"github.com/autoescuela/campus/internal/store"
)

// best keeps one record per key: the highest score, ties going to the most
// recently finished. Unfinished records are skipped. Groups keep the order in
// which their key first appeared.
func best[K comparable](records []model.AttemptRecord, key func(model.AttemptRecord) K) []model.AttemptRecord {
	index := make(map[K]int)
	var out []model.AttemptRecord
	for _, r := range records {
		if !r.Finished() || r.Score == nil {
			continue
		}
		k := key(r)
		i, ok := index[k]
		if !ok {
			index[k] = len(out)
			out = append(out, r)
			continue
		}
		if better(r, out[i]) {
			out[i] = r
		}
	}
	return out
}

func better(a, b model.AttemptRecord) bool {
	if *a.Score != *b.Score {
		return *a.Score > *b.Score
	}
	return a.FinishedAt.After(*b.FinishedAt)
}

// BestPerExam returns the best finished attempt for every exam in records.
func BestPerExam(records []model.AttemptRecord) []model.ExamResult {
	top := best(records, func(r model.AttemptRecord) uuid.UUID { return r.ExamID })
	out := make([]model.ExamResult, len(top))
	for i, r := range top {
		out[i] = model.ExamResult{
			AttemptID:  r.ID,
			ExamID:     r.ExamID,
			ExamTitle:  r.ExamTitle,
			Score:      *r.Score,
			Passed:     r.Passed != nil && *r.Passed,
			FinishedAt: *r.FinishedAt,
		}
	}
	return out
}

// BestPerUser returns the best finished attempt for every user in records.
func BestPerUser(records []model.AttemptRecord) []model.UserResult {
	top := best(records, func(r model.AttemptRecord) uuid.UUID { return r.UserID })
	out := make([]model.UserResult, len(top))
	for i, r := range top {
		out[i] = model.UserResult{
			AttemptID:  r.ID,
			UserID:     r.UserID,
			Email:      r.Email,
			FullName:   r.FullName,
			Score:      *r.Score,
			Passed:     r.Passed != nil && *r.Passed,
			FinishedAt: *r.FinishedAt,
		}
	}
	return out
}

// UserExamResults returns a user's best result in every exam they finished.
func (s *Service) UserExamResults(ctx context.Context, userID uuid.UUID) ([]model.ExamResult, error) {
	records, err := s.store.FinishedAttempts(ctx, store.AttemptFilter{UserID: &userID})
	if err != nil {
		return nil, fmt.Errorf("load attempts: %w", err)
	}
	return BestPerExam(records), nil
}

// AdminExamResults returns every user's best result in an exam.
func (s *Service) AdminExamResults(ctx context.Context, examID uuid.UUID) ([]model.UserResult, error) {
	if _, err := s.store.GetExam(ctx, examID); err != nil {
		return nil, err
	}
	records, err := s.store.FinishedAttempts(ctx, store.AttemptFilter{ExamID: &examID})
	if err != nil {
		return nil, fmt.Errorf("load attempts: %w", err)
	}
	return BestPerUser(records), nil
}

// BestAttemptID returns the user's best finished attempt of an exam.
func (s *Service) BestAttemptID(ctx context.Context, examID uuid.UUID, user *model.User) (uuid.UUID, error) {
	records, err := s.store.FinishedAttempts(ctx, store.AttemptFilter{UserID: &user.ID, ExamID: &examID})
	if err != nil {
		return uuid.Nil, fmt.Errorf("load attempts: %w", err)
	}
	top := best(records, func(r model.AttemptRecord) uuid.UUID { return r.ExamID })
	if len(top) == 0 {
		return uuid.Nil, fmt.Errorf("attempt for exam %s: %w", examID, model.ErrNotFound)
	}
	return top[0].ID, nil
}

// StudentExams lists the exams of the user's course with their standing in each.
func (s *Service) StudentExams(ctx context.Context, user *model.User) ([]model.StudentExam, error) {
	if user.CourseID == nil {
		return []model.StudentExam{}, nil
	}
	exams, err := s.store.ListExams(ctx, user.CourseID)
	if err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}
	records, err := s.store.FinishedAttempts(ctx, store.AttemptFilter{UserID: &user.ID})
	if err != nil {
		return nil, fmt.Errorf("load attempts: %w", err)
	}

	used := make(map[uuid.UUID]int)
	for _, r := range records {
		used[r.ExamID]++
	}
	bestByExam := make(map[uuid.UUID]model.ExamResult)
	for _, r := range BestPerExam(records) {
		bestByExam[r.ExamID] = r
	}

	out := make([]model.StudentExam, 0, len(exams))
	for _, e := range exams {
		se := model.StudentExam{Exam: e, AttemptsUsed: used[e.ID]}
		se.Attempted = se.AttemptsUsed > 0
		if b, ok := bestByExam[e.ID]; ok {
			id, score := b.AttemptID, b.Score
			se.AttemptID = &id
			se.BestScore = &score
			se.Completed = b.Passed
		}
		se.CanRetry = se.AttemptsUsed < e.MaxAttempts && !se.Completed
		out = append(out, se)
	}
	return out, nil
}

// Progress summarizes the user's course: subjects, passed exams and results.
func (s *Service) Progress(ctx context.Context, user *model.User) (model.Progress, error) {
	var p model.Progress
	if user.CourseID != nil {
		n, err := s.store.CountSubjects(ctx, *user.CourseID)
		if err != nil {
			return p, fmt.Errorf("count subjects: %w", err)
		}
		p.SubjectsTotal = n
	}
	results, err := s.UserExamResults(ctx, user.ID)
	if err != nil {
		return p, err
	}
	p.ExamResultsTotal = len(results)
	for _, r := range results {
		if r.Passed {
			p.ExamsCompleted++
		}
	}
	return p, nil
}

// CohortReport builds the per-student summary of a cohort: best result per
// exam of the cohort's course, accumulated time and last activity.
func (s *Service) CohortReport(ctx context.Context, cohortID uuid.UUID) (model.CohortReport, error) {
	cohort, err := s.store.GetCohort(ctx, cohortID)
	if err != nil {
		return model.CohortReport{}, err
	}
	exams, err := s.store.ListExams(ctx, &cohort.CourseID)
	if err != nil {
		return model.CohortReport{}, fmt.Errorf("list exams: %w", err)
	}
	students, err := s.store.ListUsers(ctx, model.UserFilter{CohortID: &cohort.ID, Role: model.UserRoleStudent})
	if err != nil {
		return model.CohortReport{}, fmt.Errorf("list students: %w", err)
	}
	records, err := s.store.FinishedAttempts(ctx, store.AttemptFilter{CohortID: &cohort.ID})
	if err != nil {
		return model.CohortReport{}, fmt.Errorf("load attempts: %w", err)
	}
	activity, err := s.store.CohortActivity(ctx, cohort.ID)
	if err != nil {
		return model.CohortReport{}, fmt.Errorf("load activity: %w", err)
	}

	byUser := make(map[uuid.UUID][]model.AttemptRecord)
	for _, r := range records {
		byUser[r.UserID] = append(byUser[r.UserID], r)
	}

	report := model.CohortReport{
		CohortID:    cohort.ID,
		CohortLabel: cohort.Label(),
		GeneratedAt: s.now(),
		Exams:       make([]model.ReportExam, len(exams)),
		Students:    make([]model.StudentReport, 0, len(students)),
	}
	for i, e := range exams {
		report.Exams[i] = model.ReportExam{ID: e.ID, Title: e.Title}
	}

	slices.SortFunc(students, func(a, b model.User) int {
		return strings.Compare(strings.ToLower(a.FullName), strings.ToLower(b.FullName))
	})
	for _, u := range students {
		row := model.StudentReport{
			UserID:   u.ID,
			FullName: u.FullName,
			Email:    u.Email,
			Cedula:   u.Cedula,
			Results:  BestPerExam(byUser[u.ID]),
		}
		if act, ok := activity[u.ID]; ok {
			row.TotalTimeSeconds = act.TotalTimeSeconds
			row.LastActiveAt = act.LastActiveAt
		}
		report.Students = append(report.Students, row)
	}
	return report, nil
}
