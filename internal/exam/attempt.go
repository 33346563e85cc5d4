package exam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/autoescuela/campus/internal/grading"
	"github.com/autoescuela/campus/internal/model"
	"github.com/autoescuela/campus/internal/store"
)

// StartAttempt opens a new attempt for the user, or returns their unfinished
// one unchanged. The returned session has Resumed set in the second case.
func (s *Service) StartAttempt(ctx context.Context, examID uuid.UUID, user *model.User) (model.ExamSession, error) {
	exam, err := s.store.GetExam(ctx, examID)
	if err != nil {
		return model.ExamSession{}, err
	}
	if err := checkScope(exam, user); err != nil {
		return model.ExamSession{}, err
	}

	open, err := s.store.OpenAttempt(ctx, exam.ID, user.ID)
	if err != nil {
		return model.ExamSession{}, fmt.Errorf("find open attempt: %w", err)
	}
	if open != nil {
		return s.resume(ctx, exam, *open)
	}

	finished, err := s.store.CountFinishedAttempts(ctx, exam.ID, user.ID)
	if err != nil {
		return model.ExamSession{}, fmt.Errorf("count attempts: %w", err)
	}
	if finished >= exam.MaxAttempts {
		return model.ExamSession{}, fmt.Errorf("exam %s: %d of %d used: %w", exam.ID, finished, exam.MaxAttempts, model.ErrNoMoreAttempts)
	}

	questions, err := s.buildSet(ctx, exam)
	if err != nil {
		return model.ExamSession{}, err
	}

	attempt := model.Attempt{ID: uuid.New(), ExamID: exam.ID, UserID: user.ID, StartedAt: s.now()}
	set := make([]model.AttemptQuestion, len(questions))
	for i, q := range questions {
		set[i] = model.AttemptQuestion{
			AttemptID:   attempt.ID,
			QuestionID:  q.ID,
			Position:    i,
			OptionOrder: s.optionOrder(q),
		}
	}

	err = s.store.CreateAttempt(ctx, attempt, set)
	if errors.Is(err, store.ErrAttemptExists) {
		// A concurrent start won; hand back its attempt.
		open, ferr := s.store.OpenAttempt(ctx, exam.ID, user.ID)
		if ferr != nil {
			return model.ExamSession{}, fmt.Errorf("find concurrent attempt: %w", ferr)
		}
		if open == nil {
			return model.ExamSession{}, fmt.Errorf("start attempt: %w", err)
		}
		return s.resume(ctx, exam, *open)
	}
	if err != nil {
		return model.ExamSession{}, fmt.Errorf("create attempt: %w", err)
	}

	slog.Info("attempt started", "attempt", attempt.ID, "exam", exam.ID, "user", user.ID, "questions", len(set))
	return present(exam, attempt, questions, set, false), nil
}

func (s *Service) resume(ctx context.Context, exam model.Exam, attempt model.Attempt) (model.ExamSession, error) {
	set, err := s.store.AttemptQuestions(ctx, attempt.ID)
	if err != nil {
		return model.ExamSession{}, fmt.Errorf("load question set: %w", err)
	}
	defs, err := s.store.AttemptQuestionDefs(ctx, attempt.ID)
	if err != nil {
		return model.ExamSession{}, fmt.Errorf("load questions: %w", err)
	}
	return present(exam, attempt, defs, set, true), nil
}

// checkScope rejects exams outside the user's effective course.
func checkScope(exam model.Exam, user *model.User) error {
	if user.CourseID == nil {
		return fmt.Errorf("user %s has no course: %w", user.ID, model.ErrForbidden)
	}
	if exam.ScopeCourseID != *user.CourseID {
		return fmt.Errorf("exam %s is outside course %s: %w", exam.ID, *user.CourseID, model.ErrForbidden)
	}
	return nil
}

// present renders the persisted set of an attempt without correctness data.
func present(exam model.Exam, attempt model.Attempt, defs []model.Question, set []model.AttemptQuestion, resumed bool) model.ExamSession {
	byID := make(map[uuid.UUID]model.Question, len(defs))
	for _, q := range defs {
		byID[q.ID] = q
	}

	sess := model.ExamSession{
		AttemptID:       attempt.ID,
		Resumed:         resumed,
		ExamID:          exam.ID,
		Title:           exam.Title,
		PassingScore:    exam.PassingScore,
		DurationMinutes: exam.DurationMinutes,
		StartedAt:       attempt.StartedAt,
		Questions:       make([]model.PresentedQuestion, 0, len(set)),
	}
	for _, aq := range set {
		q, ok := byID[aq.QuestionID]
		if !ok {
			continue
		}
		pq := model.PresentedQuestion{
			ID:            q.ID,
			Type:          q.Type,
			Text:          q.Text,
			ImageURL:      q.ImageURL,
			OpenTextParts: q.OpenTextParts(),
		}
		if q.Type == model.QuestionMultipleChoice {
			pq.Options = orderedOptions(q.Options, aq.OptionOrder)
		}
		sess.Questions = append(sess.Questions, pq)
	}
	return sess
}

// orderedOptions lays options out in the persisted order. Options missing
// from the order keep their authoring order at the end.
func orderedOptions(opts []model.Option, order []uuid.UUID) []model.PresentedOption {
	out := make([]model.PresentedOption, 0, len(opts))
	placed := make(map[uuid.UUID]bool, len(opts))
	for _, id := range order {
		for _, o := range opts {
			if o.ID == id && !placed[id] {
				out = append(out, model.PresentedOption{ID: o.ID, Text: o.Text})
				placed[id] = true
			}
		}
	}
	for _, o := range opts {
		if !placed[o.ID] {
			out = append(out, model.PresentedOption{ID: o.ID, Text: o.Text})
		}
	}
	return out
}

// SubmitAttempt grades the answers against the attempt's question set and
// closes the attempt. Questions left unanswered count as incorrect.
func (s *Service) SubmitAttempt(ctx context.Context, attemptID uuid.UUID, user *model.User, answers []model.AnswerInput) (model.SubmitResult, error) {
	attempt, err := s.ownedAttempt(ctx, attemptID, user)
	if err != nil {
		return model.SubmitResult{}, err
	}
	if attempt.Finished() {
		return model.SubmitResult{}, fmt.Errorf("attempt %s: %w", attempt.ID, model.ErrAlreadySubmitted)
	}
	exam, err := s.store.GetExam(ctx, attempt.ExamID)
	if err != nil {
		return model.SubmitResult{}, err
	}

	set, err := s.store.AttemptQuestions(ctx, attempt.ID)
	if err != nil {
		return model.SubmitResult{}, fmt.Errorf("load question set: %w", err)
	}
	defs, err := s.store.AttemptQuestionDefs(ctx, attempt.ID)
	if err != nil {
		return model.SubmitResult{}, fmt.Errorf("load questions: %w", err)
	}
	byID := make(map[uuid.UUID]model.Question, len(defs))
	for _, q := range defs {
		byID[q.ID] = q
	}

	submitted := make(map[uuid.UUID]model.AnswerInput, len(answers))
	for _, in := range answers {
		if _, ok := byID[in.QuestionID]; !ok {
			return model.SubmitResult{}, model.Invalid("answers", "question %s is not part of this attempt", in.QuestionID)
		}
		if _, dup := submitted[in.QuestionID]; dup {
			return model.SubmitResult{}, model.Invalid("answers", "question %s answered more than once", in.QuestionID)
		}
		submitted[in.QuestionID] = in
	}

	graded := make([]model.AttemptAnswer, 0, len(set))
	correct := 0
	for _, aq := range set {
		q, ok := byID[aq.QuestionID]
		if !ok {
			continue
		}
		in := submitted[q.ID]
		in.QuestionID = q.ID
		ans, err := grading.Grade(q, in)
		if err != nil {
			return model.SubmitResult{}, err
		}
		ans.ID = uuid.New()
		ans.AttemptID = attempt.ID
		if ans.IsCorrect {
			correct++
		}
		graded = append(graded, ans)
	}

	result := model.SubmitResult{
		Score:        grading.Score(correct, len(graded)),
		CorrectCount: correct,
		Total:        len(graded),
	}
	result.Passed = grading.Passed(result.Score, exam.PassingScore)

	if err := s.store.FinishAttempt(ctx, attempt.ID, graded, result.Score, result.Passed, s.now()); err != nil {
		return model.SubmitResult{}, err
	}
	slog.Info("attempt submitted", "attempt", attempt.ID, "user", user.ID, "score", result.Score, "passed", result.Passed)
	return result, nil
}

// ownedAttempt loads an attempt, hiding attempts of other users as not found.
func (s *Service) ownedAttempt(ctx context.Context, attemptID uuid.UUID, user *model.User) (model.Attempt, error) {
	attempt, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return attempt, err
	}
	if attempt.UserID != user.ID {
		return attempt, fmt.Errorf("attempt %s: %w", attemptID, model.ErrNotFound)
	}
	return attempt, nil
}

// AttemptResult returns the owner's view of a finished attempt.
func (s *Service) AttemptResult(ctx context.Context, attemptID uuid.UUID, user *model.User) (model.AttemptResult, error) {
	attempt, err := s.ownedAttempt(ctx, attemptID, user)
	if err != nil {
		return model.AttemptResult{}, err
	}
	if !attempt.Finished() {
		return model.AttemptResult{}, fmt.Errorf("attempt %s is not finished: %w", attemptID, model.ErrNotFound)
	}
	answers, err := s.store.AttemptAnswers(ctx, attempt.ID)
	if err != nil {
		return model.AttemptResult{}, fmt.Errorf("load answers: %w", err)
	}
	correct := 0
	for _, a := range answers {
		if a.IsCorrect {
			correct++
		}
	}
	res := model.AttemptResult{
		AttemptID: attempt.ID,
		ExamID:    attempt.ExamID,
		SubmitResult: model.SubmitResult{
			CorrectCount: correct,
			Total:        len(answers),
		},
		StartedAt:  attempt.StartedAt,
		FinishedAt: *attempt.FinishedAt,
		Answers:    answers,
	}
	if attempt.Score != nil {
		res.Score = *attempt.Score
	}
	if attempt.Passed != nil {
		res.Passed = *attempt.Passed
	}
	return res, nil
}

// AttemptDetail returns per-question review data for a finished attempt.
// Students see only their own attempts; admins see any.
func (s *Service) AttemptDetail(ctx context.Context, attemptID uuid.UUID, viewer *model.User) (model.AttemptDetail, error) {
	var (
		attempt model.Attempt
		err     error
	)
	if viewer.IsAdmin() {
		attempt, err = s.store.GetAttempt(ctx, attemptID)
	} else {
		attempt, err = s.ownedAttempt(ctx, attemptID, viewer)
	}
	if err != nil {
		return model.AttemptDetail{}, err
	}
	if !attempt.Finished() {
		return model.AttemptDetail{}, fmt.Errorf("attempt %s is not finished: %w", attemptID, model.ErrNotFound)
	}

	exam, err := s.store.GetExam(ctx, attempt.ExamID)
	if err != nil {
		return model.AttemptDetail{}, err
	}
	defs, err := s.store.AttemptQuestionDefs(ctx, attempt.ID)
	if err != nil {
		return model.AttemptDetail{}, fmt.Errorf("load questions: %w", err)
	}
	answers, err := s.store.AttemptAnswers(ctx, attempt.ID)
	if err != nil {
		return model.AttemptDetail{}, fmt.Errorf("load answers: %w", err)
	}

	detail := model.AttemptDetail{Attempt: attempt, ExamTitle: exam.Title}
	for _, a := range answers {
		i := slices.IndexFunc(defs, func(q model.Question) bool { return q.ID == a.QuestionID })
		if i < 0 {
			continue
		}
		q := defs[i]
		detail.Answers = append(detail.Answers, model.AnswerDetail{
			QuestionID:    q.ID,
			QuestionText:  q.Text,
			Type:          q.Type,
			IsCorrect:     a.IsCorrect,
			StudentAnswer: grading.Given(q, a),
			CorrectAnswer: grading.Expected(q),
		})
	}
	return detail, nil
}
