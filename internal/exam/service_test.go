package exam

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/autoescuela/campus/internal/model"
	"github.com/autoescuela/campus/internal/store"
)

func noShuffle(int, func(i, j int)) {}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

type fixture struct {
	st      *store.Store
	svc     *Service
	course  model.Course
	cohort  model.Cohort
	subject model.Subject
	student *model.User
}

func newFixture(t *testing.T, opts ...Option) fixture {
	t.Helper()
	ctx := context.Background()
	st := newTestStore(t)
	course, err := st.CreateCourse(ctx, model.Course{Name: "Curso Tipo B", Code: "AUTO"})
	if err != nil {
		t.Fatalf("CreateCourse: %v", err)
	}
	cohort, err := st.CreateCohort(ctx, model.Cohort{CourseID: course.ID, Name: "200", Code: "200"})
	if err != nil {
		t.Fatalf("CreateCohort: %v", err)
	}
	subject, err := st.CreateSubject(ctx, model.Subject{CourseID: course.ID, Name: "Señales"})
	if err != nil {
		t.Fatalf("CreateSubject: %v", err)
	}
	return fixture{
		st:      st,
		svc:     NewService(st, append([]Option{WithShuffle(noShuffle)}, opts...)...),
		course:  course,
		cohort:  cohort,
		subject: subject,
		student: newStudent(t, st, cohort.ID, "ana@example.com", "Ana"),
	}
}

func newStudent(t *testing.T, st *store.Store, cohortID uuid.UUID, email, name string) *model.User {
	t.Helper()
	u, err := st.CreateUser(context.Background(), model.User{
		Email: email, PasswordHash: "x", FullName: name, Role: model.UserRoleStudent, CohortID: &cohortID,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return &u
}

func intPtr(n int) *int { return &n }

func mcInput(text string) model.QuestionInput {
	return model.QuestionInput{
		Text: text,
		Type: model.QuestionMultipleChoice,
		Options: []model.OptionInput{
			{Text: "Detenerse", Correct: true},
			{Text: "Acelerar"},
			{Text: "Girar"},
		},
	}
}

func (f fixture) bankExam(t *testing.T, count, questions int, maxAttempts int) model.Exam {
	t.Helper()
	ctx := context.Background()
	e, err := f.svc.CreateExam(ctx, model.ExamInput{
		SubjectID: &f.subject.ID, Title: "Señales", QuestionCount: count, MaxAttempts: intPtr(maxAttempts),
	})
	if err != nil {
		t.Fatalf("CreateExam: %v", err)
	}
	for i := range questions {
		if _, err := f.svc.AddQuestion(ctx, e.ID, mcInput("Pregunta "+string(rune('A'+i)))); err != nil {
			t.Fatalf("AddQuestion: %v", err)
		}
	}
	return e
}

func (f fixture) fixedExam(t *testing.T, count int, maxAttempts int, inputs ...model.QuestionInput) model.Exam {
	t.Helper()
	ctx := context.Background()
	e, err := f.svc.CreateExam(ctx, model.ExamInput{
		CourseID: &f.course.ID, Title: "Final", QuestionCount: count, MaxAttempts: intPtr(maxAttempts),
	})
	if err != nil {
		t.Fatalf("CreateExam: %v", err)
	}
	for _, in := range inputs {
		if _, err := f.svc.AddQuestion(ctx, e.ID, in); err != nil {
			t.Fatalf("AddQuestion: %v", err)
		}
	}
	return e
}

// answers builds multiple-choice answers for a session; the first `right`
// questions get their correct option, the rest a wrong one.
func (f fixture) answers(t *testing.T, sess model.ExamSession, right int) []model.AnswerInput {
	t.Helper()
	var out []model.AnswerInput
	for i, pq := range sess.Questions {
		q, err := f.st.GetQuestion(context.Background(), pq.ID)
		if err != nil {
			t.Fatalf("GetQuestion: %v", err)
		}
		var pick uuid.UUID
		for _, o := range q.Options {
			if o.IsCorrect == (i < right) {
				pick = o.ID
				break
			}
		}
		out = append(out, model.AnswerInput{QuestionID: q.ID, OptionID: &pick})
	}
	return out
}

func TestStartAttemptSamplesBank(t *testing.T) {
	tests := []struct {
		name      string
		count     int
		questions int
		want      int
	}{
		{"count below bank size", 2, 3, 2},
		{"count above bank size", 10, 5, 5},
		{"count equals bank size", 4, 4, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			e := f.bankExam(t, tt.count, tt.questions, 1)

			sess, err := f.svc.StartAttempt(context.Background(), e.ID, f.student)
			if err != nil {
				t.Fatalf("StartAttempt: %v", err)
			}
			if len(sess.Questions) != tt.want {
				t.Fatalf("expected %d questions, got %d", tt.want, len(sess.Questions))
			}
			if sess.Resumed {
				t.Error("new attempt reported as resumed")
			}
			seen := make(map[uuid.UUID]bool)
			for _, q := range sess.Questions {
				if seen[q.ID] {
					t.Errorf("question %s presented twice", q.ID)
				}
				seen[q.ID] = true
				if len(q.Options) != 3 {
					t.Errorf("expected 3 options, got %d", len(q.Options))
				}
			}
		})
	}
}

func TestStartAttemptFixedOrder(t *testing.T) {
	f := newFixture(t)
	e := f.fixedExam(t, 2, 1, mcInput("Primera"), mcInput("Segunda"), mcInput("Tercera"))

	sess, err := f.svc.StartAttempt(context.Background(), e.ID, f.student)
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	var got []string
	for _, q := range sess.Questions {
		got = append(got, q.Text)
	}
	if !slices.Equal(got, []string{"Primera", "Segunda"}) {
		t.Errorf("expected first two questions in order, got %v", got)
	}
}

func TestSubmitScores(t *testing.T) {
	tests := []struct {
		name       string
		right      int
		wantScore  float64
		wantPassed bool
	}{
		{"all correct", 2, 100, true},
		{"half correct", 1, 50, false},
		{"none correct", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			e := f.bankExam(t, 2, 3, 1)

			sess, err := f.svc.StartAttempt(ctx, e.ID, f.student)
			if err != nil {
				t.Fatalf("StartAttempt: %v", err)
			}
			res, err := f.svc.SubmitAttempt(ctx, sess.AttemptID, f.student, f.answers(t, sess, tt.right))
			if err != nil {
				t.Fatalf("SubmitAttempt: %v", err)
			}
			if res.Score != tt.wantScore || res.Passed != tt.wantPassed {
				t.Errorf("expected score %v passed %v, got %v %v", tt.wantScore, tt.wantPassed, res.Score, res.Passed)
			}
			if res.Total != 2 || res.CorrectCount != tt.right {
				t.Errorf("expected %d/2 correct, got %d/%d", tt.right, res.CorrectCount, res.Total)
			}

			stored, err := f.svc.AttemptResult(ctx, sess.AttemptID, f.student)
			if err != nil {
				t.Fatalf("AttemptResult: %v", err)
			}
			if stored.Score != tt.wantScore || len(stored.Answers) != 2 {
				t.Errorf("stored result mismatch: %+v", stored)
			}
		})
	}
}

func TestSubmitUnansweredCountsIncorrect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.bankExam(t, 2, 2, 1)

	sess, err := f.svc.StartAttempt(ctx, e.ID, f.student)
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	res, err := f.svc.SubmitAttempt(ctx, sess.AttemptID, f.student, f.answers(t, sess, 2)[:1])
	if err != nil {
		t.Fatalf("SubmitAttempt: %v", err)
	}
	if res.Score != 50 || res.Total != 2 {
		t.Errorf("expected 50 of 2 questions, got %v of %d", res.Score, res.Total)
	}
}

func TestSubmitRejectsForeignAnswers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.bankExam(t, 1, 1, 1)

	sess, err := f.svc.StartAttempt(ctx, e.ID, f.student)
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	answers := f.answers(t, sess, 1)

	tests := []struct {
		name    string
		answers []model.AnswerInput
	}{
		{"question outside the set", []model.AnswerInput{{QuestionID: uuid.New()}}},
		{"duplicate answer", append(slices.Clone(answers), answers[0])},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.SubmitAttempt(ctx, sess.AttemptID, f.student, tt.answers)
			if !errors.Is(err, model.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}

	// The attempt is still open after rejected submissions.
	if _, err := f.svc.SubmitAttempt(ctx, sess.AttemptID, f.student, answers); err != nil {
		t.Errorf("SubmitAttempt after rejections: %v", err)
	}
}

func TestSubmitTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.bankExam(t, 1, 1, 2)

	sess, err := f.svc.StartAttempt(ctx, e.ID, f.student)
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	answers := f.answers(t, sess, 1)
	if _, err := f.svc.SubmitAttempt(ctx, sess.AttemptID, f.student, answers); err != nil {
		t.Fatalf("SubmitAttempt: %v", err)
	}
	_, err = f.svc.SubmitAttempt(ctx, sess.AttemptID, f.student, answers)
	if !errors.Is(err, model.ErrAlreadySubmitted) {
		t.Errorf("expected ErrAlreadySubmitted, got %v", err)
	}
}

func TestSubmitOtherUsersAttempt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.bankExam(t, 1, 1, 1)
	other := newStudent(t, f.st, f.cohort.ID, "beto@example.com", "Beto")

	sess, err := f.svc.StartAttempt(ctx, e.ID, f.student)
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	_, err = f.svc.SubmitAttempt(ctx, sess.AttemptID, other, nil)
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound for another user's attempt, got %v", err)
	}
}

func TestOpenTextSubmission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.fixedExam(t, 1, 1, model.QuestionInput{
		Text:        "Colores del semáforo",
		Type:        model.QuestionOpenText,
		AnswerParts: [][]string{{"rojo"}, {"verde", "verdes"}},
	})

	sess, err := f.svc.StartAttempt(ctx, e.ID, f.student)
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	if got := sess.Questions[0].OpenTextParts; got != 2 {
		t.Fatalf("expected 2 open text parts, got %d", got)
	}
	res, err := f.svc.SubmitAttempt(ctx, sess.AttemptID, f.student, []model.AnswerInput{
		{QuestionID: sess.Questions[0].ID, TextAnswers: []string{" Rojo ", "VERDES"}},
	})
	if err != nil {
		t.Fatalf("SubmitAttempt: %v", err)
	}
	if !res.Passed || res.Score != 100 {
		t.Errorf("expected full marks, got %+v", res)
	}

	detail, err := f.svc.AttemptDetail(ctx, sess.AttemptID, f.student)
	if err != nil {
		t.Fatalf("AttemptDetail: %v", err)
	}
	if len(detail.Answers) != 1 || detail.Answers[0].CorrectAnswer != "a) rojo; b) verde" {
		t.Errorf("unexpected detail: %+v", detail.Answers)
	}
}

func TestStartAttemptResumes(t *testing.T) {
	f := newFixture(t)
	f.svc = NewService(f.st) // real shuffle
	ctx := context.Background()
	e := f.bankExam(t, 3, 6, 1)

	first, err := f.svc.StartAttempt(ctx, e.ID, f.student)
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	second, err := f.svc.StartAttempt(ctx, e.ID, f.student)
	if err != nil {
		t.Fatalf("StartAttempt (resume): %v", err)
	}
	if !second.Resumed || second.AttemptID != first.AttemptID {
		t.Fatalf("expected resume of %s, got %s resumed=%v", first.AttemptID, second.AttemptID, second.Resumed)
	}
	if len(first.Questions) != len(second.Questions) {
		t.Fatalf("question count changed on resume: %d vs %d", len(first.Questions), len(second.Questions))
	}
	for i := range first.Questions {
		a, b := first.Questions[i], second.Questions[i]
		if a.ID != b.ID {
			t.Errorf("question %d changed on resume", i)
		}
		if !slices.Equal(a.Options, b.Options) {
			t.Errorf("option order of question %d changed on resume", i)
		}
	}
}

func TestStartAttemptConcurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.bankExam(t, 2, 3, 1)

	const n = 8
	ids := make([]uuid.UUID, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess, err := f.svc.StartAttempt(ctx, e.ID, f.student)
			ids[i], errs[i] = sess.AttemptID, err
		}()
	}
	wg.Wait()

	for i := range n {
		if errs[i] != nil {
			t.Fatalf("StartAttempt %d: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Errorf("concurrent starts produced different attempts: %s vs %s", ids[i], ids[0])
		}
	}
}

func TestStartAttemptErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("no more attempts", func(t *testing.T) {
		f := newFixture(t)
		e := f.bankExam(t, 1, 1, 1)
		sess, err := f.svc.StartAttempt(ctx, e.ID, f.student)
		if err != nil {
			t.Fatalf("StartAttempt: %v", err)
		}
		if _, err := f.svc.SubmitAttempt(ctx, sess.AttemptID, f.student, nil); err != nil {
			t.Fatalf("SubmitAttempt: %v", err)
		}
		if _, err := f.svc.StartAttempt(ctx, e.ID, f.student); !errors.Is(err, model.ErrNoMoreAttempts) {
			t.Errorf("expected ErrNoMoreAttempts, got %v", err)
		}
	})

	t.Run("empty bank", func(t *testing.T) {
		f := newFixture(t)
		e := f.bankExam(t, 5, 0, 1)
		if _, err := f.svc.StartAttempt(ctx, e.ID, f.student); !errors.Is(err, model.ErrEmptyBank) {
			t.Errorf("expected ErrEmptyBank, got %v", err)
		}
	})

	t.Run("exam of another course", func(t *testing.T) {
		f := newFixture(t)
		moto, err := f.st.CreateCourse(ctx, model.Course{Name: "Curso Tipo A", Code: "MOTO"})
		if err != nil {
			t.Fatalf("CreateCourse: %v", err)
		}
		e, err := f.svc.CreateExam(ctx, model.ExamInput{CourseID: &moto.ID, Title: "Motos", QuestionCount: 1})
		if err != nil {
			t.Fatalf("CreateExam: %v", err)
		}
		if _, err := f.svc.StartAttempt(ctx, e.ID, f.student); !errors.Is(err, model.ErrForbidden) {
			t.Errorf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("user without course", func(t *testing.T) {
		f := newFixture(t)
		e := f.bankExam(t, 1, 1, 1)
		if _, err := f.svc.StartAttempt(ctx, e.ID, &model.User{ID: uuid.New()}); !errors.Is(err, model.ErrForbidden) {
			t.Errorf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("missing exam", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.svc.StartAttempt(ctx, uuid.New(), f.student); !errors.Is(err, model.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

// finished inserts a finished attempt with the given score directly in the store.
func finished(t *testing.T, st *store.Store, examID, userID uuid.UUID, score float64, at time.Time) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	a := model.Attempt{ID: uuid.New(), ExamID: examID, UserID: userID, StartedAt: at.Add(-time.Minute)}
	if err := st.CreateAttempt(ctx, a, nil); err != nil {
		t.Fatalf("CreateAttempt: %v", err)
	}
	if err := st.FinishAttempt(ctx, a.ID, nil, score, score >= 70, at); err != nil {
		t.Fatalf("FinishAttempt: %v", err)
	}
	return a.ID
}

func TestBestAttempt(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("highest score wins", func(t *testing.T) {
		f := newFixture(t)
		e := f.bankExam(t, 1, 1, 3)
		finished(t, f.st, e.ID, f.student.ID, 40, base)
		want := finished(t, f.st, e.ID, f.student.ID, 90, base.Add(time.Hour))
		finished(t, f.st, e.ID, f.student.ID, 70, base.Add(2*time.Hour))

		got, err := f.svc.BestAttemptID(ctx, e.ID, f.student)
		if err != nil {
			t.Fatalf("BestAttemptID: %v", err)
		}
		if got != want {
			t.Errorf("expected attempt with 90, got %s", got)
		}

		results, err := f.svc.UserExamResults(ctx, f.student.ID)
		if err != nil {
			t.Fatalf("UserExamResults: %v", err)
		}
		if len(results) != 1 || results[0].Score != 90 || !results[0].Passed {
			t.Errorf("unexpected results: %+v", results)
		}
	})

	t.Run("tie goes to most recent", func(t *testing.T) {
		f := newFixture(t)
		e := f.bankExam(t, 1, 1, 2)
		finished(t, f.st, e.ID, f.student.ID, 80, base)
		want := finished(t, f.st, e.ID, f.student.ID, 80, base.Add(time.Hour))

		got, err := f.svc.BestAttemptID(ctx, e.ID, f.student)
		if err != nil {
			t.Fatalf("BestAttemptID: %v", err)
		}
		if got != want {
			t.Errorf("expected most recent attempt, got %s", got)
		}
	})

	t.Run("no finished attempt", func(t *testing.T) {
		f := newFixture(t)
		e := f.bankExam(t, 1, 1, 1)
		if _, err := f.svc.StartAttempt(ctx, e.ID, f.student); err != nil {
			t.Fatalf("StartAttempt: %v", err)
		}
		if _, err := f.svc.BestAttemptID(ctx, e.ID, f.student); !errors.Is(err, model.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestAdminExamResults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	e := f.bankExam(t, 1, 1, 2)
	beto := newStudent(t, f.st, f.cohort.ID, "beto@example.com", "Beto")

	finished(t, f.st, e.ID, f.student.ID, 50, base)
	finished(t, f.st, e.ID, f.student.ID, 100, base.Add(time.Hour))
	finished(t, f.st, e.ID, beto.ID, 60, base)

	results, err := f.svc.AdminExamResults(ctx, e.ID)
	if err != nil {
		t.Fatalf("AdminExamResults: %v", err)
	}
	got := make(map[uuid.UUID]float64)
	for _, r := range results {
		got[r.UserID] = r.Score
	}
	if len(got) != 2 || got[f.student.ID] != 100 || got[beto.ID] != 60 {
		t.Errorf("unexpected best per user: %v", got)
	}

	if _, err := f.svc.AdminExamResults(ctx, uuid.New()); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing exam, got %v", err)
	}
}

func TestStudentExams(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	failed := f.bankExam(t, 1, 1, 2)
	passed := f.fixedExam(t, 1, 2, mcInput("Única"))
	f.bankExam(t, 1, 1, 1)

	finished(t, f.st, failed.ID, f.student.ID, 40, base)
	finished(t, f.st, passed.ID, f.student.ID, 90, base)

	list, err := f.svc.StudentExams(ctx, f.student)
	if err != nil {
		t.Fatalf("StudentExams: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 exams, got %d", len(list))
	}
	byID := make(map[uuid.UUID]model.StudentExam)
	for _, se := range list {
		byID[se.ID] = se
	}

	if se := byID[failed.ID]; !se.Attempted || se.Completed || !se.CanRetry || se.AttemptsUsed != 1 {
		t.Errorf("failed exam: %+v", se)
	}
	if se := byID[passed.ID]; !se.Completed || se.CanRetry || se.BestScore == nil || *se.BestScore != 90 {
		t.Errorf("passed exam: %+v", se)
	}

	p, err := f.svc.Progress(ctx, f.student)
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if p.SubjectsTotal != 1 || p.ExamsCompleted != 1 || p.ExamResultsTotal != 2 {
		t.Errorf("unexpected progress: %+v", p)
	}
}

func TestCohortReport(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()
	e := f.bankExam(t, 1, 1, 2)
	zoe := newStudent(t, f.st, f.cohort.ID, "zoe@example.com", "zoe")
	bruno := newStudent(t, f.st, f.cohort.ID, "bruno@example.com", "Bruno")

	finished(t, f.st, e.ID, zoe.ID, 30, now.Add(-2*time.Hour))
	finished(t, f.st, e.ID, zoe.ID, 80, now.Add(-time.Hour))
	if _, err := f.st.AddActivity(ctx, bruno.ID, 120, nil); err != nil {
		t.Fatalf("AddActivity: %v", err)
	}

	report, err := f.svc.CohortReport(ctx, f.cohort.ID)
	if err != nil {
		t.Fatalf("CohortReport: %v", err)
	}
	if !report.GeneratedAt.Equal(now) || report.CohortLabel != "Curso Tipo B Nro 200" {
		t.Errorf("unexpected header: %v %q", report.GeneratedAt, report.CohortLabel)
	}
	var names []string
	for _, s := range report.Students {
		names = append(names, s.FullName)
	}
	if !slices.Equal(names, []string{"Ana", "Bruno", "zoe"}) {
		t.Errorf("expected students sorted by name, got %v", names)
	}
	if r := report.Students[2].Results; len(r) != 1 || r[0].Score != 80 {
		t.Errorf("expected zoe's best of 80, got %+v", r)
	}
	if report.Students[1].TotalTimeSeconds != 120 {
		t.Errorf("expected 120s for Bruno, got %d", report.Students[1].TotalTimeSeconds)
	}
}

func TestCreateExamValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	missing := uuid.New()

	tests := []struct {
		name string
		in   model.ExamInput
	}{
		{"no scope", model.ExamInput{Title: "x", QuestionCount: 1}},
		{"both scopes", model.ExamInput{SubjectID: &f.subject.ID, CourseID: &f.course.ID, Title: "x", QuestionCount: 1}},
		{"missing subject", model.ExamInput{SubjectID: &missing, Title: "x", QuestionCount: 1}},
		{"zero questions", model.ExamInput{CourseID: &f.course.ID, Title: "x"}},
		{"passing score above 100", model.ExamInput{CourseID: &f.course.ID, Title: "x", QuestionCount: 1, PassingScore: intPtr(101)}},
		{"zero attempts", model.ExamInput{CourseID: &f.course.ID, Title: "x", QuestionCount: 1, MaxAttempts: intPtr(0)}},
		{"blank title", model.ExamInput{CourseID: &f.course.ID, Title: "  ", QuestionCount: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.CreateExam(ctx, tt.in); !errors.Is(err, model.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}

	e, err := f.svc.CreateExam(ctx, model.ExamInput{CourseID: &f.course.ID, Title: "Final", QuestionCount: 10})
	if err != nil {
		t.Fatalf("CreateExam: %v", err)
	}
	if e.PassingScore != model.DefaultPassingScore || e.MaxAttempts != model.DefaultMaxAttempts {
		t.Errorf("expected defaults, got passing %d attempts %d", e.PassingScore, e.MaxAttempts)
	}

	e, err = f.svc.UpdateExam(ctx, e.ID, model.ExamPatch{MaxAttempts: intPtr(3), DurationMinutes: intPtr(30)})
	if err != nil {
		t.Fatalf("UpdateExam: %v", err)
	}
	if e.MaxAttempts != 3 || e.DurationMinutes == nil || *e.DurationMinutes != 30 {
		t.Errorf("patch not applied: %+v", e)
	}
	e, err = f.svc.UpdateExam(ctx, e.ID, model.ExamPatch{DurationMinutes: intPtr(0)})
	if err != nil {
		t.Fatalf("UpdateExam: %v", err)
	}
	if e.DurationMinutes != nil {
		t.Errorf("expected duration cleared, got %v", *e.DurationMinutes)
	}
}

func TestBuildQuestion(t *testing.T) {
	tests := []struct {
		name    string
		in      model.QuestionInput
		wantErr bool
		parts   [][]string
	}{
		{
			name: "valid multiple choice",
			in:   mcInput("¿Qué indica el rojo?"),
		},
		{
			name: "one option",
			in: model.QuestionInput{Text: "q", Type: model.QuestionMultipleChoice, Options: []model.OptionInput{
				{Text: "a", Correct: true},
			}},
			wantErr: true,
		},
		{
			name: "two correct options",
			in: model.QuestionInput{Text: "q", Type: model.QuestionMultipleChoice, Options: []model.OptionInput{
				{Text: "a", Correct: true}, {Text: "b", Correct: true},
			}},
			wantErr: true,
		},
		{
			name: "blank option",
			in: model.QuestionInput{Text: "q", Type: model.QuestionMultipleChoice, Options: []model.OptionInput{
				{Text: "a", Correct: true}, {Text: " "},
			}},
			wantErr: true,
		},
		{
			name:    "unknown type",
			in:      model.QuestionInput{Text: "q", Type: "essay"},
			wantErr: true,
		},
		{
			name:    "open text without answers",
			in:      model.QuestionInput{Text: "q", Type: model.QuestionOpenText},
			wantErr: true,
		},
		{
			name:  "open text parts cleaned",
			in:    model.QuestionInput{Text: "q", Type: model.QuestionOpenText, AnswerParts: [][]string{{" pare ", "PARE", ""}, {}}},
			parts: [][]string{{"pare"}},
		},
		{
			name:  "legacy packed answer",
			in:    model.QuestionInput{Text: "q", Type: model.QuestionOpenText, Answer: "rojo\r\nroja|||verde"},
			parts: [][]string{{"rojo", "roja"}, {"verde"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := BuildQuestion(tt.in)
			if tt.wantErr {
				if !errors.Is(err, model.ErrValidation) {
					t.Errorf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("BuildQuestion: %v", err)
			}
			if tt.parts != nil && !slices.EqualFunc(q.AnswerParts, tt.parts, slices.Equal[[]string]) {
				t.Errorf("expected parts %v, got %v", tt.parts, q.AnswerParts)
			}
		})
	}
}

func TestSetAnswerParts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.fixedExam(t, 1, 1, mcInput("mc"), model.QuestionInput{
		Text: "Color", Type: model.QuestionOpenText, AnswerParts: [][]string{{"rojo"}},
	})
	questions, err := f.svc.ListQuestions(ctx, e.ID)
	if err != nil {
		t.Fatalf("ListQuestions: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(questions))
	}
	mc, open := questions[0], questions[1]

	if _, err := f.svc.SetAnswerParts(ctx, mc.ID, [][]string{{"x"}}); !errors.Is(err, model.ErrValidation) {
		t.Errorf("expected validation error for multiple choice, got %v", err)
	}
	q, err := f.svc.SetAnswerParts(ctx, open.ID, [][]string{{"rojo", "colorado"}})
	if err != nil {
		t.Fatalf("SetAnswerParts: %v", err)
	}
	got, err := f.st.GetQuestion(ctx, q.ID)
	if err != nil {
		t.Fatalf("GetQuestion: %v", err)
	}
	if len(got.AnswerParts) != 1 || !slices.Equal(got.AnswerParts[0], []string{"rojo", "colorado"}) {
		t.Errorf("unexpected stored parts: %v", got.AnswerParts)
	}
}

func TestImportQuestions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.fixedExam(t, 5, 1)

	records := []model.QuestionInput{
		mcInput("Uno"),
		{Text: "Dos", Type: model.QuestionOpenText, Answer: "pare|||ceda el paso"},
	}
	n, err := f.svc.ImportQuestions(ctx, &e.ID, nil, records)
	if err != nil {
		t.Fatalf("ImportQuestions: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 imported, got %d", n)
	}

	bad := append(slices.Clone(records), model.QuestionInput{Text: "Tres", Type: model.QuestionMultipleChoice})
	if _, err := f.svc.ImportQuestions(ctx, nil, &f.subject.ID, bad); !errors.Is(err, model.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
	bank, err := f.st.ListBankQuestions(ctx, f.subject.ID)
	if err != nil {
		t.Fatalf("ListBankQuestions: %v", err)
	}
	if len(bank) != 0 {
		t.Errorf("expected nothing written for an invalid file, got %d questions", len(bank))
	}

	if _, err := f.svc.ImportQuestions(ctx, &e.ID, &f.subject.ID, records); !errors.Is(err, model.ErrValidation) {
		t.Errorf("expected validation error for two targets, got %v", err)
	}
}
