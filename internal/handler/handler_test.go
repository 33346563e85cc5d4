package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/autoescuela/campus/internal/auth"
	"github.com/autoescuela/campus/internal/exam"
	appI18n "github.com/autoescuela/campus/internal/i18n"
	"github.com/autoescuela/campus/internal/model"
	"github.com/autoescuela/campus/internal/store"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testEnv struct {
	st     *store.Store
	router http.Handler
	course model.Course
	cohort model.Cohort
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	if err := appI18n.Init("es"); err != nil {
		t.Fatalf("i18n.Init: %v", err)
	}
	st, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	tokens, err := auth.NewTokens(testSecret, auth.DefaultTTL, st)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	h := New(st, exam.NewService(st), tokens, nil)

	r := chi.NewRouter()
	r.Use(appI18n.Middleware())
	h.Routes(r)

	ctx := context.Background()
	course, err := st.CreateCourse(ctx, model.Course{Name: "Curso Tipo B", Code: "AUTO"})
	if err != nil {
		t.Fatalf("CreateCourse: %v", err)
	}
	cohort, err := st.CreateCohort(ctx, model.Cohort{CourseID: course.ID, Name: "200", Code: "200"})
	if err != nil {
		t.Fatalf("CreateCohort: %v", err)
	}
	return &testEnv{st: st, router: r, course: course, cohort: cohort}
}

func (e *testEnv) addUser(t *testing.T, email, password string, role model.UserRole) model.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	u := model.User{Email: email, PasswordHash: hash, FullName: email, Role: role}
	if role == model.UserRoleStudent {
		u.CohortID = &e.cohort.ID
	}
	created, err := e.st.CreateUser(context.Background(), u)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return created
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T, email, password string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": password})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: status %d: %s", email, rec.Code, rec.Body)
	}
	return decode[loginResponse](t, rec).AccessToken
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) envelope {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d: %s", rec.Code, status, rec.Body)
	}
	env := decode[envelope](t, rec)
	if env.Error.Code != code {
		t.Errorf("error code = %q, want %q", env.Error.Code, code)
	}
	if env.Error.Message == "" {
		t.Error("error message is empty")
	}
	return env
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decode[map[string]any](t, rec)["status"]; got != "ok" {
		t.Errorf("status = %v", got)
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "ana@example.com", "secreto1", model.UserRoleStudent)

	rec := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ana@example.com", "password": "nope"})
	expectError(t, rec, http.StatusUnauthorized, "invalid_credentials")

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "nadie@example.com", "password": "secreto1"})
	expectError(t, rec, http.StatusUnauthorized, "invalid_credentials")

	token := env.login(t, "ANA@example.com", "secreto1")
	rec = env.do(t, http.MethodGet, "/api/auth/me", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me: status %d", rec.Code)
	}
	me := decode[model.User](t, rec)
	if me.Email != "ana@example.com" || me.Role != model.UserRoleStudent {
		t.Errorf("me = %+v", me)
	}
	if me.CourseID == nil || *me.CourseID != env.course.ID {
		t.Errorf("course = %v, want %v", me.CourseID, env.course.ID)
	}
	if strings.Contains(rec.Body.String(), "$2a$") {
		t.Error("response leaks the password hash")
	}
}

func TestUnauthorizedIsLocalized(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		header []string
		want   string
	}{
		{"default language", nil, "Debe iniciar sesión."},
		{"english", []string{"Accept-Language", "en-US,en;q=0.9"}, "You must sign in."},
		{"unknown falls back", []string{"Accept-Language", "fr"}, "Debe iniciar sesión."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/api/auth/me", "", nil, tt.header...)
			got := expectError(t, rec, http.StatusUnauthorized, "unauthorized")
			if got.Error.Message != tt.want {
				t.Errorf("message = %q, want %q", got.Error.Message, tt.want)
			}
		})
	}

	rec := env.do(t, http.MethodGet, "/api/auth/me", "not-a-jwt", nil)
	expectError(t, rec, http.StatusUnauthorized, "unauthorized")
}

func TestRoleGuards(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "ana@example.com", "secreto1", model.UserRoleStudent)
	env.addUser(t, "admin@example.com", "secreto1", model.UserRoleAdmin)
	student := env.login(t, "ana@example.com", "secreto1")
	admin := env.login(t, "admin@example.com", "secreto1")

	expectError(t, env.do(t, http.MethodGet, "/api/admin/courses", student, nil), http.StatusForbidden, "forbidden")
	expectError(t, env.do(t, http.MethodGet, "/api/exams", admin, nil), http.StatusForbidden, "forbidden")

	if rec := env.do(t, http.MethodGet, "/api/admin/courses", admin, nil); rec.Code != http.StatusOK {
		t.Errorf("admin courses: status %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/exams", student, nil); rec.Code != http.StatusOK {
		t.Errorf("student exams: status %d", rec.Code)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "ana@example.com", "secreto1", model.UserRoleStudent)
	token := env.login(t, "ana@example.com", "secreto1")

	if rec := env.do(t, http.MethodPost, "/api/auth/logout", token, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("logout: status %d", rec.Code)
	}
	expectError(t, env.do(t, http.MethodGet, "/api/auth/me", token, nil), http.StatusUnauthorized, "unauthorized")
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	u := env.addUser(t, "ana@example.com", "secreto1", model.UserRoleStudent)
	if err := env.st.SetPassword(context.Background(), u.ID, u.PasswordHash, true); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
	token := env.login(t, "ana@example.com", "secreto1")

	rec := env.do(t, http.MethodPost, "/api/auth/password", token,
		map[string]string{"current_password": "wrong", "new_password": "nuevo123"})
	expectError(t, rec, http.StatusBadRequest, "wrong_password")

	rec = env.do(t, http.MethodPost, "/api/auth/password", token,
		map[string]string{"current_password": "secreto1", "new_password": "123"})
	expectError(t, rec, http.StatusBadRequest, "validation_error")

	rec = env.do(t, http.MethodPost, "/api/auth/password", token,
		map[string]string{"current_password": "secreto1", "new_password": "nuevo123"})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("change password: status %d: %s", rec.Code, rec.Body)
	}

	token = env.login(t, "ana@example.com", "nuevo123")
	me := decode[model.User](t, env.do(t, http.MethodGet, "/api/auth/me", token, nil))
	if me.MustChangePassword {
		t.Error("must_change_password still set after change")
	}
}

func TestBodyValidation(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "admin@example.com", "secreto1", model.UserRoleAdmin)
	admin := env.login(t, "admin@example.com", "secreto1")

	rec := env.do(t, http.MethodPost, "/api/admin/courses", admin, `{"name": "Curso", "code": "X", "extra": 1}`)
	expectError(t, rec, http.StatusBadRequest, "invalid_body")

	rec = env.do(t, http.MethodPost, "/api/admin/courses", admin, `{"code": "X"}`, "Accept-Language", "en")
	got := expectError(t, rec, http.StatusBadRequest, "validation_error")
	if !strings.Contains(got.Error.Message, "name") {
		t.Errorf("message %q does not name the field", got.Error.Message)
	}

	expectError(t, env.do(t, http.MethodGet, "/api/admin/exams/not-an-id", admin, nil), http.StatusBadRequest, "validation_error")
	expectError(t, env.do(t, http.MethodGet, "/api/admin/exams/"+uuid.NewString(), admin, nil), http.StatusNotFound, "not_found")
}

func TestCreateStudentNeedsCohort(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "admin@example.com", "secreto1", model.UserRoleAdmin)
	admin := env.login(t, "admin@example.com", "secreto1")

	body := map[string]any{"email": "b@example.com", "password": "secreto1", "full_name": "Beto", "role": "student"}
	expectError(t, env.do(t, http.MethodPost, "/api/admin/users", admin, body), http.StatusBadRequest, "validation_error")

	body["cohort_id"] = env.cohort.ID
	rec := env.do(t, http.MethodPost, "/api/admin/users", admin, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create user: status %d: %s", rec.Code, rec.Body)
	}
	created := decode[model.User](t, rec)
	if !created.MustChangePassword {
		t.Error("new student should have to change the password")
	}
	if created.CourseID == nil || *created.CourseID != env.course.ID {
		t.Errorf("course = %v, want the cohort's course", created.CourseID)
	}

	expectError(t, env.do(t, http.MethodPost, "/api/admin/users", admin, body), http.StatusBadRequest, "validation_error")

	rec = env.do(t, http.MethodPost, "/api/admin/users", admin, map[string]any{
		"email": "c@example.com", "password": "secreto1", "full_name": "Carla", "role": "student",
		"course_id": env.course.ID, "cohort_code": "201",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create user by cohort code: status %d: %s", rec.Code, rec.Body)
	}
	carla := decode[model.User](t, rec)
	if carla.CohortID == nil || *carla.CohortID == env.cohort.ID {
		t.Fatalf("cohort = %v, want a new cohort 201", carla.CohortID)
	}
	cohorts := decode[[]model.Cohort](t, env.do(t, http.MethodGet, "/api/admin/cohorts?course_id="+env.course.ID.String(), admin, nil))
	if len(cohorts) != 2 {
		t.Errorf("cohorts = %d, want 2", len(cohorts))
	}
}

func TestExamFlow(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "admin@example.com", "secreto1", model.UserRoleAdmin)
	env.addUser(t, "ana@example.com", "secreto1", model.UserRoleStudent)
	admin := env.login(t, "admin@example.com", "secreto1")
	student := env.login(t, "ana@example.com", "secreto1")

	rec := env.do(t, http.MethodPost, "/api/admin/exams", admin, map[string]any{
		"course_id": env.course.ID, "title": "Final", "question_count": 2,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create exam: status %d: %s", rec.Code, rec.Body)
	}
	ex := decode[model.Exam](t, rec)
	if ex.PassingScore != model.DefaultPassingScore {
		t.Errorf("passing score = %d, want default %d", ex.PassingScore, model.DefaultPassingScore)
	}

	questions := []model.QuestionInput{
		{Text: "¿Qué indica la luz roja?", Type: model.QuestionMultipleChoice, Options: []model.OptionInput{
			{Text: "Detenerse", Correct: true}, {Text: "Avanzar"},
		}},
		{Text: "Complete: a) color de alto", Type: model.QuestionOpenText, AnswerParts: [][]string{{"rojo"}}},
	}
	rec = env.do(t, http.MethodPost, "/api/admin/exams/"+ex.ID.String()+"/questions/import", admin,
		map[string]any{"questions": questions})
	if rec.Code != http.StatusCreated {
		t.Fatalf("import: status %d: %s", rec.Code, rec.Body)
	}

	expectError(t, env.do(t, http.MethodGet, "/api/exams/"+ex.ID.String()+"/my-attempt", student, nil),
		http.StatusNotFound, "not_found")

	start := "/api/exams/" + ex.ID.String() + "/start"
	rec = env.do(t, http.MethodPost, start, student, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("start: status %d: %s", rec.Code, rec.Body)
	}
	sess := decode[model.ExamSession](t, rec)
	if len(sess.Questions) != 2 {
		t.Fatalf("questions = %d, want 2", len(sess.Questions))
	}
	if strings.Contains(rec.Body.String(), "is_correct") || strings.Contains(rec.Body.String(), "rojo") {
		t.Error("session leaks answers")
	}

	rec = env.do(t, http.MethodPost, start, student, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("resume: status %d", rec.Code)
	}
	if again := decode[model.ExamSession](t, rec); again.AttemptID != sess.AttemptID || !again.Resumed {
		t.Errorf("resume = %v (resumed %v), want attempt %v", again.AttemptID, again.Resumed, sess.AttemptID)
	}

	var answers []model.AnswerInput
	for _, pq := range sess.Questions {
		q, err := env.st.GetQuestion(context.Background(), pq.ID)
		if err != nil {
			t.Fatalf("GetQuestion: %v", err)
		}
		switch q.Type {
		case model.QuestionMultipleChoice:
			for _, o := range q.Options {
				if o.IsCorrect {
					answers = append(answers, model.AnswerInput{QuestionID: q.ID, OptionID: &o.ID})
				}
			}
		case model.QuestionOpenText:
			answers = append(answers, model.AnswerInput{QuestionID: q.ID, TextAnswers: []string{" Rojo "}})
		}
	}

	submit := "/api/attempts/" + sess.AttemptID.String() + "/submit"
	rec = env.do(t, http.MethodPost, submit, student, map[string]any{"answers": answers})
	if rec.Code != http.StatusOK {
		t.Fatalf("submit: status %d: %s", rec.Code, rec.Body)
	}
	if res := decode[model.SubmitResult](t, rec); res.Score != 100 || !res.Passed || res.CorrectCount != 2 {
		t.Errorf("result = %+v", res)
	}

	expectError(t, env.do(t, http.MethodPost, submit, student, map[string]any{"answers": answers}),
		http.StatusConflict, "already_submitted")

	rec = env.do(t, http.MethodGet, "/api/exams/"+ex.ID.String()+"/my-attempt", student, nil)
	if got := decode[map[string]uuid.UUID](t, rec)["attempt_id"]; got != sess.AttemptID {
		t.Errorf("my-attempt = %v, want %v", got, sess.AttemptID)
	}

	rec = env.do(t, http.MethodGet, "/api/admin/exams/"+ex.ID.String()+"/results", admin, nil)
	results := decode[[]model.UserResult](t, rec)
	if len(results) != 1 || results[0].Score != 100 {
		t.Errorf("admin results = %+v", results)
	}

	rec = env.do(t, http.MethodGet, "/api/admin/attempts/"+sess.AttemptID.String()+"/detail", admin, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("admin detail: status %d: %s", rec.Code, rec.Body)
	}
}

func TestNotificationsFlow(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "admin@example.com", "secreto1", model.UserRoleAdmin)
	env.addUser(t, "ana@example.com", "secreto1", model.UserRoleStudent)
	admin := env.login(t, "admin@example.com", "secreto1")
	student := env.login(t, "ana@example.com", "secreto1")

	for _, title := range []string{"Clase suspendida", "Examen el lunes"} {
		rec := env.do(t, http.MethodPost, "/api/admin/notifications", admin, map[string]any{
			"cohort_id": env.cohort.ID, "title": title, "body": "Ver detalles.",
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("create notification: status %d: %s", rec.Code, rec.Body)
		}
	}

	rec := env.do(t, http.MethodGet, "/api/notifications/unread-count", student, nil)
	count := decode[map[string]any](t, rec)
	if count["count"] != float64(2) || count["label"] != "2 notificaciones sin leer" {
		t.Errorf("unread = %v", count)
	}

	inbox := decode[[]model.InboxNotification](t, env.do(t, http.MethodGet, "/api/notifications", student, nil))
	if len(inbox) != 2 {
		t.Fatalf("inbox = %d, want 2", len(inbox))
	}
	if rec := env.do(t, http.MethodPost, "/api/notifications/"+inbox[0].ID.String()+"/read", student, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("mark read: status %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/notifications/unread-count", student, nil, "Accept-Language", "en")
	if got := decode[map[string]any](t, rec)["label"]; got != "1 unread notification" {
		t.Errorf("label = %v", got)
	}
}

func TestSuggestAlternativesWithoutLLM(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "admin@example.com", "secreto1", model.UserRoleAdmin)
	admin := env.login(t, "admin@example.com", "secreto1")

	rec := env.do(t, http.MethodPost, "/api/admin/questions/"+uuid.NewString()+"/suggest-alternatives", admin, nil)
	expectError(t, rec, http.StatusServiceUnavailable, "llm_unavailable")
}
