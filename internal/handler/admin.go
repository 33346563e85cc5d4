package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/autoescuela/campus/internal/auth"
	"github.com/autoescuela/campus/internal/model"
)

func (h *Handler) adminRoutes(r chi.Router) {
	r.Get("/courses", h.handleListCourses)
	r.Post("/courses", h.handleCreateCourse)
	r.Get("/courses/{courseID}", h.handleGetCourse)
	r.Patch("/courses/{courseID}", h.handleUpdateCourse)
	r.Delete("/courses/{courseID}", h.handleDeleteCourse)

	r.Get("/cohorts", h.handleListCohorts)
	r.Post("/cohorts", h.handleCreateCohort)
	r.Get("/cohorts/{cohortID}", h.handleGetCohort)
	r.Patch("/cohorts/{cohortID}", h.handleUpdateCohort)
	r.Delete("/cohorts/{cohortID}", h.handleDeleteCohort)
	r.Get("/cohorts/{cohortID}/report", h.handleCohortReport)

	r.Get("/subjects", h.handleListSubjects)
	r.Post("/subjects", h.handleCreateSubject)
	r.Get("/subjects/{subjectID}", h.handleGetSubject)
	r.Patch("/subjects/{subjectID}", h.handleUpdateSubject)
	r.Delete("/subjects/{subjectID}", h.handleDeleteSubject)
	r.Get("/subjects/{subjectID}/questions", h.handleListBankQuestions)
	r.Post("/subjects/{subjectID}/questions", h.handleAddBankQuestion)

	r.Get("/contents", h.handleListContents)
	r.Post("/contents", h.handleCreateContent)
	r.Get("/contents/{contentID}", h.handleGetContent)
	r.Patch("/contents/{contentID}", h.handleUpdateContent)
	r.Delete("/contents/{contentID}", h.handleDeleteContent)

	r.Get("/users", h.handleListUsers)
	r.Post("/users", h.handleCreateUser)
	r.Patch("/users/{userID}", h.handleUpdateUser)
	r.Delete("/users/{userID}", h.handleDeleteUser)
	r.Get("/users/{userID}/activity", h.handleUserActivity)
	r.Get("/users/{userID}/exam-results", h.handleUserExamResults)

	r.Get("/exams", h.handleListExams)
	r.Post("/exams", h.handleCreateExam)
	r.Get("/exams/{examID}", h.handleGetExam)
	r.Patch("/exams/{examID}", h.handleUpdateExam)
	r.Delete("/exams/{examID}", h.handleDeleteExam)
	r.Get("/exams/{examID}/questions", h.handleListQuestions)
	r.Post("/exams/{examID}/questions", h.handleAddQuestion)
	r.Post("/exams/{examID}/questions/import", h.handleImportQuestions)
	r.Get("/exams/{examID}/results", h.handleExamResults)

	r.Delete("/questions/{questionID}", h.handleDeleteQuestion)
	r.Put("/questions/{questionID}/answer-parts", h.handleSetAnswerParts)
	r.Post("/questions/{questionID}/suggest-alternatives", h.handleSuggestAlternatives)

	r.Get("/attempts/{attemptID}/detail", h.handleAttemptDetail)

	r.Get("/notifications", h.handleListNotifications)
	r.Post("/notifications", h.handleCreateNotification)
}

// Courses

type courseRequest struct {
	Name string `json:"name" validate:"required,max=100"`
	Code string `json:"code" validate:"required,max=20"`
}

func (h *Handler) handleListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.store.ListCourses(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(courses))
}

func (h *Handler) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	var req courseRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.store.CreateCourse(r.Context(), model.Course{
		Name: strings.TrimSpace(req.Name),
		Code: strings.ToUpper(strings.TrimSpace(req.Code)),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) handleGetCourse(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "courseID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.store.GetCourse(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type coursePatch struct {
	Name *string `json:"name" validate:"omitempty,min=1,max=100"`
	Code *string `json:"code" validate:"omitempty,min=1,max=20"`
}

func (h *Handler) handleUpdateCourse(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "courseID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req coursePatch
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.store.GetCourse(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if req.Name != nil {
		c.Name = strings.TrimSpace(*req.Name)
	}
	if req.Code != nil {
		c.Code = strings.ToUpper(strings.TrimSpace(*req.Code))
	}
	if err := h.store.UpdateCourse(r.Context(), c); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) handleDeleteCourse(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "courseID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.store.DeleteCourse(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("course deleted", "course", id)
	w.WriteHeader(http.StatusNoContent)
}

// Cohorts

type cohortRequest struct {
	CourseID uuid.UUID `json:"course_id" validate:"required"`
	Name     string    `json:"name" validate:"required,max=100"`
	Code     string    `json:"code" validate:"required,max=20"`
}

func (h *Handler) handleListCohorts(w http.ResponseWriter, r *http.Request) {
	courseID, err := queryID(r, "course_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	cohorts, err := h.store.ListCohorts(r.Context(), courseID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(cohorts))
}

func (h *Handler) handleCreateCohort(w http.ResponseWriter, r *http.Request) {
	var req cohortRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.store.CreateCohort(r.Context(), model.Cohort{
		CourseID: req.CourseID,
		Name:     strings.TrimSpace(req.Name),
		Code:     strings.TrimSpace(req.Code),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) handleGetCohort(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "cohortID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.store.GetCohort(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type cohortPatch struct {
	Name *string `json:"name" validate:"omitempty,min=1,max=100"`
	Code *string `json:"code" validate:"omitempty,min=1,max=20"`
}

func (h *Handler) handleUpdateCohort(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "cohortID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req cohortPatch
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.store.GetCohort(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if req.Name != nil {
		c.Name = strings.TrimSpace(*req.Name)
	}
	if req.Code != nil {
		c.Code = strings.TrimSpace(*req.Code)
	}
	if err := h.store.UpdateCohort(r.Context(), c); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) handleDeleteCohort(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "cohortID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	deleteUsers, _ := strconv.ParseBool(r.URL.Query().Get("delete_users"))
	n, err := h.store.DeleteCohort(r.Context(), id, deleteUsers)
	if err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("cohort deleted", "cohort", id, "students_deleted", n)
	writeJSON(w, http.StatusOK, map[string]int64{"students_deleted": n})
}

func (h *Handler) handleCohortReport(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "cohortID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	report, err := h.exams.CohortReport(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Subjects

type subjectRequest struct {
	CourseID   uuid.UUID `json:"course_id" validate:"required"`
	Name       string    `json:"name" validate:"required,max=200"`
	OrderIndex int       `json:"order_index" validate:"min=0"`
}

func (h *Handler) handleListSubjects(w http.ResponseWriter, r *http.Request) {
	courseID, err := queryID(r, "course_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	subjects, err := h.store.ListSubjects(r.Context(), courseID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(subjects))
}

func (h *Handler) handleCreateSubject(w http.ResponseWriter, r *http.Request) {
	var req subjectRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	s, err := h.store.CreateSubject(r.Context(), model.Subject{
		CourseID:   req.CourseID,
		Name:       strings.TrimSpace(req.Name),
		OrderIndex: req.OrderIndex,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

func (h *Handler) handleGetSubject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "subjectID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	s, err := h.store.GetSubject(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

type subjectPatch struct {
	Name       *string `json:"name" validate:"omitempty,min=1,max=200"`
	OrderIndex *int    `json:"order_index" validate:"omitempty,min=0"`
}

func (h *Handler) handleUpdateSubject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "subjectID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req subjectPatch
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	s, err := h.store.GetSubject(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if req.Name != nil {
		s.Name = strings.TrimSpace(*req.Name)
	}
	if req.OrderIndex != nil {
		s.OrderIndex = *req.OrderIndex
	}
	if err := h.store.UpdateSubject(r.Context(), s); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) handleDeleteSubject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "subjectID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.store.DeleteSubject(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListBankQuestions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "subjectID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := h.store.GetSubject(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	questions, err := h.store.ListBankQuestions(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(questions))
}

func (h *Handler) handleAddBankQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "subjectID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req model.QuestionInput
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	q, err := h.exams.AddBankQuestion(r.Context(), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

// Contents

type contentRequest struct {
	SubjectID    uuid.UUID `json:"subject_id" validate:"required"`
	Title        string    `json:"title" validate:"required,max=200"`
	Body         string    `json:"body"`
	ExternalLink string    `json:"external_link" validate:"omitempty,url"`
	FileURL      string    `json:"file_url" validate:"omitempty,url"`
	OrderIndex   int       `json:"order_index" validate:"min=0"`
}

func (h *Handler) handleListContents(w http.ResponseWriter, r *http.Request) {
	subjectID, err := queryID(r, "subject_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if subjectID == nil {
		writeError(w, r, model.Invalid("subject_id", "is required"))
		return
	}
	contents, err := h.store.ListContents(r.Context(), *subjectID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(contents))
}

func (h *Handler) handleCreateContent(w http.ResponseWriter, r *http.Request) {
	var req contentRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.store.CreateContent(r.Context(), model.Content{
		SubjectID:    req.SubjectID,
		Title:        strings.TrimSpace(req.Title),
		Body:         req.Body,
		ExternalLink: req.ExternalLink,
		FileURL:      req.FileURL,
		OrderIndex:   req.OrderIndex,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) handleGetContent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "contentID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.store.GetContent(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type contentPatch struct {
	Title        *string `json:"title" validate:"omitempty,min=1,max=200"`
	Body         *string `json:"body"`
	ExternalLink *string `json:"external_link" validate:"omitempty,url"`
	FileURL      *string `json:"file_url" validate:"omitempty,url"`
	OrderIndex   *int    `json:"order_index" validate:"omitempty,min=0"`
}

func (h *Handler) handleUpdateContent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "contentID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req contentPatch
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.store.GetContent(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if req.Title != nil {
		c.Title = strings.TrimSpace(*req.Title)
	}
	if req.Body != nil {
		c.Body = *req.Body
	}
	if req.ExternalLink != nil {
		c.ExternalLink = *req.ExternalLink
	}
	if req.FileURL != nil {
		c.FileURL = *req.FileURL
	}
	if req.OrderIndex != nil {
		c.OrderIndex = *req.OrderIndex
	}
	if err := h.store.UpdateContent(r.Context(), c); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) handleDeleteContent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "contentID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.store.DeleteContent(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Users

type createUserRequest struct {
	Email    string         `json:"email" validate:"required,email,max=254"`
	Password string         `json:"password" validate:"required,min=6,max=72"`
	FullName string         `json:"full_name" validate:"required,max=200"`
	Role     model.UserRole `json:"role" validate:"required,oneof=student admin"`
	CohortID *uuid.UUID     `json:"cohort_id"`
	Cedula   string         `json:"cedula" validate:"max=20"`

	// CourseID with CohortCode enrolls a student in that cohort, creating it if needed.
	CourseID   *uuid.UUID `json:"course_id"`
	CohortCode string     `json:"cohort_code" validate:"max=20"`
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	var f model.UserFilter
	var err error
	if f.CourseID, err = queryID(r, "course_id"); err != nil {
		writeError(w, r, err)
		return
	}
	if f.CohortID, err = queryID(r, "cohort_id"); err != nil {
		writeError(w, r, err)
		return
	}
	f.Role = model.UserRole(r.URL.Query().Get("role"))
	if f.Role != "" && !f.Role.Valid() {
		writeError(w, r, model.Invalid("role", "unknown role %q", f.Role))
		return
	}
	f.Search = r.URL.Query().Get("search")

	users, err := h.store.ListUsers(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(users))
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u := model.User{
		Email:    req.Email,
		FullName: strings.TrimSpace(req.FullName),
		Role:     req.Role,
		Cedula:   strings.TrimSpace(req.Cedula),
	}
	if req.Role == model.UserRoleStudent {
		if req.CohortID == nil && req.CourseID != nil && strings.TrimSpace(req.CohortCode) != "" {
			code := strings.TrimSpace(req.CohortCode)
			cohort, err := h.store.GetOrCreateCohort(r.Context(), *req.CourseID, code, code)
			if err != nil {
				writeError(w, r, err)
				return
			}
			req.CohortID = &cohort.ID
		}
		if req.CohortID == nil {
			writeError(w, r, model.Invalid("cohort_id", "students need a cohort"))
			return
		}
		u.CohortID = req.CohortID
		u.DirectCourseID = req.CourseID
		u.MustChangePassword = true
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	u.PasswordHash = hash

	created, err := h.store.CreateUser(r.Context(), u)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

type updateUserRequest struct {
	Email    *string    `json:"email" validate:"omitempty,email,max=254"`
	FullName *string    `json:"full_name" validate:"omitempty,min=1,max=200"`
	CohortID *uuid.UUID `json:"cohort_id"`
	Cedula   *string    `json:"cedula" validate:"omitempty,max=20"`
	Password *string    `json:"password" validate:"omitempty,min=6,max=72"`
}

func (h *Handler) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req updateUserRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := h.store.GetUserByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if u == nil {
		writeError(w, r, fmt.Errorf("user %s: %w", id, model.ErrNotFound))
		return
	}
	if req.Email != nil {
		u.Email = *req.Email
	}
	if req.FullName != nil {
		u.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.CohortID != nil {
		if u.IsAdmin() {
			writeError(w, r, model.Invalid("cohort_id", "admins do not belong to a cohort"))
			return
		}
		u.CohortID = req.CohortID
	}
	if req.Cedula != nil {
		u.Cedula = strings.TrimSpace(*req.Cedula)
	}
	if err := h.store.UpdateUser(r.Context(), *u); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Password != nil {
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := h.store.SetPassword(r.Context(), u.ID, hash, true); err != nil {
			writeError(w, r, err)
			return
		}
	}

	updated, err := h.store.GetUserByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if me := model.UserFromContext(r.Context()); me.ID == id {
		writeError(w, r, model.Invalid("id", "admins cannot delete themselves"))
		return
	}
	if err := h.store.DeleteUser(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("user deleted", "user", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUserActivity(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	act, err := h.store.GetActivity(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, act)
}

func (h *Handler) handleUserExamResults(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	results, err := h.exams.UserExamResults(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(results))
}

// Exams

func (h *Handler) handleListExams(w http.ResponseWriter, r *http.Request) {
	courseID, err := queryID(r, "course_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	exams, err := h.store.ListExams(r.Context(), courseID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(exams))
}

func (h *Handler) handleCreateExam(w http.ResponseWriter, r *http.Request) {
	var req model.ExamInput
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	e, err := h.exams.CreateExam(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h *Handler) handleGetExam(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "examID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	e, err := h.store.GetExam(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) handleUpdateExam(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "examID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req model.ExamPatch
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	e, err := h.exams.UpdateExam(r.Context(), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) handleDeleteExam(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "examID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.store.DeleteExam(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("exam deleted", "exam", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "examID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	questions, err := h.exams.ListQuestions(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(questions))
}

func (h *Handler) handleAddQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "examID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req model.QuestionInput
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	q, err := h.exams.AddQuestion(r.Context(), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

type importRequest struct {
	Questions []model.QuestionInput `json:"questions" validate:"required,min=1,max=1000,dive"`
}

func (h *Handler) handleImportQuestions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "examID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req importRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	n, err := h.exams.ImportQuestions(r.Context(), &id, nil, req.Questions)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"imported": n})
}

func (h *Handler) handleExamResults(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "examID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	results, err := h.exams.AdminExamResults(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(results))
}

func (h *Handler) handleDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "questionID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.store.DeleteQuestion(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type answerPartsRequest struct {
	AnswerParts [][]string `json:"answer_parts" validate:"required,min=1,max=26"`
}

func (h *Handler) handleSetAnswerParts(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "questionID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req answerPartsRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	q, err := h.exams.SetAnswerParts(r.Context(), id, req.AnswerParts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) handleSuggestAlternatives(w http.ResponseWriter, r *http.Request) {
	if h.llm == nil {
		writeError(w, r, errLLMUnavailable)
		return
	}
	id, err := pathID(r, "questionID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	q, err := h.store.GetQuestion(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	suggested, err := h.llm.SuggestAlternatives(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"question_id":  q.ID,
		"answer_parts": q.AnswerParts,
		"suggestions":  suggested,
	})
}

// Notifications

type notificationRequest struct {
	CohortID uuid.UUID `json:"cohort_id" validate:"required"`
	Title    string    `json:"title" validate:"required,max=200"`
	Body     string    `json:"body" validate:"required,max=5000"`
}

func (h *Handler) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListNotifications(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(list))
}

func (h *Handler) handleCreateNotification(w http.ResponseWriter, r *http.Request) {
	var req notificationRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	cohort, err := h.store.GetCohort(r.Context(), req.CohortID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	n, err := h.store.CreateNotification(r.Context(), model.Notification{
		CohortID:  cohort.ID,
		Title:     strings.TrimSpace(req.Title),
		Body:      req.Body,
		CreatedBy: model.UserFromContext(r.Context()).ID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	n.CohortLabel = cohort.Label()
	writeJSON(w, http.StatusCreated, n)
}
