package handler

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"

	appI18n "github.com/autoescuela/campus/internal/i18n"
	"github.com/autoescuela/campus/internal/model"
)

func (h *Handler) handleStudentExams(w http.ResponseWriter, r *http.Request) {
	list, err := h.exams.StudentExams(r.Context(), model.UserFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(list))
}

func (h *Handler) handleMyAttempt(w http.ResponseWriter, r *http.Request) {
	examID, err := pathID(r, "examID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := h.exams.BestAttemptID(r.Context(), examID, model.UserFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uuid.UUID{"attempt_id": id})
}

func (h *Handler) handleStartAttempt(w http.ResponseWriter, r *http.Request) {
	examID, err := pathID(r, "examID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := h.exams.StartAttempt(r.Context(), examID, model.UserFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusCreated
	if sess.Resumed {
		status = http.StatusOK
	}
	writeJSON(w, status, sess)
}

type submitRequest struct {
	Answers []model.AnswerInput `json:"answers" validate:"max=500,dive"`
}

func (h *Handler) handleSubmitAttempt(w http.ResponseWriter, r *http.Request) {
	attemptID, err := pathID(r, "attemptID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req submitRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.exams.SubmitAttempt(r.Context(), attemptID, model.UserFromContext(r.Context()), req.Answers)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleAttemptResult(w http.ResponseWriter, r *http.Request) {
	attemptID, err := pathID(r, "attemptID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.exams.AttemptResult(r.Context(), attemptID, model.UserFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	res.Answers = orEmpty(res.Answers)
	writeJSON(w, http.StatusOK, res)
}

// handleAttemptDetail serves both the student and the admin review route.
func (h *Handler) handleAttemptDetail(w http.ResponseWriter, r *http.Request) {
	attemptID, err := pathID(r, "attemptID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	detail, err := h.exams.AttemptDetail(r.Context(), attemptID, model.UserFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	detail.Answers = orEmpty(detail.Answers)
	writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) handleMyExamResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.exams.UserExamResults(r.Context(), model.UserFromContext(r.Context()).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(results))
}

func (h *Handler) handleProgress(w http.ResponseWriter, r *http.Request) {
	p, err := h.exams.Progress(r.Context(), model.UserFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) handleMySubjects(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	if user.CourseID == nil {
		writeJSON(w, http.StatusOK, []model.Subject{})
		return
	}
	subjects, err := h.store.ListSubjects(r.Context(), user.CourseID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(subjects))
}

func (h *Handler) handleSubjectContents(w http.ResponseWriter, r *http.Request) {
	subjectID, err := pathID(r, "subjectID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	user := model.UserFromContext(r.Context())
	subject, err := h.store.GetSubject(r.Context(), subjectID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if user.CourseID == nil || subject.CourseID != *user.CourseID {
		writeError(w, r, fmt.Errorf("subject %s is outside the user's course: %w", subjectID, model.ErrForbidden))
		return
	}
	contents, err := h.store.ListContents(r.Context(), subject.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(contents))
}

func (h *Handler) handleInbox(w http.ResponseWriter, r *http.Request) {
	inbox, err := h.store.Inbox(r.Context(), model.UserFromContext(r.Context()).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(inbox))
}

func (h *Handler) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.store.UnreadCount(r.Context(), model.UserFromContext(r.Context()).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count": n,
		"label": appI18n.Tp(r.Context(), "unread_notifications", n),
	})
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "notificationID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.store.MarkNotificationRead(r.Context(), id, model.UserFromContext(r.Context()).ID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type activityRequest struct {
	AddSeconds int64      `json:"add_seconds" validate:"min=0,max=86400"`
	ContentID  *uuid.UUID `json:"content_id"`
}

func (h *Handler) handleAddActivity(w http.ResponseWriter, r *http.Request) {
	var req activityRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.ContentID != nil {
		if _, err := h.store.GetContent(r.Context(), *req.ContentID); err != nil {
			writeError(w, r, err)
			return
		}
	}
	act, err := h.store.AddActivity(r.Context(), model.UserFromContext(r.Context()).ID, req.AddSeconds, req.ContentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, act)
}

func (h *Handler) handleMyActivity(w http.ResponseWriter, r *http.Request) {
	act, err := h.store.GetActivity(r.Context(), model.UserFromContext(r.Context()).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, act)
}
