package services

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/interviewhelper/backend/models"
)

type InterviewEndpoints struct {
	interviews *InterviewService
	validator  *RequestValidator
}

func NewInterviewEndpoints(interviews *InterviewService, validator *RequestValidator) *InterviewEndpoints {
	return &InterviewEndpoints{
		interviews: interviews,
		validator:  validator,
	}
}

type StartInterviewRequest struct {
	UserID         uint   `json:"userId"`
	JobTitle       string `json:"jobTitle" validate:"required,notblank,max=200"`
	JobDescription string `json:"jobDescription" validate:"max=10000"`
	JobLevel       string `json:"jobLevel" validate:"omitempty,max=20"`
}

type SubmitAnswerRequest struct {
	UserAnswer          string `json:"userAnswer" validate:"required,notblank"`
	QuestionID          uint   `json:"questionId"`
	ResponseTimeSeconds *int   `json:"responseTimeSeconds,omitempty" validate:"omitempty,min=0"`
}

type GetInterviewsResponse struct {
	Count      int                `json:"count"`
	Interviews []models.Interview `json:"interviews"`
}

type HintResponse struct {
	Hint string `json:"hint"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// problemResponse is an RFC 7807 body for failures the client cannot fix
type problemResponse struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (e *InterviewEndpoints) RegisterRoutes(r chi.Router) {
	r.Post("/interview/start", e.StartInterviewHandler)
	r.Post("/interview/{interviewId}/response", e.SubmitAnswerHandler)
	r.Get("/interview/{interviewId}/hint", e.HintHandler)
	r.Get("/get/interview", e.GetInterviewsHandler)
	r.Get("/get/interview/{interviewId}", e.GetInterviewHandler)
}

func (e *InterviewEndpoints) StartInterviewHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	var req StartInterviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := e.validator.Validate(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.UserID != 0 && req.UserID != user.ID {
		writeServiceError(w, ErrUserMismatch)
		return
	}

	result, err := e.interviews.StartInterview(r.Context(), StartInterviewInput{
		UserID:         user.ID,
		JobTitle:       req.JobTitle,
		JobDescription: req.JobDescription,
		JobLevel:       req.JobLevel,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
	slog.Info("Interview start handled", "interview_id", result.InterviewID, "user_id", user.ID)
}

func (e *InterviewEndpoints) SubmitAnswerHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	interviewID, err := parseID(chi.URLParam(r, "interviewId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid interview id")
		return
	}

	var req SubmitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := e.validator.Validate(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := e.interviews.SubmitAnswer(r.Context(), SubmitAnswerInput{
		UserID:              user.ID,
		InterviewID:         interviewID,
		QuestionID:          req.QuestionID,
		UserAnswer:          req.UserAnswer,
		ResponseTimeSeconds: req.ResponseTimeSeconds,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (e *InterviewEndpoints) HintHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	interviewID, err := parseID(chi.URLParam(r, "interviewId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid interview id")
		return
	}
	questionID, err := parseID(r.URL.Query().Get("questionId"))
	if err != nil {
		writeServiceError(w, ErrMissingQuestionID)
		return
	}

	hint, err := e.interviews.Hint(r.Context(), user.ID, interviewID, questionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, HintResponse{Hint: hint})
}

func (e *InterviewEndpoints) GetInterviewsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	interviews, err := e.interviews.ListInterviews(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, GetInterviewsResponse{
		Count:      len(interviews),
		Interviews: interviews,
	})
	slog.Info("Interviews retrieved", "user_id", user.ID, "count", len(interviews))
}

func (e *InterviewEndpoints) GetInterviewHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	interviewID, err := parseID(chi.URLParam(r, "interviewId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid interview id")
		return
	}

	interview, err := e.interviews.GetInterview(r.Context(), user.ID, interviewID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, interview)
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(id), nil
}

// statusForError maps service errors onto HTTP statuses. Zero means the
// error is unexpected.
func statusForError(err error) int {
	switch {
	case errors.Is(err, ErrMissingQuestionID):
		return http.StatusBadRequest
	case errors.Is(err, ErrUserMismatch):
		return http.StatusForbidden
	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrInterviewNotFound),
		errors.Is(err, ErrQuestionNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrQuestionAnswered),
		errors.Is(err, ErrInterviewClosed):
		return http.StatusConflict
	case errors.Is(err, ErrChatProvider):
		return http.StatusBadGateway
	default:
		return 0
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status == 0 {
		slog.Error("Unexpected request failure", "error", err)
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(problemResponse{
			Type:   "about:blank",
			Title:  http.StatusText(http.StatusInternalServerError),
			Status: http.StatusInternalServerError,
			Detail: "An unexpected error occurred while processing the request",
		})
		return
	}
	writeError(w, status, err.Error())
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
