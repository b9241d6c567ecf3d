package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"ordering-quiz-service/internal/app"
	"ordering-quiz-service/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 64 << 10

// QuizAPI exposes the quiz use cases as REST/JSON under /api/quiz.
type QuizAPI struct {
	service  *app.QuizService
	validate *validator.Validate
	logger   *slog.Logger
}

func NewQuizAPI(service *app.QuizService, logger *slog.Logger) *QuizAPI {
	return &QuizAPI{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

// Routes returns the handler to mount at /api/quiz.
func (h *QuizAPI) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/start", h.Start)
	r.Get("/stats/{questionID}", h.Stats)
	r.Route("/{sessionID}", func(r chi.Router) {
		r.Get("/current", h.Current)
		r.Post("/submit", h.Submit)
		r.Get("/results", h.Results)
	})
	return r
}

// Start opens a session; the owner comes from the header, falling back to the body.
func (h *QuizAPI) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	owner := ownerFrom(r)
	if owner == "" {
		owner = strings.TrimSpace(req.StudentSessionID)
	}
	if owner == "" {
		writeError(w, r, h.logger, errMissingOwner)
		return
	}

	started, err := h.service.Start(r.Context(), req.TopicID, owner, req.StudentNickname)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toStartResponse(started))
}

func (h *QuizAPI) Current(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireOwner(w, r)
	if !ok {
		return
	}
	current, err := h.service.CurrentQuestion(r.Context(), chi.URLParam(r, "sessionID"), owner)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toCurrentResponse(current))
}

func (h *QuizAPI) Submit(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireOwner(w, r)
	if !ok {
		return
	}
	var req submitRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	outcome, err := h.service.SubmitAndAdvance(r.Context(), chi.URLParam(r, "sessionID"), owner, app.Submission{
		Order:     req.SubmittedOrder,
		TimeTaken: req.TimeTaken,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubmitResponse(outcome))
}

func (h *QuizAPI) Results(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireOwner(w, r)
	if !ok {
		return
	}
	results, err := h.service.Results(r.Context(), chi.URLParam(r, "sessionID"), owner)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toResultsResponse(results))
}

// Stats reports how every attempt at a question went. It is not session scoped
// and takes no owner.
func (h *QuizAPI) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.QuestionStats(r.Context(), chi.URLParam(r, "questionID"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatsResponse(stats))
}

func (h *QuizAPI) requireOwner(w http.ResponseWriter, r *http.Request) (string, bool) {
	owner := ownerFrom(r)
	if owner == "" {
		writeError(w, r, h.logger, errMissingOwner)
		return "", false
	}
	return owner, true
}

func (h *QuizAPI) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed body: %v", domain.ErrInvalidRequest, err)
	}
	if err := h.validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	return nil
}

func ownerFrom(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(ownerHeader))
}
