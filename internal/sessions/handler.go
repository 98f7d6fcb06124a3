package sessions

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/speakcoach/backend/internal/middleware"
	"github.com/speakcoach/backend/internal/models"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/sessions", h.Start).Methods("POST")
	r.HandleFunc("/sessions/complete", h.CompleteOneShot).Methods("POST")
	r.HandleFunc("/sessions/{id}", h.Get).Methods("GET")
	r.HandleFunc("/sessions/{id}/steps", h.AppendStep).Methods("POST")
	r.HandleFunc("/sessions/{id}/complete", h.Complete).Methods("POST")
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req models.StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.service.Start(userID, req)
	if err != nil {
		writeServiceError(w, err, "failed to start session")
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (h *Handler) AppendStep(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	sessionID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	var req models.AppendStepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Order < 1 {
		writeError(w, http.StatusBadRequest, "step order must be positive")
		return
	}

	step, err := h.service.AppendStep(userID, sessionID, req)
	if err != nil {
		writeServiceError(w, err, "failed to record step")
		return
	}
	writeJSON(w, http.StatusCreated, step)
}

// Complete finishes an incrementally built session. The response carries
// the coach note and feedback cards; next-level videos render in the
// background after the response goes out.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	sessionID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	var req models.CompleteSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	detail, motivation, err := h.service.Complete(r.Context(), userID, sessionID, req)
	if err != nil {
		writeServiceError(w, err, "failed to complete session")
		return
	}
	writeCompletion(w, detail, motivation)
}

// CompleteOneShot creates and completes a session in a single request.
func (h *Handler) CompleteOneShot(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req models.CompleteSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	detail, motivation, err := h.service.CompleteOneShot(r.Context(), userID, req)
	if err != nil {
		writeServiceError(w, err, "failed to complete session")
		return
	}
	writeCompletion(w, detail, motivation)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	sessionID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	detail, err := h.service.Detail(userID, sessionID)
	if err != nil {
		writeServiceError(w, err, "failed to load session")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func writeCompletion(w http.ResponseWriter, detail *models.SessionDetail, motivation string) {
	writeJSON(w, http.StatusOK, map[string]any{
		"session":        detail.Session,
		"coach_note":     detail.CoachNote,
		"feedback_cards": detail.FeedbackCards,
		"motivation":     motivation,
	})
}

func writeServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrScenarioNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidLevel), errors.Is(err, ErrSessionNotStarted):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("WARN: [sessions] %s: %v", fallback, err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.ErrorResponse{Error: message})
}
