package progress

import (
	"encoding/json"
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
	r.HandleFunc("/progress", h.GetAll).Methods("GET")
	r.HandleFunc("/progress/{scenarioId}", h.Get).Methods("GET")
}

// GetAll returns the caller's ledger for every scenario they have played.
func (h *Handler) GetAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	all, err := h.service.GetAll(userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load progress")
		return
	}

	list := make([]*models.Progress, 0, len(all))
	for _, p := range all {
		list = append(list, p)
	}
	writeJSON(w, http.StatusOK, map[string]any{"progress": list})
}

// Get returns the caller's ledger for one scenario, including which levels
// are unlocked.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	scenarioID, err := strconv.ParseInt(mux.Vars(r)["scenarioId"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid scenario id")
		return
	}

	p, err := h.service.Get(userID, scenarioID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load progress")
		return
	}

	unlocked := make(map[string]bool, models.MaxLevel)
	for level := 1; level <= models.MaxLevel; level++ {
		unlocked[models.LevelKey(level)] = p.IsUnlocked(level)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"progress": p,
		"unlocked": unlocked,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.ErrorResponse{Error: message})
}
