package scenarios

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/speakcoach/backend/internal/middleware"
	"github.com/speakcoach/backend/internal/models"
	"github.com/speakcoach/backend/internal/progress"
)

type Handler struct {
	store    *Store
	progress *progress.Service
}

func NewHandler(store *Store, progressService *progress.Service) *Handler {
	return &Handler{store: store, progress: progressService}
}

func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/scenarios", h.List).Methods("GET")
	r.HandleFunc("/scenarios/{id}", h.Get).Methods("GET")
}

// List returns the catalog with per-scenario unlock state for the caller.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	scenarios, err := h.store.List()
	if err != nil {
		log.Printf("WARN: [scenarios] list failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load scenarios")
		return
	}

	ledgers, err := h.progress.GetAll(userID)
	if err != nil {
		log.Printf("WARN: [scenarios] progress lookup failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load scenarios")
		return
	}

	type listEntry struct {
		models.Scenario
		Unlocked map[string]bool `json:"unlocked"`
	}
	entries := make([]listEntry, 0, len(scenarios))
	for _, scenario := range scenarios {
		// The catalog view does not carry question text.
		scenario.Levels = nil
		entries = append(entries, listEntry{
			Scenario: scenario,
			Unlocked: unlockedLevels(ledgers[scenario.ID]),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"scenarios": entries})
}

// Get returns one scenario with the caller's personalized question sets
// merged over the catalog defaults, plus their unlock state.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid scenario id")
		return
	}

	scenario, err := h.store.Get(id)
	if err != nil {
		log.Printf("WARN: [scenarios] get failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load scenario")
		return
	}
	if scenario == nil {
		writeError(w, http.StatusNotFound, "scenario not found")
		return
	}

	overrides, err := h.store.GetOverrides(userID, id)
	if err != nil {
		log.Printf("WARN: [scenarios] override lookup failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load scenario")
		return
	}
	for level, questions := range overrides {
		scenario.Levels[models.LevelKey(level)] = questions
	}

	ledger, err := h.progress.Get(userID, id)
	if err != nil {
		log.Printf("WARN: [scenarios] progress lookup failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load scenario")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"scenario": scenario,
		"unlocked": unlockedLevels(ledger),
	})
}

func unlockedLevels(p *models.Progress) map[string]bool {
	unlocked := make(map[string]bool, models.MaxLevel)
	for level := 1; level <= models.MaxLevel; level++ {
		unlocked[models.LevelKey(level)] = p.IsUnlocked(level)
	}
	return unlocked
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.ErrorResponse{Error: message})
}
