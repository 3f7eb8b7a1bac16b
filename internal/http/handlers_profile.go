package http

import (
	"errors"
	"log/slog"
	"net/http"

	"finpal/internal/core"
)

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, s.profile.Snapshot())
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var tx core.Transaction
	if err := decodeJSON(r, &tx); err != nil {
		slog.WarnContext(r.Context(), "Malformed transaction body", "error", err)
		writeError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	tx.Category = sanitizeInput(tx.Category)
	tx.Description = sanitizeInput(tx.Description)

	created, err := s.profile.AddTransaction(r.Context(), tx)
	if err != nil {
		if errors.Is(err, core.ErrNonFiniteAmount) {
			writeError(w, http.StatusUnprocessableEntity, "invalid amount")
			return
		}
		slog.ErrorContext(r.Context(), "Failed to add transaction", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.invalidateOverview()
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGoals(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var g core.Goal
	if err := decodeJSON(r, &g); err != nil {
		slog.WarnContext(r.Context(), "Malformed goal body", "error", err)
		writeError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	g.Name = sanitizeInput(g.Name)

	created, err := s.profile.AddGoal(r.Context(), g)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

type goalProgressRequest struct {
	Amount float64 `json:"amount"`
}

func (s *Server) handleGoalProgress(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	id := r.PathValue("id")

	var req goalProgressRequest
	if err := decodeJSON(r, &req); err != nil {
		slog.WarnContext(r.Context(), "Malformed goal progress body", "error", err)
		writeError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}

	// An unknown goal id is a silent no-op; the caller still gets the
	// current goal list back.
	s.profile.UpdateGoalProgress(r.Context(), id, req.Amount)

	writeJSON(w, http.StatusOK, s.profile.Snapshot().Goals)
}

// invalidateOverview drops today's cached overview after a mutation so the
// next analytics read reflects it immediately.
func (s *Server) invalidateOverview() {
	s.overviewCache.Delete(s.clock.Now().Format("2006-01-02"))
}

func (s *Server) handleMonthOverview(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	now := s.clock.Now()
	cacheKey := now.Format("2006-01-02")

	if overview, ok := s.overviewCache.Get(cacheKey); ok {
		writeJSON(w, http.StatusOK, overview)
		return
	}

	overview := core.BuildMonthOverview(s.profile.Snapshot(), now)
	s.overviewCache.Set(cacheKey, overview)

	writeJSON(w, http.StatusOK, overview)
}
