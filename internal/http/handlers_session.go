package http

import (
	"errors"
	"log/slog"
	"net/http"

	"finpal/internal/api"
)

// handleLogin accepts form-encoded credentials, matching the companion
// backend's own login contract.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	if err := r.ParseForm(); err != nil {
		slog.WarnContext(r.Context(), "Malformed login form", "error", err)
		writeError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}

	username := sanitizeInput(r.Form.Get("username"))
	password := r.Form.Get("password")
	if username == "" || password == "" {
		writeError(w, http.StatusUnprocessableEntity, "missing credentials")
		return
	}

	snap, err := s.profile.Login(r.Context(), username, password)
	if err != nil {
		if errors.Is(err, api.ErrLoginFailed) {
			writeError(w, http.StatusUnauthorized, "login failed")
			return
		}
		slog.ErrorContext(r.Context(), "Login backend call failed", "error", err)
		writeError(w, http.StatusBadGateway, "login backend unavailable")
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		slog.WarnContext(r.Context(), "Malformed register body", "error", err)
		writeError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}

	req.Username = sanitizeInput(req.Username)
	req.Email = sanitizeInput(req.Email)
	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusUnprocessableEntity, "missing fields")
		return
	}

	snap, err := s.profile.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, api.ErrLoginFailed) {
			writeError(w, http.StatusUnauthorized, "registration succeeded but login failed")
			return
		}
		// Surface the backend's own failure detail when it has one.
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, snap)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	s.profile.Logout(r.Context())
	writeJSON(w, http.StatusOK, s.profile.Snapshot())
}

type chatRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		slog.WarnContext(r.Context(), "Malformed chat body", "error", err)
		writeError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	if sanitizeInput(req.Message) == "" {
		writeError(w, http.StatusUnprocessableEntity, "empty message")
		return
	}

	resp, err := s.profile.Chat(r.Context(), req.Message)
	if err != nil {
		slog.ErrorContext(r.Context(), "Chat failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.invalidateOverview()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDemo(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	snap, err := s.profile.LoadDemoProfile(r.Context(), s.newDemoGenerator())
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to load demo profile", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.invalidateOverview()
	writeJSON(w, http.StatusOK, snap)
}
