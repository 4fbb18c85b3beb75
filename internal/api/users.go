package api

import (
	"net/http"

	"github.com/kaizen-app/kaizen/internal/domain"
)

type registerUserRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (s *Server) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var req registerUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := s.tracker.RegisterUser(r.Context(), req.Email, req.Name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	user, err := s.tracker.User(r.Context(), uid)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type updateSettingsRequest struct {
	WeekStart string `json:"weekStart"`
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req updateSettingsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.tracker.SetWeekStart(r.Context(), uid, domain.WeekStart(req.WeekStart)); err != nil {
		writeDomainError(w, err)
		return
	}
	user, err := s.tracker.User(r.Context(), uid)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
