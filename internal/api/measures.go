package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/kaizen-app/kaizen/internal/app/tracker"
	"github.com/kaizen-app/kaizen/internal/domain"
)

func (s *Server) handleListMeasures(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	measures, err := s.tracker.Measures(r.Context(), uid)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, measures)
}

type createMeasureRequest struct {
	Name  string `json:"name"`
	Unit  string `json:"unit"`
	Icon  string `json:"icon"`
	Color string `json:"color"`
}

func (s *Server) handleCreateMeasure(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req createMeasureRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	m, err := s.tracker.CreateMeasure(r.Context(), uid, req.Name, req.Unit, req.Icon, req.Color)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

type updateMeasureRequest struct {
	Name  *string `json:"name"`
	Unit  *string `json:"unit"`
	Icon  *string `json:"icon"`
	Color *string `json:"color"`
}

func (s *Server) handleUpdateMeasure(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req updateMeasureRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	m, err := s.tracker.UpdateMeasure(r.Context(), uid, chi.URLParam(r, "id"), tracker.MeasurePatch{
		Name:  req.Name,
		Unit:  req.Unit,
		Icon:  req.Icon,
		Color: req.Color,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleDeleteMeasure(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	if err := s.tracker.DeleteMeasure(r.Context(), uid, chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// ─── Goals ──────────────────────────────────────────────────────────────────

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	goals, err := s.tracker.Goals(r.Context(), uid)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, goals)
}

type createGoalRequest struct {
	MeasureID    string          `json:"measureId"`
	Timeframe    string          `json:"timeframe"`
	Type         string          `json:"type"`
	TargetValue  float64         `json:"targetValue"`
	RewardAmount decimal.Decimal `json:"rewardAmount"`
	MinPerEntry  *float64        `json:"minPerEntry"`
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req createGoalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	g, err := s.tracker.CreateGoal(r.Context(), uid, tracker.GoalInput{
		MeasureID:    req.MeasureID,
		Timeframe:    domain.Timeframe(req.Timeframe),
		Type:         domain.GoalType(req.Type),
		TargetValue:  req.TargetValue,
		RewardAmount: req.RewardAmount,
		MinPerEntry:  req.MinPerEntry,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	if err := s.tracker.DeleteGoal(r.Context(), uid, chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}
