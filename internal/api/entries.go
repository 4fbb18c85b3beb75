package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kaizen-app/kaizen/internal/app/reward"
	"github.com/kaizen-app/kaizen/internal/app/tracker"
	"github.com/kaizen-app/kaizen/internal/domain"
)

// parseDate accepts RFC 3339 timestamps and bare calendar dates.
func parseDate(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var start, end *time.Time
	if v := r.URL.Query().Get("start"); v != "" {
		t, ok := parseDate(v)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid start date")
			return
		}
		start = &t
	}
	if v := r.URL.Query().Get("end"); v != "" {
		t, ok := parseDate(v)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid end date")
			return
		}
		end = &t
	}

	entries, err := s.tracker.Entries(r.Context(), uid, start, end)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type createEntryRequest struct {
	MeasureID string    `json:"measureId"`
	Value     float64   `json:"value"`
	Date      time.Time `json:"date"`
}

// entryResponse pairs the persisted entry with whatever the evaluation paid.
type entryResponse struct {
	Entry  *domain.Entry `json:"entry"`
	Reward reward.Result `json:"reward"`
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req createEntryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	entry, result, err := s.tracker.LogEntry(r.Context(), uid, req.MeasureID, req.Value, req.Date)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entryResponse{Entry: entry, Reward: result})
}

func (s *Server) handleBatchEntries(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req struct {
		Entries []tracker.BatchItem `json:"entries"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Entries) == 0 {
		writeError(w, http.StatusBadRequest, "entries array is required")
		return
	}
	outcomes := s.tracker.LogBatch(r.Context(), uid, req.Entries)
	writeJSON(w, http.StatusOK, map[string]any{"results": outcomes})
}

type updateEntryRequest struct {
	Value *float64   `json:"value"`
	Date  *time.Time `json:"date"`
}

func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req updateEntryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	entry, result, err := s.tracker.UpdateEntry(r.Context(), uid, chi.URLParam(r, "id"), tracker.EntryPatch{
		Value: req.Value,
		Date:  req.Date,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entryResponse{Entry: entry, Reward: result})
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	if err := s.tracker.DeleteEntry(r.Context(), uid, chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}
