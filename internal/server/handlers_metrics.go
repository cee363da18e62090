package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/coresight/coresight/internal/apperror"
	"github.com/coresight/coresight/internal/history"
	"github.com/coresight/coresight/internal/models"
)

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req models.MetricsReport
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.ingest.Ingest(r.Context(), &req)
	if err != nil {
		// Storage that stayed unavailable through the retries is reported
		// as a plain server error to agents.
		if apperror.IsKind(err, apperror.Unavailable) {
			s.logger.Error("failed to store metrics", "hostname", req.Hostname, "err", err)
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Error storing metrics"})
			return
		}
		s.writeError(w, r, err)
		return
	}

	resp := models.IngestResponse{
		Message:  "Metrics stored successfully",
		EntityID: res.Entity.ID,
	}
	for _, a := range res.Alerts {
		if a.Created {
			resp.AlertIDs = append(resp.AlertIDs, a.AlertID)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLastHour(w http.ResponseWriter, r *http.Request) {
	host := chi.URLParam(r, "host")
	e, err := s.store.FindEntityByHost(r.Context(), host)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if e == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "no metrics found"})
		return
	}

	now := s.now()
	series, err := history.LastHour(s.store.History(r.Context(), e.ID, now.Add(-time.Hour), now))
	if err != nil {
		s.writeError(w, r, fmt.Errorf("read last hour for %s: %w", host, err))
		return
	}
	if series == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "no metrics found"})
		return
	}
	writeJSON(w, http.StatusOK, series)
}
