package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/coresight/coresight/internal/apperror"
	"github.com/coresight/coresight/internal/history"
	"github.com/coresight/coresight/internal/models"
	"github.com/coresight/coresight/internal/tracker"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	e, err := s.entity(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rec, err := s.tracker.Status(r.Context(), e.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleFleetStatus lists every entity with its status record and latest
// sample.
func (s *Server) handleFleetStatus(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.ListEntityStatuses(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if rows == nil {
		rows = []models.EntityStatus{}
	}
	online := 0
	for _, row := range rows {
		if row.Status != nil && row.Status.Status == models.StatusOnline {
			online++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entities": rows, "count": len(rows), "online": online})
}

func (s *Server) handleProcesses(w http.ResponseWriter, r *http.Request) {
	e, err := s.entity(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	list, err := s.store.GetProcesses(r.Context(), e.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := map[string]any{"entity_id": e.ID, "captured_at": nil, "processes": []models.ProcessReport{}}
	if list != nil {
		resp["captured_at"] = list.CapturedAt
		if list.Processes != nil {
			resp["processes"] = list.Processes
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUptime(w http.ResponseWriter, r *http.Request) {
	window, err := tracker.ParseWindow(r.URL.Query().Get("range"), r.URL.Query().Get("hours"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	e, err := s.entity(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	report, err := s.tracker.Uptime(r.Context(), e.ID, window)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	e, err := s.entity(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	logs, err := s.tracker.Logs(r.Context(), e.ID, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entity_id": e.ID, "logs": logs})
}

type historyResponse struct {
	EntityID string          `json:"entity_id"`
	Range    string          `json:"range,omitempty"`
	Since    time.Time       `json:"since"`
	Until    time.Time       `json:"until"`
	Bucket   string          `json:"bucket"`
	Points   []history.Point `json:"points"`

	bucket time.Duration
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	resp, err := s.historyWindow(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	e, err := s.entity(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp.EntityID = e.ID

	points, err := history.Buckets(s.store.History(r.Context(), e.ID, resp.Since, resp.Until), resp.bucket)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("read history for %s: %w", e.ID, err))
		return
	}
	resp.Points = points
	writeJSON(w, http.StatusOK, resp)
}

// historyWindow reads either a named range or an explicit since/until
// pair (RFC 3339) with an optional bucket width.
func (s *Server) historyWindow(r *http.Request) (*historyResponse, error) {
	const op = "server.historyWindow"
	q := r.URL.Query()
	now := s.now().UTC()

	if q.Get("since") == "" && q.Get("until") == "" {
		preset, err := history.LookupPreset(q.Get("range"))
		if err != nil {
			return nil, err
		}
		return &historyResponse{
			Range:  preset.Name,
			Since:  now.Add(-preset.Range),
			Until:  now,
			Bucket: preset.Bucket.String(),
			bucket: preset.Bucket,
		}, nil
	}

	invalid := func(err error, msg string) error {
		return apperror.New(apperror.InvalidInput, op, err).WithMessage(msg)
	}
	until := now
	if v := q.Get("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, invalid(err, "until must be an RFC 3339 timestamp")
		}
		until = t.UTC()
	}
	v := q.Get("since")
	if v == "" {
		return nil, invalid(fmt.Errorf("since missing"), "since is required with until")
	}
	since, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, invalid(err, "since must be an RFC 3339 timestamp")
	}
	since = since.UTC()
	if !since.Before(until) {
		return nil, invalid(fmt.Errorf("since %s not before until %s", since, until), "since must be before until")
	}

	bucket := history.BucketFor(until.Sub(since))
	if v := q.Get("bucket"); v != "" {
		bucket, err = time.ParseDuration(v)
		if err != nil || bucket < time.Second {
			return nil, invalid(fmt.Errorf("bucket %q", v), "bucket must be a duration of at least 1s")
		}
	}
	return &historyResponse{Since: since, Until: until, Bucket: bucket.String(), bucket: bucket}, nil
}
