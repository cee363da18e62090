package server

import (
	"net/http"
	"strings"

	"github.com/coresight/coresight/internal/alerting"
	"github.com/coresight/coresight/internal/apperror"
	"github.com/coresight/coresight/internal/models"
)

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	entityID := r.URL.Query().Get("entity_id")

	alerts, err := s.alerts.ListActive(r.Context(), entityID, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

func (s *Server) handleResolveAlert(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.alerts.Resolve(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": models.AlertResolved})
}

func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := s.store.ListProviders(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if providers == nil {
		providers = []models.AlertProvider{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": providers})
}

type createProviderRequest struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Enabled *bool  `json:"enabled"`
	Config  string `json:"config"`
}

func (s *Server) handleCreateProvider(w http.ResponseWriter, r *http.Request) {
	const op = "server.CreateProvider"
	var req createProviderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Type == "" || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "type and name are required"})
		return
	}

	provider, err := alerting.ResolveProvider(req.Type, req.Config)
	if err != nil {
		s.writeError(w, r, apperror.New(apperror.InvalidInput, op, err).WithMessage(err.Error()))
		return
	}
	if err := provider.Validate(); err != nil {
		s.writeError(w, r, apperror.New(apperror.InvalidInput, op, err).WithMessage("invalid "+req.Type+" config: "+err.Error()))
		return
	}

	p := &models.AlertProvider{
		Type:    req.Type,
		Name:    req.Name,
		Enabled: req.Enabled == nil || *req.Enabled,
		Config:  req.Config,
	}
	if err := s.store.CreateProvider(r.Context(), p); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("alert provider created", "id", p.ID, "type", p.Type, "name", p.Name)
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleDeleteProvider(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.store.DeleteProvider(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleTestProvider(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.dispatcher.SendTestAlert(r.Context(), id)
	if err != nil {
		if apperror.KindOf(err) == apperror.Internal {
			// Send failed at the provider.
			writeJSON(w, http.StatusBadGateway, errorBody{Error: err.Error()})
			return
		}
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
