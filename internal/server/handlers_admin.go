package server

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/coresight/coresight/internal/apperror"
	"github.com/coresight/coresight/internal/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type createEntityRequest struct {
	Name        string              `json:"name" validate:"required,max=255"`
	Address     string              `json:"address" validate:"required,max=255"`
	MonitorType string              `json:"monitor_type" validate:"required,oneof=server website"`
	Config      models.EntityConfig `json:"config"`
}

func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	entities, err := s.store.ListEntities(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if entities == nil {
		entities = []models.Entity{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entities": entities})
}

func (s *Server) handleCreateEntity(w http.ResponseWriter, r *http.Request) {
	var req createEntityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Address = strings.TrimSpace(req.Address)
	if err := validate.Struct(req); err != nil {
		msg := "invalid entity"
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			msg = verrs[0].Field() + " is invalid"
			if verrs[0].Tag() == "required" {
				msg = verrs[0].Field() + " is required"
			}
		}
		s.writeError(w, r, apperror.New(apperror.InvalidInput, "server.CreateEntity", err).WithMessage(msg))
		return
	}

	e := &models.Entity{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Address:     req.Address,
		MonitorType: req.MonitorType,
		Config:      req.Config,
	}
	if err := s.store.CreateEntity(r.Context(), e); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("entity created", "entity_id", e.ID, "name", e.Name, "monitor_type", e.MonitorType)
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	e, err := s.entity(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	// Status and latest sample are best effort.
	status, _ := s.store.GetStatus(r.Context(), e.ID)
	latest, _ := s.store.LatestSample(r.Context(), e.ID)

	writeJSON(w, http.StatusOK, map[string]any{
		"entity":        e,
		"status":        status,
		"latest_sample": latest,
	})
}

func (s *Server) handleDeleteEntity(w http.ResponseWriter, r *http.Request) {
	e, err := s.entity(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.store.DeleteEntity(r.Context(), e.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("entity deleted", "entity_id", e.ID, "name", e.Name)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// entity loads the entity named by the {id} URL parameter.
func (s *Server) entity(r *http.Request) (*models.Entity, error) {
	id := chi.URLParam(r, "id")
	e, err := s.store.GetEntity(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, apperror.New(apperror.NotFound, "server.entity", fmt.Errorf("entity %s not found", id)).WithMessage("entity not found")
	}
	return e, nil
}
