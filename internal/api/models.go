package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nerrad567/iot-portal/internal/audit"
	"github.com/nerrad567/iot-portal/internal/device"
	"github.com/nerrad567/iot-portal/internal/modelimage"
)

// modelRequest is the body accepted by create and update.
type modelRequest struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	SupportsLoRaWAN bool   `json:"supports_lorawan"`
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.models.List(r.Context())
	if err != nil {
		s.logger.Error("listing device models", "error", err)
		writeInternalError(w, "failed to list device models")
		return
	}
	if models == nil {
		models = []device.Model{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": models, "count": len(models)})
}

func (s *Server) handleGetModel(w http.ResponseWriter, r *http.Request) {
	m, ok := s.loadModel(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// handleCreateModel stores a new model and gives it the default image.
// The model ID is generated when the body leaves it empty. If the default
// image cannot be stored the model is removed again.
func (s *Server) handleCreateModel(w http.ResponseWriter, r *http.Request) {
	if s.images == nil {
		writeUnavailable(w, "image storage not configured")
		return
	}

	var req modelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	m := &device.Model{
		ID:              strings.TrimSpace(req.ID),
		Name:            req.Name,
		Description:     req.Description,
		SupportsLoRaWAN: req.SupportsLoRaWAN,
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}

	ctx := r.Context()
	if err := s.models.Create(ctx, m); err != nil {
		switch {
		case errors.Is(err, device.ErrInvalidModel):
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		case errors.Is(err, device.ErrModelExists):
			writeConflict(w, "device model already exists")
		default:
			s.logger.Error("creating device model", "error", err, "model_id", m.ID)
			writeInternalError(w, "failed to create device model")
		}
		return
	}

	uri, err := s.images.SetDefaultImage(ctx, m.ID)
	if err == nil {
		err = s.models.SetImageURL(ctx, m.ID, uri)
	}
	if err != nil {
		s.logger.Error("setting default model image", "error", err, "model_id", m.ID)
		if delErr := s.models.Delete(ctx, m.ID); delErr != nil {
			s.logger.Warn("removing model after image failure", "error", delErr, "model_id", m.ID)
		}
		s.writeImageError(w, err)
		return
	}
	m.ImageURL = uri

	s.record(r, audit.ActionCreate, audit.EntityDeviceModel, m.ID, map[string]any{"name": m.Name})
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleUpdateModel(w http.ResponseWriter, r *http.Request) {
	existing, ok := s.loadModel(w, r)
	if !ok {
		return
	}

	var req modelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	existing.Name = req.Name
	existing.Description = req.Description
	existing.SupportsLoRaWAN = req.SupportsLoRaWAN

	if err := s.models.Update(r.Context(), existing); err != nil {
		switch {
		case errors.Is(err, device.ErrInvalidModel):
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		case errors.Is(err, device.ErrModelNotFound):
			writeNotFound(w, "device model not found")
		default:
			s.logger.Error("updating device model", "error", err, "model_id", existing.ID)
			writeInternalError(w, "failed to update device model")
		}
		return
	}
	s.record(r, audit.ActionUpdate, audit.EntityDeviceModel, existing.ID, map[string]any{"name": existing.Name})
	writeJSON(w, http.StatusOK, existing)
}

// handleDeleteModel removes the model row, then its image on a best-effort basis.
func (s *Server) handleDeleteModel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	if err := s.models.Delete(ctx, id); err != nil {
		if errors.Is(err, device.ErrModelNotFound) {
			writeNotFound(w, "device model not found")
			return
		}
		s.logger.Error("deleting device model", "error", err, "model_id", id)
		writeInternalError(w, "failed to delete device model")
		return
	}

	if s.images != nil {
		if err := s.images.DeleteImage(ctx, id); err != nil {
			s.logger.Warn("deleting model image", "error", err, "model_id", id)
		}
	}
	s.record(r, audit.ActionDelete, audit.EntityDeviceModel, id, nil)
	w.WriteHeader(http.StatusNoContent)
}

// handleGetAvatar returns the stored image URI, or the computed one when
// the model predates image storage.
func (s *Server) handleGetAvatar(w http.ResponseWriter, r *http.Request) {
	m, ok := s.loadModel(w, r)
	if !ok {
		return
	}
	uri := m.ImageURL
	if uri == "" && s.images != nil {
		uri = s.images.ComputeImageURI(m.ID)
	}
	writeJSON(w, http.StatusOK, map[string]string{"model_id": m.ID, "image_url": uri})
}

// handleChangeAvatar uploads the raw request body as the model image.
func (s *Server) handleChangeAvatar(w http.ResponseWriter, r *http.Request) {
	if s.images == nil {
		writeUnavailable(w, "image storage not configured")
		return
	}
	m, ok := s.loadModel(w, r)
	if !ok {
		return
	}
	if r.ContentLength == 0 {
		writeBadRequest(w, "image body is required")
		return
	}

	ctx := r.Context()
	uri, err := s.images.ChangeImage(ctx, m.ID, r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "image too large")
			return
		}
		s.logger.Error("changing model image", "error", err, "model_id", m.ID)
		s.writeImageError(w, err)
		return
	}
	if err := s.models.SetImageURL(ctx, m.ID, uri); err != nil {
		s.logger.Error("recording model image", "error", err, "model_id", m.ID)
		writeInternalError(w, "failed to record model image")
		return
	}
	s.record(r, audit.ActionImageChange, audit.EntityDeviceModel, m.ID, map[string]any{"image_url": uri})
	writeJSON(w, http.StatusOK, map[string]string{"model_id": m.ID, "image_url": uri})
}

// handleDeleteAvatar removes the custom image and restores the default one.
func (s *Server) handleDeleteAvatar(w http.ResponseWriter, r *http.Request) {
	if s.images == nil {
		writeUnavailable(w, "image storage not configured")
		return
	}
	m, ok := s.loadModel(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	if err := s.images.DeleteImage(ctx, m.ID); err != nil {
		s.logger.Error("deleting model image", "error", err, "model_id", m.ID)
		s.writeImageError(w, err)
		return
	}
	uri, err := s.images.SetDefaultImage(ctx, m.ID)
	if err != nil {
		s.logger.Error("restoring default model image", "error", err, "model_id", m.ID)
		s.writeImageError(w, err)
		return
	}
	if err := s.models.SetImageURL(ctx, m.ID, uri); err != nil {
		s.logger.Error("recording model image", "error", err, "model_id", m.ID)
		writeInternalError(w, "failed to record model image")
		return
	}
	s.record(r, audit.ActionImageDelete, audit.EntityDeviceModel, m.ID, nil)
	writeJSON(w, http.StatusOK, map[string]string{"model_id": m.ID, "image_url": uri})
}

// handleSyncCacheControl re-applies the configured Cache-Control header to
// every stored image. Providers that set it on upload only answer 501.
func (s *Server) handleSyncCacheControl(w http.ResponseWriter, r *http.Request) {
	if s.images == nil {
		writeUnavailable(w, "image storage not configured")
		return
	}
	if err := s.images.SyncImagesCacheControl(r.Context()); err != nil {
		if !errors.Is(err, modelimage.ErrNotSupported) {
			s.logger.Error("syncing image cache control", "error", err)
		}
		s.writeImageError(w, err)
		return
	}
	s.record(r, audit.ActionCacheControlSync, audit.EntityModelImages, "", nil)
	w.WriteHeader(http.StatusNoContent)
}

// loadModel fetches the {id} model, writing 404 or 500 on failure.
func (s *Server) loadModel(w http.ResponseWriter, r *http.Request) (*device.Model, bool) {
	id := chi.URLParam(r, "id")
	m, err := s.models.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrModelNotFound) {
			writeNotFound(w, "device model not found")
			return nil, false
		}
		s.logger.Error("getting device model", "error", err, "model_id", id)
		writeInternalError(w, "failed to get device model")
		return nil, false
	}
	return m, true
}

// writeImageError maps image manager failures onto HTTP responses.
func (s *Server) writeImageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, modelimage.ErrInvalidModelID):
		writeBadRequest(w, err.Error())
	case errors.Is(err, modelimage.ErrNotSupported):
		writeError(w, http.StatusNotImplemented, ErrCodeInternal, "operation not supported by image storage")
	default:
		writeInternalError(w, "image storage error")
	}
}
