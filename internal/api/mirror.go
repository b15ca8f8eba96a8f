package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/iot-portal/internal/concentrator"
	"github.com/nerrad567/iot-portal/internal/device"
	"github.com/nerrad567/iot-portal/internal/edgedevice"
)

// Read-only endpoints over the tables kept in sync with the registry.

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.devices.List(r.Context())
	if err != nil {
		s.logger.Error("listing devices", "error", err)
		writeInternalError(w, "failed to list devices")
		return
	}
	if devices == nil {
		devices = []device.Device{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	dev, err := s.devices.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("getting device", "error", err, "device_id", chi.URLParam(r, "id"))
		writeInternalError(w, "failed to get device")
		return
	}
	writeJSON(w, http.StatusOK, dev)
}

func (s *Server) handleListConcentrators(w http.ResponseWriter, r *http.Request) {
	items, err := s.concentrators.List(r.Context())
	if err != nil {
		s.logger.Error("listing concentrators", "error", err)
		writeInternalError(w, "failed to list concentrators")
		return
	}
	if items == nil {
		items = []concentrator.Concentrator{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"concentrators": items, "count": len(items)})
}

func (s *Server) handleGetConcentrator(w http.ResponseWriter, r *http.Request) {
	c, err := s.concentrators.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, concentrator.ErrNotFound) {
			writeNotFound(w, "concentrator not found")
			return
		}
		s.logger.Error("getting concentrator", "error", err, "concentrator_id", chi.URLParam(r, "id"))
		writeInternalError(w, "failed to get concentrator")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleListEdgeDevices(w http.ResponseWriter, r *http.Request) {
	items, err := s.edgeDevices.List(r.Context())
	if err != nil {
		s.logger.Error("listing edge devices", "error", err)
		writeInternalError(w, "failed to list edge devices")
		return
	}
	if items == nil {
		items = []edgedevice.EdgeDevice{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"edge_devices": items, "count": len(items)})
}

func (s *Server) handleGetEdgeDevice(w http.ResponseWriter, r *http.Request) {
	e, err := s.edgeDevices.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, edgedevice.ErrNotFound) {
			writeNotFound(w, "edge device not found")
			return
		}
		s.logger.Error("getting edge device", "error", err, "edge_device_id", chi.URLParam(r, "id"))
		writeInternalError(w, "failed to get edge device")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// handleListGateways returns the in-memory LoRaWAN gateway ID list.
func (s *Server) handleListGateways(w http.ResponseWriter, _ *http.Request) {
	ids, at := s.gateways.Snapshot()
	resp := map[string]any{
		"gateway_ids": ids,
		"count":       len(ids),
	}
	if !at.IsZero() {
		resp["updated_at"] = at
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetGateway answers 200 when id is a known gateway, 404 otherwise.
func (s *Server) handleGetGateway(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.gateways.Contains(id) {
		writeNotFound(w, "gateway not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"gateway_id": id})
}
