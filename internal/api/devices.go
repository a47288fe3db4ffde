package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/ponbike-core/internal/device"
)

// handleListDevices returns every registered bike, including bikes that
// have dropped out of the vendor's device list since they were registered.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	if s.registry == nil {
		writeUnavailable(w, "device registry not configured")
		return
	}
	devices := s.registry.ListDevices()
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single registered device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		writeUnavailable(w, "device registry not configured")
		return
	}

	dev, err := s.registry.GetDevice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, dev)
}
