package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/remiblancher/mtls-identity/internal/api/errors"
	"github.com/remiblancher/mtls-identity/internal/api/service"
)

// RotationHandler handles rotation status requests.
type RotationHandler struct {
	service *service.RotationService
}

// NewRotationHandler creates a new RotationHandler.
func NewRotationHandler(rotationService *service.RotationService) *RotationHandler {
	return &RotationHandler{service: rotationService}
}

// Status handles GET /api/v1/rotation/{name}
func (h *RotationHandler) Status(w http.ResponseWriter, r *http.Request) {
	certName := chi.URLParam(r, "name")
	if certName == "" {
		respondError(w, http.StatusBadRequest, apierrors.NewBadRequest("Certificate name is required"))
		return
	}

	resp, err := h.service.Status(r.Context(), certName)
	if err != nil {
		status, apiErr := apierrors.MapError(err)
		respondError(w, status, apiErr)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}
