package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/remiblancher/mtls-identity/internal/api/errors"
	"github.com/remiblancher/mtls-identity/internal/api/service"
)

// BundleHandler serves certificate bundles for issued identities.
type BundleHandler struct {
	service *service.BundleService
}

// NewBundleHandler creates a new BundleHandler.
func NewBundleHandler(bundleService *service.BundleService) *BundleHandler {
	return &BundleHandler{service: bundleService}
}

// Bundle handles GET /api/v1/bundle/{name}
func (h *BundleHandler) Bundle(w http.ResponseWriter, r *http.Request) {
	certName := chi.URLParam(r, "name")
	if certName == "" {
		respondError(w, http.StatusBadRequest, apierrors.NewBadRequest("Certificate name is required"))
		return
	}

	bundle, err := h.service.Bundle(r.Context(), certName)
	if err != nil {
		status, apiErr := apierrors.MapError(err)
		respondError(w, status, apiErr)
		return
	}

	w.Header().Set("Content-Type", "application/x-pem-file")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(bundle)
}
