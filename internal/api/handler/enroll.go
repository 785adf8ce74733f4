package handler

import (
	"encoding/json"
	"net/http"

	"github.com/remiblancher/mtls-identity/internal/api/dto"
	apierrors "github.com/remiblancher/mtls-identity/internal/api/errors"
	"github.com/remiblancher/mtls-identity/internal/api/service"
)

// EnrollHandler handles device enrollment requests.
type EnrollHandler struct {
	service *service.EnrollService
}

// NewEnrollHandler creates a new EnrollHandler.
func NewEnrollHandler(enrollService *service.EnrollService) *EnrollHandler {
	return &EnrollHandler{service: enrollService}
}

// Enroll handles POST /api/v1/enroll
func (h *EnrollHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	var req dto.EnrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, apierrors.NewBadRequest("Invalid JSON request body"))
		return
	}

	// All three fields are mandatory; reject before touching the CA.
	switch {
	case req.CSR == "":
		respondError(w, http.StatusBadRequest, apierrors.NewBadRequest("csr is required"))
		return
	case req.DeviceID == "":
		respondError(w, http.StatusBadRequest, apierrors.NewBadRequest("deviceId is required"))
		return
	case req.CommonName == "":
		respondError(w, http.StatusBadRequest, apierrors.NewBadRequest("commonName is required"))
		return
	}

	resp, err := h.service.Enroll(r.Context(), &req)
	if err != nil {
		status, apiErr := apierrors.MapError(err)
		respondJSON(w, status, dto.EnrollResponse{
			Success:  false,
			DeviceID: req.DeviceID,
			Error:    apiErr.Code,
			Details:  apiErr.Message,
		})
		return
	}

	respondJSON(w, http.StatusOK, resp)
}
