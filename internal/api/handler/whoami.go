package handler

import (
	"net/http"
	"time"

	"github.com/remiblancher/mtls-identity/internal/api/dto"
	"github.com/remiblancher/mtls-identity/internal/trust"
)

// WhoamiHandler echoes the identity claims carried by the caller's
// client certificate.
type WhoamiHandler struct{}

// NewWhoamiHandler creates a new WhoamiHandler.
func NewWhoamiHandler() *WhoamiHandler {
	return &WhoamiHandler{}
}

// Whoami handles GET /api/v1/whoami
func (h *WhoamiHandler) Whoami(w http.ResponseWriter, r *http.Request) {
	// RequireClientCert guarantees a peer certificate is present.
	claims := trust.ExtractClaims(r.TLS.PeerCertificates[0])

	respondJSON(w, http.StatusOK, dto.ClaimsResponse{
		CommonName:         claims.CommonName,
		Organization:       claims.Organization,
		OrganizationalUnit: claims.OrganizationalUnit,
		Country:            claims.Country,
		State:              claims.State,
		Locality:           claims.Locality,
		ValidFrom:          claims.ValidFrom.UTC().Format(time.RFC3339),
		ValidTo:            claims.ValidTo.UTC().Format(time.RFC3339),
		IssuerCommonName:   claims.IssuerCommonName,
		FingerprintSHA256:  claims.FingerprintSHA256,
		SerialNumber:       claims.SerialNumber,
	})
}
