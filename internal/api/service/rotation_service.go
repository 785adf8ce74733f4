package service

import (
	"context"
	"time"

	"github.com/remiblancher/mtls-identity/internal/api/dto"
	"github.com/remiblancher/mtls-identity/internal/ca"
	"github.com/remiblancher/mtls-identity/internal/rotation"
)

// RotationService reports the issuing side's rotation judgment for
// issued certificates.
type RotationService struct {
	store     *ca.Store
	threshold int
	now       func() time.Time
}

// NewRotationService creates a new RotationService. The threshold is
// clamped like the device-side engine's: 0 selects the default window.
func NewRotationService(store *ca.Store, threshold int) *RotationService {
	return &RotationService{store: store, threshold: rotation.ClampThreshold(threshold), now: time.Now}
}

// Status computes the rotation status for the certificate with the
// given subject common name.
func (s *RotationService) Status(ctx context.Context, certName string) (*dto.RotationStatusResponse, error) {
	cert, err := s.store.FindByCommonName(certName)
	if err != nil {
		return nil, err
	}

	now := s.now()
	expired := now.After(cert.NotAfter)
	days := 0
	if !expired {
		days = int(cert.NotAfter.Sub(now).Hours() / 24)
	}

	return &dto.RotationStatusResponse{
		CertName:            certName,
		ValidTo:             cert.NotAfter.UTC().Format(time.RFC3339),
		DaysUntilExpiry:     days,
		RotationRequired:    expired || days <= s.threshold,
		RotationRecommended: expired || days <= rotation.RecommendedWindow,
	}, nil
}
