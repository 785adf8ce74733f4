package service

import (
	"context"

	"github.com/remiblancher/mtls-identity/internal/ca"
	"github.com/remiblancher/mtls-identity/internal/x509util"
)

// BundleService exports certificate bundles for issued identities.
type BundleService struct {
	store *ca.Store
}

// NewBundleService creates a new BundleService.
func NewBundleService(store *ca.Store) *BundleService {
	return &BundleService{store: store}
}

// Bundle returns the PEM bundle for a certificate name: the issued
// certificate followed by the CA certificate. Returns ca.ErrCertNotFound
// when no certificate matches.
func (s *BundleService) Bundle(ctx context.Context, certName string) ([]byte, error) {
	cert, err := s.store.FindByCommonName(certName)
	if err != nil {
		return nil, err
	}

	caCert, err := s.store.LoadCACert()
	if err != nil {
		return nil, err
	}

	bundle := x509util.EncodeCertPEM(cert)
	bundle = append(bundle, x509util.EncodeCertPEM(caCert)...)
	return bundle, nil
}
