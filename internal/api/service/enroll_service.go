// Package service provides business logic for the REST API.
package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"

	"github.com/remiblancher/mtls-identity/internal/api/dto"
	"github.com/remiblancher/mtls-identity/internal/api/metrics"
	"github.com/remiblancher/mtls-identity/internal/audit"
	"github.com/remiblancher/mtls-identity/internal/ca"
)

// EnrollService signs device CSRs against the certificate authority.
type EnrollService struct {
	authority    *ca.Authority
	validityDays int
	auditLog     audit.Log
}

// NewEnrollService creates a new EnrollService. validityDays of 0 uses
// the authority's default; a nil auditLog disables audit recording.
func NewEnrollService(authority *ca.Authority, validityDays int, auditLog audit.Log) *EnrollService {
	if auditLog == nil {
		auditLog = audit.NopLog{}
	}
	return &EnrollService{authority: authority, validityDays: validityDays, auditLog: auditLog}
}

// Enroll decodes the request's CSR and issues a client certificate.
// Devices generate their own keys; only the CSR crosses the wire.
func (s *EnrollService) Enroll(ctx context.Context, req *dto.EnrollRequest) (*dto.EnrollResponse, error) {
	csrDER, err := base64.StdEncoding.DecodeString(req.CSR)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64 encoding", ca.ErrMalformedCSR)
	}

	cert, err := s.authority.IssueCertificate(ca.IssueRequest{
		CSR:          csrDER,
		Role:         ca.RoleClient,
		ValidityDays: s.validityDays,
	})
	if err != nil {
		metrics.EnrollmentsTotal.WithLabelValues("rejected").Inc()
		rejected := audit.NewEvent(audit.EventEnrollRejected, audit.OutcomeFailure)
		rejected.DeviceID = req.DeviceID
		rejected.Reason = err.Error()
		if auditErr := s.auditLog.Append(rejected); auditErr != nil {
			log.Printf("audit append failed: %v", auditErr)
		}
		return nil, err
	}

	issued := audit.NewEvent(audit.EventCertIssued, audit.OutcomeSuccess)
	issued.DeviceID = req.DeviceID
	issued.Subject = cert.Subject.String()
	issued.Serial = cert.SerialNumber.String()
	issued.Role = string(ca.RoleClient)
	if err := s.auditLog.Append(issued); err != nil {
		// An issuance the audit trail cannot account for must not reach
		// the device.
		return nil, fmt.Errorf("failed to record issuance audit event: %w", err)
	}

	metrics.EnrollmentsTotal.WithLabelValues("issued").Inc()
	metrics.CertificatesIssuedTotal.WithLabelValues(string(ca.RoleClient)).Inc()
	log.Printf("enrolled device %s as %q (serial %x)", req.DeviceID, cert.Subject.CommonName, cert.SerialNumber)

	validFor := int(cert.NotAfter.Sub(cert.NotBefore).Hours() / 24)
	return &dto.EnrollResponse{
		Success:     true,
		Certificate: base64.StdEncoding.EncodeToString(cert.Raw),
		DeviceID:    req.DeviceID,
		CommonName:  cert.Subject.CommonName,
		ValidFor:    validFor,
	}, nil
}
