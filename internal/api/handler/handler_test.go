package handler

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remiblancher/mtls-identity/internal/api/dto"
	"github.com/remiblancher/mtls-identity/internal/api/service"
	"github.com/remiblancher/mtls-identity/internal/ca"
)

func newTestAuthority(t *testing.T) *ca.Authority {
	t.Helper()

	authority, err := ca.InitializeAuthority(ca.NewStore(t.TempDir()), ca.Config{
		CommonName: "Test Root CA",
		Passphrase: "test-passphrase",
	})
	require.NoError(t, err)
	return authority
}

func newCSRBase64(t *testing.T, commonName string) string {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.CreateCertificateRequest(rand.Reader, &x509.CertificateRequest{
		Subject: pkix.Name{CommonName: commonName},
	}, key)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(der)
}

func postEnroll(t *testing.T, h *EnrollHandler, body any) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/enroll", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	h.Enroll(rec, req)
	return rec
}

func TestF_EnrollHandler_Success(t *testing.T) {
	authority := newTestAuthority(t)
	h := NewEnrollHandler(service.NewEnrollService(authority, 0, nil))

	rec := postEnroll(t, h, dto.EnrollRequest{
		CSR:        newCSRBase64(t, "dev-01"),
		DeviceID:   "dev-01",
		CommonName: "dev-01",
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.EnrollResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "dev-01", resp.CommonName)
	assert.Equal(t, "dev-01", resp.DeviceID)
	assert.Equal(t, 365, resp.ValidFor)

	der, err := base64.StdEncoding.DecodeString(resp.Certificate)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	assert.Equal(t, []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth}, cert.ExtKeyUsage)
	assert.NoError(t, cert.CheckSignatureFrom(authority.Certificate()))
}

func TestU_EnrollHandler_MissingFields(t *testing.T) {
	authority := newTestAuthority(t)
	h := NewEnrollHandler(service.NewEnrollService(authority, 0, nil))

	csr := newCSRBase64(t, "dev-01")
	tests := []struct {
		name string
		req  dto.EnrollRequest
	}{
		{"missing csr", dto.EnrollRequest{DeviceID: "dev-01", CommonName: "dev-01"}},
		{"missing deviceId", dto.EnrollRequest{CSR: csr, CommonName: "dev-01"}},
		{"missing commonName", dto.EnrollRequest{CSR: csr, DeviceID: "dev-01"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postEnroll(t, h, tt.req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestU_EnrollHandler_InvalidJSON(t *testing.T) {
	authority := newTestAuthority(t)
	h := NewEnrollHandler(service.NewEnrollService(authority, 0, nil))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/enroll", bytes.NewReader([]byte("{broken")))
	rec := httptest.NewRecorder()
	h.Enroll(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestF_EnrollHandler_MalformedCSR(t *testing.T) {
	authority := newTestAuthority(t)
	h := NewEnrollHandler(service.NewEnrollService(authority, 0, nil))

	rec := postEnroll(t, h, dto.EnrollRequest{
		CSR:        base64.StdEncoding.EncodeToString([]byte("junk")),
		DeviceID:   "dev-01",
		CommonName: "dev-01",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp dto.EnrollResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
}

func getWithParam(t *testing.T, path, param, value string, fn http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(param, value)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rec := httptest.NewRecorder()
	fn(rec, req)
	return rec
}

func TestF_RotationHandler_Status(t *testing.T) {
	authority := newTestAuthority(t)
	enroll := NewEnrollHandler(service.NewEnrollService(authority, 0, nil))
	postEnroll(t, enroll, dto.EnrollRequest{
		CSR:        newCSRBase64(t, "dev-01"),
		DeviceID:   "dev-01",
		CommonName: "dev-01",
	})

	h := NewRotationHandler(service.NewRotationService(authority.Store(), 14))
	rec := getWithParam(t, "/api/v1/rotation/dev-01", "name", "dev-01", h.Status)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.RotationStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "dev-01", resp.CertName)
	// A freshly issued certificate is valid for a year.
	assert.False(t, resp.RotationRequired)
	assert.False(t, resp.RotationRecommended)
	assert.Greater(t, resp.DaysUntilExpiry, 300)
}

func TestU_RotationHandler_Unknown(t *testing.T) {
	authority := newTestAuthority(t)
	h := NewRotationHandler(service.NewRotationService(authority.Store(), 14))

	rec := getWithParam(t, "/api/v1/rotation/absent", "name", "absent", h.Status)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestF_BundleHandler_Bundle(t *testing.T) {
	authority := newTestAuthority(t)
	enroll := NewEnrollHandler(service.NewEnrollService(authority, 0, nil))
	postEnroll(t, enroll, dto.EnrollRequest{
		CSR:        newCSRBase64(t, "dev-01"),
		DeviceID:   "dev-01",
		CommonName: "dev-01",
	})

	h := NewBundleHandler(service.NewBundleService(authority.Store()))
	rec := getWithParam(t, "/api/v1/bundle/dev-01", "name", "dev-01", h.Bundle)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-pem-file", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "BEGIN CERTIFICATE")
}

func TestU_BundleHandler_Unknown(t *testing.T) {
	authority := newTestAuthority(t)
	h := NewBundleHandler(service.NewBundleService(authority.Store()))

	rec := getWithParam(t, "/api/v1/bundle/absent", "name", "absent", h.Bundle)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestU_HealthHandler(t *testing.T) {
	h := NewHealthHandler("test", func() bool { return true })

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "test", resp.Version)
}

func TestU_ReadyHandler_NotReady(t *testing.T) {
	h := NewHealthHandler("test", func() bool { return false })

	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
