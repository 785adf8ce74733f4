package enroll

import (
	"bytes"
	"context"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Request is the versioned enrollment request submitted to the CA.
// There is exactly one wire schema; the format is never inferred.
type Request struct {
	// CSR is the DER-encoded PKCS#10 request.
	CSR []byte

	// DeviceID identifies the enrolling device.
	DeviceID string

	// CommonName is the requested certificate common name.
	CommonName string
}

// Transport submits enrollment requests to the certificate authority.
type Transport interface {
	// Submit sends the request and returns the issued certificate.
	// Implementations carry a bounded timeout and fail fast; they do
	// not retry.
	Submit(ctx context.Context, req Request) (*x509.Certificate, error)
}

// Wire types for the enrollment endpoint.
type enrollWireRequest struct {
	CSR        string `json:"csr"`
	DeviceID   string `json:"deviceId"`
	CommonName string `json:"commonName"`
}

type enrollWireResponse struct {
	Success     bool   `json:"success"`
	Certificate string `json:"certificate"`
	DeviceID    string `json:"deviceId"`
	CommonName  string `json:"commonName"`
	ValidFor    int    `json:"validFor"`
	Error       string `json:"error"`
	Details     string `json:"details"`
}

// DefaultSubmitTimeout bounds a single CSR submission.
const DefaultSubmitTimeout = 30 * time.Second

// HTTPTransport submits enrollment requests over HTTP(S).
type HTTPTransport struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

// Ensure HTTPTransport implements Transport.
var _ Transport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a transport for the given base URL. The
// client's TLS configuration decides how the server is authenticated;
// a zero timeout selects DefaultSubmitTimeout.
func NewHTTPTransport(baseURL string, client *http.Client, timeout time.Duration) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = DefaultSubmitTimeout
	}
	return &HTTPTransport{
		baseURL: baseURL,
		client:  client,
		timeout: timeout,
	}
}

// Submit sends the enrollment request to POST {base}/api/v1/enroll.
func (t *HTTPTransport) Submit(ctx context.Context, req Request) (*x509.Certificate, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	body, err := json.Marshal(enrollWireRequest{
		CSR:        base64.StdEncoding.EncodeToString(req.CSR),
		DeviceID:   req.DeviceID,
		CommonName: req.CommonName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/api/v1/enroll", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to submit CSR: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var wire enrollWireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if resp.StatusCode != http.StatusOK || !wire.Success {
		reason := wire.Error
		if reason == "" {
			reason = resp.Status
		}
		if wire.Details != "" {
			reason = reason + ": " + wire.Details
		}
		return nil, &RejectionError{Reason: reason}
	}

	der, err := base64.StdEncoding.DecodeString(wire.Certificate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return cert, nil
}
