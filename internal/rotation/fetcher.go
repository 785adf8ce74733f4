package rotation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/patrickmn/go-cache"
)

// DefaultFetchTimeout bounds a single remote status request.
const DefaultFetchTimeout = 10 * time.Second

// remoteCacheTTL keeps on-demand evaluations from hammering the server.
const remoteCacheTTL = 5 * time.Minute

// rotationWireStatus mirrors the GET /api/v1/rotation/{name} payload.
type rotationWireStatus struct {
	CertName            string `json:"certName"`
	ValidTo             string `json:"validTo"`
	DaysUntilExpiry     int    `json:"daysUntilExpiry"`
	RotationRequired    bool   `json:"rotationRequired"`
	RotationRecommended bool   `json:"rotationRecommended"`
}

// HTTPFetcher fetches rotation status from the enrollment server.
// Results are cached briefly so repeated evaluations of the same
// certificate reuse one request.
type HTTPFetcher struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	cache   *cache.Cache
}

// NewHTTPFetcher creates a fetcher for the given server base URL.
// A nil client falls back to http.DefaultClient.
func NewHTTPFetcher(baseURL string, client *http.Client) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{
		baseURL: baseURL,
		client:  client,
		timeout: DefaultFetchTimeout,
		cache:   cache.New(remoteCacheTTL, 2*remoteCacheTTL),
	}
}

// Fetch implements StatusFetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, certName string) (*RemoteStatus, error) {
	if cached, ok := f.cache.Get(certName); ok {
		status := cached.(RemoteStatus)
		return &status, nil
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	endpoint := f.baseURL + "/api/v1/rotation/" + url.PathEscape(certName)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build rotation request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rotation status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rotation status request failed: %s", resp.Status)
	}

	var wire rotationWireStatus
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("failed to decode rotation status: %w", err)
	}

	status := RemoteStatus{
		Required:    wire.RotationRequired,
		Recommended: wire.RotationRecommended,
	}
	f.cache.Set(certName, status, cache.DefaultExpiration)
	return &status, nil
}
