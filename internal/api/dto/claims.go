package dto

// ClaimsResponse echoes the identity claims extracted from the caller's
// client certificate.
type ClaimsResponse struct {
	CommonName         string `json:"cn"`
	Organization       string `json:"o,omitempty"`
	OrganizationalUnit string `json:"ou,omitempty"`
	Country            string `json:"c,omitempty"`
	State              string `json:"st,omitempty"`
	Locality           string `json:"l,omitempty"`
	ValidFrom          string `json:"validFrom"`
	ValidTo            string `json:"validTo"`
	IssuerCommonName   string `json:"issuerCn,omitempty"`
	FingerprintSHA256  string `json:"fingerprintSha256"`
	SerialNumber       string `json:"serialNumber"`
}
