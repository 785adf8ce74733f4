package trust

import (
	"crypto/tls"
	"crypto/x509"
)

// ServerTLSConfig builds a TLS configuration for an mTLS server. Client
// certificates are requested but not required at the handshake layer; the
// enrollment endpoint must stay reachable without one, so per-route
// enforcement happens in middleware. Presented chains are still validated
// against the pinned CA.
func ServerTLSConfig(identity tls.Certificate, validator *Validator) *tls.Config {
	clientCAs := x509.NewCertPool()
	clientCAs.AddCert(validator.Pinned())

	return &tls.Config{
		Certificates:          []tls.Certificate{identity},
		ClientCAs:             clientCAs,
		ClientAuth:            tls.VerifyClientCertIfGiven,
		MinVersion:            tls.VersionTLS12,
		VerifyPeerCertificate: validator.VerifyPeerCertificate(""),
	}
}

// ClientTLSConfig builds a TLS configuration for a client that pins the
// server's CA. serverName is verified against the server leaf.
func ClientTLSConfig(validator *Validator, serverName string) *tls.Config {
	roots := x509.NewCertPool()
	roots.AddCert(validator.Pinned())

	return &tls.Config{
		RootCAs:    roots,
		ServerName: serverName,
		MinVersion: tls.VersionTLS12,
	}
}

// ClientTLSConfigWithIdentity is ClientTLSConfig plus a client certificate
// for mutual authentication.
func ClientTLSConfigWithIdentity(identity tls.Certificate, validator *Validator, serverName string) *tls.Config {
	cfg := ClientTLSConfig(validator, serverName)
	cfg.Certificates = []tls.Certificate{identity}
	return cfg
}
