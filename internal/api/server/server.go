package server

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509/pkix"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/remiblancher/mtls-identity/internal/api/router"
	"github.com/remiblancher/mtls-identity/internal/audit"
	"github.com/remiblancher/mtls-identity/internal/ca"
	"github.com/remiblancher/mtls-identity/internal/trust"
	"github.com/remiblancher/mtls-identity/internal/x509util"
)

// Server is the enrollment and rotation HTTPS server.
type Server struct {
	cfg     *Config
	version string
	srv     *http.Server
}

// New creates a new Server.
func New(cfg *Config, version string) *Server {
	return &Server{
		cfg:     cfg,
		version: version,
	}
}

// Start loads the CA, issues the server's own certificate, and serves
// HTTPS until a shutdown signal arrives.
func (s *Server) Start() error {
	store := ca.NewStore(s.cfg.CADir)
	authority, err := ca.Load(store)
	if err != nil {
		return err
	}
	if err := authority.LoadSigner(s.cfg.CAPassphrase); err != nil {
		return err
	}

	identity, err := s.issueServerCertificate(authority)
	if err != nil {
		return fmt.Errorf("failed to issue server certificate: %w", err)
	}

	auditLog, err := audit.OpenFileLog(filepath.Join(s.cfg.CADir, "audit.log"))
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer auditLog.Close()

	loaded := audit.NewEvent(audit.EventCALoaded, audit.OutcomeSuccess)
	loaded.Subject = authority.Certificate().Subject.String()
	if err := auditLog.Append(loaded); err != nil {
		return fmt.Errorf("failed to record startup audit event: %w", err)
	}

	validator := trust.NewValidator(authority.Certificate())

	handler := router.New(&router.Config{
		Version:           s.version,
		Authority:         authority,
		ValidityDays:      s.cfg.ValidityDays,
		RotationThreshold: s.cfg.RotationThreshold,
		AuditLog:          auditLog,
	})

	s.srv = &http.Server{
		Addr:         s.cfg.Address(),
		Handler:      handler,
		TLSConfig:    trust.ServerTLSConfig(identity, validator),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	s.printStartupInfo()

	return s.run()
}

// issueServerCertificate signs a fresh server certificate for this
// process. The key never leaves memory; a new certificate is issued on
// every start.
func (s *Server) issueServerCertificate(authority *ca.Authority) (tls.Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to generate server key: %w", err)
	}

	csrDER, err := x509util.CreateCSR(x509util.CSRRequest{
		Subject:  pkix.Name{CommonName: s.cfg.ServerName},
		DNSNames: []string{s.cfg.ServerName},
		Signer:   key,
	})
	if err != nil {
		return tls.Certificate{}, err
	}

	cert, err := authority.IssueCertificate(ca.IssueRequest{
		CSR:       csrDER,
		Role:      ca.RoleServer,
		Hostnames: []string{s.cfg.ServerName},
	})
	if err != nil {
		return tls.Certificate{}, err
	}

	return tls.Certificate{
		Certificate: [][]byte{cert.Raw, authority.Certificate().Raw},
		PrivateKey:  key,
		Leaf:        cert,
	}, nil
}

// run serves until an error or a shutdown signal.
func (s *Server) run() error {
	errChan := make(chan error, 1)
	go func() {
		// Certificates come from TLSConfig.
		errChan <- s.srv.ListenAndServeTLS("", "")
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-sigChan:
		log.Printf("Received signal %v, shutting down...", sig)
		return s.shutdown()
	}

	return nil
}

// shutdown gracefully stops the server.
func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	log.Println("Server stopped gracefully")
	return nil
}

// printStartupInfo prints server startup information.
func (s *Server) printStartupInfo() {
	fmt.Println()
	fmt.Println("mTLS Identity Server")
	fmt.Println("====================")
	fmt.Printf("  Version:  %s\n", s.version)
	fmt.Printf("  Address:  https://%s\n", s.cfg.Address())
	fmt.Printf("  CA:       %s\n", s.cfg.CADir)
	fmt.Println()
	fmt.Println("Endpoints:")
	fmt.Println("  POST /api/v1/enroll          - Device enrollment")
	fmt.Println("  GET  /api/v1/rotation/{name} - Rotation status (mTLS)")
	fmt.Println("  GET  /api/v1/bundle/{name}   - Certificate bundle (mTLS)")
	fmt.Println("  GET  /api/v1/whoami          - Peer identity claims (mTLS)")
	fmt.Println("  GET  /health                 - Health check")
	fmt.Println("  GET  /ready                  - Readiness check")
	fmt.Println("  GET  /metrics                - Prometheus metrics")
	fmt.Println()
	fmt.Println("Use Ctrl+C to stop")
	fmt.Println()
}
