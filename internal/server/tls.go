package server

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/acme/autocert"
)

// listen serves srv with the configured TLS mode.
func (s *Server) listen(srv *http.Server) error {
	switch s.cfg.TLSMode {
	case "autocert":
		return s.listenAutocert(srv)
	case "selfsigned":
		return s.listenSelfSigned(srv)
	case "manual":
		return s.listenManualCert(srv)
	default:
		s.logger.Info("starting HTTP server", "addr", srv.Addr)
		return srv.ListenAndServe()
	}
}

func (s *Server) listenAutocert(srv *http.Server) error {
	if s.cfg.Domain == "" {
		return fmt.Errorf("domain is required for autocert TLS mode")
	}

	if err := os.MkdirAll(s.cfg.CertCacheDir, 0700); err != nil {
		return fmt.Errorf("create cert cache dir: %w", err)
	}

	m := &autocert.Manager{
		Cache:      autocert.DirCache(s.cfg.CertCacheDir),
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(s.cfg.Domain),
	}

	// ACME HTTP-01 challenges arrive on port 80.
	challenge := &http.Server{
		Addr:              ":80",
		Handler:           m.HTTPHandler(nil),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(func() { challenge.Close() })
	go func() {
		s.logger.Info("starting HTTP challenge listener", "addr", challenge.Addr)
		if err := challenge.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP challenge listener error", "err", err)
		}
	}()

	srv.TLSConfig = m.TLSConfig()
	s.logger.Info("starting HTTPS server (autocert)",
		"addr", srv.Addr,
		"domain", s.cfg.Domain)

	return srv.ListenAndServeTLS("", "")
}

func (s *Server) listenSelfSigned(srv *http.Server) error {
	certFile, keyFile, err := s.ensureSelfSignedCert()
	if err != nil {
		return fmt.Errorf("self-signed cert: %w", err)
	}

	s.logger.Info("starting HTTPS server (self-signed)",
		"addr", srv.Addr,
		"cert", certFile)

	return srv.ListenAndServeTLS(certFile, keyFile)
}

func (s *Server) listenManualCert(srv *http.Server) error {
	if s.cfg.CertFile == "" || s.cfg.KeyFile == "" {
		return fmt.Errorf("cert_file and key_file are required for manual TLS mode")
	}

	s.logger.Info("starting HTTPS server (manual cert)",
		"addr", srv.Addr,
		"cert", s.cfg.CertFile)

	return srv.ListenAndServeTLS(s.cfg.CertFile, s.cfg.KeyFile)
}

// ensureSelfSignedCert returns a cached self-signed pair, generating a new
// one when none exists or the cached one expires within a day.
func (s *Server) ensureSelfSignedCert() (certFile, keyFile string, err error) {
	if err := os.MkdirAll(s.cfg.CertCacheDir, 0700); err != nil {
		return "", "", fmt.Errorf("create cert dir: %w", err)
	}

	certFile = filepath.Join(s.cfg.CertCacheDir, "selfsigned.crt")
	keyFile = filepath.Join(s.cfg.CertCacheDir, "selfsigned.key")
	if certValidFor(certFile, keyFile, 24*time.Hour) {
		return certFile, keyFile, nil
	}

	s.logger.Info("generating self-signed certificate")

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generate key: %w", err)
	}
	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return "", "", fmt.Errorf("generate serial: %w", err)
	}

	dnsNames := []string{"localhost"}
	if host, err := os.Hostname(); err == nil && host != "" {
		dnsNames = append(dnsNames, host)
	}
	if s.cfg.Domain != "" {
		dnsNames = append(dnsNames, s.cfg.Domain)
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{"CoreSight"},
			CommonName:   "CoreSight Server",
		},
		NotBefore:             now,
		NotAfter:              now.Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1"), net.ParseIP("::1")},
		DNSNames:              dnsNames,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return "", "", fmt.Errorf("create certificate: %w", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return "", "", fmt.Errorf("marshal key: %w", err)
	}

	if err := writePEM(certFile, 0644, "CERTIFICATE", certDER); err != nil {
		return "", "", fmt.Errorf("write cert: %w", err)
	}
	if err := writePEM(keyFile, 0600, "EC PRIVATE KEY", keyDER); err != nil {
		return "", "", fmt.Errorf("write key: %w", err)
	}

	s.logger.Info("self-signed certificate generated",
		"cert", certFile,
		"expires", template.NotAfter.Format("2006-01-02"))

	return certFile, keyFile, nil
}

func certValidFor(certFile, keyFile string, d time.Duration) bool {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return false
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return false
	}
	return leaf.NotAfter.After(time.Now().Add(d))
}

func writePEM(path string, perm os.FileMode, blockType string, der []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if err := pem.Encode(f, &pem.Block{Type: blockType, Bytes: der}); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
