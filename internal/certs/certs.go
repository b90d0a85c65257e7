// Package certs keeps the self-signed certificate used when the upload front
// end serves HTTPS.
package certs

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"
)

const (
	certName = "rxsync.crt"
	keyName  = "rxsync.key"

	// ValidFor is the lifetime of an issued certificate.
	ValidFor = 365 * 24 * time.Hour
	// RenewBefore is how close to expiry a stored certificate is replaced.
	RenewBefore = 7 * 24 * time.Hour
)

// Store loads or issues a certificate kept as a PEM pair in one directory.
type Store struct {
	dir      string
	certFile string
	keyFile  string
	hosts    []string
	now      func() time.Time
}

// NewStore returns a Store for dir. The certificate always covers localhost and
// the loopback addresses; hosts adds further names or IPs.
func NewStore(dir string, hosts ...string) *Store {
	all := []string{"localhost", "127.0.0.1", "::1"}
	for _, h := range hosts {
		if h != "" && !contains(all, h) {
			all = append(all, h)
		}
	}
	return &Store{
		dir:      dir,
		certFile: filepath.Join(dir, certName),
		keyFile:  filepath.Join(dir, keyName),
		hosts:    all,
		now:      time.Now,
	}
}

// Hosts returns the names and addresses the certificate must cover.
func (s *Store) Hosts() []string {
	return s.hosts
}

// Certificate returns the stored certificate, issuing a new one when none
// exists or the stored one is unreadable, expiring or missing a host.
func (s *Store) Certificate() (tls.Certificate, error) {
	exists, err := s.Exists()
	if err != nil {
		return tls.Certificate{}, err
	}
	if exists {
		cert, err := tls.LoadX509KeyPair(s.certFile, s.keyFile)
		if err == nil {
			if err = s.check(cert); err == nil {
				return cert, nil
			}
		}
		slog.Info("Replacing stored certificate", "dir", s.dir, "reason", err)
	}
	return s.issue()
}

// Exists reports whether both halves of the key pair are on disk.
func (s *Store) Exists() (bool, error) {
	for _, path := range []string{s.certFile, s.keyFile} {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return false, nil
			}
			return false, fmt.Errorf("failed to check %s: %w", path, err)
		}
	}
	return true, nil
}

func (s *Store) issue() (tls.Certificate, error) {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to create certificate directory: %w", err)
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to generate private key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to generate serial number: %w", err)
	}

	now := s.now()
	template := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{"rxsync"}, CommonName: "rxsync upload server"},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(ValidFor),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	for _, h := range s.hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to create certificate: %w", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to encode private key: %w", err)
	}

	if err := writePEM(s.keyFile, "EC PRIVATE KEY", keyDER); err != nil {
		return tls.Certificate{}, err
	}
	if err := writePEM(s.certFile, "CERTIFICATE", der); err != nil {
		return tls.Certificate{}, err
	}

	slog.Info("Issued self-signed certificate", "file", s.certFile, "hosts", s.hosts, "expires", template.NotAfter)
	return tls.LoadX509KeyPair(s.certFile, s.keyFile)
}

func (s *Store) check(cert tls.Certificate) error {
	if len(cert.Certificate) == 0 {
		return errors.New("no certificate in key pair")
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return fmt.Errorf("failed to parse certificate: %w", err)
	}

	now := s.now()
	if now.Before(leaf.NotBefore) {
		return errors.New("certificate not yet valid")
	}
	if now.Add(RenewBefore).After(leaf.NotAfter) {
		return fmt.Errorf("certificate expires %s", leaf.NotAfter.Format(time.DateOnly))
	}
	for _, h := range s.hosts {
		if err := leaf.VerifyHostname(h); err != nil {
			return fmt.Errorf("certificate does not cover %s: %w", h, err)
		}
	}
	return nil
}

func writePEM(path, blockType string, der []byte) error {
	data := pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
