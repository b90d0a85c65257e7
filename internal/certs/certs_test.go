package certs

import (
	"crypto/tls"
	"crypto/x509"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leaf(t *testing.T, cert tls.Certificate) *x509.Certificate {
	t.Helper()
	require.Len(t, cert.Certificate, 1)
	parsed, err := x509.ParseCertificate(cert.Certificate[0])
	require.NoError(t, err)
	return parsed
}

func TestStore_Certificate(t *testing.T) {
	tests := []struct {
		setup         func(t *testing.T, dir string)
		validate      func(t *testing.T, dir string, cert *x509.Certificate)
		name          string
		errorContains string
		hosts         []string
	}{
		{
			name: "issues a certificate when none exists",
			validate: func(t *testing.T, _ string, cert *x509.Certificate) {
				t.Helper()
				assert.Equal(t, []string{"rxsync"}, cert.Subject.Organization)
				assert.Contains(t, cert.DNSNames, "localhost")
				assert.NoError(t, cert.VerifyHostname("127.0.0.1"))
				assert.True(t, cert.NotAfter.After(time.Now().Add(ValidFor-time.Hour)))
			},
		},
		{
			name:  "covers extra hosts",
			hosts: []string{"rxsync.pharmacy.local", "10.0.0.5"},
			validate: func(t *testing.T, _ string, cert *x509.Certificate) {
				t.Helper()
				assert.NoError(t, cert.VerifyHostname("rxsync.pharmacy.local"))
				assert.NoError(t, cert.VerifyHostname("10.0.0.5"))
			},
		},
		{
			name: "reuses a valid stored certificate",
			setup: func(t *testing.T, dir string) {
				t.Helper()
				_, err := NewStore(dir).Certificate()
				require.NoError(t, err)
			},
			validate: func(t *testing.T, dir string, cert *x509.Certificate) {
				t.Helper()
				stored, err := tls.LoadX509KeyPair(filepath.Join(dir, certName), filepath.Join(dir, keyName))
				require.NoError(t, err)
				assert.Equal(t, leaf(t, stored).SerialNumber, cert.SerialNumber)
			},
		},
		{
			name: "replaces unreadable files",
			setup: func(t *testing.T, dir string) {
				t.Helper()
				require.NoError(t, os.MkdirAll(dir, 0o700))
				require.NoError(t, os.WriteFile(filepath.Join(dir, certName), []byte("not a certificate"), 0o600))
				require.NoError(t, os.WriteFile(filepath.Join(dir, keyName), []byte("not a key"), 0o600))
			},
			validate: func(t *testing.T, _ string, cert *x509.Certificate) {
				t.Helper()
				assert.True(t, cert.NotBefore.After(time.Now().Add(-2*time.Minute)))
			},
		},
		{
			name: "replaces a certificate missing a host",
			setup: func(t *testing.T, dir string) {
				t.Helper()
				_, err := NewStore(dir).Certificate()
				require.NoError(t, err)
			},
			hosts: []string{"pharmacy.example"},
			validate: func(t *testing.T, _ string, cert *x509.Certificate) {
				t.Helper()
				assert.NoError(t, cert.VerifyHostname("pharmacy.example"))
			},
		},
		{
			name: "fails when the directory is a file",
			setup: func(t *testing.T, dir string) {
				t.Helper()
				require.NoError(t, os.WriteFile(dir, []byte("not a directory"), 0o600))
			},
			errorContains: "failed to check",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "certs")
			if tt.setup != nil {
				tt.setup(t, dir)
			}

			cert, err := NewStore(dir, tt.hosts...).Certificate()
			if tt.errorContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
				return
			}
			require.NoError(t, err)

			if tt.validate != nil {
				tt.validate(t, dir, leaf(t, cert))
			}

			keyInfo, err := os.Stat(filepath.Join(dir, keyName))
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0o600), keyInfo.Mode().Perm(), "key file should be owner-only")
		})
	}
}

func TestStore_RenewsExpiringCertificate(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	first, err := store.Certificate()
	require.NoError(t, err)

	store.now = func() time.Time { return time.Now().Add(ValidFor - RenewBefore + time.Hour) }
	second, err := store.Certificate()
	require.NoError(t, err)

	assert.NotEqual(t, leaf(t, first).SerialNumber, leaf(t, second).SerialNumber)
}

func TestStore_Exists(t *testing.T) {
	tests := []struct {
		name  string
		files []string
		want  bool
	}{
		{name: "no files"},
		{name: "both files", files: []string{certName, keyName}, want: true},
		{name: "certificate only", files: []string{certName}},
		{name: "key only", files: []string{keyName}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for _, f := range tt.files {
				require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("x"), 0o600))
			}

			exists, err := NewStore(dir).Exists()
			require.NoError(t, err)
			assert.Equal(t, tt.want, exists)
		})
	}
}

func TestNewStore_Hosts(t *testing.T) {
	store := NewStore(t.TempDir(), "", "localhost", "rx.local")
	assert.Equal(t, []string{"localhost", "127.0.0.1", "::1", "rx.local"}, store.Hosts())
}

func TestStore_CheckRejectsEmptyPair(t *testing.T) {
	err := NewStore(t.TempDir()).check(tls.Certificate{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no certificate")
}

func TestStore_IPAddresses(t *testing.T) {
	cert, err := NewStore(t.TempDir()).Certificate()
	require.NoError(t, err)

	var v4, v6 bool
	for _, ip := range leaf(t, cert).IPAddresses {
		v4 = v4 || ip.Equal(net.IPv4(127, 0, 0, 1))
		v6 = v6 || ip.Equal(net.IPv6loopback)
	}
	assert.True(t, v4, "certificate should include IPv4 loopback")
	assert.True(t, v6, "certificate should include IPv6 loopback")
}
