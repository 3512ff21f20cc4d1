package ssh

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/ssh"
)

func Test_completeConfig(t *testing.T) {
	for _, tc := range []struct {
		host string
		want string
	}{
		{"10.0.0.1", "10.0.0.1:22"},
		{"10.0.0.1:2222", "10.0.0.1:2222"},
		{"node-1", "node-1:22"},
	} {
		c := completeConfig(Config{User: "frost", Host: tc.host})
		if c.Host != tc.want || c.User != "frost" {
			t.Errorf("completeConfig(%q) = %+v, want host %q", tc.host, c, tc.want)
		}
	}
}

func writeKey(t *testing.T) string {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	block, err := ssh.MarshalPrivateKey(priv, "")
	if err != nil {
		t.Fatal(err)
	}
	name := filepath.Join(t.TempDir(), "id_ed25519")
	if err := os.WriteFile(name, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatal(err)
	}
	return name
}

func Test_authMethods(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")
	methods, err := authMethods(writeKey(t))
	if err != nil {
		t.Fatal(err)
	}
	if len(methods) != 1 {
		t.Errorf("got %d auth methods, want 1", len(methods))
	}
	if _, err := authMethods(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("authMethods with a missing key file succeeded")
	}
	t.Setenv("HOME", t.TempDir())
	if _, err := authMethods(""); err != errNoAuthMethod {
		t.Errorf("authMethods without keys = %v, want %v", err, errNoAuthMethod)
	}
}
