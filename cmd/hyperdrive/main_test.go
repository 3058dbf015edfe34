package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/foxzi/hyperdrive/internal/access"
)

const testSecret = "0123456789abcdef0123"

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(`
server:
  name: test
storage:
  path: %s
api:
  listen_addr: ":18080"
  auth:
    jwt_secret: %s
    issuer: hyperdrive
`, filepath.Join(dir, "hyperdrive.db"), testSecret)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfgFile, orgID = "", ""
	tokenOrg, tokenRole, tokenTTL = "", string(access.RoleViewer), 0
	hashKeyCost = bcrypt.MinCost

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestConfigValidate(t *testing.T) {
	path := writeTestConfig(t)

	out, err := execute(t, "config", "validate", "-c", path)
	if err != nil {
		t.Fatalf("config validate error = %v", err)
	}
	if !strings.Contains(out, "Configuration is valid") || !strings.Contains(out, "bearer token") {
		t.Errorf("output = %q", out)
	}

	if _, err := execute(t, "config", "validate"); err == nil {
		t.Error("expected error without -c")
	}
}

func TestToken(t *testing.T) {
	path := writeTestConfig(t)

	out, err := execute(t, "token", "owner-1", "-c", path, "--org", "org-1", "--role", "owner", "--ttl", "1h")
	if err != nil {
		t.Fatalf("token error = %v", err)
	}

	verifier, err := access.NewTokenVerifier(testSecret, "hyperdrive", time.Minute)
	if err != nil {
		t.Fatalf("NewTokenVerifier: %v", err)
	}
	actor, err := verifier.Verify(strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	want := access.Actor{ID: "owner-1", OrganizationID: "org-1", Role: access.RoleOwner}
	if actor != want {
		t.Errorf("actor = %+v, want %+v", actor, want)
	}

	if _, err := execute(t, "token", "owner-1", "-c", path, "--role", "owner"); err == nil {
		t.Error("expected error for owner without --org")
	}
	if _, err := execute(t, "token", "x", "-c", path, "--role", "wizard"); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestOfflineCommandsOnEmptyStore(t *testing.T) {
	path := writeTestConfig(t)

	out, err := execute(t, "campaigns", "list", "-c", path)
	if err != nil {
		t.Fatalf("campaigns list error = %v", err)
	}
	if !strings.Contains(out, "No campaigns found") {
		t.Errorf("campaigns list = %q", out)
	}

	out, err = execute(t, "enrollments", "expire", "-c", path)
	if err != nil {
		t.Fatalf("enrollments expire error = %v", err)
	}
	if !strings.Contains(out, "Expired 0 enrollments and 0 campaigns") {
		t.Errorf("enrollments expire = %q", out)
	}

	out, err = execute(t, "check", "-c", path)
	if err != nil {
		t.Fatalf("check error = %v", err)
	}
	if !strings.Contains(out, "No problems found") {
		t.Errorf("check = %q", out)
	}

	out, err = execute(t, "wallet", "show", "org-1", "-c", path)
	if err != nil {
		t.Fatalf("wallet show error = %v", err)
	}
	if !strings.Contains(out, "Available:       0.00") {
		t.Errorf("wallet show = %q", out)
	}

	if _, err := execute(t, "campaigns", "show", "missing", "-c", path); err == nil {
		t.Error("expected error for missing campaign")
	}
	if _, err := execute(t, "campaigns", "list", "-c", path, "--status", "bogus"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestTruncateID(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"abc", "abc"},
		{"0123456789", "01234567"},
	}
	for _, tt := range tests {
		if got := truncateID(tt.in); got != tt.want {
			t.Errorf("truncateID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHashKey(t *testing.T) {
	out, err := execute(t, "hash-key", "my-long-api-key-123", "--cost", "4")
	if err != nil {
		t.Fatalf("hash-key error = %v", err)
	}
	hash := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(out), "api_key_hash:"))
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("my-long-api-key-123")); err != nil {
		t.Errorf("hash does not match key: %v", err)
	}

	out, err = execute(t, "hash-key", "--cost", "4")
	if err != nil {
		t.Fatalf("hash-key error = %v", err)
	}
	if !strings.Contains(out, "API key: ") || !strings.Contains(out, "api_key_hash: ") {
		t.Errorf("output = %q", out)
	}

	if _, err := execute(t, "hash-key", "short"); err == nil {
		t.Error("expected error for short key")
	}
}

func TestTLSStatusDisabled(t *testing.T) {
	path := writeTestConfig(t)

	out, err := execute(t, "tls", "status", "-c", path)
	if err != nil {
		t.Fatalf("tls status error = %v", err)
	}
	if !strings.Contains(out, "TLS is disabled") {
		t.Errorf("output = %q", out)
	}
}
