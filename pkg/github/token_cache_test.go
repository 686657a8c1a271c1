package github

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestFileTokenCacheRoundTrip(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "token.json")
	cache := &FileTokenCache{path: cachePath}

	// Missing file reads as no token, not an error.
	token, err := cache.Get()
	if err != nil {
		t.Fatalf("Get on missing file: %v", err)
	}
	if token != nil {
		t.Error("Get on missing file should return nil token")
	}

	want := &oauth2.Token{
		AccessToken:  "test-access-token",
		TokenType:    "Bearer",
		RefreshToken: "test-refresh-token",
		Expiry:       time.Now().Add(time.Hour),
	}
	if err := cache.Set(want); err != nil {
		t.Fatalf("Set: %v", err)
	}

	info, err := os.Stat(cachePath)
	if err != nil {
		t.Fatalf("token file should exist: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("token file permissions = %o, want 0600", info.Mode().Perm())
	}

	got, err := cache.Get()
	if err != nil {
		t.Fatalf("Get after Set: %v", err)
	}
	if got == nil {
		t.Fatal("Get after Set returned nil token")
	}
	if got.AccessToken != want.AccessToken || got.TokenType != want.TokenType || got.RefreshToken != want.RefreshToken {
		t.Errorf("round-tripped token = %+v, want %+v", got, want)
	}
}

func TestFileTokenCacheCorruptFile(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "token.json")
	if err := os.WriteFile(cachePath, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	cache := &FileTokenCache{path: cachePath}
	if _, err := cache.Get(); err == nil {
		t.Error("Get on corrupt file should return error")
	}
}

func TestFileTokenCacheClear(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "token.json")
	cache := &FileTokenCache{path: cachePath}

	if err := cache.Set(&oauth2.Token{AccessToken: "tok", TokenType: "Bearer"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := cache.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := os.Stat(cachePath); !os.IsNotExist(err) {
		t.Error("token file should not exist after Clear")
	}

	// Clear is idempotent.
	if err := cache.Clear(); err != nil {
		t.Errorf("Clear on missing file: %v", err)
	}
}

func TestTokenCachePath(t *testing.T) {
	path := tokenCachePath()
	if path == "" {
		t.Fatal("tokenCachePath returned empty path")
	}
	if !strings.HasSuffix(path, filepath.Join(TokenCacheDir, TokenCacheFile)) {
		t.Errorf("path = %q, want suffix %q", path, filepath.Join(TokenCacheDir, TokenCacheFile))
	}
}
