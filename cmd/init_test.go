package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"
)

func TestWriteDefaultConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	if err := writeDefaultConfig(path, "/home/dev"); err != nil {
		t.Fatalf("writeDefaultConfig failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read config: %v", err)
	}

	var parsed map[string]any
	if err := toml.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("written config is not valid TOML: %v", err)
	}

	for _, section := range []string{"workspace", "git", "plans", "output", "ai", "github", "daemon"} {
		if _, ok := parsed[section]; !ok {
			t.Errorf("default config missing [%s] section", section)
		}
	}

	if !strings.Contains(string(data), "/home/dev") {
		t.Error("default config should use the provided home directory")
	}
}

func TestWriteDefaultConfig_RefusesOverwrite(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("existing"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := writeDefaultConfig(path, "/home/dev")
	if err == nil {
		t.Fatal("expected an error for an existing config file")
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("error = %q, want mention of existing file", err.Error())
	}

	data, _ := os.ReadFile(path)
	if string(data) != "existing" {
		t.Error("existing config file was modified")
	}
}
