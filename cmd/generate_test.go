package cmd

import (
	"testing"

	"github.com/spf13/pflag"
)

func mustLookupFlag(t *testing.T, flags *pflag.FlagSet, name string) *pflag.Flag {
	t.Helper()
	flag := flags.Lookup(name)
	if flag == nil {
		t.Fatalf("missing --%s flag", name)
	}
	return flag
}

func TestGenerateCommandFlags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		flagName     string
		defaultValue string
	}{
		{"date", ""},
		{"from", ""},
		{"to", ""},
		{"full", "false"},
		{"stdout", "false"},
		{"force", "false"},
	}

	for _, tt := range tests {
		flag := mustLookupFlag(t, generateCmd.Flags(), tt.flagName)
		if flag.DefValue != tt.defaultValue {
			t.Errorf("--%s default = %q, want %q", tt.flagName, flag.DefValue, tt.defaultValue)
		}
	}
}

func TestJournalCommandFlags(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"date", "from", "to", "full", "stdout"} {
		if journalCmd.Flags().Lookup(name) == nil {
			t.Errorf("journal command should have --%s flag", name)
		}
	}
	if journalCmd.Flags().Lookup("force") != nil {
		t.Error("journal command should not have --force flag")
	}
}

func TestContextCommandFlags(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"date", "from", "to", "full"} {
		if contextCmd.Flags().Lookup(name) == nil {
			t.Errorf("context command should have --%s flag", name)
		}
	}
}

func TestScanCommandFlags(t *testing.T) {
	t.Parallel()

	flag := mustLookupFlag(t, scanCmd.Flags(), "refresh")
	if flag.DefValue != "false" {
		t.Errorf("--refresh default = %q, want false", flag.DefValue)
	}
}
