package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	dberrors "thornfield.dev/daybook/pkg/errors"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	Long: `Init writes a starter config to $HOME/.config/daybook/config.toml with
every setting at its default. It refuses to overwrite an existing file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		home, err := os.UserHomeDir()
		if err != nil {
			return dberrors.Wrap(err, "failed to resolve home directory")
		}
		return writeDefaultConfig(filepath.Join(home, ".config", "daybook", "config.toml"), home)
	},
}

func writeDefaultConfig(path, home string) error {
	if _, err := os.Stat(path); err == nil {
		return dberrors.Newf("config file already exists: %s", path)
	}

	defaults := map[string]any{
		"workspace": map[string]any{
			"root":             home,
			"exclude_names":    []string{"node_modules", "vendor", ".terraform", ".git", ".idea", ".vscode"},
			"exclude_patterns": []string{},
			"max_depth":        3,
			"concurrency":      0,
		},
		"git": map[string]any{
			"max_commits_per_repo": 0,
			"timeout_seconds":      30,
			"timezone":             "local",
		},
		"plans": map[string]any{
			"dir_name":  "plans",
			"max_bytes": 65536,
		},
		"fallback": map[string]any{
			"enabled":   false,
			"max_files": 200,
		},
		"incremental": map[string]any{
			"lookback_hours": 24,
		},
		"output": map[string]any{
			"dir": filepath.Join(home, "daybook"),
		},
		"ai": map[string]any{
			"provider":    "anthropic",
			"model":       "",
			"temperature": 0.7,
			"ollama_host": "http://localhost:11434",
		},
		"github": map[string]any{
			"enabled":     false,
			"auth_method": "token",
		},
		"daemon": map[string]any{
			"interval":      "1h",
			"addr":          "127.0.0.1:7341",
			"events_buffer": 200,
			"watch_plans":   true,
		},
	}

	data, err := toml.Marshal(defaults)
	if err != nil {
		return dberrors.Wrap(err, "failed to encode default config")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return dberrors.Wrap(err, "failed to create config directory")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return dberrors.Wrapf(err, "failed to write config file: %s", path)
	}

	fmt.Printf("Wrote %s\n", path)
	return nil
}

func init() {
	rootCmd.AddCommand(initCmd)
}
