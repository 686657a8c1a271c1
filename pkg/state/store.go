// Package state persists the incremental aggregation cursor between runs.
// One JSON file per workspace root lives under the XDG state directory;
// loading never fails, so an aggregation run can always proceed in
// full-scan mode when the cursor is missing or unusable.
package state

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Masterminds/semver/v3"

	dberrors "thornfield.dev/daybook/pkg/errors"
)

// SchemaVersion is the on-disk format version. Files written by a
// different major version are rejected on load the same way corrupt files
// are.
const SchemaVersion = "1.0.0"

var currentSchema = semver.MustParse(SchemaVersion)

// State is the persisted per-workspace cursor. LastRunAt is a pointer so
// "never ran" stays distinct from the zero time.
type State struct {
	SchemaVersion string     `json:"schema_version"`
	Root          string     `json:"root"`
	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Store reads and writes state files under one directory.
type Store struct {
	dir string
	now func() time.Time
}

// NewStore returns a Store rooted at dir. An empty dir resolves to
// $XDG_STATE_HOME/daybook, falling back to ~/.local/state/daybook.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		var err error
		dir, err = defaultDir()
		if err != nil {
			return nil, dberrors.NewStateErrorWithCause("init", "", "resolving state directory", err)
		}
	}
	return &Store{dir: dir, now: time.Now}, nil
}

func defaultDir() (string, error) {
	base := os.Getenv("XDG_STATE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(base, "daybook"), nil
}

// Path returns the state file used for workspaceRoot. Distinct roots map
// to distinct files via a short content hash of the canonical path.
func (s *Store) Path(workspaceRoot string) string {
	sum := sha256.Sum256([]byte(canonicalRoot(workspaceRoot)))
	return filepath.Join(s.dir, fmt.Sprintf("%x", sum)[:12]+".json")
}

// canonicalRoot normalizes a workspace root so aliases of the same
// directory share one state file.
func canonicalRoot(root string) string {
	abs, err := filepath.Abs(root)
	if err != nil {
		return filepath.Clean(root)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

// Load returns the persisted state for workspaceRoot. A missing, corrupt,
// or schema-incompatible file yields a fresh state with no last-run
// cursor; Load itself never fails.
func (s *Store) Load(workspaceRoot string) State {
	fresh := State{SchemaVersion: SchemaVersion, Root: canonicalRoot(workspaceRoot)}

	data, err := os.ReadFile(s.Path(workspaceRoot))
	if err != nil {
		return fresh
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return fresh
	}
	if !schemaCompatible(st.SchemaVersion) {
		return fresh
	}
	return st
}

// Save persists st for workspaceRoot. The write lands atomically through a
// temp file in the same directory plus rename, so a crash mid-write leaves
// the previous file intact rather than a partial one.
func (s *Store) Save(workspaceRoot string, st State) error {
	st.SchemaVersion = SchemaVersion
	st.Root = canonicalRoot(workspaceRoot)
	st.UpdatedAt = s.now().UTC()

	path := s.Path(workspaceRoot)
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return dberrors.NewStateErrorWithCause("save", path, "creating state directory", err)
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return dberrors.NewStateErrorWithCause("save", path, "encoding state", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(s.dir, "state-*.json.tmp")
	if err != nil {
		return dberrors.NewStateErrorWithCause("save", path, "creating temp file", err)
	}
	tmpName := tmp.Name()

	// Leave no temp file behind on any failure path.
	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return dberrors.NewStateErrorWithCause("save", path, "writing state", err)
	}
	if err = tmp.Close(); err != nil {
		return dberrors.NewStateErrorWithCause("save", path, "writing state", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return dberrors.NewStateErrorWithCause("save", path, "replacing state file", err)
	}
	return nil
}

// Reset removes the persisted state for workspaceRoot. Removing state that
// does not exist is not an error.
func (s *Store) Reset(workspaceRoot string) error {
	path := s.Path(workspaceRoot)
	if err := os.Remove(path); err != nil && !dberrors.Is(err, os.ErrNotExist) {
		return dberrors.NewStateErrorWithCause("reset", path, "removing state file", err)
	}
	return nil
}

// schemaCompatible accepts any version sharing the current major. A
// different major means the layout changed and the file cannot be trusted.
func schemaCompatible(v string) bool {
	parsed, err := semver.NewVersion(v)
	if err != nil {
		return false
	}
	return parsed.Major() == currentSchema.Major()
}
