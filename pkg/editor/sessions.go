// Package editor reads the editor's workspace-storage databases to surface
// AI-assistant session activity as journal context. Everything here is
// read-only and best effort: a missing storage directory or an unreadable
// database yields empty results, never an error that could block a run.
package editor

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"thornfield.dev/daybook/pkg/activity"
)

// ItemTable keys holding assistant session payloads. The values are JSON
// blobs whose exact shape drifts between editor releases; only array
// lengths are read, never individual entries.
const (
	chatDataKey     = "workbench.panel.aichat.view.aichat.chatdata"
	composerDataKey = "composer.composerData"

	dbFileName = "state.vscdb"
)

// WorkspaceSession summarizes one workspace's assistant activity.
type WorkspaceSession struct {
	Folder          string    `json:"folder"`
	ChatEntries     int       `json:"chat_entries"`
	ComposerEntries int       `json:"composer_entries"`
	LastActivity    time.Time `json:"last_activity"`
}

// Reader locates and queries workspace-storage databases.
type Reader struct {
	storageDir string
}

// NewReader returns a Reader over storageDir. An empty storageDir resolves
// to the editor's default workspaceStorage location under the user config
// directory.
func NewReader(storageDir string) *Reader {
	if storageDir == "" {
		if base, err := os.UserConfigDir(); err == nil {
			storageDir = filepath.Join(base, "Cursor", "User", "workspaceStorage")
		}
	}
	return &Reader{storageDir: storageDir}
}

// Sessions returns per-workspace session summaries whose database was
// modified within window. Workspaces whose database cannot be opened or
// queried are skipped silently; this data is supplemental prompt context,
// not activity of record.
func (r *Reader) Sessions(window activity.Window) ([]WorkspaceSession, error) {
	if r.storageDir == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(r.storageDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var sessions []WorkspaceSession
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		dbPath := filepath.Join(r.storageDir, entry.Name(), dbFileName)
		info, err := os.Stat(dbPath)
		if err != nil || !window.Contains(info.ModTime()) {
			continue
		}

		session, ok := readWorkspace(filepath.Join(r.storageDir, entry.Name()), dbPath)
		if !ok {
			continue
		}
		session.LastActivity = info.ModTime()
		sessions = append(sessions, session)
	}

	return sessions, nil
}

// readWorkspace opens one state.vscdb and counts assistant entries.
func readWorkspace(workspaceDir, dbPath string) (WorkspaceSession, bool) {
	session := WorkspaceSession{Folder: workspaceFolder(workspaceDir)}

	// mode=ro keeps a live editor's database untouched.
	db, err := sql.Open("sqlite", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return session, false
	}
	defer db.Close()

	session.ChatEntries = countEntries(db, chatDataKey, "tabs")
	session.ComposerEntries = countEntries(db, composerDataKey, "allComposers")

	return session, session.ChatEntries > 0 || session.ComposerEntries > 0
}

// countEntries reads one ItemTable value and returns the length of the
// named JSON array inside it. Missing keys and unparseable payloads count
// as zero.
func countEntries(db *sql.DB, key, field string) int {
	var value string
	err := db.QueryRow("SELECT value FROM ItemTable WHERE key = ?", key).Scan(&value)
	if err != nil {
		return 0
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal([]byte(value), &payload); err != nil {
		return 0
	}

	var items []json.RawMessage
	if err := json.Unmarshal(payload[field], &items); err != nil {
		return 0
	}
	return len(items)
}

// workspaceFolder resolves the workspace's folder URI from its
// workspace.json sidecar, falling back to the storage directory name.
func workspaceFolder(workspaceDir string) string {
	data, err := os.ReadFile(filepath.Join(workspaceDir, "workspace.json"))
	if err == nil {
		var meta struct {
			Folder string `json:"folder"`
		}
		if err := json.Unmarshal(data, &meta); err == nil && meta.Folder != "" {
			return meta.Folder
		}
	}
	return filepath.Base(workspaceDir)
}
