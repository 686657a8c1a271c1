package discovery

import (
	"os"
	"path/filepath"
	"testing"

	dberrors "thornfield.dev/daybook/pkg/errors"
	"thornfield.dev/daybook/pkg/pathmatch"
)

func defaultRules() *pathmatch.Rules {
	return pathmatch.NewRules([]string{"node_modules", "vendor", ".git"}, nil, 0)
}

func TestScanner_Discover(t *testing.T) {
	// Structure:
	// /src
	//   /project-a (git)
	//   /project-b (bare)
	//   /group
	//     /project-c (git)
	//   /node_modules
	//     /ignored-project (git)
	//   /z-link-to-a -> project-a

	tmpDir := t.TempDir()
	srcDir := filepath.Join(tmpDir, "src")
	mustMkdir(t, srcDir)

	projA := filepath.Join(srcDir, "project-a")
	mustMkdir(t, projA)
	mustMkdir(t, filepath.Join(projA, ".git"))

	projB := filepath.Join(srcDir, "project-b")
	mustMkdir(t, projB)
	mustMkdir(t, filepath.Join(projB, "objects"))
	mustCreateFile(t, filepath.Join(projB, "HEAD"))
	mustCreateFile(t, filepath.Join(projB, "config"))

	group := filepath.Join(srcDir, "group")
	mustMkdir(t, group)
	projC := filepath.Join(group, "project-c")
	mustMkdir(t, projC)
	mustMkdir(t, filepath.Join(projC, ".git"))

	ignored := filepath.Join(srcDir, "node_modules", "ignored-project")
	mustMkdir(t, ignored)
	mustMkdir(t, filepath.Join(ignored, ".git"))

	symlink := filepath.Join(srcDir, "z-link-to-a")
	if err := os.Symlink(projA, symlink); err != nil {
		t.Logf("Skipping symlink setup on platform: %v", err)
	}

	scanner := NewScanner(defaultRules())
	result, err := scanner.Discover(srcDir)
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	found := make(map[string]bool)
	for _, r := range result.Repos {
		found[r.Name] = true
	}

	if !found["project-a"] {
		t.Error("Did not find project-a")
	}
	if !found["project-b"] {
		t.Error("Did not find bare project-b")
	}
	if !found["project-c"] {
		t.Error("Did not find nested project-c")
	}
	if found["ignored-project"] {
		t.Error("Found ignored-project inside node_modules")
	}
	if found["z-link-to-a"] {
		t.Error("Found duplicate via symlink z-link-to-a")
	}
	if len(result.Repos) != 3 {
		t.Errorf("Discover found %d repos, want 3", len(result.Repos))
	}
}

func TestScanner_Discover_LexicographicOrder(t *testing.T) {
	srcDir := t.TempDir()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		repo := filepath.Join(srcDir, name)
		mustMkdir(t, repo)
		mustMkdir(t, filepath.Join(repo, ".git"))
	}

	result, err := NewScanner(defaultRules()).Discover(srcDir)
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	want := []string{"alpha", "mid", "zeta"}
	if len(result.Repos) != len(want) {
		t.Fatalf("Discover found %d repos, want %d", len(result.Repos), len(want))
	}
	for i, name := range want {
		if result.Repos[i].Name != name {
			t.Errorf("Repos[%d] = %s, want %s", i, result.Repos[i].Name, name)
		}
	}
}

func TestScanner_Discover_NoNestedRepos(t *testing.T) {
	srcDir := t.TempDir()
	outer := filepath.Join(srcDir, "outer")
	mustMkdir(t, outer)
	mustMkdir(t, filepath.Join(outer, ".git"))

	inner := filepath.Join(outer, "third_party", "inner")
	mustMkdir(t, inner)
	mustMkdir(t, filepath.Join(inner, ".git"))

	result, err := NewScanner(defaultRules()).Discover(srcDir)
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if len(result.Repos) != 1 || result.Repos[0].Name != "outer" {
		t.Errorf("Repos = %+v, want exactly outer", result.Repos)
	}
}

func TestScanner_Discover_DepthBound(t *testing.T) {
	srcDir := t.TempDir()
	shallow := filepath.Join(srcDir, "shallow")
	mustMkdir(t, shallow)
	mustMkdir(t, filepath.Join(shallow, ".git"))

	deep := filepath.Join(srcDir, "a", "b", "c", "deep")
	mustMkdir(t, deep)
	mustMkdir(t, filepath.Join(deep, ".git"))

	rules := pathmatch.NewRules(nil, nil, 2)
	result, err := NewScanner(rules).Discover(srcDir)
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if len(result.Repos) != 1 || result.Repos[0].Name != "shallow" {
		t.Errorf("Repos = %+v, want only shallow within depth 2", result.Repos)
	}
}

func TestScanner_Discover_RootIsRepo(t *testing.T) {
	srcDir := t.TempDir()
	mustMkdir(t, filepath.Join(srcDir, ".git"))

	result, err := NewScanner(defaultRules()).Discover(srcDir)
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if len(result.Repos) != 1 {
		t.Fatalf("Discover found %d repos, want the root itself", len(result.Repos))
	}
}

func TestScanner_Discover_MissingRoot(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")

	_, err := NewScanner(defaultRules()).Discover(missing)
	if err == nil {
		t.Fatal("Discover succeeded on a missing root")
	}
	if !dberrors.IsDiscoveryError(err) {
		t.Errorf("Discover error = %T, want DiscoveryError", err)
	}
}

func TestScanner_Discover_GlobPatterns(t *testing.T) {
	srcDir := t.TempDir()
	for _, name := range []string{"svc-api", "svc-api-backup", "tool"} {
		repo := filepath.Join(srcDir, name)
		mustMkdir(t, repo)
		mustMkdir(t, filepath.Join(repo, ".git"))
	}

	rules := pathmatch.NewRules(nil, []string{"*-backup"}, 0)
	result, err := NewScanner(rules).Discover(srcDir)
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	for _, r := range result.Repos {
		if r.Name == "svc-api-backup" {
			t.Error("Found svc-api-backup despite *-backup pattern")
		}
	}
	if len(result.Repos) != 2 {
		t.Errorf("Discover found %d repos, want 2", len(result.Repos))
	}
}

func mustMkdir(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
}

func mustCreateFile(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(""), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
}
