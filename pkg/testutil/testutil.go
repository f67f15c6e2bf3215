// Package testutil provides fixtures for acquisition and dispatch tests:
// isolated home directories, throwaway git repositories, and in-memory
// source tarballs.
package testutil

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// TempHome creates an isolated home directory and points HOME and the XDG
// variables at it for the duration of the test. Returns the home path.
func TempHome(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(home, ".local", "state"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(home, ".local", "share"))

	return home
}

// WriteFile writes content at the path under root, creating parents.
func WriteFile(t *testing.T, root, rel, content string) string {
	t.Helper()

	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", rel, err)
	}
	return path
}

// WriteScript writes an executable shell script at the path under root.
func WriteScript(t *testing.T, root, rel, body string) string {
	t.Helper()

	path := WriteFile(t, root, rel, "#!/bin/sh\n"+body+"\n")
	if err := os.Chmod(path, 0755); err != nil {
		t.Fatalf("failed to make %s executable: %v", rel, err)
	}
	return path
}

// GitRepo is a throwaway git repository for update tests.
type GitRepo struct {
	Root string
	t    *testing.T
}

// NewGitRepo initializes a git repository at dir with the given branch
// checked out. Skips the test when git is unavailable.
func NewGitRepo(t *testing.T, dir, branch string) *GitRepo {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	repo := &GitRepo{Root: dir, t: t}
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create repo dir: %v", err)
	}
	repo.Git("init", "-b", branch)
	repo.Git("config", "user.email", "test@example.com")
	repo.Git("config", "user.name", "test")
	return repo
}

// Git runs a git subcommand against the repository, failing the test on a
// non-zero exit.
func (r *GitRepo) Git(args ...string) string {
	r.t.Helper()

	cmd := exec.Command("git", append([]string{"-C", r.Root}, args...)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		r.t.Fatalf("git %v failed: %v\n%s", args, err, out)
	}
	return string(out)
}

// Commit stages everything and commits.
func (r *GitRepo) Commit(message string) {
	r.t.Helper()
	r.Git("add", "-A")
	r.Git("commit", "-m", message)
}

// Head returns the current commit id.
func (r *GitRepo) Head() string {
	r.t.Helper()
	out := r.Git("rev-parse", "HEAD")
	return string(bytes.TrimSpace([]byte(out)))
}

// TarGz builds a gzip-compressed tarball with the given files, each nested
// under topLevel the way GitHub source archives are. Script paths (ending
// in .sh) are marked executable.
func TarGz(t *testing.T, topLevel string, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	if err := tw.WriteHeader(&tar.Header{
		Name:     topLevel + "/",
		Typeflag: tar.TypeDir,
		Mode:     0755,
	}); err != nil {
		t.Fatalf("failed to write tar header: %v", err)
	}

	for name, content := range files {
		mode := int64(0644)
		if filepath.Ext(name) == ".sh" {
			mode = 0755
		}
		hdr := &tar.Header{
			Name:     topLevel + "/" + name,
			Typeflag: tar.TypeReg,
			Mode:     mode,
			Size:     int64(len(content)),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("failed to write tar header for %s: %v", name, err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatalf("failed to write tar entry for %s: %v", name, err)
		}
	}

	if err := tw.Close(); err != nil {
		t.Fatalf("failed to close tar writer: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("failed to close gzip writer: %v", err)
	}
	return buf.Bytes()
}
