package dispatch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotup-sh/dotup/pkg/errors"
	"github.com/dotup-sh/dotup/pkg/platform"
	"github.com/dotup-sh/dotup/pkg/testutil"
)

var defaultEntryPoints = map[string]string{
	"macos":  "macos/install.sh",
	"ubuntu": "ubuntu/install.sh",
	"wsl":    "wsl/install.sh",
	"linux":  "linux/install.sh",
}

func TestDispatchUnknownPlatform(t *testing.T) {
	root := t.TempDir()
	// A script that records whether it ran; it must not.
	marker := filepath.Join(root, "ran")
	testutil.WriteScript(t, root, "ubuntu/install.sh", "touch "+marker)

	d := New(root, defaultEntryPoints)
	code, err := d.Dispatch(platform.Unknown)

	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrPlatformUnknown))
	assert.NotZero(t, code)
	assert.NoFileExists(t, marker, "no child process may be spawned for unknown platform")
}

func TestDispatchMissingEntryPoint(t *testing.T) {
	root := t.TempDir()

	d := New(root, defaultEntryPoints)
	code, err := d.Dispatch(platform.Ubuntu)

	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrEntryPointMissing))
	assert.NotZero(t, code)
	assert.Contains(t, err.Error(), "ubuntu")
}

func TestDispatchRunsEntryPoint(t *testing.T) {
	root := t.TempDir()
	marker := filepath.Join(root, "ran")
	testutil.WriteScript(t, root, "ubuntu/install.sh", "touch "+marker)

	d := New(root, defaultEntryPoints)
	code, err := d.Dispatch(platform.Ubuntu)

	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.FileExists(t, marker)
}

func TestDispatchMarksEntryPointExecutable(t *testing.T) {
	root := t.TempDir()
	script := testutil.WriteFile(t, root, "ubuntu/install.sh", "#!/bin/sh\nexit 0\n")
	require.NoError(t, os.Chmod(script, 0644))

	d := New(root, defaultEntryPoints)
	code, err := d.Dispatch(platform.Ubuntu)

	require.NoError(t, err)
	assert.Equal(t, 0, code)
}

func TestDispatchPropagatesExitCode(t *testing.T) {
	root := t.TempDir()
	testutil.WriteScript(t, root, "ubuntu/install.sh", "exit 42")

	d := New(root, defaultEntryPoints)
	code, err := d.Dispatch(platform.Ubuntu)

	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrEntryPointFailed))
	assert.Equal(t, 42, code)
}

func TestDispatchRunsFromWorkingCopyRoot(t *testing.T) {
	root := t.TempDir()
	testutil.WriteScript(t, root, "ubuntu/install.sh", `pwd > cwd.txt`)

	d := New(root, defaultEntryPoints)
	_, err := d.Dispatch(platform.Ubuntu)
	require.NoError(t, err)

	cwd, err := os.ReadFile(filepath.Join(root, "cwd.txt"))
	require.NoError(t, err)
	resolved, _ := filepath.EvalSymlinks(root)
	assert.Contains(t, []string{root + "\n", resolved + "\n"}, string(cwd))
}

func TestManifestOverridesEntryPoint(t *testing.T) {
	root := t.TempDir()
	marker := filepath.Join(root, "ran-custom")
	testutil.WriteScript(t, root, "setup/ubuntu.sh", "touch "+marker)
	testutil.WriteFile(t, root, ManifestFile, "entry_points:\n  ubuntu: setup/ubuntu.sh\n")

	d := New(root, defaultEntryPoints)
	code, err := d.Dispatch(platform.Ubuntu)

	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.FileExists(t, marker)
}

func TestManifestOnlyOverridesListedPlatforms(t *testing.T) {
	root := t.TempDir()
	testutil.WriteScript(t, root, "macos/install.sh", "exit 0")
	testutil.WriteFile(t, root, ManifestFile, "entry_points:\n  ubuntu: setup/ubuntu.sh\n")

	d := New(root, defaultEntryPoints)
	script, err := d.EntryPoint(platform.MacOS)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "macos/install.sh"), script)
}

func TestGenericLinuxMapsToLinuxEntryPoint(t *testing.T) {
	root := t.TempDir()
	testutil.WriteScript(t, root, "linux/install.sh", "exit 0")

	d := New(root, defaultEntryPoints)
	script, err := d.EntryPoint(platform.GenericLinux)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "linux/install.sh"), script)
}
