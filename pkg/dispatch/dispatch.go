// Package dispatch maps a detected platform to its entry-point script under
// the working copy and runs it. Unlike captured reporter runs, the entry
// point inherits the terminal: downstream platform scripts manage their own
// reporting, and their exit status is propagated verbatim.
package dispatch

import (
	"os"
	"os/exec"
	"path/filepath"

	"github.com/dotup-sh/dotup/pkg/errors"
	"github.com/dotup-sh/dotup/pkg/logging"
	"github.com/dotup-sh/dotup/pkg/platform"
)

// Dispatcher resolves and runs platform entry points.
type Dispatcher struct {
	workingCopy string
	entryPoints map[string]string
}

// New creates a Dispatcher over the given working copy root. entryPoints
// maps platform identifiers to script paths relative to the root; a
// platforms.yaml manifest at the root may override individual entries.
func New(workingCopy string, entryPoints map[string]string) *Dispatcher {
	return &Dispatcher{
		workingCopy: workingCopy,
		entryPoints: entryPoints,
	}
}

// EntryPoint resolves the entry-point script for the platform. It fails for
// the unknown platform and for mapped paths that do not exist; both are
// fatal, non-retryable conditions.
func (d *Dispatcher) EntryPoint(p platform.Platform) (string, error) {
	if !p.Known() {
		return "", errors.New(errors.ErrPlatformUnknown,
			"cannot dispatch: platform could not be determined")
	}

	mapping := d.entryPoints
	if manifest, err := loadManifest(d.workingCopy); err == nil && manifest != nil {
		mapping = manifest.apply(mapping)
	}

	rel, ok := mapping[p.String()]
	if !ok {
		return "", errors.Newf(errors.ErrEntryPointMissing,
			"no entry point mapped for platform %s", p)
	}

	script := filepath.Join(d.workingCopy, rel)
	if _, err := os.Stat(script); err != nil {
		return "", errors.Newf(errors.ErrEntryPointMissing,
			"no entry point for platform %s: %s does not exist", p, script)
	}
	return script, nil
}

// Dispatch runs the platform's entry-point script with inherited terminal
// I/O and returns its exit code. A non-zero downstream exit yields both the
// code and an ErrEntryPointFailed error; the code is propagated unchanged.
func (d *Dispatcher) Dispatch(p platform.Platform) (int, error) {
	logger := logging.GetLogger("dispatch")

	script, err := d.EntryPoint(p)
	if err != nil {
		return 1, err
	}

	if err := os.Chmod(script, 0755); err != nil {
		return 1, errors.Wrapf(err, errors.ErrEntryPointMissing,
			"cannot make %s executable", script)
	}

	logger.Info().
		Str("platform", p.String()).
		Str("script", script).
		Msg("Dispatching to platform entry point")

	cmd := exec.Command(script)
	cmd.Dir = d.workingCopy
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode(), errors.Newf(errors.ErrEntryPointFailed,
				"%s exited with code %d", script, exitErr.ExitCode())
		}
		return 1, errors.Wrapf(err, errors.ErrSpawn, "cannot spawn %s", script)
	}

	return 0, nil
}
