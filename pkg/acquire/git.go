package acquire

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dotup-sh/dotup/pkg/errors"
	"github.com/dotup-sh/dotup/pkg/logging"
	"github.com/dotup-sh/dotup/pkg/report"
)

// headFileName records the pre-update commit id in side-storage so divergent
// local history is recoverable after a fast-forward.
const headFileName = "HEAD.txt"

// gitUpdater performs the history-based update: preserve local state that
// the fast-forward would destroy, then move the working copy to the latest
// upstream revision.
type gitUpdater struct {
	wc       *WorkingCopy
	branch   string
	reporter *report.Reporter
	now      func() time.Time
}

func (g *gitUpdater) update() error {
	logger := logging.GetLogger("acquire.git")

	modified, err := g.localModifications()
	if err != nil {
		return errors.Wrap(err, errors.ErrGitUpdate, "cannot inspect working copy state")
	}

	oldHead, err := g.git("rev-parse", "HEAD")
	if err != nil {
		return errors.Wrap(err, errors.ErrGitUpdate, "cannot read current revision")
	}

	var sideDir string
	if len(modified) > 0 {
		err = g.reporter.Step("preserve local modifications", func() error {
			var perr error
			sideDir, perr = g.preserve(modified, oldHead)
			return perr
		})
		if err != nil {
			return errors.Wrap(err, errors.ErrPreserve, "failed to preserve local modifications")
		}
		g.reporter.Info("  local changes saved to %s (see `dotup docs recovery`)", sideDir)
	}

	fetch, err := g.reporter.Run("git",
		[]string{"-C", g.wc.Root, "fetch", "origin", g.branch}, "fetch latest changes")
	if err != nil {
		return errors.Wrap(err, errors.ErrGitUpdate, "git fetch could not be spawned")
	}
	if !fetch.Ok() {
		return errors.Newf(errors.ErrGitUpdate, "git fetch exited with code %d", fetch.ExitCode)
	}

	// Local commits not yet upstream are divergent history the reset below
	// would discard; record the old HEAD so they stay recoverable.
	if sideDir == "" {
		ahead, err := g.aheadCount()
		if err != nil {
			logger.Warn().Err(err).Msg("Cannot count divergent commits, continuing")
		} else if ahead > 0 {
			err = g.reporter.Step("record divergent local history", func() error {
				var perr error
				sideDir, perr = g.preserve(nil, oldHead)
				return perr
			})
			if err != nil {
				return errors.Wrap(err, errors.ErrPreserve, "failed to record divergent history")
			}
			g.reporter.Info("  previous HEAD noted in %s (see `dotup docs recovery`)", sideDir)
		}
	}

	reset, err := g.reporter.Run("git",
		[]string{"-C", g.wc.Root, "reset", "--hard", "origin/" + g.branch}, "fast-forward working copy")
	if err != nil {
		return errors.Wrap(err, errors.ErrGitUpdate, "git reset could not be spawned")
	}
	if !reset.Ok() {
		return errors.Newf(errors.ErrGitUpdate, "git reset exited with code %d", reset.ExitCode)
	}

	logger.Info().
		Str("root", g.wc.Root).
		Str("branch", g.branch).
		Msg("History-based update complete")

	return nil
}

// localModifications returns the paths of uncommitted changes, parsed from
// porcelain status output.
func (g *gitUpdater) localModifications() ([]string, error) {
	out, err := g.git("status", "--porcelain")
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 4 {
			continue
		}
		path := line[3:]
		// Renames are reported as "old -> new"; the new path is the one
		// that holds the local content.
		if idx := strings.Index(path, " -> "); idx >= 0 {
			path = path[idx+4:]
		}
		paths = append(paths, strings.Trim(path, `"`))
	}
	return paths, nil
}

// preserve copies the given working-copy files into a fresh timestamped
// side-storage directory and records the current HEAD there. Returns the
// side-storage directory created.
func (g *gitUpdater) preserve(paths []string, head string) (string, error) {
	sideDir := filepath.Join(g.wc.SideStorageRoot(), g.now().UTC().Format("20060102-150405"))
	if err := os.MkdirAll(sideDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create side-storage directory: %w", err)
	}

	for _, rel := range paths {
		src := filepath.Join(g.wc.Root, rel)
		dst := filepath.Join(sideDir, rel)

		info, err := os.Stat(src)
		if err != nil {
			// Deleted-locally files have nothing to preserve.
			continue
		}
		if info.IsDir() {
			continue
		}

		if err := copyFile(src, dst, info.Mode()); err != nil {
			return "", fmt.Errorf("failed to preserve %s: %w", rel, err)
		}
	}

	headFile := filepath.Join(sideDir, headFileName)
	if err := os.WriteFile(headFile, []byte(head+"\n"), 0644); err != nil {
		return "", fmt.Errorf("failed to record previous revision: %w", err)
	}

	return sideDir, nil
}

// aheadCount returns how many local commits are not on the upstream branch.
func (g *gitUpdater) aheadCount() (int, error) {
	out, err := g.git("rev-list", "--count", "origin/"+g.branch+"..HEAD")
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(out))
}

// git runs a query subcommand against the working copy and returns its
// trimmed combined output. Reporting commands go through the Reporter
// instead; this is for silent state inspection only.
func (g *gitUpdater) git(args ...string) (string, error) {
	cmd := exec.Command("git", append([]string{"-C", g.wc.Root}, args...)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %w\noutput: %s", strings.Join(args, " "), err, out)
	}
	return strings.TrimRight(string(out), "\n"), nil
}

func copyFile(src, dst string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	_, err = io.Copy(out, in)
	return err
}
