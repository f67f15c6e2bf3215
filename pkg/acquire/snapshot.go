package acquire

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/dotup-sh/dotup/pkg/errors"
	"github.com/dotup-sh/dotup/pkg/logging"
	"github.com/dotup-sh/dotup/pkg/report"
)

// snapshotter replaces the working copy with a fresh, history-free copy of
// the remote source. The new tree is staged in a sibling directory and only
// swapped into place once it is known to be valid, so a failure at any point
// leaves the existing working copy untouched. All temporary artifacts are
// removed on every exit path.
type snapshotter struct {
	wc       *WorkingCopy
	url      string
	client   *http.Client
	reporter *report.Reporter
}

func (s *snapshotter) acquire() (err error) {
	logger := logging.GetLogger("acquire.snapshot")

	id := uuid.NewString()[:8]
	staging := s.wc.Root + ".staging-" + id

	defer func() {
		// On success the staging directory has been renamed away and this
		// is a no-op; on failure it removes the partial tree.
		_ = os.RemoveAll(staging)
	}()

	var archive string
	err = s.reporter.Step("download snapshot archive", func() error {
		var derr error
		archive, derr = s.download()
		return derr
	})
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(archive) }()

	err = s.reporter.Step("extract snapshot", func() error {
		return extractTarGz(archive, staging)
	})
	if err != nil {
		return err
	}

	// The staged tree must be dispatchable before it may replace anything.
	staged := NewWorkingCopy(staging, nil)
	staged.entryPoints = s.wc.entryPoints
	if !staged.HasEntryPoint() {
		return errors.Newf(errors.ErrExtract,
			"downloaded snapshot contains no platform entry point under %s", staging)
	}

	err = s.reporter.Step("install working copy", func() error {
		return s.swap(staging, id)
	})
	if err != nil {
		return err
	}

	logger.Info().
		Str("root", s.wc.Root).
		Str("url", s.url).
		Msg("Snapshot acquisition complete")

	return nil
}

// download fetches the archive to a temporary file and returns its path.
// The caller owns removal of the returned file.
func (s *snapshotter) download() (string, error) {
	resp, err := s.client.Get(s.url)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrDownload, "cannot reach %s", s.url)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Newf(errors.ErrDownload,
			"unexpected status %d fetching %s", resp.StatusCode, s.url)
	}

	tmp, err := os.CreateTemp("", "dotup-snapshot-*.tar.gz")
	if err != nil {
		return "", errors.Wrap(err, errors.ErrDownload, "cannot create temporary archive file")
	}

	_, err = io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return "", errors.Wrap(err, errors.ErrDownload, "failed to write archive")
	}

	return tmp.Name(), nil
}

// swap atomically replaces (or populates) the working copy from staging.
func (s *snapshotter) swap(staging, id string) error {
	if err := os.MkdirAll(filepath.Dir(s.wc.Root), 0755); err != nil {
		return errors.Wrap(err, errors.ErrSwap, "cannot create working copy parent directory")
	}

	if !s.wc.Exists() {
		if err := os.Rename(staging, s.wc.Root); err != nil {
			return errors.Wrap(err, errors.ErrSwap, "cannot move staged tree into place")
		}
		return nil
	}

	old := s.wc.Root + ".old-" + id
	if err := os.Rename(s.wc.Root, old); err != nil {
		return errors.Wrap(err, errors.ErrSwap, "cannot set aside existing working copy")
	}

	if err := os.Rename(staging, s.wc.Root); err != nil {
		// Restore the previous tree so the working copy stays unchanged.
		_ = os.Rename(old, s.wc.Root)
		return errors.Wrap(err, errors.ErrSwap, "cannot move staged tree into place")
	}

	_ = os.RemoveAll(old)
	return nil
}

// extractTarGz unpacks archive into dest, stripping the single top-level
// directory GitHub tarballs carry.
func extractTarGz(archive, dest string) error {
	f, err := os.Open(archive)
	if err != nil {
		return errors.Wrap(err, errors.ErrExtract, "cannot open archive")
	}
	defer func() { _ = f.Close() }()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return errors.Wrap(err, errors.ErrExtract, "archive is not gzip compressed")
	}
	defer func() { _ = gz.Close() }()

	if err := os.MkdirAll(dest, 0755); err != nil {
		return errors.Wrap(err, errors.ErrExtract, "cannot create staging directory")
	}

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrExtract, "corrupt archive")
		}

		rel := stripTopLevel(hdr.Name)
		if rel == "" {
			continue
		}
		if !filepath.IsLocal(rel) {
			return errors.Newf(errors.ErrExtract, "archive entry escapes staging directory: %s", hdr.Name)
		}
		target := filepath.Join(dest, rel)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode)|0700); err != nil {
				return errors.Wrapf(err, errors.ErrExtract, "cannot create directory %s", rel)
			}
		case tar.TypeReg:
			if err := writeEntry(tr, target, os.FileMode(hdr.Mode)); err != nil {
				return errors.Wrapf(err, errors.ErrExtract, "cannot write %s", rel)
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return errors.Wrapf(err, errors.ErrExtract, "cannot create directory for %s", rel)
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return errors.Wrapf(err, errors.ErrExtract, "cannot create symlink %s", rel)
			}
		default:
			// pax headers and other special entries are irrelevant here
		}
	}
}

func writeEntry(tr *tar.Reader, target string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}

	_, err = io.Copy(out, tr)
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	return err
}

// stripTopLevel drops the first path component of a tar entry name.
func stripTopLevel(name string) string {
	name = strings.TrimPrefix(name, "./")
	idx := strings.Index(name, "/")
	if idx < 0 {
		return ""
	}
	return strings.TrimSuffix(name[idx+1:], "/")
}
