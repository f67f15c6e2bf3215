// Package acquire ensures a local working copy of the source tree exists and
// is current. Two strategies exist: a history-based update for working copies
// that retain revision history, and a snapshot download for everything else.
// A failing history-based update falls back to the snapshot rather than
// aborting the run.
package acquire

import (
	"net/http"
	"os/exec"
	"time"

	"github.com/dotup-sh/dotup/pkg/config"
	"github.com/dotup-sh/dotup/pkg/logging"
	"github.com/dotup-sh/dotup/pkg/report"
)

// Strategy identifies how the working copy was (or would be) brought up to
// date. It is chosen per run and never persisted.
type Strategy string

const (
	StrategyHistory  Strategy = "history"
	StrategySnapshot Strategy = "snapshot"
)

// Options configures a Manager. Reporter is required; the remaining fields
// default to real implementations and exist for tests.
type Options struct {
	Settings config.Settings
	Reporter *report.Reporter

	// Client downloads snapshot archives. Defaults to http.DefaultClient.
	Client *http.Client

	// LookPath checks update tool availability. Defaults to exec.LookPath.
	LookPath func(string) (string, error)

	// Now stamps side-storage directories. Defaults to time.Now.
	Now func() time.Time
}

// Manager decides between the two acquisition strategies and runs them.
type Manager struct {
	settings config.Settings
	reporter *report.Reporter
	client   *http.Client
	lookPath func(string) (string, error)
	now      func() time.Time
}

// New creates a Manager.
func New(opts Options) *Manager {
	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}
	lookPath := opts.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Manager{
		settings: opts.Settings,
		reporter: opts.Reporter,
		client:   client,
		lookPath: lookPath,
		now:      now,
	}
}

// WorkingCopy returns the working copy this manager operates on.
func (m *Manager) WorkingCopy() *WorkingCopy {
	return NewWorkingCopy(m.settings.WorkingCopyPath(), m.settings.EntryPoints)
}

// Plan returns the strategy Acquire would use, without touching anything.
func (m *Manager) Plan() Strategy {
	wc := m.WorkingCopy()
	if !wc.Exists() || !wc.HasEntryPoint() {
		return StrategySnapshot
	}
	if !wc.HasHistory() {
		return StrategySnapshot
	}
	if _, err := m.lookPath("git"); err != nil {
		return StrategySnapshot
	}
	return StrategyHistory
}

// Acquire brings the working copy up to date and returns the strategy that
// succeeded. On success the working copy contains a runnable entry-point
// script; on failure it is unchanged from its pre-run state.
func (m *Manager) Acquire() (Strategy, error) {
	logger := logging.GetLogger("acquire")
	wc := m.WorkingCopy()

	strategy := m.Plan()
	logger.Debug().
		Str("root", wc.Root).
		Str("strategy", string(strategy)).
		Bool("exists", wc.Exists()).
		Bool("history", wc.HasHistory()).
		Msg("Acquisition strategy selected")

	if strategy == StrategyHistory {
		updater := &gitUpdater{
			wc:       wc,
			branch:   m.settings.Repo.Branch,
			reporter: m.reporter,
			now:      m.now,
		}
		if err := updater.update(); err == nil {
			if wc.HasEntryPoint() {
				return StrategyHistory, nil
			}
			logger.Warn().Msg("Updated working copy has no entry point, falling back to snapshot")
		} else {
			logger.Warn().Err(err).Msg("History-based update failed, falling back to snapshot")
		}
	}

	snap := &snapshotter{
		wc:       wc,
		url:      m.settings.SnapshotURL(),
		client:   m.client,
		reporter: m.reporter,
	}
	if err := snap.acquire(); err != nil {
		return StrategySnapshot, err
	}
	return StrategySnapshot, nil
}
