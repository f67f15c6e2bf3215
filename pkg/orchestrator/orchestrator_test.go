package orchestrator

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotup-sh/dotup/pkg/acquire"
	"github.com/dotup-sh/dotup/pkg/errors"
	"github.com/dotup-sh/dotup/pkg/journal"
	"github.com/dotup-sh/dotup/pkg/platform"
	"github.com/dotup-sh/dotup/pkg/report"
)

type fakeAcquirer struct {
	strategy acquire.Strategy
	err      error
	calls    int
}

func (f *fakeAcquirer) Plan() acquire.Strategy { return f.strategy }
func (f *fakeAcquirer) Acquire() (acquire.Strategy, error) {
	f.calls++
	return f.strategy, f.err
}

type fakeDetector struct{ platform platform.Platform }

func (f *fakeDetector) Detect() platform.Platform { return f.platform }

type fakeDispatcher struct {
	exitCode int
	err      error
	calls    int
	script   string
}

func (f *fakeDispatcher) EntryPoint(platform.Platform) (string, error) {
	if f.err != nil && f.exitCode == 0 {
		return "", f.err
	}
	return f.script, nil
}

func (f *fakeDispatcher) Dispatch(platform.Platform) (int, error) {
	f.calls++
	return f.exitCode, f.err
}

func testOrchestrator(acq *fakeAcquirer, det *fakeDetector, disp *fakeDispatcher, dryRun bool) (*Orchestrator, *bytes.Buffer) {
	var buf bytes.Buffer
	return New(Options{
		Reporter:   report.NewWithWriter(&buf, false),
		Acquirer:   acq,
		Detector:   det,
		Dispatcher: disp,
		DryRun:     dryRun,
	}), &buf
}

func TestRunAllStagesSucceed(t *testing.T) {
	acq := &fakeAcquirer{strategy: acquire.StrategyHistory}
	disp := &fakeDispatcher{}
	o, _ := testOrchestrator(acq, &fakeDetector{platform.Ubuntu}, disp, false)

	result := o.Run(context.Background())

	assert.True(t, result.Ok())
	assert.Equal(t, StageDone, result.Stage)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, platform.Ubuntu, result.Platform)
	assert.Equal(t, acquire.StrategyHistory, result.Strategy)
	assert.Equal(t, 1, acq.calls)
	assert.Equal(t, 1, disp.calls)
}

func TestRunAcquisitionFailureIsFatal(t *testing.T) {
	acq := &fakeAcquirer{
		strategy: acquire.StrategySnapshot,
		err:      errors.New(errors.ErrDownload, "network unavailable"),
	}
	disp := &fakeDispatcher{}
	o, _ := testOrchestrator(acq, &fakeDetector{platform.Ubuntu}, disp, false)

	result := o.Run(context.Background())

	assert.False(t, result.Ok())
	assert.Equal(t, StageFailed, result.Stage)
	assert.Equal(t, 1, result.ExitCode)
	assert.Equal(t, 0, disp.calls, "dispatch must not run after a failed acquisition")
}

func TestRunPropagatesDownstreamExitCode(t *testing.T) {
	acq := &fakeAcquirer{strategy: acquire.StrategyHistory}
	disp := &fakeDispatcher{
		exitCode: 17,
		err:      errors.New(errors.ErrEntryPointFailed, "script exited with code 17"),
	}
	o, _ := testOrchestrator(acq, &fakeDetector{platform.MacOS}, disp, false)

	result := o.Run(context.Background())

	assert.Equal(t, StageFailed, result.Stage)
	assert.Equal(t, 17, result.ExitCode)
}

func TestRunUnknownPlatformFailsAtDispatch(t *testing.T) {
	acq := &fakeAcquirer{strategy: acquire.StrategySnapshot}
	disp := &fakeDispatcher{
		exitCode: 1,
		err:      errors.New(errors.ErrPlatformUnknown, "platform could not be determined"),
	}
	o, _ := testOrchestrator(acq, &fakeDetector{platform.Unknown}, disp, false)

	result := o.Run(context.Background())

	assert.Equal(t, StageFailed, result.Stage)
	assert.True(t, errors.IsErrorCode(result.Err, errors.ErrPlatformUnknown))
}

func TestRunDryRunTouchesNothing(t *testing.T) {
	acq := &fakeAcquirer{strategy: acquire.StrategySnapshot}
	disp := &fakeDispatcher{script: "/home/user/.dotfiles/ubuntu/install.sh"}
	o, out := testOrchestrator(acq, &fakeDetector{platform.Ubuntu}, disp, true)

	result := o.Run(context.Background())

	assert.True(t, result.Ok())
	assert.Equal(t, 0, acq.calls, "dry run must not acquire")
	assert.Equal(t, 0, disp.calls, "dry run must not dispatch")
	assert.Contains(t, out.String(), "would acquire via snapshot strategy")
	assert.Contains(t, out.String(), "would dispatch ubuntu")
}

func TestRunRecordsJournalEntries(t *testing.T) {
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer func() { _ = j.Close() }()

	var buf bytes.Buffer
	o := New(Options{
		Reporter:   report.NewWithWriter(&buf, false),
		Acquirer:   &fakeAcquirer{strategy: acquire.StrategyHistory},
		Detector:   &fakeDetector{platform.Ubuntu},
		Dispatcher: &fakeDispatcher{},
		Journal:    j,
	})

	result := o.Run(context.Background())
	require.True(t, result.Ok())

	entries, err := j.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "success", entries[0].Outcome)
	assert.Equal(t, "done", entries[0].Stage)
	assert.Equal(t, "ubuntu", entries[0].Platform)
	assert.Equal(t, "history", entries[0].Strategy)
}

func TestStageTransitions(t *testing.T) {
	tests := []struct {
		from    Stage
		to      Stage
		allowed bool
	}{
		{StageStart, StageAcquiring, true},
		{StageAcquiring, StageDetecting, true},
		{StageDetecting, StageDispatching, true},
		{StageDispatching, StageDone, true},
		{StageStart, StageDispatching, false},
		{StageAcquiring, StageFailed, true},
		{StageDispatching, StageFailed, true},
		{StageDone, StageFailed, false},
		{StageFailed, StageAcquiring, false},
	}

	for _, tt := range tests {
		_, err := transition(tt.from, tt.to)
		if tt.allowed {
			assert.NoError(t, err, "%s -> %s", tt.from, tt.to)
		} else {
			assert.Error(t, err, "%s -> %s", tt.from, tt.to)
		}
	}
}
