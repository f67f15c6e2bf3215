// Package orchestrator sequences one run: Acquisition -> Detection ->
// Dispatch. Each stage's failure is immediately fatal; retries, where they
// exist, live inside acquisition's fallback logic. Execution is fully
// sequential, with at most one subprocess running at a time.
package orchestrator

import (
	"context"
	"time"

	"github.com/dotup-sh/dotup/pkg/acquire"
	"github.com/dotup-sh/dotup/pkg/errors"
	"github.com/dotup-sh/dotup/pkg/journal"
	"github.com/dotup-sh/dotup/pkg/logging"
	"github.com/dotup-sh/dotup/pkg/platform"
	"github.com/dotup-sh/dotup/pkg/report"
)

// Acquirer brings the working copy up to date.
type Acquirer interface {
	Plan() acquire.Strategy
	Acquire() (acquire.Strategy, error)
}

// Detector determines the host platform.
type Detector interface {
	Detect() platform.Platform
}

// Dispatcher resolves and runs the platform entry point.
type Dispatcher interface {
	EntryPoint(p platform.Platform) (string, error)
	Dispatch(p platform.Platform) (int, error)
}

// Options wires an Orchestrator. Journal is optional; everything else is
// required.
type Options struct {
	Reporter   *report.Reporter
	Acquirer   Acquirer
	Detector   Detector
	Dispatcher Dispatcher
	Journal    *journal.Journal
	DryRun     bool
}

// Result is the outcome of one run.
type Result struct {
	Stage    Stage
	Platform platform.Platform
	Strategy acquire.Strategy
	ExitCode int
	Err      error
}

// Ok reports whether the run converged fully.
func (r Result) Ok() bool {
	return r.Err == nil && r.Stage == StageDone
}

// Orchestrator runs the acquisition/detection/dispatch sequence.
type Orchestrator struct {
	opts Options
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	return &Orchestrator{opts: opts}
}

// Run performs one full run. The returned Result carries the final stage,
// the exit code to propagate, and the failing error if any.
func (o *Orchestrator) Run(ctx context.Context) Result {
	logger := logging.GetLogger("orchestrator")
	result := Result{Stage: StageStart, ExitCode: 0}

	runID := o.journalBegin(ctx)

	fail := func(err error, exitCode int) Result {
		result.Stage, _ = transition(result.Stage, StageFailed)
		result.Err = err
		result.ExitCode = exitCode
		logger.Error().Err(err).Str("stage", string(result.Stage)).Msg("Run failed")
		o.journalFinish(ctx, runID, result)
		return result
	}

	advance := func(to Stage) {
		next, err := transition(result.Stage, to)
		if err != nil {
			// Transitions are fixed at compile time; this cannot happen for
			// the sequence below.
			logger.Error().Err(err).Msg("Invalid stage transition")
			return
		}
		result.Stage = next
		logger.Debug().Str("stage", string(next)).Msg("Stage entered")
	}

	// Acquisition
	advance(StageAcquiring)
	if o.opts.DryRun {
		result.Strategy = o.opts.Acquirer.Plan()
		o.opts.Reporter.Info("dry-run: would acquire via %s strategy", result.Strategy)
	} else {
		strategy, err := o.opts.Acquirer.Acquire()
		result.Strategy = strategy
		if err != nil {
			return fail(err, 1)
		}
	}

	// Detection never fails; Unknown is rejected by the dispatcher below.
	advance(StageDetecting)
	result.Platform = o.opts.Detector.Detect()

	// Dispatch
	advance(StageDispatching)
	if o.opts.DryRun {
		script, err := o.opts.Dispatcher.EntryPoint(result.Platform)
		if err != nil {
			return fail(err, 1)
		}
		o.opts.Reporter.Info("dry-run: would dispatch %s to %s", result.Platform, script)
	} else {
		exitCode, err := o.opts.Dispatcher.Dispatch(result.Platform)
		if err != nil {
			return fail(err, exitCode)
		}
	}

	advance(StageDone)
	o.journalFinish(ctx, runID, result)
	return result
}

// journalBegin records the run start. Journal trouble is logged, never fatal.
func (o *Orchestrator) journalBegin(ctx context.Context) string {
	if o.opts.Journal == nil {
		return ""
	}
	runID, err := o.opts.Journal.Begin(ctx, time.Now())
	if err != nil {
		logger := logging.GetLogger("orchestrator")
		logger.Warn().Err(err).Msg("Cannot record run start")
		return ""
	}
	return runID
}

func (o *Orchestrator) journalFinish(ctx context.Context, runID string, result Result) {
	if o.opts.Journal == nil || runID == "" {
		return
	}

	outcome := "success"
	detail := ""
	if result.Err != nil {
		outcome = "failure"
		detail = string(errors.GetErrorCode(result.Err)) + ": " + result.Err.Error()
	}

	err := o.opts.Journal.Finish(ctx, runID, journal.Entry{
		Stage:    string(result.Stage),
		Platform: result.Platform.String(),
		Strategy: string(result.Strategy),
		Outcome:  outcome,
		Detail:   detail,
	})
	if err != nil {
		logger := logging.GetLogger("orchestrator")
		logger.Warn().Err(err).Msg("Cannot record run outcome")
	}
}
