package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotup-sh/dotup/pkg/testutil"
)

func execute(t *testing.T, args ...string) error {
	t.Helper()
	testutil.TempHome(t)
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func TestVersionCommand(t *testing.T) {
	assert.NoError(t, execute(t, "version"))
}

func TestDetectCommand(t *testing.T) {
	assert.NoError(t, execute(t, "detect"))
}

func TestDocsListsTopics(t *testing.T) {
	assert.NoError(t, execute(t, "docs"))
}

func TestDocsUnknownTopic(t *testing.T) {
	err := execute(t, "docs", "no-such-topic")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown topic")
}

func TestHistoryOnFreshMachine(t *testing.T) {
	assert.NoError(t, execute(t, "history"))
}

func TestUpdateDryRunReportsStrategy(t *testing.T) {
	// Fresh home: no working copy, so the plan must be snapshot and nothing
	// may be downloaded or written.
	assert.NoError(t, execute(t, "update", "--dry-run"))
}
