package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/recordflow/internal/pipeline"
	"github.com/ajitpratap0/recordflow/internal/testutil"
)

func execute(t *testing.T, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&errOut)
	err = root.Execute()
	return out.String(), errOut.String(), err
}

func writeJob(t *testing.T, content string) string {
	t.Helper()
	return testutil.WriteFile(t, t.TempDir(), "job.yaml", content)
}

const csvToLines = `
name: first-column
source:
  path: "-"
  format:
    type: csv
destinations:
  - path: "-"
    format:
      type: lines
stages:
  - type: reorder
    indices: [0]
observability:
  log_level: error
`

func TestRunCleanJob(t *testing.T) {
	job := writeJob(t, csvToLines)

	stdout, stderr, err := execute(t, "a,1\nb,2\n", "run", "--job", job)
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", stdout)
	assert.Contains(t, stderr, "first-column: completed, read 2, written 2")
}

func TestRunExitCodes(t *testing.T) {
	job := writeJob(t, csvToLines)

	_, stderr, err := execute(t, "a,1\n\"x\nb,2\n", "run", "--job", job, "--policy", "collect", "--summary", "json")
	var exit *exitError
	require.ErrorAs(t, err, &exit)
	assert.Equal(t, pipeline.ExitFailures, exit.code)
	assert.Contains(t, stderr, `"outcome":"completed_with_failures"`)

	_, _, err = execute(t, "a,1\n\"x\nb,2\n", "run", "--job", job, "--summary", "none")
	require.ErrorAs(t, err, &exit)
	assert.Equal(t, pipeline.ExitFatal, exit.code)
}

func TestRunEnvironmentOverride(t *testing.T) {
	job := writeJob(t, csvToLines)
	t.Setenv("RECORDFLOW_POLICY", "skip")
	t.Setenv("RECORDFLOW_SUMMARY", "none")

	stdout, stderr, err := execute(t, "a,1\n\"x\nb,2\n", "run", "--job", job)
	var exit *exitError
	require.ErrorAs(t, err, &exit)
	assert.Equal(t, pipeline.ExitFailures, exit.code)
	assert.Equal(t, "a\nb\n", stdout)
	assert.Empty(t, stderr)
}

func TestRunWritesMetricsFile(t *testing.T) {
	job := writeJob(t, csvToLines)
	metricsFile := filepath.Join(t.TempDir(), "recordflow.prom")

	_, _, err := execute(t, "a,1\n", "run", "--job", job, "--metrics-file", metricsFile, "--summary", "none")
	require.NoError(t, err)

	assert.Contains(t, testutil.ReadFile(t, metricsFile), `recordflow_records_written_total{pipeline="first-column"} 1`)
}

func TestRunInvalidJob(t *testing.T) {
	job := writeJob(t, "source:\n  path: in.csv\n  format:\n    type: xml\n")

	_, _, err := execute(t, "", "run", "--job", job)
	var exit *exitError
	require.ErrorAs(t, err, &exit)
	assert.Equal(t, pipeline.ExitFatal, exit.code)
	assert.Contains(t, err.Error(), `unknown format type "xml"`)
}

func TestFormatsAndVersion(t *testing.T) {
	stdout, _, err := execute(t, "", "formats")
	require.NoError(t, err)
	for _, name := range []string{"delimited", "fixed-width", "key-value", "single-value", "json-lines", "markdown-list", "markdown-table", "html-table", "zstd", "lz4"} {
		assert.Contains(t, stdout, name)
	}

	stdout, _, err = execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "recordflow v"+version)
}
