package config

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/recordflow/internal/pipeline"
	"github.com/ajitpratap0/recordflow/internal/testutil"
	"github.com/ajitpratap0/recordflow/pkg/codec"
	"github.com/ajitpratap0/recordflow/pkg/compression"
	"github.com/ajitpratap0/recordflow/pkg/consumer"
	"github.com/ajitpratap0/recordflow/pkg/errors"
	"github.com/ajitpratap0/recordflow/pkg/record"
)

func TestLoadJobWithEnvSubstitution(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("RF_INPUT", filepath.Join(dir, "in.csv"))

	path := testutil.WriteFile(t, dir, "job.yaml", `
name: orders
source:
  path: ${RF_INPUT}
  format:
    type: csv
  skip_first_lines: 1
destinations:
  - path: ${RF_OUTPUT:-out.tsv}
    format:
      type: tsv
policy:
  on_record_error: collect
  max_failures: 10
`)

	job, err := LoadJob(path)
	require.NoError(t, err)
	assert.Equal(t, "orders", job.Name)
	assert.Equal(t, filepath.Join(dir, "in.csv"), job.Source.Path)
	assert.Equal(t, "out.tsv", job.Destinations[0].Path)
	assert.Equal(t, "info", job.Observability.LogLevel)

	policy, err := job.ErrorPolicy()
	require.NoError(t, err)
	assert.Equal(t, pipeline.ErrorPolicy{OnRecordError: pipeline.Collect, MaxFailures: 10}, policy)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	job := &Job{}
	err := Parse([]byte("name: x\nsourse:\n  path: a\n"), job)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestValidateReportsAllProblems(t *testing.T) {
	job := &Job{
		Source:       SourceConfig{Format: FormatConfig{Type: "xml"}},
		Destinations: []DestinationConfig{{Path: "-", Format: FormatConfig{Type: "csv"}}, {Path: "-", Format: FormatConfig{Type: "csv"}}},
		Stages:       []StageConfig{{Type: "teleport"}},
		Policy:       PolicyConfig{OnRecordError: "retry", MaxFailures: -1},
	}

	err := job.Validate()
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{
		"source.path is required",
		`unknown format type "xml"`,
		"only one destination may write to standard output",
		`unknown stage type "teleport"`,
		`unknown error policy "retry"`,
		"max_failures must not be negative",
	} {
		assert.Contains(t, msg, want)
	}
}

func TestBuildCodec(t *testing.T) {
	tests := []struct {
		name   string
		format FormatConfig
		codec  string
		raw    string
		fields []string
	}{
		{"csv", FormatConfig{Type: "csv"}, "delimited", `a,"b,c"`, []string{"a", "b,c"}},
		{"tsv escape", FormatConfig{Type: "delimited", Separator: `\t`}, "delimited", "a\tb", []string{"a", "b"}},
		{"fixed", FormatConfig{Type: "fixed-width", Fields: []SpanConfig{{Start: 0, Length: 3}, {Start: 3, Length: 3}}}, "fixed-width", "abcdef", []string{"abc", "def"}},
		{"key-value", FormatConfig{Type: "key-value", PairSeparator: ":"}, "key-value", "a:b", []string{"a", "b"}},
		{"single", FormatConfig{Type: "lines"}, "single-value", "x y", []string{"x y"}},
		{"json", FormatConfig{Type: "jsonl", Names: []string{"id"}}, "json-lines", `{"id":"7"}`, []string{"7"}},
		{"markdown list", FormatConfig{Type: "markdown-list", Bullet: "star"}, "markdown-list", "* milk", []string{"milk"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := BuildCodec(tt.format)
			require.NoError(t, err)
			assert.Equal(t, tt.codec, c.Name())
			r, err := c.Parse(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.fields, r.Fields())
		})
	}
}

func TestBuildCodecErrors(t *testing.T) {
	for _, f := range []FormatConfig{
		{},
		{Type: "delimited", Separator: ";;"},
		{Type: "delimited", Escape: "percent"},
		{Type: "delimited", Trim: "middle"},
		{Type: "fixed-width", Fields: []SpanConfig{{Start: 0, Length: 2, Align: "diagonal"}}},
		{Type: "markdown-list", Bullet: "arrow"},
		{Type: "markdown-table"},
		{Type: "html-table", Columns: []ColumnConfig{{Name: "a", Align: "diagonal"}}},
	} {
		_, err := BuildCodec(f)
		assert.Error(t, err, "%+v", f)
	}

	c, err := BuildCodec(FormatConfig{Type: "delimited", Escape: "backslash", Quote: `"`})
	require.NoError(t, err)
	assert.Equal(t, codec.EscapeBackslash, c.(*codec.Delimited).Options().Escape)
}

func TestTableFormatsAreWriteOnly(t *testing.T) {
	columns := []ColumnConfig{{Name: "id"}, {Name: "name", Align: "center"}}
	for _, typ := range []string{"markdown-table", "html-table"} {
		c, err := BuildCodec(FormatConfig{Type: typ, Columns: columns})
		require.NoError(t, err)
		assert.False(t, codec.Readable(c), typ)

		job := &Job{
			Source:       SourceConfig{Path: "in.md", Format: FormatConfig{Type: typ, Columns: columns}},
			Destinations: []DestinationConfig{{Path: "-", Format: FormatConfig{Type: "csv"}}},
		}
		err = job.Validate()
		require.Error(t, err, typ)
		assert.Contains(t, err.Error(), "cannot be read")

		_, err = job.BuildProducer(strings.NewReader(""), nil)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConfig), typ)
	}
}

func TestBuildStages(t *testing.T) {
	stages, err := BuildStages([]StageConfig{
		{Type: "field-matches", Field: 0, Pattern: "^[a-c]"},
		{Type: "field-equals", Field: 0, Value: "b", Negate: true},
		{Type: "lookup", Field: 1, Table: map[string]string{"1": "one"}},
		{Type: "set-category", Value: "kept"},
	})
	require.NoError(t, err)
	require.Len(t, stages, 4)
	assert.True(t, stages[0].IsFilter())
	assert.False(t, stages[2].IsFilter())

	ctx := context.Background()
	in := record.NewWith("", 1, []string{"a", "1"})
	out := in
	for _, s := range stages {
		var keep bool
		out, keep, err = s.Apply(ctx, out)
		require.NoError(t, err)
		require.True(t, keep)
	}
	assert.Equal(t, []string{"a", "one"}, out.Fields())
	category, _ := out.Category()
	assert.Equal(t, "kept", category)

	_, keep, err := stages[1].Apply(ctx, record.New("b", "2"))
	require.NoError(t, err)
	assert.False(t, keep)
}

func TestBuildStageErrors(t *testing.T) {
	for _, s := range []StageConfig{
		{Type: "map-field", Function: "shout"},
		{Type: "lookup"},
		{Type: "reorder"},
		{Type: "field-matches", Pattern: "("},
		{Type: "add-field", Negate: true},
	} {
		_, err := BuildStages([]StageConfig{s})
		require.Error(t, err, "%+v", s)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	}
}

func TestBuildConsumersRouting(t *testing.T) {
	dir := t.TempDir()
	job := &Job{Destinations: []DestinationConfig{
		{Path: filepath.Join(dir, "a.csv"), Format: FormatConfig{Type: "csv"}, Categories: []string{"a", "aa"}},
		{Path: filepath.Join(dir, "rest.csv"), Format: FormatConfig{Type: "csv"}},
	}}

	consumers, err := job.BuildConsumers(nil, nil)
	require.NoError(t, err)
	require.Len(t, consumers, 1)
	router, ok := consumers[0].(*consumer.Router)
	require.True(t, ok)

	ctx := testutil.TestContext(t)
	require.NoError(t, router.Open(ctx))
	require.NoError(t, router.Write(ctx, record.NewWith("a", 1, []string{"1"})))
	require.NoError(t, router.Write(ctx, record.NewWith("aa", 2, []string{"2"})))
	require.NoError(t, router.Write(ctx, record.NewWith("b", 3, []string{"3"})))
	require.NoError(t, router.Close())

	assert.Equal(t, "1\n2\n", testutil.ReadFile(t, filepath.Join(dir, "a.csv")))
	assert.Equal(t, "3\n", testutil.ReadFile(t, filepath.Join(dir, "rest.csv")))
}

func TestBuildPipelineEndToEnd(t *testing.T) {
	dir := t.TempDir()
	in := testutil.WriteFile(t, dir, "in.csv", "id,name\n1,ada\n2,\"bad\n3,grace\n")
	outPath := filepath.Join(dir, "out.txt.gz")

	job := &Job{
		Name: "people",
		Source: SourceConfig{
			Path:           in,
			Format:         FormatConfig{Type: "csv"},
			SkipFirstLines: 1,
		},
		Destinations: []DestinationConfig{
			{Path: outPath, Format: FormatConfig{Type: "fixed-width", Fields: []SpanConfig{{Start: 0, Length: 3, Align: "right", Fill: "0"}, {Start: 3, Length: 8}}}, Compression: "auto"},
			{Path: "-", Format: FormatConfig{Type: "jsonl", Names: []string{"id", "name"}}},
		},
		Stages: []StageConfig{{Type: "map-field", Field: 1, Function: "title"}},
		Policy: PolicyConfig{OnRecordError: "skip"},
	}
	job.ApplyDefaults()
	require.NoError(t, job.Validate())

	var stdout bytes.Buffer
	p, err := job.BuildPipeline(nil, &stdout, testutil.TestLogger(t))
	require.NoError(t, err)
	res, err := p.Run(testutil.TestContext(t))
	require.NoError(t, err)

	assert.Equal(t, pipeline.CompletedWithFailures, res.Outcome)
	assert.Equal(t, uint64(2), res.Written)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, uint64(3), res.Failures[0].RecordNumber)

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"id":"1","name":"Ada"}`, lines[0])
	assert.JSONEq(t, `{"id":"3","name":"Grace"}`, lines[1])

	f, err := os.Open(outPath)
	require.NoError(t, err)
	defer f.Close()
	r, err := compression.NewReader(f, compression.Gzip)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "001Ada     \n003Grace   \n", string(data))
}

func TestMarkdownListToTable(t *testing.T) {
	job := &Job{
		Name:   "shopping",
		Source: SourceConfig{Path: "-", Format: FormatConfig{Type: "markdown-list"}},
		Destinations: []DestinationConfig{{
			Path:   "-",
			Format: FormatConfig{Type: "markdown-table", Columns: []ColumnConfig{{Name: "item", MinWidth: 5}, {Name: "n", Align: "right"}}},
		}},
		Stages: []StageConfig{{Type: "add-field", Value: "1"}},
		Policy: PolicyConfig{OnRecordError: "skip"},
	}
	job.ApplyDefaults()
	require.NoError(t, job.Validate())

	var stdout bytes.Buffer
	p, err := job.BuildPipeline(strings.NewReader("# List\n\n- milk\n* eggs\n"), &stdout, testutil.TestLogger(t))
	require.NoError(t, err)
	res, err := p.Run(testutil.TestContext(t))
	require.NoError(t, err)

	assert.Equal(t, uint64(2), res.Written)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, errors.ErrorTypeMalformedEntry, res.Failures[0].Kind)
	assert.Equal(t, "| item  |   n |\n| :---- | --: |\n| milk  |   1 |\n| eggs  |   1 |\n", stdout.String())
}

func TestSaveWritesLoadableJob(t *testing.T) {
	job := &Job{
		Name:         "saved",
		Source:       SourceConfig{Path: "in.txt", Format: FormatConfig{Type: "lines"}},
		Destinations: []DestinationConfig{{Path: "out.jsonl", Format: FormatConfig{Type: "jsonl", Names: []string{"line"}}}},
	}
	path := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, Save(path, job))

	loaded, err := LoadJob(path)
	require.NoError(t, err)
	assert.Equal(t, "saved", loaded.Name)
	assert.Equal(t, []string{"line"}, loaded.Destinations[0].Format.Names)
	assert.Equal(t, "abort", loaded.Policy.OnRecordError)
}
