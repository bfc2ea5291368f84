package config

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/ajitpratap0/recordflow/pkg/codec"
	"github.com/ajitpratap0/recordflow/pkg/errors"
)

// Job is one pipeline run described in YAML.
type Job struct {
	// Name identifies the pipeline in logs and metrics
	Name string `yaml:"name" json:"name"`
	// Source is where records are read from
	Source SourceConfig `yaml:"source" json:"source"`
	// Destinations receive every record that passes the stages
	Destinations []DestinationConfig `yaml:"destinations" json:"destinations"`
	// Stages are applied left to right
	Stages []StageConfig `yaml:"stages,omitempty" json:"stages,omitempty"`
	// Policy controls per-record failures
	Policy PolicyConfig `yaml:"policy" json:"policy"`
	// Observability settings for logs, traces and metrics
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// FormatConfig selects a codec and its options. Only the options of the
// selected type are read.
type FormatConfig struct {
	// Type is delimited, fixed-width, key-value, single-value, json-lines,
	// markdown-list, markdown-table or html-table
	Type string `yaml:"type" json:"type"`

	// Delimited
	Separator     string `yaml:"separator,omitempty" json:"separator,omitempty"`
	Quote         string `yaml:"quote,omitempty" json:"quote,omitempty"`
	Escape        string `yaml:"escape,omitempty" json:"escape,omitempty"`
	Trim          string `yaml:"trim,omitempty" json:"trim,omitempty"`
	Arity         int    `yaml:"arity,omitempty" json:"arity,omitempty"`
	VariableArity bool   `yaml:"variable_arity,omitempty" json:"variable_arity,omitempty"`

	// Fixed-width
	Fields        []SpanConfig `yaml:"fields,omitempty" json:"fields,omitempty"`
	PadShortLines bool         `yaml:"pad_short_lines,omitempty" json:"pad_short_lines,omitempty"`
	RecordWidth   int          `yaml:"record_width,omitempty" json:"record_width,omitempty"`

	// Key-value
	PairSeparator   string   `yaml:"pair_separator,omitempty" json:"pair_separator,omitempty"`
	CommentPrefixes []string `yaml:"comment_prefixes,omitempty" json:"comment_prefixes,omitempty"`
	Sections        bool     `yaml:"sections,omitempty" json:"sections,omitempty"`
	Escapes         bool     `yaml:"escapes,omitempty" json:"escapes,omitempty"`

	// Single-value
	SkipEmpty bool `yaml:"skip_empty,omitempty" json:"skip_empty,omitempty"`

	// JSON lines
	Names []string `yaml:"names,omitempty" json:"names,omitempty"`

	// Markdown list: dash, star or number
	Bullet string `yaml:"bullet,omitempty" json:"bullet,omitempty"`

	// Markdown and HTML tables
	Columns []ColumnConfig `yaml:"columns,omitempty" json:"columns,omitempty"`
	Indent  string         `yaml:"indent,omitempty" json:"indent,omitempty"`
}

// ColumnConfig is one table column
type ColumnConfig struct {
	Name     string `yaml:"name" json:"name"`
	MinWidth int    `yaml:"min_width,omitempty" json:"min_width,omitempty"`
	// Align is left, right or center
	Align string `yaml:"align,omitempty" json:"align,omitempty"`
}

// SpanConfig is one fixed-width field
type SpanConfig struct {
	Start  int    `yaml:"start" json:"start"`
	Length int    `yaml:"length" json:"length"`
	Trim   string `yaml:"trim,omitempty" json:"trim,omitempty"`
	Fill   string `yaml:"fill,omitempty" json:"fill,omitempty"`
	// Align is left or right
	Align string `yaml:"align,omitempty" json:"align,omitempty"`
}

// SourceConfig describes the producer of a job
type SourceConfig struct {
	// Path of the input file, "-" for standard input
	Path   string       `yaml:"path" json:"path"`
	Format FormatConfig `yaml:"format" json:"format"`
	// Charset is an IANA name, UTF-8 when empty
	Charset string `yaml:"charset,omitempty" json:"charset,omitempty"`
	// Compression is an algorithm name or "auto" to use the file extension
	Compression    string `yaml:"compression,omitempty" json:"compression,omitempty"`
	SkipFirstLines int    `yaml:"skip_first_lines,omitempty" json:"skip_first_lines,omitempty"`
	SkipBlankLines bool   `yaml:"skip_blank_lines,omitempty" json:"skip_blank_lines,omitempty"`
	// Category is given to records that get none from the format
	Category string `yaml:"category,omitempty" json:"category,omitempty"`
}

// DestinationConfig describes one consumer of a job
type DestinationConfig struct {
	// Path of the output file, "-" for standard output
	Path    string       `yaml:"path" json:"path"`
	Format  FormatConfig `yaml:"format" json:"format"`
	Charset string       `yaml:"charset,omitempty" json:"charset,omitempty"`
	// Compression is an algorithm name or "auto" to use the file extension
	Compression string `yaml:"compression,omitempty" json:"compression,omitempty"`
	// CompressionLevel is fastest, default, better or best
	CompressionLevel string `yaml:"compression_level,omitempty" json:"compression_level,omitempty"`
	Append           bool   `yaml:"append,omitempty" json:"append,omitempty"`
	// LineSeparator is lf, crlf or cr
	LineSeparator string `yaml:"line_separator,omitempty" json:"line_separator,omitempty"`
	TextBefore    string `yaml:"text_before,omitempty" json:"text_before,omitempty"`
	TextAfter     string `yaml:"text_after,omitempty" json:"text_after,omitempty"`
	// Categories routes only records of these categories here. Destinations
	// without categories receive the records no routed destination took.
	Categories []string `yaml:"categories,omitempty" json:"categories,omitempty"`
}

// StageConfig is one mapper or filter. Type selects the stage; the other
// fields are its arguments.
type StageConfig struct {
	Type       string            `yaml:"type" json:"type"`
	Name       string            `yaml:"name,omitempty" json:"name,omitempty"`
	Field      int               `yaml:"field,omitempty" json:"field,omitempty"`
	Count      int               `yaml:"count,omitempty" json:"count,omitempty"`
	Value      string            `yaml:"value,omitempty" json:"value,omitempty"`
	Function   string            `yaml:"function,omitempty" json:"function,omitempty"`
	Table      map[string]string `yaml:"table,omitempty" json:"table,omitempty"`
	Strict     bool              `yaml:"strict,omitempty" json:"strict,omitempty"`
	Indices    []int             `yaml:"indices,omitempty" json:"indices,omitempty"`
	Pattern    string            `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Categories []string          `yaml:"categories,omitempty" json:"categories,omitempty"`
	From       uint64            `yaml:"from,omitempty" json:"from,omitempty"`
	To         uint64            `yaml:"to,omitempty" json:"to,omitempty"`
	Start      uint64            `yaml:"start,omitempty" json:"start,omitempty"`
	// Negate inverts a filter
	Negate bool `yaml:"negate,omitempty" json:"negate,omitempty"`
}

// PolicyConfig is the per-record error policy
type PolicyConfig struct {
	// OnRecordError is skip, abort or collect; abort when empty
	OnRecordError string `yaml:"on_record_error" json:"on_record_error"`
	MaxFailures   int    `yaml:"max_failures,omitempty" json:"max_failures,omitempty"`
}

// ObservabilityConfig contains logging, tracing and metrics settings
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level,omitempty" json:"log_level,omitempty"`
	LogEncoding string `yaml:"log_encoding,omitempty" json:"log_encoding,omitempty"`
	Development bool   `yaml:"development,omitempty" json:"development,omitempty"`
	// Tracing prints run spans to standard error
	Tracing      bool    `yaml:"tracing,omitempty" json:"tracing,omitempty"`
	SamplingRate float64 `yaml:"sampling_rate,omitempty" json:"sampling_rate,omitempty"`
	// MetricsFile receives Prometheus metrics in text format after the run
	MetricsFile string `yaml:"metrics_file,omitempty" json:"metrics_file,omitempty"`
}

// LoadJob reads, defaults and validates a job file
func LoadJob(path string) (*Job, error) {
	job := &Job{}
	if err := Load(path, job); err != nil {
		return nil, err
	}
	job.ApplyDefaults()
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return job, nil
}

// ApplyDefaults fills in unset values
func (j *Job) ApplyDefaults() {
	if j.Name == "" {
		j.Name = "recordflow"
	}
	if j.Policy.OnRecordError == "" {
		j.Policy.OnRecordError = "abort"
	}
	if j.Observability.LogLevel == "" {
		j.Observability.LogLevel = "info"
	}
	if j.Observability.LogEncoding == "" {
		j.Observability.LogEncoding = "console"
	}
	if j.Observability.Tracing && j.Observability.SamplingRate == 0 {
		j.Observability.SamplingRate = 1
	}
}

// Validate checks the job and builds every component once so that format
// and stage errors surface before any file is opened. All problems are
// reported together.
func (j *Job) Validate() error {
	var errs error
	if j.Source.Path == "" {
		errs = multierr.Append(errs, errors.New(errors.ErrorTypeConfig, "source.path is required"))
	}
	if c, err := BuildCodec(j.Source.Format); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("source.format: %w", err))
	} else if !codec.Readable(c) {
		errs = multierr.Append(errs, errors.Newf(errors.ErrorTypeConfig, "source.format: %s cannot be read", c.Name()))
	}
	if len(j.Destinations) == 0 {
		errs = multierr.Append(errs, errors.New(errors.ErrorTypeConfig, "at least one destination is required"))
	}
	stdout := 0
	for i, d := range j.Destinations {
		if d.Path == "" {
			errs = multierr.Append(errs, errors.Newf(errors.ErrorTypeConfig, "destinations[%d].path is required", i))
		}
		if d.Path == "-" {
			stdout++
		}
		if _, err := BuildCodec(d.Format); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("destinations[%d].format: %w", i, err))
		}
	}
	if stdout > 1 {
		errs = multierr.Append(errs, errors.New(errors.ErrorTypeConfig, "only one destination may write to standard output"))
	}
	if _, err := BuildStages(j.Stages); err != nil {
		errs = multierr.Append(errs, err)
	}
	if _, err := j.ErrorPolicy(); err != nil {
		errs = multierr.Append(errs, err)
	}
	if j.Policy.MaxFailures < 0 {
		errs = multierr.Append(errs, errors.New(errors.ErrorTypeConfig, "policy.max_failures must not be negative"))
	}
	return errs
}
