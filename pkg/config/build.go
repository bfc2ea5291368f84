package config

import (
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ajitpratap0/recordflow/internal/pipeline"
	"github.com/ajitpratap0/recordflow/pkg/charset"
	"github.com/ajitpratap0/recordflow/pkg/codec"
	"github.com/ajitpratap0/recordflow/pkg/compression"
	"github.com/ajitpratap0/recordflow/pkg/consumer"
	"github.com/ajitpratap0/recordflow/pkg/errors"
	"github.com/ajitpratap0/recordflow/pkg/producer"
	"github.com/ajitpratap0/recordflow/pkg/record"
	"github.com/ajitpratap0/recordflow/pkg/transform"
)

// StdStream is the path that selects standard input or output
const StdStream = "-"

// BuildCodec creates the codec described by f
func BuildCodec(f FormatConfig) (codec.Codec, error) {
	switch strings.ToLower(f.Type) {
	case "delimited", "csv", "tsv":
		return buildDelimited(f)
	case "fixed-width", "fixed":
		return buildFixedWidth(f)
	case "key-value", "properties":
		return codec.NewKeyValue(codec.KeyValueOptions{
			PairSeparator:      f.PairSeparator,
			CommentPrefixes:    f.CommentPrefixes,
			SectionsAsCategory: f.Sections,
			Escapes:            f.Escapes || strings.EqualFold(f.Type, "properties"),
		})
	case "single-value", "lines":
		return codec.NewSingleValue(f.SkipEmpty), nil
	case "json-lines", "jsonl":
		return codec.NewJSONLines(f.Names...)
	case "markdown-list", "md-list":
		bullet, ok := codec.ParseBullet(f.Bullet)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeConfig, "unknown bullet %q", f.Bullet)
		}
		return codec.NewMarkdownList(bullet), nil
	case "markdown-table", "md-table":
		columns, err := buildColumns(f.Columns)
		if err != nil {
			return nil, err
		}
		return codec.NewMarkdownTable(columns...)
	case "html-table":
		columns, err := buildColumns(f.Columns)
		if err != nil {
			return nil, err
		}
		return codec.NewHTMLTable(f.Indent, columns...)
	case "":
		return nil, errors.New(errors.ErrorTypeConfig, "format type is required")
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown format type %q", f.Type)
	}
}

func buildDelimited(f FormatConfig) (codec.Codec, error) {
	var opts codec.DelimitedOptions
	switch strings.ToLower(f.Type) {
	case "csv":
		opts = codec.CSV()
	case "tsv":
		opts = codec.TSV()
	}

	if f.Separator != "" {
		sep, err := singleRune("separator", unescapeControl(f.Separator))
		if err != nil {
			return nil, err
		}
		opts.Separator = sep
	}
	if f.Quote != "" {
		quote, err := singleRune("quote", f.Quote)
		if err != nil {
			return nil, err
		}
		opts.Quote = quote
	}
	switch strings.ToLower(f.Escape) {
	case "":
	case "double-quote", "double":
		opts.Escape = codec.EscapeDoubleQuote
	case "backslash":
		opts.Escape = codec.EscapeBackslash
	case "none":
		opts.Escape = codec.EscapeNone
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown escape policy %q", f.Escape)
	}
	trim, ok := codec.ParseTrimPolicy(f.Trim)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown trim policy %q", f.Trim)
	}
	opts.Trim = trim
	opts.Arity = f.Arity
	opts.VariableArity = f.VariableArity
	return codec.NewDelimited(opts)
}

func buildFixedWidth(f FormatConfig) (codec.Codec, error) {
	spans := make([]codec.FieldSpan, len(f.Fields))
	for i, s := range f.Fields {
		trim, ok := codec.ParseTrimPolicy(s.Trim)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeConfig, "fields[%d]: unknown trim policy %q", i, s.Trim)
		}
		span := codec.FieldSpan{Start: s.Start, Length: s.Length, Trim: trim}
		if s.Fill != "" {
			fill, err := singleRune("fill", s.Fill)
			if err != nil {
				return nil, err
			}
			span.Fill = fill
		}
		align, ok := codec.ParseAlignment(s.Align)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeConfig, "fields[%d]: unknown alignment %q", i, s.Align)
		}
		span.Align = align
		spans[i] = span
	}
	return codec.NewFixedWidth(codec.FixedWidthOptions{
		Fields:        spans,
		PadShortLines: f.PadShortLines,
		RecordWidth:   f.RecordWidth,
	})
}

func buildColumns(cols []ColumnConfig) ([]codec.TableColumn, error) {
	out := make([]codec.TableColumn, len(cols))
	for i, c := range cols {
		align, ok := codec.ParseAlignment(c.Align)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeConfig, "columns[%d]: unknown alignment %q", i, c.Align)
		}
		out[i] = codec.TableColumn{Name: c.Name, MinWidth: c.MinWidth, Align: align}
	}
	return out, nil
}

// unescapeControl lets YAML authors write \t for a tab separator
func unescapeControl(s string) string {
	switch s {
	case `\t`:
		return "\t"
	case `\0`:
		return "\x00"
	default:
		return s
	}
}

func singleRune(what, s string) (rune, error) {
	if utf8.RuneCountInString(s) != 1 {
		return 0, errors.Newf(errors.ErrorTypeConfig, "%s must be a single character, got %q", what, s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}

// resolveCompression maps a configured name to an algorithm, with "auto"
// looking at the file extension
func resolveCompression(name, path string) (compression.Algorithm, error) {
	if strings.EqualFold(name, "auto") {
		return compression.FromExtension(path), nil
	}
	return compression.ParseAlgorithm(name)
}

func parseLevel(name string) (compression.Level, error) {
	switch strings.ToLower(name) {
	case "", "default":
		return compression.Default, nil
	case "fastest":
		return compression.Fastest, nil
	case "better":
		return compression.Better, nil
	case "best":
		return compression.Best, nil
	default:
		return compression.Default, errors.Newf(errors.ErrorTypeConfig, "unknown compression level %q", name)
	}
}

// BuildProducer creates the producer of a job. stdin is read when the
// source path is "-".
func (j *Job) BuildProducer(stdin io.Reader, logger *zap.Logger) (*producer.Producer, error) {
	src := j.Source
	c, err := BuildCodec(src.Format)
	if err != nil {
		return nil, err
	}
	if !codec.Readable(c) {
		return nil, errors.Newf(errors.ErrorTypeConfig, "format %s cannot be read", c.Name())
	}
	cs, err := charset.Lookup(src.Charset)
	if err != nil {
		return nil, err
	}

	var source producer.Source
	if src.Path == StdStream {
		source = producer.ReaderSource("stdin", stdin)
	} else {
		source = producer.FileSource(src.Path)
	}
	algorithm, err := resolveCompression(src.Compression, src.Path)
	if err != nil {
		return nil, err
	}
	if algorithm != compression.None {
		source = producer.Compressed(source, algorithm)
	}

	return producer.New(source, c,
		producer.WithCharset(cs),
		producer.WithSkipFirstLines(src.SkipFirstLines),
		producer.WithSkipBlankLines(src.SkipBlankLines),
		producer.WithCategory(src.Category),
		producer.WithLogger(logger),
	), nil
}

// BuildConsumers creates the consumers of a job. Destinations with
// categories are combined with the others into a router; otherwise every
// destination receives every record. stdout is written when a destination
// path is "-".
func (j *Job) BuildConsumers(stdout io.Writer, logger *zap.Logger) ([]consumer.Consumer, error) {
	var (
		plain  []consumer.Consumer
		routes []consumer.Route
	)
	for i, d := range j.Destinations {
		c, err := buildDestination(d, stdout, logger)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid destination").WithDetail("index", i)
		}
		if len(d.Categories) == 0 {
			plain = append(plain, c)
			continue
		}
		for _, category := range d.Categories {
			routes = append(routes, consumer.CategoryRoute(category, c))
		}
	}

	if len(routes) == 0 {
		return plain, nil
	}
	var fallback consumer.Consumer
	switch len(plain) {
	case 0:
	case 1:
		fallback = plain[0]
	default:
		fallback = consumer.NewGroup(plain...)
	}
	return []consumer.Consumer{consumer.NewRouter(fallback, dedupeRoutes(routes)...)}, nil
}

// dedupeRoutes keeps routes in order; a consumer listed under several
// categories is still one router member.
func dedupeRoutes(routes []consumer.Route) []consumer.Route {
	seen := make(map[consumer.Consumer]int)
	out := make([]consumer.Route, 0, len(routes))
	for _, r := range routes {
		if i, ok := seen[r.Consumer]; ok {
			prev := out[i].Accept
			accept := r.Accept
			out[i].Accept = func(rec record.Record) bool { return prev(rec) || accept(rec) }
			continue
		}
		seen[r.Consumer] = len(out)
		out = append(out, r)
	}
	return out
}

func buildDestination(d DestinationConfig, stdout io.Writer, logger *zap.Logger) (consumer.Consumer, error) {
	c, err := BuildCodec(d.Format)
	if err != nil {
		return nil, err
	}
	cs, err := charset.Lookup(d.Charset)
	if err != nil {
		return nil, err
	}
	sep, ok := consumer.ParseLineSeparator(d.LineSeparator)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown line separator %q", d.LineSeparator)
	}

	var dest consumer.Destination
	if d.Path == StdStream {
		dest = consumer.WriterDestination("stdout", stdout)
	} else {
		dest = consumer.FileDestination(d.Path, consumer.WithAppend(d.Append))
	}
	algorithm, err := resolveCompression(d.Compression, d.Path)
	if err != nil {
		return nil, err
	}
	if algorithm != compression.None {
		level, err := parseLevel(d.CompressionLevel)
		if err != nil {
			return nil, err
		}
		dest = consumer.Compressed(dest, compression.Config{Algorithm: algorithm, Level: level})
	}

	return consumer.New(dest, c,
		consumer.WithCharset(cs),
		consumer.WithLineSeparator(sep),
		consumer.WithTextBefore(d.TextBefore),
		consumer.WithTextAfter(d.TextAfter),
		consumer.WithLogger(logger),
	), nil
}

// BuildStages creates the transformation stages in order
func BuildStages(stages []StageConfig) ([]transform.Stage, error) {
	out := make([]transform.Stage, 0, len(stages))
	for i, s := range stages {
		stage, err := buildStage(s)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid stage").
				WithDetail("index", i).
				WithDetail("type", s.Type)
		}
		out = append(out, stage)
	}
	return out, nil
}

func buildStage(s StageConfig) (transform.Stage, error) {
	name := s.Name
	if name == "" {
		name = s.Type
	}

	if f, ok, err := buildFilter(s); ok || err != nil {
		if err != nil {
			return transform.Stage{}, err
		}
		if s.Negate {
			f = transform.Not(f)
		}
		return transform.Where(name, f), nil
	}
	if s.Negate {
		return transform.Stage{}, errors.Newf(errors.ErrorTypeConfig, "stage %q is not a filter and cannot be negated", s.Type)
	}

	var m transform.Mapper
	switch s.Type {
	case "identity":
		m = transform.Identity()
	case "set-category":
		m = transform.SetCategory(s.Value)
	case "category-from-field":
		m = transform.CategoryFromField(s.Field)
	case "add-field":
		m = transform.AddField(s.Value)
	case "insert-field":
		m = transform.InsertField(s.Field, s.Value)
	case "remove-field":
		m = transform.RemoveField(s.Field)
	case "replace-field":
		m = transform.ReplaceField(s.Field, s.Value)
	case "map-field", "map-fields":
		fn, ok := transform.StringFunc(s.Function)
		if !ok {
			return transform.Stage{}, errors.Newf(errors.ErrorTypeConfig, "unknown function %q", s.Function)
		}
		if s.Type == "map-fields" {
			m = transform.MapFields(fn)
		} else {
			m = transform.MapField(s.Field, fn)
		}
	case "lookup":
		if len(s.Table) == 0 {
			return transform.Stage{}, errors.New(errors.ErrorTypeConfig, "lookup needs a table")
		}
		m = transform.Lookup(s.Field, s.Table, s.Strict)
	case "reorder":
		if len(s.Indices) == 0 {
			return transform.Stage{}, errors.New(errors.ErrorTypeConfig, "reorder needs indices")
		}
		m = transform.Reorder(s.Indices...)
	case "renumber":
		m = transform.NewRenumber(s.Start)
	default:
		return transform.Stage{}, errors.Newf(errors.ErrorTypeConfig, "unknown stage type %q", s.Type)
	}
	return transform.Map(name, m), nil
}

// buildFilter reports ok when s names a filter
func buildFilter(s StageConfig) (transform.Filter, bool, error) {
	switch s.Type {
	case "category-is":
		return transform.CategoryIs(s.Categories...), true, nil
	case "has-category":
		return transform.HasCategory(), true, nil
	case "number-between":
		return transform.NumberBetween(s.From, s.To), true, nil
	case "arity-is":
		return transform.ArityIs(s.Count), true, nil
	case "field-equals":
		return transform.FieldEquals(s.Field, s.Value), true, nil
	case "field-matches":
		re, err := regexp.Compile(s.Pattern)
		if err != nil {
			return nil, true, errors.Wrap(err, errors.ErrorTypeConfig, "invalid pattern")
		}
		return transform.FieldMatches(s.Field, re), true, nil
	case "distinct":
		return transform.NewDistinct(), true, nil
	default:
		return nil, false, nil
	}
}

// ErrorPolicy converts the policy section
func (j *Job) ErrorPolicy() (pipeline.ErrorPolicy, error) {
	name := j.Policy.OnRecordError
	if name == "" {
		return pipeline.DefaultErrorPolicy(), nil
	}
	p, err := pipeline.ParsePolicy(name)
	if err != nil {
		return pipeline.ErrorPolicy{}, err
	}
	return pipeline.ErrorPolicy{OnRecordError: p, MaxFailures: j.Policy.MaxFailures}, nil
}

// BuildPipeline wires producer, consumers, stages and policy of the job.
// opts are applied after the job settings.
func (j *Job) BuildPipeline(stdin io.Reader, stdout io.Writer, logger *zap.Logger, opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	prod, err := j.BuildProducer(stdin, logger)
	if err != nil {
		return nil, err
	}
	consumers, err := j.BuildConsumers(stdout, logger)
	if err != nil {
		return nil, err
	}
	stages, err := BuildStages(j.Stages)
	if err != nil {
		return nil, err
	}
	policy, err := j.ErrorPolicy()
	if err != nil {
		return nil, err
	}

	all := append([]pipeline.Option{
		pipeline.WithName(j.Name),
		pipeline.WithStages(stages...),
		pipeline.WithPolicy(policy),
		pipeline.WithLogger(logger),
	}, opts...)
	return pipeline.New(prod, consumers, all...), nil
}
