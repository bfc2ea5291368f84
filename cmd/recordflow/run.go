package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/recordflow/internal/pipeline"
	"github.com/ajitpratap0/recordflow/pkg/config"
	"github.com/ajitpratap0/recordflow/pkg/errors"
	"github.com/ajitpratap0/recordflow/pkg/logger"
	"github.com/ajitpratap0/recordflow/pkg/metrics"
	"github.com/ajitpratap0/recordflow/pkg/observability"
)

// envPrefix prefixes environment overrides, e.g. RECORDFLOW_LOG_LEVEL
const envPrefix = "RECORDFLOW"

func newRunCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a conversion job",
		Long: `Run the conversion job described by a YAML file.

Every flag can also be set through the environment with the RECORDFLOW_
prefix, e.g. RECORDFLOW_LOG_LEVEL=debug. Flags win over the job file.

Exit status is 0 when every record was delivered, 2 when records were
skipped or collected, and 1 when the run aborted, was cancelled or could
not start.

Example:
  recordflow run --job orders.yaml --summary json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(cmd, v)
		},
	}

	flags := cmd.Flags()
	flags.StringP("job", "j", "", "Path to the job YAML file (required)")
	flags.String("log-level", "", "Log level (debug, info, warn, error), overrides the job file")
	flags.String("log-encoding", "", "Log encoding (console, json), overrides the job file")
	flags.String("policy", "", "Per-record error policy (skip, abort, collect), overrides the job file")
	flags.Int("max-failures", -1, "Abort after this many record failures, 0 for no limit")
	flags.String("metrics-file", "", "Write Prometheus metrics to this file after the run")
	flags.Bool("trace", false, "Print OpenTelemetry spans to standard error")
	flags.String("environment", "local", "Deployment environment reported in traces")
	flags.String("summary", "text", "Run summary on standard error (text, json, none)")
	_ = v.BindPFlags(flags)

	return cmd
}

// applyOverrides copies flag and environment settings into the job
func applyOverrides(job *config.Job, v *viper.Viper) {
	if s := v.GetString("log-level"); s != "" {
		job.Observability.LogLevel = s
	}
	if s := v.GetString("log-encoding"); s != "" {
		job.Observability.LogEncoding = s
	}
	if s := v.GetString("policy"); s != "" {
		job.Policy.OnRecordError = s
	}
	if n := v.GetInt("max-failures"); n >= 0 {
		job.Policy.MaxFailures = n
	}
	if s := v.GetString("metrics-file"); s != "" {
		job.Observability.MetricsFile = s
	}
	if v.GetBool("trace") {
		job.Observability.Tracing = true
	}
}

func runJob(cmd *cobra.Command, v *viper.Viper) error {
	path := v.GetString("job")
	if path == "" {
		return &exitError{code: pipeline.ExitFatal, err: errors.New(errors.ErrorTypeConfig, "--job is required")}
	}

	job := &config.Job{}
	if err := config.Load(path, job); err != nil {
		return &exitError{code: pipeline.ExitFatal, err: err}
	}
	applyOverrides(job, v)
	job.ApplyDefaults()
	if err := job.Validate(); err != nil {
		return &exitError{code: pipeline.ExitFatal, err: fmt.Errorf("invalid job %s: %w", path, err)}
	}

	obs := job.Observability
	if err := logger.Init(logger.Config{
		Level:       obs.LogLevel,
		Development: obs.Development,
		Encoding:    obs.LogEncoding,
	}); err != nil {
		return &exitError{code: pipeline.ExitFatal, err: err}
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.ContextWith(ctx, logger.JobKey, path)
	ctx = logger.ContextWith(ctx, logger.PipelineKey, job.Name)
	log := logger.WithContext(ctx)

	if obs.Tracing {
		shutdown, err := observability.InitTracing(ctx, observability.TracingConfig{
			ServiceName:    "recordflow",
			ServiceVersion: version,
			Environment:    v.GetString("environment"),
			SamplingRate:   obs.SamplingRate,
			Output:         cmd.ErrOrStderr(),
		})
		if err != nil {
			return &exitError{code: pipeline.ExitFatal, err: err}
		}
		defer func() {
			// the run context may be cancelled already
			if err := shutdown(context.Background()); err != nil {
				log.Warn("failed to flush traces", zap.Error(err))
			}
		}()
	}

	registry := prometheus.NewRegistry()
	recorder, err := metrics.NewRecorder(registry)
	if err != nil {
		return &exitError{code: pipeline.ExitFatal, err: err}
	}

	p, err := job.BuildPipeline(cmd.InOrStdin(), cmd.OutOrStdout(), log, pipeline.WithMetrics(recorder))
	if err != nil {
		return &exitError{code: pipeline.ExitFatal, err: err}
	}

	result, runErr := p.Run(ctx)
	if result == nil {
		return &exitError{code: pipeline.ExitFatal, err: runErr}
	}

	if obs.MetricsFile != "" {
		if err := metrics.WriteTextfile(obs.MetricsFile, registry); err != nil {
			log.Warn("failed to write metrics file", zap.String("path", obs.MetricsFile), zap.Error(err))
		}
	}
	if err := printSummary(cmd.ErrOrStderr(), v.GetString("summary"), result); err != nil {
		log.Warn("failed to print summary", zap.Error(err))
	}

	if code := result.ExitCode(); code != pipeline.ExitClean {
		return &exitError{code: code, err: runErr}
	}
	return nil
}

func printSummary(w io.Writer, format string, r *pipeline.Result) error {
	switch strings.ToLower(format) {
	case "none":
		return nil
	case "json":
		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	default:
		fmt.Fprintf(w, "%s: %s, read %d, written %d, filtered %d, skipped %d in %s\n",
			r.Pipeline, r.Outcome, r.Read, r.Written, r.Filtered, r.Skipped, r.Duration().Round(time.Millisecond))
		for _, f := range r.Failures {
			fmt.Fprintf(w, "  record %d: %s: %s\n", f.RecordNumber, f.Kind, f.Message)
		}
		return nil
	}
}
